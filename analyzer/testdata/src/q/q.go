// nolint
package q

import (
	orchestration "context"
)

func privateWrongOrder(ctx orchestration.Context) (error, string) {
	return nil, ""
}

func ExportedWrongOrder(ctx orchestration.Context) (error, string) { // want "orchestrator \"ExportedWrongOrder\" doesn't return `error` as last return value"
	return nil, ""
}
