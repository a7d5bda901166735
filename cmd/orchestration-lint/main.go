// Command orchestration-lint checks orchestrators for code that breaks deterministic replay.
package main

import (
	"golang.org/x/tools/go/analysis/singlechecker"

	"github.com/cschleiden/go-orchestrations/analyzer"
)

func main() {
	singlechecker.Main(analyzer.New())
}
