package postgres

import (
	"testing"

	"github.com/google/uuid"

	"github.com/cschleiden/go-orchestrations/backend"
	"github.com/cschleiden/go-orchestrations/backend/test"
	"github.com/cschleiden/go-orchestrations/internal/testutil"
)

// Tests share one container per test function and are kept apart by task hub.
func setup(dsn string) test.Setup {
	return func(options ...backend.BackendOption) backend.Backend {
		options = append([]backend.BackendOption{backend.WithTaskHub(uuid.NewString())}, options...)

		return NewPostgresBackendWithDSN(dsn, WithBackendOptions(options...))
	}
}

func teardown(b backend.Backend) {
	if err := b.Close(); err != nil {
		panic(err)
	}
}

func Test_PostgresBackend(t *testing.T) {
	dsn := testutil.StartPostgres(t)

	test.BackendTest(t, setup(dsn), teardown)
}

func Test_EndToEndPostgresBackend(t *testing.T) {
	dsn := testutil.StartPostgres(t)

	test.EndToEndBackendTest(t, setup(dsn), teardown)
}
