package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/cschleiden/go-orchestrations/backend"
	"github.com/cschleiden/go-orchestrations/backend/test"
)

func Test_SqliteBackend(t *testing.T) {
	test.BackendTest(t, func(options ...backend.BackendOption) backend.Backend {
		return NewInMemoryBackend(WithBackendOptions(options...))
	}, func(b backend.Backend) {
		b.Close()
	})
}

func Test_SqliteBackend_SharedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orchestrations.sqlite")

	test.BackendTest(t, func(options ...backend.BackendOption) backend.Backend {
		// All backends share the file, keep tests apart by task hub
		options = append([]backend.BackendOption{backend.WithTaskHub(uuid.NewString())}, options...)
		return NewSqliteBackend(path, WithBackendOptions(options...))
	}, func(b backend.Backend) {
		b.Close()
	})
}

func Test_EndToEndSqliteBackend(t *testing.T) {
	test.EndToEndBackendTest(t, func(options ...backend.BackendOption) backend.Backend {
		return NewInMemoryBackend(WithBackendOptions(options...))
	}, func(b backend.Backend) {
		b.Close()
	})
}
