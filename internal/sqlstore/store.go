// Package sqlstore implements the History Store and Work Queues on top of database/sql. The sqlite,
// postgres and mysql backends share it and only differ in their Dialect and schema migrations.
package sqlstore

import (
	"database/sql"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/cschleiden/go-orchestrations/backend"
	"github.com/cschleiden/go-orchestrations/backend/metrics"
	"github.com/cschleiden/go-orchestrations/internal/metrickeys"
)

type Store struct {
	db      *sql.DB
	dialect Dialect
	options *backend.Options

	ownsConnection bool
}

var _ backend.Backend = (*Store)(nil)

// New creates a store on the given database. If ownsConnection is set, Close closes db.
func New(db *sql.DB, dialect Dialect, options *backend.Options, ownsConnection bool) *Store {
	return &Store{
		db:             db,
		dialect:        dialect,
		options:        options,
		ownsConnection: ownsConnection,
	}
}

// DB returns the underlying database.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Tracer() trace.Tracer {
	return s.options.TracerProvider.Tracer(backend.TracerName)
}

func (s *Store) Metrics() metrics.Client {
	return s.options.Metrics.WithTags(metrics.Tags{metrickeys.Backend: s.dialect.Name})
}

func (s *Store) Options() *backend.Options {
	return s.options
}

func (s *Store) Close() error {
	if !s.ownsConnection {
		return nil
	}

	return s.db.Close()
}

func (s *Store) taskHub() string {
	return s.options.TaskHub
}

func (s *Store) now() int64 {
	return s.options.Clock.Now().UnixNano()
}

func toNanos(t time.Time) int64 {
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
