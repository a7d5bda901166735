package sqlite

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/cschleiden/go-orchestrations/backend"
	"github.com/cschleiden/go-orchestrations/internal/sqlstore"
)

//go:embed db/migrations/*.sql
var migrationsFS embed.FS

var dialect = sqlstore.Dialect{
	Name: "sqlite",
	IsConflict: func(err error) bool {
		msg := err.Error()
		return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "database is locked")
	},
}

type sqliteBackend struct {
	*sqlstore.Store
}

var _ backend.Backend = (*sqliteBackend)(nil)

// NewInMemoryBackend creates a backend on a private in-memory database.
func NewInMemoryBackend(opts ...option) *sqliteBackend {
	return newSqliteBackend("file::memory:", opts...)
}

func NewSqliteBackend(path string, opts ...option) *sqliteBackend {
	return newSqliteBackend(fmt.Sprintf("file:%v?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)", path), opts...)
}

func newSqliteBackend(dsn string, opts ...option) *sqliteBackend {
	bo := backend.ApplyOptions()

	options := &options{
		Options:         &bo,
		ApplyMigrations: true,
	}

	for _, opt := range opts {
		opt(options)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		panic(err)
	}

	// SQLite allows a single writer, serialize all access through one connection. This also keeps an
	// in-memory database alive.
	db.SetMaxOpenConns(1)

	b := &sqliteBackend{
		Store: sqlstore.New(db, dialect, options.Options, true),
	}

	if options.ApplyMigrations {
		if err := b.Migrate(); err != nil {
			panic(err)
		}
	}

	return b
}

// Migrate applies any pending database migrations.
func (sb *sqliteBackend) Migrate() error {
	dbi, err := sqlite.WithInstance(sb.DB(), &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("creating migration instance: %w", err)
	}

	migrations, err := iofs.New(migrationsFS, "db/migrations")
	if err != nil {
		return fmt.Errorf("creating migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", migrations, "sqlite", dbi)
	if err != nil {
		return fmt.Errorf("creating migration: %w", err)
	}

	if err := m.Up(); err != nil {
		if !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("running migrations: %w", err)
		}
	}

	return nil
}
