package postgres

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/cschleiden/go-orchestrations/backend"
	"github.com/cschleiden/go-orchestrations/internal/sqlstore"
)

//go:embed db/migrations/*.sql
var migrationsFS embed.FS

var dialect = sqlstore.Dialect{
	Name:                 "postgres",
	NumberedPlaceholders: true,
	LockClause:           " FOR UPDATE SKIP LOCKED",
	TxOptions:            &sql.TxOptions{Isolation: sql.LevelReadCommitted},
	IsConflict: func(err error) bool {
		var pgErr *pgconn.PgError
		if !errors.As(err, &pgErr) {
			return false
		}

		switch pgErr.Code {
		case "23505", // unique_violation
			"40001", // serialization_failure
			"40P01": // deadlock_detected
			return true
		}

		return false
	},
}

type postgresBackend struct {
	*sqlstore.Store

	dsn string
}

var _ backend.Backend = (*postgresBackend)(nil)

func NewPostgresBackend(host string, port int, user, password, database string, opts ...option) *postgresBackend {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable", host, port, user, password, database)

	return NewPostgresBackendWithDSN(dsn, opts...)
}

// NewPostgresBackendWithDSN creates a backend from a connection string in any format pgx accepts.
func NewPostgresBackendWithDSN(dsn string, opts ...option) *postgresBackend {
	options := newOptions(true, opts...)

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		panic(err)
	}

	if options.PostgresOptions != nil {
		options.PostgresOptions(db)
	}

	b := &postgresBackend{
		Store: sqlstore.New(db, dialect, options.Options, true),
		dsn:   dsn,
	}

	if options.ApplyMigrations {
		if err := b.Migrate(); err != nil {
			panic(err)
		}
	}

	return b
}

// NewPostgresBackendWithDB creates a new Postgres backend using an existing database connection. The backend
// does not close the connection when Close() is called.
func NewPostgresBackendWithDB(db *sql.DB, opts ...option) *postgresBackend {
	options := newOptions(false, opts...)

	b := &postgresBackend{
		Store: sqlstore.New(db, dialect, options.Options, false),
	}

	if options.ApplyMigrations {
		if err := b.Migrate(); err != nil {
			panic(err)
		}
	}

	return b
}

func newOptions(applyMigrations bool, opts ...option) *options {
	bo := backend.ApplyOptions()

	options := &options{
		Options:         &bo,
		ApplyMigrations: applyMigrations,
	}

	for _, opt := range opts {
		opt(options)
	}

	return options
}

// Migrate applies any pending database migrations.
func (pb *postgresBackend) Migrate() error {
	var db *sql.DB
	var needsClose bool

	if pb.dsn != "" {
		// The migration driver takes ownership of the connection, use a dedicated one
		var err error
		db, err = sql.Open("pgx", pb.dsn)
		if err != nil {
			return fmt.Errorf("opening schema database: %w", err)
		}
		needsClose = true
	} else {
		db = pb.DB()
	}

	dbi, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("creating migration instance: %w", err)
	}

	migrations, err := iofs.New(migrationsFS, "db/migrations")
	if err != nil {
		return fmt.Errorf("creating migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", migrations, "postgres", dbi)
	if err != nil {
		return fmt.Errorf("creating migration: %w", err)
	}

	if err := m.Up(); err != nil {
		if !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("running migrations: %w", err)
		}
	}

	if needsClose {
		if err := db.Close(); err != nil {
			return fmt.Errorf("closing schema database: %w", err)
		}
	}

	return nil
}
