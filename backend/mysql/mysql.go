package mysql

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	mysqlmigrate "github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/cschleiden/go-orchestrations/backend"
	"github.com/cschleiden/go-orchestrations/internal/sqlstore"
)

//go:embed db/migrations/*.sql
var migrationsFS embed.FS

const (
	errDuplicateEntry = 1062
	errLockDeadlock   = 1213
)

var dialect = sqlstore.Dialect{
	Name:       "mysql",
	LockClause: " FOR UPDATE SKIP LOCKED",
	TxOptions:  &sql.TxOptions{Isolation: sql.LevelReadCommitted},
	IsConflict: func(err error) bool {
		var myErr *mysql.MySQLError
		if !errors.As(err, &myErr) {
			return false
		}

		return myErr.Number == errDuplicateEntry || myErr.Number == errLockDeadlock
	},
}

type mysqlBackend struct {
	*sqlstore.Store

	dsn string
}

var _ backend.Backend = (*mysqlBackend)(nil)

func NewMysqlBackend(host string, port int, user, password, database string, opts ...option) *mysqlBackend {
	// clientFoundRows makes conditional updates report matched rows, even if no value changed
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&interpolateParams=true&clientFoundRows=true", user, password, host, port, database)

	bo := backend.ApplyOptions()

	options := &options{
		Options:         &bo,
		ApplyMigrations: true,
	}

	for _, opt := range opts {
		opt(options)
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		panic(err)
	}

	if options.MySQLOptions != nil {
		options.MySQLOptions(db)
	}

	b := &mysqlBackend{
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

// Migrate applies any pending database migrations.
func (b *mysqlBackend) Migrate() error {
	// Migrations contain multiple statements per file
	schemaDsn := b.dsn + "&multiStatements=true"
	db, err := sql.Open("mysql", schemaDsn)
	if err != nil {
		return fmt.Errorf("opening schema database: %w", err)
	}

	dbi, err := mysqlmigrate.WithInstance(db, &mysqlmigrate.Config{})
	if err != nil {
		return fmt.Errorf("creating migration instance: %w", err)
	}

	migrations, err := iofs.New(migrationsFS, "db/migrations")
	if err != nil {
		return fmt.Errorf("creating migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", migrations, "mysql", dbi)
	if err != nil {
		return fmt.Errorf("creating migration: %w", err)
	}

	if err := m.Up(); err != nil {
		if !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("running migrations: %w", err)
		}
	}

	if err := db.Close(); err != nil {
		return fmt.Errorf("closing schema database: %w", err)
	}

	return nil
}
