package data

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/KotFed0t/portfolio_tracker/config"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/jmoiron/sqlx"
)

const (
	defaultConnAttempts = 10
	connRetryDelay      = time.Second
	pingTimeout         = 5 * time.Second
)

func postgresDSN(cfg config.Postgres) string {
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=disable password=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.DbName,
		cfg.Password,
	)
}

// NewPostgresClient connects with retries, applies pool limits and runs migrations.
// It panics when the database stays unreachable, the process can't work without it.
func NewPostgresClient(ctx context.Context, cfg *config.Config) *sqlx.DB {
	var (
		db  *sqlx.DB
		err error
	)

	for attempt := defaultConnAttempts; attempt > 0; attempt-- {
		db, err = sqlx.ConnectContext(ctx, "pgx", postgresDSN(cfg.Postgres))
		if err == nil {
			break
		}

		slog.Info(
			"Postgres is trying to connect",
			slog.Int("attempts left", attempt-1),
			slog.String("host", cfg.Postgres.Host),
			slog.String("err", err.Error()),
		)

		time.Sleep(connRetryDelay)
	}

	if err != nil {
		slog.Error("Postgres connection attempts exhausted", slog.String("err", err.Error()))
		panic(err)
	}

	db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
	db.SetConnMaxLifetime(time.Duration(cfg.Postgres.ConnMaxLifetime) * time.Second)
	db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
	db.SetConnMaxIdleTime(time.Duration(cfg.Postgres.ConnMaxIdleTime) * time.Second)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err = db.PingContext(pingCtx); err != nil {
		slog.Error("Postgres ping failed", slog.String("err", err.Error()))
		panic(err)
	}
	slog.Info("Postgres connected", slog.String("db", cfg.Postgres.DbName))

	version := migratePostgres(db, cfg.Postgres.MigrationDir)
	slog.Info("postgres migrated successfully", slog.Uint64("schemaVersion", uint64(version)))

	return db
}

func migratePostgres(db *sqlx.DB, migrationDir string) uint {
	driver, err := postgres.WithInstance(db.DB, &postgres.Config{})
	if err != nil {
		slog.Error("postgres migration failed on postgres.WithInstance", slog.String("err", err.Error()))
		panic(err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationDir),
		"postgres",
		driver,
	)
	if err != nil {
		slog.Error("postgres migration failed on migrate.NewWithDatabaseInstance", slog.String("err", err.Error()))
		panic(err)
	}

	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		slog.Error("postgres migration failed on m.Up()", slog.String("err", err.Error()))
		panic(err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		slog.Error("can't read schema version", slog.String("err", err.Error()))
		return 0
	}
	if dirty {
		slog.Warn("postgres schema is dirty", slog.Uint64("version", uint64(version)))
	}

	return version
}
