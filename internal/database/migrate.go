package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed migrations/mysql/*.sql migrations/postgres/*.sql
var migrations embed.FS

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Migrate applies the embedded migrations for driver.
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	var dialect, dir string
	switch driver {
	case DriverMySQL:
		dialect, dir = "mysql", "migrations/mysql"
	case DriverPgx:
		dialect, dir = "postgres", "migrations/postgres"
	default:
		return fmt.Errorf("no migrations for driver %q", driver)
	}

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect(dialect); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, db, dir); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// EnsurePostgresDatabase creates the database named in databaseURL when it
// does not exist yet, connecting through the server's "postgres" database.
func EnsurePostgresDatabase(ctx context.Context, databaseURL string, log *zap.Logger) error {
	adminURL, name, err := splitPostgresURL(databaseURL)
	if err != nil {
		return err
	}
	admin, err := sql.Open(DriverPgx, adminURL)
	if err != nil {
		return err
	}
	defer admin.Close()

	created, err := ensureDatabase(ctx, admin, name)
	if err != nil {
		return err
	}
	if created && log != nil {
		log.Info("created database", zap.String("database", name))
	}
	return nil
}

func ensureDatabase(ctx context.Context, admin *sql.DB, name string) (bool, error) {
	var exists bool
	if err := admin.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", name).Scan(&exists); err != nil {
		return false, fmt.Errorf("check database: %w", err)
	}
	if exists {
		return false, nil
	}
	if _, err := admin.ExecContext(ctx, "CREATE DATABASE "+pgx.Identifier{name}.Sanitize()); err != nil {
		return false, fmt.Errorf("create database: %w", err)
	}
	return true, nil
}

// splitPostgresURL returns a URL pointing at the maintenance database and
// the target database name.
func splitPostgresURL(raw string) (string, string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("parse database url: %w", err)
	}
	name := strings.TrimPrefix(u.Path, "/")
	if name == "" || strings.Contains(name, "/") {
		return "", "", errors.New("database url must name a database")
	}
	u.Path = "/postgres"
	return u.String(), name, nil
}
