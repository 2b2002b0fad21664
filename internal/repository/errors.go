// Package repository defines the user store contract and its SQL
// implementation. Sentinel errors below let the service layer tell a
// missing row or a uniqueness violation apart from an infrastructure
// failure without inspecting driver-specific error types.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned when a lookup matches no user.
var ErrNotFound = errors.New("not found")

// ErrDuplicateIdentity is returned when an insert violates the unique
// constraint on email or external_id.
var ErrDuplicateIdentity = errors.New("email or external id already exists")

const (
	mysqlDuplicateEntry = 1062    // ER_DUP_ENTRY
	pgUniqueViolation   = "23505" // unique_violation
)

// isDuplicateKey reports whether err is a unique-constraint violation from
// either supported driver.
func isDuplicateKey(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return true
	}
	return false
}
