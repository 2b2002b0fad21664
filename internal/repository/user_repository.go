package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/user-auth-service/internal/model"
)

// UserStore persists and retrieves user records. Implementations enforce
// email and external id uniqueness and report violations as
// ErrDuplicateIdentity; lookups with no match return ErrNotFound.
type UserStore interface {
	Create(ctx context.Context, u model.NewUser) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByExternalID(ctx context.Context, externalID string) (*model.User, error)
}

// Dialect selects the placeholder style of the underlying database.
type Dialect string

const (
	DialectMySQL    Dialect = "mysql"
	DialectPostgres Dialect = "postgres"
)

const userColumns = "id,email,password_hash,external_id,display_name,role,created_at,updated_at"

// UserRepo is the database/sql implementation of UserStore.
type UserRepo struct {
	DB      *sql.DB
	Dialect Dialect
}

var _ UserStore = (*UserRepo)(nil)

func NewUserRepo(db *sql.DB, d Dialect) *UserRepo { return &UserRepo{DB: db, Dialect: d} }

// Create inserts a user with a fresh UUID and the default role, then reads
// the row back so the database-assigned timestamps are returned.
func (r *UserRepo) Create(ctx context.Context, nu model.NewUser) (*model.User, error) {
	id := uuid.NewString()
	email := normalizeEmail(nu.Email)

	_, err := r.DB.ExecContext(ctx,
		r.rebind("INSERT INTO users (id, email, password_hash, display_name, external_id, role) VALUES (?,?,?,?,?,?)"),
		id, email, nu.PasswordHash, nullString(nu.DisplayName), nullString(nu.ExternalID), model.DefaultRole)
	if err != nil {
		if isDuplicateKey(err) {
			return nil, ErrDuplicateIdentity
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return r.FindByID(ctx, id)
}

// FindByEmail fetches a user by normalized email.
func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, "email", normalizeEmail(email))
}

// FindByID fetches a user by id.
func (r *UserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	// Postgres rejects a non-UUID literal for a uuid column with a cast
	// error; such an id cannot match any row.
	if r.Dialect == DialectPostgres {
		if _, err := uuid.Parse(id); err != nil {
			return nil, ErrNotFound
		}
	}
	return r.findOne(ctx, "id", id)
}

// FindByExternalID fetches a user by external identity handle.
func (r *UserRepo) FindByExternalID(ctx context.Context, externalID string) (*model.User, error) {
	return r.findOne(ctx, "external_id", externalID)
}

func (r *UserRepo) findOne(ctx context.Context, column, value string) (*model.User, error) {
	q := r.rebind("SELECT " + userColumns + " FROM users WHERE " + column + "=? LIMIT 1")

	var (
		u                       model.User
		externalID, displayName sql.NullString
		createdAt, updatedAt    sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx, q, value).Scan(
		&u.ID, &u.Email, &u.PasswordHash, &externalID, &displayName, &u.Role, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if externalID.Valid {
		u.ExternalID = &externalID.String
	}
	if displayName.Valid {
		u.DisplayName = &displayName.String
	}
	if createdAt.Valid {
		u.CreatedAt = &createdAt.Time
	}
	if updatedAt.Valid {
		u.UpdatedAt = &updatedAt.Time
	}
	return &u, nil
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (r *UserRepo) rebind(q string) string {
	if r.Dialect != DialectPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, ch := range q {
		if ch == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
