package identity

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store over the users table.
// The pool is owned by the caller and is never closed here.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const pgUserColumns = `id, email, email_norm, COALESCE(display_name, ''), role, password_hash, created_at`

func (s *PostgresStore) CreateUser(ctx context.Context, u User) error {
	const op = "identity.CreateUser"

	var display any
	if u.DisplayName != "" {
		display = u.DisplayName
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, email, email_norm, display_name, role, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, u.ID, u.Email, u.EmailNorm, display, string(u.Role), u.PasswordHash, u.CreatedAt)
	if err != nil {
		if field, ok := pgClassifyUniqueViolation(err); ok {
			return ConflictError{Op: op, Field: field}
		}
		return err
	}
	return nil
}

func (s *PostgresStore) GetByEmail(ctx context.Context, emailNorm string) (User, error) {
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+pgUserColumns+` FROM users WHERE email_norm = $1`, emailNorm))
}

func (s *PostgresStore) GetByID(ctx context.Context, id string) (User, error) {
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+pgUserColumns+` FROM users WHERE id = $1`, id))
}

func (s *PostgresStore) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1`, id, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (User, error) {
	var (
		u    User
		role string
	)
	err := row.Scan(&u.ID, &u.Email, &u.EmailNorm, &u.DisplayName, &role, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	u.Role = Role(role)
	u.CreatedAt = u.CreatedAt.UTC()
	return u, nil
}

// pgClassifyUniqueViolation maps a unique_violation to the logical field it guards.
// Stable constraint names win; the substring match is a fallback for hand-made schemas.
func pgClassifyUniqueViolation(err error) (field string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return "", false
	}

	c := strings.ToLower(strings.TrimSpace(pgErr.ConstraintName))
	switch {
	case c == "uq_users_email_norm", strings.Contains(c, "email"):
		return "email", true
	case c == "users_pkey":
		return "id", true
	default:
		return "unique", true
	}
}

var _ Store = (*PostgresStore)(nil)
