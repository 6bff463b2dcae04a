package session

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

const pgSessionColumns = `
	id, owner_id, token,
	COALESCE(client_address, ''), COALESCE(client_agent, ''), COALESCE(device_summary, ''),
	created_at, last_activity, absolute_expiry,
	is_active, deactivated_at, COALESCE(deactivation_reason, '')`

// PostgresStore implements Store over the sessions table (see cmd/internal/db/migrations).
// The pool is owned by the caller.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed session store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Create implements Store.
func (s *PostgresStore) Create(ctx context.Context, sess Session) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sessions (
			id, owner_id, token,
			client_address, client_agent, device_summary,
			created_at, last_activity, absolute_expiry, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, TRUE)
	`,
		sess.ID, sess.OwnerID, sess.Token,
		nullIfEmpty(sess.ClientAddress), nullIfEmpty(sess.ClientAgent), nullIfEmpty(sess.DeviceSummary),
		sess.CreatedAt, sess.LastActivity, sess.AbsoluteExpiry,
	)
	if isTokenConflict(err) {
		return ErrDuplicateToken
	}
	return err
}

// FindActive implements Store.
func (s *PostgresStore) FindActive(ctx context.Context, token, ownerID string) (Session, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+pgSessionColumns+`
		FROM sessions
		WHERE token = $1 AND owner_id = $2 AND is_active
	`, token, ownerID)
	return scanSessionRow(row)
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, id string) (Session, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+pgSessionColumns+`
		FROM sessions
		WHERE id = $1
	`, id)
	return scanSessionRow(row)
}

// ListActive implements Store.
func (s *PostgresStore) ListActive(ctx context.Context, ownerID string) ([]Session, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+pgSessionColumns+`
		FROM sessions
		WHERE owner_id = $1 AND is_active
		ORDER BY last_activity DESC, id DESC
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Session, 0, 4)
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// Touch implements Store. GREATEST keeps last_activity monotonic under concurrent writers.
func (s *PostgresStore) Touch(ctx context.Context, id string, at time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE sessions
		SET last_activity = GREATEST(last_activity, $2)
		WHERE id = $1 AND is_active
	`, id, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Deactivate implements Store (idempotent).
func (s *PostgresStore) Deactivate(ctx context.Context, id string, now time.Time, reason DeactivationReason) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE sessions
		SET is_active = FALSE,
		    deactivated_at = COALESCE(deactivated_at, $2),
		    deactivation_reason = COALESCE(deactivation_reason, $3)
		WHERE id = $1
	`, id, now, string(reason))
	return err
}

// DeactivateByToken implements Store (idempotent).
func (s *PostgresStore) DeactivateByToken(ctx context.Context, token string, now time.Time, reason DeactivationReason) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE sessions
		SET is_active = FALSE,
		    deactivated_at = COALESCE(deactivated_at, $2),
		    deactivation_reason = COALESCE(deactivation_reason, $3)
		WHERE token = $1
	`, token, now, string(reason))
	return err
}

// DeactivateAllExcept implements Store.
func (s *PostgresStore) DeactivateAllExcept(ctx context.Context, ownerID, keepToken string, now time.Time, reason DeactivationReason) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE sessions
		SET is_active = FALSE,
		    deactivated_at = COALESCE(deactivated_at, $3),
		    deactivation_reason = COALESCE(deactivation_reason, $4)
		WHERE owner_id = $1 AND is_active AND token <> $2
	`, ownerID, keepToken, now, string(reason))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeactivateStale implements Store.
func (s *PostgresStore) DeactivateStale(ctx context.Context, now, idleCutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE sessions
		SET is_active = FALSE,
		    deactivated_at = COALESCE(deactivated_at, $1),
		    deactivation_reason = COALESCE(
		        deactivation_reason,
		        CASE WHEN absolute_expiry <= $1 THEN $3 ELSE $4 END
		    )
		WHERE is_active AND (absolute_expiry <= $1 OR last_activity <= $2)
	`, now, idleCutoff, string(ReasonExpired), string(ReasonStale))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Purge implements Store.
func (s *PostgresStore) Purge(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE absolute_expiry < $1`, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanSessionRow(row pgx.Row) (Session, error) {
	sess, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	return sess, err
}

func scanSession(row pgx.Row) (Session, error) {
	var (
		sess   Session
		reason string
	)
	err := row.Scan(
		&sess.ID,
		&sess.OwnerID,
		&sess.Token,
		&sess.ClientAddress,
		&sess.ClientAgent,
		&sess.DeviceSummary,
		&sess.CreatedAt,
		&sess.LastActivity,
		&sess.AbsoluteExpiry,
		&sess.IsActive,
		&sess.DeactivatedAt,
		&reason,
	)
	if err != nil {
		return Session{}, err
	}

	sess.CreatedAt = sess.CreatedAt.UTC()
	sess.LastActivity = sess.LastActivity.UTC()
	sess.AbsoluteExpiry = sess.AbsoluteExpiry.UTC()
	if sess.DeactivatedAt != nil {
		at := sess.DeactivatedAt.UTC()
		sess.DeactivatedAt = &at
	}
	sess.DeactivationReason = DeactivationReason(reason)
	return sess, nil
}

func isTokenConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return false
	}
	return pgErr.ConstraintName == "uq_sessions_token"
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

var _ Store = (*PostgresStore)(nil)
