package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/helios-portal/helios-portal/internal/shared"
)

// Repository defines persistence operations for sessions.
type Repository interface {
	ReplaceForUser(ctx context.Context, sess *Session) error
	GetByID(ctx context.Context, id string) (*Session, error)
	GetByAccessToken(ctx context.Context, accessToken string) (*Session, error)
	GetByRefreshDigest(ctx context.Context, digest string, now time.Time) (*Session, error)
	UpdateTokens(ctx context.Context, id string, accessToken string, accessExpiresAt time.Time, refreshDigest string, refreshExpiresAt time.Time) error
	UpdateAccessTokenByOld(ctx context.Context, oldAccessToken, newAccessToken string, accessExpiresAt time.Time) error
	Delete(ctx context.Context, id string) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const sessionColumns = `id, user_id, access_token, access_expires_at, refresh_digest, refresh_expires_at, created_at`

func scanSession(row pgx.Row) (*Session, error) {
	var s Session
	if err := row.Scan(&s.ID, &s.UserID, &s.AccessToken, &s.AccessExpiresAt, &s.RefreshDigest, &s.RefreshExpiresAt, &s.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// ReplaceForUser deletes any prior session row for the owning user and
// inserts the new one, keeping single-active-session semantics. The two
// statements are not atomic against a concurrent login; last write wins.
func (r *PGRepository) ReplaceForUser(ctx context.Context, sess *Session) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, sess.UserID); err != nil {
		return err
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO sessions (id, user_id, access_token, access_expires_at, refresh_digest, refresh_expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		sess.ID, sess.UserID, sess.AccessToken, sess.AccessExpiresAt, sess.RefreshDigest, sess.RefreshExpiresAt, sess.CreatedAt)
	return err
}

// GetByID fetches a session row by id.
func (r *PGRepository) GetByID(ctx context.Context, id string) (*Session, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	return scanSession(row)
}

// GetByAccessToken fetches a session row by its exact access token value.
func (r *PGRepository) GetByAccessToken(ctx context.Context, accessToken string) (*Session, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE access_token = $1`, accessToken)
	return scanSession(row)
}

// GetByRefreshDigest fetches the session holding an unexpired refresh token.
func (r *PGRepository) GetByRefreshDigest(ctx context.Context, digest string, now time.Time) (*Session, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE refresh_digest = $1 AND refresh_expires_at > $2`, digest, now)
	return scanSession(row)
}

// UpdateTokens rotates both tokens in place, preserving session identity.
func (r *PGRepository) UpdateTokens(ctx context.Context, id string, accessToken string, accessExpiresAt time.Time, refreshDigest string, refreshExpiresAt time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE sessions
		SET access_token = $2, access_expires_at = $3, refresh_digest = $4, refresh_expires_at = $5
		WHERE id = $1`,
		id, accessToken, accessExpiresAt, refreshDigest, refreshExpiresAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// UpdateAccessTokenByOld swaps the access token on the row currently
// holding oldAccessToken. Locating by token value rather than user id
// avoids racing a concurrent login that replaced the row.
func (r *PGRepository) UpdateAccessTokenByOld(ctx context.Context, oldAccessToken, newAccessToken string, accessExpiresAt time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE sessions SET access_token = $2, access_expires_at = $3 WHERE access_token = $1`,
		oldAccessToken, newAccessToken, accessExpiresAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete removes a session row.
func (r *PGRepository) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

var _ Repository = (*PGRepository)(nil)
