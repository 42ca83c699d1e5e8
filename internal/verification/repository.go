package verification

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/helios-portal/helios-portal/internal/shared"
)

// Repository defines persistence operations for verification codes.
type Repository interface {
	GetLive(ctx context.Context, userID int64, now time.Time) (*Code, error)
	Insert(ctx context.Context, userID int64, code string, expiresAt time.Time) (*Code, error)
	MarkUsed(ctx context.Context, id int64) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// GetLive returns the user's unused, unexpired code, if any. At most one
// exists at a time.
func (r *PGRepository) GetLive(ctx context.Context, userID int64, now time.Time) (*Code, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, user_id, code, expires_at, used
		FROM verification_codes
		WHERE user_id = $1 AND used = false AND expires_at > $2
		ORDER BY id DESC LIMIT 1`,
		userID, now)
	var c Code
	if err := row.Scan(&c.ID, &c.UserID, &c.Code, &c.ExpiresAt, &c.Used); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// Insert persists a freshly generated code.
func (r *PGRepository) Insert(ctx context.Context, userID int64, code string, expiresAt time.Time) (*Code, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO verification_codes (user_id, code, expires_at, used)
		VALUES ($1, $2, $3, false)
		RETURNING id, user_id, code, expires_at, used`,
		userID, code, expiresAt)
	var c Code
	if err := row.Scan(&c.ID, &c.UserID, &c.Code, &c.ExpiresAt, &c.Used); err != nil {
		return nil, err
	}
	return &c, nil
}

// MarkUsed consumes a code after successful verification.
func (r *PGRepository) MarkUsed(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE verification_codes SET used = true WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var _ Repository = (*PGRepository)(nil)
