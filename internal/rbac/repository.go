package rbac

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines persistence operations for permission rows.
type Repository interface {
	ListForUser(ctx context.Context, userID int64) ([]Override, error)
	InsertDefault(ctx context.Context, userID int64, capability Capability) error
	UpsertOverride(ctx context.Context, userID int64, capability Capability, granted bool) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// ListForUser returns every stored permission row for a user.
func (r *PGRepository) ListForUser(ctx context.Context, userID int64) ([]Override, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT user_id, capability, granted, overridden FROM permissions WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var overrides []Override
	for rows.Next() {
		var o Override
		if err := rows.Scan(&o.UserID, &o.Capability, &o.Granted, &o.Overridden); err != nil {
			return nil, err
		}
		overrides = append(overrides, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return overrides, nil
}

// InsertDefault seeds a granted row only if no row exists for the pair,
// so prior admin overrides survive re-initialization.
func (r *PGRepository) InsertDefault(ctx context.Context, userID int64, capability Capability) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO permissions (user_id, capability, granted, overridden)
		VALUES ($1, $2, true, false)
		ON CONFLICT (user_id, capability) DO NOTHING`,
		userID, capability)
	return err
}

// UpsertOverride records an explicit admin decision.
func (r *PGRepository) UpsertOverride(ctx context.Context, userID int64, capability Capability, granted bool) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO permissions (user_id, capability, granted, overridden)
		VALUES ($1, $2, $3, true)
		ON CONFLICT (user_id, capability)
		DO UPDATE SET granted = EXCLUDED.granted, overridden = true`,
		userID, capability, granted)
	return err
}

var _ Repository = (*PGRepository)(nil)
