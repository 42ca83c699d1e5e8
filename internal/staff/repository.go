package staff

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/helios-portal/helios-portal/internal/shared"
)

// Repository provides PostgreSQL backed persistence for staff accounts.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, discord_id, discord_name, roblox_id, roblox_name, rank, rank_name, status, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.DiscordID, &u.DiscordName, &u.RobloxID, &u.RobloxName, &u.Rank, &u.RankName, &u.Status, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// GetByID fetches a user by internal id.
func (r *Repository) GetByID(ctx context.Context, id int64) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetByDiscordID fetches a user by Discord id.
func (r *Repository) GetByDiscordID(ctx context.Context, discordID string) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE discord_id = $1`, discordID)
	return scanUser(row)
}

// EnsureFromDiscord creates the account on first Discord login or refreshes
// the stored display name on subsequent ones.
func (r *Repository) EnsureFromDiscord(ctx context.Context, discordID, discordName string) (*User, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (discord_id, discord_name, status, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
		ON CONFLICT (discord_id)
		DO UPDATE SET discord_name = EXCLUDED.discord_name, updated_at = now()
		RETURNING `+userColumns,
		discordID, discordName, StatusPendingVerification)
	return scanUser(row)
}

// List returns all users ordered by id.
func (r *Repository) List(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectUsers(rows)
}

// ListLinked returns every user with a Roblox identity attached, the
// population the rank synchronizer reconciles.
func (r *Repository) ListLinked(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users WHERE roblox_id IS NOT NULL ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectUsers(rows)
}

// MarkVerified records a successful verification: attaches the Roblox
// identity, assigns the initial rank and activates the account.
func (r *Repository) MarkVerified(ctx context.Context, userID, robloxID int64, robloxName string, rank int, rankName string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users
		SET roblox_id = $2, roblox_name = $3, rank = $4, rank_name = $5, status = $6, updated_at = now()
		WHERE id = $1`,
		userID, robloxID, robloxName, rank, rankName, StatusActive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// UpdateGroupRank overwrites rank and rank name. Passing nils clears the
// authority after the user left the group.
func (r *Repository) UpdateGroupRank(ctx context.Context, userID int64, rank *int, rankName *string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users SET rank = $2, rank_name = $3, updated_at = now() WHERE id = $1`,
		userID, rank, rankName)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func collectUsers(rows pgx.Rows) ([]User, error) {
	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.DiscordID, &u.DiscordName, &u.RobloxID, &u.RobloxName, &u.Rank, &u.RankName, &u.Status, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}
