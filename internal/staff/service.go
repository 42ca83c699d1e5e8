package staff

import "context"

// Store defines persistence operations for staff accounts.
type Store interface {
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByDiscordID(ctx context.Context, discordID string) (*User, error)
	EnsureFromDiscord(ctx context.Context, discordID, discordName string) (*User, error)
	List(ctx context.Context) ([]User, error)
}

// Service wraps staff account business rules.
type Service struct {
	store Store
}

// NewService constructs a new Service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// EnsureFromDiscord creates or refreshes the account for a Discord login.
func (s *Service) EnsureFromDiscord(ctx context.Context, discordID, discordName string) (*User, error) {
	return s.store.EnsureFromDiscord(ctx, discordID, discordName)
}

// Get fetches a user by id.
func (s *Service) Get(ctx context.Context, id int64) (*User, error) {
	return s.store.GetByID(ctx, id)
}

// List returns all staff accounts.
func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.store.List(ctx)
}

var _ Store = (*Repository)(nil)
