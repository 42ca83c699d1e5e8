package rbac

import (
	"context"

	"github.com/helios-portal/helios-portal/internal/staff"
)

// UserStore is the slice of staff persistence the resolver needs.
type UserStore interface {
	GetByID(ctx context.Context, id int64) (*staff.User, error)
}

// Config carries the rank band boundaries. Both are configuration, not
// constants: the admin tier threshold and the immune band reserved for
// owners, which is exempt from the active-status check.
type Config struct {
	AdminRankMin  int
	ImmuneRankMin int
}

// Service computes the authoritative capability set for a user at the
// moment of a check. Results are never cached across requests because
// overrides can change between them.
type Service struct {
	repo  Repository
	users UserStore
	cfg   Config
}

// NewService constructs a Service.
func NewService(repo Repository, users UserStore, cfg Config) *Service {
	return &Service{repo: repo, users: users, cfg: cfg}
}

// Resolve derives the effective capability set: tier defaults keyed by
// rank, then stored overrides applied on top. Overrides are authoritative
// and commutative; each capability appears at most once per user.
func (s *Service) Resolve(ctx context.Context, userID int64) (Set, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	set := make(Set)
	immune := user.Rank != nil && *user.Rank >= s.cfg.ImmuneRankMin
	if !user.IsActive() && !immune {
		return set, nil
	}
	if user.Rank == nil {
		return set, nil
	}
	for _, c := range DefaultsForRank(*user.Rank, s.cfg.AdminRankMin) {
		set.Add(c)
	}
	overrides, err := s.repo.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, o := range overrides {
		if o.Granted {
			set.Add(o.Capability)
		} else {
			set.Remove(o.Capability)
		}
	}
	return set, nil
}

// HasCapability reports whether the resolved set contains the capability.
func (s *Service) HasCapability(ctx context.Context, userID int64, capability Capability) (bool, error) {
	set, err := s.Resolve(ctx, userID)
	if err != nil {
		return false, err
	}
	return set.Has(capability), nil
}

// InitializeDefaults seeds the tier default rows for a freshly assigned
// rank. Idempotent: existing rows, including admin overrides, are never
// touched.
func (s *Service) InitializeDefaults(ctx context.Context, userID int64, rank int) error {
	for _, c := range DefaultsForRank(rank, s.cfg.AdminRankMin) {
		if err := s.repo.InsertDefault(ctx, userID, c); err != nil {
			return err
		}
	}
	return nil
}

// SetOverride records an explicit admin grant or revocation.
func (s *Service) SetOverride(ctx context.Context, userID int64, capability Capability, granted bool) error {
	return s.repo.UpsertOverride(ctx, userID, capability, granted)
}

// ListForUser exposes the stored rows for the admin permissions screen.
func (s *Service) ListForUser(ctx context.Context, userID int64) ([]Override, error) {
	return s.repo.ListForUser(ctx, userID)
}
