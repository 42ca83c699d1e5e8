package rbac

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/helios-portal/helios-portal/internal/shared"
	"github.com/helios-portal/helios-portal/internal/staff"
)

type memoryPermRepo struct {
	rows map[string]Override
}

func newMemoryPermRepo() *memoryPermRepo {
	return &memoryPermRepo{rows: make(map[string]Override)}
}

func permKey(userID int64, c Capability) string {
	return fmt.Sprintf("%d:%s", userID, c)
}

func (r *memoryPermRepo) ListForUser(ctx context.Context, userID int64) ([]Override, error) {
	var out []Override
	for _, row := range r.rows {
		if row.UserID == userID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *memoryPermRepo) InsertDefault(ctx context.Context, userID int64, capability Capability) error {
	key := permKey(userID, capability)
	if _, ok := r.rows[key]; ok {
		return nil
	}
	r.rows[key] = Override{UserID: userID, Capability: capability, Granted: true, Overridden: false}
	return nil
}

func (r *memoryPermRepo) UpsertOverride(ctx context.Context, userID int64, capability Capability, granted bool) error {
	r.rows[permKey(userID, capability)] = Override{UserID: userID, Capability: capability, Granted: granted, Overridden: true}
	return nil
}

type staticUserStore struct {
	users map[int64]*staff.User
}

func (s *staticUserStore) GetByID(ctx context.Context, id int64) (*staff.User, error) {
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, shared.ErrNotFound
}

func newTestService(users ...*staff.User) (*Service, *memoryPermRepo) {
	store := &staticUserStore{users: make(map[int64]*staff.User)}
	for _, u := range users {
		store.users[u.ID] = u
	}
	repo := newMemoryPermRepo()
	svc := NewService(repo, store, Config{AdminRankMin: 250, ImmuneRankMin: 254})
	return svc, repo
}

func rankedUser(id int64, rank int, status staff.Status) *staff.User {
	return &staff.User{ID: id, DiscordID: fmt.Sprintf("d-%d", id), Rank: &rank, Status: status}
}

func TestResolveStaffDefaults(t *testing.T) {
	svc, _ := newTestService(rankedUser(1, 10, staff.StatusActive))

	set, err := svc.Resolve(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, set.Has(CapViewDashboard))
	require.True(t, set.Has(CapManageTickets))
	require.False(t, set.Has(CapManageStaff))
	require.False(t, set.Has(CapTriggerSync))
}

func TestResolveAdminDefaultsSupersetOfStaff(t *testing.T) {
	svc, _ := newTestService(rankedUser(2, 250, staff.StatusActive))

	set, err := svc.Resolve(context.Background(), 2)
	require.NoError(t, err)
	for _, c := range AllCapabilities {
		require.True(t, set.Has(c), "admin should hold %s", c)
	}
}

func TestResolveUnrankedUserHasNothing(t *testing.T) {
	user := &staff.User{ID: 3, DiscordID: "d-3", Status: staff.StatusActive}
	svc, _ := newTestService(user)

	set, err := svc.Resolve(context.Background(), 3)
	require.NoError(t, err)
	require.Empty(t, set)
}

func TestResolveInactiveUserHasNothing(t *testing.T) {
	svc, _ := newTestService(rankedUser(4, 100, staff.StatusInactive))

	set, err := svc.Resolve(context.Background(), 4)
	require.NoError(t, err)
	require.Empty(t, set)
}

func TestResolveImmuneRankBypassesStatusCheck(t *testing.T) {
	svc, _ := newTestService(rankedUser(5, 255, staff.StatusInactive))

	set, err := svc.Resolve(context.Background(), 5)
	require.NoError(t, err)
	require.True(t, set.Has(CapManagePermissions))
	require.True(t, set.Has(CapTriggerSync))
}

func TestOverridesAreAuthoritative(t *testing.T) {
	svc, _ := newTestService(rankedUser(6, 10, staff.StatusActive))
	ctx := context.Background()

	// Revoke a default, grant something the tier lacks.
	require.NoError(t, svc.SetOverride(ctx, 6, CapManageTickets, false))
	require.NoError(t, svc.SetOverride(ctx, 6, CapManageStaff, true))

	set, err := svc.Resolve(ctx, 6)
	require.NoError(t, err)
	require.False(t, set.Has(CapManageTickets))
	require.True(t, set.Has(CapManageStaff))
	require.True(t, set.Has(CapViewDashboard))
}

func TestInitializeDefaultsPreservesOverrides(t *testing.T) {
	svc, repo := newTestService(rankedUser(7, 10, staff.StatusActive))
	ctx := context.Background()

	require.NoError(t, svc.SetOverride(ctx, 7, CapManageTickets, false))
	require.NoError(t, svc.InitializeDefaults(ctx, 7, 10))
	require.NoError(t, svc.InitializeDefaults(ctx, 7, 10))

	set, err := svc.Resolve(ctx, 7)
	require.NoError(t, err)
	require.False(t, set.Has(CapManageTickets), "seeding must not clobber an admin revocation")

	row := repo.rows[permKey(7, CapManageTickets)]
	require.True(t, row.Overridden)
	require.False(t, row.Granted)
}

func TestHasCapability(t *testing.T) {
	svc, _ := newTestService(rankedUser(8, 10, staff.StatusActive))
	ctx := context.Background()

	ok, err := svc.HasCapability(ctx, 8, CapViewTickets)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = svc.HasCapability(ctx, 8, CapManagePermissions)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestParseCapability(t *testing.T) {
	c, err := ParseCapability("manage_staff")
	require.NoError(t, err)
	require.Equal(t, CapManageStaff, c)

	_, err = ParseCapability("launch_missiles")
	require.Error(t, err)
}
