package groupsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/helios-portal/helios-portal/internal/roblox"
	"github.com/helios-portal/helios-portal/internal/staff"
	_ "github.com/helios-portal/helios-portal/testing"
)

type memoryUserStore struct {
	mu    sync.Mutex
	users map[int64]*staff.User
	// writes counts UpdateGroupRank calls, to assert no-write behavior.
	writes int
}

func newMemoryUserStore(users ...*staff.User) *memoryUserStore {
	s := &memoryUserStore{users: make(map[int64]*staff.User)}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *memoryUserStore) ListLinked(ctx context.Context) ([]staff.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []staff.User
	for _, u := range s.users {
		if u.RobloxID != nil {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (s *memoryUserStore) UpdateGroupRank(ctx context.Context, userID int64, rank *int, rankName *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return errors.New("unknown user")
	}
	u.Rank = rank
	u.RankName = rankName
	s.writes++
	return nil
}

type scriptedGroupAPI struct {
	mu    sync.Mutex
	roles map[int64]*roblox.GroupRole
	errs  map[int64]error
	// block, when non-nil, is closed by the test to release in-flight calls.
	block chan struct{}
}

func (a *scriptedGroupAPI) GetGroupRole(ctx context.Context, userID, groupID int64) (*roblox.GroupRole, error) {
	if a.block != nil {
		<-a.block
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if err, ok := a.errs[userID]; ok {
		return nil, err
	}
	return a.roles[userID], nil
}

func linkedUser(id, robloxID int64, rank int, rankName string) *staff.User {
	return &staff.User{
		ID:       id,
		RobloxID: &robloxID,
		Rank:     &rank,
		RankName: &rankName,
		Status:   staff.StatusActive,
	}
}

func newSyncService(store *memoryUserStore, api *scriptedGroupAPI) *Service {
	return NewService(store, api, Config{GroupID: 42, BatchSize: 2}, slog.Default(), nil)
}

func TestRunOnceCorrectsDrift(t *testing.T) {
	store := newMemoryUserStore(linkedUser(1, 101, 10, "Moderator"))
	api := &scriptedGroupAPI{roles: map[int64]*roblox.GroupRole{101: {Rank: 50, Name: "Supervisor"}}}
	svc := newSyncService(store, api)

	result, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, result.TotalUsers)
	require.Equal(t, 1, result.UpdatedUsers)
	require.Zero(t, result.FailedUsers)

	u := store.users[1]
	require.Equal(t, 50, *u.Rank)
	require.Equal(t, "Supervisor", *u.RankName)
}

func TestRunOnceClearsRankOnMembershipLoss(t *testing.T) {
	store := newMemoryUserStore(linkedUser(1, 101, 10, "Moderator"))
	api := &scriptedGroupAPI{roles: map[int64]*roblox.GroupRole{}}
	svc := newSyncService(store, api)

	result, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, result.UpdatedUsers)
	require.Nil(t, store.users[1].Rank)
	require.Nil(t, store.users[1].RankName)
}

func TestRunOnceSkipsWriteWhenUnchanged(t *testing.T) {
	store := newMemoryUserStore(linkedUser(1, 101, 10, "Moderator"))
	api := &scriptedGroupAPI{roles: map[int64]*roblox.GroupRole{101: {Rank: 10, Name: "Moderator"}}}
	svc := newSyncService(store, api)

	result, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	require.Zero(t, result.UpdatedUsers)
	require.Zero(t, store.writes)
}

func TestRunOnceNoWriteForAlreadyClearedUser(t *testing.T) {
	user := linkedUser(1, 101, 0, "")
	user.Rank = nil
	user.RankName = nil
	store := newMemoryUserStore(user)
	api := &scriptedGroupAPI{roles: map[int64]*roblox.GroupRole{}}
	svc := newSyncService(store, api)

	result, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	require.Zero(t, result.UpdatedUsers)
	require.Zero(t, store.writes)
}

func TestRunOnceSingleFlight(t *testing.T) {
	store := newMemoryUserStore(linkedUser(1, 101, 10, "Moderator"))
	api := &scriptedGroupAPI{
		roles: map[int64]*roblox.GroupRole{101: {Rank: 10, Name: "Moderator"}},
		block: make(chan struct{}),
	}
	svc := newSyncService(store, api)

	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		close(started)
		_, err := svc.RunOnce(context.Background())
		done <- err
	}()
	<-started
	// Wait until the in-flight run holds the guard.
	require.Eventually(t, func() bool {
		return svc.Status().Running
	}, time.Second, 5*time.Millisecond)

	_, err := svc.RunOnce(context.Background())
	require.ErrorIs(t, err, ErrAlreadyRunning)

	close(api.block)
	require.NoError(t, <-done)

	// Guard released; a fresh run is allowed.
	_, err = svc.RunOnce(context.Background())
	require.NoError(t, err)
}

func TestRunOnceFailuresAreIsolatedAndCapped(t *testing.T) {
	var users []*staff.User
	errs := make(map[int64]error)
	for i := int64(1); i <= 15; i++ {
		users = append(users, linkedUser(i, 100+i, 10, "Moderator"))
		errs[100+i] = fmt.Errorf("api down for %d", 100+i)
	}
	// One healthy user among the failures still gets reconciled.
	healthy := linkedUser(99, 999, 10, "Moderator")
	users = append(users, healthy)
	store := newMemoryUserStore(users...)
	api := &scriptedGroupAPI{
		roles: map[int64]*roblox.GroupRole{999: {Rank: 20, Name: "Senior"}},
		errs:  errs,
	}
	svc := newSyncService(store, api)

	result, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 16, result.TotalUsers)
	require.Equal(t, 15, result.FailedUsers)
	require.Equal(t, 1, result.UpdatedUsers)
	require.Len(t, result.Errors, maxReportedErrors)
	require.Equal(t, 20, *store.users[99].Rank)
}

func TestStatusTracksLastRun(t *testing.T) {
	store := newMemoryUserStore(linkedUser(1, 101, 10, "Moderator"))
	api := &scriptedGroupAPI{roles: map[int64]*roblox.GroupRole{101: {Rank: 10, Name: "Moderator"}}}
	svc := newSyncService(store, api)

	require.False(t, svc.Status().Running)
	require.Nil(t, svc.Status().LastRun)

	result, err := svc.RunOnce(context.Background())
	require.NoError(t, err)

	status := svc.Status()
	require.False(t, status.Running)
	require.NotNil(t, status.LastRun)
	require.Equal(t, result, status.LastResult)
	require.False(t, status.LastResult.CompletedAt.Before(status.LastResult.StartedAt))
}
