package groupsync

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/helios-portal/helios-portal/internal/roblox"
)

func TestSchedulerRunsAfterStartupDelay(t *testing.T) {
	store := newMemoryUserStore(linkedUser(1, 101, 10, "Moderator"))
	api := &scriptedGroupAPI{roles: map[int64]*roblox.GroupRole{101: {Rank: 20, Name: "Senior"}}}
	svc := newSyncService(store, api)
	sched := NewScheduler(svc, 10*time.Millisecond, time.Hour, slog.Default())

	sched.Schedule(context.Background())
	defer sched.Cancel()

	require.Eventually(t, func() bool {
		return svc.Status().LastRun != nil
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, 20, *store.users[1].Rank)
}

func TestSchedulerCancelStopsLoop(t *testing.T) {
	store := newMemoryUserStore()
	api := &scriptedGroupAPI{}
	svc := newSyncService(store, api)
	sched := NewScheduler(svc, time.Hour, time.Hour, slog.Default())

	sched.Schedule(context.Background())
	sched.Cancel()

	// Cancel waits for the loop to exit; no run should have happened.
	require.Nil(t, svc.Status().LastRun)

	// A second Cancel is a no-op.
	sched.Cancel()
}

func TestSchedulerScheduleTwiceIsNoOp(t *testing.T) {
	svc := newSyncService(newMemoryUserStore(), &scriptedGroupAPI{})
	sched := NewScheduler(svc, time.Hour, time.Hour, slog.Default())

	sched.Schedule(context.Background())
	sched.Schedule(context.Background())
	sched.Cancel()
}
