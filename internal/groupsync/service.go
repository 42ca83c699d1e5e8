package groupsync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/helios-portal/helios-portal/internal/roblox"
	"github.com/helios-portal/helios-portal/internal/staff"
)

// UserStore is the slice of staff persistence the synchronizer needs. The
// job reads Roblox and writes the local user row only; sessions and
// permissions re-resolve naturally on the next request.
type UserStore interface {
	ListLinked(ctx context.Context) ([]staff.User, error)
	UpdateGroupRank(ctx context.Context, userID int64, rank *int, rankName *string) error
}

// GroupAPI is the identity-B read surface the synchronizer consumes.
type GroupAPI interface {
	GetGroupRole(ctx context.Context, userID, groupID int64) (*roblox.GroupRole, error)
}

// Config tunes the batch shape. BatchSize bounds peak concurrency;
// CallDelay after each unit of work bounds the aggregate request rate.
type Config struct {
	GroupID   int64
	BatchSize int
	CallDelay time.Duration
}

// Observer is notified after each completed run, for metrics.
type Observer interface {
	ObserveSyncRun(result *Result)
}

// Service reconciles local rank/rank-name drift against the Roblox group.
type Service struct {
	users  UserStore
	api    GroupAPI
	cfg    Config
	logger *slog.Logger
	obs    Observer

	// running is the single-flight guard: compare-and-swap keeps at most
	// one run in flight without relying on single-threaded execution.
	running atomic.Bool

	mu         sync.Mutex
	lastRun    *time.Time
	lastResult *Result
}

// NewService constructs a Service.
func NewService(users UserStore, api GroupAPI, cfg Config, logger *slog.Logger, obs Observer) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5
	}
	return &Service{users: users, api: api, cfg: cfg, logger: logger, obs: obs}
}

// RunOnce polls the group for every linked account and corrects drift.
// It refuses to start while another run is in progress.
func (s *Service) RunOnce(ctx context.Context) (*Result, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRunning
	}
	defer s.running.Store(false)

	startedAt := time.Now().UTC()
	result := &Result{StartedAt: startedAt}

	users, err := s.users.ListLinked(ctx)
	if err != nil {
		s.finish(result)
		return nil, err
	}
	result.TotalUsers = len(users)

	var mu sync.Mutex
	recordError := func(userID int64, err error) {
		mu.Lock()
		defer mu.Unlock()
		result.FailedUsers++
		if len(result.Errors) < maxReportedErrors {
			result.Errors = append(result.Errors, fmt.Sprintf("user %d: %v", userID, err))
		}
	}
	recordUpdated := func() {
		mu.Lock()
		defer mu.Unlock()
		result.UpdatedUsers++
	}

	// Fixed-size groups processed sequentially; members of a group are
	// checked concurrently. A failed member never aborts the batch.
	for start := 0; start < len(users); start += s.cfg.BatchSize {
		end := start + s.cfg.BatchSize
		if end > len(users) {
			end = len(users)
		}
		var g errgroup.Group
		for _, user := range users[start:end] {
			user := user
			g.Go(func() error {
				updated, err := s.reconcile(ctx, &user)
				if err != nil {
					recordError(user.ID, err)
				} else if updated {
					recordUpdated()
				}
				s.pause(ctx)
				return nil
			})
		}
		_ = g.Wait()
		if ctx.Err() != nil {
			break
		}
	}

	s.finish(result)
	s.logger.Info("group rank sync completed",
		slog.Int("total", result.TotalUsers),
		slog.Int("updated", result.UpdatedUsers),
		slog.Int("failed", result.FailedUsers),
		slog.Int64("duration_ms", result.DurationMs),
	)
	if s.obs != nil {
		s.obs.ObserveSyncRun(result)
	}
	return result, nil
}

// reconcile checks one user and reports whether a write occurred.
func (s *Service) reconcile(ctx context.Context, user *staff.User) (bool, error) {
	role, err := s.api.GetGroupRole(ctx, *user.RobloxID, s.cfg.GroupID)
	if err != nil {
		return false, err
	}
	if role == nil {
		// Left the group: clear local authority, but only when there is
		// authority to clear.
		if user.Rank == nil {
			return false, nil
		}
		if err := s.users.UpdateGroupRank(ctx, user.ID, nil, nil); err != nil {
			return false, err
		}
		return true, nil
	}
	if user.Rank != nil && *user.Rank == role.Rank && user.RankName != nil && *user.RankName == role.Name {
		// Unchanged: skip the write to avoid updated_at churn.
		return false, nil
	}
	if err := s.users.UpdateGroupRank(ctx, user.ID, &role.Rank, &role.Name); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) pause(ctx context.Context) {
	if s.cfg.CallDelay <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(s.cfg.CallDelay):
	}
}

func (s *Service) finish(result *Result) {
	result.CompletedAt = time.Now().UTC()
	result.DurationMs = result.CompletedAt.Sub(result.StartedAt).Milliseconds()
	s.mu.Lock()
	defer s.mu.Unlock()
	completed := result.CompletedAt
	s.lastRun = &completed
	s.lastResult = result
}

// Status returns an observable snapshot of the job state.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Running:    s.running.Load(),
		LastRun:    s.lastRun,
		LastResult: s.lastResult,
	}
}
