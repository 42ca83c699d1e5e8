package groupsync

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Scheduler owns the recurring reconciliation run: an initial run after a
// short startup delay, then a fixed-interval loop until Cancel.
type Scheduler struct {
	service      *Service
	startupDelay time.Duration
	interval     time.Duration
	logger       *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler constructs a Scheduler.
func NewScheduler(service *Service, startupDelay, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		service:      service,
		startupDelay: startupDelay,
		interval:     interval,
		logger:       logger,
	}
}

// Schedule starts the supervisor goroutine. Calling it twice is a no-op
// until Cancel is called.
func (s *Scheduler) Schedule(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(ctx, s.done)
}

// Cancel stops future recurring runs and waits for the supervisor to
// exit. A run already in flight finishes on its own.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	// Let the host process finish booting before the first run.
	select {
	case <-ctx.Done():
		return
	case <-time.After(s.startupDelay):
	}
	s.run(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.run(ctx)
		}
	}
}

func (s *Scheduler) run(ctx context.Context) {
	if _, err := s.service.RunOnce(ctx); err != nil {
		if errors.Is(err, ErrAlreadyRunning) {
			s.logger.Info("scheduled sync skipped, run already in progress")
			return
		}
		s.logger.Error("scheduled sync failed", slog.Any("error", err))
	}
}
