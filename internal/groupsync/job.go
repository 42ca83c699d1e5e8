package groupsync

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"
)

// Job processes queue-driven sync tasks, the out-of-process counterpart
// of the administrative trigger endpoint.
type Job struct {
	service *Service
	logger  *slog.Logger
}

// NewJob constructs a job handler.
func NewJob(service *Service, logger *slog.Logger) *Job {
	return &Job{service: service, logger: logger}
}

// Handle fulfils the asynq.HandlerFunc contract.
func (j *Job) Handle(ctx context.Context, task *asynq.Task) error {
	result, err := j.service.RunOnce(ctx)
	if err != nil {
		if errors.Is(err, ErrAlreadyRunning) {
			// Single-flight: the work is being done elsewhere.
			return nil
		}
		if j.logger != nil {
			j.logger.Error("group rank sync task", slog.Any("error", err))
		}
		return err
	}
	if j.logger != nil {
		j.logger.Info("group rank sync task completed",
			slog.Int("total", result.TotalUsers),
			slog.Int("updated", result.UpdatedUsers),
			slog.Int("failed", result.FailedUsers),
		)
	}
	return nil
}
