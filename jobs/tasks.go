package jobs

import (
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeGroupRankSync is the task type for the group rank
	// reconciliation run.
	TaskTypeGroupRankSync = "sync:group_ranks"
)

// NewGroupRankSyncTask constructs an Asynq task. The run takes no
// parameters; the payload stays empty.
func NewGroupRankSyncTask() *asynq.Task {
	return asynq.NewTask(TaskTypeGroupRankSync, nil)
}
