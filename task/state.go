package task

import "time"

// RunStatus is the Runner's live status for a workflow (§3).
type RunStatus string

// Recognized run statuses.
const (
	RunRunning   RunStatus = "running"
	RunPaused    RunStatus = "paused"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunPartial   RunStatus = "partial"
	RunCancelled RunStatus = "cancelled"
)

// Checkpoint is the opaque-to-transport snapshot the Runner persists
// after each stage when checkpointing is enabled (§4.8.4, §6.9). The
// store treats the whole value as a blob; "latest wins" per workflow.
type Checkpoint struct {
	WorkflowID     int64
	CompletedTasks []int
	FailedTasks    []int
	Context        CheckpointContext
	Timestamp      time.Time
}

// CheckpointContext is the serializable subset of ExecutionContext
// captured in a Checkpoint.
type CheckpointContext struct {
	Variables       map[string]any
	PreviousResults []TaskResult
	Budget          Budget
}

// CheckpointStore is the durable checkpoint sink the core consumes
// (§6.9). Any store satisfying "latest wins per workflow" suffices;
// package checkpoint provides in-memory and Redis-backed implementations.
type CheckpointStore interface {
	Save(workflowID string, cp Checkpoint) error
	List(workflowID string) ([]Checkpoint, error)
}

// Progress is one progress event emitted by the Runner (§4.8.5, §6.8).
type Progress struct {
	StageIndex      int
	StageTotal      int
	TasksCompleted  int
	TasksFailed     int
	TasksTotal      int
	PercentComplete float64
	ETA             time.Duration
}

// WorkflowResult is the aggregate outcome a Runner run returns. The
// Runner never throws from its run entry point; failures surface here
// (§7).
type WorkflowResult struct {
	Status         RunStatus
	CompletedTasks []TaskResult
	FailedTasks    []TaskResult
	TotalCost      float64
	TotalTokens    int
	Duration       time.Duration
}
