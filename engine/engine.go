// Package engine defines the pluggable durable-execution backend the
// Workflow Runner (C8) drives stages through (§4.8 [FULL]). engine/inmem
// executes a stage as plain goroutines for tests and single-process
// deployments; engine/temporal maps the same contract onto
// go.temporal.io/sdk workflows/activities so a process can die and
// resume mid-workflow. The interface shape (a narrow execution port plus
// a signal-based control channel) is scaled down from the teacher's
// Engine/WorkflowContext abstraction to the one thing the Runner
// actually needs: run a stage's tasks with bounded concurrency and react
// to pause/resume/cancel.
package engine

import (
	"context"

	"github.com/flowcraft/execore/task"
)

// TaskExecFunc runs a single task to a TaskResult; the Runner supplies a
// closure that calls into executor.Executor.Run.
type TaskExecFunc func(ctx context.Context, t task.Task) task.TaskResult

// Engine executes one stage's tasks, honoring the stage's parallelism
// flag and the caller's concurrency bound (§4.8, §5).
type Engine interface {
	// RunStage executes every task in stage.Tasks via exec. When
	// stage.CanRunInParallel is false, tasks run serially in order;
	// otherwise up to parallelism tasks run concurrently (§4.7, §5).
	// Results are returned in the same order as stage.Tasks.
	RunStage(ctx context.Context, stage task.Stage, parallelism int, exec TaskExecFunc) []task.TaskResult
}

// Signal is one control-plane event delivered to a running workflow
// (§4.8 pause/resume/cancel).
type Signal string

// Recognized control signals.
const (
	SignalPause  Signal = "pause"
	SignalResume Signal = "resume"
	SignalCancel Signal = "cancel"
)

// Control is the engine-agnostic pause/resume/cancel port the Runner
// drives; engine/inmem backs it with mutex-guarded flags, engine/temporal backs it
// with real Temporal signals so the control plane survives a process
// restart.
type Control interface {
	Pause()
	Resume()
	Cancel()
	// Paused reports whether the workflow is currently paused; the Runner
	// does not start the next stage while it is true.
	Paused() bool
	// Cancelled reports whether Cancel was called.
	Cancelled() bool
}
