// Package runner implements the Workflow Runner (C8): it drives an
// ExecutionPlan stage by stage through a pluggable engine.Engine,
// maintaining the live ExecutionContext, emitting Progress events,
// checkpointing, and honoring pause/resume/cancel (§4.8, §5).
package runner

import (
	"context"
	"sync"
	"time"

	"github.com/flowcraft/execore/aiservice"
	"github.com/flowcraft/execore/engine"
	"github.com/flowcraft/execore/executor"
	"github.com/flowcraft/execore/task"
)

var _ TaskRunner = (*executor.Executor)(nil)

// DefaultParallelism is the stage concurrency bound when Options.Parallelism
// is unset (§5).
const DefaultParallelism = 3

// pausePollInterval bounds how long a paused Run blocks before rechecking
// the cancel signal.
const pausePollInterval = 200 * time.Millisecond

// Options configures one Run call (§4.8 Input).
type Options struct {
	Parallelism     int
	Checkpoints     bool
	ExecutorOptions executor.Options
	OnProgress      func(task.Progress)
	OnLog           func(level, message string, details map[string]any)
}

// TaskRunner runs a single task to a TaskResult; executor.Executor
// satisfies this. A narrower interface than the concrete Executor keeps
// Runner testable without wiring a full aiservice.Manager.
type TaskRunner interface {
	Run(ctx context.Context, t task.Task, ec *task.ExecutionContext, opts executor.Options) task.TaskResult
}

// Runner drives a plan to completion (C8).
type Runner struct {
	exec        TaskRunner
	engine      engine.Engine
	checkpoints task.CheckpointStore
	ai          *aiservice.Manager
	control     engine.Control

	mu       sync.Mutex
	inFlight map[int]struct{}
}

// New constructs a Runner. checkpoints and ai may be nil — checkpointing
// is then skipped regardless of Options.Checkpoints, and Cancel has
// nothing to abort beyond the engine-level signal.
func New(exec TaskRunner, eng engine.Engine, control engine.Control, checkpoints task.CheckpointStore, ai *aiservice.Manager) *Runner {
	return &Runner{exec: exec, engine: eng, control: control, checkpoints: checkpoints, ai: ai, inFlight: make(map[int]struct{})}
}

// Pause flips the control-plane pause flag; the Runner finishes its
// current stage, then blocks before starting the next one.
func (r *Runner) Pause() {
	if r.control != nil {
		r.control.Pause()
	}
}

// Resume clears the pause flag.
func (r *Runner) Resume() {
	if r.control != nil {
		r.control.Resume()
	}
}

// Cancel requests abort; in-flight AI executions are aborted via the AI
// Service Manager's cancellation registry (§4.8, §5).
func (r *Runner) Cancel() {
	if r.control != nil {
		r.control.Cancel()
	}
	if r.ai == nil {
		return
	}
	r.mu.Lock()
	ids := make([]int, 0, len(r.inFlight))
	for id := range r.inFlight {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	for _, id := range ids {
		r.ai.CancelExecution(id)
	}
}

// Run drives plan to a terminal WorkflowResult (§4.8 algorithm). It
// never returns a Go error for recoverable failures — the outcome is
// carried entirely in WorkflowResult.Status.
func (r *Runner) Run(ctx context.Context, workflowID string, plan task.ExecutionPlan, ec *task.ExecutionContext, opts Options) task.WorkflowResult {
	start := time.Now()
	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = DefaultParallelism
	}
	totalTasks := plan.TotalTasks()

	var completed, failed []task.TaskResult
	status := task.RunRunning

stages:
	for stageIdx, stage := range plan.Stages {
		if r.cancelled() {
			status = task.RunCancelled
			break
		}
		for r.paused() {
			select {
			case <-ctx.Done():
				status = task.RunCancelled
				break stages
			case <-time.After(pausePollInterval):
			}
			if r.cancelled() {
				status = task.RunCancelled
				break stages
			}
		}
		if r.cancelled() {
			status = task.RunCancelled
			break
		}

		r.trackInFlight(stage.Tasks)
		results := r.engine.RunStage(ctx, stage, parallelism, r.taskExecFunc(ec, opts))
		r.clearInFlight()

		for _, res := range results {
			switch res.Status {
			case task.ResultSuccess:
				ec.AppendResult(res)
				completed = append(completed, res)
			case task.ResultFailure:
				failed = append(failed, res)
			}
		}

		if opts.Checkpoints && r.checkpoints != nil {
			r.saveCheckpoint(workflowID, ec, completed, failed)
			r.log(opts, "debug", "checkpoint saved", map[string]any{"workflowId": workflowID, "stage": stageIdx})
		}

		if opts.OnProgress != nil {
			opts.OnProgress(computeProgress(stageIdx, len(plan.Stages), len(completed), len(failed), totalTasks, start))
		}
	}

	if status == task.RunRunning {
		status = terminalStatus(completed, failed)
	}
	if status == task.RunCancelled {
		r.abortInFlight()
	}

	budget := ec.Budget()
	return task.WorkflowResult{
		Status:         status,
		CompletedTasks: completed,
		FailedTasks:    failed,
		TotalCost:      budget.CurrentCost,
		TotalTokens:    budget.CurrentTokens,
		Duration:       time.Since(start),
	}
}

// taskExecFunc adapts executor.Executor.Run to engine.TaskExecFunc.
func (r *Runner) taskExecFunc(ec *task.ExecutionContext, opts Options) engine.TaskExecFunc {
	return func(ctx context.Context, t task.Task) task.TaskResult {
		return r.exec.Run(ctx, t, ec, opts.ExecutorOptions)
	}
}

func (r *Runner) log(opts Options, level, message string, details map[string]any) {
	if opts.OnLog != nil {
		opts.OnLog(level, message, details)
	}
}

func (r *Runner) paused() bool {
	return r.control != nil && r.control.Paused()
}

func (r *Runner) cancelled() bool {
	return r.control != nil && r.control.Cancelled()
}

func (r *Runner) trackInFlight(tasks []task.Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range tasks {
		r.inFlight[t.ID] = struct{}{}
	}
}

func (r *Runner) clearInFlight() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inFlight = make(map[int]struct{})
}

func (r *Runner) abortInFlight() {
	if r.ai == nil {
		return
	}
	r.mu.Lock()
	ids := make([]int, 0, len(r.inFlight))
	for id := range r.inFlight {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	for _, id := range ids {
		r.ai.CancelExecution(id)
	}
}

func (r *Runner) saveCheckpoint(workflowID string, ec *task.ExecutionContext, completed, failed []task.TaskResult) {
	cp := task.Checkpoint{
		CompletedTasks: idsOf(completed),
		FailedTasks:    idsOf(failed),
		Context: task.CheckpointContext{
			Variables:       ec.Variables(),
			PreviousResults: ec.PreviousResults(),
			Budget:          ec.Budget(),
		},
		Timestamp: time.Now(),
	}
	_ = r.checkpoints.Save(workflowID, cp)
}

func idsOf(results []task.TaskResult) []int {
	ids := make([]int, len(results))
	for i, res := range results {
		ids[i] = res.ProjectSequence
	}
	return ids
}

// terminalStatus derives the Runner's terminal status per §4.8: failed
// if every attempted task failed and none succeeded, partial if any
// failed alongside a success, completed otherwise.
func terminalStatus(completed, failed []task.TaskResult) task.RunStatus {
	switch {
	case len(failed) > 0 && len(completed) == 0:
		return task.RunFailed
	case len(failed) > 0:
		return task.RunPartial
	default:
		return task.RunCompleted
	}
}

// computeProgress builds one Progress event with a linear-extrapolation
// ETA from elapsed wall time (§4.8 step 5).
func computeProgress(stageIdx, stageTotal, completed, failed, totalTasks int, start time.Time) task.Progress {
	done := completed + failed
	var pct float64
	if totalTasks > 0 {
		pct = float64(done) / float64(totalTasks) * 100
	}
	elapsed := time.Since(start)
	var eta time.Duration
	if done > 0 && totalTasks > done {
		perTask := elapsed / time.Duration(done)
		eta = perTask * time.Duration(totalTasks-done)
	}
	return task.Progress{
		StageIndex:      stageIdx,
		StageTotal:      stageTotal,
		TasksCompleted:  completed,
		TasksFailed:     failed,
		TasksTotal:      totalTasks,
		PercentComplete: pct,
		ETA:             eta,
	}
}
