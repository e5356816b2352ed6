package runner

import (
	"context"
	"testing"
	"time"

	"github.com/flowcraft/execore/checkpoint/inmem"
	"github.com/flowcraft/execore/engine"
	engineinmem "github.com/flowcraft/execore/engine/inmem"
	"github.com/flowcraft/execore/executor"
	"github.com/flowcraft/execore/task"
)

// fakeExec runs every task successfully and records the order tasks ran in.
type fakeExec struct {
	fail map[int]bool
	ran  []int
}

func (f *fakeExec) Run(ctx context.Context, t task.Task, ec *task.ExecutionContext, opts executor.Options) task.TaskResult {
	f.ran = append(f.ran, t.ID)
	if f.fail[t.ID] {
		return task.TaskResult{TaskID: t.ID, ProjectSequence: t.ProjectSequence, Status: task.ResultFailure, Error: task.NewExecutionError(task.ErrKindProvider, "boom")}
	}
	return task.TaskResult{TaskID: t.ID, ProjectSequence: t.ProjectSequence, Status: task.ResultSuccess, Cost: 1, Tokens: 10}
}

func mkPlan(seqs ...int) task.ExecutionPlan {
	var tasks []task.Task
	for _, s := range seqs {
		tasks = append(tasks, task.Task{ID: s, ProjectSequence: s})
	}
	return task.ExecutionPlan{Stages: []task.Stage{{Tasks: tasks, CanRunInParallel: true}}}
}

func TestRunCompletesLinearChain(t *testing.T) {
	exec := &fakeExec{fail: map[int]bool{}}
	r := New(exec, engineinmem.New(), nil, nil, nil)
	ec := task.NewExecutionContext("wf-1", "user-1", 1, task.Budget{})

	plan := task.ExecutionPlan{Stages: []task.Stage{
		{Tasks: []task.Task{{ID: 1, ProjectSequence: 1}}},
		{Tasks: []task.Task{{ID: 2, ProjectSequence: 2}}},
	}}

	result := r.Run(context.Background(), "wf-1", plan, ec, Options{})
	if result.Status != task.RunCompleted {
		t.Fatalf("expected completed, got %s", result.Status)
	}
	if len(result.CompletedTasks) != 2 {
		t.Fatalf("expected 2 completed tasks, got %d", len(result.CompletedTasks))
	}
}

func TestRunPartialOnMixedResults(t *testing.T) {
	exec := &fakeExec{fail: map[int]bool{2: true}}
	r := New(exec, engineinmem.New(), nil, nil, nil)
	ec := task.NewExecutionContext("wf-2", "user-1", 1, task.Budget{})

	result := r.Run(context.Background(), "wf-2", mkPlan(1, 2), ec, Options{})
	if result.Status != task.RunPartial {
		t.Fatalf("expected partial, got %s", result.Status)
	}
	if len(result.CompletedTasks) != 1 || len(result.FailedTasks) != 1 {
		t.Fatalf("expected 1 completed and 1 failed, got %d/%d", len(result.CompletedTasks), len(result.FailedTasks))
	}
}

func TestRunFailedWhenAllTasksFail(t *testing.T) {
	exec := &fakeExec{fail: map[int]bool{1: true, 2: true}}
	r := New(exec, engineinmem.New(), nil, nil, nil)
	ec := task.NewExecutionContext("wf-3", "user-1", 1, task.Budget{})

	result := r.Run(context.Background(), "wf-3", mkPlan(1, 2), ec, Options{})
	if result.Status != task.RunFailed {
		t.Fatalf("expected failed, got %s", result.Status)
	}
}

func TestRunCancelledBeforeFirstStage(t *testing.T) {
	exec := &fakeExec{fail: map[int]bool{}}
	control := engineinmem.NewControl()
	control.Cancel()
	r := New(exec, engineinmem.New(), control, nil, nil)
	ec := task.NewExecutionContext("wf-4", "user-1", 1, task.Budget{})

	result := r.Run(context.Background(), "wf-4", mkPlan(1), ec, Options{})
	if result.Status != task.RunCancelled {
		t.Fatalf("expected cancelled, got %s", result.Status)
	}
	if len(exec.ran) != 0 {
		t.Fatalf("expected no tasks to run, got %v", exec.ran)
	}
}

func TestRunSavesCheckpointPerStage(t *testing.T) {
	exec := &fakeExec{fail: map[int]bool{}}
	store := inmem.New()
	r := New(exec, engineinmem.New(), nil, store, nil)
	ec := task.NewExecutionContext("wf-5", "user-1", 1, task.Budget{})

	plan := task.ExecutionPlan{Stages: []task.Stage{
		{Tasks: []task.Task{{ID: 1, ProjectSequence: 1}}},
		{Tasks: []task.Task{{ID: 2, ProjectSequence: 2}}},
	}}
	r.Run(context.Background(), "wf-5", plan, ec, Options{Checkpoints: true})

	cps, err := store.List("wf-5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cps) != 2 {
		t.Fatalf("expected 2 checkpoints, got %d", len(cps))
	}
	if len(cps[1].CompletedTasks) != 2 {
		t.Fatalf("expected the final checkpoint to list both completed tasks, got %v", cps[1].CompletedTasks)
	}
}

func TestRunEmitsProgress(t *testing.T) {
	exec := &fakeExec{fail: map[int]bool{}}
	r := New(exec, engineinmem.New(), nil, nil, nil)
	ec := task.NewExecutionContext("wf-6", "user-1", 1, task.Budget{})

	var events []task.Progress
	r.Run(context.Background(), "wf-6", mkPlan(1, 2), ec, Options{OnProgress: func(p task.Progress) {
		events = append(events, p)
	}})
	if len(events) != 1 {
		t.Fatalf("expected 1 progress event for 1 stage, got %d", len(events))
	}
	if events[0].PercentComplete != 100 {
		t.Fatalf("expected 100%% complete, got %v", events[0].PercentComplete)
	}
}

func TestComputeProgressETAWhenPartiallyDone(t *testing.T) {
	start := time.Now().Add(-10 * time.Second)
	p := computeProgress(0, 2, 1, 0, 4, start)
	if p.ETA <= 0 {
		t.Fatalf("expected a positive ETA estimate, got %v", p.ETA)
	}
}

var _ engine.Control = (*engineinmem.Control)(nil)
