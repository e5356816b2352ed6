package inmem_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/flowcraft/execore/engine"
	"github.com/flowcraft/execore/engine/inmem"
	"github.com/flowcraft/execore/task"
)

func TestRunStageSerialPreservesOrderAndRunsOneAtATime(t *testing.T) {
	e := inmem.New()
	var inFlight int32
	var maxInFlight int32
	exec := func(ctx context.Context, tk task.Task) task.TaskResult {
		n := atomic.AddInt32(&inFlight, 1)
		if n > atomic.LoadInt32(&maxInFlight) {
			atomic.StoreInt32(&maxInFlight, n)
		}
		time.Sleep(time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return task.TaskResult{TaskID: tk.ID}
	}

	stage := task.Stage{CanRunInParallel: false, Tasks: []task.Task{{ID: 1}, {ID: 2}, {ID: 3}}}
	results := e.RunStage(context.Background(), stage, 5, exec)

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, r := range results {
		if r.TaskID != i+1 {
			t.Fatalf("expected results in stage.Tasks order, got %+v", results)
		}
	}
	if maxInFlight > 1 {
		t.Fatalf("expected serial execution, saw %d concurrent", maxInFlight)
	}
}

func TestRunStageParallelRunsConcurrentlyAndPreservesOrder(t *testing.T) {
	e := inmem.New()
	var maxInFlight int32
	var inFlight int32
	exec := func(ctx context.Context, tk task.Task) task.TaskResult {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			cur := atomic.LoadInt32(&maxInFlight)
			if n <= cur || atomic.CompareAndSwapInt32(&maxInFlight, cur, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return task.TaskResult{TaskID: tk.ID}
	}

	stage := task.Stage{CanRunInParallel: true, Tasks: []task.Task{{ID: 1}, {ID: 2}, {ID: 3}}}
	results := e.RunStage(context.Background(), stage, 3, exec)

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, r := range results {
		if r.TaskID != i+1 {
			t.Fatalf("expected results to preserve stage.Tasks order regardless of completion order, got %+v", results)
		}
	}
	if maxInFlight < 2 {
		t.Fatalf("expected at least 2 tasks to run concurrently, saw max %d", maxInFlight)
	}
}

func TestRunStageSingleTaskNeverParallelizes(t *testing.T) {
	e := inmem.New()
	exec := func(ctx context.Context, tk task.Task) task.TaskResult {
		return task.TaskResult{TaskID: tk.ID}
	}
	stage := task.Stage{CanRunInParallel: true, Tasks: []task.Task{{ID: 42}}}
	results := e.RunStage(context.Background(), stage, 5, exec)
	if len(results) != 1 || results[0].TaskID != 42 {
		t.Fatalf("expected a single result for a single-task stage, got %+v", results)
	}
}

func TestControlDefaultsToRunningAndNotCancelled(t *testing.T) {
	c := inmem.NewControl()
	if c.Paused() {
		t.Fatalf("expected a fresh control to not be paused")
	}
	if c.Cancelled() {
		t.Fatalf("expected a fresh control to not be cancelled")
	}
}

func TestControlPauseResumeCancel(t *testing.T) {
	c := inmem.NewControl()
	c.Pause()
	if !c.Paused() {
		t.Fatalf("expected Paused() to report true after Pause()")
	}
	c.Resume()
	if c.Paused() {
		t.Fatalf("expected Paused() to report false after Resume()")
	}
	c.Cancel()
	if !c.Cancelled() {
		t.Fatalf("expected Cancelled() to report true after Cancel()")
	}
}

var _ engine.Engine = (*inmem.Engine)(nil)
