package plan

import (
	"testing"

	"github.com/flowcraft/execore/task"
)

func mkTask(seq int, deps ...int) task.Task {
	return task.Task{ID: seq, ProjectSequence: seq, Dependencies: deps, ExecutionType: task.ExecutionParallel, TaskType: task.KindAI}
}

func TestBuildDiamond(t *testing.T) {
	tasks := []task.Task{
		mkTask(1),
		mkTask(2, 1),
		mkTask(3, 1),
		mkTask(4, 2, 3),
	}
	p, err := Build(tasks, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.Stages) != 3 {
		t.Fatalf("expected 3 stages, got %d", len(p.Stages))
	}
	if len(p.Stages[1].Tasks) != 2 {
		t.Fatalf("expected stage 2 to have 2 tasks, got %d", len(p.Stages[1].Tasks))
	}
	if !p.Stages[1].CanRunInParallel {
		t.Fatalf("expected stage 2 to be parallel-capable")
	}
}

func TestBuildCycle(t *testing.T) {
	tasks := []task.Task{
		mkTask(1, 3),
		mkTask(2, 1),
		mkTask(3, 2),
	}
	_, err := Build(tasks, nil)
	var cycleErr *CycleError
	if err == nil {
		t.Fatal("expected cycle error")
	}
	if !asCycleError(err, &cycleErr) {
		t.Fatalf("expected *CycleError, got %T", err)
	}
	if len(cycleErr.TaskIDs) != 3 {
		t.Fatalf("expected all 3 tasks reported, got %v", cycleErr.TaskIDs)
	}
}

func TestBuildSerialForcesSequentialStage(t *testing.T) {
	serial := mkTask(1)
	serial.ExecutionType = task.ExecutionSerial
	tasks := []task.Task{serial, mkTask(2)}
	p, err := Build(tasks, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Stages[0].CanRunInParallel {
		t.Fatalf("expected stage with a serial task to be non-parallel")
	}
}

func asCycleError(err error, target **CycleError) bool {
	ce, ok := err.(*CycleError)
	if !ok {
		return false
	}
	*target = ce
	return true
}
