// Package plan implements the Execution Planner (§4.7): Kahn's
// topological sort of a task's dependency graph into parallelizable
// stages, cycle detection, and stage duration estimation.
package plan

import (
	"fmt"
	"sort"
	"time"

	"github.com/flowcraft/execore/task"
)

// DefaultTaskDuration is the provider-default estimate used when a
// task's duration is unknown (§4.7).
const DefaultTaskDuration = 2 * time.Minute

// DurationEstimator reports an estimated execution duration for a task;
// callers without a real estimator should pass nil, which falls back to
// DefaultTaskDuration for every task.
type DurationEstimator func(t task.Task) time.Duration

// CycleError reports the residual task set a Kahn drain could not
// resolve (§4.7, §7 Config/Cycle kind).
type CycleError struct {
	TaskIDs []int
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("plan: dependency cycle among tasks %v", e.TaskIDs)
}

// Build runs Kahn's algorithm over tasks' dependency sets (expressed as
// projectSequence values, §9) and returns an ExecutionPlan with ordered
// stages (§4.7 algorithm). estimate may be nil.
func Build(tasks []task.Task, estimate DurationEstimator) (task.ExecutionPlan, error) {
	if estimate == nil {
		estimate = func(task.Task) time.Duration { return DefaultTaskDuration }
	}

	bySeq := make(map[int]task.Task, len(tasks))
	for _, t := range tasks {
		bySeq[t.ProjectSequence] = t
	}

	indegree := make(map[int]int, len(tasks))
	dependents := make(map[int][]int, len(tasks))
	for _, t := range tasks {
		deps := t.EffectiveDependencyIDs()
		indegree[t.ProjectSequence] = 0
		for _, d := range deps {
			if _, ok := bySeq[d]; !ok {
				continue // dependency outside this project's task set is ignored, not a cycle
			}
			indegree[t.ProjectSequence]++
			dependents[d] = append(dependents[d], t.ProjectSequence)
		}
	}

	var stages []task.Stage
	remaining := len(tasks)
	for remaining > 0 {
		var ready []int
		for seq, deg := range indegree {
			if deg == 0 {
				ready = append(ready, seq)
			}
		}
		if len(ready) == 0 {
			return task.ExecutionPlan{}, &CycleError{TaskIDs: residualSequences(indegree)}
		}
		sort.Ints(ready)

		stageTasks := make([]task.Task, len(ready))
		for i, seq := range ready {
			stageTasks[i] = bySeq[seq]
			delete(indegree, seq)
		}
		remaining -= len(ready)

		for _, seq := range ready {
			for _, dependent := range dependents[seq] {
				if _, stillPending := indegree[dependent]; stillPending {
					indegree[dependent]--
				}
			}
		}

		stages = append(stages, task.Stage{
			Tasks:             stageTasks,
			CanRunInParallel:  canRunInParallel(stageTasks),
			EstimatedDuration: maxDuration(stageTasks, estimate),
		})
	}

	var total time.Duration
	for _, s := range stages {
		total += s.EstimatedDuration
	}
	return task.ExecutionPlan{Stages: stages, EstimatedDuration: total}, nil
}

// canRunInParallel is false if any task in the stage forces serial
// execution: executionType serial, or task kind input (human-in-the-loop,
// §4.7).
func canRunInParallel(tasks []task.Task) bool {
	for _, t := range tasks {
		if t.ExecutionType == task.ExecutionSerial || t.TaskType == task.KindInput {
			return false
		}
	}
	return true
}

func maxDuration(tasks []task.Task, estimate DurationEstimator) time.Duration {
	var max time.Duration
	for _, t := range tasks {
		if d := estimate(t); d > max {
			max = d
		}
	}
	if max == 0 {
		max = DefaultTaskDuration
	}
	return max
}

func residualSequences(indegree map[int]int) []int {
	seqs := make([]int, 0, len(indegree))
	for seq := range indegree {
		seqs = append(seqs, seq)
	}
	sort.Ints(seqs)
	return seqs
}
