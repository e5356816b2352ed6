package task

import "time"

// Stage is a maximal set of tasks with all dependencies resolved,
// eligible to run concurrently (§4.7, GLOSSARY).
type Stage struct {
	Tasks            []Task
	CanRunInParallel bool
	// EstimatedDuration is the stage's max estimated task duration, or a
	// provider-default when unknown (§4.7).
	EstimatedDuration time.Duration
}

// ExecutionPlan is the ordered list of stages the Execution Planner
// produces (§3, §4.7).
type ExecutionPlan struct {
	Stages            []Stage
	EstimatedDuration time.Duration
}

// TotalTasks returns the number of tasks across all stages.
func (p ExecutionPlan) TotalTasks() int {
	n := 0
	for _, s := range p.Stages {
		n += len(s.Tasks)
	}
	return n
}
