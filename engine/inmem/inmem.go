// Package inmem implements engine.Engine as plain goroutines, suitable
// for tests and single-process deployments that don't need durable,
// crash-resumable execution (§4.8 [FULL]).
package inmem

import (
	"context"
	"sync"

	"github.com/flowcraft/execore/engine"
	"github.com/flowcraft/execore/task"
)

// Engine runs a stage's tasks with a bounded goroutine pool.
type Engine struct{}

var _ engine.Engine = (*Engine)(nil)

// New returns a ready-to-use in-memory Engine.
func New() *Engine { return &Engine{} }

// RunStage executes stage.Tasks serially when stage.CanRunInParallel is
// false, or with up to parallelism concurrent goroutines otherwise.
// Results preserve stage.Tasks order regardless of completion order.
func (e *Engine) RunStage(ctx context.Context, stage task.Stage, parallelism int, exec engine.TaskExecFunc) []task.TaskResult {
	results := make([]task.TaskResult, len(stage.Tasks))

	if !stage.CanRunInParallel || parallelism <= 1 || len(stage.Tasks) <= 1 {
		for i, t := range stage.Tasks {
			results[i] = exec(ctx, t)
		}
		return results
	}

	sem := make(chan struct{}, parallelism)
	var wg sync.WaitGroup
	for i, t := range stage.Tasks {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, t task.Task) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = exec(ctx, t)
		}(i, t)
	}
	wg.Wait()
	return results
}

// Control is a mutex-guarded engine.Control for the in-memory engine.
type Control struct {
	mu        sync.Mutex
	paused    bool
	cancelled bool
}

var _ engine.Control = (*Control)(nil)

func NewControl() *Control { return &Control{} }

func (c *Control) Pause()  { c.mu.Lock(); c.paused = true; c.mu.Unlock() }
func (c *Control) Resume() { c.mu.Lock(); c.paused = false; c.mu.Unlock() }
func (c *Control) Cancel() { c.mu.Lock(); c.cancelled = true; c.mu.Unlock() }

func (c *Control) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

func (c *Control) Cancelled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelled
}
