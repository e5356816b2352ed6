// Package temporal implements engine.Engine on top of go.temporal.io/sdk,
// so a Workflow Runner can survive a process restart mid-plan. Stage
// tasks become Temporal activities and Pause/Resume/Cancel become
// Temporal signals, mirroring the teacher's Temporal engine adapter
// (runtime/agent/engine/temporal) at a scope this spec actually needs:
// one task queue, one activity, three signals.
package temporal

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.temporal.io/sdk/client"
	temporalotel "go.temporal.io/sdk/contrib/opentelemetry"
	"go.temporal.io/sdk/interceptor"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/flowcraft/execore/engine"
	"github.com/flowcraft/execore/task"
)

const activityName = "ExecuteStageTask"

// Signal names delivered via client.SignalWorkflow / workflow.GetSignalChannel.
const (
	signalPause  = "execore_pause"
	signalResume = "execore_resume"
	signalCancel = "execore_cancel"
)

// Options configures the Temporal engine adapter. Either Client or
// ClientOptions must be set.
type Options struct {
	Client        client.Client
	ClientOptions *client.Options
	TaskQueue     string
	WorkerOptions worker.Options

	// Tracing is enabled by default via go.temporal.io/sdk/contrib/opentelemetry,
	// exporting spans through whatever global OTEL TracerProvider the host
	// configured (see telemetry.ClueTracer). Set DisableTracing to opt out.
	DisableTracing bool
	TracerOptions  temporalotel.TracerOptions
}

// Engine drives stages as Temporal activities on a single task queue.
type Engine struct {
	client    client.Client
	ownClient bool
	taskQueue string
	worker    worker.Worker
	exec      engine.TaskExecFunc
}

var _ engine.Engine = (*Engine)(nil)

// New constructs a Temporal-backed Engine. exec is registered once as the
// "ExecuteStageTask" activity; Temporal requires activities be named and
// registered ahead of worker start, so unlike engine/inmem this adapter
// is bound to a single exec function for its lifetime.
func New(opts Options, exec engine.TaskExecFunc) (*Engine, error) {
	if opts.TaskQueue == "" {
		return nil, fmt.Errorf("temporal engine: task queue is required")
	}
	var tracer interceptor.Interceptor
	if !opts.DisableTracing {
		var err error
		tracer, err = temporalotel.NewTracingInterceptor(opts.TracerOptions)
		if err != nil {
			return nil, fmt.Errorf("temporal engine: configure tracing interceptor: %w", err)
		}
	}

	c := opts.Client
	ownClient := false
	if c == nil {
		if opts.ClientOptions == nil {
			return nil, fmt.Errorf("temporal engine: Client or ClientOptions is required")
		}
		clientOpts := *opts.ClientOptions
		if tracer != nil {
			clientOpts.Interceptors = append(clientOpts.Interceptors, tracer)
		}
		var err error
		c, err = client.Dial(clientOpts)
		if err != nil {
			return nil, fmt.Errorf("temporal engine: dial client: %w", err)
		}
		ownClient = true
	}

	e := &Engine{client: c, ownClient: ownClient, taskQueue: opts.TaskQueue, exec: exec}

	workerOpts := opts.WorkerOptions
	if tracer != nil {
		workerOpts.Interceptors = append(workerOpts.Interceptors, tracer)
	}
	w := worker.New(c, opts.TaskQueue, workerOpts)
	w.RegisterActivityWithOptions(e.runTaskActivity, worker.RegisterActivityOptions{Name: activityName})
	w.RegisterWorkflowWithOptions(StageWorkflow, workflow.RegisterOptions{Name: "ExecuteStageWorkflow"})
	if err := w.Start(); err != nil {
		return nil, fmt.Errorf("temporal engine: start worker: %w", err)
	}
	e.worker = w
	return e, nil
}

// Close stops the worker and, if this Engine opened its own client,
// closes it too.
func (e *Engine) Close() {
	if e.worker != nil {
		e.worker.Stop()
	}
	if e.ownClient && e.client != nil {
		e.client.Close()
	}
}

func (e *Engine) runTaskActivity(ctx context.Context, t task.Task) (task.TaskResult, error) {
	return e.exec(ctx, t), nil
}

// RunStage always runs exec locally with the same bounded-concurrency
// behavior as engine/inmem, so the Runner's calling convention stays
// uniform across backends; it does not start Temporal activities.
// Callers that want durable execution drive stages through
// StageWorkflow below on a worker instead of calling RunStage.
func (e *Engine) RunStage(ctx context.Context, stage task.Stage, parallelism int, exec engine.TaskExecFunc) []task.TaskResult {
	results := make([]task.TaskResult, len(stage.Tasks))
	if !stage.CanRunInParallel || parallelism <= 1 || len(stage.Tasks) <= 1 {
		for i, t := range stage.Tasks {
			results[i] = exec(ctx, t)
		}
		return results
	}
	sem := make(chan struct{}, parallelism)
	done := make(chan struct{}, len(stage.Tasks))
	for i, t := range stage.Tasks {
		i, t := i, t
		sem <- struct{}{}
		go func() {
			defer func() { <-sem; done <- struct{}{} }()
			results[i] = exec(ctx, t)
		}()
	}
	for range stage.Tasks {
		<-done
	}
	return results
}

// StartWorkflowInput is the payload StageWorkflow
// receives: a flattened plan plus the per-task retry policy to apply to
// each activity invocation.
type StartWorkflowInput struct {
	Stages      []task.Stage
	Parallelism int
	RetryPolicy RetryPolicy
}

// RetryPolicy mirrors the teacher's engine.RetryPolicy shape, translated
// to Temporal's native temporal.RetryPolicy when StageWorkflow sets its
// activity options.
type RetryPolicy struct {
	MaxAttempts        int32
	InitialInterval    time.Duration
	BackoffCoefficient float64
}

func (p RetryPolicy) toTemporal() *temporal.RetryPolicy {
	if p.MaxAttempts == 0 {
		return nil
	}
	coeff := p.BackoffCoefficient
	if coeff == 0 {
		coeff = 2
	}
	interval := p.InitialInterval
	if interval == 0 {
		interval = time.Second
	}
	return &temporal.RetryPolicy{
		MaximumAttempts:    p.MaxAttempts,
		InitialInterval:    interval,
		BackoffCoefficient: coeff,
	}
}

// StageWorkflow drives a flattened execution plan stage by stage inside
// a durable Temporal workflow, honoring pause/resume/cancel signals
// between stages; signals that arrive while a stage's activities run are
// acted on before the next stage starts. It returns the
// full ordered slice of per-task results across every stage.
func StageWorkflow(ctx workflow.Context, input StartWorkflowInput) ([]task.TaskResult, error) {
	paused := false
	cancelled := false

	pauseCh := workflow.GetSignalChannel(ctx, signalPause)
	resumeCh := workflow.GetSignalChannel(ctx, signalResume)
	cancelCh := workflow.GetSignalChannel(ctx, signalCancel)

	drainSignals := func() {
		for {
			sel := workflow.NewSelector(ctx)
			sel.AddReceive(pauseCh, func(c workflow.ReceiveChannel, _ bool) { c.Receive(ctx, nil); paused = true })
			sel.AddReceive(resumeCh, func(c workflow.ReceiveChannel, _ bool) { c.Receive(ctx, nil); paused = false })
			sel.AddReceive(cancelCh, func(c workflow.ReceiveChannel, _ bool) { c.Receive(ctx, nil); cancelled = true })
			if !sel.HasPending() {
				return
			}
			sel.Select(ctx)
		}
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy:         input.RetryPolicy.toTemporal(),
	}
	actCtx := workflow.WithActivityOptions(ctx, ao)

	var all []task.TaskResult
	for _, stage := range input.Stages {
		drainSignals()
		if cancelled {
			break
		}
		for paused && !cancelled {
			workflow.GetLogger(ctx).Info("workflow paused, awaiting resume or cancel")
			sel := workflow.NewSelector(ctx)
			sel.AddReceive(resumeCh, func(c workflow.ReceiveChannel, _ bool) { c.Receive(ctx, nil); paused = false })
			sel.AddReceive(cancelCh, func(c workflow.ReceiveChannel, _ bool) { c.Receive(ctx, nil); cancelled = true })
			sel.Select(ctx)
		}
		if cancelled {
			break
		}

		stageResults := make([]task.TaskResult, len(stage.Tasks))
		if !stage.CanRunInParallel {
			for i, t := range stage.Tasks {
				var r task.TaskResult
				if err := workflow.ExecuteActivity(actCtx, activityName, t).Get(actCtx, &r); err != nil {
					return all, err
				}
				stageResults[i] = r
			}
		} else {
			futures := make([]workflow.Future, len(stage.Tasks))
			for i, t := range stage.Tasks {
				futures[i] = workflow.ExecuteActivity(actCtx, activityName, t)
			}
			for i, f := range futures {
				var r task.TaskResult
				if err := f.Get(actCtx, &r); err != nil {
					return all, err
				}
				stageResults[i] = r
			}
		}
		all = append(all, stageResults...)
	}
	return all, nil
}

// ClientControl drives a running StageWorkflow's pause/resume/cancel
// signals from outside the workflow. The local paused/cancelled flags
// are a best-effort mirror for callers that want a synchronous read;
// the durable truth lives in the workflow's signal history and survives
// even if this mirror is lost to a process restart.
type ClientControl struct {
	client     client.Client
	workflowID string
	runID      string
	paused     atomic.Bool
	cancelled  atomic.Bool
}

var _ engine.Control = (*ClientControl)(nil)

// NewClientControl returns a Control bound to a running workflow execution.
func NewClientControl(c client.Client, workflowID, runID string) *ClientControl {
	return &ClientControl{client: c, workflowID: workflowID, runID: runID}
}

func (c *ClientControl) Pause() {
	if err := c.client.SignalWorkflow(context.Background(), c.workflowID, c.runID, signalPause, nil); err == nil {
		c.paused.Store(true)
	}
}

func (c *ClientControl) Resume() {
	if err := c.client.SignalWorkflow(context.Background(), c.workflowID, c.runID, signalResume, nil); err == nil {
		c.paused.Store(false)
	}
}

func (c *ClientControl) Cancel() {
	if err := c.client.SignalWorkflow(context.Background(), c.workflowID, c.runID, signalCancel, nil); err == nil {
		c.cancelled.Store(true)
	}
}

func (c *ClientControl) Paused() bool    { return c.paused.Load() }
func (c *ClientControl) Cancelled() bool { return c.cancelled.Load() }
