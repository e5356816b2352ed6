// Package aiservice implements the AI Service Manager (§4.5): it drives
// one AI task end-to-end — provider/model resolution, MCP pre-flight,
// prompt assembly, and the branch between the image path, the tool
// loop, streaming, and a plain non-streaming call. The manager shape
// (a narrow Options struct driving one Run call, a per-execution
// cancellation registry) is modeled on the teacher's agent runtime
// entry point, generalized from goa-ai's planner-driven loop to this
// spec's fixed five-iteration tool loop.
package aiservice

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/flowcraft/execore/mcpfacade"
	"github.com/flowcraft/execore/provider"
	"github.com/flowcraft/execore/task"
	"github.com/flowcraft/execore/toolpolicy"
)

// Options configures one Run call (§4.5 Inputs).
type Options struct {
	Streaming         bool
	OnToken           func(token string)
	OnProgress        func(stage string)
	OnLog             func(level, message string, details map[string]any)
	OnPromptGenerated func(PromptGenerated)
	Timeout           time.Duration
	MaxRetries        int
	FallbackProviders []string
	AutoDetectMCPs    bool
}

// PromptGenerated mirrors the onPromptGenerated event payload (§6.8).
type PromptGenerated struct {
	ProjectID       int
	ProjectSequence int
	Provider        string
	Model           string
	Prompt          string
	SystemPrompt    string
	RequiredMCPs    []string
	MCPContext      []task.MCPContextInsight
}

// Result is the AIExecutionResult of §4.5.
type Result struct {
	Success      bool
	Content      string
	AiResult     task.AiResult
	TokensUsed   provider.TokenUsage
	Cost         float64
	Duration     time.Duration
	Provider     string
	Model        string
	FinishReason string
	Metadata     map[string]any
	Error        *task.ExecutionError
}

// Manager orchestrates AI task execution (C5).
type Manager struct {
	registry *provider.Registry
	mcp      *mcpfacade.Facade
	policy   toolpolicy.Engine

	mu      sync.Mutex
	running map[string]context.CancelFunc
}

// New constructs a Manager. policy may be nil, which is equivalent to an
// allow-everything engine.
func New(registry *provider.Registry, mcp *mcpfacade.Facade, policy toolpolicy.Engine) *Manager {
	return &Manager{registry: registry, mcp: mcp, policy: policy, running: make(map[string]context.CancelFunc)}
}

// Run executes t end-to-end and returns the AIExecutionResult. ctx
// carries the caller's deadline; Run additionally registers its own
// cancellation token under a key cancelExecution(t.ID) can target.
func (m *Manager) Run(ctx context.Context, t task.Task, ec *task.ExecutionContext, opts Options) Result {
	start := time.Now()
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}
	ctx, release := m.register(ctx, t.ID)
	defer release()

	res := m.run(ctx, t, ec, opts)
	res.Duration = time.Since(start)
	return res
}

// CancelExecution aborts every in-flight Run registered for taskID
// (§4.5 step 7: cancellation is keyed per task, not per attempt, so a
// stale key from a prior attempt never lingers past its own release).
func (m *Manager) CancelExecution(taskID int) {
	key := execKeyPrefix(taskID)
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, cancel := range m.running {
		if len(k) >= len(key) && k[:len(key)] == key {
			cancel()
		}
	}
}

func (m *Manager) register(ctx context.Context, taskID int) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	key := fmt.Sprintf("%s%d", execKeyPrefix(taskID), time.Now().UnixNano())
	m.mu.Lock()
	m.running[key] = cancel
	m.mu.Unlock()
	return ctx, func() {
		cancel()
		m.mu.Lock()
		delete(m.running, key)
		m.mu.Unlock()
	}
}

func execKeyPrefix(taskID int) string { return fmt.Sprintf("exec-%d-", taskID) }

func (m *Manager) run(ctx context.Context, t task.Task, ec *task.ExecutionContext, opts Options) Result {
	if err := ctx.Err(); err != nil {
		return failureResult(task.NewExecutionError(task.ErrKindCancelled, "execution cancelled before start"))
	}

	providerName, modelName, err := m.resolveProvider(t)
	if err != nil {
		return failureResult(task.WrapExecutionError(task.ErrKindConfig, "provider resolution failed", err))
	}
	client, ok := m.registry.Get(providerName)
	if !ok {
		return failureResult(task.NewExecutionError(task.ErrKindConfig, fmt.Sprintf("provider %q is not registered", providerName)))
	}

	explicit := explicitMCPs(t)
	detected := detectMCPs(t, opts.AutoDetectMCPs)
	insightSet := insightMCPs(explicit, detected)
	insights := m.preflightMCPs(ctx, insightSet, t.ID)

	assembled := m.assemblePrompt(t, ec, insightSet, insights)

	if opts.OnPromptGenerated != nil {
		opts.OnPromptGenerated(PromptGenerated{
			ProjectID: t.ProjectID, ProjectSequence: t.ProjectSequence,
			Provider: providerName, Model: modelName,
			Prompt: assembled.userText, SystemPrompt: assembled.systemText,
			RequiredMCPs: explicit, MCPContext: insights,
		})
	}

	outputFormat := effectiveOutputFormat(t)
	tools := m.collectTools(ctx, explicit, t.ID)

	var result Result
	switch {
	case isImageFormat(outputFormat) && !assembled.hasInputImages:
		result = m.runImagePath(ctx, client, providerName, t, assembled)
	case len(tools) > 0:
		result = m.runToolLoop(ctx, client, providerName, modelName, t, assembled, tools, opts)
	case opts.Streaming:
		result = m.runStreaming(ctx, client, providerName, modelName, t, assembled, opts)
	default:
		result = m.runSingleCall(ctx, client, providerName, modelName, t, assembled)
	}

	result = postProcess(result, t, insights)
	result.Provider = providerName
	if result.Model == "" {
		result.Model = modelName
	}
	return result
}

func failureResult(err *task.ExecutionError) Result {
	return Result{Success: false, Error: err}
}
