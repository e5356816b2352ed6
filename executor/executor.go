// Package executor implements the Advanced Task Executor (§4.6): it runs
// one task of any kind to a TaskResult, handling retries with
// exponential backoff and fallback-provider swap, per-attempt timeouts,
// budget pre-checks, macro substitution, dependency-context injection,
// and output-format instructions. Dispatch by task kind mirrors the
// teacher runtime's per-kind activity dispatch, generalized from its
// Temporal-activity shape to a direct synchronous call since this
// package owns no durable-execution concern (that lives in engine/runner).
package executor

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/flowcraft/execore/aiservice"
	"github.com/flowcraft/execore/macro"
	"github.com/flowcraft/execore/propagation"
	"github.com/flowcraft/execore/task"
)

// RetryStrategy configures the per-task retry loop (§4.6 step 3 defaults).
type RetryStrategy struct {
	MaxRetries        int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
}

// DefaultRetryStrategy returns the spec-mandated defaults.
func DefaultRetryStrategy() RetryStrategy {
	return RetryStrategy{MaxRetries: 3, InitialDelay: time.Second, MaxDelay: 30 * time.Second, BackoffMultiplier: 2}
}

// DefaultTimeout is the per-attempt deadline applied when Options.Timeout
// is zero (§4.6 step 3, §5).
const DefaultTimeout = 5 * time.Minute

// Options configures one Run call (§4.6 Input).
type Options struct {
	RetryStrategy     RetryStrategy
	Timeout           time.Duration
	FallbackProviders []string
	Checkpoints       bool
	OnLog             func(level, message string, details map[string]any)
	AIOptions         aiservice.Options
}

// ScriptRunner executes one script-kind task in an isolated sandbox per
// language (§6.5).
type ScriptRunner interface {
	RunScript(ctx context.Context, language task.ScriptLanguage, source string, env map[string]string) (stdout, stderr string, exitCode int, err error)
}

// InputProvider resolves a task of kind "input" (§6.6). Input tasks reach
// the user, local files and remote resources only through this
// interface; a host process implements it against its own UI/transport.
type InputProvider interface {
	RequestUserInput(ctx context.Context, prompt string, required bool) (text string, attachments []task.Attachment, err error)
	ReadLocalFile(ctx context.Context, path string, acceptedExtensions []string) (text string, attachments []task.Attachment, err error)
	FetchRemoteResource(ctx context.Context, url, authType string) (text string, attachments []task.Attachment, err error)
}

// OutputProvider delivers a task's final content to an external target
// (§6.7).
type OutputProvider interface {
	WriteFile(ctx context.Context, path, content string) error
	SendNotification(ctx context.Context, channel, body string) error
	PostHTTP(ctx context.Context, url string, headers map[string]string, body string) error
}

// Executor runs one task to a TaskResult (C6).
type Executor struct {
	ai         *aiservice.Manager
	macros     *macro.Resolver
	propagator *propagation.Propagator
	scripts    ScriptRunner
	input      InputProvider
	output     OutputProvider
}

// New constructs an Executor. scripts, input, and output may be nil if
// the host never dispatches those task kinds; a nil adapter used for a
// task of its kind fails with a Config error rather than panicking.
func New(ai *aiservice.Manager, macros *macro.Resolver, propagator *propagation.Propagator, scripts ScriptRunner, input InputProvider, output OutputProvider) *Executor {
	return &Executor{ai: ai, macros: macros, propagator: propagator, scripts: scripts, input: input, output: output}
}

// Run executes t to completion, retrying per opts.RetryStrategy (§4.6).
// It never returns a Go error for recoverable failures — a failed
// attempt becomes TaskResult{Status: failure, Error: ...}.
func (e *Executor) Run(ctx context.Context, t task.Task, ec *task.ExecutionContext, opts Options) task.TaskResult {
	if t.IsSubdivided {
		return task.TaskResult{TaskID: t.ID, ProjectSequence: t.ProjectSequence, Status: task.ResultSkipped}
	}

	strategy := opts.RetryStrategy
	if strategy.MaxRetries == 0 && strategy.InitialDelay == 0 {
		strategy = DefaultRetryStrategy()
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	start := time.Now()
	var lastErr *task.ExecutionError
	var lastPartial string

	for attempt := 0; attempt <= strategy.MaxRetries; attempt++ {
		if budget := ec.Budget(); budget.Exceeded() {
			lastErr = task.NewExecutionError(task.ErrKindBudget, "budget exceeded before attempt")
			break
		}

		attemptTask := t
		if attempt > 0 && len(opts.FallbackProviders) >= attempt {
			attemptTask.AIProvider = opts.FallbackProviders[attempt-1]
			attemptTask.AIModel = ""
		}

		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		result, execErr := e.attempt(attemptCtx, attemptTask, ec, opts)
		cancel()

		if execErr == nil {
			result.TaskID = t.ID
			result.ProjectSequence = t.ProjectSequence
			result.Retries = attempt
			result.StartTime = start
			result.EndTime = time.Now()
			result.Duration = result.EndTime.Sub(start)
			return result
		}

		lastErr = execErr
		if execErr.Partial != "" {
			lastPartial = execErr.Partial
		}
		if !isRetryable(execErr) || attempt >= strategy.MaxRetries {
			break
		}
		e.log(opts, "warn", fmt.Sprintf("task %d attempt %d failed, retrying", t.ID, attempt), map[string]any{"error": execErr.Error()})

		delay := backoffDelay(strategy, attempt)
		select {
		case <-ctx.Done():
			lastErr = task.NewExecutionError(task.ErrKindCancelled, "execution cancelled during backoff")
			attempt = strategy.MaxRetries
		case <-time.After(delay):
		}
	}

	lastErr.Partial = lastPartial
	return task.TaskResult{
		TaskID: t.ID, ProjectSequence: t.ProjectSequence,
		Status: task.ResultFailure, Error: lastErr,
		StartTime: start, EndTime: time.Now(), Duration: time.Since(start),
	}
}

// attempt runs a single retry attempt per §4.6 steps a-f.
func (e *Executor) attempt(ctx context.Context, t task.Task, ec *task.ExecutionContext, opts Options) (task.TaskResult, *task.ExecutionError) {
	switch t.TaskType {
	case task.KindAI:
		return e.runAI(ctx, e.resolvePromptFields(t, ec), ec, opts)
	case task.KindScript:
		return e.runScript(ctx, t, e.resolveMacros(t.ScriptSource, t, ec))
	case task.KindInput:
		return e.runInput(ctx, t)
	case task.KindOutput:
		return e.runOutput(ctx, t, e.buildDescription(t, ec))
	default:
		return task.TaskResult{}, task.NewExecutionError(task.ErrKindConfig, fmt.Sprintf("unknown task kind %q", t.TaskType))
	}
}

// resolveMacros applies the shared macro.Resolver to an arbitrary string
// field (script source, in particular) without the dependency-context and
// output-format appends buildDescription adds for prose fields.
func (e *Executor) resolveMacros(s string, t task.Task, ec *task.ExecutionContext) string {
	if e.macros == nil {
		return s
	}
	resolved, _ := e.macros.Resolve(s, macroContext(t, ec))
	return resolved
}

// resolvePromptFields macro-resolves whichever field assemblePrompt will
// actually select as the AI prompt source — AIPrompt, else
// GeneratedPrompt, else Description, the same precedence aiservice
// itself applies — so {{...}} macros are never silently dropped just
// because a task sets AIPrompt instead of Description (§4.6 steps b-d).
func (e *Executor) resolvePromptFields(t task.Task, ec *task.ExecutionContext) task.Task {
	switch {
	case t.AIPrompt != "":
		t.AIPrompt = e.resolveMacros(t.AIPrompt, t, ec)
	case t.GeneratedPrompt != "":
		t.GeneratedPrompt = e.resolveMacros(t.GeneratedPrompt, t, ec)
	default:
		t.Description = e.resolveMacros(t.Description, t, ec)
	}
	return t
}

// buildDescription applies macro substitution, dependency context, and
// the output-format instruction to t's description (§4.6 steps b-d). It
// is used for task kinds (output) that have no later prompt-assembly
// pass of their own to apply dependency context and output-format
// instructions.
func (e *Executor) buildDescription(t task.Task, ec *task.ExecutionContext) string {
	description := e.resolveMacros(t.Description, t, ec)

	if e.propagator != nil {
		pc := e.propagator.Propagate(t.EffectiveDependencyIDs(), ec.PreviousResults(), propagation.Policy{
			IncludeParentResults: true,
			Mode:                 propagation.ModeFull,
		})
		if pc.ContextString != "" {
			description += "\n\n### Context from Dependencies\n" + pc.ContextString
		}
	}

	description += outputFormatInstruction(t)
	return description
}

func macroContext(t task.Task, ec *task.ExecutionContext) macro.Context {
	bySeq := make(map[int]task.TaskResult)
	for _, r := range ec.PreviousResults() {
		bySeq[r.ProjectSequence] = r
	}
	return macro.Context{
		ResultsBySequence: bySeq,
		PreviousResults:   ec.PreviousResults(),
		Variables:         ec.Variables(),
	}
}

var outputFormatInstructions = map[task.OutputFormat]string{
	task.FormatText:     "Provide plain text output.",
	task.FormatMarkdown: "Provide Markdown output.",
	task.FormatHTML:     "Provide valid HTML output.",
	task.FormatPDF:      "Provide content suitable for PDF rendering.",
	task.FormatJSON:     "Provide a single valid JSON value as output.",
	task.FormatYAML:     "Provide valid YAML output.",
	task.FormatCSV:      "Provide valid CSV output.",
	task.FormatSQL:      "Provide valid SQL output.",
	task.FormatShell:    "Provide a valid shell script as output.",
	task.FormatMermaid:  "Provide a valid Mermaid diagram definition.",
	task.FormatSVG:      "Provide valid SVG markup.",
	task.FormatPNG:      "Provide a PNG image.",
	task.FormatMP4:      "Provide an MP4 video.",
	task.FormatMP3:      "Provide an MP3 audio clip.",
	task.FormatDiff:     "Provide a unified diff.",
	task.FormatLog:      "Provide log-formatted output.",
	task.FormatCode:     "Provide source code only, no prose.",
}

func outputFormatInstruction(t task.Task) string {
	if t.ExpectedOutputFormat == "" {
		return ""
	}
	instr, ok := outputFormatInstructions[t.ExpectedOutputFormat]
	if !ok {
		return ""
	}
	if t.ExpectedOutputFormat == task.FormatCode && t.CodeLanguage != "" {
		instr += " Use " + t.CodeLanguage + "."
	}
	return "\n\n### Output Format\n" + instr
}

func (e *Executor) log(opts Options, level, message string, details map[string]any) {
	if opts.OnLog != nil {
		opts.OnLog(level, message, details)
	}
}

// retryablePatterns is the fixed substring list named in §4.6 step g.
var retryablePatterns = []string{
	"ECONNREFUSED", "ETIMEDOUT", "ENOTFOUND", "EAGAIN", "network", "timeout",
	"429", "500", "502", "503",
}

func isRetryable(err *task.ExecutionError) bool {
	if err == nil {
		return false
	}
	if err.Retryable() {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, p := range retryablePatterns {
		if strings.Contains(msg, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

func backoffDelay(s RetryStrategy, attempt int) time.Duration {
	d := float64(s.InitialDelay) * math.Pow(s.BackoffMultiplier, float64(attempt))
	if s.MaxDelay > 0 && d > float64(s.MaxDelay) {
		d = float64(s.MaxDelay)
	}
	jitter := d * 0.1 * (rand.Float64()*2 - 1) //nolint:gosec // jitter only, not security sensitive
	d += jitter
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}
