package executor

import (
	"context"

	"github.com/flowcraft/execore/aiservice"
	"github.com/flowcraft/execore/task"
)

// runAI delegates to the AI Service Manager (§4.6.e, ai branch) and maps
// its Result onto a TaskResult, including attachment derivation from the
// final AiResult (§4.6.f). t must already have its prompt field
// macro-resolved (see resolvePromptFields).
func (e *Executor) runAI(ctx context.Context, t task.Task, ec *task.ExecutionContext, opts Options) (task.TaskResult, *task.ExecutionError) {
	if e.ai == nil {
		return task.TaskResult{}, task.NewExecutionError(task.ErrKindConfig, "no AI service manager configured")
	}

	res := e.ai.Run(ctx, t, ec, opts.AIOptions)
	if !res.Success {
		return task.TaskResult{}, res.Error
	}

	ec.AddSpend(res.Cost, res.TokensUsed.TotalTokens)

	return task.TaskResult{
		Status:      task.ResultSuccess,
		Output:      res.AiResult,
		Attachments: attachmentsFromAiResult(res.AiResult),
		Cost:        res.Cost,
		Tokens:      res.TokensUsed.TotalTokens,
		Metadata: map[string]any{
			"provider":     res.Provider,
			"model":        res.Model,
			"finishReason": res.FinishReason,
		},
	}, nil
}

// attachmentsFromAiResult maps a non-text AiResult onto an Attachment per
// §4.6.f: format base64/url map directly, format binary becomes a base64
// attachment carrying the encoded bytes
// (AiResult.Validate already guarantees one of the three is populated).
func attachmentsFromAiResult(r task.AiResult) []task.Attachment {
	if r.Kind == task.AiKindText {
		return nil
	}
	a := task.Attachment{Name: "result." + string(r.Kind), MimeType: r.Mime}
	switch r.Format {
	case task.AiFormatURL:
		a.Encoding = task.EncodingURL
		a.Data = r.Value
	case task.AiFormatBase64:
		a.Encoding = task.EncodingBase64
		a.Data = r.Value
	case task.AiFormatBinary:
		a.Encoding = task.EncodingBase64
		a.Data = base64Encode(r.Binary)
	default:
		return nil
	}
	return []task.Attachment{a}
}

// runScript dispatches a script-kind task to the configured ScriptRunner
// (§4.6.e, script branch; §6.5).
func (e *Executor) runScript(ctx context.Context, t task.Task, resolvedSource string) (task.TaskResult, *task.ExecutionError) {
	if e.scripts == nil {
		return task.TaskResult{}, task.NewExecutionError(task.ErrKindConfig, "no script runner configured")
	}
	stdout, stderr, exitCode, err := e.scripts.RunScript(ctx, t.ScriptLanguage, resolvedSource, nil)
	if err != nil {
		return task.TaskResult{}, task.WrapExecutionError(task.ErrKindScript, "script execution failed", err)
	}
	if exitCode != 0 {
		return task.TaskResult{}, task.NewExecutionError(task.ErrKindScript, stderr)
	}
	return task.TaskResult{
		Status: task.ResultSuccess,
		Output: stdout,
		Metadata: map[string]any{
			"stderr":   stderr,
			"exitCode": exitCode,
		},
	}, nil
}

// runInput dispatches an input-kind task to the configured InputProvider
// (§4.6.e, input branch; §6.6). It blocks until resolved; cancellation
// propagates via ctx.
func (e *Executor) runInput(ctx context.Context, t task.Task) (task.TaskResult, *task.ExecutionError) {
	if e.input == nil {
		return task.TaskResult{}, task.NewExecutionError(task.ErrKindConfig, "no input provider configured")
	}
	text, attachments, err := e.input.RequestUserInput(ctx, t.AIPrompt, true)
	if err != nil {
		if ctx.Err() != nil {
			return task.TaskResult{}, task.NewExecutionError(task.ErrKindCancelled, "input request cancelled")
		}
		return task.TaskResult{}, task.WrapExecutionError(task.ErrKindInput, "input request failed", err)
	}
	return task.TaskResult{Status: task.ResultSuccess, Output: text, Attachments: attachments}, nil
}

// runOutput dispatches an output-kind task to the configured
// OutputProvider (§4.6.e, output branch; §6.7). resolvedContent is the
// macro/context-resolved description, used as the payload body.
func (e *Executor) runOutput(ctx context.Context, t task.Task, resolvedContent string) (task.TaskResult, *task.ExecutionError) {
	if e.output == nil {
		return task.TaskResult{}, task.NewExecutionError(task.ErrKindConfig, "no output provider configured")
	}
	if err := e.output.WriteFile(ctx, outputTarget(t), resolvedContent); err != nil {
		return task.TaskResult{}, task.WrapExecutionError(task.ErrKindOutput, "output delivery failed", err)
	}
	return task.TaskResult{Status: task.ResultSuccess, Output: resolvedContent}, nil
}

func outputTarget(t task.Task) string {
	if t.Title != "" {
		return t.Title
	}
	return "task-output"
}

// AIReview is a specialization of the AI path for reviewing a piece of
// content against a review prompt (§4.6 "AI review"). It forces text
// output and optionally carries an image for visual review.
type AIReview struct {
	Success  bool
	Content  string
	Cost     float64
	Tokens   int
	Provider string
	Model    string
	Duration int64 // milliseconds
}

// Review invokes the AI Service Manager with t's review provider/model
// overrides (falling back to its primary AI config), forcing text
// output.
func (e *Executor) Review(ctx context.Context, t task.Task, reviewPrompt string, ec *task.ExecutionContext) AIReview {
	if e.ai == nil {
		return AIReview{Success: false}
	}
	reviewTask := t
	reviewTask.ExpectedOutputFormat = task.FormatText
	reviewTask.AIPrompt = reviewPrompt
	reviewTask.GeneratedPrompt = ""
	if t.ReviewAIProvider != "" {
		reviewTask.AIProvider = t.ReviewAIProvider
	}
	if t.ReviewAIModel != "" {
		reviewTask.AIModel = t.ReviewAIModel
	}

	res := e.ai.Run(ctx, reviewTask, ec, aiservice.Options{})
	if !res.Success {
		return AIReview{Success: false}
	}
	return AIReview{
		Success:  true,
		Content:  res.Content,
		Cost:     res.Cost,
		Tokens:   res.TokensUsed.TotalTokens,
		Provider: res.Provider,
		Model:    res.Model,
		Duration: res.Duration.Milliseconds(),
	}
}
