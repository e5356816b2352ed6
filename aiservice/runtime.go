package aiservice

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/flowcraft/execore/mcpfacade"
	"github.com/flowcraft/execore/provider"
	"github.com/flowcraft/execore/task"
)

// maxToolContentLen bounds how much of a tool error/result gets folded
// back into the conversation as tool content (§4.5.2 step 5).
const maxToolContentLen = 6000

// maxToolIterations bounds the tool loop (§4.5.2).
const maxToolIterations = 5

func baseMessages(a assembledPrompt) []provider.Message {
	msgs := []provider.Message{
		{Role: provider.RoleSystem, Parts: []provider.Part{provider.TextPart{Text: a.systemText}}},
	}
	userParts := []provider.Part{provider.TextPart{Text: a.userText}}
	for _, img := range a.inputImages {
		userParts = append(userParts, img)
	}
	msgs = append(msgs, provider.Message{Role: provider.RoleUser, Parts: userParts})
	return msgs
}

// runImagePath drives §4.5.1: request a single image for the assembled
// prompt from the provider, which uses its default image model, and keep
// the first image returned.
func (m *Manager) runImagePath(ctx context.Context, client provider.Client, providerName string, t task.Task, a assembledPrompt) Result {
	req := provider.ImageRequest{
		Prompt:      a.userText,
		Format:      "png",
		Count:       1,
		InputImages: a.inputImages,
	}
	images, err := client.GenerateImage(ctx, req)
	if err != nil {
		return failureResult(task.WrapExecutionError(task.ErrKindProvider, "image generation failed", err))
	}
	if len(images) == 0 {
		return failureResult(task.NewExecutionError(task.ErrKindProvider, "image generation returned no images"))
	}
	img := images[0]
	ai := task.AiResult{
		Kind:   task.AiKindImage,
		Mime:   "image/" + img.Format,
		Meta:   task.AiResultMeta{Provider: providerName, Model: client.DefaultImageModel()},
	}
	switch {
	case img.URL != "":
		ai.Format = task.AiFormatURL
		ai.Value = img.URL
	case img.Base64 != "":
		ai.Format = task.AiFormatBase64
		ai.Value = img.Base64
	}
	if err := ai.Validate(); err != nil {
		return failureResult(err.(*task.ExecutionError))
	}
	return Result{Success: true, Content: ai.Value, AiResult: ai, Model: ai.Meta.Model}
}

// runSingleCall performs a plain non-streaming completion (§4.5 step 5,
// last branch).
func (m *Manager) runSingleCall(ctx context.Context, client provider.Client, providerName, modelName string, t task.Task, a assembledPrompt) Result {
	req := provider.Request{Model: modelName, Messages: baseMessages(a)}
	resp, err := client.Complete(ctx, req)
	if err != nil {
		return failureResult(classifyProviderError(err))
	}
	return resultFromResponse(providerName, modelName, resp)
}

// runStreaming performs a streaming completion, forwarding token deltas
// to opts.OnToken as they arrive (§4.5 step 5).
func (m *Manager) runStreaming(ctx context.Context, client provider.Client, providerName, modelName string, t task.Task, a assembledPrompt, opts Options) Result {
	req := provider.Request{Model: modelName, Messages: baseMessages(a)}
	stream, err := client.Stream(ctx, req)
	if err != nil {
		return failureResult(classifyProviderError(err))
	}
	defer stream.Close()

	var text strings.Builder
	var usage provider.TokenUsage
	stopReason := ""
	for {
		chunk, err := stream.Recv()
		if err != nil {
			return failureResult(task.WrapExecutionError(task.ErrKindProvider, "stream failed", err))
		}
		if chunk.TextDelta != "" {
			text.WriteString(chunk.TextDelta)
			if opts.OnToken != nil {
				opts.OnToken(chunk.TextDelta)
			}
		}
		if chunk.Usage != nil {
			usage = *chunk.Usage
		}
		if chunk.StopReason != "" {
			stopReason = chunk.StopReason
		}
		if chunk.Done {
			break
		}
	}
	resp := provider.Response{Text: text.String(), Usage: usage, StopReason: stopReason}
	return resultFromResponse(providerName, modelName, resp)
}

// runToolLoop drives the bounded tool-calling loop (§4.5.2): up to five
// iterations of model call -> tool dispatch -> result replay, until the
// model stops requesting tools or the iteration cap is hit. A run that
// still has pending tool calls after the cap raises Tool(MaxIterations)
// (spec.md:263) instead of silently returning the last, unresolved
// tool-call response.
func (m *Manager) runToolLoop(ctx context.Context, client provider.Client, providerName, modelName string, t task.Task, a assembledPrompt, tools []toolEntry, opts Options) Result {
	defs := make([]provider.ToolDefinition, len(tools))
	for i, te := range tools {
		defs[i] = provider.ToolDefinition{Name: te.wireName(), Description: te.def.Description, InputSchema: te.def.InputSchema}
	}

	messages := baseMessages(a)
	var totalUsage provider.TokenUsage

	for iter := 0; iter < maxToolIterations; iter++ {
		req := provider.Request{Model: modelName, Messages: messages, Tools: defs, ToolChoice: provider.ToolChoiceAuto}
		resp, err := client.Complete(ctx, req)
		if err != nil {
			return failureResult(classifyProviderError(err))
		}
		totalUsage = accumulateUsage(totalUsage, resp.Usage)

		toolCalls := resp.ToolCalls
		if len(toolCalls) == 0 {
			if fallback, ok := parseFallbackToolCall(resp.Text, iter); ok {
				toolCalls = []provider.ToolCall{fallback}
			}
		}

		if len(toolCalls) == 0 {
			result := resultFromResponse(providerName, modelName, resp)
			result.TokensUsed = totalUsage
			return result
		}

		assistantParts := make([]provider.Part, 0, len(toolCalls)+1)
		if resp.Text != "" {
			assistantParts = append(assistantParts, provider.TextPart{Text: resp.Text})
		}
		for _, call := range toolCalls {
			var input any
			_ = json.Unmarshal(call.Payload, &input)
			assistantParts = append(assistantParts, provider.ToolUsePart{ID: call.ID, Name: call.Name, Input: input})
		}
		messages = append(messages, provider.Message{Role: provider.RoleAssistant, Parts: assistantParts})

		resultParts := make([]provider.Part, 0, len(toolCalls))
		for _, call := range toolCalls {
			content, isError, abortErr := m.dispatchToolCall(ctx, t, call, opts)
			if abortErr != nil {
				return failureResult(abortErr)
			}
			resultParts = append(resultParts, provider.ToolResultPart{ToolUseID: call.ID, Content: content, IsError: isError})
		}
		messages = append(messages, provider.Message{Role: provider.RoleUser, Parts: resultParts})

		if opts.OnProgress != nil {
			opts.OnProgress(fmt.Sprintf("tool loop iteration %d/%d", iter+1, maxToolIterations))
		}
	}

	return failureResult(task.NewExecutionError(task.ErrKindTool, fmt.Sprintf("tool loop exceeded %d iterations with tool calls still pending", maxToolIterations)))
}

// parseFallbackToolCall implements the §4.5.2 step 2 JSON tool-call
// fallback: when a provider returns no native toolCalls, look for a
// {"tool": "...", "parameters": {...}} object in the assistant text,
// either bare or inside a fenced ```json block, and synthesize a
// ToolCall from it.
func parseFallbackToolCall(text string, iter int) (provider.ToolCall, bool) {
	candidate := extractJSONBlock(text)
	if candidate == "" {
		return provider.ToolCall{}, false
	}
	var parsed struct {
		Tool       string          `json:"tool"`
		Parameters json.RawMessage `json:"parameters"`
	}
	if err := json.Unmarshal([]byte(candidate), &parsed); err != nil || parsed.Tool == "" {
		return provider.ToolCall{}, false
	}
	payload := parsed.Parameters
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	return provider.ToolCall{
		ID:      fmt.Sprintf("fallback-%d", iter),
		Name:    parsed.Tool,
		Payload: payload,
	}, true
}

// extractJSONBlock returns the contents of a fenced ```json block if
// present, else the trimmed text itself when it looks like a bare JSON
// object; "" otherwise.
func extractJSONBlock(text string) string {
	trimmed := strings.TrimSpace(text)
	if idx := strings.Index(trimmed, "```json"); idx >= 0 {
		rest := trimmed[idx+len("```json"):]
		if end := strings.Index(rest, "```"); end >= 0 {
			return strings.TrimSpace(rest[:end])
		}
	}
	if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
		return trimmed
	}
	return ""
}

// dispatchToolCall executes one requested tool call against its MCP and
// folds the outcome into tool content. A *task.ExecutionError return
// means the whole execution must abort (§4.3 PermissionError).
func (m *Manager) dispatchToolCall(ctx context.Context, t task.Task, call provider.ToolCall, opts Options) (content string, isError bool, abort *task.ExecutionError) {
	mcpSlug, toolName, ok := splitWireName(call.Name)
	if !ok {
		return toolErrorJSON(fmt.Sprintf("malformed tool name %q", call.Name)), true, nil
	}

	callResult, err := m.mcp.ExecuteMCPTool(ctx, mcpSlug, toolName, json.RawMessage(call.Payload), mcpfacade.CallOptions{
		TaskID: t.ID, ProjectID: t.ProjectID, Source: "aiservice",
	})
	if err != nil {
		if permErr, ok := err.(*mcpfacade.PermissionError); ok {
			return "", true, task.NewExecutionError(task.ErrKindTool, permErr.Error())
		}
		return toolErrorJSON(err.Error()), true, nil
	}
	if !callResult.Success {
		return toolErrorJSON(callResult.Error), true, nil
	}
	return truncate(string(callResult.Data), maxToolContentLen), false, nil
}

func toolErrorJSON(message string) string {
	b, _ := json.Marshal(map[string]string{"error": message})
	return truncate(string(b), maxToolContentLen)
}

func accumulateUsage(total, delta provider.TokenUsage) provider.TokenUsage {
	total.PromptTokens += delta.PromptTokens
	total.CompletionTokens += delta.CompletionTokens
	total.TotalTokens += delta.TotalTokens
	return total
}

func resultFromResponse(providerName, modelName string, resp provider.Response) Result {
	return Result{
		Success:      true,
		Content:      resp.Text,
		AiResult:     task.AiResult{Kind: task.AiKindText, Format: task.AiFormatPlain, Value: resp.Text},
		TokensUsed:   resp.Usage,
		FinishReason: resp.StopReason,
		Model:        modelName,
		Provider:     providerName,
	}
}

func classifyProviderError(err error) *task.ExecutionError {
	return task.WrapExecutionError(task.ErrKindProvider, "provider call failed", err)
}

// postProcess applies §4.5 step 6: strip a single JSON code fence when
// the task asked for JSON output, then append a System Alerts section
// summarizing any MCP pre-flight failure.
func postProcess(r Result, t task.Task, insights []task.MCPContextInsight) Result {
	if !r.Success {
		return r
	}
	if effectiveOutputFormat(t) == task.FormatJSON {
		r.Content = stripJSONFence(r.Content)
		r.AiResult.Value = r.Content
	}
	if alerts := systemAlerts(insights); alerts != "" {
		r.Content += alerts
		r.AiResult.Value = r.Content
	}
	return r
}

func stripJSONFence(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return s
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	return strings.TrimSpace(trimmed)
}

func systemAlerts(insights []task.MCPContextInsight) string {
	var failed []string
	for _, ins := range insights {
		if ins.HasError() {
			failed = append(failed, fmt.Sprintf("%s: %s", ins.Name, ins.Error))
		}
	}
	if len(failed) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n\n---\n### System Alerts\n")
	for _, f := range failed {
		b.WriteString("- " + f + "\n")
	}
	return b.String()
}
