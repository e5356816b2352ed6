package aiservice

import (
	"testing"

	"github.com/flowcraft/execore/provider"
)

func TestExtractJSONBlockFromFencedBlock(t *testing.T) {
	text := "Sure, here you go:\n```json\n{\"tool\": \"x\"}\n```\nthanks"
	got := extractJSONBlock(text)
	if got != `{"tool": "x"}` {
		t.Fatalf("expected the fenced JSON body, got %q", got)
	}
}

func TestExtractJSONBlockFromBareObject(t *testing.T) {
	text := `  {"tool": "x", "parameters": {}}  `
	got := extractJSONBlock(text)
	if got != `{"tool": "x", "parameters": {}}` {
		t.Fatalf("expected the trimmed bare object, got %q", got)
	}
}

func TestExtractJSONBlockNoCandidate(t *testing.T) {
	if got := extractJSONBlock("just some prose"); got != "" {
		t.Fatalf("expected no candidate, got %q", got)
	}
}

// TestParseFallbackToolCallSynthesizesCall pins §4.5.2 step 2: a provider
// that returns no native tool calls but emits a {"tool",...} JSON object
// in its text must still produce a dispatchable ToolCall.
func TestParseFallbackToolCallSynthesizesCall(t *testing.T) {
	call, ok := parseFallbackToolCall("```json\n{\"tool\": \"slack_post\", \"parameters\": {\"channel\": \"general\"}}\n```", 2)
	if !ok {
		t.Fatalf("expected a fallback call to be parsed")
	}
	if call.Name != "slack_post" {
		t.Fatalf("expected tool name slack_post, got %q", call.Name)
	}
	if string(call.Payload) != `{"channel": "general"}` {
		t.Fatalf("expected parameters to become the payload, got %s", call.Payload)
	}
}

func TestParseFallbackToolCallMissingToolFieldFails(t *testing.T) {
	_, ok := parseFallbackToolCall(`{"parameters": {}}`, 0)
	if ok {
		t.Fatalf("expected no fallback call without a tool field")
	}
}

func TestParseFallbackToolCallPlainTextFails(t *testing.T) {
	_, ok := parseFallbackToolCall("I think the answer is 42.", 0)
	if ok {
		t.Fatalf("expected plain prose to never parse as a tool call")
	}
}

func TestParseFallbackToolCallDefaultsEmptyParameters(t *testing.T) {
	call, ok := parseFallbackToolCall(`{"tool": "github_list_issues"}`, 1)
	if !ok {
		t.Fatalf("expected a fallback call to be parsed")
	}
	if string(call.Payload) != "{}" {
		t.Fatalf("expected empty object payload when parameters is omitted, got %s", call.Payload)
	}
}

func TestAccumulateUsageSumsAcrossIterations(t *testing.T) {
	total := provider.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}
	total = accumulateUsage(total, provider.TokenUsage{PromptTokens: 3, CompletionTokens: 2, TotalTokens: 5})
	if total.PromptTokens != 13 || total.CompletionTokens != 7 || total.TotalTokens != 20 {
		t.Fatalf("expected summed usage, got %+v", total)
	}
}
