package bedrock

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/flowcraft/execore/provider"
)

// stubRuntimeClient satisfies RuntimeClient without ever touching a real
// Bedrock Converse request/response body — these tests only exercise
// New's validation, the client's pure metadata methods, and the
// package's name-sanitization helpers.
type stubRuntimeClient struct{}

func (stubRuntimeClient) Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	return nil, nil
}

func (stubRuntimeClient) ConverseStream(ctx context.Context, params *bedrockruntime.ConverseStreamInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseStreamOutput, error) {
	return nil, nil
}

func TestNewRejectsNilRuntimeClient(t *testing.T) {
	if _, err := New(nil, Options{DefaultModel: "anthropic.claude-3-5-sonnet-20241022-v2:0"}); err == nil {
		t.Fatalf("expected an error for a nil RuntimeClient")
	}
}

func TestNewRejectsMissingDefaultModel(t *testing.T) {
	if _, err := New(stubRuntimeClient{}, Options{}); err == nil {
		t.Fatalf("expected an error when DefaultModel is empty")
	}
}

func TestNewDefaultsMaxTokensWhenUnset(t *testing.T) {
	c, err := New(stubRuntimeClient{}, Options{DefaultModel: "amazon.nova-pro-v1:0"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.maxTok != 4096 {
		t.Fatalf("expected default max tokens 4096, got %d", c.maxTok)
	}
}

func TestClientMetadataMethods(t *testing.T) {
	c, err := New(stubRuntimeClient{}, Options{DefaultModel: "amazon.nova-pro-v1:0"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Name() != "bedrock" {
		t.Fatalf("expected provider name bedrock, got %q", c.Name())
	}
	if c.DefaultModel() != "amazon.nova-pro-v1:0" {
		t.Fatalf("expected the configured default model, got %q", c.DefaultModel())
	}
	if c.DefaultImageModel() != "" {
		t.Fatalf("expected no native image model, got %q", c.DefaultImageModel())
	}
	if info, ok := c.ModelInfo("amazon.nova-pro-v1:0"); !ok || info.Name != "amazon.nova-pro-v1:0" {
		t.Fatalf("expected ModelInfo to report the requested model, got %+v, %v", info, ok)
	}
	if _, ok := c.ModelInfo(""); ok {
		t.Fatalf("expected ModelInfo to reject an empty name")
	}
}

func TestCalculateCostScalesWithUsage(t *testing.T) {
	c := &Client{}
	cost := c.CalculateCost(provider.TokenUsage{PromptTokens: 1_000_000, CompletionTokens: 1_000_000}, "amazon.nova-pro-v1:0")
	want := bedrockInputPerMillion + bedrockOutputPerMillion
	if cost != want {
		t.Fatalf("expected cost %v, got %v", want, cost)
	}
}

func TestSanitizeToolNameReplacesDisallowedCharacters(t *testing.T) {
	if got := sanitizeToolName("github.list_issues"); got != "github_list_issues" {
		t.Fatalf("expected dots to be replaced, got %q", got)
	}
	if got := sanitizeToolName("slack-post"); got != "slack-post" {
		t.Fatalf("expected hyphens to pass through unchanged, got %q", got)
	}
	if got := sanitizeToolName("a:b c"); got != "a_b_c" {
		t.Fatalf("expected colon and space to be replaced, got %q", got)
	}
}

func TestNormalizeImageFormatMapsJpgToJpeg(t *testing.T) {
	if got := normalizeImageFormat("jpg"); got != "jpeg" {
		t.Fatalf("expected jpg to normalize to jpeg, got %q", got)
	}
	if got := normalizeImageFormat("gif"); got != "gif" {
		t.Fatalf("expected an unrelated format to pass through unchanged, got %q", got)
	}
}
