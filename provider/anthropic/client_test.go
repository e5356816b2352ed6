package anthropic

import (
	"context"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/flowcraft/execore/provider"
)

// stubMessagesClient satisfies MessagesClient without ever touching a
// real Anthropic SSE stream or response body — every method is a no-op,
// since the tests here only exercise New's validation and the client's
// pure metadata methods, never an actual Complete/Stream round trip
// (those depend on exact Anthropic SDK struct shapes this environment
// cannot verify).
type stubMessagesClient struct{}

func (stubMessagesClient) New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error) {
	return nil, nil
}

func (stubMessagesClient) NewStreaming(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) *streamAdapter {
	return nil
}

func TestNewRejectsNilClient(t *testing.T) {
	if _, err := New(nil, Options{DefaultModel: "claude-3-opus"}); err == nil {
		t.Fatalf("expected an error for a nil MessagesClient")
	}
}

func TestNewRejectsMissingDefaultModel(t *testing.T) {
	if _, err := New(stubMessagesClient{}, Options{}); err == nil {
		t.Fatalf("expected an error when DefaultModel is empty")
	}
}

func TestNewDefaultsMaxTokensWhenUnset(t *testing.T) {
	c, err := New(stubMessagesClient{}, Options{DefaultModel: "claude-3-opus"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.maxTok != 4096 {
		t.Fatalf("expected default max tokens 4096, got %d", c.maxTok)
	}
}

func TestClientMetadataMethods(t *testing.T) {
	c, err := New(stubMessagesClient{}, Options{DefaultModel: "claude-3-opus", MaxTokens: 1000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Name() != "anthropic" {
		t.Fatalf("expected provider name anthropic, got %q", c.Name())
	}
	if c.DefaultModel() != "claude-3-opus" {
		t.Fatalf("expected the configured default model, got %q", c.DefaultModel())
	}
	if c.DefaultImageModel() != "" {
		t.Fatalf("expected no native image model, got %q", c.DefaultImageModel())
	}
	if info, ok := c.ModelInfo("claude-3-opus"); !ok || info.Name != "claude-3-opus" {
		t.Fatalf("expected ModelInfo to report the requested model, got %+v, %v", info, ok)
	}
	if _, ok := c.ModelInfo(""); ok {
		t.Fatalf("expected ModelInfo to reject an empty name")
	}
}

func TestEstimateTokensApproximatesFourCharsPerToken(t *testing.T) {
	c := &Client{}
	if got := c.EstimateTokens(""); got != 0 {
		t.Fatalf("expected 0 tokens for empty text, got %d", got)
	}
	if got := c.EstimateTokens("abcd"); got != 1 {
		t.Fatalf("expected 1 token for 4 chars, got %d", got)
	}
	if got := c.EstimateTokens("abcdefgh"); got != 2 {
		t.Fatalf("expected 2 tokens for 8 chars, got %d", got)
	}
}

func TestCalculateCostScalesWithUsage(t *testing.T) {
	c := &Client{}
	cost := c.CalculateCost(provider.TokenUsage{PromptTokens: 1_000_000, CompletionTokens: 1_000_000}, "claude-3-opus")
	want := anthropicInputPerMillion + anthropicOutputPerMillion
	if cost != want {
		t.Fatalf("expected cost %v, got %v", want, cost)
	}
}

func TestIsRateLimitedMatches429(t *testing.T) {
	if !isRateLimited(errRateLimit{}) {
		t.Fatalf("expected a 429 error to be classified as rate limited")
	}
	if isRateLimited(nil) {
		t.Fatalf("expected nil to never be rate limited")
	}
}

type errRateLimit struct{}

func (errRateLimit) Error() string { return "received 429 status" }

func TestNormalizeMimeMapsJpgToJpeg(t *testing.T) {
	if got := normalizeMime("jpg"); got != "jpeg" {
		t.Fatalf("expected jpg to normalize to jpeg, got %q", got)
	}
	if got := normalizeMime("png"); got != "png" {
		t.Fatalf("expected png to pass through unchanged, got %q", got)
	}
}
