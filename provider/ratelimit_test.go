package provider

import (
	"context"
	"testing"
)

type fakeClient struct {
	name   string
	fail   bool
	calls  int
}

var _ Client = (*fakeClient)(nil)

func (c *fakeClient) Name() string             { return c.name }
func (c *fakeClient) DefaultModel() string     { return "fake-model" }
func (c *fakeClient) DefaultImageModel() string { return "" }
func (c *fakeClient) ModelInfo(name string) (ModelInfo, bool) {
	return ModelInfo{Name: name, IsChat: true}, true
}
func (c *fakeClient) EstimateTokens(text string) int { return len(text) }
func (c *fakeClient) CalculateCost(usage TokenUsage, model string) float64 { return 0 }

func (c *fakeClient) Complete(ctx context.Context, req Request) (Response, error) {
	c.calls++
	if c.fail {
		return Response{}, ErrRateLimited
	}
	return Response{Text: "ok"}, nil
}

func (c *fakeClient) Stream(ctx context.Context, req Request) (Streamer, error) {
	return nil, ErrStreamingUnsupported
}

func (c *fakeClient) GenerateImage(ctx context.Context, req ImageRequest) ([]ImageResult, error) {
	return nil, ErrImageUnsupported
}

func TestAdaptiveRateLimiterPassesCallsThrough(t *testing.T) {
	inner := &fakeClient{name: "fake"}
	limiter := NewAdaptiveRateLimiter(600000, 600000)
	wrapped := limiter.Wrap(inner)

	req := Request{Messages: []Message{{Role: RoleUser, Parts: []Part{TextPart{Text: "hello"}}}}}
	resp, err := wrapped.Complete(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text != "ok" {
		t.Fatalf("expected passthrough response, got %q", resp.Text)
	}
	if inner.calls != 1 {
		t.Fatalf("expected 1 delegated call, got %d", inner.calls)
	}
	if wrapped.Name() != "fake" {
		t.Fatalf("expected delegated Name(), got %q", wrapped.Name())
	}
}

func TestAdaptiveRateLimiterBacksOffOnRateLimitError(t *testing.T) {
	inner := &fakeClient{name: "fake", fail: true}
	limiter := NewAdaptiveRateLimiter(1000, 1000)
	wrapped := limiter.Wrap(inner)

	req := Request{Messages: []Message{{Role: RoleUser, Parts: []Part{TextPart{Text: "hello"}}}}}
	before := limiter.currentTPM
	if _, err := wrapped.Complete(context.Background(), req); err == nil {
		t.Fatalf("expected ErrRateLimited to propagate")
	}
	if limiter.currentTPM >= before {
		t.Fatalf("expected backoff to shrink currentTPM below %v, got %v", before, limiter.currentTPM)
	}
}

func TestAdaptiveRateLimiterProbesUpOnSuccess(t *testing.T) {
	inner := &fakeClient{name: "fake"}
	limiter := NewAdaptiveRateLimiter(1000, 2000)
	limiter.currentTPM = 500
	limiter.limiter.SetLimit(limiter.limiter.Limit())

	req := Request{Messages: []Message{{Role: RoleUser, Parts: []Part{TextPart{Text: "hi"}}}}}
	wrapped := limiter.Wrap(inner)
	if _, err := wrapped.Complete(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if limiter.currentTPM <= 500 {
		t.Fatalf("expected probe to grow currentTPM above 500, got %v", limiter.currentTPM)
	}
}
