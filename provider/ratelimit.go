package provider

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/time/rate"
)

// AdaptiveRateLimiter wraps a Client with an AIMD-style adaptive token
// bucket: it estimates the token cost of each request, blocks the
// caller until capacity is available, and backs off its effective
// tokens-per-minute budget when the wrapped client reports
// ErrRateLimited, recovering gradually on successful calls. Process
// local only; a cluster-coordinated variant would need a replicated
// map, which this module has no dependency for (see DESIGN.md).
type AdaptiveRateLimiter struct {
	mu sync.Mutex

	limiter *rate.Limiter

	currentTPM float64
	minTPM     float64
	maxTPM     float64

	recoveryRate float64
}

// NewAdaptiveRateLimiter constructs a limiter with an initial and
// maximum tokens-per-minute budget. initialTPM defaults to 60000 when
// non-positive; maxTPM is clamped up to initialTPM when smaller.
func NewAdaptiveRateLimiter(initialTPM, maxTPM float64) *AdaptiveRateLimiter {
	if initialTPM <= 0 {
		initialTPM = 60000
	}
	if maxTPM <= 0 || maxTPM < initialTPM {
		maxTPM = initialTPM
	}
	minTPM := initialTPM * 0.1
	if minTPM < 1 {
		minTPM = 1
	}
	recoveryRate := initialTPM * 0.05
	if recoveryRate < 1 {
		recoveryRate = 1
	}
	return &AdaptiveRateLimiter{
		limiter:      rate.NewLimiter(rate.Limit(initialTPM/60.0), int(initialTPM)),
		currentTPM:   initialTPM,
		minTPM:       minTPM,
		maxTPM:       maxTPM,
		recoveryRate: recoveryRate,
	}
}

// Wrap returns a Client that enforces the limiter before delegating
// every call to next.
func (l *AdaptiveRateLimiter) Wrap(next Client) Client {
	if next == nil {
		return nil
	}
	return &limitedClient{next: next, limiter: l}
}

type limitedClient struct {
	next    Client
	limiter *AdaptiveRateLimiter
}

var _ Client = (*limitedClient)(nil)

func (c *limitedClient) Name() string             { return c.next.Name() }
func (c *limitedClient) DefaultModel() string     { return c.next.DefaultModel() }
func (c *limitedClient) DefaultImageModel() string { return c.next.DefaultImageModel() }
func (c *limitedClient) ModelInfo(name string) (ModelInfo, bool) {
	return c.next.ModelInfo(name)
}
func (c *limitedClient) EstimateTokens(text string) int {
	return c.next.EstimateTokens(text)
}
func (c *limitedClient) CalculateCost(usage TokenUsage, model string) float64 {
	return c.next.CalculateCost(usage, model)
}

func (c *limitedClient) Complete(ctx context.Context, req Request) (Response, error) {
	if err := c.limiter.wait(ctx, req); err != nil {
		return Response{}, err
	}
	resp, err := c.next.Complete(ctx, req)
	c.limiter.observe(err)
	return resp, err
}

func (c *limitedClient) Stream(ctx context.Context, req Request) (Streamer, error) {
	if err := c.limiter.wait(ctx, req); err != nil {
		return nil, err
	}
	stream, err := c.next.Stream(ctx, req)
	c.limiter.observe(err)
	return stream, err
}

func (c *limitedClient) GenerateImage(ctx context.Context, req ImageRequest) ([]ImageResult, error) {
	return c.next.GenerateImage(ctx, req)
}

func (l *AdaptiveRateLimiter) wait(ctx context.Context, req Request) error {
	return l.limiter.WaitN(ctx, estimateTokens(req))
}

func (l *AdaptiveRateLimiter) observe(err error) {
	if err == nil {
		l.probe()
		return
	}
	if errors.Is(err, ErrRateLimited) {
		l.backoff()
	}
}

func (l *AdaptiveRateLimiter) backoff() {
	l.mu.Lock()
	defer l.mu.Unlock()
	newTPM := l.currentTPM * 0.5
	if newTPM < l.minTPM {
		newTPM = l.minTPM
	}
	if newTPM == l.currentTPM {
		return
	}
	l.currentTPM = newTPM
	l.limiter.SetLimit(rate.Limit(newTPM / 60.0))
	l.limiter.SetBurst(int(newTPM))
}

func (l *AdaptiveRateLimiter) probe() {
	l.mu.Lock()
	defer l.mu.Unlock()
	newTPM := l.currentTPM + l.recoveryRate
	if newTPM > l.maxTPM {
		newTPM = l.maxTPM
	}
	if newTPM == l.currentTPM {
		return
	}
	l.currentTPM = newTPM
	l.limiter.SetLimit(rate.Limit(newTPM / 60.0))
	l.limiter.SetBurst(int(newTPM))
}

// estimateTokens is a cheap heuristic over a request's message text, used
// only to size the rate-limiter's token cost — separate from the
// adapters' own EstimateTokens methods, which are heuristics as well.
func estimateTokens(req Request) int {
	charCount := 0
	for _, m := range req.Messages {
		for _, p := range m.Parts {
			switch v := p.(type) {
			case TextPart:
				charCount += len(v.Text)
			case ToolResultPart:
				if s, ok := v.Content.(string); ok {
					charCount += len(s)
				}
			}
		}
	}
	if charCount <= 0 {
		return 500
	}
	tokens := charCount / 3
	if tokens < 1 {
		tokens = 1
	}
	return tokens + 500
}
