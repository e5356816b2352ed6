package aiservice

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/flowcraft/execore/mcpfacade"
	"github.com/flowcraft/execore/provider"
	"github.com/flowcraft/execore/task"
)

// fakeProviderClient is a minimal provider.Client double: it plays back a
// fixed sequence of Complete responses (one per tool-loop iteration, the
// last entry repeats for any further call) so tests can drive the tool
// loop through a known number of turns.
type fakeProviderClient struct {
	name      string
	responses []provider.Response
	err       error
	calls     int
}

var _ provider.Client = (*fakeProviderClient)(nil)

func (c *fakeProviderClient) Name() string {
	if c.name == "" {
		return "fake"
	}
	return c.name
}
func (c *fakeProviderClient) DefaultModel() string      { return "fake-model" }
func (c *fakeProviderClient) DefaultImageModel() string { return "" }
func (c *fakeProviderClient) ModelInfo(name string) (provider.ModelInfo, bool) {
	return provider.ModelInfo{Name: name, IsChat: true}, true
}
func (c *fakeProviderClient) EstimateTokens(text string) int { return len(text) }
func (c *fakeProviderClient) CalculateCost(provider.TokenUsage, string) float64 { return 0 }

func (c *fakeProviderClient) Complete(ctx context.Context, req provider.Request) (provider.Response, error) {
	if c.err != nil {
		return provider.Response{}, c.err
	}
	if len(c.responses) == 0 {
		return provider.Response{}, errors.New("fakeProviderClient: no response configured")
	}
	idx := c.calls
	if idx >= len(c.responses) {
		idx = len(c.responses) - 1
	}
	c.calls++
	return c.responses[idx], nil
}

func (c *fakeProviderClient) Stream(ctx context.Context, req provider.Request) (provider.Streamer, error) {
	return nil, provider.ErrStreamingUnsupported
}

func (c *fakeProviderClient) GenerateImage(ctx context.Context, req provider.ImageRequest) ([]provider.ImageResult, error) {
	return nil, provider.ErrImageUnsupported
}

// newTestRegistry builds a Registry with one fakeProviderClient registered
// and enabled per name given, in order.
func newTestRegistry(t *testing.T, names ...string) *provider.Registry {
	t.Helper()
	reg := provider.NewRegistry()
	reg.SetEnabledProviders(names)
	for _, n := range names {
		reg.Register(&fakeProviderClient{name: n})
	}
	return reg
}

// fakeCaller is a minimal mcpfacade.Caller double driven by fixed tool
// definitions and call results.
type fakeCaller struct {
	toolDefs   []task.ToolDefinition
	callResult json.RawMessage
	callIsErr  bool
	callErr    error
	calls      int
}

var _ mcpfacade.Caller = (*fakeCaller)(nil)

func (c *fakeCaller) ListTools(ctx context.Context) ([]task.ToolDefinition, error) {
	return c.toolDefs, nil
}

func (c *fakeCaller) CallTool(ctx context.Context, toolName string, args json.RawMessage) (json.RawMessage, bool, error) {
	c.calls++
	if c.callErr != nil {
		return nil, false, c.callErr
	}
	return c.callResult, c.callIsErr, nil
}

// newTestFacade registers one MCP server per slug, each exposing a single
// tool named toolName, backed by a fresh fakeCaller so callers can inspect
// per-server call counts.
func newTestFacade(t *testing.T, servers map[string]string) (*mcpfacade.Facade, map[string]*fakeCaller) {
	t.Helper()
	f := mcpfacade.New()
	callers := make(map[string]*fakeCaller, len(servers))
	var mcps []mcpfacade.MCP
	for slug, toolName := range servers {
		c := &fakeCaller{toolDefs: []task.ToolDefinition{{Name: toolName, Description: "a test tool"}}}
		callers[slug] = c
		mcps = append(mcps, mcpfacade.MCP{Slug: slug, Name: slug, Description: "test server " + slug, Caller: c})
	}
	f.SetRuntimeServers(mcps)
	return f, callers
}
