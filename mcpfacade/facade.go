// Package mcpfacade gives the AI Service Manager uniform access to tool
// listing and invocation across configured MCP servers (§4.3). It wraps
// one transport-agnostic Caller per server, the way the teacher runtime
// wraps stdio/HTTP MCP clients behind a single Caller interface.
package mcpfacade

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/flowcraft/execore/task"
)

// Caller invokes a single MCP server's tools. Transport-specific clients
// (stdio, HTTP/SSE, JSON-RPC over a socket) implement this; the facade
// never talks to a transport directly.
type Caller interface {
	ListTools(ctx context.Context) ([]task.ToolDefinition, error)
	CallTool(ctx context.Context, tool string, args json.RawMessage) (result json.RawMessage, isError bool, err error)
}

// MCP describes one configured MCP server.
type MCP struct {
	ID          string
	Name        string
	Slug        string
	Description string
	Endpoint    string
	Caller      Caller
}

// PermissionError marks an MCP failure that must abort the whole
// execution rather than be captured as a tool message (§4.3).
type PermissionError struct {
	Message string
}

func (e *PermissionError) Error() string { return e.Message }

// CallOptions carries call-site correlation data used for telemetry and
// per-task serialization (§4.3 invariant).
type CallOptions struct {
	TaskID    int
	ProjectID int
	Source    string
}

// CallResult is the outcome of one executeMCPTool call (§4.3).
type CallResult struct {
	Success       bool
	Data          json.RawMessage
	Error         string
	ExecutionTime time.Duration
}

// Facade exposes listMCPs/findMCPByName/listTools/executeMCPTool to the
// AI Service Manager and layers task-level MCP config overrides over
// project-level configuration (§4.3).
type Facade struct {
	mu      sync.RWMutex
	servers map[string]MCP // keyed by slug

	// perTaskMu serializes concurrent executeMCPTool calls for the same
	// task (§4.3 invariant: stateful MCP sessions must not interleave).
	perTaskMu map[int]*sync.Mutex

	projectOverrides map[string]task.MCPOverride // keyed by slug
	taskOverrides    map[int]map[string]task.MCPOverride

	// toolSchemas caches each server's tool input schemas, keyed by slug
	// then tool name, so executeMCPTool can validate arguments locally
	// before a round trip (§4.3).
	toolSchemas map[string]map[string]json.RawMessage
}

// New constructs an empty Facade.
func New() *Facade {
	return &Facade{
		servers:          make(map[string]MCP),
		perTaskMu:        make(map[int]*sync.Mutex),
		projectOverrides: make(map[string]task.MCPOverride),
		taskOverrides:    make(map[int]map[string]task.MCPOverride),
		toolSchemas:      make(map[string]map[string]json.RawMessage),
	}
}

// NormalizeSlug lowercases name and strips a trailing "-mcp" or
// "-server" suffix (§4.3).
func NormalizeSlug(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.TrimSuffix(s, "-mcp")
	s = strings.TrimSuffix(s, "-server")
	return s
}

// SetRuntimeServers replaces the registered server set.
func (f *Facade) SetRuntimeServers(servers []MCP) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.servers = make(map[string]MCP, len(servers))
	for _, s := range servers {
		slug := s.Slug
		if slug == "" {
			slug = NormalizeSlug(s.Name)
		}
		s.Slug = slug
		f.servers[slug] = s
	}
}

// SetProjectOverrides installs project-level MCP env/context overrides.
func (f *Facade) SetProjectOverrides(overrides map[string]task.MCPOverride) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.projectOverrides = overrides
}

// SetTaskOverrides installs task-scoped MCP overrides. A server entry in
// mcpConfig wins entirely over the project-level entry for that server
// (shallow, per-server override — §4.3).
func (f *Facade) SetTaskOverrides(taskID int, mcpConfig map[string]task.MCPOverride) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.taskOverrides[taskID] = mcpConfig
}

// ClearTaskOverrides removes task-scoped overrides (§5). Nothing in this
// module calls it; task overrides stay in place until it is called.
func (f *Facade) ClearTaskOverrides(taskID int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.taskOverrides, taskID)
	delete(f.perTaskMu, taskID)
}

// ListMCPs returns every configured server.
func (f *Facade) ListMCPs() []MCP {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]MCP, 0, len(f.servers))
	for _, s := range f.servers {
		out = append(out, s)
	}
	return out
}

// FindMCPByName resolves a server by slug or display name (§4.3).
func (f *Facade) FindMCPByName(nameOrSlug string) (MCP, bool) {
	slug := NormalizeSlug(nameOrSlug)
	f.mu.RLock()
	defer f.mu.RUnlock()
	if s, ok := f.servers[slug]; ok {
		return s, true
	}
	for _, s := range f.servers {
		if strings.EqualFold(s.Name, nameOrSlug) {
			return s, true
		}
	}
	return MCP{}, false
}

// EffectiveOverride merges project and task overrides for one server,
// with the task entry entirely replacing the project entry when present
// (§4.3).
func (f *Facade) EffectiveOverride(taskID int, slug string) task.MCPOverride {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if perTask, ok := f.taskOverrides[taskID]; ok {
		if o, ok := perTask[slug]; ok {
			return o
		}
	}
	return f.projectOverrides[slug]
}

// ListTools lists the tools exposed by one MCP server.
func (f *Facade) ListTools(ctx context.Context, mcpID string, taskID int) ([]task.ToolDefinition, error) {
	mcp, ok := f.FindMCPByName(mcpID)
	if !ok {
		return nil, fmt.Errorf("mcpfacade: unknown mcp %q", mcpID)
	}
	tools, err := mcp.Caller.ListTools(ctx)
	if err != nil {
		return nil, err
	}
	f.cacheToolSchemas(mcp.Slug, tools)
	return tools, nil
}

func (f *Facade) cacheToolSchemas(slug string, tools []task.ToolDefinition) {
	byName := make(map[string]json.RawMessage, len(tools))
	for _, t := range tools {
		byName[t.Name] = t.InputSchema
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toolSchemas[slug] = byName
}

func (f *Facade) cachedToolSchema(slug, toolName string) json.RawMessage {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.toolSchemas[slug][toolName]
}

// ExecuteMCPTool invokes one tool on one server, serializing concurrent
// calls for the same task (§4.3 invariant). Errors classified as
// permission errors are returned to the caller as *PermissionError so
// the AI Service Manager can abort the whole execution (§4.3); every
// other tool error is captured into CallResult so the tool loop can show
// it to the model. An unknown mcpID is returned as a plain error.
func (f *Facade) ExecuteMCPTool(ctx context.Context, mcpID, toolName string, args json.RawMessage, opts CallOptions) (CallResult, error) {
	mcp, ok := f.FindMCPByName(mcpID)
	if !ok {
		return CallResult{}, fmt.Errorf("mcpfacade: unknown mcp %q", mcpID)
	}

	if schema := f.cachedToolSchema(mcp.Slug, toolName); len(schema) > 0 {
		if err := ValidateArguments(schema, args); err != nil {
			execErr := task.NewExecutionError(task.ErrKindTool, err.Error())
			return CallResult{Success: false, Error: execErr.Error()}, nil
		}
	}

	lock := f.taskLock(opts.TaskID)
	lock.Lock()
	defer lock.Unlock()

	start := time.Now()
	result, isError, err := mcp.Caller.CallTool(ctx, toolName, args)
	elapsed := time.Since(start)

	var permErr *PermissionError
	if err != nil {
		if asPermissionError(err, &permErr) {
			return CallResult{}, permErr
		}
		return CallResult{Success: false, Error: err.Error(), ExecutionTime: elapsed}, nil
	}
	if isError {
		return CallResult{Success: false, Error: string(result), ExecutionTime: elapsed}, nil
	}
	return CallResult{Success: true, Data: result, ExecutionTime: elapsed}, nil
}

func (f *Facade) taskLock(taskID int) *sync.Mutex {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.perTaskMu[taskID]
	if !ok {
		l = &sync.Mutex{}
		f.perTaskMu[taskID] = l
	}
	return l
}

func asPermissionError(err error, target **PermissionError) bool {
	if pe, ok := err.(*PermissionError); ok {
		*target = pe
		return true
	}
	return false
}
