package aiservice

import (
	"context"
	"strings"

	"github.com/flowcraft/execore/task"
	"github.com/flowcraft/execore/toolpolicy"
)

// preflightMCPs resolves each required MCP, lists its tools, and
// captures the result into a MCPContextInsight (§4.5 step 3). Errors are
// captured on the insight, never propagated — a broken MCP must not
// abort prompt assembly.
func (m *Manager) preflightMCPs(ctx context.Context, required []string, taskID int) []task.MCPContextInsight {
	insights := make([]task.MCPContextInsight, 0, len(required))
	for _, name := range required {
		insights = append(insights, m.preflightOne(ctx, name, taskID))
	}
	return insights
}

func (m *Manager) preflightOne(ctx context.Context, name string, taskID int) task.MCPContextInsight {
	server, ok := m.mcp.FindMCPByName(name)
	if !ok {
		return task.MCPContextInsight{Name: name, Error: "mcp not configured"}
	}
	insight := task.MCPContextInsight{Name: server.Name, Description: server.Description, Endpoint: server.Endpoint}
	tools, err := m.mcp.ListTools(ctx, server.Slug, taskID)
	if err != nil {
		insight.Error = err.Error()
		return insight
	}
	for _, tl := range tools {
		insight.RecommendedTools = append(insight.RecommendedTools, tl.Name)
	}
	return insight
}

// collectTools gathers tool definitions from every required MCP and
// prefixes each name with "<mcp>_" (§4.5.2). Policy is evaluated once
// over the whole candidate set so a host policy can reason about it as
// a turn, not tool-by-tool.
func (m *Manager) collectTools(ctx context.Context, required []string, taskID int) []toolEntry {
	var candidates []toolEntry
	for _, name := range required {
		server, ok := m.mcp.FindMCPByName(name)
		if !ok {
			continue
		}
		defs, err := m.mcp.ListTools(ctx, server.Slug, taskID)
		if err != nil {
			continue
		}
		for _, def := range defs {
			candidates = append(candidates, toolEntry{mcpSlug: server.Slug, def: def})
		}
	}
	if m.policy == nil || len(candidates) == 0 {
		return candidates
	}

	meta := make([]toolpolicy.ToolMetadata, len(candidates))
	for i, c := range candidates {
		meta[i] = toolpolicy.ToolMetadata{ID: c.wireName()}
	}
	decision := m.policy.Decide(meta)
	if decision.Allowed == nil {
		return candidates
	}
	out := make([]toolEntry, 0, len(candidates))
	for _, c := range candidates {
		if contains(decision.Allowed, c.wireName()) {
			out = append(out, c)
		}
	}
	return out
}

type toolEntry struct {
	mcpSlug string
	def     task.ToolDefinition
}

func (e toolEntry) wireName() string { return e.mcpSlug + "_" + e.def.Name }

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// splitWireName recovers "<mcp>" and "<remote tool>" from a
// "<mcp>_<remote>" wire-format tool name (§4.5.2 step 4).
func splitWireName(wire string) (mcpSlug, toolName string, ok bool) {
	idx := strings.Index(wire, "_")
	if idx < 0 {
		return "", "", false
	}
	return wire[:idx], wire[idx+1:], true
}
