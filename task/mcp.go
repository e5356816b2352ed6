package task

import "encoding/json"

// MCPContextInsight is a digest of one required MCP, assembled by the AI
// Service Manager's pre-flight step (§4.5 step 3) and rendered into the
// system prompt (§4.5 step 4).
type MCPContextInsight struct {
	Name             string
	Description      string
	Endpoint         string
	RecommendedTools []string
	// SampleOutput is the (optional) result of a pre-flight summary/describe
	// call, truthful to whatever the server returned.
	SampleOutput string
	Error        string
	UserContext  string
	EnvVars      map[string]string
}

// HasError reports whether the pre-flight for this MCP failed; used to
// decide whether a "System Alerts" section is appended to AI output
// (§4.5 step 6).
func (i MCPContextInsight) HasError() bool {
	return i.Error != ""
}

// ToolDefinition describes one tool exposed by an MCP server, keyed by
// its remote (unprefixed) name. The AI Service Manager prefixes this with
// "<mcp-slug>_" before presenting it to the model (§3, §4.5.2).
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema json.RawMessage
}

// ToolCall is a single tool invocation, either requested natively by a
// provider or synthesized from a JSON fallback parse (§4.5.2 step 2). Name
// is always the prefixed "<mcp-slug>_<remote-tool>" form once resolved.
type ToolCall struct {
	ID      string
	Name    string
	Arguments json.RawMessage
}
