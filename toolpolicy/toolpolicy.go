// Package toolpolicy gates which MCP tools the AI Service Manager's tool
// loop (§4.5.2) may dispatch, independent of which tools a task's
// required MCPs happen to expose. The engine shape (allow/block by id or
// tag) is modeled on the teacher's policy/basic engine.
package toolpolicy

import "strings"

// ToolMetadata is the subset of a tool's identity the engine filters on.
type ToolMetadata struct {
	ID   string
	Tags []string
}

// Decision is the result of evaluating a policy for one tool-loop turn.
type Decision struct {
	Allowed []string
}

// Engine decides which tools are allowed for a turn.
type Engine interface {
	Decide(requested []ToolMetadata) Decision
}

// Options configures a basic allow/block Engine.
type Options struct {
	AllowTags  []string
	BlockTags  []string
	AllowTools []string
	BlockTools []string
}

// Basic implements Engine with allow/block filtering; empty allow lists
// mean "no restriction" rather than "allow nothing" (§4.5.2: a host that
// does not configure a policy must not silently starve the tool loop).
type Basic struct {
	allowTags  map[string]struct{}
	blockTags  map[string]struct{}
	allowTools map[string]struct{}
	blockTools map[string]struct{}
}

var _ Engine = (*Basic)(nil)

// New builds a Basic engine from Options.
func New(opts Options) *Basic {
	return &Basic{
		allowTags:  toSet(opts.AllowTags),
		blockTags:  toSet(opts.BlockTags),
		allowTools: toSet(opts.AllowTools),
		blockTools: toSet(opts.BlockTools),
	}
}

func (e *Basic) Decide(requested []ToolMetadata) Decision {
	allowed := make([]string, 0, len(requested))
	for _, t := range requested {
		if e.isAllowed(t) {
			allowed = append(allowed, t.ID)
		}
	}
	return Decision{Allowed: allowed}
}

func (e *Basic) isAllowed(meta ToolMetadata) bool {
	if _, blocked := e.blockTools[meta.ID]; blocked {
		return false
	}
	for _, tag := range meta.Tags {
		if _, blocked := e.blockTags[tag]; blocked {
			return false
		}
	}
	if len(e.allowTools) > 0 {
		_, ok := e.allowTools[meta.ID]
		return ok
	}
	if len(e.allowTags) > 0 {
		for _, tag := range meta.Tags {
			if _, ok := e.allowTags[tag]; ok {
				return true
			}
		}
		return false
	}
	return true
}

func toSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			set[trimmed] = struct{}{}
		}
	}
	return set
}
