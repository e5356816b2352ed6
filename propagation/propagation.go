// Package propagation selects which prior task results are relevant to a
// task about to run and formats them into the context that gets woven
// into the task's prompt (§4.2). It resolves no macros itself; macro
// resolution has exactly one implementation, in package macro (§9).
package propagation

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/flowcraft/execore/task"
)

// Mode selects how prior results are rendered into the assembled context
// string (§4.2).
type Mode string

// Recognized propagation modes.
const (
	ModeFull      Mode = "full"
	ModeSummary   Mode = "summary"
	ModeSelective Mode = "selective"
	ModeNone      Mode = "none"
)

// DefaultMaxContextSize is the default character budget for the
// assembled context string (§4.2).
const DefaultMaxContextSize = 8000

const truncationMarker = "\n\n[... context truncated ...]"

// Policy configures one task's context propagation (§4.2).
type Policy struct {
	IncludeParentResults bool
	IncludeSiblingResults bool
	Mode                 Mode
	MaxContextSize       int
	// FieldWhitelist is consulted only when Mode == ModeSelective.
	FieldWhitelist []string
	// Template overrides the default Markdown-section formatting. Empty
	// means use the built-in template.
	Template string
}

// PropagatedContext is the output of one Propagate call (§4.2).
type PropagatedContext struct {
	PreviousResults    []task.TaskResult
	ContextString      string
	ExtractedVariables map[string]string
	TotalSize          int
	WasTruncated       bool
}

// Propagator assembles PropagatedContext for a task given its
// dependencies and the full ordered list of prior results.
type Propagator struct{}

// New constructs a Propagator.
func New() *Propagator {
	return &Propagator{}
}

// Propagate selects and formats prior results for the given task
// (§4.2). allResults must be in append order (ascending projectSequence
// within a stage, §5); dependencies are the task's effective dependency
// set (task.Task.EffectiveDependencyIDs()).
func (p *Propagator) Propagate(dependencies []int, allResults []task.TaskResult, policy Policy) PropagatedContext {
	if policy.MaxContextSize <= 0 {
		policy.MaxContextSize = DefaultMaxContextSize
	}

	selected := p.selectResults(dependencies, allResults, policy)
	if policy.Mode == ModeNone {
		return PropagatedContext{PreviousResults: selected, ExtractedVariables: extractVariables(selected)}
	}

	body := p.render(selected, policy)
	truncated := false
	if len(body) > policy.MaxContextSize {
		cut := policy.MaxContextSize
		if cut < 0 {
			cut = 0
		}
		body = body[:cut] + truncationMarker
		truncated = true
	}

	return PropagatedContext{
		PreviousResults:    selected,
		ContextString:      body,
		ExtractedVariables: extractVariables(selected),
		TotalSize:          len(body),
		WasTruncated:       truncated,
	}
}

// selectResults implements the §4.2 selection policy: explicit
// dependencies take precedence; if empty and IncludeParentResults is
// set, fall back to every prior result by ascending task id.
func (p *Propagator) selectResults(dependencies []int, allResults []task.TaskResult, policy Policy) []task.TaskResult {
	if len(dependencies) > 0 {
		wanted := make(map[int]bool, len(dependencies))
		for _, d := range dependencies {
			wanted[d] = true
		}
		out := make([]task.TaskResult, 0, len(dependencies))
		for _, r := range allResults {
			if wanted[r.ProjectSequence] {
				out = append(out, r)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ProjectSequence < out[j].ProjectSequence })
		return out
	}
	if policy.IncludeParentResults {
		out := make([]task.TaskResult, len(allResults))
		copy(out, allResults)
		sort.Slice(out, func(i, j int) bool { return out[i].TaskID < out[j].TaskID })
		return out
	}
	return nil
}

// render formats selected results using policy.Template if set, or the
// default Markdown-section template otherwise (§4.2).
func (p *Propagator) render(results []task.TaskResult, policy Policy) string {
	if policy.Template != "" {
		return renderCustomTemplate(policy.Template, results, policy)
	}
	var b strings.Builder
	for _, r := range results {
		b.WriteString(renderDefaultItem(r, policy))
		b.WriteString("\n\n")
		if attachments := renderTextAttachments(r); attachments != "" {
			b.WriteString(attachments)
			b.WriteString("\n\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderDefaultItem(r task.TaskResult, policy Policy) string {
	title := fmt.Sprintf("Task #%d", r.ProjectSequence)
	body := bodyForMode(r, policy)
	return fmt.Sprintf("### %s (Task #%d)\nStatus: %s | %s\n\n%s",
		title, r.ProjectSequence, r.Status, timestampOf(r), body)
}

func timestampOf(r task.TaskResult) string {
	if r.EndTime.IsZero() {
		return "n/a"
	}
	return r.EndTime.Format(time.RFC3339)
}

func bodyForMode(r task.TaskResult, policy Policy) string {
	content := task.ContentOf(r.Output)
	switch policy.Mode {
	case ModeSummary:
		return truncateAtBoundary(content, policy.MaxContextSize/3)
	case ModeSelective:
		return selectiveBody(r, policy.FieldWhitelist)
	default:
		return content
	}
}

// truncateAtBoundary truncates s to at most limit characters, preferring
// to cut at the last sentence or newline boundary before the limit
// (§4.2 summary mode).
func truncateAtBoundary(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	cut := s[:limit]
	if i := strings.LastIndexAny(cut, ".\n"); i > 0 {
		cut = cut[:i+1]
	}
	return strings.TrimSpace(cut) + " [...]"
}

func selectiveBody(r task.TaskResult, fields []string) string {
	if m, ok := r.Output.(map[string]any); ok {
		var parts []string
		for _, f := range fields {
			if v, ok := m[f]; ok {
				parts = append(parts, fmt.Sprintf("%s: %v", f, v))
			}
		}
		return strings.Join(parts, "\n")
	}
	return task.ContentOf(r.Output)
}

// renderTextAttachments inlines text-encoded attachments under a
// dedicated section; binary/base64 attachments are never inlined (§4.2).
func renderTextAttachments(r task.TaskResult) string {
	var texts []task.Attachment
	for _, a := range r.Attachments {
		if a.Encoding == task.EncodingText {
			texts = append(texts, a)
		}
	}
	if len(texts) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("### Attached Files Content\n")
	for _, a := range texts {
		fmt.Fprintf(&b, "#### %s\n%s\n", a.Name, a.Data)
	}
	return b.String()
}

// extractVariables is a placeholder for host-defined variable extraction
// hooks; the base propagator does not itself infer variables from result
// bodies.
func extractVariables([]task.TaskResult) map[string]string {
	return map[string]string{}
}
