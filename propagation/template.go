package propagation

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/flowcraft/execore/task"
)

// eachRe matches a {{#each}}...{{/each}} block for per-item formatting.
var eachRe = regexp.MustCompile(`(?s)\{\{#each\}\}(.*?)\{\{/each\}\}`)

// renderCustomTemplate renders a host-supplied template containing
// {{results}}, {{count}}, and an optional {{#each}}…{{/each}} block with
// per-item placeholders (§4.2). Per-item placeholders supported inside
// the each-block: {{title}}, {{id}}, {{status}}, {{content}}.
func renderCustomTemplate(tmpl string, results []task.TaskResult, policy Policy) string {
	out := tmpl
	if m := eachRe.FindStringSubmatch(tmpl); m != nil {
		itemTmpl := m[1]
		var items strings.Builder
		for _, r := range results {
			items.WriteString(renderEachItem(itemTmpl, r, policy))
		}
		out = eachRe.ReplaceAllLiteralString(out, items.String())
	}
	out = strings.ReplaceAll(out, "{{results}}", render(results, policy))
	out = strings.ReplaceAll(out, "{{count}}", strconv.Itoa(len(results)))
	return out
}

// render is the default-item renderer used by {{results}} substitution
// inside a custom template; the built-in template uses Propagator.render.
func render(results []task.TaskResult, policy Policy) string {
	var b strings.Builder
	for _, r := range results {
		b.WriteString(renderDefaultItem(r, policy))
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderEachItem(itemTmpl string, r task.TaskResult, policy Policy) string {
	out := itemTmpl
	out = strings.ReplaceAll(out, "{{title}}", taskTitle(r))
	out = strings.ReplaceAll(out, "{{id}}", strconv.Itoa(r.ProjectSequence))
	out = strings.ReplaceAll(out, "{{status}}", string(r.Status))
	out = strings.ReplaceAll(out, "{{content}}", bodyForMode(r, policy))
	return out
}

func taskTitle(r task.TaskResult) string {
	if t, ok := r.Metadata["title"].(string); ok && t != "" {
		return t
	}
	return "Task #" + strconv.Itoa(r.ProjectSequence)
}
