package aiservice

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/flowcraft/execore/provider"
	"github.com/flowcraft/execore/task"
)

// assembledPrompt carries the system/user text plus any input images
// collected for the request (§4.5 step 4).
type assembledPrompt struct {
	systemText     string
	userText       string
	inputImages    []provider.ImagePart
	hasInputImages bool
}

func (m *Manager) assemblePrompt(t task.Task, ec *task.ExecutionContext, requiredMCPs []string, insights []task.MCPContextInsight) assembledPrompt {
	var sys strings.Builder
	sys.WriteString(fmt.Sprintf("Task: %s\n", t.Title))
	if t.Description != "" {
		sys.WriteString(t.Description)
		sys.WriteString("\n\n")
	}
	if ec != nil {
		if raw, ok := ec.Metadata(task.MetadataKeyProject); ok {
			if p, ok := raw.(task.Project); ok {
				sys.WriteString(renderProjectContext(p))
			}
		}
	}
	if len(requiredMCPs) > 0 {
		sys.WriteString("Available MCP servers: " + strings.Join(requiredMCPs, ", ") + "\n")
		sys.WriteString("You must call tools to gather information rather than describing what you would do.\n\n")
	}
	if len(insights) > 0 {
		sys.WriteString(renderMCPInsights(insights))
	}
	sys.WriteString(outputFormatClause(t))

	var usr strings.Builder
	prompt := t.AIPrompt
	if prompt == "" {
		prompt = t.GeneratedPrompt
	}
	if prompt == "" {
		prompt = t.Description
	}
	usr.WriteString(prompt)

	if ec != nil {
		depResults := dependencyResults(t, ec.PreviousResults())
		if len(depResults) > 0 {
			usr.WriteString("\n\n### Context from Dependencies\n")
			for _, r := range depResults {
				usr.WriteString(fmt.Sprintf("- Task #%d: %s\n", r.ProjectSequence, truncate(r.Content(), 1000)))
			}
		}
	}
	if len(requiredMCPs) > 0 {
		usr.WriteString("\n\nRemember to call the available tools to complete this task.")
	}

	images, hasImages := collectInputImages(ec)

	return assembledPrompt{
		systemText:     sys.String(),
		userText:       usr.String(),
		inputImages:    images,
		hasInputImages: hasImages,
	}
}

// dependencyResults returns the subset of previousResults whose
// ProjectSequence appears in t's effective dependency set (§4.6.2.c).
func dependencyResults(t task.Task, previousResults []task.TaskResult) []task.TaskResult {
	deps := t.EffectiveDependencyIDs()
	if len(deps) == 0 {
		return nil
	}
	want := make(map[int]bool, len(deps))
	for _, id := range deps {
		want[id] = true
	}
	var out []task.TaskResult
	for _, r := range previousResults {
		if want[r.ProjectSequence] {
			out = append(out, r)
		}
	}
	return out
}

func collectInputImages(ec *task.ExecutionContext) ([]provider.ImagePart, bool) {
	if ec == nil {
		return nil, false
	}
	var images []provider.ImagePart
	for _, r := range ec.PreviousResults() {
		for _, a := range r.Attachments {
			if a.Encoding != task.EncodingBase64 {
				continue
			}
			if !strings.HasPrefix(a.MimeType, "image/") {
				continue
			}
			images = append(images, provider.ImagePart{
				Format: strings.TrimPrefix(a.MimeType, "image/"),
				Bytes:  decodeBase64Loose(a.Data),
			})
		}
	}
	return images, len(images) > 0
}

// renderProjectContext renders the injected project snapshot (goal,
// constraints, phase, memory summary) into the system prompt (§4.5 step
// 4, spec.md:121).
func renderProjectContext(p task.Project) string {
	var b strings.Builder
	b.WriteString("### Project Context\n")
	if p.Name != "" {
		b.WriteString(fmt.Sprintf("Project: %s\n", p.Name))
	}
	if p.Goal != "" {
		b.WriteString(fmt.Sprintf("Goal: %s\n", p.Goal))
	}
	if len(p.Constraints) > 0 {
		b.WriteString("Constraints:\n")
		for _, c := range p.Constraints {
			b.WriteString("- " + c + "\n")
		}
	}
	if p.Phase != "" {
		b.WriteString(fmt.Sprintf("Phase: %s\n", p.Phase))
	}
	if p.Memory != "" {
		b.WriteString(fmt.Sprintf("Memory: %s\n", p.Memory))
	}
	b.WriteString("\n")
	return b.String()
}

func renderMCPInsights(insights []task.MCPContextInsight) string {
	var b strings.Builder
	b.WriteString("### MCP Context\n")
	for _, ins := range insights {
		if ins.HasError() {
			b.WriteString(fmt.Sprintf("- %s: error: %s\n", ins.Name, ins.Error))
			continue
		}
		b.WriteString(fmt.Sprintf("- %s: %s (tools: %s)\n", ins.Name, ins.Description, strings.Join(ins.RecommendedTools, ", ")))
		if ins.SampleOutput != "" {
			b.WriteString(fmt.Sprintf("  sample: %s\n", truncate(ins.SampleOutput, 300)))
		}
	}
	b.WriteString("\n")
	return b.String()
}

// outputFormats is the closed, normative table named in §4.6.2.d.
var outputFormats = map[task.OutputFormat]string{
	task.FormatText:     "Respond with plain text.",
	task.FormatMarkdown: "Respond with Markdown.",
	task.FormatHTML:     "Respond with valid HTML.",
	task.FormatPDF:      "Respond with content suitable for PDF rendering.",
	task.FormatJSON:     "Respond with a single valid JSON value and nothing else.",
	task.FormatYAML:     "Respond with valid YAML.",
	task.FormatCSV:      "Respond with valid CSV.",
	task.FormatSQL:      "Respond with valid SQL.",
	task.FormatShell:    "Respond with a valid shell script.",
	task.FormatMermaid:  "Respond with a valid Mermaid diagram definition.",
	task.FormatSVG:      "Respond with valid SVG markup.",
	task.FormatPNG:      "Generate a PNG image.",
	task.FormatMP4:      "Generate an MP4 video.",
	task.FormatMP3:      "Generate an MP3 audio clip.",
	task.FormatDiff:     "Respond with a unified diff.",
	task.FormatLog:      "Respond with log-formatted text.",
	task.FormatCode:     "Respond with source code only, no prose.",
}

func outputFormatClause(t task.Task) string {
	format := effectiveOutputFormat(t)
	clause, ok := outputFormats[format]
	if !ok {
		clause = outputFormats[task.FormatText]
	}
	if format == task.FormatCode && t.CodeLanguage != "" {
		clause += fmt.Sprintf(" Use %s.", t.CodeLanguage)
	}
	return "\n### Output Format\n" + clause + "\n"
}

// effectiveOutputFormat applies §4.6.2.d / §4.8's "image model forces
// png" rule: a known image-only model overrides expectedOutputFormat.
func effectiveOutputFormat(t task.Task) task.OutputFormat {
	if isKnownImageOnlyModel(t.AIModel) {
		return task.FormatPNG
	}
	if t.ExpectedOutputFormat == "" {
		return task.FormatText
	}
	return t.ExpectedOutputFormat
}

func isKnownImageOnlyModel(model string) bool {
	m := strings.ToLower(model)
	return strings.Contains(m, "dall-e") || strings.Contains(m, "stable-diffusion") || strings.Contains(m, "imagen")
}

func isImageFormat(f task.OutputFormat) bool {
	return task.ImageModelFormats[f]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func decodeBase64Loose(s string) []byte {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil
	}
	return b
}
