package aiservice

import (
	"strings"

	"github.com/flowcraft/execore/task"
)

// mcpKeywords is the fixed keyword table used by auto-detection (§4.5
// step 2); it is scanned whether or not the task names its required MCPs
// explicitly.
var mcpKeywords = map[string]string{
	"slack":      "slack",
	"github":     "github",
	"filesystem": "filesystem",
	"file":       "filesystem",
	"database":   "database",
	"sql":        "database",
	"web":        "web",
	"browser":    "web",
	"email":      "email",
	"mail":       "email",
}

// resolveProvider picks the provider and model for t (§4.5 step 1):
// first the enabled provider matching the task's request; else the
// first name returned by EnabledNames, which follows map iteration order,
// so which one is picked is not fixed when several providers are
// enabled; else a built-in default. A requested model
// that is lexically incompatible with the chosen provider is dropped in
// favor of that provider's default.
func (m *Manager) resolveProvider(t task.Task) (providerName, modelName string, err error) {
	requested := t.AIProvider
	if requested != "" && m.registry.Enabled(requested) {
		providerName = requested
	} else {
		names := m.registry.EnabledNames()
		if len(names) > 0 {
			providerName = names[0]
		} else {
			providerName = "anthropic"
		}
	}

	client, ok := m.registry.Get(providerName)
	if !ok {
		modelName = t.AIModel
		return providerName, modelName, nil
	}

	modelName = t.AIModel
	if modelName != "" && !modelBelongsToProvider(modelName, providerName) {
		modelName = ""
	}
	if modelName == "" {
		if def := m.registry.DefaultModelFor(providerName); def != "" {
			modelName = def
		} else {
			modelName = client.DefaultModel()
		}
	}
	return providerName, modelName, nil
}

// modelBelongsToProvider is the "lexically incompatible by name prefix"
// heuristic named in §4.5 step 1.
func modelBelongsToProvider(model, providerName string) bool {
	m := strings.ToLower(model)
	switch providerName {
	case "anthropic":
		return strings.HasPrefix(m, "claude")
	case "openai":
		return strings.HasPrefix(m, "gpt") || strings.HasPrefix(m, "o1") || strings.HasPrefix(m, "o3") || strings.HasPrefix(m, "dall-e")
	case "bedrock":
		return strings.Contains(m, "anthropic.") || strings.Contains(m, "amazon.") || strings.HasPrefix(m, "us.") || strings.HasPrefix(m, "eu.")
	default:
		return true
	}
}

// explicitMCPs returns the task's own requiredMCPs list unchanged; this
// alone determines which MCPs get tools loaded into the tool loop (§9
// Open Question 1).
func explicitMCPs(t task.Task) []string {
	return t.RequiredMCPs
}

// detectMCPs scans title/description/prompt for the fixed keyword
// table (§4.5 step 2), independent of whether requiredMCPs is already
// set. Detected MCPs always contribute to the insights block, even
// when an explicit list is present — they never expand the offered
// tool set (§9 Open Question 1).
func detectMCPs(t task.Task, autoDetect bool) []string {
	if !autoDetect {
		return nil
	}
	haystack := strings.ToLower(t.Title + " " + t.Description + " " + t.AIPrompt)
	seen := make(map[string]bool)
	var detected []string
	for kw, slug := range mcpKeywords {
		if strings.Contains(haystack, kw) && !seen[slug] {
			seen[slug] = true
			detected = append(detected, slug)
		}
	}
	return detected
}

// insightMCPs is the union of explicit and detected MCPs, used only to
// decide which MCPs contribute insight text to the system prompt (§9
// Open Question 1).
func insightMCPs(explicit, detected []string) []string {
	seen := make(map[string]bool, len(explicit)+len(detected))
	var union []string
	for _, s := range explicit {
		if !seen[s] {
			seen[s] = true
			union = append(union, s)
		}
	}
	for _, s := range detected {
		if !seen[s] {
			seen[s] = true
			union = append(union, s)
		}
	}
	return union
}
