package aiservice

import (
	"testing"

	"github.com/flowcraft/execore/task"
)

func TestResolveProviderPrefersRequestedWhenEnabled(t *testing.T) {
	reg := newTestRegistry(t, "anthropic", "openai")
	m := New(reg, nil, nil)

	name, model, err := m.resolveProvider(task.Task{AIProvider: "openai", AIModel: "gpt-5"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "openai" {
		t.Fatalf("expected openai, got %q", name)
	}
	if model != "gpt-5" {
		t.Fatalf("expected requested model to survive, got %q", model)
	}
}

func TestResolveProviderFallsBackToFirstEnabled(t *testing.T) {
	reg := newTestRegistry(t, "bedrock")
	m := New(reg, nil, nil)

	name, _, err := m.resolveProvider(task.Task{AIProvider: "not-enabled"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "bedrock" {
		t.Fatalf("expected fallback to the only enabled provider, got %q", name)
	}
}

func TestResolveProviderDropsLexicallyIncompatibleModel(t *testing.T) {
	reg := newTestRegistry(t, "anthropic")
	m := New(reg, nil, nil)

	_, model, err := m.resolveProvider(task.Task{AIProvider: "anthropic", AIModel: "gpt-4o"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if model != "fake-model" {
		t.Fatalf("expected incompatible model to be dropped in favor of the client default, got %q", model)
	}
}

func TestExplicitMCPsReturnsRequiredMCPsUnchanged(t *testing.T) {
	tk := task.Task{RequiredMCPs: []string{"github", "slack"}}
	got := explicitMCPs(tk)
	if len(got) != 2 || got[0] != "github" || got[1] != "slack" {
		t.Fatalf("expected unchanged requiredMCPs, got %v", got)
	}
}

func TestDetectMCPsDisabledReturnsNil(t *testing.T) {
	tk := task.Task{Title: "Post to slack"}
	if got := detectMCPs(tk, false); got != nil {
		t.Fatalf("expected nil when auto-detect is disabled, got %v", got)
	}
}

func TestDetectMCPsFindsKeywordsIndependentOfExplicitList(t *testing.T) {
	tk := task.Task{Title: "Query the database", Description: "then notify over slack", RequiredMCPs: []string{"github"}}
	detected := detectMCPs(tk, true)
	if !containsStr(detected, "database") || !containsStr(detected, "slack") {
		t.Fatalf("expected database and slack to be detected regardless of explicit list, got %v", detected)
	}
}

// TestInsightMCPsUnionNeverDropsExplicit guards the §9 Open Question 1
// contract: the insight set is the union of explicit and detected MCPs,
// never just one or the other, and never expands beyond what either side
// contributed.
func TestInsightMCPsUnionNeverDropsExplicit(t *testing.T) {
	union := insightMCPs([]string{"github"}, []string{"slack", "github"})
	if len(union) != 2 {
		t.Fatalf("expected de-duplicated union of size 2, got %v", union)
	}
	if !containsStr(union, "github") || !containsStr(union, "slack") {
		t.Fatalf("expected union to contain both explicit and detected entries, got %v", union)
	}
}

func containsStr(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
