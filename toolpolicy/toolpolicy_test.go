package toolpolicy_test

import (
	"testing"

	"github.com/flowcraft/execore/toolpolicy"
)

func decide(t *testing.T, opts toolpolicy.Options, requested ...toolpolicy.ToolMetadata) []string {
	t.Helper()
	return toolpolicy.New(opts).Decide(requested).Allowed
}

// TestNoRestrictionAllowsEverything pins the §4.5.2 contract: an
// unconfigured policy must never starve the tool loop.
func TestNoRestrictionAllowsEverything(t *testing.T) {
	got := decide(t, toolpolicy.Options{}, toolpolicy.ToolMetadata{ID: "github_list_issues"}, toolpolicy.ToolMetadata{ID: "slack_post"})
	if len(got) != 2 {
		t.Fatalf("expected both tools allowed with no restriction, got %v", got)
	}
}

func TestAllowToolsRestrictsToTheAllowList(t *testing.T) {
	got := decide(t, toolpolicy.Options{AllowTools: []string{"github_list_issues"}},
		toolpolicy.ToolMetadata{ID: "github_list_issues"}, toolpolicy.ToolMetadata{ID: "slack_post"})
	if len(got) != 1 || got[0] != "github_list_issues" {
		t.Fatalf("expected only the allow-listed tool, got %v", got)
	}
}

func TestBlockToolsOverridesAllowTools(t *testing.T) {
	got := decide(t, toolpolicy.Options{AllowTools: []string{"github_list_issues"}, BlockTools: []string{"github_list_issues"}},
		toolpolicy.ToolMetadata{ID: "github_list_issues"})
	if len(got) != 0 {
		t.Fatalf("expected block list to win over allow list, got %v", got)
	}
}

func TestAllowTagsRequiresAMatchingTag(t *testing.T) {
	got := decide(t, toolpolicy.Options{AllowTags: []string{"readonly"}},
		toolpolicy.ToolMetadata{ID: "github_list_issues", Tags: []string{"readonly"}},
		toolpolicy.ToolMetadata{ID: "github_delete_repo", Tags: []string{"destructive"}},
	)
	if len(got) != 1 || got[0] != "github_list_issues" {
		t.Fatalf("expected only the tagged tool allowed, got %v", got)
	}
}

func TestBlockTagsOverridesAllowTags(t *testing.T) {
	got := decide(t, toolpolicy.Options{AllowTags: []string{"readonly"}, BlockTags: []string{"destructive"}},
		toolpolicy.ToolMetadata{ID: "weird", Tags: []string{"readonly", "destructive"}},
	)
	if len(got) != 0 {
		t.Fatalf("expected a tool tagged both ways to be blocked, got %v", got)
	}
}

func TestWhitespaceOnlyEntriesAreIgnored(t *testing.T) {
	got := decide(t, toolpolicy.Options{AllowTools: []string{"  ", ""}},
		toolpolicy.ToolMetadata{ID: "github_list_issues"})
	if len(got) != 0 {
		t.Fatalf("expected whitespace-only allow entries to mean 'allow nothing matched', got %v", got)
	}
}
