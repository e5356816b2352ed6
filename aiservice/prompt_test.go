package aiservice

import (
	"strings"
	"testing"

	"github.com/flowcraft/execore/task"
)

// TestDependencyResultsMatchesOnProjectSequence pins the fix for matching
// dependency context against ProjectSequence rather than TaskID — a task
// whose TaskID differs from its ProjectSequence must still receive its
// dependency's content.
func TestDependencyResultsMatchesOnProjectSequence(t *testing.T) {
	tk := task.Task{Dependencies: []int{7}}
	previous := []task.TaskResult{
		{TaskID: 999, ProjectSequence: 7, Output: "dependency output"},
		{TaskID: 998, ProjectSequence: 8, Output: "unrelated"},
	}
	got := dependencyResults(tk, previous)
	if len(got) != 1 {
		t.Fatalf("expected exactly one matching dependency result, got %d", len(got))
	}
	if got[0].ProjectSequence != 7 {
		t.Fatalf("expected the result with ProjectSequence 7, got %+v", got[0])
	}
}

func TestDependencyResultsNoDependenciesReturnsNil(t *testing.T) {
	got := dependencyResults(task.Task{}, []task.TaskResult{{ProjectSequence: 1}})
	if got != nil {
		t.Fatalf("expected nil for a task with no dependencies, got %v", got)
	}
}

// TestAssemblePromptInjectsProjectContext pins the fix wiring
// ExecutionContext.Metadata(MetadataKeyProject) into the system prompt;
// before the fix nothing in the tree ever read this key back out.
func TestAssemblePromptInjectsProjectContext(t *testing.T) {
	m := New(newTestRegistry(t, "anthropic"), nil, nil)
	ec := task.NewExecutionContext("wf-1", "user-1", 1, task.Budget{})
	ec.SetMetadata(task.MetadataKeyProject, task.Project{
		Name: "Atlas", Goal: "ship the thing", Constraints: []string{"no breaking changes"},
	})

	assembled := m.assemblePrompt(task.Task{Title: "Do work"}, ec, nil, nil)
	if !strings.Contains(assembled.systemText, "Atlas") {
		t.Fatalf("expected project name in system prompt, got: %s", assembled.systemText)
	}
	if !strings.Contains(assembled.systemText, "ship the thing") {
		t.Fatalf("expected project goal in system prompt, got: %s", assembled.systemText)
	}
	if !strings.Contains(assembled.systemText, "no breaking changes") {
		t.Fatalf("expected project constraint in system prompt, got: %s", assembled.systemText)
	}
}

func TestAssemblePromptWithoutProjectMetadataOmitsSection(t *testing.T) {
	m := New(newTestRegistry(t, "anthropic"), nil, nil)
	ec := task.NewExecutionContext("wf-1", "user-1", 1, task.Budget{})

	assembled := m.assemblePrompt(task.Task{Title: "Do work"}, ec, nil, nil)
	if strings.Contains(assembled.systemText, "### Project Context") {
		t.Fatalf("expected no project context section when metadata is unset, got: %s", assembled.systemText)
	}
}

// TestAssemblePromptPrefersAIPromptOverDescription documents the
// precedence assemblePrompt applies, which executor.resolvePromptFields
// must mirror so macro resolution is never skipped for AIPrompt-only
// tasks.
func TestAssemblePromptPrefersAIPromptOverDescription(t *testing.T) {
	m := New(newTestRegistry(t, "anthropic"), nil, nil)
	tk := task.Task{Title: "T", Description: "fallback description", AIPrompt: "the real prompt"}
	assembled := m.assemblePrompt(tk, nil, nil, nil)
	if assembled.userText != "the real prompt" {
		t.Fatalf("expected AIPrompt to win, got %q", assembled.userText)
	}
}
