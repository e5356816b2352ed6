package macro_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowcraft/execore/macro"
	"github.com/flowcraft/execore/task"
)

func fixedContext() macro.Context {
	return macro.Context{
		ResultsBySequence: map[int]task.TaskResult{
			1: {TaskID: 1, ProjectSequence: 1, Status: task.ResultSuccess, Output: "the key points are X and Y"},
		},
		PreviousResults: []task.TaskResult{
			{TaskID: 1, ProjectSequence: 1, Status: task.ResultSuccess, Output: "the key points are X and Y"},
		},
		Variables:   map[string]any{"topic": "onboarding"},
		ProjectName: "Demo",
		ProjectDesc: "A demo project",
		Now:         time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC),
	}
}

func TestResolveTaskReference(t *testing.T) {
	r := macro.New()
	out, err := r.Resolve("Key points:\n{{task:1}}", fixedContext())
	require.NoError(t, err)
	assert.Equal(t, "Key points:\nthe key points are X and Y", out)
}

func TestResolvePrevDefault(t *testing.T) {
	r := macro.New()
	out, err := r.Resolve("Summary: {{prev}}", fixedContext())
	require.NoError(t, err)
	assert.Equal(t, "Summary: the key points are X and Y", out)
}

func TestResolveVarAndDate(t *testing.T) {
	r := macro.New()
	out, err := r.Resolve("Topic {{var:topic}} on {{date}}", fixedContext())
	require.NoError(t, err)
	assert.Equal(t, "Topic onboarding on 2026-07-30", out)
}

func TestResolveMissingReferenceNeverErrorsOutput(t *testing.T) {
	r := macro.New()
	out, err := r.Resolve("See {{task:99}}", fixedContext())
	require.Error(t, err) // reported, but...
	assert.Contains(t, out, macro.MissingResultPlaceholder)
}

// TestResolvePurity checks §8 property 3: resolving an already-resolved
// template is a no-op because results are not re-scanned for macros.
func TestResolvePurity(t *testing.T) {
	r := macro.New()
	ctx := fixedContext()
	once, err := r.Resolve("{{prev}}", ctx)
	require.NoError(t, err)
	twice, err := r.Resolve(once, ctx)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}

func TestValidateFlagsUndeclaredDependency(t *testing.T) {
	errs := macro.Validate("{{task:5}} and {{var:missing}}", []int{1, 2}, map[string]bool{"known": true})
	require.Len(t, errs, 2)
}
