package propagation_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowcraft/execore/propagation"
	"github.com/flowcraft/execore/task"
)

func sampleResults() []task.TaskResult {
	return []task.TaskResult{
		{TaskID: 1, ProjectSequence: 1, Status: task.ResultSuccess, Output: "result one", EndTime: time.Now()},
		{TaskID: 2, ProjectSequence: 2, Status: task.ResultSuccess, Output: "result two", EndTime: time.Now()},
		{TaskID: 3, ProjectSequence: 3, Status: task.ResultSuccess, Output: "result three", EndTime: time.Now()},
	}
}

func TestPropagateExplicitDependencies(t *testing.T) {
	p := propagation.New()
	out := p.Propagate([]int{2}, sampleResults(), propagation.Policy{Mode: propagation.ModeFull})
	require.Len(t, out.PreviousResults, 1)
	assert.Equal(t, 2, out.PreviousResults[0].ProjectSequence)
	assert.Contains(t, out.ContextString, "result two")
}

func TestPropagateDiamondOrdering(t *testing.T) {
	p := propagation.New()
	out := p.Propagate([]int{2, 3}, sampleResults(), propagation.Policy{Mode: propagation.ModeFull})
	require.Len(t, out.PreviousResults, 2)
	assert.Equal(t, 2, out.PreviousResults[0].ProjectSequence)
	assert.Equal(t, 3, out.PreviousResults[1].ProjectSequence)
}

func TestPropagateTruncation(t *testing.T) {
	p := propagation.New()
	longResults := []task.TaskResult{{TaskID: 1, ProjectSequence: 1, Status: task.ResultSuccess, Output: strings.Repeat("x", 20000)}}
	out := p.Propagate([]int{1}, longResults, propagation.Policy{Mode: propagation.ModeFull, MaxContextSize: 100})
	assert.True(t, out.WasTruncated)
	assert.LessOrEqual(t, out.TotalSize, 100+len("\n\n[... context truncated ...]"))
}

func TestPropagateNoneModeSkipsRendering(t *testing.T) {
	p := propagation.New()
	out := p.Propagate([]int{1}, sampleResults(), propagation.Policy{Mode: propagation.ModeNone})
	assert.Empty(t, out.ContextString)
	require.Len(t, out.PreviousResults, 1)
}
