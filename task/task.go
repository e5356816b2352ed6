// Package task defines the data model shared by every component of the
// workflow execution core: tasks, their results, the plans the planner
// produces, and the context threaded through a run. None of these types
// carry behavior beyond simple accessors; components in sibling packages
// (macro, propagation, executor, aiservice, plan, runner) operate on them.
package task

// Priority orders tasks for host-side display; it does not affect
// scheduling, which is driven purely by the dependency graph.
type Priority string

// Recognized task priorities.
const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Status is the lifecycle state of a Task as tracked by the host's task
// repository. The core only reads it; Repository.UpdateTaskStatus is
// declared for terminal-state updates, but nothing in this module calls it.
type Status string

// Recognized task statuses.
const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusInReview   Status = "in_review"
	StatusDone       Status = "done"
	StatusBlocked    Status = "blocked"
	StatusSkipped    Status = "skipped"
	StatusFailed     Status = "failed"
)

// Kind identifies the adapter the Executor dispatches a task to.
type Kind string

// Recognized task kinds.
const (
	KindAI     Kind = "ai"
	KindScript Kind = "script"
	KindInput  Kind = "input"
	KindOutput Kind = "output"
)

// ExecutionMode constrains whether a task may run concurrently with its
// stage-mates. Most tasks are Parallel; Serial tasks (and any Input task)
// force their containing stage to run sequentially (§4.7).
type ExecutionMode string

// Recognized execution modes.
const (
	ExecutionParallel ExecutionMode = "parallel"
	ExecutionSerial   ExecutionMode = "serial"
)

// OutputFormat is the closed, normative set of expected output formats a
// task may declare (§4.6.d). "code" optionally specializes via
// Task.CodeLanguage.
type OutputFormat string

// Recognized output formats.
const (
	FormatText    OutputFormat = "text"
	FormatMarkdown OutputFormat = "markdown"
	FormatHTML    OutputFormat = "html"
	FormatPDF     OutputFormat = "pdf"
	FormatJSON    OutputFormat = "json"
	FormatYAML    OutputFormat = "yaml"
	FormatCSV     OutputFormat = "csv"
	FormatSQL     OutputFormat = "sql"
	FormatShell   OutputFormat = "shell"
	FormatMermaid OutputFormat = "mermaid"
	FormatSVG     OutputFormat = "svg"
	FormatPNG     OutputFormat = "png"
	FormatMP4     OutputFormat = "mp4"
	FormatMP3     OutputFormat = "mp3"
	FormatDiff    OutputFormat = "diff"
	FormatLog     OutputFormat = "log"
	FormatCode    OutputFormat = "code"
)

// ImageModelFormats are the output formats that route a task through the
// AI Service Manager's image path (§4.5.1) rather than the tool/streaming
// text path.
var ImageModelFormats = map[OutputFormat]bool{
	FormatPNG:  true,
	FormatSVG:  true,
	"jpg":      true,
	"jpeg":     true,
	"webp":     true,
}

// ScriptLanguage enumerates the sandboxes the Executor's script adapter
// supports (§4.6.e, §6.5).
type ScriptLanguage string

// Recognized script languages.
const (
	ScriptJavaScript ScriptLanguage = "javascript"
	ScriptPython     ScriptLanguage = "python"
	ScriptBash       ScriptLanguage = "bash"
)

// DependencyOperator selects how a task's dependency set is combined when
// deciding readiness (§4.7 and TriggerConfig below). AND is the default;
// OR lets any single completed dependency satisfy the task.
type DependencyOperator string

// Recognized dependency operators.
const (
	OperatorAND DependencyOperator = "AND"
	OperatorOR  DependencyOperator = "OR"
)

// TriggerConfig carries scheduling and dependency-operator metadata for a
// task beyond the plain dependency set (§4.7, §9). DependsOn.TaskIDs are
// projectSequence values per §9's canonical-identifier rule.
type TriggerConfig struct {
	DependsOn DependsOn
	// Schedule optionally carries a cron-like expression for time-triggered
	// tasks. The core never interprets it; a host scheduler does.
	Schedule string
}

// DependsOn names the task's dependency set and how it combines.
type DependsOn struct {
	TaskIDs  []int
	Operator DependencyOperator
}

// ImageConfig configures image generation/analysis requests originating
// from a task (size/quality/style/count are provider-neutral; Extra
// carries provider-specific passthrough fields).
type ImageConfig struct {
	Size    string
	Quality string
	Style   string
	Format  string
	Count   int
	Extra   map[string]any
}

// MCPOverride carries per-task environment and context overrides for one
// MCP server, layered over project-level configuration (§4.3).
type MCPOverride struct {
	EnvVars     map[string]string
	UserContext string
}

// Task is a single unit of work in a project's DAG (§3).
type Task struct {
	ID              int
	ProjectID       int
	ProjectSequence int
	Title           string
	Description     string
	Priority        Priority
	Status          Status
	TaskType        Kind
	ExecutionType   ExecutionMode

	// Dependencies holds the projectSequence values (or, for legacy plans,
	// global IDs — see §9) this task must wait on.
	Dependencies  []int
	TriggerConfig TriggerConfig

	// AI fields, meaningful only when TaskType == KindAI.
	AIProvider          string
	AIModel             string
	AITemperature       float32
	AIMaxTokens         int
	AIPrompt            string
	GeneratedPrompt     string
	ExpectedOutputFormat OutputFormat
	CodeLanguage        string
	RequiredMCPs        []string
	MCPConfig           map[string]MCPOverride
	ImageConfig         *ImageConfig

	// Script fields, meaningful only when TaskType == KindScript.
	ScriptLanguage ScriptLanguage
	ScriptSource   string

	// Execution bookkeeping.
	IsSubdivided     bool
	IsPaused         bool
	AutoReview       bool
	ReviewAIProvider string
	ReviewAIModel    string
}

// EffectiveDependencyIDs returns the union of Dependencies and
// TriggerConfig.DependsOn.TaskIDs, de-duplicated, in first-seen order
// (Dependencies first); the ids are not sorted. The
// Executor uses this set to select prior results for context propagation
// (§4.6.c); callers that only need the plan-time graph should prefer
// Dependencies directly.
func (t Task) EffectiveDependencyIDs() []int {
	seen := make(map[int]struct{}, len(t.Dependencies)+len(t.TriggerConfig.DependsOn.TaskIDs))
	ordered := make([]int, 0, len(t.Dependencies)+len(t.TriggerConfig.DependsOn.TaskIDs))
	add := func(ids []int) {
		for _, id := range ids {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ordered = append(ordered, id)
		}
	}
	add(t.Dependencies)
	add(t.TriggerConfig.DependsOn.TaskIDs)
	return ordered
}

// Executable reports whether the task should be scheduled at all. Tasks
// that have been subdivided into child tasks are never executed directly
// (§3, invariant a).
func (t Task) Executable() bool {
	return !t.IsSubdivided
}
