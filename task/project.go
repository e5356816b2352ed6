package task

// MetadataKeyProject is the ExecutionContext.Metadata key a host stores
// the task's Project snapshot under, for injection into the system
// prompt (§4.5 step 4, spec.md:121).
const MetadataKeyProject = "project"

// Project is the subset of project data the core reads (§6.2). The host
// owns the real schema; this is the projection the Project repository
// returns.
type Project struct {
	ID            int
	Name          string
	Description   string
	Goal          string
	Constraints   []string
	Phase         string
	Memory        string
	BaseDevFolder string
	MCPConfig     map[string]MCPOverride
}

// Repository is the read-only task repository the core consumes (§6.1).
type Repository interface {
	GetTask(id int) (Task, error)
	GetTasksForProject(projectID int) ([]Task, error)
	UpdateTaskStatus(id int, status Status) error
}

// ProjectRepository is the read-only project repository the core
// consumes (§6.2).
type ProjectRepository interface {
	GetProject(projectID int) (Project, error)
}
