package macro

import (
	"fmt"
	"strconv"
	"strings"
)

// ValidationError flags one suspicious macro reference in a template:
// either a {{task:N}} outside the task's declared dependency set or a
// {{var:NAME}} for an undefined variable (§4.1 rule 5). Validation never
// mutates the template; it only reports.
type ValidationError struct {
	Macro   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("macro %q: %s", e.Macro, e.Message)
}

// Validate scans template for references to task ids outside allowedDeps
// and variables outside definedVars, returning every such reference
// without altering the template (§4.1 rule 5). Used by host UIs for
// inline hints, not by the execution path itself.
func Validate(template string, allowedDeps []int, definedVars map[string]bool) []ValidationError {
	allowed := make(map[int]bool, len(allowedDeps))
	for _, d := range allowedDeps {
		allowed[d] = true
	}

	var errs []ValidationError
	for _, m := range placeholderRe.FindAllStringSubmatch(template, -1) {
		body := strings.TrimSpace(m[1])
		switch {
		case strings.HasPrefix(body, "task:"), strings.HasPrefix(body, "task."):
			rest := strings.TrimPrefix(strings.TrimPrefix(body, "task:"), "task.")
			numPart, _ := splitField(rest)
			n, err := strconv.Atoi(numPart)
			if err != nil {
				continue
			}
			if !allowed[n] {
				errs = append(errs, ValidationError{Macro: m[0], Message: fmt.Sprintf("references task %d, which is not a declared dependency", n)})
			}
		case strings.HasPrefix(body, "var:"):
			name := strings.TrimPrefix(body, "var:")
			if definedVars != nil && !definedVars[name] {
				errs = append(errs, ValidationError{Macro: m[0], Message: fmt.Sprintf("references undefined variable %q", name)})
			}
		}
	}
	return errs
}
