// Package macro implements the lossless, single-pass "{{…}}" template
// resolver described in spec §4.1. It is the single macro engine the
// core uses — the Advanced Task Executor holds the *Resolver, and
// Context Propagation resolves no macros of its own, closing the "dual macro
// implementations" open question in §9.
package macro

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/flowcraft/execore/task"
)

// placeholderRe matches every recognized macro form. Capture group 1 is
// the macro body (everything between the braces).
var placeholderRe = regexp.MustCompile(`\{\{\s*([^{}]+?)\s*\}\}`)

// MissingResultPlaceholder is substituted when a macro references a
// result that does not exist (§4.1 rule 1: never throw).
const MissingResultPlaceholder = "[... 결과 없음]"

// Context supplies the data a Resolver needs to resolve macros against:
// prior task results (by projectSequence), workflow variables, and
// project metadata.
type Context struct {
	// ResultsBySequence indexes prior results by projectSequence. {{task:N}}
	// and {{task.N}} resolve against this map.
	ResultsBySequence map[int]task.TaskResult

	// PreviousResults is the ordered list of prior results in append
	// order, used by {{prev}}/{{prev.N}}/{{prev-N}} and {{all_results}}.
	PreviousResults []task.TaskResult

	Variables   map[string]any
	ProjectName string
	ProjectDesc string

	// Now is injected so resolution is deterministic in tests; defaults to
	// time.Now() when zero.
	Now time.Time
}

func (c Context) now() time.Time {
	if c.Now.IsZero() {
		return time.Now()
	}
	return c.Now
}

// Resolver resolves macro templates against a Context. It is stateless
// and safe for concurrent use; ImageSink, if set, is invoked whenever a
// resolved content value looks like an embedded image (§4.1 rule 3).
type Resolver struct {
	// ImageSink receives (taskID, mimeExt, base64Payload) and returns an
	// absolute path the macro substitutes in place of the raw payload. Nil
	// disables image extraction (the raw value is substituted as-is).
	ImageSink func(taskID int, ext string, base64Payload string) (string, error)
}

// New constructs a Resolver wired to the default temp-file image sink.
func New() *Resolver {
	return &Resolver{ImageSink: defaultImageSink}
}

// Resolve performs a single, non-recursive substitution pass over
// template, replacing every recognized macro with its string value
// (§4.1 rule 4: resolved values are not re-scanned). A reference whose
// resolution fails is replaced with MissingResultPlaceholder (rule 1);
// the pass still completes, and Resolve returns the substituted text
// together with the first such error.
func (r *Resolver) Resolve(template string, ctx Context) (string, error) {
	var firstErr error
	out := placeholderRe.ReplaceAllStringFunc(template, func(match string) string {
		body := placeholderRe.FindStringSubmatch(match)[1]
		val, err := r.resolveOne(body, ctx)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return MissingResultPlaceholder
		}
		return val
	})
	return out, firstErr
}

func (r *Resolver) resolveOne(body string, ctx Context) (string, error) {
	body = strings.TrimSpace(body)
	switch {
	case body == "date":
		return ctx.now().Format("2006-01-02"), nil
	case body == "datetime":
		return ctx.now().Format(time.RFC3339), nil
	case body == "project.name":
		return ctx.ProjectName, nil
	case body == "project.description":
		return ctx.ProjectDesc, nil
	case body == "previous_result":
		return r.resolvePrev(0, "output", ctx)
	case body == "all_results", body == "all_results.summary":
		return r.resolveAllResults(body == "all_results.summary", ctx)
	case strings.HasPrefix(body, "var:"):
		return r.resolveVar(strings.TrimPrefix(body, "var:"), ctx)
	case strings.HasPrefix(body, "prev"):
		return r.resolvePrevForm(body, ctx)
	case strings.HasPrefix(body, "task:"), strings.HasPrefix(body, "task."):
		return r.resolveTask(body, ctx)
	default:
		return MissingResultPlaceholder, fmt.Errorf("macro: unrecognized reference %q", body)
	}
}

func (r *Resolver) resolveVar(name string, ctx Context) (string, error) {
	v, ok := ctx.Variables[name]
	if !ok {
		return MissingResultPlaceholder, fmt.Errorf("macro: undefined variable %q", name)
	}
	if s, ok := v.(string); ok {
		return s, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return MissingResultPlaceholder, fmt.Errorf("macro: variable %q is not JSON-encodable: %w", name, err)
	}
	return string(b), nil
}
