package macro

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/flowcraft/execore/task"
)

// resolvePrevForm dispatches the {{prev}}, {{prev.N}}, {{prev-N}} family,
// each optionally suffixed with ".FIELD" (§4.1).
func (r *Resolver) resolvePrevForm(body string, ctx Context) (string, error) {
	rest := strings.TrimPrefix(body, "prev")
	n := 0
	field := "content"
	switch {
	case rest == "":
		// {{prev}} or {{prev.FIELD}} handled below via empty rest.
	case strings.HasPrefix(rest, "-"):
		numPart, fieldPart := splitField(strings.TrimPrefix(rest, "-"))
		v, err := strconv.Atoi(numPart)
		if err != nil {
			return MissingResultPlaceholder, fmt.Errorf("macro: invalid prev-N form %q", body)
		}
		n, field = v, firstNonEmpty(fieldPart, "content")
		return r.resolvePrev(n, field, ctx)
	case strings.HasPrefix(rest, "."):
		rest = strings.TrimPrefix(rest, ".")
		numPart, fieldPart := splitField(rest)
		if numPart == "" {
			// {{prev.FIELD}} — N defaults to 0, rest is the field.
			return r.resolvePrev(0, firstNonEmpty(rest, "content"), ctx)
		}
		v, err := strconv.Atoi(numPart)
		if err != nil {
			// Not numeric: the whole thing was a field name, e.g. "prev.summary".
			return r.resolvePrev(0, firstNonEmpty(rest, "content"), ctx)
		}
		n, field = v, firstNonEmpty(fieldPart, "content")
		return r.resolvePrev(n, field, ctx)
	default:
		return MissingResultPlaceholder, fmt.Errorf("macro: unrecognized prev form %q", body)
	}
	return r.resolvePrev(n, field, ctx)
}

// splitField splits "N.FIELD" into ("N", "FIELD"); either half may be empty.
func splitField(s string) (head, field string) {
	idx := strings.Index(s, ".")
	if idx < 0 {
		return s, ""
	}
	return s[:idx], s[idx+1:]
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// resolvePrev resolves the result at position len(PreviousResults)-1-n.
func (r *Resolver) resolvePrev(n int, field string, ctx Context) (string, error) {
	idx := len(ctx.PreviousResults) - 1 - n
	if idx < 0 || idx >= len(ctx.PreviousResults) {
		return MissingResultPlaceholder, fmt.Errorf("macro: no result at prev offset %d", n)
	}
	return r.fieldOf(ctx.PreviousResults[idx], field)
}

// resolveTask dispatches {{task:N}}, {{task.N}}, {{task.N.FIELD}}.
func (r *Resolver) resolveTask(body string, ctx Context) (string, error) {
	rest := strings.TrimPrefix(strings.TrimPrefix(body, "task:"), "task.")
	numPart, field := splitField(rest)
	n, err := strconv.Atoi(numPart)
	if err != nil {
		return MissingResultPlaceholder, fmt.Errorf("macro: invalid task reference %q", body)
	}
	res, ok := ctx.ResultsBySequence[n]
	if !ok {
		return MissingResultPlaceholder, fmt.Errorf("macro: no result for task %d", n)
	}
	return r.fieldOf(res, firstNonEmpty(field, "content"))
}

// fieldOf extracts one field of a TaskResult per §4.1: content, output,
// summary, status, duration, cost, tokens, metadata, or a dotted path
// into metadata.
func (r *Resolver) fieldOf(res task.TaskResult, field string) (string, error) {
	switch field {
	case "content":
		return r.extractContent(res)
	case "output":
		return task.ContentOf(structuredOutput(res)), nil
	case "summary":
		c, err := r.extractContent(res)
		if err != nil {
			return c, err
		}
		return summarize(c, 500), nil
	case "status":
		return string(res.Status), nil
	case "duration":
		return res.Duration.String(), nil
	case "cost":
		return strconv.FormatFloat(res.Cost, 'f', -1, 64), nil
	case "tokens":
		return strconv.Itoa(res.Tokens), nil
	case "metadata":
		return task.ContentOf(res.Metadata), nil
	default:
		if strings.HasPrefix(field, "metadata.") {
			return metadataPath(res.Metadata, strings.TrimPrefix(field, "metadata.")), nil
		}
		return MissingResultPlaceholder, fmt.Errorf("macro: unknown task field %q", field)
	}
}

// extractContent applies §4.1 rule 2/3: extract the content body, and if
// it looks like an embedded base64 image, write it to the image sink and
// substitute the path instead.
func (r *Resolver) extractContent(res task.TaskResult) (string, error) {
	c := task.ContentOf(res.Output)
	if r.ImageSink == nil {
		return c, nil
	}
	if ext, payload, ok := detectEmbeddedImage(c); ok {
		path, err := r.ImageSink(res.TaskID, ext, payload)
		if err != nil {
			// Never throw (§4.1 rule 1): fall back to the raw content.
			return c, nil
		}
		return path, nil
	}
	return c, nil
}

// structuredOutput returns res.Output as-is for JSON encoding via
// {{task.N.output}}, which always serializes the full object rather than
// extracting a content field.
func structuredOutput(res task.TaskResult) any {
	return res.Output
}

func summarize(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}

// resolveAllResults renders {{all_results}} (full JSON) or
// {{all_results.summary}} (concatenated 200-char summaries).
func (r *Resolver) resolveAllResults(summaryOnly bool, ctx Context) (string, error) {
	if !summaryOnly {
		return task.ContentOf(ctx.PreviousResults), nil
	}
	parts := make([]string, 0, len(ctx.PreviousResults))
	for _, res := range ctx.PreviousResults {
		c := task.ContentOf(res.Output)
		parts = append(parts, summarize(c, 200))
	}
	return strings.Join(parts, "\n---\n"), nil
}

// metadataPath walks a dotted path into a metadata map, returning the
// JSON encoding of whatever it finds (or MissingResultPlaceholder).
func metadataPath(meta map[string]any, path string) string {
	var cur any = meta
	for _, seg := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return MissingResultPlaceholder
		}
		v, ok := m[seg]
		if !ok {
			return MissingResultPlaceholder
		}
		cur = v
	}
	if s, ok := cur.(string); ok {
		return s
	}
	return task.ContentOf(cur)
}
