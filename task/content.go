package task

import "encoding/json"

// contentFieldProbeOrder is the fixed field order the Macro Engine and
// Context Propagation both use to extract a human-readable body from a
// structured task output (§4.1 rule 2).
var contentFieldProbeOrder = []string{"imageUrl", "content", "text", "result", "message"}

// ContentOf extracts the human-readable body of an arbitrary task output.
// A string output is returned verbatim. A map output is probed in
// contentFieldProbeOrder and the first non-empty string field wins.
// A text-kind AiResult yields its Value. Anything else (including other
// AiResult kinds or a map with no matching field) falls back to its
// canonical JSON encoding.
func ContentOf(output any) string {
	switch v := output.(type) {
	case nil:
		return ""
	case string:
		return v
	case AiResult:
		return contentOfAiResult(v)
	case *AiResult:
		if v == nil {
			return ""
		}
		return contentOfAiResult(*v)
	case map[string]any:
		for _, field := range contentFieldProbeOrder {
			if s, ok := v[field].(string); ok && s != "" {
				return s
			}
		}
	}
	return canonicalJSON(output)
}

func contentOfAiResult(r AiResult) string {
	if r.Kind == AiKindText {
		return r.Value
	}
	return canonicalJSON(r)
}

// canonicalJSON marshals v to JSON, swallowing marshal errors as an empty
// object so callers never need to handle a content-extraction failure —
// the Macro Engine never throws (§4.1 rule 1).
func canonicalJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
