package task

import "time"

// ResultStatus is the outcome of one execution attempt (§3).
type ResultStatus string

// Recognized result statuses.
const (
	ResultSuccess ResultStatus = "success"
	ResultFailure ResultStatus = "failure"
	ResultSkipped ResultStatus = "skipped"
)

// AttachmentEncoding selects how Attachment.Data should be interpreted.
type AttachmentEncoding string

// Recognized attachment encodings.
const (
	EncodingBase64 AttachmentEncoding = "base64"
	EncodingURL    AttachmentEncoding = "url"
	EncodingText   AttachmentEncoding = "text"
)

// Attachment is a typed binary or text blob carried alongside a
// TaskResult or forwarded into a subsequent task's multi-modal input
// (§3, §4.2, §4.6.f).
type Attachment struct {
	Name     string
	MimeType string
	Encoding AttachmentEncoding
	Data     string
}

// AiKind classifies a normalized AiResult (§3).
type AiKind string

// Recognized AiResult kinds.
const (
	AiKindText     AiKind = "text"
	AiKindImage    AiKind = "image"
	AiKindAudio    AiKind = "audio"
	AiKindVideo    AiKind = "video"
	AiKindDocument AiKind = "document"
	AiKindData     AiKind = "data"
)

// AiFormat identifies how AiResult.Value should be interpreted.
type AiFormat string

// Recognized AiResult formats.
const (
	AiFormatPlain  AiFormat = "plain"
	AiFormatBase64 AiFormat = "base64"
	AiFormatURL    AiFormat = "url"
	AiFormatBinary AiFormat = "binary"
)

// AiResult is a normalized provider output (§3). An AiResult with
// Kind != AiKindText must carry either a URL, a base64 payload, or a
// binary blob (enforced by Validate).
type AiResult struct {
	Kind    AiKind
	SubType string
	Format  AiFormat
	Value   string
	Binary  []byte
	Mime    string
	Meta    AiResultMeta
}

// AiResultMeta carries provenance and accounting data about the model
// call(s) that produced an AiResult.
type AiResultMeta struct {
	Provider       string
	Model          string
	PromptTokens   int
	CompletionTokens int
	TotalTokens    int
	ToolCallCount  int
	FinishReason   string
}

// Validate enforces the §3 invariant that non-text results carry a
// payload the core can forward downstream.
func (r AiResult) Validate() error {
	if r.Kind == AiKindText {
		return nil
	}
	switch r.Format {
	case AiFormatURL:
		if r.Value == "" {
			return &ExecutionError{Kind: ErrKindConfig, Message: "ai result: url format requires a non-empty value"}
		}
	case AiFormatBase64:
		if r.Value == "" {
			return &ExecutionError{Kind: ErrKindConfig, Message: "ai result: base64 format requires a non-empty value"}
		}
	case AiFormatBinary:
		if len(r.Binary) == 0 {
			return &ExecutionError{Kind: ErrKindConfig, Message: "ai result: binary format requires payload bytes"}
		}
	default:
		return &ExecutionError{Kind: ErrKindConfig, Message: "ai result: non-text kind requires url, base64, or binary format"}
	}
	return nil
}

// TaskResult is the outcome of one execution attempt of a Task (§3).
// Created by the Executor; consumed by the Runner and, via
// ExecutionContext.PreviousResults, by Context Propagation for
// downstream tasks.
type TaskResult struct {
	TaskID          int
	ProjectSequence int
	Status          ResultStatus

	// Output is polymorphic: a string for plain text, a map[string]any for
	// structured data, or an AiResult for non-text AI output.
	Output any

	Attachments []Attachment

	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	Cost     float64
	Tokens   int
	Retries  int
	Metadata map[string]any

	Error *ExecutionError
}

// Content extracts the human-readable body of the result, applying the
// same field-probing order the Macro Engine uses for {{task.N.content}}
// (§4.1 rule 2): a string output is used as-is; otherwise the object is
// probed in order imageUrl, content, text, result, message, falling back
// to canonical JSON. ContentOf in this package implements the shared
// logic; this method exists for callers that only need the result.
func (r TaskResult) Content() string {
	return ContentOf(r.Output)
}
