package telemetry_test

import (
	"context"
	"testing"

	"github.com/flowcraft/execore/telemetry"
)

type recordingLogger struct {
	level string
	msg   string
	kvs   []any
}

func (l *recordingLogger) Debug(ctx context.Context, msg string, kvs ...any) {
	l.level, l.msg, l.kvs = "debug", msg, kvs
}
func (l *recordingLogger) Info(ctx context.Context, msg string, kvs ...any) {
	l.level, l.msg, l.kvs = "info", msg, kvs
}
func (l *recordingLogger) Warn(ctx context.Context, msg string, kvs ...any) {
	l.level, l.msg, l.kvs = "warn", msg, kvs
}
func (l *recordingLogger) Error(ctx context.Context, msg string, kvs ...any) {
	l.level, l.msg, l.kvs = "error", msg, kvs
}

var _ telemetry.Logger = (*recordingLogger)(nil)

func TestLogFuncDispatchesByLevel(t *testing.T) {
	cases := []string{"debug", "warn", "error", "info", "unrecognized"}
	want := map[string]string{
		"debug":        "debug",
		"warn":         "warn",
		"error":        "error",
		"info":         "info",
		"unrecognized": "info",
	}
	for _, level := range cases {
		l := &recordingLogger{}
		telemetry.LogFunc(l)(level, "hello", nil)
		if l.level != want[level] {
			t.Errorf("level %q: expected dispatch to %q, got %q", level, want[level], l.level)
		}
		if l.msg != "hello" {
			t.Errorf("level %q: expected message to pass through, got %q", level, l.msg)
		}
	}
}

func TestLogFuncFlattensDetailsIntoKeyValuePairs(t *testing.T) {
	l := &recordingLogger{}
	telemetry.LogFunc(l)("info", "msg", map[string]any{"task_id": 7})
	if len(l.kvs) != 2 {
		t.Fatalf("expected one key/value pair (2 elements), got %v", l.kvs)
	}
	if l.kvs[0] != "task_id" || l.kvs[1] != 7 {
		t.Fatalf("expected the detail to flatten to key then value, got %v", l.kvs)
	}
}
