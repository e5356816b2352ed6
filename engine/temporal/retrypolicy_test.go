package temporal

import (
	"testing"
	"time"
)

func TestToTemporalZeroMaxAttemptsMeansNoRetryPolicy(t *testing.T) {
	if got := (RetryPolicy{}).toTemporal(); got != nil {
		t.Fatalf("expected a nil RetryPolicy when MaxAttempts is unset, got %+v", got)
	}
}

func TestToTemporalAppliesDefaultsWhenUnset(t *testing.T) {
	got := RetryPolicy{MaxAttempts: 3}.toTemporal()
	if got == nil {
		t.Fatalf("expected a non-nil RetryPolicy")
	}
	if got.MaximumAttempts != 3 {
		t.Fatalf("expected MaximumAttempts to pass through, got %d", got.MaximumAttempts)
	}
	if got.BackoffCoefficient != 2 {
		t.Fatalf("expected default backoff coefficient 2, got %v", got.BackoffCoefficient)
	}
	if got.InitialInterval != time.Second {
		t.Fatalf("expected default initial interval of 1s, got %v", got.InitialInterval)
	}
}

func TestToTemporalPreservesExplicitValues(t *testing.T) {
	got := RetryPolicy{MaxAttempts: 5, InitialInterval: 2 * time.Second, BackoffCoefficient: 1.5}.toTemporal()
	if got.MaximumAttempts != 5 || got.InitialInterval != 2*time.Second || got.BackoffCoefficient != 1.5 {
		t.Fatalf("expected explicit values to survive unchanged, got %+v", got)
	}
}
