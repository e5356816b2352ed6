package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAppliesYamlThenEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(yamlPath, []byte("defaultParallelism: 5\ndefaultBudgetCost: 10\n"), 0o600); err != nil {
		t.Fatalf("write yaml: %v", err)
	}

	t.Setenv("EXECORE_DEFAULT_PARALLELISM", "7")

	cfg, err := Load(yamlPath, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DefaultParallelism != 7 {
		t.Fatalf("expected env override to win, got %d", cfg.DefaultParallelism)
	}
	if cfg.DefaultBudgetCost != 10 {
		t.Fatalf("expected yaml value to survive, got %v", cfg.DefaultBudgetCost)
	}
}

func TestLoadToleratesMissingFiles(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DefaultParallelism != 3 {
		t.Fatalf("expected default parallelism, got %d", cfg.DefaultParallelism)
	}
}
