// Command execored is a minimal host binary that wires every execore
// component together and exposes runWorkflow over a trivial CLI. It is
// scaffolding to prove the wiring, not a production workflow server:
// unlike a real host it reads a flat JSON task list and runs it
// in-process with the in-memory engine and no checkpoint store.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/flowcraft/execore/config"
	"github.com/flowcraft/execore/executor"
	"github.com/flowcraft/execore/macro"
	"github.com/flowcraft/execore/mcpfacade"
	engineinmem "github.com/flowcraft/execore/engine/inmem"
	"github.com/flowcraft/execore/aiservice"
	"github.com/flowcraft/execore/plan"
	"github.com/flowcraft/execore/propagation"
	"github.com/flowcraft/execore/provider"
	"github.com/flowcraft/execore/provider/anthropic"
	"github.com/flowcraft/execore/provider/openai"
	"github.com/flowcraft/execore/runner"
	"github.com/flowcraft/execore/task"
	"github.com/flowcraft/execore/toolpolicy"
)

var (
	yamlConfigPath string
	envFilePath    string
)

var rootCmd = &cobra.Command{
	Use:   "execored",
	Short: "execore - workflow execution core host",
}

var runCmd = &cobra.Command{
	Use:   "run <plan.json>",
	Short: "Run a flat JSON task list to completion",
	Args:  cobra.ExactArgs(1),
	RunE:  runWorkflowCmd,
}

func main() {
	runCmd.Flags().StringVar(&yamlConfigPath, "config", "", "path to a YAML config file")
	runCmd.Flags().StringVar(&envFilePath, "env-file", "", "path to a .env file")
	rootCmd.AddCommand(runCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runWorkflowCmd(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(yamlConfigPath, envFilePath)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("execored: read task list: %w", err)
	}
	var tasks []task.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		return fmt.Errorf("execored: parse task list: %w", err)
	}

	var limiter *provider.AdaptiveRateLimiter
	if cfg.ProviderRateLimitTPM > 0 {
		limiter = provider.NewAdaptiveRateLimiter(cfg.ProviderRateLimitTPM, cfg.ProviderRateLimitTPM)
	}

	registry := provider.NewRegistry()
	registry.SetEnabledProviders(cfg.EnabledProviders)
	for name, pc := range cfg.Providers {
		if pc.APIKey == "" {
			continue
		}
		client, err := newProviderClient(name, pc)
		if err != nil {
			return err
		}
		if limiter != nil {
			client = limiter.Wrap(client)
		}
		registry.Register(client)
		registry.SetDefaultModel(name, pc.DefaultModel)
		registry.SetAPIKeys(map[string]string{name: pc.APIKey})
	}

	mcp := mcpfacade.New()
	policy := toolpolicy.New(toolpolicy.Options{})
	ai := aiservice.New(registry, mcp, policy)
	exec := executor.New(ai, macro.New(), propagation.New(), nil, nil, nil)

	executionPlan, err := plan.Build(tasks, nil)
	if err != nil {
		return fmt.Errorf("execored: build plan: %w", err)
	}

	ec := task.NewExecutionContext("cli-run", "cli-user", 0, task.Budget{
		MaxCost:   cfg.DefaultBudgetCost,
		MaxTokens: cfg.DefaultBudgetTokens,
	})

	r := runner.New(exec, engineinmem.New(), nil, nil, ai)
	result := r.Run(cmd.Context(), "cli-run", executionPlan, ec, runner.Options{
		Parallelism: cfg.DefaultParallelism,
		ExecutorOptions: executor.Options{
			Timeout: cfg.DefaultTimeout,
		},
		OnLog: func(level, message string, details map[string]any) {
			fmt.Fprintf(os.Stderr, "[%s] %s %v\n", level, message, details)
		},
	})

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	if result.Status == task.RunFailed {
		os.Exit(1)
	}
	return nil
}

func newProviderClient(name string, pc config.ProviderConfig) (provider.Client, error) {
	switch name {
	case "anthropic":
		return anthropic.NewFromAPIKey(pc.APIKey, pc.DefaultModel)
	case "openai":
		return openai.NewFromAPIKey(pc.APIKey, pc.DefaultModel)
	default:
		return nil, fmt.Errorf("execored: unsupported provider %q (bedrock requires an aws-sdk-go-v2 session, configure it programmatically)", name)
	}
}
