package executor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/flowcraft/execore/task"
)

// ProcessScriptRunner runs script tasks as plain subprocesses, one per
// scriptLanguage (§4.6.e, §6.5). It is grounded on the same os/exec
// subprocess-management pattern the stdio MCP caller uses, generalized
// from a long-lived stdio session to a single run-to-completion process.
type ProcessScriptRunner struct {
	// NodeBin, PythonBin, BashBin override the interpreter binary per
	// language; empty uses the language's conventional name on PATH.
	NodeBin, PythonBin, BashBin string
}

var _ ScriptRunner = (*ProcessScriptRunner)(nil)

// RunScript writes source to a temp file and runs it with the
// interpreter matching language, capturing stdout/stderr.
func (r *ProcessScriptRunner) RunScript(ctx context.Context, language task.ScriptLanguage, source string, env map[string]string) (stdout, stderr string, exitCode int, err error) {
	bin, ext, args, err := r.interpreter(language)
	if err != nil {
		return "", "", -1, err
	}

	f, err := os.CreateTemp("", "execore-script-*"+ext)
	if err != nil {
		return "", "", -1, fmt.Errorf("executor: create script temp file: %w", err)
	}
	defer os.Remove(f.Name())
	if _, err := f.WriteString(source); err != nil {
		f.Close()
		return "", "", -1, fmt.Errorf("executor: write script temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", "", -1, fmt.Errorf("executor: close script temp file: %w", err)
	}

	cmdArgs := append(append([]string{}, args...), f.Name())
	cmd := exec.CommandContext(ctx, bin, cmdArgs...)
	cmd.Env = mergeEnv(env)

	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	runErr := cmd.Run()
	exitCode = cmd.ProcessState.ExitCode()
	if runErr != nil && exitCode < 0 {
		return outBuf.String(), errBuf.String(), exitCode, fmt.Errorf("executor: spawn script: %w", runErr)
	}
	return outBuf.String(), errBuf.String(), exitCode, nil
}

func (r *ProcessScriptRunner) interpreter(language task.ScriptLanguage) (bin, ext string, args []string, err error) {
	switch language {
	case task.ScriptJavaScript:
		return firstNonEmpty(r.NodeBin, "node"), ".js", nil, nil
	case task.ScriptPython:
		return firstNonEmpty(r.PythonBin, "python3"), ".py", nil, nil
	case task.ScriptBash:
		return firstNonEmpty(r.BashBin, "bash"), ".sh", nil, nil
	default:
		return "", "", nil, fmt.Errorf("executor: unsupported script language %q", language)
	}
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func mergeEnv(extra map[string]string) []string {
	env := os.Environ()
	for k, v := range extra {
		env = append(env, k+"="+v)
	}
	return env
}
