// Package tool wraps the external provisioning and configuration engines.
// This is part of the Imperative Shell - the engines are opaque subprocesses
// invoked with defined argument and output contracts, never linked in.
package tool

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// =============================================================================
// Command Execution
// =============================================================================

// Result holds the captured output of a finished subprocess.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// CommandError reports a subprocess that could not start or exited non-zero.
// The captured stderr is carried for diagnostics; callers classify this as
// an adapter failure and preserve state.
type CommandError struct {
	Command  string
	Args     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	if e.ExitCode != 0 {
		return fmt.Sprintf("%s exited with code %d: %s",
			e.Command, e.ExitCode, firstLine(e.Stderr))
	}
	return fmt.Sprintf("%s failed to run: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// Executor runs external tools synchronously, blocking until the subprocess
// exits. Cancellation of the context kills the child; no finer-grained
// interruption is supported.
type Executor struct {
	logger *slog.Logger
}

// NewExecutor creates an executor logging under the given logger.
func NewExecutor(logger *slog.Logger) *Executor {
	return &Executor{logger: logger.With("component", "executor")}
}

// Run executes the named tool in workDir (empty means inherit) and captures
// its output. A non-zero exit returns both the Result and a *CommandError.
func (e *Executor) Run(ctx context.Context, workDir, name string, args ...string) (*Result, error) {
	e.logger.Debug("running external tool",
		"command", name,
		"args", strings.Join(args, " "),
		"dir", workDir,
	)

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = workDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := &Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		} else {
			result.ExitCode = -1
		}
		e.logger.Error("external tool failed",
			"command", name,
			"exit_code", result.ExitCode,
			"stderr", firstLine(result.Stderr),
		)
		return result, &CommandError{
			Command:  name,
			Args:     args,
			ExitCode: result.ExitCode,
			Stderr:   result.Stderr,
			Err:      err,
		}
	}

	return result, nil
}
