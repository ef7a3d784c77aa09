// Package app hosts the step orchestrators: one operation per lifecycle
// transition, each composing the topology model, the external tool adapters
// and the environment aggregate into a single user-invocable command.
//
// Every orchestrator follows the same shape: load the environment, verify
// the transition is valid from the current phase, run the external sub-steps
// strictly in sequence, and commit the new phase to the state store only
// after every sub-step succeeded. A failed sub-step aborts the rest and
// leaves committed state untouched.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"trackerdeploy/internal/core/environment"
	"trackerdeploy/internal/shell/provider"
	"trackerdeploy/internal/shell/remote"
	"trackerdeploy/internal/shell/store"
	"trackerdeploy/internal/shell/tool"
)

// Config holds the orchestrator paths and timeouts.
type Config struct {
	// StateDir holds the environment state records and the run-history db.
	StateDir string

	// BuildDir holds per-environment build artifacts (rendered descriptors,
	// inventories, compose files).
	BuildDir string

	// ReadyTimeout bounds the wait for a freshly provisioned instance to
	// accept SSH connections.
	ReadyTimeout time.Duration
}

// RemoteRunner is the slice of the SSH client the orchestrators use.
// Narrowed to an interface so tests substitute a fake host.
type RemoteRunner interface {
	Run(ctx context.Context, command string) (*remote.CommandResult, error)
	Upload(ctx context.Context, content []byte, remotePath string, mode string) error
	WaitReady(ctx context.Context, interval time.Duration) error
	Close() error
}

// ConfigRunner is the slice of the configuration engine the configure
// orchestrator uses.
type ConfigRunner interface {
	Playbook(ctx context.Context, inventoryPath, playbookPath string, extraVars map[string]string) error
}

// App wires the orchestrators to their collaborators. One App serves one
// process invocation; operations on it run sequentially.
type App struct {
	cfg     Config
	store   *store.FileStore
	exec    *tool.Executor
	history *History
	logger  *slog.Logger

	// Adapter constructors, replaced by fakes in tests.
	providerFor func(settings environment.ProviderSettings) (provider.Provider, error)
	remoteFor   func(endpoint remote.Endpoint) (RemoteRunner, error)
	configFor   func(workDir string) ConfigRunner
}

// New creates an App backed by the real adapters. The state directory and
// the run-history database are created on first use.
func New(cfg Config, logger *slog.Logger) (*App, error) {
	if cfg.ReadyTimeout == 0 {
		cfg.ReadyTimeout = 5 * time.Minute
	}

	fileStore, err := store.NewFileStore(cfg.StateDir)
	if err != nil {
		return nil, err
	}

	history, err := OpenHistory(filepath.Join(cfg.StateDir, "history.db"))
	if err != nil {
		return nil, fmt.Errorf("open run history: %w", err)
	}

	exec := tool.NewExecutor(logger)

	return &App{
		cfg:     cfg,
		store:   fileStore,
		exec:    exec,
		history: history,
		logger:  logger,
		providerFor: func(settings environment.ProviderSettings) (provider.Provider, error) {
			return provider.NewProvider(settings, exec, logger)
		},
		remoteFor: func(endpoint remote.Endpoint) (RemoteRunner, error) {
			return remote.NewClient(endpoint, remote.DefaultClientConfig(), logger)
		},
		configFor: func(workDir string) ConfigRunner {
			return tool.NewAnsibleClient(exec, workDir)
		},
	}, nil
}

// Close releases the App's resources.
func (a *App) Close() error {
	if a.history != nil {
		return a.history.Close()
	}
	return nil
}

// History exposes the run-history ledger.
func (a *App) History() *History {
	return a.history
}

// =============================================================================
// Shared Helpers
// =============================================================================

// load reads the environment record, classifying store failures.
func (a *App) load(name string) (*environment.Environment, error) {
	env, err := a.store.Load(name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, &Error{Kind: KindEnvironmentNotFound, Err: err, StatePreserved: true}
		}
		return nil, persistenceFailure(err)
	}
	return env, nil
}

// save commits the environment record, classifying store failures.
func (a *App) save(env *environment.Environment) error {
	if err := a.store.Save(env); err != nil {
		return persistenceFailure(err)
	}
	return nil
}

// buildDir returns the per-environment build artifact directory.
func (a *App) buildDir(name string) string {
	return filepath.Join(a.cfg.BuildDir, name)
}

// ensureBuildDir creates the per-environment build directory.
func (a *App) ensureBuildDir(name string) (string, error) {
	dir := a.buildDir(name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", persistenceFailure(fmt.Errorf("create build directory %s: %w", dir, err))
	}
	return dir, nil
}

// remoteEndpoint derives the SSH endpoint from the environment's inputs and
// provisioned outputs.
func remoteEndpoint(env *environment.Environment) remote.Endpoint {
	return remote.Endpoint{
		Host:           env.Outputs.InstanceAddress,
		Port:           env.Inputs.SSH.Port,
		Username:       env.Inputs.SSH.Username,
		PrivateKeyPath: env.Inputs.SSH.PrivateKeyPath,
	}
}

// finish appends the run to the history ledger. Ledger failures are logged,
// never surfaced: history is an audit trail, not a step.
func (a *App) finish(operation, name string, started time.Time, err error) {
	if a.history == nil {
		return
	}

	run := Run{
		Environment: name,
		Operation:   operation,
		StartedAt:   started.UTC(),
		DurationMS:  time.Since(started).Milliseconds(),
	}
	if err != nil {
		run.Outcome = OutcomeFailure
		run.ErrorKind = string(KindOf(err))
	} else {
		run.Outcome = OutcomeSuccess
	}

	if recErr := a.history.Record(run); recErr != nil {
		a.logger.Warn("failed to record run history", "operation", operation, "error", recErr)
	}
}
