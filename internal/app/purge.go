package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"trackerdeploy/internal/core/environment"
)

// Purge removes every persisted artifact of a destroyed environment: the
// state record and any leftover build directory. It refuses environments
// that are not Destroyed - purge deletes bookkeeping, never infrastructure.
func (a *App) Purge(ctx context.Context, name string) (result *StepOutcome, err error) {
	started := time.Now()
	defer func() { a.finish("purge", name, started, err) }()

	env, err := a.load(name)
	if err != nil {
		return nil, err
	}

	if env.Phase != environment.PhaseDestroyed {
		return nil, invalidTransition(
			fmt.Errorf("%w: purge requires phase %q, environment is %q",
				environment.ErrInvalidTransition, environment.PhaseDestroyed, env.Phase))
	}

	if err := a.store.Delete(name); err != nil {
		return nil, persistenceFailure(err)
	}
	if err := os.RemoveAll(a.buildDir(name)); err != nil {
		a.logger.Warn("failed to remove build artifacts", "environment", name, "error", err)
	}

	a.logger.Info("environment purged", "environment", name)
	return outcome("purge", name, fmt.Sprintf("environment %q removed", name)), nil
}
