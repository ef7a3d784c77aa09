package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"trackerdeploy/internal/core/environment"
	"trackerdeploy/internal/shell/provider"
)

// Destroy tears down the environment's instance: any non-terminal phase ->
// Destroyed.
//
// Idempotency: when local state already shows the environment destroyed,
// the operation reports success without invoking the adapter. On adapter
// failure, local state and runtime outputs are preserved untouched so the
// user can retry or clean up manually; only after adapter success are
// outputs cleared, the phase committed, and build artifacts removed.
func (a *App) Destroy(ctx context.Context, name string) (result *StepOutcome, err error) {
	started := time.Now()
	defer func() { a.finish("destroy", name, started, err) }()

	env, err := a.load(name)
	if err != nil {
		return nil, err
	}

	if env.Phase == environment.PhaseDestroyed {
		a.logger.Info("environment already destroyed", "environment", name)
		return outcome("destroy", name, "already destroyed"), nil
	}

	if err := environment.ValidateTransition(env.Phase, environment.PhaseDestroyed); err != nil {
		return nil, invalidTransition(err)
	}

	if a.hasInfrastructure(env) {
		prov, err := a.providerFor(env.Inputs.Provider)
		if err != nil {
			return nil, adapterFailure(err)
		}

		a.logger.Info("destroying instance",
			"environment", name, "provider", env.Inputs.Provider.Kind)

		if err := prov.DestroyInstance(ctx, provider.DestroyRequest{
			InstanceName:       env.InstanceName(),
			ProviderInstanceID: env.Outputs.ProviderInstanceID,
			Region:             env.Inputs.Provider.Region,
			BuildDir:           a.buildDir(name),
		}); err != nil {
			return nil, adapterFailure(
				fmt.Errorf("destroy failed; local state preserved for manual cleanup: %w", err))
		}
	}

	if err := env.Destroy(); err != nil {
		return nil, invalidTransition(err)
	}
	if err := a.save(env); err != nil {
		return nil, err
	}

	// Build artifacts go only after the destroy committed; a retry after a
	// failed commit still finds the engine state it needs.
	if err := os.RemoveAll(a.buildDir(name)); err != nil {
		a.logger.Warn("failed to remove build artifacts", "environment", name, "error", err)
	}

	a.logger.Info("environment destroyed", "environment", name)
	return outcome("destroy", name, "instance destroyed"), nil
}

// hasInfrastructure reports whether the environment may own provider-side
// resources worth tearing down. Cloud providers track resources through the
// recorded runtime outputs; the OpenTofu backend tracks them in the build
// directory's engine state.
func (a *App) hasInfrastructure(env *environment.Environment) bool {
	if env.HasRuntimeOutputs() {
		return true
	}
	if env.Inputs.Provider.Kind == environment.ProviderTofuLXD {
		_, err := os.Stat(a.buildDir(env.Name))
		return err == nil
	}
	return false
}
