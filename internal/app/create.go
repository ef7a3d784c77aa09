package app

import (
	"context"
	"fmt"
	"time"

	"trackerdeploy/internal/core/environment"
	"trackerdeploy/internal/core/topology"
)

// Create writes the initial Created record for a new environment. The
// service declarations are validated through the topology model up front so
// an environment with an unbuildable topology never gets persisted.
func (a *App) Create(ctx context.Context, name string, inputs environment.UserInputs) (result *StepOutcome, err error) {
	started := time.Now()
	defer func() { a.finish("create", name, started, err) }()

	exists, err := a.store.Exists(name)
	if err != nil {
		return nil, persistenceFailure(err)
	}
	if exists {
		return nil, invalidTransition(fmt.Errorf("environment %q already exists", name))
	}

	if _, err := topology.Build(inputs.Services); err != nil {
		return nil, classify(err)
	}

	env, err := environment.New(name, inputs)
	if err != nil {
		return nil, invalidTransition(err)
	}

	if err := a.save(env); err != nil {
		return nil, err
	}

	a.logger.Info("environment created", "environment", name, "provider", inputs.Provider.Kind)
	return outcome("create", name, fmt.Sprintf("environment %q created", name)), nil
}
