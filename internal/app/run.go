package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"trackerdeploy/internal/core/environment"
	"trackerdeploy/internal/core/topology"
)

// Run starts the released stack and validates basic health:
// Released -> Running. Health means every declared service reports a
// running status to the container engine.
func (a *App) Run(ctx context.Context, name string) (result *StepOutcome, err error) {
	started := time.Now()
	defer func() { a.finish("run", name, started, err) }()

	env, err := a.load(name)
	if err != nil {
		return nil, err
	}
	if err := environment.ValidateTransition(env.Phase, environment.PhaseRunning); err != nil {
		return nil, invalidTransition(err)
	}

	topo, err := topology.Build(env.Inputs.Services)
	if err != nil {
		return nil, classify(err)
	}

	runner, err := a.remoteFor(remoteEndpoint(env))
	if err != nil {
		return nil, adapterFailure(err)
	}
	defer runner.Close()

	a.logger.Info("starting services", "environment", name)

	up := fmt.Sprintf("cd %s && docker compose up -d", remoteStackDir)
	if _, err := runner.Run(ctx, up); err != nil {
		return nil, adapterFailure(err)
	}

	if err := a.checkServicesRunning(ctx, runner, topo); err != nil {
		return nil, err
	}

	if err := env.Run(); err != nil {
		return nil, invalidTransition(err)
	}
	if err := a.save(env); err != nil {
		return nil, err
	}

	a.logger.Info("environment running", "environment", name)
	return outcome("run", name,
		fmt.Sprintf("%d services running", len(topo.Services()))), nil
}

// checkServicesRunning asks the container engine which services are up and
// requires every declared service to be among them.
func (a *App) checkServicesRunning(ctx context.Context, runner RemoteRunner, topo *topology.DockerComposeTopology) error {
	ps := fmt.Sprintf("cd %s && docker compose ps --services --filter status=running", remoteStackDir)
	result, err := runner.Run(ctx, ps)
	if err != nil {
		return adapterFailure(err)
	}

	running := make(map[string]bool)
	for _, line := range strings.Split(result.Stdout, "\n") {
		if name := strings.TrimSpace(line); name != "" {
			running[name] = true
		}
	}

	for _, svc := range topo.Services() {
		if !running[string(svc.Kind)] {
			return adapterFailure(fmt.Errorf("service %q is not running", svc.Kind))
		}
	}
	return nil
}
