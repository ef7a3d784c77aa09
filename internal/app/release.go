package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"trackerdeploy/internal/core/environment"
	"trackerdeploy/internal/core/render"
	"trackerdeploy/internal/core/topology"
)

// remoteStackDir is where the compose stack lives on the instance, relative
// to the connection user's home.
const remoteStackDir = "~/torrust-tracker"

// Release renders the deployment descriptors and transfers them to the
// instance: Configured -> Released. The rendered compose document is
// round-tripped through the compose specification loader before anything
// leaves the build directory.
func (a *App) Release(ctx context.Context, name string) (result *StepOutcome, err error) {
	started := time.Now()
	defer func() { a.finish("release", name, started, err) }()

	env, err := a.load(name)
	if err != nil {
		return nil, err
	}
	if err := environment.ValidateTransition(env.Phase, environment.PhaseReleased); err != nil {
		return nil, invalidTransition(err)
	}

	topo, err := topology.Build(env.Inputs.Services)
	if err != nil {
		return nil, classify(err)
	}

	compose, err := render.Compose(env.InstanceName(), topo)
	if err != nil {
		return nil, adapterFailure(err)
	}
	if err := render.ValidateCompose(compose, topo); err != nil {
		return nil, &Error{Kind: KindTopologyError, Err: err, StatePreserved: true}
	}

	buildDir, err := a.ensureBuildDir(name)
	if err != nil {
		return nil, err
	}
	composePath := filepath.Join(buildDir, "docker-compose.yml")
	if err := os.WriteFile(composePath, []byte(compose), 0o644); err != nil {
		return nil, persistenceFailure(fmt.Errorf("write %s: %w", composePath, err))
	}

	runner, err := a.remoteFor(remoteEndpoint(env))
	if err != nil {
		return nil, adapterFailure(err)
	}
	defer runner.Close()

	a.logger.Info("releasing deployment descriptors",
		"environment", name, "services", len(topo.Services()))

	remotePath := remoteStackDir + "/docker-compose.yml"
	if err := runner.Upload(ctx, []byte(compose), remotePath, "0644"); err != nil {
		return nil, adapterFailure(err)
	}

	if err := env.Release(); err != nil {
		return nil, invalidTransition(err)
	}
	if err := a.save(env); err != nil {
		return nil, err
	}

	a.logger.Info("environment released", "environment", name)
	return outcome("release", name,
		fmt.Sprintf("%d services released to %s", len(topo.Services()), remoteStackDir)), nil
}
