package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"trackerdeploy/internal/core/environment"
	"trackerdeploy/internal/core/render"
	"trackerdeploy/internal/shell/provider"
)

// Provision creates the environment's instance: Created -> Provisioned.
// For the OpenTofu backend the infrastructure descriptors are rendered into
// the build directory first; the provider then runs the engine there. The
// phase and the discovered runtime outputs commit together, only after the
// adapter succeeded.
func (a *App) Provision(ctx context.Context, name string) (result *StepOutcome, err error) {
	started := time.Now()
	defer func() { a.finish("provision", name, started, err) }()

	env, err := a.load(name)
	if err != nil {
		return nil, err
	}
	if err := environment.ValidateTransition(env.Phase, environment.PhaseProvisioned); err != nil {
		return nil, invalidTransition(err)
	}

	buildDir, err := a.ensureBuildDir(name)
	if err != nil {
		return nil, err
	}

	// API providers need the key material up front; an unreadable key fails
	// here rather than as an opaque provider rejection. The OpenTofu backend
	// reads the path itself.
	var publicKey string
	if env.Inputs.Provider.Kind == environment.ProviderTofuLXD {
		if err := a.renderTofuDescriptors(env, buildDir); err != nil {
			return nil, err
		}
	} else {
		publicKey, err = readPublicKey(env.Inputs.SSH.PublicKeyPath)
		if err != nil {
			return nil, adapterFailure(err)
		}
	}

	prov, err := a.providerFor(env.Inputs.Provider)
	if err != nil {
		return nil, adapterFailure(err)
	}

	a.logger.Info("provisioning instance",
		"environment", name, "provider", env.Inputs.Provider.Kind)

	res, err := prov.CreateInstance(ctx, provider.ProvisionRequest{
		InstanceName: env.InstanceName(),
		Region:       env.Inputs.Provider.Region,
		Size:         env.Inputs.Provider.Size,
		ProfileName:  env.Inputs.Provider.ProfileName,
		SSHPublicKey: publicKey,
		BuildDir:     buildDir,
	})
	if err != nil {
		return nil, adapterFailure(err)
	}

	if err := env.Provision(environment.RuntimeOutputs{
		InstanceAddress:    res.InstanceAddress,
		ProviderInstanceID: res.ProviderInstanceID,
	}); err != nil {
		return nil, invalidTransition(err)
	}

	if err := a.save(env); err != nil {
		return nil, err
	}

	a.logger.Info("environment provisioned",
		"environment", name, "address", res.InstanceAddress)
	return outcome("provision", name,
		fmt.Sprintf("instance provisioned at %s", res.InstanceAddress)), nil
}

// renderTofuDescriptors writes the engine input files into the build
// directory.
func (a *App) renderTofuDescriptors(env *environment.Environment, buildDir string) error {
	descriptor, err := render.TofuLXD(render.TofuInstance{
		InstanceName:  env.InstanceName(),
		ProfileName:   env.Inputs.Provider.ProfileName,
		PublicKeyPath: env.Inputs.SSH.PublicKeyPath,
	})
	if err != nil {
		return adapterFailure(err)
	}

	path := filepath.Join(buildDir, "main.tf")
	if err := os.WriteFile(path, []byte(descriptor), 0o644); err != nil {
		return persistenceFailure(fmt.Errorf("write %s: %w", path, err))
	}
	return nil
}

// readPublicKey reads the key material for API providers.
func readPublicKey(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read SSH public key: %w", err)
	}
	return string(data), nil
}
