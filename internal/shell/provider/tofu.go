package provider

import (
	"context"
	"fmt"
	"log/slog"

	"trackerdeploy/internal/shell/tool"
)

// TofuProvider implements Provider by driving the OpenTofu subprocess in
// the environment's build directory. The default backend for local LXD
// environments; the rendered descriptors must already be in place when
// CreateInstance runs.
type TofuProvider struct {
	exec   *tool.Executor
	logger *slog.Logger
}

// NewTofuProvider creates an OpenTofu-backed provider.
func NewTofuProvider(exec *tool.Executor, logger *slog.Logger) *TofuProvider {
	return &TofuProvider{
		exec:   exec,
		logger: logger.With("provider", "tofu-lxd"),
	}
}

// CreateInstance runs init and apply in the build directory, then reads the
// assigned address back from the engine outputs.
func (p *TofuProvider) CreateInstance(ctx context.Context, req ProvisionRequest) (*ProvisionResult, error) {
	client := tool.NewOpenTofuClient(p.exec, req.BuildDir)

	p.logger.Info("initializing provisioning engine", "dir", req.BuildDir)
	if err := client.Init(ctx); err != nil {
		return nil, err
	}

	p.logger.Info("applying infrastructure descriptors", "instance", req.InstanceName)
	if err := client.Apply(ctx); err != nil {
		return nil, err
	}

	address, err := client.InstanceAddress(ctx)
	if err != nil {
		return nil, fmt.Errorf("instance created but address unavailable: %w", err)
	}

	p.logger.Info("instance provisioned", "instance", req.InstanceName, "address", address)
	return &ProvisionResult{InstanceAddress: address}, nil
}

// DestroyInstance runs destroy in the build directory. The engine's own
// state decides what exists; destroying an empty state succeeds, which
// gives the retry-after-failure path its idempotency.
func (p *TofuProvider) DestroyInstance(ctx context.Context, req DestroyRequest) error {
	client := tool.NewOpenTofuClient(p.exec, req.BuildDir)

	p.logger.Info("destroying infrastructure", "instance", req.InstanceName, "dir", req.BuildDir)
	return client.Destroy(ctx)
}
