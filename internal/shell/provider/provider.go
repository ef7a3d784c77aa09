// Package provider implements the provisioning backends. This is part of
// the Imperative Shell - it talks to cloud APIs or drives the OpenTofu
// subprocess.
//
// The orchestration core only sees the narrow Provider interface: a request
// struct in, a result struct or error out. That keeps every orchestrator
// testable with a fake provider.
package provider

import (
	"context"
)

// ProvisionRequest contains parameters for creating an instance.
type ProvisionRequest struct {
	InstanceName string
	Region       string
	Size         string
	ProfileName  string

	// SSHPublicKey is the key material installed on the instance.
	SSHPublicKey string

	// BuildDir is the environment build directory. The OpenTofu provider
	// expects its rendered descriptors there; API providers ignore it.
	BuildDir string
}

// ProvisionResult contains the runtime outputs of a successful provision.
type ProvisionResult struct {
	// InstanceAddress is the address assigned to the instance.
	InstanceAddress string

	// ProviderInstanceID is the provider-assigned identifier. Empty for the
	// OpenTofu provider, which tracks resources in its own state files.
	ProviderInstanceID string
}

// DestroyRequest contains parameters for destroying an instance.
type DestroyRequest struct {
	InstanceName       string
	ProviderInstanceID string
	Region             string
	BuildDir           string
}

// Provider is the provisioning adapter boundary. Implementations block for
// the duration of the operation; cancellation goes through the context.
type Provider interface {
	// CreateInstance provisions a new instance and returns its runtime
	// outputs.
	CreateInstance(ctx context.Context, req ProvisionRequest) (*ProvisionResult, error)

	// DestroyInstance tears down the instance and associated resources.
	// Implementations treat an already-deleted instance as success so a
	// retried destroy converges.
	DestroyInstance(ctx context.Context, req DestroyRequest) error
}
