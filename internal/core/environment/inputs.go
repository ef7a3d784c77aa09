package environment

import (
	"errors"
	"fmt"

	"trackerdeploy/internal/core/topology"
)

// =============================================================================
// User Inputs
// =============================================================================

// SSHCredentials hold the connection parameters for the provisioned
// instance. Key paths are local filesystem paths supplied at creation.
type SSHCredentials struct {
	Username       string `json:"username" mapstructure:"username"`
	PrivateKeyPath string `json:"private_key_path" mapstructure:"private_key_path"`
	PublicKeyPath  string `json:"public_key_path" mapstructure:"public_key_path"`
	Port           int    `json:"port" mapstructure:"port"`
}

// ProviderKind selects the provisioning backend for an environment.
type ProviderKind string

const (
	// ProviderTofuLXD provisions through the OpenTofu subprocess against a
	// local LXD daemon. The default for development environments.
	ProviderTofuLXD ProviderKind = "tofu-lxd"

	// ProviderHetzner provisions a Hetzner Cloud server via API.
	ProviderHetzner ProviderKind = "hetzner"

	// ProviderDigitalOcean provisions a DigitalOcean droplet via API.
	ProviderDigitalOcean ProviderKind = "digitalocean"

	// ProviderAWS provisions an EC2 instance via API.
	ProviderAWS ProviderKind = "aws"
)

// ProviderSettings hold provider-specific configuration. Only the fields
// relevant to the selected kind are used.
type ProviderSettings struct {
	Kind ProviderKind `json:"kind" mapstructure:"kind"`

	// ProfileName is the LXD profile for tofu-lxd environments.
	ProfileName string `json:"profile_name,omitempty" mapstructure:"profile_name"`

	// Region and Size select the instance location and flavor for cloud
	// providers.
	Region string `json:"region,omitempty" mapstructure:"region"`
	Size   string `json:"size,omitempty" mapstructure:"size"`

	// TokenEnv names the environment variable holding the provider API
	// token. The token itself is never persisted.
	TokenEnv string `json:"token_env,omitempty" mapstructure:"token_env"`
}

// UserInputs is the immutable-per-environment configuration supplied at
// creation. The orchestrators never mutate it.
type UserInputs struct {
	SSH      SSHCredentials                `json:"ssh" mapstructure:"ssh"`
	Provider ProviderSettings              `json:"provider" mapstructure:"provider"`
	Services []topology.ServiceDeclaration `json:"services" mapstructure:"services"`
}

var (
	ErrMissingSSHUsername = errors.New("ssh username is required")
	ErrMissingSSHKey      = errors.New("ssh key paths are required")
	ErrInvalidSSHPort     = errors.New("ssh port must be between 1 and 65535")
	ErrUnknownProvider    = errors.New("unknown provider kind")
	ErrNoServices         = errors.New("at least the tracker service must be declared")
)

// Validate checks the inputs are complete enough to create an environment.
// Topology-level rules are checked separately by topology.Build.
func (u UserInputs) Validate() error {
	if u.SSH.Username == "" {
		return ErrMissingSSHUsername
	}
	if u.SSH.PrivateKeyPath == "" || u.SSH.PublicKeyPath == "" {
		return ErrMissingSSHKey
	}
	if u.SSH.Port < 1 || u.SSH.Port > 65535 {
		return fmt.Errorf("%w: got %d", ErrInvalidSSHPort, u.SSH.Port)
	}
	switch u.Provider.Kind {
	case ProviderTofuLXD, ProviderHetzner, ProviderDigitalOcean, ProviderAWS:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownProvider, u.Provider.Kind)
	}
	if len(u.Services) == 0 {
		return ErrNoServices
	}
	return nil
}

// =============================================================================
// Runtime Outputs
// =============================================================================

// RuntimeOutputs are values discovered during provisioning. Populated only
// by the provision transition and cleared by destroy.
type RuntimeOutputs struct {
	// InstanceAddress is the network address assigned to the instance.
	InstanceAddress string `json:"instance_address"`

	// ProviderInstanceID is the provider-assigned identifier, used by the
	// destroy adapter for cloud providers. Empty for tofu-lxd, which tracks
	// its own state in the build directory.
	ProviderInstanceID string `json:"provider_instance_id,omitempty"`
}

// Empty reports whether no outputs have been recorded.
func (r RuntimeOutputs) Empty() bool {
	return r.InstanceAddress == "" && r.ProviderInstanceID == ""
}
