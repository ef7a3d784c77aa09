package environment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trackerdeploy/internal/core/topology"
)

// =============================================================================
// Test Helpers
// =============================================================================

func validInputs() UserInputs {
	return UserInputs{
		SSH: SSHCredentials{
			Username:       "torrust",
			PrivateKeyPath: "keys/test_rsa",
			PublicKeyPath:  "keys/test_rsa.pub",
			Port:           22,
		},
		Provider: ProviderSettings{
			Kind:        ProviderTofuLXD,
			ProfileName: "torrust-profile-test",
		},
		Services: []topology.ServiceDeclaration{
			{Kind: topology.ServiceTracker},
		},
	}
}

func createdEnv(t *testing.T) *Environment {
	t.Helper()
	env, err := New("e2e-full", validInputs())
	require.NoError(t, err)
	return env
}

func provisionedEnv(t *testing.T) *Environment {
	t.Helper()
	env := createdEnv(t)
	require.NoError(t, env.Provision(RuntimeOutputs{InstanceAddress: "10.0.0.5"}))
	return env
}

// =============================================================================
// Creation Tests
// =============================================================================

func TestNew_ValidInput(t *testing.T) {
	env, err := New("staging", validInputs())
	require.NoError(t, err)

	assert.NotEmpty(t, env.ID)
	assert.Equal(t, "staging", env.Name)
	assert.Equal(t, PhaseCreated, env.Phase)
	assert.False(t, env.HasRuntimeOutputs())
	assert.NotZero(t, env.CreatedAt)
	assert.Equal(t, "torrust-tracker-staging", env.InstanceName())
}

func TestNew_InvalidName(t *testing.T) {
	_, err := New("Not URL Safe!", validInputs())
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = New("", validInputs())
	assert.ErrorIs(t, err, ErrEmptyName)

	_, err = New("-leading", validInputs())
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestNew_InvalidInputs(t *testing.T) {
	inputs := validInputs()
	inputs.SSH.Username = ""
	_, err := New("staging", inputs)
	assert.ErrorIs(t, err, ErrMissingSSHUsername)

	inputs = validInputs()
	inputs.SSH.Port = 0
	_, err = New("staging", inputs)
	assert.ErrorIs(t, err, ErrInvalidSSHPort)

	inputs = validInputs()
	inputs.Provider.Kind = "openstack"
	_, err = New("staging", inputs)
	assert.ErrorIs(t, err, ErrUnknownProvider)

	inputs = validInputs()
	inputs.Services = nil
	_, err = New("staging", inputs)
	assert.ErrorIs(t, err, ErrNoServices)
}

// =============================================================================
// Transition Tests
// =============================================================================

func TestProvision_FromCreated(t *testing.T) {
	env := createdEnv(t)

	err := env.Provision(RuntimeOutputs{InstanceAddress: "10.0.0.5", ProviderInstanceID: "srv-1"})
	require.NoError(t, err)

	assert.Equal(t, PhaseProvisioned, env.Phase)
	assert.Equal(t, "10.0.0.5", env.Outputs.InstanceAddress)
	assert.True(t, env.HasRuntimeOutputs())
}

func TestProvision_RejectsMissingAddress(t *testing.T) {
	env := createdEnv(t)

	err := env.Provision(RuntimeOutputs{})
	assert.ErrorIs(t, err, ErrMissingInstanceAddr)
	assert.Equal(t, PhaseCreated, env.Phase)
}

func TestProvision_RejectsWrongPhase(t *testing.T) {
	env := provisionedEnv(t)

	err := env.Provision(RuntimeOutputs{InstanceAddress: "10.0.0.6"})
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, "10.0.0.5", env.Outputs.InstanceAddress)
}

func TestConfigure_RequiresProvisionedPhase(t *testing.T) {
	env := createdEnv(t)

	err := env.Configure()
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, PhaseCreated, env.Phase)
}

func TestConfigure_FromProvisioned(t *testing.T) {
	env := provisionedEnv(t)

	require.NoError(t, env.Configure())
	assert.Equal(t, PhaseConfigured, env.Phase)
	// Runtime outputs survive configuration.
	assert.True(t, env.HasRuntimeOutputs())
}

func TestFullLifecycle(t *testing.T) {
	env := provisionedEnv(t)

	require.NoError(t, env.Configure())
	require.NoError(t, env.Release())
	assert.Equal(t, PhaseReleased, env.Phase)
	require.NoError(t, env.Run())
	assert.Equal(t, PhaseRunning, env.Phase)
	require.NoError(t, env.Destroy())
	assert.Equal(t, PhaseDestroyed, env.Phase)
}

func TestRun_RequiresReleasedPhase(t *testing.T) {
	env := provisionedEnv(t)

	err := env.Run()
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, PhaseProvisioned, env.Phase)
}

func TestDestroy_FromAnyNonTerminalPhase(t *testing.T) {
	for _, phase := range []Phase{PhaseCreated, PhaseProvisioned, PhaseConfigured, PhaseReleased, PhaseRunning} {
		env := createdEnv(t)
		env.Phase = phase

		require.NoError(t, env.Destroy(), "destroy from %s", phase)
		assert.Equal(t, PhaseDestroyed, env.Phase)
	}
}

func TestDestroy_ClearsRuntimeOutputs(t *testing.T) {
	env := provisionedEnv(t)

	require.NoError(t, env.Destroy())
	assert.False(t, env.HasRuntimeOutputs())
}

func TestDestroy_RejectedWhenAlreadyDestroyed(t *testing.T) {
	env := createdEnv(t)
	require.NoError(t, env.Destroy())

	err := env.Destroy()
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

// =============================================================================
// Phase Table Tests
// =============================================================================

func TestValidateTransition_Table(t *testing.T) {
	tests := []struct {
		from, to Phase
		ok       bool
	}{
		{PhaseCreated, PhaseProvisioned, true},
		{PhaseProvisioned, PhaseConfigured, true},
		{PhaseConfigured, PhaseReleased, true},
		{PhaseReleased, PhaseRunning, true},
		{PhaseCreated, PhaseConfigured, false},
		{PhaseProvisioned, PhaseRunning, false},
		{PhaseRunning, PhaseCreated, false},
		{PhaseDestroyed, PhaseProvisioned, false},
		{PhaseRunning, PhaseDestroyed, true},
	}

	for _, tt := range tests {
		err := ValidateTransition(tt.from, tt.to)
		if tt.ok {
			assert.NoError(t, err, "%s -> %s", tt.from, tt.to)
		} else {
			assert.ErrorIs(t, err, ErrInvalidTransition, "%s -> %s", tt.from, tt.to)
		}
	}
}

func TestValidateTransition_UnknownPhase(t *testing.T) {
	err := ValidateTransition("limbo", PhaseDestroyed)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

// =============================================================================
// Name Validation Tests
// =============================================================================

func TestValidateName(t *testing.T) {
	assert.NoError(t, ValidateName("prod"))
	assert.NoError(t, ValidateName("e2e-full-01"))
	assert.ErrorIs(t, ValidateName(""), ErrEmptyName)
	assert.ErrorIs(t, ValidateName("With Space"), ErrInvalidName)
	assert.ErrorIs(t, ValidateName("UPPER"), ErrInvalidName)
	assert.ErrorIs(t, ValidateName("trailing-"), ErrInvalidName)

	long := make([]byte, MaxNameLength+1)
	for i := range long {
		long[i] = 'a'
	}
	assert.ErrorIs(t, ValidateName(string(long)), ErrNameTooLong)
}
