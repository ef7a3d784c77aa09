package provider

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trackerdeploy/internal/core/environment"
	"trackerdeploy/internal/shell/tool"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// =============================================================================
// Factory Tests
// =============================================================================

func TestNewProvider_TofuLXD(t *testing.T) {
	p, err := NewProvider(environment.ProviderSettings{Kind: environment.ProviderTofuLXD},
		tool.NewExecutor(testLogger()), testLogger())
	require.NoError(t, err)

	assert.IsType(t, &TofuProvider{}, p)
}

func TestNewProvider_HetznerReadsTokenFromEnv(t *testing.T) {
	t.Setenv("TEST_HCLOUD_TOKEN", "tok-abc123")

	p, err := NewProvider(environment.ProviderSettings{
		Kind:     environment.ProviderHetzner,
		TokenEnv: "TEST_HCLOUD_TOKEN",
	}, tool.NewExecutor(testLogger()), testLogger())
	require.NoError(t, err)

	assert.IsType(t, &HetznerProvider{}, p)
}

func TestNewProvider_MissingToken(t *testing.T) {
	_, err := NewProvider(environment.ProviderSettings{
		Kind:     environment.ProviderDigitalOcean,
		TokenEnv: "TEST_UNSET_DO_TOKEN",
	}, tool.NewExecutor(testLogger()), testLogger())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "TEST_UNSET_DO_TOKEN")
}

func TestNewProvider_MissingTokenEnvName(t *testing.T) {
	_, err := NewProvider(environment.ProviderSettings{
		Kind: environment.ProviderHetzner,
	}, tool.NewExecutor(testLogger()), testLogger())

	assert.Error(t, err)
}

func TestNewProvider_UnknownKind(t *testing.T) {
	_, err := NewProvider(environment.ProviderSettings{Kind: "openstack"},
		tool.NewExecutor(testLogger()), testLogger())

	assert.Error(t, err)
}
