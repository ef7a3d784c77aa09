package app

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trackerdeploy/internal/core/environment"
	"trackerdeploy/internal/core/topology"
	"trackerdeploy/internal/shell/provider"
	"trackerdeploy/internal/shell/remote"
	"trackerdeploy/internal/shell/store"
	"trackerdeploy/internal/shell/tool"
)

// =============================================================================
// Fakes
// =============================================================================

type fakeProvider struct {
	createCalls  int
	destroyCalls int
	createResult *provider.ProvisionResult
	createErr    error
	destroyErr   error
	lastProvReq  provider.ProvisionRequest
	lastDestReq  provider.DestroyRequest
}

func (f *fakeProvider) CreateInstance(_ context.Context, req provider.ProvisionRequest) (*provider.ProvisionResult, error) {
	f.createCalls++
	f.lastProvReq = req
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.createResult, nil
}

func (f *fakeProvider) DestroyInstance(_ context.Context, req provider.DestroyRequest) error {
	f.destroyCalls++
	f.lastDestReq = req
	return f.destroyErr
}

type fakeRemote struct {
	runErr     error
	runStdout  string
	waitErr    error
	uploadErr  error
	commands   []string
	uploads    map[string][]byte
	waitCalls  int
	closeCalls int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{uploads: make(map[string][]byte)}
}

func (f *fakeRemote) Run(_ context.Context, command string) (*remote.CommandResult, error) {
	f.commands = append(f.commands, command)
	if f.runErr != nil {
		return nil, f.runErr
	}
	return &remote.CommandResult{Stdout: f.runStdout}, nil
}

func (f *fakeRemote) Upload(_ context.Context, content []byte, remotePath string, _ string) error {
	if f.uploadErr != nil {
		return f.uploadErr
	}
	f.uploads[remotePath] = content
	return nil
}

func (f *fakeRemote) WaitReady(_ context.Context, _ time.Duration) error {
	f.waitCalls++
	return f.waitErr
}

func (f *fakeRemote) Close() error {
	f.closeCalls++
	return nil
}

type fakeConfig struct {
	playbookErr   error
	playbookCalls int
	lastInventory string
	lastPlaybook  string
	lastVars      map[string]string
}

func (f *fakeConfig) Playbook(_ context.Context, inventoryPath, playbookPath string, extraVars map[string]string) error {
	f.playbookCalls++
	f.lastInventory = inventoryPath
	f.lastPlaybook = playbookPath
	f.lastVars = extraVars
	return f.playbookErr
}

// =============================================================================
// Test Harness
// =============================================================================

type harness struct {
	app      *App
	provider *fakeProvider
	remote   *fakeRemote
	config   *fakeConfig
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)
	fileStore, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)

	h := &harness{
		provider: &fakeProvider{
			createResult: &provider.ProvisionResult{InstanceAddress: "10.0.0.5"},
		},
		remote: newFakeRemote(),
		config: &fakeConfig{},
	}
	h.app = &App{
		cfg: Config{
			BuildDir:     t.TempDir(),
			ReadyTimeout: time.Second,
		},
		store:  fileStore,
		exec:   tool.NewExecutor(logger),
		logger: logger,
		providerFor: func(environment.ProviderSettings) (provider.Provider, error) {
			return h.provider, nil
		},
		remoteFor: func(remote.Endpoint) (RemoteRunner, error) {
			return h.remote, nil
		},
		configFor: func(string) ConfigRunner {
			return h.config
		},
	}
	return h
}

func testInputs() environment.UserInputs {
	return environment.UserInputs{
		SSH: environment.SSHCredentials{
			Username:       "torrust",
			PrivateKeyPath: "/home/torrust/.ssh/id_ed25519",
			PublicKeyPath:  "/home/torrust/.ssh/id_ed25519.pub",
			Port:           22,
		},
		Provider: environment.ProviderSettings{
			Kind:        environment.ProviderTofuLXD,
			ProfileName: "tracker",
		},
		Services: []topology.ServiceDeclaration{
			{Kind: topology.ServiceTracker, Networks: []topology.Network{topology.NetworkDatabase}},
			{Kind: topology.ServiceMySQL, Networks: []topology.Network{topology.NetworkDatabase}},
		},
	}
}

func (h *harness) mustCreate(t *testing.T, name string) {
	t.Helper()
	_, err := h.app.Create(context.Background(), name, testInputs())
	require.NoError(t, err)
}

func (h *harness) mustProvision(t *testing.T, name string) {
	t.Helper()
	_, err := h.app.Provision(context.Background(), name)
	require.NoError(t, err)
}

func (h *harness) phase(t *testing.T, name string) environment.Phase {
	t.Helper()
	env, err := h.app.store.Load(name)
	require.NoError(t, err)
	return env.Phase
}

// =============================================================================
// Create
// =============================================================================

func TestCreate_WritesInitialRecord(t *testing.T) {
	h := newHarness(t)
	h.mustCreate(t, "dev")

	env, err := h.app.store.Load("dev")
	require.NoError(t, err)
	assert.Equal(t, environment.PhaseCreated, env.Phase)
	assert.False(t, env.HasRuntimeOutputs())
}

func TestCreate_DuplicateName(t *testing.T) {
	h := newHarness(t)
	h.mustCreate(t, "dev")

	_, err := h.app.Create(context.Background(), "dev", testInputs())
	require.Error(t, err)
	assert.Equal(t, KindInvalidPhaseTransition, KindOf(err))
}

func TestCreate_RejectsInvalidTopology(t *testing.T) {
	h := newHarness(t)

	inputs := testInputs()
	inputs.Services = append(inputs.Services, topology.ServiceDeclaration{Kind: topology.ServiceTracker})

	_, err := h.app.Create(context.Background(), "dev", inputs)
	require.Error(t, err)
	assert.Equal(t, KindTopologyError, KindOf(err))

	exists, err := h.app.store.Exists("dev")
	require.NoError(t, err)
	assert.False(t, exists, "invalid environment must not be persisted")
}

// =============================================================================
// Provision
// =============================================================================

func TestProvision_CommitsPhaseAndOutputs(t *testing.T) {
	h := newHarness(t)
	h.mustCreate(t, "dev")

	result, err := h.app.Provision(context.Background(), "dev")
	require.NoError(t, err)
	assert.Contains(t, result.Info, "10.0.0.5")

	env, err := h.app.store.Load("dev")
	require.NoError(t, err)
	assert.Equal(t, environment.PhaseProvisioned, env.Phase)
	assert.Equal(t, "10.0.0.5", env.Outputs.InstanceAddress)
	assert.Equal(t, "torrust-tracker-dev", h.provider.lastProvReq.InstanceName)
}

func TestProvision_AdapterFailurePreservesState(t *testing.T) {
	h := newHarness(t)
	h.mustCreate(t, "dev")
	h.provider.createErr = errors.New("engine exploded")

	_, err := h.app.Provision(context.Background(), "dev")
	require.Error(t, err)
	assert.Equal(t, KindAdapterFailure, KindOf(err))

	env, loadErr := h.app.store.Load("dev")
	require.NoError(t, loadErr)
	assert.Equal(t, environment.PhaseCreated, env.Phase)
	assert.False(t, env.HasRuntimeOutputs())
}

func TestProvision_UnknownEnvironment(t *testing.T) {
	h := newHarness(t)

	_, err := h.app.Provision(context.Background(), "ghost")
	require.Error(t, err)
	assert.Equal(t, KindEnvironmentNotFound, KindOf(err))
}

func TestProvision_WrongPhase(t *testing.T) {
	h := newHarness(t)
	h.mustCreate(t, "dev")
	h.mustProvision(t, "dev")

	_, err := h.app.Provision(context.Background(), "dev")
	require.Error(t, err)
	assert.Equal(t, KindInvalidPhaseTransition, KindOf(err))
	assert.Equal(t, 1, h.provider.createCalls, "second provision must not reach the adapter")
}

func TestProvision_UnreadableKeyFailsBeforeProvider(t *testing.T) {
	h := newHarness(t)

	inputs := testInputs()
	inputs.Provider = environment.ProviderSettings{
		Kind:     environment.ProviderHetzner,
		Region:   "fsn1",
		Size:     "cx22",
		TokenEnv: "HCLOUD_TOKEN",
	}
	inputs.SSH.PublicKeyPath = filepath.Join(t.TempDir(), "missing.pub")
	_, err := h.app.Create(context.Background(), "dev", inputs)
	require.NoError(t, err)

	_, err = h.app.Provision(context.Background(), "dev")
	require.Error(t, err)
	assert.Equal(t, KindAdapterFailure, KindOf(err))
	assert.Contains(t, err.Error(), "SSH public key")

	assert.Equal(t, 0, h.provider.createCalls, "key read fails before the adapter is called")
	assert.Equal(t, environment.PhaseCreated, h.phase(t, "dev"))
}

func TestProvision_CloudProviderReceivesKeyMaterial(t *testing.T) {
	h := newHarness(t)

	keyPath := filepath.Join(t.TempDir(), "id_ed25519.pub")
	require.NoError(t, os.WriteFile(keyPath, []byte("ssh-ed25519 AAAATESTKEY torrust"), 0o644))

	inputs := testInputs()
	inputs.Provider = environment.ProviderSettings{
		Kind:     environment.ProviderHetzner,
		Region:   "fsn1",
		Size:     "cx22",
		TokenEnv: "HCLOUD_TOKEN",
	}
	inputs.SSH.PublicKeyPath = keyPath
	_, err := h.app.Create(context.Background(), "dev", inputs)
	require.NoError(t, err)

	h.mustProvision(t, "dev")
	assert.Equal(t, "ssh-ed25519 AAAATESTKEY torrust", h.provider.lastProvReq.SSHPublicKey)
}

// =============================================================================
// Configure
// =============================================================================

func TestConfigure_UsesProvisionedAddress(t *testing.T) {
	h := newHarness(t)
	h.mustCreate(t, "dev")
	h.mustProvision(t, "dev")

	_, err := h.app.Configure(context.Background(), "dev")
	require.NoError(t, err)

	assert.Equal(t, environment.PhaseConfigured, h.phase(t, "dev"))
	assert.Equal(t, 1, h.remote.waitCalls, "configure waits for SSH readiness")
	assert.Equal(t, 1, h.config.playbookCalls)
	assert.Equal(t, "torrust", h.config.lastVars["connect_user"])
}

func TestConfigure_FromCreatedPhase(t *testing.T) {
	h := newHarness(t)
	h.mustCreate(t, "dev")

	_, err := h.app.Configure(context.Background(), "dev")
	require.Error(t, err)
	assert.Equal(t, KindInvalidPhaseTransition, KindOf(err))
	assert.Equal(t, environment.PhaseCreated, h.phase(t, "dev"))
}

func TestConfigure_PlaybookFailurePreservesPhase(t *testing.T) {
	h := newHarness(t)
	h.mustCreate(t, "dev")
	h.mustProvision(t, "dev")
	h.config.playbookErr = errors.New("task failed")

	_, err := h.app.Configure(context.Background(), "dev")
	require.Error(t, err)
	assert.Equal(t, KindAdapterFailure, KindOf(err))
	assert.Equal(t, environment.PhaseProvisioned, h.phase(t, "dev"))
}

// =============================================================================
// Release
// =============================================================================

func TestRelease_UploadsValidatedCompose(t *testing.T) {
	h := newHarness(t)
	h.mustCreate(t, "dev")
	h.mustProvision(t, "dev")
	_, err := h.app.Configure(context.Background(), "dev")
	require.NoError(t, err)

	_, err = h.app.Release(context.Background(), "dev")
	require.NoError(t, err)

	assert.Equal(t, environment.PhaseReleased, h.phase(t, "dev"))
	content, ok := h.remote.uploads["~/torrust-tracker/docker-compose.yml"]
	require.True(t, ok, "compose document must be uploaded")
	assert.Contains(t, string(content), "tracker:")
	assert.Contains(t, string(content), "database_network")
}

func TestRelease_UploadFailurePreservesPhase(t *testing.T) {
	h := newHarness(t)
	h.mustCreate(t, "dev")
	h.mustProvision(t, "dev")
	_, err := h.app.Configure(context.Background(), "dev")
	require.NoError(t, err)
	h.remote.uploadErr = errors.New("connection reset")

	_, err = h.app.Release(context.Background(), "dev")
	require.Error(t, err)
	assert.Equal(t, KindAdapterFailure, KindOf(err))
	assert.Equal(t, environment.PhaseConfigured, h.phase(t, "dev"))
}

// =============================================================================
// Run
// =============================================================================

func (h *harness) toReleased(t *testing.T, name string) {
	t.Helper()
	h.mustCreate(t, name)
	h.mustProvision(t, name)
	_, err := h.app.Configure(context.Background(), name)
	require.NoError(t, err)
	_, err = h.app.Release(context.Background(), name)
	require.NoError(t, err)
}

func TestRun_CommitsWhenAllServicesRunning(t *testing.T) {
	h := newHarness(t)
	h.toReleased(t, "dev")
	h.remote.runStdout = "tracker\nmysql\n"

	_, err := h.app.Run(context.Background(), "dev")
	require.NoError(t, err)
	assert.Equal(t, environment.PhaseRunning, h.phase(t, "dev"))
}

func TestRun_FailsWhenServiceMissing(t *testing.T) {
	h := newHarness(t)
	h.toReleased(t, "dev")
	h.remote.runStdout = "tracker\n"

	_, err := h.app.Run(context.Background(), "dev")
	require.Error(t, err)
	assert.Equal(t, KindAdapterFailure, KindOf(err))
	assert.Contains(t, err.Error(), "mysql")
	assert.Equal(t, environment.PhaseReleased, h.phase(t, "dev"))
}

// =============================================================================
// Destroy
// =============================================================================

func TestDestroy_ClearsOutputsAndCommits(t *testing.T) {
	h := newHarness(t)
	h.mustCreate(t, "dev")
	h.mustProvision(t, "dev")

	result, err := h.app.Destroy(context.Background(), "dev")
	require.NoError(t, err)
	assert.Equal(t, 1, h.provider.destroyCalls)
	assert.Equal(t, "instance destroyed", result.Info)

	env, loadErr := h.app.store.Load("dev")
	require.NoError(t, loadErr)
	assert.Equal(t, environment.PhaseDestroyed, env.Phase)
	assert.False(t, env.HasRuntimeOutputs())
}

func TestDestroy_SecondCallShortCircuits(t *testing.T) {
	h := newHarness(t)
	h.mustCreate(t, "dev")
	h.mustProvision(t, "dev")

	_, err := h.app.Destroy(context.Background(), "dev")
	require.NoError(t, err)

	result, err := h.app.Destroy(context.Background(), "dev")
	require.NoError(t, err)
	assert.Equal(t, "already destroyed", result.Info)
	assert.Equal(t, 1, h.provider.destroyCalls, "second destroy must not invoke the adapter")
}

func TestDestroy_AdapterFailurePreservesState(t *testing.T) {
	h := newHarness(t)
	h.mustCreate(t, "dev")
	h.mustProvision(t, "dev")
	h.provider.destroyErr = errors.New("api unreachable")

	_, err := h.app.Destroy(context.Background(), "dev")
	require.Error(t, err)
	assert.Equal(t, KindAdapterFailure, KindOf(err))
	assert.Contains(t, err.Error(), "local state preserved")

	env, loadErr := h.app.store.Load("dev")
	require.NoError(t, loadErr)
	assert.Equal(t, environment.PhaseProvisioned, env.Phase)
	assert.Equal(t, "10.0.0.5", env.Outputs.InstanceAddress)
}

// =============================================================================
// Purge
// =============================================================================

func TestPurge_RemovesDestroyedRecord(t *testing.T) {
	h := newHarness(t)
	h.mustCreate(t, "dev")
	h.mustProvision(t, "dev")
	_, err := h.app.Destroy(context.Background(), "dev")
	require.NoError(t, err)

	_, err = h.app.Purge(context.Background(), "dev")
	require.NoError(t, err)

	exists, err := h.app.store.Exists("dev")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestPurge_RefusesNonDestroyed(t *testing.T) {
	h := newHarness(t)
	h.mustCreate(t, "dev")

	_, err := h.app.Purge(context.Background(), "dev")
	require.Error(t, err)
	assert.Equal(t, KindInvalidPhaseTransition, KindOf(err))

	exists, existsErr := h.app.store.Exists("dev")
	require.NoError(t, existsErr)
	assert.True(t, exists, "record must survive a refused purge")
}

// =============================================================================
// List / Show
// =============================================================================

func TestList_SummarizesEnvironments(t *testing.T) {
	h := newHarness(t)
	h.mustCreate(t, "alpha")
	h.mustCreate(t, "beta")
	h.mustProvision(t, "beta")

	summaries, err := h.app.List(context.Background())
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	assert.Equal(t, "alpha", summaries[0].Name)
	assert.Equal(t, environment.PhaseCreated, summaries[0].Phase)
	assert.Equal(t, "beta", summaries[1].Name)
	assert.Equal(t, "10.0.0.5", summaries[1].Address)
}

func TestShow_UnknownEnvironment(t *testing.T) {
	h := newHarness(t)

	_, err := h.app.Show(context.Background(), "ghost")
	require.Error(t, err)
	assert.Equal(t, KindEnvironmentNotFound, KindOf(err))
}
