package deploy

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/siammridha/netbird-setup/ca"
	"github.com/siammridha/netbird-setup/interfaces"
	"github.com/siammridha/netbird-setup/render"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockCompose struct {
	mock.Mock
}

func (m *mockCompose) Up(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockCompose) Down(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockCompose) Start(ctx context.Context, service string) error {
	return m.Called(ctx, service).Error(0)
}

func (m *mockCompose) Restart(ctx context.Context, service string) error {
	return m.Called(ctx, service).Error(0)
}

func (m *mockCompose) RestartAll(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockCompose) Exec(ctx context.Context, service string, args ...string) (string, error) {
	called := m.Called(ctx, service, args)
	return called.String(0), called.Error(1)
}

func (m *mockCompose) Logs(ctx context.Context, service string, tail int) (string, error) {
	called := m.Called(ctx, service, tail)
	return called.String(0), called.Error(1)
}

func (m *mockCompose) Health(ctx context.Context, service string) (interfaces.HealthStatus, error) {
	called := m.Called(ctx, service)
	return called.Get(0).(interfaces.HealthStatus), called.Error(1)
}

func (m *mockCompose) Pull(ctx context.Context, image string) error {
	return m.Called(ctx, image).Error(0)
}

type mockSecrets struct {
	mock.Mock
}

func (m *mockSecrets) Reconcile(ctx context.Context, sel interfaces.Selection) (map[interfaces.SecretCategory]string, error) {
	args := m.Called(ctx, sel)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[interfaces.SecretCategory]string), args.Error(1)
}

type mockCA struct {
	mock.Mock
}

func (m *mockCA) Bootstrap(ctx context.Context, sel interfaces.Selection) (ca.State, error) {
	args := m.Called(ctx, sel)
	return args.Get(0).(ca.State), args.Error(1)
}

type mockCatalog struct {
	mock.Mock
}

func (m *mockCatalog) ListRecent() ([]string, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockCatalog) ResolveSelection(input string, candidates []string) string {
	return m.Called(input, candidates).String(0)
}

type mockInspector struct {
	mock.Mock
}

func (m *mockInspector) ManifestContains(archive, prefix string) (bool, error) {
	args := m.Called(archive, prefix)
	return args.Bool(0), args.Error(1)
}

func (m *mockInspector) Extract(archive, destDir string, prefixes ...string) error {
	return m.Called(archive, destDir, prefixes).Error(0)
}

// fakeRenderer records the rendered values and reports a compose file
// path under the test's setup directory.
type fakeRenderer struct {
	composeFile string
	rendered    []render.Values
	err         error
}

func (f *fakeRenderer) RenderAll(v render.Values) (string, error) {
	f.rendered = append(f.rendered, v)
	if f.err != nil {
		return "", f.err
	}
	return f.composeFile, nil
}

func (f *fakeRenderer) ComposeFile() string {
	return f.composeFile
}

type testHarness struct {
	comp     *mockCompose
	secrets  *mockSecrets
	ca       *mockCA
	catalog  *mockCatalog
	insp     *mockInspector
	renderer *fakeRenderer
	out      *bytes.Buffer
	setupDir string
}

func newHarness(t *testing.T, input string) (*Reconciler, *testHarness) {
	t.Helper()
	h := &testHarness{
		comp:     &mockCompose{},
		secrets:  &mockSecrets{},
		ca:       &mockCA{},
		catalog:  &mockCatalog{},
		insp:     &mockInspector{},
		out:      &bytes.Buffer{},
		setupDir: t.TempDir(),
	}
	h.renderer = &fakeRenderer{
		composeFile: filepath.Join(h.setupDir, "config", "docker-compose.yml"),
	}
	r := NewReconciler(Config{
		Compose:   h.comp,
		Secrets:   h.secrets,
		CA:        h.ca,
		Catalog:   h.catalog,
		Inspector: h.insp,
		Renderer:  h.renderer,
		Log:       discardLogger(),
		In:        strings.NewReader(input),
		Out:       h.out,
		// Nonexistent resolver config makes the DNS preflight a no-op.
		ResolvConf: filepath.Join(t.TempDir(), "resolv.conf"),
	})
	return r, h
}

func testParams(h *testHarness) Params {
	return Params{
		Domain:   "vpn.example.com",
		SetupDir: h.setupDir,
		Mode:     interfaces.ModeProd,
	}
}

func secretValues() map[interfaces.SecretCategory]string {
	return map[interfaces.SecretCategory]string{
		interfaces.SecretRelayAuth:    "relay",
		interfaces.SecretDatastoreKey: "datastore",
		interfaces.SecretCAPassword:   "capass",
	}
}

func TestRunDeclinedCleanup(t *testing.T) {
	for _, input := range []string{"n\n", "\n", "nope\n"} {
		r, h := newHarness(t, input)
		err := r.Run(context.Background(), testParams(h))
		assert.ErrorIs(t, err, interfaces.ErrOperatorDeclined, "input %q", input)

		// Declining must leave everything untouched.
		h.comp.AssertNotCalled(t, "Down", mock.Anything)
		h.secrets.AssertNotCalled(t, "Reconcile", mock.Anything, mock.Anything)
		h.ca.AssertNotCalled(t, "Bootstrap", mock.Anything, mock.Anything)
		assert.Empty(t, h.renderer.rendered)
	}
}

func TestRunFreshHappyPath(t *testing.T) {
	r, h := newHarness(t, "y\n")

	expectedSel := interfaces.Selection{
		Domain:   "vpn.example.com",
		SetupDir: h.setupDir,
		Mode:     interfaces.ModeProd,
	}

	h.catalog.On("ListRecent").Return([]string{}, nil)
	h.secrets.On("Reconcile", mock.Anything, expectedSel).Return(secretValues(), nil)
	h.ca.On("Bootstrap", mock.Anything, expectedSel).Return(ca.StateProvisionerAdded, nil)
	h.comp.On("Up", mock.Anything).Return(nil)

	require.NoError(t, r.Run(context.Background(), testParams(h)))

	require.Len(t, h.renderer.rendered, 1)
	values := h.renderer.rendered[0]
	assert.Equal(t, "vpn.example.com", values.Domain)
	assert.Equal(t, "relay", values.RelayAuthSecret)
	assert.Equal(t, "datastore", values.DatastoreEncryptionKey)
	assert.Equal(t, "capass", values.CAPassword)

	// No compose file from a prior run, so no teardown.
	h.comp.AssertNotCalled(t, "Down", mock.Anything)
	// No archives means no management restore attempt.
	h.insp.AssertNotCalled(t, "ManifestContains", mock.Anything, mock.Anything)
	h.comp.AssertCalled(t, "Up", mock.Anything)
}

func TestRunTearsDownPriorDeployment(t *testing.T) {
	r, h := newHarness(t, "y\n")

	require.NoError(t, os.MkdirAll(filepath.Dir(h.renderer.composeFile), 0o700))
	require.NoError(t, os.WriteFile(h.renderer.composeFile, []byte("services: {}"), 0o600))

	h.comp.On("Down", mock.Anything).Return(nil)
	h.catalog.On("ListRecent").Return([]string{}, nil)
	h.secrets.On("Reconcile", mock.Anything, mock.Anything).Return(secretValues(), nil)
	h.ca.On("Bootstrap", mock.Anything, mock.Anything).Return(ca.StateProvisionerPresent, nil)
	h.comp.On("Up", mock.Anything).Return(nil)

	require.NoError(t, r.Run(context.Background(), testParams(h)))

	h.comp.AssertCalled(t, "Down", mock.Anything)
	// The prior rendered config must be gone before rendering anew.
	assert.NoFileExists(t, h.renderer.composeFile)
}

func TestRunWithArchiveRestoresManagement(t *testing.T) {
	r, h := newHarness(t, "y\n1\n")

	archive := "/var/backups/netbird-setup/netbird-backup-20260801-010203.tar.gz"
	candidates := []string{archive}

	h.catalog.On("ListRecent").Return(candidates, nil)
	h.catalog.On("ResolveSelection", "1\n", candidates).Return(archive)

	expectedSel := interfaces.Selection{
		Domain:   "vpn.example.com",
		SetupDir: h.setupDir,
		Mode:     interfaces.ModeProd,
		Archive:  archive,
	}
	h.secrets.On("Reconcile", mock.Anything, expectedSel).Return(secretValues(), nil)
	h.ca.On("Bootstrap", mock.Anything, expectedSel).Return(ca.StateRestored, nil)
	h.insp.On("ManifestContains", archive, managementPrefix).Return(true, nil)
	h.insp.On("Extract", archive, h.setupDir, []string{managementPrefix}).Return(nil)
	h.comp.On("Up", mock.Anything).Return(nil)

	require.NoError(t, r.Run(context.Background(), testParams(h)))

	h.insp.AssertCalled(t, "Extract", archive, h.setupDir, []string{managementPrefix})
	assert.Contains(t, h.out.String(), "netbird-backup-20260801-010203.tar.gz")
}

func TestRunManagementRestoreFailureIsNonFatal(t *testing.T) {
	r, h := newHarness(t, "y\n1\n")

	archive := "/var/backups/netbird-setup/netbird-backup-20260801-010203.tar.gz"
	candidates := []string{archive}

	h.catalog.On("ListRecent").Return(candidates, nil)
	h.catalog.On("ResolveSelection", mock.Anything, candidates).Return(archive)
	h.secrets.On("Reconcile", mock.Anything, mock.Anything).Return(secretValues(), nil)
	h.ca.On("Bootstrap", mock.Anything, mock.Anything).Return(ca.StateRestored, nil)
	h.insp.On("ManifestContains", archive, managementPrefix).Return(false, nil)
	h.comp.On("Up", mock.Anything).Return(nil)

	require.NoError(t, r.Run(context.Background(), testParams(h)))
	h.insp.AssertNotCalled(t, "Extract", mock.Anything, mock.Anything, mock.Anything)
	h.comp.AssertCalled(t, "Up", mock.Anything)
}

func TestRunSecretFailureAbortsBeforeCA(t *testing.T) {
	r, h := newHarness(t, "y\n")

	h.catalog.On("ListRecent").Return([]string{}, nil)
	h.secrets.On("Reconcile", mock.Anything, mock.Anything).
		Return(nil, assert.AnError)

	err := r.Run(context.Background(), testParams(h))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "secret reconciliation failed")
	h.ca.AssertNotCalled(t, "Bootstrap", mock.Anything, mock.Anything)
	h.comp.AssertNotCalled(t, "Up", mock.Anything)
}

func TestRunHeldLockRejectsSecondRun(t *testing.T) {
	r, h := newHarness(t, "y\n")

	// Simulate a concurrent run by holding the lock ourselves.
	held := flock.New(filepath.Join(h.setupDir, interfaces.LockFileName))
	locked, err := held.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	defer held.Unlock()

	err = r.Run(context.Background(), testParams(h))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "another run holds the lock")
	h.secrets.AssertNotCalled(t, "Reconcile", mock.Anything, mock.Anything)
}

func TestRestartMissingComposeFile(t *testing.T) {
	r, h := newHarness(t, "")
	err := r.RestartServices(context.Background())
	assert.ErrorIs(t, err, interfaces.ErrComposeFileMissing)
	h.comp.AssertNotCalled(t, "RestartAll", mock.Anything)
}

func TestRestartServices(t *testing.T) {
	r, h := newHarness(t, "")
	require.NoError(t, os.MkdirAll(filepath.Dir(h.renderer.composeFile), 0o700))
	require.NoError(t, os.WriteFile(h.renderer.composeFile, []byte("services: {}"), 0o600))

	h.comp.On("RestartAll", mock.Anything).Return(nil)
	require.NoError(t, r.RestartServices(context.Background()))
	h.comp.AssertCalled(t, "RestartAll", mock.Anything)
}

func TestUpdatePullFailureContinues(t *testing.T) {
	r, h := newHarness(t, "")
	require.NoError(t, os.MkdirAll(filepath.Dir(h.renderer.composeFile), 0o700))
	require.NoError(t, os.WriteFile(h.renderer.composeFile, []byte(`
services:
  caddy:
    image: caddy:2
  management:
    image: netbirdio/management:latest
`), 0o600))

	h.comp.On("Pull", mock.Anything, "caddy:2").Return(assert.AnError)
	h.comp.On("Pull", mock.Anything, "netbirdio/management:latest").Return(nil)
	h.comp.On("RestartAll", mock.Anything).Return(nil)

	require.NoError(t, r.UpdateServices(context.Background()))
	h.comp.AssertCalled(t, "Pull", mock.Anything, "netbirdio/management:latest")
	h.comp.AssertCalled(t, "RestartAll", mock.Anything)
}

func TestUpdateMissingComposeFile(t *testing.T) {
	r, h := newHarness(t, "")
	err := r.UpdateServices(context.Background())
	assert.ErrorIs(t, err, interfaces.ErrComposeFileMissing)
	h.comp.AssertNotCalled(t, "RestartAll", mock.Anything)
}
