package secrets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/siammridha/netbird-setup/interfaces"
)

// mockInspector implements Inspector for testing.
type mockInspector struct {
	mock.Mock
}

func (m *mockInspector) ManifestContains(archive, prefix string) (bool, error) {
	args := m.Called(archive, prefix)
	return args.Bool(0), args.Error(1)
}

func (m *mockInspector) Extract(archive, destDir string, prefixes ...string) error {
	args := m.Called(archive, destDir, prefixes)
	return args.Error(0)
}

// mockPrefiller implements Prefiller for testing.
type mockPrefiller struct {
	mock.Mock
}

func (m *mockPrefiller) Fetch(ctx context.Context, cat interfaces.SecretCategory) (string, error) {
	args := m.Called(ctx, cat)
	return args.String(0), args.Error(1)
}

func writeSecretFile(t *testing.T, setupDir string, cat interfaces.SecretCategory, value string) {
	t.Helper()
	dir := filepath.Join(setupDir, interfaces.SecretsDirName)
	require.NoError(t, os.MkdirAll(dir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, cat.FileName()), []byte(value+"\n"), 0o600))
}

func TestReconcileNoArchiveGeneratesAll(t *testing.T) {
	setupDir := t.TempDir()
	inspector := &mockInspector{}
	manager := NewManager(NewStore(setupDir, discardLogger()), inspector, nil, discardLogger())

	values, err := manager.Reconcile(context.Background(), interfaces.Selection{SetupDir: setupDir})
	require.NoError(t, err)

	assert.Len(t, values, 3)
	for _, cat := range interfaces.SecretCategories() {
		assert.Len(t, values[cat], 64, "category %s", cat)
	}
	inspector.AssertNotCalled(t, "ManifestContains", mock.Anything, mock.Anything)
}

func TestReconcileKeepsExistingFiles(t *testing.T) {
	setupDir := t.TempDir()
	writeSecretFile(t, setupDir, interfaces.SecretRelayAuth, "pre-existing")

	manager := NewManager(NewStore(setupDir, discardLogger()), &mockInspector{}, nil, discardLogger())
	values, err := manager.Reconcile(context.Background(), interfaces.Selection{SetupDir: setupDir})
	require.NoError(t, err)

	assert.Equal(t, "pre-existing", values[interfaces.SecretRelayAuth])
	assert.Len(t, values[interfaces.SecretDatastoreKey], 64)
	assert.Len(t, values[interfaces.SecretCAPassword], 64)
}

func TestReconcileArchiveWithoutSecretsPrefix(t *testing.T) {
	setupDir := t.TempDir()
	inspector := &mockInspector{}
	inspector.On("ManifestContains", "/backups/old.tar.gz", SecretsPrefix).Return(false, nil)

	manager := NewManager(NewStore(setupDir, discardLogger()), inspector, nil, discardLogger())
	values, err := manager.Reconcile(context.Background(), interfaces.Selection{
		SetupDir: setupDir,
		Archive:  "/backups/old.tar.gz",
	})
	require.NoError(t, err)

	// All three freshly generated, never a restore attempt.
	assert.Len(t, values, 3)
	inspector.AssertNotCalled(t, "Extract", mock.Anything, mock.Anything, mock.Anything)
}

func TestReconcilePartialRestoreFillsOnlyMissing(t *testing.T) {
	setupDir := t.TempDir()
	archive := "/backups/partial.tar.gz"

	inspector := &mockInspector{}
	inspector.On("ManifestContains", archive, SecretsPrefix).Return(true, nil)
	inspector.On("Extract", archive, setupDir, []string{SecretsPrefix}).
		Run(func(args mock.Arguments) {
			// The archive held only the relay secret.
			writeSecretFile(t, setupDir, interfaces.SecretRelayAuth, "restored-value")
		}).
		Return(nil)

	manager := NewManager(NewStore(setupDir, discardLogger()), inspector, nil, discardLogger())
	values, err := manager.Reconcile(context.Background(), interfaces.Selection{
		SetupDir: setupDir,
		Archive:  archive,
	})
	require.NoError(t, err)

	assert.Equal(t, "restored-value", values[interfaces.SecretRelayAuth])
	assert.Len(t, values[interfaces.SecretDatastoreKey], 64)
	assert.Len(t, values[interfaces.SecretCAPassword], 64)
}

func TestReconcileExtractionFailureRegenerates(t *testing.T) {
	setupDir := t.TempDir()
	archive := "/backups/corrupt.tar.gz"

	inspector := &mockInspector{}
	inspector.On("ManifestContains", archive, SecretsPrefix).Return(true, nil)
	inspector.On("Extract", archive, setupDir, []string{SecretsPrefix}).
		Return(fmt.Errorf("unexpected EOF"))

	manager := NewManager(NewStore(setupDir, discardLogger()), inspector, nil, discardLogger())
	values, err := manager.Reconcile(context.Background(), interfaces.Selection{
		SetupDir: setupDir,
		Archive:  archive,
	})
	require.NoError(t, err, "extraction failure is recoverable")
	assert.Len(t, values, 3)
	for _, cat := range interfaces.SecretCategories() {
		assert.Len(t, values[cat], 64)
	}
}

func TestReconcilePrefillFillsAbsences(t *testing.T) {
	setupDir := t.TempDir()
	writeSecretFile(t, setupDir, interfaces.SecretCAPassword, "already-here")

	prefill := &mockPrefiller{}
	prefill.On("Fetch", mock.Anything, interfaces.SecretRelayAuth).Return("from-vault", nil)
	prefill.On("Fetch", mock.Anything, interfaces.SecretDatastoreKey).
		Return("", fmt.Errorf("%w: not stored", interfaces.ErrSecretNotFound))

	manager := NewManager(NewStore(setupDir, discardLogger()), &mockInspector{}, prefill, discardLogger())
	values, err := manager.Reconcile(context.Background(), interfaces.Selection{SetupDir: setupDir})
	require.NoError(t, err)

	assert.Equal(t, "from-vault", values[interfaces.SecretRelayAuth])
	assert.Len(t, values[interfaces.SecretDatastoreKey], 64, "falls back to generation")
	assert.Equal(t, "already-here", values[interfaces.SecretCAPassword])
	// The present category was never offered to the prefill source.
	prefill.AssertNotCalled(t, "Fetch", mock.Anything, interfaces.SecretCAPassword)
}
