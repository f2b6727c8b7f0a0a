package interfaces

import (
	"errors"
	"fmt"
)

// SecretCategory identifies one of the secret files managed under the
// setup directory. The string value is the canonical file name within
// the secrets directory.
type SecretCategory string

const (
	// SecretRelayAuth is the shared authentication secret for the
	// relay and TURN services.
	SecretRelayAuth SecretCategory = "relay_auth_secret"

	// SecretDatastoreKey is the encryption key for the management
	// service's datastore.
	SecretDatastoreKey SecretCategory = "datastore_encryption_key"

	// SecretCAPassword is the password protecting the step-ca
	// provisioner key.
	SecretCAPassword SecretCategory = "ca_password"
)

// SecretCategories returns all managed categories in a stable order.
func SecretCategories() []SecretCategory {
	return []SecretCategory{SecretRelayAuth, SecretDatastoreKey, SecretCAPassword}
}

// FileName returns the file name for the category within the secrets
// directory.
func (c SecretCategory) FileName() string {
	return string(c)
}

// DeployMode selects which orchestration template variant is rendered.
type DeployMode string

const (
	ModeDev  DeployMode = "dev"
	ModeProd DeployMode = "prod"
)

// ParseDeployMode validates an operator-supplied mode string.
func ParseDeployMode(s string) (DeployMode, error) {
	switch DeployMode(s) {
	case ModeDev:
		return ModeDev, nil
	case ModeProd:
		return ModeProd, nil
	default:
		return "", fmt.Errorf("unsupported deployment mode: %q (expected dev or prod)", s)
	}
}

// Canonical layout under the setup directory. Backup archive member
// paths are relative to the setup directory, so these names double as
// archive path prefixes.
const (
	// SecretsDirName holds the secret category files.
	SecretsDirName = "secrets"

	// CAStateDirName is the step-ca state directory (step path).
	CAStateDirName = "step-ca"

	// ManagementDirName is the coordination service's persistent data
	// directory.
	ManagementDirName = "management"

	// LockFileName is the advisory lock file shared by every command
	// that mutates or snapshots the setup directory.
	LockFileName = ".netbird-setup.lock"
)

// Selection holds the operator-supplied parameters for one
// reconciliation run. It is constructed once the backup choice is
// resolved and is immutable afterwards; every component receives the
// same value, so restore-or-fresh decisions stay consistent.
type Selection struct {
	// Domain is the public domain the control plane is served under.
	Domain string

	// SetupDir is the directory holding secrets, CA state, and
	// coordination service data.
	SetupDir string

	// Mode selects the orchestration template variant.
	Mode DeployMode

	// Archive is the path of the backup archive chosen for this run,
	// or empty when the run proceeds without a restore source.
	Archive string
}

var (
	// ErrSecretNotFound is returned when a secret category has no file
	// and no prefill source could provide a value.
	ErrSecretNotFound = errors.New("secret not found")

	// ErrSecretExists is returned when a write would overwrite an
	// existing secret file. Secret files are never overwritten.
	ErrSecretExists = errors.New("secret already exists")

	// ErrComposeFileMissing is returned when an operation requires the
	// rendered compose file and it is absent.
	ErrComposeFileMissing = errors.New("docker-compose file missing, run deploy first")

	// ErrCAUnhealthy is returned when the certificate authority never
	// reported healthy within the polling budget.
	ErrCAUnhealthy = errors.New("certificate authority did not become healthy")

	// ErrOperatorDeclined signals a voluntary clean exit: the operator
	// answered no at a confirmation gate. It is not a failure.
	ErrOperatorDeclined = errors.New("declined by operator")
)
