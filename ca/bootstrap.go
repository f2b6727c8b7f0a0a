package ca

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/juju/clock"
	"github.com/juju/retry"

	"github.com/siammridha/netbird-setup/interfaces"
)

// ServiceName is the CA's service name in the orchestration file.
const ServiceName = "ca"

// StatePrefix is the archive member prefix covering CA state.
const StatePrefix = interfaces.CAStateDirName + "/"

// rootCertPath is where step-ca keeps the root certificate inside the
// container (step path).
const rootCertPath = "certs/root_ca.crt"

// step-ca runs as this uid/gid inside the container; restored and
// freshly created state must be owned accordingly.
const (
	stepUID = 1000
	stepGID = 1000
)

const (
	defaultPollInterval = 2 * time.Second
	defaultPollTimeout  = 10 * time.Second
	defaultSettleDelay  = 5 * time.Second
)

// State is a phase of CA bring-up. Terminal success states are
// StateProvisionerPresent, StateProvisionerAdded, and StateRestored;
// the only terminal failure state is StateTimedOut.
type State string

const (
	StateUninitialized      State = "uninitialized"
	StateDirectoryPrepared  State = "directory-prepared"
	StateStarting           State = "starting"
	StateHealthPolling      State = "health-polling"
	StateHealthy            State = "healthy"
	StateTimedOut           State = "timed-out"
	StateProvisionerPresent State = "provisioner-present"
	StateProvisionerAdded   State = "provisioner-added"
	StateRestored           State = "restored"
)

// Inspector is the subset of archive operations the bootstrapper
// needs. The backup package provides the implementation.
type Inspector interface {
	ManifestContains(archive, prefix string) (bool, error)
	Extract(archive, destDir string, prefixes ...string) error
}

// Config wires a Bootstrapper. Zero durations take the defaults;
// a nil Clock takes the wall clock.
type Config struct {
	Compose   interfaces.Compose
	Inspector Inspector
	Log       *slog.Logger

	Clock        clock.Clock
	PollInterval time.Duration
	PollTimeout  time.Duration
	SettleDelay  time.Duration
}

// Bootstrapper drives the certificate authority from cold start to a
// healthy, ACME-provisioned state, or restores its persisted state
// wholesale from a backup archive. It exclusively owns the CA state
// directory.
type Bootstrapper struct {
	compose   interfaces.Compose
	inspector Inspector
	log       *slog.Logger

	clock        clock.Clock
	pollInterval time.Duration
	pollTimeout  time.Duration
	settleDelay  time.Duration

	state       State
	fingerprint string
}

// NewBootstrapper creates a bootstrapper in StateUninitialized.
func NewBootstrapper(cfg Config) *Bootstrapper {
	b := &Bootstrapper{
		compose:      cfg.Compose,
		inspector:    cfg.Inspector,
		log:          cfg.Log,
		clock:        cfg.Clock,
		pollInterval: cfg.PollInterval,
		pollTimeout:  cfg.PollTimeout,
		settleDelay:  cfg.SettleDelay,
		state:        StateUninitialized,
	}
	if b.clock == nil {
		b.clock = clock.WallClock
	}
	if b.pollInterval <= 0 {
		b.pollInterval = defaultPollInterval
	}
	if b.pollTimeout <= 0 {
		b.pollTimeout = defaultPollTimeout
	}
	if b.settleDelay <= 0 {
		b.settleDelay = defaultSettleDelay
	}
	return b
}

// State returns the current bring-up state.
func (b *Bootstrapper) State() State {
	return b.state
}

// Fingerprint returns the CA root certificate fingerprint read after
// the last successful bootstrap, or empty if retrieval failed.
func (b *Bootstrapper) Fingerprint() string {
	return b.fingerprint
}

// Bootstrap brings the CA to a terminal success state, restoring from
// the run's archive when it covers CA state and performing the full
// bring-up sequence otherwise. A health-poll timeout is fatal and is
// reported after surfacing the service's recent log output.
func (b *Bootstrapper) Bootstrap(ctx context.Context, sel interfaces.Selection) (State, error) {
	stateDir := filepath.Join(sel.SetupDir, interfaces.CAStateDirName)

	if sel.Archive != "" {
		covered, err := b.inspector.ManifestContains(sel.Archive, StatePrefix)
		if err != nil {
			b.log.Warn("Could not inspect backup archive for CA state, performing fresh bring-up",
				slog.String("archive", sel.Archive), "err", err)
			covered = false
		}
		if covered {
			return b.restore(ctx, sel, stateDir)
		}
		b.log.Info("Backup archive does not cover CA state, performing fresh bring-up",
			slog.String("archive", sel.Archive))
	}

	return b.bringUp(ctx, stateDir)
}

// restore extracts the persisted CA state verbatim. The restored
// state already carries its provisioner set, so neither health
// polling nor the provisioner check is needed.
func (b *Bootstrapper) restore(ctx context.Context, sel interfaces.Selection, stateDir string) (State, error) {
	b.log.Info("Restoring CA state from backup", slog.String("archive", sel.Archive))

	if err := b.inspector.Extract(sel.Archive, sel.SetupDir, StatePrefix); err != nil {
		return b.state, fmt.Errorf("failed to restore CA state: %w", err)
	}
	b.fixOwnership(stateDir)

	b.setState(StateRestored)
	b.readFingerprint(ctx)
	return b.state, nil
}

func (b *Bootstrapper) bringUp(ctx context.Context, stateDir string) (State, error) {
	if err := os.MkdirAll(stateDir, 0o750); err != nil {
		return b.state, fmt.Errorf("failed to create CA state directory: %w", err)
	}
	b.fixOwnership(stateDir)
	b.setState(StateDirectoryPrepared)

	if err := b.compose.Start(ctx, ServiceName); err != nil {
		return b.state, fmt.Errorf("failed to start CA service: %w", err)
	}
	b.setState(StateStarting)

	if err := b.pollHealth(ctx); err != nil {
		b.setState(StateTimedOut)
		b.surfaceLogs(ctx)
		return b.state, fmt.Errorf("%w within %s: %v", interfaces.ErrCAUnhealthy, b.pollTimeout, err)
	}
	b.setState(StateHealthy)

	state, err := b.ensureProvisioner(ctx)
	if err != nil {
		return b.state, err
	}
	b.setState(state)
	b.readFingerprint(ctx)
	return b.state, nil
}

// pollHealth blocks in fixed-interval steps until the CA reports
// healthy or the poll budget is exhausted.
func (b *Bootstrapper) pollHealth(ctx context.Context) error {
	b.setState(StateHealthPolling)

	attempts := int(b.pollTimeout / b.pollInterval)
	if attempts < 1 {
		attempts = 1
	}

	return retry.Call(retry.CallArgs{
		Func: func() error {
			status, err := b.compose.Health(ctx, ServiceName)
			if err != nil {
				return err
			}
			if status != interfaces.HealthHealthy {
				return fmt.Errorf("ca reports %s", status)
			}
			return nil
		},
		NotifyFunc: func(err error, attempt int) {
			b.log.Debug("CA not healthy yet",
				slog.Int("attempt", attempt), "err", err)
		},
		Attempts: attempts,
		Delay:    b.pollInterval,
		Clock:    b.clock,
		Stop:     ctx.Done(),
	})
}

// ensureProvisioner adds an ACME provisioner unless one is already
// present. The check-before-add is what keeps repeated runs against
// the same CA state from accumulating provisioners.
func (b *Bootstrapper) ensureProvisioner(ctx context.Context) (State, error) {
	state, err := b.provisionerState(ctx)
	if err != nil {
		return b.state, fmt.Errorf("failed to query CA provisioners: %w", err)
	}
	if state == interfaces.ProvisionerPresent {
		b.log.Info("ACME provisioner already configured")
		return StateProvisionerPresent, nil
	}

	b.log.Info("Adding ACME provisioner")
	if _, err := b.compose.Exec(ctx, ServiceName,
		"step", "ca", "provisioner", "add", "acme", "--type", "ACME"); err != nil {
		return b.state, fmt.Errorf("failed to add ACME provisioner: %w", err)
	}
	if err := b.compose.Restart(ctx, ServiceName); err != nil {
		return b.state, fmt.Errorf("failed to restart CA after provisioner change: %w", err)
	}
	if err := b.settle(ctx); err != nil {
		return b.state, err
	}
	return StateProvisionerAdded, nil
}

// settle waits the fixed period after a restart so configuration
// changes take effect before anything checks on the CA again.
func (b *Bootstrapper) settle(ctx context.Context) error {
	select {
	case <-b.clock.After(b.settleDelay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bootstrapper) provisionerState(ctx context.Context) (interfaces.ProvisionerState, error) {
	out, err := b.compose.Exec(ctx, ServiceName, "step", "ca", "provisioner", "list")
	if err != nil {
		return interfaces.ProvisionerUnknown, err
	}
	return parseProvisionerList(out)
}

// readFingerprint surfaces the root certificate fingerprint for
// operator display. Best effort only.
func (b *Bootstrapper) readFingerprint(ctx context.Context) {
	out, err := b.compose.Exec(ctx, ServiceName,
		"step", "certificate", "fingerprint", rootCertPath)
	if err != nil {
		b.log.Warn("Could not read CA root fingerprint", "err", err)
		return
	}
	b.fingerprint = strings.TrimSpace(out)
	b.log.Info("CA root certificate fingerprint",
		slog.String("fingerprint", b.fingerprint))
}

// surfaceLogs prints the CA's recent log output so the operator sees
// why bring-up failed before the run aborts.
func (b *Bootstrapper) surfaceLogs(ctx context.Context) {
	out, err := b.compose.Logs(ctx, ServiceName, 40)
	if err != nil {
		b.log.Warn("Could not fetch CA logs", "err", err)
		return
	}
	b.log.Error("CA service log output", slog.String("logs", out))
}

// fixOwnership hands the state directory to the container's step
// user. Needs root; otherwise ownership is left for the operator.
func (b *Bootstrapper) fixOwnership(stateDir string) {
	if os.Geteuid() != 0 {
		b.log.Debug("Not running as root, leaving CA state ownership unchanged",
			slog.String("path", stateDir))
		return
	}
	err := filepath.WalkDir(stateDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		return os.Lchown(path, stepUID, stepGID)
	})
	if err != nil {
		b.log.Warn("Could not fix CA state ownership",
			slog.String("path", stateDir), "err", err)
	}
}

func (b *Bootstrapper) setState(next State) {
	b.log.Debug("CA bootstrap transition",
		slog.String("from", string(b.state)),
		slog.String("to", string(next)))
	b.state = next
}
