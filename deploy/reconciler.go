package deploy

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gofrs/flock"

	"github.com/siammridha/netbird-setup/ca"
	"github.com/siammridha/netbird-setup/compose"
	"github.com/siammridha/netbird-setup/interfaces"
	"github.com/siammridha/netbird-setup/render"
)

// managementPrefix is the archive member prefix covering the
// coordination service's persistent data.
const managementPrefix = interfaces.ManagementDirName + "/"

// SecretReconciler resolves the run's secret values (secrets.Manager).
type SecretReconciler interface {
	Reconcile(ctx context.Context, sel interfaces.Selection) (map[interfaces.SecretCategory]string, error)
}

// CABootstrapper drives CA bring-up (ca.Bootstrapper).
type CABootstrapper interface {
	Bootstrap(ctx context.Context, sel interfaces.Selection) (ca.State, error)
}

// Catalog surfaces restore candidates (backup.Catalog).
type Catalog interface {
	ListRecent() ([]string, error)
	ResolveSelection(input string, candidates []string) string
}

// Inspector is the subset of archive operations the reconciler needs
// for the management data restore (backup.Inspector).
type Inspector interface {
	ManifestContains(archive, prefix string) (bool, error)
	Extract(archive, destDir string, prefixes ...string) error
}

// Renderer renders the configuration set (render.Renderer).
type Renderer interface {
	RenderAll(v render.Values) (composeFile string, err error)
	ComposeFile() string
}

// Params are the operator-supplied inputs for one run, before the
// backup choice is resolved.
type Params struct {
	Domain   string
	SetupDir string
	Mode     interfaces.DeployMode
}

// Config wires a Reconciler.
type Config struct {
	Compose   interfaces.Compose
	Secrets   SecretReconciler
	CA        CABootstrapper
	Catalog   Catalog
	Inspector Inspector
	Renderer  Renderer
	Log       *slog.Logger

	// In and Out carry the operator interaction surface: confirmation
	// prompts and the backup selection menu.
	In  io.Reader
	Out io.Writer

	// ResolvConf overrides the resolver configuration used by the DNS
	// preflight. Empty means /etc/resolv.conf.
	ResolvConf string
}

// Reconciler sequences one deployment run. Each phase's failure
// aborts the remaining sequence; no phase is retried.
type Reconciler struct {
	cfg Config
	in  *bufio.Reader
}

// NewReconciler creates a reconciler.
func NewReconciler(cfg Config) *Reconciler {
	if cfg.In == nil {
		cfg.In = os.Stdin
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	return &Reconciler{cfg: cfg, in: bufio.NewReader(cfg.In)}
}

// Run executes the full reconciliation: cleanup (gated on operator
// confirmation), backup selection, secret lifecycle, config
// rendering, CA bootstrap, management data restore, and service
// activation. A declined confirmation returns
// interfaces.ErrOperatorDeclined, which callers treat as a clean
// voluntary exit rather than a failure.
func (r *Reconciler) Run(ctx context.Context, params Params) error {
	if err := os.MkdirAll(params.SetupDir, 0o750); err != nil {
		return fmt.Errorf("failed to create setup directory: %w", err)
	}

	// The advisory lock turns the single-operator assumption into an
	// enforced invariant.
	lock := flock.New(filepath.Join(params.SetupDir, interfaces.LockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to take run lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another run holds the lock for %s", params.SetupDir)
	}
	defer lock.Unlock()

	r.preflightDNS(params.Domain)

	if err := r.cleanup(ctx); err != nil {
		return err
	}

	archive, err := r.selectBackup()
	if err != nil {
		return err
	}

	// The Selection is complete from here on and shared by every
	// component, so restore-or-fresh decisions stay consistent.
	sel := interfaces.Selection{
		Domain:   params.Domain,
		SetupDir: params.SetupDir,
		Mode:     params.Mode,
		Archive:  archive,
	}

	values, err := r.cfg.Secrets.Reconcile(ctx, sel)
	if err != nil {
		return fmt.Errorf("secret reconciliation failed: %w", err)
	}

	if _, err := r.cfg.Renderer.RenderAll(render.Values{
		Domain:                 sel.Domain,
		SetupDir:               sel.SetupDir,
		Mode:                   sel.Mode,
		RelayAuthSecret:        values[interfaces.SecretRelayAuth],
		DatastoreEncryptionKey: values[interfaces.SecretDatastoreKey],
		CAPassword:             values[interfaces.SecretCAPassword],
	}); err != nil {
		return fmt.Errorf("config rendering failed: %w", err)
	}

	if _, err := r.cfg.CA.Bootstrap(ctx, sel); err != nil {
		return fmt.Errorf("CA bootstrap failed: %w", err)
	}

	r.restoreManagementData(sel)

	if err := r.cfg.Compose.Up(ctx); err != nil {
		return fmt.Errorf("service activation failed: %w", err)
	}

	r.cfg.Log.Info("Deployment reconciled",
		slog.String("domain", sel.Domain),
		slog.String("mode", string(sel.Mode)))
	return nil
}

// cleanup tears down any prior deployment after an explicit operator
// confirmation. Nothing irreversible happens before the gate.
func (r *Reconciler) cleanup(ctx context.Context) error {
	fmt.Fprintln(r.cfg.Out, "This removes existing control plane containers and rendered configuration.")
	answer, err := r.prompt("Continue? [y/N]: ")
	if err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
	default:
		return interfaces.ErrOperatorDeclined
	}

	composeFile := r.cfg.Renderer.ComposeFile()
	if _, err := os.Stat(composeFile); err == nil {
		if err := r.cfg.Compose.Down(ctx); err != nil {
			return fmt.Errorf("failed to stop prior deployment: %w", err)
		}
	} else {
		r.cfg.Log.Debug("No prior compose file, skipping container teardown")
	}

	if err := os.RemoveAll(filepath.Dir(composeFile)); err != nil {
		return fmt.Errorf("failed to remove rendered configuration: %w", err)
	}
	return nil
}

// selectBackup presents up to five restore candidates and resolves
// the operator's pick. Empty input, zero, and anything unparsable all
// mean "no restore".
func (r *Reconciler) selectBackup() (string, error) {
	candidates, err := r.cfg.Catalog.ListRecent()
	if err != nil {
		return "", fmt.Errorf("failed to enumerate backups: %w", err)
	}
	if len(candidates) == 0 {
		r.cfg.Log.Info("No backup archives found, starting fresh")
		return "", nil
	}

	fmt.Fprintln(r.cfg.Out, "Available backups (most recent first):")
	for i, candidate := range candidates {
		fmt.Fprintf(r.cfg.Out, "  %d) %s\n", i+1, filepath.Base(candidate))
	}
	answer, err := r.prompt("Restore from backup [0=none]: ")
	if err != nil {
		return "", err
	}
	return r.cfg.Catalog.ResolveSelection(answer, candidates), nil
}

// restoreManagementData extracts the coordination service's data
// directory when the run's archive covers it. Best effort: a fresh
// management directory is a working (if empty) deployment.
func (r *Reconciler) restoreManagementData(sel interfaces.Selection) {
	if sel.Archive == "" {
		return
	}
	covered, err := r.cfg.Inspector.ManifestContains(sel.Archive, managementPrefix)
	if err != nil {
		r.cfg.Log.Warn("Could not inspect archive for management data", "err", err)
		return
	}
	if !covered {
		r.cfg.Log.Info("Backup archive does not cover management data, starting empty")
		return
	}
	if err := r.cfg.Inspector.Extract(sel.Archive, sel.SetupDir, managementPrefix); err != nil {
		r.cfg.Log.Warn("Management data restore failed, starting empty", "err", err)
	}
}

// RestartServices restarts all declared services. The rendered
// compose file must exist.
func (r *Reconciler) RestartServices(ctx context.Context) error {
	composeFile := r.cfg.Renderer.ComposeFile()
	if _, err := os.Stat(composeFile); os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", interfaces.ErrComposeFileMissing, composeFile)
	}
	return r.cfg.Compose.RestartAll(ctx)
}

// UpdateServices pulls a newer copy of every service image and
// restarts the deployment. A single image that fails to pull keeps
// its local copy and the update continues.
func (r *Reconciler) UpdateServices(ctx context.Context) error {
	images, err := compose.ServiceImages(r.cfg.Renderer.ComposeFile())
	if err != nil {
		return err
	}

	services := make([]string, 0, len(images))
	for service := range images {
		services = append(services, service)
	}
	sort.Strings(services)

	for _, service := range services {
		image := images[service]
		r.cfg.Log.Info("Pulling image",
			slog.String("service", service),
			slog.String("image", image))
		if err := r.cfg.Compose.Pull(ctx, image); err != nil {
			r.cfg.Log.Warn("Image pull failed, keeping local copy",
				slog.String("image", image), "err", err)
		}
	}
	return r.cfg.Compose.RestartAll(ctx)
}

func (r *Reconciler) prompt(question string) (string, error) {
	fmt.Fprint(r.cfg.Out, question)
	line, err := r.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read operator input: %w", err)
	}
	return line, nil
}
