package main

import (
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/urfave/cli/v2"

	"github.com/siammridha/netbird-setup/backup"
	"github.com/siammridha/netbird-setup/ca"
	"github.com/siammridha/netbird-setup/cmd/flags"
	"github.com/siammridha/netbird-setup/compose"
	"github.com/siammridha/netbird-setup/deploy"
	"github.com/siammridha/netbird-setup/interfaces"
	"github.com/siammridha/netbird-setup/render"
	"github.com/siammridha/netbird-setup/secrets"
)

var baseFlags = []cli.Flag{
	flags.SetupDirFlag,
	flags.BackupDirFlag,
	flags.LogJSONFlag,
	flags.LogDebugFlag,
	flags.LogUIDFlag,
}

func main() {
	app := &cli.App{
		Name:  "netbird-setup",
		Usage: "Provision and maintain a self-hosted NetBird VPN control plane",
		Commands: []*cli.Command{
			{
				Name:  "deploy",
				Usage: "Reconcile the deployment: secrets, CA, configuration, services",
				Flags: append([]cli.Flag{
					flags.DomainFlag,
					flags.ModeFlag,
					flags.TemplateDirFlag,
					flags.VaultAddrFlag,
					flags.VaultMountFlag,
					flags.VaultPathFlag,
					flags.VaultTokenFlag,
				}, baseFlags...),
				Action: runDeploy,
			},
			{
				Name:  "backup",
				Usage: "Create a timestamped backup archive of the current state",
				Flags: append([]cli.Flag{
					flags.S3BucketFlag,
					flags.S3PrefixFlag,
					flags.S3RegionFlag,
					flags.S3EndpointFlag,
					flags.S3AccessKeyFlag,
					flags.S3SecretKeyFlag,
				}, baseFlags...),
				Action: runBackup,
			},
			{
				Name:   "restart",
				Usage:  "Restart all control plane services",
				Flags:  baseFlags,
				Action: runRestart,
			},
			{
				Name:   "update",
				Usage:  "Pull newer service images and restart the deployment",
				Flags:  baseFlags,
				Action: runUpdate,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runDeploy(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)
	setupDir := cCtx.String(flags.SetupDirFlag.Name)

	mode, err := interfaces.ParseDeployMode(cCtx.String(flags.ModeFlag.Name))
	if err != nil {
		return err
	}

	inspector := backup.NewInspector(logger)
	store := secrets.NewStore(setupDir, logger)

	var prefill secrets.Prefiller
	if vaultAddr := cCtx.String(flags.VaultAddrFlag.Name); vaultAddr != "" {
		source, err := secrets.NewVaultSource(
			vaultAddr,
			cCtx.String(flags.VaultMountFlag.Name),
			cCtx.String(flags.VaultPathFlag.Name),
			cCtx.String(flags.VaultTokenFlag.Name),
			logger,
		)
		if err != nil {
			return err
		}
		prefill = source
		logger.Info("Using Vault secret prefill", slog.String("addr", vaultAddr))
	}

	renderer := render.NewRenderer(
		cCtx.String(flags.TemplateDirFlag.Name),
		filepath.Join(setupDir, "config"),
		logger,
	)
	runner := compose.NewRunner(renderer.ComposeFile(), logger)

	reconciler := deploy.NewReconciler(deploy.Config{
		Compose: runner,
		Secrets: secrets.NewManager(store, inspector, prefill, logger),
		CA: ca.NewBootstrapper(ca.Config{
			Compose:   runner,
			Inspector: inspector,
			Log:       logger,
		}),
		Catalog:   backup.NewCatalog(cCtx.String(flags.BackupDirFlag.Name), logger),
		Inspector: inspector,
		Renderer:  renderer,
		Log:       logger,
	})

	err = reconciler.Run(cCtx.Context, deploy.Params{
		Domain:   cCtx.String(flags.DomainFlag.Name),
		SetupDir: setupDir,
		Mode:     mode,
	})
	if errors.Is(err, interfaces.ErrOperatorDeclined) {
		logger.Info("Aborted by operator, nothing was changed")
		return nil
	}
	return err
}

func runBackup(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)
	setupDir := cCtx.String(flags.SetupDirFlag.Name)

	// Hold the same advisory lock as deploy so a snapshot never races a
	// reconciliation run mutating the directories it captures.
	lock := flock.New(filepath.Join(setupDir, interfaces.LockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to take run lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another run holds the lock for %s", setupDir)
	}
	defer lock.Unlock()

	var uploader backup.Uploader
	if bucket := cCtx.String(flags.S3BucketFlag.Name); bucket != "" {
		s3Uploader, err := backup.NewS3Uploader(
			bucket,
			cCtx.String(flags.S3PrefixFlag.Name),
			cCtx.String(flags.S3RegionFlag.Name),
			cCtx.String(flags.S3EndpointFlag.Name),
			cCtx.String(flags.S3AccessKeyFlag.Name),
			cCtx.String(flags.S3SecretKeyFlag.Name),
			logger,
		)
		if err != nil {
			return err
		}
		uploader = s3Uploader
	}

	writer := backup.NewWriter(cCtx.String(flags.BackupDirFlag.Name), uploader, logger)
	archive, err := writer.CreateBackup(cCtx.Context, setupDir)
	if err != nil {
		return err
	}
	logger.Info("Backup complete", slog.String("archive", archive))
	return nil
}

func runRestart(cCtx *cli.Context) error {
	return newMaintenanceReconciler(cCtx).RestartServices(cCtx.Context)
}

func runUpdate(cCtx *cli.Context) error {
	return newMaintenanceReconciler(cCtx).UpdateServices(cCtx.Context)
}

// newMaintenanceReconciler wires the subset needed by restart/update:
// the rendered compose file location and the orchestrator.
func newMaintenanceReconciler(cCtx *cli.Context) *deploy.Reconciler {
	logger := flags.SetupLogger(cCtx)
	renderer := render.NewRenderer(
		"",
		filepath.Join(cCtx.String(flags.SetupDirFlag.Name), "config"),
		logger,
	)
	return deploy.NewReconciler(deploy.Config{
		Compose:  compose.NewRunner(renderer.ComposeFile(), logger),
		Renderer: renderer,
		Log:      logger,
	})
}
