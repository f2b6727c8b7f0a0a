// Package flags holds the flag definitions shared by the
// netbird-setup commands and the logger setup derived from them.
package flags

import (
	"log/slog"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/siammridha/netbird-setup/common"
)

// SetupLogger builds the process logger from the logging flags.
func SetupLogger(cCtx *cli.Context) (log *slog.Logger) {
	logJSON := cCtx.Bool(LogJSONFlag.Name)
	logDebug := cCtx.Bool(LogDebugFlag.Name)
	logUID := cCtx.Bool(LogUIDFlag.Name)

	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   logDebug,
		JSON:    logJSON,
		Service: "netbird-setup",
		Version: common.Version,
	})

	if logUID {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

var LogJSONFlag = &cli.BoolFlag{
	Name:  "log-json",
	Value: false,
	Usage: "log in JSON format",
}

var LogDebugFlag = &cli.BoolFlag{
	Name:  "log-debug",
	Value: false,
	Usage: "log debug messages",
}

var LogUIDFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}

var DomainFlag = &cli.StringFlag{
	Name:     "domain",
	Required: true,
	EnvVars:  []string{"NETBIRD_DOMAIN"},
	Usage:    "public domain the control plane is served under",
}

var SetupDirFlag = &cli.StringFlag{
	Name:    "setup-dir",
	Value:   "/opt/netbird-setup",
	EnvVars: []string{"NETBIRD_SETUP_DIR"},
	Usage:   "directory holding secrets, CA state, and service data",
}

var ModeFlag = &cli.StringFlag{
	Name:    "mode",
	Value:   "prod",
	EnvVars: []string{"NETBIRD_SETUP_MODE"},
	Usage:   "deployment mode: 'dev' or 'prod'",
}

var TemplateDirFlag = &cli.StringFlag{
	Name:    "template-dir",
	Value:   "templates",
	EnvVars: []string{"NETBIRD_TEMPLATE_DIR"},
	Usage:   "directory containing the configuration templates",
}

var BackupDirFlag = &cli.StringFlag{
	Name:    "backup-dir",
	Value:   "/var/backups/netbird-setup",
	EnvVars: []string{"NETBIRD_BACKUP_DIR"},
	Usage:   "directory where backup archives are kept",
}

var VaultAddrFlag = &cli.StringFlag{
	Name:    "vault-addr",
	Value:   "",
	EnvVars: []string{"VAULT_ADDR"},
	Usage:   "optional Vault address to prefill absent secrets from",
}

var VaultMountFlag = &cli.StringFlag{
	Name:  "vault-mount",
	Value: "secret",
	Usage: "Vault KV v2 mount path",
}

var VaultPathFlag = &cli.StringFlag{
	Name:  "vault-path",
	Value: "netbird-setup",
	Usage: "path within the Vault mount holding the secret fields",
}

var VaultTokenFlag = &cli.StringFlag{
	Name:    "vault-token",
	Value:   "",
	EnvVars: []string{"VAULT_TOKEN"},
	Usage:   "Vault token (falls back to the client environment)",
}

var S3BucketFlag = &cli.StringFlag{
	Name:    "s3-bucket",
	Value:   "",
	EnvVars: []string{"NETBIRD_BACKUP_S3_BUCKET"},
	Usage:   "optional S3 bucket to upload finished backups to",
}

var S3PrefixFlag = &cli.StringFlag{
	Name:  "s3-prefix",
	Value: "netbird-setup",
	Usage: "key prefix for uploaded backups",
}

var S3RegionFlag = &cli.StringFlag{
	Name:    "s3-region",
	Value:   "us-east-1",
	EnvVars: []string{"AWS_REGION"},
	Usage:   "region of the backup bucket",
}

var S3EndpointFlag = &cli.StringFlag{
	Name:  "s3-endpoint",
	Value: "",
	Usage: "custom endpoint for S3-compatible services",
}

var S3AccessKeyFlag = &cli.StringFlag{
	Name:    "s3-access-key",
	Value:   "",
	EnvVars: []string{"AWS_ACCESS_KEY_ID"},
	Usage:   "access key for the backup bucket (default credential chain when empty)",
}

var S3SecretKeyFlag = &cli.StringFlag{
	Name:    "s3-secret-key",
	Value:   "",
	EnvVars: []string{"AWS_SECRET_ACCESS_KEY"},
	Usage:   "secret key for the backup bucket",
}
