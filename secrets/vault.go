package secrets

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hashicorp/vault/api"

	"github.com/siammridha/netbird-setup/interfaces"
)

// VaultSource reads pre-provisioned secret values from a HashiCorp
// Vault KV v2 path. It is an optional prefill: the lifecycle manager
// consults it only for categories whose file is absent, so the
// no-overwrite invariant is unaffected.
type VaultSource struct {
	client    *api.Client
	mountPath string
	dataPath  string
	log       *slog.Logger
}

// NewVaultSource creates a Vault-backed prefill source.
//
// Parameters:
//   - address: Vault server address (e.g. https://vault.example.com:8200)
//   - mountPath: KV v2 mount path (e.g. "secret")
//   - dataPath: path within the mount holding one field per secret
//     category, named after the category file
//   - token: Vault token; empty falls back to the client environment
func NewVaultSource(address, mountPath, dataPath, token string, log *slog.Logger) (*VaultSource, error) {
	config := api.DefaultConfig()
	config.Address = address
	config.Timeout = 15 * time.Second

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	if token != "" {
		client.SetToken(token)
	}

	mountPath = strings.TrimSuffix(mountPath, "/")
	dataPath = strings.Trim(dataPath, "/")

	return &VaultSource{
		client:    client,
		mountPath: mountPath,
		dataPath:  dataPath,
		log:       log,
	}, nil
}

// Fetch returns the stored value for a category, or ErrSecretNotFound
// when the path or field is absent. Transport and permission errors
// are returned as-is; the caller decides whether they degrade.
func (v *VaultSource) Fetch(ctx context.Context, cat interfaces.SecretCategory) (string, error) {
	// Vault KV v2 path structure.
	path := fmt.Sprintf("%s/data/%s", v.mountPath, v.dataPath)

	secret, err := v.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return "", fmt.Errorf("failed to read from Vault: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return "", fmt.Errorf("%w: vault path %s", interfaces.ErrSecretNotFound, path)
	}

	// Unwrap the KV v2 response envelope.
	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("invalid data format in Vault response at %s", path)
	}

	value, ok := data[cat.FileName()].(string)
	if !ok || value == "" {
		return "", fmt.Errorf("%w: field %s at vault path %s", interfaces.ErrSecretNotFound, cat, path)
	}

	v.log.Debug("Fetched secret from Vault",
		slog.String("category", string(cat)),
		slog.String("path", path))
	return value, nil
}
