package secrets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/siammridha/netbird-setup/interfaces"
)

// SecretsPrefix is the archive member prefix covering the secret
// files. Archive member paths are setup-dir-relative.
const SecretsPrefix = interfaces.SecretsDirName + "/"

// Inspector is the subset of archive operations the lifecycle manager
// needs. The backup package provides the implementation.
type Inspector interface {
	ManifestContains(archive, prefix string) (bool, error)
	Extract(archive, destDir string, prefixes ...string) error
}

// Prefiller supplies values for absent categories before generation.
// Optional; VaultSource implements it.
type Prefiller interface {
	Fetch(ctx context.Context, cat interfaces.SecretCategory) (string, error)
}

// Manager decides, per secret category, between restoring from a
// backup archive and generating fresh material, then loads the
// resolved values. Repeated runs are idempotent: existing files are
// never touched.
type Manager struct {
	store     *Store
	inspector Inspector
	prefill   Prefiller
	log       *slog.Logger
}

// NewManager creates a lifecycle manager. prefill may be nil.
func NewManager(store *Store, inspector Inspector, prefill Prefiller, log *slog.Logger) *Manager {
	return &Manager{
		store:     store,
		inspector: inspector,
		prefill:   prefill,
		log:       log,
	}
}

// Reconcile resolves all secret categories for the run and returns
// their values, trimmed of trailing line endings.
//
// With no archive selected, every absent category is generated. With
// an archive whose manifest covers the secrets prefix, that prefix is
// extracted best-effort first. An archive lacking the prefix entirely
// is treated as predating the secrets layout and therefore untrusted
// for secrets: a warning is logged and the run proceeds as if no
// archive were selected. A final fill pass generates whatever is
// still missing, so a partially covering or corrupt archive degrades
// to fresh material for the affected categories only.
func (m *Manager) Reconcile(ctx context.Context, sel interfaces.Selection) (map[interfaces.SecretCategory]string, error) {
	if sel.Archive != "" {
		covered, err := m.inspector.ManifestContains(sel.Archive, SecretsPrefix)
		if err != nil {
			m.log.Warn("Could not inspect backup archive, generating fresh secrets",
				slog.String("archive", sel.Archive), "err", err)
			covered = false
		}

		if covered {
			if err := m.inspector.Extract(sel.Archive, sel.SetupDir, SecretsPrefix); err != nil {
				m.log.Warn("Secret restore from backup failed, missing categories will be regenerated",
					slog.String("archive", sel.Archive), "err", err)
			}
		} else {
			m.log.Warn("Backup archive does not contain secrets, generating fresh material",
				slog.String("archive", sel.Archive))
		}
	}

	// Fill pass: anything still absent gets a prefill value if one is
	// available, otherwise fresh CSPRNG material.
	for _, cat := range interfaces.SecretCategories() {
		if m.store.Exists(cat) {
			continue
		}
		if m.fillFromPrefill(ctx, cat) {
			continue
		}
		if err := m.store.Generate(cat); err != nil {
			return nil, fmt.Errorf("failed to generate %s: %w", cat, err)
		}
	}

	resolved := make(map[interfaces.SecretCategory]string, len(interfaces.SecretCategories()))
	for _, cat := range interfaces.SecretCategories() {
		value, err := m.store.Load(cat)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", cat, err)
		}
		resolved[cat] = value
	}
	return resolved, nil
}

// fillFromPrefill tries the optional prefill source for an absent
// category. Any prefill failure degrades to generation.
func (m *Manager) fillFromPrefill(ctx context.Context, cat interfaces.SecretCategory) bool {
	if m.prefill == nil {
		return false
	}

	value, err := m.prefill.Fetch(ctx, cat)
	if err != nil {
		if !errors.Is(err, interfaces.ErrSecretNotFound) {
			m.log.Warn("Secret prefill source failed, falling back to generation",
				slog.String("category", string(cat)), "err", err)
		}
		return false
	}

	if err := m.store.Write(cat, value); err != nil {
		m.log.Warn("Could not store prefilled secret, falling back to generation",
			slog.String("category", string(cat)), "err", err)
		return false
	}

	m.log.Info("Filled secret from prefill source",
		slog.String("category", string(cat)))
	return true
}
