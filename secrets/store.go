package secrets

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/siammridha/netbird-setup/interfaces"
)

// secretBytes is the amount of CSPRNG material per generated secret.
// Values are hex encoded on disk, so files hold twice as many
// characters.
const secretBytes = 32

// Store reads and writes the secret files under the setup directory's
// secrets subdirectory. It owns those files exclusively: nothing else
// in the system touches them directly, and the store itself never
// overwrites a file that already exists.
type Store struct {
	dir string
	log *slog.Logger
}

// NewStore creates a store rooted at <setupDir>/secrets. The directory
// is created lazily on the first write.
func NewStore(setupDir string, log *slog.Logger) *Store {
	return &Store{
		dir: filepath.Join(setupDir, interfaces.SecretsDirName),
		log: log,
	}
}

// Dir returns the secrets directory path.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the file path for a category.
func (s *Store) Path(cat interfaces.SecretCategory) string {
	return filepath.Join(s.dir, cat.FileName())
}

// Exists reports whether the category's file is present.
func (s *Store) Exists(cat interfaces.SecretCategory) bool {
	_, err := os.Stat(s.Path(cat))
	return err == nil
}

// Generate fills an absent category with fresh CSPRNG material. An
// existing file is left untouched and reported as success. A failure
// of the randomness source propagates; there is no fallback.
func (s *Store) Generate(cat interfaces.SecretCategory) error {
	if s.Exists(cat) {
		s.log.Debug("Secret already present, keeping it",
			slog.String("category", string(cat)))
		return nil
	}

	buf := make([]byte, secretBytes)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return fmt.Errorf("failed to read random bytes for %s: %w", cat, err)
	}

	if err := s.write(cat, hex.EncodeToString(buf)); err != nil {
		return err
	}

	s.log.Info("Generated secret",
		slog.String("category", string(cat)),
		slog.String("path", s.Path(cat)))
	return nil
}

// Write stores an externally supplied value for an absent category.
// Writing over an existing file returns ErrSecretExists.
func (s *Store) Write(cat interfaces.SecretCategory, value string) error {
	if s.Exists(cat) {
		return fmt.Errorf("%w: %s", interfaces.ErrSecretExists, cat)
	}
	return s.write(cat, value)
}

// Load reads a category's value, stripping trailing line-ending
// characters so shell-created files and generated files compare equal.
func (s *Store) Load(cat interfaces.SecretCategory) (string, error) {
	data, err := os.ReadFile(s.Path(cat))
	if os.IsNotExist(err) {
		return "", fmt.Errorf("%w: %s", interfaces.ErrSecretNotFound, cat)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read secret %s: %w", cat, err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

func (s *Store) write(cat interfaces.SecretCategory, value string) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("failed to create secrets directory: %w", err)
	}

	// O_EXCL keeps the no-overwrite invariant enforced at the lowest
	// level even if a presence check raced a concurrent writer.
	f, err := os.OpenFile(s.Path(cat), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("%w: %s", interfaces.ErrSecretExists, cat)
		}
		return fmt.Errorf("failed to create secret file: %w", err)
	}

	if _, err := f.WriteString(value + "\n"); err != nil {
		f.Close()
		return fmt.Errorf("failed to write secret file: %w", err)
	}
	return f.Close()
}
