package backup

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// Inspector answers containment questions about backup archives and
// performs selective extraction. Containment is decided from the tar
// header walk alone; no member data is read for it.
type Inspector struct {
	log *slog.Logger
}

// NewInspector creates an archive inspector.
func NewInspector(log *slog.Logger) *Inspector {
	return &Inspector{log: log}
}

// ManifestContains reports whether any member path in the archive
// starts with the given prefix.
func (i *Inspector) ManifestContains(archive, prefix string) (bool, error) {
	found := false
	err := i.walk(archive, func(hdr *tar.Header, _ *tar.Reader) error {
		if strings.HasPrefix(hdr.Name, prefix) {
			found = true
			return errStopWalk
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

// Extract restores all members matching any of the prefixes into
// destDir. Extraction is best effort: a member that fails to unpack
// is logged and skipped, and the caller is expected to detect what is
// missing with its own existence checks afterwards. Only failures to
// open or decode the archive itself are returned.
func (i *Inspector) Extract(archive, destDir string, prefixes ...string) error {
	return i.walk(archive, func(hdr *tar.Header, tr *tar.Reader) error {
		if !matchesAny(hdr.Name, prefixes) {
			return nil
		}
		if err := i.extractMember(hdr, tr, destDir); err != nil {
			i.log.Warn("Skipping unextractable archive member",
				slog.String("member", hdr.Name), "err", err)
		}
		return nil
	})
}

var errStopWalk = errors.New("stop walk")

// walk opens the archive and calls fn for every member header. The
// reader passed to fn is positioned at the member's data.
func (i *Inspector) walk(archive string, fn func(*tar.Header, *tar.Reader) error) error {
	f, err := os.Open(archive)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("failed to read archive compression: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read archive member list: %w", err)
		}
		if err := fn(hdr, tr); err != nil {
			if errors.Is(err, errStopWalk) {
				return nil
			}
			return err
		}
	}
}

func (i *Inspector) extractMember(hdr *tar.Header, tr *tar.Reader, destDir string) error {
	// Reject members that would escape the destination.
	cleaned := filepath.Clean(hdr.Name)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") || filepath.IsAbs(cleaned) {
		return fmt.Errorf("member path escapes destination: %s", hdr.Name)
	}
	target := filepath.Join(destDir, cleaned)

	switch hdr.Typeflag {
	case tar.TypeDir:
		return os.MkdirAll(target, os.FileMode(hdr.Mode).Perm())
	case tar.TypeReg:
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, os.FileMode(hdr.Mode).Perm())
		if err != nil {
			return err
		}
		if _, err := io.Copy(f, tr); err != nil {
			f.Close()
			os.Remove(target)
			return err
		}
		return f.Close()
	case tar.TypeSymlink:
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		os.Remove(target)
		return os.Symlink(hdr.Linkname, target)
	default:
		i.log.Debug("Ignoring archive member of unsupported type",
			slog.String("member", hdr.Name),
			slog.Int("type", int(hdr.Typeflag)))
		return nil
	}
}

func matchesAny(name string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}
