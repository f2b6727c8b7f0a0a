package backup

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/siammridha/netbird-setup/interfaces"
)

// sourceDirs are the setup-dir-relative directories captured by a
// backup, and excludedPrefixes the members always left out. The CA's
// internal database and certificate templates are rebuilt on the next
// bring-up; archiving them would only bloat every snapshot.
var (
	sourceDirs = []string{
		interfaces.SecretsDirName,
		interfaces.CAStateDirName,
		interfaces.ManagementDirName,
	}
	excludedPrefixes = []string{
		interfaces.CAStateDirName + "/db/",
		interfaces.CAStateDirName + "/templates/",
	}
)

// Uploader pushes a finished archive to off-site storage. Optional;
// upload failures never invalidate the local archive.
type Uploader interface {
	Upload(ctx context.Context, archivePath string) error
}

// Writer produces timestamped backup archives of the current setup
// directory state.
type Writer struct {
	backupDir string
	uploader  Uploader
	log       *slog.Logger

	// now is replaced in tests to pin the embedded timestamp.
	now func() time.Time
}

// NewWriter creates a backup writer targeting backupDir. uploader may
// be nil.
func NewWriter(backupDir string, uploader Uploader, log *slog.Logger) *Writer {
	return &Writer{
		backupDir: backupDir,
		uploader:  uploader,
		log:       log,
		now:       time.Now,
	}
}

// CreateBackup snapshots the setup directory into a new archive and
// returns its path. Missing source directories are logged and
// skipped: a partial environment still yields a best-effort archive.
func (w *Writer) CreateBackup(ctx context.Context, setupDir string) (string, error) {
	if err := os.MkdirAll(w.backupDir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	name := archivePrefix + w.now().Format(timestampFormat) + archiveSuffix
	archivePath := filepath.Join(w.backupDir, name)

	f, err := os.OpenFile(archivePath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("failed to create archive: %w", err)
	}

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)

	var addErr error
	for _, dir := range sourceDirs {
		source := filepath.Join(setupDir, dir)
		if _, err := os.Stat(source); os.IsNotExist(err) {
			w.log.Warn("Backup source missing, skipping",
				slog.String("path", source))
			continue
		}
		if err := w.addTree(tw, setupDir, source); err != nil {
			addErr = err
			break
		}
	}

	if err := tw.Close(); err != nil && addErr == nil {
		addErr = err
	}
	if err := gz.Close(); err != nil && addErr == nil {
		addErr = err
	}
	if err := f.Close(); err != nil && addErr == nil {
		addErr = err
	}
	if addErr != nil {
		os.Remove(archivePath)
		return "", fmt.Errorf("failed to write archive: %w", addErr)
	}

	w.log.Info("Created backup archive", slog.String("path", archivePath))

	if w.uploader != nil {
		if err := w.uploader.Upload(ctx, archivePath); err != nil {
			w.log.Warn("Off-site upload failed, local archive is kept",
				slog.String("path", archivePath), "err", err)
		}
	}
	return archivePath, nil
}

// addTree writes one source tree into the archive with member paths
// relative to setupDir, honoring the exclusion list.
func (w *Writer) addTree(tw *tar.Writer, setupDir, source string) error {
	return filepath.WalkDir(source, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.log.Warn("Skipping unreadable path during backup",
				slog.String("path", path), "err", err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(setupDir, path)
		if err != nil {
			return err
		}
		member := filepath.ToSlash(rel)
		if d.IsDir() {
			member += "/"
		}
		for _, excluded := range excludedPrefixes {
			if strings.HasPrefix(member, excluded) {
				if d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		switch {
		case d.IsDir():
			hdr, err := tar.FileInfoHeader(info, "")
			if err != nil {
				return err
			}
			hdr.Name = member
			return tw.WriteHeader(hdr)
		case info.Mode().IsRegular():
			hdr, err := tar.FileInfoHeader(info, "")
			if err != nil {
				return err
			}
			hdr.Name = member
			if err := tw.WriteHeader(hdr); err != nil {
				return err
			}
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()
			_, err = io.Copy(tw, f)
			return err
		case info.Mode()&os.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			hdr, err := tar.FileInfoHeader(info, link)
			if err != nil {
				return err
			}
			hdr.Name = member
			return tw.WriteHeader(hdr)
		default:
			w.log.Debug("Skipping special file during backup",
				slog.String("path", path))
			return nil
		}
	})
}
