package backup

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

const (
	// archivePrefix and archiveSuffix frame the embedded timestamp in
	// archive file names.
	archivePrefix = "netbird-backup-"
	archiveSuffix = ".tar.gz"

	// timestampFormat is fixed width and zero padded, so lexicographic
	// order on file names equals chronological order.
	timestampFormat = "20060102-150405"

	// recentLimit caps how many archives are offered for restore.
	// Older archives stay on disk but are not surfaced.
	recentLimit = 5
)

// Catalog enumerates backup archives in the backup directory and
// resolves an operator's numeric selection to a concrete archive.
type Catalog struct {
	dir string
	log *slog.Logger
}

// NewCatalog creates a catalog over the given backup directory.
func NewCatalog(dir string, log *slog.Logger) *Catalog {
	return &Catalog{dir: dir, log: log}
}

// ListRecent returns up to recentLimit archive paths, most recent
// first. A missing backup directory yields an empty list, which
// callers treat identically to an explicit "no backup" choice.
func (c *Catalog) ListRecent() ([]string, error) {
	entries, err := os.ReadDir(c.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list backup directory: %w", err)
	}

	var archives []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, archivePrefix) || !strings.HasSuffix(name, archiveSuffix) {
			continue
		}
		archives = append(archives, filepath.Join(c.dir, name))
	}

	sort.Sort(sort.Reverse(sort.StringSlice(archives)))
	if len(archives) > recentLimit {
		archives = archives[:recentLimit]
	}
	return archives, nil
}

// ResolveSelection maps an operator's input to one of the presented
// candidates. Candidates are presented 1-based; "0", empty input,
// non-numeric input, and out-of-range indices all resolve to no
// archive with a warning, never an error.
func (c *Catalog) ResolveSelection(input string, candidates []string) string {
	input = strings.TrimSpace(input)
	if input == "" || input == "0" {
		c.log.Info("No backup selected, proceeding with fresh state")
		return ""
	}

	index, err := strconv.Atoi(input)
	if err != nil {
		c.log.Warn("Backup selection is not a number, proceeding without restore",
			slog.String("input", input))
		return ""
	}
	if index < 1 || index > len(candidates) {
		c.log.Warn("Backup selection out of range, proceeding without restore",
			slog.Int("index", index),
			slog.Int("candidates", len(candidates)))
		return ""
	}
	return candidates[index-1]
}
