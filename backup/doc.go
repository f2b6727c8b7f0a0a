// Package backup creates, enumerates, and inspects the timestamped
// archives that carry the control plane's restorable state.
//
// # Archive Format
//
// Archives are gzip-compressed tarballs named
// netbird-backup-<YYYYMMDD-HHMMSS>.tar.gz. The timestamp is fixed
// width and zero padded, so lexicographic order on file names equals
// chronological order; the Catalog relies on this for newest-first
// ranking. Member paths are setup-dir-relative (secrets/...,
// step-ca/..., management/...), which lets restore code extract by
// path prefix and lets ManifestContains answer containment from the
// header walk alone, without extracting data.
//
// # Contents
//
// Writer.CreateBackup captures the secrets directory, the CA state
// directory, and the management data directory. step-ca/db/ and
// step-ca/templates/ are always excluded: the CA rebuilds both on the
// next bring-up. Missing sources are warned about and skipped, so a
// partial environment still yields a best-effort archive.
//
// # Failure posture
//
// Extraction is best effort per member; the Inspector reports only
// archive-level failures (unopenable or undecodable file) and callers
// detect missing restores with their own existence checks. Archives
// are never mutated after creation. The optional S3Uploader pushes a
// finished archive off-site; its failures are warnings.
package backup
