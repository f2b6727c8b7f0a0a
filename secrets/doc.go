// Package secrets owns the secret files under the setup directory and
// the generate-vs-restore decision for each of them.
//
// Three categories are managed (see interfaces.SecretCategories): the
// relay auth secret, the management datastore encryption key, and the
// step-ca password. Each is a single file holding 32 bytes of CSPRNG
// material, hex encoded.
//
// # Invariants
//
// A category's file is never overwritten once it exists. Generation
// and prefill only fill absences; the Store enforces this with O_EXCL
// at file creation. A failure of the randomness source is fatal and
// propagates — there is no weaker fallback.
//
// # Restore
//
// Manager.Reconcile consults the run's backup archive (when one was
// selected) through the backup package's inspector. An archive whose
// manifest lacks the secrets prefix entirely is not trusted for
// secrets at all; one that covers the prefix is extracted best-effort
// and a fill pass regenerates only the categories still missing
// afterwards.
//
// # Prefill
//
// An optional Vault KV v2 source (VaultSource) can supply values for
// absent categories before generation, for operators who provision
// secrets centrally. Vault errors degrade to generation with a
// warning.
package secrets
