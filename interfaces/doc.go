// Package interfaces defines the core types and boundaries of the
// netbird-setup provisioner, separating interface definitions from
// implementations.
//
// # Orchestration Boundary
//
// Compose: the container orchestration collaborator. The reconciler,
// secret lifecycle, and CA bootstrap code depend only on this
// interface; the concrete docker compose adapter lives in the compose
// package. Free-text orchestrator output is parsed into the typed
// enums defined here at exactly one place each: health output into
// HealthStatus at the compose adapter, provisioner listings into
// ProvisionerState in the ca package.
//
// # Domain Types
//
// SecretCategory: the three secret files managed under the setup
// directory (relay auth secret, datastore encryption key, CA
// password). DeployMode: dev or prod, selecting the orchestration
// template variant.
//
// # Error Types
//
// Sentinel errors shared across packages:
//
//   - ErrSecretNotFound: category has no file and no prefill value
//   - ErrSecretExists: refused overwrite of an existing secret file
//   - ErrComposeFileMissing: rendered compose file required but absent
//   - ErrCAUnhealthy: CA health polling exhausted its budget
//   - ErrOperatorDeclined: clean voluntary exit at a confirmation gate
package interfaces
