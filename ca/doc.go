// Package ca drives the step-ca certificate authority from cold start
// to a healthy, ACME-provisioned state.
//
// Bring-up is a small state machine:
//
//	UNINITIALIZED → DIRECTORY_PREPARED → STARTING → HEALTH_POLLING
//	  → HEALTHY → {PROVISIONER_PRESENT | PROVISIONER_ADDED}
//	  → TIMED_OUT (fatal)
//
// When the run's backup archive covers the CA state prefix, the whole
// sequence is skipped: the state directory is extracted verbatim,
// ownership is fixed for the container user, and the machine
// terminates in the synthetic RESTORED state. Restored state already
// carries its provisioner set, so no health poll or provisioner check
// runs.
//
// Health is polled at a fixed interval against a hard budget; a CA
// that never reports healthy is fatal for the run, after its recent
// log output has been surfaced. The provisioner check-before-add is
// the idempotency guard: repeated runs against the same CA state
// never accumulate ACME provisioners. The root certificate
// fingerprint is read after any success state for operator display —
// best effort, never fatal.
package ca
