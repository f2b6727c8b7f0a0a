// Package deploy sequences one reconciliation run of the control
// plane: cleanup behind an operator confirmation gate, backup
// selection, secret lifecycle, configuration rendering, CA bootstrap,
// management data restore, and service activation.
//
// Each phase returns an outcome instead of terminating the process;
// only the CLI entrypoint converts errors to exit codes. A declined
// confirmation surfaces as interfaces.ErrOperatorDeclined and is a
// clean voluntary exit, not a failure. No phase is retried — the only
// bounded retry loop in the system is the CA health poll, which lives
// in the ca package.
//
// The run takes an advisory file lock on the setup directory for its
// whole duration, so the sequential single-operator assumption is
// enforced rather than merely documented.
package deploy
