// Package compose adapts the docker compose CLI to the
// interfaces.Compose boundary. Every method maps to one subprocess
// invocation; all parsing of orchestrator output (container health,
// service image lists) lives here so the rest of the system only sees
// typed results.
package compose
