package interfaces

import "context"

// HealthStatus is the typed result of a container health query. The
// compose adapter parses the orchestrator's free-text output into this
// enum exactly once; nothing else in the system matches on raw text.
type HealthStatus int

const (
	HealthUnknown HealthStatus = iota
	HealthHealthy
	HealthUnhealthy
)

// String returns the lower-case status name.
func (s HealthStatus) String() string {
	switch s {
	case HealthHealthy:
		return "healthy"
	case HealthUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// ProvisionerState is the typed result of querying the CA for an ACME
// provisioner.
type ProvisionerState int

const (
	ProvisionerUnknown ProvisionerState = iota
	ProvisionerPresent
	ProvisionerAbsent
)

// String returns the lower-case state name.
func (s ProvisionerState) String() string {
	switch s {
	case ProvisionerPresent:
		return "present"
	case ProvisionerAbsent:
		return "absent"
	default:
		return "unknown"
	}
}

// Compose is the container orchestration boundary. Every method maps
// to one orchestrator invocation and returns success/failure plus any
// text output the caller needs. Implementations own all parsing of
// orchestrator output.
type Compose interface {
	// Up brings up all declared services.
	Up(ctx context.Context) error

	// Down stops and removes all declared services and their
	// containers.
	Down(ctx context.Context) error

	// Start starts a single named service.
	Start(ctx context.Context, service string) error

	// Restart restarts a single named service.
	Restart(ctx context.Context, service string) error

	// RestartAll restarts every declared service.
	RestartAll(ctx context.Context) error

	// Exec runs a command inside a running service and returns its
	// combined output.
	Exec(ctx context.Context, service string, args ...string) (string, error)

	// Logs returns the last tail lines of a service's log output.
	Logs(ctx context.Context, service string, tail int) (string, error)

	// Health reports the current health status of a named service.
	Health(ctx context.Context, service string) (HealthStatus, error)

	// Pull fetches a newer copy of a single image.
	Pull(ctx context.Context, image string) error
}
