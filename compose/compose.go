package compose

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"github.com/siammridha/netbird-setup/interfaces"
)

// Runner implements interfaces.Compose by shelling out to
// `docker compose`. It is the single adapter between the core and the
// container runtime: all parsing of orchestrator output happens here.
type Runner struct {
	composeFile string
	log         *slog.Logger

	// run executes one command and returns its combined output.
	// Replaced in tests.
	run func(ctx context.Context, name string, args ...string) (string, error)
}

// NewRunner creates a runner bound to one compose file.
func NewRunner(composeFile string, log *slog.Logger) *Runner {
	return &Runner{
		composeFile: composeFile,
		log:         log,
		run:         runCommand,
	}
}

func runCommand(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("%s %s: %w: %s",
			name, strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

func (r *Runner) compose(ctx context.Context, args ...string) (string, error) {
	full := append([]string{"compose", "-f", r.composeFile}, args...)
	r.log.Debug("Running docker compose", slog.String("args", strings.Join(args, " ")))
	return r.run(ctx, "docker", full...)
}

// Up brings up all declared services in the background.
func (r *Runner) Up(ctx context.Context) error {
	_, err := r.compose(ctx, "up", "-d")
	return err
}

// Down stops and removes all declared services.
func (r *Runner) Down(ctx context.Context) error {
	_, err := r.compose(ctx, "down", "--remove-orphans")
	return err
}

// Start brings up a single named service.
func (r *Runner) Start(ctx context.Context, service string) error {
	_, err := r.compose(ctx, "up", "-d", service)
	return err
}

// Restart restarts a single named service.
func (r *Runner) Restart(ctx context.Context, service string) error {
	_, err := r.compose(ctx, "restart", service)
	return err
}

// RestartAll restarts every declared service.
func (r *Runner) RestartAll(ctx context.Context) error {
	_, err := r.compose(ctx, "restart")
	return err
}

// Exec runs a command inside a running service.
func (r *Runner) Exec(ctx context.Context, service string, args ...string) (string, error) {
	full := append([]string{"exec", "-T", service}, args...)
	return r.compose(ctx, full...)
}

// Logs returns the last tail lines of a service's log output.
func (r *Runner) Logs(ctx context.Context, service string, tail int) (string, error) {
	return r.compose(ctx, "logs", "--no-color", "--tail", strconv.Itoa(tail), service)
}

// Health queries the orchestrator for a service's health status and
// parses the answer into the typed enum. A service without containers
// reports HealthUnknown.
func (r *Runner) Health(ctx context.Context, service string) (interfaces.HealthStatus, error) {
	out, err := r.compose(ctx, "ps", "--format", "json", service)
	if err != nil {
		return interfaces.HealthUnknown, err
	}
	return ParseHealth(out), nil
}

// Pull fetches a newer copy of a single image.
func (r *Runner) Pull(ctx context.Context, image string) error {
	_, err := r.run(ctx, "docker", "pull", image)
	return err
}
