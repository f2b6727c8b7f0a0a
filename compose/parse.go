package compose

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/siammridha/netbird-setup/interfaces"
)

// psEntry is the slice of `docker compose ps --format json` output
// this adapter cares about. Recent compose versions emit one JSON
// object per line.
type psEntry struct {
	Health string `json:"Health"`
	State  string `json:"State"`
}

// ParseHealth turns `docker compose ps --format json` output into a
// typed health status. Free-text matching on orchestrator output is
// confined to this function.
func ParseHealth(output string) interfaces.HealthStatus {
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "{") {
			continue
		}
		var entry psEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		switch strings.ToLower(entry.Health) {
		case "healthy":
			return interfaces.HealthHealthy
		case "unhealthy":
			return interfaces.HealthUnhealthy
		}
	}
	return interfaces.HealthUnknown
}

// composeDoc is the slice of a compose file needed to enumerate
// service images.
type composeDoc struct {
	Services map[string]struct {
		Image string `yaml:"image"`
	} `yaml:"services"`
}

// ServiceImages reads the rendered compose file and returns the image
// reference per service. Services built locally (no image key) are
// omitted. A missing compose file is reported as
// interfaces.ErrComposeFileMissing.
func ServiceImages(composeFile string) (map[string]string, error) {
	data, err := os.ReadFile(composeFile)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrComposeFileMissing, composeFile)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read compose file: %w", err)
	}

	var doc composeDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse compose file: %w", err)
	}

	images := make(map[string]string, len(doc.Services))
	for name, svc := range doc.Services {
		if svc.Image != "" {
			images[name] = svc.Image
		}
	}
	return images, nil
}
