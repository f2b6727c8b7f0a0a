package compose

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siammridha/netbird-setup/interfaces"
)

func TestParseHealth(t *testing.T) {
	tests := []struct {
		name     string
		output   string
		expected interfaces.HealthStatus
	}{
		{
			name:     "healthy",
			output:   `{"Name":"netbird-ca-1","State":"running","Health":"healthy"}`,
			expected: interfaces.HealthHealthy,
		},
		{
			name:     "unhealthy",
			output:   `{"Name":"netbird-ca-1","State":"running","Health":"unhealthy"}`,
			expected: interfaces.HealthUnhealthy,
		},
		{
			name:     "starting reports unknown",
			output:   `{"Name":"netbird-ca-1","State":"running","Health":"starting"}`,
			expected: interfaces.HealthUnknown,
		},
		{
			name:     "no containers",
			output:   "",
			expected: interfaces.HealthUnknown,
		},
		{
			name:     "non-json noise ignored",
			output:   "WARN[0000] network default exists\n",
			expected: interfaces.HealthUnknown,
		},
		{
			name: "noise before json line",
			output: "WARN[0000] network default exists\n" +
				`{"Name":"netbird-ca-1","State":"running","Health":"healthy"}` + "\n",
			expected: interfaces.HealthHealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseHealth(tt.output))
		})
	}
}

func TestServiceImages(t *testing.T) {
	dir := t.TempDir()
	composeFile := filepath.Join(dir, "docker-compose.yml")
	require.NoError(t, os.WriteFile(composeFile, []byte(`
services:
  caddy:
    image: caddy:2
  management:
    image: netbirdio/management:latest
  builder:
    build: .
`), 0o600))

	images, err := ServiceImages(composeFile)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"caddy":      "caddy:2",
		"management": "netbirdio/management:latest",
	}, images)
}

func TestServiceImagesMissingFile(t *testing.T) {
	_, err := ServiceImages(filepath.Join(t.TempDir(), "docker-compose.yml"))
	assert.ErrorIs(t, err, interfaces.ErrComposeFileMissing)
}
