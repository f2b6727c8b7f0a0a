package ca

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/siammridha/netbird-setup/interfaces"
)

// acmeType is the provisioner type step-ca reports for ACME entries.
const acmeType = "ACME"

// provisionerEntry is the slice of a step-ca provisioner object this
// package cares about.
type provisionerEntry struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

// parseProvisionerList turns `step ca provisioner list` output into a
// typed state. This is the only place provisioner output is parsed;
// everything downstream works on the enum.
func parseProvisionerList(output string) (interfaces.ProvisionerState, error) {
	trimmed := strings.TrimSpace(output)
	if trimmed == "" || trimmed == "null" {
		return interfaces.ProvisionerAbsent, nil
	}

	var entries []provisionerEntry
	if err := json.Unmarshal([]byte(trimmed), &entries); err != nil {
		return interfaces.ProvisionerUnknown, fmt.Errorf("unexpected provisioner list output: %w", err)
	}

	for _, entry := range entries {
		if strings.EqualFold(entry.Type, acmeType) {
			return interfaces.ProvisionerPresent, nil
		}
	}
	return interfaces.ProvisionerAbsent, nil
}
