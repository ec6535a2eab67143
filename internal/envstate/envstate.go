// Where: internal/envstate/envstate.go
// What: Per-environment provisioned state persistence.
// Why: Provisioned facts (registry URL, VM) live apart from declared
//      intent so either can change without invalidating the other.
package envstate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// NotProvisionedError indicates the environment has no provisioned
// state on disk. Operations like release and destroy need one.
type NotProvisionedError struct {
	Path string
}

func (e *NotProvisionedError) Error() string {
	return fmt.Sprintf("no provisioned state found at %s; run 'opsmith deploy' first", e.Path)
}

// VirtualMachine records the provisioned compute facts.
type VirtualMachine struct {
	CPU          int     `yaml:"cpu"`
	RAMGB        float64 `yaml:"ram_gb"`
	InstanceType string  `yaml:"instance_type"`
	Architecture string  `yaml:"architecture"`
	PublicIP     string  `yaml:"public_ip"`
	User         string  `yaml:"user"`
}

// MonolithicState holds the provisioned facts for one environment
// deployed with the monolithic strategy.
type MonolithicState struct {
	RegistryURL    string         `yaml:"registry_url"`
	VirtualMachine VirtualMachine `yaml:"virtual_machine"`
}

// Load reads the state file. A missing file yields *NotProvisionedError
// so callers can distinguish "never provisioned" from a read failure.
func Load(path string) (*MonolithicState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &NotProvisionedError{Path: path}
		}
		return nil, fmt.Errorf("read environment state: %w", err)
	}

	var state MonolithicState
	if err := yaml.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parse environment state: %w", err)
	}
	if state.RegistryURL == "" || state.VirtualMachine.PublicIP == "" {
		return nil, fmt.Errorf("environment state %s is incomplete; re-run 'opsmith deploy'", path)
	}
	return &state, nil
}

// Save writes the state file, creating parent directories as needed.
func Save(path string, state *MonolithicState) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create environment dir: %w", err)
	}
	data, err := yaml.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode environment state: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write environment state: %w", err)
	}
	return nil
}

// Delete removes the state file. Deleting absent state is not an error.
func Delete(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete environment state: %w", err)
	}
	return nil
}
