// Where: internal/config/store.go
// What: YAML persistence for the deployment configuration.
// Why: Durable single-file state with whole-file overwrite semantics.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/opsmith-dev/opsmith/internal/meta"
	"gopkg.in/yaml.v3"
)

// Store reads and writes the deployment configuration under the
// project's deployments directory (<repo>/.opsmith). The whole file is
// rewritten on every save; last writer wins. Concurrent invocations
// against the same project directory are unsupported.
type Store struct {
	DeploymentsDir string
}

// NewStore creates a store rooted at the repository's deployments dir.
func NewStore(repoRoot string) *Store {
	return &Store{DeploymentsDir: filepath.Join(repoRoot, meta.DeploymentsDir)}
}

// ConfigPath returns the path of the config file.
func (s *Store) ConfigPath() string {
	return filepath.Join(s.DeploymentsDir, meta.ConfigFilename)
}

// EnvironmentDir returns the directory owning per-environment state.
func (s *Store) EnvironmentDir(envName string) string {
	return filepath.Join(s.DeploymentsDir, meta.EnvironmentsDir, envName)
}

// StatePath returns the per-environment provisioned state file path.
func (s *Store) StatePath(envName string) string {
	return filepath.Join(s.EnvironmentDir(envName), meta.StateFilename)
}

// ImagesDir returns the directory holding generated Dockerfiles for a service.
func (s *Store) ImagesDir(serviceSlug string) string {
	return filepath.Join(s.DeploymentsDir, meta.ImagesDir, serviceSlug)
}

// Load reads the deployment configuration. It returns (nil, nil) when
// the config file does not exist so callers can distinguish "not yet
// initialized" from a read failure.
func (s *Store) Load() (*DeploymentConfig, error) {
	data, err := os.ReadFile(s.ConfigPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read deployment config: %w", err)
	}

	var cfg DeploymentConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse deployment config: %w", err)
	}
	if cfg.AppName == "" {
		return nil, fmt.Errorf("deployment config %s is missing app_name", s.ConfigPath())
	}
	return &cfg, nil
}

// Save writes the full configuration, overwriting any previous file.
func (s *Store) Save(cfg *DeploymentConfig) error {
	if err := os.MkdirAll(s.DeploymentsDir, 0o755); err != nil {
		return fmt.Errorf("create deployments dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode deployment config: %w", err)
	}
	if err := os.WriteFile(s.ConfigPath(), data, 0o644); err != nil {
		return fmt.Errorf("write deployment config: %w", err)
	}
	return nil
}
