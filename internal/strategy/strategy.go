// Where: internal/strategy/strategy.go
// What: Deployment strategy contract, shared dependencies, and the
//       strategy registry.
// Why: Deploy/release/destroy flows differ per topology; commands pick
//      a strategy by name and drive it through one interface.
package strategy

import (
	"context"
	"fmt"
	"io/fs"
	"sort"

	"github.com/opsmith-dev/opsmith/internal/cloud"
	"github.com/opsmith-dev/opsmith/internal/config"
	"github.com/opsmith-dev/opsmith/internal/interaction"
	"github.com/opsmith-dev/opsmith/internal/oracle"
	"github.com/opsmith-dev/opsmith/internal/ui"
	"github.com/opsmith-dev/opsmith/internal/validator"
)

// Strategy is one deployment topology's full lifecycle.
type Strategy interface {
	Name() string
	Deploy(ctx context.Context, env *config.DeploymentEnvironment) error
	Release(ctx context.Context, env *config.DeploymentEnvironment) error
	Destroy(ctx context.Context, env *config.DeploymentEnvironment) error
}

// Terraform is the infrastructure-provisioning capability a strategy
// uses per template directory. *provisioner.Terraform satisfies it.
type Terraform interface {
	Apply(ctx context.Context, vars map[string]string) (map[string]string, error)
	Destroy(ctx context.Context, vars map[string]string) error
}

// PlaybookRunner runs an ansible playbook against one host.
type PlaybookRunner interface {
	RunPlaybook(ctx context.Context, playbook, host, user string, extraVars map[string]any) (map[string]string, error)
}

// ImageService builds and ships service images.
type ImageService interface {
	BuildImage(ctx context.Context, contextDir, dockerfile, tag, platform string) error
	TagAndPush(ctx context.Context, localTag, remoteRef, username, password string) error
}

// DockerfileChecker validates a candidate Dockerfile locally.
type DockerfileChecker interface {
	Validate(ctx context.Context, serviceSlug, contextDir, dockerfile string, env []string) (validator.Result, error)
}

// ComposeChecker validates a candidate compose file on the target host.
type ComposeChecker interface {
	Validate(ctx context.Context, dep validator.Deployment) (validator.Result, error)
}

// Dependencies is everything a strategy needs to operate. Commands
// build one per invocation.
type Dependencies struct {
	Console  *ui.Console
	Prompter interaction.Prompter
	Store    *config.Store
	Config   *config.DeploymentConfig
	Provider cloud.Provider
	Oracle   oracle.Client

	Images      ImageService
	Dockerfiles DockerfileChecker
	Compose     ComposeChecker
	Ansible     PlaybookRunner

	// NewTerraform creates a terraform driver rooted at workingDir.
	NewTerraform func(workingDir string) (Terraform, error)

	// Templates holds the embedded terraform/ansible assets.
	Templates fs.FS

	RepoRoot string
}

// PreflightError indicates the declared configuration violates a rule
// that must hold before any cloud resource is touched.
type PreflightError struct {
	Reason string
}

func (e *PreflightError) Error() string {
	return "deployment rejected: " + e.Reason
}

// Factory builds a strategy from its dependencies.
type Factory func(deps Dependencies) Strategy

type registration struct {
	description string
	factory     Factory
}

// Registry maps strategy names to factories.
type Registry struct {
	entries map[string]registration
}

// NewRegistry returns a registry with the built-in strategies.
func NewRegistry() *Registry {
	r := &Registry{entries: map[string]registration{}}
	r.Register(MonolithicName, "Everything on a single virtual machine", NewMonolithic)
	r.Register(DistributedName, "Services spread across machines (not implemented yet)", NewDistributed)
	return r
}

// Register adds a strategy. Later registrations replace earlier ones.
func (r *Registry) Register(name, description string, factory Factory) {
	r.entries[name] = registration{description: description, factory: factory}
}

// Get builds the named strategy.
func (r *Registry) Get(name string, deps Dependencies) (Strategy, error) {
	entry, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("unknown deployment strategy %q", name)
	}
	return entry.factory(deps), nil
}

// Choices returns prompt options for all registered strategies, sorted
// by name.
func (r *Registry) Choices() []interaction.SelectOption {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)

	options := make([]interaction.SelectOption, 0, len(names))
	for _, name := range names {
		options = append(options, interaction.SelectOption{
			Label: fmt.Sprintf("%s - %s", name, r.entries[name].description),
			Value: name,
		})
	}
	return options
}
