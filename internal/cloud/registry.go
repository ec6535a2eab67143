// Where: internal/cloud/registry.go
// What: Cloud provider registry.
// Why: Explicit registry value constructed at startup and injected,
//      with factory registration as the plugin extension point.
package cloud

import (
	"fmt"
	"sort"

	"github.com/opsmith-dev/opsmith/internal/interaction"
)

// Factory constructs a provider. Construction must be cheap;
// authentication happens lazily on first use.
type Factory func() Provider

type registration struct {
	description string
	factory     Factory
}

// Registry maps provider names to factories. It is a plain value passed
// by reference to components that need lookups; there is no global.
type Registry struct {
	entries map[string]registration
}

// NewRegistry returns a registry pre-populated with built-in providers.
func NewRegistry() *Registry {
	r := &Registry{entries: map[string]registration{}}
	r.Register("AWS", "Amazon Web Services, a comprehensive and broadly adopted cloud platform.",
		func() Provider { return NewAWSProvider() })
	r.Register("GCP", "Google Cloud Platform, a suite of cloud computing services from Google.",
		func() Provider { return NewGCPProvider(nil) })
	return r
}

// Register adds or replaces a provider factory. Overwriting is allowed
// so externally discovered providers can replace built-ins.
func (r *Registry) Register(name, description string, factory Factory) {
	r.entries[name] = registration{description: description, factory: factory}
}

// Get constructs the named provider.
func (r *Registry) Get(name string) (Provider, error) {
	entry, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("cloud provider %q not found", name)
	}
	return entry.factory(), nil
}

// Choices returns registered providers sorted by name for prompts.
func (r *Registry) Choices() []interaction.SelectOption {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)

	choices := make([]interaction.SelectOption, 0, len(names))
	for _, name := range names {
		choices = append(choices, interaction.SelectOption{
			Label: fmt.Sprintf("%s - %s", name, r.entries[name].description),
			Value: name,
		})
	}
	return choices
}
