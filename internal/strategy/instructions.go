// Where: internal/strategy/instructions.go
// What: Builds the oracle instructions for Dockerfile and compose
//       generation from the declared configuration.
// Why: The oracle only sees what we put in the instruction; these
//      functions define that contract in one place.
package strategy

import (
	"fmt"
	"sort"
	"strings"

	"github.com/opsmith-dev/opsmith/internal/config"
	"gopkg.in/yaml.v3"
)

// dockerfileInstruction describes one service for Dockerfile
// generation.
func dockerfileInstruction(cfg *config.DeploymentConfig, svc config.ServiceInfo) string {
	details, err := yaml.Marshal(svc)
	if err != nil {
		details = []byte(fmt.Sprintf("language: %s\nservice_type: %s\n", svc.Language, svc.ServiceType))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Application: %s\n\nService details:\n%s\n", cfg.AppName, details)
	b.WriteString("Requirements:\n")
	b.WriteString("- Use a minimal, current base image for the language and version.\n")
	b.WriteString("- Use a multi-stage build when the language benefits from one.\n")
	b.WriteString("- The build context is the repository root.\n")
	if svc.ServicePort != 0 {
		fmt.Fprintf(&b, "- Expose port %d.\n", svc.ServicePort)
	}
	b.WriteString("- The container must start the service directly; no placeholder commands.\n")
	return b.String()
}

// composeInstruction describes the whole application for compose
// generation. images maps service slugs to their pushed registry refs.
func composeInstruction(cfg *config.DeploymentConfig, env *config.DeploymentEnvironment, images map[string]string, envKeys []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Application: %s (environment %q)\n\n", cfg.AppName, env.Name)

	b.WriteString("Services and their pre-built images:\n")
	for _, svc := range cfg.Services {
		slug := svc.NameSlug()
		fmt.Fprintf(&b, "- %s (%s", slug, svc.ServiceType)
		if svc.ServicePort != 0 {
			fmt.Fprintf(&b, ", listens on %d", svc.ServicePort)
		}
		fmt.Fprintf(&b, "): image %s\n", images[slug])
	}

	if len(cfg.InfraDeps) > 0 {
		b.WriteString("\nInfrastructure dependencies to run as containers:\n")
		for _, dep := range cfg.InfraDeps {
			fmt.Fprintf(&b, "- %s: %s", dep.DependencyType, dep.Provider)
			if dep.Version != "" {
				fmt.Fprintf(&b, " %s", dep.Version)
			}
			b.WriteString("\n")
		}
	}

	if len(envKeys) > 0 {
		sorted := append([]string(nil), envKeys...)
		sort.Strings(sorted)
		b.WriteString("\nAn env file named .env with the following keys sits next to the compose file; reference it with env_file:\n")
		for _, key := range sorted {
			fmt.Fprintf(&b, "- %s\n", key)
		}
	}

	if len(env.Domains) > 0 {
		b.WriteString("\nPublic services are fronted by a Caddy reverse proxy container:\n")
		for _, domain := range env.Domains {
			fmt.Fprintf(&b, "- %s -> %s\n", domain.DomainName, domain.ServiceNameSlug)
		}
		if env.DomainEmail != "" {
			fmt.Fprintf(&b, "Use %s for TLS certificate registration.\n", env.DomainEmail)
		}
	}

	b.WriteString("\nRequirements:\n")
	b.WriteString("- Use the pre-built images exactly as given; never build on the host.\n")
	b.WriteString("- Persist stateful dependency data in named volumes.\n")
	b.WriteString("- Services communicate over the default compose network by service name.\n")
	return b.String()
}

// appDescription summarizes the application for log classification.
func appDescription(cfg *config.DeploymentConfig) string {
	parts := make([]string, 0, len(cfg.Services))
	for _, svc := range cfg.Services {
		parts = append(parts, fmt.Sprintf("%s (%s)", svc.NameSlug(), svc.ServiceType))
	}
	desc := fmt.Sprintf("%s, composed of: %s", cfg.AppName, strings.Join(parts, ", "))
	if len(cfg.InfraDeps) > 0 {
		deps := make([]string, 0, len(cfg.InfraDeps))
		for _, dep := range cfg.InfraDeps {
			deps = append(deps, string(dep.Provider))
		}
		desc += "; backed by " + strings.Join(deps, ", ")
	}
	return desc
}
