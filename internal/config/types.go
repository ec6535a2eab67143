// Where: internal/config/types.go
// What: Deployment configuration data model.
// Why: Single source of truth for declared deployment intent.
package config

import (
	"fmt"
	"strings"
)

// ServiceType classifies how a service is exposed and scheduled.
type ServiceType string

const (
	ServiceBackendAPI    ServiceType = "backend_api"
	ServiceFrontend      ServiceType = "frontend"
	ServiceFullStack     ServiceType = "full_stack"
	ServiceBackendWorker ServiceType = "backend_worker"
)

// IsPublic reports whether the service type terminates public traffic.
func (s ServiceType) IsPublic() bool {
	return s == ServiceBackendAPI || s == ServiceFullStack
}

// DependencyType classifies an infrastructure dependency.
type DependencyType string

const (
	DependencyDatabase     DependencyType = "database"
	DependencyCache        DependencyType = "cache"
	DependencyMessageQueue DependencyType = "message_queue"
	DependencySearchEngine DependencyType = "search_engine"
)

// InfraProvider names a concrete dependency implementation.
type InfraProvider string

const (
	ProviderPostgreSQL    InfraProvider = "postgresql"
	ProviderMySQL         InfraProvider = "mysql"
	ProviderMongoDB       InfraProvider = "mongodb"
	ProviderRedis         InfraProvider = "redis"
	ProviderRabbitMQ      InfraProvider = "rabbitmq"
	ProviderKafka         InfraProvider = "kafka"
	ProviderElasticsearch InfraProvider = "elasticsearch"
	ProviderWeaviate      InfraProvider = "weaviate"

	// ProviderUserChoice is a sentinel meaning "undetermined"; it must be
	// resolved to a concrete provider before provisioning.
	ProviderUserChoice InfraProvider = "user_choice"
)

// CompatibleProviders lists the concrete providers acceptable for each
// dependency type, in preference order.
var CompatibleProviders = map[DependencyType][]InfraProvider{
	DependencyDatabase:     {ProviderPostgreSQL, ProviderMySQL, ProviderMongoDB},
	DependencyCache:        {ProviderRedis},
	DependencyMessageQueue: {ProviderRabbitMQ, ProviderKafka, ProviderRedis},
	DependencySearchEngine: {ProviderElasticsearch, ProviderWeaviate},
}

// EnvVarConfig describes an environment variable required by a service.
// IsSecret flags intent only; it does not encrypt anything.
type EnvVarConfig struct {
	Key          string `yaml:"key"`
	IsSecret     bool   `yaml:"is_secret"`
	DefaultValue string `yaml:"default_value,omitempty"`
}

// ServiceInfo describes a single deployable service.
type ServiceInfo struct {
	Language        string         `yaml:"language"`
	LanguageVersion string         `yaml:"language_version,omitempty"`
	ServiceType     ServiceType    `yaml:"service_type"`
	Framework       string         `yaml:"framework,omitempty"`
	BuildTool       string         `yaml:"build_tool,omitempty"`
	ServicePort     int            `yaml:"service_port,omitempty"`
	EnvVars         []EnvVarConfig `yaml:"env_vars,omitempty"`
}

// NameSlug derives the service's deterministic identity used as a
// directory and resource key.
func (s ServiceInfo) NameSlug() string {
	return Slugify(s.Language + "_" + string(s.ServiceType))
}

// InfrastructureDependency describes a backing service required by the app.
type InfrastructureDependency struct {
	DependencyType DependencyType `yaml:"dependency_type"`
	Provider       InfraProvider  `yaml:"provider"`
	Version        string         `yaml:"version,omitempty"`
}

// DomainInfo maps a public service to a domain name.
type DomainInfo struct {
	ServiceNameSlug string `yaml:"service_name_slug"`
	DomainName      string `yaml:"domain_name"`
}

// DeploymentEnvironment is a named deployment target. Its name is
// immutable for its lifetime and unique within a DeploymentConfig.
type DeploymentEnvironment struct {
	Name        string       `yaml:"name"`
	Region      string       `yaml:"region"`
	Strategy    string       `yaml:"strategy"`
	DomainEmail string       `yaml:"domain_email,omitempty"`
	Domains     []DomainInfo `yaml:"domains,omitempty"`
}

// CloudProviderDetail identifies the cloud account the app deploys into.
// Identifier holds the AWS account ID or GCP project ID.
type CloudProviderDetail struct {
	Name       string `yaml:"name"`
	Identifier string `yaml:"identifier,omitempty"`
}

// DeploymentConfig is the aggregate root persisted per project. It owns
// its services, infra deps, and environments exclusively.
type DeploymentConfig struct {
	AppName       string                     `yaml:"app_name"`
	AppNameSlug   string                     `yaml:"app_name_slug"`
	CloudProvider CloudProviderDetail        `yaml:"cloud_provider"`
	Services      []ServiceInfo              `yaml:"services"`
	InfraDeps     []InfrastructureDependency `yaml:"infra_deps,omitempty"`
	Environments  []DeploymentEnvironment    `yaml:"environments,omitempty"`
}

// EnvironmentNames returns the names of all configured environments.
func (c *DeploymentConfig) EnvironmentNames() []string {
	names := make([]string, 0, len(c.Environments))
	for _, env := range c.Environments {
		names = append(names, env.Name)
	}
	return names
}

// Environment returns the environment with the given name.
func (c *DeploymentConfig) Environment(name string) (*DeploymentEnvironment, error) {
	for i := range c.Environments {
		if c.Environments[i].Name == name {
			return &c.Environments[i], nil
		}
	}
	return nil, fmt.Errorf("environment %q not found in the deployment configuration", name)
}

// RemoveEnvironment deletes the named environment from the config.
// It reports whether an environment was removed.
func (c *DeploymentConfig) RemoveEnvironment(name string) bool {
	for i := range c.Environments {
		if c.Environments[i].Name == name {
			c.Environments = append(c.Environments[:i], c.Environments[i+1:]...)
			return true
		}
	}
	return false
}

// PublicServices returns the services that terminate public traffic.
func (c *DeploymentConfig) PublicServices() []ServiceInfo {
	var public []ServiceInfo
	for _, svc := range c.Services {
		if svc.ServiceType.IsPublic() {
			public = append(public, svc)
		}
	}
	return public
}

// EnvVarDefaults aggregates declared default values across all services.
func (c *DeploymentConfig) EnvVarDefaults() map[string]string {
	defaults := map[string]string{}
	for _, svc := range c.Services {
		for _, envVar := range svc.EnvVars {
			if envVar.DefaultValue != "" {
				defaults[envVar.Key] = envVar.DefaultValue
			}
		}
	}
	return defaults
}

// UnresolvedDeps returns the infra dependencies still carrying the
// user_choice sentinel. These must be resolved before provisioning.
func (c *DeploymentConfig) UnresolvedDeps() []int {
	var indices []int
	for i, dep := range c.InfraDeps {
		if dep.Provider == ProviderUserChoice {
			indices = append(indices, i)
		}
	}
	return indices
}

// Slugify lowercases a name and collapses whitespace and dashes into
// underscores so it is safe as a directory or resource key.
func Slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.ReplaceAll(slug, " ", "_")
	slug = strings.ReplaceAll(slug, "-", "_")
	return slug
}
