// Where: internal/app/resolve.go
// What: Shared resolution of repo, config, cloud provider, and target
//       environment for CLI commands.
// Why: Every command starts from the same questions: which project,
//      which account, which environment.
package app

import (
	"context"
	"fmt"
	"os"

	"github.com/opsmith-dev/opsmith/internal/cloud"
	"github.com/opsmith-dev/opsmith/internal/config"
	"github.com/opsmith-dev/opsmith/internal/interaction"
	"github.com/opsmith-dev/opsmith/internal/meta"
)

// commandContext is the resolved project context commands operate in.
type commandContext struct {
	RepoRoot string
	Store    *config.Store
	Config   *config.DeploymentConfig
	Provider cloud.Provider
}

// resolveCommandContext locates the repository, loads the deployment
// config, and resolves the cloud provider including an account check.
func resolveCommandContext(ctx context.Context, deps Dependencies) (commandContext, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return commandContext{}, err
	}
	repoRoot, err := deps.RepoResolver(cwd)
	if err != nil {
		return commandContext{}, err
	}

	store := config.NewStore(repoRoot)
	cfg, err := store.Load()
	if err != nil {
		return commandContext{}, err
	}
	if cfg == nil {
		return commandContext{}, fmt.Errorf("no deployment configuration found at %s", store.ConfigPath())
	}

	provider, err := resolveProvider(ctx, deps, store, cfg)
	if err != nil {
		return commandContext{}, err
	}

	return commandContext{
		RepoRoot: repoRoot,
		Store:    store,
		Config:   cfg,
		Provider: provider,
	}, nil
}

// resolveProvider returns the configured cloud provider, prompting for
// one on first use. The authenticated account must match the configured
// identifier; deploying the right app into the wrong account is the
// failure mode this guards against.
func resolveProvider(ctx context.Context, deps Dependencies, store *config.Store, cfg *config.DeploymentConfig) (cloud.Provider, error) {
	name := cfg.CloudProvider.Name
	if name == "" {
		choice, err := deps.Prompter.Select("Choose a cloud provider", deps.Clouds.Choices())
		if err != nil {
			return nil, err
		}
		name = choice
	}

	provider, err := deps.Clouds.Get(name)
	if err != nil {
		return nil, err
	}

	account, err := provider.AccountDetails(ctx)
	if err != nil {
		return nil, err
	}

	switch cfg.CloudProvider.Identifier {
	case "":
		cfg.CloudProvider = config.CloudProviderDetail{Name: name, Identifier: account.Identifier}
		if err := store.Save(cfg); err != nil {
			return nil, err
		}
	case account.Identifier:
		// Configured account matches the authenticated one.
	default:
		return nil, fmt.Errorf(
			"authenticated %s account %s does not match the configured account %s; switch credentials or update %s",
			name, account.Identifier, cfg.CloudProvider.Identifier, meta.ConfigFilename)
	}
	return provider, nil
}

// resolveEnvironment picks the target environment. With allowCreate,
// an unknown or absent name walks the operator through creating one.
func resolveEnvironment(ctx context.Context, cctx commandContext, deps Dependencies, envFlag string, allowCreate bool) (*config.DeploymentEnvironment, error) {
	cfg := cctx.Config

	if envFlag != "" {
		env, err := cfg.Environment(envFlag)
		if err == nil {
			return env, nil
		}
		if !allowCreate {
			return nil, err
		}
		return createEnvironment(ctx, cctx, deps, envFlag)
	}

	names := cfg.EnvironmentNames()
	if len(names) == 0 {
		if !allowCreate {
			return nil, fmt.Errorf("no environments configured; run 'opsmith deploy' to create one")
		}
		return createEnvironment(ctx, cctx, deps, "")
	}

	options := make([]interaction.SelectOption, 0, len(names)+1)
	for _, name := range names {
		options = append(options, interaction.SelectOption{Label: name, Value: name})
	}
	const createSentinel = "__create__"
	if allowCreate {
		options = append(options, interaction.SelectOption{Label: "Create a new environment", Value: createSentinel})
	}

	choice, err := deps.Prompter.Select("Choose an environment", options)
	if err != nil {
		return nil, err
	}
	if choice == createSentinel {
		return createEnvironment(ctx, cctx, deps, "")
	}
	return cfg.Environment(choice)
}

// createEnvironment interactively defines a new environment and
// persists it.
func createEnvironment(ctx context.Context, cctx commandContext, deps Dependencies, name string) (*config.DeploymentEnvironment, error) {
	cfg := cctx.Config

	if name == "" {
		input, err := deps.Prompter.Input("Environment name", "staging")
		if err != nil {
			return nil, err
		}
		name = config.Slugify(input)
	}
	if name == "" {
		return nil, fmt.Errorf("environment name must not be empty")
	}
	if _, err := cfg.Environment(name); err == nil {
		return nil, fmt.Errorf("environment %q already exists", name)
	}

	regions, err := cctx.Provider.Regions(ctx)
	if err != nil {
		return nil, err
	}
	regionOptions := make([]interaction.SelectOption, 0, len(regions))
	for _, region := range regions {
		regionOptions = append(regionOptions, interaction.SelectOption{Label: region.Display(), Value: region.Code})
	}
	region, err := deps.Prompter.Select("Choose a region", regionOptions)
	if err != nil {
		return nil, err
	}

	strategyName, err := deps.Prompter.Select("Choose a deployment strategy", deps.Strategies.Choices())
	if err != nil {
		return nil, err
	}

	env := config.DeploymentEnvironment{
		Name:     name,
		Region:   region,
		Strategy: strategyName,
	}

	domains, email, err := promptDomains(cfg, deps)
	if err != nil {
		return nil, err
	}
	env.Domains = domains
	env.DomainEmail = email

	cfg.Environments = append(cfg.Environments, env)
	if err := cctx.Store.Save(cfg); err != nil {
		return nil, err
	}
	return cfg.Environment(name)
}

// promptDomains optionally maps public services to domain names.
func promptDomains(cfg *config.DeploymentConfig, deps Dependencies) ([]config.DomainInfo, string, error) {
	public := cfg.PublicServices()
	if len(public) == 0 {
		return nil, "", nil
	}

	wantDomains, err := deps.Prompter.Confirm("Serve public services on custom domains?")
	if err != nil {
		return nil, "", err
	}
	if !wantDomains {
		return nil, "", nil
	}

	var domains []config.DomainInfo
	for _, svc := range public {
		slug := svc.NameSlug()
		domain, err := deps.Prompter.Input(fmt.Sprintf("Domain for %s (empty to skip)", slug), "")
		if err != nil {
			return nil, "", err
		}
		if domain == "" {
			continue
		}
		domains = append(domains, config.DomainInfo{ServiceNameSlug: slug, DomainName: domain})
	}
	if len(domains) == 0 {
		return nil, "", nil
	}

	email, err := deps.Prompter.Input("Email for TLS certificate registration", "")
	if err != nil {
		return nil, "", err
	}
	return domains, email, nil
}
