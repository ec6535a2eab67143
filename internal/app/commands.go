// Where: internal/app/commands.go
// What: The deploy, release, and destroy command handlers.
// Why: Commands translate the resolved context into a strategy run and
//      map failures to operator-friendly exits.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/opsmith-dev/opsmith/internal/cloud"
	"github.com/opsmith-dev/opsmith/internal/container"
	"github.com/opsmith-dev/opsmith/internal/envstate"
	"github.com/opsmith-dev/opsmith/internal/executor"
	"github.com/opsmith-dev/opsmith/internal/provisioner"
	"github.com/opsmith-dev/opsmith/internal/strategy"
	"github.com/opsmith-dev/opsmith/internal/ui"
	"github.com/opsmith-dev/opsmith/internal/validator"
)

func runDeploy(cli CLI, deps Dependencies, out io.Writer) int {
	ctx := context.Background()

	cctx, err := resolveCommandContext(ctx, deps)
	if err != nil {
		return exitCommandError(out, err)
	}
	env, err := resolveEnvironment(ctx, cctx, deps, cli.Deploy.Env, true)
	if err != nil {
		return exitCommandError(out, err)
	}

	oracleClient, err := deps.NewOracle(ctx)
	if err != nil {
		return exitCommandError(out, err)
	}
	sdeps, err := buildStrategyDeps(cctx, deps, out, strategyOptions{docker: true})
	if err != nil {
		return exitCommandError(out, err)
	}
	sdeps.Oracle = oracleClient
	sdeps.Compose = validator.NewComposeValidator(sdeps.Ansible, oracleClient)

	strat, err := deps.Strategies.Get(env.Strategy, sdeps)
	if err != nil {
		return exitCommandError(out, err)
	}
	if err := strat.Deploy(ctx, env); err != nil {
		return exitCommandError(out, err)
	}
	return 0
}

func runRelease(cli CLI, deps Dependencies, out io.Writer) int {
	ctx := context.Background()

	cctx, err := resolveCommandContext(ctx, deps)
	if err != nil {
		return exitCommandError(out, err)
	}
	env, err := resolveEnvironment(ctx, cctx, deps, cli.Release.Env, false)
	if err != nil {
		return exitCommandError(out, err)
	}

	sdeps, err := buildStrategyDeps(cctx, deps, out, strategyOptions{docker: true})
	if err != nil {
		return exitCommandError(out, err)
	}

	strat, err := deps.Strategies.Get(env.Strategy, sdeps)
	if err != nil {
		return exitCommandError(out, err)
	}
	if err := strat.Release(ctx, env); err != nil {
		return exitCommandError(out, err)
	}
	return 0
}

func runDestroy(cli CLI, deps Dependencies, out io.Writer) int {
	ctx := context.Background()

	cctx, err := resolveCommandContext(ctx, deps)
	if err != nil {
		return exitCommandError(out, err)
	}
	env, err := resolveEnvironment(ctx, cctx, deps, cli.Destroy.Env, false)
	if err != nil {
		return exitCommandError(out, err)
	}

	if !cli.Destroy.Yes {
		confirmed, err := deps.Prompter.Confirm(fmt.Sprintf(
			"Destroy all cloud infrastructure for environment %q? This cannot be undone.", env.Name))
		if err != nil {
			return exitCommandError(out, err)
		}
		if !confirmed {
			fmt.Fprintln(out, "Aborted.")
			return 1
		}
	}

	sdeps, err := buildStrategyDeps(cctx, deps, out, strategyOptions{})
	if err != nil {
		return exitCommandError(out, err)
	}
	strat, err := deps.Strategies.Get(env.Strategy, sdeps)
	if err != nil {
		return exitCommandError(out, err)
	}
	if err := strat.Destroy(ctx, env); err != nil {
		return exitCommandError(out, err)
	}

	envName := env.Name
	cctx.Config.RemoveEnvironment(envName)
	if err := cctx.Store.Save(cctx.Config); err != nil {
		return exitCommandError(out, err)
	}
	return 0
}

type strategyOptions struct {
	docker bool
}

// buildStrategyDeps assembles the strategy dependency set from the
// resolved command context.
func buildStrategyDeps(cctx commandContext, deps Dependencies, out io.Writer, opts strategyOptions) (strategy.Dependencies, error) {
	console := ui.New(out)

	sdeps := strategy.Dependencies{
		Console:   console,
		Prompter:  deps.Prompter,
		Store:     cctx.Store,
		Config:    cctx.Config,
		Provider:  cctx.Provider,
		Templates: deps.Templates,
		RepoRoot:  cctx.RepoRoot,
		NewTerraform: func(workingDir string) (strategy.Terraform, error) {
			return provisioner.NewTerraform(workingDir, console.Stream)
		},
	}

	ansible, err := provisioner.NewAnsible(cctx.RepoRoot, console.Stream)
	if err != nil {
		return strategy.Dependencies{}, err
	}
	sdeps.Ansible = ansible

	if opts.docker {
		dockerClient, err := deps.NewDocker()
		if err != nil {
			return strategy.Dependencies{}, err
		}
		builder := container.NewBuilder(dockerClient, console.Stream)
		sdeps.Images = builder
		sdeps.Dockerfiles = validator.NewDockerfileValidator(builder)
	}
	return sdeps, nil
}

// exitCommandError maps well-known failure types to actionable output.
func exitCommandError(out io.Writer, err error) int {
	var creds *cloud.CredentialsError
	if errors.As(err, &creds) {
		return exitWithSuggestion(out, fmt.Sprintf("%s credentials error: %s", creds.Provider, creds.Message),
			[]string{creds.HelpURL})
	}

	var notFound *executor.NotFoundError
	if errors.As(err, &notFound) {
		return exitWithSuggestion(out, notFound.Error(), []string{notFound.InstallURL})
	}

	var notProvisioned *envstate.NotProvisionedError
	if errors.As(err, &notProvisioned) {
		return exitWithSuggestion(out, notProvisioned.Error(), []string{"opsmith deploy"})
	}

	var exhausted *strategy.ExhaustedAttemptsError
	if errors.As(err, &exhausted) {
		return exitWithSuggestion(out, exhausted.Error(),
			[]string{"inspect the feedback above, adjust the service configuration, and re-run 'opsmith deploy'"})
	}

	var exitErr *executor.ExitError
	if errors.As(err, &exitErr) {
		fmt.Fprintln(out, exitErr.Output)
	}
	return exitWithError(out, err)
}
