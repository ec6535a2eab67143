// Where: cmd/opsmith/cli.go
// What: CLI dependency wiring helpers.
// Why: Centralize construction for testability.
package main

import (
	"context"
	"os"

	"github.com/opsmith-dev/opsmith/assets"
	"github.com/opsmith-dev/opsmith/internal/app"
	"github.com/opsmith-dev/opsmith/internal/cloud"
	"github.com/opsmith-dev/opsmith/internal/config"
	"github.com/opsmith-dev/opsmith/internal/container"
	"github.com/opsmith-dev/opsmith/internal/interaction"
	"github.com/opsmith-dev/opsmith/internal/meta"
	"github.com/opsmith-dev/opsmith/internal/oracle"
	"github.com/opsmith-dev/opsmith/internal/strategy"
)

// buildDependencies constructs all runtime dependencies required by
// the CLI. Heavyweight clients (Docker daemon, generation oracle) stay
// behind factories so commands that do not need them pay nothing.
func buildDependencies() app.Dependencies {
	return app.Dependencies{
		Out:          os.Stdout,
		Prompter:     interaction.HuhPrompter{},
		RepoResolver: config.ResolveRepoRoot,
		Clouds:       cloud.NewRegistry(),
		Strategies:   strategy.NewRegistry(),
		NewOracle: func(ctx context.Context) (oracle.Client, error) {
			apiKey := os.Getenv("GEMINI_API_KEY")
			model := os.Getenv(meta.EnvPrefix + "_MODEL")
			return oracle.NewGeminiClient(ctx, apiKey, model)
		},
		NewDocker: container.NewDockerClient,
		Templates: assets.TemplatesFS,
	}
}
