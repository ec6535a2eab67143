// Where: internal/app/app.go
// What: CLI entrypoint logic.
// Why: Provide a testable command dispatcher.
package app

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/alecthomas/kong"
	"github.com/opsmith-dev/opsmith/internal/cloud"
	"github.com/opsmith-dev/opsmith/internal/container"
	"github.com/opsmith-dev/opsmith/internal/interaction"
	"github.com/opsmith-dev/opsmith/internal/oracle"
	"github.com/opsmith-dev/opsmith/internal/strategy"
	"github.com/opsmith-dev/opsmith/internal/version"
)

// Dependencies holds all injected dependencies required for CLI command
// execution. This structure enables dependency injection for testing
// and allows swapping implementations of various subsystems.
type Dependencies struct {
	Out          io.Writer
	Prompter     interaction.Prompter
	RepoResolver func(string) (string, error)
	Clouds       *cloud.Registry
	Strategies   *strategy.Registry

	// NewOracle and NewDocker are lazy: version and destroy must work
	// without a generation API key or a running Docker daemon.
	NewOracle func(ctx context.Context) (oracle.Client, error)
	NewDocker func() (container.DockerClient, error)

	// Templates holds the embedded terraform/ansible assets.
	Templates fs.FS
}

// CLI defines the command-line interface structure parsed by Kong.
type CLI struct {
	Deploy  DeployCmd  `cmd:"" help:"Provision infrastructure and deploy the application"`
	Release ReleaseCmd `cmd:"" help:"Rebuild and ship images to an already-deployed environment"`
	Destroy DestroyCmd `cmd:"" help:"Tear down an environment's cloud infrastructure"`
	Version VersionCmd `cmd:"" help:"Show version information"`
}

type (
	DeployCmd struct {
		Env string `short:"e" help:"Environment name (prompted when omitted)"`
	}
	ReleaseCmd struct {
		Env string `short:"e" help:"Environment name (prompted when omitted)"`
	}
	DestroyCmd struct {
		Env string `short:"e" help:"Environment name (prompted when omitted)"`
		Yes bool   `short:"y" help:"Skip the confirmation prompt"`
	}
	VersionCmd struct{}
)

// Run is the main entry point for CLI command execution. It parses the
// arguments and dispatches to the matching command handler. Returns 0
// on success, 1 on error.
func Run(args []string, deps Dependencies) int {
	out := deps.Out
	if out == nil {
		out = os.Stdout
	}

	if len(args) == 0 {
		fmt.Fprintln(out, "usage: opsmith <deploy|release|destroy|version> [flags]")
		return 1
	}

	cli := CLI{}
	parser, err := kong.New(&cli)
	if err != nil {
		return exitWithError(out, err)
	}

	ctx, err := parser.Parse(args)
	if err != nil {
		return exitWithError(out, err)
	}

	handlers := map[string]func(CLI, Dependencies, io.Writer) int{
		"deploy":  runDeploy,
		"release": runRelease,
		"destroy": runDestroy,
		"version": func(_ CLI, _ Dependencies, out io.Writer) int {
			fmt.Fprintln(out, version.GetVersion())
			return 0
		},
	}
	if handler, ok := handlers[ctx.Command()]; ok {
		return handler(cli, deps, out)
	}

	fmt.Fprintln(out, "unknown command")
	return 1
}

func exitWithError(out io.Writer, err error) int {
	fmt.Fprintf(out, "✗ %v\n", err)
	return 1
}

func exitWithSuggestion(out io.Writer, message string, suggestions []string) int {
	fmt.Fprintf(out, "✗ %s\n", message)
	if len(suggestions) > 0 {
		fmt.Fprintln(out, "Next steps:")
		for _, suggestion := range suggestions {
			fmt.Fprintf(out, "  %s\n", suggestion)
		}
	}
	return 1
}
