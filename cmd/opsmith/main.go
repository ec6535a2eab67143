// Where: cmd/opsmith/main.go
// What: CLI entrypoint.
// Why: Execute opsmith commands with configured dependencies.
package main

import (
	"os"

	"github.com/opsmith-dev/opsmith/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:], buildDependencies()))
}
