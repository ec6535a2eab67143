// Where: internal/config/repo.go
// What: Repository root resolution.
// Why: The deployments directory is anchored at the project's git root.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	git "github.com/go-git/go-git/v5"
)

// ResolveRepoRoot locates the project root for the given start
// directory. A git worktree root wins; otherwise the nearest ancestor
// already containing a deployments directory is used.
func ResolveRepoRoot(startDir string) (string, error) {
	abs, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	repo, err := git.PlainOpenWithOptions(abs, &git.PlainOpenOptions{DetectDotGit: true})
	if err == nil {
		if worktree, err := repo.Worktree(); err == nil {
			return worktree.Filesystem.Root(), nil
		}
	}

	if root, ok := findDeploymentsRoot(abs); ok {
		return root, nil
	}
	return "", fmt.Errorf("repository root not found from %s; run opsmith inside a git repository", startDir)
}

// findDeploymentsRoot walks upward looking for an existing .opsmith dir.
func findDeploymentsRoot(dir string) (string, bool) {
	for {
		if info, err := os.Stat(filepath.Join(dir, ".opsmith")); err == nil && info.IsDir() {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}
