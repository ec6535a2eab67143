// Where: internal/validator/dockerfile.go
// What: Local Dockerfile validation via build-then-run.
// Why: A Dockerfile is only trustworthy once the image builds and the
//      container survives (or cleanly completes) a probation window.
package validator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/opsmith-dev/opsmith/internal/container"
)

// defaultRunWindow is how long a validation container is observed. A
// service still running when the window closes is considered healthy.
const defaultRunWindow = 60 * time.Second

// ImageRunner is the container capability the validator needs.
// *container.Builder satisfies it.
type ImageRunner interface {
	BuildImage(ctx context.Context, contextDir, dockerfile, tag, platform string) error
	RunWithTimeout(ctx context.Context, imageTag string, env []string, window time.Duration) (container.RunResult, error)
	RemoveImage(ctx context.Context, tag string) error
}

// DockerfileValidator builds and probes candidate Dockerfiles locally.
type DockerfileValidator struct {
	runner ImageRunner
	window time.Duration
}

// NewDockerfileValidator creates a validator with the default probation
// window.
func NewDockerfileValidator(runner ImageRunner) *DockerfileValidator {
	return &DockerfileValidator{runner: runner, window: defaultRunWindow}
}

// Validate builds dockerfile against contextDir and runs the result.
// Build and runtime failures come back as feedback, not errors; an
// error means the validation machinery itself broke. The throwaway
// image is always removed.
func (v *DockerfileValidator) Validate(ctx context.Context, serviceSlug, contextDir, dockerfile string, env []string) (Result, error) {
	tag := fmt.Sprintf("opsmith-validate-%s:%s", serviceSlug, shortID())

	if err := v.runner.BuildImage(ctx, contextDir, dockerfile, tag, ""); err != nil {
		return fail("docker build failed:\n" + err.Error()), nil
	}
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = v.runner.RemoveImage(cleanupCtx, tag)
	}()

	run, err := v.runner.RunWithTimeout(ctx, tag, env, v.window)
	if err != nil {
		return Result{}, err
	}
	if run.TimedOut || run.ExitCode == 0 {
		return pass(), nil
	}
	return fail(fmt.Sprintf("container exited with code %d:\n%s", run.ExitCode, run.Logs)), nil
}

func shortID() string {
	return strings.SplitN(uuid.NewString(), "-", 2)[0]
}
