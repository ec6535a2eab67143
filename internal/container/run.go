// Where: internal/container/run.go
// What: Short-lived container execution with a hard time limit.
// Why: Validation treats "still running when the window closes" as a
//      healthy long-running service; exits inside the window need logs.
package container

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/pkg/stdcopy"
)

// RunResult describes one bounded container run.
type RunResult struct {
	// TimedOut is true when the container was still running at the end
	// of the observation window.
	TimedOut bool
	ExitCode int64
	Logs     string
}

// RunWithTimeout starts a container from image and observes it for the
// given window. The container is always removed before returning.
func (b *Builder) RunWithTimeout(ctx context.Context, imageTag string, env []string, window time.Duration) (RunResult, error) {
	created, err := b.docker.ContainerCreate(ctx, &container.Config{
		Image: imageTag,
		Env:   env,
	}, nil, nil, nil, "")
	if err != nil {
		return RunResult{}, fmt.Errorf("create container from %s: %w", imageTag, err)
	}
	defer func() {
		removeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = b.docker.ContainerRemove(removeCtx, created.ID, container.RemoveOptions{Force: true})
	}()

	if err := b.docker.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return RunResult{}, fmt.Errorf("start container %s: %w", created.ID, err)
	}

	waitCh, errCh := b.docker.ContainerWait(ctx, created.ID, container.WaitConditionNotRunning)

	timer := time.NewTimer(window)
	defer timer.Stop()

	select {
	case <-timer.C:
		return RunResult{TimedOut: true}, nil
	case err := <-errCh:
		return RunResult{}, fmt.Errorf("wait for container %s: %w", created.ID, err)
	case status := <-waitCh:
		logs, logErr := b.containerLogs(ctx, created.ID)
		if logErr != nil {
			logs = fmt.Sprintf("(failed to fetch logs: %v)", logErr)
		}
		return RunResult{ExitCode: status.StatusCode, Logs: logs}, nil
	case <-ctx.Done():
		return RunResult{}, ctx.Err()
	}
}

func (b *Builder) containerLogs(ctx context.Context, containerID string) (string, error) {
	reader, err := b.docker.ContainerLogs(ctx, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		return "", err
	}
	defer reader.Close()

	// Docker multiplexes stdout and stderr on one stream.
	var buf bytes.Buffer
	if _, err := stdcopy.StdCopy(&buf, &buf, reader); err != nil {
		return "", err
	}
	return buf.String(), nil
}
