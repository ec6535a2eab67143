// Where: internal/container/image.go
// What: Image build, tag and push operations against the Docker daemon.
// Why: Local validation and registry release share the same image
//      plumbing; keep it in one place.
package container

import (
	"archive/tar"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/docker/docker/api/types/build"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/registry"
	"github.com/docker/docker/pkg/archive"
)

// Observer receives one line of daemon progress output at a time.
type Observer func(line string)

// generatedDockerfileName is the tar entry name used for Dockerfiles
// injected into a build context. The leading dot keeps it from
// colliding with a Dockerfile the service already carries.
const generatedDockerfileName = ".generated.dockerfile"

// Builder performs image operations through a Docker client.
type Builder struct {
	docker   DockerClient
	observer Observer
}

// NewBuilder wraps a Docker client. The observer may be nil.
func NewBuilder(docker DockerClient, observer Observer) *Builder {
	return &Builder{docker: docker, observer: observer}
}

// BuildImage builds contextDir into an image with the given tag. The
// Dockerfile content is injected into the build context rather than
// written into the service's source tree. platform may be empty.
func (b *Builder) BuildImage(ctx context.Context, contextDir, dockerfile, tag, platform string) error {
	buildContext, err := archive.TarWithOptions(contextDir, &archive.TarOptions{})
	if err != nil {
		return fmt.Errorf("archive build context %s: %w", contextDir, err)
	}
	defer buildContext.Close()

	withDockerfile := injectDockerfile(buildContext, []byte(dockerfile))
	defer withDockerfile.Close()

	resp, err := b.docker.ImageBuild(ctx, withDockerfile, build.ImageBuildOptions{
		Tags:        []string{tag},
		Dockerfile:  generatedDockerfileName,
		Remove:      true,
		ForceRemove: true,
		Platform:    platform,
	})
	if err != nil {
		return fmt.Errorf("build image %s: %w", tag, err)
	}
	defer resp.Body.Close()

	if err := b.drainDaemonStream(resp.Body); err != nil {
		return fmt.Errorf("build image %s: %w", tag, err)
	}
	return nil
}

// TagAndPush retags a local image and pushes it to a remote registry
// using the given credentials.
func (b *Builder) TagAndPush(ctx context.Context, localTag, remoteRef, username, password string) error {
	if err := b.docker.ImageTag(ctx, localTag, remoteRef); err != nil {
		return fmt.Errorf("tag %s as %s: %w", localTag, remoteRef, err)
	}

	authJSON, err := json.Marshal(registry.AuthConfig{Username: username, Password: password})
	if err != nil {
		return fmt.Errorf("encode registry auth: %w", err)
	}

	pushResp, err := b.docker.ImagePush(ctx, remoteRef, image.PushOptions{
		RegistryAuth: base64.URLEncoding.EncodeToString(authJSON),
	})
	if err != nil {
		return fmt.Errorf("push %s: %w", remoteRef, err)
	}
	defer pushResp.Close()

	if err := b.drainDaemonStream(pushResp); err != nil {
		return fmt.Errorf("push %s: %w", remoteRef, err)
	}
	return nil
}

// RemoveImage deletes a local image, ignoring images that are already
// gone.
func (b *Builder) RemoveImage(ctx context.Context, tag string) error {
	_, err := b.docker.ImageRemove(ctx, tag, image.RemoveOptions{Force: true})
	if err != nil && !strings.Contains(err.Error(), "No such image") {
		return fmt.Errorf("remove image %s: %w", tag, err)
	}
	return nil
}

// daemonMessage is the JSON stream format emitted by build and push.
type daemonMessage struct {
	Stream      string `json:"stream"`
	Status      string `json:"status"`
	ErrorDetail *struct {
		Message string `json:"message"`
	} `json:"errorDetail"`
	Error string `json:"error"`
}

// drainDaemonStream consumes a build or push progress stream, relaying
// lines to the observer and surfacing the first daemon error.
func (b *Builder) drainDaemonStream(r io.Reader) error {
	decoder := json.NewDecoder(r)
	for {
		var msg daemonMessage
		if err := decoder.Decode(&msg); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("decode daemon stream: %w", err)
		}
		if msg.Error != "" {
			return errors.New(msg.Error)
		}
		if msg.ErrorDetail != nil && msg.ErrorDetail.Message != "" {
			return errors.New(msg.ErrorDetail.Message)
		}
		if b.observer == nil {
			continue
		}
		for _, text := range []string{msg.Stream, msg.Status} {
			line := strings.TrimRight(text, "\n")
			if line != "" {
				b.observer(line)
			}
		}
	}
}

// injectDockerfile rewrites a tar stream, prepending the generated
// Dockerfile as an extra entry so the daemon can build without the
// file existing in the source tree.
func injectDockerfile(src io.Reader, dockerfile []byte) io.ReadCloser {
	pr, pw := io.Pipe()
	go func() {
		tw := tar.NewWriter(pw)
		err := func() error {
			hdr := &tar.Header{
				Name: generatedDockerfileName,
				Mode: 0o644,
				Size: int64(len(dockerfile)),
			}
			if err := tw.WriteHeader(hdr); err != nil {
				return err
			}
			if _, err := tw.Write(dockerfile); err != nil {
				return err
			}

			tr := tar.NewReader(src)
			for {
				hdr, err := tr.Next()
				if errors.Is(err, io.EOF) {
					return nil
				}
				if err != nil {
					return err
				}
				if err := tw.WriteHeader(hdr); err != nil {
					return err
				}
				if _, err := io.Copy(tw, tr); err != nil {
					return err
				}
			}
		}()
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if err := tw.Close(); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.Close()
	}()
	return pr
}
