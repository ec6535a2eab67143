// Where: internal/executor/executor.go
// What: Streaming subprocess runner with typed failure modes.
// Why: External tools (terraform, ansible, gcloud) need live output and
//      full captured logs for diagnosis.
package executor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// Observer receives each line of combined stdout/stderr as it is produced.
type Observer func(line string)

// NotFoundError indicates the tool's executable is absent from PATH.
type NotFoundError struct {
	Tool       string // display name, e.g. "Terraform"
	Executable string // binary name, e.g. "terraform"
	InstallURL string
}

func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("'%s' command not found; ensure %s is installed and in your PATH", e.Executable, e.Tool)
	if e.InstallURL != "" {
		msg += " (see " + e.InstallURL + ")"
	}
	return msg
}

// ExitError indicates the tool exited non-zero. Output holds the full
// combined stdout/stderr for operator diagnosis.
type ExitError struct {
	Tool   string
	Code   int
	Output string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s command failed with exit code %d", e.Tool, e.Code)
}

// Runner executes one external tool inside a fixed working directory.
// It performs no retries; retry policy belongs to callers.
type Runner struct {
	WorkingDir string
	Tool       string
	Executable string
	InstallURL string
	Observer   Observer
}

// New creates a Runner and ensures the working directory exists.
func New(workingDir, tool, executable string, observer Observer) (*Runner, error) {
	if workingDir != "" {
		if err := os.MkdirAll(workingDir, 0o755); err != nil {
			return nil, fmt.Errorf("create working dir: %w", err)
		}
	}
	return &Runner{
		WorkingDir: workingDir,
		Tool:       tool,
		Executable: executable,
		Observer:   observer,
	}, nil
}

// Run executes the tool with the given arguments and extra environment
// variables. Combined stdout/stderr is streamed line-by-line to the
// Observer while also being buffered; the buffered text is returned.
// A missing executable yields *NotFoundError, a non-zero exit yields
// *ExitError carrying the full output.
func (r *Runner) Run(ctx context.Context, env map[string]string, args ...string) (string, error) {
	if _, err := exec.LookPath(r.Executable); err != nil {
		return "", &NotFoundError{Tool: r.Tool, Executable: r.Executable, InstallURL: r.InstallURL}
	}

	cmd := exec.CommandContext(ctx, r.Executable, args...)
	cmd.Dir = r.WorkingDir
	cmd.Env = os.Environ()
	for key, value := range env {
		cmd.Env = append(cmd.Env, key+"="+value)
	}

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	var buf strings.Builder
	done := make(chan struct{})
	go func() {
		defer close(done)
		scanner := bufio.NewScanner(pr)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			buf.WriteString(line)
			buf.WriteByte('\n')
			if r.Observer != nil {
				r.Observer(line)
			}
		}
		// A line over the scanner's limit aborts line splitting. Keep
		// draining raw so the pipe writer never blocks and the captured
		// output stays as complete as possible.
		if err := scanner.Err(); err != nil {
			io.Copy(&buf, pr)
			note := "[line streaming aborted: " + err.Error() + "; remaining output captured unsplit]"
			buf.WriteString(note + "\n")
			if r.Observer != nil {
				r.Observer(note)
			}
		}
	}()

	if err := cmd.Start(); err != nil {
		pw.Close()
		<-done
		if errors.Is(err, exec.ErrNotFound) {
			return "", &NotFoundError{Tool: r.Tool, Executable: r.Executable, InstallURL: r.InstallURL}
		}
		return "", fmt.Errorf("start %s: %w", r.Executable, err)
	}

	waitErr := cmd.Wait()
	pw.Close()
	<-done

	output := buf.String()
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return output, &ExitError{Tool: r.Tool, Code: exitErr.ExitCode(), Output: output}
		}
		return output, fmt.Errorf("run %s: %w", r.Executable, waitErr)
	}
	return output, nil
}
