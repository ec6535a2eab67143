// Where: internal/executor/executor_test.go
// What: Tests for the streaming subprocess runner.
// Why: Failure modes must stay typed and carry full output.
package executor

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestRunCapturesOutput(t *testing.T) {
	runner, err := New(t.TempDir(), "Shell", "sh", nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	out, err := runner.Run(context.Background(), nil, "-c", "echo first; echo second")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != "first\nsecond\n" {
		t.Errorf("output = %q, want %q", out, "first\nsecond\n")
	}
}

func TestRunStreamsLinesInOrder(t *testing.T) {
	var lines []string
	runner, err := New(t.TempDir(), "Shell", "sh", func(line string) {
		lines = append(lines, line)
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := runner.Run(context.Background(), nil, "-c", "echo one; echo two 1>&2; echo three"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(lines) != 3 {
		t.Fatalf("observed %d lines, want 3: %v", len(lines), lines)
	}
	joined := strings.Join(lines, "\n")
	for _, want := range []string{"one", "two", "three"} {
		if !strings.Contains(joined, want) {
			t.Errorf("missing line %q in %v", want, lines)
		}
	}
}

func TestRunNonZeroExit(t *testing.T) {
	runner, err := New(t.TempDir(), "Shell", "sh", nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = runner.Run(context.Background(), nil, "-c", "echo boom; exit 3")
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected *ExitError, got %v", err)
	}
	if exitErr.Code != 3 {
		t.Errorf("exit code = %d, want 3", exitErr.Code)
	}
	if !strings.Contains(exitErr.Output, "boom") {
		t.Errorf("output %q missing captured text", exitErr.Output)
	}
}

func TestRunMissingExecutable(t *testing.T) {
	runner, err := New(t.TempDir(), "Nonexistent", "definitely-not-a-real-binary", nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = runner.Run(context.Background(), nil, "anything")
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected *NotFoundError, got %v", err)
	}
	if notFound.Tool != "Nonexistent" {
		t.Errorf("tool = %q, want Nonexistent", notFound.Tool)
	}
}

func TestRunSurvivesOverlongLines(t *testing.T) {
	runner, err := New(t.TempDir(), "Shell", "sh", nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// One 2 MiB line blows past the scanner's 1 MiB limit; the run must
	// still finish and keep capturing what follows.
	out, err := runner.Run(context.Background(), nil, "-c",
		`yes | head -c 4194304 | tr -d "\n"; echo; echo tail-marker`)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out, "line streaming aborted") {
		t.Errorf("output missing the truncation note: %q", out[len(out)-200:])
	}
	if !strings.Contains(out, "tail-marker") {
		t.Error("output after the overlong line was dropped")
	}
}

func TestRunPassesEnvironment(t *testing.T) {
	runner, err := New(t.TempDir(), "Shell", "sh", nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	out, err := runner.Run(context.Background(), map[string]string{"OPSMITH_TEST_VAR": "hello"}, "-c", "echo $OPSMITH_TEST_VAR")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if strings.TrimSpace(out) != "hello" {
		t.Errorf("output = %q, want hello", out)
	}
}
