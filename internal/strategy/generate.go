// Where: internal/strategy/generate.go
// What: The bounded generate-validate-correct loop shared by artifact
//       kinds.
// Why: Dockerfile and compose generation follow the same protocol:
//      accumulate dialogue, feed failures back, and never trust a
//      finality claim the oracle makes before seeing real feedback.
package strategy

import (
	"context"
	"fmt"

	"github.com/opsmith-dev/opsmith/internal/oracle"
	"github.com/opsmith-dev/opsmith/internal/ui"
	"github.com/opsmith-dev/opsmith/internal/validator"
)

const (
	dockerfileMaxAttempts = 5
	composeMaxAttempts    = 3
)

// ExhaustedAttemptsError indicates no valid artifact emerged within the
// attempt budget.
type ExhaustedAttemptsError struct {
	Kind         oracle.Kind
	Attempts     int
	LastFeedback string
}

func (e *ExhaustedAttemptsError) Error() string {
	return fmt.Sprintf("failed to produce a working %s after %d attempts; last failure:\n%s",
		e.Kind, e.Attempts, e.LastFeedback)
}

// CheckFunc validates one candidate artifact.
type CheckFunc func(ctx context.Context, artifact oracle.Artifact) (validator.Result, error)

// generateLoop runs up to maxAttempts generation rounds. Every
// candidate is validated; failures become feedback for the next round.
// The oracle's finality claim is consulted only after the candidate's
// own validation fails, and only once the oracle has seen at least one
// round of real feedback; a first-attempt claim proves nothing.
func generateLoop(ctx context.Context, client oracle.Client, console *ui.Console, kind oracle.Kind, instruction string, maxAttempts int, check CheckFunc) (oracle.Artifact, error) {
	history := &oracle.History{}
	var prior *oracle.Artifact
	feedback := ""

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			console.ItemPlain(fmt.Sprintf("attempt %d/%d", attempt, maxAttempts))
		}

		res, err := client.Generate(ctx, oracle.Request{
			Kind:        kind,
			Instruction: instruction,
			Prior:       prior,
			Feedback:    feedback,
		}, history)
		if err != nil {
			return oracle.Artifact{}, err
		}

		checked, err := check(ctx, res.Artifact)
		if err != nil {
			return oracle.Artifact{}, err
		}
		if checked.OK {
			return res.Artifact, nil
		}

		// For compose artifacts validation is the deployment itself, so
		// the finality check must come after it: an accepted candidate
		// has then already been rolled out to the host.
		if res.Final && feedback != "" {
			console.ItemPlain("remaining failures judged outside the artifact's control; accepting")
			return res.Artifact, nil
		}

		artifact := res.Artifact
		prior = &artifact
		feedback = checked.Feedback
	}

	return oracle.Artifact{}, &ExhaustedAttemptsError{
		Kind:         kind,
		Attempts:     maxAttempts,
		LastFeedback: feedback,
	}
}
