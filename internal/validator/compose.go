// Where: internal/validator/compose.go
// What: Remote compose validation: deploy over Ansible, then have the
//       oracle classify the resulting container logs.
// Why: Compose errors only surface on the target host; logs are the
//      ground truth for whether the stack came up.
package validator

import (
	"context"
	"errors"
	"fmt"

	"github.com/opsmith-dev/opsmith/internal/executor"
	"github.com/opsmith-dev/opsmith/internal/oracle"
)

// logsOutputKey is the structured-output key the deploy playbook uses
// for collected container logs.
const logsOutputKey = "app_logs"

// PlaybookRunner is the remote-execution capability the validator
// needs. *provisioner.Ansible satisfies it.
type PlaybookRunner interface {
	RunPlaybook(ctx context.Context, playbook, host, user string, extraVars map[string]any) (map[string]string, error)
}

// LogClassifier is the oracle capability used to judge remote logs.
type LogClassifier interface {
	ClassifyLogs(ctx context.Context, description, logs string) (oracle.LogVerdict, error)
}

// ComposeValidator deploys a candidate compose file to the target host
// and judges the outcome from collected logs.
type ComposeValidator struct {
	ansible    PlaybookRunner
	classifier LogClassifier
}

// NewComposeValidator wires the remote runner and the log classifier.
func NewComposeValidator(ansible PlaybookRunner, classifier LogClassifier) *ComposeValidator {
	return &ComposeValidator{ansible: ansible, classifier: classifier}
}

// Deployment describes one remote validation run.
type Deployment struct {
	Playbook    string
	Host        string
	User        string
	ExtraVars   map[string]any
	Description string // application summary given to the log classifier
}

// Validate runs the deploy playbook and classifies the collected logs.
// Playbook exit failures become feedback for the next correction round;
// a missing ansible binary or classifier failure is a real error.
func (v *ComposeValidator) Validate(ctx context.Context, dep Deployment) (Result, error) {
	outputs, err := v.ansible.RunPlaybook(ctx, dep.Playbook, dep.Host, dep.User, dep.ExtraVars)
	if err != nil {
		var exitErr *executor.ExitError
		if errors.As(err, &exitErr) {
			return fail("remote deployment failed:\n" + exitErr.Output), nil
		}
		return Result{}, err
	}

	logs := outputs[logsOutputKey]
	if logs == "" {
		return fail("deployment produced no container logs; the stack likely failed to start"), nil
	}

	verdict, err := v.classifier.ClassifyLogs(ctx, dep.Description, logs)
	if err != nil {
		return Result{}, fmt.Errorf("classify deployment logs: %w", err)
	}
	if verdict.Healthy {
		return pass(), nil
	}
	return fail(fmt.Sprintf("deployment logs indicate a problem: %s\n\nLogs:\n%s", verdict.Reason, logs)), nil
}
