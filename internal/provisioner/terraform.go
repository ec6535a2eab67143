// Where: internal/provisioner/terraform.go
// What: Terraform driver for the cloud-resource templates.
// Why: Registry and virtual-machine provisioning both reduce to
//      init/apply/output/destroy against a materialized template dir.
package provisioner

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/opsmith-dev/opsmith/internal/executor"
	"github.com/opsmith-dev/opsmith/internal/meta"
)

// CommandRunner is the subprocess capability terraform and ansible
// drivers need. *executor.Runner satisfies it.
type CommandRunner interface {
	Run(ctx context.Context, env map[string]string, args ...string) (string, error)
}

// Terraform drives terraform inside one template directory.
type Terraform struct {
	runner CommandRunner
}

// NewTerraform creates a driver rooted at workingDir. Tool output is
// streamed to the observer.
func NewTerraform(workingDir string, observer executor.Observer) (*Terraform, error) {
	runner, err := executor.New(workingDir, "Terraform", "terraform", observer)
	if err != nil {
		return nil, err
	}
	runner.InstallURL = meta.TerraformInstallURL
	return &Terraform{runner: runner}, nil
}

// NewTerraformWithRunner wires an explicit runner; used by tests.
func NewTerraformWithRunner(runner CommandRunner) *Terraform {
	return &Terraform{runner: runner}
}

// Apply initializes the working directory and applies it with the given
// variables, returning the flattened terraform outputs. Variables
// travel as TF_VAR_ environment variables so values never appear on a
// command line.
func (t *Terraform) Apply(ctx context.Context, vars map[string]string) (map[string]string, error) {
	env := varEnv(vars)
	if _, err := t.runner.Run(ctx, env, "init", "-input=false"); err != nil {
		return nil, fmt.Errorf("terraform init: %w", err)
	}
	if _, err := t.runner.Run(ctx, env, "apply", "-auto-approve", "-input=false"); err != nil {
		return nil, fmt.Errorf("terraform apply: %w", err)
	}
	return t.Outputs(ctx)
}

// Destroy tears down everything the template manages. Variables must
// match the ones used at apply time.
func (t *Terraform) Destroy(ctx context.Context, vars map[string]string) error {
	env := varEnv(vars)
	if _, err := t.runner.Run(ctx, env, "init", "-input=false"); err != nil {
		return fmt.Errorf("terraform init: %w", err)
	}
	if _, err := t.runner.Run(ctx, env, "destroy", "-auto-approve", "-input=false"); err != nil {
		return fmt.Errorf("terraform destroy: %w", err)
	}
	return nil
}

// Outputs reads `terraform output -json` and flattens each output to a
// string.
func (t *Terraform) Outputs(ctx context.Context) (map[string]string, error) {
	raw, err := t.runner.Run(ctx, nil, "output", "-json")
	if err != nil {
		return nil, fmt.Errorf("terraform output: %w", err)
	}

	var parsed map[string]struct {
		Value any `json:"value"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("parse terraform outputs: %w", err)
	}

	outputs := make(map[string]string, len(parsed))
	for key, entry := range parsed {
		switch value := entry.Value.(type) {
		case string:
			outputs[key] = value
		default:
			outputs[key] = fmt.Sprint(value)
		}
	}
	return outputs, nil
}

// varEnv maps terraform variables to TF_VAR_ environment variables.
func varEnv(vars map[string]string) map[string]string {
	env := make(map[string]string, len(vars))
	for key, value := range vars {
		env["TF_VAR_"+key] = value
	}
	return env
}
