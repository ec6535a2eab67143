// Where: internal/provisioner/ansible.go
// What: Ansible playbook driver for remote host configuration.
// Why: Compose deployment and log collection run over SSH through
//      ansible-playbook; structured results come back on a marker line.
package provisioner

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/opsmith-dev/opsmith/internal/executor"
	"github.com/opsmith-dev/opsmith/internal/meta"
)

// outputMarker prefixes the single line a playbook uses to return
// structured data. The payload is base64-encoded JSON so arbitrary log
// content cannot corrupt it.
const outputMarker = "OPSMITH_OUTPUT "

// Ansible drives ansible-playbook against a single remote host.
type Ansible struct {
	runner CommandRunner
}

// NewAnsible creates a driver rooted at workingDir.
func NewAnsible(workingDir string, observer executor.Observer) (*Ansible, error) {
	runner, err := executor.New(workingDir, "Ansible", "ansible-playbook", observer)
	if err != nil {
		return nil, err
	}
	runner.InstallURL = meta.AnsibleInstallURL
	return &Ansible{runner: runner}, nil
}

// NewAnsibleWithRunner wires an explicit runner; used by tests.
func NewAnsibleWithRunner(runner CommandRunner) *Ansible {
	return &Ansible{runner: runner}
}

// RunPlaybook executes playbook against host as user, passing extraVars
// as JSON. It returns any structured output the playbook emitted via
// the marker line.
func (a *Ansible) RunPlaybook(ctx context.Context, playbook, host, user string, extraVars map[string]any) (map[string]string, error) {
	args := []string{
		"-i", host + ",",
		"-u", user,
	}
	if len(extraVars) > 0 {
		varsJSON, err := json.Marshal(extraVars)
		if err != nil {
			return nil, fmt.Errorf("encode ansible vars: %w", err)
		}
		args = append(args, "--extra-vars", string(varsJSON))
	}
	args = append(args, playbook)

	env := map[string]string{"ANSIBLE_HOST_KEY_CHECKING": "False"}
	output, err := a.runner.Run(ctx, env, args...)
	if err != nil {
		return nil, fmt.Errorf("ansible playbook %s: %w", playbook, err)
	}
	return parseMarkerOutput(output)
}

// parseMarkerOutput extracts the last marker line from playbook output.
// Absent markers yield an empty map; playbooks are not required to
// return data.
func parseMarkerOutput(output string) (map[string]string, error) {
	var payload string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(strings.Trim(strings.TrimSpace(line), `"`))
		if idx := strings.Index(line, outputMarker); idx >= 0 {
			payload = strings.TrimSpace(line[idx+len(outputMarker):])
		}
	}
	if payload == "" {
		return map[string]string{}, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode playbook output: %w", err)
	}
	results := map[string]string{}
	if err := json.Unmarshal(decoded, &results); err != nil {
		return nil, fmt.Errorf("parse playbook output: %w", err)
	}
	return results, nil
}
