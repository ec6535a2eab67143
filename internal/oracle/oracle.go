// Where: internal/oracle/oracle.go
// What: Generation oracle contract and conversation history value.
// Why: The orchestrator needs an opaque "produce structured artifact"
//      capability with explicit, accumulating context.
package oracle

import "context"

// Kind identifies the artifact type being generated.
type Kind string

const (
	KindDockerfile Kind = "dockerfile"
	KindCompose    Kind = "compose"
)

// Artifact is a generated deployable artifact.
type Artifact struct {
	Content string `json:"content"`
	Reason  string `json:"reason,omitempty"`
}

// Result is the oracle's answer for one generation round. Final is the
// oracle's claim that the artifact is correct despite validation issues
// outside its control; callers must not trust it on a first attempt.
type Result struct {
	Artifact Artifact
	Final    bool
}

// Request describes what to generate. Prior and Feedback are set on
// correction rounds only.
type Request struct {
	Kind        Kind
	Instruction string
	Prior       *Artifact
	Feedback    string
}

// Message is one turn of oracle conversation.
type Message struct {
	Role string // "user" or "model"
	Text string
}

// History accumulates conversation turns across generation attempts so
// the oracle sees the full correction dialogue.
type History struct {
	Messages []Message
}

// Append adds a turn to the history.
func (h *History) Append(role, text string) {
	h.Messages = append(h.Messages, Message{Role: role, Text: text})
}

// LogVerdict is the oracle's classification of container logs.
type LogVerdict struct {
	Healthy bool   `json:"healthy"`
	Reason  string `json:"reason"`
}

// Client is the generation oracle capability. Implementations retry
// transient provider errors internally; a returned error is final.
type Client interface {
	Generate(ctx context.Context, req Request, history *History) (Result, error)
	ClassifyLogs(ctx context.Context, description, logs string) (LogVerdict, error)
}
