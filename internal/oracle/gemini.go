// Where: internal/oracle/gemini.go
// What: Gemini-backed oracle client with structured JSON output.
// Why: Artifact generation must return machine-parseable content plus a
//      finality signal, not free-form prose.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

const (
	defaultModel      = "gemini-2.5-pro"
	defaultAPIRetries = 3
)

// artifactSchema constrains generation responses to the artifact shape.
var artifactSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"content":  {Type: genai.TypeString, Description: "The full artifact content."},
		"reason":   {Type: genai.TypeString, Description: "Reasoning behind the artifact."},
		"is_final": {Type: genai.TypeBoolean, Description: "Whether remaining validation failures are outside the artifact's control."},
	},
	Required: []string{"content"},
}

// verdictSchema constrains log classification responses.
var verdictSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"healthy": {Type: genai.TypeBoolean},
		"reason":  {Type: genai.TypeString},
	},
	Required: []string{"healthy", "reason"},
}

// GeminiClient implements Client against the Gemini API.
type GeminiClient struct {
	client     *genai.Client
	model      string
	maxRetries int
	backoff    time.Duration
}

// NewGeminiClient creates an oracle client. An empty model selects the
// default.
func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("generation oracle API key is required; set GEMINI_API_KEY")
	}
	if model == "" {
		model = defaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create oracle client: %w", err)
	}
	return &GeminiClient{
		client:     client,
		model:      model,
		maxRetries: defaultAPIRetries,
		backoff:    2 * time.Second,
	}, nil
}

// Generate produces one artifact. The request turn and the model's raw
// reply are appended to history so later rounds carry the dialogue.
func (c *GeminiClient) Generate(ctx context.Context, req Request, history *History) (Result, error) {
	if history == nil {
		history = &History{}
	}
	history.Append("user", buildGenerationPrompt(req))

	raw, err := c.generateWithRetry(ctx, historyContents(history), artifactSchema)
	if err != nil {
		return Result{}, fmt.Errorf("generate %s: %w", req.Kind, err)
	}
	history.Append("model", raw)

	var payload struct {
		Content string `json:"content"`
		Reason  string `json:"reason"`
		IsFinal bool   `json:"is_final"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return Result{}, fmt.Errorf("parse oracle response: %w", err)
	}
	if payload.Content == "" {
		return Result{}, fmt.Errorf("oracle returned an empty artifact")
	}
	return Result{
		Artifact: Artifact{Content: payload.Content, Reason: payload.Reason},
		Final:    payload.IsFinal,
	}, nil
}

// ClassifyLogs asks the oracle whether container logs indicate a
// healthy deployment.
func (c *GeminiClient) ClassifyLogs(ctx context.Context, description, logs string) (LogVerdict, error) {
	prompt := fmt.Sprintf(
		"You are reviewing container logs from a deployment of the following application:\n%s\n\n"+
			"Decide whether the logs indicate the services started and are healthy. Logs:\n%s",
		description, logs)
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	raw, err := c.generateWithRetry(ctx, contents, verdictSchema)
	if err != nil {
		return LogVerdict{}, fmt.Errorf("classify logs: %w", err)
	}

	var verdict LogVerdict
	if err := json.Unmarshal([]byte(raw), &verdict); err != nil {
		return LogVerdict{}, fmt.Errorf("parse log verdict: %w", err)
	}
	return verdict, nil
}

func (c *GeminiClient) generateWithRetry(ctx context.Context, contents []*genai.Content, schema *genai.Schema) (string, error) {
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(c.backoff * time.Duration(attempt)):
			}
		}
		resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
		if err != nil {
			lastErr = err
			continue
		}
		text := resp.Text()
		if text == "" {
			lastErr = fmt.Errorf("oracle returned an empty response")
			continue
		}
		return text, nil
	}
	return "", fmt.Errorf("oracle failed after %d attempts: %w", c.maxRetries, lastErr)
}

func historyContents(history *History) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history.Messages))
	for _, msg := range history.Messages {
		var role genai.Role = genai.RoleUser
		if msg.Role == "model" {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(msg.Text, role))
	}
	return contents
}

func buildGenerationPrompt(req Request) string {
	var b strings.Builder
	switch req.Kind {
	case KindDockerfile:
		b.WriteString("Generate a production-ready Dockerfile for the following service.\n")
	case KindCompose:
		b.WriteString("Generate a docker-compose file deploying the following application.\n")
	default:
		b.WriteString("Generate the requested deployment artifact.\n")
	}
	b.WriteString(req.Instruction)

	if req.Prior != nil {
		b.WriteString("\n\nThe previous attempt was:\n")
		b.WriteString(req.Prior.Content)
	}
	if req.Feedback != "" {
		b.WriteString("\n\nIt failed validation with the following output. Fix the artifact accordingly:\n")
		b.WriteString(req.Feedback)
	}
	return b.String()
}
