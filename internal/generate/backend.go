// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/pdiddy/draft-engine/internal/httputil"
	"github.com/pdiddy/draft-engine/pkg/types"
)

// claudeAPIURL is the Claude API endpoint. Package-level var so tests can
// point it at a local server.
var claudeAPIURL = "https://api.anthropic.com/v1/messages"

const (
	anthropicVersion = "2023-06-01"
	defaultMaxTokens = 4096
)

// Backend abstracts the Generative AI API so the pipeline can run against
// scripted responses in tests.
type Backend interface {
	// Name identifies the backend model for logs.
	Name() string

	// Complete sends one prompt and returns the model's text response.
	Complete(ctx context.Context, prompt string) (string, error)
}

// ClaudeBackend calls the Claude Messages API.
type ClaudeBackend struct {
	APIKey    string
	Model     string
	MaxTokens int
	Client    *http.Client
}

// NewClaudeBackend builds the production backend from the generator
// configuration.
func NewClaudeBackend(cfg types.GeneratorConfig) *ClaudeBackend {
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &ClaudeBackend{
		APIKey:    cfg.APIKey,
		Model:     cfg.Model,
		MaxTokens: maxTokens,
		Client:    &http.Client{Timeout: 120 * time.Second},
	}
}

// Name returns the model identifier.
func (c *ClaudeBackend) Name() string {
	return c.Model
}

type claudeRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	Messages  []claudeMessage `json:"messages"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeResponse struct {
	Content []claudeContent `json:"content"`
}

type claudeContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Complete sends one prompt to the Claude API and returns the first text
// block of the response. Rate limits and server errors come back as
// transient so the caller's retry loop can back off and try again.
func (c *ClaudeBackend) Complete(ctx context.Context, prompt string) (string, error) {
	reqBody := claudeRequest{
		Model:     c.Model,
		MaxTokens: c.MaxTokens,
		Messages:  []claudeMessage{{Role: "user", Content: prompt}},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, claudeAPIURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &types.TransientError{Op: "generation", Err: err}
	}
	defer resp.Body.Close()

	if err := httputil.ClassifyResponse("generation", resp); err != nil {
		return "", err
	}

	var out claudeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &types.TransientError{Op: "generation", Err: fmt.Errorf("decoding response: %w", err)}
	}
	for _, block := range out.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", &types.TransientError{Op: "generation", Err: errors.New("response contains no text block")}
}
