// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package embed turns text into dense vectors for the retrieval index.
// Implements: prd002-retrieval (R1);
//
//	docs/ARCHITECTURE § Capabilities.
package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pdiddy/draft-engine/internal/httputil"
	"github.com/pdiddy/draft-engine/pkg/types"
)

// Embedder converts text into a fixed-dimension vector. Implementations
// must be deterministic for a given model: the same text embeds to the
// same vector while the model is unchanged.
type Embedder interface {
	// Model identifies the embedding model. The index build records it so
	// a model change forces a full rebuild.
	Model() string

	// Dimension is the vector width every Embed call returns.
	Dimension() int

	// Embed maps text to a dense vector.
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Client calls an Ollama-compatible embedding endpoint
// (POST {base}/api/embeddings).
type Client struct {
	cfg    types.EmbedderConfig
	client *http.Client
}

// NewClient builds an embedding client from configuration.
func NewClient(cfg types.EmbedderConfig) *Client {
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Model returns the configured embedding model identifier.
func (c *Client) Model() string { return c.cfg.Model }

// Dimension returns the configured vector width.
func (c *Client) Dimension() int { return c.cfg.Dimension }

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed requests a vector for text. A response whose dimension differs
// from the configured one is fatal: mixed dimensions silently corrupt
// similarity scores (R1.3).
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Model: c.cfg.Model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("encoding embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	resp, err := httputil.DoWithRetry(ctx, c.client, req, c.cfg.Retry)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &types.TransientError{Op: "embedding", Err: err}
	}
	defer resp.Body.Close()

	if err := httputil.ClassifyResponse("embedding", resp); err != nil {
		return nil, err
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &types.TransientError{Op: "embedding", Err: fmt.Errorf("decoding response: %w", err)}
	}

	if len(out.Embedding) != c.cfg.Dimension {
		return nil, &types.FatalError{
			Op: "embedding",
			Err: fmt.Errorf("model %s returned dimension %d, want %d",
				c.cfg.Model, len(out.Embedding), c.cfg.Dimension),
		}
	}

	return out.Embedding, nil
}
