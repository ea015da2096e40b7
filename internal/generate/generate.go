// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package generate produces outlines, drafts, and publication metadata
// through a Generative AI backend.
// Implements: prd003-pipeline (R2.1-R3.3), prd005-publishing (R2.1-R2.2);
// docs/ARCHITECTURE.md § Capabilities.
package generate

import (
	"context"
	"fmt"
	"time"

	"github.com/pdiddy/draft-engine/pkg/types"
)

const defaultMaxAttempts = 3

// backoffBase is the fallback base delay between retry attempts when the
// configuration does not set one. Package-level var so tests can shrink it.
var backoffBase = time.Second

// Generator runs the prompt workflows of the writing pipeline against a
// Backend, with bounded retries on transient failures.
type Generator struct {
	backend Backend
	cfg     types.GeneratorConfig
}

// New returns a Generator over the given backend.
func New(backend Backend, cfg types.GeneratorConfig) *Generator {
	return &Generator{backend: backend, cfg: cfg}
}

// BackendName identifies the backend model for logs and run headers.
func (g *Generator) BackendName() string {
	return g.backend.Name()
}

// complete sends one prompt through the backend, retrying transient
// failures with exponential backoff. Fatal errors and context
// cancellation abort immediately.
func (g *Generator) complete(ctx context.Context, prompt string) (string, error) {
	maxAttempts := g.cfg.Retry.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	base := g.cfg.Retry.BackoffBase
	if base <= 0 {
		base = backoffBase
	}

	var lastErr error
	for attempt := 0; attempt <= maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := base * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		text, err := g.backend.Complete(ctx, prompt)
		if err == nil {
			return text, nil
		}
		if !types.IsTransient(err) {
			return "", err
		}
		lastErr = err
	}
	// Exhausting the retry budget reclassifies the failure fatal for this
	// stage. The transient cause is flattened with %v so classification
	// does not find it in the chain.
	return "", &types.FatalError{
		Op:  "generate",
		Err: fmt.Errorf("after %d retries: %v", maxAttempts, lastErr),
	}
}
