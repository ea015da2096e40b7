// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared across capability clients.
package httputil

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/pdiddy/draft-engine/pkg/types"
)

// RetryBaseDelay controls the base duration for exponential backoff on
// retryable HTTP responses. Tests override this to avoid real sleeps.
var RetryBaseDelay = 10 * time.Second

const defaultMaxRetries = 5

// Retryable reports whether an HTTP status is worth retrying: 429 and
// all 5xx responses.
func Retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// DoWithRetry executes an HTTP request and retries on retryable statuses
// with exponential backoff. The delay starts at retry.BackoffBase and
// doubles each attempt.
//
// Zero-valued retry fields fall back to defaults: 5 retries and
// RetryBaseDelay. On each retryable response the body is drained and
// closed before sleeping. If the context is cancelled during a backoff
// wait the function returns ctx.Err(). After exhausting retries the last
// response is returned so the caller can inspect it.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, retry types.RetryConfig) (*http.Response, error) {
	maxRetries := retry.MaxAttempts
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	base := retry.BackoffBase
	if base <= 0 {
		base = RetryBaseDelay
	}

	for attempt := 0; ; attempt++ {
		// Clone shares the body reader, so refresh it for requests that
		// carry one or a retried POST would send an empty body.
		attemptReq := req.Clone(ctx)
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("refreshing request body: %w", err)
			}
			attemptReq.Body = body
		}

		resp, err := client.Do(attemptReq)
		if err != nil {
			return nil, err
		}

		if !Retryable(resp.StatusCode) {
			return resp, nil
		}

		// Out of retries. Return the last response as-is.
		if attempt >= maxRetries {
			return resp, nil
		}

		// Drain and close the body before retrying.
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		backoff := time.Duration(math.Pow(2, float64(attempt))) * base
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
}

// ClassifyResponse maps a non-2xx HTTP response to the pipeline error
// taxonomy: retryable statuses become TransientError, everything else
// FatalError. Returns nil for 2xx. The response body is consumed for the
// error message; callers classifying an error response must not read the
// body afterwards.
func ClassifyResponse(op string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	cause := fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))

	if Retryable(resp.StatusCode) {
		return &types.TransientError{Op: op, Err: cause}
	}
	return &types.FatalError{Op: op, Err: cause}
}
