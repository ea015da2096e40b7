// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package generate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pdiddy/draft-engine/pkg/types"
)

// withClaudeServer points claudeAPIURL at a test server for one test.
func withClaudeServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	old := claudeAPIURL
	claudeAPIURL = srv.URL + "/v1/messages"
	t.Cleanup(func() {
		claudeAPIURL = old
		srv.Close()
	})
	return srv
}

func textResponse(text string) string {
	payload, _ := json.Marshal(claudeResponse{Content: []claudeContent{{Type: "text", Text: text}}})
	return string(payload)
}

// --- request shape ---

func TestClaudeBackendComplete(t *testing.T) {
	var captured struct {
		method      string
		path        string
		apiKey      string
		version     string
		contentType string
		body        claudeRequest
	}
	withClaudeServer(t, func(w http.ResponseWriter, r *http.Request) {
		captured.method = r.Method
		captured.path = r.URL.Path
		captured.apiKey = r.Header.Get("x-api-key")
		captured.version = r.Header.Get("anthropic-version")
		captured.contentType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&captured.body); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		fmt.Fprint(w, textResponse("hello from the model"))
	})

	backend := &ClaudeBackend{APIKey: "sk-test", Model: "test-model", MaxTokens: 512}
	text, err := backend.Complete(context.Background(), "write a post")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if text != "hello from the model" {
		t.Errorf("text = %q, want %q", text, "hello from the model")
	}
	if captured.method != http.MethodPost {
		t.Errorf("method = %q, want POST", captured.method)
	}
	if captured.path != "/v1/messages" {
		t.Errorf("path = %q, want /v1/messages", captured.path)
	}
	if captured.apiKey != "sk-test" {
		t.Errorf("x-api-key = %q, want %q", captured.apiKey, "sk-test")
	}
	if captured.version != anthropicVersion {
		t.Errorf("anthropic-version = %q, want %q", captured.version, anthropicVersion)
	}
	if captured.contentType != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", captured.contentType)
	}
	if captured.body.Model != "test-model" {
		t.Errorf("request model = %q, want %q", captured.body.Model, "test-model")
	}
	if captured.body.MaxTokens != 512 {
		t.Errorf("request max_tokens = %d, want 512", captured.body.MaxTokens)
	}
	if len(captured.body.Messages) != 1 || captured.body.Messages[0].Role != "user" {
		t.Fatalf("messages = %+v, want one user message", captured.body.Messages)
	}
	if captured.body.Messages[0].Content != "write a post" {
		t.Errorf("message content = %q, want the prompt", captured.body.Messages[0].Content)
	}
}

func TestClaudeBackendSkipsNonTextBlocks(t *testing.T) {
	withClaudeServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"content":[{"type":"thinking","text":"hmm"},{"type":"text","text":"answer"}]}`)
	})

	backend := &ClaudeBackend{Model: "test-model"}
	text, err := backend.Complete(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if text != "answer" {
		t.Errorf("text = %q, want %q", text, "answer")
	}
}

// --- error classification ---

func TestClaudeBackendRateLimitTransient(t *testing.T) {
	withClaudeServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"type":"rate_limit_error"}}`, http.StatusTooManyRequests)
	})

	backend := &ClaudeBackend{Model: "test-model"}
	_, err := backend.Complete(context.Background(), "prompt")
	if !types.IsTransient(err) {
		t.Fatalf("expected transient error for 429, got %v", err)
	}
}

func TestClaudeBackendServerErrorTransient(t *testing.T) {
	withClaudeServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	})

	backend := &ClaudeBackend{Model: "test-model"}
	_, err := backend.Complete(context.Background(), "prompt")
	if !types.IsTransient(err) {
		t.Fatalf("expected transient error for 503, got %v", err)
	}
}

func TestClaudeBackendClientErrorFatal(t *testing.T) {
	withClaudeServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"type":"authentication_error"}}`, http.StatusUnauthorized)
	})

	backend := &ClaudeBackend{Model: "test-model"}
	_, err := backend.Complete(context.Background(), "prompt")
	if !types.IsFatal(err) {
		t.Fatalf("expected fatal error for 401, got %v", err)
	}
	if !strings.Contains(err.Error(), "authentication_error") {
		t.Errorf("error should carry the response body, got %v", err)
	}
}

func TestClaudeBackendEmptyContent(t *testing.T) {
	withClaudeServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"content":[]}`)
	})

	backend := &ClaudeBackend{Model: "test-model"}
	_, err := backend.Complete(context.Background(), "prompt")
	if !types.IsTransient(err) {
		t.Fatalf("expected transient error for empty content, got %v", err)
	}
	if !strings.Contains(err.Error(), "no text block") {
		t.Errorf("error = %v, want no-text-block message", err)
	}
}

func TestClaudeBackendMalformedJSON(t *testing.T) {
	withClaudeServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "not json")
	})

	backend := &ClaudeBackend{Model: "test-model"}
	_, err := backend.Complete(context.Background(), "prompt")
	if !types.IsTransient(err) {
		t.Fatalf("expected transient error for malformed response, got %v", err)
	}
	if !strings.Contains(err.Error(), "decoding response") {
		t.Errorf("error = %v, want decode message", err)
	}
}

func TestClaudeBackendCancelled(t *testing.T) {
	withClaudeServer(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		fmt.Fprint(w, textResponse("too late"))
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	backend := &ClaudeBackend{Model: "test-model"}
	_, err := backend.Complete(ctx, "prompt")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context deadline, got %v", err)
	}
}

// --- construction ---

func TestNewClaudeBackendDefaults(t *testing.T) {
	backend := NewClaudeBackend(types.GeneratorConfig{
		AIConfig: types.AIConfig{Model: "claude-sonnet-4-5-20250929", APIKey: "sk-live"},
	})
	if backend.MaxTokens != defaultMaxTokens {
		t.Errorf("MaxTokens = %d, want %d", backend.MaxTokens, defaultMaxTokens)
	}
	if backend.Client == nil {
		t.Error("Client should be set")
	}
	if backend.Name() != "claude-sonnet-4-5-20250929" {
		t.Errorf("Name() = %q, want the model id", backend.Name())
	}
}
