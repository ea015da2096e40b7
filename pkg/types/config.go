// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"time"
)

// HTTPConfig holds shared HTTP settings used by capabilities that make
// network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "draft-engine/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// RetryConfig bounds retries of external capability calls.
// Per prd003-pipeline R6.2.
type RetryConfig struct {
	// MaxAttempts is the number of retry attempts after the first failure
	// (default 3).
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts"`

	// BackoffBase is the first retry delay; each further attempt doubles
	// it (default 1s).
	BackoffBase time.Duration `json:"backoff_base" yaml:"backoff_base"`
}

// CorpusConfig holds settings for corpus ingestion and chunking.
// Per prd001-corpus R1.1, R2.2-R2.3, R5.1.
type CorpusConfig struct {
	// SourceDir is the directory of source files (markdown/text/PDF).
	SourceDir string `json:"source_dir" yaml:"source_dir"`

	// CorpusDir is the base directory for the corpus database.
	CorpusDir string `json:"corpus_dir" yaml:"corpus_dir"`

	// ChunkSize is the target chunk size in characters (default 1000).
	ChunkSize int `json:"chunk_size" yaml:"chunk_size"`

	// ChunkOverlap is the fraction of each chunk shared with its
	// successor, in [0,0.5) (default 0.2).
	ChunkOverlap float64 `json:"chunk_overlap" yaml:"chunk_overlap"`
}

// RetrievalConfig holds settings for index queries and research retrieval.
// Per prd002-retrieval R3.2-R3.5, R4.2.
type RetrievalConfig struct {
	// TopK is the maximum number of chunks returned per query (default 10).
	TopK int `json:"top_k" yaml:"top_k"`

	// PerSourceCap is the maximum chunks kept per source document
	// (default 2).
	PerSourceCap int `json:"per_source_cap" yaml:"per_source_cap"`

	// SimilarityFloor drops chunks scoring below it (default 0.25).
	SimilarityFloor float64 `json:"similarity_floor" yaml:"similarity_floor"`

	// ConfidenceThreshold marks retrieval contexts below it as low
	// confidence (default 0.8).
	ConfidenceThreshold float64 `json:"confidence_threshold" yaml:"confidence_threshold"`

	// QueryAttempts is the number of progressively broader queries the
	// research stage tries before giving up (default 3).
	QueryAttempts int `json:"query_attempts" yaml:"query_attempts"`
}

// CritiqueConfig holds settings for the quality gate.
// Per prd004-critique R2.1-R2.3.
type CritiqueConfig struct {
	// ApprovalThreshold is the minimum combined score for approval,
	// in [0,1] (default 0.8).
	ApprovalThreshold float64 `json:"approval_threshold" yaml:"approval_threshold"`

	// MaxIterations is the revision loop budget, at least 1 (default 2).
	MaxIterations int `json:"max_iterations" yaml:"max_iterations"`

	// Weights are the sub-score weights for the combined score.
	Weights CritiqueWeights `json:"weights" yaml:"weights"`
}

// AIConfig holds shared settings for capabilities that call a Generative
// AI API.
type AIConfig struct {
	// Model is the AI model identifier (e.g. "claude-sonnet-4-5-20250929").
	Model string `json:"model" yaml:"model"`

	// APIKey is the authentication key for the AI API. Normally supplied
	// via the secrets directory, not the config file.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// Retry bounds call retries for this capability.
	Retry RetryConfig `json:"retry" yaml:"retry"`
}

// GeneratorConfig holds settings for the text generation capability.
// Per prd003-pipeline R6.2; docs/ARCHITECTURE § Capabilities.
type GeneratorConfig struct {
	AIConfig `yaml:",inline"`

	// MaxTokens caps the response length per call (default 4096).
	MaxTokens int `json:"max_tokens" yaml:"max_tokens"`
}

// EmbedderConfig holds settings for the embedding capability.
// Per prd002-retrieval R1.1-R1.3.
type EmbedderConfig struct {
	HTTPConfig `yaml:",inline"`

	// BaseURL is the embedding service base URL
	// (default "http://localhost:11434").
	BaseURL string `json:"base_url" yaml:"base_url"`

	// Model is the embedding model identifier (default "nomic-embed-text").
	Model string `json:"model" yaml:"model"`

	// Dimension is the expected vector dimension; responses with any
	// other dimension are rejected (default 768).
	Dimension int `json:"dimension" yaml:"dimension"`

	// Retry bounds call retries for this capability.
	Retry RetryConfig `json:"retry" yaml:"retry"`
}

// PublishConfig holds settings for the blog platform client.
// Per prd005-publishing R1.1-R1.4.
type PublishConfig struct {
	HTTPConfig `yaml:",inline"`

	// BaseURL is the platform API base URL.
	BaseURL string `json:"base_url" yaml:"base_url"`

	// BlogName identifies the target blog on the platform.
	BlogName string `json:"blog_name" yaml:"blog_name"`

	// Category is the platform category id for new posts (optional).
	Category string `json:"category,omitempty" yaml:"category,omitempty"`

	// Visibility is the default publication mode (default "draft").
	Visibility Visibility `json:"visibility" yaml:"visibility"`

	// Retry bounds call retries for this capability.
	Retry RetryConfig `json:"retry" yaml:"retry"`
}

// RunsConfig holds settings for run snapshot storage.
// Per prd003-pipeline R5.1.
type RunsConfig struct {
	// RunsDir is the directory for per-run snapshots and post artifacts.
	RunsDir string `json:"runs_dir" yaml:"runs_dir"`
}

// PipelineConfig groups all component configurations.
type PipelineConfig struct {
	Corpus    CorpusConfig    `json:"corpus" yaml:"corpus"`
	Retrieval RetrievalConfig `json:"retrieval" yaml:"retrieval"`
	Critique  CritiqueConfig  `json:"critique" yaml:"critique"`
	Generator GeneratorConfig `json:"generator" yaml:"generator"`
	Embedder  EmbedderConfig  `json:"embedder" yaml:"embedder"`
	Publish   PublishConfig   `json:"publish" yaml:"publish"`
	Runs      RunsConfig      `json:"runs" yaml:"runs"`
}

// DefaultConfig returns the documented defaults for every component.
func DefaultConfig() PipelineConfig {
	return PipelineConfig{
		Corpus: CorpusConfig{
			SourceDir:    "sources",
			CorpusDir:    "corpus",
			ChunkSize:    1000,
			ChunkOverlap: 0.2,
		},
		Retrieval: RetrievalConfig{
			TopK:                10,
			PerSourceCap:        2,
			SimilarityFloor:     0.25,
			ConfidenceThreshold: 0.8,
			QueryAttempts:       3,
		},
		Critique: CritiqueConfig{
			ApprovalThreshold: 0.8,
			MaxIterations:     2,
			Weights: CritiqueWeights{
				Groundedness: 0.5,
				Redundancy:   0.2,
				Structure:    0.3,
			},
		},
		Generator: GeneratorConfig{
			AIConfig: AIConfig{
				Model: "claude-sonnet-4-5-20250929",
				Retry: RetryConfig{MaxAttempts: 3, BackoffBase: time.Second},
			},
			MaxTokens: 4096,
		},
		Embedder: EmbedderConfig{
			HTTPConfig: HTTPConfig{Timeout: 30 * time.Second, UserAgent: "draft-engine/0.1"},
			BaseURL:    "http://localhost:11434",
			Model:      "nomic-embed-text",
			Dimension:  768,
			Retry:      RetryConfig{MaxAttempts: 3, BackoffBase: time.Second},
		},
		Publish: PublishConfig{
			HTTPConfig: HTTPConfig{Timeout: 30 * time.Second, UserAgent: "draft-engine/0.1"},
			Visibility: VisibilityDraft,
			Retry:      RetryConfig{MaxAttempts: 3, BackoffBase: time.Second},
		},
		Runs: RunsConfig{RunsDir: "runs"},
	}
}

// Validate checks cross-field constraints that viper cannot express.
func (c PipelineConfig) Validate() error {
	if c.Corpus.ChunkSize <= 0 {
		return fmt.Errorf("corpus.chunk_size must be positive, got %d", c.Corpus.ChunkSize)
	}
	if c.Corpus.ChunkOverlap < 0 || c.Corpus.ChunkOverlap >= 0.5 {
		return fmt.Errorf("corpus.chunk_overlap must be in [0,0.5), got %g", c.Corpus.ChunkOverlap)
	}
	if c.Retrieval.TopK < 1 {
		return fmt.Errorf("retrieval.top_k must be at least 1, got %d", c.Retrieval.TopK)
	}
	if c.Retrieval.PerSourceCap < 1 {
		return fmt.Errorf("retrieval.per_source_cap must be at least 1, got %d", c.Retrieval.PerSourceCap)
	}
	if c.Retrieval.SimilarityFloor < 0 || c.Retrieval.SimilarityFloor > 1 {
		return fmt.Errorf("retrieval.similarity_floor must be in [0,1], got %g", c.Retrieval.SimilarityFloor)
	}
	if c.Critique.ApprovalThreshold < 0 || c.Critique.ApprovalThreshold > 1 {
		return fmt.Errorf("critique.approval_threshold must be in [0,1], got %g", c.Critique.ApprovalThreshold)
	}
	if c.Critique.MaxIterations < 1 {
		return fmt.Errorf("critique.max_iterations must be at least 1, got %d", c.Critique.MaxIterations)
	}
	w := c.Critique.Weights
	if sum := w.Groundedness + w.Redundancy + w.Structure; sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("critique.weights must sum to 1, got %g", sum)
	}
	if c.Embedder.Dimension <= 0 {
		return fmt.Errorf("embedder.dimension must be positive, got %d", c.Embedder.Dimension)
	}
	return nil
}
