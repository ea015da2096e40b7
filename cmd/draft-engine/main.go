// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the draft-engine CLI.
// Implements: prd001-corpus, prd002-retrieval, prd003-pipeline,
//
//	prd004-critique, prd005-publishing (CLI surface).
//
// See docs/ARCHITECTURE § Pipeline Interface, § Project Structure.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/draft-engine/internal/embed"
	"github.com/pdiddy/draft-engine/internal/publish"
	"github.com/pdiddy/draft-engine/internal/secrets"
	"github.com/pdiddy/draft-engine/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from the secrets directory at
// startup.
var loadedSecrets map[string]string

// rootCmd is the base command for the draft-engine CLI.
var rootCmd = &cobra.Command{
	Use:   "draft-engine",
	Short: "Retrieval-grounded long-form content pipeline",
	Long: `draft-engine writes long-form content grounded in a local knowledge
corpus. Source documents are ingested, chunked, and embedded into a vector
index; a run then researches a topic against the index, outlines, drafts,
critiques in a bounded revision loop, optimizes, and publishes.

Corpus operations live under "corpus", pipeline runs under "run", and
finished run inspection under "runs".`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("secrets-dir")
		s, err := secrets.Load(dir)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./draft-engine.yaml or ~/.config/draft-engine/config.yaml)")
	rootCmd.PersistentFlags().String("corpus-dir", "", "corpus database directory (overrides config)")
	rootCmd.PersistentFlags().String("secrets-dir", ".secrets/", "directory of plain-file secrets")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("draft-engine")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "draft-engine"))
		}
	}

	viper.SetEnvPrefix("DRAFT_ENGINE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// pipelineConfig assembles the typed configuration: documented defaults,
// overlaid by config file / environment, overlaid by root flags.
func pipelineConfig() (types.PipelineConfig, error) {
	cfg := types.DefaultConfig()

	setString(&cfg.Corpus.SourceDir, "corpus.source_dir")
	setString(&cfg.Corpus.CorpusDir, "corpus.corpus_dir")
	setInt(&cfg.Corpus.ChunkSize, "corpus.chunk_size")
	setFloat(&cfg.Corpus.ChunkOverlap, "corpus.chunk_overlap")

	setInt(&cfg.Retrieval.TopK, "retrieval.top_k")
	setInt(&cfg.Retrieval.PerSourceCap, "retrieval.per_source_cap")
	setFloat(&cfg.Retrieval.SimilarityFloor, "retrieval.similarity_floor")
	setFloat(&cfg.Retrieval.ConfidenceThreshold, "retrieval.confidence_threshold")
	setInt(&cfg.Retrieval.QueryAttempts, "retrieval.query_attempts")

	setFloat(&cfg.Critique.ApprovalThreshold, "critique.approval_threshold")
	setInt(&cfg.Critique.MaxIterations, "critique.max_iterations")
	setFloat(&cfg.Critique.Weights.Groundedness, "critique.weights.groundedness")
	setFloat(&cfg.Critique.Weights.Redundancy, "critique.weights.redundancy")
	setFloat(&cfg.Critique.Weights.Structure, "critique.weights.structure")

	setString(&cfg.Generator.Model, "generator.model")
	setInt(&cfg.Generator.MaxTokens, "generator.max_tokens")
	setInt(&cfg.Generator.Retry.MaxAttempts, "generator.retry.max_attempts")
	setDuration(&cfg.Generator.Retry.BackoffBase, "generator.retry.backoff_base")

	setString(&cfg.Embedder.BaseURL, "embedder.base_url")
	setString(&cfg.Embedder.Model, "embedder.model")
	setInt(&cfg.Embedder.Dimension, "embedder.dimension")
	setDuration(&cfg.Embedder.Timeout, "embedder.timeout")
	setInt(&cfg.Embedder.Retry.MaxAttempts, "embedder.retry.max_attempts")
	setDuration(&cfg.Embedder.Retry.BackoffBase, "embedder.retry.backoff_base")

	setString(&cfg.Publish.BaseURL, "publish.base_url")
	setString(&cfg.Publish.BlogName, "publish.blog_name")
	setString(&cfg.Publish.Category, "publish.category")
	setDuration(&cfg.Publish.Timeout, "publish.timeout")
	if viper.IsSet("publish.visibility") {
		cfg.Publish.Visibility = types.Visibility(viper.GetString("publish.visibility"))
	}

	setString(&cfg.Runs.RunsDir, "runs.runs_dir")

	if dir, _ := rootCmd.PersistentFlags().GetString("corpus-dir"); dir != "" {
		cfg.Corpus.CorpusDir = dir
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setString(dst *string, key string) {
	if viper.IsSet(key) {
		*dst = viper.GetString(key)
	}
}

func setInt(dst *int, key string) {
	if viper.IsSet(key) {
		*dst = viper.GetInt(key)
	}
}

func setFloat(dst *float64, key string) {
	if viper.IsSet(key) {
		*dst = viper.GetFloat64(key)
	}
}

func setDuration(dst *time.Duration, key string) {
	if viper.IsSet(key) {
		*dst = viper.GetDuration(key)
	}
}

// newEmbedder picks the embedding capability: the configured HTTP client,
// or the deterministic local embedder when offline is set.
func newEmbedder(cfg types.PipelineConfig, offline bool) embed.Embedder {
	if offline {
		return embed.NewHashEmbedder(cfg.Embedder.Dimension)
	}
	return embed.NewClient(cfg.Embedder)
}

// queryEmbedder picks the embedder for querying an already-built index.
// Queries must embed with the model the index was built with, so a
// stored hash-embedder model forces the local embedder regardless of
// configuration.
func queryEmbedder(cfg types.PipelineConfig, storedModel string, storedDim int, offline bool) embed.Embedder {
	if offline || strings.HasPrefix(storedModel, "feature-hash-") {
		dim := storedDim
		if dim <= 0 {
			dim = cfg.Embedder.Dimension
		}
		return embed.NewHashEmbedder(dim)
	}
	return embed.NewClient(cfg.Embedder)
}

// newPublisher picks the publishing capability: dry-run when requested
// or when no access token is configured, the blog client otherwise.
func newPublisher(cmd *cobra.Command, cfg types.PipelineConfig, dryRun bool) publish.Publisher {
	token := secrets.Get(loadedSecrets, "blog-access-token", "")
	if dryRun || token == "" {
		return &publish.DryRun{W: cmd.OutOrStdout()}
	}
	return publish.NewBlogClient(cfg.Publish, token)
}

// parseVisibility validates a visibility flag or config value.
func parseVisibility(s string) (types.Visibility, error) {
	switch v := types.Visibility(s); v {
	case types.VisibilityDraft, types.VisibilityPublished, types.VisibilityScheduled:
		return v, nil
	}
	return "", fmt.Errorf("visibility must be draft, published, or scheduled, got %q", s)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
