// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pdiddy/draft-engine/internal/corpus"
	"github.com/pdiddy/draft-engine/internal/critique"
	"github.com/pdiddy/draft-engine/internal/generate"
	"github.com/pdiddy/draft-engine/internal/index"
	"github.com/pdiddy/draft-engine/internal/pipeline"
	"github.com/pdiddy/draft-engine/internal/runstore"
	"github.com/pdiddy/draft-engine/internal/secrets"
	"github.com/pdiddy/draft-engine/pkg/types"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline for one topic",
	Long: `Run executes the content workflow for one topic file: research against
the corpus index, outline, write, critique with a bounded revision loop,
optimize, and publish. Every run leaves a state snapshot in the run
store; Done additionally leaves the finished post.

Interrupting the run (Ctrl-C) cancels it between stages: the in-progress
state is persisted and the run ends Cancelled.

The exit code is zero only when the run ends Done.`,
	RunE: runPipeline,
}

func runPipeline(cmd *cobra.Command, args []string) error {
	cfg, err := pipelineConfig()
	if err != nil {
		return err
	}

	topicPath, _ := cmd.Flags().GetString("topic")
	if topicPath == "" {
		return fmt.Errorf("--topic is required")
	}
	topic, err := pipeline.LoadTopic(topicPath)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("max-iterations") {
		cfg.Critique.MaxIterations, _ = cmd.Flags().GetInt("max-iterations")
		if cfg.Critique.MaxIterations < 1 {
			return fmt.Errorf("--max-iterations must be at least 1")
		}
	}
	if cmd.Flags().Changed("visibility") {
		raw, _ := cmd.Flags().GetString("visibility")
		if cfg.Publish.Visibility, err = parseVisibility(raw); err != nil {
			return err
		}
	}
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	offline, _ := cmd.Flags().GetBool("offline")

	store, err := corpus.NewStore(cfg.Corpus)
	if err != nil {
		return err
	}
	defer store.Close()

	// The index is loaded once and read through its handle for the whole
	// run; a concurrent rebuild swaps the handle without disturbing us.
	handle := index.NewHandle()
	ix, err := index.LoadStored(cmd.Context(), store, handle)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "index: %d chunks", ix.Len())
	if ix.Model() != "" {
		fmt.Fprintf(out, " (%s, dim %d)", ix.Model(), ix.Dimension())
	}
	fmt.Fprintln(out)

	embedder := queryEmbedder(cfg, ix.Model(), ix.Dimension(), offline)
	retriever := index.NewRetriever(handle, embedder, cfg.Retrieval)

	cfg.Generator.APIKey = secrets.Get(loadedSecrets, "anthropic-api-key", cfg.Generator.APIKey)
	generator := generate.New(generate.NewClaudeBackend(cfg.Generator), cfg.Generator)

	critic := critique.NewAnalyzer(cfg.Critique.Weights)
	publisher := newPublisher(cmd, cfg, dryRun)

	runs, err := runstore.NewStore(cfg.Runs)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	executor := pipeline.New(retriever, generator, critic, publisher, runs, cfg, out)
	state, err := executor.Run(ctx, topic)
	if err != nil {
		return err
	}

	for _, warning := range state.Warnings {
		fmt.Fprintf(out, "warning: %s\n", warning)
	}
	if state.Status != types.StatusDone {
		return fmt.Errorf("run %s ended %s: %s", state.RunID, state.Status, state.ErrorMessage)
	}
	if state.Publish != nil && state.Publish.URL != "" {
		fmt.Fprintf(out, "published: %s\n", state.Publish.URL)
	}
	return nil
}

func init() {
	runCmd.Flags().String("topic", "", "topic YAML file (required)")
	runCmd.Flags().Bool("dry-run", false, "print the post instead of publishing")
	runCmd.Flags().String("visibility", "", "publication mode: draft, published, or scheduled")
	runCmd.Flags().Int("max-iterations", 0, "revision loop budget (default from config)")
	runCmd.Flags().Bool("offline", false, "embed research queries with the local embedder")

	rootCmd.AddCommand(runCmd)
}
