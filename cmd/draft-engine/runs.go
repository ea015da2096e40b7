// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/draft-engine/internal/pipeline"
	"github.com/pdiddy/draft-engine/internal/runstore"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect and retry finished pipeline runs",
}

// --- list subcommand ---

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List finished runs, most recent first",
	RunE:  runRunsList,
}

func runRunsList(cmd *cobra.Command, args []string) error {
	cfg, err := pipelineConfig()
	if err != nil {
		return err
	}
	runs, err := runstore.NewStore(cfg.Runs)
	if err != nil {
		return err
	}

	summaries, err := runs.List()
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no runs")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTATUS\tSTAGE\tITER\tFINISHED\tTITLE")
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			s.RunID, s.Status, s.Stage, s.Iterations,
			s.FinishedAt.Format("2006-01-02 15:04"), s.Title)
	}
	return tw.Flush()
}

// --- show subcommand ---

var runsShowCmd = &cobra.Command{
	Use:   "show [run-id]",
	Short: "Print a run's latest state snapshot",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	cfg, err := pipelineConfig()
	if err != nil {
		return err
	}
	runs, err := runstore.NewStore(cfg.Runs)
	if err != nil {
		return err
	}

	state, err := runs.Load(args[0])
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshaling state: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

// --- retry subcommand ---

var runsRetryCmd = &cobra.Command{
	Use:   "retry [run-id]",
	Short: "Re-run the publish stage of a finished run",
	Long: `Retry re-runs the publish stage from a persisted snapshot: a run
that ended Failed at publish (the draft and metadata are retained), an
Escalated run whose draft has been reviewed, or a Done run being pushed
again — that last case updates the existing post in place, for example
to promote a draft to published. The outcome is saved as a new
snapshot.`,
	Args: cobra.ExactArgs(1),
	RunE: runRunsRetry,
}

func runRunsRetry(cmd *cobra.Command, args []string) error {
	cfg, err := pipelineConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("visibility") {
		raw, _ := cmd.Flags().GetString("visibility")
		if cfg.Publish.Visibility, err = parseVisibility(raw); err != nil {
			return err
		}
	}
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	runs, err := runstore.NewStore(cfg.Runs)
	if err != nil {
		return err
	}
	state, err := runs.Load(args[0])
	if err != nil {
		return err
	}

	// Retry touches only the publish stage; the research and generation
	// capabilities are never invoked.
	publisher := newPublisher(cmd, cfg, dryRun)
	executor := pipeline.New(nil, nil, nil, publisher, runs, cfg, cmd.OutOrStdout())

	if err := executor.Retry(cmd.Context(), state); err != nil {
		return err
	}
	if state.Publish != nil && state.Publish.URL != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "published: %s\n", state.Publish.URL)
	}
	return nil
}

func init() {
	runsRetryCmd.Flags().String("visibility", "", "publication mode: draft, published, or scheduled")
	runsRetryCmd.Flags().Bool("dry-run", false, "print the post instead of publishing")

	runsCmd.AddCommand(runsListCmd, runsShowCmd, runsRetryCmd)
	rootCmd.AddCommand(runsCmd)
}
