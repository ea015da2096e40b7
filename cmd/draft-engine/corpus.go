// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/draft-engine/internal/corpus"
	"github.com/pdiddy/draft-engine/internal/index"
)

var corpusCmd = &cobra.Command{
	Use:   "corpus",
	Short: "Manage the knowledge corpus (ingest, index, search, export)",
	Long: `Corpus manages the local knowledge corpus that grounds generation.
Source files (markdown/text/PDF) are decoded, chunked, and stored in a
SQLite database; "index" embeds the chunks and builds the vector index
that runs retrieve against.`,
}

// --- ingest subcommand ---

var corpusIngestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Scan the source directory and store decoded, chunked documents",
	Long: `Ingest walks the source directory and stores every supported file as
a document with chunks. Files whose decoded content is already in the
corpus are skipped; a known path with changed content replaces the old
version. Undecodable files are skipped with a note and do not abort the
scan.`,
	RunE: runCorpusIngest,
}

func runCorpusIngest(cmd *cobra.Command, args []string) error {
	cfg, err := pipelineConfig()
	if err != nil {
		return err
	}
	if source, _ := cmd.Flags().GetString("source"); source != "" {
		cfg.Corpus.SourceDir = source
	}

	store, err := corpus.NewStore(cfg.Corpus)
	if err != nil {
		return err
	}
	defer store.Close()

	chunker, err := corpus.NewChunker(cfg.Corpus)
	if err != nil {
		return err
	}

	summary, err := store.IngestDir(cmd.Context(), cfg.Corpus.SourceDir, chunker, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	if summary.HasFailures() {
		return fmt.Errorf("%d file(s) failed ingestion", summary.Failed)
	}
	return nil
}

// --- index subcommand ---

var corpusIndexCmd = &cobra.Command{
	Use:   "index",
	Short: "Embed pending chunks and build the vector index",
	Long: `Index embeds every chunk that has no stored vector and records the
build metadata. With --rebuild all stored vectors are discarded first.
With --offline the deterministic local embedder is used instead of the
embedding service, so the pipeline can be exercised without network
access.`,
	RunE: runCorpusIndex,
}

func runCorpusIndex(cmd *cobra.Command, args []string) error {
	cfg, err := pipelineConfig()
	if err != nil {
		return err
	}
	rebuild, _ := cmd.Flags().GetBool("rebuild")
	offline, _ := cmd.Flags().GetBool("offline")

	store, err := corpus.NewStore(cfg.Corpus)
	if err != nil {
		return err
	}
	defer store.Close()

	builder := index.NewBuilder(store, newEmbedder(cfg, offline), cmd.OutOrStdout())
	_, err = builder.Build(cmd.Context(), index.NewHandle(), rebuild)
	return err
}

// --- status subcommand ---

var corpusStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show corpus counts and the last index build",
	RunE:  runCorpusStatus,
}

func runCorpusStatus(cmd *cobra.Command, args []string) error {
	cfg, err := pipelineConfig()
	if err != nil {
		return err
	}

	store, err := corpus.NewStore(cfg.Corpus)
	if err != nil {
		return err
	}
	defer store.Close()

	st, err := store.CurrentStatus(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "documents: %d\n", st.Documents)
	fmt.Fprintf(out, "chunks:    %d\n", st.Chunks)
	fmt.Fprintf(out, "embedded:  %d (pending %d)\n", st.Embedded, st.Pending)
	if st.EmbedModel != "" {
		fmt.Fprintf(out, "index:     %s (dim %s), built %s\n", st.EmbedModel, st.Dimension, st.BuiltAt)
	} else {
		fmt.Fprintln(out, "index:     not built")
	}
	return nil
}

// --- search subcommand ---

var corpusSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Query the corpus for debugging retrieval",
	Long: `Search runs one retrieval against the built index and prints the
surviving chunks with scores, per-source caps and similarity floor
applied. With --keyword the query goes to FTS5 full-text search over
chunk content instead of the vector index.`,
	Args: cobra.ExactArgs(1),
	RunE: runCorpusSearch,
}

func runCorpusSearch(cmd *cobra.Command, args []string) error {
	cfg, err := pipelineConfig()
	if err != nil {
		return err
	}
	if topK, _ := cmd.Flags().GetInt("top-k"); topK > 0 {
		cfg.Retrieval.TopK = topK
	}
	if cmd.Flags().Changed("floor") {
		cfg.Retrieval.SimilarityFloor, _ = cmd.Flags().GetFloat64("floor")
	}

	store, err := corpus.NewStore(cfg.Corpus)
	if err != nil {
		return err
	}
	defer store.Close()

	out := cmd.OutOrStdout()

	if keyword, _ := cmd.Flags().GetBool("keyword"); keyword {
		results, err := store.SearchKeyword(cmd.Context(), args[0], cfg.Retrieval.TopK)
		if err != nil {
			return err
		}
		for _, sc := range results {
			fmt.Fprintf(out, "%8.3f  %s #%d\n    %s\n", sc.Score, sc.DocumentPath, sc.Ordinal, firstLine(sc.Content))
		}
		if len(results) == 0 {
			fmt.Fprintln(out, "no matches")
		}
		return nil
	}

	handle := index.NewHandle()
	ix, err := index.LoadStored(cmd.Context(), store, handle)
	if err != nil {
		return err
	}
	if ix.Len() == 0 {
		return fmt.Errorf("index is empty; run \"corpus index\" first")
	}

	offline, _ := cmd.Flags().GetBool("offline")
	embedder := queryEmbedder(cfg, ix.Model(), ix.Dimension(), offline)

	retriever := index.NewRetriever(handle, embedder, cfg.Retrieval)
	rc, err := retriever.Retrieve(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	for _, sc := range rc.Chunks {
		fmt.Fprintf(out, "%s  %.3f  %s #%d\n    %s\n", sc.Label, sc.Score, sc.DocumentPath, sc.Ordinal, firstLine(sc.Content))
	}
	fmt.Fprintf(out, "confidence %.2f", rc.Confidence)
	if rc.LowConfidence {
		fmt.Fprint(out, " (low)")
	}
	fmt.Fprintln(out)
	return nil
}

// firstLine truncates chunk content to one preview line.
func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' || i >= 96 {
			return s[:i] + "..."
		}
	}
	return s
}

// --- export subcommand ---

var corpusExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Dump all chunks with document provenance to YAML or JSON",
	RunE:  runCorpusExport,
}

func runCorpusExport(cmd *cobra.Command, args []string) error {
	cfg, err := pipelineConfig()
	if err != nil {
		return err
	}
	format, _ := cmd.Flags().GetString("format")
	out, _ := cmd.Flags().GetString("out")
	if out == "" {
		out = filepath.Join(cfg.Corpus.CorpusDir, "export."+format)
	}

	store, err := corpus.NewStore(cfg.Corpus)
	if err != nil {
		return err
	}
	defer store.Close()

	switch format {
	case "yaml":
		err = store.ExportYAML(cmd.Context(), out)
	case "json":
		err = store.ExportJSON(cmd.Context(), out)
	default:
		return fmt.Errorf("format must be yaml or json, got %q", format)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "exported to %s\n", out)
	return nil
}

// --- watch subcommand ---

var corpusWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the source directory and re-index on change",
	Long: `Watch monitors the source directory and, after changes settle,
re-ingests and rebuilds the index. The new index is built completely
before it replaces the old one, so concurrent readers never see a
partial build. Runs until interrupted.`,
	RunE: runCorpusWatch,
}

func runCorpusWatch(cmd *cobra.Command, args []string) error {
	cfg, err := pipelineConfig()
	if err != nil {
		return err
	}
	debounceMS, _ := cmd.Flags().GetInt("debounce")
	offline, _ := cmd.Flags().GetBool("offline")

	store, err := corpus.NewStore(cfg.Corpus)
	if err != nil {
		return err
	}
	defer store.Close()

	chunker, err := corpus.NewChunker(cfg.Corpus)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	handle := index.NewHandle()
	builder := index.NewBuilder(store, newEmbedder(cfg, offline), out)

	refresh := func(ctx context.Context) error {
		if _, err := store.IngestDir(ctx, cfg.Corpus.SourceDir, chunker, out); err != nil {
			return err
		}
		_, err := builder.Build(ctx, handle, false)
		return err
	}

	return corpus.Watch(cmd.Context(), cfg.Corpus.SourceDir,
		time.Duration(debounceMS)*time.Millisecond, out, refresh)
}

func init() {
	corpusIngestCmd.Flags().String("source", "", "source directory to scan (default from config)")

	corpusIndexCmd.Flags().Bool("rebuild", false, "discard stored vectors and re-embed the whole corpus")
	corpusIndexCmd.Flags().Bool("offline", false, "use the deterministic local embedder")

	corpusSearchCmd.Flags().Int("top-k", 0, "maximum results (default from config)")
	corpusSearchCmd.Flags().Bool("keyword", false, "full-text search instead of vector search")
	corpusSearchCmd.Flags().Float64("floor", 0, "similarity floor (default from config)")
	corpusSearchCmd.Flags().Bool("offline", false, "embed the query with the local embedder")

	corpusExportCmd.Flags().String("format", "yaml", "export format: yaml or json")
	corpusExportCmd.Flags().String("out", "", "output path (default: <corpus-dir>/export.<format>)")

	corpusWatchCmd.Flags().Int("debounce", 2000, "settle time in milliseconds before re-indexing")
	corpusWatchCmd.Flags().Bool("offline", false, "use the deterministic local embedder")

	corpusCmd.AddCommand(corpusIngestCmd, corpusIndexCmd, corpusStatusCmd,
		corpusSearchCmd, corpusExportCmd, corpusWatchCmd)
	rootCmd.AddCommand(corpusCmd)
}
