// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package corpus

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/pdiddy/draft-engine/pkg/types"
)

// IngestSummary holds counts from one ingestion run (R3.4).
type IngestSummary struct {
	Ingested int
	Replaced int
	Skipped  int
	Failed   int
}

// Total returns the number of files processed.
func (s IngestSummary) Total() int {
	return s.Ingested + s.Replaced + s.Skipped + s.Failed
}

// HasFailures reports whether any files failed to ingest.
func (s IngestSummary) HasFailures() bool {
	return s.Failed > 0
}

// IngestDir walks sourceDir and ingests every supported file (R3.1-R3.5).
// A file whose decoded content hash already exists in the corpus is a
// no-op. A known path with new content replaces the old document. Files
// that cannot be decoded are skipped with a logged IngestionError and do
// not abort the walk. Progress is streamed to w.
func (s *Store) IngestDir(ctx context.Context, sourceDir string, chunker *Chunker, w io.Writer) (IngestSummary, error) {
	var summary IngestSummary

	err := filepath.WalkDir(sourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != sourceDir {
				return filepath.SkipDir
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if _, ok := DecoderFor(path); !ok {
			return nil
		}

		rel, err := filepath.Rel(sourceDir, path)
		if err != nil {
			rel = path
		}

		text, err := decodeFile(path, rel)
		if err != nil {
			fmt.Fprintf(w, "failed   %v\n", err)
			summary.Failed++
			return nil
		}

		hash := ContentHash(text)
		exists, err := s.HasDocument(ctx, hash)
		if err != nil {
			return err
		}
		if exists {
			fmt.Fprintf(w, "skipped  %s (unchanged)\n", rel)
			summary.Skipped++
			return nil
		}

		replacing, err := s.pathKnown(ctx, rel)
		if err != nil {
			return err
		}

		doc := types.Document{
			Path:        rel,
			ContentHash: hash,
			Text:        text,
			CharCount:   utf8.RuneCountInString(text),
		}
		chunks := chunker.Split(doc)

		if err := s.InsertDocument(ctx, &doc, chunks); err != nil {
			fmt.Fprintf(w, "failed   %s: %v\n", rel, err)
			summary.Failed++
			return nil
		}

		if replacing {
			fmt.Fprintf(w, "replaced %s (%d chunks)\n", rel, len(chunks))
			summary.Replaced++
		} else {
			fmt.Fprintf(w, "ingested %s (%d chunks)\n", rel, len(chunks))
			summary.Ingested++
		}
		return nil
	})
	if err != nil {
		return summary, fmt.Errorf("walking %s: %w", sourceDir, err)
	}

	fmt.Fprintf(w, "\ningested: %d, replaced: %d, skipped: %d, failed: %d\n",
		summary.Ingested, summary.Replaced, summary.Skipped, summary.Failed)

	return summary, nil
}

// decodeFile decodes one source file, classifying any failure as an
// IngestionError for the file (R3.3).
func decodeFile(path, rel string) (string, error) {
	dec, ok := DecoderFor(path)
	if !ok {
		return "", &types.IngestionError{Path: rel, Err: fmt.Errorf("unsupported format")}
	}
	text, err := dec.Decode(path)
	if err != nil {
		return "", &types.IngestionError{Path: rel, Err: err}
	}
	return text, nil
}

// pathKnown reports whether any document version exists at path.
func (s *Store) pathKnown(ctx context.Context, path string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM documents WHERE path = ?`, path,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking document path: %w", err)
	}
	return n > 0, nil
}
