// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package corpus

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"
)

// ExportEntry holds a chunk with document provenance for export (R4.2).
type ExportEntry struct {
	ChunkID  int64  `json:"chunk_id" yaml:"chunk_id"`
	Document string `json:"document" yaml:"document"`
	Ordinal  int    `json:"ordinal" yaml:"ordinal"`
	Start    int    `json:"start" yaml:"start"`
	End      int    `json:"end" yaml:"end"`
	Content  string `json:"content" yaml:"content"`
	Embedded bool   `json:"embedded" yaml:"embedded"`
}

// ExportYAML writes every chunk with provenance to a YAML file (R4.2).
func (s *Store) ExportYAML(ctx context.Context, path string) error {
	entries, err := s.exportEntries(ctx)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ExportJSON writes every chunk with provenance to a JSON file (R4.3).
func (s *Store) ExportJSON(ctx context.Context, path string) error {
	entries, err := s.exportEntries(ctx)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func (s *Store) exportEntries(ctx context.Context) ([]ExportEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, d.path, c.ordinal, c.start_offset, c.end_offset, c.content,
			e.chunk_id IS NOT NULL
		 FROM chunks c
		 JOIN documents d ON d.id = c.document_id
		 LEFT JOIN embeddings e ON e.chunk_id = c.id
		 ORDER BY c.document_id, c.ordinal`)
	if err != nil {
		return nil, fmt.Errorf("querying for export: %w", err)
	}
	defer rows.Close()

	var entries []ExportEntry
	for rows.Next() {
		var e ExportEntry
		if err := rows.Scan(&e.ChunkID, &e.Document, &e.Ordinal, &e.Start, &e.End, &e.Content, &e.Embedded); err != nil {
			return nil, fmt.Errorf("scanning export row: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}
