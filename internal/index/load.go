// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package index

import (
	"context"
	"fmt"
	"strconv"

	"github.com/pdiddy/draft-engine/internal/corpus"
)

// LoadStored assembles an index from the vectors already persisted in
// the corpus store, without embedding anything, and swaps it into h.
// An index that was never built yields an empty index, not an error;
// callers decide whether an empty index is acceptable.
func LoadStored(ctx context.Context, store *corpus.Store, h *Handle) (*Index, error) {
	model, err := store.IndexMeta(ctx, corpus.MetaEmbedModel)
	if err != nil {
		return nil, err
	}
	dimStr, err := store.IndexMeta(ctx, corpus.MetaDimension)
	if err != nil {
		return nil, err
	}
	dim := 0
	if dimStr != "" {
		if dim, err = strconv.Atoi(dimStr); err != nil {
			return nil, fmt.Errorf("stored index dimension %q: %w", dimStr, err)
		}
	}

	rows, err := store.IndexRows(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, Entry{
			Chunk:        r.Chunk,
			DocumentPath: r.DocumentPath,
			Vector:       r.Vector,
		})
	}

	ix := New(model, dim, entries)
	h.Swap(ix)
	return ix, nil
}
