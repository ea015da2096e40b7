// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package index

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/pdiddy/draft-engine/internal/corpus"
	"github.com/pdiddy/draft-engine/internal/embed"
)

// Builder embeds pending chunks and assembles a fresh index from the
// corpus store. Embedding runs outside any store transaction, so
// ingestion is never blocked behind capability calls (R5.2).
type Builder struct {
	store    *corpus.Store
	embedder embed.Embedder
	w        io.Writer
}

// NewBuilder returns a Builder streaming progress to w.
func NewBuilder(store *corpus.Store, embedder embed.Embedder, w io.Writer) *Builder {
	return &Builder{store: store, embedder: embedder, w: w}
}

// Build embeds every chunk without a stored vector, loads all embedded
// rows, and swaps a complete new index into h. When rebuild is set, or
// when the embedding model or dimension changed since the last build,
// stored vectors are cleared first so the whole corpus re-embeds
// (R5.3-R5.4).
func (b *Builder) Build(ctx context.Context, h *Handle, rebuild bool) (*Index, error) {
	if rebuild {
		if err := b.store.ClearEmbeddings(ctx); err != nil {
			return nil, err
		}
		fmt.Fprintln(b.w, "rebuild requested, cleared stored embeddings")
	} else if err := b.clearOnModelChange(ctx); err != nil {
		return nil, err
	}

	pending, err := b.store.PendingChunks(ctx)
	if err != nil {
		return nil, err
	}

	for i, ch := range pending {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		vec, err := b.embedder.Embed(ctx, ch.Content)
		if err != nil {
			return nil, fmt.Errorf("embedding chunk %d: %w", ch.ID, err)
		}
		if err := b.store.SaveEmbedding(ctx, ch.ID, vec); err != nil {
			return nil, err
		}

		if (i+1)%25 == 0 || i == len(pending)-1 {
			fmt.Fprintf(b.w, "embedded %d/%d chunks\n", i+1, len(pending))
		}
	}

	rows, err := b.store.IndexRows(ctx)
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

	ix := New(b.embedder.Model(), b.embedder.Dimension(), entries)

	meta := map[string]string{
		corpus.MetaEmbedModel: ix.Model(),
		corpus.MetaDimension:  strconv.Itoa(ix.Dimension()),
		corpus.MetaBuiltAt:    ix.BuiltAt().Format(time.RFC3339),
	}
	for key, value := range meta {
		if err := b.store.SetIndexMeta(ctx, key, value); err != nil {
			return nil, err
		}
	}

	h.Swap(ix)
	fmt.Fprintf(b.w, "index ready: %d chunks (%s, dim %d)\n", ix.Len(), ix.Model(), ix.Dimension())

	return ix, nil
}

// clearOnModelChange drops stored vectors when the configured embedding
// model or dimension no longer matches the one the index was built with.
// Mixed-model vectors are never comparable.
func (b *Builder) clearOnModelChange(ctx context.Context) error {
	storedModel, err := b.store.IndexMeta(ctx, corpus.MetaEmbedModel)
	if err != nil {
		return err
	}
	storedDim, err := b.store.IndexMeta(ctx, corpus.MetaDimension)
	if err != nil {
		return err
	}
	if storedModel == "" {
		return nil
	}

	if storedModel != b.embedder.Model() || storedDim != strconv.Itoa(b.embedder.Dimension()) {
		fmt.Fprintf(b.w, "embedding model changed (%s dim %s -> %s dim %d), re-embedding corpus\n",
			storedModel, storedDim, b.embedder.Model(), b.embedder.Dimension())
		return b.store.ClearEmbeddings(ctx)
	}
	return nil
}
