// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package index holds the in-memory vector index and its query side.
// Implements: prd002-retrieval (R2-R4);
//
//	docs/ARCHITECTURE § Retrieval.
package index

import (
	"math"
	"sort"
	"time"

	"github.com/pdiddy/draft-engine/pkg/types"
)

// Entry is one indexed chunk with its vector and provenance.
type Entry struct {
	Chunk        types.Chunk
	DocumentPath string
	Vector       []float32
}

// Index is an immutable in-memory vector index. Entries keep their load
// order (document ingestion order, then chunk ordinal), and that order
// breaks similarity ties (R2.3). Once built, an Index is never mutated;
// rebuilds produce a new Index swapped in through a Handle.
type Index struct {
	entries []Entry
	model   string
	dim     int
	builtAt time.Time
}

// New assembles an index over entries embedded by the given model.
func New(model string, dim int, entries []Entry) *Index {
	return &Index{
		entries: entries,
		model:   model,
		dim:     dim,
		builtAt: time.Now().UTC(),
	}
}

// Len returns the number of indexed chunks.
func (ix *Index) Len() int { return len(ix.entries) }

// Model returns the embedding model the index was built with.
func (ix *Index) Model() string { return ix.model }

// Dimension returns the vector width of the index.
func (ix *Index) Dimension() int { return ix.dim }

// BuiltAt returns the index build time.
func (ix *Index) BuiltAt() time.Time { return ix.builtAt }

// Search scores every entry against the query vector by cosine similarity
// and returns the best k as scored chunks, sorted by score descending.
// Equal scores keep load order, so results are deterministic (R2.2-R2.3).
func (ix *Index) Search(query []float32, k int) []types.ScoredChunk {
	if k <= 0 || len(ix.entries) == 0 {
		return nil
	}

	scored := make([]types.ScoredChunk, 0, len(ix.entries))
	for _, e := range ix.entries {
		scored = append(scored, types.ScoredChunk{
			Chunk:        e.Chunk,
			DocumentPath: e.DocumentPath,
			Score:        Cosine(query, e.Vector),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if k > len(scored) {
		k = len(scored)
	}
	return scored[:k]
}

// Cosine returns the cosine similarity of two vectors. Mismatched lengths
// and zero vectors score 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
