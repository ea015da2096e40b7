// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package index

import (
	"context"
	"fmt"
	"time"

	"github.com/pdiddy/draft-engine/internal/embed"
	"github.com/pdiddy/draft-engine/pkg/types"
)

// Retriever turns a query into a bounded retrieval context against the
// current index.
type Retriever struct {
	handle   *Handle
	embedder embed.Embedder
	cfg      types.RetrievalConfig
}

// NewRetriever returns a Retriever reading the index through h.
func NewRetriever(h *Handle, embedder embed.Embedder, cfg types.RetrievalConfig) *Retriever {
	return &Retriever{handle: h, embedder: embedder, cfg: cfg}
}

// Retrieve embeds the query and assembles a retrieval context: the top-k
// chunks by cosine similarity, keeping at most PerSourceCap chunks per
// source document and nothing below SimilarityFloor. Surviving chunks are
// labeled "S1", "S2", ... in rank order (R3.1-R3.4).
//
// An unbuilt or empty index yields an empty low-confidence context, not
// an error; whether that aborts a run is the caller's call (R3.6).
func (r *Retriever) Retrieve(ctx context.Context, query string) (types.RetrievalContext, error) {
	rc := types.RetrievalContext{
		Query:       query,
		RetrievedAt: time.Now().UTC(),
		Confidence:  0,
	}

	ix := r.handle.Load()
	if ix == nil || ix.Len() == 0 {
		rc.LowConfidence = true
		return rc, nil
	}

	qv, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return rc, fmt.Errorf("embedding query: %w", err)
	}

	topK := r.cfg.TopK
	if topK <= 0 {
		topK = 10
	}
	perSource := r.cfg.PerSourceCap
	if perSource <= 0 {
		perSource = 2
	}

	// Rank everything, then walk down applying floor and per-source cap.
	// Candidates skipped by the cap do not count against k.
	ranked := ix.Search(qv, ix.Len())
	perDoc := make(map[int64]int)
	for _, cand := range ranked {
		if cand.Score < r.cfg.SimilarityFloor {
			break
		}
		if perDoc[cand.DocumentID] >= perSource {
			continue
		}
		perDoc[cand.DocumentID]++

		cand.Label = fmt.Sprintf("S%d", len(rc.Chunks)+1)
		rc.Chunks = append(rc.Chunks, cand)
		if len(rc.Chunks) == topK {
			break
		}
	}

	rc.Confidence = confidence(rc.Chunks)
	rc.LowConfidence = rc.Confidence < r.cfg.ConfidenceThreshold
	return rc, nil
}

// confidence estimates grounding strength: the mean similarity scaled by
// source diversity, min(1, avg * sources/5), clamped to [0,1] (R3.5).
func confidence(chunks []types.ScoredChunk) float64 {
	if len(chunks) == 0 {
		return 0
	}

	var sum float64
	sources := make(map[int64]bool)
	for _, c := range chunks {
		sum += c.Score
		sources[c.DocumentID] = true
	}

	avg := sum / float64(len(chunks))
	conf := avg * float64(len(sources)) / 5
	if conf > 1 {
		conf = 1
	}
	if conf < 0 {
		conf = 0
	}
	return conf
}
