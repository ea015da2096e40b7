// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package index

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/pdiddy/draft-engine/pkg/types"
)

// scriptedEmbedder returns canned vectors for known texts.
type scriptedEmbedder struct {
	dim  int
	vecs map[string][]float32
}

func (s *scriptedEmbedder) Model() string  { return "scripted" }
func (s *scriptedEmbedder) Dimension() int { return s.dim }

func (s *scriptedEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	v, ok := s.vecs[text]
	if !ok {
		return nil, fmt.Errorf("no scripted vector for %q", text)
	}
	return v, nil
}

func testRetriever(t *testing.T, cfg types.RetrievalConfig) *Retriever {
	t.Helper()
	h := NewHandle()
	h.Swap(New("scripted", 2, testEntries()))

	emb := &scriptedEmbedder{dim: 2, vecs: map[string][]float32{
		"right": {1, 0},
		"up":    {0, 1},
	}}
	return NewRetriever(h, emb, cfg)
}

func TestRetrieveRanked(t *testing.T) {
	r := testRetriever(t, types.RetrievalConfig{
		TopK:                10,
		PerSourceCap:        2,
		SimilarityFloor:     0.5,
		ConfidenceThreshold: 0.8,
	})

	rc, err := r.Retrieve(context.Background(), "right")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if rc.Query != "right" {
		t.Errorf("Query = %q", rc.Query)
	}

	// Chunk 3 (orthogonal, score 0) falls below the floor.
	wantIDs := []int64{1, 2, 4}
	if len(rc.Chunks) != len(wantIDs) {
		t.Fatalf("got %d chunks, want %d", len(rc.Chunks), len(wantIDs))
	}
	for i, want := range wantIDs {
		if rc.Chunks[i].ID != want {
			t.Errorf("chunks[%d].ID = %d, want %d", i, rc.Chunks[i].ID, want)
		}
	}
	if rc.RetrievedAt.IsZero() {
		t.Error("RetrievedAt not set")
	}
}

func TestRetrieveLabelsInRankOrder(t *testing.T) {
	r := testRetriever(t, types.RetrievalConfig{
		TopK:            10,
		PerSourceCap:    2,
		SimilarityFloor: 0.5,
	})

	rc, err := r.Retrieve(context.Background(), "right")
	if err != nil {
		t.Fatal(err)
	}
	for i, c := range rc.Chunks {
		want := fmt.Sprintf("S%d", i+1)
		if c.Label != want {
			t.Errorf("chunks[%d].Label = %q, want %q", i, c.Label, want)
		}
	}
	if got := rc.ByLabel("S1"); got == nil || got.ID != 1 {
		t.Errorf("ByLabel(S1) = %v, want chunk 1", got)
	}
}

func TestRetrievePerSourceCap(t *testing.T) {
	r := testRetriever(t, types.RetrievalConfig{
		TopK:            10,
		PerSourceCap:    1,
		SimilarityFloor: 0.5,
	})

	rc, err := r.Retrieve(context.Background(), "right")
	if err != nil {
		t.Fatal(err)
	}

	// Chunk 2 shares document 1 with the top hit, so it is skipped and
	// does not count against k.
	wantIDs := []int64{1, 4}
	if len(rc.Chunks) != len(wantIDs) {
		t.Fatalf("got %d chunks, want %d", len(rc.Chunks), len(wantIDs))
	}
	for i, want := range wantIDs {
		if rc.Chunks[i].ID != want {
			t.Errorf("chunks[%d].ID = %d, want %d", i, rc.Chunks[i].ID, want)
		}
	}
}

func TestRetrieveTopK(t *testing.T) {
	r := testRetriever(t, types.RetrievalConfig{
		TopK:            2,
		PerSourceCap:    2,
		SimilarityFloor: 0,
	})

	rc, err := r.Retrieve(context.Background(), "right")
	if err != nil {
		t.Fatal(err)
	}
	if len(rc.Chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(rc.Chunks))
	}
	if rc.Chunks[0].ID != 1 || rc.Chunks[1].ID != 2 {
		t.Errorf("chunk IDs = [%d, %d], want [1, 2]", rc.Chunks[0].ID, rc.Chunks[1].ID)
	}
}

func TestRetrieveSimilarityFloor(t *testing.T) {
	r := testRetriever(t, types.RetrievalConfig{
		TopK:            10,
		PerSourceCap:    2,
		SimilarityFloor: 0.999,
	})

	rc, err := r.Retrieve(context.Background(), "right")
	if err != nil {
		t.Fatal(err)
	}
	// Only the exact match survives a floor this high.
	if len(rc.Chunks) != 1 || rc.Chunks[0].ID != 1 {
		t.Fatalf("chunks = %v, want only chunk 1", rc.Chunks)
	}
}

func TestRetrieveEmptyIndex(t *testing.T) {
	h := NewHandle()
	emb := &scriptedEmbedder{dim: 2, vecs: map[string][]float32{"q": {1, 0}}}
	r := NewRetriever(h, emb, types.RetrievalConfig{TopK: 10, PerSourceCap: 2})

	// No index built at all.
	rc, err := r.Retrieve(context.Background(), "q")
	if err != nil {
		t.Fatalf("Retrieve on unbuilt index: %v", err)
	}
	if !rc.IsEmpty() {
		t.Error("context should be empty")
	}
	if !rc.LowConfidence {
		t.Error("empty context should be low confidence")
	}

	// An index with zero entries behaves the same.
	h.Swap(New("scripted", 2, nil))
	rc, err = r.Retrieve(context.Background(), "q")
	if err != nil {
		t.Fatal(err)
	}
	if !rc.IsEmpty() || !rc.LowConfidence {
		t.Error("empty index should yield an empty low-confidence context")
	}
}

func TestRetrieveEmbedErrorPropagates(t *testing.T) {
	r := testRetriever(t, types.RetrievalConfig{TopK: 10, PerSourceCap: 2})

	_, err := r.Retrieve(context.Background(), "unknown query")
	if err == nil {
		t.Fatal("expected error from embedder")
	}
	if !strings.Contains(err.Error(), "embedding query") {
		t.Errorf("error = %v", err)
	}
}

func TestRetrieveLowConfidenceFlag(t *testing.T) {
	// Threshold above anything this fixture can reach.
	r := testRetriever(t, types.RetrievalConfig{
		TopK:                10,
		PerSourceCap:        2,
		SimilarityFloor:     0,
		ConfidenceThreshold: 0.99,
	})

	rc, err := r.Retrieve(context.Background(), "right")
	if err != nil {
		t.Fatal(err)
	}
	if !rc.LowConfidence {
		t.Errorf("confidence %g below threshold should set LowConfidence", rc.Confidence)
	}
}

// --- confidence formula ---

func TestConfidence(t *testing.T) {
	tests := []struct {
		name   string
		chunks []types.ScoredChunk
		want   float64
	}{
		{"empty", nil, 0},
		{
			"two sources",
			[]types.ScoredChunk{
				{Chunk: types.Chunk{DocumentID: 1}, Score: 0.8},
				{Chunk: types.Chunk{DocumentID: 2}, Score: 0.6},
			},
			// avg 0.7 * 2 sources / 5.
			0.28,
		},
		{
			"single source",
			[]types.ScoredChunk{
				{Chunk: types.Chunk{DocumentID: 1}, Score: 1.0},
				{Chunk: types.Chunk{DocumentID: 1}, Score: 1.0},
			},
			// avg 1.0 * 1 source / 5.
			0.2,
		},
		{
			"clamped to one",
			[]types.ScoredChunk{
				{Chunk: types.Chunk{DocumentID: 1}, Score: 1},
				{Chunk: types.Chunk{DocumentID: 2}, Score: 1},
				{Chunk: types.Chunk{DocumentID: 3}, Score: 1},
				{Chunk: types.Chunk{DocumentID: 4}, Score: 1},
				{Chunk: types.Chunk{DocumentID: 5}, Score: 1},
				{Chunk: types.Chunk{DocumentID: 6}, Score: 1},
			},
			1,
		},
		{
			"negative average clamps to zero",
			[]types.ScoredChunk{
				{Chunk: types.Chunk{DocumentID: 1}, Score: -0.5},
			},
			0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := confidence(tt.chunks); !almostEqual(got, tt.want) {
				t.Errorf("confidence() = %g, want %g", got, tt.want)
			}
		})
	}
}
