// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package index

import (
	"math"
	"testing"

	"github.com/pdiddy/draft-engine/pkg/types"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// --- cosine similarity ---

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical unit vectors", []float32{1, 0}, []float32{1, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"scale invariant", []float32{2, 0}, []float32{5, 0}, 1},
		{"45 degrees", []float32{1, 0}, []float32{1, 1}, 1 / math.Sqrt(2)},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
		{"mismatched lengths", []float32{1, 0}, []float32{1, 0, 0}, 0},
		{"empty", nil, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Cosine(tt.a, tt.b); !almostEqual(got, tt.want) {
				t.Errorf("Cosine() = %g, want %g", got, tt.want)
			}
		})
	}
}

// --- search ---

func testEntries() []Entry {
	return []Entry{
		{Chunk: types.Chunk{ID: 1, DocumentID: 1, Ordinal: 0}, DocumentPath: "a.md", Vector: []float32{1, 0}},
		{Chunk: types.Chunk{ID: 2, DocumentID: 1, Ordinal: 1}, DocumentPath: "a.md", Vector: []float32{0.9, 0.1}},
		{Chunk: types.Chunk{ID: 3, DocumentID: 2, Ordinal: 0}, DocumentPath: "b.md", Vector: []float32{0, 1}},
		{Chunk: types.Chunk{ID: 4, DocumentID: 3, Ordinal: 0}, DocumentPath: "c.md", Vector: []float32{0.7, 0.7}},
	}
}

func TestSearchRanksByScore(t *testing.T) {
	ix := New("test-embed", 2, testEntries())

	results := ix.Search([]float32{1, 0}, 4)
	if len(results) != 4 {
		t.Fatalf("got %d results, want 4", len(results))
	}

	wantOrder := []int64{1, 2, 4, 3}
	for i, want := range wantOrder {
		if results[i].ID != want {
			t.Errorf("results[%d].ID = %d, want %d", i, results[i].ID, want)
		}
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("scores not descending at %d: %g > %g", i, results[i].Score, results[i-1].Score)
		}
	}
}

func TestSearchTiesKeepLoadOrder(t *testing.T) {
	entries := []Entry{
		{Chunk: types.Chunk{ID: 10, DocumentID: 1}, DocumentPath: "a.md", Vector: []float32{1, 0}},
		{Chunk: types.Chunk{ID: 11, DocumentID: 2}, DocumentPath: "b.md", Vector: []float32{2, 0}},
	}
	ix := New("test-embed", 2, entries)

	// Both entries score exactly 1 against the query.
	results := ix.Search([]float32{1, 0}, 2)
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].ID != 10 || results[1].ID != 11 {
		t.Errorf("tie order = [%d, %d], want load order [10, 11]", results[0].ID, results[1].ID)
	}
}

func TestSearchClampsK(t *testing.T) {
	ix := New("test-embed", 2, testEntries())

	if got := ix.Search([]float32{1, 0}, 100); len(got) != 4 {
		t.Errorf("k beyond size returned %d results, want 4", len(got))
	}
	if got := ix.Search([]float32{1, 0}, 2); len(got) != 2 {
		t.Errorf("k = 2 returned %d results", len(got))
	}
	if got := ix.Search([]float32{1, 0}, 0); got != nil {
		t.Errorf("k = 0 returned %d results, want none", len(got))
	}
}

func TestSearchCarriesProvenance(t *testing.T) {
	ix := New("test-embed", 2, testEntries())

	results := ix.Search([]float32{0, 1}, 1)
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	r := results[0]
	if r.ID != 3 || r.DocumentPath != "b.md" {
		t.Errorf("top result = chunk %d from %q, want chunk 3 from b.md", r.ID, r.DocumentPath)
	}
	if !almostEqual(r.Score, 1) {
		t.Errorf("score = %g, want 1", r.Score)
	}
}

func TestIndexAccessors(t *testing.T) {
	ix := New("test-embed", 2, testEntries())

	if ix.Len() != 4 {
		t.Errorf("Len() = %d, want 4", ix.Len())
	}
	if ix.Model() != "test-embed" {
		t.Errorf("Model() = %q", ix.Model())
	}
	if ix.Dimension() != 2 {
		t.Errorf("Dimension() = %d", ix.Dimension())
	}
	if ix.BuiltAt().IsZero() {
		t.Error("BuiltAt() is zero")
	}
}

func TestEmptyIndexSearch(t *testing.T) {
	ix := New("test-embed", 2, nil)
	if got := ix.Search([]float32{1, 0}, 5); got != nil {
		t.Errorf("empty index returned %d results", len(got))
	}
}

// --- handle ---

func TestHandleSwap(t *testing.T) {
	h := NewHandle()
	if h.Load() != nil {
		t.Fatal("fresh handle should load nil")
	}

	first := New("test-embed", 2, nil)
	h.Swap(first)
	if h.Load() != first {
		t.Error("Load() did not return the swapped index")
	}

	second := New("test-embed", 2, testEntries())
	h.Swap(second)
	if h.Load() != second {
		t.Error("Load() did not return the latest index")
	}
}
