// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package corpus

import (
	"fmt"
	"unicode"

	"github.com/pdiddy/draft-engine/pkg/types"
)

// Chunker splits document text into bounded, overlapping chunks. Splitting
// is deterministic: the same text and configuration always yield the same
// spans. Per prd001-corpus R2.1-R2.4.
type Chunker struct {
	size    int // target chunk size in runes
	overlap int // overlap between consecutive chunks in runes
	window  int // lookback distance for whitespace-aligned cuts
}

// NewChunker validates the chunking configuration and returns a Chunker.
// The overlap fraction is converted to a rune count once, so every chunk
// pair shares the same overlap width.
func NewChunker(cfg types.CorpusConfig) (*Chunker, error) {
	if cfg.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", cfg.ChunkSize)
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= 0.5 {
		return nil, fmt.Errorf("chunk overlap must be in [0,0.5), got %g", cfg.ChunkOverlap)
	}

	overlap := int(float64(cfg.ChunkSize) * cfg.ChunkOverlap)

	// The cut window must stay smaller than the non-overlapped stride so
	// every chunk advances past the previous chunk's start.
	window := cfg.ChunkSize / 5
	if max := cfg.ChunkSize - overlap - 1; window > max {
		window = max
	}
	if window < 0 {
		window = 0
	}

	return &Chunker{size: cfg.ChunkSize, overlap: overlap, window: window}, nil
}

// Split cuts a document's text into chunks with contiguous, monotonically
// increasing spans. Consecutive chunks share an overlap region. A document
// shorter than the chunk size yields exactly one chunk spanning the whole
// text. Spans are byte offsets into the text, always on rune boundaries.
func (c *Chunker) Split(doc types.Document) []types.Chunk {
	text := doc.Text
	if text == "" {
		return nil
	}

	runes := []rune(text)

	// offs[i] is the byte offset of rune i; offs[len(runes)] is len(text).
	offs := make([]int, 0, len(runes)+1)
	for i := range text {
		offs = append(offs, i)
	}
	offs = append(offs, len(text))

	if len(runes) <= c.size {
		return []types.Chunk{{
			DocumentID: doc.ID,
			Ordinal:    0,
			Start:      0,
			End:        len(text),
			Content:    text,
		}}
	}

	var chunks []types.Chunk
	start := 0
	for ordinal := 0; ; ordinal++ {
		end := start + c.size
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = c.cutPoint(runes, start, end)
		}

		chunks = append(chunks, types.Chunk{
			DocumentID: doc.ID,
			Ordinal:    ordinal,
			Start:      offs[start],
			End:        offs[end],
			Content:    text[offs[start]:offs[end]],
		})

		if end == len(runes) {
			break
		}
		start = end - c.overlap
	}

	return chunks
}

// cutPoint returns the rune index to cut at, preferring the position just
// after the last whitespace within the lookback window so chunks tend to
// break between words. Falls back to a hard cut at end.
func (c *Chunker) cutPoint(runes []rune, start, end int) int {
	limit := end - c.window
	if limit < start+1 {
		limit = start + 1
	}
	for i := end - 1; i >= limit; i-- {
		if unicode.IsSpace(runes[i]) {
			return i + 1
		}
	}
	return end
}
