// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Document is a source file ingested into the corpus. Identity is the
// content hash: two files with identical decoded text are the same
// Document regardless of path. Per prd001-corpus R1.1-R1.3.
type Document struct {
	// ID is the corpus-assigned row identifier. IDs increase in ingestion
	// order and never change for the lifetime of a Document.
	ID int64 `json:"id" yaml:"id"`

	// Path is the source file path relative to the corpus source directory.
	Path string `json:"path" yaml:"path"`

	// ContentHash is the SHA-256 hex digest of the decoded text. Per R1.2.
	ContentHash string `json:"content_hash" yaml:"content_hash"`

	// Text is the decoded document text. Populated during ingestion;
	// persisted at chunk granularity, not on the document record.
	Text string `json:"-" yaml:"-"`

	// CharCount is the rune count of the decoded text.
	CharCount int `json:"char_count" yaml:"char_count"`

	// IngestedAt records when the document entered the corpus.
	IngestedAt time.Time `json:"ingested_at" yaml:"ingested_at"`
}

// Chunk is a bounded slice of a Document's text, the unit of retrieval.
// Chunks are owned by their Document and are deleted with it.
// Per prd001-corpus R2.1-R2.4.
type Chunk struct {
	// ID is the corpus-assigned row identifier, increasing in insertion order.
	ID int64 `json:"id" yaml:"id"`

	// DocumentID references the owning Document.
	DocumentID int64 `json:"document_id" yaml:"document_id"`

	// Ordinal is the chunk's zero-based position within its Document.
	Ordinal int `json:"ordinal" yaml:"ordinal"`

	// Start is the byte offset of the chunk's first byte in the document text.
	Start int `json:"start" yaml:"start"`

	// End is the byte offset one past the chunk's last byte.
	End int `json:"end" yaml:"end"`

	// Content is the chunk text, exactly documentText[Start:End].
	Content string `json:"content" yaml:"content"`
}

// ScoredChunk pairs a Chunk with its similarity score for one query.
// Per prd002-retrieval R3.1.
type ScoredChunk struct {
	Chunk `yaml:",inline"`

	// Score is the cosine similarity against the query, in [-1,1].
	Score float64 `json:"score" yaml:"score"`

	// DocumentPath is the source path of the owning Document, carried for
	// attribution without a second lookup.
	DocumentPath string `json:"document_path" yaml:"document_path"`

	// Label is the citation label assigned in rank order ("S1", "S2", ...).
	// Outline sections and draft citations refer to chunks by label.
	Label string `json:"label" yaml:"label"`
}

// RetrievalContext is the ranked, per-source-capped set of chunks grounding
// one generation run. Chunks are ordered by descending score. An empty
// context signals insufficient grounding. Per prd002-retrieval R3.1-R3.5.
type RetrievalContext struct {
	// Query is the query text that produced this context.
	Query string `json:"query" yaml:"query"`

	// Chunks holds the surviving chunks in descending score order.
	Chunks []ScoredChunk `json:"chunks" yaml:"chunks"`

	// Confidence estimates grounding strength from scores and source
	// diversity, in [0,1]. Per R3.5.
	Confidence float64 `json:"confidence" yaml:"confidence"`

	// LowConfidence is set when Confidence falls below the configured
	// threshold; carried into outlining as an explicit caveat.
	LowConfidence bool `json:"low_confidence" yaml:"low_confidence"`

	// RetrievedAt records when the retrieval ran.
	RetrievedAt time.Time `json:"retrieved_at" yaml:"retrieved_at"`
}

// IsEmpty reports whether the context contains no chunks.
func (rc RetrievalContext) IsEmpty() bool {
	return len(rc.Chunks) == 0
}

// SourceCount returns the number of distinct documents represented.
func (rc RetrievalContext) SourceCount() int {
	seen := make(map[int64]bool)
	for _, c := range rc.Chunks {
		seen[c.DocumentID] = true
	}
	return len(seen)
}

// ByLabel returns the chunk with the given citation label, or nil.
func (rc RetrievalContext) ByLabel(label string) *ScoredChunk {
	for i := range rc.Chunks {
		if rc.Chunks[i].Label == label {
			return &rc.Chunks[i]
		}
	}
	return nil
}
