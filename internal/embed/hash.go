// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package embed

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
)

// HashEmbedder produces vectors without a model server by feature-hashing
// tokens into buckets. Retrieval quality is rough but fully deterministic,
// which is what offline index builds and tests need.
type HashEmbedder struct {
	dim int
}

// NewHashEmbedder returns a hash embedder with the given vector width.
func NewHashEmbedder(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = 64
	}
	return &HashEmbedder{dim: dim}
}

// Model returns a stable identifier including the dimension, so switching
// between hash and server embeddings forces an index rebuild.
func (h *HashEmbedder) Model() string { return fmt.Sprintf("feature-hash-%d", h.dim) }

// Dimension returns the vector width.
func (h *HashEmbedder) Dimension() int { return h.dim }

// Embed hashes each token to a signed bucket and L2-normalizes the
// result. An all-stopword or empty text yields the zero vector.
func (h *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, h.dim)

	for _, tok := range strings.Fields(strings.ToLower(text)) {
		tok = strings.Trim(tok, ".,;:!?\"'`()[]{}<>")
		if tok == "" {
			continue
		}
		f := fnv.New32a()
		f.Write([]byte(tok))
		sum := f.Sum32()

		// Low bits pick the bucket, the top bit the sign.
		bucket := int(sum % uint32(h.dim))
		if sum&(1<<31) != 0 {
			vec[bucket]--
		} else {
			vec[bucket]++
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}

	return vec, nil
}
