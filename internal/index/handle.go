// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package index

import "sync/atomic"

// Handle provides lock-free access to the current index. A rebuild
// assembles a complete new Index and swaps it in with one pointer store,
// so readers never observe a partially built index (R2.4).
type Handle struct {
	current atomic.Pointer[Index]
}

// NewHandle returns an empty handle. Load returns nil until the first
// Swap.
func NewHandle() *Handle {
	return &Handle{}
}

// Load returns the current index, or nil when none has been built.
func (h *Handle) Load() *Index {
	return h.current.Load()
}

// Swap atomically replaces the current index.
func (h *Handle) Swap(ix *Index) {
	h.current.Store(ix)
}
