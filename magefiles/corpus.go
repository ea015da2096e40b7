//go:build mage

package main

import "github.com/magefile/mage/mg"

// Corpus groups corpus maintenance targets that wrap the built binary.
type Corpus mg.Namespace

// Ingest scans the source directory into the corpus database.
func (Corpus) Ingest() error {
	return engine("corpus", "ingest")
}

// Index embeds pending chunks and builds the vector index.
func (Corpus) Index() error {
	return engine("corpus", "index")
}

// Status prints corpus counts and the last index build.
func (Corpus) Status() error {
	return engine("corpus", "status")
}
