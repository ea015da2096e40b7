//go:build mage

package main

import "github.com/magefile/mage/mg"

// Run groups pipeline run targets that wrap the built binary.
type Run mg.Namespace

// Demo runs the pipeline for the sample topic with the local embedder
// and a dry-run publisher, so it works without credentials.
func (Run) Demo() error {
	return engine("run", "--topic", "topics/demo.yaml", "--offline", "--dry-run")
}
