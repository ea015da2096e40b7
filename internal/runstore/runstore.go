// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package runstore persists pipeline run snapshots to disk. Every run
// that reaches a terminal status leaves a YAML state snapshot behind,
// and approved or escalated drafts additionally leave a Markdown post
// artifact for publication or human review.
// Implements: prd003-pipeline (R5), prd005-publishing (R3);
//
//	docs/ARCHITECTURE § Run store.
package runstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/draft-engine/pkg/types"
)

// snapshotStamp formats snapshot timestamps. Millisecond precision keeps
// names unique across a retry saved moments after the original, and the
// zero-padded layout sorts chronologically.
const snapshotStamp = "20060102-150405.000"

const (
	statePrefix = "state_"
	postPrefix  = "post_"
)

// Store writes and reads run snapshots under a base directory, one
// subdirectory per run ID.
type Store struct {
	dir string
}

// NewStore opens the run store, creating the base directory if needed.
func NewStore(cfg types.RunsConfig) (*Store, error) {
	dir := cfg.RunsDir
	if dir == "" {
		dir = "runs"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating runs directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the base directory of the store.
func (s *Store) Dir() string { return s.dir }

// Save writes a state snapshot for the run and, when the run produced a
// publishable or reviewable draft (Done or Escalated), a post artifact
// next to it. Files are written to a temp name and renamed so a reader
// never sees a partial snapshot. Returns the state snapshot path.
func (s *Store) Save(state *types.PipelineState) (string, error) {
	if state.RunID == "" {
		return "", fmt.Errorf("state carries no run id")
	}

	runDir := filepath.Join(s.dir, state.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", fmt.Errorf("creating run directory: %w", err)
	}

	stamp := state.FinishedAt
	if stamp.IsZero() {
		stamp = time.Now().UTC()
	}
	suffix := stamp.UTC().Format(snapshotStamp)

	data, err := yaml.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("marshaling state: %w", err)
	}

	statePath := filepath.Join(runDir, statePrefix+suffix+".yaml")
	if err := writeAtomic(statePath, data); err != nil {
		return "", err
	}

	if shouldWritePost(state) {
		post, err := renderPost(state)
		if err != nil {
			return "", err
		}
		postPath := filepath.Join(runDir, postPrefix+suffix+".md")
		if err := writeAtomic(postPath, post); err != nil {
			return "", err
		}
	}

	return statePath, nil
}

// Load returns the latest state snapshot for a run.
func (s *Store) Load(runID string) (*types.PipelineState, error) {
	path, err := s.latestSnapshot(runID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	var state types.PipelineState
	if err := yaml.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parsing snapshot %s: %w", path, err)
	}
	return &state, nil
}

// Summary is one run's listing entry, drawn from its latest snapshot.
type Summary struct {
	RunID      string
	Title      string
	Status     types.RunStatus
	Stage      types.Stage
	Iterations int
	FinishedAt time.Time
}

// List summarizes every run in the store, most recently finished first.
// Runs whose snapshots cannot be read are skipped.
func (s *Store) List() ([]Summary, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading runs directory: %w", err)
	}

	var summaries []Summary
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		state, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		summaries = append(summaries, Summary{
			RunID:      state.RunID,
			Title:      state.Topic.Title,
			Status:     state.Status,
			Stage:      state.Stage,
			Iterations: state.Iterations,
			FinishedAt: state.FinishedAt,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].FinishedAt.After(summaries[j].FinishedAt)
	})
	return summaries, nil
}

// latestSnapshot returns the newest state file path for a run. The
// timestamped names sort lexicographically in time order.
func (s *Store) latestSnapshot(runID string) (string, error) {
	runDir := filepath.Join(s.dir, runID)
	entries, err := os.ReadDir(runDir)
	if err != nil {
		return "", fmt.Errorf("run %s: %w", runID, err)
	}

	var newest string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, statePrefix) && strings.HasSuffix(name, ".yaml") && name > newest {
			newest = name
		}
	}
	if newest == "" {
		return "", fmt.Errorf("run %s has no state snapshot", runID)
	}
	return filepath.Join(runDir, newest), nil
}

// shouldWritePost reports whether the run left a draft worth writing out:
// a finished post on Done, or the last attempt for human review on
// Escalated.
func shouldWritePost(state *types.PipelineState) bool {
	if state.Draft.IsEmpty() {
		return false
	}
	return state.Status == types.StatusDone || state.Status == types.StatusEscalated
}

// postFrontmatter is the YAML header of a post artifact.
type postFrontmatter struct {
	Title           string           `yaml:"title"`
	Slug            string           `yaml:"slug,omitempty"`
	Tags            []string         `yaml:"tags,omitempty"`
	MetaDescription string           `yaml:"meta_description,omitempty"`
	Visibility      types.Visibility `yaml:"visibility,omitempty"`
	URL             string           `yaml:"url,omitempty"`
	RunID           string           `yaml:"run_id"`
	Status          types.RunStatus  `yaml:"status"`
}

// renderPost assembles the Markdown artifact: YAML frontmatter followed
// by the final draft body.
func renderPost(state *types.PipelineState) ([]byte, error) {
	front := postFrontmatter{
		Title:           state.Topic.Title,
		Slug:            state.Meta.Slug,
		Tags:            state.Meta.Tags,
		MetaDescription: state.Meta.MetaDescription,
		RunID:           state.RunID,
		Status:          state.Status,
	}
	if state.Publish != nil {
		front.Visibility = state.Publish.Visibility
		front.URL = state.Publish.URL
	}

	header, err := yaml.Marshal(front)
	if err != nil {
		return nil, fmt.Errorf("marshaling frontmatter: %w", err)
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.Write(header)
	b.WriteString("---\n\n")
	b.WriteString(strings.TrimSpace(state.Draft.Body))
	b.WriteString("\n")
	return []byte(b.String()), nil
}

// writeAtomic writes data to path via a temp file and rename.
func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming %s: %w", tmp, err)
	}
	return nil
}
