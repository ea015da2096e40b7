// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Stage identifies one node of the content workflow graph.
// Per prd003-pipeline R4.1.
type Stage string

const (
	StageResearch Stage = "research"
	StageOutline  Stage = "outline"
	StageWrite    Stage = "write"
	StageCritique Stage = "critique"
	StageOptimize Stage = "optimize"
	StagePublish  Stage = "publish"
)

// RunStatus is the lifecycle status of a pipeline run. A run is Running
// until it reaches exactly one of the four terminal statuses.
// Per prd003-pipeline R4.2.
type RunStatus string

const (
	StatusRunning   RunStatus = "running"
	StatusDone      RunStatus = "done"
	StatusFailed    RunStatus = "failed"
	StatusEscalated RunStatus = "escalated"
	StatusCancelled RunStatus = "cancelled"
)

// Terminal reports whether the status ends a run.
func (s RunStatus) Terminal() bool {
	switch s {
	case StatusDone, StatusFailed, StatusEscalated, StatusCancelled:
		return true
	}
	return false
}

// Visibility is the publication mode requested from the blog platform.
// Per prd005-publishing R1.2.
type Visibility string

const (
	VisibilityDraft     Visibility = "draft"
	VisibilityPublished Visibility = "published"
	VisibilityScheduled Visibility = "scheduled"
)

// PublishResult records a successful publication.
// Per prd005-publishing R1.3.
type PublishResult struct {
	// PostID is the platform-assigned post identifier.
	PostID string `json:"post_id" yaml:"post_id"`

	// URL is the public or preview URL of the post.
	URL string `json:"url" yaml:"url"`

	// Visibility is the mode the post was published with.
	Visibility Visibility `json:"visibility" yaml:"visibility"`

	// PublishedAt records when the platform accepted the post.
	PublishedAt time.Time `json:"published_at" yaml:"published_at"`
}

// PipelineState is the single aggregate threaded through a run. Exactly one
// stage owns it at a time; the executor sequences all mutation. It is
// serialized to the run store on every terminal status.
// Per prd003-pipeline R1.1-R1.4, R5.1-R5.3.
type PipelineState struct {
	// RunID uniquely identifies the run.
	RunID string `json:"run_id" yaml:"run_id"`

	// Topic is the run's immutable input.
	Topic TopicSpec `json:"topic" yaml:"topic"`

	// Retrieval is the grounding context produced by the research stage.
	Retrieval RetrievalContext `json:"retrieval" yaml:"retrieval"`

	// Outline is the planned structure produced by the outline stage.
	Outline Outline `json:"outline" yaml:"outline"`

	// Draft is the current draft. Overwritten by each writing pass.
	Draft DraftContent `json:"draft" yaml:"draft"`

	// Critiques is the append-only history of quality gate verdicts, one
	// per writing pass, oldest first.
	Critiques []CritiqueResult `json:"critiques,omitempty" yaml:"critiques,omitempty"`

	// Iterations counts revision loops taken (critique sending the draft
	// back to writing). It only increases, and only the executor writes
	// it. Per R4.4.
	Iterations int `json:"iterations" yaml:"iterations"`

	// Meta is the publication metadata from the optimize stage.
	Meta PostMeta `json:"meta" yaml:"meta"`

	// Publish records the publication on success.
	Publish *PublishResult `json:"publish,omitempty" yaml:"publish,omitempty"`

	// Stage is the stage currently (or last) executing.
	Stage Stage `json:"stage" yaml:"stage"`

	// Status is the run lifecycle status.
	Status RunStatus `json:"status" yaml:"status"`

	// ErrorClass classifies the error that ended the run: "transient",
	// "fatal", "quality_exhausted", or "" when the run did not fail.
	ErrorClass string `json:"error_class,omitempty" yaml:"error_class,omitempty"`

	// ErrorMessage is the message of the error that ended the run.
	ErrorMessage string `json:"error_message,omitempty" yaml:"error_message,omitempty"`

	// Warnings collects non-fatal conditions worth surfacing (e.g.
	// approval on the final allowed iteration).
	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`

	// StartedAt and FinishedAt bound the run. FinishedAt is zero while
	// the run is in flight.
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
}

// LastCritique returns the most recent quality gate verdict, or nil when
// the critique stage has not run yet.
func (p *PipelineState) LastCritique() *CritiqueResult {
	if len(p.Critiques) == 0 {
		return nil
	}
	return &p.Critiques[len(p.Critiques)-1]
}

// AddWarning appends a warning line to the run.
func (p *PipelineState) AddWarning(msg string) {
	p.Warnings = append(p.Warnings, msg)
}
