// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Decision is the quality gate's verdict on one draft.
// Per prd004-critique R2.1.
type Decision string

const (
	// DecisionApprove passes the draft on to optimization.
	DecisionApprove Decision = "approve"

	// DecisionRevise sends the draft back for another writing pass with
	// the critique attached as feedback.
	DecisionRevise Decision = "revise"

	// DecisionEscalate ends the run for human review after the revision
	// budget is exhausted without approval.
	DecisionEscalate Decision = "escalate"
)

// IssueKind categorizes a flagged problem in a draft.
// Per prd004-critique R1.4.
type IssueKind string

const (
	// IssueUnsupportedClaim marks a passage with no citation into the
	// retrieval context.
	IssueUnsupportedClaim IssueKind = "unsupported-claim"

	// IssueUnknownCitation marks a citation label that does not exist in
	// the retrieval context.
	IssueUnknownCitation IssueKind = "unknown-citation"

	// IssueRedundantSection marks two sections with heavily overlapping
	// content.
	IssueRedundantSection IssueKind = "redundant-section"

	// IssueMissingSection marks an outline section absent from the draft.
	IssueMissingSection IssueKind = "missing-section"

	// IssueEmptySection marks a section heading present with no body.
	IssueEmptySection IssueKind = "empty-section"
)

// CritiqueIssue is one flagged problem with its location in the draft.
type CritiqueIssue struct {
	// Kind categorizes the problem.
	Kind IssueKind `json:"kind" yaml:"kind"`

	// Location names where the problem sits (e.g. a section heading or
	// "section 2, paragraph 3").
	Location string `json:"location" yaml:"location"`

	// Detail is a one-line explanation.
	Detail string `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// CritiqueResult is the quality gate's full verdict on one draft attempt.
// Per prd004-critique R1.1-R1.5, R2.1-R2.3.
type CritiqueResult struct {
	// Score is the combined quality score in [0,1].
	Score float64 `json:"score" yaml:"score"`

	// Groundedness is the fraction of draft passages traceable to the
	// retrieval context, in [0,1].
	Groundedness float64 `json:"groundedness" yaml:"groundedness"`

	// Redundancy scores cross-section distinctness in [0,1]; 1 means no
	// two sections overlap.
	Redundancy float64 `json:"redundancy" yaml:"redundancy"`

	// Structure is the fraction of outline sections present with content,
	// in [0,1].
	Structure float64 `json:"structure" yaml:"structure"`

	// Issues lists the flagged problems behind the sub-scores.
	Issues []CritiqueIssue `json:"issues,omitempty" yaml:"issues,omitempty"`

	// Decision is the gate's verdict given the score, the configured
	// threshold, and the revision budget.
	Decision Decision `json:"decision" yaml:"decision"`

	// Iteration is the number of revision loops taken before this
	// critique ran. The first draft is judged at iteration 0.
	Iteration int `json:"iteration" yaml:"iteration"`

	// CreatedAt records when the critique ran.
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// CritiqueWeights are the sub-score weights for the combined quality score.
// A configuration default, not an invariant; they must sum to 1.
// Per prd004-critique R1.5.
type CritiqueWeights struct {
	// Groundedness weighs citation coverage (default 0.5).
	Groundedness float64 `json:"groundedness" yaml:"groundedness"`

	// Redundancy weighs cross-section distinctness (default 0.2).
	Redundancy float64 `json:"redundancy" yaml:"redundancy"`

	// Structure weighs outline completeness (default 0.3).
	Structure float64 `json:"structure" yaml:"structure"`
}
