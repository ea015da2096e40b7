// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package critique is the quality gate of the writing pipeline. It scores
// drafts deterministically against their outline and retrieval context,
// so a run critiqued twice over the same inputs gets the same verdict.
// Implements: prd004-critique; docs/ARCHITECTURE.md § Quality gate.
package critique

import (
	"time"

	"github.com/pdiddy/draft-engine/pkg/types"
)

// Critic reviews one draft. The production implementation is Analyzer;
// pipeline tests substitute scripted verdicts.
type Critic interface {
	Review(draft types.DraftContent, outline types.Outline, rctx types.RetrievalContext) types.CritiqueResult
}

// Analyzer scores drafts from three measures: groundedness (cited
// paragraphs in sections the outline grounds in sources), redundancy
// (token overlap across sections), and structure (outline sections
// present with content). The measures are weighted into a combined
// score in [0,1].
type Analyzer struct {
	weights types.CritiqueWeights
}

// NewAnalyzer returns an Analyzer with the given sub-score weights. The
// weights are normalized to sum to 1; all-zero weights fall back to the
// configuration defaults.
func NewAnalyzer(weights types.CritiqueWeights) *Analyzer {
	sum := weights.Groundedness + weights.Redundancy + weights.Structure
	if sum <= 0 {
		weights = types.CritiqueWeights{Groundedness: 0.5, Redundancy: 0.2, Structure: 0.3}
		sum = 1
	}
	weights.Groundedness /= sum
	weights.Redundancy /= sum
	weights.Structure /= sum
	return &Analyzer{weights: weights}
}

// Review scores one draft. The result carries the sub-scores and every
// flagged issue; the decision and iteration fields are stamped by the
// pipeline, which owns the revision loop. Per prd004-critique R1.1-R1.5.
func (a *Analyzer) Review(draft types.DraftContent, outline types.Outline, rctx types.RetrievalContext) types.CritiqueResult {
	sections := splitSections(draft.Body)

	grounded, groundIssues := groundedness(sections, outline, rctx)
	redundant, redundancyIssues := redundancy(sections)
	structural, structureIssues := structure(sections, outline)

	issues := append(groundIssues, redundancyIssues...)
	issues = append(issues, structureIssues...)

	score := a.weights.Groundedness*grounded +
		a.weights.Redundancy*redundant +
		a.weights.Structure*structural

	return types.CritiqueResult{
		Score:        score,
		Groundedness: grounded,
		Redundancy:   redundant,
		Structure:    structural,
		Issues:       issues,
		CreatedAt:    time.Now().UTC(),
	}
}

// Decide applies the quality gate's decision policy: approve at or above
// the threshold, revise while the revision budget lasts, escalate when it
// is spent. Total over every (score, iteration) pair and deterministic.
// Per prd004-critique R2.1-R2.3.
func Decide(score float64, iteration, maxIterations int, threshold float64) types.Decision {
	switch {
	case score >= threshold:
		return types.DecisionApprove
	case iteration < maxIterations:
		return types.DecisionRevise
	default:
		return types.DecisionEscalate
	}
}
