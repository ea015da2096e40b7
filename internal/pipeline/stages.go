// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pdiddy/draft-engine/internal/critique"
	"github.com/pdiddy/draft-engine/internal/publish"
	"github.com/pdiddy/draft-engine/pkg/types"
)

// research grounds the run. Queries go narrow to broad within the
// configured attempt budget; the first non-empty context wins. A context
// below the confidence threshold is accepted with a warning carried into
// outlining. All queries empty means the corpus cannot ground this topic
// and the run fails (R4.3).
func (e *Executor) research(ctx context.Context, state *types.PipelineState) (types.Stage, error) {
	queries := researchQueries(state.Topic, e.retrieval.QueryAttempts)

	for i, query := range queries {
		rc, err := e.retriever.Retrieve(ctx, query)
		if err != nil {
			return "", err
		}
		if rc.IsEmpty() {
			fmt.Fprintf(e.w, "  query %d/%d returned nothing, broadening\n", i+1, len(queries))
			continue
		}

		state.Retrieval = rc
		fmt.Fprintf(e.w, "  grounded on %d chunks from %d sources (confidence %.2f)\n",
			len(rc.Chunks), rc.SourceCount(), rc.Confidence)
		if rc.LowConfidence {
			state.AddWarning(fmt.Sprintf("retrieval confidence %.2f below threshold %.2f",
				rc.Confidence, e.retrieval.ConfidenceThreshold))
		}
		return types.StageOutline, nil
	}

	return "", &types.FatalError{Op: "research", Err: errors.New("no grounding found after broadening queries")}
}

// researchQueries builds the narrow-to-broad query ladder for a topic,
// capped at attempts.
func researchQueries(topic types.TopicSpec, attempts int) []string {
	keywords := strings.Join(topic.Keywords, " ")

	var queries []string
	add := func(parts ...string) {
		var kept []string
		for _, p := range parts {
			if strings.TrimSpace(p) != "" {
				kept = append(kept, strings.TrimSpace(p))
			}
		}
		q := strings.Join(kept, " ")
		for _, existing := range queries {
			if existing == q {
				return
			}
		}
		queries = append(queries, q)
	}

	add(topic.Title, topic.Description, keywords)
	add(topic.Title, keywords)
	add(topic.Title)

	if attempts > 0 && attempts < len(queries) {
		queries = queries[:attempts]
	}
	return queries
}

// outline plans the piece from the grounded context.
func (e *Executor) outline(ctx context.Context, state *types.PipelineState) (types.Stage, error) {
	outline, err := e.generator.Outline(ctx, state.Topic, state.Retrieval)
	if err != nil {
		return "", err
	}
	state.Outline = outline
	fmt.Fprintf(e.w, "  planned %d sections\n", len(outline.Sections))
	return types.StageWrite, nil
}

// write produces a draft. On a revision pass the previous critique goes
// into the prompt as a fix list.
func (e *Executor) write(ctx context.Context, state *types.PipelineState) (types.Stage, error) {
	var previous *types.CritiqueResult
	if last := state.LastCritique(); last != nil && last.Decision == types.DecisionRevise {
		previous = last
	}

	draft, err := e.generator.Draft(ctx, state.Topic, state.Outline, state.Retrieval, previous)
	if err != nil {
		return "", err
	}
	state.Draft = draft
	fmt.Fprintf(e.w, "  drafted %d words\n", draft.WordCount())
	return types.StageCritique, nil
}

// critiqueStage scores the draft and routes per the transition table:
// approve moves on to optimize, revise loops back to write, escalate
// ends the run for human review. The executor alone advances the
// iteration counter, on the revise edge only, so the loop bound is
// enforced here and nowhere else (R4.4).
func (e *Executor) critiqueStage(state *types.PipelineState) (types.Stage, error) {
	cr := e.critic.Review(state.Draft, state.Outline, state.Retrieval)
	cr.Iteration = state.Iterations
	cr.Decision = critique.Decide(cr.Score, state.Iterations, e.gate.MaxIterations, e.gate.ApprovalThreshold)
	if cr.CreatedAt.IsZero() {
		cr.CreatedAt = time.Now().UTC()
	}
	state.Critiques = append(state.Critiques, cr)

	fmt.Fprintf(e.w, "  score %.2f (threshold %.2f, iteration %d/%d): %s\n",
		cr.Score, e.gate.ApprovalThreshold, cr.Iteration, e.gate.MaxIterations, cr.Decision)

	switch cr.Decision {
	case types.DecisionApprove:
		if state.Iterations == e.gate.MaxIterations {
			state.AddWarning("approved on the final allowed iteration")
		}
		return types.StageOptimize, nil
	case types.DecisionRevise:
		state.Iterations++
		return types.StageWrite, nil
	default:
		return "", &types.QualityExhaustedError{Iterations: state.Iterations, Score: cr.Score}
	}
}

// optimize produces publication metadata. The draft body passes through
// unchanged.
func (e *Executor) optimize(ctx context.Context, state *types.PipelineState) (types.Stage, error) {
	meta, err := e.generator.Meta(ctx, state.Topic, state.Draft)
	if err != nil {
		return "", err
	}
	state.Meta = meta
	fmt.Fprintf(e.w, "  meta description %d chars, %d tags\n",
		len(meta.MetaDescription), len(meta.Tags))
	return types.StagePublish, nil
}

// publishStage delivers the post. An empty next stage ends the run Done;
// any error leaves the state at the publish stage for manual retry. A
// state that already carries a platform post id updates that post in
// place instead of creating a second one.
func (e *Executor) publishStage(ctx context.Context, state *types.PipelineState) (types.Stage, error) {
	var result types.PublishResult
	var err error
	if id := platformPostID(state); id != "" {
		result, err = e.publisher.Update(ctx, id, e.buildPost(state))
	} else {
		result, err = e.publisher.Publish(ctx, e.buildPost(state))
	}
	if err != nil {
		return "", err
	}
	state.Publish = &result
	fmt.Fprintf(e.w, "  published to %s: %s\n", e.publisher.Name(), result.PostID)
	return "", nil
}

// platformPostID returns the real platform id recorded on the state, if
// any. Dry-run results carry a synthetic id and do not count.
func platformPostID(state *types.PipelineState) string {
	if state.Publish == nil || state.Publish.PostID == "dry-run" {
		return ""
	}
	return state.Publish.PostID
}

// buildPost assembles the platform post from the run state.
func (e *Executor) buildPost(state *types.PipelineState) publish.Post {
	return publish.Post{
		Title:           state.Topic.Title,
		Slug:            state.Meta.Slug,
		Body:            state.Draft.Body,
		MetaDescription: state.Meta.MetaDescription,
		Tags:            state.Meta.Tags,
		Visibility:      e.visibility,
	}
}
