// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline drives the content workflow state machine: research,
// outline, write, critique, optimize, publish. The executor owns all
// state sequencing and the critique revision loop budget; stage code
// never decides its own termination.
// Implements: prd003-pipeline (R4, R6);
//
//	docs/ARCHITECTURE § Executor.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/draft-engine/internal/critique"
	"github.com/pdiddy/draft-engine/internal/publish"
	"github.com/pdiddy/draft-engine/pkg/types"
)

// Retriever supplies grounding context for a query. The production
// implementation reads the vector index through its atomic handle.
type Retriever interface {
	Retrieve(ctx context.Context, query string) (types.RetrievalContext, error)
}

// ContentGenerator produces outlines, drafts, and publication metadata.
// Satisfied by generate.Generator; tests script it.
type ContentGenerator interface {
	Outline(ctx context.Context, topic types.TopicSpec, rctx types.RetrievalContext) (types.Outline, error)
	Draft(ctx context.Context, topic types.TopicSpec, outline types.Outline, rctx types.RetrievalContext, previous *types.CritiqueResult) (types.DraftContent, error)
	Meta(ctx context.Context, topic types.TopicSpec, draft types.DraftContent) (types.PostMeta, error)
}

// Saver persists terminal run state. Satisfied by runstore.Store.
type Saver interface {
	Save(state *types.PipelineState) (string, error)
}

// Executor runs one topic through the workflow graph. It is the single
// writer of PipelineState: each stage receives the state, returns its
// contribution, and the executor applies it and picks the next stage
// from the transition table.
type Executor struct {
	retriever  Retriever
	generator  ContentGenerator
	critic     critique.Critic
	publisher  publish.Publisher
	saver      Saver
	retrieval  types.RetrievalConfig
	gate       types.CritiqueConfig
	visibility types.Visibility
	w          io.Writer
}

// New assembles an executor. Progress lines stream to w, one per stage
// transition.
func New(
	retriever Retriever,
	generator ContentGenerator,
	critic critique.Critic,
	publisher publish.Publisher,
	saver Saver,
	cfg types.PipelineConfig,
	w io.Writer,
) *Executor {
	gate := cfg.Critique
	if gate.MaxIterations < 1 {
		gate.MaxIterations = 1
	}
	visibility := cfg.Publish.Visibility
	if visibility == "" {
		visibility = types.VisibilityDraft
	}
	return &Executor{
		retriever:  retriever,
		generator:  generator,
		critic:     critic,
		publisher:  publisher,
		saver:      saver,
		retrieval:  cfg.Retrieval,
		gate:       gate,
		visibility: visibility,
		w:          w,
	}
}

// Run executes the full state machine for one topic. The returned state
// always carries a terminal status; it has been persisted to the run
// store whatever the outcome. A non-nil error reports only input
// validation or persistence failures, not run outcomes: those live in
// the state's Status and ErrorClass.
func (e *Executor) Run(ctx context.Context, topic types.TopicSpec) (*types.PipelineState, error) {
	if err := topic.Validate(); err != nil {
		return nil, err
	}

	state := &types.PipelineState{
		RunID:     uuid.NewString(),
		Topic:     topic,
		Stage:     types.StageResearch,
		Status:    types.StatusRunning,
		StartedAt: time.Now().UTC(),
	}
	fmt.Fprintf(e.w, "run %s: %q\n", state.RunID, topic.Title)

	for state.Status == types.StatusRunning {
		// Cancellation is honored between stages: the current state is
		// persisted and the run ends Cancelled, never mid-stage.
		if ctx.Err() != nil {
			e.finish(state, ctx.Err())
			break
		}

		fmt.Fprintf(e.w, "stage %s\n", state.Stage)
		next, err := e.execute(ctx, state)
		if err != nil {
			e.finish(state, err)
			break
		}
		if next == "" {
			state.Status = types.StatusDone
			break
		}
		state.Stage = next
	}

	state.FinishedAt = time.Now().UTC()
	fmt.Fprintf(e.w, "run %s finished: %s\n", state.RunID, state.Status)

	if _, err := e.saver.Save(state); err != nil {
		return state, fmt.Errorf("persisting run state: %w", err)
	}
	return state, nil
}

// execute dispatches the current stage. An empty next stage means the
// run completed.
func (e *Executor) execute(ctx context.Context, state *types.PipelineState) (types.Stage, error) {
	switch state.Stage {
	case types.StageResearch:
		return e.research(ctx, state)
	case types.StageOutline:
		return e.outline(ctx, state)
	case types.StageWrite:
		return e.write(ctx, state)
	case types.StageCritique:
		return e.critiqueStage(state)
	case types.StageOptimize:
		return e.optimize(ctx, state)
	case types.StagePublish:
		return e.publishStage(ctx, state)
	}
	return "", &types.FatalError{Op: "executor", Err: fmt.Errorf("unknown stage %q", state.Stage)}
}

// finish stamps the terminal status and error classification for a run
// that did not reach Done.
func (e *Executor) finish(state *types.PipelineState, err error) {
	state.ErrorClass = types.ClassifyError(err)
	state.ErrorMessage = err.Error()

	switch state.ErrorClass {
	case types.ErrClassCancelled:
		state.Status = types.StatusCancelled
	case types.ErrClassQualityExhausted:
		state.Status = types.StatusEscalated
	default:
		state.Status = types.StatusFailed
	}
}

// Retry re-runs the publish stage of a previously persisted run: a run
// that Failed at publish, an Escalated run whose draft has been
// approved by a human, or a Done run with a platform post id being
// pushed again (edited content or promoted visibility updates the
// existing post). The state is saved again with its new outcome.
func (e *Executor) Retry(ctx context.Context, state *types.PipelineState) error {
	retryable := (state.Status == types.StatusFailed && state.Stage == types.StagePublish) ||
		state.Status == types.StatusEscalated ||
		(state.Status == types.StatusDone && platformPostID(state) != "")
	if !retryable {
		return fmt.Errorf("run %s is %s at stage %s, not retryable", state.RunID, state.Status, state.Stage)
	}
	if state.Draft.IsEmpty() {
		return fmt.Errorf("run %s has no draft to publish", state.RunID)
	}

	state.Status = types.StatusRunning
	state.Stage = types.StagePublish
	state.ErrorClass = ""
	state.ErrorMessage = ""

	fmt.Fprintf(e.w, "retrying publish for run %s\n", state.RunID)
	if _, err := e.publishStage(ctx, state); err != nil {
		e.finish(state, err)
	} else {
		state.Status = types.StatusDone
	}
	state.FinishedAt = time.Now().UTC()

	if _, err := e.saver.Save(state); err != nil {
		return fmt.Errorf("persisting run state: %w", err)
	}
	fmt.Fprintf(e.w, "run %s finished: %s\n", state.RunID, state.Status)
	return nil
}
