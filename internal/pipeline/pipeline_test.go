// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/pdiddy/draft-engine/internal/publish"
	"github.com/pdiddy/draft-engine/pkg/types"
)

// --- fakes ---

// fakeRetriever returns scripted contexts in call order and records the
// queries it receives. Calls past the script return the last entry.
type fakeRetriever struct {
	contexts []types.RetrievalContext
	err      error
	queries  []string
}

func (f *fakeRetriever) Retrieve(_ context.Context, query string) (types.RetrievalContext, error) {
	i := len(f.queries)
	f.queries = append(f.queries, query)
	if f.err != nil {
		return types.RetrievalContext{}, f.err
	}
	if i >= len(f.contexts) {
		i = len(f.contexts) - 1
	}
	if i < 0 {
		return types.RetrievalContext{}, nil
	}
	return f.contexts[i], nil
}

// fakeGenerator returns fixed artifacts and records how it was called.
// Optional hooks run inside each call, letting tests cancel the run
// context mid-stage.
type fakeGenerator struct {
	outline     types.Outline
	outlineErr  error
	draftErr    error
	metaErr     error
	outlineHook func()

	draftCalls int
	previous   []*types.CritiqueResult
}

func (f *fakeGenerator) Outline(context.Context, types.TopicSpec, types.RetrievalContext) (types.Outline, error) {
	if f.outlineHook != nil {
		f.outlineHook()
	}
	return f.outline, f.outlineErr
}

func (f *fakeGenerator) Draft(_ context.Context, _ types.TopicSpec, _ types.Outline, _ types.RetrievalContext, previous *types.CritiqueResult) (types.DraftContent, error) {
	f.draftCalls++
	f.previous = append(f.previous, previous)
	if f.draftErr != nil {
		return types.DraftContent{}, f.draftErr
	}
	return types.DraftContent{Body: "# Title\n\n## Section\n\ndraft attempt [S1]."}, nil
}

func (f *fakeGenerator) Meta(context.Context, types.TopicSpec, types.DraftContent) (types.PostMeta, error) {
	if f.metaErr != nil {
		return types.PostMeta{}, f.metaErr
	}
	return types.PostMeta{MetaDescription: "desc", Tags: []string{"go"}, Slug: "title"}, nil
}

// scriptedCritic returns scripted scores in call order; the executor
// stamps decision and iteration.
type scriptedCritic struct {
	scores []float64
	calls  int
}

func (s *scriptedCritic) Review(types.DraftContent, types.Outline, types.RetrievalContext) types.CritiqueResult {
	i := s.calls
	s.calls++
	if i >= len(s.scores) {
		i = len(s.scores) - 1
	}
	return types.CritiqueResult{Score: s.scores[i], CreatedAt: time.Now().UTC()}
}

// stubPublisher records publish and update calls and fails on demand.
type stubPublisher struct {
	err     error
	calls   int
	updates int
	lastID  string
	last    publish.Post
}

func (s *stubPublisher) Name() string { return "stub" }

func (s *stubPublisher) Publish(_ context.Context, post publish.Post) (types.PublishResult, error) {
	s.calls++
	s.last = post
	if s.err != nil {
		return types.PublishResult{}, s.err
	}
	return types.PublishResult{
		PostID:      "1",
		URL:         "https://blog.example.com/1",
		Visibility:  post.Visibility,
		PublishedAt: time.Now().UTC(),
	}, nil
}

func (s *stubPublisher) Update(_ context.Context, postID string, post publish.Post) (types.PublishResult, error) {
	s.updates++
	s.lastID = postID
	s.last = post
	if s.err != nil {
		return types.PublishResult{}, s.err
	}
	return types.PublishResult{
		PostID:      postID,
		URL:         "https://blog.example.com/" + postID,
		Visibility:  post.Visibility,
		PublishedAt: time.Now().UTC(),
	}, nil
}

// memSaver records every persisted state.
type memSaver struct {
	saved []*types.PipelineState
}

func (m *memSaver) Save(state *types.PipelineState) (string, error) {
	copied := *state
	m.saved = append(m.saved, &copied)
	return "mem", nil
}

// --- fixture assembly ---

func groundedContext() types.RetrievalContext {
	return types.RetrievalContext{
		Query: "q",
		Chunks: []types.ScoredChunk{
			{Chunk: types.Chunk{ID: 1, DocumentID: 1}, Label: "S1", Score: 0.9, DocumentPath: "a.md"},
			{Chunk: types.Chunk{ID: 2, DocumentID: 2}, Label: "S2", Score: 0.85, DocumentPath: "b.md"},
		},
		Confidence: 0.9,
	}
}

func testTopic() types.TopicSpec {
	return types.TopicSpec{
		Title:       "Taming Connection Pools",
		Description: "Why services leak connections",
		Keywords:    []string{"go", "pools"},
	}
}

func testConfig(threshold float64, maxIterations int) types.PipelineConfig {
	cfg := types.DefaultConfig()
	cfg.Critique.ApprovalThreshold = threshold
	cfg.Critique.MaxIterations = maxIterations
	return cfg
}

type fixture struct {
	retriever *fakeRetriever
	generator *fakeGenerator
	critic    *scriptedCritic
	publisher *stubPublisher
	saver     *memSaver
	executor  *Executor
}

func newFixture(t *testing.T, cfg types.PipelineConfig, scores []float64) *fixture {
	t.Helper()
	f := &fixture{
		retriever: &fakeRetriever{contexts: []types.RetrievalContext{groundedContext()}},
		generator: &fakeGenerator{outline: types.Outline{Sections: []types.OutlineSection{
			{Heading: "Section", EstimatedWords: 200, SourceLabels: []string{"S1"}},
		}}},
		critic:    &scriptedCritic{scores: scores},
		publisher: &stubPublisher{},
		saver:     &memSaver{},
	}
	f.executor = New(f.retriever, f.generator, f.critic, f.publisher, f.saver, cfg, io.Discard)
	return f
}

// --- revision loop ---

func TestRunApprovesAfterRevisions(t *testing.T) {
	f := newFixture(t, testConfig(0.8, 5), []float64{0.5, 0.65, 0.85})

	state, err := f.executor.Run(context.Background(), testTopic())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if state.Status != types.StatusDone {
		t.Fatalf("Status = %s, want done", state.Status)
	}
	if state.Iterations != 2 {
		t.Errorf("Iterations = %d, want 2 loop traversals", state.Iterations)
	}
	if f.generator.draftCalls != 3 {
		t.Errorf("draft calls = %d, want 3", f.generator.draftCalls)
	}
	if len(state.Critiques) != 3 {
		t.Fatalf("got %d critiques, want 3", len(state.Critiques))
	}

	wantDecisions := []types.Decision{types.DecisionRevise, types.DecisionRevise, types.DecisionApprove}
	for i, cr := range state.Critiques {
		if cr.Decision != wantDecisions[i] {
			t.Errorf("critique %d decision = %s, want %s", i, cr.Decision, wantDecisions[i])
		}
		if cr.Iteration != i {
			t.Errorf("critique %d iteration = %d, want %d", i, cr.Iteration, i)
		}
	}

	// The first write has no feedback; revision passes carry the prior
	// critique.
	if f.generator.previous[0] != nil {
		t.Error("first draft should carry no critique feedback")
	}
	for i, prev := range f.generator.previous[1:] {
		if prev == nil {
			t.Errorf("revision %d should carry critique feedback", i+1)
		}
	}

	if f.publisher.calls != 1 {
		t.Errorf("publisher called %d times, want 1", f.publisher.calls)
	}
}

func TestRunEscalatesWhenBudgetExhausted(t *testing.T) {
	f := newFixture(t, testConfig(0.9, 2), []float64{0.5, 0.6, 0.7})

	state, err := f.executor.Run(context.Background(), testTopic())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if state.Status != types.StatusEscalated {
		t.Fatalf("Status = %s, want escalated", state.Status)
	}
	if state.Iterations != 2 {
		t.Errorf("Iterations = %d, want exactly 2 loop traversals", state.Iterations)
	}
	if len(state.Critiques) != 3 {
		t.Fatalf("got %d critiques, want max+1 = 3", len(state.Critiques))
	}
	if last := state.LastCritique(); last.Score != 0.7 {
		t.Errorf("last critique score = %g, want the final attempt's 0.7", last.Score)
	}
	if state.ErrorClass != types.ErrClassQualityExhausted {
		t.Errorf("ErrorClass = %q, want quality_exhausted", state.ErrorClass)
	}
	if f.publisher.calls != 0 {
		t.Errorf("publisher called %d times, want 0", f.publisher.calls)
	}

	// The escalated state is persisted with its full critique history.
	if len(f.saver.saved) != 1 {
		t.Fatalf("saved %d states, want 1", len(f.saver.saved))
	}
	if saved := f.saver.saved[0]; saved.LastCritique().Score != 0.7 {
		t.Errorf("persisted last score = %g, want 0.7", saved.LastCritique().Score)
	}
}

func TestRunLoopIsBounded(t *testing.T) {
	maxIterations := 3
	f := newFixture(t, testConfig(1.0, maxIterations), []float64{0.1})

	state, err := f.executor.Run(context.Background(), testTopic())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if state.Status != types.StatusEscalated {
		t.Fatalf("Status = %s, want escalated", state.Status)
	}
	if f.generator.draftCalls != maxIterations+1 {
		t.Errorf("draft calls = %d, want max+1 = %d", f.generator.draftCalls, maxIterations+1)
	}
	if state.Iterations != maxIterations {
		t.Errorf("Iterations = %d, want %d", state.Iterations, maxIterations)
	}
}

func TestRunApprovalOnFinalIterationWarns(t *testing.T) {
	f := newFixture(t, testConfig(0.8, 1), []float64{0.5, 0.9})

	state, err := f.executor.Run(context.Background(), testTopic())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if state.Status != types.StatusDone {
		t.Fatalf("Status = %s, want done", state.Status)
	}
	found := false
	for _, warning := range state.Warnings {
		if strings.Contains(warning, "final allowed iteration") {
			found = true
		}
	}
	if !found {
		t.Errorf("Warnings = %v, want final-iteration warning", state.Warnings)
	}
}

// --- research ---

func TestRunFailsWhenRetrievalStaysEmpty(t *testing.T) {
	f := newFixture(t, testConfig(0.8, 2), []float64{0.9})
	f.retriever.contexts = []types.RetrievalContext{{}, {}, {}}

	state, err := f.executor.Run(context.Background(), testTopic())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if state.Status != types.StatusFailed {
		t.Fatalf("Status = %s, want failed", state.Status)
	}
	if state.Stage != types.StageResearch {
		t.Errorf("Stage = %s, want research", state.Stage)
	}
	if state.ErrorClass != types.ErrClassFatal {
		t.Errorf("ErrorClass = %q, want fatal", state.ErrorClass)
	}
	if len(f.retriever.queries) != 3 {
		t.Errorf("retriever called %d times, want the full 3-query ladder", len(f.retriever.queries))
	}
}

func TestRunBroadensQueryOnEmptyRetrieval(t *testing.T) {
	f := newFixture(t, testConfig(0.8, 2), []float64{0.9})
	f.retriever.contexts = []types.RetrievalContext{{}, groundedContext()}

	state, err := f.executor.Run(context.Background(), testTopic())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if state.Status != types.StatusDone {
		t.Fatalf("Status = %s, want done", state.Status)
	}
	if len(f.retriever.queries) != 2 {
		t.Fatalf("retriever called %d times, want 2", len(f.retriever.queries))
	}
	if f.retriever.queries[1] != "Taming Connection Pools go pools" {
		t.Errorf("broadened query = %q", f.retriever.queries[1])
	}
}

func TestRunLowConfidenceRetrievalWarns(t *testing.T) {
	f := newFixture(t, testConfig(0.8, 2), []float64{0.9})
	low := groundedContext()
	low.Confidence = 0.3
	low.LowConfidence = true
	f.retriever.contexts = []types.RetrievalContext{low}

	state, err := f.executor.Run(context.Background(), testTopic())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if state.Status != types.StatusDone {
		t.Fatalf("Status = %s, want done (low confidence is a soft failure)", state.Status)
	}
	if len(state.Warnings) == 0 {
		t.Error("expected a low-confidence warning on the state")
	}
}

func TestRunRetrieverErrorFailsRun(t *testing.T) {
	f := newFixture(t, testConfig(0.8, 2), []float64{0.9})
	f.retriever.err = &types.FatalError{Op: "embedding", Err: errors.New("model gone")}

	state, err := f.executor.Run(context.Background(), testTopic())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if state.Status != types.StatusFailed {
		t.Fatalf("Status = %s, want failed", state.Status)
	}
}

// --- publish ---

func TestRunPublishFailureRetainsState(t *testing.T) {
	f := newFixture(t, testConfig(0.8, 2), []float64{0.9})
	f.publisher.err = &types.TransientError{Op: "publish", Err: errors.New("platform down")}

	state, err := f.executor.Run(context.Background(), testTopic())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if state.Status != types.StatusFailed {
		t.Fatalf("Status = %s, want failed", state.Status)
	}
	if state.Stage != types.StagePublish {
		t.Errorf("Stage = %s, want publish (retained for manual retry)", state.Stage)
	}
	if state.Draft.IsEmpty() {
		t.Error("draft should be retained for manual retry")
	}
	if state.Meta.Slug == "" {
		t.Error("meta should be retained for manual retry")
	}
	if len(f.saver.saved) != 1 {
		t.Errorf("saved %d states, want 1", len(f.saver.saved))
	}
}

func TestRetryRepublishesFailedRun(t *testing.T) {
	f := newFixture(t, testConfig(0.8, 2), []float64{0.9})
	f.publisher.err = &types.TransientError{Op: "publish", Err: errors.New("platform down")}

	state, err := f.executor.Run(context.Background(), testTopic())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if state.Status != types.StatusFailed {
		t.Fatalf("Status = %s, want failed", state.Status)
	}

	f.publisher.err = nil
	if err := f.executor.Retry(context.Background(), state); err != nil {
		t.Fatalf("Retry: %v", err)
	}

	if state.Status != types.StatusDone {
		t.Errorf("Status after retry = %s, want done", state.Status)
	}
	if state.Publish == nil {
		t.Error("retry should record the publish result")
	}
	if state.ErrorClass != "" {
		t.Errorf("ErrorClass = %q, want cleared", state.ErrorClass)
	}
	if len(f.saver.saved) != 2 {
		t.Errorf("saved %d states, want 2 (original + retry)", len(f.saver.saved))
	}
}

func TestRetryUpdatesPublishedRun(t *testing.T) {
	f := newFixture(t, testConfig(0.8, 2), []float64{0.9})

	state, err := f.executor.Run(context.Background(), testTopic())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if state.Status != types.StatusDone {
		t.Fatalf("Status = %s, want done", state.Status)
	}

	// A second push of a published run must modify the existing post,
	// never create a duplicate.
	if err := f.executor.Retry(context.Background(), state); err != nil {
		t.Fatalf("Retry: %v", err)
	}

	if f.publisher.calls != 1 {
		t.Errorf("publish calls = %d, want 1 (retry must not re-create)", f.publisher.calls)
	}
	if f.publisher.updates != 1 {
		t.Errorf("update calls = %d, want 1", f.publisher.updates)
	}
	if f.publisher.lastID != "1" {
		t.Errorf("update post id = %q, want 1", f.publisher.lastID)
	}
	if state.Status != types.StatusDone {
		t.Errorf("Status after retry = %s, want done", state.Status)
	}
}

func TestRetryRejectsRunWithoutPlatformPost(t *testing.T) {
	f := newFixture(t, testConfig(0.8, 2), nil)

	// A dry-run result carries a synthetic id; there is nothing on the
	// platform to update.
	state := &types.PipelineState{
		RunID:   "r-dry",
		Status:  types.StatusDone,
		Stage:   types.StagePublish,
		Publish: &types.PublishResult{PostID: "dry-run"},
	}

	if err := f.executor.Retry(context.Background(), state); err == nil {
		t.Fatal("expected error retrying a run with no platform post")
	}
}

// --- cancellation ---

func TestRunCancelledBetweenStages(t *testing.T) {
	f := newFixture(t, testConfig(0.8, 2), []float64{0.9})

	ctx, cancel := context.WithCancel(context.Background())
	f.generator.outlineHook = cancel

	state, err := f.executor.Run(ctx, testTopic())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if state.Status != types.StatusCancelled {
		t.Fatalf("Status = %s, want cancelled (not failed)", state.Status)
	}
	if state.ErrorClass != types.ErrClassCancelled {
		t.Errorf("ErrorClass = %q, want cancelled", state.ErrorClass)
	}

	// The in-progress state made it to durable storage: the outline stage
	// had completed, so its output is in the snapshot.
	if len(f.saver.saved) != 1 {
		t.Fatalf("saved %d states, want 1", len(f.saver.saved))
	}
	if f.saver.saved[0].Outline.IsEmpty() {
		t.Error("persisted state should carry the completed outline")
	}
	if f.generator.draftCalls != 0 {
		t.Errorf("draft calls = %d, want 0 after cancellation", f.generator.draftCalls)
	}
}

// --- input validation ---

func TestRunRejectsEmptyTitle(t *testing.T) {
	f := newFixture(t, testConfig(0.8, 2), []float64{0.9})
	if _, err := f.executor.Run(context.Background(), types.TopicSpec{}); err == nil {
		t.Fatal("expected error for empty topic title")
	}
	if len(f.saver.saved) != 0 {
		t.Errorf("saved %d states, want 0 for rejected input", len(f.saver.saved))
	}
}

// --- query ladder ---

func TestResearchQueries(t *testing.T) {
	topic := testTopic()

	queries := researchQueries(topic, 3)
	want := []string{
		"Taming Connection Pools Why services leak connections go pools",
		"Taming Connection Pools go pools",
		"Taming Connection Pools",
	}
	if len(queries) != len(want) {
		t.Fatalf("got %d queries, want %d", len(queries), len(want))
	}
	for i := range want {
		if queries[i] != want[i] {
			t.Errorf("query %d = %q, want %q", i, queries[i], want[i])
		}
	}
}

func TestResearchQueriesDeduplicates(t *testing.T) {
	topic := types.TopicSpec{Title: "Just a title"}
	queries := researchQueries(topic, 3)
	if len(queries) != 1 {
		t.Errorf("got %d queries, want 1 (ladder collapses without description/keywords)", len(queries))
	}
}

func TestResearchQueriesCapped(t *testing.T) {
	queries := researchQueries(testTopic(), 1)
	if len(queries) != 1 {
		t.Errorf("got %d queries, want 1", len(queries))
	}
}
