package engine

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/abhisek/wordiz/internal/analysis"
	"github.com/abhisek/wordiz/internal/generation"
	"github.com/abhisek/wordiz/internal/progress"
	"github.com/abhisek/wordiz/internal/quiz"
)

func testQuestions() []quiz.Question {
	return []quiz.Question{
		{
			ID: "q1", Type: quiz.TypeChoiceZhToEn, Word: "cat", Prompt: "猫",
			Choices:         []quiz.Choice{{ID: "a", Text: "cat"}, {ID: "b", Text: "dog"}, {ID: "c", Text: "cow"}, {ID: "d", Text: "hen"}},
			CorrectChoiceID: "a",
		},
		{
			ID: "q2", Type: quiz.TypeChoiceEnToZh, Word: "cat", Prompt: "cat",
			Choices:         []quiz.Choice{{ID: "a", Text: "狗"}, {ID: "b", Text: "猫"}, {ID: "c", Text: "牛"}, {ID: "d", Text: "鸡"}},
			CorrectChoiceID: "b",
		},
		{
			ID: "q3", Type: quiz.TypeClozeFill, Word: "keep up", Prompt: "跟上",
			Sentence: "Slow down, I can't keep up with you.", CorrectAnswer: "keep up",
		},
	}
}

// stubSource is a mutable queue for readiness-gating tests.
type stubSource struct {
	mu    sync.Mutex
	queue []quiz.Question
	ready bool
}

func (s *stubSource) Queue() []quiz.Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]quiz.Question(nil), s.queue...)
}

func (s *stubSource) AllReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

func (s *stubSource) set(queue []quiz.Question, ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = queue
	s.ready = ready
}

type stubAnalyzer struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (a *stubAnalyzer) Analyze(ctx context.Context, in analysis.Input) (quiz.Analysis, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.err != nil {
		return quiz.Analysis{}, a.err
	}
	return quiz.Analysis{Report: "solid run"}, nil
}

func (a *stubAnalyzer) setErr(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.err = err
}

// memStore implements progress.Store in memory for save-path tests.
type memStore struct {
	mu       sync.Mutex
	answers  []quiz.AnswerRecord
	index    int
	analysis *quiz.Analysis
	failSave bool
	failAna  bool
}

func (m *memStore) CreateInProgress(ctx context.Context, d quiz.Difficulty, words []string, set quiz.QuestionSet, details json.RawMessage) (progress.Created, error) {
	return progress.Created{ID: "mem"}, nil
}

func (m *memStore) SaveAnswer(ctx context.Context, id string, rec quiz.AnswerRecord, newIndex int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave {
		return errors.New("disk full")
	}
	m.answers = append(m.answers, rec)
	m.index = newIndex
	return nil
}

func (m *memStore) ListInProgress(ctx context.Context) ([]progress.Summary, error) { return nil, nil }

func (m *memStore) GetForResume(ctx context.Context, id string) (*progress.SessionSnapshot, error) {
	return nil, progress.ErrNotFound
}

func (m *memStore) Delete(ctx context.Context, id string) (bool, error) { return false, nil }

func (m *memStore) UpdateQuestionSet(ctx context.Context, id string, set quiz.QuestionSet) error {
	return nil
}

func (m *memStore) SaveAnalysis(ctx context.Context, id string, a quiz.Analysis) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAna {
		return errors.New("backend down")
	}
	m.analysis = &a
	return nil
}

func (m *memStore) savedAnswers() []quiz.AnswerRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]quiz.AnswerRecord(nil), m.answers...)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestEngine_RejectsMalformedSubmissions(t *testing.T) {
	src := &stubSource{queue: testQuestions(), ready: true}
	sink := &listSink{}
	e := New(Params{Source: src, Sink: sink, Analyzer: &stubAnalyzer{}})

	var verr *ValidationError

	// Choice question with no selection.
	if err := e.SubmitAnswer(context.Background(), Submission{}); !errors.As(err, &verr) {
		t.Errorf("empty choice submission: got %v, want ValidationError", err)
	}
	// Choice question with an option that does not exist.
	if err := e.SubmitAnswer(context.Background(), Submission{ChoiceID: "z"}); !errors.As(err, &verr) {
		t.Errorf("unknown option: got %v, want ValidationError", err)
	}

	if len(sink.Answers()) != 0 {
		t.Error("rejected submissions were recorded")
	}
	if e.Index() != 0 || e.State() != StateAnswering {
		t.Errorf("rejections moved the engine: index=%d state=%s", e.Index(), e.State())
	}
}

func TestEngine_RejectsEmptyClozeInput(t *testing.T) {
	src := &stubSource{queue: testQuestions()[2:], ready: true}
	e := New(Params{Source: src, Sink: &listSink{}, Analyzer: &stubAnalyzer{}})

	var verr *ValidationError
	if err := e.SubmitAnswer(context.Background(), Submission{Input: "   "}); !errors.As(err, &verr) {
		t.Fatalf("blank cloze input: got %v, want ValidationError", err)
	}
}

func TestEngine_CorrectnessComputedAtRecordTime(t *testing.T) {
	src := &stubSource{queue: testQuestions(), ready: true}
	sink := &listSink{}
	e := New(Params{Source: src, Sink: sink, Analyzer: &stubAnalyzer{}})

	if err := e.SubmitAnswer(context.Background(), Submission{ChoiceID: "b"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := e.SubmitAnswer(context.Background(), Submission{ChoiceID: "b"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Case and extra whitespace tolerated by the matcher.
	if err := e.SubmitAnswer(context.Background(), Submission{Input: "KEEP  UP"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	recs := sink.Answers()
	if len(recs) != 3 {
		t.Fatalf("recorded %d answers, want 3", len(recs))
	}
	if recs[0].Correct {
		t.Error("wrong choice scored correct")
	}
	if !recs[1].Correct || !recs[2].Correct {
		t.Errorf("correct answers scored wrong: %+v", recs[1:])
	}

	res, ok := e.Result()
	if !ok {
		t.Fatal("engine not done after answering the full queue")
	}
	if res.Score != 67 {
		t.Errorf("score = %d, want 67", res.Score)
	}
}

func TestEngine_ReadinessGating(t *testing.T) {
	qs := testQuestions()
	src := &stubSource{queue: qs[:1], ready: false}
	sink := &listSink{}
	e := New(Params{Source: src, Sink: sink, Analyzer: &stubAnalyzer{}})

	if err := e.SubmitAnswer(context.Background(), Submission{ChoiceID: "a"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.State() != StatePendingAdvance {
		t.Fatalf("state = %s, want pending_advance", e.State())
	}
	if _, ok := e.Current(); ok {
		t.Error("pending engine exposes a current question")
	}

	// An update that changes nothing keeps the suspension.
	if err := e.OnTrackerUpdate(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.State() != StatePendingAdvance {
		t.Fatalf("no-op update resumed the engine")
	}

	// Queue growth resumes at the next question.
	src.set(qs[:2], false)
	if err := e.OnTrackerUpdate(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.State() != StateAnswering || e.Index() != 1 {
		t.Fatalf("state=%s index=%d after queue growth, want answering/1", e.State(), e.Index())
	}
	cur, ok := e.Current()
	if !ok || cur.ID != "q2" {
		t.Fatalf("current = %+v, want q2", cur)
	}

	// Last question with everything ready finalizes straight through.
	src.set(qs[:2], true)
	if err := e.SubmitAnswer(context.Background(), Submission{ChoiceID: "b"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res, ok := e.Result()
	if !ok {
		t.Fatal("engine not done")
	}
	if res.Score != 100 {
		t.Errorf("score = %d, want 100", res.Score)
	}
}

func TestEngine_PendingAdvanceFinalizesWhenAllReady(t *testing.T) {
	qs := testQuestions()
	src := &stubSource{queue: qs[:1], ready: false}
	e := New(Params{Source: src, Sink: &listSink{}, Analyzer: &stubAnalyzer{}})

	if err := e.SubmitAnswer(context.Background(), Submission{ChoiceID: "a"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The session turns out to be complete with no more questions.
	src.set(qs[:1], true)
	if err := e.OnTrackerUpdate(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.State() != StateDone {
		t.Fatalf("state = %s, want done", e.State())
	}
}

func TestEngine_PersistFailureWarnsButAdvances(t *testing.T) {
	store := &memStore{failSave: true}
	src := &stubSource{queue: testQuestions(), ready: true}
	e := New(Params{Source: src, Sink: &listSink{}, Store: store, Analyzer: &stubAnalyzer{}, SessionID: "mem"})
	defer e.Close()

	if err := e.SubmitAnswer(context.Background(), Submission{ChoiceID: "a"}); err != nil {
		t.Fatalf("save failure must not block submission: %v", err)
	}
	if e.Index() != 1 || e.State() != StateAnswering {
		t.Fatalf("progression rolled back: index=%d state=%s", e.Index(), e.State())
	}
	waitFor(t, "persistence warning", func() bool { return e.Warning() != "" })
}

func TestEngine_FinalizationFailureIsNonDestructive(t *testing.T) {
	store := &memStore{}
	ana := &stubAnalyzer{err: errors.New("model unavailable")}
	src := &stubSource{queue: testQuestions()[:1], ready: true}
	sink := &listSink{}
	e := New(Params{Source: src, Sink: sink, Store: store, Analyzer: ana, SessionID: "mem"})
	defer e.Close()

	err := e.SubmitAnswer(context.Background(), Submission{ChoiceID: "a"})
	var ferr *FinalizationError
	if !errors.As(err, &ferr) {
		t.Fatalf("got %v, want FinalizationError", err)
	}
	if e.State() != StateFinalizing {
		t.Fatalf("state = %s, want finalizing", e.State())
	}
	if len(store.savedAnswers()) != 0 {
		t.Error("failed finalization wrote a partial snapshot")
	}
	if e.FinalizeError() == nil {
		t.Error("finalize error not surfaced")
	}

	ana.setErr(nil)
	if err := e.RetryFinalize(context.Background()); err != nil {
		t.Fatalf("retry finalize: %v", err)
	}
	if e.State() != StateDone {
		t.Fatalf("state = %s, want done", e.State())
	}
	if got := len(store.savedAnswers()); got != 1 {
		t.Errorf("saved answers = %d, want exactly 1 (no duplicates)", got)
	}
	if store.analysis == nil {
		t.Error("analysis not persisted")
	}
}

func TestEngine_RetryFinalizeSkipsDuplicateFinalSave(t *testing.T) {
	store := &memStore{failAna: true}
	src := &stubSource{queue: testQuestions()[:1], ready: true}
	e := New(Params{Source: src, Sink: &listSink{}, Store: store, Analyzer: &stubAnalyzer{}, SessionID: "mem"})
	defer e.Close()

	// Analysis succeeds but persisting it fails, after the final answer
	// save already landed.
	if err := e.SubmitAnswer(context.Background(), Submission{ChoiceID: "a"}); err == nil {
		t.Fatal("expected finalization error from analysis save")
	}
	if got := len(store.savedAnswers()); got != 1 {
		t.Fatalf("saved answers = %d, want 1", got)
	}

	store.mu.Lock()
	store.failAna = false
	store.mu.Unlock()
	if err := e.RetryFinalize(context.Background()); err != nil {
		t.Fatalf("retry finalize: %v", err)
	}
	if got := len(store.savedAnswers()); got != 1 {
		t.Errorf("saved answers after retry = %d, want still 1", got)
	}
}

func TestEngine_WakeSignalsTrackerUpdates(t *testing.T) {
	qs := testQuestions()
	src := &stubSource{queue: qs[:1], ready: false}
	e := New(Params{Source: src, Sink: &listSink{}, Analyzer: &stubAnalyzer{}})

	if err := e.SubmitAnswer(context.Background(), Submission{ChoiceID: "a"}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if e.State() != StatePendingAdvance {
		t.Fatalf("state = %s, want pending_advance", e.State())
	}

	src.set(qs[:2], false)
	if err := e.OnTrackerUpdate(context.Background()); err != nil {
		t.Fatalf("tracker update: %v", err)
	}

	select {
	case <-e.Wake():
	case <-time.After(time.Second):
		t.Fatal("no wake signal after tracker update")
	}
	if e.State() != StateAnswering {
		t.Fatalf("state = %s, want answering", e.State())
	}

	// An update that changes no state still wakes waiters: the queue
	// may have grown past the cursor.
	if err := e.OnTrackerUpdate(context.Background()); err != nil {
		t.Fatalf("tracker update: %v", err)
	}
	select {
	case <-e.Wake():
	case <-time.After(time.Second):
		t.Fatal("no wake signal for queue-only update")
	}
}

func TestEngine_HappyPathEndToEnd(t *testing.T) {
	store, err := progress.OpenLocal(filepath.Join(t.TempDir(), "wordiz.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	qs := testQuestions()
	tr := generation.NewTracker()
	tr.Apply(&quiz.GenerationSession{
		ID: "gen-1",
		Meta: quiz.SessionMeta{
			TotalQuestions: 3,
			Words:          []string{"cat", "keep up"},
			Difficulty:     quiz.DifficultyBeginner,
		},
		Sections: map[quiz.QuestionType]quiz.SectionState{
			quiz.TypeChoiceZhToEn: {Status: quiz.SectionReady, Questions: qs[:1]},
			quiz.TypeChoiceEnToZh: {Status: quiz.SectionReady, Questions: qs[1:2]},
			quiz.TypeClozeFill:    {Status: quiz.SectionReady, Questions: qs[2:]},
		},
	})

	created, err := store.CreateInProgress(context.Background(), quiz.DifficultyBeginner, []string{"cat", "keep up"}, tr.QuestionSet(), nil)
	if err != nil {
		t.Fatalf("create snapshot: %v", err)
	}

	e := New(Params{
		Source:     tr,
		Sink:       tr,
		Store:      store,
		Analyzer:   &stubAnalyzer{},
		SessionID:  created.ID,
		Words:      []string{"cat", "keep up"},
		Difficulty: quiz.DifficultyBeginner,
	})
	defer e.Close()

	for _, sub := range []Submission{{ChoiceID: "a"}, {ChoiceID: "b"}, {Input: "keep up"}} {
		if err := e.SubmitAnswer(context.Background(), sub); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}

	res, ok := e.Result()
	if !ok {
		t.Fatal("engine not done")
	}
	if res.Score != 100 {
		t.Errorf("score = %d, want 100", res.Score)
	}
	if res.Analysis.Report == "" {
		t.Error("empty analysis report")
	}

	snap, err := store.GetForResume(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if snap.Status != progress.StatusCompleted {
		t.Errorf("status = %s, want completed", snap.Status)
	}
	if snap.Score != 100 {
		t.Errorf("persisted score = %d, want 100", snap.Score)
	}
	if len(snap.Answers) != 3 {
		t.Errorf("persisted answers = %d, want 3", len(snap.Answers))
	}
	if snap.Analysis.Report == "" {
		t.Error("analysis not persisted")
	}
}
