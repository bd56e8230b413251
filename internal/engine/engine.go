// Package engine drives a practice run question by question: validate
// and record answers, advance through the queue, suspend while later
// sections are still generating, and finalize into a scored result.
package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/abhisek/wordiz/internal/analysis"
	"github.com/abhisek/wordiz/internal/evaluate"
	"github.com/abhisek/wordiz/internal/progress"
	"github.com/abhisek/wordiz/internal/quiz"
)

// State is the engine's progression state.
type State int

const (
	// StateAnswering means the question at Index awaits an answer.
	StateAnswering State = iota

	// StatePendingAdvance means the last queued question was answered but
	// later sections are still generating. The engine resumes on its own
	// when the tracker grows the queue or reports all sections ready.
	StatePendingAdvance

	// StateFinalizing means every question was answered and the closing
	// analysis or save has not succeeded yet.
	StateFinalizing

	// StateDone means the result is available.
	StateDone
)

func (s State) String() string {
	switch s {
	case StateAnswering:
		return "answering"
	case StatePendingAdvance:
		return "pending_advance"
	case StateFinalizing:
		return "finalizing"
	default:
		return "done"
	}
}

// ValidationError rejects a submission before it touches any answer
// list or backend.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid answer: " + e.Reason
}

// FinalizationError means analysis or the completing save failed. The
// run stays at its last-answered question; no partial snapshot was
// written. RetryFinalize runs the same step again.
type FinalizationError struct {
	Err error
}

func (e *FinalizationError) Error() string {
	return fmt.Sprintf("could not finish the session: %v", e.Err)
}

func (e *FinalizationError) Unwrap() error { return e.Err }

// Source is the active question queue, main or retry.
type Source interface {
	Queue() []quiz.Question
	AllReady() bool
}

// Sink owns the answer list for the active run.
type Sink interface {
	Record(quiz.AnswerRecord)
	Answers() []quiz.AnswerRecord
}

// Submission is one user answer before validation.
type Submission struct {
	ChoiceID  string
	Input     string
	ElapsedMs int64
}

// Result is the outcome of a finished run.
type Result struct {
	Score    int
	Analysis quiz.Analysis
	Answers  []quiz.AnswerRecord
}

// warningTTL bounds how long a persistence warning stays visible.
const warningTTL = 5 * time.Second

// Params configures an Engine. Store and Analyzer are nil for retry
// rounds: those never persist and synthesize their report locally.
type Params struct {
	Source     Source
	Sink       Sink
	Store      progress.Store
	Analyzer   analysis.Analyzer
	SessionID  string
	Words      []string
	Difficulty quiz.Difficulty
	StartIndex int
}

// Engine is the per-question state machine over one active queue.
type Engine struct {
	source     Source
	sink       Sink
	store      progress.Store
	analyzer   analysis.Analyzer
	sessionID  string
	words      []string
	difficulty quiz.Difficulty

	mu           sync.Mutex
	index        int
	state        State
	result       *Result
	finalizeErr  error
	finalSaved   bool
	warning      string
	warningUntil time.Time
	now          func() time.Time

	saves chan saveReq
	wake  chan struct{}
}

// saveReq is one persistence request. A nil done channel means
// fire-and-forget; failures become warnings instead of errors.
type saveReq struct {
	rec      quiz.AnswerRecord
	newIndex int
	done     chan error
}

// New creates an engine positioned at p.StartIndex.
func New(p Params) *Engine {
	e := &Engine{
		source:     p.Source,
		sink:       p.Sink,
		store:      p.Store,
		analyzer:   p.Analyzer,
		sessionID:  p.SessionID,
		words:      p.Words,
		difficulty: p.Difficulty,
		index:      p.StartIndex,
		state:      StateAnswering,
		now:        time.Now,
		wake:       make(chan struct{}, 1),
	}
	if e.store != nil {
		// One worker serializes all saves so answers reach the store in
		// submission order and the completing save lands last.
		e.saves = make(chan saveReq, 16)
		go e.saveLoop()
	}
	return e
}

// Close stops the persistence worker. Call after the run has ended.
func (e *Engine) Close() {
	if e.saves != nil {
		close(e.saves)
	}
}

func (e *Engine) saveLoop() {
	for req := range e.saves {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := e.store.SaveAnswer(ctx, e.sessionID, req.rec, req.newIndex)
		cancel()
		if req.done != nil {
			req.done <- err
			continue
		}
		if err != nil {
			e.setWarning(fmt.Sprintf("progress not saved: %v", err))
		}
	}
}

// State returns the current progression state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Index returns the current question index.
func (e *Engine) Index() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.index
}

// Current returns the question at the cursor, if the engine is
// answering and the queue reaches that far.
func (e *Engine) Current() (quiz.Question, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateAnswering {
		return quiz.Question{}, false
	}
	queue := e.source.Queue()
	if e.index >= len(queue) {
		return quiz.Question{}, false
	}
	return queue[e.index], true
}

// Queue returns the active question queue.
func (e *Engine) Queue() []quiz.Question {
	return e.source.Queue()
}

// Answers returns the answers recorded so far.
func (e *Engine) Answers() []quiz.AnswerRecord {
	return e.sink.Answers()
}

// Result returns the finished run's result once the engine is done.
func (e *Engine) Result() (*Result, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateDone {
		return nil, false
	}
	return e.result, true
}

// Warning returns the active persistence warning, empty once expired.
func (e *Engine) Warning() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.warning == "" || e.now().After(e.warningUntil) {
		return ""
	}
	return e.warning
}

// Wake signals after every tracker-driven change, so a display loop
// can block on it instead of polling engine state.
func (e *Engine) Wake() <-chan struct{} { return e.wake }

// notify posts one wake signal; pending signals coalesce.
func (e *Engine) notify() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// FinalizeError returns the pending finalization failure, if any.
func (e *Engine) FinalizeError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.finalizeErr
}

// SubmitAnswer validates and records one answer, then advances,
// suspends, or finalizes depending on queue position and readiness.
func (e *Engine) SubmitAnswer(ctx context.Context, sub Submission) error {
	e.mu.Lock()

	if e.state != StateAnswering {
		e.mu.Unlock()
		return &ValidationError{Reason: fmt.Sprintf("engine is %s, not accepting answers", e.state)}
	}
	queue := e.source.Queue()
	if e.index >= len(queue) {
		e.mu.Unlock()
		return &ValidationError{Reason: "no current question"}
	}
	q := queue[e.index]

	rec, verr := buildRecord(q, sub)
	if verr != nil {
		e.mu.Unlock()
		return verr
	}

	e.sink.Record(rec)
	newIndex := e.index + 1

	switch {
	case newIndex < len(queue):
		e.index = newIndex
		e.persistAsync(rec, newIndex)
		e.mu.Unlock()
		return nil

	case !e.source.AllReady():
		// Answered everything generated so far. Hold until the tracker
		// grows the queue or declares the session complete.
		e.state = StatePendingAdvance
		e.persistAsync(rec, newIndex)
		e.mu.Unlock()
		return nil

	default:
		e.state = StateFinalizing
		e.mu.Unlock()
		return e.finalize(ctx, rec, newIndex)
	}
}

// buildRecord validates the submission shape against the question and
// scores it. Correctness is computed here once and never revisited.
func buildRecord(q quiz.Question, sub Submission) (quiz.AnswerRecord, *ValidationError) {
	if q.IsChoice() {
		if sub.ChoiceID == "" {
			return quiz.AnswerRecord{}, &ValidationError{Reason: "choice question requires a selected option"}
		}
		found := false
		for _, c := range q.Choices {
			if c.ID == sub.ChoiceID {
				found = true
				break
			}
		}
		if !found {
			return quiz.AnswerRecord{}, &ValidationError{Reason: fmt.Sprintf("option %q is not on this question", sub.ChoiceID)}
		}
		return quiz.AnswerRecord{
			QuestionID: q.ID,
			ChoiceID:   sub.ChoiceID,
			Correct:    sub.ChoiceID == q.CorrectChoiceID,
			ElapsedMs:  sub.ElapsedMs,
		}, nil
	}

	input := strings.TrimSpace(sub.Input)
	if input == "" {
		return quiz.AnswerRecord{}, &ValidationError{Reason: "answer text is empty"}
	}
	return quiz.AnswerRecord{
		QuestionID: q.ID,
		UserInput:  input,
		Correct:    evaluate.Match(input, q.CorrectAnswer),
		ElapsedMs:  sub.ElapsedMs,
	}, nil
}

// persistAsync queues a non-final answer save without blocking
// progression. A failed save only raises a transient warning.
func (e *Engine) persistAsync(rec quiz.AnswerRecord, newIndex int) {
	if e.saves == nil {
		return
	}
	e.saves <- saveReq{rec: rec, newIndex: newIndex}
}

func (e *Engine) setWarning(msg string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.warning = msg
	e.warningUntil = e.now().Add(warningTTL)
}

// OnTrackerUpdate reacts to a tracker refresh. A pending engine resumes
// when the queue has grown past the cursor, or finalizes when the
// session turned out to be complete.
func (e *Engine) OnTrackerUpdate(ctx context.Context) error {
	// The queue may have grown even when no state changes below; wake
	// waiters either way so they re-read it.
	defer e.notify()

	e.mu.Lock()
	if e.state != StatePendingAdvance {
		e.mu.Unlock()
		return nil
	}

	queue := e.source.Queue()
	newIndex := e.index + 1
	if newIndex < len(queue) {
		e.index = newIndex
		e.state = StateAnswering
		e.mu.Unlock()
		return nil
	}
	if !e.source.AllReady() {
		e.mu.Unlock()
		return nil
	}

	// Queue never grew; the answered question was the last one.
	e.state = StateFinalizing
	answers := e.sink.Answers()
	var last quiz.AnswerRecord
	if len(answers) > 0 {
		last = answers[len(answers)-1]
	}
	e.mu.Unlock()
	return e.finalize(ctx, last, newIndex)
}

// RetryFinalize re-runs a failed finalization.
func (e *Engine) RetryFinalize(ctx context.Context) error {
	e.mu.Lock()
	if e.state != StateFinalizing {
		e.mu.Unlock()
		return &ValidationError{Reason: "nothing to finalize"}
	}
	answers := e.sink.Answers()
	var last quiz.AnswerRecord
	if len(answers) > 0 {
		last = answers[len(answers)-1]
	}
	newIndex := e.index + 1
	e.mu.Unlock()
	return e.finalize(ctx, last, newIndex)
}

// finalize computes the score, obtains the report and writes the
// completed snapshot. The final answer's save is deliberately
// synchronous and happens only after analysis succeeded, so a failure
// never leaves a half-completed snapshot behind.
func (e *Engine) finalize(ctx context.Context, last quiz.AnswerRecord, newIndex int) error {
	queue := e.source.Queue()
	answers := e.sink.Answers()
	score := quiz.Score(answers, len(queue))

	var report quiz.Analysis
	if e.analyzer != nil {
		var err error
		report, err = e.analyzer.Analyze(ctx, analysis.Input{
			Words:      e.words,
			Difficulty: e.difficulty,
			Questions:  queue,
			Answers:    answers,
		})
		if err != nil {
			return e.failFinalize(err)
		}
	} else {
		report = analysis.RetryReport(analysis.WrongWords(queue, answers))
	}

	if e.store != nil {
		e.mu.Lock()
		saved := e.finalSaved
		e.mu.Unlock()
		if !saved {
			// Routed through the save worker so every earlier queued save
			// lands first and this one completes the snapshot.
			done := make(chan error, 1)
			e.saves <- saveReq{rec: last, newIndex: newIndex, done: done}
			if err := <-done; err != nil {
				return e.failFinalize(err)
			}
			e.mu.Lock()
			e.finalSaved = true
			e.mu.Unlock()
		}
		if err := e.store.SaveAnalysis(ctx, e.sessionID, report); err != nil {
			return e.failFinalize(err)
		}
	}

	e.mu.Lock()
	e.finalizeErr = nil
	e.result = &Result{Score: score, Analysis: report, Answers: answers}
	e.state = StateDone
	e.mu.Unlock()
	return nil
}

func (e *Engine) failFinalize(cause error) error {
	err := &FinalizationError{Err: cause}
	e.mu.Lock()
	e.finalizeErr = err
	e.mu.Unlock()
	return err
}
