package engine

import (
	"sync"

	"github.com/abhisek/wordiz/internal/quiz"
)

// fixedSource is a fully materialized queue. Retry rounds never wait on
// generation, so readiness is unconditional.
type fixedSource struct {
	questions []quiz.Question
}

func (f *fixedSource) Queue() []quiz.Question { return f.questions }
func (f *fixedSource) AllReady() bool         { return true }

// listSink is the dedicated answer list for one retry round.
type listSink struct {
	mu   sync.Mutex
	recs []quiz.AnswerRecord
}

func (s *listSink) Record(rec quiz.AnswerRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, rec)
}

func (s *listSink) Answers() []quiz.AnswerRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]quiz.AnswerRecord(nil), s.recs...)
}

// RetryController runs "wrong answers only" rounds over a fresh engine.
// Retry rounds bypass the poller and the store entirely, never mutate
// the finished run, and can nest: a round's remaining wrong questions
// seed the next round against the same saved result.
type RetryController struct {
	mu     sync.Mutex
	saved  *Result
	engine *Engine
	queue  []quiz.Question
	sink   *listSink
}

// NewRetryController creates an idle controller.
func NewRetryController() *RetryController {
	return &RetryController{}
}

// WrongQuestions diffs a finished run: the questions whose latest
// answer was incorrect, in queue order. This seeds a retry round.
func WrongQuestions(questions []quiz.Question, answers []quiz.AnswerRecord) []quiz.Question {
	latest := make(map[string]bool, len(answers))
	answered := make(map[string]bool, len(answers))
	for _, a := range answers {
		latest[a.QuestionID] = a.Correct
		answered[a.QuestionID] = true
	}

	var out []quiz.Question
	for _, q := range questions {
		if answered[q.ID] && !latest[q.ID] {
			out = append(out, q)
		}
	}
	return out
}

// Enter starts a retry round over the given questions. The first round
// snapshots prior so Exit can restore it; nested rounds keep the
// original snapshot untouched.
func (c *RetryController) Enter(wrong []quiz.Question, prior *Result) (*Engine, error) {
	if len(wrong) == 0 {
		return nil, &ValidationError{Reason: "nothing to retry"}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.saved == nil {
		c.saved = prior
	}
	c.queue = append([]quiz.Question(nil), wrong...)
	c.sink = &listSink{}
	c.engine = New(Params{
		Source: &fixedSource{questions: c.queue},
		Sink:   c.sink,
	})
	return c.engine, nil
}

// Active reports whether a retry round is running.
func (c *RetryController) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine != nil
}

// Engine returns the current retry round's engine, nil when idle.
func (c *RetryController) Engine() *Engine {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine
}

// Remaining returns the questions still answered incorrectly in the
// current round, the seed for a nested retry.
func (c *RetryController) Remaining() []quiz.Question {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sink == nil {
		return nil
	}
	return WrongQuestions(c.queue, c.sink.Answers())
}

// Exit leaves retry mode and returns the saved pre-retry result. All
// retry state is discarded; the original result is exactly as saved.
func (c *RetryController) Exit() *Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	saved := c.saved
	c.saved = nil
	c.engine = nil
	c.queue = nil
	c.sink = nil
	return saved
}
