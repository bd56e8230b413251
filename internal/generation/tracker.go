package generation

import (
	"sync"

	"github.com/abhisek/wordiz/internal/quiz"
)

// Tracker accumulates the latest generation snapshot and derives the
// ordered question queue. It also owns the main run's answer list so
// answers cannot bleed across sessions: the list resets only when a
// snapshot for a different session id arrives.
type Tracker struct {
	mu        sync.Mutex
	sessionID string
	meta      quiz.SessionMeta
	sections  map[quiz.QuestionType]quiz.SectionState
	answers   []quiz.AnswerRecord
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{sections: make(map[quiz.QuestionType]quiz.SectionState)}
}

// Apply replaces all section states wholesale with the incoming
// snapshot (last applied wins; no partial merge).
func (t *Tracker) Apply(s *quiz.GenerationSession) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if s.ID != t.sessionID {
		t.answers = nil
	}
	t.sessionID = s.ID
	t.meta = s.Meta

	t.sections = make(map[quiz.QuestionType]quiz.SectionState, len(s.Sections))
	for k, v := range s.Sections {
		cp := v
		cp.Questions = append([]quiz.Question(nil), v.Questions...)
		t.sections[k] = cp
	}
}

// SessionID returns the currently tracked session id.
func (t *Tracker) SessionID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessionID
}

// Meta returns the tracked session metadata.
func (t *Tracker) Meta() quiz.SessionMeta {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.meta
}

// Section returns one section's state.
func (t *Tracker) Section(typ quiz.QuestionType) (quiz.SectionState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sections[typ]
	return s, ok
}

// AllReady reports whether every section has finished generating.
func (t *Tracker) AllReady() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.allReadyLocked()
}

func (t *Tracker) allReadyLocked() bool {
	for _, typ := range quiz.SectionOrder {
		if t.sections[typ].Status != quiz.SectionReady {
			return false
		}
	}
	return true
}

// Queue derives the ordered question queue: section 1, then 2, then 3.
// A cloze question lacking a correct answer is malformed legacy data
// and is dropped, not retried.
func (t *Tracker) Queue() []quiz.Question {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []quiz.Question
	for _, typ := range quiz.SectionOrder {
		for _, q := range t.sections[typ].Questions {
			if q.Type == quiz.TypeClozeFill && q.CorrectAnswer == "" {
				continue
			}
			out = append(out, q)
		}
	}
	return out
}

// QuestionSet materializes the tracked sections for persistence, with
// the same malformed-cloze filtering as Queue.
func (t *Tracker) QuestionSet() quiz.QuestionSet {
	t.mu.Lock()
	defer t.mu.Unlock()

	set := quiz.QuestionSet{Sections: make(map[quiz.QuestionType][]quiz.Question, len(quiz.SectionOrder))}
	for _, typ := range quiz.SectionOrder {
		qs := make([]quiz.Question, 0, len(t.sections[typ].Questions))
		for _, q := range t.sections[typ].Questions {
			if q.Type == quiz.TypeClozeFill && q.CorrectAnswer == "" {
				continue
			}
			qs = append(qs, q)
		}
		set.Sections[typ] = qs
	}
	return set
}

// Record appends an answer for the main run.
func (t *Tracker) Record(rec quiz.AnswerRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.answers = append(t.answers, rec)
}

// Answers returns a copy of the accumulated answers.
func (t *Tracker) Answers() []quiz.AnswerRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]quiz.AnswerRecord(nil), t.answers...)
}
