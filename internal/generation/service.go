// Package generation tracks asynchronous per-section question
// generation: the service that produces questions, the tracker that
// accumulates section state, and the poller that refreshes it.
package generation

import (
	"context"
	"errors"
	"fmt"

	"github.com/abhisek/wordiz/internal/quiz"
)

// ErrSessionNotFound is the distinguishable "expired or unknown"
// outcome of GetSession. The poller keys its one-shot history-resume
// fallback off this error and nothing else.
var ErrSessionNotFound = errors.New("generation session not found")

// Service produces and serves generation sessions.
type Service interface {
	// CreateSession starts generating all three sections for the word list.
	CreateSession(ctx context.Context, words []string, difficulty quiz.Difficulty) (*quiz.GenerationSession, error)

	// GetSession returns the current state of a session. Expired or
	// unknown ids fail with ErrSessionNotFound.
	GetSession(ctx context.Context, id string) (*quiz.GenerationSession, error)

	// RetrySection regenerates a single section. This is the only path
	// that regresses a section's status.
	RetrySection(ctx context.Context, id string, t quiz.QuestionType) (*quiz.GenerationSession, error)
}

// TransientError wraps a poll failure that is not "session not found".
// The poller keeps retrying through these indefinitely.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("question generation temporarily unavailable: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// HardResumeFailure means the expired-session fallback itself failed.
// There is no further automatic recovery; the learner restarts from the
// history list.
type HardResumeFailure struct {
	HistoryID string
	Err       error
}

func (e *HardResumeFailure) Error() string {
	return fmt.Sprintf("could not resume saved session %s: %v", e.HistoryID, e.Err)
}

func (e *HardResumeFailure) Unwrap() error { return e.Err }
