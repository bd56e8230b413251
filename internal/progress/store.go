// Package progress persists resumable practice sessions. The same
// contract is served by two interchangeable backends: a capacity-bounded
// local SQLite store and a remote history service client.
package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/abhisek/wordiz/internal/quiz"
)

// ErrNotFound is returned when a session id is unknown to the backend.
// It is surfaced to the caller, never silently retried here.
var ErrNotFound = errors.New("progress session not found")

// Mode identifies which backend owns a snapshot.
type Mode string

const (
	ModeLocal  Mode = "local"
	ModeRemote Mode = "remote"
)

// Status is the lifecycle state of a snapshot.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// SessionSnapshot is the durable resumable unit of practice progress.
type SessionSnapshot struct {
	ID           string              `json:"id"`
	Mode         Mode                `json:"mode"`
	Difficulty   quiz.Difficulty     `json:"difficulty"`
	Words        []string            `json:"words"`
	Score        int                 `json:"score"`
	Analysis     quiz.Analysis       `json:"analysis"`
	Questions    quiz.QuestionSet    `json:"questions"`
	Answers      []quiz.AnswerRecord `json:"answers"`
	Status       Status              `json:"status"`
	CurrentIndex int                 `json:"currentQuestionIndex"`
	CreatedAt    time.Time           `json:"createdAt"`
	UpdatedAt    time.Time           `json:"updatedAt"`

	// WordDetails is an optional vocabulary-detail payload attached at
	// creation time, carried opaquely.
	WordDetails json.RawMessage `json:"wordDetails,omitempty"`
}

// Summary is a listing row for resumable sessions.
type Summary struct {
	ID             string          `json:"id"`
	Difficulty     quiz.Difficulty `json:"difficulty"`
	WordCount      int             `json:"wordCount"`
	AnsweredCount  int             `json:"answeredCount"`
	TotalQuestions int             `json:"totalQuestions"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// Created reports the identity of a newly created snapshot.
type Created struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store is the backend-agnostic contract for session snapshots.
type Store interface {
	// CreateInProgress stores a fresh in-progress snapshot for the given
	// question set. details may be nil.
	CreateInProgress(ctx context.Context, difficulty quiz.Difficulty, words []string, set quiz.QuestionSet, details json.RawMessage) (Created, error)

	// SaveAnswer appends the answer and moves the cursor to newIndex.
	// When newIndex reaches the snapshot's total question count the
	// session is completed and its score computed. Fails with ErrNotFound
	// for unknown ids.
	SaveAnswer(ctx context.Context, id string, rec quiz.AnswerRecord, newIndex int) error

	// ListInProgress returns summaries of resumable sessions, most
	// recent first.
	ListInProgress(ctx context.Context) ([]Summary, error)

	// GetForResume loads a snapshot by id. Reading never mutates.
	GetForResume(ctx context.Context, id string) (*SessionSnapshot, error)

	// Delete removes a snapshot. Idempotent: returns false when the id
	// was already absent.
	Delete(ctx context.Context, id string) (bool, error)

	// UpdateQuestionSet replaces the materialized question set. Allowed
	// only while the session is still in progress.
	UpdateQuestionSet(ctx context.Context, id string, set quiz.QuestionSet) error

	// SaveAnalysis attaches the completion report to a snapshot.
	SaveAnalysis(ctx context.Context, id string, a quiz.Analysis) error
}

// applyAnswer is the single reducer both backends share: append the
// answer, advance the cursor, and complete + score when the cursor
// reaches the end. The cursor must stay within [0, total].
func applyAnswer(snap *SessionSnapshot, rec quiz.AnswerRecord, newIndex int, now time.Time) error {
	total := snap.Questions.Total()
	if newIndex < 0 || newIndex > total {
		return fmt.Errorf("cursor %d out of range [0, %d]", newIndex, total)
	}

	snap.Answers = append(snap.Answers, rec)
	snap.CurrentIndex = newIndex
	snap.UpdatedAt = now

	if newIndex == total && total > 0 {
		snap.Status = StatusCompleted
		snap.Score = quiz.Score(snap.Answers, total)
	}
	return nil
}
