// Package analysis turns a finished practice run into a learner-facing
// report: an AI-written summary for the main run, and a locally
// synthesized one for retry rounds.
package analysis

import (
	"context"

	"github.com/abhisek/wordiz/internal/quiz"
)

// Input is everything a finished run exposes to the analyzer.
type Input struct {
	Words      []string
	Difficulty quiz.Difficulty
	Questions  []quiz.Question
	Answers    []quiz.AnswerRecord
}

// Analyzer produces the practice report for a finished run.
type Analyzer interface {
	Analyze(ctx context.Context, in Input) (quiz.Analysis, error)
}

// WrongWords returns the distinct target words answered incorrectly, in
// first-seen question order. Unanswered questions do not count.
func WrongWords(questions []quiz.Question, answers []quiz.AnswerRecord) []string {
	byID := make(map[string]quiz.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	seen := make(map[string]bool)
	var out []string
	for _, a := range answers {
		if a.Correct {
			continue
		}
		q, ok := byID[a.QuestionID]
		if !ok || q.Word == "" || seen[q.Word] {
			continue
		}
		seen[q.Word] = true
		out = append(out, q.Word)
	}
	return out
}
