package generation

import (
	"testing"
	"time"

	"github.com/abhisek/wordiz/internal/quiz"
)

func readySession(id string) *quiz.GenerationSession {
	now := time.Now().UTC()
	return &quiz.GenerationSession{
		ID: id,
		Meta: quiz.SessionMeta{
			TotalQuestions: 3,
			Words:          []string{"cat"},
			Difficulty:     quiz.DifficultyBeginner,
			GeneratedAt:    now,
		},
		Sections: map[quiz.QuestionType]quiz.SectionState{
			quiz.TypeChoiceZhToEn: {
				Status:    quiz.SectionReady,
				UpdatedAt: now,
				Questions: []quiz.Question{{
					ID: "q1", Type: quiz.TypeChoiceZhToEn, Word: "cat",
					Choices:         []quiz.Choice{{ID: "a", Text: "cat"}, {ID: "b", Text: "dog"}},
					CorrectChoiceID: "a",
				}},
			},
			quiz.TypeChoiceEnToZh: {
				Status:    quiz.SectionReady,
				UpdatedAt: now,
				Questions: []quiz.Question{{
					ID: "q2", Type: quiz.TypeChoiceEnToZh, Word: "cat",
					Choices:         []quiz.Choice{{ID: "a", Text: "猫"}, {ID: "b", Text: "狗"}},
					CorrectChoiceID: "a",
				}},
			},
			quiz.TypeClozeFill: {
				Status:    quiz.SectionReady,
				UpdatedAt: now,
				Questions: []quiz.Question{{
					ID: "q3", Type: quiz.TypeClozeFill, Word: "cat",
					Sentence: "The cat sleeps.", CorrectAnswer: "cat",
				}},
			},
		},
	}
}

func TestTracker_QueueOrdersSections(t *testing.T) {
	tr := NewTracker()
	tr.Apply(readySession("s-1"))

	queue := tr.Queue()
	if len(queue) != 3 {
		t.Fatalf("queue length = %d, want 3", len(queue))
	}
	want := []string{"q1", "q2", "q3"}
	for i, id := range want {
		if queue[i].ID != id {
			t.Errorf("queue[%d].ID = %q, want %q", i, queue[i].ID, id)
		}
	}
}

func TestTracker_QueueDropsClozeWithoutAnswer(t *testing.T) {
	sess := readySession("s-1")
	sec := sess.Sections[quiz.TypeClozeFill]
	sec.Questions = append(sec.Questions, quiz.Question{
		ID: "q4", Type: quiz.TypeClozeFill, Sentence: "Legacy row.",
	})
	sess.Sections[quiz.TypeClozeFill] = sec

	tr := NewTracker()
	tr.Apply(sess)

	queue := tr.Queue()
	if len(queue) != 3 {
		t.Fatalf("queue length = %d, want 3 (malformed cloze dropped)", len(queue))
	}
	for _, q := range queue {
		if q.ID == "q4" {
			t.Error("malformed cloze question survived the queue")
		}
	}

	set := tr.QuestionSet()
	if got := len(set.Sections[quiz.TypeClozeFill]); got != 1 {
		t.Errorf("question set cloze section length = %d, want 1", got)
	}
}

func TestTracker_AllReady(t *testing.T) {
	tr := NewTracker()
	if tr.AllReady() {
		t.Error("empty tracker reports all ready")
	}

	sess := readySession("s-1")
	sec := sess.Sections[quiz.TypeClozeFill]
	sec.Status = quiz.SectionGenerating
	sess.Sections[quiz.TypeClozeFill] = sec
	tr.Apply(sess)
	if tr.AllReady() {
		t.Error("tracker reports ready with a generating section")
	}

	tr.Apply(readySession("s-1"))
	if !tr.AllReady() {
		t.Error("tracker not ready with all sections ready")
	}
}

func TestTracker_AnswersResetOnNewSession(t *testing.T) {
	tr := NewTracker()
	tr.Apply(readySession("s-1"))
	tr.Record(quiz.AnswerRecord{QuestionID: "q1", Correct: true})

	// A refreshed snapshot of the same session keeps answers.
	tr.Apply(readySession("s-1"))
	if got := len(tr.Answers()); got != 1 {
		t.Fatalf("answers after same-session apply = %d, want 1", got)
	}

	tr.Apply(readySession("s-2"))
	if got := len(tr.Answers()); got != 0 {
		t.Errorf("answers after new-session apply = %d, want 0", got)
	}
}
