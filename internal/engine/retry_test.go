package engine

import (
	"context"
	"strings"
	"testing"

	"github.com/abhisek/wordiz/internal/quiz"
)

func TestWrongQuestions(t *testing.T) {
	qs := testQuestions()
	answers := []quiz.AnswerRecord{
		{QuestionID: "q1", ChoiceID: "b", Correct: false},
		{QuestionID: "q2", ChoiceID: "b", Correct: true},
		{QuestionID: "q3", UserInput: "give up", Correct: false},
	}

	wrong := WrongQuestions(qs, answers)
	if len(wrong) != 2 {
		t.Fatalf("wrong questions = %d, want 2", len(wrong))
	}
	if wrong[0].ID != "q1" || wrong[1].ID != "q3" {
		t.Errorf("wrong order = %s, %s; want q1, q3", wrong[0].ID, wrong[1].ID)
	}

	// Unanswered questions are not "wrong".
	if got := WrongQuestions(qs, answers[:2]); len(got) != 1 {
		t.Errorf("wrong with unanswered q3 = %d, want 1", len(got))
	}
}

func TestRetryController_EnterRejectsEmptySet(t *testing.T) {
	c := NewRetryController()
	if _, err := c.Enter(nil, &Result{}); err == nil {
		t.Fatal("expected error for empty retry set")
	}
	if c.Active() {
		t.Error("controller active after rejected Enter")
	}
}

func TestRetryController_IsolationFromOriginalResult(t *testing.T) {
	qs := testQuestions()
	prior := &Result{
		Score:    67,
		Analysis: quiz.Analysis{Report: "original report"},
		Answers: []quiz.AnswerRecord{
			{QuestionID: "q1", ChoiceID: "b", Correct: false},
			{QuestionID: "q2", ChoiceID: "b", Correct: true},
			{QuestionID: "q3", UserInput: "keep up", Correct: true},
		},
	}

	c := NewRetryController()
	re, err := c.Enter(WrongQuestions(qs, prior.Answers), prior)
	if err != nil {
		t.Fatalf("enter retry: %v", err)
	}
	if !c.Active() {
		t.Fatal("controller not active")
	}

	// Answer the single retry question correctly this time.
	cur, ok := re.Current()
	if !ok || cur.ID != "q1" {
		t.Fatalf("retry current = %+v, want q1", cur)
	}
	if err := re.SubmitAnswer(context.Background(), Submission{ChoiceID: "a"}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	res, ok := re.Result()
	if !ok {
		t.Fatal("retry round not done")
	}
	if res.Score != 100 {
		t.Errorf("retry score = %d, want 100", res.Score)
	}
	if !strings.Contains(res.Analysis.Report, "Clean retry") {
		t.Errorf("retry report = %q, want local congratulation", res.Analysis.Report)
	}
	if got := c.Remaining(); len(got) != 0 {
		t.Errorf("remaining after clean round = %v, want none", got)
	}

	// The original result is untouched by the round.
	restored := c.Exit()
	if restored != prior {
		t.Fatal("exit did not restore the saved result")
	}
	if restored.Score != 67 || len(restored.Answers) != 3 {
		t.Errorf("restored result mutated: %+v", restored)
	}
	if restored.Answers[0].Correct {
		t.Error("retry round rewrote an original answer")
	}
	if c.Active() {
		t.Error("controller still active after exit")
	}
}

func TestRetryController_NestedRetryKeepsOriginalSnapshot(t *testing.T) {
	qs := testQuestions()
	prior := &Result{Score: 0, Answers: []quiz.AnswerRecord{
		{QuestionID: "q1", ChoiceID: "b", Correct: false},
		{QuestionID: "q3", UserInput: "give up", Correct: false},
	}}

	c := NewRetryController()
	re, err := c.Enter(WrongQuestions(qs, prior.Answers), prior)
	if err != nil {
		t.Fatalf("enter retry: %v", err)
	}

	// First round: q1 fixed, q3 still wrong.
	if err := re.SubmitAnswer(context.Background(), Submission{ChoiceID: "a"}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := re.SubmitAnswer(context.Background(), Submission{Input: "hold on"}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	res, _ := re.Result()
	if !strings.Contains(res.Analysis.Report, "keep up") {
		t.Errorf("report does not name the remaining word: %q", res.Analysis.Report)
	}

	remaining := c.Remaining()
	if len(remaining) != 1 || remaining[0].ID != "q3" {
		t.Fatalf("remaining = %+v, want q3", remaining)
	}

	// Nested round over the leftovers; the saved result must survive.
	re2, err := c.Enter(remaining, nil)
	if err != nil {
		t.Fatalf("enter nested retry: %v", err)
	}
	if err := re2.SubmitAnswer(context.Background(), Submission{Input: "keep up"}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	res2, ok := re2.Result()
	if !ok || res2.Score != 100 {
		t.Fatalf("nested round result = %+v", res2)
	}

	if restored := c.Exit(); restored != prior {
		t.Fatal("exit after nested rounds did not restore the original result")
	}
}
