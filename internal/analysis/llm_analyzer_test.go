package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/abhisek/wordiz/internal/llm"
	"github.com/abhisek/wordiz/internal/quiz"
)

func analysisInput() Input {
	return Input{
		Words:      []string{"cat", "dog"},
		Difficulty: quiz.DifficultyBeginner,
		Questions: []quiz.Question{
			{
				ID: "q1", Type: quiz.TypeChoiceZhToEn, Word: "cat",
				Choices:         []quiz.Choice{{ID: "a", Text: "cat"}, {ID: "b", Text: "dog"}},
				CorrectChoiceID: "a",
			},
			{
				ID: "q2", Type: quiz.TypeClozeFill, Word: "dog",
				Sentence: "The dog barks.", CorrectAnswer: "dog",
			},
		},
		Answers: []quiz.AnswerRecord{
			{QuestionID: "q1", ChoiceID: "a", Correct: true},
			{QuestionID: "q2", UserInput: "dig", Correct: false},
		},
	}
}

func TestLLMAnalyzer_Analyze(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{
		Content: json.RawMessage(`{"report":"Good run, dog needs work.","recommendations":["Write two sentences with dog."]}`),
	})
	a := New(mock, DefaultConfig())

	got, err := a.Analyze(context.Background(), analysisInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Report != "Good run, dog needs work." {
		t.Errorf("Report = %q", got.Report)
	}
	if len(got.Recommendations) != 1 {
		t.Errorf("Recommendations = %v, want 1 entry", got.Recommendations)
	}

	if n := mock.CallCount(); n != 1 {
		t.Fatalf("provider calls = %d, want 1", n)
	}
	msg := mock.Calls[0].Messages[0].Content
	for _, want := range []string{"cat", "dog", `"dig"`, "Score: 50/100", "WRONG"} {
		if !strings.Contains(msg, want) {
			t.Errorf("prompt missing %q:\n%s", want, msg)
		}
	}
	if mock.Calls[0].Schema == nil || mock.Calls[0].Schema.Name != "practice-report" {
		t.Error("request did not carry the report schema")
	}
}

func TestLLMAnalyzer_ProviderError(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Err: errors.New("overloaded")})
	a := New(mock, DefaultConfig())

	if _, err := a.Analyze(context.Background(), analysisInput()); err == nil {
		t.Fatal("expected error when provider fails")
	}
}

func TestLLMAnalyzer_EmptyReportRejected(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{
		Content: json.RawMessage(`{"report":"","recommendations":[]}`),
	})
	a := New(mock, DefaultConfig())

	if _, err := a.Analyze(context.Background(), analysisInput()); err == nil {
		t.Fatal("expected error for empty report")
	}
}

func TestWrongWords(t *testing.T) {
	in := analysisInput()
	got := WrongWords(in.Questions, in.Answers)
	if len(got) != 1 || got[0] != "dog" {
		t.Errorf("WrongWords = %v, want [dog]", got)
	}

	// Duplicate wrong answers for the same word collapse to one entry.
	in.Answers = append(in.Answers, quiz.AnswerRecord{QuestionID: "q2", UserInput: "dug", Correct: false})
	got = WrongWords(in.Questions, in.Answers)
	if len(got) != 1 {
		t.Errorf("WrongWords with duplicates = %v, want 1 entry", got)
	}
}

func TestRetryReport(t *testing.T) {
	clean := RetryReport(nil)
	if !strings.Contains(clean.Report, "Clean retry") {
		t.Errorf("clean report = %q", clean.Report)
	}
	if len(clean.Recommendations) != 0 {
		t.Errorf("clean report carries recommendations: %v", clean.Recommendations)
	}

	again := RetryReport([]string{"cat", "dog"})
	if !strings.Contains(again.Report, "cat, dog") {
		t.Errorf("report does not name remaining words: %q", again.Report)
	}
	if len(again.Recommendations) != 1 {
		t.Errorf("Recommendations = %v, want 1 entry", again.Recommendations)
	}
}
