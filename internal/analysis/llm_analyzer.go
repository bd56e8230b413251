package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"text/template"

	"github.com/abhisek/wordiz/internal/llm"
	"github.com/abhisek/wordiz/internal/quiz"
)

// Config holds configuration for the LLM analyzer.
type Config struct {
	MaxTokens   int
	Temperature float64
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxTokens:   1024,
		Temperature: 0.5,
	}
}

// LLMAnalyzer implements Analyzer using the LLM provider.
type LLMAnalyzer struct {
	provider llm.Provider
	cfg      Config
}

var _ Analyzer = (*LLMAnalyzer)(nil)

// New creates an LLM-backed analyzer.
func New(provider llm.Provider, cfg Config) *LLMAnalyzer {
	return &LLMAnalyzer{provider: provider, cfg: cfg}
}

const analysisSystemPrompt = `You are an English vocabulary coach reviewing a Chinese-speaking learner's finished practice run.

Instructions:
- Write the report directly to the learner, in encouraging but honest plain English.
- Name the specific words and question types that caused mistakes; do not pad with generalities.
- If every answer was correct, say so briefly and keep recommendations empty.
- Recommendations must be concrete actions the learner can take with these words, not generic study advice.`

// reportLine is one question's outcome as shown to the model.
type reportLine struct {
	Word    string
	Type    quiz.QuestionType
	Correct bool
	Given   string
	Wanted  string
}

type reportInput struct {
	Difficulty quiz.Difficulty
	Words      []string
	Score      int
	Lines      []reportLine
}

var analysisUserTemplate = template.Must(template.New("analysis").Parse(`Difficulty: {{.Difficulty}}
Words practiced: {{range $i, $w := .Words}}{{if $i}}, {{end}}{{$w}}{{end}}
Score: {{.Score}}/100

Per-question results:
{{range .Lines}}- [{{if .Correct}}ok{{else}}WRONG{{end}}] {{.Word}} ({{.Type}}){{if not .Correct}} answered {{printf "%q" .Given}}, expected {{printf "%q" .Wanted}}{{end}}
{{end}}`))

type analysisOutput struct {
	Report          string   `json:"report"`
	Recommendations []string `json:"recommendations"`
}

// Analyze sends the run's outcomes to the model and returns the report.
func (a *LLMAnalyzer) Analyze(ctx context.Context, in Input) (quiz.Analysis, error) {
	ctx = llm.WithPurpose(ctx, "practice-analysis")

	userMsg, err := buildAnalysisMessage(in)
	if err != nil {
		return quiz.Analysis{}, fmt.Errorf("build analysis prompt: %w", err)
	}

	req := llm.Request{
		System: analysisSystemPrompt,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: userMsg},
		},
		Schema:      ReportSchema,
		MaxTokens:   a.cfg.MaxTokens,
		Temperature: a.cfg.Temperature,
	}

	resp, err := a.provider.Generate(ctx, req)
	if err != nil {
		return quiz.Analysis{}, fmt.Errorf("LLM analysis failed: %w", err)
	}

	var raw analysisOutput
	if err := json.Unmarshal(resp.Content, &raw); err != nil {
		return quiz.Analysis{}, fmt.Errorf("failed to parse analysis response: %w", err)
	}
	if raw.Report == "" {
		return quiz.Analysis{}, fmt.Errorf("analysis response has empty report")
	}

	return quiz.Analysis{Report: raw.Report, Recommendations: raw.Recommendations}, nil
}

func buildAnalysisMessage(in Input) (string, error) {
	byID := make(map[string]quiz.Question, len(in.Questions))
	for _, q := range in.Questions {
		byID[q.ID] = q
	}

	lines := make([]reportLine, 0, len(in.Answers))
	for _, a := range in.Answers {
		q, ok := byID[a.QuestionID]
		if !ok {
			continue
		}
		lines = append(lines, reportLine{
			Word:    q.Word,
			Type:    q.Type,
			Correct: a.Correct,
			Given:   givenAnswer(q, a),
			Wanted:  wantedAnswer(q),
		})
	}

	data := reportInput{
		Difficulty: in.Difficulty,
		Words:      in.Words,
		Score:      quiz.Score(in.Answers, len(in.Questions)),
		Lines:      lines,
	}

	var buf bytes.Buffer
	if err := analysisUserTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func givenAnswer(q quiz.Question, a quiz.AnswerRecord) string {
	if !q.IsChoice() {
		return a.UserInput
	}
	for _, c := range q.Choices {
		if c.ID == a.ChoiceID {
			return c.Text
		}
	}
	return a.ChoiceID
}

func wantedAnswer(q quiz.Question) string {
	if !q.IsChoice() {
		return q.CorrectAnswer
	}
	for _, c := range q.Choices {
		if c.ID == q.CorrectChoiceID {
			return c.Text
		}
	}
	return q.CorrectChoiceID
}
