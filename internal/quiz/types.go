package quiz

import "time"

// QuestionType identifies one of the three fixed quiz sections.
// Sections are generated independently and always presented in
// SectionOrder.
type QuestionType string

const (
	// TypeChoiceZhToEn shows a Chinese word and four English choices.
	TypeChoiceZhToEn QuestionType = "choice_zh_to_en"

	// TypeChoiceEnToZh shows an English word and four Chinese choices.
	TypeChoiceEnToZh QuestionType = "choice_en_to_zh"

	// TypeClozeFill shows a sentence with the target word blanked out;
	// the learner types the missing word.
	TypeClozeFill QuestionType = "cloze_fill"
)

// SectionOrder is the fixed presentation order of the three sections.
// Question order within a session never changes across resumes, so a
// restored index always points at the same logical question.
var SectionOrder = []QuestionType{TypeChoiceZhToEn, TypeChoiceEnToZh, TypeClozeFill}

// Difficulty is the practice difficulty tier.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// Choice is a single selectable option on a choice question.
type Choice struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Question is a single generated quiz question.
type Question struct {
	ID   string       `json:"id"`
	Type QuestionType `json:"type"`

	// Word is the target lexeme this question is testing.
	Word string `json:"word"`

	// Prompt is the question text displayed to the learner.
	Prompt string `json:"prompt"`

	// Choices and CorrectChoiceID are populated for choice questions only.
	Choices         []Choice `json:"choices,omitempty"`
	CorrectChoiceID string   `json:"correctChoiceId,omitempty"`

	// CorrectAnswer is the expected free-text answer for cloze questions.
	CorrectAnswer string `json:"correctAnswer,omitempty"`

	// Sentence is the example sentence a cloze question blanks out.
	Sentence string `json:"sentence,omitempty"`

	// Translation is the sentence's translation, shown after answering.
	Translation string `json:"translation,omitempty"`

	// Hint is an optional scaffolding hint. Suppressed at the advanced tier.
	Hint string `json:"hint,omitempty"`
}

// IsChoice reports whether the question is answered by picking a choice.
func (q *Question) IsChoice() bool {
	return q.Type == TypeChoiceZhToEn || q.Type == TypeChoiceEnToZh
}

// SectionStatus is the generation state of a single section.
type SectionStatus string

const (
	SectionPending    SectionStatus = "pending"
	SectionGenerating SectionStatus = "generating"
	SectionReady      SectionStatus = "ready"
	SectionError      SectionStatus = "error"
)

// SectionState holds one section's generation outcome.
type SectionState struct {
	Status    SectionStatus `json:"status"`
	Questions []Question    `json:"questions"`
	Error     string        `json:"error,omitempty"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// SessionMeta describes a generation session's parameters and progress.
type SessionMeta struct {
	TotalQuestions int                  `json:"totalQuestions"`
	Words          []string             `json:"words"`
	Difficulty     Difficulty           `json:"difficulty"`
	GeneratedAt    time.Time            `json:"generatedAt"`
	EstimatedTotal int                  `json:"estimatedTotalQuestions"`
	PerType        map[QuestionType]int `json:"perType,omitempty"`
}

// GenerationSession is a point-in-time snapshot of asynchronous question
// generation across the three sections. It is superseded by a progress
// snapshot once practice starts being recorded.
type GenerationSession struct {
	ID       string                         `json:"sessionId"`
	Meta     SessionMeta                    `json:"metadata"`
	Sections map[QuestionType]SectionState `json:"sections"`
}

// Clone returns a deep copy so callers can hand sessions across
// goroutine boundaries without aliasing the service's state.
func (s *GenerationSession) Clone() *GenerationSession {
	out := &GenerationSession{ID: s.ID, Meta: s.Meta}
	out.Meta.Words = append([]string(nil), s.Meta.Words...)
	if s.Meta.PerType != nil {
		out.Meta.PerType = make(map[QuestionType]int, len(s.Meta.PerType))
		for k, v := range s.Meta.PerType {
			out.Meta.PerType[k] = v
		}
	}
	out.Sections = make(map[QuestionType]SectionState, len(s.Sections))
	for k, v := range s.Sections {
		cp := v
		cp.Questions = append([]Question(nil), v.Questions...)
		out.Sections[k] = cp
	}
	return out
}

// AnswerRecord is one submitted answer. Correct is computed once when the
// record is created and never recomputed.
type AnswerRecord struct {
	QuestionID string `json:"questionId"`
	ChoiceID   string `json:"choiceId,omitempty"`
	UserInput  string `json:"userInput,omitempty"`
	Correct    bool   `json:"correct"`
	ElapsedMs  int64  `json:"elapsedMs"`
}

// Analysis is the AI-generated practice report.
type Analysis struct {
	Report          string   `json:"report"`
	Recommendations []string `json:"recommendations"`
}

// QuestionSet is the fully materialized three-section question set.
type QuestionSet struct {
	Sections map[QuestionType][]Question `json:"sections"`
}

// Flatten returns all questions in the fixed section order.
func (qs QuestionSet) Flatten() []Question {
	var out []Question
	for _, t := range SectionOrder {
		out = append(out, qs.Sections[t]...)
	}
	return out
}

// Total returns the number of questions across all sections.
func (qs QuestionSet) Total() int {
	n := 0
	for _, t := range SectionOrder {
		n += len(qs.Sections[t])
	}
	return n
}

// Score computes the rounded percentage score for a finished answer list.
func Score(answers []AnswerRecord, total int) int {
	if total <= 0 {
		return 0
	}
	correct := 0
	for _, a := range answers {
		if a.Correct {
			correct++
		}
	}
	return int(float64(correct)/float64(total)*100 + 0.5)
}
