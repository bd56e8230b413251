package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/wordiz/internal/evaluate"
	"github.com/abhisek/wordiz/internal/llm"
	"github.com/abhisek/wordiz/internal/quiz"
)

// Config holds tunables for LLM-backed question generation.
type Config struct {
	// MaxTokens bounds each section-generation response.
	MaxTokens int

	// Temperature for generation requests.
	Temperature float64

	// SessionTTL is how long an untouched session stays retrievable.
	// Any access extends the deadline.
	SessionTTL time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		MaxTokens:   4096,
		Temperature: 0.7,
		SessionTTL:  30 * time.Minute,
	}
}

var choiceIDs = []string{"a", "b", "c", "d"}

// LLMService implements Service on top of an llm.Provider. Sections
// generate concurrently, each on its own goroutine; GetSession observes
// whatever has finished so far.
type LLMService struct {
	provider llm.Provider
	cfg      Config
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

type sessionEntry struct {
	sess      *quiz.GenerationSession
	expiresAt time.Time
}

var _ Service = (*LLMService)(nil)

// NewLLMService creates a generation service using the given provider.
func NewLLMService(provider llm.Provider, cfg Config) *LLMService {
	return &LLMService{
		provider: provider,
		cfg:      cfg,
		now:      time.Now,
		sessions: make(map[string]*sessionEntry),
	}
}

// CreateSession registers a new session and kicks off generation of all
// three sections. The returned snapshot has every section generating.
func (s *LLMService) CreateSession(ctx context.Context, words []string, difficulty quiz.Difficulty) (*quiz.GenerationSession, error) {
	if len(words) == 0 {
		return nil, fmt.Errorf("create session: empty word list")
	}

	now := s.now().UTC()
	perType := make(map[quiz.QuestionType]int, len(quiz.SectionOrder))
	sections := make(map[quiz.QuestionType]quiz.SectionState, len(quiz.SectionOrder))
	for _, t := range quiz.SectionOrder {
		perType[t] = len(words)
		sections[t] = quiz.SectionState{Status: quiz.SectionGenerating, UpdatedAt: now}
	}

	sess := &quiz.GenerationSession{
		ID: uuid.NewString(),
		Meta: quiz.SessionMeta{
			TotalQuestions: len(words) * len(quiz.SectionOrder),
			EstimatedTotal: len(words) * len(quiz.SectionOrder),
			PerType:        perType,
			Words:          append([]string(nil), words...),
			Difficulty:     difficulty,
			GeneratedAt:    now,
		},
		Sections: sections,
	}

	s.mu.Lock()
	s.sessions[sess.ID] = &sessionEntry{sess: sess, expiresAt: now.Add(s.cfg.SessionTTL)}
	s.sweepLocked(now)
	s.mu.Unlock()

	for _, t := range quiz.SectionOrder {
		go s.generateSection(sess.ID, t, words, difficulty)
	}
	return sess.Clone(), nil
}

// GetSession returns the current state of a session. Accessing a
// session extends its TTL.
func (s *LLMService) GetSession(ctx context.Context, id string) (*quiz.GenerationSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.lookupLocked(id)
	if err != nil {
		return nil, err
	}
	entry.expiresAt = s.now().UTC().Add(s.cfg.SessionTTL)
	return entry.sess.Clone(), nil
}

// RetrySection resets one section to generating and regenerates it.
// This is the only path that moves a section backwards.
func (s *LLMService) RetrySection(ctx context.Context, id string, t quiz.QuestionType) (*quiz.GenerationSession, error) {
	s.mu.Lock()
	entry, err := s.lookupLocked(id)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	now := s.now().UTC()
	entry.expiresAt = now.Add(s.cfg.SessionTTL)
	entry.sess.Sections[t] = quiz.SectionState{Status: quiz.SectionGenerating, UpdatedAt: now}
	words := entry.sess.Meta.Words
	difficulty := entry.sess.Meta.Difficulty
	snap := entry.sess.Clone()
	s.mu.Unlock()

	go s.generateSection(id, t, words, difficulty)
	return snap, nil
}

// lookupLocked finds a live session, expiring it on the way if its
// deadline passed. Callers hold s.mu.
func (s *LLMService) lookupLocked(id string) (*sessionEntry, error) {
	entry, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if s.now().UTC().After(entry.expiresAt) {
		delete(s.sessions, id)
		return nil, ErrSessionNotFound
	}
	return entry, nil
}

func (s *LLMService) sweepLocked(now time.Time) {
	for id, entry := range s.sessions {
		if now.After(entry.expiresAt) {
			delete(s.sessions, id)
		}
	}
}

// generateSection runs one model call for a section and stores the
// outcome. Detached from the caller's context: generation continues
// after CreateSession returns.
func (s *LLMService) generateSection(sessionID string, t quiz.QuestionType, words []string, difficulty quiz.Difficulty) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	ctx = llm.WithPurpose(ctx, "section-gen")

	questions, err := s.callModel(ctx, t, words, difficulty)

	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sessions[sessionID]
	if !ok {
		return
	}
	state := quiz.SectionState{UpdatedAt: s.now().UTC()}
	if err != nil {
		state.Status = quiz.SectionError
		state.Error = err.Error()
	} else {
		state.Status = quiz.SectionReady
		state.Questions = questions
	}
	entry.sess.Sections[t] = state
}

func (s *LLMService) callModel(ctx context.Context, t quiz.QuestionType, words []string, difficulty quiz.Difficulty) ([]quiz.Question, error) {
	schema := ChoiceSectionSchema
	if t == quiz.TypeClozeFill {
		schema = ClozeSectionSchema
	}

	req := llm.Request{
		System: systemPromptFor(t),
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: buildSectionMessage(words, difficulty)},
		},
		Schema:      schema,
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
	}

	resp, err := s.provider.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("generate %s section: %w", t, err)
	}

	if t == quiz.TypeClozeFill {
		return parseClozeSection(resp.Content, difficulty)
	}
	return parseChoiceSection(resp.Content, t)
}

type choiceSectionOutput struct {
	Questions []struct {
		Word         string   `json:"word"`
		Prompt       string   `json:"prompt"`
		Choices      []string `json:"choices"`
		CorrectIndex int      `json:"correct_index"`
	} `json:"questions"`
}

func parseChoiceSection(content json.RawMessage, t quiz.QuestionType) ([]quiz.Question, error) {
	var raw choiceSectionOutput
	if err := json.Unmarshal(content, &raw); err != nil {
		return nil, fmt.Errorf("parse choice section: %w", err)
	}

	out := make([]quiz.Question, 0, len(raw.Questions))
	for i, q := range raw.Questions {
		if len(q.Choices) != len(choiceIDs) {
			return nil, fmt.Errorf("question %d: got %d choices, want %d", i+1, len(q.Choices), len(choiceIDs))
		}
		if q.CorrectIndex < 0 || q.CorrectIndex >= len(choiceIDs) {
			return nil, fmt.Errorf("question %d: correct_index %d out of range", i+1, q.CorrectIndex)
		}
		choices := make([]quiz.Choice, len(q.Choices))
		for j, text := range q.Choices {
			choices[j] = quiz.Choice{ID: choiceIDs[j], Text: text}
		}
		out = append(out, quiz.Question{
			ID:              uuid.NewString(),
			Type:            t,
			Word:            q.Word,
			Prompt:          q.Prompt,
			Choices:         choices,
			CorrectChoiceID: choiceIDs[q.CorrectIndex],
		})
	}
	return out, nil
}

type clozeSectionOutput struct {
	Questions []struct {
		Word          string `json:"word"`
		Sentence      string `json:"sentence"`
		Translation   string `json:"translation"`
		CorrectAnswer string `json:"correct_answer"`
	} `json:"questions"`
}

func parseClozeSection(content json.RawMessage, difficulty quiz.Difficulty) ([]quiz.Question, error) {
	var raw clozeSectionOutput
	if err := json.Unmarshal(content, &raw); err != nil {
		return nil, fmt.Errorf("parse cloze section: %w", err)
	}

	out := make([]quiz.Question, 0, len(raw.Questions))
	for i, q := range raw.Questions {
		if q.CorrectAnswer == "" {
			return nil, fmt.Errorf("question %d: empty correct_answer", i+1)
		}
		question := quiz.Question{
			ID:            uuid.NewString(),
			Type:          quiz.TypeClozeFill,
			Word:          q.Word,
			Prompt:        q.Translation,
			Sentence:      q.Sentence,
			Translation:   q.Translation,
			CorrectAnswer: q.CorrectAnswer,
		}
		// The highest tier practices without the first-letter crutch.
		if difficulty != quiz.DifficultyAdvanced {
			question.Hint = evaluate.FirstLetterHint(q.CorrectAnswer)
		}
		out = append(out, question)
	}
	return out, nil
}
