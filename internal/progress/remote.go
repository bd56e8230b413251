package progress

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/abhisek/wordiz/internal/quiz"
)

// Remote is the Store backed by the hosted history service. All calls
// are scoped to the caller's identity via the bearer token.
type Remote struct {
	baseURL string
	token   string
	client  *http.Client
}

var _ Store = (*Remote)(nil)

// NewRemote creates a Remote store client.
func NewRemote(baseURL, token string) *Remote {
	return &Remote{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type createRequest struct {
	Difficulty  quiz.Difficulty  `json:"difficulty"`
	Words       []string         `json:"words"`
	Questions   quiz.QuestionSet `json:"questions"`
	WordDetails json.RawMessage  `json:"wordDetails,omitempty"`
}

func (r *Remote) CreateInProgress(ctx context.Context, difficulty quiz.Difficulty, words []string, set quiz.QuestionSet, details json.RawMessage) (Created, error) {
	var out Created
	body := createRequest{Difficulty: difficulty, Words: words, Questions: set, WordDetails: details}
	if err := r.do(ctx, http.MethodPost, "/v1/progress", body, &out); err != nil {
		return Created{}, err
	}
	return out, nil
}

type saveAnswerRequest struct {
	Answer   quiz.AnswerRecord `json:"answer"`
	NewIndex int               `json:"newIndex"`
}

func (r *Remote) SaveAnswer(ctx context.Context, id string, rec quiz.AnswerRecord, newIndex int) error {
	path := "/v1/progress/" + url.PathEscape(id) + "/answers"
	return r.do(ctx, http.MethodPost, path, saveAnswerRequest{Answer: rec, NewIndex: newIndex}, nil)
}

func (r *Remote) ListInProgress(ctx context.Context) ([]Summary, error) {
	var out []Summary
	if err := r.do(ctx, http.MethodGet, "/v1/progress?status=in_progress", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Remote) GetForResume(ctx context.Context, id string) (*SessionSnapshot, error) {
	var snap SessionSnapshot
	if err := r.do(ctx, http.MethodGet, "/v1/progress/"+url.PathEscape(id), nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (r *Remote) Delete(ctx context.Context, id string) (bool, error) {
	err := r.do(ctx, http.MethodDelete, "/v1/progress/"+url.PathEscape(id), nil, nil)
	if err == ErrNotFound {
		// Idempotent: deleting an absent session is not a failure.
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

type updateQuestionsRequest struct {
	Questions quiz.QuestionSet `json:"questions"`
}

func (r *Remote) UpdateQuestionSet(ctx context.Context, id string, set quiz.QuestionSet) error {
	path := "/v1/progress/" + url.PathEscape(id) + "/questions"
	return r.do(ctx, http.MethodPut, path, updateQuestionsRequest{Questions: set}, nil)
}

func (r *Remote) SaveAnalysis(ctx context.Context, id string, a quiz.Analysis) error {
	path := "/v1/progress/" + url.PathEscape(id) + "/analysis"
	return r.do(ctx, http.MethodPut, path, a, nil)
}

// do performs one JSON round-trip. A 404 maps to ErrNotFound so callers
// can distinguish a missing session from transport failures.
func (r *Remote) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode >= 400:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, msg)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
