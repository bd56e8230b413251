package generation

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

// RemoteService is the Service backed by the hosted generation API.
// The backend runs the models; this client only creates sessions and
// polls their state.
type RemoteService struct {
	baseURL string
	token   string
	client  *http.Client
}

var _ Service = (*RemoteService)(nil)

// NewRemoteService creates a generation API client.
func NewRemoteService(baseURL, token string) *RemoteService {
	return &RemoteService{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type createSessionRequest struct {
	Words      []string        `json:"words"`
	Difficulty quiz.Difficulty `json:"difficulty"`
}

func (r *RemoteService) CreateSession(ctx context.Context, words []string, difficulty quiz.Difficulty) (*quiz.GenerationSession, error) {
	var sess quiz.GenerationSession
	body := createSessionRequest{Words: words, Difficulty: difficulty}
	if err := r.do(ctx, http.MethodPost, "/v1/sessions", body, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (r *RemoteService) GetSession(ctx context.Context, id string) (*quiz.GenerationSession, error) {
	var sess quiz.GenerationSession
	if err := r.do(ctx, http.MethodGet, "/v1/sessions/"+url.PathEscape(id), nil, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

type retrySectionRequest struct {
	Type quiz.QuestionType `json:"type"`
}

func (r *RemoteService) RetrySection(ctx context.Context, id string, t quiz.QuestionType) (*quiz.GenerationSession, error) {
	var sess quiz.GenerationSession
	path := "/v1/sessions/" + url.PathEscape(id) + "/retry"
	if err := r.do(ctx, http.MethodPost, path, retrySectionRequest{Type: t}, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// do performs one JSON round-trip. A 404 maps to ErrSessionNotFound so
// the poller can trigger its history fallback on exactly that case.
func (r *RemoteService) do(ctx context.Context, method, path string, in, out any) error {
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
		return ErrSessionNotFound
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
