package llm

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
)

// MockResponse scripts one Generate outcome for a MockProvider. Either
// Content or Err is consumed, never both.
type MockResponse struct {
	Content json.RawMessage
	Usage   Usage
	Err     error
}

// MockProvider replays a fixed script of responses and records every
// request it saw, so tests can assert on the prompts and schemas the
// quiz components send. A call past the end of the script fails rather
// than inventing content.
type MockProvider struct {
	mu     sync.Mutex
	script []MockResponse
	next   int
	Calls  []Request
}

// NewMockProvider scripts a provider with the given responses in order.
func NewMockProvider(script ...MockResponse) *MockProvider {
	return &MockProvider{script: script}
}

func (m *MockProvider) Generate(_ context.Context, req Request) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, req)

	if m.next >= len(m.script) {
		return nil, &ErrProviderUnavailable{Err: errors.New("mock script exhausted")}
	}
	scripted := m.script[m.next]
	m.next++

	if scripted.Err != nil {
		return nil, scripted.Err
	}
	return &Response{
		Content:    scripted.Content,
		Usage:      scripted.Usage,
		Model:      "mock",
		StopReason: "end",
	}, nil
}

func (m *MockProvider) ModelID() string { return "mock" }

// CallCount reports how many Generate calls were made.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
