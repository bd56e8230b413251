package llm

import (
	"context"
	"encoding/json"
)

// Provider is the abstraction every AI-backed component (question
// generation, answer analysis) talks to. Consumers call Generate with a
// Request and receive structured JSON.
type Provider interface {
	// Generate sends a prompt to the model and returns a structured
	// response. When the request carries a Schema, the provider uses its
	// native structured-output mechanism and the response Content is the
	// validated JSON.
	Generate(ctx context.Context, req Request) (*Response, error)

	// ModelID returns the model identifier this provider is configured with.
	ModelID() string
}

// Request describes a single model call.
type Request struct {
	// System sets the model's role and constraints.
	System string

	// Messages is the conversation. Wordiz only ever sends single-turn
	// requests, so this is one user message in practice.
	Messages []Message

	// Schema is the JSON Schema the response must conform to. When nil,
	// Content is raw text wrapped as json.RawMessage.
	Schema *Schema

	// MaxTokens bounds the response length.
	MaxTokens int

	// Temperature controls randomness, 0.0 - 1.0. Zero means deterministic.
	Temperature float64
}

// Message is one turn of the conversation.
type Message struct {
	Role    Role
	Content string
}

// Role is the message sender role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Schema defines the JSON structure expected from the model.
type Schema struct {
	// Name identifies this schema (tool name for Anthropic, schema name
	// for OpenAI). Kebab-case, e.g. "quiz-section".
	Name string

	// Description guides the model toward the intended output.
	Description string

	// Definition is the JSON Schema definition as a map.
	Definition map[string]any
}

// Response holds the model's output.
type Response struct {
	// Content is the generated output, validated against the request
	// schema when one was provided.
	Content json.RawMessage

	// Usage reports token consumption for this request.
	Usage Usage

	// Model is the model that actually served the request.
	Model string

	// StopReason is normalized to: "end", "max_tokens", "error".
	StopReason string
}

// Usage tracks token consumption for a single request.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}
