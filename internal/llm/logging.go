package llm

import (
	"context"
	"fmt"
	"os"
	"time"
)

// RequestLog captures one model call for persistent bookkeeping.
type RequestLog struct {
	Provider     string
	Model        string
	Purpose      string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
}

// RequestLogger persists RequestLog entries. The local progress store
// implements this.
type RequestLogger interface {
	AppendRequestLog(ctx context.Context, entry RequestLog) error
}

// LoggingProvider is a decorator that records every model call.
type LoggingProvider struct {
	inner  Provider
	logger RequestLogger
}

// WithLogging wraps a Provider with request logging.
func WithLogging(p Provider, logger RequestLogger) Provider {
	return &LoggingProvider{inner: p, logger: logger}
}

func (l *LoggingProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	resp, err := l.inner.Generate(ctx, req)

	entry := RequestLog{
		Provider:  l.inner.ModelID(),
		Model:     l.inner.ModelID(),
		Purpose:   PurposeFrom(ctx),
		LatencyMs: time.Since(start).Milliseconds(),
		Success:   err == nil,
	}
	if resp != nil {
		entry.InputTokens = resp.Usage.InputTokens
		entry.OutputTokens = resp.Usage.OutputTokens
		entry.Model = resp.Model
	}
	if err != nil {
		entry.ErrorMessage = err.Error()
	}

	// Log the call but never fail the request over a logging error.
	if logErr := l.logger.AppendRequestLog(ctx, entry); logErr != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to log model request: %v\n", logErr)
	}

	return resp, err
}

func (l *LoggingProvider) ModelID() string {
	return l.inner.ModelID()
}
