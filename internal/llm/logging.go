package llm

import (
	"context"
	"time"

	"github.com/mind-engage/skillway/internal/logger"
	syncx "github.com/mind-engage/skillway/internal/sync"
)

type contextKey string

const purposeKey contextKey = "llm_purpose"

// WithPurpose labels the calls made with ctx in logs and audit events.
func WithPurpose(ctx context.Context, purpose string) context.Context {
	return context.WithValue(ctx, purposeKey, purpose)
}

func PurposeFrom(ctx context.Context) string {
	if v, ok := ctx.Value(purposeKey).(string); ok {
		return v
	}
	return "unknown"
}

type requestEvent struct {
	Model        string `json:"model"`
	Purpose      string `json:"purpose"`
	LatencyMs    int64  `json:"latencyMs"`
	Success      bool   `json:"success"`
	Status       int    `json:"status,omitempty"`
	InputTokens  int    `json:"inputTokens,omitempty"`
	OutputTokens int    `json:"outputTokens,omitempty"`
	StopReason   string `json:"stopReason,omitempty"`
	Error        string `json:"error,omitempty"`
}

// LoggingProvider records every call in the structured log and, when an
// Appender is set, in the audit event log.
type LoggingProvider struct {
	inner  Provider
	log    *logger.Logger
	events syncx.Appender
}

func WithLogging(p Provider, log *logger.Logger, events syncx.Appender) Provider {
	return &LoggingProvider{inner: p, log: log.With("component", "llm", "model", p.ModelID()), events: events}
}

func (l *LoggingProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	resp, err := l.inner.Generate(ctx, req)

	ev := requestEvent{
		Model:     l.inner.ModelID(),
		Purpose:   PurposeFrom(ctx),
		LatencyMs: time.Since(start).Milliseconds(),
		Success:   err == nil,
	}
	if resp != nil {
		ev.Model = resp.Model
		ev.InputTokens = resp.Usage.InputTokens
		ev.OutputTokens = resp.Usage.OutputTokens
		ev.StopReason = resp.StopReason
	}
	if err != nil {
		ev.Error = err.Error()
		ev.Status = StatusOf(err)
		l.log.Warn("llm call failed", "purpose", ev.Purpose, "latency_ms", ev.LatencyMs, "status", ev.Status, "error", err)
	} else {
		l.log.Info("llm call", "purpose", ev.Purpose, "latency_ms", ev.LatencyMs,
			"input_tokens", ev.InputTokens, "output_tokens", ev.OutputTokens, "stop", ev.StopReason)
	}

	if l.events != nil {
		// Record the call even when the request was cancelled.
		if logErr := l.events.Append(context.WithoutCancel(ctx), syncx.TypeLLMRequest, ev.Purpose, ev); logErr != nil {
			l.log.Error("append llm event", "error", logErr)
		}
	}
	return resp, err
}

func (l *LoggingProvider) ModelID() string {
	return l.inner.ModelID()
}
