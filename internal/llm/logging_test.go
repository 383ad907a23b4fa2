package llm

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/skillway/internal/logger"
	syncx "github.com/mind-engage/skillway/internal/sync"
)

func TestLoggingRecordsEveryAttempt(t *testing.T) {
	events := &syncx.MemoryLog{}
	mock := NewMockProvider(MockResponse{Err: upstream(503)}, MockResponse{Text: "ok"})
	p := WithRetry(WithLogging(mock, logger.Nop(), events), fastPolicy())

	ctx := WithPurpose(context.Background(), "manual-test")
	_, err := p.Generate(ctx, UserPrompt("", "x"))
	require.NoError(t, err)

	got := events.Events(syncx.TypeLLMRequest)
	require.Len(t, got, 2)
	assert.Equal(t, "manual-test", got[0].Key)

	var first, second requestEvent
	require.NoError(t, json.Unmarshal(got[0].Data, &first))
	require.NoError(t, json.Unmarshal(got[1].Data, &second))
	assert.False(t, first.Success)
	assert.Equal(t, 503, first.Status)
	assert.True(t, second.Success)
	assert.Equal(t, "mock", second.Model)
}

func TestMockFallback(t *testing.T) {
	m := &MockProvider{Fallback: "canned"}
	resp, err := m.Generate(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "canned", resp.Text)

	_, err = NewMockProvider().Generate(context.Background(), Request{})
	assert.Equal(t, 503, StatusOf(err))
}

func TestPurposeDefault(t *testing.T) {
	assert.Equal(t, "unknown", PurposeFrom(context.Background()))
}
