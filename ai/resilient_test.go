package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mindscape-ai/mindscape/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResilient_PassesThrough(t *testing.T) {
	mock := NewMockProvider()
	mock.SummarizeResponse = "condensed"

	r := NewResilient(mock, ResilientConfig{RPS: 100, Burst: 10})

	out, err := r.Summarize(context.Background(), "long text", domain.SummarizeOptions{TargetCompression: 0.4})
	require.NoError(t, err)
	assert.Equal(t, "condensed", out)
	assert.Len(t, mock.SummarizeCalls, 1)
}

func TestResilient_WrapsProviderErrors(t *testing.T) {
	mock := NewMockProvider()
	mock.ConfidenceError = errors.New("upstream 500")

	r := NewResilient(mock, ResilientConfig{RPS: 100, Burst: 10})

	_, err := r.ScoreEpistemicConfidence(context.Background(), "claim", "")
	assert.ErrorIs(t, err, domain.ErrAIUnavailable)
}

func TestResilient_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	mock := NewMockProvider()
	mock.ChatError = errors.New("timeout")

	r := NewResilient(mock, ResilientConfig{
		RPS:              1000,
		Burst:            100,
		BreakerThreshold: 3,
		BreakerCooldown:  time.Minute,
	})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := r.Chat(ctx, []domain.ChatMessage{{Role: "user", Content: "hi"}}, domain.ChatOptions{})
		assert.ErrorIs(t, err, domain.ErrAIUnavailable)
	}

	// Breaker is now open; the inner provider must not be reached.
	before := len(mock.ChatCalls)
	_, err := r.Chat(ctx, []domain.ChatMessage{{Role: "user", Content: "hi"}}, domain.ChatOptions{})
	assert.ErrorIs(t, err, domain.ErrAIUnavailable)
	assert.Equal(t, before, len(mock.ChatCalls), "open breaker should short-circuit")
}

func TestResilient_RateLimitRespectsCancelledContext(t *testing.T) {
	mock := NewMockProvider()
	// Burst 1 with tiny refill: the second call must wait, and a cancelled
	// context turns the wait into ErrAIUnavailable.
	r := NewResilient(mock, ResilientConfig{RPS: 0.001, Burst: 1})

	ctx := context.Background()
	_, err := r.Chat(ctx, nil, domain.ChatOptions{})
	require.NoError(t, err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = r.Chat(cancelled, nil, domain.ChatOptions{})
	assert.ErrorIs(t, err, domain.ErrAIUnavailable)
}

func TestNewProvider(t *testing.T) {
	p, err := NewProvider(ProviderMock, "")
	require.NoError(t, err)
	assert.NotNil(t, p)

	_, err = NewProvider(ProviderOpenAI, "")
	assert.Error(t, err)

	_, err = NewProvider("unknown", "key")
	assert.Error(t, err)
}
