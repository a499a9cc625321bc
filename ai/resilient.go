package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mindscape-ai/mindscape/domain"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// Resilient wraps a provider with a token-bucket rate limiter and a circuit
// breaker. An open breaker or an exhausted limiter surfaces as
// ErrAIUnavailable so callers take their deterministic fallbacks instead of
// hammering a failing provider.
type Resilient struct {
	inner   domain.AIProvider
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

// ResilientConfig tunes the wrapper. Zero values fall back to defaults.
type ResilientConfig struct {
	RPS              float64
	Burst            int
	BreakerThreshold uint32
	BreakerCooldown  time.Duration
}

func NewResilient(inner domain.AIProvider, cfg ResilientConfig) *Resilient {
	if cfg.RPS <= 0 {
		cfg.RPS = 10
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}
	if cfg.BreakerThreshold == 0 {
		cfg.BreakerThreshold = 5
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = 30 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ai-provider",
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerThreshold
		},
	})

	return &Resilient{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst),
		breaker: breaker,
	}
}

func (r *Resilient) call(ctx context.Context, fn func() (any, error)) (any, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limit: %v", domain.ErrAIUnavailable, err)
	}
	out, err := r.breaker.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: circuit open", domain.ErrAIUnavailable)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrAIUnavailable, err)
	}
	return out, nil
}

func (r *Resilient) Summarize(ctx context.Context, content string, opts domain.SummarizeOptions) (string, error) {
	out, err := r.call(ctx, func() (any, error) {
		return r.inner.Summarize(ctx, content, opts)
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

func (r *Resilient) ScoreEpistemicConfidence(ctx context.Context, claim, claimCtx string) (domain.Confidence, error) {
	out, err := r.call(ctx, func() (any, error) {
		return r.inner.ScoreEpistemicConfidence(ctx, claim, claimCtx)
	})
	if err != nil {
		return domain.Confidence{}, err
	}
	return out.(domain.Confidence), nil
}

func (r *Resilient) DetectContradiction(ctx context.Context, a, b string) (*bool, error) {
	out, err := r.call(ctx, func() (any, error) {
		return r.inner.DetectContradiction(ctx, a, b)
	})
	if err != nil {
		return nil, err
	}
	return out.(*bool), nil
}

func (r *Resilient) ExtractEntities(ctx context.Context, text string) ([]domain.Entity, error) {
	out, err := r.call(ctx, func() (any, error) {
		return r.inner.ExtractEntities(ctx, text)
	})
	if err != nil {
		return nil, err
	}
	return out.([]domain.Entity), nil
}

func (r *Resilient) Chat(ctx context.Context, messages []domain.ChatMessage, opts domain.ChatOptions) (string, error) {
	out, err := r.call(ctx, func() (any, error) {
		return r.inner.Chat(ctx, messages, opts)
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

var _ domain.AIProvider = (*Resilient)(nil)
