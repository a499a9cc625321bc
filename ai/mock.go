package ai

import (
	"context"
	"sync"

	"github.com/mindscape-ai/mindscape/domain"
)

// MockProvider is a configurable provider for testing. Set the response
// fields to control what each method returns; calls are recorded for
// assertions. Safe for concurrent use.
type MockProvider struct {
	mu sync.Mutex

	SummarizeResponse  string
	SummarizeError     error
	ConfidenceResponse domain.Confidence
	ConfidenceError    error
	// ContradictionResponse nil means "undecided", which makes the core fall
	// back to the negation heuristic.
	ContradictionResponse *bool
	ContradictionError    error
	EntitiesResponse      []domain.Entity
	EntitiesError         error
	ChatResponse          string
	ChatError             error

	SummarizeCalls     []string
	SummarizeOpts      []domain.SummarizeOptions
	ConfidenceCalls    []string
	ContradictionCalls []struct{ A, B string }
	EntitiesCalls      []string
	ChatCalls          [][]domain.ChatMessage
}

func NewMockProvider() *MockProvider {
	return &MockProvider{
		SummarizeResponse:  "Mock summary",
		ConfidenceResponse: domain.Confidence{Min: 0.4, Max: 0.8, Mean: 0.6},
		ChatResponse:       "Mock response",
	}
}

func (m *MockProvider) Summarize(ctx context.Context, content string, opts domain.SummarizeOptions) (string, error) {
	m.mu.Lock()
	m.SummarizeCalls = append(m.SummarizeCalls, content)
	m.SummarizeOpts = append(m.SummarizeOpts, opts)
	m.mu.Unlock()
	if m.SummarizeError != nil {
		return "", m.SummarizeError
	}
	return m.SummarizeResponse, nil
}

func (m *MockProvider) ScoreEpistemicConfidence(ctx context.Context, claim, claimCtx string) (domain.Confidence, error) {
	m.mu.Lock()
	m.ConfidenceCalls = append(m.ConfidenceCalls, claim)
	m.mu.Unlock()
	if m.ConfidenceError != nil {
		return domain.Confidence{}, m.ConfidenceError
	}
	return m.ConfidenceResponse, nil
}

func (m *MockProvider) DetectContradiction(ctx context.Context, a, b string) (*bool, error) {
	m.mu.Lock()
	m.ContradictionCalls = append(m.ContradictionCalls, struct{ A, B string }{a, b})
	m.mu.Unlock()
	if m.ContradictionError != nil {
		return nil, m.ContradictionError
	}
	return m.ContradictionResponse, nil
}

func (m *MockProvider) ExtractEntities(ctx context.Context, text string) ([]domain.Entity, error) {
	m.mu.Lock()
	m.EntitiesCalls = append(m.EntitiesCalls, text)
	m.mu.Unlock()
	if m.EntitiesError != nil {
		return nil, m.EntitiesError
	}
	return m.EntitiesResponse, nil
}

func (m *MockProvider) Chat(ctx context.Context, messages []domain.ChatMessage, opts domain.ChatOptions) (string, error) {
	m.mu.Lock()
	m.ChatCalls = append(m.ChatCalls, messages)
	m.mu.Unlock()
	if m.ChatError != nil {
		return "", m.ChatError
	}
	return m.ChatResponse, nil
}

// Reset clears recorded calls and restores default responses.
func (m *MockProvider) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SummarizeResponse = "Mock summary"
	m.SummarizeError = nil
	m.ConfidenceResponse = domain.Confidence{Min: 0.4, Max: 0.8, Mean: 0.6}
	m.ConfidenceError = nil
	m.ContradictionResponse = nil
	m.ContradictionError = nil
	m.EntitiesResponse = nil
	m.EntitiesError = nil
	m.ChatResponse = "Mock response"
	m.ChatError = nil
	m.SummarizeCalls = nil
	m.SummarizeOpts = nil
	m.ConfidenceCalls = nil
	m.ContradictionCalls = nil
	m.EntitiesCalls = nil
	m.ChatCalls = nil
}

var _ domain.AIProvider = (*MockProvider)(nil)
