// Package ai implements the provider contract the core degrades against:
// a real chat-completions client, a configurable mock, and a resilience
// wrapper combining rate limiting with a circuit breaker.
package ai

import (
	"fmt"

	"github.com/mindscape-ai/mindscape/domain"
)

const (
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"
)

// NewProvider creates an AI provider by name. The API key is required for
// every provider except mock.
func NewProvider(provider, apiKey string) (domain.AIProvider, error) {
	switch provider {
	case ProviderOpenAI:
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for OpenAI provider")
		}
		return NewOpenAIProvider(apiKey), nil

	case ProviderMock:
		return NewMockProvider(), nil

	default:
		return nil, fmt.Errorf("unknown AI provider: %s (valid options: openai, mock)", provider)
	}
}
