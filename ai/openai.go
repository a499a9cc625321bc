package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/mindscape-ai/mindscape/domain"
)

const (
	openAIChatURL = "https://api.openai.com/v1/chat/completions"
	chatModel     = "gpt-4o-mini"
)

// OpenAIProvider implements the provider contract over the chat completions
// API.
type OpenAIProvider struct {
	apiKey     string
	httpClient *http.Client
}

func NewOpenAIProvider(apiKey string) *OpenAIProvider {
	return &OpenAIProvider{
		apiKey:     apiKey,
		httpClient: &http.Client{},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (p *OpenAIProvider) complete(ctx context.Context, messages []chatMessage, temp float64) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       chatModel,
		Messages:    messages,
		Temperature: temp,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, openAIChatURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read chat response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat API returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var result chatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("unmarshal chat response: %w", err)
	}

	if result.Error != nil {
		return "", fmt.Errorf("chat API error: %s", result.Error.Message)
	}

	if len(result.Choices) == 0 {
		return "", fmt.Errorf("chat API returned no choices")
	}

	return strings.TrimSpace(result.Choices[0].Message.Content), nil
}

func stripFences(s string) string {
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func (p *OpenAIProvider) Summarize(ctx context.Context, content string, opts domain.SummarizeOptions) (string, error) {
	target := opts.TargetCompression
	if target <= 0 || target > 1 {
		target = 0.4
	}
	pct := int(target * 100)

	var prompt string
	if opts.DeltaMode && opts.PreviousSummary != "" {
		prompt = fmt.Sprintf(summarizeDeltaPrompt, opts.PreviousSummary, pct, content)
	} else {
		prompt = fmt.Sprintf(summarizePrompt, pct, content)
	}

	out, err := p.complete(ctx, []chatMessage{{Role: "user", Content: prompt}}, 0.3)
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	return out, nil
}

func (p *OpenAIProvider) ScoreEpistemicConfidence(ctx context.Context, claim, claimCtx string) (domain.Confidence, error) {
	prompt := fmt.Sprintf(confidencePrompt, claim, claimCtx)
	out, err := p.complete(ctx, []chatMessage{{Role: "user", Content: prompt}}, 0.1)
	if err != nil {
		return domain.Confidence{}, fmt.Errorf("score confidence: %w", err)
	}

	var c domain.Confidence
	if err := json.Unmarshal([]byte(stripFences(out)), &c); err != nil {
		return domain.Confidence{}, fmt.Errorf("parse confidence result: %w (raw: %s)", err, out)
	}
	if !c.Valid() {
		return domain.Confidence{}, fmt.Errorf("confidence interval out of order: %+v", c)
	}
	return c, nil
}

func (p *OpenAIProvider) DetectContradiction(ctx context.Context, a, b string) (*bool, error) {
	prompt := fmt.Sprintf(contradictionPrompt, a, b)
	out, err := p.complete(ctx, []chatMessage{{Role: "user", Content: prompt}}, 0.0)
	if err != nil {
		return nil, fmt.Errorf("detect contradiction: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(out)) {
	case "true":
		v := true
		return &v, nil
	case "false":
		v := false
		return &v, nil
	default:
		// Undecided; caller falls back to the heuristic.
		return nil, nil
	}
}

func (p *OpenAIProvider) ExtractEntities(ctx context.Context, text string) ([]domain.Entity, error) {
	prompt := fmt.Sprintf(entitiesPrompt, text)
	out, err := p.complete(ctx, []chatMessage{{Role: "user", Content: prompt}}, 0.1)
	if err != nil {
		return nil, fmt.Errorf("extract entities: %w", err)
	}

	var entities []domain.Entity
	if err := json.Unmarshal([]byte(stripFences(out)), &entities); err != nil {
		return nil, fmt.Errorf("parse entities result: %w (raw: %s)", err, out)
	}
	return entities, nil
}

func (p *OpenAIProvider) Chat(ctx context.Context, messages []domain.ChatMessage, opts domain.ChatOptions) (string, error) {
	msgs := make([]chatMessage, 0, len(messages)+1)
	if opts.System != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: opts.System})
	}
	for _, m := range messages {
		msgs = append(msgs, chatMessage{Role: m.Role, Content: m.Content})
	}
	return p.complete(ctx, msgs, opts.Temperature)
}

var _ domain.AIProvider = (*OpenAIProvider)(nil)
