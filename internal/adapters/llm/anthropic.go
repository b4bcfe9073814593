package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/framehook/captiond/internal/core/domain"
)

const (
	anthropicBaseURL = "https://api.anthropic.com"
	anthropicVersion = "2023-06-01"
)

// AnthropicProvider speaks the Messages API, whose wire format carries
// the system prompt in a dedicated field instead of the ordered list.
type AnthropicProvider struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

func NewAnthropicProvider(apiKey, model string) *AnthropicProvider {
	return &AnthropicProvider{
		client:  &http.Client{Timeout: 60 * time.Second},
		baseURL: anthropicBaseURL,
		apiKey:  apiKey,
		model:   model,
	}
}

func (p *AnthropicProvider) Model() string { return p.model }

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float32            `json:"temperature"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

// Chat extracts the system message, filters it out of the ordered list,
// and sends the remainder in original order.
func (p *AnthropicProvider) Chat(ctx context.Context, messages []domain.ChatMessage, maxTokens int, temperature float32) (string, error) {
	system := domain.SystemMessage(messages)

	filtered := domain.WithoutSystem(messages)
	wireMsgs := make([]anthropicMessage, 0, len(filtered))
	for _, m := range filtered {
		wireMsgs = append(wireMsgs, anthropicMessage{Role: m.Role, Content: m.Content})
	}

	payload, err := json.Marshal(anthropicRequest{
		Model:       p.model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		System:      system,
		Messages:    wireMsgs,
	})
	if err != nil {
		return "", &domain.ChatAPIError{Provider: "anthropic", Err: fmt.Errorf("failed to marshal payload: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return "", &domain.ChatAPIError{Provider: "anthropic", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", &domain.ChatAPIError{Provider: "anthropic", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &domain.ChatAPIError{
			Provider: "anthropic",
			Err:      fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(detail)),
		}
	}

	var parsed anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", &domain.ChatAPIError{Provider: "anthropic", Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	if len(parsed.Content) == 0 {
		return "", &domain.ChatAPIError{Provider: "anthropic", Err: fmt.Errorf("empty content in response")}
	}
	return parsed.Content[0].Text, nil
}
