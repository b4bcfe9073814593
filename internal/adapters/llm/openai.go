// Package llm provides the chat-provider abstraction: one contract over
// backends with two distinct wire shapes. Providers taking a flat
// ordered message list (OpenAI and compatibles) go through
// OpenAICompatProvider; providers with a dedicated system field go
// through AnthropicProvider. Selection happens once, at Build time.
package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/framehook/captiond/internal/core/domain"
)

// OpenAICompatProvider serves every backend speaking the chat
// completions wire format: OpenAI, Groq, Together, OpenRouter.
type OpenAICompatProvider struct {
	name   string
	client *openai.Client
	model  string
}

func NewOpenAICompatProvider(name, apiKey, model, baseURL string) *OpenAICompatProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAICompatProvider{
		name:   name,
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (p *OpenAICompatProvider) Model() string { return p.model }

// Chat forwards the full ordered list, system role included.
func (p *OpenAICompatProvider) Chat(ctx context.Context, messages []domain.ChatMessage, maxTokens int, temperature float32) (string, error) {
	wireMsgs := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		wireMsgs = append(wireMsgs, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    wireMsgs,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", &domain.ChatAPIError{Provider: p.name, Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &domain.ChatAPIError{Provider: p.name, Err: fmt.Errorf("no choices in response")}
	}
	return resp.Choices[0].Message.Content, nil
}
