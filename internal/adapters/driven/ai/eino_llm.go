package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openaiModel "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/custodia-labs/policy-rag/internal/core/domain"
	"github.com/custodia-labs/policy-rag/internal/core/ports/driven"
)

// Ensure EinoLLM implements LLMService
var _ driven.LLMService = (*EinoLLM)(nil)

// EinoLLM generates answers with an eino chat model.
type EinoLLM struct {
	chat  model.BaseChatModel
	model string
}

// NewEinoLLM builds an OpenAI-compatible eino chat model.
func NewEinoLLM(ctx context.Context, apiKey, modelName, baseURL string, opts LLMOptions) (*EinoLLM, error) {
	if apiKey == "" {
		return nil, errors.New("API key is required")
	}
	if modelName == "" {
		modelName = "gpt-4o-mini"
	}
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}

	cfg := &openaiModel.ChatModelConfig{
		APIKey:      apiKey,
		BaseURL:     baseURL,
		Model:       modelName,
		Temperature: &opts.Temperature,
	}
	if opts.MaxTokens > 0 {
		cfg.MaxTokens = &opts.MaxTokens
	}

	chat, err := openaiModel.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create eino chat model: %w", err)
	}
	return NewEinoLLMFrom(chat, modelName), nil
}

// NewEinoLLMFrom wraps an existing chat model
func NewEinoLLMFrom(chat model.BaseChatModel, modelName string) *EinoLLM {
	return &EinoLLM{chat: chat, model: modelName}
}

// Generate sends the system prompt and the context-plus-question user turn
func (l *EinoLLM) Generate(ctx context.Context, req driven.GenerationRequest) (string, error) {
	msg, err := l.chat.Generate(ctx, []*schema.Message{
		schema.SystemMessage(req.SystemPrompt),
		schema.UserMessage(userPrompt(req)),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrGenerationFailure, err)
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return "", fmt.Errorf("%w: empty completion", domain.ErrGenerationFailure)
	}
	return strings.TrimSpace(msg.Content), nil
}

func (l *EinoLLM) Model() string { return l.model }

// Ping asks the model for a one-word reply
func (l *EinoLLM) Ping(ctx context.Context) error {
	if _, err := l.chat.Generate(ctx, []*schema.Message{schema.UserMessage("ping")}); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrServiceUnavailable, err)
	}
	return nil
}

func (l *EinoLLM) Close() error { return nil }
