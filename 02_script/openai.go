package script

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/synapsedaili/youtube-automation/config"
	"github.com/synapsedaili/youtube-automation/types"
)

// OpenAIStrategy talks to any OpenAI-compatible chat completion endpoint.
// With the default base URL it is Groq running Llama 3.
type OpenAIStrategy struct {
	client *openai.Client
	cfg    config.ProviderConfig
}

// NewOpenAIStrategy creates a strategy for the provider's base URL and key.
func NewOpenAIStrategy(cfg config.ProviderConfig, apiKey string) *OpenAIStrategy {
	clientCfg := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	timeout := 60 * time.Second
	if cfg.TimeoutSec > 0 {
		timeout = time.Duration(cfg.TimeoutSec) * time.Second
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}
	return &OpenAIStrategy{client: openai.NewClientWithConfig(clientCfg), cfg: cfg}
}

func (s *OpenAIStrategy) Name() string { return "openai:" + s.cfg.Model }

func (s *OpenAIStrategy) Generate(ctx context.Context, topic string, mode types.ModeProfile) (string, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildUserPrompt(topic, mode)},
		},
		Temperature:      s.cfg.Temperature,
		MaxTokens:        maxTokensFor(mode, s.cfg.MaxTokens),
		FrequencyPenalty: repetitionToFrequency(s.cfg.RepetitionPenalty),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", types.ErrGeneration, s.Name(), err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: %s returned no choices", types.ErrGeneration, s.Name())
	}
	text := resp.Choices[0].Message.Content
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: %s returned no text", types.ErrGeneration, s.Name())
	}
	return text, nil
}

// repetitionToFrequency maps a HF-style repetition penalty (1.0 = none)
// onto OpenAI's frequency penalty range.
func repetitionToFrequency(p float32) float32 {
	if p <= 1 {
		return 0
	}
	f := (p - 1) * 2
	if f > 2 {
		f = 2
	}
	return f
}
