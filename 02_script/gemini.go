package script

import (
	"context"
	"fmt"
	"strings"

	"github.com/synapsedaili/youtube-automation/config"
	"github.com/synapsedaili/youtube-automation/types"
	"google.golang.org/genai"
)

// GeminiStrategy generates narration with the Gemini API.
type GeminiStrategy struct {
	client *genai.Client
	cfg    config.ProviderConfig
}

func NewGeminiStrategy(ctx context.Context, cfg config.ProviderConfig, apiKey string) (*GeminiStrategy, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: gemini client: %w", types.ErrConfiguration, err)
	}
	return &GeminiStrategy{client: client, cfg: cfg}, nil
}

func (s *GeminiStrategy) Name() string { return "gemini:" + s.cfg.Model }

func (s *GeminiStrategy) Generate(ctx context.Context, topic string, mode types.ModeProfile) (string, error) {
	genCfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr(s.cfg.Temperature),
		MaxOutputTokens:   int32(maxTokensFor(mode, s.cfg.MaxTokens)),
	}
	resp, err := s.client.Models.GenerateContent(ctx, s.cfg.Model, genai.Text(buildUserPrompt(topic, mode)), genCfg)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", types.ErrGeneration, s.Name(), err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("%w: %s returned no text", types.ErrGeneration, s.Name())
	}
	return text, nil
}
