package script

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/synapsedaili/youtube-automation/config"
	"github.com/synapsedaili/youtube-automation/types"
)

const huggingFaceBaseURL = "https://api-inference.huggingface.co"

// HuggingFaceStrategy calls the Inference API text-generation task.
type HuggingFaceStrategy struct {
	cfg        config.ProviderConfig
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewHuggingFaceStrategy(cfg config.ProviderConfig, apiKey string) *HuggingFaceStrategy {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = huggingFaceBaseURL
	}
	timeout := 180 * time.Second
	if cfg.TimeoutSec > 0 {
		timeout = time.Duration(cfg.TimeoutSec) * time.Second
	}
	return &HuggingFaceStrategy{
		cfg:        cfg,
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type hfRequest struct {
	Inputs     string       `json:"inputs"`
	Parameters hfParameters `json:"parameters"`
}

type hfParameters struct {
	MaxNewTokens      int     `json:"max_new_tokens"`
	Temperature       float32 `json:"temperature,omitempty"`
	RepetitionPenalty float32 `json:"repetition_penalty,omitempty"`
	ReturnFullText    bool    `json:"return_full_text"`
}

type hfGeneration struct {
	GeneratedText string `json:"generated_text"`
}

func (s *HuggingFaceStrategy) Name() string { return "huggingface:" + s.cfg.Model }

func (s *HuggingFaceStrategy) Generate(ctx context.Context, topic string, mode types.ModeProfile) (string, error) {
	reqBody := hfRequest{
		Inputs: systemPrompt + "\n\n" + buildUserPrompt(topic, mode) + "\n\nScript:\n",
		Parameters: hfParameters{
			MaxNewTokens:      maxTokensFor(mode, s.cfg.MaxTokens),
			Temperature:       s.cfg.Temperature,
			RepetitionPenalty: s.cfg.RepetitionPenalty,
		},
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/models/"+s.cfg.Model, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %s request: %w", types.ErrGeneration, s.Name(), err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %s read: %w", types.ErrGeneration, s.Name(), err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: %w", types.ErrGeneration,
			&statusError{Provider: s.Name(), Code: resp.StatusCode, Body: truncate(string(respBytes), 200)})
	}

	var out []hfGeneration
	if err := json.Unmarshal(respBytes, &out); err != nil {
		return "", fmt.Errorf("%w: parse %s response: %w", types.ErrGeneration, s.Name(), err)
	}
	if len(out) == 0 || strings.TrimSpace(out[0].GeneratedText) == "" {
		return "", fmt.Errorf("%w: %s returned no text", types.ErrGeneration, s.Name())
	}
	return out[0].GeneratedText, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
