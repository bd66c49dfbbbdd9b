package audio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/synapsedaili/youtube-automation/config"
	"github.com/synapsedaili/youtube-automation/types"
)

// NewEngine builds the configured TTS engine.
func NewEngine(cfg config.AudioConfig) (Engine, error) {
	switch cfg.Engine {
	case "elevenlabs":
		key := os.Getenv(cfg.ElevenLabsKeyEnv)
		if key == "" {
			return nil, fmt.Errorf("%w: %s is not set", types.ErrConfiguration, cfg.ElevenLabsKeyEnv)
		}
		return NewElevenLabsEngine(key, cfg.ElevenLabsVoice), nil
	case "command":
		if cfg.Command == "" && os.Getenv("TTS_COMMAND") == "" {
			return nil, fmt.Errorf("%w: audio.command is required for the command engine", types.ErrConfiguration)
		}
		return NewCommandEngine(cfg.Command)
	default:
		return NewCommandEngine(cfg.Command)
	}
}

// NewFallbackEngine builds the engine named by cfg.FallbackEngine. It returns
// nil when no fallback is configured or it matches the primary engine.
func NewFallbackEngine(cfg config.AudioConfig) (Engine, error) {
	if cfg.FallbackEngine == "" || cfg.FallbackEngine == cfg.Engine {
		return nil, nil
	}
	fb := cfg
	fb.Engine = cfg.FallbackEngine
	if fb.Engine == "edge-tts" {
		fb.Command = ""
	}
	return NewEngine(fb)
}

// CommandEngine shells out to a TTS binary. "edge-tts" gets its own flag
// set; anything else is called as `<cmd> --text ... --output ...`, with
// .py scripts run through python3.
type CommandEngine struct {
	Command string
}

// NewCommandEngine resolves the TTS command. An explicit command (or the
// TTS_COMMAND env var) wins; otherwise edge-tts must be on PATH.
func NewCommandEngine(command string) (*CommandEngine, error) {
	if command == "" {
		command = os.Getenv("TTS_COMMAND")
	}
	if command == "" {
		if _, err := exec.LookPath("edge-tts"); err != nil {
			return nil, fmt.Errorf("%w: no TTS engine found. Set TTS_COMMAND or install edge-tts: pip install edge-tts", types.ErrConfiguration)
		}
		command = "edge-tts"
	}
	return &CommandEngine{Command: strings.TrimSpace(command)}, nil
}

func (e *CommandEngine) Name() string { return e.Command }

func (e *CommandEngine) Synthesize(ctx context.Context, text, voice, outFile string) error {
	name, args := e.args(text, voice, outFile)
	// A fresh Cmd per call; an exec.Cmd cannot be run twice.
	return runQuiet(exec.CommandContext(ctx, name, args...))
}

func (e *CommandEngine) args(text, voice, outFile string) (string, []string) {
	switch {
	case e.Command == "edge-tts":
		if voice == "" {
			voice = "en-US-GuyNeural"
		}
		return "edge-tts", []string{"--voice", voice, "--text", text, "--write-media", outFile}
	case strings.HasSuffix(e.Command, ".py"):
		return "python3", []string{e.Command, "--text", text, "--output", outFile}
	default:
		return e.Command, []string{"--text", text, "--output", outFile}
	}
}

const (
	elevenLabsBaseURL      = "https://api.elevenlabs.io"
	elevenLabsDefaultModel = "eleven_flash_v2_5"
	elevenLabsDefaultVoice = "pNInz6obpgDQGcFmaJgB"
	elevenLabsOutputFormat = "mp3_44100_128"
)

// ElevenLabsEngine converts text to speech with the ElevenLabs REST API.
type ElevenLabsEngine struct {
	apiKey  string
	voiceID string
	modelID string
	baseURL string
	client  *http.Client
}

func NewElevenLabsEngine(apiKey, voiceID string) *ElevenLabsEngine {
	if voiceID == "" {
		voiceID = elevenLabsDefaultVoice
	}
	return &ElevenLabsEngine{
		apiKey:  apiKey,
		voiceID: voiceID,
		modelID: elevenLabsDefaultModel,
		baseURL: elevenLabsBaseURL,
		client:  &http.Client{Timeout: 90 * time.Second},
	}
}

type elevenLabsRequest struct {
	Text          string                   `json:"text"`
	ModelID       string                   `json:"model_id"`
	VoiceSettings *elevenLabsVoiceSettings `json:"voice_settings,omitempty"`
}

type elevenLabsVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style,omitempty"`
	UseSpeakerBoost bool    `json:"use_speaker_boost,omitempty"`
}

func (e *ElevenLabsEngine) Name() string { return "elevenlabs" }

// Synthesize ignores the edge-tts voice name; ElevenLabs uses its own voice ids.
func (e *ElevenLabsEngine) Synthesize(ctx context.Context, text, _ string, outFile string) error {
	body, err := json.Marshal(elevenLabsRequest{
		Text:    text,
		ModelID: e.modelID,
		VoiceSettings: &elevenLabsVoiceSettings{
			Stability:       0.60,
			SimilarityBoost: 0.80,
			Style:           0.35,
			UseSpeakerBoost: true,
		},
	})
	if err != nil {
		return fmt.Errorf("marshal elevenlabs request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s?output_format=%s", e.baseURL, e.voiceID, elevenLabsOutputFormat)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("elevenlabs request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("elevenlabs returned status %d: %s", resp.StatusCode, msg)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read elevenlabs audio: %w", err)
	}
	if len(data) == 0 {
		return fmt.Errorf("elevenlabs returned empty audio")
	}
	return os.WriteFile(outFile, data, 0644)
}
