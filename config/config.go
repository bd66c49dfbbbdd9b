package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/synapsedaili/youtube-automation/types"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Paths    PathsConfig           `yaml:"paths"`
	Rotation RotationConfig        `yaml:"rotation"`
	Modes    map[string]ModeConfig `yaml:"modes"`
	Script   ScriptConfig          `yaml:"script"`
	Audio    AudioConfig           `yaml:"audio"`
	Video    VideoConfig           `yaml:"video"`
	Upload   UploadConfig          `yaml:"upload"`
	State    StateConfig           `yaml:"state"`
	Notify   NotifyConfig          `yaml:"notify"`
	Topics   TopicsConfig          `yaml:"topics"`
}

type PathsConfig struct {
	Data       string `yaml:"data"`
	TopicsFile string `yaml:"topics_file"`
	CursorFile string `yaml:"cursor_file"`
	UploadLog  string `yaml:"upload_log"`
	Temp       string `yaml:"temp"`
	Logs       string `yaml:"logs"`
}

type RotationConfig struct {
	// Both is the topic policy for `--mode both`: "shared" or "independent".
	Both string `yaml:"both"`
}

type ModeConfig struct {
	CharBudget     int      `yaml:"char_budget"`
	MaxDurationSec int      `yaml:"max_duration_sec"`
	Width          int      `yaml:"width"`
	Height         int      `yaml:"height"`
	CaptionChars   int      `yaml:"caption_chars"`
	SecondsPerWord float64  `yaml:"seconds_per_word"`
	MinCaptionSec  float64  `yaml:"min_caption_sec"`
	Voice          string   `yaml:"voice"`
	CallToAction   string   `yaml:"call_to_action"`
	CategoryID     string   `yaml:"category_id"`
	Visibility     string   `yaml:"visibility"`
	Tags           []string `yaml:"tags"`
	DescriptionLen int      `yaml:"description_chars"`
	Footer         string   `yaml:"description_footer"`
	// Rotation is "advance" or "peek" for single-mode runs.
	Rotation string `yaml:"rotation"`
}

type ScriptConfig struct {
	MinLength int            `yaml:"min_length"`
	Retry     RetryConfig    `yaml:"retry"`
	Primary   ProviderConfig `yaml:"primary"`
	Secondary ProviderConfig `yaml:"secondary"`
}

type RetryConfig struct {
	MaxAttempts int     `yaml:"max_attempts"`
	BackoffSec  float64 `yaml:"backoff_sec"`
}

// Backoff returns the configured linear backoff step.
func (r RetryConfig) Backoff() time.Duration {
	return time.Duration(r.BackoffSec * float64(time.Second))
}

type ProviderConfig struct {
	// Provider is one of "openai", "gemini", "huggingface" or "" (disabled).
	Provider          string  `yaml:"provider"`
	Model             string  `yaml:"model"`
	BaseURL           string  `yaml:"base_url"`
	APIKeyEnv         string  `yaml:"api_key_env"`
	Temperature       float32 `yaml:"temperature"`
	MaxTokens         int     `yaml:"max_tokens"`
	RepetitionPenalty float32 `yaml:"repetition_penalty"`
	TimeoutSec        int     `yaml:"timeout_sec"`
}

// APIKey resolves the provider's secret from the environment.
func (p ProviderConfig) APIKey() string {
	if p.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(p.APIKeyEnv)
}

type AudioConfig struct {
	// Engine is "edge-tts", "command" or "elevenlabs".
	Engine           string `yaml:"engine"`
	// FallbackEngine re-renders the narration when Engine fails. Empty disables it.
	FallbackEngine   string `yaml:"fallback_engine"`
	Command          string `yaml:"command"`
	Attempts         int    `yaml:"attempts"`
	SegmentChars     int    `yaml:"segment_chars"`
	ElevenLabsVoice  string `yaml:"elevenlabs_voice_id"`
	ElevenLabsKeyEnv string `yaml:"elevenlabs_api_key_env"`
}

type VideoConfig struct {
	FPS        int    `yaml:"fps"`
	Threads    int    `yaml:"threads"`
	Font       string `yaml:"font"`
	FontSize   int    `yaml:"font_size"`
	Background string `yaml:"background"` // "color", "pollinations", "wikipedia" or an image path
	Color      string `yaml:"color"`
	// KenBurnsZoom slowly zooms a still background up to this factor; <= 1 disables.
	KenBurnsZoom float64 `yaml:"ken_burns_zoom"`
	// Music is an optional audio file looped under the narration.
	Music        string  `yaml:"music"`
	MusicVolume  float64 `yaml:"music_volume"`
	MusicFadeSec float64 `yaml:"music_fade_sec"`
}

type UploadConfig struct {
	// Credentials is "refresh", "inline" or "interactive".
	Credentials       string `yaml:"credentials"`
	ClientSecretsFile string `yaml:"client_secrets_file"`
	TokenFile         string `yaml:"token_file"`
	ChunkSizeMB       int    `yaml:"chunk_size_mb"`
	TitleMaxChars     int    `yaml:"title_max_chars"`
	DefaultLanguage   string `yaml:"default_language"`
	MadeForKids       bool   `yaml:"made_for_kids"`
	NotifySubscribers bool   `yaml:"notify_subscribers"`
	// PublishAt schedules public uploads for the next HH:MM in Timezone.
	PublishAt string `yaml:"publish_at"`
	Timezone  string `yaml:"timezone"`
}

type StateConfig struct {
	// Cursor is "file" or "sqlite".
	Cursor string `yaml:"cursor"`
	// Log is "jsonl", "sqlite" or "postgres".
	Log            string `yaml:"log"`
	SQLitePath     string `yaml:"sqlite_path"`
	PostgresURLEnv string `yaml:"postgres_url_env"`
	// Lock is "file", "redis" or "none".
	Lock          string `yaml:"lock"`
	LockStaleMin  int    `yaml:"lock_stale_min"`
	RedisURLEnv   string `yaml:"redis_url_env"`
	RedisLockKey  string `yaml:"redis_lock_key"`
	RedisLockTTLM int    `yaml:"redis_lock_ttl_min"`
}

type NotifyConfig struct {
	AMQPURLEnv string `yaml:"amqp_url_env"`
	Queue      string `yaml:"queue"`
}

type TopicsConfig struct {
	Subreddit string `yaml:"subreddit"`
	Limit     int    `yaml:"limit"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			Data:       "data",
			TopicsFile: "data/idea.txt",
			CursorFile: "data/sidea.txt",
			UploadLog:  "data/upload_log.jsonl",
			Temp:       "temp",
			Logs:       "logs",
		},
		Rotation: RotationConfig{Both: "shared"},
		Modes: map[string]ModeConfig{
			string(types.ModeShorts): {
				CharBudget:     1000,
				MaxDurationSec: 60,
				Width:          1080,
				Height:         1920,
				CaptionChars:   80,
				SecondsPerWord: 0.75,
				MinCaptionSec:  2.5,
				Voice:          "en-US-GuyNeural",
				CallToAction:   "Don't forget to like, comment, and subscribe for more lost futures!",
				CategoryID:     "22",
				Visibility:     string(types.VisibilityPrivate),
				Tags:           []string{"shorts", "cold war", "history", "lost futures", "synapse daily"},
				DescriptionLen: 300,
				Footer:         "#shorts #ColdWar #History #SynapseDaily",
				Rotation:       "advance",
			},
			string(types.ModePodcast): {
				CharBudget:     15000,
				MaxDurationSec: 900,
				Width:          1920,
				Height:         1080,
				CaptionChars:   110,
				SecondsPerWord: 0.8,
				MinCaptionSec:  4.0,
				Voice:          "en-US-GuyNeural",
				CallToAction:   "If you enjoyed this dive into lost futures, don't forget to like, comment your thoughts below, and subscribe for more Cold War mysteries.",
				CategoryID:     "27",
				Visibility:     string(types.VisibilityPrivate),
				Tags:           []string{"cold war tech", "unbuilt cities", "retro futurism", "history podcast"},
				DescriptionLen: 500,
				Footer: "📚 SOURCES: CIA FOIA, NASA Archives, Internet Archive\n" +
					"Support us on Patreon for early access and bonus episodes.\n\n" +
					"#ColdWarTech #UnbuiltCities #RetroFuturism #HistoryPodcast",
				Rotation: "peek",
			},
		},
		Script: ScriptConfig{
			MinLength: 100,
			Retry:     RetryConfig{MaxAttempts: 3, BackoffSec: 5},
			Primary: ProviderConfig{
				Provider:    "openai",
				Model:       "llama-3.3-70b-versatile",
				BaseURL:     "https://api.groq.com/openai/v1",
				APIKeyEnv:   "GROQ_API_KEY",
				Temperature: 0.8,
				MaxTokens:   4096,
				TimeoutSec:  180,
			},
			Secondary: ProviderConfig{
				Provider:          "huggingface",
				Model:             "meta-llama/Llama-3.2-1B",
				APIKeyEnv:         "HF_TOKEN",
				Temperature:       0.7,
				MaxTokens:         1024,
				RepetitionPenalty: 1.2,
				TimeoutSec:        180,
			},
		},
		Audio: AudioConfig{
			Engine:           "edge-tts",
			FallbackEngine:   "edge-tts",
			Attempts:         3,
			SegmentChars:     3000,
			ElevenLabsKeyEnv: "ELEVENLABS_API_KEY",
		},
		Video: VideoConfig{
			FPS:          24,
			Threads:      4,
			Font:         "DejaVu Sans",
			FontSize:     64,
			Background:   "color",
			Color:        "black",
			KenBurnsZoom: 1.08,
			MusicVolume:  0.12,
			MusicFadeSec: 2,
		},
		Upload: UploadConfig{
			Credentials:       "refresh",
			ClientSecretsFile: "client_secret.json",
			TokenFile:         "data/youtube_token.json",
			ChunkSizeMB:       8,
			TitleMaxChars:     95,
			DefaultLanguage:   "en",
			Timezone:          "UTC",
		},
		State: StateConfig{
			Cursor:         "file",
			Log:            "jsonl",
			SQLitePath:     "data/state.db",
			PostgresURLEnv: "DATABASE_URL",
			Lock:           "file",
			LockStaleMin:   120,
			RedisURLEnv:    "REDIS_URL",
			RedisLockKey:   "synapse-daily:run-lock",
			RedisLockTTLM:  60,
		},
		Notify: NotifyConfig{
			AMQPURLEnv: "AMQP_URL",
			Queue:      "uploads",
		},
		Topics: TopicsConfig{
			Subreddit: "RetroFuturism",
			Limit:     50,
		},
	}
}

// Load reads config.yaml over the defaults. A missing file yields the
// defaults; a malformed one is a configuration error.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", types.ErrConfiguration, path, err)
	}

	// Mode maps are merged per key since yaml replaces map values whole.
	defaults := cfg.Modes
	cfg.Modes = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", types.ErrConfiguration, path, err)
	}
	cfg.Modes = mergeModes(defaults, cfg.Modes)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func mergeModes(defaults, overrides map[string]ModeConfig) map[string]ModeConfig {
	out := make(map[string]ModeConfig, len(defaults))
	for name, m := range defaults {
		out[name] = m
	}
	for name, o := range overrides {
		m := out[name]
		if o.CharBudget > 0 {
			m.CharBudget = o.CharBudget
		}
		if o.MaxDurationSec > 0 {
			m.MaxDurationSec = o.MaxDurationSec
		}
		if o.Width > 0 {
			m.Width = o.Width
		}
		if o.Height > 0 {
			m.Height = o.Height
		}
		if o.CaptionChars > 0 {
			m.CaptionChars = o.CaptionChars
		}
		if o.SecondsPerWord > 0 {
			m.SecondsPerWord = o.SecondsPerWord
		}
		if o.MinCaptionSec > 0 {
			m.MinCaptionSec = o.MinCaptionSec
		}
		if o.Voice != "" {
			m.Voice = o.Voice
		}
		if o.CallToAction != "" {
			m.CallToAction = o.CallToAction
		}
		if o.CategoryID != "" {
			m.CategoryID = o.CategoryID
		}
		if o.Visibility != "" {
			m.Visibility = o.Visibility
		}
		if len(o.Tags) > 0 {
			m.Tags = o.Tags
		}
		if o.DescriptionLen > 0 {
			m.DescriptionLen = o.DescriptionLen
		}
		if o.Footer != "" {
			m.Footer = o.Footer
		}
		if o.Rotation != "" {
			m.Rotation = o.Rotation
		}
		out[name] = m
	}
	return out
}

// Validate checks the enumerated settings.
func (c *Config) Validate() error {
	check := func(field, value string, allowed ...string) error {
		for _, a := range allowed {
			if value == a {
				return nil
			}
		}
		return fmt.Errorf("%w: %s must be one of %s, got %q",
			types.ErrConfiguration, field, strings.Join(allowed, "|"), value)
	}

	if err := check("rotation.both", c.Rotation.Both, "shared", "independent"); err != nil {
		return err
	}
	for name, m := range c.Modes {
		if _, err := types.ParseMode(name); err != nil {
			return err
		}
		if err := check("modes."+name+".rotation", m.Rotation, "advance", "peek"); err != nil {
			return err
		}
		if err := check("modes."+name+".visibility", m.Visibility, "private", "unlisted", "public"); err != nil {
			return err
		}
	}
	if err := check("audio.engine", c.Audio.Engine, "edge-tts", "command", "elevenlabs"); err != nil {
		return err
	}
	if c.Audio.FallbackEngine != "" {
		if err := check("audio.fallback_engine", c.Audio.FallbackEngine, "edge-tts", "command", "elevenlabs"); err != nil {
			return err
		}
	}
	if err := check("upload.credentials", c.Upload.Credentials, "refresh", "inline", "interactive"); err != nil {
		return err
	}
	if err := check("state.cursor", c.State.Cursor, "file", "sqlite"); err != nil {
		return err
	}
	if err := check("state.log", c.State.Log, "jsonl", "sqlite", "postgres"); err != nil {
		return err
	}
	return check("state.lock", c.State.Lock, "file", "redis", "none")
}

// Mode returns the stage parameters for a content mode.
func (c *Config) Mode(m types.Mode) (types.ModeProfile, error) {
	mc, ok := c.Modes[string(m)]
	if !ok {
		return types.ModeProfile{}, fmt.Errorf("%w: no profile for mode %q", types.ErrConfiguration, m)
	}
	return types.ModeProfile{
		Mode:           m,
		CharBudget:     mc.CharBudget,
		MaxDuration:    time.Duration(mc.MaxDurationSec) * time.Second,
		Width:          mc.Width,
		Height:         mc.Height,
		FPS:            c.Video.FPS,
		Threads:        c.Video.Threads,
		CaptionChars:   mc.CaptionChars,
		SecondsPerWord: mc.SecondsPerWord,
		MinCaption:     mc.MinCaptionSec,
		Voice:          mc.Voice,
		CallToAction:   mc.CallToAction,
		CategoryID:     mc.CategoryID,
		Visibility:     types.Visibility(mc.Visibility),
		Tags:           mc.Tags,
		DescriptionLen: mc.DescriptionLen,
		Footer:         mc.Footer,
	}, nil
}

// EnsureDirs creates the working directories.
func (c *Config) EnsureDirs() error {
	dirs := []string{c.Paths.Data, c.Paths.Temp, c.Paths.Logs,
		filepath.Dir(c.Paths.TopicsFile), filepath.Dir(c.Paths.CursorFile), filepath.Dir(c.Paths.UploadLog)}
	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create dir %s: %w", dir, err)
		}
	}
	return nil
}
