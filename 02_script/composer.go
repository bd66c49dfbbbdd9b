package script

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/synapsedaili/youtube-automation/config"
	"github.com/synapsedaili/youtube-automation/logging"
	"github.com/synapsedaili/youtube-automation/retry"
	"github.com/synapsedaili/youtube-automation/types"
)

// DefaultMinLength is the shortest post-processed script a remote strategy
// may return before the next strategy is tried.
const DefaultMinLength = 100

// Composer turns a topic into narration by trying its strategies in order.
// The template fallback guarantees Compose always returns a script.
type Composer struct {
	strategies []Strategy
	fallback   Strategy
	minLen     int
	log        *log.Logger
}

func NewComposer(strategies []Strategy, minLen int, logger *log.Logger) *Composer {
	if minLen <= 0 {
		minLen = DefaultMinLength
	}
	return &Composer{
		strategies: strategies,
		fallback:   TemplateStrategy{},
		minLen:     minLen,
		log:        logging.OrDefault(logger, "script"),
	}
}

// Compose returns narration for topic that fits the mode's character budget
// and ends with its call to action.
func (c *Composer) Compose(ctx context.Context, topic string, mode types.ModeProfile) types.Script {
	chain := make([]Strategy, 0, len(c.strategies)+1)
	chain = append(chain, c.strategies...)
	chain = append(chain, c.fallback)

	cta := cleanCTA(mode.CallToAction)
	candidates := make([]func(context.Context) (draft, error), len(chain))
	for i, s := range chain {
		s := s
		candidates[i] = func(ctx context.Context) (draft, error) {
			c.log.Info("generating script", "strategy", s.Name(), "mode", mode.Mode)
			raw, err := s.Generate(ctx, topic, mode)
			if err != nil {
				c.log.Warn("strategy failed", "strategy", s.Name(), "err", err)
				return draft{}, err
			}
			return draft{text: PostProcess(raw, mode.CallToAction), body: bodyLength(raw, cta)}, nil
		}
	}
	// The length floor applies to the narration alone; the appended call to
	// action does not count towards it.
	accept := func(d draft) error {
		if d.body < c.minLen {
			c.log.Warn("script too short, trying next strategy", "chars", d.body, "min", c.minLen)
			return fmt.Errorf("%w: script too short (%d < %d chars)", types.ErrGeneration, d.body, c.minLen)
		}
		return nil
	}

	d, idx, err := FirstSuccess(ctx, candidates, accept)
	text, name := d.text, ""
	if err != nil {
		// The template cannot fail, but a cancelled context stops the chain early.
		c.log.Warn("all strategies failed, using template", "err", err)
		raw, _ := c.fallback.Generate(context.WithoutCancel(ctx), topic, mode)
		text = PostProcess(raw, mode.CallToAction)
		name = c.fallback.Name()
	} else {
		name = chain[idx].Name()
	}

	text = Fit(text, cta, mode.CharBudget)
	c.log.Info("script ready", "strategy", name, "chars", utf8.RuneCountInString(text))
	return types.Script{Topic: topic, Text: text, Strategy: name}
}

// draft is one post-processed candidate script.
type draft struct {
	text string
	body int // runes of narration excluding the call to action
}

// bodyLength counts the narration runes of raw after post-processing, with
// any copy of the call to action removed.
func bodyLength(raw, cta string) int {
	body := PostProcess(raw, "")
	if cta != "" {
		body = ctaPattern(cta).ReplaceAllString(body, "")
	}
	return utf8.RuneCountInString(strings.TrimSpace(body))
}

func ctaPattern(cta string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)` + regexp.QuoteMeta(cta))
}

// FromConfig builds the remote strategies named in cfg, each wrapped in the
// shared retry policy. Providers without an API key are skipped with a warning
// so the chain degrades to the template.
func FromConfig(ctx context.Context, cfg config.ScriptConfig, logger *log.Logger) ([]Strategy, error) {
	logger = logging.OrDefault(logger, "script")
	policy := retry.Policy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		Backoff:     cfg.Retry.Backoff(),
		Retryable:   IsRateLimited,
		OnRetry: func(attempt int, wait time.Duration, err error) {
			logger.Warn("rate limited, backing off", "attempt", attempt, "wait", wait, "err", err)
		},
	}

	var out []Strategy
	for _, p := range []config.ProviderConfig{cfg.Primary, cfg.Secondary} {
		if p.Provider == "" {
			continue
		}
		key := p.APIKey()
		if key == "" {
			logger.Warn("api key not set, skipping strategy", "provider", p.Provider, "env", p.APIKeyEnv)
			continue
		}
		var s Strategy
		switch p.Provider {
		case "openai":
			s = NewOpenAIStrategy(p, key)
		case "gemini":
			g, err := NewGeminiStrategy(ctx, p, key)
			if err != nil {
				return nil, err
			}
			s = g
		case "huggingface":
			s = NewHuggingFaceStrategy(p, key)
		default:
			return nil, fmt.Errorf("%w: unknown script provider %q", types.ErrConfiguration, p.Provider)
		}
		out = append(out, Retrying{Strategy: s, Policy: policy})
	}
	return out, nil
}
