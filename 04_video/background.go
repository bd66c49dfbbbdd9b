package video

import (
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/synapsedaili/youtube-automation/logging"
	"github.com/synapsedaili/youtube-automation/retry"
)

// PollinationsFetcher generates a background still via Pollinations.ai (free, no key needed)
type PollinationsFetcher struct {
	httpClient *http.Client
	baseURL    string
	policy     retry.Policy
	log        *log.Logger
}

// NewPollinationsFetcher creates a new fetcher
func NewPollinationsFetcher(logger *log.Logger) *PollinationsFetcher {
	p := &PollinationsFetcher{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    "https://image.pollinations.ai",
		log:        logging.OrDefault(logger, "video"),
	}
	// Pollinations occasionally times out
	p.policy = retry.Policy{
		MaxAttempts: 3,
		Backoff:     3 * time.Second,
		OnRetry: func(attempt int, wait time.Duration, err error) {
			p.log.Warn("background fetch failed, retrying", "attempt", attempt, "wait", wait, "err", err)
		},
	}
	return p
}

// Fetch generates an image for the topic at the frame size and saves it to outFile.
func (p *PollinationsFetcher) Fetch(ctx context.Context, topic string, width, height int, outFile string) error {
	prompt := backgroundPrompt(topic)
	imageURL := fmt.Sprintf("%s/prompt/%s?width=%d&height=%d&nologo=true&model=flux&seed=%d",
		p.baseURL, url.PathEscape(prompt), width, height, topicSeed(topic))

	p.log.Info("generating background image", "topic", topic, "size", fmt.Sprintf("%dx%d", width, height))
	err := p.policy.Do(ctx, func(ctx context.Context) error {
		return p.downloadImage(ctx, imageURL, outFile)
	})
	if err != nil {
		return fmt.Errorf("pollinations fetch: %w", err)
	}
	return nil
}

func (p *PollinationsFetcher) downloadImage(ctx context.Context, imageURL, outFile string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; SynapseDaily/1.0)")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d from Pollinations", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	// An error page rather than an image
	if len(data) < 100 {
		return fmt.Errorf("response too small (%d bytes)", len(data))
	}

	return os.WriteFile(outFile, data, 0644)
}

func backgroundPrompt(topic string) string {
	return topic + ", retro futurism, cold war era concept art, muted film colours, " +
		"dark vignette, no text, no watermark, no people's faces"
}

// topicSeed keeps the same topic on the same image across runs.
func topicSeed(topic string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(topic))
	return h.Sum32() % 1000000
}
