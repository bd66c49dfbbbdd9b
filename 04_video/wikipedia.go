package video

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/synapsedaili/youtube-automation/logging"
)

const maxImageBytes = 10 * 1024 * 1024

// WikipediaFetcher uses the lead image of the topic's Wikipedia article as
// the background. Archival photos suit the channel better than generated art
// when an article exists.
type WikipediaFetcher struct {
	httpClient *http.Client
	baseURL    string
	log        *log.Logger
}

func NewWikipediaFetcher(logger *log.Logger) *WikipediaFetcher {
	return &WikipediaFetcher{
		httpClient: &http.Client{Timeout: 20 * time.Second},
		baseURL:    "https://en.wikipedia.org",
		log:        logging.OrDefault(logger, "video"),
	}
}

// Fetch downloads the article image for the topic's subject. The frame size
// is ignored; ffmpeg scales and crops the still.
func (w *WikipediaFetcher) Fetch(ctx context.Context, topic string, _, _ int, outFile string) error {
	subject := articleSubject(topic)
	if subject == "" {
		return fmt.Errorf("no article subject in %q", topic)
	}

	summaryURL := fmt.Sprintf("%s/api/rest_v1/page/summary/%s", w.baseURL,
		url.PathEscape(strings.ReplaceAll(subject, " ", "_")))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, summaryURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "SynapseDaily/1.0 (educational)")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("wikipedia returned %d for %q", resp.StatusCode, subject)
	}

	var summary struct {
		Thumbnail struct {
			Source string `json:"source"`
		} `json:"thumbnail"`
		OriginalImage struct {
			Source string `json:"source"`
		} `json:"originalimage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
		return fmt.Errorf("decode wikipedia summary: %w", err)
	}
	imgURL := summary.OriginalImage.Source
	if imgURL == "" {
		imgURL = summary.Thumbnail.Source
	}
	if imgURL == "" {
		return fmt.Errorf("no image in wikipedia article %q", subject)
	}

	if err := w.download(ctx, imgURL, outFile); err != nil {
		return err
	}
	w.log.Info("wikipedia background found", "subject", subject)
	return nil
}

func (w *WikipediaFetcher) download(ctx context.Context, imgURL, outFile string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imgURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "SynapseDaily/1.0 (educational)")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d downloading %s", resp.StatusCode, imgURL)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return err
	}
	if len(data) < 1000 {
		return fmt.Errorf("image too small (%d bytes)", len(data))
	}
	return os.WriteFile(outFile, data, 0644)
}

var (
	leadingYear   = regexp.MustCompile(`^\s*\d{4}s?\s*:\s*`)
	trailingParen = regexp.MustCompile(`\s*\([^)]*\)\s*$`)
)

// articleSubject reduces "1960: Project Orion - The Nuclear Spaceship (USA)"
// to "Project Orion".
func articleSubject(topic string) string {
	s := leadingYear.ReplaceAllString(topic, "")
	s = trailingParen.ReplaceAllString(s, "")
	if i := strings.Index(s, " - "); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// fallbackFetcher tries each fetcher in order until one succeeds.
type fallbackFetcher []ImageFetcher

func (f fallbackFetcher) Fetch(ctx context.Context, topic string, width, height int, outFile string) error {
	var errs []error
	for _, fetcher := range f {
		err := fetcher.Fetch(ctx, topic, width, height, outFile)
		if err == nil {
			return nil
		}
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
