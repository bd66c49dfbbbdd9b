package upload

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/synapsedaili/youtube-automation/config"
	"github.com/synapsedaili/youtube-automation/logging"
	"github.com/synapsedaili/youtube-automation/types"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

// Publisher uploads finished videos through the YouTube Data API v3.
type Publisher struct {
	cfg   config.UploadConfig
	creds CredentialProvider
	log   *log.Logger

	// service builds the API client; tests point it at a fake server.
	service func(ctx context.Context) (*youtube.Service, error)
}

// NewPublisher creates a Publisher that authenticates through creds.
func NewPublisher(cfg config.UploadConfig, creds CredentialProvider, logger *log.Logger) *Publisher {
	p := &Publisher{cfg: cfg, creds: creds, log: logging.OrDefault(logger, "upload")}
	p.service = p.newService
	return p
}

func (p *Publisher) newService(ctx context.Context) (*youtube.Service, error) {
	ts, err := p.creds.TokenSource(ctx)
	if err != nil {
		return nil, err
	}
	return youtube.NewService(ctx, option.WithHTTPClient(oauth2.NewClient(ctx, ts)))
}

// Publish uploads video with meta and returns the platform video id.
// Failures are never retried here; they wrap types.ErrPublish.
func (p *Publisher) Publish(ctx context.Context, video types.VideoAsset, meta types.VideoMetadata) (string, error) {
	p.log.Info("authenticating with YouTube API")
	svc, err := p.service(ctx)
	if err != nil {
		return "", p.fail("youtube auth", err)
	}

	p.log.Info("uploading", "title", meta.Title, "visibility", meta.Visibility)

	snippet := &youtube.VideoSnippet{
		Title:                meta.Title,
		Description:          meta.Description,
		Tags:                 meta.Tags,
		CategoryId:           meta.CategoryID,
		DefaultLanguage:      p.cfg.DefaultLanguage,
		DefaultAudioLanguage: p.cfg.DefaultLanguage,
	}

	status := &youtube.VideoStatus{
		PrivacyStatus:           string(meta.Visibility),
		SelfDeclaredMadeForKids: p.cfg.MadeForKids,
		ForceSendFields:         []string{"SelfDeclaredMadeForKids"},
	}

	// A scheduled video must be private until publishAt
	if meta.ScheduledTimeUTC != "" && meta.Visibility == types.VisibilityPublic {
		status.PrivacyStatus = string(types.VisibilityPrivate)
		status.PublishAt = meta.ScheduledTimeUTC
		p.log.Info("scheduled", "publish_at", meta.ScheduledTimeUTC)
	}

	f, err := os.Open(video.Path)
	if err != nil {
		return "", p.fail("open video file", err)
	}
	defer f.Close()

	var size int64
	if fi, err := f.Stat(); err == nil {
		size = fi.Size()
		p.log.Info("file size", "mb", fmt.Sprintf("%.1f", float64(size)/1024/1024))
	}

	chunk := p.cfg.ChunkSizeMB
	if chunk <= 0 {
		chunk = 8
	}
	lastPct := -1
	call := svc.Videos.Insert([]string{"snippet", "status"}, &youtube.Video{Snippet: snippet, Status: status}).
		NotifySubscribers(p.cfg.NotifySubscribers).
		Media(f, googleapi.ChunkSize(chunk*1024*1024)).
		ProgressUpdater(func(current, total int64) {
			if total <= 0 {
				total = size
			}
			if total <= 0 {
				return
			}
			if pct := int(current * 100 / total); pct/10 != lastPct/10 {
				lastPct = pct
				p.log.Info("upload progress", "percent", pct)
			}
		}).
		Context(ctx)

	uploaded, err := call.Do()
	if err != nil {
		return "", p.fail("youtube upload", err)
	}
	if uploaded.Id == "" {
		return "", p.fail("youtube upload", errors.New("response carried no video id"))
	}

	p.log.Info("uploaded successfully", "id", uploaded.Id, "url", WatchURL(uploaded.Id))
	return uploaded.Id, nil
}

func (p *Publisher) fail(what string, err error) error {
	if errors.Is(err, types.ErrConfiguration) {
		return fmt.Errorf("%s: %w", what, err)
	}
	if hint := Remediation(err); hint != "" {
		p.log.Error(hint)
	}
	return fmt.Errorf("%w: %s: %w", types.ErrPublish, what, err)
}

// WatchURL is the public page for a video id.
func WatchURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}

// Remediation returns operator guidance for failures that need a human:
// expired credentials and exhausted quota. Other errors return "".
func Remediation(err error) string {
	if err == nil {
		return ""
	}
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) && rerr.ErrorCode == "invalid_grant" || strings.Contains(err.Error(), "invalid_grant") {
		return "YouTube refresh token expired or was revoked: run `synapse-daily auth` and update YOUTUBE_REFRESH_TOKEN / YOUTUBE_TOKEN_JSON"
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == 401:
			return "YouTube rejected the credentials (401): re-authorise with `synapse-daily auth`"
		case gerr.Code == 403 && hasReason(gerr, "quotaExceeded", "uploadLimitExceeded"):
			return "YouTube API quota exhausted: the upload can be retried after the daily quota resets"
		}
	}
	return ""
}

func hasReason(gerr *googleapi.Error, reasons ...string) bool {
	for _, item := range gerr.Errors {
		for _, r := range reasons {
			if item.Reason == r {
				return true
			}
		}
	}
	return false
}
