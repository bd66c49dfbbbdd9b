package types

import (
	"fmt"
	"time"
)

// Mode selects the output format of a run
type Mode string

const (
	ModeShorts  Mode = "shorts"
	ModePodcast Mode = "podcast"
)

// ParseMode validates a mode name coming from flags or config
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeShorts, ModePodcast:
		return Mode(s), nil
	}
	return "", fmt.Errorf("%w: unknown content mode %q", ErrConfiguration, s)
}

// Visibility is the platform privacy status of an upload
type Visibility string

const (
	VisibilityPrivate  Visibility = "private"
	VisibilityUnlisted Visibility = "unlisted"
	VisibilityPublic   Visibility = "public"
)

// ModeProfile carries every per-mode parameter the stages need.
// The pipeline never branches on the mode name itself.
type ModeProfile struct {
	Mode           Mode          `json:"mode"`
	CharBudget     int           `json:"char_budget"`
	MaxDuration    time.Duration `json:"max_duration"`
	Width          int           `json:"width"`
	Height         int           `json:"height"`
	FPS            int           `json:"fps"`
	Threads        int           `json:"threads"`
	CaptionChars   int           `json:"caption_chars"`
	SecondsPerWord float64       `json:"seconds_per_word"`
	MinCaption     float64       `json:"min_caption_sec"`
	Voice          string        `json:"voice"`
	CallToAction   string        `json:"call_to_action"`
	CategoryID     string        `json:"category_id"`
	Visibility     Visibility    `json:"visibility"`
	Tags           []string      `json:"tags"`
	DescriptionLen int           `json:"description_len"`
	Footer         string        `json:"footer"`
}

// Script is the narration produced for one run
type Script struct {
	Topic    string `json:"topic"`
	Text     string `json:"text"`
	Strategy string `json:"strategy"`
}

// AudioAsset is a rendered narration file
type AudioAsset struct {
	Path     string        `json:"path"`
	Duration time.Duration `json:"duration"`
}

// VideoAsset is a composited video ready for upload
type VideoAsset struct {
	Path     string        `json:"path"`
	Duration time.Duration `json:"duration"`
	Width    int           `json:"width"`
	Height   int           `json:"height"`
}

// VideoMetadata holds all YouTube upload metadata
type VideoMetadata struct {
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Tags             []string   `json:"tags"`
	CategoryID       string     `json:"category_id"`
	Visibility       Visibility `json:"visibility"`
	ScheduledTimeUTC string     `json:"scheduled_time_utc,omitempty"`
}

// UploadRecord is one line of the upload log
type UploadRecord struct {
	Timestamp       string `json:"timestamp"`
	ExternalVideoID string `json:"external_video_id"`
	Title           string `json:"title"`
	Mode            Mode   `json:"mode"`
}

// NewUploadRecord stamps a record with an ISO-8601 UTC timestamp
func NewUploadRecord(now time.Time, videoID, title string, mode Mode) UploadRecord {
	return UploadRecord{
		Timestamp:       now.UTC().Format(time.RFC3339),
		ExternalVideoID: videoID,
		Title:           title,
		Mode:            mode,
	}
}

// PipelineState tracks the full state of one pipeline run
type PipelineState struct {
	RunID       string         `json:"run_id"`
	Mode        Mode           `json:"mode"`
	State       string         `json:"state"`
	StartedAt   string         `json:"started_at"`
	CompletedAt string         `json:"completed_at,omitempty"`
	Topic       string         `json:"topic,omitempty"`
	TopicIndex  int            `json:"topic_index"`
	Script      *Script        `json:"script,omitempty"`
	AudioFile   string         `json:"audio_file,omitempty"`
	VideoFile   string         `json:"video_file,omitempty"`
	Metadata    *VideoMetadata `json:"metadata,omitempty"`
	YouTubeURL  string         `json:"youtube_url,omitempty"`
	YouTubeID   string         `json:"youtube_id,omitempty"`
	Error       string         `json:"error,omitempty"`
}
