package video

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/synapsedaili/youtube-automation/config"
	"github.com/synapsedaili/youtube-automation/logging"
	"github.com/synapsedaili/youtube-automation/types"
)

// ImageFetcher produces a background still for a topic.
type ImageFetcher interface {
	Fetch(ctx context.Context, topic string, width, height int, outFile string) error
}

// Compositor assembles the final video: a still or solid background, the
// narration track and timed captions, burned in by ffmpeg.
type Compositor struct {
	cfg    config.VideoConfig
	images ImageFetcher
	log    *log.Logger

	// ffmpeg runs the encoder; tests replace it.
	ffmpeg func(ctx context.Context, args []string) error
}

// New creates a Compositor. Background "pollinations" generates a topic image
// per run and "wikipedia" tries the topic's article image before generating
// one. Any other value except "color" is taken as an image path.
func New(cfg config.VideoConfig, logger *log.Logger) *Compositor {
	c := &Compositor{
		cfg:    cfg,
		log:    logging.OrDefault(logger, "video"),
		ffmpeg: runFFmpeg,
	}
	switch cfg.Background {
	case "pollinations":
		c.images = NewPollinationsFetcher(c.log)
	case "wikipedia":
		c.images = fallbackFetcher{NewWikipediaFetcher(c.log), NewPollinationsFetcher(c.log)}
	}
	return c
}

// Compose writes video.mp4 into workDir. The video lasts as long as the
// narration, capped at the mode's duration ceiling.
func (c *Compositor) Compose(ctx context.Context, audio types.AudioAsset, script types.Script, mode types.ModeProfile, workDir string) (types.VideoAsset, error) {
	total := audio.Duration
	if mode.MaxDuration > 0 && total > mode.MaxDuration {
		c.log.Warn("narration longer than mode ceiling, trimming", "audio", audio.Duration, "max", mode.MaxDuration)
		total = mode.MaxDuration
	}
	if total <= 0 {
		return types.VideoAsset{}, fmt.Errorf("%w: narration has no duration", types.ErrComposition)
	}

	cues := Timeline(SplitCaptions(script.Text, mode.CaptionChars), total, mode.SecondsPerWord, mode.MinCaption)
	c.log.Info("composing video", "mode", mode.Mode, "duration", total, "captions", len(cues),
		"size", fmt.Sprintf("%dx%d", mode.Width, mode.Height))

	captions := filepath.Join(workDir, "captions.ass")
	err := WriteASS(captions, cues, CaptionStyle{
		Width:    mode.Width,
		Height:   mode.Height,
		Font:     c.cfg.Font,
		FontSize: c.cfg.FontSize,
	})
	if err != nil {
		return types.VideoAsset{}, fmt.Errorf("%w: %w", types.ErrComposition, err)
	}

	outFile := filepath.Join(workDir, "video.mp4")
	args := buildArgs(encodeJob{
		background: c.background(ctx, script.Topic, mode, workDir),
		zoom:       c.cfg.KenBurnsZoom,
		color:      c.cfg.Color,
		audio:      audio.Path,
		music:      c.music(),
		captions:   captions,
		duration:   total,
		mode:       mode,
		out:        outFile,
	})
	if err := c.ffmpeg(ctx, args); err != nil {
		return types.VideoAsset{}, fmt.Errorf("%w: %w", types.ErrComposition, err)
	}
	if fi, err := os.Stat(outFile); err != nil || fi.Size() == 0 {
		return types.VideoAsset{}, fmt.Errorf("%w: encoder produced no output", types.ErrComposition)
	}

	c.log.Info("video ready", "file", outFile)
	return types.VideoAsset{Path: outFile, Duration: total, Width: mode.Width, Height: mode.Height}, nil
}

// background returns an image path, or "" for a solid colour.
// Image problems fall back to the colour rather than failing the run.
func (c *Compositor) background(ctx context.Context, topic string, mode types.ModeProfile, workDir string) string {
	switch c.cfg.Background {
	case "", "color":
		return ""
	case "pollinations", "wikipedia":
		if c.images == nil {
			return ""
		}
		img := filepath.Join(workDir, "background.jpg")
		if err := c.images.Fetch(ctx, topic, mode.Width, mode.Height, img); err != nil {
			c.log.Warn("background image unavailable, using solid colour", "err", err)
			return ""
		}
		return img
	default:
		if _, err := os.Stat(c.cfg.Background); errors.Is(err, fs.ErrNotExist) {
			c.log.Warn("background image not found, using solid colour", "path", c.cfg.Background)
			return ""
		}
		return c.cfg.Background
	}
}

type encodeJob struct {
	background string
	zoom       float64
	color      string
	audio      string
	music      *musicBed
	captions   string
	duration   time.Duration
	mode       types.ModeProfile
	out        string
}

func buildArgs(j encodeJob) []string {
	size := fmt.Sprintf("%dx%d", j.mode.Width, j.mode.Height)
	fps := j.mode.FPS
	if fps <= 0 {
		fps = 24
	}
	color := j.color
	if color == "" {
		color = "black"
	}

	args := []string{"-y"}
	filter := fmt.Sprintf("ass='%s'", escapeSubtitlePath(j.captions))
	if j.background == "" {
		args = append(args, "-f", "lavfi", "-i", fmt.Sprintf("color=c=%s:s=%s:r=%d", color, size, fps))
	} else if j.zoom > 1 {
		// Ken Burns: a single input frame expanded by zoompan into the whole clip.
		frames := int(j.duration.Seconds()*float64(fps)) + 1
		w2, h2 := j.mode.Width*2, j.mode.Height*2
		args = append(args, "-i", j.background)
		filter = fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d,"+
			"zoompan=z='min(zoom+%.6f,%.3f)':x='iw/2-(iw/zoom/2)':y='ih/2-(ih/zoom/2)':d=%d:s=%s:fps=%d,setsar=1,%s",
			w2, h2, w2, h2, (j.zoom-1)/float64(frames), j.zoom, frames, size, fps, filter)
	} else {
		args = append(args, "-loop", "1", "-i", j.background)
		filter = fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d,setsar=1,%s",
			j.mode.Width, j.mode.Height, j.mode.Width, j.mode.Height, filter)
	}
	args = append(args, "-i", j.audio)
	audioOut := "1:a"
	if j.music != nil {
		args = append(args, "-stream_loop", "-1", "-i", j.music.path,
			"-filter_complex", j.music.filter(j.duration))
		audioOut = "[aout]"
	}
	args = append(args,
		"-map", "0:v",
		"-map", audioOut,
		"-vf", filter,
		"-t", strconv.FormatFloat(j.duration.Seconds(), 'f', 3, 64),
		"-r", strconv.Itoa(fps),
	)
	if j.mode.Threads > 0 {
		args = append(args, "-threads", strconv.Itoa(j.mode.Threads))
	}
	args = append(args,
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "22",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", "192k",
		"-shortest",
		"-movflags", "+faststart", // optimize for web streaming
		j.out,
	)
	return args
}

// escapeSubtitlePath escapes a path for use inside an ffmpeg filter argument.
func escapeSubtitlePath(path string) string {
	path = strings.ReplaceAll(path, "\\", "/")
	path = strings.ReplaceAll(path, ":", "\\:")
	path = strings.ReplaceAll(path, "'", "\\'")
	return path
}

func runFFmpeg(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 500 {
			msg = msg[len(msg)-500:]
		}
		return fmt.Errorf("ffmpeg: %w: %s", err, msg)
	}
	return nil
}
