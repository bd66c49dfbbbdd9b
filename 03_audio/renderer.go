package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/synapsedaili/youtube-automation/logging"
	"github.com/synapsedaili/youtube-automation/retry"
	"github.com/synapsedaili/youtube-automation/types"
)

// Engine synthesises one piece of text into an audio file.
type Engine interface {
	Name() string
	Synthesize(ctx context.Context, text, voice, outFile string) error
}

// Renderer turns a script into one narration file. Long scripts are split
// into segments, synthesised one by one and joined with ffmpeg.
type Renderer struct {
	engine       Engine
	fallback     Engine
	policy       retry.Policy
	segmentChars int
	log          *log.Logger

	// probe and concat shell out to ffprobe/ffmpeg; tests replace them.
	probe  func(ctx context.Context, file string) (time.Duration, error)
	concat func(ctx context.Context, files []string, workDir, outFile string) error
}

func NewRenderer(engine Engine, policy retry.Policy, segmentChars int, logger *log.Logger) *Renderer {
	if segmentChars <= 0 {
		segmentChars = 3000
	}
	r := &Renderer{
		engine:       engine,
		policy:       policy,
		segmentChars: segmentChars,
		log:          logging.OrDefault(logger, "audio"),
		probe:        probeDuration,
		concat:       concatenateAudio,
	}
	if r.policy.OnRetry == nil {
		r.policy.OnRetry = func(attempt int, wait time.Duration, err error) {
			r.log.Warn("tts attempt failed, retrying", "attempt", attempt, "wait", wait, "err", err)
		}
	}
	return r
}

// WithFallback sets an engine that re-renders the whole script once the
// primary engine has exhausted its attempts. A nil engine disables it.
func (r *Renderer) WithFallback(engine Engine) *Renderer {
	r.fallback = engine
	return r
}

// Render writes narration.mp3 into workDir and measures its duration.
func (r *Renderer) Render(ctx context.Context, script types.Script, mode types.ModeProfile, workDir string) (types.AudioAsset, error) {
	segments := splitSegments(script.Text, r.segmentChars)
	if len(segments) == 0 {
		return types.AudioAsset{}, fmt.Errorf("%w: empty script", types.ErrRender)
	}
	r.log.Info("generating narration", "engine", r.engine.Name(), "voice", mode.Voice, "segments", len(segments))

	audioDir := filepath.Join(workDir, "audio")
	if err := os.MkdirAll(audioDir, 0755); err != nil {
		return types.AudioAsset{}, fmt.Errorf("%w: create audio dir: %w", types.ErrRender, err)
	}

	files, err := r.synthesize(ctx, r.engine, segments, mode.Voice, audioDir)
	if err != nil && r.fallback != nil && ctx.Err() == nil {
		r.log.Warn("primary tts failed, switching engine", "engine", r.engine.Name(), "fallback", r.fallback.Name(), "err", err)
		var ferr error
		if files, ferr = r.synthesize(ctx, r.fallback, segments, mode.Voice, audioDir); ferr != nil {
			err = errors.Join(err, ferr)
		} else {
			err = nil
		}
	}
	if err != nil {
		return types.AudioAsset{}, fmt.Errorf("%w: %w", types.ErrRender, err)
	}

	final := files[0]
	if len(files) > 1 {
		final = filepath.Join(audioDir, "narration.mp3")
		if err := r.concat(ctx, files, audioDir, final); err != nil {
			return types.AudioAsset{}, fmt.Errorf("%w: concatenate audio: %w", types.ErrRender, err)
		}
	}

	dur, err := r.probe(ctx, final)
	if err != nil {
		return types.AudioAsset{}, fmt.Errorf("%w: measure duration: %w", types.ErrRender, err)
	}
	if dur <= 0 {
		return types.AudioAsset{}, fmt.Errorf("%w: narration has zero duration", types.ErrRender)
	}

	r.log.Info("narration ready", "file", final, "duration", dur.Round(time.Millisecond))
	return types.AudioAsset{Path: final, Duration: dur}, nil
}

// synthesize renders every segment with one engine so the narration keeps a
// single voice.
func (r *Renderer) synthesize(ctx context.Context, engine Engine, segments []string, voice, audioDir string) ([]string, error) {
	files := make([]string, 0, len(segments))
	for i, seg := range segments {
		outFile := filepath.Join(audioDir, fmt.Sprintf("segment_%03d.mp3", i))
		r.log.Debug("synthesising segment", "engine", engine.Name(), "n", i+1, "of", len(segments), "chars", len(seg))
		err := r.policy.Do(ctx, func(ctx context.Context) error {
			return engine.Synthesize(ctx, seg, voice, outFile)
		})
		if err != nil {
			return nil, fmt.Errorf("%s segment %d: %w", engine.Name(), i, err)
		}
		files = append(files, outFile)
	}
	return files, nil
}

// splitSegments breaks text into chunks of at most max bytes, preferring
// paragraph and then sentence boundaries.
func splitSegments(text string, max int) []string {
	var out []string
	var cur strings.Builder
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			out = append(out, s)
		}
		cur.Reset()
	}
	add := func(piece, sep string) {
		if cur.Len() > 0 && cur.Len()+len(sep)+len(piece) > max {
			flush()
		}
		if cur.Len() > 0 {
			cur.WriteString(sep)
		}
		cur.WriteString(piece)
	}

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if len(para) <= max {
			add(para, "\n\n")
			continue
		}
		for _, sentence := range splitSentences(para) {
			for len(sentence) > max {
				i := cutIndex(sentence, max)
				add(strings.TrimSpace(sentence[:i]), " ")
				sentence = strings.TrimSpace(sentence[i:])
			}
			add(sentence, " ")
		}
	}
	flush()
	return out
}

// cutIndex finds a split point at or before max: the last space if there is
// one, otherwise the nearest rune boundary.
func cutIndex(s string, max int) int {
	if i := strings.LastIndexByte(s[:max], ' '); i > 0 {
		return i
	}
	i := max
	for i > 1 && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

func splitSentences(para string) []string {
	var out []string
	start := 0
	for i := 0; i < len(para); i++ {
		switch para[i] {
		case '.', '!', '?':
			if i+1 == len(para) || para[i+1] == ' ' || para[i+1] == '\n' {
				out = append(out, strings.TrimSpace(para[start:i+1]))
				start = i + 1
			}
		}
	}
	if rest := strings.TrimSpace(para[start:]); rest != "" {
		out = append(out, rest)
	}
	return out
}

// concatenateAudio uses ffmpeg to join all segment files in order
func concatenateAudio(ctx context.Context, files []string, workDir, outFile string) error {
	listFile := filepath.Join(workDir, "concat_list.txt")
	var lines []string
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return err
		}
		lines = append(lines, fmt.Sprintf("file '%s'", strings.ReplaceAll(abs, "'", `'\''`)))
	}
	if err := os.WriteFile(listFile, []byte(strings.Join(lines, "\n")), 0644); err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", "-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-c", "copy",
		outFile,
	)
	return runQuiet(cmd)
}

// probeDuration uses ffprobe to get accurate audio duration
func probeDuration(ctx context.Context, file string) (time.Duration, error) {
	out, err := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		file,
	).Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}
	return parseDuration(string(out))
}

func parseDuration(s string) (time.Duration, error) {
	var secs float64
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%f", &secs); err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", strings.TrimSpace(s), err)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// runQuiet runs cmd and folds the tail of its stderr into the error.
func runQuiet(cmd *exec.Cmd) error {
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 500 {
			msg = msg[len(msg)-500:]
		}
		return fmt.Errorf("%s: %w: %s", filepath.Base(cmd.Path), err, msg)
	}
	return nil
}
