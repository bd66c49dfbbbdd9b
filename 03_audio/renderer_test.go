package audio

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/synapsedaili/youtube-automation/config"
	"github.com/synapsedaili/youtube-automation/logging"
	"github.com/synapsedaili/youtube-automation/retry"
	"github.com/synapsedaili/youtube-automation/types"
)

type fakeEngine struct {
	texts    []string
	failures int
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Synthesize(_ context.Context, text, _ string, outFile string) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("tts service hiccup")
	}
	f.texts = append(f.texts, text)
	return os.WriteFile(outFile, []byte("mp3"), 0644)
}

func newTestRenderer(engine Engine, segmentChars int) (*Renderer, *[]string) {
	var joined []string
	r := NewRenderer(engine, retry.Policy{
		MaxAttempts: 3,
		Sleep:       func(context.Context, time.Duration) error { return nil },
	}, segmentChars, logging.Discard())
	r.probe = func(context.Context, string) (time.Duration, error) { return 42 * time.Second, nil }
	r.concat = func(_ context.Context, files []string, _, outFile string) error {
		joined = files
		return os.WriteFile(outFile, []byte("joined"), 0644)
	}
	return r, &joined
}

func TestRenderSingleSegment(t *testing.T) {
	engine := &fakeEngine{failures: 2}
	r, joined := newTestRenderer(engine, 3000)

	asset, err := r.Render(context.Background(), types.Script{Text: "Project Orion.\n\nIt never flew."},
		types.ModeProfile{Voice: "en-US-GuyNeural"}, t.TempDir())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if asset.Duration != 42*time.Second {
		t.Errorf("duration = %v", asset.Duration)
	}
	if filepath.Base(asset.Path) != "segment_000.mp3" {
		t.Errorf("path = %s", asset.Path)
	}
	if len(*joined) != 0 {
		t.Error("single segment should not be concatenated")
	}
	if len(engine.texts) != 1 {
		t.Errorf("synthesised %d times, want 1 success after retries", len(engine.texts))
	}
}

func TestRenderConcatenatesSegments(t *testing.T) {
	engine := &fakeEngine{}
	r, joined := newTestRenderer(engine, 40)
	text := "First paragraph is here.\n\nSecond paragraph is a little longer than that.\n\nThird."

	asset, err := r.Render(context.Background(), types.Script{Text: text}, types.ModeProfile{}, t.TempDir())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if filepath.Base(asset.Path) != "narration.mp3" {
		t.Errorf("path = %s", asset.Path)
	}
	if len(*joined) != len(engine.texts) || len(engine.texts) < 2 {
		t.Fatalf("joined %d files for %d segments", len(*joined), len(engine.texts))
	}
	for _, s := range engine.texts {
		if len(s) > 40 {
			t.Errorf("segment over limit: %q", s)
		}
	}
}

func TestRenderFailureIsRenderError(t *testing.T) {
	r, _ := newTestRenderer(&fakeEngine{failures: 10}, 3000)
	_, err := r.Render(context.Background(), types.Script{Text: "hello"}, types.ModeProfile{}, t.TempDir())
	if !errors.Is(err, types.ErrRender) {
		t.Fatalf("expected ErrRender, got %v", err)
	}
}

func TestRenderFallsBackToSecondEngine(t *testing.T) {
	primary := &fakeEngine{failures: 100}
	fallback := &fakeEngine{}
	r, joined := newTestRenderer(primary, 40)
	r.WithFallback(fallback)
	text := "First paragraph is here.\n\nSecond paragraph is a little longer than that."

	asset, err := r.Render(context.Background(), types.Script{Text: text}, types.ModeProfile{}, t.TempDir())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if primary.failures != 97 {
		t.Errorf("primary attempts = %d, want 3", 100-primary.failures)
	}
	if len(primary.texts) != 0 {
		t.Errorf("primary rendered %d segments", len(primary.texts))
	}
	if len(fallback.texts) < 2 || len(*joined) != len(fallback.texts) {
		t.Errorf("fallback rendered %d segments, joined %d", len(fallback.texts), len(*joined))
	}
	if asset.Duration != 42*time.Second {
		t.Errorf("duration = %v", asset.Duration)
	}
}

func TestRenderBothEnginesFailing(t *testing.T) {
	r, _ := newTestRenderer(&fakeEngine{failures: 10}, 3000)
	fallback := &fakeEngine{failures: 10}
	r.WithFallback(fallback)

	_, err := r.Render(context.Background(), types.Script{Text: "hello"}, types.ModeProfile{}, t.TempDir())
	if !errors.Is(err, types.ErrRender) {
		t.Fatalf("expected ErrRender, got %v", err)
	}
	if fallback.failures != 7 {
		t.Errorf("fallback attempts = %d, want 3", 10-fallback.failures)
	}
}

func TestNewFallbackEngine(t *testing.T) {
	for _, cfg := range []config.AudioConfig{
		{Engine: "edge-tts"},
		{Engine: "edge-tts", FallbackEngine: "edge-tts"},
	} {
		e, err := NewFallbackEngine(cfg)
		if err != nil || e != nil {
			t.Errorf("%+v: got %v, %v; want no fallback", cfg, e, err)
		}
	}

	t.Setenv("TTS_COMMAND", "")
	t.Setenv("TEST_ELEVENLABS_KEY", "")
	_, err := NewFallbackEngine(config.AudioConfig{Engine: "command", Command: "say", FallbackEngine: "elevenlabs", ElevenLabsKeyEnv: "TEST_ELEVENLABS_KEY"})
	if !errors.Is(err, types.ErrConfiguration) {
		t.Fatalf("missing key: err = %v, want ErrConfiguration", err)
	}

	t.Setenv("TEST_ELEVENLABS_KEY", "k")
	e, err := NewFallbackEngine(config.AudioConfig{Engine: "command", Command: "say", FallbackEngine: "elevenlabs", ElevenLabsKeyEnv: "TEST_ELEVENLABS_KEY"})
	if err != nil || e == nil {
		t.Fatalf("got %v, %v", e, err)
	}
}

func TestSplitSegmentsKeepsAllWords(t *testing.T) {
	text := "One two three. Four five six seven eight nine ten eleven twelve.\n\nThirteen fourteen."
	segs := splitSegments(text, 25)
	if got := strings.Fields(strings.Join(segs, " ")); len(got) != len(strings.Fields(text)) {
		t.Errorf("words lost: %q", segs)
	}
	for _, s := range segs {
		if len(s) > 25 {
			t.Errorf("segment %q over 25 bytes", s)
		}
	}
}

func TestParseDuration(t *testing.T) {
	d, err := parseDuration("61.520000\n")
	if err != nil {
		t.Fatal(err)
	}
	if d != 61520*time.Millisecond {
		t.Errorf("d = %v", d)
	}
	if _, err := parseDuration("N/A"); err == nil {
		t.Error("expected error for N/A")
	}
}

func TestCommandEngineArgs(t *testing.T) {
	name, args := (&CommandEngine{Command: "edge-tts"}).args("hi", "en-GB-RyanNeural", "/tmp/o.mp3")
	if name != "edge-tts" || strings.Join(args, " ") != "--voice en-GB-RyanNeural --text hi --write-media /tmp/o.mp3" {
		t.Errorf("edge-tts: %s %q", name, args)
	}
	name, args = (&CommandEngine{Command: "scripts/piper.py"}).args("hi", "", "o.mp3")
	if name != "python3" || args[0] != "scripts/piper.py" {
		t.Errorf("python: %s %q", name, args)
	}
}

func TestElevenLabsEngine(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("xi-api-key") != "k" {
			t.Errorf("missing api key header")
		}
		if !strings.HasPrefix(r.URL.Path, "/v1/text-to-speech/voice1") {
			t.Errorf("path = %s", r.URL.Path)
		}
		io.WriteString(w, "ID3fake")
	}))
	defer srv.Close()

	e := NewElevenLabsEngine("k", "voice1")
	e.baseURL = srv.URL
	out := filepath.Join(t.TempDir(), "o.mp3")
	if err := e.Synthesize(context.Background(), "hello", "", out); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if data, _ := os.ReadFile(out); string(data) != "ID3fake" {
		t.Errorf("audio = %q", data)
	}
}

func TestNewEngine(t *testing.T) {
	t.Setenv("TEST_ELEVEN_KEY", "")
	_, err := NewEngine(config.AudioConfig{Engine: "elevenlabs", ElevenLabsKeyEnv: "TEST_ELEVEN_KEY"})
	if !errors.Is(err, types.ErrConfiguration) {
		t.Fatalf("missing key: got %v", err)
	}

	t.Setenv("TEST_ELEVEN_KEY", "k")
	e, err := NewEngine(config.AudioConfig{Engine: "elevenlabs", ElevenLabsKeyEnv: "TEST_ELEVEN_KEY"})
	if err != nil || e.Name() != "elevenlabs" {
		t.Fatalf("elevenlabs: %v %v", e, err)
	}

	t.Setenv("TTS_COMMAND", "")
	e, err = NewEngine(config.AudioConfig{Engine: "command", Command: "/opt/tts/speak"})
	if err != nil || e.Name() != "/opt/tts/speak" {
		t.Fatalf("command: %v %v", e, err)
	}
}
