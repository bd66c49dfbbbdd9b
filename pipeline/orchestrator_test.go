package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	topics "github.com/synapsedaili/youtube-automation/01_topics"
	script "github.com/synapsedaili/youtube-automation/02_script"
	"github.com/synapsedaili/youtube-automation/logging"
	"github.com/synapsedaili/youtube-automation/state"
	"github.com/synapsedaili/youtube-automation/types"
)

const testCTA = "Don't forget to like, comment, and subscribe for more lost futures!"

type fakeRenderer struct{ err error }

func (f fakeRenderer) Render(_ context.Context, _ types.Script, _ types.ModeProfile, workDir string) (types.AudioAsset, error) {
	path := filepath.Join(workDir, "narration.mp3")
	if err := os.WriteFile(path, []byte("mp3"), 0644); err != nil {
		return types.AudioAsset{}, err
	}
	if f.err != nil {
		return types.AudioAsset{}, f.err
	}
	return types.AudioAsset{Path: path, Duration: 30 * time.Second}, nil
}

type fakeCompositor struct{}

func (fakeCompositor) Compose(_ context.Context, audio types.AudioAsset, _ types.Script, mode types.ModeProfile, workDir string) (types.VideoAsset, error) {
	path := filepath.Join(workDir, "video.mp4")
	if err := os.WriteFile(path, []byte("mp4"), 0644); err != nil {
		return types.VideoAsset{}, err
	}
	return types.VideoAsset{Path: path, Duration: audio.Duration, Width: mode.Width, Height: mode.Height}, nil
}

type fakePublisher struct {
	calls []types.VideoMetadata
	err   error
}

func (f *fakePublisher) Publish(_ context.Context, video types.VideoAsset, meta types.VideoMetadata) (string, error) {
	if _, err := os.Stat(video.Path); err != nil {
		return "", fmt.Errorf("video missing at publish time: %w", err)
	}
	f.calls = append(f.calls, meta)
	if f.err != nil {
		return "", f.err
	}
	return fmt.Sprintf("vid-%d", len(f.calls)), nil
}

type recordingNotifier struct{ recs []types.UploadRecord }

func (n *recordingNotifier) Notify(_ context.Context, rec types.UploadRecord) error {
	n.recs = append(n.recs, rec)
	return errors.New("broker down")
}

type fixture struct {
	orch       *Orchestrator
	publisher  *fakePublisher
	notifier   *recordingNotifier
	cursorPath string
	logPath    string
	tempDir    string
	runsDir    string
}

func newFixture(t *testing.T, renderErr error) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{
		publisher:  &fakePublisher{},
		notifier:   &recordingNotifier{},
		cursorPath: filepath.Join(dir, "sidea.txt"),
		logPath:    filepath.Join(dir, "upload_log.jsonl"),
		tempDir:    filepath.Join(dir, "temp"),
		runsDir:    filepath.Join(dir, "runs"),
	}
	topicsPath := filepath.Join(dir, "idea.txt")
	os.WriteFile(topicsPath, []byte("A\nB\nC\n"), 0644)
	os.WriteFile(f.cursorPath, []byte("1"), 0644)

	f.orch = New(Deps{
		Rotator:    topics.NewRotator(state.TopicFile{Path: topicsPath}, state.FileCursor{Path: f.cursorPath}, logging.Discard()),
		Composer:   script.NewComposer(nil, 0, logging.Discard()),
		Renderer:   fakeRenderer{err: renderErr},
		Compositor: fakeCompositor{},
		Publisher:  f.publisher,
		Log:        state.NewJSONLLog(f.logPath),
		Notifier:   f.notifier,
	}, Options{TempDir: f.tempDir, RunsDir: f.runsDir, TitleMax: 95}, logging.Discard())
	f.orch.now = func() time.Time { return time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC) }
	return f
}

func (f *fixture) cursor(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(f.cursorPath)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func (f *fixture) records(t *testing.T) []types.UploadRecord {
	t.Helper()
	recs, err := state.NewJSONLLog(f.logPath).Records(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return recs
}

func (f *fixture) assertWorkspaceClean(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(f.tempDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("temp dir not cleaned: %d entries left", len(entries))
	}
}

func shortsProfile() types.ModeProfile {
	return types.ModeProfile{
		Mode:           types.ModeShorts,
		CharBudget:     1000,
		MaxDuration:    60 * time.Second,
		Width:          1080,
		Height:         1920,
		CallToAction:   testCTA,
		CategoryID:     "22",
		Visibility:     types.VisibilityPrivate,
		DescriptionLen: 300,
		Footer:         "#shorts",
	}
}

func podcastProfile() types.ModeProfile {
	p := shortsProfile()
	p.Mode = types.ModePodcast
	p.CharBudget = 15000
	p.CategoryID = "27"
	return p
}

func TestRunSuccessRecordsAndAdvances(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.orch.Run(context.Background(), Request{Mode: shortsProfile(), Rotation: RotationAdvance})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Topic.Topic != "A" || res.VideoID != "vid-1" {
		t.Errorf("result = %+v", res)
	}
	if !strings.Contains(res.Script.Text, testCTA) || res.Script.Strategy != "template" {
		t.Errorf("script = %+v", res.Script)
	}

	recs := f.records(t)
	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}
	if recs[0].ExternalVideoID != "vid-1" || recs[0].Title != "A" || recs[0].Mode != types.ModeShorts {
		t.Errorf("record = %+v", recs[0])
	}
	if recs[0].Timestamp != "2026-10-19T09:00:00Z" {
		t.Errorf("timestamp = %q", recs[0].Timestamp)
	}
	if got := f.cursor(t); got != "2" {
		t.Errorf("cursor = %q, want 2", got)
	}
	if len(f.notifier.recs) != 1 {
		t.Errorf("notifier called %d times", len(f.notifier.recs))
	}
	f.assertWorkspaceClean(t)

	if _, err := os.Stat(filepath.Join(f.runsDir, res.RunID+".json")); err != nil {
		t.Errorf("run state not written: %v", err)
	}
}

func TestRunPeekDoesNotAdvance(t *testing.T) {
	f := newFixture(t, nil)
	for i := 0; i < 2; i++ {
		res, err := f.orch.Run(context.Background(), Request{Mode: podcastProfile(), Rotation: RotationPeek})
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if res.Topic.Topic != "A" {
			t.Errorf("run %d topic = %q, want A", i, res.Topic.Topic)
		}
	}
	if got := f.cursor(t); got != "1" {
		t.Errorf("cursor = %q, want 1", got)
	}
	if len(f.records(t)) != 2 {
		t.Error("each successful run should append a record")
	}
}

func TestRenderFailureLeavesStateUntouched(t *testing.T) {
	f := newFixture(t, fmt.Errorf("%w: tts exploded", types.ErrRender))
	before := f.cursor(t)

	_, err := f.orch.Run(context.Background(), Request{Mode: shortsProfile(), Rotation: RotationAdvance})
	if !errors.Is(err, types.ErrRender) {
		t.Fatalf("expected ErrRender, got %v", err)
	}
	var rerr *RunError
	if !errors.As(err, &rerr) || rerr.State != StateScriptReady {
		t.Fatalf("expected RunError after script_ready, got %#v", err)
	}

	if got := f.cursor(t); got != before {
		t.Errorf("cursor changed: %q -> %q", before, got)
	}
	if _, err := os.Stat(f.logPath); !os.IsNotExist(err) {
		t.Errorf("upload log touched: %v", err)
	}
	if len(f.publisher.calls) != 0 {
		t.Error("publisher called after render failure")
	}
	f.assertWorkspaceClean(t)
}

func TestFailureLogNamesTopic(t *testing.T) {
	f := newFixture(t, fmt.Errorf("%w: tts exploded", types.ErrRender))
	var buf bytes.Buffer
	f.orch.log = log.New(&buf)

	if _, err := f.orch.Run(context.Background(), Request{Mode: shortsProfile(), Rotation: RotationAdvance}); err == nil {
		t.Fatal("expected failure")
	}
	out := buf.String()
	if !strings.Contains(out, "pipeline failed") || !strings.Contains(out, "topic=A") {
		t.Errorf("failure log lacks topic:\n%s", out)
	}
}

func TestPublishFailureDoesNotAdvance(t *testing.T) {
	f := newFixture(t, nil)
	f.publisher.err = fmt.Errorf("%w: quota", types.ErrPublish)

	_, err := f.orch.Run(context.Background(), Request{Mode: shortsProfile(), Rotation: RotationAdvance})
	if !errors.Is(err, types.ErrPublish) {
		t.Fatalf("got %v", err)
	}
	if got := f.cursor(t); got != "1" {
		t.Errorf("cursor = %q", got)
	}
	if len(f.records(t)) != 0 {
		t.Error("failed upload recorded")
	}
	f.assertWorkspaceClean(t)
}

type failingLog struct{ err error }

func (l failingLog) Append(context.Context, types.UploadRecord) error { return l.err }

func (l failingLog) Records(context.Context) ([]types.UploadRecord, error) { return nil, nil }

func TestRecordFailureDoesNotAdvance(t *testing.T) {
	f := newFixture(t, nil)
	diskFull := errors.New("no space left on device")
	f.orch.deps.Log = failingLog{err: diskFull}

	_, err := f.orch.Run(context.Background(), Request{Mode: shortsProfile(), Rotation: RotationAdvance})
	if !errors.Is(err, diskFull) {
		t.Fatalf("expected log error, got %v", err)
	}
	var rerr *RunError
	if !errors.As(err, &rerr) || rerr.State != StatePublished {
		t.Fatalf("expected RunError after published, got %#v", err)
	}
	if len(f.publisher.calls) != 1 {
		t.Errorf("publisher called %d times", len(f.publisher.calls))
	}
	if got := f.cursor(t); got != "1" {
		t.Errorf("cursor = %q, want 1", got)
	}
	if len(f.notifier.recs) != 0 {
		t.Error("unrecorded upload was announced")
	}
	f.assertWorkspaceClean(t)
}

func TestRunBothSharedTopicFailure(t *testing.T) {
	f := newFixture(t, nil)
	topicsPath := filepath.Join(filepath.Dir(f.cursorPath), "idea.txt")
	if err := os.WriteFile(topicsPath, []byte("\n"), 0644); err != nil {
		t.Fatal(err)
	}

	results, err := f.orch.RunBoth(context.Background(), shortsProfile(), podcastProfile(), BothShared)
	if len(results) != 0 || !errors.Is(err, types.ErrConfiguration) {
		t.Fatalf("results=%v err=%v", results, err)
	}
	var rerr *RunError
	if !errors.As(err, &rerr) || rerr.State != StateInit || rerr.Mode != types.ModeShorts || rerr.RunID == "" {
		t.Fatalf("expected RunError at init, got %#v", err)
	}
	if len(f.publisher.calls) != 0 {
		t.Error("publisher called without a topic")
	}
	if got := f.cursor(t); got != "1" {
		t.Errorf("cursor = %q", got)
	}
}

func TestRunBothShared(t *testing.T) {
	f := newFixture(t, nil)

	results, err := f.orch.RunBoth(context.Background(), shortsProfile(), podcastProfile(), BothShared)
	if err != nil {
		t.Fatalf("RunBoth: %v", err)
	}
	if len(results) != 2 || results[0].Topic.Topic != "A" || results[1].Topic.Topic != "A" {
		t.Fatalf("results = %+v", results)
	}
	if got := f.cursor(t); got != "2" {
		t.Errorf("cursor = %q, want 2 (advanced once)", got)
	}
	recs := f.records(t)
	if len(recs) != 2 || recs[0].Mode != types.ModeShorts || recs[1].Mode != types.ModePodcast {
		t.Errorf("records = %+v", recs)
	}
}

func TestRunBothIndependent(t *testing.T) {
	f := newFixture(t, nil)

	results, err := f.orch.RunBoth(context.Background(), shortsProfile(), podcastProfile(), BothIndependent)
	if err != nil {
		t.Fatalf("RunBoth: %v", err)
	}
	if results[0].Topic.Topic != "A" || results[1].Topic.Topic != "B" {
		t.Errorf("topics = %q, %q", results[0].Topic.Topic, results[1].Topic.Topic)
	}
	if got := f.cursor(t); got != "3" {
		t.Errorf("cursor = %q, want 3", got)
	}
}

func TestRunBothJoinsErrors(t *testing.T) {
	f := newFixture(t, fmt.Errorf("%w: no voice", types.ErrRender))

	results, err := f.orch.RunBoth(context.Background(), shortsProfile(), podcastProfile(), BothShared)
	if len(results) != 0 || !errors.Is(err, types.ErrRender) {
		t.Fatalf("results=%v err=%v", results, err)
	}
	if n := strings.Count(err.Error(), "failed after"); n != 2 {
		t.Errorf("expected both runs reported, got %q", err)
	}
	if got := f.cursor(t); got != "1" {
		t.Errorf("cursor = %q", got)
	}
}

func TestScheduledPublishOnlyForPublic(t *testing.T) {
	f := newFixture(t, nil)
	f.orch.opts.PublishAt = "18:00"
	f.orch.opts.Timezone = "UTC"

	mode := shortsProfile()
	if _, err := f.orch.Run(context.Background(), Request{Mode: mode, Rotation: RotationPeek}); err != nil {
		t.Fatal(err)
	}
	mode.Visibility = types.VisibilityPublic
	if _, err := f.orch.Run(context.Background(), Request{Mode: mode, Rotation: RotationPeek}); err != nil {
		t.Fatal(err)
	}

	if f.publisher.calls[0].ScheduledTimeUTC != "" {
		t.Error("private upload was scheduled")
	}
	if got := f.publisher.calls[1].ScheduledTimeUTC; got != "2026-10-19T18:00:00Z" {
		t.Errorf("scheduled = %q", got)
	}
}

func TestParseRotation(t *testing.T) {
	if r, err := ParseRotation("peek"); err != nil || r != RotationPeek {
		t.Errorf("peek: %v %v", r, err)
	}
	if _, err := ParseRotation("sideways"); !errors.Is(err, types.ErrConfiguration) {
		t.Errorf("bad: %v", err)
	}
}
