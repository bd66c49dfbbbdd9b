// Package pipeline runs one content mode end to end: topic, script,
// narration, video, upload, then the durable bookkeeping.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	topics "github.com/synapsedaili/youtube-automation/01_topics"
	upload "github.com/synapsedaili/youtube-automation/05_upload"
	"github.com/synapsedaili/youtube-automation/logging"
	"github.com/synapsedaili/youtube-automation/state"
	"github.com/synapsedaili/youtube-automation/types"
)

// Run states, in order. Failed is reachable from any state before Done.
const (
	StateInit          = "init"
	StateTopicSelected = "topic_selected"
	StateScriptReady   = "script_ready"
	StateAudioReady    = "audio_ready"
	StateVideoReady    = "video_ready"
	StatePublished     = "published"
	StateDone          = "done"
	StateFailed        = "failed"
)

// Rotation decides whether a successful run moves the topic cursor.
type Rotation string

const (
	RotationAdvance Rotation = "advance"
	RotationPeek    Rotation = "peek"
)

// ParseRotation validates a rotation name from flags or config.
func ParseRotation(s string) (Rotation, error) {
	switch Rotation(s) {
	case RotationAdvance, RotationPeek:
		return Rotation(s), nil
	}
	return "", fmt.Errorf("%w: rotation must be advance or peek, got %q", types.ErrConfiguration, s)
}

type TopicRotator interface {
	NextTopic(ctx context.Context) (topics.Selection, error)
	Advance(ctx context.Context) error
}

type ScriptComposer interface {
	Compose(ctx context.Context, topic string, mode types.ModeProfile) types.Script
}

type NarrationRenderer interface {
	Render(ctx context.Context, script types.Script, mode types.ModeProfile, workDir string) (types.AudioAsset, error)
}

type SceneCompositor interface {
	Compose(ctx context.Context, audio types.AudioAsset, script types.Script, mode types.ModeProfile, workDir string) (types.VideoAsset, error)
}

type Publisher interface {
	Publish(ctx context.Context, video types.VideoAsset, meta types.VideoMetadata) (string, error)
}

// Notifier is told about every recorded upload. Failures are logged only.
type Notifier interface {
	Notify(ctx context.Context, rec types.UploadRecord) error
}

// Deps are the stage implementations. Notifier may be nil.
type Deps struct {
	Rotator    TopicRotator
	Composer   ScriptComposer
	Renderer   NarrationRenderer
	Compositor SceneCompositor
	Publisher  Publisher
	Log        state.LogStore
	Notifier   Notifier
}

type Options struct {
	// TempDir holds the per-run scratch workspace. Empty means the OS default.
	TempDir string
	// RunsDir receives one diagnostic JSON file per run. Empty disables it.
	RunsDir  string
	TitleMax int
	// PublishAt and Timezone schedule public uploads; empty PublishAt uploads immediately.
	PublishAt string
	Timezone  string
}

// Request describes one run. Topic, when set, skips topic selection.
type Request struct {
	Mode     types.ModeProfile
	Rotation Rotation
	Topic    *topics.Selection
}

type Result struct {
	RunID   string
	Mode    types.Mode
	Topic   topics.Selection
	Script  types.Script
	VideoID string
	URL     string
	Record  types.UploadRecord
}

// RunError reports the state a run failed in.
type RunError struct {
	RunID string
	Mode  types.Mode
	State string
	Err   error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("run %s (%s) failed after %s: %v", e.RunID, e.Mode, e.State, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

type Orchestrator struct {
	deps Deps
	opts Options
	log  *log.Logger
	now  func() time.Time
}

func New(deps Deps, opts Options, logger *log.Logger) *Orchestrator {
	return &Orchestrator{deps: deps, opts: opts, log: logging.OrDefault(logger, "pipeline"), now: time.Now}
}

// Run executes one mode. Durable state changes only after the upload
// succeeds: the record is appended first, then the cursor is advanced
// when req.Rotation is RotationAdvance. The workspace is always removed.
func (o *Orchestrator) Run(ctx context.Context, req Request) (res Result, err error) {
	mode := req.Mode
	runID := uuid.NewString()[:8]
	logger := o.log.With("run", runID, "mode", mode.Mode)
	st := &types.PipelineState{
		RunID:     runID,
		Mode:      mode.Mode,
		State:     StateInit,
		StartedAt: o.now().UTC().Format(time.RFC3339),
	}
	res = Result{RunID: runID, Mode: mode.Mode}

	defer func() {
		st.CompletedAt = o.now().UTC().Format(time.RFC3339)
		if err != nil {
			rerr := &RunError{RunID: runID, Mode: mode.Mode, State: st.State, Err: err}
			st.State = StateFailed
			st.Error = err.Error()
			logger.Error("pipeline failed", "after", rerr.State, "topic", st.Topic, "kind", types.Kind(err), "err", err)
			err = rerr
		}
		o.saveState(st)
	}()

	if o.opts.TempDir != "" {
		if err := os.MkdirAll(o.opts.TempDir, 0755); err != nil {
			return res, fmt.Errorf("create temp dir: %w", err)
		}
	}
	workDir, err := os.MkdirTemp(o.opts.TempDir, "run-"+runID+"-")
	if err != nil {
		return res, fmt.Errorf("create workspace: %w", err)
	}
	defer os.RemoveAll(workDir)

	logger.Info("pipeline starting", "rotation", req.Rotation, "workspace", workDir)

	// Topic
	sel := topics.Selection{}
	if req.Topic != nil {
		sel = *req.Topic
	} else if sel, err = o.deps.Rotator.NextTopic(ctx); err != nil {
		return res, err
	}
	res.Topic = sel
	st.Topic, st.TopicIndex = sel.Topic, sel.Index
	st.State = StateTopicSelected
	logger.Info("topic", "topic", sel.Topic, "index", sel.Index)

	// Script
	script := o.deps.Composer.Compose(ctx, sel.Topic, mode)
	res.Script = script
	st.Script = &script
	st.State = StateScriptReady

	// Narration
	audio, err := o.deps.Renderer.Render(ctx, script, mode, workDir)
	if err != nil {
		return res, err
	}
	st.AudioFile = audio.Path
	st.State = StateAudioReady

	// Video
	video, err := o.deps.Compositor.Compose(ctx, audio, script, mode, workDir)
	if err != nil {
		return res, err
	}
	st.VideoFile = video.Path
	st.State = StateVideoReady

	// Upload
	meta := upload.BuildMetadata(sel.Topic, script, mode, o.opts.TitleMax)
	if o.opts.PublishAt != "" && meta.Visibility == types.VisibilityPublic {
		at, err := upload.NextPublishTime(o.now(), o.opts.PublishAt, o.opts.Timezone)
		if err != nil {
			return res, err
		}
		meta.ScheduledTimeUTC = at
	}
	st.Metadata = &meta

	videoID, err := o.deps.Publisher.Publish(ctx, video, meta)
	if err != nil {
		return res, err
	}
	res.VideoID, res.URL = videoID, upload.WatchURL(videoID)
	st.YouTubeID, st.YouTubeURL = res.VideoID, res.URL
	st.State = StatePublished

	// Bookkeeping
	rec := types.NewUploadRecord(o.now(), videoID, meta.Title, mode.Mode)
	if err := o.deps.Log.Append(ctx, rec); err != nil {
		return res, fmt.Errorf("record upload %s: %w", videoID, err)
	}
	res.Record = rec

	if o.deps.Notifier != nil {
		if err := o.deps.Notifier.Notify(ctx, rec); err != nil {
			logger.Warn("upload notification failed", "err", err)
		}
	}

	if req.Rotation == RotationAdvance {
		if err := o.deps.Rotator.Advance(ctx); err != nil {
			return res, fmt.Errorf("advance rotation after upload %s: %w", videoID, err)
		}
	}

	st.State = StateDone
	logger.Info("pipeline complete", "video", res.URL, "title", meta.Title)
	return res, nil
}

// BothPolicy controls topic selection when shorts and podcast run together.
type BothPolicy string

const (
	// BothShared serves one topic to both runs; only the shorts run advances.
	BothShared BothPolicy = "shared"
	// BothIndependent lets each run select and advance on its own.
	BothIndependent BothPolicy = "independent"
)

// RunBoth runs shorts then podcast, sequentially. The podcast run still
// happens when shorts fails; the errors are joined.
func (o *Orchestrator) RunBoth(ctx context.Context, shorts, podcast types.ModeProfile, policy BothPolicy) ([]Result, error) {
	var results []Result
	var errs []error

	first := Request{Mode: shorts, Rotation: RotationAdvance}
	second := Request{Mode: podcast, Rotation: RotationAdvance}
	if policy != BothIndependent {
		sel, err := o.deps.Rotator.NextTopic(ctx)
		if err != nil {
			runID := uuid.NewString()[:8]
			o.log.Error("pipeline failed", "run", runID, "mode", shorts.Mode, "after", StateInit, "kind", types.Kind(err), "err", err)
			return nil, &RunError{RunID: runID, Mode: shorts.Mode, State: StateInit, Err: err}
		}
		first.Topic = &sel
		second.Topic = &sel
		second.Rotation = RotationPeek
	}

	for _, req := range []Request{first, second} {
		res, err := o.Run(ctx, req)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		results = append(results, res)
	}
	return results, errors.Join(errs...)
}

func (o *Orchestrator) saveState(st *types.PipelineState) {
	if o.opts.RunsDir == "" {
		return
	}
	path := filepath.Join(o.opts.RunsDir, st.RunID+".json")
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		o.log.Warn("could not marshal run state", "path", path, "err", err)
		return
	}
	if err := state.WriteFileAtomic(path, data, 0644); err != nil {
		o.log.Warn("could not save run state", "path", path, "err", err)
	}
}
