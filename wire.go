package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	topics "github.com/synapsedaili/youtube-automation/01_topics"
	script "github.com/synapsedaili/youtube-automation/02_script"
	audio "github.com/synapsedaili/youtube-automation/03_audio"
	video "github.com/synapsedaili/youtube-automation/04_video"
	upload "github.com/synapsedaili/youtube-automation/05_upload"
	"github.com/synapsedaili/youtube-automation/config"
	"github.com/synapsedaili/youtube-automation/logging"
	"github.com/synapsedaili/youtube-automation/pipeline"
	"github.com/synapsedaili/youtube-automation/retry"
	"github.com/synapsedaili/youtube-automation/state"
	"github.com/synapsedaili/youtube-automation/types"
)

// app holds the state backends chosen in config.
type app struct {
	cfg     *config.Config
	rotator *topics.Rotator
	log     state.LogStore
	lock    state.Locker
	closers []func()
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}
	if err := a.openState(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *app) openState(ctx context.Context) error {
	sc := a.cfg.State

	var sqlite *state.SQLiteStore
	openSQLite := func() (*state.SQLiteStore, error) {
		if sqlite != nil {
			return sqlite, nil
		}
		s, err := state.OpenSQLite(ctx, sc.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("%w: open sqlite %s: %w", types.ErrConfiguration, sc.SQLitePath, err)
		}
		sqlite = s
		a.closers = append(a.closers, func() { s.Close() })
		return s, nil
	}

	var cursor state.RotationStore
	switch sc.Cursor {
	case "sqlite":
		s, err := openSQLite()
		if err != nil {
			return err
		}
		cursor = s
	default:
		cursor = state.FileCursor{Path: a.cfg.Paths.CursorFile}
	}
	a.rotator = topics.NewRotator(state.TopicFile{Path: a.cfg.Paths.TopicsFile}, cursor, logging.For("topics"))

	switch sc.Log {
	case "sqlite":
		s, err := openSQLite()
		if err != nil {
			return err
		}
		a.log = s
	case "postgres":
		dsn, err := requireEnv(sc.PostgresURLEnv)
		if err != nil {
			return err
		}
		pg, err := state.NewPostgresLog(ctx, dsn)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, pg.Close)
		a.log = pg
	default:
		a.log = state.NewJSONLLog(a.cfg.Paths.UploadLog)
	}

	switch sc.Lock {
	case "none":
		a.lock = state.NoLock{}
	case "redis":
		url, err := requireEnv(sc.RedisURLEnv)
		if err != nil {
			return err
		}
		rl, err := state.NewRedisLock(ctx, url, sc.RedisLockKey, time.Duration(sc.RedisLockTTLM)*time.Minute)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() { rl.Close() })
		a.lock = rl
	default:
		a.lock = state.FileLock{
			Path:       filepath.Join(a.cfg.Paths.Data, "run.lock"),
			StaleAfter: time.Duration(sc.LockStaleMin) * time.Minute,
		}
	}
	return nil
}

// orchestrator builds the stage implementations for a pipeline run.
func (a *app) orchestrator(ctx context.Context) (*pipeline.Orchestrator, error) {
	cfg := a.cfg

	strategies, err := script.FromConfig(ctx, cfg.Script, logging.For("script"))
	if err != nil {
		return nil, err
	}
	composer := script.NewComposer(strategies, cfg.Script.MinLength, logging.For("script"))

	engine, err := audio.NewEngine(cfg.Audio)
	if err != nil {
		return nil, err
	}
	renderer := audio.NewRenderer(engine, retry.Policy{
		MaxAttempts: cfg.Audio.Attempts,
		Backoff:     2 * time.Second,
	}, cfg.Audio.SegmentChars, logging.For("audio"))
	if fallback, err := audio.NewFallbackEngine(cfg.Audio); err != nil {
		logging.For("audio").Warn("fallback tts engine unavailable", "engine", cfg.Audio.FallbackEngine, "err", err)
	} else if fallback != nil {
		renderer.WithFallback(fallback)
	}

	creds, err := upload.NewCredentialProvider(cfg.Upload)
	if err != nil {
		return nil, err
	}

	deps := pipeline.Deps{
		Rotator:    a.rotator,
		Composer:   composer,
		Renderer:   renderer,
		Compositor: video.New(cfg.Video, logging.For("video")),
		Publisher:  upload.NewPublisher(cfg.Upload, creds, logging.For("upload")),
		Log:        a.log,
	}
	if url := os.Getenv(cfg.Notify.AMQPURLEnv); cfg.Notify.AMQPURLEnv != "" && url != "" {
		deps.Notifier = upload.NewAMQPNotifier(url, cfg.Notify.Queue, logging.For("notify"))
	}

	return pipeline.New(deps, pipeline.Options{
		TempDir:   cfg.Paths.Temp,
		RunsDir:   filepath.Join(cfg.Paths.Logs, "runs"),
		TitleMax:  cfg.Upload.TitleMaxChars,
		PublishAt: cfg.Upload.PublishAt,
		Timezone:  cfg.Upload.Timezone,
	}, logging.For("pipeline")), nil
}

func requireEnv(name string) (string, error) {
	v := os.Getenv(name)
	if v == "" {
		return "", fmt.Errorf("%w: %s is not set", types.ErrConfiguration, name)
	}
	return v, nil
}
