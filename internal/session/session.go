// Package session assembles one clip-making session: the engine, its assets,
// the prober and the pipeline orchestrator, all built from settings.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/hashicorp/go-hclog"

	"clipmix/internal/assets"
	"clipmix/internal/domain"
	"clipmix/internal/engine"
	"clipmix/internal/jobs"
	"clipmix/internal/pipeline"
	"clipmix/internal/probe"
)

const (
	lockFileName   = "engine.lock"
	lockRetryDelay = 250 * time.Millisecond
	eventHistory   = 1000
)

// ErrCacheLocked is returned when another process holds the engine cache lock
// past the caller's deadline.
var ErrCacheLocked = errors.New("engine cache is locked by another clipmix process")

// PresenterFactory builds the presenter once the session prober exists.
type PresenterFactory func(prober *probe.Prober) pipeline.Presenter

// Session owns the per-process pipeline collaborators.
type Session struct {
	Settings     domain.Settings
	Logger       hclog.Logger
	Engine       *engine.Engine
	Assets       *assets.Loader
	Prober       *probe.Prober
	Events       *jobs.EventBus
	Orchestrator *pipeline.Orchestrator

	lock *flock.Flock
}

// New wires a session. The engine is not initialized yet.
func New(settings domain.Settings, logger hclog.Logger, newPresenter PresenterFactory) (*Session, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	client := &http.Client{}

	eng := engine.New(engine.Options{
		FFmpegPath:  settings.FFmpegPath,
		DownloadURL: settings.EngineDownloadURL,
		CacheDir:    settings.CacheDir,
		WorkDir:     settings.WorkDir,
		Logger:      logger,
		HTTPClient:  client,
	})
	loader := assets.NewLoader(settings.BackgroundTrackPath, settings.FontURL, client, logger)
	prober := probe.NewProber(settings.FFprobePath, logger)
	events := jobs.NewEventBus(eventHistory)

	orch, err := pipeline.New(eng, newPresenter(prober), loader, pipeline.Options{
		Events: events,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create orchestrator: %w", err)
	}

	return &Session{
		Settings:     settings,
		Logger:       logger,
		Engine:       eng,
		Assets:       loader,
		Prober:       prober,
		Events:       events,
		Orchestrator: orch,
		lock:         flock.New(filepath.Join(settings.CacheDir, lockFileName)),
	}, nil
}

// Initialize brings the engine to ready. The cache lock keeps concurrent
// processes from downloading the same build into one cache directory.
func (s *Session) Initialize(ctx context.Context) error {
	if s.Engine.Ready() {
		return nil
	}
	if err := os.MkdirAll(s.Settings.CacheDir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	locked, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %v", ErrCacheLocked, ctx.Err())
		}
		return fmt.Errorf("acquire cache lock: %w", err)
	}
	if !locked {
		return ErrCacheLocked
	}
	defer func() {
		if err := s.lock.Unlock(); err != nil {
			s.Logger.Warn("failed to release cache lock", "path", s.lock.Path(), "error", err)
		}
	}()

	return s.Engine.Initialize(ctx)
}

// Close tears down the orchestrator and removes the engine workspace.
func (s *Session) Close() error {
	s.Orchestrator.Close()
	return s.Engine.Close()
}
