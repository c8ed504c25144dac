// Package bootstrap wires the desktop client: settings, diagnostics, the
// clip session and the Wails runtime bindings the frontend calls.
package bootstrap

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"clipmix/internal/config"
	"clipmix/internal/diagnostics"
	"clipmix/internal/domain"
	"clipmix/internal/jobs"
	"clipmix/internal/logging"
	"clipmix/internal/pipeline"
	"clipmix/internal/probe"
	"clipmix/internal/session"
	"clipmix/internal/upload"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

const (
	resultFileName     = "result.mp4"
	engineStartTimeout = 45 * time.Minute
)


var videoDialogFilter = []wailsruntime.FileFilter{
	{
		DisplayName: "Video files",
		Pattern:     "*.mp4;*.mov;*.mkv;*.avi;*.webm;*.m4v",
	},
	{
		DisplayName: "All files",
		Pattern:     "*",
	},
}

// clipPipeline isolates the session orchestrator behind an interface.
type clipPipeline interface {
	RunPreview(ctx context.Context, upload []byte) (domain.Artifact, error)
	RunMerge(ctx context.Context, req domain.MergeRequest) (domain.Artifact, error)
	LastPreview() (domain.Artifact, bool)
	LastResult() (domain.Artifact, bool)
	Jobs() []domain.Job
}

type engineHandle interface {
	Status() domain.EngineStatus
	OnDownload(fn func(float64)) (func(), error)
}

// App wires configuration, the clip session, and UI runtime callbacks.
type App struct {
	Settings    domain.Settings
	Store       config.Store
	Pipeline    clipPipeline
	Engine      engineHandle
	Diagnostics domain.DiagnosticReport
	assets      fs.FS
	checker     *diagnostics.Checker
	installer   *installer
	presenter   *artifactPresenter
	logger      hclog.Logger

	initEngine   func(ctx context.Context) error
	closeSession func() error
	saveDialog   func(ctx context.Context, opts wailsruntime.SaveDialogOptions) (string, error)
	emitEvent    func(ctx context.Context, name string, data ...interface{})

	mu         sync.Mutex
	events     *jobs.EventBus
	runtimeCtx context.Context
	stopEngine context.CancelFunc
}

// New builds the application with persisted settings and startup diagnostics.
func New() (*App, error) {
	return NewWithAssets(nil)
}

// NewWithAssets builds the application and optionally configures embedded frontend assets.
func NewWithAssets(assets fs.FS) (*App, error) {
	store := config.NewTOMLStore(config.DefaultPath())
	settings, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	logger := logging.New(settings, logging.Options{Name: "clipmix-app"})
	checker := diagnostics.NewChecker()

	app := &App{
		Settings:    settings,
		Store:       store,
		Diagnostics: checker.Run(settings),
		assets:      assets,
		checker:     checker,
		installer:   newInstaller(),
		logger:      logger,
		saveDialog:  wailsruntime.SaveFileDialog,
		emitEvent:   wailsruntime.EventsEmit,
	}

	sess, err := session.New(settings, logger, func(prober *probe.Prober) pipeline.Presenter {
		app.presenter = newArtifactPresenter(prober, logger, app.emit)
		return app.presenter
	})
	if err != nil {
		return nil, err
	}

	app.Pipeline = sess.Orchestrator
	app.Engine = sess.Engine
	app.events = sess.Events
	app.initEngine = sess.Initialize
	app.closeSession = sess.Close
	app.events.Listen(func(event jobs.Event) {
		app.emit("job:event", event)
	})

	if info, err := sess.Assets.TrackInfo(); err == nil && info.Title != "" {
		logger.Info("background track", "title", info.Title, "artist", info.Artist, "format", info.Format)
	}
	return app, nil
}

// Run starts the Wails desktop application and binds backend methods.
func (a *App) Run() error {
	assetOptions := &assetserver.Options{}
	if a.assets != nil {
		assetOptions.Assets = a.assets
		assetOptions.Handler = a.presenter.routeHandler(nil)
	} else {
		assetOptions.Handler = a.presenter.routeHandler(http.FileServer(http.Dir("./frontend")))
	}

	return wails.Run(&options.App{
		Title:       "clipmix",
		Width:       1180,
		Height:      780,
		AssetServer: assetOptions,
		OnStartup:   a.Startup,
		OnShutdown:  a.Shutdown,
		Bind:        []interface{}{a},
	})
}

// Startup stores Wails runtime context for push events and starts the engine.
func (a *App) Startup(ctx context.Context) {
	a.mu.Lock()
	a.runtimeCtx = ctx
	a.mu.Unlock()

	go a.startEngine()
}

// Shutdown stops a pending engine download and removes the session workspace.
func (a *App) Shutdown(context.Context) {
	a.mu.Lock()
	a.runtimeCtx = nil
	stop := a.stopEngine
	a.mu.Unlock()

	if stop != nil {
		stop()
	}
	if a.closeSession != nil {
		if err := a.closeSession(); err != nil {
			a.logger.Warn("close session", "error", err)
		}
	}
}

// InitializeEngine retries engine initialization after a failure.
func (a *App) InitializeEngine() domain.EngineStatus {
	a.startEngine()
	return a.EngineStatus()
}

// startEngine initializes the engine, publishing download progress as engine events.
func (a *App) startEngine() {
	if a.initEngine == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), engineStartTimeout)
	a.mu.Lock()
	a.stopEngine = cancel
	a.mu.Unlock()
	defer cancel()

	if a.Engine != nil {
		unsubscribe, err := a.Engine.OnDownload(func(ratio float64) {
			a.events.Publish(jobs.Event{
				Type:     jobs.EventTypeEngine,
				Message:  "Downloading FFmpeg...",
				Progress: ratio,
			})
		})
		if err == nil {
			defer unsubscribe()
		}
	}

	if err := a.initEngine(ctx); err != nil {
		a.events.Publish(jobs.Event{
			Type:    jobs.EventTypeError,
			Message: err.Error(),
			Details: pipeline.UserMessages(err),
		})
		return
	}
	a.events.Publish(jobs.Event{Type: jobs.EventTypeEngine, Message: "Engine ready", Progress: 1})
}

// EngineStatus returns a snapshot of the session engine.
func (a *App) EngineStatus() domain.EngineStatus {
	if a.Engine == nil {
		return domain.EngineStatus{State: domain.EngineStateUninitialized}
	}
	return a.Engine.Status()
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() domain.DiagnosticReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Diagnostics
}

// GetSettings loads and returns the latest persisted settings.
func (a *App) GetSettings() (domain.Settings, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	a.mu.Lock()
	a.Settings = settings
	a.mu.Unlock()

	return settings, nil
}

// SaveSettings normalizes and persists settings, then refreshes diagnostics.
// Engine and asset paths apply to the next session.
func (a *App) SaveSettings(settings domain.Settings) (domain.Settings, error) {
	normalized := config.Normalize(settings)
	if err := a.Store.Save(normalized); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	a.refreshDiagnosticsFromSettings(normalized)
	return normalized, nil
}

// RefreshDiagnostics reloads settings and reruns dependency checks.
func (a *App) RefreshDiagnostics() (domain.DiagnosticReport, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.DiagnosticReport{}, fmt.Errorf("load settings: %w", err)
	}
	return a.refreshDiagnosticsFromSettings(settings), nil
}

// PickInputFile opens a native file dialog for video selection.
func (a *App) PickInputFile() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenFileDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:   "Select video",
		Filters: videoDialogFilter,
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}

// PickOutputDirectory opens a native directory picker for clip exports.
func (a *App) PickOutputDirectory() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenDirectoryDialog(ctx, wailsruntime.OpenDialogOptions{
		Title: "Select output directory",
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}

// UploadFile reads a picked video and runs the preview stage on it.
func (a *App) UploadFile(path string) (ArtifactView, error) {
	media, err := upload.FromFile(strings.TrimSpace(path))
	if err != nil {
		return ArtifactView{}, a.notify(domain.StagePreview, err)
	}
	return a.preview(media.Data)
}

// UploadVideo runs the preview stage on a data URL sent by the webview.
func (a *App) UploadVideo(dataURL string) (ArtifactView, error) {
	media, err := upload.FromDataURL(dataURL)
	if err != nil {
		return ArtifactView{}, a.notify(domain.StagePreview, err)
	}
	return a.preview(media.Data)
}

func (a *App) preview(data []byte) (ArtifactView, error) {
	artifact, err := a.Pipeline.RunPreview(context.Background(), data)
	if err != nil {
		return ArtifactView{}, userError(err)
	}
	return viewOf(artifact), nil
}

// Merge cuts 30 seconds from startSeconds of the current preview and lays
// the background track onto it.
func (a *App) Merge(startSeconds int, retainOriginalAudio bool, caption string) (ArtifactView, error) {
	req := domain.MergeRequest{
		StartSeconds:        startSeconds,
		RetainOriginalAudio: retainOriginalAudio,
		Caption:             strings.TrimSpace(caption),
	}
	if preview, ok := a.Pipeline.LastPreview(); ok {
		req.Preview = &preview
	}

	artifact, err := a.Pipeline.RunMerge(context.Background(), req)
	if err != nil {
		return ArtifactView{}, userError(err)
	}
	return viewOf(artifact), nil
}

// SaveResult asks where to store the merged clip and writes it there.
func (a *App) SaveResult() (string, error) {
	result, ok := a.Pipeline.LastResult()
	if !ok {
		return "", userError(pipeline.ErrNoResult)
	}

	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	a.mu.Lock()
	outputDir := a.Settings.OutputDir
	a.mu.Unlock()

	target, err := a.saveDialog(ctx, wailsruntime.SaveDialogOptions{
		Title:            "Save clip",
		DefaultDirectory: outputDir,
		DefaultFilename:  resultFileName,
		Filters:          videoDialogFilter[:1],
	})
	if err != nil {
		return "", err
	}
	target = strings.TrimSpace(target)
	if target == "" {
		return "", nil
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	if err := os.WriteFile(target, result.Data, 0o644); err != nil {
		return "", fmt.Errorf("write clip: %w", err)
	}
	a.logger.Info("clip saved", "path", target, "bytes", result.Size())
	return target, nil
}

// OpenOutputFolder opens the given path (or configured output dir) in file manager.
func (a *App) OpenOutputFolder(path string) error {
	target := strings.TrimSpace(path)
	if target == "" {
		a.mu.Lock()
		target = a.Settings.OutputDir
		a.mu.Unlock()
	}
	if target == "" {
		return fmt.Errorf("output path is empty")
	}

	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("resolve output path: %w", err)
	}

	openPath := target
	if !info.IsDir() {
		openPath = filepath.Dir(target)
	}

	return openInFileManager(openPath)
}

// CurrentJobs returns job metadata and status of both stages.
func (a *App) CurrentJobs() []domain.Job {
	return a.Pipeline.Jobs()
}

// JobEvents returns all events with sequence greater than sinceSeq.
func (a *App) JobEvents(sinceSeq int64) []jobs.Event {
	return a.events.Since(sinceSeq)
}

// notify surfaces a failure raised before a stage could start.
func (a *App) notify(stage domain.Stage, err error) error {
	a.events.Publish(jobs.Event{
		Stage:   stage,
		Type:    jobs.EventTypeError,
		Message: err.Error(),
		Details: pipeline.UserMessages(err),
	})
	return userError(err)
}

// userError reduces a stage failure to the notification text shown to the user.
func userError(err error) error {
	return &notification{text: strings.Join(pipeline.UserMessages(err), "\n"), err: err}
}

// notification carries the text shown to the user and keeps the cause for errors.Is.
type notification struct {
	text string
	err  error
}

func (n *notification) Error() string { return n.text }

func (n *notification) Unwrap() error { return n.err }

// emit pushes a runtime event when the window is up.
func (a *App) emit(name string, data any) {
	a.mu.Lock()
	ctx := a.runtimeCtx
	a.mu.Unlock()
	if ctx != nil && a.emitEvent != nil {
		a.emitEvent(ctx, name, data)
	}
}

// runtimeContext returns current Wails runtime context for dialog APIs.
func (a *App) runtimeContext() (context.Context, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runtimeCtx == nil {
		return nil, fmt.Errorf("runtime context is not initialized")
	}
	return a.runtimeCtx, nil
}

// openInFileManager launches the platform file explorer for the provided path.
func openInFileManager(path string) error {
	var cmd *exec.Cmd
	switch goruntime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("explorer", filepath.Clean(path))
	default:
		cmd = exec.Command("xdg-open", path)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch file manager: %w", err)
	}
	return nil
}
