// Package engine owns the session's ffmpeg transcoding engine: its one-time
// initialization, a private working file system, strictly serialized
// operations, and the progress and log streams it reports.
package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"clipmix/internal/domain"
)

const defaultBinary = "ffmpeg"

// processFlags are prepended to every exec so ffmpeg never prompts and reports
// machine-readable progress on stdout.
var processFlags = []string{"-hide_banner", "-nostdin", "-y", "-progress", "pipe:1", "-nostats"}

// Options configures a session engine.
type Options struct {
	FFmpegPath     string
	DownloadURL    string
	CacheDir       string
	WorkDir        string
	MaxSubscribers int
	Logger         hclog.Logger
	HTTPClient     *http.Client
}

// ExecRequest is one engine command run inside a scope directory.
type ExecRequest struct {
	Scope string
	Args  []string
	// Expected is the media duration the command produces; zero disables ratio reporting.
	Expected time.Duration
}

// Engine is the single transcoding engine instance of a session.
type Engine struct {
	opts   Options
	logger hclog.Logger

	runner    commandRunner
	lookPath  func(string) (string, error)
	stat      func(string) (os.FileInfo, error)
	download  downloadFunc
	mkdirTemp func(dir, pattern string) (string, error)
	mkdirAll  func(path string, perm os.FileMode) error
	removeAll func(path string) error
	writeFile func(name string, data []byte, perm os.FileMode) error
	readFile  func(name string) ([]byte, error)

	mu               sync.RWMutex
	state            domain.EngineState
	downloadProgress float64
	execProgress     float64
	binaryPath       string
	root             string
	lastErr          error
	initDone         chan struct{}
	closed           bool

	slot     chan struct{}
	progress *observers[Progress]
	logs     *observers[LogLine]
	fetches  *observers[float64]
}

// New constructs an uninitialized engine with OS dependencies.
func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	return &Engine{
		opts:      opts,
		logger:    logger.Named("engine"),
		runner:    &execRunner{},
		lookPath:  exec.LookPath,
		stat:      os.Stat,
		download:  httpDownloader{client: opts.HTTPClient}.download,
		mkdirTemp: os.MkdirTemp,
		mkdirAll:  os.MkdirAll,
		removeAll: os.RemoveAll,
		writeFile: os.WriteFile,
		readFile:  os.ReadFile,
		state:     domain.EngineStateUninitialized,
		slot:      make(chan struct{}, 1),
		progress:  newObservers[Progress](opts.MaxSubscribers),
		logs:      newObservers[LogLine](opts.MaxSubscribers),
		fetches:   newObservers[float64](opts.MaxSubscribers),
	}
}

// Initialize resolves the engine binary, downloading it when necessary, and
// prepares the session working file system. Concurrent callers share one
// attempt; a ready engine returns immediately. Failures are not retried.
func (e *Engine) Initialize(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	if e.state == domain.EngineStateReady {
		e.mu.Unlock()
		return nil
	}
	if e.initDone != nil {
		done := e.initDone
		e.mu.Unlock()
		select {
		case <-done:
			return e.initResult()
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	done := make(chan struct{})
	e.initDone = done
	e.state = domain.EngineStateDownloading
	e.downloadProgress = 0
	e.lastErr = nil
	e.mu.Unlock()

	binary, root, err := e.initialize(ctx)

	e.mu.Lock()
	orphan := ""
	if err == nil && e.closed {
		orphan = root
		err = ErrClosed
	}
	if err != nil {
		e.state = domain.EngineStateFailed
		e.lastErr = err
	} else {
		e.state = domain.EngineStateReady
		e.binaryPath = binary
		e.root = root
		e.downloadProgress = 1
	}
	e.initDone = nil
	e.mu.Unlock()
	close(done)

	if orphan != "" {
		if rmErr := e.removeAll(orphan); rmErr != nil {
			e.logger.Warn("remove workspace after close", "root", orphan, "error", rmErr)
		}
	}

	if err != nil {
		e.logger.Error("engine initialization failed", "error", err)
		return err
	}
	e.logger.Info("engine ready", "binary", binary, "root", root)
	return nil
}

func (e *Engine) initResult() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.state == domain.EngineStateReady {
		return nil
	}
	if e.lastErr != nil {
		return e.lastErr
	}
	return ErrNotReady
}

func (e *Engine) initialize(ctx context.Context) (string, string, error) {
	binary, err := e.resolveBinary(ctx)
	if err != nil {
		return "", "", err
	}

	if e.opts.WorkDir != "" {
		if err := e.mkdirAll(e.opts.WorkDir, 0o755); err != nil {
			return "", "", fmt.Errorf("create work dir: %w", err)
		}
	}
	root, err := e.mkdirTemp(e.opts.WorkDir, "clipmix-session-*")
	if err != nil {
		return "", "", fmt.Errorf("create engine workspace: %w", err)
	}
	return binary, root, nil
}

// resolveBinary tries the configured path, then PATH, then a cached or fresh
// download of the platform's static build.
func (e *Engine) resolveBinary(ctx context.Context) (string, error) {
	if configured := strings.TrimSpace(e.opts.FFmpegPath); configured != "" {
		if path, err := e.lookPath(configured); err == nil {
			e.reportDownload(1)
			return path, nil
		}
		e.logger.Warn("configured ffmpeg not usable, falling back", "path", configured)
	}
	if path, err := e.lookPath(defaultBinary); err == nil {
		e.reportDownload(1)
		return path, nil
	}

	url, target, err := e.downloadPlan()
	if err != nil {
		return "", err
	}
	if info, err := e.stat(target); err == nil && !info.IsDir() {
		e.reportDownload(1)
		return target, nil
	}

	e.logger.Info("downloading engine", "url", url, "target", target)
	if err := e.download(ctx, target, url, e.reportDownload); err != nil {
		return "", &AssetFetchError{URL: url, Err: err}
	}
	return target, nil
}

func (e *Engine) downloadPlan() (string, string, error) {
	cacheDir := e.opts.CacheDir
	if cacheDir == "" {
		dir, err := os.UserCacheDir()
		if err != nil {
			return "", "", fmt.Errorf("resolve cache dir: %w", err)
		}
		cacheDir = filepath.Join(dir, "clipmix")
	}

	if url := strings.TrimSpace(e.opts.DownloadURL); url != "" {
		name := defaultBinary
		if strings.HasSuffix(strings.ToLower(url), ".exe") {
			name += ".exe"
		}
		return url, filepath.Join(cacheDir, "custom", name), nil
	}

	build, ok := CurrentBuild()
	if !ok {
		return "", "", errors.New("ffmpeg not found and no static build is available for this platform")
	}
	return build.URL, BuildPath(cacheDir, build), nil
}

func (e *Engine) reportDownload(ratio float64) {
	e.mu.Lock()
	e.downloadProgress = ratio
	e.mu.Unlock()
	e.fetches.emit(ratio)
}

// OnProgress registers an observer for execution progress reports.
func (e *Engine) OnProgress(fn func(Progress)) (func(), error) {
	return e.progress.subscribe(fn)
}

// OnLog registers an observer for engine log lines.
func (e *Engine) OnLog(fn func(LogLine)) (func(), error) {
	return e.logs.subscribe(fn)
}

// OnDownload registers an observer for payload download progress (0..1).
func (e *Engine) OnDownload(fn func(float64)) (func(), error) {
	return e.fetches.subscribe(fn)
}

// Ready reports whether initialization completed.
func (e *Engine) Ready() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state == domain.EngineStateReady && !e.closed
}

// Busy reports whether an operation is in flight.
func (e *Engine) Busy() bool {
	return len(e.slot) > 0
}

// Status returns a snapshot of the engine handle.
func (e *Engine) Status() domain.EngineStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()

	status := domain.EngineStatus{
		State:            e.state,
		Ready:            e.state == domain.EngineStateReady && !e.closed,
		Busy:             len(e.slot) > 0,
		DownloadProgress: e.downloadProgress,
		ExecProgress:     e.execProgress,
		BinaryPath:       e.binaryPath,
	}
	if e.lastErr != nil {
		status.Error = e.lastErr.Error()
	}
	return status
}

// Exec runs one engine command with the scope directory as working directory.
func (e *Engine) Exec(ctx context.Context, req ExecRequest) error {
	release, err := e.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	dir, err := e.resolve(req.Scope)
	if err != nil {
		return &OperationError{Op: "exec", Path: req.Scope, Err: err}
	}
	if err := e.mkdirAll(dir, 0o755); err != nil {
		return &OperationError{Op: "exec", Path: req.Scope, Err: err}
	}

	args := make([]string, 0, len(processFlags)+len(req.Args))
	args = append(args, processFlags...)
	args = append(args, req.Args...)

	e.setExecProgress(0)
	parser := newProgressParser(req.Scope, req.Expected)
	binary := e.binary()
	result, runErr := e.runner.Run(ctx, commandSpec{
		Name: binary,
		Args: args,
		Dir:  dir,
		OnStdout: func(line string) {
			if report, ok := parser.feed(line); ok {
				e.setExecProgress(report.Ratio)
				e.progress.emit(report)
			}
		},
		OnStderr: func(line string) {
			e.logs.emit(LogLine{Scope: req.Scope, Message: line})
		},
	})

	log := CommandLog{
		Command:  binary,
		Args:     args,
		Dir:      dir,
		ExitCode: result.ExitCode,
		Stderr:   result.Stderr,
	}
	if runErr != nil {
		e.logger.Error("engine exec failed", "scope", req.Scope, "exit", result.ExitCode, "error", runErr)
		return &OperationError{Op: "exec", CommandLog: log, Err: runErr}
	}

	e.logger.Debug("engine exec completed", "scope", req.Scope, "args", strings.Join(req.Args, " "))
	return nil
}

// WriteFile stores data at path inside the engine file system.
func (e *Engine) WriteFile(ctx context.Context, path string, data []byte) error {
	release, err := e.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	full, err := e.resolve(path)
	if err != nil {
		return &OperationError{Op: "write", Path: path, Err: err}
	}
	if err := e.mkdirAll(filepath.Dir(full), 0o755); err != nil {
		return &OperationError{Op: "write", Path: path, Err: err}
	}
	if err := e.writeFile(full, data, 0o644); err != nil {
		return &OperationError{Op: "write", Path: path, Err: err}
	}
	return nil
}

// ReadFile returns the content at path inside the engine file system.
func (e *Engine) ReadFile(ctx context.Context, path string) ([]byte, error) {
	release, err := e.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	full, err := e.resolve(path)
	if err != nil {
		return nil, &OperationError{Op: "read", Path: path, Err: err}
	}
	data, err := e.readFile(full)
	if err != nil {
		return nil, &OperationError{Op: "read", Path: path, Err: err}
	}
	return data, nil
}

// Discard removes a scope directory and everything in it.
func (e *Engine) Discard(ctx context.Context, scope string) error {
	release, err := e.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	if strings.Trim(scope, "./") == "" {
		return &OperationError{Op: "discard", Path: scope, Err: ErrOutsideWorkspace}
	}
	dir, err := e.resolve(scope)
	if err != nil {
		return &OperationError{Op: "discard", Path: scope, Err: err}
	}
	if err := e.removeAll(dir); err != nil {
		return &OperationError{Op: "discard", Path: scope, Err: err}
	}
	return nil
}

// Close removes the session workspace. The engine cannot be used afterwards.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	root := e.root
	e.mu.Unlock()

	if root == "" {
		return nil
	}
	return e.removeAll(root)
}

// acquire waits for the single operation slot. Callers queue in arrival order
// of the runtime scheduler until the slot frees or ctx ends.
func (e *Engine) acquire(ctx context.Context) (func(), error) {
	if err := e.usable(); err != nil {
		return nil, err
	}

	select {
	case e.slot <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if err := e.usable(); err != nil {
		<-e.slot
		return nil, err
	}
	return func() { <-e.slot }, nil
}

func (e *Engine) usable() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return ErrClosed
	}
	if e.state != domain.EngineStateReady {
		return ErrNotReady
	}
	return nil
}

func (e *Engine) binary() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.binaryPath
}

func (e *Engine) setExecProgress(ratio float64) {
	e.mu.Lock()
	e.execProgress = ratio
	e.mu.Unlock()
}

// resolve maps a workspace-relative path onto the session root.
func (e *Engine) resolve(rel string) (string, error) {
	e.mu.RLock()
	root := e.root
	e.mu.RUnlock()

	if filepath.IsAbs(rel) {
		return "", ErrOutsideWorkspace
	}
	full := filepath.Join(root, filepath.FromSlash(rel))
	if !isWithinBaseDir(root, full) {
		return "", ErrOutsideWorkspace
	}
	return full, nil
}

func isWithinBaseDir(baseDir string, targetPath string) bool {
	baseClean := filepath.Clean(baseDir)
	targetClean := filepath.Clean(targetPath)
	relative, err := filepath.Rel(baseClean, targetClean)
	if err != nil {
		return false
	}
	return relative == "." || (!strings.HasPrefix(relative, "..") && relative != "")
}
