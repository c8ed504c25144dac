package diagnostics

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"strings"
	"time"

	"clipmix/internal/domain"
	"clipmix/internal/engine"
)

// Item IDs referenced by the desktop fix actions.
const (
	IDFFmpeg          = "tool_ffmpeg"
	IDFFprobe         = "tool_ffprobe"
	IDBackgroundTrack = "background_track"
	IDFont            = "font"
	IDOutputDir       = "output_dir"
)

// Checker validates external tools, merge assets, and required filesystem paths.
type Checker struct {
	lookPath   func(string) (string, error)
	stat       func(string) (os.FileInfo, error)
	mkdirAll   func(string, os.FileMode) error
	createTemp func(string, string) (*os.File, error)
	remove     func(string) error
}

// NewChecker builds a checker using real OS dependencies.
func NewChecker() *Checker {
	return &Checker{
		lookPath:   exec.LookPath,
		stat:       os.Stat,
		mkdirAll:   os.MkdirAll,
		createTemp: os.CreateTemp,
		remove:     os.Remove,
	}
}

// Run executes all startup checks and returns a combined report.
func (c *Checker) Run(settings domain.Settings) domain.DiagnosticReport {
	items := []domain.DiagnosticItem{
		c.checkEngine(settings),
		c.checkProber(settings.FFprobePath),
		c.checkBackgroundTrack(settings.BackgroundTrackPath),
		c.checkFont(settings.FontURL),
		c.checkOutputDir(settings.OutputDir),
	}

	hasFailures := false
	for _, item := range items {
		if item.Status == domain.DiagnosticStatusFail {
			hasFailures = true
			break
		}
	}

	return domain.DiagnosticReport{
		GeneratedAt: time.Now().UTC(),
		HasFailures: hasFailures,
		Items:       items,
	}
}

// checkEngine resolves ffmpeg the way the engine does. A missing binary is
// only a warning when a static build can still be downloaded.
func (c *Checker) checkEngine(settings domain.Settings) domain.DiagnosticItem {
	item := domain.DiagnosticItem{ID: IDFFmpeg, Name: "ffmpeg"}

	if configured := strings.TrimSpace(settings.FFmpegPath); configured != "" {
		if path, err := c.lookPath(configured); err == nil {
			item.Status = domain.DiagnosticStatusPass
			item.Message = fmt.Sprintf("Configured binary: %s", path)
			return item
		}
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Configured ffmpeg not found: %s", configured)
		item.Hint = "Fix the ffmpeg path in settings or clear it to use PATH or a downloaded build."
		return item
	}

	if path, err := c.lookPath("ffmpeg"); err == nil {
		item.Status = domain.DiagnosticStatusPass
		item.Message = fmt.Sprintf("Found at %s", path)
		return item
	}

	if build, ok := engine.CurrentBuild(); ok {
		cached := engine.BuildPath(settings.CacheDir, build)
		if info, err := c.stat(cached); err == nil && !info.IsDir() {
			item.Status = domain.DiagnosticStatusPass
			item.Message = fmt.Sprintf("Downloaded build: %s", cached)
			return item
		}
	}

	if settings.EngineDownloadURL != "" {
		item.Status = domain.DiagnosticStatusWarn
		item.Message = "ffmpeg will be downloaded from the configured URL on first start."
		item.Fixable = true
		return item
	}
	if build, ok := engine.CurrentBuild(); ok {
		item.Status = domain.DiagnosticStatusWarn
		item.Message = fmt.Sprintf("ffmpeg not found; the %s build (%s) will be downloaded on first start.", build.ID, build.SizeLabel)
		item.Hint = "Install ffmpeg to skip the download."
		item.Fixable = true
		return item
	}

	item.Status = domain.DiagnosticStatusFail
	item.Message = "ffmpeg not found and no static build exists for this platform."
	item.Hint = "Install ffmpeg and ensure the binary is available on PATH."
	return item
}

// checkProber verifies ffprobe. Without it merges keep the source resolution.
func (c *Checker) checkProber(configured string) domain.DiagnosticItem {
	name := strings.TrimSpace(configured)
	if name == "" {
		name = "ffprobe"
	}
	item := domain.DiagnosticItem{ID: IDFFprobe, Name: "ffprobe"}

	path, err := c.lookPath(name)
	if err != nil {
		item.Status = domain.DiagnosticStatusWarn
		item.Message = fmt.Sprintf("Tool not found: %s", name)
		item.Hint = "Install ffprobe so merged clips are scaled to the preview resolution."
		item.Fixable = true
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Found at %s", path)
	return item
}

// checkBackgroundTrack validates the music file mixed into every merge.
func (c *Checker) checkBackgroundTrack(trackPath string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{ID: IDBackgroundTrack, Name: "Background track"}

	if strings.TrimSpace(trackPath) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Background track path is empty."
		item.Hint = "Set an mp3 file or a base64 bundle (.json) as the background track."
		return item
	}

	info, err := c.stat(trackPath)
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		if IsNotExist(err) {
			item.Message = fmt.Sprintf("Background track does not exist: %s", trackPath)
		} else {
			item.Message = fmt.Sprintf("Cannot access background track: %s", trackPath)
		}
		item.Hint = "Point the background track setting at a readable audio file."
		return item
	}
	if info.IsDir() {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Background track is a directory: %s", trackPath)
		item.Hint = "Point the background track setting at a file, not a folder."
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Background track found: %s", trackPath)
	return item
}

// checkFont reports whether caption overlays can be drawn.
func (c *Checker) checkFont(fontURL string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{ID: IDFont, Name: "Caption font"}
	fontURL = strings.TrimSpace(fontURL)

	switch {
	case fontURL == "":
		item.Status = domain.DiagnosticStatusWarn
		item.Message = "No caption font configured; captions cannot be drawn."
		item.Hint = "Set a font URL or a local .ttf path."
	case strings.HasPrefix(fontURL, "http://") || strings.HasPrefix(fontURL, "https://"):
		item.Status = domain.DiagnosticStatusPass
		item.Message = fmt.Sprintf("Fetched on first caption from %s", fontURL)
	default:
		if _, err := c.stat(fontURL); err != nil {
			item.Status = domain.DiagnosticStatusWarn
			item.Message = fmt.Sprintf("Caption font not readable: %s", fontURL)
			item.Hint = "Captions fail until the font file exists."
			return item
		}
		item.Status = domain.DiagnosticStatusPass
		item.Message = fmt.Sprintf("Caption font found: %s", fontURL)
	}
	return item
}

// checkOutputDir validates output directory existence and write access.
func (c *Checker) checkOutputDir(outputDir string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   IDOutputDir,
		Name: "Output directory",
	}

	if strings.TrimSpace(outputDir) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Output directory is empty."
		item.Hint = "Set an output directory where merged clips can be written."
		return item
	}

	if err := c.mkdirAll(outputDir, 0o755); err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot create output directory: %s", outputDir)
		item.Hint = "Choose a writable location or adjust filesystem permissions."
		item.Fixable = true
		return item
	}

	tmpFile, err := c.createTemp(outputDir, ".write-check-*")
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Output directory is not writable: %s", outputDir)
		item.Hint = "Choose a writable directory for clip export."
		item.Fixable = true
		return item
	}

	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()
	_ = c.remove(tmpPath)

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Writable directory: %s", outputDir)
	return item
}

// NewCheckerForTests creates checker with injectable dependencies.
func NewCheckerForTests(
	lookPath func(string) (string, error),
	stat func(string) (os.FileInfo, error),
	mkdirAll func(string, os.FileMode) error,
	createTemp func(string, string) (*os.File, error),
	remove func(string) error,
) *Checker {
	return &Checker{
		lookPath:   lookPath,
		stat:       stat,
		mkdirAll:   mkdirAll,
		createTemp: createTemp,
		remove:     remove,
	}
}

// IsNotExist reports whether error represents file-not-found.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
