package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	goruntime "runtime"
	"strings"
	"time"

	"clipmix/internal/config"
	"clipmix/internal/diagnostics"
	"clipmix/internal/domain"
	"clipmix/internal/engine"
)

const installCommandTimeout = 45 * time.Minute

// InstallOrFixDiagnostic applies an OS-specific remediation for one diagnostic item.
func (a *App) InstallOrFixDiagnostic(itemID string) (domain.DiagnosticReport, error) {
	id := strings.TrimSpace(itemID)
	if id == "" {
		return domain.DiagnosticReport{}, fmt.Errorf("diagnostic item id is required")
	}

	settings, err := a.loadNormalizedSettings()
	if err != nil {
		return domain.DiagnosticReport{}, err
	}

	settingsChanged := false
	var fixErr error

	switch id {
	case diagnostics.IDFFmpeg:
		settings, settingsChanged, fixErr = a.installOrFixEngine(settings)
	case diagnostics.IDFFprobe:
		fixErr = a.engineInstaller().installEngine(context.Background())
	case diagnostics.IDOutputDir:
		settings, settingsChanged, fixErr = installOrFixOutputDir(settings)
	default:
		return domain.DiagnosticReport{}, fmt.Errorf("unsupported diagnostic item id: %s", id)
	}

	if settingsChanged {
		if saveErr := a.Store.Save(settings); saveErr != nil {
			report := a.refreshDiagnosticsFromSettings(settings)
			return report, fmt.Errorf("save settings after fix: %w", saveErr)
		}
	}

	report := a.refreshDiagnosticsFromSettings(settings)
	if fixErr != nil {
		return report, fixErr
	}
	return report, nil
}

func (a *App) refreshDiagnosticsFromSettings(settings domain.Settings) domain.DiagnosticReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Settings = settings
	if a.checker != nil {
		a.Diagnostics = a.checker.Run(settings)
	}
	return a.Diagnostics
}

// installOrFixEngine prefers the static build download and falls back to the
// platform package manager.
func (a *App) installOrFixEngine(settings domain.Settings) (domain.Settings, bool, error) {
	inst := a.engineInstaller()

	build, ok := engine.CurrentBuild()
	if !ok {
		return settings, false, inst.installEngine(context.Background())
	}

	path, err := a.downloadBuild(build, settings.CacheDir)
	if err != nil {
		if installErr := inst.installEngine(context.Background()); installErr == nil {
			return settings, false, nil
		}
		return settings, false, err
	}

	changed := settings.FFmpegPath != path
	settings.FFmpegPath = path
	return settings, changed, nil
}

func (a *App) engineInstaller() *installer {
	if a.installer == nil {
		return newInstaller()
	}
	return a.installer
}

// packageManager is one way to get ffmpeg and ffprobe onto PATH. Steps are
// argument lists for the manager binary.
type packageManager struct {
	name     string
	elevated bool
	steps    [][]string
}

var packageManagers = map[string][]packageManager{
	"windows": {
		{name: "winget", steps: [][]string{{"install", "--id", "Gyan.FFmpeg", "--exact", "--accept-source-agreements", "--accept-package-agreements"}}},
		{name: "choco", steps: [][]string{{"install", "ffmpeg", "-y"}}},
		{name: "scoop", steps: [][]string{{"install", "ffmpeg"}}},
	},
	"darwin": {
		{name: "brew", steps: [][]string{{"install", "ffmpeg"}}},
	},
	"linux": {
		{name: "apt-get", elevated: true, steps: [][]string{{"update"}, {"install", "-y", "ffmpeg"}}},
		{name: "dnf", elevated: true, steps: [][]string{{"install", "-y", "ffmpeg"}}},
		{name: "pacman", elevated: true, steps: [][]string{{"-Sy", "--noconfirm", "ffmpeg"}}},
		{name: "brew", steps: [][]string{{"install", "ffmpeg"}}},
	},
}

// elevationPrefixes are tried in order after a plain attempt fails on linux.
var elevationPrefixes = [][]string{{"pkexec"}, {"sudo", "-n"}}

type installer struct {
	goos     string
	lookPath func(string) (string, error)
	run      func(ctx context.Context, name string, args ...string) ([]byte, error)
}

func newInstaller() *installer {
	return &installer{
		goos:     goruntime.GOOS,
		lookPath: exec.LookPath,
		run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).CombinedOutput()
		},
	}
}

func (i *installer) managers() []packageManager {
	if managers, ok := packageManagers[i.goos]; ok {
		return managers
	}
	return packageManagers["linux"]
}

// installEngine runs the first available package manager that succeeds and
// checks that both binaries resolve afterwards.
func (i *installer) installEngine(ctx context.Context) error {
	var failures []string
	for _, pm := range i.managers() {
		if !i.available(pm.name) {
			continue
		}
		err := i.runManager(ctx, pm)
		if err == nil {
			return i.verify("ffmpeg", "ffprobe")
		}
		failures = append(failures, pm.name+": "+err.Error())
	}

	if len(failures) == 0 {
		return fmt.Errorf("install ffmpeg/ffprobe: no supported package manager found for %s", i.goos)
	}
	return fmt.Errorf("install ffmpeg/ffprobe: %s", strings.Join(failures, " | "))
}

func (i *installer) runManager(ctx context.Context, pm packageManager) error {
	for _, step := range pm.steps {
		if err := i.runStep(ctx, pm, step); err != nil {
			return err
		}
	}
	return nil
}

func (i *installer) runStep(ctx context.Context, pm packageManager, args []string) error {
	plain := append([]string{pm.name}, args...)
	attempts := [][]string{plain}
	if pm.elevated && i.goos == "linux" {
		for _, prefix := range elevationPrefixes {
			if i.available(prefix[0]) {
				attempts = append(attempts, append(append([]string{}, prefix...), plain...))
			}
		}
	}

	failures := make([]string, 0, len(attempts))
	for _, argv := range attempts {
		err := i.exec(ctx, argv)
		if err == nil {
			return nil
		}
		failures = append(failures, err.Error())
	}
	return errors.New(strings.Join(failures, " | "))
}

func (i *installer) exec(ctx context.Context, argv []string) error {
	ctx, cancel := context.WithTimeout(ctx, installCommandTimeout)
	defer cancel()

	output, err := i.run(ctx, argv[0], argv[1:]...)
	if err == nil {
		return nil
	}

	line := strings.Join(argv, " ")
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%s timed out after %s", line, installCommandTimeout)
	}
	if tail := clipOutput(output, 500); tail != "" {
		return fmt.Errorf("%s failed: %w (%s)", line, err, tail)
	}
	return fmt.Errorf("%s failed: %w", line, err)
}

func (i *installer) available(name string) bool {
	_, err := i.lookPath(name)
	return err == nil
}

func (i *installer) verify(names ...string) error {
	var missing []string
	for _, name := range names {
		if !i.available(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("verify ffmpeg/ffprobe on PATH: missing %s", strings.Join(missing, ", "))
	}
	return nil
}

func clipOutput(output []byte, limit int) string {
	trimmed := strings.TrimSpace(string(output))
	if len(trimmed) > limit {
		return trimmed[:limit] + "..."
	}
	return trimmed
}

func installOrFixOutputDir(settings domain.Settings) (domain.Settings, bool, error) {
	outputDir := strings.TrimSpace(settings.OutputDir)
	changed := false
	if outputDir == "" {
		outputDir = config.DefaultSettings().OutputDir
		settings.OutputDir = outputDir
		changed = true
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return settings, changed, fmt.Errorf("create output directory %s: %w", outputDir, err)
	}

	return settings, changed, nil
}
