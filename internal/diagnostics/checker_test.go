package diagnostics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clipmix/internal/domain"
	"clipmix/internal/engine"
)

func foundTools(name string) (string, error) { return "/usr/local/bin/" + name, nil }

func missingTools(string) (string, error) { return "", errors.New("not found") }

func newChecker(lookPath func(string) (string, error)) *Checker {
	return NewCheckerForTests(lookPath, os.Stat, os.MkdirAll, os.CreateTemp, os.Remove)
}

func TestCheckerRunAllPass(t *testing.T) {
	root := t.TempDir()
	track := filepath.Join(root, "bgm.mp3")
	require.NoError(t, os.WriteFile(track, []byte("ID3"), 0o644))

	report := newChecker(foundTools).Run(domain.Settings{
		BackgroundTrackPath: track,
		FontURL:             "https://example.com/font.ttf",
		OutputDir:           filepath.Join(root, "output"),
	})

	assert.False(t, report.HasFailures, "%+v", report.Items)
	for _, item := range report.Items {
		assert.Equal(t, domain.DiagnosticStatusPass, item.Status, item.ID)
	}
}

func TestCheckerRunMissingToolsAndPaths(t *testing.T) {
	report := newChecker(missingTools).Run(domain.Settings{
		CacheDir:            t.TempDir(),
		BackgroundTrackPath: "/path/that/does/not/exist.mp3",
		OutputDir:           "",
	})

	require.True(t, report.HasFailures)
	if _, ok := engine.CurrentBuild(); ok {
		assertItem(t, report, IDFFmpeg, domain.DiagnosticStatusWarn, true)
	} else {
		assertItem(t, report, IDFFmpeg, domain.DiagnosticStatusFail, false)
	}
	assertItem(t, report, IDFFprobe, domain.DiagnosticStatusWarn, true)
	assertItem(t, report, IDBackgroundTrack, domain.DiagnosticStatusFail, false)
	assertItem(t, report, IDFont, domain.DiagnosticStatusWarn, false)
	assertItem(t, report, IDOutputDir, domain.DiagnosticStatusFail, false)
	assert.Len(t, report.Failed(), 2+boolInt(!hasCurrentBuild()))
}

func TestCheckerConfiguredEngineMissingFails(t *testing.T) {
	report := newChecker(missingTools).Run(domain.Settings{FFmpegPath: "/opt/missing/ffmpeg"})

	assertItem(t, report, IDFFmpeg, domain.DiagnosticStatusFail, false)
}

func TestCheckerFindsDownloadedBuild(t *testing.T) {
	build, ok := engine.CurrentBuild()
	if !ok {
		t.Skip("no static build for this platform")
	}
	cacheDir := t.TempDir()
	binary := engine.BuildPath(cacheDir, build)
	require.NoError(t, os.MkdirAll(filepath.Dir(binary), 0o755))
	require.NoError(t, os.WriteFile(binary, []byte("bin"), 0o755))

	report := newChecker(missingTools).Run(domain.Settings{CacheDir: cacheDir})

	assertItem(t, report, IDFFmpeg, domain.DiagnosticStatusPass, false)
}

func TestCheckerBackgroundTrackDirectoryFails(t *testing.T) {
	report := newChecker(foundTools).Run(domain.Settings{BackgroundTrackPath: t.TempDir()})

	assertItem(t, report, IDBackgroundTrack, domain.DiagnosticStatusFail, false)
}

func TestCheckerLocalFont(t *testing.T) {
	font := filepath.Join(t.TempDir(), "font.ttf")

	report := newChecker(foundTools).Run(domain.Settings{FontURL: font})
	assertItem(t, report, IDFont, domain.DiagnosticStatusWarn, false)

	require.NoError(t, os.WriteFile(font, []byte("ttf"), 0o644))
	report = newChecker(foundTools).Run(domain.Settings{FontURL: font})
	assertItem(t, report, IDFont, domain.DiagnosticStatusPass, false)
}

func hasCurrentBuild() bool {
	_, ok := engine.CurrentBuild()
	return ok
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func assertItem(t *testing.T, report domain.DiagnosticReport, id string, want domain.DiagnosticStatus, fixable bool) {
	t.Helper()
	for _, item := range report.Items {
		if item.ID == id {
			assert.Equal(t, want, item.Status, "item %s: %s", id, item.Message)
			assert.Equal(t, fixable, item.Fixable, "item %s fixable", id)
			return
		}
	}
	t.Fatalf("diagnostic item not found: %s", id)
}
