package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clipmix/internal/domain"
	"clipmix/internal/engine"
	"clipmix/internal/pipeline"
	"clipmix/internal/probe"
)

type nopPresenter struct{}

func (nopPresenter) ShowPreview(context.Context, domain.Artifact) (probe.Dimensions, error) {
	return probe.Dimensions{}, nil
}

func (nopPresenter) ShowResult(context.Context, domain.Artifact) error { return nil }

func testSettings(t *testing.T) domain.Settings {
	root := t.TempDir()
	return domain.Settings{
		FFmpegPath:          "/definitely/missing/ffmpeg",
		EngineDownloadURL:   "http://127.0.0.1:1/ffmpeg",
		CacheDir:            filepath.Join(root, "cache"),
		WorkDir:             filepath.Join(root, "work"),
		BackgroundTrackPath: filepath.Join(root, "bgm.mp3"),
	}
}

func TestNewWiresSession(t *testing.T) {
	var gotProber *probe.Prober
	s, err := New(testSettings(t), hclog.NewNullLogger(), func(p *probe.Prober) pipeline.Presenter {
		gotProber = p
		return nopPresenter{}
	})
	require.NoError(t, err)
	defer s.Close()

	assert.Same(t, s.Prober, gotProber)
	assert.False(t, s.Engine.Ready())
	assert.Equal(t, domain.EngineStateUninitialized, s.Engine.Status().State)
	assert.NotNil(t, s.Orchestrator)
}

func TestInitializeSurfacesDownloadFailure(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	s, err := New(testSettings(t), hclog.NewNullLogger(), func(*probe.Prober) pipeline.Presenter { return nopPresenter{} })
	require.NoError(t, err)
	defer s.Close()

	err = s.Initialize(context.Background())

	var fetchErr *engine.AssetFetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, domain.EngineStateFailed, s.Engine.Status().State)

	// The lock is released after a failed attempt.
	other := flock.New(filepath.Join(s.Settings.CacheDir, lockFileName))
	locked, err := other.TryLock()
	require.NoError(t, err)
	assert.True(t, locked)
	require.NoError(t, other.Unlock())
}

func TestInitializeWaitsForCacheLock(t *testing.T) {
	settings := testSettings(t)
	s, err := New(settings, hclog.NewNullLogger(), func(*probe.Prober) pipeline.Presenter { return nopPresenter{} })
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, os.MkdirAll(settings.CacheDir, 0o755))
	other := flock.New(filepath.Join(settings.CacheDir, lockFileName))
	locked, err := other.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	defer other.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err = s.Initialize(ctx)
	require.ErrorIs(t, err, ErrCacheLocked)
	assert.False(t, s.Engine.Ready())
}
