package engine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clipmix/internal/domain"
)

func TestBuildsMarksDownloaded(t *testing.T) {
	cacheDir := t.TempDir()
	build, ok := BuildByID("linux-amd64")
	require.True(t, ok)

	target := BuildPath(cacheDir, build)
	require.NoError(t, os.MkdirAll(filepath.Dir(target), 0o755))
	require.NoError(t, os.WriteFile(target, []byte("bin"), 0o755))

	for _, b := range Builds(cacheDir) {
		if b.ID == build.ID {
			assert.True(t, b.Downloaded)
			assert.Equal(t, target, b.LocalPath)
		} else {
			assert.False(t, b.Downloaded, b.ID)
		}
	}
}

func TestBuildByIDUnknown(t *testing.T) {
	_, ok := BuildByID("plan9-386")
	assert.False(t, ok)
}

func TestDownloadBuild(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ffmpeg" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("static-ffmpeg"))
	}))
	defer srv.Close()

	cacheDir := t.TempDir()
	build := domain.EngineBuild{ID: "test", URL: srv.URL + "/ffmpeg", BinaryName: "ffmpeg"}

	var last float64
	path, err := DownloadBuild(context.Background(), srv.Client(), cacheDir, build, func(r float64) { last = r })
	require.NoError(t, err)
	assert.Equal(t, BuildPath(cacheDir, build), path)
	assert.Equal(t, 1.0, last)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "static-ffmpeg", string(data))

	build.URL = srv.URL + "/missing"
	_, err = DownloadBuild(context.Background(), srv.Client(), cacheDir, build, nil)
	var fetchErr *AssetFetchError
	require.ErrorAs(t, err, &fetchErr)
}
