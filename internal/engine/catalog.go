package engine

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"runtime"

	"clipmix/internal/domain"
)

const staticBuildBase = "https://github.com/eugeneware/ffmpeg-static/releases/download/b6.0/"

var buildCatalog = []domain.EngineBuild{
	{ID: "linux-amd64", OS: "linux", Arch: "amd64", URL: staticBuildBase + "ffmpeg-linux-x64", BinaryName: "ffmpeg", SizeLabel: "~76 MB"},
	{ID: "linux-arm64", OS: "linux", Arch: "arm64", URL: staticBuildBase + "ffmpeg-linux-arm64", BinaryName: "ffmpeg", SizeLabel: "~46 MB"},
	{ID: "darwin-amd64", OS: "darwin", Arch: "amd64", URL: staticBuildBase + "ffmpeg-darwin-x64", BinaryName: "ffmpeg", SizeLabel: "~77 MB"},
	{ID: "darwin-arm64", OS: "darwin", Arch: "arm64", URL: staticBuildBase + "ffmpeg-darwin-arm64", BinaryName: "ffmpeg", SizeLabel: "~45 MB"},
	{ID: "windows-amd64", OS: "windows", Arch: "amd64", URL: staticBuildBase + "ffmpeg-win32-x64", BinaryName: "ffmpeg.exe", SizeLabel: "~80 MB"},
}

// Builds returns the static engine builds, marking those already present in cacheDir.
func Builds(cacheDir string) []domain.EngineBuild {
	builds := make([]domain.EngineBuild, len(buildCatalog))
	copy(builds, buildCatalog)
	for i := range builds {
		candidate := filepath.Join(cacheDir, builds[i].ID, builds[i].BinaryName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			builds[i].Downloaded = true
			builds[i].LocalPath = candidate
		}
	}
	return builds
}

// BuildByID looks up a catalog entry.
func BuildByID(id string) (domain.EngineBuild, bool) {
	for _, build := range buildCatalog {
		if build.ID == id {
			return build, true
		}
	}
	return domain.EngineBuild{}, false
}

// CurrentBuild returns the catalog entry for the running platform.
func CurrentBuild() (domain.EngineBuild, bool) {
	return BuildByID(runtime.GOOS + "-" + runtime.GOARCH)
}

// BuildPath is where a downloaded build is stored under cacheDir.
func BuildPath(cacheDir string, build domain.EngineBuild) string {
	return filepath.Join(cacheDir, build.ID, build.BinaryName)
}

// DownloadBuild fetches a catalog build into cacheDir and returns its local path.
func DownloadBuild(ctx context.Context, client *http.Client, cacheDir string, build domain.EngineBuild, onProgress func(float64)) (string, error) {
	target := BuildPath(cacheDir, build)
	if err := (httpDownloader{client: client}).download(ctx, target, build.URL, onProgress); err != nil {
		return "", &AssetFetchError{URL: build.URL, Err: err}
	}
	return target, nil
}
