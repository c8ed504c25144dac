package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"clipmix/internal/config"
	"clipmix/internal/domain"
	"clipmix/internal/engine"
	"clipmix/internal/jobs"
)

// GetEngineBuilds returns the static ffmpeg builds for one-click downloads.
func (a *App) GetEngineBuilds() []domain.EngineBuild {
	settings, err := a.loadNormalizedSettings()
	if err != nil {
		a.mu.Lock()
		settings = a.Settings
		a.mu.Unlock()
	}
	return engine.Builds(settings.CacheDir)
}

// DownloadEngineBuild downloads a static build and updates settings.FFmpegPath.
func (a *App) DownloadEngineBuild(buildID string) (domain.Settings, error) {
	id := strings.TrimSpace(buildID)
	if id == "" {
		return domain.Settings{}, fmt.Errorf("build id is required")
	}

	build, found := engine.BuildByID(id)
	if !found {
		return domain.Settings{}, fmt.Errorf("unknown build id: %s", id)
	}

	settings, err := a.loadNormalizedSettings()
	if err != nil {
		return domain.Settings{}, err
	}

	path, err := a.downloadBuild(build, settings.CacheDir)
	if err != nil {
		return domain.Settings{}, err
	}

	settings.FFmpegPath = path
	if err := a.Store.Save(settings); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	a.refreshDiagnosticsFromSettings(settings)
	return settings, nil
}

func (a *App) downloadBuild(build domain.EngineBuild, cacheDir string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), engineStartTimeout)
	defer cancel()

	path, err := engine.DownloadBuild(ctx, http.DefaultClient, cacheDir, build, func(ratio float64) {
		if a.events != nil {
			a.events.Publish(jobs.Event{
				Type:     jobs.EventTypeEngine,
				Message:  "Downloading FFmpeg...",
				Progress: ratio,
			})
		}
	})
	if err != nil {
		return "", fmt.Errorf("download build %s: %w", build.ID, err)
	}
	return path, nil
}

func (a *App) loadNormalizedSettings() (domain.Settings, error) {
	if a.Store == nil {
		return domain.Settings{}, fmt.Errorf("settings store is not configured")
	}
	settings, err := a.Store.Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	return config.Normalize(settings), nil
}
