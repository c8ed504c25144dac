// Package assets loads the constant inputs of the merge stage: the bundled
// background track and the caption font.
package assets

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dhowden/tag"
	"github.com/hashicorp/go-hclog"

	"clipmix/internal/upload"
)

const (
	AssetBackgroundTrack = "background track"
	AssetFont            = "font"

	fontFetchTimeout = 2 * time.Minute
	maxFontSize      = 16 << 20
)

// AssetFetchError reports an asset that could not be loaded.
type AssetFetchError struct {
	Asset  string
	Source string
	Err    error
}

func (e *AssetFetchError) Error() string {
	return fmt.Sprintf("load %s from %s: %v", e.Asset, e.Source, e.Err)
}

func (e *AssetFetchError) Unwrap() error {
	return e.Err
}

// TrackInfo is tag metadata of the background track.
type TrackInfo struct {
	Title    string `json:"title,omitempty"`
	Artist   string `json:"artist,omitempty"`
	Album    string `json:"album,omitempty"`
	Format   string `json:"format,omitempty"`
	FileType string `json:"fileType,omitempty"`
	Size     int    `json:"size"`
}

// Loader reads assets once per session and caches them in memory. Failed
// loads are not cached so the next user action tries again.
type Loader struct {
	trackPath string
	fontURL   string
	client    *http.Client
	logger    hclog.Logger
	readFile  func(string) ([]byte, error)

	mu    sync.Mutex
	track []byte
	info  TrackInfo
	font  []byte
}

// NewLoader creates a loader for a track file and a font URL.
func NewLoader(trackPath, fontURL string, client *http.Client, logger hclog.Logger) *Loader {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Loader{
		trackPath: strings.TrimSpace(trackPath),
		fontURL:   strings.TrimSpace(fontURL),
		client:    client,
		logger:    logger.Named("assets"),
		readFile:  os.ReadFile,
	}
}

// BackgroundTrack returns the encoded background track.
func (l *Loader) BackgroundTrack() ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.track != nil {
		return l.track, nil
	}

	data, err := l.loadTrack()
	if err != nil {
		return nil, &AssetFetchError{Asset: AssetBackgroundTrack, Source: l.trackPath, Err: err}
	}

	l.track = data
	l.info = readTrackInfo(data, l.logger)
	l.logger.Info("background track loaded", "path", l.trackPath, "bytes", len(data), "title", l.info.Title, "artist", l.info.Artist)
	return data, nil
}

// TrackInfo returns tag metadata of the background track, loading it first.
func (l *Loader) TrackInfo() (TrackInfo, error) {
	if _, err := l.BackgroundTrack(); err != nil {
		return TrackInfo{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.info, nil
}

// loadTrack reads an audio file, or a JSON bundle {"base64": "<data URL>"}.
func (l *Loader) loadTrack() ([]byte, error) {
	if l.trackPath == "" {
		return nil, errors.New("background track path is not configured")
	}
	raw, err := l.readFile(l.trackPath)
	if err != nil {
		return nil, err
	}

	if strings.EqualFold(filepath.Ext(l.trackPath), ".json") {
		var bundle struct {
			Base64 string `json:"base64"`
		}
		if err := json.Unmarshal(raw, &bundle); err != nil {
			return nil, fmt.Errorf("parse track bundle: %w", err)
		}
		raw, err = upload.DecodeDataURL(bundle.Base64)
		if err != nil {
			return nil, fmt.Errorf("decode track bundle: %w", err)
		}
	}

	if len(raw) == 0 {
		return nil, errors.New("background track is empty")
	}
	return raw, nil
}

// Font fetches the caption font from its fixed location once per session.
func (l *Loader) Font(ctx context.Context) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.font != nil {
		return l.font, nil
	}

	data, err := l.fetchFont(ctx)
	if err != nil {
		return nil, &AssetFetchError{Asset: AssetFont, Source: l.fontURL, Err: err}
	}
	l.font = data
	l.logger.Info("font fetched", "url", l.fontURL, "bytes", len(data))
	return data, nil
}

func (l *Loader) fetchFont(ctx context.Context) ([]byte, error) {
	if l.fontURL == "" {
		return nil, errors.New("font URL is not configured")
	}
	if !strings.HasPrefix(l.fontURL, "http://") && !strings.HasPrefix(l.fontURL, "https://") {
		return l.readFile(l.fontURL)
	}

	ctx, cancel := context.WithTimeout(ctx, fontFetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.fontURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "clipmix")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request font: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected HTTP status: %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFontSize+1))
	if err != nil {
		return nil, fmt.Errorf("read font: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("font is empty")
	}
	if len(data) > maxFontSize {
		return nil, errors.New("font exceeds size limit")
	}
	return data, nil
}

func readTrackInfo(data []byte, logger hclog.Logger) TrackInfo {
	info := TrackInfo{Size: len(data)}
	meta, err := tag.ReadFrom(bytes.NewReader(data))
	if err != nil {
		if !errors.Is(err, tag.ErrNoTagsFound) {
			logger.Debug("background track has unreadable tags", "error", err)
		}
		return info
	}

	info.Title = meta.Title()
	info.Artist = meta.Artist()
	info.Album = meta.Album()
	info.Format = string(meta.Format())
	info.FileType = string(meta.FileType())
	return info
}
