package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

const payloadDownloadTimeout = 30 * time.Minute

// downloadFunc fetches sourceURL into destinationPath, reporting 0..1 progress.
type downloadFunc func(ctx context.Context, destinationPath, sourceURL string, onProgress func(float64)) error

// httpDownloader downloads engine payloads over HTTP.
type httpDownloader struct {
	client *http.Client
}

func (d httpDownloader) download(ctx context.Context, destinationPath, sourceURL string, onProgress func(float64)) error {
	if err := os.MkdirAll(filepath.Dir(destinationPath), 0o755); err != nil {
		return fmt.Errorf("prepare destination directory: %w", err)
	}

	tmpPath := destinationPath + ".download"
	if err := os.Remove(tmpPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale temp file: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, payloadDownloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "clipmix")

	client := d.client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected HTTP status: %s", resp.Status)
	}

	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o755)
	if err != nil {
		return fmt.Errorf("create temporary file: %w", err)
	}

	counter := &progressWriter{total: resp.ContentLength, onProgress: onProgress}
	_, copyErr := io.Copy(io.MultiWriter(file, counter), resp.Body)
	closeErr := file.Close()
	if copyErr != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write destination file: %w", copyErr)
	}
	if closeErr != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close destination file: %w", closeErr)
	}

	if err := os.Remove(destinationPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("remove old destination file: %w", err)
	}
	if err := os.Rename(tmpPath, destinationPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("move downloaded file into place: %w", err)
	}

	if onProgress != nil {
		onProgress(1)
	}
	return nil
}

// progressWriter reports the fraction of an expected body length written so
// far. Unknown lengths report nothing until the download completes.
type progressWriter struct {
	total      int64
	written    int64
	lastStep   int64
	onProgress func(float64)
}

func (w *progressWriter) Write(p []byte) (int, error) {
	w.written += int64(len(p))
	if w.onProgress == nil || w.total <= 0 {
		return len(p), nil
	}

	// Report in whole percent steps.
	step := w.written * 100 / w.total
	if step > w.lastStep {
		w.lastStep = step
		w.onProgress(clampRatio(float64(w.written) / float64(w.total)))
	}
	return len(p), nil
}
