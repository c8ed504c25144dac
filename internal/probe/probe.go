// Package probe reads the natural pixel dimensions of produced media with ffprobe.
package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// Dimensions is the natural pixel size of a video stream.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Known reports whether both dimensions were captured.
func (d Dimensions) Known() bool {
	return d.Width > 0 && d.Height > 0
}

type result struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
}

// Prober runs ffprobe against media files.
type Prober struct {
	path   string
	logger hclog.Logger
	output func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewProber creates a prober for the given ffprobe binary ("" means PATH lookup).
func NewProber(path string, logger hclog.Logger) *Prober {
	if strings.TrimSpace(path) == "" {
		path = "ffprobe"
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Prober{path: path, logger: logger.Named("probe"), output: commandOutput}
}

func commandOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// Dimensions returns the size of the first video stream in the file.
func (p *Prober) Dimensions(ctx context.Context, path string) (Dimensions, error) {
	out, err := p.output(ctx, p.path,
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-select_streams", "v:0",
		path,
	)
	if err != nil {
		return Dimensions{}, fmt.Errorf("ffprobe failed: %w", err)
	}

	var parsed result
	if err := json.Unmarshal(out, &parsed); err != nil {
		return Dimensions{}, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	for _, stream := range parsed.Streams {
		if stream.CodecType == "video" && stream.Width > 0 && stream.Height > 0 {
			return Dimensions{Width: stream.Width, Height: stream.Height}, nil
		}
	}
	return Dimensions{}, fmt.Errorf("no video stream found")
}

// BytesDimensions probes an in-memory artifact through a temporary file.
func (p *Prober) BytesDimensions(ctx context.Context, data []byte) (Dimensions, error) {
	file, err := os.CreateTemp("", "clipmix-probe-*.mp4")
	if err != nil {
		return Dimensions{}, fmt.Errorf("create probe file: %w", err)
	}
	defer os.Remove(file.Name())

	_, writeErr := file.Write(data)
	closeErr := file.Close()
	if writeErr != nil {
		return Dimensions{}, fmt.Errorf("write probe file: %w", writeErr)
	}
	if closeErr != nil {
		return Dimensions{}, fmt.Errorf("close probe file: %w", closeErr)
	}
	return p.Dimensions(ctx, file.Name())
}
