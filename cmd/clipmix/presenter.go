package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"clipmix/internal/domain"
	"clipmix/internal/probe"
)

// filePresenter writes artifacts to disk. An empty path skips that artifact.
type filePresenter struct {
	previewPath string
	resultPath  string
	prober      *probe.Prober

	written []string
}

func (p *filePresenter) ShowPreview(ctx context.Context, artifact domain.Artifact) (probe.Dimensions, error) {
	if p.previewPath != "" {
		if err := p.write(p.previewPath, artifact.Data); err != nil {
			return probe.Dimensions{}, err
		}
	}
	if p.prober == nil {
		return probe.Dimensions{}, nil
	}

	var (
		dims probe.Dimensions
		err  error
	)
	if p.previewPath != "" {
		dims, err = p.prober.Dimensions(ctx, p.previewPath)
	} else {
		dims, err = p.prober.BytesDimensions(ctx, artifact.Data)
	}
	if err != nil {
		// Unknown dimensions only disable scaling.
		return probe.Dimensions{}, nil
	}
	return dims, nil
}

func (p *filePresenter) ShowResult(_ context.Context, artifact domain.Artifact) error {
	if p.resultPath == "" {
		return nil
	}
	return p.write(p.resultPath, artifact.Data)
}

func (p *filePresenter) write(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	p.written = append(p.written, path)
	return nil
}
