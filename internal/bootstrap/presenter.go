package bootstrap

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"clipmix/internal/domain"
	"clipmix/internal/probe"
)

const artifactRoute = "/artifacts/"

// ArtifactView is an artifact plus the URL the webview loads it from.
type ArtifactView struct {
	domain.Artifact
	URL string `json:"url"`
}

type dimensionProber interface {
	BytesDimensions(ctx context.Context, data []byte) (probe.Dimensions, error)
}

// artifactPresenter keeps the latest artifact of each stage in memory and
// serves it to the webview, which plays it from artifactURL.
type artifactPresenter struct {
	prober dimensionProber
	logger hclog.Logger
	emit   func(name string, data any)

	mu        sync.RWMutex
	artifacts map[domain.Stage]domain.Artifact
	served    time.Time
}

func newArtifactPresenter(prober dimensionProber, logger hclog.Logger, emit func(string, any)) *artifactPresenter {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if emit == nil {
		emit = func(string, any) {}
	}
	return &artifactPresenter{
		prober:    prober,
		logger:    logger.Named("presenter"),
		emit:      emit,
		artifacts: map[domain.Stage]domain.Artifact{},
	}
}

func artifactURL(artifact domain.Artifact) string {
	return artifactRoute + string(artifact.Stage) + "/" + artifact.JobID + ".mp4"
}

func viewOf(artifact domain.Artifact) ArtifactView {
	return ArtifactView{Artifact: artifact, URL: artifactURL(artifact)}
}

// ShowPreview publishes the preview and reports its natural dimensions. A
// failed probe degrades to unknown dimensions instead of failing the stage.
func (p *artifactPresenter) ShowPreview(ctx context.Context, artifact domain.Artifact) (probe.Dimensions, error) {
	p.store(artifact)

	var dims probe.Dimensions
	if p.prober != nil {
		probed, err := p.prober.BytesDimensions(ctx, artifact.Data)
		if err != nil {
			p.logger.Warn("probe preview dimensions", "job", artifact.JobID, "error", err)
		} else {
			dims = probed
		}
	}

	artifact.Width = dims.Width
	artifact.Height = dims.Height
	p.emit("artifact:preview", viewOf(artifact))
	return dims, nil
}

// ShowResult publishes the merged clip, seeked to the chosen start.
func (p *artifactPresenter) ShowResult(_ context.Context, artifact domain.Artifact) error {
	p.store(artifact)
	p.emit("artifact:result", viewOf(artifact))
	return nil
}

func (p *artifactPresenter) store(artifact domain.Artifact) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.artifacts[artifact.Stage] = artifact
	p.served = time.Now()
}

// ServeHTTP answers /artifacts/<stage>/<jobID>.mp4 with range support so the
// media element can seek.
func (p *artifactPresenter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rest, ok := strings.CutPrefix(r.URL.Path, artifactRoute)
	if !ok {
		http.NotFound(w, r)
		return
	}
	stage, file, ok := strings.Cut(rest, "/")
	jobID, isMP4 := strings.CutSuffix(file, ".mp4")
	if !ok || !isMP4 || jobID == "" {
		http.NotFound(w, r)
		return
	}

	p.mu.RLock()
	artifact, found := p.artifacts[domain.Stage(stage)]
	modified := p.served
	p.mu.RUnlock()
	if !found || artifact.JobID != jobID {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", artifact.MimeType)
	w.Header().Set("Cache-Control", "no-store")
	http.ServeContent(w, r, file, modified, bytes.NewReader(artifact.Data))
}

// routeHandler serves artifacts and hands everything else to next.
func (p *artifactPresenter) routeHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, artifactRoute) {
			p.ServeHTTP(w, r)
			return
		}
		if next == nil {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
