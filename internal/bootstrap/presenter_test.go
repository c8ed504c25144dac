package bootstrap

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clipmix/internal/domain"
	"clipmix/internal/probe"
)

type fakeProber struct {
	dims probe.Dimensions
	err  error
}

func (p fakeProber) BytesDimensions(context.Context, []byte) (probe.Dimensions, error) {
	return p.dims, p.err
}

func TestShowPreviewReportsDimensions(t *testing.T) {
	var events []string
	presenter := newArtifactPresenter(fakeProber{dims: probe.Dimensions{Width: 1920, Height: 1080}}, nil, func(name string, data any) {
		events = append(events, name)
		view := data.(ArtifactView)
		assert.Equal(t, 1920, view.Width)
	})

	dims, err := presenter.ShowPreview(context.Background(), domain.Artifact{JobID: "p1", Stage: domain.StagePreview})
	require.NoError(t, err)
	assert.Equal(t, probe.Dimensions{Width: 1920, Height: 1080}, dims)
	assert.Equal(t, []string{"artifact:preview"}, events)
}

func TestShowPreviewDegradesWhenProbeFails(t *testing.T) {
	presenter := newArtifactPresenter(fakeProber{err: errors.New("no ffprobe")}, nil, nil)

	dims, err := presenter.ShowPreview(context.Background(), domain.Artifact{JobID: "p1", Stage: domain.StagePreview})
	require.NoError(t, err)
	assert.False(t, dims.Known())
}

func TestServeArtifact(t *testing.T) {
	presenter := newArtifactPresenter(nil, nil, nil)
	require.NoError(t, presenter.ShowResult(context.Background(), domain.Artifact{
		JobID:    "m1",
		Stage:    domain.StageMerge,
		MimeType: "video/mp4",
		Data:     []byte("0123456789"),
	}))
	handler := presenter.routeHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "frontend")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/artifacts/merge/m1.mp4", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "video/mp4", rec.Header().Get("Content-Type"))
	assert.Equal(t, "0123456789", rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/artifacts/merge/m1.mp4", nil)
	req.Header.Set("Range", "bytes=2-4")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, "234", rec.Body.String())

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/artifacts/merge/old.mp4", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/index.html", nil))
	assert.Equal(t, "frontend", rec.Body.String())
}
