package bootstrap

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clipmix/internal/domain"
	"clipmix/internal/jobs"
	"clipmix/internal/pipeline"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

// fakeStore keeps settings in memory for App tests.
type fakeStore struct {
	settings domain.Settings
	saved    []domain.Settings
}

func (s *fakeStore) Load() (domain.Settings, error) {
	return s.settings, nil
}

func (s *fakeStore) Save(settings domain.Settings) error {
	s.settings = settings
	s.saved = append(s.saved, settings)
	return nil
}

// fakePipeline allows injecting stage behavior per test.
type fakePipeline struct {
	preview    func(ctx context.Context, upload []byte) (domain.Artifact, error)
	merge      func(ctx context.Context, req domain.MergeRequest) (domain.Artifact, error)
	lastPrev   *domain.Artifact
	lastResult *domain.Artifact
}

func (p *fakePipeline) RunPreview(ctx context.Context, upload []byte) (domain.Artifact, error) {
	return p.preview(ctx, upload)
}

func (p *fakePipeline) RunMerge(ctx context.Context, req domain.MergeRequest) (domain.Artifact, error) {
	return p.merge(ctx, req)
}

func (p *fakePipeline) LastPreview() (domain.Artifact, bool) {
	if p.lastPrev == nil {
		return domain.Artifact{}, false
	}
	return *p.lastPrev, true
}

func (p *fakePipeline) LastResult() (domain.Artifact, bool) {
	if p.lastResult == nil {
		return domain.Artifact{}, false
	}
	return *p.lastResult, true
}

func (p *fakePipeline) Jobs() []domain.Job {
	return []domain.Job{{Stage: domain.StagePreview}, {Stage: domain.StageMerge}}
}

type fakeEngine struct {
	status   domain.EngineStatus
	handlers []func(float64)
}

func (e *fakeEngine) Status() domain.EngineStatus { return e.status }

func (e *fakeEngine) OnDownload(fn func(float64)) (func(), error) {
	e.handlers = append(e.handlers, fn)
	return func() {}, nil
}

type emitted struct {
	mu    sync.Mutex
	names []string
}

func (e *emitted) record(_ context.Context, name string, _ ...interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.names = append(e.names, name)
}

func newTestApp(t *testing.T, p *fakePipeline) (*App, *emitted) {
	t.Helper()
	rec := &emitted{}
	app := &App{
		Store:     &fakeStore{settings: domain.Settings{OutputDir: t.TempDir()}},
		Pipeline:  p,
		Engine:    &fakeEngine{status: domain.EngineStatus{State: domain.EngineStateReady, Ready: true}},
		logger:    hclog.NewNullLogger(),
		events:    jobs.NewEventBus(100),
		emitEvent: rec.record,
	}
	app.events.Listen(func(event jobs.Event) { app.emit("job:event", event) })
	return app, rec
}

func mp4Header() []byte {
	return append([]byte{0x00, 0x00, 0x00, 0x18}, []byte("ftypmp42\x00\x00\x00\x00mp42isom")...)
}

func TestUploadFileRunsPreview(t *testing.T) {
	var got []byte
	app, _ := newTestApp(t, &fakePipeline{preview: func(_ context.Context, upload []byte) (domain.Artifact, error) {
		got = upload
		return domain.Artifact{JobID: "p1", Stage: domain.StagePreview, Data: []byte("out")}, nil
	}})

	path := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(path, mp4Header(), 0o644))

	view, err := app.UploadFile(path)
	require.NoError(t, err)
	assert.Equal(t, mp4Header(), got)
	assert.Equal(t, "/artifacts/preview/p1.mp4", view.URL)
}

func TestUploadFileRejectsNonVideo(t *testing.T) {
	app, _ := newTestApp(t, &fakePipeline{preview: func(context.Context, []byte) (domain.Artifact, error) {
		t.Fatal("preview must not run")
		return domain.Artifact{}, nil
	}})

	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello there"), 0o644))

	_, err := app.UploadFile(path)
	require.EqualError(t, err, "Please upload a valid video file")

	events := app.JobEvents(0)
	require.Len(t, events, 1)
	assert.Equal(t, jobs.EventTypeError, events[0].Type)
}

func TestMergePassesCurrentPreview(t *testing.T) {
	preview := domain.Artifact{JobID: "p1", Stage: domain.StagePreview, Source: []byte("src"), Width: 640, Height: 360}
	var req domain.MergeRequest
	app, _ := newTestApp(t, &fakePipeline{
		lastPrev: &preview,
		merge: func(_ context.Context, r domain.MergeRequest) (domain.Artifact, error) {
			req = r
			return domain.Artifact{JobID: "m1", Stage: domain.StageMerge, SeekSeconds: r.StartSeconds}, nil
		},
	})

	view, err := app.Merge(42, true, "  Goal!  ")
	require.NoError(t, err)

	require.NotNil(t, req.Preview)
	assert.Equal(t, "p1", req.Preview.JobID)
	assert.Equal(t, 42, req.StartSeconds)
	assert.True(t, req.RetainOriginalAudio)
	assert.Equal(t, "Goal!", req.Caption)
	assert.Equal(t, 42, view.SeekSeconds)
	assert.Equal(t, "/artifacts/merge/m1.mp4", view.URL)
}

func TestMergeReportsFieldMessages(t *testing.T) {
	app, _ := newTestApp(t, &fakePipeline{merge: func(_ context.Context, r domain.MergeRequest) (domain.Artifact, error) {
		assert.Nil(t, r.Preview)
		return domain.Artifact{}, &pipeline.ValidationError{
			Stage: domain.StageMerge,
			Fields: []pipeline.FieldError{
				{Field: "startSeconds", Message: "must be less than or equal to 1000"},
				{Field: "preview", Message: "is required"},
			},
		}
	}})

	_, err := app.Merge(1001, false, "")
	require.EqualError(t, err, "startSeconds must be less than or equal to 1000\npreview is required")
}

func TestSaveResultRequiresMerge(t *testing.T) {
	app, _ := newTestApp(t, &fakePipeline{})

	_, err := app.SaveResult()
	require.ErrorIs(t, err, pipeline.ErrNoResult)
	assert.EqualError(t, err, "Please merge the video first")
}

func TestSaveResultWritesClip(t *testing.T) {
	result := domain.Artifact{JobID: "m1", Stage: domain.StageMerge, Data: []byte("clip-bytes")}
	app, _ := newTestApp(t, &fakePipeline{lastResult: &result})
	app.runtimeCtx = context.Background()

	target := filepath.Join(t.TempDir(), "nested", "out.mp4")
	app.saveDialog = func(_ context.Context, opts wailsruntime.SaveDialogOptions) (string, error) {
		assert.Equal(t, resultFileName, opts.DefaultFilename)
		return target, nil
	}

	path, err := app.SaveResult()
	require.NoError(t, err)
	assert.Equal(t, target, path)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "clip-bytes", string(data))
}

func TestStartEnginePublishesProgressAndReady(t *testing.T) {
	app, rec := newTestApp(t, &fakePipeline{})
	app.runtimeCtx = context.Background()
	eng := app.Engine.(*fakeEngine)
	app.initEngine = func(context.Context) error {
		for _, fn := range eng.handlers {
			fn(0.5)
			fn(1)
		}
		return nil
	}

	app.startEngine()

	events := app.JobEvents(0)
	require.Len(t, events, 3)
	assert.Equal(t, "Downloading FFmpeg...", events[0].Message)
	assert.Equal(t, 0.5, events[0].Progress)
	assert.Equal(t, "Engine ready", events[2].Message)
	assert.Len(t, rec.names, 3)
}

func TestStartEnginePublishesFailure(t *testing.T) {
	app, _ := newTestApp(t, &fakePipeline{})
	app.initEngine = func(context.Context) error { return errors.New("boom") }

	app.startEngine()

	events := app.JobEvents(0)
	require.Len(t, events, 1)
	assert.Equal(t, jobs.EventTypeError, events[0].Type)
	assert.Equal(t, "boom", events[0].Message)
}

func TestSaveSettingsNormalizes(t *testing.T) {
	app, _ := newTestApp(t, &fakePipeline{})

	saved, err := app.SaveSettings(domain.Settings{LogLevel: " DEBUG ", OutputDir: " /clips "})
	require.NoError(t, err)
	assert.Equal(t, "debug", saved.LogLevel)
	assert.Equal(t, "/clips", saved.OutputDir)
	assert.Equal(t, saved, app.Settings)
}
