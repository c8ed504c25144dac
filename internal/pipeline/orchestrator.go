// Package pipeline sequences the preview and merge stages against the session
// engine and keeps job state and notifications consistent with engine outcomes.
package pipeline

import (
	"context"
	"errors"
	"path"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"clipmix/internal/domain"
	"clipmix/internal/engine"
	"clipmix/internal/jobs"
	"clipmix/internal/media"
	"clipmix/internal/probe"
)

const mp4MimeType = "video/mp4"

const discardTimeout = time.Minute

// Engine is the subset of the session engine the orchestrator drives.
type Engine interface {
	Ready() bool
	Exec(ctx context.Context, req engine.ExecRequest) error
	WriteFile(ctx context.Context, path string, data []byte) error
	ReadFile(ctx context.Context, path string) ([]byte, error)
	Discard(ctx context.Context, scope string) error
	OnProgress(fn func(engine.Progress)) (func(), error)
	OnLog(fn func(engine.LogLine)) (func(), error)
}

// Presenter renders produced artifacts. ShowPreview returns the natural pixel
// dimensions of the rendered preview, or zero values when unknown.
type Presenter interface {
	ShowPreview(ctx context.Context, artifact domain.Artifact) (probe.Dimensions, error)
	ShowResult(ctx context.Context, artifact domain.Artifact) error
}

// Assets supplies the constant merge inputs.
type Assets interface {
	BackgroundTrack() ([]byte, error)
	Font(ctx context.Context) ([]byte, error)
}

// Options carries optional collaborators.
type Options struct {
	Jobs   *jobs.Manager
	Events *jobs.EventBus
	Logger hclog.Logger
	NewID  func() string
}

// Orchestrator runs the preview and merge stages of one session.
type Orchestrator struct {
	engine    Engine
	presenter Presenter
	assets    Assets
	jobs      *jobs.Manager
	events    *jobs.EventBus
	logger    hclog.Logger
	newID     func() string
	validate  *validator.Validate

	unsubscribe []func()

	mu          sync.RWMutex
	lastPreview *domain.Artifact
	lastResult  *domain.Artifact
	cleanup     sync.WaitGroup
}

// New wires an orchestrator and subscribes to the engine's progress and log streams.
func New(eng Engine, presenter Presenter, assets Assets, opts Options) (*Orchestrator, error) {
	o := &Orchestrator{
		engine:    eng,
		presenter: presenter,
		assets:    assets,
		jobs:      opts.Jobs,
		events:    opts.Events,
		logger:    opts.Logger,
		newID:     opts.NewID,
		validate:  newValidator(),
	}
	if o.jobs == nil {
		o.jobs = jobs.NewManager()
	}
	if o.events == nil {
		o.events = jobs.NewEventBus(1000)
	}
	if o.logger == nil {
		o.logger = hclog.NewNullLogger()
	}
	o.logger = o.logger.Named("pipeline")
	if o.newID == nil {
		o.newID = func() string { return uuid.NewString() }
	}

	unsubProgress, err := eng.OnProgress(o.forwardProgress)
	if err != nil {
		return nil, err
	}
	unsubLog, err := eng.OnLog(o.forwardLog)
	if err != nil {
		unsubProgress()
		return nil, err
	}
	o.unsubscribe = []func(){unsubProgress, unsubLog}
	return o, nil
}

// Close detaches from the engine streams and waits for pending scope cleanup.
func (o *Orchestrator) Close() {
	for _, fn := range o.unsubscribe {
		fn()
	}
	o.cleanup.Wait()
}

// Events exposes the orchestrator's event history.
func (o *Orchestrator) Events() *jobs.EventBus {
	return o.events
}

// Jobs returns snapshots of both stages.
func (o *Orchestrator) Jobs() []domain.Job {
	return o.jobs.All()
}

// Current returns the job snapshot of a stage.
func (o *Orchestrator) Current(stage domain.Stage) domain.Job {
	return o.jobs.Current(stage)
}

// LastPreview returns the artifact of the most recent successful preview.
func (o *Orchestrator) LastPreview() (domain.Artifact, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.lastPreview == nil {
		return domain.Artifact{}, false
	}
	return *o.lastPreview, true
}

// LastResult returns the artifact of the most recent successful merge.
func (o *Orchestrator) LastResult() (domain.Artifact, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.lastResult == nil {
		return domain.Artifact{}, false
	}
	return *o.lastResult, true
}

// RunPreview re-muxes the upload into a renderable preview and hands it to
// the presenter, recording the preview's natural dimensions.
func (o *Orchestrator) RunPreview(ctx context.Context, upload []byte) (domain.Artifact, error) {
	if !o.engine.Ready() {
		return domain.Artifact{}, o.reject(domain.StagePreview, ErrEngineNotReady)
	}
	if len(upload) == 0 {
		return domain.Artifact{}, o.reject(domain.StagePreview, &ValidationError{
			Stage:  domain.StagePreview,
			Fields: []FieldError{{Field: "upload", Message: "is required"}},
		})
	}

	jobID := o.newID()
	if _, err := o.jobs.Start(domain.StagePreview, jobID); err != nil {
		return domain.Artifact{}, o.reject(domain.StagePreview, err)
	}
	o.publishStatus(domain.StagePreview, jobID, domain.JobStatusWriting, "Preview started")
	defer o.discard(jobID)

	artifact, err := o.runPreview(ctx, jobID, upload)
	if err != nil {
		return domain.Artifact{}, o.fail(domain.StagePreview, jobID, err)
	}

	o.mu.Lock()
	o.lastPreview = &artifact
	o.mu.Unlock()

	o.finish(domain.StagePreview, jobID, artifact, "Preview ready")
	return artifact, nil
}

func (o *Orchestrator) runPreview(ctx context.Context, jobID string, upload []byte) (domain.Artifact, error) {
	const stage = domain.StagePreview
	scope := jobID

	if err := o.engine.WriteFile(ctx, path.Join(scope, media.InputFile), upload); err != nil {
		return domain.Artifact{}, stageError(stage, domain.JobStatusWriting, "write upload", err)
	}

	if err := o.step(stage, jobID, domain.JobStatusExecuting, "Converting upload"); err != nil {
		return domain.Artifact{}, err
	}
	if err := o.engine.Exec(ctx, engine.ExecRequest{Scope: scope, Args: media.PreviewCommand()}); err != nil {
		return domain.Artifact{}, stageError(stage, domain.JobStatusExecuting, "convert upload", err)
	}

	if err := o.step(stage, jobID, domain.JobStatusReading, "Reading preview"); err != nil {
		return domain.Artifact{}, err
	}
	data, err := o.readOutput(ctx, stage, scope)
	if err != nil {
		return domain.Artifact{}, err
	}

	artifact := domain.Artifact{
		JobID:    jobID,
		Stage:    stage,
		MimeType: mp4MimeType,
		Data:     data,
		Source:   upload,
	}
	dims, err := o.presenter.ShowPreview(ctx, artifact)
	if err != nil {
		return domain.Artifact{}, stageError(stage, domain.JobStatusReading, "present preview", err)
	}
	if !dims.Known() {
		o.logger.Warn("preview dimensions unavailable, merge will not scale", "job", jobID)
	}
	artifact.Width = dims.Width
	artifact.Height = dims.Height
	return artifact, nil
}

// RunMerge extracts the requested window from the previewed upload, lays the
// background track onto it, and hands the clip to the presenter.
func (o *Orchestrator) RunMerge(ctx context.Context, req domain.MergeRequest) (domain.Artifact, error) {
	if !o.engine.Ready() {
		return domain.Artifact{}, o.reject(domain.StageMerge, ErrEngineNotReady)
	}

	jobID := o.newID()
	if _, err := o.jobs.Start(domain.StageMerge, jobID); err != nil {
		return domain.Artifact{}, o.reject(domain.StageMerge, err)
	}
	o.publishStatus(domain.StageMerge, jobID, domain.JobStatusValidating, "Merge started")

	if err := validateMerge(o.validate, req); err != nil {
		return domain.Artifact{}, o.fail(domain.StageMerge, jobID, err)
	}
	defer o.discard(jobID)

	artifact, err := o.runMerge(ctx, jobID, req)
	if err != nil {
		return domain.Artifact{}, o.fail(domain.StageMerge, jobID, err)
	}

	o.mu.Lock()
	o.lastResult = &artifact
	o.mu.Unlock()

	o.finish(domain.StageMerge, jobID, artifact, "Merge completed")
	return artifact, nil
}

func (o *Orchestrator) runMerge(ctx context.Context, jobID string, req domain.MergeRequest) (domain.Artifact, error) {
	const stage = domain.StageMerge
	scope := jobID
	source := req.Preview
	window := media.Resolve(req.StartSeconds)
	overlay := media.Overlay{Text: req.Caption}

	if err := o.step(stage, jobID, domain.JobStatusWriting, "Writing inputs"); err != nil {
		return domain.Artifact{}, err
	}
	track, err := o.assets.BackgroundTrack()
	if err != nil {
		return domain.Artifact{}, stageError(stage, domain.JobStatusWriting, "load background track", err)
	}
	inputs := []struct {
		name string
		data []byte
	}{
		{media.InputFile, source.Source},
		{media.BackgroundTrackFile, track},
	}
	if overlay.Enabled() {
		font, err := o.assets.Font(ctx)
		if err != nil {
			return domain.Artifact{}, stageError(stage, domain.JobStatusWriting, "load font", err)
		}
		inputs = append(inputs, struct {
			name string
			data []byte
		}{media.FontFile, font})
	}
	for _, input := range inputs {
		if err := o.engine.WriteFile(ctx, path.Join(scope, input.name), input.data); err != nil {
			return domain.Artifact{}, stageError(stage, domain.JobStatusWriting, "write "+input.name, err)
		}
	}

	if err := o.step(stage, jobID, domain.JobStatusExtracting, "Extracting segment"); err != nil {
		return domain.Artifact{}, err
	}
	extract, mix := media.MergeCommands(window, domain.MergeOptions{
		RetainOriginalAudio: req.RetainOriginalAudio,
		VideoWidth:          source.Width,
		VideoHeight:         source.Height,
	}, overlay)
	if err := o.engine.Exec(ctx, engine.ExecRequest{Scope: scope, Args: extract, Expected: media.FixedDuration}); err != nil {
		return domain.Artifact{}, stageError(stage, domain.JobStatusExtracting, "extract segment", err)
	}

	if err := o.step(stage, jobID, domain.JobStatusMixing, "Mixing audio"); err != nil {
		return domain.Artifact{}, err
	}
	if err := o.engine.Exec(ctx, engine.ExecRequest{Scope: scope, Args: mix, Expected: media.FixedDuration}); err != nil {
		return domain.Artifact{}, stageError(stage, domain.JobStatusMixing, "mix audio", err)
	}

	if err := o.step(stage, jobID, domain.JobStatusReading, "Reading result"); err != nil {
		return domain.Artifact{}, err
	}
	data, err := o.readOutput(ctx, stage, scope)
	if err != nil {
		return domain.Artifact{}, err
	}

	artifact := domain.Artifact{
		JobID:       jobID,
		Stage:       stage,
		MimeType:    mp4MimeType,
		Data:        data,
		Source:      source.Source,
		Width:       source.Width,
		Height:      source.Height,
		SeekSeconds: req.StartSeconds,
	}
	if err := o.presenter.ShowResult(ctx, artifact); err != nil {
		return domain.Artifact{}, stageError(stage, domain.JobStatusReading, "present result", err)
	}
	return artifact, nil
}

func (o *Orchestrator) readOutput(ctx context.Context, stage domain.Stage, scope string) ([]byte, error) {
	data, err := o.engine.ReadFile(ctx, path.Join(scope, media.OutputFile))
	if err != nil {
		return nil, stageError(stage, domain.JobStatusReading, "read output", err)
	}
	if len(data) == 0 {
		return nil, stageError(stage, domain.JobStatusReading, "engine produced an empty output", nil)
	}
	return data, nil
}

// step applies a transition and announces it.
func (o *Orchestrator) step(stage domain.Stage, jobID string, status domain.JobStatus, message string) error {
	if err := o.jobs.Transition(stage, status); err != nil {
		return stageError(stage, status, "transition", err)
	}
	o.publishStatus(stage, jobID, status, message)
	return nil
}

func (o *Orchestrator) finish(stage domain.Stage, jobID string, artifact domain.Artifact, message string) {
	if err := o.jobs.Transition(stage, domain.JobStatusDone); err == nil {
		o.publishStatus(stage, jobID, domain.JobStatusDone, message)
	}
	o.events.Publish(jobs.Event{
		JobID:    jobID,
		Stage:    stage,
		Type:     jobs.EventTypeResult,
		Status:   domain.JobStatusDone,
		Message:  message,
		Artifact: artifact.JobID,
	})
	o.logger.Info("stage completed", "stage", stage, "job", jobID, "bytes", artifact.Size())
}

// reject reports a failure that happened before a job was started.
func (o *Orchestrator) reject(stage domain.Stage, err error) error {
	o.publishError(stage, "", err)
	o.logger.Warn("stage rejected", "stage", stage, "error", err)
	return err
}

// fail marks the running job failed and surfaces one notification.
func (o *Orchestrator) fail(stage domain.Stage, jobID string, err error) error {
	_ = o.jobs.Fail(stage, err.Error())
	o.publishStatus(stage, jobID, domain.JobStatusFailed, "Job failed")
	o.publishError(stage, jobID, err)

	var opErr *engine.OperationError
	if errors.As(err, &opErr) && opErr.CommandLog.Command != "" {
		o.events.Publish(jobs.Event{
			JobID:    jobID,
			Stage:    stage,
			Type:     jobs.EventTypeLog,
			Message:  "Failed command",
			Args:     opErr.CommandLog.Args,
			ExitCode: opErr.CommandLog.ExitCode,
			Stderr:   opErr.CommandLog.Stderr,
		})
	}

	o.logger.Error("stage failed", "stage", stage, "job", jobID, "error", err)
	return err
}

func (o *Orchestrator) publishError(stage domain.Stage, jobID string, err error) {
	messages := UserMessages(err)
	event := jobs.Event{
		JobID:   jobID,
		Stage:   stage,
		Type:    jobs.EventTypeError,
		Message: err.Error(),
		Details: messages,
	}
	if jobID != "" {
		event.Status = domain.JobStatusFailed
	}
	o.events.Publish(event)
}

func (o *Orchestrator) publishStatus(stage domain.Stage, jobID string, status domain.JobStatus, message string) {
	o.events.Publish(jobs.Event{
		JobID:   jobID,
		Stage:   stage,
		Type:    jobs.EventTypeStatus,
		Status:  status,
		Message: message,
	})
}

func (o *Orchestrator) forwardProgress(p engine.Progress) {
	o.events.Publish(jobs.Event{
		JobID:    p.Scope,
		Stage:    o.stageOf(p.Scope),
		Type:     jobs.EventTypeProgress,
		Progress: p.Ratio,
	})
}

func (o *Orchestrator) forwardLog(line engine.LogLine) {
	o.logger.Debug(line.Message, "job", line.Scope)
}

func (o *Orchestrator) stageOf(jobID string) domain.Stage {
	for _, job := range o.jobs.All() {
		if job.ID == jobID {
			return job.Stage
		}
	}
	return ""
}

// discard removes a job's scope directory once the engine is free.
func (o *Orchestrator) discard(jobID string) {
	o.cleanup.Add(1)
	go func() {
		defer o.cleanup.Done()
		ctx, cancel := context.WithTimeout(context.Background(), discardTimeout)
		defer cancel()
		if err := o.engine.Discard(ctx, jobID); err != nil {
			o.logger.Debug("discard job scope", "job", jobID, "error", err)
		}
	}()
}

func stageError(stage domain.Stage, step domain.JobStatus, message string, err error) error {
	return &StageError{Stage: stage, Step: step, Message: message, Err: err}
}
