package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"clipmix/internal/assets"
	"clipmix/internal/domain"
	"clipmix/internal/engine"
	"clipmix/internal/jobs"
	"clipmix/internal/upload"
)

// ErrEngineNotReady is returned when a stage is triggered before the engine
// finished initializing. The user may retry once it is ready.
var ErrEngineNotReady = fmt.Errorf("pipeline: %w", engine.ErrNotReady)

// ErrNoResult is returned when a merged clip is requested before any merge
// succeeded.
var ErrNoResult = errors.New("pipeline: no merged result")

// FieldError is one violated input constraint.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (f FieldError) String() string {
	return f.Field + " " + f.Message
}

// ValidationError lists every violated field of a stage request.
type ValidationError struct {
	Stage  domain.Stage `json:"stage"`
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.String())
	}
	return fmt.Sprintf("invalid %s request: %s", e.Stage, strings.Join(parts, "; "))
}

// Has reports whether the named field was rejected.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// StageError is a failed step of a running job.
type StageError struct {
	Stage   domain.Stage     `json:"stage"`
	Step    domain.JobStatus `json:"step"`
	Message string           `json:"message"`
	Err     error            `json:"-"`
}

func (e *StageError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("%s %s: %s", e.Stage, e.Step, e.Message)
	}
	return fmt.Sprintf("%s %s: %s: %v", e.Stage, e.Step, e.Message, e.Err)
}

func (e *StageError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// UserMessages converts a stage failure into user-facing notifications, one
// per violated field for validation errors and a single line otherwise.
func UserMessages(err error) []string {
	if err == nil {
		return nil
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		out := make([]string, 0, len(validationErr.Fields))
		for _, f := range validationErr.Fields {
			out = append(out, f.String())
		}
		return out
	}

	var assetErr *assets.AssetFetchError
	var payloadErr *engine.AssetFetchError
	switch {
	case errors.Is(err, ErrEngineNotReady), errors.Is(err, engine.ErrNotReady):
		return []string{"The video engine is still loading, try again once it is ready"}
	case errors.Is(err, ErrNoResult):
		return []string{"Please merge the video first"}
	case errors.Is(err, jobs.ErrJobAlreadyRunning):
		return []string{"This step is already running, wait for it to finish"}
	case errors.Is(err, upload.ErrEmpty), errors.Is(err, upload.ErrNotVideo), errors.Is(err, upload.ErrTooLarge):
		return []string{"Please upload a valid video file"}
	case errors.As(err, &assetErr):
		return []string{fmt.Sprintf("Could not load the %s", assetErr.Asset)}
	case errors.As(err, &payloadErr):
		return []string{"Could not download the video engine"}
	default:
		return []string{"Something went wrong while processing the video"}
	}
}
