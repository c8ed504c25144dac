package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrNotReady is returned for operations issued before Initialize completes.
	ErrNotReady = errors.New("engine is not ready")

	// ErrTooManySubscribers is returned when the observer bound is reached.
	ErrTooManySubscribers = errors.New("too many engine subscribers")

	// ErrOutsideWorkspace is returned for paths escaping the engine file system.
	ErrOutsideWorkspace = errors.New("path escapes engine workspace")

	// ErrClosed is returned for operations after Close.
	ErrClosed = errors.New("engine is closed")
)

// CommandLog captures one engine invocation.
type CommandLog struct {
	Command  string   `json:"command"`
	Args     []string `json:"args"`
	Dir      string   `json:"dir,omitempty"`
	ExitCode int      `json:"exitCode"`
	Stderr   string   `json:"stderr"`
}

// OperationError is a rejected write, exec or read call.
type OperationError struct {
	Op         string     `json:"op"`
	Path       string     `json:"path,omitempty"`
	CommandLog CommandLog `json:"commandLog"`
	Err        error      `json:"-"`
}

// Error formats engine failures for logs and UI.
func (e *OperationError) Error() string {
	if e == nil {
		return ""
	}
	if e.CommandLog.Command == "" {
		if e.Path != "" {
			return fmt.Sprintf("engine %s %s: %v", e.Op, e.Path, e.Err)
		}
		return fmt.Sprintf("engine %s: %v", e.Op, e.Err)
	}

	return fmt.Sprintf("engine %s: %v (exit=%d)", e.Op, e.Err, e.CommandLog.ExitCode)
}

// Unwrap exposes the underlying error for errors.Is / errors.As.
func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// AssetFetchError reports a failed fetch of the engine payload.
type AssetFetchError struct {
	URL string
	Err error
}

func (e *AssetFetchError) Error() string {
	return fmt.Sprintf("fetch engine payload %s: %v", e.URL, e.Err)
}

func (e *AssetFetchError) Unwrap() error {
	return e.Err
}
