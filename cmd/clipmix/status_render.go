package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"

	"clipmix/internal/domain"
	"clipmix/internal/jobs"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 12
	statusIndent     = "  "
)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := statusKindLabel(kind)
	if message != "" {
		statusText = fmt.Sprintf("[%s] %s", statusText, message)
	} else {
		statusText = fmt.Sprintf("[%s]", statusText)
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

func diagnosticKind(status domain.DiagnosticStatus) statusKind {
	switch status {
	case domain.DiagnosticStatusPass:
		return statusOK
	case domain.DiagnosticStatusWarn:
		return statusWarn
	default:
		return statusError
	}
}

// renderEvent formats stage status, error and result events. Progress and
// log events are left to the logger.
func renderEvent(event jobs.Event, colorize bool) (string, bool) {
	label := string(event.Stage)
	if label == "" {
		label = "engine"
	}

	switch event.Type {
	case jobs.EventTypeStatus:
		kind := statusInfo
		switch event.Status {
		case domain.JobStatusDone:
			kind = statusOK
		case domain.JobStatusFailed:
			kind = statusError
		}
		return renderStatusLine(label, kind, event.Message, colorize), true
	case jobs.EventTypeError:
		message := strings.Join(event.Details, "; ")
		if message == "" {
			message = event.Message
		}
		return renderStatusLine(label, statusError, message, colorize), true
	default:
		return "", false
	}
}

// downloadReporter prints engine download progress in ten percent steps.
func downloadReporter(out io.Writer, colorize bool) func(float64) {
	last := -1
	return func(ratio float64) {
		step := int(ratio * 10)
		if step <= last {
			return
		}
		last = step
		message := fmt.Sprintf("Downloading FFmpeg... %d%%", step*10)
		fmt.Fprintln(out, renderStatusLine("engine", statusInfo, message, colorize))
	}
}

func shouldColorize(writer io.Writer) bool {
	if locked, ok := writer.(*syncWriter); ok {
		writer = locked.w
	}
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// syncWriter serializes writes from stage and engine goroutines.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
