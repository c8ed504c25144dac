package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clipmix/internal/domain"
	"clipmix/internal/jobs"
)

func TestRenderStatusLine(t *testing.T) {
	line := renderStatusLine("merge", statusOK, "Wrote out.mp4", false)
	assert.Equal(t, "  merge:       [OK] Wrote out.mp4", line)

	colored := renderStatusLine("merge", statusError, "", true)
	assert.True(t, strings.HasPrefix(colored, ansiRed))
	assert.True(t, strings.HasSuffix(colored, ansiReset))
	assert.Contains(t, colored, "[ERROR]")
}

func TestRenderEvent(t *testing.T) {
	line, ok := renderEvent(jobs.Event{
		Type:    jobs.EventTypeStatus,
		Stage:   domain.StageMerge,
		Status:  domain.JobStatusMixing,
		Message: "mixing",
	}, false)
	require.True(t, ok)
	assert.Contains(t, line, "merge:")
	assert.Contains(t, line, "[INFO] mixing")

	line, ok = renderEvent(jobs.Event{
		Type:    jobs.EventTypeError,
		Stage:   domain.StagePreview,
		Message: "preview failed",
		Details: []string{"Please upload a valid video file"},
	}, false)
	require.True(t, ok)
	assert.Contains(t, line, "[ERROR] Please upload a valid video file")

	_, ok = renderEvent(jobs.Event{Type: jobs.EventTypeProgress, Progress: 0.5}, false)
	assert.False(t, ok)
}

func TestDownloadReporterPrintsTenPercentSteps(t *testing.T) {
	var out bytes.Buffer
	report := downloadReporter(&out, false)
	for _, ratio := range []float64{0, 0.01, 0.05, 0.1, 0.15, 0.5, 1} {
		report(ratio)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "0%")
	assert.Contains(t, lines[1], "10%")
	assert.Contains(t, lines[2], "50%")
	assert.Contains(t, lines[3], "100%")
}

func TestShouldColorizeNonTerminal(t *testing.T) {
	assert.False(t, shouldColorize(&bytes.Buffer{}))
	assert.False(t, shouldColorize(&syncWriter{w: &bytes.Buffer{}}))
}

func TestRenderDiagnostics(t *testing.T) {
	rendered := renderDiagnostics(domain.DiagnosticReport{
		Items: []domain.DiagnosticItem{
			{Name: "FFmpeg", Status: domain.DiagnosticStatusPass, Message: "found"},
			{Name: "Background track", Status: domain.DiagnosticStatusFail, Message: "missing", Hint: "set background_track_path"},
		},
	}, false)

	assert.Contains(t, rendered, "Check")
	assert.NotContains(t, rendered, "CHECK")
	assert.Contains(t, rendered, "FFmpeg")
	assert.Contains(t, rendered, "OK")
	assert.Contains(t, rendered, "ERROR")
	assert.Contains(t, rendered, "set background_track_path")
}

func TestRenderTablePadsShortRows(t *testing.T) {
	rendered := renderTable([]string{"A", "B"}, [][]string{{"only"}}, nil)
	assert.Contains(t, rendered, "only")
	assert.NotContains(t, rendered, "<nil>")
	assert.Empty(t, renderTable(nil, nil, nil))
}
