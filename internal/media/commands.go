package media

import (
	"fmt"
	"strings"

	"clipmix/internal/domain"
)

// In-engine file names. Each job runs in its own scope directory, so the names
// stay fixed across stages without colliding.
const (
	InputFile           = "input.mp4"
	BackgroundTrackFile = "bgm.mp3"
	FontFile            = "font.ttf"
	SegmentFile         = "temp.mp4"
	OutputFile          = "output.mp4"
)

// BackgroundGain is the volume applied to the original audio when it is kept.
const BackgroundGain = "0.5"

const (
	defaultFontSize   = 28
	defaultTextMargin = 36
)

// Overlay describes on-screen text drawn onto the extracted segment.
type Overlay struct {
	Text string
}

// Enabled reports whether the overlay draws anything.
func (o Overlay) Enabled() bool {
	return strings.TrimSpace(o.Text) != ""
}

// PreviewCommand re-muxes the upload into a container the presenter can render.
func PreviewCommand() []string {
	return []string{"-i", InputFile, "-c:v", "copy", OutputFile}
}

// ExtractCommand cuts the window out of the upload with a fast constant frame
// rate re-encode, copying audio untouched.
func ExtractCommand(window domain.TimeWindow, width, height int) []string {
	return ExtractCommandWithOverlay(window, width, height, Overlay{})
}

// ExtractCommandWithOverlay is ExtractCommand with optional caption text. A
// zero width or height skips scaling and falls back to fixed text metrics.
func ExtractCommandWithOverlay(window domain.TimeWindow, width, height int, overlay Overlay) []string {
	args := []string{
		"-i", InputFile,
		"-ss", window.Start,
		"-to", window.End,
		"-vsync", "cfr",
		"-preset", "ultrafast",
	}

	if filters := videoFilters(width, height, overlay); len(filters) > 0 {
		args = append(args, "-vf", strings.Join(filters, ","))
	}

	return append(args, "-c:a", "copy", SegmentFile)
}

// MergeCommand lays the background track onto the extracted segment, either
// mixed with the original audio at reduced gain or replacing it.
func MergeCommand(retainOriginalAudio bool) []string {
	if retainOriginalAudio {
		return []string{
			"-i", SegmentFile,
			"-i", BackgroundTrackFile,
			"-filter_complex", fmt.Sprintf("[0:a]volume=%s[a0];[a0][1:a]amix=inputs=2:duration=shortest[aout]", BackgroundGain),
			"-map", "[aout]",
			"-map", "0:v:0",
			"-t", FixedDurationTimestamp,
			"-c:v", "copy",
			"-c:a", "aac",
			"-shortest",
			OutputFile,
		}
	}

	return []string{
		"-i", SegmentFile,
		"-i", BackgroundTrackFile,
		"-t", FixedDurationTimestamp,
		"-c:v", "copy",
		"-c:a", "aac",
		"-strict", "experimental",
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-shortest",
		OutputFile,
	}
}

// MergeCommands returns the extract and mix invocations of one merge, in
// execution order.
func MergeCommands(window domain.TimeWindow, opts domain.MergeOptions, overlay Overlay) (extract, mix []string) {
	return ExtractCommandWithOverlay(window, opts.VideoWidth, opts.VideoHeight, overlay), MergeCommand(opts.RetainOriginalAudio)
}

// videoFilters builds the -vf chain for the extract pass.
func videoFilters(width, height int, overlay Overlay) []string {
	var filters []string
	if width > 0 && height > 0 {
		filters = append(filters, fmt.Sprintf("scale=%d:%d", even(width), even(height)))
	}

	if overlay.Enabled() {
		fontSize, margin := defaultFontSize, defaultTextMargin
		if height > 0 {
			fontSize = max(height/15, 12)
			margin = max(height/20, 8)
		}
		filters = append(filters, fmt.Sprintf(
			"drawtext=fontfile=%s:text='%s':x=(w-text_w)/2:y=h-th-%d:fontsize=%d:fontcolor=white:borderw=2:bordercolor=black",
			FontFile,
			escapeDrawtext(overlay.Text),
			margin,
			fontSize,
		))
	}
	return filters
}

// even rounds down to the nearest even value; libx264 rejects odd sizes.
func even(v int) int {
	return v - v%2
}

var drawtextEscaper = strings.NewReplacer(
	`\`, `\\\\`,
	`'`, "’",
	`:`, `\:`,
	`%`, `\%`,
	"\n", " ",
)

func escapeDrawtext(text string) string {
	return drawtextEscaper.Replace(strings.TrimSpace(text))
}
