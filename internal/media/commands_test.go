package media

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clipmix/internal/domain"
)

func TestPreviewCommand(t *testing.T) {
	assert.Equal(t, []string{"-i", "input.mp4", "-c:v", "copy", "output.mp4"}, PreviewCommand())
}

func TestExtractCommandWithoutDimensions(t *testing.T) {
	args := ExtractCommand(domain.TimeWindow{Start: "00:1:5", End: "00:1:35"}, 0, 0)

	assert.Equal(t, []string{
		"-i", "input.mp4",
		"-ss", "00:1:5",
		"-to", "00:1:35",
		"-vsync", "cfr",
		"-preset", "ultrafast",
		"-c:a", "copy",
		"temp.mp4",
	}, args)
}

func TestExtractCommandScalesToEvenDimensions(t *testing.T) {
	args := ExtractCommand(Resolve(0), 1281, 719)

	idx := indexOf(args, "-vf")
	require.NotEqual(t, -1, idx)
	assert.Equal(t, "scale=1280:718", args[idx+1])
	assert.Equal(t, "temp.mp4", args[len(args)-1])
}

func TestExtractCommandWithOverlay(t *testing.T) {
	args := ExtractCommandWithOverlay(Resolve(10), 1280, 720, Overlay{Text: "it's 10:30"})

	idx := indexOf(args, "-vf")
	require.NotEqual(t, -1, idx)
	filter := args[idx+1]
	assert.True(t, strings.HasPrefix(filter, "scale=1280:720,drawtext=fontfile=font.ttf:"))
	assert.Contains(t, filter, `text='it’s 10\:30'`)
	assert.Contains(t, filter, "fontsize=48")
	assert.Contains(t, filter, "y=h-th-36")
}

func TestExtractCommandOverlayFallsBackWithoutDimensions(t *testing.T) {
	args := ExtractCommandWithOverlay(Resolve(0), 0, 0, Overlay{Text: "hello"})

	idx := indexOf(args, "-vf")
	require.NotEqual(t, -1, idx)
	assert.NotContains(t, args[idx+1], "scale=")
	assert.Contains(t, args[idx+1], "fontsize=28")
}

func TestMergeCommandRetainAudioMixesOneStream(t *testing.T) {
	args := MergeCommand(true)

	maps := mappedStreams(args)
	require.Len(t, maps, 2)
	assert.Equal(t, "[aout]", maps[0])
	assert.Equal(t, "0:v:0", maps[1])

	graph := args[indexOf(args, "-filter_complex")+1]
	assert.Contains(t, graph, "[0:a]volume=0.5[a0]")
	assert.Contains(t, graph, "amix=inputs=2:duration=shortest[aout]")
	assert.Equal(t, "copy", args[indexOf(args, "-c:v")+1])
	assert.Equal(t, "00:00:30", args[indexOf(args, "-t")+1])
	assert.Contains(t, args, "-shortest")
	assert.Equal(t, "output.mp4", args[len(args)-1])
}

func TestMergeCommandReplaceAudioUsesBackgroundTrack(t *testing.T) {
	args := MergeCommand(false)

	assert.Equal(t, []string{
		"-i", "temp.mp4",
		"-i", "bgm.mp3",
		"-t", "00:00:30",
		"-c:v", "copy",
		"-c:a", "aac",
		"-strict", "experimental",
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-shortest",
		"output.mp4",
	}, args)
	assert.NotContains(t, args, "-filter_complex")
}

func indexOf(args []string, flag string) int {
	for i, arg := range args {
		if arg == flag {
			return i
		}
	}
	return -1
}

func mappedStreams(args []string) []string {
	var maps []string
	for i := 0; i < len(args)-1; i++ {
		if args[i] == "-map" {
			maps = append(maps, args[i+1])
		}
	}
	return maps
}

func TestMergeCommandsFollowOptions(t *testing.T) {
	window := Resolve(75)
	opts := domain.MergeOptions{RetainOriginalAudio: true, VideoWidth: 640, VideoHeight: 360}

	extract, mix := MergeCommands(window, opts, Overlay{Text: "goal"})

	assert.Equal(t, ExtractCommandWithOverlay(window, 640, 360, Overlay{Text: "goal"}), extract)
	assert.Equal(t, MergeCommand(true), mix)

	extract, mix = MergeCommands(window, domain.MergeOptions{}, Overlay{})
	assert.Equal(t, ExtractCommand(window, 0, 0), extract)
	assert.Equal(t, MergeCommand(false), mix)
}
