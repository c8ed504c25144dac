// Package media resolves clip time windows and synthesizes the ffmpeg argument
// sequences understood by the transcoding engine.
package media

import (
	"strconv"
	"time"

	"clipmix/internal/domain"
)

// FixedDuration is the length of every produced clip.
const FixedDuration = 30 * time.Second

// FixedDurationTimestamp is FixedDuration in engine timestamp notation.
const FixedDurationTimestamp = "00:00:30"

// MaxStartSeconds is the largest start offset accepted by the merge stage.
const MaxStartSeconds = 1000

// Resolve converts a start offset in seconds into engine timestamps.
//
// Components are not zero padded and the end seconds do not carry into the
// minutes, so an offset of 45 yields an end of "00:0:75". The engine parses
// seconds permissively and accepts such values.
func Resolve(startSeconds int) domain.TimeWindow {
	minutes := startSeconds / 60
	seconds := startSeconds - minutes*60
	fixed := int(FixedDuration / time.Second)

	return domain.TimeWindow{
		Start: "00:" + strconv.Itoa(minutes) + ":" + strconv.Itoa(seconds),
		End:   "00:" + strconv.Itoa(minutes) + ":" + strconv.Itoa(seconds+fixed),
	}
}
