package engine

import (
	"strconv"
	"strings"
	"time"
)

// progressParser accumulates "-progress pipe:1" key=value lines into reports.
// A block ends with a progress=continue or progress=end line.
type progressParser struct {
	scope    string
	expected time.Duration
	current  Progress
}

func newProgressParser(scope string, expected time.Duration) *progressParser {
	return &progressParser{scope: scope, expected: expected, current: Progress{Scope: scope}}
}

// feed consumes one line and returns a completed report when a block ends.
func (p *progressParser) feed(line string) (Progress, bool) {
	key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok {
		return Progress{}, false
	}
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)

	switch key {
	case "frame":
		if n, err := strconv.Atoi(value); err == nil {
			p.current.Frame = n
		}
	case "out_time":
		p.current.OutTime = value
	case "out_time_us", "out_time_ms":
		// ffmpeg reports both keys in microseconds.
		if us, err := strconv.ParseInt(value, 10, 64); err == nil && p.expected > 0 {
			p.current.Ratio = clampRatio(float64(us) / float64(p.expected.Microseconds()))
		}
	case "speed":
		if v, err := strconv.ParseFloat(strings.TrimSuffix(value, "x"), 64); err == nil {
			p.current.Speed = v
		}
	case "progress":
		report := p.current
		if value == "end" {
			report.Done = true
			report.Ratio = 1
		}
		p.current = Progress{Scope: p.scope, Ratio: report.Ratio}
		return report, true
	}
	return Progress{}, false
}

func clampRatio(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
