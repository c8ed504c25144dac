package domain

import "time"

// Stage names one of the two independent pipelines driven by the orchestrator.
type Stage string

const (
	StagePreview Stage = "preview"
	StageMerge   Stage = "merge"
)

// JobStatus tracks each step of a single stage run.
type JobStatus string

const (
	JobStatusIdle       JobStatus = "idle"
	JobStatusValidating JobStatus = "validating"
	JobStatusWriting    JobStatus = "writing"
	JobStatusExecuting  JobStatus = "executing"
	JobStatusExtracting JobStatus = "extracting"
	JobStatusMixing     JobStatus = "mixing"
	JobStatusReading    JobStatus = "reading"
	JobStatusDone       JobStatus = "done"
	JobStatusFailed     JobStatus = "failed"
)

// Settings contains user-selectable runtime configuration.
type Settings struct {
	FFmpegPath          string `json:"ffmpegPath" toml:"ffmpeg_path"`
	FFprobePath         string `json:"ffprobePath" toml:"ffprobe_path"`
	EngineDownloadURL   string `json:"engineDownloadUrl" toml:"engine_download_url"`
	CacheDir            string `json:"cacheDir" toml:"cache_dir"`
	WorkDir             string `json:"workDir" toml:"work_dir"`
	BackgroundTrackPath string `json:"backgroundTrackPath" toml:"background_track_path"`
	FontURL             string `json:"fontUrl" toml:"font_url"`
	OutputDir           string `json:"outputDir" toml:"output_dir"`
	LogLevel            string `json:"logLevel" toml:"log_level"`
	LogFormat           string `json:"logFormat" toml:"log_format"`
}

// Job stores one stage run and its lifecycle status.
type Job struct {
	ID        string    `json:"id"`
	Stage     Stage     `json:"stage"`
	Status    JobStatus `json:"status"`
	StartedAt time.Time `json:"startedAt,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// TimeWindow bounds the segment extracted from the source upload.
type TimeWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// MergeOptions selects the audio strategy and the encode geometry of a merge.
type MergeOptions struct {
	RetainOriginalAudio bool `json:"retainOriginalAudio"`
	VideoWidth          int  `json:"videoWidth"`
	VideoHeight         int  `json:"videoHeight"`
}

// MergeRequest carries the user inputs of one merge run. Preview must be the
// artifact of a completed preview stage.
type MergeRequest struct {
	StartSeconds        int       `json:"startSeconds" validate:"gte=0,lte=1000"`
	Preview             *Artifact `json:"preview" validate:"required"`
	RetainOriginalAudio bool      `json:"retainOriginalAudio"`
	Caption             string    `json:"caption,omitempty" validate:"max=120"`
}

// Artifact is a byte buffer produced by a stage and handed to the presenter.
type Artifact struct {
	JobID       string `json:"jobId"`
	Stage       Stage  `json:"stage"`
	MimeType    string `json:"mimeType"`
	Data        []byte `json:"-"`
	Source      []byte `json:"-"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
	SeekSeconds int    `json:"seekSeconds,omitempty"`
}

// Size returns the produced byte count.
func (a Artifact) Size() int {
	return len(a.Data)
}
