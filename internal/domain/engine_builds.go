package domain

// EngineBuild describes one downloadable static ffmpeg build.
type EngineBuild struct {
	ID         string `json:"id"`
	OS         string `json:"os"`
	Arch       string `json:"arch"`
	URL        string `json:"url"`
	BinaryName string `json:"binaryName"`
	SizeLabel  string `json:"sizeLabel,omitempty"`
	Downloaded bool   `json:"downloaded"`
	LocalPath  string `json:"localPath,omitempty"`
}

// EngineState is the lifecycle position of the session engine.
type EngineState string

const (
	EngineStateUninitialized EngineState = "uninitialized"
	EngineStateDownloading   EngineState = "downloading"
	EngineStateReady         EngineState = "ready"
	EngineStateFailed        EngineState = "failed"
)

// EngineStatus is a snapshot of the engine handle.
type EngineStatus struct {
	State            EngineState `json:"state"`
	Ready            bool        `json:"ready"`
	Busy             bool        `json:"busy"`
	DownloadProgress float64     `json:"downloadProgress"`
	ExecProgress     float64     `json:"execProgress"`
	BinaryPath       string      `json:"binaryPath,omitempty"`
	Error            string      `json:"error,omitempty"`
}
