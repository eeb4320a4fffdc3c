// Package render drives the external render engine binary as a subprocess:
// export, single-frame preview, and a doctor probe of what it can encode.
package render

import "time"

// Capabilities is what the installed render engine reports from
// `doctor --json`.
type Capabilities struct {
	EngineVersion string             `json:"engine_version"`
	Encoders      map[string]DepInfo `json:"encoders"`
	Executables   map[string]DepInfo `json:"executables"`
	GPU           GPUInfo            `json:"gpu"`

	HasMP4   bool      `json:"-"`
	HasGIF   bool      `json:"-"`
	ProbedAt time.Time `json:"-"`
}

type DepInfo struct {
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
	Path      string `json:"path,omitempty"`
	Error     string `json:"error,omitempty"`
}

type GPUInfo struct {
	HardwareEncoding bool   `json:"hardware_encoding"`
	Device           string `json:"device,omitempty"`
	Error            string `json:"error,omitempty"`
}

// RunResult is the outcome of one engine subprocess.
type RunResult struct {
	ExitCode   int           `json:"exit_code"`
	OutputPath string        `json:"output_path,omitempty"`
	StderrTail string        `json:"stderr_tail,omitempty"` // last N bytes of stderr
	Duration   time.Duration `json:"duration"`
}

func (r RunResult) IsSuccess() bool { return r.ExitCode == 0 }

// progressLine is one line the engine prints on stdout while exporting.
type progressLine struct {
	RenderedCount *int `json:"renderedCount"`
	TotalFrames   int  `json:"totalFrames"`
}
