package export

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrCancelled is returned from a progress callback to stop a running export.
var ErrCancelled = errors.New("export cancelled")

type FramesRendered struct {
	RenderedCount int `json:"renderedCount"`
	TotalFrames   int `json:"totalFrames"`
}

// ProgressFunc receives render progress. Returning an error aborts the export
// and the renderer returns that error.
type ProgressFunc func(FramesRendered) error

type PreviewSettings struct {
	FPS            int        `json:"fps"`
	ResolutionBase Resolution `json:"resolution_base"`
	CompressionBPP float64    `json:"compression_bpp"`
}

func (s PreviewSettings) Validate() error {
	if s.FPS <= 0 {
		return fmt.Errorf("%w: fps must be positive", ErrInvalidSettings)
	}
	if s.CompressionBPP <= 0 {
		return fmt.Errorf("%w: compression_bpp must be positive", ErrInvalidSettings)
	}
	return s.ResolutionBase.Validate()
}

type PreviewResult struct {
	JPEGBase64        string  `json:"jpeg_base64"`
	EstimatedSizeMB   float64 `json:"estimated_size_mb"`
	ActualWidth       int     `json:"actual_width"`
	ActualHeight      int     `json:"actual_height"`
	FrameRenderTimeMS float64 `json:"frame_render_time_ms"`
	TotalFrames       int     `json:"total_frames"`
}

// Renderer is the external engine that turns a saved project into a video.
type Renderer interface {
	Export(ctx context.Context, projectPath string, settings Settings, onProgress ProgressFunc) (string, error)
	Preview(ctx context.Context, projectPath string, frameTime float64, settings PreviewSettings) (*PreviewResult, error)
}

// ProgressTracker forwards only forward progress and turns a cancel request
// into ErrCancelled on the next report.
type ProgressTracker struct {
	mu        sync.Mutex
	last      FramesRendered
	cancelled bool
	onUpdate  func(FramesRendered)
}

func NewProgressTracker(onUpdate func(FramesRendered)) *ProgressTracker {
	return &ProgressTracker{onUpdate: onUpdate}
}

// Report is a ProgressFunc.
func (p *ProgressTracker) Report(f FramesRendered) error {
	p.mu.Lock()
	if p.cancelled {
		p.mu.Unlock()
		return ErrCancelled
	}
	if f.RenderedCount < p.last.RenderedCount {
		p.mu.Unlock()
		return nil
	}
	if f.TotalFrames == 0 {
		f.TotalFrames = p.last.TotalFrames
	}
	p.last = f
	p.mu.Unlock()

	if p.onUpdate != nil {
		p.onUpdate(f)
	}
	return nil
}

func (p *ProgressTracker) Cancel() {
	p.mu.Lock()
	p.cancelled = true
	p.mu.Unlock()
}

func (p *ProgressTracker) Cancelled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancelled
}

func (p *ProgressTracker) Last() FramesRendered {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}
