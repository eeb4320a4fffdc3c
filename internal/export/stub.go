package export

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"log/slog"
	"os"
	"time"

	"github.com/heimdex/cutline/internal/timeline"
)

const stubFramesPerReport = 30

// StubRenderer stands in for the render engine when none is installed. It
// writes a placeholder file and reports frame progress the way a real
// renderer would.
type StubRenderer struct {
	outputDir string
	logger    *slog.Logger
}

func NewStubRenderer(outputDir string, logger *slog.Logger) *StubRenderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &StubRenderer{outputDir: outputDir, logger: logger}
}

func (r *StubRenderer) Export(ctx context.Context, projectPath string, settings Settings, onProgress ProgressFunc) (string, error) {
	if err := settings.Validate(); err != nil {
		return "", err
	}
	p, err := timeline.LoadProjectFile(projectPath)
	if err != nil {
		return "", err
	}

	total := TotalFrames(p.Timeline.Duration(), settings.FPS)
	if err := os.MkdirAll(r.outputDir, 0755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	f, err := CreateOutputFile(r.outputDir, p.Name, "export", settings.Extension())
	if err != nil {
		return "", err
	}
	outPath := f.Name()

	r.logger.Info("renderer stub: export requested (no render engine installed)",
		"format", settings.Format, "frames", total, "output", outPath)
	abort := func(err error) (string, error) {
		f.Close()
		os.Remove(outPath)
		return "", err
	}

	if err := onProgress(FramesRendered{RenderedCount: 0, TotalFrames: total}); err != nil {
		return abort(err)
	}
	for rendered := 0; rendered < total; {
		if err := ctx.Err(); err != nil {
			return abort(err)
		}
		rendered = min(total, rendered+stubFramesPerReport)
		if _, err := fmt.Fprintf(f, "frame %d/%d\n", rendered, total); err != nil {
			return abort(fmt.Errorf("write output: %w", err))
		}
		if err := onProgress(FramesRendered{RenderedCount: rendered, TotalFrames: total}); err != nil {
			return abort(err)
		}
	}

	if err := f.Close(); err != nil {
		os.Remove(outPath)
		return "", fmt.Errorf("close output: %w", err)
	}
	return outPath, nil
}

func (r *StubRenderer) Preview(ctx context.Context, projectPath string, frameTime float64, settings PreviewSettings) (*PreviewResult, error) {
	start := time.Now()
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	p, err := timeline.LoadProjectFile(projectPath)
	if err != nil {
		return nil, err
	}
	w, h := settings.ResolutionBase.X, settings.ResolutionBase.Y

	// Shade the frame by its position in the timeline.
	duration := p.Timeline.Duration()
	shade := uint8(0)
	if duration > 0 {
		shade = uint8(255 * min(1, max(0, frameTime/duration)))
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	fill := color.RGBA{R: shade, G: shade, B: shade, A: 255}
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = fill.R, fill.G, fill.B, fill.A
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: BPPToJPEGQuality(settings.CompressionBPP)}); err != nil {
		return nil, fmt.Errorf("encode preview: %w", err)
	}

	return &PreviewResult{
		JPEGBase64:        base64.StdEncoding.EncodeToString(buf.Bytes()),
		EstimatedSizeMB:   mp4SizeMB(settings.ResolutionBase.Pixels(), settings.CompressionBPP, float64(settings.FPS), duration),
		ActualWidth:       w,
		ActualHeight:      h,
		FrameRenderTimeMS: float64(time.Since(start).Microseconds()) / 1000,
		TotalFrames:       TotalFrames(duration, settings.FPS),
	}, nil
}
