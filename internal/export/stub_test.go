package export

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/heimdex/cutline/internal/timeline"
)

func saveProject(t *testing.T, name string, duration float64) string {
	t.Helper()
	recs := []timeline.SourceRecording{{Display: timeline.TrackMeta{Path: "/rec/display.mp4", Duration: duration}}}
	p := &timeline.Project{Name: name, Recordings: recs, Timeline: timeline.DefaultTimeline(recs)}
	path := filepath.Join(t.TempDir(), "project.json")
	if err := timeline.SaveProjectFile(path, p); err != nil {
		t.Fatalf("SaveProjectFile: %v", err)
	}
	return path
}

func TestStubRenderer_Export(t *testing.T) {
	outDir := t.TempDir()
	r := NewStubRenderer(outDir, nil)
	projectPath := saveProject(t, "Demo: take 1", 10)

	var reports []FramesRendered
	out, err := r.Export(context.Background(), projectPath, DefaultSettings(), func(f FramesRendered) error {
		reports = append(reports, f)
		return nil
	})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if out != filepath.Join(outDir, "Demo_ take 1.mp4") {
		t.Fatalf("output path = %q", out)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("output missing: %v", err)
	}
	if len(reports) != 11 {
		t.Fatalf("got %d progress reports, want 11", len(reports))
	}
	last := reports[len(reports)-1]
	if last.RenderedCount != 300 || last.TotalFrames != 300 {
		t.Fatalf("last report = %+v, want 300/300", last)
	}
}

func TestStubRenderer_ExportCancelRemovesOutput(t *testing.T) {
	outDir := t.TempDir()
	r := NewStubRenderer(outDir, nil)
	projectPath := saveProject(t, "cancel me", 10)

	tracker := NewProgressTracker(nil)
	calls := 0
	_, err := r.Export(context.Background(), projectPath, DefaultSettings(), func(f FramesRendered) error {
		calls++
		if calls == 3 {
			tracker.Cancel()
		}
		return tracker.Report(f)
	})
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("Export() error = %v, want ErrCancelled", err)
	}
	if _, statErr := os.Stat(filepath.Join(outDir, "cancel me.mp4")); !os.IsNotExist(statErr) {
		t.Fatalf("partial output left behind: %v", statErr)
	}
}

func TestStubRenderer_CancelledExportKeepsEarlierOutput(t *testing.T) {
	outDir := t.TempDir()
	r := NewStubRenderer(outDir, nil)
	projectPath := saveProject(t, "Demo", 10)

	first, err := r.Export(context.Background(), projectPath, DefaultSettings(), func(FramesRendered) error { return nil })
	if err != nil {
		t.Fatalf("first Export() error = %v", err)
	}
	want, err := os.ReadFile(first)
	if err != nil {
		t.Fatalf("read first output: %v", err)
	}

	tracker := NewProgressTracker(nil)
	calls := 0
	second, err := r.Export(context.Background(), projectPath, DefaultSettings(), func(f FramesRendered) error {
		calls++
		if calls == 2 {
			tracker.Cancel()
		}
		return tracker.Report(f)
	})
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("second Export() error = %v, want ErrCancelled", err)
	}
	if second != "" {
		t.Fatalf("cancelled export returned path %q", second)
	}

	got, err := os.ReadFile(first)
	if err != nil {
		t.Fatalf("first export lost: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("first export rewritten: %q", got)
	}
	if _, err := os.Stat(filepath.Join(outDir, "Demo (2).mp4")); !os.IsNotExist(err) {
		t.Fatalf("partial second output left behind: %v", err)
	}
}

func TestStubRenderer_RepeatedExportsGetDistinctFiles(t *testing.T) {
	outDir := t.TempDir()
	r := NewStubRenderer(outDir, nil)
	projectPath := saveProject(t, "Demo", 2)

	var outs []string
	for range 2 {
		out, err := r.Export(context.Background(), projectPath, DefaultSettings(), func(FramesRendered) error { return nil })
		if err != nil {
			t.Fatalf("Export() error = %v", err)
		}
		outs = append(outs, filepath.Base(out))
	}
	if outs[0] != "Demo.mp4" || outs[1] != "Demo (2).mp4" {
		t.Fatalf("outputs = %v", outs)
	}
}

func TestStubRenderer_ExportContextCancelled(t *testing.T) {
	r := NewStubRenderer(t.TempDir(), nil)
	projectPath := saveProject(t, "ctx", 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Export(ctx, projectPath, DefaultSettings(), func(FramesRendered) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Export() error = %v, want context.Canceled", err)
	}
}

func TestStubRenderer_ExportRejectsInvalidSettings(t *testing.T) {
	r := NewStubRenderer(t.TempDir(), nil)
	s := DefaultSettings()
	s.FPS = 0
	_, err := r.Export(context.Background(), saveProject(t, "x", 1), s, func(FramesRendered) error { return nil })
	if !errors.Is(err, ErrInvalidSettings) {
		t.Fatalf("Export() error = %v, want ErrInvalidSettings", err)
	}
}

func TestStubRenderer_Preview(t *testing.T) {
	r := NewStubRenderer(t.TempDir(), nil)
	projectPath := saveProject(t, "preview", 4)

	res, err := r.Preview(context.Background(), projectPath, 2, PreviewSettings{
		FPS:            30,
		ResolutionBase: Resolution{X: 64, Y: 36},
		CompressionBPP: 0.15,
	})
	if err != nil {
		t.Fatalf("Preview() error = %v", err)
	}
	if res.ActualWidth != 64 || res.ActualHeight != 36 || res.TotalFrames != 120 {
		t.Fatalf("Preview() = %+v", res)
	}

	raw, err := base64.StdEncoding.DecodeString(res.JPEGBase64)
	if err != nil {
		t.Fatalf("decode base64: %v", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("decode jpeg: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 64 || b.Dy() != 36 {
		t.Fatalf("jpeg bounds = %v", b)
	}
	if res.EstimatedSizeMB <= 0 {
		t.Fatalf("EstimatedSizeMB = %v, want > 0", res.EstimatedSizeMB)
	}
}

func TestStubRenderer_PreviewRejectsOversizedFrame(t *testing.T) {
	r := NewStubRenderer(t.TempDir(), nil)
	projectPath := saveProject(t, "preview", 4)

	for _, res := range []Resolution{{X: 1 << 40, Y: 1 << 40}, {X: MaxResolutionSide + 1, Y: 1080}, {X: 0, Y: 1080}} {
		_, err := r.Preview(context.Background(), projectPath, 1, PreviewSettings{FPS: 30, ResolutionBase: res, CompressionBPP: 0.15})
		if !errors.Is(err, ErrInvalidSettings) {
			t.Fatalf("Preview(%dx%d) error = %v, want ErrInvalidSettings", res.X, res.Y, err)
		}
	}
}
