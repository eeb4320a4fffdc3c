package project

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/heimdex/cutline/internal/cloud"
	"github.com/heimdex/cutline/internal/export"
	"github.com/heimdex/cutline/internal/render"
)

// loopingRenderer reports progress until the callback refuses it.
type loopingRenderer struct {
	started chan struct{}
}

func (l *loopingRenderer) Export(ctx context.Context, projectPath string, settings export.Settings, onProgress export.ProgressFunc) (string, error) {
	close(l.started)
	for i := 0; ; i++ {
		if err := onProgress(export.FramesRendered{RenderedCount: i, TotalFrames: 1_000_000}); err != nil {
			return "", err
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func (l *loopingRenderer) Preview(ctx context.Context, projectPath string, frameTime float64, settings export.PreviewSettings) (*export.PreviewResult, error) {
	return nil, errors.New("not implemented")
}

type fakeDoctor struct {
	caps *render.Capabilities
}

func (f *fakeDoctor) RunDoctor(ctx context.Context) (*render.Capabilities, error) {
	return f.caps, nil
}

type rejectingUploader struct{}

func (rejectingUploader) UploadExportedVideo(ctx context.Context, req cloud.UploadRequest, onProgress cloud.ProgressFunc) (*cloud.UploadResult, error) {
	return &cloud.UploadResult{Status: cloud.UploadNotAuthenticated}, nil
}

func queueExport(t *testing.T, env *testEnv, settings export.Settings) *Job {
	t.Helper()
	rec := createProject(t, env, 2)
	job, err := env.svc.StartExport(context.Background(), rec.ID, settings)
	if err != nil {
		t.Fatalf("StartExport: %v", err)
	}
	return job
}

func TestRunner_CompletesExport(t *testing.T) {
	env := setupService(t)
	job := queueExport(t, env, export.DefaultSettings())
	outDir := filepath.Join(env.dir, "exports")

	runner := NewRunner(env.repo, export.NewStubRenderer(outDir, nil), nil, nil, nil)
	runner.processNextJob(context.Background())

	got, err := env.repo.GetJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Status != JobStatusCompleted {
		t.Fatalf("status = %q (error %q), want completed", got.Status, got.Error)
	}
	if got.RenderedFrames != 60 || got.TotalFrames != 60 || got.Progress() != 100 {
		t.Fatalf("progress = %d/%d", got.RenderedFrames, got.TotalFrames)
	}
	if got.OutputPath != filepath.Join(outDir, "Demo.mp4") {
		t.Fatalf("output path = %q", got.OutputPath)
	}
	if _, err := os.Stat(got.OutputPath); err != nil {
		t.Fatalf("output missing: %v", err)
	}
	if _, err := os.Stat(filepath.Dir(job.SnapshotPath)); !os.IsNotExist(err) {
		t.Fatalf("snapshot dir still present: %v", err)
	}
	if runner.ActiveJobCount() != 0 {
		t.Fatalf("active jobs = %d, want 0", runner.ActiveJobCount())
	}
}

// stopAfter wraps a renderer and refuses progress after n reports.
type stopAfter struct {
	export.Renderer
	n int
}

func (s stopAfter) Export(ctx context.Context, projectPath string, settings export.Settings, onProgress export.ProgressFunc) (string, error) {
	calls := 0
	return s.Renderer.Export(ctx, projectPath, settings, func(f export.FramesRendered) error {
		calls++
		if calls > s.n {
			return export.ErrCancelled
		}
		return onProgress(f)
	})
}

func TestRunner_CancelledReexportKeepsCompletedOutput(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()
	first := queueExport(t, env, export.DefaultSettings())
	second, err := env.svc.StartExport(ctx, first.ProjectID, export.DefaultSettings())
	if err != nil {
		t.Fatalf("StartExport: %v", err)
	}
	stub := export.NewStubRenderer(filepath.Join(env.dir, "exports"), nil)

	NewRunner(env.repo, stub, nil, nil, nil).processNextJob(ctx)
	done, _ := env.repo.GetJob(ctx, first.ID)
	if done.Status != JobStatusCompleted {
		t.Fatalf("first status = %q (error %q), want completed", done.Status, done.Error)
	}
	want, err := os.ReadFile(done.OutputPath)
	if err != nil {
		t.Fatalf("read first output: %v", err)
	}

	NewRunner(env.repo, stopAfter{Renderer: stub, n: 2}, nil, nil, nil).processNextJob(ctx)
	cancelled, _ := env.repo.GetJob(ctx, second.ID)
	if cancelled.Status != JobStatusCancelled {
		t.Fatalf("second status = %q, want cancelled", cancelled.Status)
	}

	got, err := os.ReadFile(done.OutputPath)
	if err != nil {
		t.Fatalf("completed output removed: %v", err)
	}
	if string(got) != string(want) {
		t.Fatalf("completed output rewritten: %q", got)
	}
}

func TestRunner_NoPendingJobs(t *testing.T) {
	env := setupService(t)
	runner := NewRunner(env.repo, export.NewStubRenderer(t.TempDir(), nil), nil, nil, nil)
	runner.processNextJob(context.Background())
}

func TestRunner_CancelPending(t *testing.T) {
	env := setupService(t)
	job := queueExport(t, env, export.DefaultSettings())
	runner := NewRunner(env.repo, export.NewStubRenderer(t.TempDir(), nil), nil, nil, nil)
	ctx := context.Background()

	got, err := runner.Cancel(ctx, job.ID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if got.Status != JobStatusCancelled {
		t.Fatalf("status = %q, want cancelled", got.Status)
	}
	if _, err := os.Stat(filepath.Dir(job.SnapshotPath)); !os.IsNotExist(err) {
		t.Fatalf("snapshot dir still present: %v", err)
	}

	// The runner never picks it up.
	runner.processNextJob(ctx)
	stored, _ := env.repo.GetJob(ctx, job.ID)
	if stored.Status != JobStatusCancelled {
		t.Fatalf("stored status = %q, want cancelled", stored.Status)
	}

	if _, err := runner.Cancel(ctx, job.ID); !errors.Is(err, ErrJobFinished) {
		t.Fatalf("second cancel error = %v, want ErrJobFinished", err)
	}
	if _, err := runner.Cancel(ctx, "missing"); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("unknown job error = %v, want ErrJobNotFound", err)
	}
}

func TestRunner_CancelRunning(t *testing.T) {
	env := setupService(t)
	job := queueExport(t, env, export.DefaultSettings())
	renderer := &loopingRenderer{started: make(chan struct{})}
	runner := NewRunner(env.repo, renderer, nil, nil, nil)
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		runner.processNextJob(ctx)
		close(done)
	}()

	select {
	case <-renderer.started:
	case <-time.After(5 * time.Second):
		t.Fatal("export did not start")
	}
	if runner.ActiveJobCount() != 1 {
		t.Fatalf("active jobs = %d, want 1", runner.ActiveJobCount())
	}

	got, err := runner.Cancel(ctx, job.ID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if got.Status != JobStatusRunning {
		t.Fatalf("status at cancel = %q, want running", got.Status)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("export did not stop after cancel")
	}

	stored, _ := env.repo.GetJob(ctx, job.ID)
	if stored.Status != JobStatusCancelled {
		t.Fatalf("final status = %q, want cancelled", stored.Status)
	}
}

func TestRunner_ShutdownFailsJob(t *testing.T) {
	env := setupService(t)
	job := queueExport(t, env, export.DefaultSettings())
	renderer := &loopingRenderer{started: make(chan struct{})}
	runner := NewRunner(env.repo, renderer, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		runner.processNextJob(ctx)
		close(done)
	}()
	<-renderer.started
	cancel()
	<-done

	stored, _ := env.repo.GetJob(context.Background(), job.ID)
	if stored.Status != JobStatusFailed || stored.Error != "interrupted by shutdown" {
		t.Fatalf("job = %q %q, want failed by shutdown", stored.Status, stored.Error)
	}
}

func TestRunner_UnsupportedFormat(t *testing.T) {
	env := setupService(t)
	settings := export.DefaultSettings()
	settings.Format = export.FormatGIF
	job := queueExport(t, env, settings)

	doctor := render.NewCachedDoctor(&fakeDoctor{caps: &render.Capabilities{HasMP4: true}}, nil)
	runner := NewRunner(env.repo, export.NewStubRenderer(t.TempDir(), nil), doctor, nil, nil)
	runner.processNextJob(context.Background())

	stored, _ := env.repo.GetJob(context.Background(), job.ID)
	if stored.Status != JobStatusFailed || !strings.Contains(stored.Error, "cannot encode") {
		t.Fatalf("job = %q %q, want failed for unsupported format", stored.Status, stored.Error)
	}
}

func TestRunner_NoRenderer(t *testing.T) {
	env := setupService(t)
	job := queueExport(t, env, export.DefaultSettings())
	runner := NewRunner(env.repo, nil, nil, nil, nil)
	runner.processNextJob(context.Background())

	stored, _ := env.repo.GetJob(context.Background(), job.ID)
	if stored.Status != JobStatusFailed {
		t.Fatalf("status = %q, want failed", stored.Status)
	}
}

func TestRunner_Upload(t *testing.T) {
	env := setupService(t)
	job := queueExport(t, env, export.DefaultSettings())
	runner := NewRunner(env.repo, export.NewStubRenderer(t.TempDir(), nil), nil, cloud.NewStubClient(nil), nil)
	runner.processNextJob(context.Background())

	stored, _ := env.repo.GetJob(context.Background(), job.ID)
	if stored.Status != JobStatusCompleted {
		t.Fatalf("status = %q, want completed", stored.Status)
	}
	if !strings.HasPrefix(stored.UploadURL, "file://") || !strings.HasSuffix(stored.UploadURL, "Demo.mp4") {
		t.Fatalf("upload url = %q", stored.UploadURL)
	}
}

func TestRunner_UploadRejected(t *testing.T) {
	env := setupService(t)
	job := queueExport(t, env, export.DefaultSettings())
	runner := NewRunner(env.repo, export.NewStubRenderer(t.TempDir(), nil), nil, rejectingUploader{}, nil)
	runner.processNextJob(context.Background())

	stored, _ := env.repo.GetJob(context.Background(), job.ID)
	if stored.Status != JobStatusCompleted {
		t.Fatalf("status = %q, want completed", stored.Status)
	}
	if stored.UploadURL != "" || !strings.Contains(stored.Error, "not_authenticated") {
		t.Fatalf("job = %+v, want upload error recorded", stored)
	}
	if stored.OutputPath == "" {
		t.Fatal("output path should survive a failed upload")
	}
}

func TestRunner_PauseResume(t *testing.T) {
	runner := NewRunner(nil, nil, nil, nil, nil)
	if runner.IsPaused() {
		t.Fatal("new runner should not be paused")
	}
	runner.Pause()
	if !runner.IsPaused() {
		t.Fatal("runner should be paused")
	}
	runner.Resume()
	if runner.IsPaused() {
		t.Fatal("runner should be resumed")
	}
}

func TestRunner_StartStops(t *testing.T) {
	env := setupService(t)
	job := queueExport(t, env, export.DefaultSettings())
	runner := NewRunner(env.repo, export.NewStubRenderer(t.TempDir(), nil), nil, nil, nil)
	runner.SetPollInterval(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		runner.Start(ctx)
		close(done)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for {
		stored, _ := env.repo.GetJob(context.Background(), job.ID)
		if stored.Status == JobStatusCompleted {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job not completed, status %q", stored.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	<-done
	if runner.IsRunning() {
		t.Fatal("runner should have stopped")
	}
}
