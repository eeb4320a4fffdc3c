package project

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/heimdex/cutline/internal/db"
	"github.com/heimdex/cutline/internal/export"
	"github.com/heimdex/cutline/internal/media"
	"github.com/heimdex/cutline/internal/timeline"
)

type testEnv struct {
	dir  string
	repo *SQLiteRepository
	svc  *Service
}

func setupService(t *testing.T) *testEnv {
	t.Helper()

	tmpDir := t.TempDir()
	database, err := db.New(filepath.Join(tmpDir, "test.db"), nil)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	repo := NewRepository(database.Conn())
	prober := media.NewStubProber(nil, map[string]float64{
		"/rec/a/display.mp4": 8,
		"/rec/a/camera.mp4":  8.5,
	})
	svc := NewService(repo, prober, timeline.DefaultOptions(), filepath.Join(tmpDir, "snapshots"), nil)
	return &testEnv{dir: tmpDir, repo: repo, svc: svc}
}

func recording(path string, duration float64) timeline.SourceRecording {
	return timeline.SourceRecording{Display: timeline.TrackMeta{Path: path, Duration: duration}}
}

func createProject(t *testing.T, env *testEnv, durations ...float64) *Record {
	t.Helper()
	var recs []timeline.SourceRecording
	for i, d := range durations {
		recs = append(recs, recording(filepath.Join("/rec", string(rune('a'+i)), "display.mp4"), d))
	}
	rec, err := env.svc.CreateProject(context.Background(), "Demo", recs)
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	return rec
}

func TestService_CreateProject(t *testing.T) {
	env := setupService(t)
	rec := createProject(t, env, 10, 5)

	got, err := env.svc.GetProject(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	if got.Name != "Demo" || len(got.Document.Timeline.Segments) != 2 {
		t.Fatalf("project = %+v", got)
	}
	if got.Document.Timeline.Duration() != 15 {
		t.Fatalf("timeline duration = %v, want 15", got.Document.Timeline.Duration())
	}
}

func TestService_CreateProject_Invalid(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	if _, err := env.svc.CreateProject(ctx, "  ", nil); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("blank name error = %v, want ErrInvalidName", err)
	}
	if _, err := env.svc.CreateProject(ctx, "x", []timeline.SourceRecording{{}}); !errors.Is(err, timeline.ErrEmptyRecording) {
		t.Fatalf("empty recording error = %v, want ErrEmptyRecording", err)
	}
}

func TestService_WithStore_AutoSaves(t *testing.T) {
	env := setupService(t)
	rec := createProject(t, env, 20)
	ctx := context.Background()

	err := env.svc.WithStore(ctx, rec.ID, func(st *timeline.Store) error {
		_, err := st.Place(timeline.TrackCaption, 7)
		return err
	})
	if err != nil {
		t.Fatalf("WithStore: %v", err)
	}

	stored, _ := env.repo.GetProject(ctx, rec.ID)
	if len(stored.Document.Timeline.CaptionSegments) != 1 {
		t.Fatalf("caption not persisted: %+v", stored.Document.Timeline)
	}
	if stored.Revision != 1 {
		t.Fatalf("revision = %d, want 1", stored.Revision)
	}

	// Selection changes are not part of the document.
	env.svc.WithStore(ctx, rec.ID, func(st *timeline.Store) error {
		st.Select(timeline.TrackCaption, 0, timeline.Modifiers{})
		return nil
	})
	stored, _ = env.repo.GetProject(ctx, rec.ID)
	if stored.Revision != 1 {
		t.Fatalf("revision after selection = %d, want 1", stored.Revision)
	}

	// Undo is a history change and is saved.
	env.svc.WithStore(ctx, rec.ID, func(st *timeline.Store) error {
		st.Undo()
		return nil
	})
	stored, _ = env.repo.GetProject(ctx, rec.ID)
	if len(stored.Document.Timeline.CaptionSegments) != 0 || stored.Revision != 2 {
		t.Fatalf("undo not persisted: revision %d, captions %d", stored.Revision, len(stored.Document.Timeline.CaptionSegments))
	}
}

func TestService_WithStore_NotFound(t *testing.T) {
	env := setupService(t)
	err := env.svc.WithStore(context.Background(), "missing", func(*timeline.Store) error { return nil })
	if !errors.Is(err, ErrProjectNotFound) {
		t.Fatalf("error = %v, want ErrProjectNotFound", err)
	}
}

func TestService_ImportRecording(t *testing.T) {
	env := setupService(t)
	rec := createProject(t, env, 10)
	ctx := context.Background()

	idx, err := env.svc.ImportRecording(ctx, rec.ID, media.RecordingFiles{
		Display: "/rec/a/display.mp4",
		Camera:  "/rec/a/camera.mp4",
	})
	if err != nil {
		t.Fatalf("ImportRecording: %v", err)
	}
	if idx != 1 {
		t.Fatalf("recording index = %d, want 1", idx)
	}

	got, _ := env.svc.GetProject(ctx, rec.ID)
	if len(got.Document.Recordings) != 2 || got.Document.Timeline.Duration() != 18.5 {
		t.Fatalf("document = %+v", got.Document)
	}

	if _, err := env.svc.ImportRecording(ctx, rec.ID, media.RecordingFiles{Display: "/unknown.mp4"}); !errors.Is(err, media.ErrProbeUnavailable) {
		t.Fatalf("unknown file error = %v, want ErrProbeUnavailable", err)
	}
}

func TestService_DeleteProject(t *testing.T) {
	env := setupService(t)
	rec := createProject(t, env, 10)
	ctx := context.Background()

	env.svc.WithStore(ctx, rec.ID, func(*timeline.Store) error { return nil })
	if err := env.svc.DeleteProject(ctx, rec.ID); err != nil {
		t.Fatalf("DeleteProject: %v", err)
	}
	if _, err := env.svc.GetProject(ctx, rec.ID); !errors.Is(err, ErrProjectNotFound) {
		t.Fatalf("GetProject after delete error = %v", err)
	}
	if err := env.svc.WithStore(ctx, rec.ID, func(*timeline.Store) error { return nil }); !errors.Is(err, ErrProjectNotFound) {
		t.Fatalf("session survived delete: %v", err)
	}
	if err := env.svc.DeleteProject(ctx, rec.ID); !errors.Is(err, ErrProjectNotFound) {
		t.Fatalf("second delete error = %v", err)
	}
}

func TestService_DeleteProject_WaitsForInFlightEdit(t *testing.T) {
	env := setupService(t)
	rec := createProject(t, env, 10)
	ctx := context.Background()

	entered := make(chan struct{})
	release := make(chan struct{})
	editErr := make(chan error, 1)
	go func() {
		editErr <- env.svc.WithStore(ctx, rec.ID, func(st *timeline.Store) error {
			if _, err := st.Place(timeline.TrackCaption, 5); err != nil {
				return err
			}
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	env.svc.mu.Lock()
	sess := env.svc.sessions[rec.ID]
	env.svc.mu.Unlock()

	deleteErr := make(chan error, 1)
	go func() { deleteErr <- env.svc.DeleteProject(ctx, rec.ID) }()
	select {
	case err := <-deleteErr:
		t.Fatalf("DeleteProject returned during an edit: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	if err := <-editErr; err != nil {
		t.Fatalf("in-flight edit: %v", err)
	}
	if err := <-deleteErr; err != nil {
		t.Fatalf("DeleteProject: %v", err)
	}

	stored, err := env.repo.GetProject(ctx, rec.ID)
	if err != nil || stored != nil {
		t.Fatalf("project row after delete = %+v, %v", stored, err)
	}
	if !sess.closed {
		t.Fatal("deleted project's session still open")
	}
	err = env.svc.WithStore(ctx, rec.ID, func(st *timeline.Store) error {
		_, err := st.Place(timeline.TrackCaption, 8)
		return err
	})
	if !errors.Is(err, ErrProjectNotFound) {
		t.Fatalf("edit after delete error = %v, want ErrProjectNotFound", err)
	}
	if stored, _ := env.repo.GetProject(ctx, rec.ID); stored != nil {
		t.Fatal("edit after delete recreated the project")
	}
}

func TestService_ExportEDL(t *testing.T) {
	env := setupService(t)
	rec, err := env.svc.CreateProject(context.Background(), "Launch cut", []timeline.SourceRecording{
		recording("/rec/a/display.mp4", 4),
		recording("", 2),
	})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	outDir := t.TempDir()

	resp, err := env.svc.ExportEDL(context.Background(), rec.ID, export.EDLRequest{OutputDir: outDir, FrameRate: 25})
	if err != nil {
		t.Fatalf("ExportEDL: %v", err)
	}
	if resp.ClipCount != 2 || len(resp.MissingMedia) != 1 || resp.MissingMedia[0] != "Clip 2" {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.OutputPath != filepath.Join(outDir, "Launch cut.edl") {
		t.Fatalf("output path = %q", resp.OutputPath)
	}
	data, err := os.ReadFile(resp.OutputPath)
	if err != nil {
		t.Fatalf("read edl: %v", err)
	}
	if !strings.Contains(string(data), "TITLE: Launch cut") || !strings.Contains(string(data), "002  AX") {
		t.Fatalf("edl = %s", data)
	}

	if _, err := env.svc.ExportEDL(context.Background(), rec.ID, export.EDLRequest{OutputDir: "/tmp/../etc"}); !errors.Is(err, export.ErrInvalidOutputDir) {
		t.Fatalf("traversal error = %v, want ErrInvalidOutputDir", err)
	}
}

func TestService_Estimate(t *testing.T) {
	env := setupService(t)
	rec := createProject(t, env, 10)

	est, err := env.svc.Estimate(context.Background(), rec.ID, export.DefaultSettings())
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if est.DurationSeconds != 10 || est.EstimatedSizeMB <= 0 {
		t.Fatalf("estimate = %+v", est)
	}

	bad := export.DefaultSettings()
	bad.FPS = 0
	if _, err := env.svc.Estimate(context.Background(), rec.ID, bad); !errors.Is(err, export.ErrInvalidSettings) {
		t.Fatalf("error = %v, want ErrInvalidSettings", err)
	}
}

func TestService_StartExport_WritesSnapshot(t *testing.T) {
	env := setupService(t)
	rec := createProject(t, env, 10, 5)
	ctx := context.Background()

	job, err := env.svc.StartExport(ctx, rec.ID, export.DefaultSettings())
	if err != nil {
		t.Fatalf("StartExport: %v", err)
	}
	if job.Status != JobStatusPending || job.TotalFrames != 450 {
		t.Fatalf("job = %+v", job)
	}

	// Later edits do not reach the queued export.
	if err := env.svc.WithStore(ctx, rec.ID, func(st *timeline.Store) error {
		return st.Delete(timeline.TrackClip, 0)
	}); err != nil {
		t.Fatalf("delete clip: %v", err)
	}

	snap, err := timeline.LoadProjectFile(job.SnapshotPath)
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	if len(snap.Timeline.Segments) != 2 {
		t.Fatalf("snapshot segments = %d, want 2", len(snap.Timeline.Segments))
	}

	stored, err := env.svc.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if stored.Settings.Compression != export.CompressionSocial || stored.SnapshotPath != job.SnapshotPath {
		t.Fatalf("stored job = %+v", stored)
	}
}

func TestService_GetJob_NotFound(t *testing.T) {
	env := setupService(t)
	if _, err := env.svc.GetJob(context.Background(), "nope"); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("error = %v, want ErrJobNotFound", err)
	}
}

func TestService_Preview(t *testing.T) {
	env := setupService(t)
	rec := createProject(t, env, 4)
	ctx := context.Background()
	settings := export.PreviewSettings{FPS: 30, ResolutionBase: export.Resolution{X: 32, Y: 18}, CompressionBPP: 0.15}

	res, err := env.svc.Preview(ctx, rec.ID, export.NewStubRenderer(t.TempDir(), nil), 2, settings)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if res.JPEGBase64 == "" || res.ActualWidth != 32 || res.TotalFrames != 120 {
		t.Fatalf("preview = %+v", res)
	}

	entries, _ := os.ReadDir(filepath.Join(env.dir, "snapshots"))
	if len(entries) != 0 {
		t.Fatalf("preview left %d entries behind", len(entries))
	}

	if _, err := env.svc.Preview(ctx, rec.ID, nil, 0, settings); !errors.Is(err, ErrNoRenderer) {
		t.Fatalf("nil renderer error = %v, want ErrNoRenderer", err)
	}
}
