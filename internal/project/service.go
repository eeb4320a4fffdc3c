// Package project stores editor projects in SQLite, serialises edits to each
// open project, and runs export jobs against the render engine.
package project

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/heimdex/cutline/internal/export"
	"github.com/heimdex/cutline/internal/logging"
	"github.com/heimdex/cutline/internal/media"
	"github.com/heimdex/cutline/internal/timeline"
)

var (
	ErrProjectNotFound = errors.New("project not found")
	ErrJobNotFound     = errors.New("job not found")
	ErrJobFinished     = errors.New("job already finished")
	ErrInvalidName     = errors.New("project name is required")
	ErrNoRenderer      = errors.New("render engine not configured")
)

// session is one open project. Every read and edit of its store happens
// under mu. A closed session belongs to a deleted project and is never saved.
type session struct {
	mu     sync.Mutex
	store  *timeline.Store
	dirty  bool
	closed bool
}

type Service struct {
	repo        Repository
	prober      media.Prober
	opts        timeline.Options
	snapshotDir string
	logger      *slog.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

// NewService wires the project service. snapshotDir receives the frozen
// project files export jobs render from.
func NewService(repo Repository, prober media.Prober, opts timeline.Options, snapshotDir string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{
		repo:        repo,
		prober:      prober,
		opts:        opts,
		snapshotDir: snapshotDir,
		logger:      logging.WithComponent(logger, "project"),
		sessions:    make(map[string]*session),
	}
}

func (s *Service) CreateProject(ctx context.Context, name string, recordings []timeline.SourceRecording) (*Record, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidName
	}
	for i, r := range recordings {
		if r.Duration() <= 0 {
			return nil, fmt.Errorf("recording %d: %w", i, timeline.ErrEmptyRecording)
		}
	}

	doc := &timeline.Project{
		Name:       name,
		Recordings: recordings,
		Timeline:   timeline.DefaultTimeline(recordings),
	}
	now := time.Now().UTC()
	rec := &Record{
		ID:        NewID(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
		Document:  doc,
	}
	if err := s.repo.CreateProject(ctx, rec); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}

	s.logger.Info("project created", "project_id", rec.ID, "recordings", len(recordings))
	return rec, nil
}

// ProbeRecording builds a recording from files on disk.
func (s *Service) ProbeRecording(ctx context.Context, files media.RecordingFiles) (timeline.SourceRecording, error) {
	if s.prober == nil {
		return timeline.SourceRecording{}, media.ErrProbeUnavailable
	}
	return media.BuildRecording(ctx, s.prober, files)
}

// ImportRecording probes files and appends the recording to the project as a
// new clip at the end of the timeline.
func (s *Service) ImportRecording(ctx context.Context, id string, files media.RecordingFiles) (int, error) {
	rec, err := s.ProbeRecording(ctx, files)
	if err != nil {
		return 0, err
	}
	var idx int
	err = s.WithStore(ctx, id, func(st *timeline.Store) error {
		idx, err = st.AddRecording(rec)
		return err
	})
	return idx, err
}

func (s *Service) GetProject(ctx context.Context, id string) (*Record, error) {
	rec, err := s.repo.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrProjectNotFound
	}
	return rec, nil
}

func (s *Service) ListProjects(ctx context.Context) ([]*Record, error) {
	return s.repo.ListProjects(ctx)
}

func (s *Service) CountProjects(ctx context.Context) (int, error) {
	return s.repo.CountProjects(ctx)
}

func (s *Service) DeleteProject(ctx context.Context, id string) error {
	if _, err := s.GetProject(ctx, id); err != nil {
		return err
	}

	// Wait out any edit in flight so it cannot save after the row is gone.
	s.mu.Lock()
	sess := s.sessions[id]
	s.mu.Unlock()
	if sess != nil {
		sess.mu.Lock()
		defer sess.mu.Unlock()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.repo.DeleteProject(ctx, id); err != nil {
		return err
	}
	if sess != nil {
		sess.closed = true
	}
	delete(s.sessions, id)
	s.logger.Info("project deleted", "project_id", id)
	return nil
}

// WithStore runs fn against the project's editor store while holding the
// project's lock. Segment and history changes made by fn are saved before
// WithStore returns.
func (s *Service) WithStore(ctx context.Context, id string, fn func(*timeline.Store) error) error {
	sess, err := s.session(ctx, id)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return ErrProjectNotFound
	}

	fnErr := fn(sess.store)
	if sess.dirty {
		if _, err := s.repo.SaveDocument(ctx, id, sess.store.Project()); err != nil {
			s.logger.Error("auto-save failed", "project_id", id, "error", err)
			return errors.Join(fnErr, fmt.Errorf("save project: %w", err))
		}
		sess.dirty = false
	}
	return fnErr
}

func (s *Service) session(ctx context.Context, id string) (*session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[id]; ok {
		return sess, nil
	}

	rec, err := s.repo.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrProjectNotFound
	}

	sess := &session{store: timeline.NewStore(rec.Document, s.opts)}
	sess.store.Subscribe(func(c timeline.Change) {
		if c.Kind == timeline.ChangeSegments || c.Kind == timeline.ChangeHistory {
			sess.dirty = true
		}
	})
	s.sessions[id] = sess
	s.logger.Debug("project session opened", "project_id", id)
	return sess, nil
}

// Estimate predicts the size and render time of exporting the project.
func (s *Service) Estimate(ctx context.Context, id string, settings export.Settings) (export.Estimates, error) {
	if err := settings.Validate(); err != nil {
		return export.Estimates{}, err
	}
	var est export.Estimates
	err := s.WithStore(ctx, id, func(st *timeline.Store) error {
		est = export.Estimate(st.Project().Timeline.Duration(), settings)
		return nil
	})
	return est, err
}

// ExportEDL writes the clip track as a CMX3600 EDL into req.OutputDir.
func (s *Service) ExportEDL(ctx context.Context, id string, req export.EDLRequest) (*export.EDLResponse, error) {
	if err := export.ValidateOutputDir(req.OutputDir); err != nil {
		return nil, err
	}

	var (
		clips []export.ResolvedClip
		name  string
	)
	err := s.WithStore(ctx, id, func(st *timeline.Store) error {
		clips = export.ResolveClips(st.Project())
		name = st.Project().Name
		return nil
	})
	if err != nil {
		return nil, err
	}

	title := req.Title
	if title == "" {
		title = name
	}
	frameRate := req.FrameRate
	if frameRate <= 0 {
		frameRate = 30
	}

	outPath := filepath.Join(req.OutputDir, export.OutputFileName(title, "timeline", ".edl"))
	if err := os.WriteFile(outPath, []byte(export.GenerateEDL(clips, title, frameRate)), 0644); err != nil {
		return nil, fmt.Errorf("write edl: %w", err)
	}

	resp := &export.EDLResponse{
		Status:       "ok",
		Format:       "cmx3600",
		OutputPath:   outPath,
		ClipCount:    len(clips),
		MissingMedia: []string{},
	}
	for _, c := range clips {
		if c.MediaPath == "" {
			resp.MissingMedia = append(resp.MissingMedia, c.ClipName)
		}
	}
	s.logger.Info("edl exported", "project_id", id, "clips", len(clips), "missing_media", len(resp.MissingMedia))
	return resp, nil
}

// StartExport freezes the project's current state to a snapshot file and
// queues an export job for it.
func (s *Service) StartExport(ctx context.Context, id string, settings export.Settings) (*Job, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	job := &Job{
		ID:        NewID(),
		ProjectID: id,
		Type:      JobTypeExport,
		Status:    JobStatusPending,
		Settings:  settings,
		CreatedAt: now,
		UpdatedAt: now,
	}
	job.SnapshotPath = filepath.Join(s.snapshotDir, job.ID, "project.json")

	err := s.WithStore(ctx, id, func(st *timeline.Store) error {
		if err := os.MkdirAll(filepath.Dir(job.SnapshotPath), 0755); err != nil {
			return fmt.Errorf("create snapshot dir: %w", err)
		}
		if err := timeline.SaveProjectFile(job.SnapshotPath, st.Project()); err != nil {
			return fmt.Errorf("write snapshot: %w", err)
		}
		job.TotalFrames = export.TotalFrames(st.Project().Timeline.Duration(), settings.FPS)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.repo.CreateJob(ctx, job); err != nil {
		os.RemoveAll(filepath.Dir(job.SnapshotPath))
		return nil, fmt.Errorf("create export job: %w", err)
	}

	s.logger.Info("export job queued", "project_id", id, "job_id", job.ID, "format", settings.Format, "frames", job.TotalFrames)
	return job, nil
}

// Preview renders a single frame of the project as it is now.
func (s *Service) Preview(ctx context.Context, id string, r export.Renderer, frameTime float64, settings export.PreviewSettings) (*export.PreviewResult, error) {
	if r == nil {
		return nil, ErrNoRenderer
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(s.snapshotDir, 0755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	dir, err := os.MkdirTemp(s.snapshotDir, "preview-")
	if err != nil {
		return nil, fmt.Errorf("create preview dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "project.json")
	err = s.WithStore(ctx, id, func(st *timeline.Store) error {
		return timeline.SaveProjectFile(path, st.Project())
	})
	if err != nil {
		return nil, err
	}
	return r.Preview(ctx, path, frameTime, settings)
}

func (s *Service) GetJob(ctx context.Context, id string) (*Job, error) {
	job, err := s.repo.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrJobNotFound
	}
	return job, nil
}

func (s *Service) ListJobs(ctx context.Context, limit int) ([]*Job, error) {
	return s.repo.ListJobs(ctx, limit)
}
