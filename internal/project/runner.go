package project

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/heimdex/cutline/internal/cloud"
	"github.com/heimdex/cutline/internal/export"
	"github.com/heimdex/cutline/internal/logging"
	"github.com/heimdex/cutline/internal/render"
	"github.com/heimdex/cutline/internal/timeline"
)

const progressPersistInterval = 250 * time.Millisecond

// Runner polls for pending export jobs and renders them one at a time.
type Runner struct {
	repo         Repository
	renderer     export.Renderer
	doctor       *render.CachedDoctor
	uploader     cloud.Client
	logger       *slog.Logger
	pollInterval time.Duration
	running      atomic.Bool
	paused       atomic.Bool

	mu     sync.Mutex
	active map[string]*export.ProgressTracker
}

// NewRunner builds a runner. doctor and uploader may be nil; without an
// uploader finished exports stay local.
func NewRunner(repo Repository, renderer export.Renderer, doctor *render.CachedDoctor, uploader cloud.Client, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Runner{
		repo:         repo,
		renderer:     renderer,
		doctor:       doctor,
		uploader:     uploader,
		logger:       logging.WithComponent(logger, "export_runner"),
		pollInterval: 2 * time.Second,
		active:       make(map[string]*export.ProgressTracker),
	}
}

func (r *Runner) SetPollInterval(d time.Duration) {
	if d > 0 {
		r.pollInterval = d
	}
}

func (r *Runner) Start(ctx context.Context) {
	if r.running.Swap(true) {
		return
	}

	r.logger.Info("export runner started")

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("export runner stopping")
			r.running.Store(false)
			return
		case <-ticker.C:
			if !r.paused.Load() {
				r.processNextJob(ctx)
			}
		}
	}
}

func (r *Runner) Pause() {
	r.paused.Store(true)
	r.logger.Info("export runner paused")
}

func (r *Runner) Resume() {
	r.paused.Store(false)
	r.logger.Info("export runner resumed")
}

func (r *Runner) IsPaused() bool {
	return r.paused.Load()
}

func (r *Runner) IsRunning() bool {
	return r.running.Load()
}

// ActiveJobCount is the number of exports currently rendering.
func (r *Runner) ActiveJobCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}

// Cancel stops a job. Pending jobs are cancelled immediately; a running
// export is cancelled at its next progress report.
func (r *Runner) Cancel(ctx context.Context, jobID string) (*Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if tracker, ok := r.active[jobID]; ok {
		tracker.Cancel()
		r.logger.Info("cancel requested for running export", "job_id", jobID)
		return r.repo.GetJob(ctx, jobID)
	}

	job, err := r.repo.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrJobNotFound
	}
	if job.Status != JobStatusPending {
		return job, ErrJobFinished
	}
	if err := r.repo.UpdateJobStatus(ctx, jobID, JobStatusCancelled, ""); err != nil {
		return nil, err
	}
	removeSnapshot(job)
	job.Status = JobStatusCancelled
	r.logger.Info("pending export cancelled", "job_id", jobID)
	return job, nil
}

func (r *Runner) processNextJob(ctx context.Context) {
	jobs, err := r.repo.ListPendingJobs(ctx)
	if err != nil {
		r.logger.Error("failed to list pending jobs", "error", err)
		return
	}
	if len(jobs) == 0 {
		return
	}

	job := jobs[0]
	switch job.Type {
	case JobTypeExport:
		r.runExport(ctx, job)
	default:
		r.logger.Warn("unknown job type", "job_id", job.ID, "type", job.Type)
		r.repo.UpdateJobStatus(ctx, job.ID, JobStatusFailed, "unknown job type")
	}
}

// claim registers a tracker for job and marks it running, unless it was
// cancelled in the meantime.
func (r *Runner) claim(ctx context.Context, job *Job, tracker *export.ProgressTracker) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, err := r.repo.GetJob(ctx, job.ID)
	if err != nil || current == nil || current.Status != JobStatusPending {
		return false
	}
	if err := r.repo.UpdateJobStatus(ctx, job.ID, JobStatusRunning, ""); err != nil {
		r.logger.Error("failed to mark job running", "job_id", job.ID, "error", err)
		return false
	}
	r.active[job.ID] = tracker
	return true
}

func (r *Runner) release(jobID string) {
	r.mu.Lock()
	delete(r.active, jobID)
	r.mu.Unlock()
}

func (r *Runner) runExport(ctx context.Context, job *Job) {
	logger := logging.WithProjectID(logging.WithJobID(r.logger, job.ID), job.ProjectID)

	var lastPersist time.Time
	tracker := export.NewProgressTracker(func(f export.FramesRendered) {
		if time.Since(lastPersist) < progressPersistInterval && f.RenderedCount < f.TotalFrames {
			return
		}
		lastPersist = time.Now()
		if err := r.repo.UpdateJobProgress(ctx, job.ID, f.RenderedCount, f.TotalFrames); err != nil {
			logger.Warn("failed to persist export progress", "error", err)
		}
	})

	if !r.claim(ctx, job, tracker) {
		return
	}
	defer r.release(job.ID)
	defer removeSnapshot(job)

	if r.renderer == nil {
		r.fail(ctx, logger, job, ErrNoRenderer.Error())
		return
	}
	if r.doctor != nil {
		caps, err := r.doctor.Get(ctx)
		if err != nil {
			logger.Warn("render engine probe failed; exporting anyway", "error", err)
		} else if !caps.Supports(job.Settings.Format) {
			r.fail(ctx, logger, job, fmt.Sprintf("render engine cannot encode %s", job.Settings.Format))
			return
		}
	}

	logger.Info("export started", "format", job.Settings.Format, "fps", job.Settings.FPS)
	start := time.Now()

	outPath, err := r.renderer.Export(ctx, job.SnapshotPath, job.Settings, tracker.Report)
	switch {
	case errors.Is(err, export.ErrCancelled):
		removeOutput(outPath)
		r.repo.UpdateJobStatus(ctx, job.ID, JobStatusCancelled, "")
		logger.Info("export cancelled", "rendered", tracker.Last().RenderedCount)
		return
	case err != nil:
		removeOutput(outPath)
		if ctx.Err() != nil {
			r.fail(context.WithoutCancel(ctx), logger, job, "interrupted by shutdown")
			return
		}
		r.fail(ctx, logger, job, err.Error())
		return
	}

	last := tracker.Last()
	r.repo.UpdateJobProgress(ctx, job.ID, last.RenderedCount, last.TotalFrames)

	uploadURL, uploadErr := r.upload(ctx, job, outPath)
	if err := r.repo.CompleteJob(ctx, job.ID, outPath, uploadURL); err != nil {
		logger.Error("failed to mark export completed", "error", err)
		return
	}
	if uploadErr != nil {
		logger.Warn("export upload failed", "error", uploadErr)
		r.repo.UpdateJobStatus(ctx, job.ID, JobStatusCompleted, "upload failed: "+uploadErr.Error())
	}

	logger.Info("export completed",
		"duration_ms", time.Since(start).Milliseconds(),
		"output", logging.SanitizePath(outPath),
		"uploaded", uploadURL != "",
	)
}

func (r *Runner) upload(ctx context.Context, job *Job, outPath string) (string, error) {
	if r.uploader == nil {
		return "", nil
	}
	req := cloud.UploadRequest{ProjectID: job.ProjectID, FilePath: outPath}
	if p, err := timeline.LoadProjectFile(job.SnapshotPath); err == nil {
		req.Name = p.Name
		req.DurationSeconds = p.Timeline.Duration()
	}

	res, err := r.uploader.UploadExportedVideo(ctx, req, nil)
	if err != nil {
		return "", err
	}
	if res.Status != cloud.UploadSuccess {
		return "", fmt.Errorf("upload %s", res.Status)
	}
	return res.Link, nil
}

func (r *Runner) fail(ctx context.Context, logger *slog.Logger, job *Job, msg string) {
	logger.Warn("export failed", "error", msg)
	if err := r.repo.UpdateJobStatus(ctx, job.ID, JobStatusFailed, msg); err != nil {
		logger.Error("failed to mark export failed", "error", err)
	}
}

func removeOutput(path string) {
	if path != "" {
		os.Remove(path)
	}
}

func removeSnapshot(job *Job) {
	if job.SnapshotPath != "" {
		os.RemoveAll(filepath.Dir(job.SnapshotPath))
	}
}
