package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/heimdex/cutline/internal/project"
	"github.com/heimdex/cutline/internal/timeline"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(CORSAllowlist())

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Repository, cfg.Logger))

		r.Get("/status", statusHandler(cfg))

		r.Route("/projects", func(r chi.Router) {
			r.Get("/", listProjectsHandler(cfg))
			r.Post("/", createProjectHandler(cfg))

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", getProjectHandler(cfg))
				r.Delete("/", deleteProjectHandler(cfg))

				r.Post("/recordings", importRecordingHandler(cfg))
				r.With(LoopbackGuard()).Get("/recordings/{n}/{track}", recordingMediaHandler(cfg))
				r.With(LoopbackGuard()).Head("/recordings/{n}/{track}", recordingMediaHandler(cfg))

				r.Get("/markers", markersHandler(cfg))
				r.Get("/tracks/{kind}/gaps", gapsHandler(cfg))
				r.Post("/tracks/{kind}/segments", placeSegmentHandler(cfg))
				r.Delete("/tracks/{kind}/segments/{index}", deleteSegmentHandler(cfg))
				r.Post("/tracks/{kind}/segments/{index}/split", splitSegmentHandler(cfg))
				r.Post("/tracks/{kind}/segments/{index}/bounds", boundsHandler(cfg))
				r.Post("/tracks/{kind}/segments/{index}/click", clickHandler(cfg))

				r.Post("/selection", selectHandler(cfg))
				r.Delete("/selection", clearSelectionHandler(cfg))
				r.Post("/mode", modeHandler(cfg))
				r.Post("/undo", historyHandler(cfg, (*timeline.Store).Undo))
				r.Post("/redo", historyHandler(cfg, (*timeline.Store).Redo))

				r.Post("/estimates", estimateHandler(cfg))
				r.Post("/preview", previewHandler(cfg))
				r.Post("/exports", startExportHandler(cfg))
				r.Post("/export/edl", edlHandler(cfg))
			})
		})

		r.Get("/jobs", listJobsHandler(cfg))
		r.Get("/jobs/{id}", getJobHandler(cfg))
		r.Post("/jobs/{id}/cancel", cancelJobHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:   "ok",
			Version:  version,
			UptimeS:  uptime,
			DeviceID: cfg.DeviceID,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		projectsCount, _ := cfg.Projects.CountProjects(ctx)
		jobs, _ := cfg.Projects.ListJobs(ctx, 20)

		resp := StatusResponse{State: "idle", ProjectsCount: projectsCount}
		for _, j := range jobs {
			switch j.Status {
			case project.JobStatusRunning:
				resp.JobsRunning++
				if resp.ActiveJob == nil {
					active := JobToResponse(j)
					resp.ActiveJob = &active
				}
			case project.JobStatusPending:
				resp.JobsPending++
			case project.JobStatusFailed:
				if resp.LastError == "" {
					resp.LastError = j.Error
				}
			}
		}

		switch {
		case cfg.Runner != nil && cfg.Runner.IsPaused():
			resp.State = "paused"
		case resp.JobsRunning > 0:
			resp.State = "exporting"
		case resp.LastError != "":
			resp.State = "error"
		}

		if cfg.Doctor != nil {
			if caps := cfg.Doctor.Peek(); caps != nil {
				resp.Engine = &EngineStatusResponse{
					Version:          caps.EngineVersion,
					HasMP4:           caps.HasMP4,
					HasGIF:           caps.HasGIF,
					HardwareEncoding: caps.GPU.HardwareEncoding,
					LastProbeAt:      caps.ProbedAt.Format(time.RFC3339),
				}
			}
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}

func listJobsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				WriteError(w, http.StatusBadRequest, "limit must be a positive integer", "BAD_REQUEST")
				return
			}
			limit = n
		}

		jobs, err := cfg.Projects.ListJobs(r.Context(), limit)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list jobs", "INTERNAL_ERROR")
			return
		}

		resp := JobsResponse{Jobs: make([]JobResponse, len(jobs))}
		for i, j := range jobs {
			resp.Jobs[i] = JobToResponse(j)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getJobHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, err := cfg.Projects.GetJob(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, JobToResponse(job))
	}
}

func cancelJobHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Runner == nil {
			WriteError(w, http.StatusServiceUnavailable, "export runner not running", "RUNNER_UNAVAILABLE")
			return
		}
		job, err := cfg.Runner.Cancel(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusAccepted, JobToResponse(job))
	}
}

// decodeJSON reads the request body into v. An empty body leaves v as is.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
		return false
	}
	return true
}

func trackParam(w http.ResponseWriter, r *http.Request) (timeline.TrackKind, bool) {
	kind, err := timeline.ParseTrackKind(chi.URLParam(r, "kind"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
		return "", false
	}
	return kind, true
}

func intParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	n, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || n < 0 {
		WriteError(w, http.StatusBadRequest, name+" must be a non-negative integer", "BAD_REQUEST")
		return 0, false
	}
	return n, true
}
