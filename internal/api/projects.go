package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/heimdex/cutline/internal/media"
	"github.com/heimdex/cutline/internal/playback"
	"github.com/heimdex/cutline/internal/timeline"
)

func listProjectsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recs, err := cfg.Projects.ListProjects(r.Context())
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list projects", "INTERNAL_ERROR")
			return
		}

		resp := ProjectsResponse{Projects: make([]ProjectResponse, len(recs))}
		for i, p := range recs {
			resp.Projects[i] = ProjectToResponse(p)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func createProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateProjectRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		recordings := make([]timeline.SourceRecording, 0, len(req.Recordings))
		for _, files := range req.Recordings {
			rec, err := cfg.Projects.ProbeRecording(r.Context(), files)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			recordings = append(recordings, rec)
		}

		rec, err := cfg.Projects.CreateProject(r.Context(), req.Name, recordings)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, ProjectToResponse(rec))
	}
}

func getProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := cfg.Projects.GetProject(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, ProjectToResponse(rec))
	}
}

func deleteProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.Projects.DeleteProject(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func importRecordingHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var files media.RecordingFiles
		if !decodeJSON(w, r, &files) {
			return
		}

		idx, err := cfg.Projects.ImportRecording(r.Context(), chi.URLParam(r, "id"), files)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, ImportRecordingResponse{RecordingIndex: idx})
	}
}

func recordingMediaHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, ok := intParam(w, r, "n")
		if !ok {
			return
		}
		if cfg.Media == nil {
			WriteError(w, http.StatusServiceUnavailable, "media serving disabled", "MEDIA_UNAVAILABLE")
			return
		}

		var rec timeline.SourceRecording
		found := false
		err := cfg.Projects.WithStore(r.Context(), chi.URLParam(r, "id"), func(st *timeline.Store) error {
			if recs := st.Project().Recordings; n < len(recs) {
				rec, found = recs[n], true
			}
			return nil
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if !found {
			WriteError(w, http.StatusNotFound, "recording not found", "NOT_FOUND")
			return
		}

		track := playback.Track(chi.URLParam(r, "track"))
		if err := cfg.Media.ServeRecording(w, r, rec, track); err != nil {
			cfg.Logger.Error("media playback error", "error", err, "recording", n, "track", track)
		}
	}
}
