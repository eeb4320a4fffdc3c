package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/heimdex/cutline/internal/export"
)

// Estimate and export requests start from export.DefaultSettings; fields in
// the body override them.
func estimateHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		settings := export.DefaultSettings()
		if !decodeJSON(w, r, &settings) {
			return
		}

		est, err := cfg.Projects.Estimate(r.Context(), chi.URLParam(r, "id"), settings)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, est)
	}
}

func startExportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		settings := export.DefaultSettings()
		if !decodeJSON(w, r, &settings) {
			return
		}

		job, err := cfg.Projects.StartExport(r.Context(), chi.URLParam(r, "id"), settings)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusAccepted, JobToResponse(job))
	}
}

func previewHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		def := export.DefaultSettings()
		req := PreviewRequest{Settings: export.PreviewSettings{
			FPS:            def.FPS,
			ResolutionBase: def.ResolutionBase,
			CompressionBPP: def.EffectiveBPP(),
		}}
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Time < 0 {
			WriteError(w, http.StatusBadRequest, "time must not be negative", "BAD_REQUEST")
			return
		}

		res, err := cfg.Projects.Preview(r.Context(), chi.URLParam(r, "id"), cfg.Renderer, req.Time, req.Settings)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, res)
	}
}

func edlHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req export.EDLRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		resp, err := cfg.Projects.ExportEDL(r.Context(), chi.URLParam(r, "id"), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}
