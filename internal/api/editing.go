package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/heimdex/cutline/internal/timeline"
)

func markersHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var markers []timeline.EdgeMarkers
		err := cfg.Projects.WithStore(r.Context(), chi.URLParam(r, "id"), func(st *timeline.Store) error {
			markers = st.Markers()
			return nil
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, MarkersResponse{Markers: markers})
	}
}

func gapsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, ok := trackParam(w, r)
		if !ok {
			return
		}

		var gaps []timeline.Span
		err := cfg.Projects.WithStore(r.Context(), chi.URLParam(r, "id"), func(st *timeline.Store) error {
			var err error
			gaps, err = st.Gaps(kind)
			return err
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if gaps == nil {
			gaps = []timeline.Span{}
		}
		WriteJSON(w, http.StatusOK, GapsResponse{Track: kind, Gaps: gaps})
	}
}

func placeSegmentHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, ok := trackParam(w, r)
		if !ok {
			return
		}
		var req PlaceRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		var resp SegmentResponse
		err := cfg.Projects.WithStore(r.Context(), chi.URLParam(r, "id"), func(st *timeline.Store) error {
			idx, err := st.Place(kind, req.At)
			if err != nil {
				return err
			}
			resp, err = segmentAt(st, kind, idx)
			return err
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, resp)
	}
}

func deleteSegmentHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, ok := trackParam(w, r)
		if !ok {
			return
		}
		index, ok := intParam(w, r, "index")
		if !ok {
			return
		}

		err := cfg.Projects.WithStore(r.Context(), chi.URLParam(r, "id"), func(st *timeline.Store) error {
			return st.Delete(kind, index)
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func splitSegmentHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, ok := trackParam(w, r)
		if !ok {
			return
		}
		index, ok := intParam(w, r, "index")
		if !ok {
			return
		}
		var req SplitRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		var resp SegmentResponse
		err := cfg.Projects.WithStore(r.Context(), chi.URLParam(r, "id"), func(st *timeline.Store) error {
			tail, err := st.Split(kind, index, req.Fraction)
			if err != nil {
				return err
			}
			resp, err = segmentAt(st, kind, tail)
			return err
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, resp)
	}
}

func boundsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, ok := trackParam(w, r)
		if !ok {
			return
		}
		index, ok := intParam(w, r, "index")
		if !ok {
			return
		}
		var req BoundsRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		handle, err := timeline.ParseHandle(req.Handle)
		if err != nil || handle == timeline.HandleBody {
			WriteError(w, http.StatusBadRequest, "handle must be start or end", "BAD_REQUEST")
			return
		}

		var resp SegmentResponse
		err = cfg.Projects.WithStore(r.Context(), chi.URLParam(r, "id"), func(st *timeline.Store) error {
			span, err := st.SetBounds(kind, index, handle, req.Value)
			resp = SegmentResponse{Track: kind, Index: index, Start: span.Start, End: span.End}
			return err
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

// clickHandler applies a click the way the editor does: a split in split
// mode, a selection change otherwise.
func clickHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, ok := trackParam(w, r)
		if !ok {
			return
		}
		index, ok := intParam(w, r, "index")
		if !ok {
			return
		}
		var req struct {
			Fraction float64 `json:"fraction"`
			timeline.Modifiers
		}
		if !decodeJSON(w, r, &req) {
			return
		}

		var sel timeline.Selection
		err := cfg.Projects.WithStore(r.Context(), chi.URLParam(r, "id"), func(st *timeline.Store) error {
			if err := st.Click(kind, index, req.Fraction, req.Modifiers); err != nil {
				return err
			}
			sel = st.Selection()
			return nil
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, sel)
	}
}

func selectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SelectionRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if _, err := timeline.ParseTrackKind(string(req.Track)); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		var sel timeline.Selection
		err := cfg.Projects.WithStore(r.Context(), chi.URLParam(r, "id"), func(st *timeline.Store) error {
			n, err := st.Project().Timeline.TrackLen(req.Track)
			if err != nil {
				return err
			}
			if req.Index < 0 || req.Index >= n {
				return timeline.ErrIndexOutOfRange
			}
			st.Select(req.Track, req.Index, req.Modifiers)
			sel = st.Selection()
			return nil
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, sel)
	}
}

func clearSelectionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := cfg.Projects.WithStore(r.Context(), chi.URLParam(r, "id"), func(st *timeline.Store) error {
			st.ClearSelection()
			return nil
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func modeHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ModeRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Mode != timeline.ModeSelect && req.Mode != timeline.ModeSplit {
			WriteError(w, http.StatusBadRequest, "mode must be select or split", "BAD_REQUEST")
			return
		}

		err := cfg.Projects.WithStore(r.Context(), chi.URLParam(r, "id"), func(st *timeline.Store) error {
			st.SetMode(req.Mode)
			return nil
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, req)
	}
}

func historyHandler(cfg ServerConfig, step func(*timeline.Store) bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var resp HistoryResponse
		err := cfg.Projects.WithStore(r.Context(), chi.URLParam(r, "id"), func(st *timeline.Store) error {
			resp.Applied = step(st)
			resp.CanUndo = st.History().CanUndo()
			resp.CanRedo = st.History().CanRedo()
			return nil
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func segmentAt(st *timeline.Store, kind timeline.TrackKind, index int) (SegmentResponse, error) {
	spans, err := st.Project().Timeline.Spans(kind)
	if err != nil {
		return SegmentResponse{}, err
	}
	if index < 0 || index >= len(spans) {
		return SegmentResponse{}, timeline.ErrIndexOutOfRange
	}
	if kind == timeline.TrackClip {
		seg := st.Project().Timeline.Segments[index]
		return SegmentResponse{Track: kind, Index: index, Start: seg.Start, End: seg.End}, nil
	}
	return SegmentResponse{Track: kind, Index: index, Start: spans[index].Start, End: spans[index].End}, nil
}
