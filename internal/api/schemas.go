package api

import (
	"time"

	"github.com/heimdex/cutline/internal/export"
	"github.com/heimdex/cutline/internal/media"
	"github.com/heimdex/cutline/internal/project"
	"github.com/heimdex/cutline/internal/timeline"
)

type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	UptimeS  int64  `json:"uptime_s"`
	DeviceID string `json:"device_id"`
}

type StatusResponse struct {
	State         string                `json:"state"`
	LastError     string                `json:"last_error,omitempty"`
	ProjectsCount int                   `json:"projects_count"`
	JobsRunning   int                   `json:"jobs_running"`
	JobsPending   int                   `json:"jobs_pending"`
	ActiveJob     *JobResponse          `json:"active_job,omitempty"`
	Engine        *EngineStatusResponse `json:"engine,omitempty"`
}

type EngineStatusResponse struct {
	Version          string `json:"version,omitempty"`
	HasMP4           bool   `json:"has_mp4"`
	HasGIF           bool   `json:"has_gif"`
	HardwareEncoding bool   `json:"hardware_encoding"`
	LastProbeAt      string `json:"last_probe_at,omitempty"`
}

// CreateProjectRequest starts a project from recordings on disk. Each entry
// is probed for durations.
type CreateProjectRequest struct {
	Name       string                 `json:"name"`
	Recordings []media.RecordingFiles `json:"recordings"`
}

type ProjectResponse struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Revision  int               `json:"revision"`
	Duration  float64           `json:"duration,omitempty"`
	CreatedAt string            `json:"created_at"`
	UpdatedAt string            `json:"updated_at"`
	Document  *timeline.Project `json:"document,omitempty"`
}

type ProjectsResponse struct {
	Projects []ProjectResponse `json:"projects"`
}

type ImportRecordingResponse struct {
	RecordingIndex int `json:"recording_index"`
}

type MarkersResponse struct {
	Markers []timeline.EdgeMarkers `json:"markers"`
}

type GapsResponse struct {
	Track timeline.TrackKind `json:"track"`
	Gaps  []timeline.Span    `json:"gaps"`
}

type PlaceRequest struct {
	At float64 `json:"at"`
}

type SplitRequest struct {
	Fraction float64 `json:"fraction"`
}

type BoundsRequest struct {
	Handle string  `json:"handle"`
	Value  float64 `json:"value"`
}

type SegmentResponse struct {
	Track timeline.TrackKind `json:"track"`
	Index int                `json:"index"`
	Start float64            `json:"start"`
	End   float64            `json:"end"`
}

type SelectionRequest struct {
	Track timeline.TrackKind `json:"track"`
	Index int                `json:"index"`
	timeline.Modifiers
}

type ModeRequest struct {
	Mode timeline.Mode `json:"mode"`
}

type HistoryResponse struct {
	Applied bool `json:"applied"`
	CanUndo bool `json:"can_undo"`
	CanRedo bool `json:"can_redo"`
}

type PreviewRequest struct {
	Time     float64                `json:"time"`
	Settings export.PreviewSettings `json:"settings"`
}

type JobResponse struct {
	ID             string          `json:"id"`
	Type           string          `json:"type"`
	Status         string          `json:"status"`
	ProjectID      string          `json:"project_id"`
	Settings       export.Settings `json:"settings"`
	Progress       int             `json:"progress"`
	RenderedFrames int             `json:"rendered_frames"`
	TotalFrames    int             `json:"total_frames"`
	OutputPath     string          `json:"output_path,omitempty"`
	UploadURL      string          `json:"upload_url,omitempty"`
	Error          string          `json:"error,omitempty"`
	CreatedAt      string          `json:"created_at"`
	UpdatedAt      string          `json:"updated_at"`
}

type JobsResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func ProjectToResponse(p *project.Record) ProjectResponse {
	resp := ProjectResponse{
		ID:        p.ID,
		Name:      p.Name,
		Revision:  p.Revision,
		CreatedAt: p.CreatedAt.Format(time.RFC3339),
		UpdatedAt: p.UpdatedAt.Format(time.RFC3339),
		Document:  p.Document,
	}
	if p.Document != nil {
		resp.Duration = p.Document.Timeline.Duration()
	}
	return resp
}

func JobToResponse(j *project.Job) JobResponse {
	return JobResponse{
		ID:             j.ID,
		Type:           j.Type,
		Status:         j.Status,
		ProjectID:      j.ProjectID,
		Settings:       j.Settings,
		Progress:       j.Progress(),
		RenderedFrames: j.RenderedFrames,
		TotalFrames:    j.TotalFrames,
		OutputPath:     j.OutputPath,
		UploadURL:      j.UploadURL,
		Error:          j.Error,
		CreatedAt:      j.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      j.UpdatedAt.Format(time.RFC3339),
	}
}
