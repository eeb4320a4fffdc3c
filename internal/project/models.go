package project

import (
	"time"

	"github.com/google/uuid"

	"github.com/heimdex/cutline/internal/export"
	"github.com/heimdex/cutline/internal/timeline"
)

// Record is a stored project. Document is nil in list results.
type Record struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Revision  int               `json:"revision"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	Document  *timeline.Project `json:"document,omitempty"`
}

const (
	JobTypeExport = "export"

	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
	JobStatusCancelled = "cancelled"
)

type Job struct {
	ID             string          `json:"id"`
	ProjectID      string          `json:"project_id"`
	Type           string          `json:"type"`
	Status         string          `json:"status"`
	Settings       export.Settings `json:"settings"`
	SnapshotPath   string          `json:"-"`
	OutputPath     string          `json:"output_path,omitempty"`
	RenderedFrames int             `json:"rendered_frames"`
	TotalFrames    int             `json:"total_frames"`
	UploadURL      string          `json:"upload_url,omitempty"`
	Error          string          `json:"error,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Progress is the rendered share in percent.
func (j *Job) Progress() int {
	if j.TotalFrames <= 0 {
		return 0
	}
	return min(100, j.RenderedFrames*100/j.TotalFrames)
}

func (j *Job) Finished() bool {
	switch j.Status {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

type ConfigEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func NewID() string {
	return uuid.NewString()
}
