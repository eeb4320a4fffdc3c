package cloud

import "io"

type UploadStatus string

const (
	UploadSuccess          UploadStatus = "success"
	UploadNotAuthenticated UploadStatus = "not_authenticated"
	UploadUpgradeRequired  UploadStatus = "upgrade_required"
)

// UploadRequest describes one exported video. VideoID is set when replacing
// a previous upload.
type UploadRequest struct {
	ProjectID       string  `json:"project_id"`
	Name            string  `json:"name"`
	FilePath        string  `json:"-"`
	DurationSeconds float64 `json:"duration_seconds"`
	VideoID         string  `json:"video_id,omitempty"`
}

type UploadResult struct {
	Status  UploadStatus `json:"status"`
	VideoID string       `json:"video_id,omitempty"`
	Link    string       `json:"link,omitempty"`
}

// ProgressFunc receives upload progress in [0,1].
type ProgressFunc func(progress float64)

type createVideoRequest struct {
	Name     string  `json:"name"`
	Duration float64 `json:"duration"`
	VideoID  string  `json:"video_id,omitempty"`
}

type createVideoResponse struct {
	ID string `json:"id"`
}

type uploadCompleteResponse struct {
	Link string `json:"link"`
}

// progressReader reports the fraction of size read so far.
type progressReader struct {
	r        io.Reader
	size     int64
	read     int64
	onUpdate ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 && p.onUpdate != nil && p.size > 0 {
		p.read += int64(n)
		p.onUpdate(min(1, float64(p.read)/float64(p.size)))
	}
	return n, err
}
