// Package cloud uploads exported videos to the sharing backend.
package cloud

import (
	"context"
	"log/slog"
	"net/url"
	"path/filepath"
)

type Client interface {
	UploadExportedVideo(ctx context.Context, req UploadRequest, onProgress ProgressFunc) (*UploadResult, error)
}

// StubClient pretends every upload succeeded and links to the local file.
type StubClient struct {
	logger *slog.Logger
}

func NewStubClient(logger *slog.Logger) *StubClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &StubClient{logger: logger}
}

func (c *StubClient) UploadExportedVideo(ctx context.Context, req UploadRequest, onProgress ProgressFunc) (*UploadResult, error) {
	c.logger.Info("cloud stub: upload requested", "project_id", req.ProjectID, "file", filepath.Base(req.FilePath))
	if onProgress != nil {
		onProgress(0)
		onProgress(1)
	}
	link := (&url.URL{Scheme: "file", Path: req.FilePath}).String()
	return &UploadResult{Status: UploadSuccess, Link: link}, nil
}
