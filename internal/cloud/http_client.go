package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
)

// UploadError represents a non-2xx response from the sharing backend.
type UploadError struct {
	StatusCode int
	Body       string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("video upload failed: HTTP %d: %s", e.StatusCode, e.Body)
}

// IsRetryable returns true for server errors (5xx). Client errors (4xx) are
// considered permanent.
func (e *UploadError) IsRetryable() bool {
	return e.StatusCode >= 500
}

// HTTPClient talks to the sharing backend.
type HTTPClient struct {
	baseURL    string
	token      string
	deviceID   string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewHTTPClient(baseURL, token string, logger *slog.Logger) *HTTPClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPClient{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Minute,
		},
		logger: logger,
	}
}

func (c *HTTPClient) SetDeviceID(id string) {
	c.deviceID = id
}

// UploadExportedVideo creates (or reuses) a video record and then streams the
// file to it. Missing credentials and plan limits are results, not errors.
func (c *HTTPClient) UploadExportedVideo(ctx context.Context, req UploadRequest, onProgress ProgressFunc) (*UploadResult, error) {
	if c.token == "" {
		return &UploadResult{Status: UploadNotAuthenticated}, nil
	}

	f, err := os.Open(req.FilePath)
	if err != nil {
		return nil, fmt.Errorf("rendered video not found: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat rendered video: %w", err)
	}

	if onProgress != nil {
		onProgress(0)
	}

	videoID, result, err := c.createVideo(ctx, req)
	if err != nil || result != nil {
		return result, err
	}

	link, result, err := c.putContent(ctx, videoID, f, info.Size(), onProgress)
	if err != nil || result != nil {
		return result, err
	}

	if onProgress != nil {
		onProgress(1)
	}
	c.logger.Info("video upload succeeded", "video_id", videoID, "bytes", info.Size())
	return &UploadResult{Status: UploadSuccess, VideoID: videoID, Link: link}, nil
}

func (c *HTTPClient) createVideo(ctx context.Context, req UploadRequest) (string, *UploadResult, error) {
	body, err := json.Marshal(createVideoRequest{Name: req.Name, Duration: req.DurationSeconds, VideoID: req.VideoID})
	if err != nil {
		return "", nil, fmt.Errorf("marshal video request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/videos", bytes.NewReader(body))
	if err != nil {
		return "", nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if result := statusResult(resp.StatusCode); result != nil {
		return "", result, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", nil, &UploadError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var created createVideoResponse
	if err := json.Unmarshal(respBody, &created); err != nil || created.ID == "" {
		return "", nil, fmt.Errorf("invalid create video response: %s", respBody)
	}
	return created.ID, nil, nil
}

func (c *HTTPClient) putContent(ctx context.Context, videoID string, r io.Reader, size int64, onProgress ProgressFunc) (string, *UploadResult, error) {
	body := &progressReader{r: r, size: size, onUpdate: onProgress}
	url := fmt.Sprintf("%s/api/videos/%s/content", c.baseURL, videoID)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPut, url, body)
	if err != nil {
		return "", nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.ContentLength = size
	httpReq.Header.Set("Content-Type", "application/octet-stream")
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if result := statusResult(resp.StatusCode); result != nil {
		return "", result, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", nil, &UploadError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var done uploadCompleteResponse
	if err := json.Unmarshal(respBody, &done); err != nil {
		return "", nil, fmt.Errorf("invalid upload response: %w", err)
	}
	return done.Link, nil, nil
}

func (c *HTTPClient) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("X-Cutline-Request-Id", uuid.NewString())
	if c.deviceID != "" {
		req.Header.Set("X-Cutline-Device-Id", c.deviceID)
	}
}

func statusResult(code int) *UploadResult {
	switch code {
	case http.StatusUnauthorized:
		return &UploadResult{Status: UploadNotAuthenticated}
	case http.StatusPaymentRequired:
		return &UploadResult{Status: UploadUpgradeRequired}
	}
	return nil
}
