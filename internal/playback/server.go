// Package playback serves recording media to the editor with byte-range
// support so players can seek while scrubbing the timeline.
package playback

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/heimdex/cutline/internal/timeline"
)

var ErrTrackMissing = errors.New("recording has no such track")

// Track names one component file of a recording.
type Track string

const (
	TrackDisplay     Track = "display"
	TrackCamera      Track = "camera"
	TrackMic         Track = "mic"
	TrackSystemAudio Track = "system_audio"
)

// TrackPath returns the file backing track in rec.
func TrackPath(rec timeline.SourceRecording, track Track) (string, error) {
	var meta *timeline.TrackMeta
	switch track {
	case TrackDisplay:
		meta = &rec.Display
	case TrackCamera:
		meta = rec.Camera
	case TrackMic:
		meta = rec.Mic
	case TrackSystemAudio:
		meta = rec.SystemAudio
	default:
		return "", fmt.Errorf("%w: %q", ErrTrackMissing, track)
	}
	if meta == nil || meta.Path == "" {
		return "", fmt.Errorf("%w: %s", ErrTrackMissing, track)
	}
	return meta.Path, nil
}

type MediaServer interface {
	ServeRecording(w http.ResponseWriter, r *http.Request, rec timeline.SourceRecording, track Track) error
}

type Server struct {
	logger *slog.Logger
}

func NewServer(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{logger: logger}
}

// ServeRecording streams one track of a recording. A missing track or file
// is answered with 404 and no error.
func (s *Server) ServeRecording(w http.ResponseWriter, r *http.Request, rec timeline.SourceRecording, track Track) error {
	path, err := TrackPath(rec, track)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return nil
	}
	return s.ServeFile(w, r, path)
}

func (s *Server) ServeFile(w http.ResponseWriter, r *http.Request, filePath string) error {
	f, err := os.Open(filePath)
	if os.IsNotExist(err) {
		http.Error(w, "media file not found", http.StatusNotFound)
		return nil
	}
	if err != nil {
		return fmt.Errorf("open media: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat media: %w", err)
	}
	if info.IsDir() {
		http.Error(w, "media file not found", http.StatusNotFound)
		return nil
	}
	size := info.Size()

	h := w.Header()
	h.Set("Accept-Ranges", "bytes")
	h.Set("Content-Type", contentType(filePath))

	br, err := ParseByteRange(r.Header.Get("Range"), size)
	switch {
	case errors.Is(err, ErrUnsatisfiable):
		h.Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		http.Error(w, "range not satisfiable", http.StatusRequestedRangeNotSatisfiable)
		return nil
	case errors.Is(err, ErrInvalidRange):
		// Malformed ranges are ignored and the whole file is sent.
		br = nil
	}

	status, offset, length := http.StatusOK, int64(0), size
	if br != nil {
		status, offset, length = http.StatusPartialContent, br.Start, br.Length()
		h.Set("Content-Range", br.Header(size))
	}
	h.Set("Content-Length", strconv.FormatInt(length, 10))
	w.WriteHeader(status)

	if r.Method == http.MethodHead {
		return nil
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("seek media: %w", err)
	}
	if _, err := io.CopyN(w, f, length); err != nil {
		s.logger.Debug("media stream ended early", "file", filepath.Base(filePath), "error", err)
	}
	return nil
}

func contentType(path string) string {
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
