// Package media reads recording files with ffprobe and turns them into
// timeline source recordings.
package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/heimdex/cutline/internal/timeline"
)

var (
	ErrProbeUnavailable = errors.New("media probe unavailable")
	ErrNoDisplay        = errors.New("display file is required")
)

type Prober interface {
	Probe(ctx context.Context, filePath string) (*ProbeResult, error)
}

type ProbeResult struct {
	Duration    float64
	StartTime   *float64
	Width       int
	Height      int
	Codec       string
	Bitrate     int64
	FrameRate   float64
	AudioCodec  string
	AudioSample int
}

func (r *ProbeResult) HasVideo() bool { return r.Codec != "" }

func (r *ProbeResult) HasAudio() bool { return r.AudioCodec != "" }

// RecordingFiles names the component files of one recording. Only Display is
// required.
type RecordingFiles struct {
	Display     string `json:"display"`
	Camera      string `json:"camera,omitempty"`
	Mic         string `json:"mic,omitempty"`
	SystemAudio string `json:"system_audio,omitempty"`
}

// BuildRecording probes every file in files and assembles the recording.
func BuildRecording(ctx context.Context, p Prober, files RecordingFiles) (timeline.SourceRecording, error) {
	if files.Display == "" {
		return timeline.SourceRecording{}, ErrNoDisplay
	}
	display, err := trackMeta(ctx, p, files.Display)
	if err != nil {
		return timeline.SourceRecording{}, err
	}
	rec := timeline.SourceRecording{Display: *display}

	for _, opt := range []struct {
		path string
		dst  **timeline.TrackMeta
	}{
		{files.Camera, &rec.Camera},
		{files.Mic, &rec.Mic},
		{files.SystemAudio, &rec.SystemAudio},
	} {
		if opt.path == "" {
			continue
		}
		meta, err := trackMeta(ctx, p, opt.path)
		if err != nil {
			return timeline.SourceRecording{}, err
		}
		*opt.dst = meta
	}
	return rec, nil
}

func trackMeta(ctx context.Context, p Prober, path string) (*timeline.TrackMeta, error) {
	res, err := p.Probe(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", path, err)
	}
	if res.Duration <= 0 {
		return nil, fmt.Errorf("probe %s: no duration", path)
	}
	return &timeline.TrackMeta{Path: path, Duration: res.Duration, StartTime: res.StartTime}, nil
}

// StubProber answers from a fixed table. It stands in when ffprobe is not
// installed; unknown paths fail with ErrProbeUnavailable.
type StubProber struct {
	logger    *slog.Logger
	durations map[string]float64
}

func NewStubProber(logger *slog.Logger, durations map[string]float64) *StubProber {
	if logger == nil {
		logger = slog.Default()
	}
	return &StubProber{logger: logger, durations: durations}
}

func (s *StubProber) Probe(ctx context.Context, filePath string) (*ProbeResult, error) {
	d, ok := s.durations[filePath]
	if !ok {
		s.logger.Info("probe stub: no ffprobe installed", "path", filePath)
		return nil, ErrProbeUnavailable
	}
	return &ProbeResult{Duration: d}, nil
}
