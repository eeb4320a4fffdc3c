package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const defaultProbeTimeout = 20 * time.Second

// FFprobe runs the ffprobe binary.
type FFprobe struct {
	binary  string
	timeout time.Duration
	logger  *slog.Logger
}

// NewFFprobe resolves path (or "ffprobe" on PATH when empty).
func NewFFprobe(path string, logger *slog.Logger) (*FFprobe, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		path = "ffprobe"
	}
	bin, err := exec.LookPath(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProbeUnavailable, err)
	}
	return &FFprobe{binary: bin, timeout: defaultProbeTimeout, logger: logger}, nil
}

type ffprobeOutput struct {
	Format struct {
		Duration  string `json:"duration"`
		StartTime string `json:"start_time"`
		BitRate   string `json:"bit_rate"`
	} `json:"format"`
	Streams []struct {
		CodecType    string `json:"codec_type"`
		CodecName    string `json:"codec_name"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		AvgFrameRate string `json:"avg_frame_rate"`
		RFrameRate   string `json:"r_frame_rate"`
		SampleRate   string `json:"sample_rate"`
		Duration     string `json:"duration"`
	} `json:"streams"`
}

func (f *FFprobe) Probe(ctx context.Context, filePath string) (*ProbeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, f.binary,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		filePath,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("ffprobe exited %d: %s", exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return nil, fmt.Errorf("ffprobe: %w", err)
	}

	res, err := parseFFprobe(stdout.Bytes())
	if err != nil {
		return nil, err
	}
	f.logger.Debug("probed media file",
		"duration", res.Duration,
		"codec", res.Codec,
		"audio_codec", res.AudioCodec,
	)
	return res, nil
}

func parseFFprobe(data []byte) (*ProbeResult, error) {
	var out ffprobeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("cannot parse ffprobe JSON: %w", err)
	}

	res := &ProbeResult{
		Duration: parseFloat(out.Format.Duration),
		Bitrate:  int64(parseFloat(out.Format.BitRate)),
	}
	if out.Format.StartTime != "" {
		st := parseFloat(out.Format.StartTime)
		res.StartTime = &st
	}

	var streamMax float64
	for _, s := range out.Streams {
		streamMax = max(streamMax, parseFloat(s.Duration))
		switch s.CodecType {
		case "video":
			if res.Codec != "" {
				continue
			}
			res.Codec = s.CodecName
			res.Width, res.Height = s.Width, s.Height
			res.FrameRate = parseRate(s.AvgFrameRate)
			if res.FrameRate == 0 {
				res.FrameRate = parseRate(s.RFrameRate)
			}
		case "audio":
			if res.AudioCodec != "" {
				continue
			}
			res.AudioCodec = s.CodecName
			res.AudioSample = int(parseFloat(s.SampleRate))
		}
	}
	if res.Duration == 0 {
		res.Duration = streamMax
	}
	return res, nil
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}

// parseRate reads ffprobe's "num/den" frame rates.
func parseRate(s string) float64 {
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		return parseFloat(s)
	}
	d := parseFloat(den)
	if d == 0 {
		return 0
	}
	return parseFloat(num) / d
}
