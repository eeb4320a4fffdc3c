package media

import (
	"context"
	"errors"
	"math"
	"testing"
)

const sampleFFprobe = `{
  "streams": [
    {"codec_type": "video", "codec_name": "h264", "width": 2560, "height": 1440, "avg_frame_rate": "60000/1001", "r_frame_rate": "60/1", "duration": "12.500000"},
    {"codec_type": "audio", "codec_name": "aac", "sample_rate": "48000", "duration": "12.533333"}
  ],
  "format": {"duration": "12.533333", "start_time": "0.021000", "bit_rate": "8123456"}
}`

func TestParseFFprobe(t *testing.T) {
	res, err := parseFFprobe([]byte(sampleFFprobe))
	if err != nil {
		t.Fatalf("parseFFprobe() error = %v", err)
	}
	if res.Duration != 12.533333 {
		t.Errorf("Duration = %v", res.Duration)
	}
	if res.StartTime == nil || *res.StartTime != 0.021 {
		t.Errorf("StartTime = %v", res.StartTime)
	}
	if res.Codec != "h264" || res.Width != 2560 || res.Height != 1440 {
		t.Errorf("video = %s %dx%d", res.Codec, res.Width, res.Height)
	}
	if math.Abs(res.FrameRate-59.94) > 0.01 {
		t.Errorf("FrameRate = %v", res.FrameRate)
	}
	if res.AudioCodec != "aac" || res.AudioSample != 48000 || res.Bitrate != 8123456 {
		t.Errorf("audio = %s %d bitrate %d", res.AudioCodec, res.AudioSample, res.Bitrate)
	}
	if !res.HasVideo() || !res.HasAudio() {
		t.Errorf("HasVideo/HasAudio = %v/%v", res.HasVideo(), res.HasAudio())
	}
}

func TestParseFFprobe_StreamDurationFallback(t *testing.T) {
	res, err := parseFFprobe([]byte(`{"streams":[{"codec_type":"audio","codec_name":"opus","duration":"3.5"}],"format":{}}`))
	if err != nil {
		t.Fatalf("parseFFprobe() error = %v", err)
	}
	if res.Duration != 3.5 || res.StartTime != nil || res.HasVideo() {
		t.Fatalf("res = %+v", res)
	}
}

func TestParseFFprobe_BadJSON(t *testing.T) {
	if _, err := parseFFprobe([]byte("not json")); err == nil {
		t.Fatal("expected error")
	}
}

func TestParseRate(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"30/1", 30},
		{"0/0", 0},
		{"25", 25},
		{"", 0},
	}
	for _, tc := range tests {
		if got := parseRate(tc.in); got != tc.want {
			t.Errorf("parseRate(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestBuildRecording(t *testing.T) {
	p := NewStubProber(nil, map[string]float64{
		"/rec/display.mp4": 30,
		"/rec/camera.mp4":  30.2,
		"/rec/mic.ogg":     29.9,
	})

	rec, err := BuildRecording(context.Background(), p, RecordingFiles{
		Display: "/rec/display.mp4",
		Camera:  "/rec/camera.mp4",
		Mic:     "/rec/mic.ogg",
	})
	if err != nil {
		t.Fatalf("BuildRecording() error = %v", err)
	}
	if rec.Display.Path != "/rec/display.mp4" || rec.Camera == nil || rec.Mic == nil || rec.SystemAudio != nil {
		t.Fatalf("rec = %+v", rec)
	}
	if rec.Duration() != 30.2 {
		t.Fatalf("Duration() = %v, want the longest track 30.2", rec.Duration())
	}
}

func TestBuildRecording_Errors(t *testing.T) {
	p := NewStubProber(nil, map[string]float64{"/rec/display.mp4": 30, "/rec/empty.mp4": 0})
	ctx := context.Background()

	if _, err := BuildRecording(ctx, p, RecordingFiles{}); err == nil {
		t.Fatal("expected error without display file")
	}
	if _, err := BuildRecording(ctx, p, RecordingFiles{Display: "/rec/display.mp4", Camera: "/missing.mp4"}); !errors.Is(err, ErrProbeUnavailable) {
		t.Fatalf("error = %v, want ErrProbeUnavailable", err)
	}
	if _, err := BuildRecording(ctx, p, RecordingFiles{Display: "/rec/empty.mp4"}); err == nil {
		t.Fatal("expected error for zero duration")
	}
}

func TestNewFFprobe_Missing(t *testing.T) {
	if _, err := NewFFprobe("/nonexistent/ffprobe-999", nil); !errors.Is(err, ErrProbeUnavailable) {
		t.Fatalf("NewFFprobe() error = %v, want ErrProbeUnavailable", err)
	}
}
