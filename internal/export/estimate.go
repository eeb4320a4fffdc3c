package export

import "math"

const (
	audioBitrate      = 192_000.0
	encoderEfficiency = 0.5
	gifEfficiency     = 0.07
)

type Estimates struct {
	DurationSeconds      float64 `json:"duration_seconds"`
	EstimatedTimeSeconds float64 `json:"estimated_time_seconds"`
	EstimatedSizeMB      float64 `json:"estimated_size_mb"`
}

// TotalFrames is the number of frames an export of duration seconds renders.
func TotalFrames(duration float64, fps int) int {
	if duration <= 0 || fps <= 0 {
		return 0
	}
	return int(math.Ceil(duration * float64(fps)))
}

// effectiveFPS discounts frame rates above 30, which compress better.
func effectiveFPS(fps float64) float64 {
	return math.Max(fps-30, 0)*0.6 + math.Min(fps, 30)
}

func mp4SizeMB(pixels, bpp, fps, duration float64) float64 {
	video := pixels * bpp * effectiveFPS(fps)
	return (video + audioBitrate) * encoderEfficiency * duration / (8 * 1024 * 1024)
}

// Estimate predicts output size and render time for an export of a timeline
// lasting duration seconds.
func Estimate(duration float64, s Settings) Estimates {
	pixels := s.ResolutionBase.Pixels()
	frames := float64(TotalFrames(duration, s.FPS))
	est := Estimates{DurationSeconds: duration}

	switch s.Format {
	case FormatGIF:
		est.EstimatedSizeMB = pixels * 0.5 * gifEfficiency * frames / (1024 * 1024)
		rate := 2.0
		switch {
		case s.ResolutionBase.X <= 1280 && s.ResolutionBase.Y <= 720:
			rate = 10
		case s.ResolutionBase.X <= 1920 && s.ResolutionBase.Y <= 1080:
			rate = 5
		}
		est.EstimatedTimeSeconds = frames / rate
	default:
		est.EstimatedSizeMB = mp4SizeMB(pixels, s.EffectiveBPP(), float64(s.FPS), duration)
		rate := 290.0
		if s.ResolutionBase.X >= 3840 {
			rate = 175
		}
		est.EstimatedTimeSeconds = frames / rate
	}
	return est
}

// BPPToJPEGQuality maps an MP4 bits-per-pixel budget onto the JPEG quality
// used for preview frames.
func BPPToJPEGQuality(bpp float64) int {
	q := (bpp-0.04)/(0.3-0.04)*(95-40) + 40
	return int(math.Max(40, math.Min(95, q)))
}
