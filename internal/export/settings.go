package export

import (
	"errors"
	"fmt"
)

var ErrInvalidSettings = errors.New("invalid export settings")

type Format string

const (
	FormatMP4 Format = "Mp4"
	FormatGIF Format = "Gif"
)

// Compression is a named MP4 quality preset.
type Compression string

const (
	CompressionMaximum Compression = "Maximum"
	CompressionSocial  Compression = "Social"
	CompressionWeb     Compression = "Web"
	CompressionPotato  Compression = "Potato"
)

// BitsPerPixel is the encoder budget of a preset.
func (c Compression) BitsPerPixel() float64 {
	switch c {
	case CompressionMaximum:
		return 0.3
	case CompressionSocial:
		return 0.15
	case CompressionWeb:
		return 0.08
	case CompressionPotato:
		return 0.04
	}
	return 0
}

func ParseCompression(s string) (Compression, error) {
	c := Compression(s)
	if c.BitsPerPixel() == 0 {
		return "", fmt.Errorf("%w: unknown compression %q", ErrInvalidSettings, s)
	}
	return c, nil
}

// MaxResolutionSide bounds each side of an export or preview frame (8K).
const MaxResolutionSide = 7680

type Resolution struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

func (r Resolution) Pixels() float64 {
	return float64(r.X) * float64(r.Y)
}

func (r Resolution) Validate() error {
	if r.X <= 0 || r.Y <= 0 {
		return fmt.Errorf("%w: resolution must be positive", ErrInvalidSettings)
	}
	if r.X > MaxResolutionSide || r.Y > MaxResolutionSide {
		return fmt.Errorf("%w: resolution %dx%d exceeds %d per side", ErrInvalidSettings, r.X, r.Y, MaxResolutionSide)
	}
	return nil
}

type GifQuality struct {
	// Quality is 1-100; zero selects the encoder default of 90.
	Quality int  `json:"quality,omitempty"`
	Fast    bool `json:"fast,omitempty"`
}

// Settings configure one export. Compression and CustomBPP apply to MP4,
// Quality to GIF.
type Settings struct {
	Format         Format      `json:"format"`
	FPS            int         `json:"fps"`
	ResolutionBase Resolution  `json:"resolution_base"`
	Compression    Compression `json:"compression,omitempty"`
	CustomBPP      *float64    `json:"custom_bpp,omitempty"`
	Quality        *GifQuality `json:"quality,omitempty"`
}

// DefaultSettings is a 1080p30 social-quality MP4.
func DefaultSettings() Settings {
	return Settings{
		Format:         FormatMP4,
		FPS:            30,
		ResolutionBase: Resolution{X: 1920, Y: 1080},
		Compression:    CompressionSocial,
	}
}

// EffectiveBPP is the bits-per-pixel the MP4 encoder will target.
func (s Settings) EffectiveBPP() float64 {
	if s.CustomBPP != nil {
		return *s.CustomBPP
	}
	return s.Compression.BitsPerPixel()
}

func (s Settings) Validate() error {
	switch s.Format {
	case FormatMP4:
		if s.CustomBPP == nil && s.Compression.BitsPerPixel() == 0 {
			return fmt.Errorf("%w: unknown compression %q", ErrInvalidSettings, s.Compression)
		}
		if s.CustomBPP != nil && *s.CustomBPP <= 0 {
			return fmt.Errorf("%w: custom_bpp must be positive", ErrInvalidSettings)
		}
	case FormatGIF:
		if s.Quality != nil && (s.Quality.Quality < 0 || s.Quality.Quality > 100) {
			return fmt.Errorf("%w: gif quality must be 1-100, or 0 for the default", ErrInvalidSettings)
		}
	default:
		return fmt.Errorf("%w: unknown format %q", ErrInvalidSettings, s.Format)
	}
	if s.FPS <= 0 {
		return fmt.Errorf("%w: fps must be positive", ErrInvalidSettings)
	}
	return s.ResolutionBase.Validate()
}

// Extension is the output file extension for the format.
func (s Settings) Extension() string {
	if s.Format == FormatGIF {
		return ".gif"
	}
	return ".mp4"
}
