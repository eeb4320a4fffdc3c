// Package timeline implements the editor's timeline segment model: clip and
// annotation tracks, boundary markers for trimmed source content, gap-based
// auto-placement, and the drag/resize/split gesture state machine.
package timeline

import (
	"errors"
	"math"
	"slices"
)

// markerEpsilon is the tolerance used when comparing timeline seconds.
const markerEpsilon = 1e-6

var (
	ErrIndexOutOfRange    = errors.New("segment index out of range")
	ErrUnknownTrack       = errors.New("unknown track kind")
	ErrUnsupportedGesture = errors.New("gesture not supported on this track")
	ErrInvalidSplit       = errors.New("split position must fall strictly inside the segment")
	ErrNoRoom             = errors.New("no gap large enough for a new segment")
	ErrGestureFinished    = errors.New("gesture already finished")
)

type TrackKind string

const (
	TrackClip     TrackKind = "clip"
	TrackZoom     TrackKind = "zoom"
	TrackCaption  TrackKind = "caption"
	TrackKeyboard TrackKind = "keyboard"
	TrackMask     TrackKind = "mask"
	TrackText     TrackKind = "text"
	TrackLayout   TrackKind = "layout"
	TrackScene    TrackKind = "scene"
	TrackLayout3D TrackKind = "layout3d"
)

// AnnotationKinds lists every track whose segments live directly in output time.
var AnnotationKinds = []TrackKind{
	TrackZoom, TrackCaption, TrackKeyboard, TrackMask,
	TrackText, TrackLayout, TrackScene, TrackLayout3D,
}

func ParseTrackKind(s string) (TrackKind, error) {
	k := TrackKind(s)
	if k == TrackClip {
		return k, nil
	}
	for _, a := range AnnotationKinds {
		if a == k {
			return k, nil
		}
	}
	return "", ErrUnknownTrack
}

// Span is a half-open interval [Start, End) in seconds.
type Span struct {
	Start float64 `json:"start" yaml:"start"`
	End   float64 `json:"end" yaml:"end"`
}

func (s Span) Length() float64 {
	return s.End - s.Start
}

// Overlaps reports whether the two half-open intervals share any time.
func (s Span) Overlaps(o Span) bool {
	return s.Start < o.End-markerEpsilon && o.Start < s.End-markerEpsilon
}

func (s Span) Contains(o Span) bool {
	return o.Start >= s.Start-markerEpsilon && o.End <= s.End+markerEpsilon
}

// Bounds gives in-place access to an embedded span.
func (s *Span) Bounds() *Span {
	return s
}

type TrackMeta struct {
	Path      string   `json:"path,omitempty" yaml:"path,omitempty"`
	Duration  float64  `json:"duration" yaml:"duration"`
	StartTime *float64 `json:"start_time,omitempty" yaml:"start_time,omitempty"`
}

// SourceRecording is one ingested capture session. Its component tracks are
// captured independently, so their durations and start times can differ.
type SourceRecording struct {
	Display     TrackMeta  `json:"display" yaml:"display"`
	Camera      *TrackMeta `json:"camera,omitempty" yaml:"camera,omitempty"`
	Mic         *TrackMeta `json:"mic,omitempty" yaml:"mic,omitempty"`
	SystemAudio *TrackMeta `json:"system_audio,omitempty" yaml:"system_audio,omitempty"`
}

// Duration returns the length of the longest component track.
func (r SourceRecording) Duration() float64 {
	d := r.Display.Duration
	for _, t := range []*TrackMeta{r.Camera, r.Mic, r.SystemAudio} {
		if t != nil && t.Duration > d {
			d = t.Duration
		}
	}
	return d
}

// LatestStartTime returns the latest capture start across present tracks.
// ok is false when any present track has no recorded start time.
func (r SourceRecording) LatestStartTime() (float64, bool) {
	if r.Display.StartTime == nil {
		return 0, false
	}
	v := *r.Display.StartTime
	for _, t := range []*TrackMeta{r.Camera, r.Mic, r.SystemAudio} {
		if t == nil {
			continue
		}
		if t.StartTime == nil {
			return 0, false
		}
		v = math.Max(v, *t.StartTime)
	}
	return v, true
}

// TimelineSegment is a clip: a range of one source recording, in the
// recording's own time base, played back at Timescale.
type TimelineSegment struct {
	Start            float64 `json:"start" yaml:"start"`
	End              float64 `json:"end" yaml:"end"`
	Timescale        float64 `json:"timescale" yaml:"timescale"`
	RecordingSegment *int    `json:"recordingSegment,omitempty" yaml:"recording_segment,omitempty"`
}

func (s TimelineSegment) scale() float64 {
	if s.Timescale <= 0 {
		return 1
	}
	return s.Timescale
}

// Duration is the segment's length on the output timeline.
func (s TimelineSegment) Duration() float64 {
	return (s.End - s.Start) / s.scale()
}

// RecordingIndex resolves the recording a clip at sequence index i refers to.
func (s TimelineSegment) RecordingIndex(i int) int {
	if s.RecordingSegment != nil {
		return *s.RecordingSegment
	}
	return i
}

func (s TimelineSegment) clone() TimelineSegment {
	c := s
	if s.RecordingSegment != nil {
		idx := *s.RecordingSegment
		c.RecordingSegment = &idx
	}
	return c
}

// IntPtr is a convenience for building clips with an explicit recording index.
func IntPtr(v int) *int {
	return &v
}

// Timeline holds every track of a project. Slices are mutated in place by
// Store and are the persisted state of the project.
type Timeline struct {
	Segments         []TimelineSegment `json:"segments" yaml:"segments"`
	ZoomSegments     []ZoomSegment     `json:"zoomSegments,omitempty" yaml:"zoom_segments,omitempty"`
	CaptionSegments  []CaptionSegment  `json:"captionSegments,omitempty" yaml:"caption_segments,omitempty"`
	KeyboardSegments []KeyboardSegment `json:"keyboardSegments,omitempty" yaml:"keyboard_segments,omitempty"`
	MaskSegments     []MaskSegment     `json:"maskSegments,omitempty" yaml:"mask_segments,omitempty"`
	TextSegments     []TextSegment     `json:"textSegments,omitempty" yaml:"text_segments,omitempty"`
	LayoutSegments   []LayoutSegment   `json:"layoutSegments,omitempty" yaml:"layout_segments,omitempty"`
	SceneSegments    []SceneSegment    `json:"sceneSegments,omitempty" yaml:"scene_segments,omitempty"`
	Layout3DSegments []Layout3DSegment `json:"layout3dSegments,omitempty" yaml:"layout3d_segments,omitempty"`
}

// Duration is the total output length of the clip track.
func (t *Timeline) Duration() float64 {
	var d float64
	for _, s := range t.Segments {
		d += s.Duration()
	}
	return d
}

// OutputStart returns the output time at which clip i begins.
func (t *Timeline) OutputStart(i int) float64 {
	var d float64
	for j := 0; j < i && j < len(t.Segments); j++ {
		d += t.Segments[j].Duration()
	}
	return d
}

// RecordingTime maps an output time to the recording and source time that
// play at that instant.
func (t *Timeline) RecordingTime(tick float64) (recording int, sourceTime float64, ok bool) {
	var accum float64
	for i, s := range t.Segments {
		d := s.Duration()
		if tick < accum+d {
			return s.RecordingIndex(i), s.Start + (tick-accum)*s.scale(), true
		}
		accum += d
	}
	return 0, 0, false
}

// Clone returns a deep copy, used for history snapshots.
func (t *Timeline) Clone() Timeline {
	c := Timeline{
		Segments:         slices.Clone(t.Segments),
		ZoomSegments:     slices.Clone(t.ZoomSegments),
		CaptionSegments:  slices.Clone(t.CaptionSegments),
		KeyboardSegments: slices.Clone(t.KeyboardSegments),
		MaskSegments:     slices.Clone(t.MaskSegments),
		TextSegments:     slices.Clone(t.TextSegments),
		LayoutSegments:   slices.Clone(t.LayoutSegments),
		SceneSegments:    slices.Clone(t.SceneSegments),
		Layout3DSegments: slices.Clone(t.Layout3DSegments),
	}
	for i, s := range t.Segments {
		c.Segments[i] = s.clone()
	}
	for i := range c.KeyboardSegments {
		c.KeyboardSegments[i].Keys = slices.Clone(c.KeyboardSegments[i].Keys)
	}
	return c
}

// Project is the editor state for one set of recordings.
type Project struct {
	Name       string            `json:"name" yaml:"name"`
	Recordings []SourceRecording `json:"recordings" yaml:"recordings"`
	Timeline   Timeline          `json:"timeline" yaml:"timeline"`
}

// RecordingsDuration is the summed length of every recording; the clip track
// can never grow past it.
func (p *Project) RecordingsDuration() float64 {
	var d float64
	for _, r := range p.Recordings {
		d += r.Duration()
	}
	return d
}

func (p *Project) recordingDuration(idx int) (float64, bool) {
	if idx < 0 || idx >= len(p.Recordings) {
		return 0, false
	}
	return p.Recordings[idx].Duration(), true
}

// DefaultTimeline builds one full-length clip per recording.
func DefaultTimeline(recordings []SourceRecording) Timeline {
	t := Timeline{Segments: make([]TimelineSegment, 0, len(recordings))}
	for i, r := range recordings {
		t.Segments = append(t.Segments, TimelineSegment{
			Start:            0,
			End:              r.Duration(),
			Timescale:        1,
			RecordingSegment: IntPtr(i),
		})
	}
	return t
}
