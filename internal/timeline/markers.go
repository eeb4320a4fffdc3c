package timeline

import (
	"encoding/json"
	"math"
	"sort"
)

type Position string

const (
	PositionLeft  Position = "left"
	PositionRight Position = "right"
)

type MarkerType string

const (
	MarkerSingle MarkerType = "single"
	MarkerDual   MarkerType = "dual"
)

type MarkerValueType string

const (
	ValueReset MarkerValueType = "reset"
	ValueTime  MarkerValueType = "time"
)

// MarkerValue is either a reset joint or an amount of missing source time.
type MarkerValue struct {
	Type MarkerValueType `json:"type"`
	Time float64         `json:"time,omitempty"`
}

func resetValue() *MarkerValue {
	return &MarkerValue{Type: ValueReset}
}

func timeValue(t float64) *MarkerValue {
	return &MarkerValue{Type: ValueTime, Time: t}
}

// Marker is a derived indicator drawn at a clip edge. Single markers carry
// Value; dual markers carry Left and Right, either of which may be nil.
type Marker struct {
	Type  MarkerType
	Value *MarkerValue
	Left  *MarkerValue
	Right *MarkerValue
}

func (m Marker) MarshalJSON() ([]byte, error) {
	if m.Type == MarkerSingle {
		return json.Marshal(struct {
			Type  MarkerType   `json:"type"`
			Value *MarkerValue `json:"value"`
		}{m.Type, m.Value})
	}
	return json.Marshal(struct {
		Type  MarkerType   `json:"type"`
		Left  *MarkerValue `json:"left"`
		Right *MarkerValue `json:"right"`
	}{m.Type, m.Left, m.Right})
}

func (m *Marker) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type  MarkerType   `json:"type"`
		Value *MarkerValue `json:"value"`
		Left  *MarkerValue `json:"left"`
		Right *MarkerValue `json:"right"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = Marker{Type: raw.Type, Value: raw.Value, Left: raw.Left, Right: raw.Right}
	return nil
}

// MissingTime returns the seconds of source content the marker reports.
func (m *Marker) MissingTime() float64 {
	if m == nil {
		return 0
	}
	var total float64
	for _, v := range []*MarkerValue{m.Value, m.Left, m.Right} {
		if v != nil && v.Type == ValueTime {
			total += v.Time
		}
	}
	return total
}

// mergeSpans sorts spans by start and coalesces overlapping or adjacent
// ranges. Empty spans are dropped.
func mergeSpans(spans []Span) []Span {
	in := make([]Span, 0, len(spans))
	for _, s := range spans {
		if s.End-s.Start > markerEpsilon {
			in = append(in, s)
		}
	}
	sort.Slice(in, func(i, j int) bool { return in[i].Start < in[j].Start })

	var out []Span
	for _, s := range in {
		if n := len(out); n > 0 && s.Start <= out[n-1].End+markerEpsilon {
			out[n-1].End = math.Max(out[n-1].End, s.End)
			continue
		}
		out = append(out, s)
	}
	return out
}

// sourceRange is a clip's range in recording time, clamped to the recording.
func sourceRange(s TimelineSegment, duration float64) Span {
	return Span{
		Start: math.Max(0, math.Min(s.Start, duration)),
		End:   math.Max(0, math.Min(s.End, duration)),
	}
}

// UncoveredRanges returns the parts of [0, duration) of one recording that no
// clip on the timeline references, in ascending order.
func UncoveredRanges(segments []TimelineSegment, recording int, duration float64) []Span {
	var ranges []Span
	for i, s := range segments {
		if s.RecordingIndex(i) == recording {
			ranges = append(ranges, sourceRange(s, duration))
		}
	}
	covered := mergeSpans(ranges)

	var missing []Span
	cursor := 0.0
	for _, c := range covered {
		if c.Start-cursor > markerEpsilon {
			missing = append(missing, Span{Start: cursor, End: c.Start})
		}
		cursor = math.Max(cursor, c.End)
	}
	if duration-cursor > markerEpsilon {
		missing = append(missing, Span{Start: cursor, End: duration})
	}
	return missing
}

// edgeShares distributes every uncovered interval of a recording to exactly
// one clip edge. The trailing interval belongs to the right edge of the clip
// reaching furthest into the recording (last in sequence on ties); every other
// interval belongs to the left edge of the first clip that starts where the
// interval ends.
type edgeShares struct {
	left  map[int]float64
	right map[int]float64
}

func shareMissing(segments []TimelineSegment, recording int, duration float64) edgeShares {
	shares := edgeShares{left: map[int]float64{}, right: map[int]float64{}}

	owner, maxEnd := -1, math.Inf(-1)
	for i, s := range segments {
		r := sourceRange(s, duration)
		if s.RecordingIndex(i) != recording || r.Length() <= markerEpsilon {
			continue
		}
		if r.End >= maxEnd-markerEpsilon {
			owner, maxEnd = i, math.Max(maxEnd, r.End)
		}
	}
	if owner < 0 {
		return shares
	}

	for _, gap := range UncoveredRanges(segments, recording, duration) {
		if gap.End >= duration-markerEpsilon {
			shares.right[owner] += gap.Length()
			continue
		}
		for i, s := range segments {
			if s.RecordingIndex(i) != recording {
				continue
			}
			if math.Abs(sourceRange(s, duration).Start-gap.End) <= markerEpsilon {
				shares.left[i] += gap.Length()
				break
			}
		}
	}
	return shares
}

// ComputeBoundaryMarker reports trimmed source content at one edge of clip i.
// A nil result means nothing is drawn at that edge.
func ComputeBoundaryMarker(segments []TimelineSegment, i int, pos Position, recordings []SourceRecording) *Marker {
	if i < 0 || i >= len(segments) {
		return nil
	}
	seg := segments[i]
	rec := seg.RecordingIndex(i)
	if rec < 0 || rec >= len(recordings) {
		return nil
	}
	duration := recordings[rec].Duration()

	switch pos {
	case PositionRight:
		return rightMarker(segments, i, rec, duration)
	case PositionLeft:
		return leftMarker(segments, i, rec, duration)
	}
	return nil
}

func rightMarker(segments []TimelineSegment, i, rec int, duration float64) *Marker {
	seg := segments[i]
	if duration-seg.End <= markerEpsilon {
		return nil
	}
	if i+1 < len(segments) {
		next := segments[i+1]
		// A chronological continuation draws the junction on its own left edge.
		if next.RecordingIndex(i+1) == rec && next.Start >= seg.End-markerEpsilon {
			return nil
		}
	}
	missing := shareMissing(segments, rec, duration).right[i]
	if missing <= markerEpsilon {
		return nil
	}
	return &Marker{Type: MarkerDual, Left: timeValue(missing)}
}

func leftMarker(segments []TimelineSegment, i, rec int, duration float64) *Marker {
	seg := segments[i]
	if i > 0 {
		prev := segments[i-1]
		if prev.RecordingIndex(i-1) == rec && prev.End <= seg.Start+markerEpsilon {
			if seg.Start-prev.End <= markerEpsilon {
				return &Marker{Type: MarkerSingle, Value: resetValue()}
			}
			missing := shareMissing(segments, rec, duration).left[i]
			if missing <= markerEpsilon {
				return nil
			}
			return &Marker{Type: MarkerSingle, Value: timeValue(missing)}
		}
	}
	if seg.Start <= markerEpsilon {
		return nil
	}
	missing := shareMissing(segments, rec, duration).left[i]
	if missing <= markerEpsilon {
		return nil
	}
	return &Marker{Type: MarkerDual, Right: timeValue(missing)}
}

// BoundaryBetween merges the right edge of clip i and the left edge of clip
// i+1 into the single marker drawn at their junction.
func BoundaryBetween(segments []TimelineSegment, i int, recordings []SourceRecording) *Marker {
	right := ComputeBoundaryMarker(segments, i, PositionRight, recordings)
	left := ComputeBoundaryMarker(segments, i+1, PositionLeft, recordings)
	if left != nil && left.Type == MarkerSingle {
		return left
	}
	if right == nil && left == nil {
		return nil
	}
	m := &Marker{Type: MarkerDual}
	if right != nil {
		m.Left = right.Left
	}
	if left != nil {
		m.Right = left.Right
	}
	return m
}

type EdgeMarkers struct {
	Index int     `json:"index"`
	Left  *Marker `json:"left"`
	Right *Marker `json:"right"`
}

// AllMarkers computes both edges of every clip.
func AllMarkers(segments []TimelineSegment, recordings []SourceRecording) []EdgeMarkers {
	out := make([]EdgeMarkers, len(segments))
	for i := range segments {
		out[i] = EdgeMarkers{
			Index: i,
			Left:  ComputeBoundaryMarker(segments, i, PositionLeft, recordings),
			Right: ComputeBoundaryMarker(segments, i, PositionRight, recordings),
		}
	}
	return out
}
