package timeline

import "math"

// Handle identifies the part of a segment a gesture grabbed.
type Handle string

const (
	HandleBody  Handle = "body"
	HandleStart Handle = "start"
	HandleEnd   Handle = "end"
)

func ParseHandle(s string) (Handle, error) {
	switch h := Handle(s); h {
	case HandleBody, HandleStart, HandleEnd:
		return h, nil
	}
	return "", ErrUnsupportedGesture
}

type GestureState int

const (
	GestureIdle GestureState = iota
	GestureMovePending
	GestureMoving
)

func (s GestureState) String() string {
	switch s {
	case GestureMovePending:
		return "move_pending"
	case GestureMoving:
		return "moving"
	}
	return "idle"
}

// Gesture is one pointer interaction with a segment, from pointer-down to
// release. Bounds are fixed when the gesture begins.
type Gesture struct {
	store   *Store
	track   TrackKind
	index   int
	handle  Handle
	originX float64
	// seconds of edited value per pixel of pointer travel
	scale     float64
	threshold float64
	initial   float64
	min, max  float64
	state     GestureState
	resume    func(*Timeline)
}

func (g *Gesture) State() GestureState { return g.state }

// Bounds returns the range the edited value is clamped into.
func (g *Gesture) Bounds() (float64, float64) { return g.min, g.max }

// Move tracks the pointer. Nothing changes until the pointer has travelled
// past the drag threshold.
func (g *Gesture) Move(pointerX float64) error {
	if g.state == GestureIdle {
		return ErrGestureFinished
	}
	dx := pointerX - g.originX
	if g.state == GestureMovePending {
		if math.Abs(dx) <= g.threshold {
			return nil
		}
		g.state = GestureMoving
	}
	g.store.applyGesture(g, clamp(g.initial+dx*g.scale, g.min, g.max))
	return nil
}

// End releases the pointer. A gesture that never moved is a selection click.
func (g *Gesture) End(mods Modifiers) error {
	if g.state == GestureIdle {
		return ErrGestureFinished
	}
	moved := g.state == GestureMoving
	g.finish()
	if !moved {
		g.store.Select(g.track, g.index, mods)
	}
	return nil
}

// Abort finalizes the gesture the way a release does, without selecting.
// It is safe to call after End.
func (g *Gesture) Abort() {
	if g.state == GestureIdle {
		return
	}
	g.finish()
}

func (g *Gesture) finish() {
	moved := g.state == GestureMoving
	g.state = GestureIdle
	g.resume(&g.store.project.Timeline)
	if moved {
		g.store.notify(Change{Kind: ChangeSegments, Track: g.track})
	}
}

// BeginGesture starts a drag on segment index of track. pixelsPerSecond is the
// current zoom level of the track view.
func (s *Store) BeginGesture(track TrackKind, index int, handle Handle, pointerX, pixelsPerSecond float64) (*Gesture, error) {
	if s.mode == ModeSplit {
		return nil, ErrUnsupportedGesture
	}
	initial, lo, hi, err := s.gestureBounds(track, index, handle)
	if err != nil {
		return nil, err
	}
	if pixelsPerSecond <= 0 {
		pixelsPerSecond = 1
	}
	scale := 1 / pixelsPerSecond
	if track == TrackClip {
		scale *= s.project.Timeline.Segments[index].scale()
	}

	g := &Gesture{
		store:     s,
		track:     track,
		index:     index,
		handle:    handle,
		originX:   pointerX,
		scale:     scale,
		threshold: s.opts.DragThreshold,
		initial:   initial,
		min:       lo,
		max:       hi,
		state:     GestureMovePending,
		resume:    s.history.Pause(s.project.Timeline.Clone()),
	}
	return g, nil
}

// gestureBounds returns the current value of the grabbed edge and the range
// it may move within.
func (s *Store) gestureBounds(track TrackKind, index int, handle Handle) (initial, lo, hi float64, err error) {
	if track == TrackClip {
		return s.clipBounds(index, handle)
	}

	tl := &s.project.Timeline
	tr, err := tl.annotations(track)
	if err != nil {
		return 0, 0, 0, err
	}
	if index < 0 || index >= tr.Len() {
		return 0, 0, 0, ErrIndexOutOfRange
	}
	spans := tr.Spans()
	span := spans[index]

	prevEnd := 0.0
	if index > 0 {
		prevEnd = spans[index-1].End
	}
	nextStart := math.Max(tl.Duration(), span.End)
	if index+1 < len(spans) {
		nextStart = spans[index+1].Start
	}
	minLen := s.opts.MinSegmentDuration

	switch handle {
	case HandleBody:
		initial, lo, hi = span.Start, prevEnd, nextStart-span.Length()
	case HandleStart:
		initial, lo, hi = span.Start, prevEnd, span.End-minLen
	case HandleEnd:
		initial, lo, hi = span.End, span.Start+minLen, nextStart
	default:
		return 0, 0, 0, ErrUnsupportedGesture
	}
	if hi < lo {
		hi = lo
	}
	return initial, lo, hi, nil
}

// clipBounds works in the clip's source time. A clip may not outgrow its
// recording, the space the other clips leave on the output timeline, or a
// chronologically adjacent clip of the same recording.
func (s *Store) clipBounds(index int, handle Handle) (initial, lo, hi float64, err error) {
	segs := s.project.Timeline.Segments
	if index < 0 || index >= len(segs) {
		return 0, 0, 0, ErrIndexOutOfRange
	}
	seg := segs[index]
	ts := seg.scale()
	rec := seg.RecordingIndex(index)

	recDuration, ok := s.project.recordingDuration(rec)
	if !ok {
		recDuration = seg.End
	}
	others := s.project.Timeline.Duration() - seg.Duration()
	available := s.project.RecordingsDuration() - others
	minLen := s.opts.MinSegmentDuration * ts

	switch handle {
	case HandleStart:
		initial = seg.Start
		lo = math.Max(0, seg.End-available*ts)
		hi = seg.End - minLen
		if index > 0 {
			prev := segs[index-1]
			if prev.RecordingIndex(index-1) == rec && prev.End <= seg.Start+markerEpsilon {
				lo = math.Max(lo, prev.End)
			}
		}
	case HandleEnd:
		initial = seg.End
		lo = seg.Start + minLen
		hi = math.Min(recDuration, seg.Start+available*ts)
		if index+1 < len(segs) {
			next := segs[index+1]
			if next.RecordingIndex(index+1) == rec && next.Start >= seg.End-markerEpsilon {
				hi = math.Min(hi, next.Start)
			}
		}
	default:
		return 0, 0, 0, ErrUnsupportedGesture
	}
	if hi < lo {
		hi = lo
	}
	return initial, lo, hi, nil
}

func (s *Store) applyGesture(g *Gesture, value float64) {
	if g.track == TrackClip {
		if g.index >= len(s.project.Timeline.Segments) {
			return
		}
		seg := &s.project.Timeline.Segments[g.index]
		if g.handle == HandleStart {
			seg.Start = value
		} else {
			seg.End = value
		}
		return
	}

	a, err := s.project.Timeline.Annotation(g.track, g.index)
	if err != nil {
		return
	}
	span := a.Bounds()
	switch g.handle {
	case HandleBody:
		length := span.Length()
		span.Start, span.End = value, value+length
	case HandleStart:
		span.Start = value
	case HandleEnd:
		span.End = value
	}
}
