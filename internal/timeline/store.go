package timeline

import (
	"errors"
	"slices"
)

var (
	ErrOverlap        = errors.New("segment overlaps an existing segment")
	ErrEmptyRecording = errors.New("recording has no duration")
)

type ChangeKind string

const (
	ChangeSegments  ChangeKind = "segments"
	ChangeSelection ChangeKind = "selection"
	ChangeHistory   ChangeKind = "history"
)

// Change describes a mutation published to subscribers.
type Change struct {
	Kind  ChangeKind `json:"kind"`
	Track TrackKind  `json:"track,omitempty"`
}

type Mode string

const (
	ModeSelect Mode = "select"
	ModeSplit  Mode = "split"
)

// Options tune editing behaviour.
type Options struct {
	// DragThreshold is the pointer travel in pixels that turns a press into a drag.
	DragThreshold float64
	// PlacementGrid aligns auto-placed segments to multiples of this many
	// seconds. Zero disables snapping.
	PlacementGrid      float64
	MinSegmentDuration float64
	DefaultLengths     map[TrackKind]float64
	HistoryLimit       int
}

func DefaultOptions() Options {
	return Options{
		DragThreshold:      3,
		MinSegmentDuration: 0.1,
		DefaultLengths: map[TrackKind]float64{
			TrackZoom:     1,
			TrackCaption:  2,
			TrackKeyboard: 1,
			TrackMask:     2,
			TrackText:     2,
			TrackLayout:   1,
			TrackScene:    1,
			TrackLayout3D: 1,
		},
		HistoryLimit: defaultHistoryLimit,
	}
}

type subscriber struct {
	id int
	fn func(Change)
}

// Store applies edits to a project's timeline in place and publishes every
// change. It is not safe for concurrent use.
type Store struct {
	project   *Project
	opts      Options
	history   *History
	selection Selection
	mode      Mode
	subs      []subscriber
	nextSub   int
}

func NewStore(project *Project, opts Options) *Store {
	defaults := DefaultOptions()
	if opts.DefaultLengths == nil {
		opts.DefaultLengths = defaults.DefaultLengths
	}
	if opts.MinSegmentDuration <= 0 {
		opts.MinSegmentDuration = defaults.MinSegmentDuration
	}
	if opts.DragThreshold < 0 {
		opts.DragThreshold = 0
	}
	return &Store{
		project: project,
		opts:    opts,
		history: NewHistory(opts.HistoryLimit),
		mode:    ModeSelect,
	}
}

func (s *Store) Project() *Project { return s.project }

func (s *Store) History() *History { return s.history }

// Subscribe registers fn for every change. The returned func unsubscribes.
func (s *Store) Subscribe(fn func(Change)) func() {
	id := s.nextSub
	s.nextSub++
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	return func() {
		s.subs = slices.DeleteFunc(s.subs, func(sub subscriber) bool { return sub.id == id })
	}
}

func (s *Store) notify(c Change) {
	for _, sub := range slices.Clone(s.subs) {
		sub.fn(c)
	}
}

func (s *Store) Mode() Mode { return s.mode }

func (s *Store) SetMode(m Mode) {
	s.mode = m
}

// DefaultLength is the length given to auto-placed segments of kind.
func (s *Store) DefaultLength(kind TrackKind) float64 {
	if l, ok := s.opts.DefaultLengths[kind]; ok && l > 0 {
		return l
	}
	return 1
}

// mutate runs fn and records one history entry for it. fn must validate its
// input before touching the timeline.
func (s *Store) mutate(track TrackKind, shiftsIndices bool, fn func() error) error {
	before := s.project.Timeline.Clone()
	if err := fn(); err != nil {
		return err
	}
	s.history.Push(before)
	if shiftsIndices && s.selection.invalidate(track) {
		s.notify(Change{Kind: ChangeSelection, Track: track})
	}
	s.notify(Change{Kind: ChangeSegments, Track: track})
	return nil
}

// pinRecordings makes every clip's recording reference explicit so that
// inserting or removing clips does not change which recording the defaulted
// ones point at.
func (s *Store) pinRecordings() {
	for i := range s.project.Timeline.Segments {
		seg := &s.project.Timeline.Segments[i]
		if seg.RecordingSegment == nil {
			seg.RecordingSegment = IntPtr(i)
		}
	}
}

// Gaps lists the free ranges of an annotation track that fit a default-length
// segment.
func (s *Store) Gaps(kind TrackKind) ([]Span, error) {
	tl := &s.project.Timeline
	tr, err := tl.annotations(kind)
	if err != nil {
		return nil, err
	}
	return FindGaps(tr.Spans(), s.DefaultLength(kind), tl.Duration()), nil
}

// Place auto-places a default-length segment of kind centred on at.
func (s *Store) Place(kind TrackKind, at float64) (int, error) {
	tl := &s.project.Timeline
	tr, err := tl.annotations(kind)
	if err != nil {
		return 0, err
	}
	span, ok := FindSnappedPlacement(tr.Spans(), at, s.DefaultLength(kind), tl.Duration(), s.opts.PlacementGrid)
	if !ok {
		return 0, ErrNoRoom
	}
	a, err := NewAnnotation(kind, span)
	if err != nil {
		return 0, err
	}
	return s.Insert(a)
}

// Insert adds an annotation to its track at its sorted position.
func (s *Store) Insert(a Annotation) (int, error) {
	kind := a.Kind()
	tr, err := s.project.Timeline.annotations(kind)
	if err != nil {
		return 0, err
	}
	b := *a.Bounds()
	for _, existing := range tr.Spans() {
		if existing.Overlaps(b) {
			return 0, ErrOverlap
		}
	}

	var idx int
	err = s.mutate(kind, true, func() error {
		idx, err = tr.Insert(a)
		return err
	})
	return idx, err
}

// InsertClip inserts a clip at position index of the clip track.
func (s *Store) InsertClip(index int, seg TimelineSegment) error {
	if index < 0 || index > len(s.project.Timeline.Segments) {
		return ErrIndexOutOfRange
	}
	return s.mutate(TrackClip, true, func() error {
		s.pinRecordings()
		if seg.RecordingSegment == nil {
			seg.RecordingSegment = IntPtr(index)
		}
		s.project.Timeline.Segments = slices.Insert(s.project.Timeline.Segments, index, seg.clone())
		return nil
	})
}

// AddRecording appends rec to the project and a full-length clip of it to
// the end of the clip track. It returns the new recording's index.
func (s *Store) AddRecording(rec SourceRecording) (int, error) {
	if rec.Duration() <= 0 {
		return 0, ErrEmptyRecording
	}
	idx := len(s.project.Recordings)
	s.project.Recordings = append(s.project.Recordings, rec)
	err := s.InsertClip(len(s.project.Timeline.Segments), TimelineSegment{
		Start:            0,
		End:              rec.Duration(),
		Timescale:        1,
		RecordingSegment: IntPtr(idx),
	})
	if err != nil {
		s.project.Recordings = s.project.Recordings[:idx]
		return 0, err
	}
	return idx, nil
}

func (s *Store) Delete(kind TrackKind, index int) error {
	n, err := s.project.Timeline.TrackLen(kind)
	if err != nil {
		return err
	}
	if index < 0 || index >= n {
		return ErrIndexOutOfRange
	}
	return s.mutate(kind, true, func() error {
		if kind == TrackClip {
			s.pinRecordings()
			s.project.Timeline.Segments = slices.Delete(s.project.Timeline.Segments, index, index+1)
			return nil
		}
		tr, _ := s.project.Timeline.annotations(kind)
		tr.Delete(index)
		return nil
	})
}

// Split cuts segment index at fraction f of its length. The tail becomes a
// new segment directly after the original and its index is returned.
func (s *Store) Split(kind TrackKind, index int, fraction float64) (int, error) {
	if !(fraction > 0 && fraction < 1) {
		return 0, ErrInvalidSplit
	}
	n, err := s.project.Timeline.TrackLen(kind)
	if err != nil {
		return 0, err
	}
	if index < 0 || index >= n {
		return 0, ErrIndexOutOfRange
	}

	if kind == TrackClip {
		err = s.mutate(kind, true, func() error {
			s.pinRecordings()
			segs := s.project.Timeline.Segments
			head := &segs[index]
			tail := head.clone()
			tail.Start = head.Start + fraction*(head.End-head.Start)
			head.End = tail.Start
			s.project.Timeline.Segments = slices.Insert(segs, index+1, tail)
			return nil
		})
		return index + 1, err
	}

	tr, _ := s.project.Timeline.annotations(kind)
	head := tr.At(index).Bounds()
	splitAt := head.Start + fraction*head.Length()
	tail := tr.At(index).Clone()
	tail.Bounds().Start = splitAt

	var idx int
	err = s.mutate(kind, true, func() error {
		tr.At(index).Bounds().End = splitAt
		idx, err = tr.Insert(tail)
		return err
	})
	return idx, err
}

// Click handles a click on a segment. In split mode it splits at fraction,
// otherwise it updates the selection.
func (s *Store) Click(track TrackKind, index int, fraction float64, mods Modifiers) error {
	if s.mode == ModeSplit {
		_, err := s.Split(track, index, fraction)
		return err
	}
	n, err := s.project.Timeline.TrackLen(track)
	if err != nil {
		return err
	}
	if index < 0 || index >= n {
		return ErrIndexOutOfRange
	}
	s.Select(track, index, mods)
	return nil
}

// SetBounds moves one edge of a segment as a single drag would, clamped to
// the same bounds, and returns the resulting span.
func (s *Store) SetBounds(track TrackKind, index int, handle Handle, value float64) (Span, error) {
	_, lo, hi, err := s.gestureBounds(track, index, handle)
	if err != nil {
		return Span{}, err
	}
	g := &Gesture{
		store:  s,
		track:  track,
		index:  index,
		handle: handle,
		state:  GestureMoving,
		resume: s.history.Pause(s.project.Timeline.Clone()),
	}
	s.applyGesture(g, clamp(value, lo, hi))
	g.finish()

	if track == TrackClip {
		seg := s.project.Timeline.Segments[index]
		return Span{Start: seg.Start, End: seg.End}, nil
	}
	a, err := s.project.Timeline.Annotation(track, index)
	if err != nil {
		return Span{}, err
	}
	return *a.Bounds(), nil
}

func (s *Store) Selection() Selection {
	return s.selection.clone()
}

func (s *Store) Select(track TrackKind, index int, mods Modifiers) {
	s.selection.Click(track, index, mods)
	s.notify(Change{Kind: ChangeSelection, Track: track})
}

func (s *Store) ClearSelection() {
	if s.selection.Empty() {
		return
	}
	track := s.selection.Track
	s.selection.Clear()
	s.notify(Change{Kind: ChangeSelection, Track: track})
}

func (s *Store) Undo() bool {
	prev, ok := s.history.Undo(&s.project.Timeline)
	if !ok {
		return false
	}
	s.project.Timeline = prev
	s.selection.Clear()
	s.notify(Change{Kind: ChangeHistory})
	return true
}

func (s *Store) Redo() bool {
	next, ok := s.history.Redo(&s.project.Timeline)
	if !ok {
		return false
	}
	s.project.Timeline = next
	s.selection.Clear()
	s.notify(Change{Kind: ChangeHistory})
	return true
}

// Markers computes the boundary markers of every clip.
func (s *Store) Markers() []EdgeMarkers {
	return AllMarkers(s.project.Timeline.Segments, s.project.Recordings)
}
