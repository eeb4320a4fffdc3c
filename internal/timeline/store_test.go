package timeline

import (
	"errors"
	"testing"
)

func newStore(durations ...float64) *Store {
	recs := recordings(durations...)
	return NewStore(&Project{Recordings: recs, Timeline: DefaultTimeline(recs)}, DefaultOptions())
}

func TestStorePlace(t *testing.T) {
	s := newStore(20)

	idx, err := s.Place(TrackCaption, 7)
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	if got := s.Project().Timeline.CaptionSegments[idx].Span; got != (Span{Start: 6, End: 8}) {
		t.Fatalf("first caption = %+v, want {6 8}", got)
	}

	idx, err = s.Place(TrackCaption, 7)
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	if idx != 1 {
		t.Fatalf("second caption index = %d, want 1", idx)
	}
	if got := s.Project().Timeline.CaptionSegments[1].Span; got != (Span{Start: 8, End: 10}) {
		t.Fatalf("second caption = %+v, want {8 10}", got)
	}

	idx, err = s.Place(TrackCaption, 0)
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	if idx != 0 {
		t.Fatalf("leading caption index = %d, want 0 (track stays sorted)", idx)
	}
}

func TestStorePlaceNoRoom(t *testing.T) {
	s := newStore(1)

	if _, err := s.Place(TrackMask, 0.5); !errors.Is(err, ErrNoRoom) {
		t.Fatalf("err = %v, want ErrNoRoom", err)
	}
	if s.History().CanUndo() {
		t.Fatal("failed placement must not create history")
	}
}

func TestStorePlaceSnapsToGrid(t *testing.T) {
	recs := recordings(20)
	opts := DefaultOptions()
	opts.PlacementGrid = 1
	opts.DefaultLengths = map[TrackKind]float64{TrackText: 3}
	s := NewStore(&Project{Recordings: recs, Timeline: DefaultTimeline(recs)}, opts)
	s.Project().Timeline.TextSegments = []TextSegment{
		{Span: Span{Start: 0, End: 5}},
		{Span: Span{Start: 10, End: 20}},
	}

	idx, err := s.Place(TrackText, 7)
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	if got := s.Project().Timeline.TextSegments[idx].Span; got != (Span{Start: 5, End: 8}) {
		t.Fatalf("text = %+v, want {5 8}", got)
	}
}

func TestStoreInsertOverlap(t *testing.T) {
	s := newStore(20)
	if _, err := s.Insert(&MaskSegment{Span: Span{Start: 2, End: 6}}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, err := s.Insert(&MaskSegment{Span: Span{Start: 5, End: 7}}); !errors.Is(err, ErrOverlap) {
		t.Fatalf("err = %v, want ErrOverlap", err)
	}
	if _, err := s.Insert(&MaskSegment{Span: Span{Start: 6, End: 7}}); err != nil {
		t.Fatalf("adjacent insert: %v", err)
	}
}

func TestStoreSplitClip(t *testing.T) {
	s := newStore(100)

	idx, err := s.Split(TrackClip, 0, 0.25)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	segs := s.Project().Timeline.Segments
	if idx != 1 || len(segs) != 2 {
		t.Fatalf("split produced index %d and %d clips", idx, len(segs))
	}
	if segs[0].End != 25 || segs[1].Start != 25 || segs[1].End != 100 {
		t.Fatalf("clips = %+v", segs)
	}
	if segs[1].RecordingIndex(1) != 0 {
		t.Fatalf("tail recording = %d, want 0", segs[1].RecordingIndex(1))
	}

	m := ComputeBoundaryMarker(segs, 1, PositionLeft, s.Project().Recordings)
	if m == nil || m.Value.Type != ValueReset {
		t.Fatalf("junction marker = %+v, want reset", m)
	}
}

func TestStoreSplitAnnotation(t *testing.T) {
	s := newStore(20)
	s.Project().Timeline.CaptionSegments = []CaptionSegment{
		{Span: Span{Start: 0, End: 4}, ID: "a", Text: "hello"},
		{Span: Span{Start: 10, End: 12}, ID: "b", Text: "later"},
	}

	idx, err := s.Split(TrackCaption, 0, 0.5)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	caps := s.Project().Timeline.CaptionSegments
	if idx != 1 || len(caps) != 3 {
		t.Fatalf("split produced index %d and %d captions", idx, len(caps))
	}
	if caps[0].Span != (Span{Start: 0, End: 2}) || caps[1].Span != (Span{Start: 2, End: 4}) {
		t.Fatalf("captions = %+v", caps)
	}
	if caps[1].Text != "hello" || caps[1].ID == caps[0].ID {
		t.Fatalf("tail caption = %+v, want copied text and a new id", caps[1])
	}
}

func TestStoreSplitErrors(t *testing.T) {
	s := newStore(20)

	for _, f := range []float64{0, 1, -0.5, 2} {
		if _, err := s.Split(TrackClip, 0, f); !errors.Is(err, ErrInvalidSplit) {
			t.Fatalf("fraction %v: err = %v, want ErrInvalidSplit", f, err)
		}
	}
	if _, err := s.Split(TrackClip, 4, 0.5); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("err = %v, want ErrIndexOutOfRange", err)
	}
	if _, err := s.Split("bogus", 0, 0.5); !errors.Is(err, ErrUnknownTrack) {
		t.Fatalf("err = %v, want ErrUnknownTrack", err)
	}
}

func TestStoreClickInSplitMode(t *testing.T) {
	s := newStore(30)
	s.SetMode(ModeSplit)

	if err := s.Click(TrackClip, 0, 0.5, Modifiers{}); err != nil {
		t.Fatalf("Click: %v", err)
	}
	if n := len(s.Project().Timeline.Segments); n != 2 {
		t.Fatalf("clips = %d, want 2", n)
	}
	if sel := s.Selection(); !sel.Empty() {
		t.Fatal("split click must not select")
	}
}

func TestStoreSelectionInvalidatedOnShift(t *testing.T) {
	s := newStore(30)
	s.Place(TrackZoom, 5)
	s.Place(TrackZoom, 15)
	s.Place(TrackMask, 5)

	s.Select(TrackZoom, 1, Modifiers{})
	if _, err := s.Place(TrackMask, 20); err != nil {
		t.Fatalf("Place: %v", err)
	}
	if sel := s.Selection(); sel.Empty() {
		t.Fatal("edit on another track cleared the selection")
	}

	if err := s.Delete(TrackZoom, 0); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if sel := s.Selection(); !sel.Empty() {
		t.Fatal("selection survived an index shift")
	}
}

func TestStoreInsertClipPinsRecordings(t *testing.T) {
	p := &Project{
		Recordings: recordings(10, 20, 30),
		Timeline:   Timeline{Segments: []TimelineSegment{{Start: 0, End: 10}, {Start: 0, End: 20}}},
	}
	s := NewStore(p, DefaultOptions())

	if err := s.InsertClip(0, clip(2, 0, 30)); err != nil {
		t.Fatalf("InsertClip: %v", err)
	}
	segs := p.Timeline.Segments
	for i, want := range []int{2, 0, 1} {
		if got := segs[i].RecordingIndex(i); got != want {
			t.Fatalf("clip %d recording = %d, want %d", i, got, want)
		}
	}
	if err := s.InsertClip(9, clip(0, 0, 1)); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("err = %v, want ErrIndexOutOfRange", err)
	}
}

func TestStoreUndoRedo(t *testing.T) {
	s := newStore(30)

	if s.Undo() {
		t.Fatal("undo on fresh store reported success")
	}
	s.Place(TrackScene, 10)
	s.Place(TrackScene, 20)

	if !s.Undo() {
		t.Fatal("undo failed")
	}
	if n := len(s.Project().Timeline.SceneSegments); n != 1 {
		t.Fatalf("scenes after undo = %d, want 1", n)
	}
	if !s.Redo() {
		t.Fatal("redo failed")
	}
	if n := len(s.Project().Timeline.SceneSegments); n != 2 {
		t.Fatalf("scenes after redo = %d, want 2", n)
	}
}

func TestStoreSubscribe(t *testing.T) {
	s := newStore(30)

	var changes []Change
	unsubscribe := s.Subscribe(func(c Change) { changes = append(changes, c) })

	s.Place(TrackKeyboard, 3)
	s.Select(TrackKeyboard, 0, Modifiers{})
	s.Undo()

	want := []Change{
		{Kind: ChangeSegments, Track: TrackKeyboard},
		{Kind: ChangeSelection, Track: TrackKeyboard},
		{Kind: ChangeHistory},
	}
	if len(changes) != len(want) {
		t.Fatalf("changes = %+v, want %+v", changes, want)
	}
	for i := range want {
		if changes[i] != want[i] {
			t.Fatalf("change %d = %+v, want %+v", i, changes[i], want[i])
		}
	}

	unsubscribe()
	s.Place(TrackKeyboard, 10)
	if len(changes) != len(want) {
		t.Fatal("received a change after unsubscribing")
	}
}

func TestStoreAddRecording(t *testing.T) {
	s := newStore(10)
	var changes []Change
	s.Subscribe(func(c Change) { changes = append(changes, c) })

	idx, err := s.AddRecording(SourceRecording{Display: TrackMeta{Duration: 4}})
	if err != nil {
		t.Fatalf("AddRecording: %v", err)
	}
	if idx != 1 || len(s.Project().Recordings) != 2 {
		t.Fatalf("idx = %d, recordings = %d", idx, len(s.Project().Recordings))
	}
	segs := s.Project().Timeline.Segments
	if len(segs) != 2 || segs[1].End != 4 || segs[1].RecordingIndex(1) != 1 {
		t.Fatalf("segments = %+v", segs)
	}
	if s.Project().Timeline.Duration() != 14 {
		t.Fatalf("Duration() = %v, want 14", s.Project().Timeline.Duration())
	}
	if len(changes) == 0 || changes[len(changes)-1].Kind != ChangeSegments {
		t.Fatalf("changes = %+v", changes)
	}

	if _, err := s.AddRecording(SourceRecording{}); !errors.Is(err, ErrEmptyRecording) {
		t.Fatalf("AddRecording(empty) error = %v, want ErrEmptyRecording", err)
	}
	if len(s.Project().Recordings) != 2 {
		t.Fatalf("empty recording was kept")
	}
}
