package timeline

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestSourceRecordingDuration(t *testing.T) {
	r := SourceRecording{
		Display:     TrackMeta{Duration: 10},
		Camera:      &TrackMeta{Duration: 10.2},
		SystemAudio: &TrackMeta{Duration: 9.9},
	}
	if got := r.Duration(); got != 10.2 {
		t.Fatalf("Duration = %v, want 10.2", got)
	}
}

func TestSourceRecordingLatestStartTime(t *testing.T) {
	a, b := 1.0, 1.5

	r := SourceRecording{
		Display: TrackMeta{StartTime: &a},
		Mic:     &TrackMeta{StartTime: &b},
	}
	if got, ok := r.LatestStartTime(); !ok || got != 1.5 {
		t.Fatalf("LatestStartTime = %v, %v; want 1.5", got, ok)
	}

	r.Camera = &TrackMeta{}
	if _, ok := r.LatestStartTime(); ok {
		t.Fatal("expected ok=false when a track has no start time")
	}
}

func TestTimelineTiming(t *testing.T) {
	tl := Timeline{Segments: []TimelineSegment{
		{Start: 10, End: 20, Timescale: 2},
		{Start: 0, End: 4},
		clip(0, 30, 36),
	}}

	if got := tl.Duration(); got != 15 {
		t.Fatalf("Duration = %v, want 15", got)
	}
	if got := tl.OutputStart(2); got != 9 {
		t.Fatalf("OutputStart(2) = %v, want 9", got)
	}

	tests := []struct {
		tick       float64
		wantRec    int
		wantSource float64
		wantOK     bool
	}{
		{tick: 0, wantRec: 0, wantSource: 10, wantOK: true},
		{tick: 2.5, wantRec: 0, wantSource: 15, wantOK: true},
		{tick: 6, wantRec: 1, wantSource: 1, wantOK: true},
		{tick: 10, wantRec: 0, wantSource: 31, wantOK: true},
		{tick: 15, wantOK: false},
	}
	for _, tc := range tests {
		rec, src, ok := tl.RecordingTime(tc.tick)
		if ok != tc.wantOK || (ok && (rec != tc.wantRec || src != tc.wantSource)) {
			t.Fatalf("RecordingTime(%v) = %d, %v, %v; want %d, %v, %v", tc.tick, rec, src, ok, tc.wantRec, tc.wantSource, tc.wantOK)
		}
	}
}

func TestTimelineCloneIsDeep(t *testing.T) {
	tl := Timeline{
		Segments:         []TimelineSegment{clip(1, 0, 5)},
		KeyboardSegments: []KeyboardSegment{{Keys: []KeyPress{{Key: "a"}}}},
	}
	c := tl.Clone()
	*c.Segments[0].RecordingSegment = 7
	c.KeyboardSegments[0].Keys[0].Key = "b"

	if *tl.Segments[0].RecordingSegment != 1 || tl.KeyboardSegments[0].Keys[0].Key != "a" {
		t.Fatal("clone shares memory with the original")
	}
}

func TestAnnotationJSONFlattensSpan(t *testing.T) {
	data, err := json.Marshal(ZoomSegment{Span: Span{Start: 1, End: 2}, Amount: 1.5, Mode: ZoomAuto})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.HasPrefix(string(data), `{"start":1,"end":2,"amount":1.5`) {
		t.Fatalf("json = %s", data)
	}
}

func TestParseTrackKind(t *testing.T) {
	for _, k := range append([]TrackKind{TrackClip}, AnnotationKinds...) {
		if got, err := ParseTrackKind(string(k)); err != nil || got != k {
			t.Fatalf("ParseTrackKind(%q) = %q, %v", k, got, err)
		}
	}
	if _, err := ParseTrackKind("audio"); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}
