package timeline

import (
	"errors"
	"slices"
	"sort"

	"github.com/google/uuid"
)

var ErrWrongSegmentKind = errors.New("segment kind does not match track")

// Annotation is a segment that lives directly in output time. Each track kind
// has its own concrete type; all of them embed Span.
type Annotation interface {
	Kind() TrackKind
	Bounds() *Span
	Clone() Annotation
}

type XY struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

type ZoomMode string

const (
	ZoomAuto   ZoomMode = "auto"
	ZoomManual ZoomMode = "manual"
)

type ZoomSegment struct {
	Span   `yaml:",inline"`
	Amount float64  `json:"amount" yaml:"amount"`
	Mode   ZoomMode `json:"mode" yaml:"mode"`
	// Focus point for manual zooms, normalized to the frame.
	Focus XY `json:"focus" yaml:"focus"`
}

func (s *ZoomSegment) Kind() TrackKind   { return TrackZoom }
func (s *ZoomSegment) Clone() Annotation { c := *s; return &c }

type CaptionSegment struct {
	Span `yaml:",inline"`
	ID   string `json:"id" yaml:"id"`
	Text string `json:"text" yaml:"text"`
}

func (s *CaptionSegment) Kind() TrackKind { return TrackCaption }

func (s *CaptionSegment) Clone() Annotation {
	c := *s
	c.ID = uuid.NewString()
	return &c
}

type KeyPress struct {
	Key        string  `json:"key" yaml:"key"`
	TimeOffset float64 `json:"timeOffset" yaml:"time_offset"`
}

type KeyboardSegment struct {
	Span        `yaml:",inline"`
	ID          string     `json:"id" yaml:"id"`
	DisplayText string     `json:"displayText" yaml:"display_text"`
	Keys        []KeyPress `json:"keys" yaml:"keys"`
}

func (s *KeyboardSegment) Kind() TrackKind { return TrackKeyboard }

func (s *KeyboardSegment) Clone() Annotation {
	c := *s
	c.ID = uuid.NewString()
	c.Keys = slices.Clone(s.Keys)
	return &c
}

type MaskKind string

const (
	MaskSensitive MaskKind = "sensitive"
	MaskHighlight MaskKind = "highlight"
)

type MaskSegment struct {
	Span         `yaml:",inline"`
	MaskType     MaskKind `json:"maskType" yaml:"mask_type"`
	Enabled      bool     `json:"enabled" yaml:"enabled"`
	Center       XY       `json:"center" yaml:"center"`
	Size         XY       `json:"size" yaml:"size"`
	Feather      float64  `json:"feather" yaml:"feather"`
	Opacity      float64  `json:"opacity" yaml:"opacity"`
	Pixelation   float64  `json:"pixelation" yaml:"pixelation"`
	Darkness     float64  `json:"darkness" yaml:"darkness"`
	FadeDuration float64  `json:"fadeDuration" yaml:"fade_duration"`
}

func (s *MaskSegment) Kind() TrackKind   { return TrackMask }
func (s *MaskSegment) Clone() Annotation { c := *s; return &c }

type TextSegment struct {
	Span       `yaml:",inline"`
	Content    string  `json:"content" yaml:"content"`
	Center     XY      `json:"center" yaml:"center"`
	Size       XY      `json:"size" yaml:"size"`
	FontFamily string  `json:"fontFamily" yaml:"font_family"`
	FontSize   float64 `json:"fontSize" yaml:"font_size"`
	Color      string  `json:"color" yaml:"color"`
}

func (s *TextSegment) Kind() TrackKind   { return TrackText }
func (s *TextSegment) Clone() Annotation { c := *s; return &c }

type CameraMode string

const (
	CameraDefault CameraMode = "default"
	CameraOnly    CameraMode = "cameraOnly"
	CameraHidden  CameraMode = "hideCamera"
)

type LayoutSegment struct {
	Span `yaml:",inline"`
	Mode CameraMode `json:"mode" yaml:"mode"`
}

func (s *LayoutSegment) Kind() TrackKind   { return TrackLayout }
func (s *LayoutSegment) Clone() Annotation { c := *s; return &c }

type SceneSegment struct {
	Span `yaml:",inline"`
	Mode CameraMode `json:"mode" yaml:"mode"`
}

func (s *SceneSegment) Kind() TrackKind   { return TrackScene }
func (s *SceneSegment) Clone() Annotation { c := *s; return &c }

type Layout3DSegment struct {
	Span      `yaml:",inline"`
	RotationX float64 `json:"rotationX" yaml:"rotation_x"`
	RotationY float64 `json:"rotationY" yaml:"rotation_y"`
	Depth     float64 `json:"depth" yaml:"depth"`
}

func (s *Layout3DSegment) Kind() TrackKind   { return TrackLayout3D }
func (s *Layout3DSegment) Clone() Annotation { c := *s; return &c }

// NewAnnotation builds a segment of the given kind with editor defaults.
func NewAnnotation(kind TrackKind, span Span) (Annotation, error) {
	switch kind {
	case TrackZoom:
		return &ZoomSegment{Span: span, Amount: 1.5, Mode: ZoomAuto, Focus: XY{X: 0.5, Y: 0.5}}, nil
	case TrackCaption:
		return &CaptionSegment{Span: span, ID: uuid.NewString()}, nil
	case TrackKeyboard:
		return &KeyboardSegment{Span: span, ID: uuid.NewString(), Keys: []KeyPress{}}, nil
	case TrackMask:
		return &MaskSegment{
			Span:       span,
			MaskType:   MaskSensitive,
			Enabled:    true,
			Center:     XY{X: 0.5, Y: 0.5},
			Size:       XY{X: 0.35, Y: 0.35},
			Feather:    0.1,
			Opacity:    1,
			Pixelation: 18,
			Darkness:   0.5,
		}, nil
	case TrackText:
		return &TextSegment{
			Span:       span,
			Content:    "Text",
			Center:     XY{X: 0.5, Y: 0.5},
			Size:       XY{X: 0.35, Y: 0.2},
			FontFamily: "sans-serif",
			FontSize:   48,
			Color:      "#ffffff",
		}, nil
	case TrackLayout:
		return &LayoutSegment{Span: span, Mode: CameraDefault}, nil
	case TrackScene:
		return &SceneSegment{Span: span, Mode: CameraDefault}, nil
	case TrackLayout3D:
		return &Layout3DSegment{Span: span}, nil
	}
	return nil, ErrUnknownTrack
}

// annotationTrack is a uniform view over one of the typed annotation slices.
type annotationTrack interface {
	Len() int
	At(i int) Annotation
	Insert(a Annotation) (int, error)
	Delete(i int)
	Sort()
	Spans() []Span
}

type sliceTrack[T any, P interface {
	*T
	Annotation
}] struct {
	segs *[]T
}

func (t sliceTrack[T, P]) Len() int {
	return len(*t.segs)
}

func (t sliceTrack[T, P]) At(i int) Annotation {
	return P(&(*t.segs)[i])
}

func (t sliceTrack[T, P]) Insert(a Annotation) (int, error) {
	v, ok := a.(P)
	if !ok {
		return 0, ErrWrongSegmentKind
	}
	s := *t.segs
	start := v.Bounds().Start
	idx := sort.Search(len(s), func(i int) bool {
		return P(&s[i]).Bounds().Start > start
	})
	*t.segs = slices.Insert(s, idx, *(*T)(v))
	return idx, nil
}

func (t sliceTrack[T, P]) Delete(i int) {
	*t.segs = slices.Delete(*t.segs, i, i+1)
}

func (t sliceTrack[T, P]) Sort() {
	s := *t.segs
	sort.SliceStable(s, func(i, j int) bool {
		return P(&s[i]).Bounds().Start < P(&s[j]).Bounds().Start
	})
}

func (t sliceTrack[T, P]) Spans() []Span {
	s := *t.segs
	out := make([]Span, len(s))
	for i := range s {
		out[i] = *P(&s[i]).Bounds()
	}
	return out
}

func (t *Timeline) annotations(kind TrackKind) (annotationTrack, error) {
	switch kind {
	case TrackZoom:
		return sliceTrack[ZoomSegment, *ZoomSegment]{&t.ZoomSegments}, nil
	case TrackCaption:
		return sliceTrack[CaptionSegment, *CaptionSegment]{&t.CaptionSegments}, nil
	case TrackKeyboard:
		return sliceTrack[KeyboardSegment, *KeyboardSegment]{&t.KeyboardSegments}, nil
	case TrackMask:
		return sliceTrack[MaskSegment, *MaskSegment]{&t.MaskSegments}, nil
	case TrackText:
		return sliceTrack[TextSegment, *TextSegment]{&t.TextSegments}, nil
	case TrackLayout:
		return sliceTrack[LayoutSegment, *LayoutSegment]{&t.LayoutSegments}, nil
	case TrackScene:
		return sliceTrack[SceneSegment, *SceneSegment]{&t.SceneSegments}, nil
	case TrackLayout3D:
		return sliceTrack[Layout3DSegment, *Layout3DSegment]{&t.Layout3DSegments}, nil
	}
	return nil, ErrUnknownTrack
}

// Spans returns the intervals of a track in array order. For the clip track
// the spans are the clips' output-time positions.
func (t *Timeline) Spans(kind TrackKind) ([]Span, error) {
	if kind == TrackClip {
		out := make([]Span, len(t.Segments))
		var cursor float64
		for i, s := range t.Segments {
			d := s.Duration()
			out[i] = Span{Start: cursor, End: cursor + d}
			cursor += d
		}
		return out, nil
	}
	tr, err := t.annotations(kind)
	if err != nil {
		return nil, err
	}
	return tr.Spans(), nil
}

// Annotation returns segment i of an annotation track. The returned value
// aliases the timeline's storage.
func (t *Timeline) Annotation(kind TrackKind, i int) (Annotation, error) {
	tr, err := t.annotations(kind)
	if err != nil {
		return nil, err
	}
	if i < 0 || i >= tr.Len() {
		return nil, ErrIndexOutOfRange
	}
	return tr.At(i), nil
}

// TrackLen returns the number of segments on a track.
func (t *Timeline) TrackLen(kind TrackKind) (int, error) {
	if kind == TrackClip {
		return len(t.Segments), nil
	}
	tr, err := t.annotations(kind)
	if err != nil {
		return 0, err
	}
	return tr.Len(), nil
}
