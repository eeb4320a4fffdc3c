package timeline

import "slices"

// Modifiers are the keyboard modifiers held during a click.
type Modifiers struct {
	Toggle bool `json:"toggle"` // ctrl / cmd
	Range  bool `json:"range"`  // shift
}

// Selection is a set of indices into one track. Indices keep click order; the
// last one is the anchor for range extension.
type Selection struct {
	Track   TrackKind `json:"type,omitempty"`
	Indices []int     `json:"indices"`
}

func (s *Selection) Empty() bool {
	return len(s.Indices) == 0
}

func (s *Selection) Contains(index int) bool {
	return slices.Contains(s.Indices, index)
}

func (s *Selection) Clear() {
	s.Track = ""
	s.Indices = nil
}

// Click applies a pointer click on segment index of track.
func (s *Selection) Click(track TrackKind, index int, mods Modifiers) {
	if s.Track != track || s.Empty() {
		s.Track = track
		s.Indices = []int{index}
		return
	}

	switch {
	case mods.Range:
		anchor := s.Indices[len(s.Indices)-1]
		step := 1
		if index < anchor {
			step = -1
		}
		for i := anchor; ; i += step {
			if i != anchor {
				s.Indices = slices.DeleteFunc(s.Indices, func(v int) bool { return v == i })
				s.Indices = append(s.Indices, i)
			}
			if i == index {
				break
			}
		}
	case mods.Toggle:
		if s.Contains(index) {
			s.Indices = slices.DeleteFunc(s.Indices, func(v int) bool { return v == index })
			if s.Empty() {
				s.Clear()
			}
			return
		}
		s.Indices = append(s.Indices, index)
	default:
		s.Indices = []int{index}
	}
}

// invalidate drops the selection when indices on track have shifted.
func (s *Selection) invalidate(track TrackKind) bool {
	if s.Track != track || s.Empty() {
		return false
	}
	s.Clear()
	return true
}

func (s Selection) clone() Selection {
	return Selection{Track: s.Track, Indices: slices.Clone(s.Indices)}
}
