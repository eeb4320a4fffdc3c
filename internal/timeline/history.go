package timeline

import (
	"bytes"
	"encoding/json"
	"sync"
)

const defaultHistoryLimit = 100

// History is an undo/redo stack of timeline snapshots. While paused, edits
// are coalesced into a single entry pushed when the last pause is resumed.
type History struct {
	past   []Timeline
	future []Timeline
	limit  int
	pauses int
	held   *Timeline
}

func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return &History{limit: limit}
}

// Push records the state that existed before an edit.
func (h *History) Push(before Timeline) {
	if h.pauses > 0 {
		return
	}
	h.push(before)
}

func (h *History) push(before Timeline) {
	h.past = append(h.past, before)
	if len(h.past) > h.limit {
		h.past = h.past[len(h.past)-h.limit:]
	}
	h.future = nil
}

// Pause suspends recording. The returned resume func must be called once the
// coalesced edit is complete; extra calls are ignored.
func (h *History) Pause(before Timeline) (resume func(current *Timeline)) {
	if h.pauses == 0 {
		h.held = &before
	}
	h.pauses++

	var once sync.Once
	return func(current *Timeline) {
		once.Do(func() {
			h.pauses--
			if h.pauses > 0 || h.held == nil {
				return
			}
			if !sameTimeline(h.held, current) {
				h.push(*h.held)
			}
			h.held = nil
		})
	}
}

func (h *History) Paused() bool {
	return h.pauses > 0
}

func (h *History) CanUndo() bool {
	return h.pauses == 0 && len(h.past) > 0
}

func (h *History) CanRedo() bool {
	return h.pauses == 0 && len(h.future) > 0
}

// Undo returns the previous state and remembers current for Redo.
func (h *History) Undo(current *Timeline) (Timeline, bool) {
	if !h.CanUndo() {
		return Timeline{}, false
	}
	prev := h.past[len(h.past)-1]
	h.past = h.past[:len(h.past)-1]
	h.future = append(h.future, current.Clone())
	return prev, true
}

func (h *History) Redo(current *Timeline) (Timeline, bool) {
	if !h.CanRedo() {
		return Timeline{}, false
	}
	next := h.future[len(h.future)-1]
	h.future = h.future[:len(h.future)-1]
	h.past = append(h.past, current.Clone())
	return next, true
}

func sameTimeline(a, b *Timeline) bool {
	ab, errA := json.Marshal(a)
	bb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}
