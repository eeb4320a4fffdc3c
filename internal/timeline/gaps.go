package timeline

import (
	"math"
	"sort"
)

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		return lo
	}
	return math.Max(lo, math.Min(v, hi))
}

// FindGaps returns, in ascending order, every free range of a track that can
// hold a segment of the given length.
func FindGaps(existing []Span, length, timelineDuration float64) []Span {
	sorted := append([]Span(nil), existing...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	var gaps []Span
	cursor := 0.0
	for _, s := range sorted {
		if s.Start-cursor >= length-markerEpsilon {
			gaps = append(gaps, Span{Start: cursor, End: s.Start})
		}
		cursor = math.Max(cursor, s.End)
	}
	if timelineDuration-cursor >= length-markerEpsilon {
		gaps = append(gaps, Span{Start: cursor, End: timelineDuration})
	}
	return gaps
}

// FindPlacement centres a segment of the given length on requestedTime and
// clamps it into the best free gap. ok is false when no gap is large enough.
func FindPlacement(existing []Span, requestedTime, length, timelineDuration float64) (Span, bool) {
	placed, _, ok := findPlacement(existing, requestedTime, length, timelineDuration)
	return placed, ok
}

// FindSnappedPlacement is FindPlacement with the result aligned to grid
// seconds where the chosen gap allows it.
func FindSnappedPlacement(existing []Span, requestedTime, length, timelineDuration, grid float64) (Span, bool) {
	placed, gap, ok := findPlacement(existing, requestedTime, length, timelineDuration)
	if !ok {
		return Span{}, false
	}
	return SnapPlacement(placed, gap, grid), true
}

func findPlacement(existing []Span, requestedTime, length, timelineDuration float64) (Span, Span, bool) {
	gaps := FindGaps(existing, length, timelineDuration)
	if len(gaps) == 0 {
		return Span{}, Span{}, false
	}

	desired := clamp(requestedTime-length/2, 0, timelineDuration-length)

	gap, found := Span{}, false
	for _, g := range gaps {
		if g.Start <= desired+markerEpsilon && desired+length <= g.End+markerEpsilon {
			gap, found = g, true
			break
		}
	}
	if !found {
		for _, g := range gaps {
			if g.Start >= desired {
				gap, found = g, true
				break
			}
		}
	}
	if !found {
		gap = gaps[len(gaps)-1]
	}

	start := clamp(desired, gap.Start, gap.End-length)
	return Span{Start: start, End: start + length}, gap, true
}

// SnapPlacement moves span down onto a multiple of grid, or up to the first
// multiple inside gap. The span is returned unchanged when grid is not
// positive or no aligned position fits.
func SnapPlacement(span, gap Span, grid float64) Span {
	if grid <= 0 {
		return span
	}
	length := span.Length()
	start := math.Floor(span.Start/grid+markerEpsilon) * grid
	if start < gap.Start-markerEpsilon {
		start = math.Ceil(gap.Start/grid-markerEpsilon) * grid
	}
	if start+length > gap.End+markerEpsilon {
		return span
	}
	return Span{Start: start, End: start + length}
}
