package export

import (
	"errors"
	"sync"
	"testing"
)

func TestProgressTracker_DropsRegressions(t *testing.T) {
	var seen []int
	p := NewProgressTracker(func(f FramesRendered) { seen = append(seen, f.RenderedCount) })

	for _, n := range []int{0, 30, 10, 60, 60} {
		if err := p.Report(FramesRendered{RenderedCount: n, TotalFrames: 90}); err != nil {
			t.Fatalf("Report(%d) error = %v", n, err)
		}
	}

	want := []int{0, 30, 60, 60}
	if len(seen) != len(want) {
		t.Fatalf("forwarded %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("forwarded %v, want %v", seen, want)
		}
	}
	if got := p.Last(); got.RenderedCount != 60 || got.TotalFrames != 90 {
		t.Fatalf("Last() = %+v", got)
	}
}

func TestProgressTracker_KeepsTotalWhenOmitted(t *testing.T) {
	p := NewProgressTracker(nil)
	_ = p.Report(FramesRendered{RenderedCount: 1, TotalFrames: 50})
	_ = p.Report(FramesRendered{RenderedCount: 2})
	if got := p.Last(); got.TotalFrames != 50 {
		t.Fatalf("Last().TotalFrames = %d, want 50", got.TotalFrames)
	}
}

func TestProgressTracker_Cancel(t *testing.T) {
	calls := 0
	p := NewProgressTracker(func(FramesRendered) { calls++ })
	_ = p.Report(FramesRendered{RenderedCount: 1, TotalFrames: 10})

	p.Cancel()
	if !p.Cancelled() {
		t.Fatal("Cancelled() = false after Cancel")
	}
	if err := p.Report(FramesRendered{RenderedCount: 2, TotalFrames: 10}); !errors.Is(err, ErrCancelled) {
		t.Fatalf("Report after cancel error = %v, want ErrCancelled", err)
	}
	if calls != 1 {
		t.Fatalf("onUpdate calls = %d, want 1", calls)
	}
}

func TestProgressTracker_Concurrent(t *testing.T) {
	p := NewProgressTracker(nil)
	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = p.Report(FramesRendered{RenderedCount: n, TotalFrames: 50})
		}(i)
	}
	wg.Wait()
	if got := p.Last(); got.RenderedCount != 50 {
		t.Fatalf("Last().RenderedCount = %d, want 50", got.RenderedCount)
	}
}
