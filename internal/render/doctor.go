package render

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/heimdex/cutline/internal/export"
)

const defaultCacheTTL = 5 * time.Minute

// Prober is satisfied by CommandRenderer.
type Prober interface {
	RunDoctor(ctx context.Context) (*Capabilities, error)
}

// CachedDoctor caches engine capabilities so the export runner does not spawn
// a doctor process for every job.
type CachedDoctor struct {
	prober Prober
	ttl    time.Duration
	logger *slog.Logger

	mu     sync.RWMutex
	cached *Capabilities
}

func NewCachedDoctor(prober Prober, logger *slog.Logger) *CachedDoctor {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedDoctor{
		prober: prober,
		ttl:    defaultCacheTTL,
		logger: logger,
	}
}

// Get returns cached capabilities if fresh, otherwise re-probes.
func (d *CachedDoctor) Get(ctx context.Context) (*Capabilities, error) {
	d.mu.RLock()
	if d.cached != nil && time.Since(d.cached.ProbedAt) < d.ttl {
		caps := d.cached
		d.mu.RUnlock()
		return caps, nil
	}
	d.mu.RUnlock()

	return d.Refresh(ctx)
}

func (d *CachedDoctor) Peek() *Capabilities {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cached
}

// Refresh probes regardless of cache freshness. A failed probe falls back to
// the stale cache when there is one.
func (d *CachedDoctor) Refresh(ctx context.Context) (*Capabilities, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	caps, err := d.prober.RunDoctor(ctx)
	if err != nil {
		d.logger.Warn("doctor probe failed", "error", err)
		if d.cached != nil {
			d.logger.Info("returning stale capabilities cache")
			return d.cached, nil
		}
		return nil, err
	}

	d.cached = caps
	return caps, nil
}

func (d *CachedDoctor) Invalidate() {
	d.mu.Lock()
	d.cached = nil
	d.mu.Unlock()
}

// Supports reports whether the cached engine can encode format. Unknown
// capabilities count as supported; the engine will fail the job itself.
func (c *Capabilities) Supports(format export.Format) bool {
	if c == nil {
		return true
	}
	switch format {
	case export.FormatGIF:
		return c.HasGIF
	default:
		return c.HasMP4
	}
}
