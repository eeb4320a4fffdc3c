package ui

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/getlantern/systray"

	"github.com/heimdex/cutline/internal/project"
)

const refreshInterval = 3 * time.Second

// StatusSource is the part of the project service the tray reads.
type StatusSource interface {
	CountProjects(ctx context.Context) (int, error)
	ListJobs(ctx context.Context, limit int) ([]*project.Job, error)
}

// ExportControl pauses and resumes the export queue.
type ExportControl interface {
	Pause()
	Resume()
	IsPaused() bool
}

type Tray struct {
	source StatusSource
	runner ExportControl
	logger *slog.Logger

	statusItem   *systray.MenuItem
	projectsItem *systray.MenuItem
	pauseItem    *systray.MenuItem

	mu   sync.Mutex
	stop chan struct{}

	onOpenExports func() error
	onQuit        func()
}

type TrayConfig struct {
	Source        StatusSource
	Runner        ExportControl
	Logger        *slog.Logger
	OnOpenExports func() error
	OnQuit        func()
}

func NewTray(cfg TrayConfig) *Tray {
	return &Tray{
		source:        cfg.Source,
		runner:        cfg.Runner,
		logger:        cfg.Logger,
		stop:          make(chan struct{}),
		onOpenExports: cfg.OnOpenExports,
		onQuit:        cfg.OnQuit,
	}
}

func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes)
	systray.SetTitle("Cutline")
	systray.SetTooltip("Cutline editor agent")

	t.statusItem = systray.AddMenuItem("Status: Idle", "Export queue status")
	t.statusItem.Disable()

	t.projectsItem = systray.AddMenuItem("Projects: 0", "Projects on this machine")
	t.projectsItem.Disable()

	systray.AddSeparator()

	t.pauseItem = systray.AddMenuItem("Pause Exports", "Stop picking up queued exports")
	exportsItem := systray.AddMenuItem("Open Exports Folder", "Show rendered videos")

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit Cutline")

	go t.refreshLoop()

	go func() {
		for {
			select {
			case <-t.pauseItem.ClickedCh:
				t.togglePause()
			case <-exportsItem.ClickedCh:
				t.handleOpenExports()
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			}
		}
	}()

	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	close(t.stop)
	t.logger.Info("system tray exiting")
}

func (t *Tray) refreshLoop() {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	t.refresh()
	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			t.refresh()
		}
	}
}

func (t *Tray) refresh() {
	if t.source == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), refreshInterval)
	defer cancel()

	if n, err := t.source.CountProjects(ctx); err == nil {
		t.UpdateProjectsCount(n)
	}
	jobs, err := t.source.ListJobs(ctx, 20)
	if err != nil {
		t.logger.Debug("tray refresh failed", "error", err)
		return
	}
	t.UpdateStatus(statusLine(jobs))
}

func (t *Tray) togglePause() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.runner == nil {
		return
	}

	if t.runner.IsPaused() {
		t.runner.Resume()
		t.pauseItem.SetTitle("Pause Exports")
		t.statusItem.SetTitle("Status: Idle")
	} else {
		t.runner.Pause()
		t.pauseItem.SetTitle("Resume Exports")
		t.statusItem.SetTitle("Status: Paused")
	}
}

func (t *Tray) handleOpenExports() {
	if t.onOpenExports != nil {
		if err := t.onOpenExports(); err != nil {
			t.logger.Error("failed to open exports folder", "error", err)
		}
	}
}

// UpdateStatus is a no-op while exports are paused so the paused state stays
// visible.
func (t *Tray) UpdateStatus(status string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.statusItem == nil || (t.runner != nil && t.runner.IsPaused()) {
		return
	}
	t.statusItem.SetTitle("Status: " + status)
}

func (t *Tray) UpdateProjectsCount(count int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.projectsItem == nil {
		return
	}
	t.projectsItem.SetTitle(fmt.Sprintf("Projects: %d", count))
}

func (t *Tray) Quit() {
	systray.Quit()
}

// statusLine summarises the most recent jobs, newest first.
func statusLine(jobs []*project.Job) string {
	var running *project.Job
	pending := 0
	for _, j := range jobs {
		switch j.Status {
		case project.JobStatusRunning:
			if running == nil {
				running = j
			}
		case project.JobStatusPending:
			pending++
		}
	}

	switch {
	case running != nil && pending > 0:
		return fmt.Sprintf("Exporting %d%% (%d queued)", running.Progress(), pending)
	case running != nil:
		return fmt.Sprintf("Exporting %d%%", running.Progress())
	case pending > 0:
		return fmt.Sprintf("%d queued", pending)
	case len(jobs) > 0 && jobs[0].Status == project.JobStatusFailed:
		return "Last export failed"
	}
	return "Idle"
}
