package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/heimdex/cutline/internal/api"
	"github.com/heimdex/cutline/internal/cloud"
	"github.com/heimdex/cutline/internal/config"
	"github.com/heimdex/cutline/internal/db"
	"github.com/heimdex/cutline/internal/export"
	"github.com/heimdex/cutline/internal/logging"
	"github.com/heimdex/cutline/internal/media"
	"github.com/heimdex/cutline/internal/playback"
	"github.com/heimdex/cutline/internal/project"
	"github.com/heimdex/cutline/internal/render"
	"github.com/heimdex/cutline/internal/ui"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	for _, dir := range []string{cfg.DataDir(), cfg.ExportsDir(), cfg.SnapshotsDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting cutline agent", "version", config.Version, "data_dir", cfg.DataDir())

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := project.NewRepository(database.Conn())

	deviceID, err := ensureDeviceID(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure device ID: %w", err)
	}

	authToken, err := ensureAuthToken(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Printf("║                   CUTLINE AGENT v%-24s ║\n", config.Version)
	fmt.Println("╠═══════════════════════════════════════════════════════════╣")
	fmt.Printf("║  API URL:    http://127.0.0.1:%-27d ║\n", cfg.Port())
	fmt.Printf("║  Auth Token: %-45s ║\n", authToken)
	fmt.Printf("║  Device ID:  %-45s ║\n", deviceID)
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	prober := newProber(cfg, logger)
	renderer, doctor := newRenderer(cfg, logger)

	var uploader cloud.Client
	if cfg.CloudEnabled() && cfg.CloudToken() != "" {
		httpClient := cloud.NewHTTPClient(cfg.CloudURL(), cfg.CloudToken(), logger)
		httpClient.SetDeviceID(deviceID)
		uploader = httpClient
		logger.Info("cloud upload enabled", "base_url", cfg.CloudURL())
	}

	svc := project.NewService(repo, prober, cfg.EditorOptions(), cfg.SnapshotsDir(), logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := project.NewRunner(repo, renderer, doctor, uploader, logger)
	runner.SetPollInterval(cfg.ExportPollInterval())
	go runner.Start(ctx)

	apiServer := api.NewServer(api.ServerConfig{
		Port:       cfg.Port(),
		Projects:   svc,
		Repository: repo,
		Runner:     runner,
		Renderer:   renderer,
		Doctor:     doctor,
		Media:      playback.NewServer(logger),
		Logger:     logger,
		StartTime:  startTime,
		DeviceID:   deviceID,
		Version:    config.Version,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	quitCh := make(chan struct{})

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			close(quitCh)
		case <-quitCh:
		}
	}()

	if cfg.Headless() {
		logger.Info("running in headless mode (no system tray)")
	} else {
		tray := ui.NewTray(ui.TrayConfig{
			Source: svc,
			Runner: runner,
			Logger: logger,
			OnOpenExports: func() error {
				return openFolder(cfg.ExportsDir())
			},
			OnQuit: func() {
				close(quitCh)
			},
		})
		go tray.Run()
	}

	<-quitCh

	logger.Info("initiating graceful shutdown")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// newProber uses ffprobe when it is installed. Without it recordings cannot
// be imported, but existing projects still open.
func newProber(cfg config.Config, logger *slog.Logger) media.Prober {
	ff, err := media.NewFFprobe(cfg.FFprobePath(), logger)
	if err != nil {
		logger.Warn("ffprobe unavailable, recording import disabled", "error", err)
		return media.NewStubProber(logger, nil)
	}
	return ff
}

func newRenderer(cfg config.Config, logger *slog.Logger) (export.Renderer, *render.CachedDoctor) {
	renderCfg := render.DefaultConfig(cfg.DataDir(), logger)
	renderCfg.BinaryPath = cfg.RenderBinary()
	renderCfg.OutputDir = cfg.ExportsDir()

	engine, err := render.NewCommandRenderer(renderCfg)
	if err != nil {
		logger.Warn("render engine unavailable, exports write placeholders", "error", err)
		return export.NewStubRenderer(cfg.ExportsDir(), logger), nil
	}

	doctor := render.NewCachedDoctor(engine, logger)
	initCtx, initCancel := context.WithTimeout(context.Background(), renderCfg.DoctorTimeout)
	defer initCancel()
	if caps, err := doctor.Refresh(initCtx); err != nil {
		logger.Warn("initial doctor probe failed", "error", err)
	} else {
		logger.Info("render capabilities detected",
			"version", caps.EngineVersion,
			"mp4", caps.HasMP4,
			"gif", caps.HasGIF,
			"hw_encoding", caps.GPU.HardwareEncoding,
		)
	}
	return engine, doctor
}

func openFolder(dir string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", dir)
	case "windows":
		cmd = exec.Command("explorer", dir)
	default:
		cmd = exec.Command("xdg-open", dir)
	}
	return cmd.Start()
}

func ensureDeviceID(repo project.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, "device_id")
	if err == nil && existing != "" {
		return existing, nil
	}

	deviceID := uuid.NewString()
	if err := repo.SetConfig(ctx, "device_id", deviceID); err != nil {
		return "", err
	}
	return deviceID, nil
}

func ensureAuthToken(repo project.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, api.AuthTokenKey)
	if err == nil && existing != "" {
		return existing, nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	if err := repo.SetConfig(ctx, api.AuthTokenKey, token); err != nil {
		return "", err
	}
	return token, nil
}
