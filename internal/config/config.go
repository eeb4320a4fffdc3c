// Package config provides configuration management for the Cutline agent.
// Configuration is loaded from environment variables with sensible defaults;
// an optional .env file is read first and never overrides the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/heimdex/cutline/internal/timeline"
)

const (
	// Default values
	DefaultPort               = 8787
	DefaultLogLevel           = "info"
	DefaultDataDir            = ".cutline"
	DefaultExportPollInterval = 2 * time.Second
	DefaultCloudURL           = "https://api.cutline.app"

	// Environment variable names
	EnvFile               = "CUTLINE_ENV_FILE"
	EnvPort               = "CUTLINE_PORT"
	EnvLogLevel           = "CUTLINE_LOG_LEVEL"
	EnvDataDir            = "CUTLINE_DATA_DIR"
	EnvHeadless           = "CUTLINE_HEADLESS"
	EnvExportPollInterval = "CUTLINE_EXPORT_POLL_INTERVAL"
	EnvDragThreshold      = "CUTLINE_DRAG_THRESHOLD_PX"
	EnvPlacementGrid      = "CUTLINE_PLACEMENT_GRID"
	EnvHistoryLimit       = "CUTLINE_HISTORY_LIMIT"
	// EnvDefaultLengthPrefix is followed by an upper-cased track kind,
	// e.g. CUTLINE_DEFAULT_LENGTH_CAPTION=3.
	EnvDefaultLengthPrefix = "CUTLINE_DEFAULT_LENGTH_"

	EnvCloudEnabled = "CUTLINE_CLOUD_ENABLED"
	EnvCloudURL     = "CUTLINE_CLOUD_URL"
	EnvCloudToken   = "CUTLINE_CLOUD_TOKEN"

	EnvFFprobePath  = "CUTLINE_FFPROBE_PATH"
	EnvRenderBinary = "CUTLINE_RENDER_BINARY"

	// Database filename
	DBFilename = "cutline.db"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	ExportsDir() string
	SnapshotsDir() string
	Headless() bool
	ExportPollInterval() time.Duration
	EditorOptions() timeline.Options
	CloudEnabled() bool
	CloudURL() string
	CloudToken() string
	FFprobePath() string
	RenderBinary() string
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port         int
	logLevel     string
	dataDir      string
	headless     bool
	pollInterval time.Duration
	editor       timeline.Options

	cloudEnabled bool
	cloudURL     string
	cloudToken   string

	ffprobePath  string
	renderBinary string
}

// New creates a new EnvConfig with defaults and environment variable overrides
func New() (*EnvConfig, error) {
	if err := loadEnvFile(); err != nil {
		return nil, err
	}

	cfg := &EnvConfig{
		port:         DefaultPort,
		logLevel:     DefaultLogLevel,
		dataDir:      defaultDataDir(),
		pollInterval: DefaultExportPollInterval,
		editor:       timeline.DefaultOptions(),
		cloudURL:     DefaultCloudURL,
	}

	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}
	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	var err error
	if cfg.headless, err = envBool(EnvHeadless, false); err != nil {
		return nil, err
	}
	if cfg.cloudEnabled, err = envBool(EnvCloudEnabled, false); err != nil {
		return nil, err
	}

	if v := os.Getenv(EnvExportPollInterval); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid %s: want a positive duration like 2s", EnvExportPollInterval)
		}
		cfg.pollInterval = d
	}

	if cfg.editor.DragThreshold, err = envFloat(EnvDragThreshold, cfg.editor.DragThreshold); err != nil {
		return nil, err
	}
	if cfg.editor.PlacementGrid, err = envFloat(EnvPlacementGrid, cfg.editor.PlacementGrid); err != nil {
		return nil, err
	}
	if v := os.Getenv(EnvHistoryLimit); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid %s: want a positive integer", EnvHistoryLimit)
		}
		cfg.editor.HistoryLimit = n
	}
	for _, kind := range timeline.AnnotationKinds {
		key := EnvDefaultLengthPrefix + strings.ToUpper(string(kind))
		d, err := envFloat(key, cfg.editor.DefaultLengths[kind])
		if err != nil {
			return nil, err
		}
		if d <= 0 {
			return nil, fmt.Errorf("invalid %s: length must be positive", key)
		}
		cfg.editor.DefaultLengths[kind] = d
	}

	if u := os.Getenv(EnvCloudURL); u != "" {
		cfg.cloudURL = strings.TrimRight(u, "/")
	}
	cfg.cloudToken = os.Getenv(EnvCloudToken)
	cfg.ffprobePath = os.Getenv(EnvFFprobePath)
	cfg.renderBinary = os.Getenv(EnvRenderBinary)

	return cfg, nil
}

// loadEnvFile reads CUTLINE_ENV_FILE, or .env in the working directory when
// unset. A missing default file is not an error.
func loadEnvFile() error {
	path := os.Getenv(EnvFile)
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	err := godotenv.Load(path)
	if err == nil || (!explicit && errors.Is(err, fs.ErrNotExist)) {
		return nil
	}
	return fmt.Errorf("load %s: %w", path, err)
}

func envBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func envFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return 0, fmt.Errorf("invalid %s: want a non-negative number", key)
	}
	return f, nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// ExportsDir is where rendered videos are written.
func (c *EnvConfig) ExportsDir() string {
	return filepath.Join(c.dataDir, "exports")
}

// SnapshotsDir holds the frozen project files queued exports render from.
func (c *EnvConfig) SnapshotsDir() string {
	return filepath.Join(c.dataDir, "snapshots")
}

// Headless disables the system tray.
func (c *EnvConfig) Headless() bool {
	return c.headless
}

func (c *EnvConfig) ExportPollInterval() time.Duration {
	return c.pollInterval
}

// EditorOptions returns a copy; callers may change it freely.
func (c *EnvConfig) EditorOptions() timeline.Options {
	opts := c.editor
	opts.DefaultLengths = make(map[timeline.TrackKind]float64, len(c.editor.DefaultLengths))
	for k, v := range c.editor.DefaultLengths {
		opts.DefaultLengths[k] = v
	}
	return opts
}

func (c *EnvConfig) CloudEnabled() bool {
	return c.cloudEnabled
}

func (c *EnvConfig) CloudURL() string {
	return c.cloudURL
}

func (c *EnvConfig) CloudToken() string {
	return c.cloudToken
}

// FFprobePath is empty when ffprobe should be looked up on PATH.
func (c *EnvConfig) FFprobePath() string {
	return c.ffprobePath
}

func (c *EnvConfig) RenderBinary() string {
	return c.renderBinary
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
