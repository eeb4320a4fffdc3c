package render

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/heimdex/cutline/internal/export"
	"github.com/heimdex/cutline/internal/timeline"
)

const (
	maxStderrBytes = 8 * 1024
	waitDelay      = 5 * time.Second
)

var ErrEngineNotFound = errors.New("render engine not found")

// Config holds the engine runner's configuration.
type Config struct {
	BinaryPath     string // empty = look up DefaultBinary on PATH
	OutputDir      string
	DoctorTimeout  time.Duration
	ExportTimeout  time.Duration
	PreviewTimeout time.Duration
	Logger         *slog.Logger
	DebugPaths     bool
}

const DefaultBinary = "cutline-render"

func DefaultConfig(dataDir string, logger *slog.Logger) Config {
	return Config{
		OutputDir:      filepath.Join(dataDir, "exports"),
		DoctorTimeout:  30 * time.Second,
		ExportTimeout:  2 * time.Hour,
		PreviewTimeout: 30 * time.Second,
		Logger:         logger,
	}
}

// CommandRenderer implements export.Renderer on top of the engine CLI.
type CommandRenderer struct {
	cfg    Config
	binary string
}

var _ export.Renderer = (*CommandRenderer)(nil)

func NewCommandRenderer(cfg Config) (*CommandRenderer, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	binary, err := resolveBinary(cfg.BinaryPath)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("cannot create output dir: %w", err)
	}

	cfg.Logger.Info("render engine initialised",
		"binary", binary,
		"output_dir", cfg.OutputDir,
	)
	return &CommandRenderer{cfg: cfg, binary: binary}, nil
}

func (r *CommandRenderer) OutputDir() string {
	return r.cfg.OutputDir
}

// RunDoctor asks the engine which encoders it has.
func (r *CommandRenderer) RunDoctor(ctx context.Context) (*Capabilities, error) {
	outPath := filepath.Join(r.cfg.OutputDir, ".doctor.json")

	ctx, cancel := context.WithTimeout(ctx, r.cfg.DoctorTimeout)
	defer cancel()

	result := r.exec(ctx, outPath, io.Discard, "doctor", "--json", "--out", outPath)
	if !result.IsSuccess() {
		return nil, fmt.Errorf("doctor exited %d: %s", result.ExitCode, result.StderrTail)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("cannot read doctor output: %w", err)
	}
	var caps Capabilities
	if err := json.Unmarshal(data, &caps); err != nil {
		return nil, fmt.Errorf("cannot parse doctor JSON: %w", err)
	}

	caps.HasMP4 = isAvailable(caps.Encoders, "h264")
	caps.HasGIF = isAvailable(caps.Encoders, "gif")
	caps.ProbedAt = time.Now()

	r.cfg.Logger.Info("doctor probe complete",
		"engine_version", caps.EngineVersion,
		"mp4", caps.HasMP4,
		"gif", caps.HasGIF,
		"hardware_encoding", caps.GPU.HardwareEncoding,
	)
	return &caps, nil
}

// Export renders the project at projectPath. The engine prints one JSON
// progress object per line on stdout; each is forwarded to onProgress, and an
// error from onProgress kills the engine and is returned as-is.
func (r *CommandRenderer) Export(ctx context.Context, projectPath string, settings export.Settings, onProgress export.ProgressFunc) (string, error) {
	if err := settings.Validate(); err != nil {
		return "", err
	}
	p, err := timeline.LoadProjectFile(projectPath)
	if err != nil {
		return "", err
	}
	settingsJSON, err := json.Marshal(settings)
	if err != nil {
		return "", fmt.Errorf("encode settings: %w", err)
	}
	// Reserve the name so a concurrent or earlier export is never overwritten.
	reserved, err := export.CreateOutputFile(r.cfg.OutputDir, p.Name, "export", settings.Extension())
	if err != nil {
		return "", err
	}
	outPath := reserved.Name()
	reserved.Close()

	ctx, cancel := context.WithTimeout(ctx, r.cfg.ExportTimeout)
	defer cancel()

	pr, pw := io.Pipe()
	var cbErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		cbErr = forwardProgress(pr, onProgress)
		if cbErr != nil {
			cancel()
		}
		io.Copy(io.Discard, pr)
	}()

	result := r.exec(ctx, outPath, pw,
		"export",
		"--project", projectPath,
		"--settings", string(settingsJSON),
		"--out", outPath,
	)
	pw.Close()
	<-done

	switch {
	case cbErr != nil:
		os.Remove(outPath)
		return "", cbErr
	case ctx.Err() != nil:
		os.Remove(outPath)
		return "", ctx.Err()
	case !result.IsSuccess():
		os.Remove(outPath)
		return "", fmt.Errorf("export exited %d: %s", result.ExitCode, truncate(result.StderrTail, 512))
	}
	if info, err := os.Stat(outPath); err != nil || info.Size() == 0 {
		os.Remove(outPath)
		return "", fmt.Errorf("engine reported success but wrote no output to %s", r.safePath(outPath))
	}
	return outPath, nil
}

// Preview renders one frame. The engine writes an export.PreviewResult as
// JSON to --out.
func (r *CommandRenderer) Preview(ctx context.Context, projectPath string, frameTime float64, settings export.PreviewSettings) (*export.PreviewResult, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	settingsJSON, err := json.Marshal(settings)
	if err != nil {
		return nil, fmt.Errorf("encode settings: %w", err)
	}
	outPath := filepath.Join(r.cfg.OutputDir, fmt.Sprintf(".preview-%d.json", time.Now().UnixNano()))
	defer os.Remove(outPath)

	ctx, cancel := context.WithTimeout(ctx, r.cfg.PreviewTimeout)
	defer cancel()

	result := r.exec(ctx, outPath, io.Discard,
		"preview",
		"--project", projectPath,
		"--time", strconv.FormatFloat(frameTime, 'f', -1, 64),
		"--settings", string(settingsJSON),
		"--out", outPath,
	)
	if !result.IsSuccess() {
		return nil, fmt.Errorf("preview exited %d: %s", result.ExitCode, truncate(result.StderrTail, 512))
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("cannot read preview output %s: %w", r.safePath(outPath), err)
	}
	var res export.PreviewResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("cannot parse preview JSON: %w", err)
	}
	if res.JPEGBase64 == "" {
		return nil, fmt.Errorf("preview output missing jpeg_base64")
	}
	return &res, nil
}

func forwardProgress(r io.Reader, onProgress export.ProgressFunc) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 || line[0] != '{' {
			continue
		}
		var pl progressLine
		if err := json.Unmarshal(line, &pl); err != nil || pl.RenderedCount == nil {
			continue
		}
		if err := onProgress(export.FramesRendered{RenderedCount: *pl.RenderedCount, TotalFrames: pl.TotalFrames}); err != nil {
			return err
		}
	}
	return nil
}

// exec is the core subprocess execution helper.
func (r *CommandRenderer) exec(ctx context.Context, outPath string, stdout io.Writer, args ...string) RunResult {
	start := time.Now()

	if outPath != "" {
		if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
			r.cfg.Logger.Error("cannot create output dir", "error", err)
			return RunResult{ExitCode: -1, StderrTail: err.Error(), Duration: time.Since(start)}
		}
	}

	cmd := exec.CommandContext(ctx, r.binary, args...)

	var stderrBuf bytes.Buffer
	cmd.Stderr = &limitedWriter{w: &stderrBuf, limit: maxStderrBytes}
	cmd.Stdout = stdout
	cmd.WaitDelay = waitDelay

	r.cfg.Logger.Info("executing render command", "command", args[0])

	err := cmd.Run()
	elapsed := time.Since(start)

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	stderrTail := stderrBuf.String()

	if exitCode != 0 {
		r.cfg.Logger.Warn("render command failed",
			"command", args[0],
			"exit_code", exitCode,
			"duration_ms", elapsed.Milliseconds(),
			"stderr_tail", truncate(stderrTail, 512),
		)
	} else {
		r.cfg.Logger.Info("render command succeeded",
			"command", args[0],
			"duration_ms", elapsed.Milliseconds(),
			"output", r.safePath(outPath),
		)
	}

	return RunResult{
		ExitCode:   exitCode,
		OutputPath: outPath,
		StderrTail: stderrTail,
		Duration:   elapsed,
	}
}

func (r *CommandRenderer) safePath(path string) string {
	if r.cfg.DebugPaths {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Base(path)
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return filepath.Base(path)
}

func resolveBinary(preferred string) (string, error) {
	name := preferred
	if name == "" {
		name = DefaultBinary
	}
	p, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrEngineNotFound, name)
	}
	return p, nil
}

func isAvailable(deps map[string]DepInfo, name string) bool {
	d, ok := deps[name]
	return ok && d.Available
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// limitedWriter keeps only the last limit bytes written to it.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		b := lw.w.Bytes()
		lw.w.Reset()
		lw.w.Write(b[len(b)-lw.limit:])
	}
	return n, nil
}
