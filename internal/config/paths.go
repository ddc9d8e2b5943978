package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Paths resolves the directories the server and batch runners write to.
// Relative settings resolve against the executable directory, never the
// current working directory, so the binary behaves the same whether it
// is launched from a shell, a service manager, or a double-click.
type Paths struct {
	ExecutableDir string
	OutputDir     string
	LogsDir       string
}

// ResolvePaths turns the configured directory names into absolute paths.
func ResolvePaths(cfg PathsConfig) (*Paths, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable path: %w", err)
	}

	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve executable symlinks: %w", err)
	}

	exeDir := filepath.Dir(exe)
	return &Paths{
		ExecutableDir: exeDir,
		OutputDir:     resolveDir(exeDir, cfg.OutputDir),
		LogsDir:       resolveDir(exeDir, cfg.LogsDir),
	}, nil
}

func resolveDir(base, dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(base, dir)
}

// EnsureDirectories creates the output and log directories if missing.
func (p *Paths) EnsureDirectories() error {
	for _, dir := range []string{p.OutputDir, p.LogsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// RunDir returns the artifact directory for one conversion run.
func (p *Paths) RunDir(runID string) string {
	return filepath.Join(p.OutputDir, runID)
}

// ReportPath returns the quality report location for one run.
func (p *Paths) ReportPath(runID string) string {
	return filepath.Join(p.RunDir(runID), "report.json")
}

// LogPath returns the location of a named log file.
func (p *Paths) LogPath(name string) string {
	return filepath.Join(p.LogsDir, name)
}

// LogPathResolution records the resolved paths at startup.
func (p *Paths) LogPathResolution(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("Resolved application paths",
		slog.String("executable_dir", p.ExecutableDir),
		slog.String("output_dir", p.OutputDir),
		slog.String("logs_dir", p.LogsDir))
}

// FileExists reports whether path exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
