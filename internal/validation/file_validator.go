package validation

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/briantruongvn/ngocson-tss-converter/internal/config"
	apperrors "github.com/briantruongvn/ngocson-tss-converter/internal/errors"
)

// FileValidator checks conversion inputs and outputs before a run touches
// them, so failures surface as typed errors instead of mid-stage panics.
type FileValidator struct {
	logger   *slog.Logger
	maxBytes int64
}

// NewFileValidator creates a validator. A non-positive size limit falls
// back to the application default.
func NewFileValidator(logger *slog.Logger, maxBytes int64) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	if maxBytes <= 0 {
		maxBytes = config.MaxInputFileSize
	}
	return &FileValidator{
		logger:   logger,
		maxBytes: maxBytes,
	}
}

// ValidateInput checks that path names a readable, reasonably sized .xlsx
// workbook that excelize can actually open. The open probe catches renamed
// CSVs and half-written uploads before a stage trips over them.
func (v *FileValidator) ValidateInput(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		v.logger.Error("Input file does not exist",
			slog.String("file", path))
		return apperrors.NewAccessError(fmt.Sprintf("input file %s does not exist", path), err)
	}
	if err != nil {
		v.logger.Error("Failed to stat input file",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return apperrors.NewAccessError(fmt.Sprintf("failed to stat input file %s", path), err)
	}
	if info.IsDir() {
		v.logger.Error("Input path is a directory",
			slog.String("path", path))
		return apperrors.NewFormatError(fmt.Sprintf("%s is a directory, not a file", path), nil)
	}
	if !info.Mode().IsRegular() {
		v.logger.Error("Input path is not a regular file",
			slog.String("path", path))
		return apperrors.NewFormatError(fmt.Sprintf("%s is not a regular file", path), nil)
	}

	if ext := strings.ToLower(filepath.Ext(path)); ext != config.ExcelExtension {
		v.logger.Error("Input file is not an Excel workbook",
			slog.String("file", path),
			slog.String("extension", ext))
		return apperrors.NewFormatError(
			fmt.Sprintf("file %s is not an Excel workbook (extension: %s)", path, ext), nil)
	}
	if strings.HasPrefix(filepath.Base(path), config.ExcelTempPrefix) {
		v.logger.Warn("Input file is an Excel lock file",
			slog.String("file", path))
		return apperrors.NewFormatError(
			fmt.Sprintf("file %s is an Excel lock file left by an open workbook", path), nil)
	}

	if info.Size() > v.maxBytes {
		v.logger.Error("Input file exceeds size limit",
			slog.String("file", path),
			slog.Int64("size", info.Size()),
			slog.Int64("limit", v.maxBytes))
		return apperrors.NewAppValidationError(
			fmt.Sprintf("file %s is %d bytes, limit is %d", path, info.Size(), v.maxBytes)).
			WithContext("size", info.Size()).
			WithContext("limit", v.maxBytes)
	}

	file, err := os.Open(path)
	if err != nil {
		v.logger.Error("Input file is not readable",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return apperrors.NewAccessError(fmt.Sprintf("input file %s is not readable", path), err)
	}
	file.Close()

	wb, err := excelize.OpenFile(path)
	if err != nil {
		v.logger.Error("Input file does not open as a workbook",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return apperrors.NewFormatError(
			fmt.Sprintf("file %s does not open as an Excel workbook", path), err)
	}
	wb.Close()

	v.logger.Debug("Input file validated",
		slog.String("file", path),
		slog.Int64("size", info.Size()))
	return nil
}

// ValidateOutputPath ensures the parent directory of path exists and is
// writable, creating it when missing.
func (v *FileValidator) ValidateOutputPath(path string) error {
	return v.ValidateOutputDirectory(filepath.Dir(path))
}

// ValidateOutputDirectory ensures dir exists and is writable.
func (v *FileValidator) ValidateOutputDirectory(dir string) error {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		v.logger.Error("Failed to create output directory",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return apperrors.NewAccessError(fmt.Sprintf("failed to create output directory %s", dir), err)
	}

	// Probe with a real file; permission bits lie on some mounts.
	probe := filepath.Join(dir, ".write_test")
	file, err := os.Create(probe)
	if err != nil {
		v.logger.Error("Output directory is not writable",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return apperrors.NewAccessError(fmt.Sprintf("output directory %s is not writable", dir), err)
	}
	file.Close()
	os.Remove(probe)

	v.logger.Debug("Output directory validated",
		slog.String("directory", dir))
	return nil
}

// ListInputFiles returns the .xlsx files in dir eligible for conversion,
// sorted by name. Excel lock files and outputs of earlier runs (step
// suffixes, final prefix) are skipped so batch mode never re-converts its
// own artifacts.
func (v *FileValidator) ListInputFiles(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*"+config.ExcelExtension))
	if err != nil {
		return nil, apperrors.NewAccessError(fmt.Sprintf("failed to list %s", dir), err)
	}

	var files []string
	for _, match := range matches {
		base := filepath.Base(match)
		if strings.HasPrefix(base, config.ExcelTempPrefix) {
			continue
		}
		if strings.HasPrefix(base, config.FinalOutputPrefix) {
			continue
		}
		if strings.Contains(base, config.StepOutputSuffix) {
			continue
		}
		info, err := os.Stat(match)
		if err != nil || info.IsDir() {
			continue
		}
		files = append(files, match)
	}
	sort.Strings(files)

	v.logger.Debug("Input files listed",
		slog.String("directory", dir),
		slog.Int("count", len(files)))
	return files, nil
}
