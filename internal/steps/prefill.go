package steps

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/briantruongvn/ngocson-tss-converter/internal/config"
	"github.com/briantruongvn/ngocson-tss-converter/internal/grid"
	"github.com/briantruongvn/ngocson-tss-converter/internal/pipeline"
	"github.com/briantruongvn/ngocson-tss-converter/internal/quality"
)

// PrefillStep is the third stage. Source sheets list shared values
// once per visual group; this stage forward-fills those columns so the
// row mapper sees complete rows.
type PrefillStep struct {
	pipeline.BaseStep
	columns   map[string][]string
	outputDir string
	logger    *slog.Logger
	reporter  *quality.Reporter
}

// NewPrefillStep creates the pre-mapping fill stage. The prefill
// config names which columns to fill per sheet type; types without an
// entry are left untouched.
func NewPrefillStep(prefill config.PrefillConfig, paths config.PathsConfig, logger *slog.Logger, reporter *quality.Reporter) *PrefillStep {
	if logger == nil {
		logger = slog.Default()
	}
	if reporter == nil {
		reporter = quality.NewReporter(logger)
	}
	return &PrefillStep{
		BaseStep:  pipeline.NewBaseStep(StepIDPrefill, "Pre-mapping fill", []string{StepIDExtract}),
		columns:   prefill.Columns,
		outputDir: paths.OutputDir,
		logger:    logger,
		reporter:  reporter,
	}
}

// Execute runs the stage against pipeline state.
func (s *PrefillStep) Execute(ctx context.Context, state *pipeline.State) error {
	out, err := s.Process(ctx, state.CurrentPath(), StepOutputPath(state.OutputDir(), state.CurrentPath(), 3))
	if err != nil {
		return err
	}
	state.AdvanceTo(out)
	return nil
}

// Process forward-fills the configured columns on every classified
// source sheet of the workbook at inputPath and writes the result to
// outputPath. Sheets without a product table header are skipped with a
// warning.
func (s *PrefillStep) Process(ctx context.Context, inputPath, outputPath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if outputPath == "" {
		outputPath = StepOutputPath(s.outputDir, inputPath, 3)
	}
	s.logger.InfoContext(ctx, "prefilling source sheets",
		slog.String("step", s.ID()),
		slog.String("input", inputPath),
		slog.String("output", outputPath))

	f, err := openWorkbook(s.reporter, s.ID(), inputPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	totalFilled := 0
	for _, sheet := range f.GetSheetList() {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}
		cols, ok := s.columns[grid.Classify(sheet).String()]
		if !ok || len(cols) == 0 {
			continue
		}
		r, err := grid.NewSheetReader(f, sheet)
		if err != nil {
			s.reporter.AddWarning(s.ID(), quality.CategoryDataValidation,
				fmt.Sprintf("read sheet %s: %v", sheet, err))
			continue
		}

		headerRow := findDataHeaderRow(r)
		if headerRow == 0 {
			s.reporter.AddWarning(s.ID(), quality.CategoryMissingHeaders,
				fmt.Sprintf("sheet %s has no %q header", sheet, productHeader))
			reportFormulaWarnings(s.reporter, s.ID(), r)
			continue
		}

		startRow := headerRow + 2
		endRow := r.LastDataRow(startRow)
		if endRow < startRow {
			reportFormulaWarnings(s.reporter, s.ID(), r)
			continue
		}

		filled, err := fillColumns(r, cols, startRow, endRow, 0)
		if err != nil {
			s.reporter.AddError(s.ID(), quality.CategoryProcessingFailed,
				fmt.Sprintf("fill sheet %s: %v", sheet, err))
			return "", fmt.Errorf("fill sheet %s: %w", sheet, err)
		}
		reportFormulaWarnings(s.reporter, s.ID(), r)
		totalFilled += filled

		s.logger.DebugContext(ctx, "sheet prefilled",
			slog.String("sheet", sheet),
			slog.Int("cells_filled", filled),
			slog.Int("start_row", startRow),
			slog.Int("end_row", endRow))
	}

	if err := saveWorkbook(s.reporter, s.ID(), f, outputPath); err != nil {
		return "", err
	}

	s.reporter.StepCompleted(s.ID())
	s.logger.InfoContext(ctx, "prefill complete",
		slog.String("step", s.ID()),
		slog.Int("cells_filled", totalFilled),
		slog.String("output", outputPath))
	return outputPath, nil
}
