package steps

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/briantruongvn/ngocson-tss-converter/internal/config"
	"github.com/briantruongvn/ngocson-tss-converter/internal/grid"
	"github.com/briantruongvn/ngocson-tss-converter/internal/pipeline"
	"github.com/briantruongvn/ngocson-tss-converter/internal/quality"
)

// DedupeStep is the fifth stage. It removes rows whose applicability
// indicator marks them not applicable, then merges groups of
// seasonal-demand rows that share a key down to their first row.
type DedupeStep struct {
	pipeline.BaseStep
	cfg       config.DedupeConfig
	naValues  map[string]struct{}
	outputDir string
	logger    *slog.Logger
	reporter  *quality.Reporter
}

// NewDedupeStep creates the filter and dedupe stage.
func NewDedupeStep(cfg config.DedupeConfig, paths config.PathsConfig, logger *slog.Logger, reporter *quality.Reporter) *DedupeStep {
	if logger == nil {
		logger = slog.Default()
	}
	if reporter == nil {
		reporter = quality.NewReporter(logger)
	}
	na := make(map[string]struct{}, len(cfg.NAValues))
	for _, v := range cfg.NAValues {
		na[strings.ToUpper(v)] = struct{}{}
	}
	return &DedupeStep{
		BaseStep:  pipeline.NewBaseStep(StepIDDedupe, "Filter and dedupe", []string{StepIDRemap}),
		cfg:       cfg,
		naValues:  na,
		outputDir: paths.OutputDir,
		logger:    logger,
		reporter:  reporter,
	}
}

// Execute runs the stage against pipeline state.
func (s *DedupeStep) Execute(ctx context.Context, state *pipeline.State) error {
	out, err := s.Process(ctx, state.CurrentPath(), StepOutputPath(state.OutputDir(), state.CurrentPath(), 5))
	if err != nil {
		return err
	}
	state.AdvanceTo(out)
	return nil
}

// Process filters and dedupes the output layout of the workbook at
// inputPath and writes the result to outputPath. Row removal runs
// bottom-up so pending row numbers stay valid while rows shift.
func (s *DedupeStep) Process(ctx context.Context, inputPath, outputPath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if outputPath == "" {
		outputPath = StepOutputPath(s.outputDir, inputPath, 5)
	}
	s.logger.InfoContext(ctx, "filtering and deduplicating",
		slog.String("step", s.ID()),
		slog.String("input", inputPath),
		slog.String("output", outputPath))

	f, err := openWorkbook(s.reporter, s.ID(), inputPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	tr, err := templateReader(s.reporter, s.ID(), f)
	if err != nil {
		return "", err
	}
	indicatorCol, err := excelize.ColumnNameToNumber(s.cfg.IndicatorColumn)
	if err != nil {
		return "", fmt.Errorf("indicator column %q: %w", s.cfg.IndicatorColumn, err)
	}

	removed, err := s.removeNARows(tr, indicatorCol)
	if err != nil {
		s.reporter.AddError(s.ID(), quality.CategoryProcessingFailed, fmt.Sprintf("remove rows: %v", err))
		return "", err
	}
	if err := tr.Refresh(); err != nil {
		return "", fmt.Errorf("reload layout: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	merged, err := s.mergeMarkedDuplicates(tr, indicatorCol)
	if err != nil {
		s.reporter.AddError(s.ID(), quality.CategoryProcessingFailed, fmt.Sprintf("merge duplicates: %v", err))
		return "", err
	}
	if err := tr.Refresh(); err != nil {
		return "", fmt.Errorf("reload layout: %w", err)
	}
	reportFormulaWarnings(s.reporter, s.ID(), tr)

	s.reporter.SetRowsFinal(s.countDataRows(tr))

	if err := saveWorkbook(s.reporter, s.ID(), f, outputPath); err != nil {
		return "", err
	}

	s.reporter.StepCompleted(s.ID())
	s.logger.InfoContext(ctx, "layout deduplicated",
		slog.String("step", s.ID()),
		slog.Int("rows_removed", removed),
		slog.Int("rows_merged", merged),
		slog.String("output", outputPath))
	return outputPath, nil
}

// dataStart returns the first row the stage may touch. Rows above
// templateDataStart carry the article blocks and column titles, never
// mapped data, so they are off limits whatever start is configured.
func (s *DedupeStep) dataStart() int {
	if s.cfg.StartRow < templateDataStart {
		return templateDataStart
	}
	return s.cfg.StartRow
}

// removeNARows deletes every layout row whose indicator value is in
// the NA set. Returns the number of rows removed.
func (s *DedupeStep) removeNARows(tr *grid.SheetReader, indicatorCol int) (int, error) {
	start := s.dataStart()
	endRow := tr.LastDataRow(start)
	var doomed []int
	for row := start; row <= endRow; row++ {
		v := strings.ToUpper(tr.SafeValue(indicatorCol, row))
		if _, na := s.naValues[v]; na {
			doomed = append(doomed, row)
		}
	}
	for i := len(doomed) - 1; i >= 0; i-- {
		if err := tr.File().RemoveRow(tr.Sheet(), doomed[i]); err != nil {
			return 0, fmt.Errorf("remove row %d: %w", doomed[i], err)
		}
	}
	return len(doomed), nil
}

// mergeMarkedDuplicates groups marked rows by their key columns, keeps
// the first row of each group, and deletes the rest. The kept row gets
// the group's dominant frequency and its requirement detail columns
// cleared. Returns the number of rows deleted.
func (s *DedupeStep) mergeMarkedDuplicates(tr *grid.SheetReader, indicatorCol int) (int, error) {
	frequencyCol, err := excelize.ColumnNameToNumber(s.cfg.FrequencyColumn)
	if err != nil {
		return 0, fmt.Errorf("frequency column %q: %w", s.cfg.FrequencyColumn, err)
	}
	keyCols := make([]int, 0, len(s.cfg.KeyColumns))
	for _, letter := range s.cfg.KeyColumns {
		col, err := excelize.ColumnNameToNumber(letter)
		if err != nil {
			return 0, fmt.Errorf("key column %q: %w", letter, err)
		}
		keyCols = append(keyCols, col)
	}

	start := s.dataStart()
	endRow := tr.LastDataRow(start)
	groups := make(map[string][]int)
	var order []string
	for row := start; row <= endRow; row++ {
		if tr.SafeValue(indicatorCol, row) != s.cfg.Marker {
			continue
		}
		key, empty := rowKey(tr, keyCols, row)
		if empty {
			// A row with no key values matches nothing, not
			// everything. It stays as it is.
			continue
		}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], row)
	}

	var doomed []int
	for _, key := range order {
		rows := groups[key]
		if len(rows) < 2 {
			continue
		}
		kept := rows[0]
		if err := s.collapseGroup(tr, frequencyCol, kept, rows); err != nil {
			return 0, err
		}
		doomed = append(doomed, rows[1:]...)
	}

	sort.Sort(sort.Reverse(sort.IntSlice(doomed)))
	for _, row := range doomed {
		if err := tr.File().RemoveRow(tr.Sheet(), row); err != nil {
			return 0, fmt.Errorf("remove row %d: %w", row, err)
		}
	}
	return len(doomed), nil
}

// collapseGroup rewrites the kept row of one duplicate group: the
// frequency column gets the group's dominant value and the clear
// columns are blanked. Runs before any deletion so row numbers still
// hold.
func (s *DedupeStep) collapseGroup(tr *grid.SheetReader, frequencyCol, kept int, rows []int) error {
	freq := s.dominantFrequency(tr, frequencyCol, rows)
	cell, err := excelize.CoordinatesToCellName(frequencyCol, kept)
	if err != nil {
		return fmt.Errorf("frequency cell: %w", err)
	}
	if err := tr.File().SetCellValue(tr.Sheet(), cell, freq); err != nil {
		return fmt.Errorf("set frequency %s: %w", cell, err)
	}
	for _, letter := range s.cfg.ClearColumns {
		cell := fmt.Sprintf("%s%d", letter, kept)
		if err := tr.File().SetCellValue(tr.Sheet(), cell, nil); err != nil {
			return fmt.Errorf("clear %s: %w", cell, err)
		}
	}
	return nil
}

// dominantFrequency returns the most common non-empty frequency value
// across the group's rows, first occurrence winning ties, or the
// configured default when every row is blank.
func (s *DedupeStep) dominantFrequency(tr *grid.SheetReader, frequencyCol int, rows []int) string {
	counts := make(map[string]int)
	var order []string
	for _, row := range rows {
		v := tr.SafeValue(frequencyCol, row)
		if v == "" {
			continue
		}
		if counts[v] == 0 {
			order = append(order, v)
		}
		counts[v]++
	}
	best := ""
	bestCount := 0
	for _, v := range order {
		if counts[v] > bestCount {
			best, bestCount = v, counts[v]
		}
	}
	if best == "" {
		return s.cfg.DefaultFrequency
	}
	return best
}

// countDataRows counts occupied layout rows in the dedupe window.
func (s *DedupeStep) countDataRows(tr *grid.SheetReader) int {
	n := 0
	start := s.dataStart()
	for row := start; row <= tr.LastDataRow(start); row++ {
		if tr.RowHasData(row) {
			n++
		}
	}
	return n
}

// rowKey joins the key column values of a row. The second return
// reports an all-empty key.
func rowKey(tr *grid.SheetReader, keyCols []int, row int) (string, bool) {
	parts := make([]string, len(keyCols))
	empty := true
	for i, col := range keyCols {
		parts[i] = tr.SafeValue(col, row)
		if parts[i] != "" {
			empty = false
		}
	}
	return strings.Join(parts, "\x1f"), empty
}
