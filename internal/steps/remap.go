package steps

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/briantruongvn/ngocson-tss-converter/internal/config"
	"github.com/briantruongvn/ngocson-tss-converter/internal/grid"
	"github.com/briantruongvn/ngocson-tss-converter/internal/pipeline"
	"github.com/briantruongvn/ngocson-tss-converter/internal/quality"
)

// templateDataStart is the first layout row that can hold mapped data.
// Rows 1 to 10 belong to the article blocks and the column titles.
const templateDataStart = 11

// compiledRule is a mapping rule with its source columns resolved to
// numbers.
type compiledRule struct {
	sources []int
	target  string
}

// RemapStep is the fourth stage. It walks the data rows of every
// classified source sheet and appends them to the output layout using
// the per-type column tables, then forward-fills the configured layout
// columns.
type RemapStep struct {
	pipeline.BaseStep
	mapping   config.MappingConfig
	fill      config.FillConfig
	outputDir string
	logger    *slog.Logger
	reporter  *quality.Reporter
}

// NewRemapStep creates the row mapping stage.
func NewRemapStep(mapping config.MappingConfig, fill config.FillConfig, paths config.PathsConfig, logger *slog.Logger, reporter *quality.Reporter) *RemapStep {
	if logger == nil {
		logger = slog.Default()
	}
	if reporter == nil {
		reporter = quality.NewReporter(logger)
	}
	return &RemapStep{
		BaseStep:  pipeline.NewBaseStep(StepIDRemap, "Row mapping", []string{StepIDPrefill}),
		mapping:   mapping,
		fill:      fill,
		outputDir: paths.OutputDir,
		logger:    logger,
		reporter:  reporter,
	}
}

// Execute runs the stage against pipeline state.
func (s *RemapStep) Execute(ctx context.Context, state *pipeline.State) error {
	out, err := s.Process(ctx, state.CurrentPath(), StepOutputPath(state.OutputDir(), state.CurrentPath(), 4))
	if err != nil {
		return err
	}
	state.AdvanceTo(out)
	return nil
}

// Process maps the data rows of all classified sheets in the workbook
// at inputPath onto the output layout and writes the result to
// outputPath. Mapped rows are appended after the last occupied layout
// row; the fill columns are forward-filled afterwards.
func (s *RemapStep) Process(ctx context.Context, inputPath, outputPath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if outputPath == "" {
		outputPath = StepOutputPath(s.outputDir, inputPath, 4)
	}
	s.logger.InfoContext(ctx, "mapping rows onto layout",
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

	targetRow := tr.NextFreeRow(2, templateDataStart)
	totalRows := 0

	for _, sheet := range f.GetSheetList() {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}
		sheetType := grid.Classify(sheet)
		if !sheetType.Classified() {
			continue
		}
		table, ok := s.mapping.Table(sheetType.String())
		if !ok {
			s.logger.DebugContext(ctx, "no mapping table for sheet type",
				slog.String("sheet", sheet),
				slog.String("type", sheetType.String()))
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

		rules, err := compileRules(table.Rules)
		if err != nil {
			s.reporter.AddError(s.ID(), quality.CategoryProcessingFailed,
				fmt.Sprintf("mapping table %s: %v", sheetType, err))
			return "", fmt.Errorf("mapping table %s: %w", sheetType, err)
		}

		rowsMapped := 0
		for dataRow := headerRow + 2; rowHasSafeData(r, dataRow); dataRow++ {
			if err := s.mapRow(f, r, rules, table.Literals, dataRow, targetRow); err != nil {
				s.reporter.AddError(s.ID(), quality.CategoryProcessingFailed,
					fmt.Sprintf("map %s row %d: %v", sheet, dataRow, err))
				return "", fmt.Errorf("map %s row %d: %w", sheet, dataRow, err)
			}
			targetRow++
			rowsMapped++
		}
		reportFormulaWarnings(s.reporter, s.ID(), r)

		if rowsMapped == 0 {
			s.reporter.AddWarning(s.ID(), quality.CategoryEmptyExtraction,
				fmt.Sprintf("sheet %s has no data rows below its header", sheet))
		}
		totalRows += rowsMapped

		s.logger.DebugContext(ctx, "sheet mapped",
			slog.String("sheet", sheet),
			slog.String("type", sheetType.String()),
			slog.Int("rows", rowsMapped))
	}

	s.reporter.SetRowsExtracted(totalRows)

	// The layout bounds moved with every appended row; reload them
	// before the fill pass walks the new data region.
	if err := tr.Refresh(); err != nil {
		s.reporter.AddError(s.ID(), quality.CategoryProcessingFailed, fmt.Sprintf("reload layout: %v", err))
		return "", fmt.Errorf("reload layout: %w", err)
	}
	if endRow := tr.LastDataRow(s.fill.StartRow); endRow >= s.fill.StartRow {
		filled, err := fillColumns(tr, s.fill.Columns, s.fill.StartRow, endRow, s.fill.MaxIterations)
		if err != nil {
			s.reporter.AddError(s.ID(), quality.CategoryProcessingFailed, fmt.Sprintf("fill layout: %v", err))
			return "", fmt.Errorf("fill layout: %w", err)
		}
		s.logger.DebugContext(ctx, "layout columns filled",
			slog.Any("columns", s.fill.Columns),
			slog.Int("cells_filled", filled))
	}
	reportFormulaWarnings(s.reporter, s.ID(), tr)

	if err := saveWorkbook(s.reporter, s.ID(), f, outputPath); err != nil {
		return "", err
	}

	s.reporter.StepCompleted(s.ID())
	s.logger.InfoContext(ctx, "rows mapped",
		slog.String("step", s.ID()),
		slog.Int("rows", totalRows),
		slog.String("output", outputPath))
	return outputPath, nil
}

// mapRow writes one source row onto the layout at targetRow. Empty
// source values leave the target cell untouched; literals are written
// for every mapped row.
func (s *RemapStep) mapRow(f *excelize.File, r *grid.SheetReader, rules []compiledRule, literals []config.LiteralRule, dataRow, targetRow int) error {
	for _, rule := range rules {
		value := s.ruleValue(r, rule, dataRow)
		if value == "" {
			continue
		}
		cell := fmt.Sprintf("%s%d", rule.target, targetRow)
		if err := f.SetCellValue(TemplateSheet, cell, value); err != nil {
			return fmt.Errorf("write %s: %w", cell, err)
		}
	}
	for _, lit := range literals {
		cell := fmt.Sprintf("%s%d", lit.Target, targetRow)
		if err := f.SetCellValue(TemplateSheet, cell, lit.Value); err != nil {
			return fmt.Errorf("write literal %s: %w", cell, err)
		}
	}
	return nil
}

// ruleValue resolves a rule against one source row. Combination rules
// join their non-empty parts with the configured delimiter, so a lone
// part stands alone.
func (s *RemapStep) ruleValue(r *grid.SheetReader, rule compiledRule, row int) string {
	if len(rule.sources) == 1 {
		return r.SafeValue(rule.sources[0], row)
	}
	parts := make([]string, 0, len(rule.sources))
	for _, col := range rule.sources {
		if v := r.SafeValue(col, row); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, s.mapping.CombinationDelimiter)
}

// rowHasSafeData reports whether any cell of the row reads non-empty
// through SafeValue. Formula error literals read as empty here, so a
// row of stranded #REF! markers does not extend the data region.
func rowHasSafeData(r *grid.SheetReader, row int) bool {
	for col := 1; col <= r.MaxCol(); col++ {
		if r.SafeValue(col, row) != "" {
			return true
		}
	}
	return false
}

// compileRules resolves rule source letters to column numbers once per
// sheet.
func compileRules(rules []config.ColumnRule) ([]compiledRule, error) {
	out := make([]compiledRule, 0, len(rules))
	for _, rule := range rules {
		c := compiledRule{target: rule.Target}
		for _, letter := range rule.SourceColumns() {
			col, err := excelize.ColumnNameToNumber(letter)
			if err != nil {
				return nil, fmt.Errorf("source column %q: %w", letter, err)
			}
			c.sources = append(c.sources, col)
		}
		out = append(out, c)
	}
	return out, nil
}
