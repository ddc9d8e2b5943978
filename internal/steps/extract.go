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

// Article label variants recognized above the product table, matched
// case-insensitively as substrings.
var (
	nameHeaders   = []string{"article name", "product name"}
	numberHeaders = []string{"article number", "product number"}
)

// articleStartColumn is the first column to the right of the fixed
// layout, column R. Each extracted article occupies one column from
// here on.
const articleStartColumn = 18

// headerScanCols bounds how many columns the label scans visit.
const headerScanCols = 50

// articleFill is the orange behind article name and number cells.
const articleFill = "FFCC99"

// cellPos is a (row, column) hit from a label scan.
type cellPos struct {
	row, col int
}

// ExtractStep is the second stage. It pulls article names and numbers
// off the material sheets and writes them as rotated column blocks to
// the right of the output layout.
type ExtractStep struct {
	pipeline.BaseStep
	outputDir string
	logger    *slog.Logger
	reporter  *quality.Reporter
}

// NewExtractStep creates the article extraction stage.
func NewExtractStep(paths config.PathsConfig, logger *slog.Logger, reporter *quality.Reporter) *ExtractStep {
	if logger == nil {
		logger = slog.Default()
	}
	if reporter == nil {
		reporter = quality.NewReporter(logger)
	}
	return &ExtractStep{
		BaseStep:  pipeline.NewBaseStep(StepIDExtract, "Article extraction", []string{StepIDTemplate}),
		outputDir: paths.OutputDir,
		logger:    logger,
		reporter:  reporter,
	}
}

// Execute runs the stage against pipeline state.
func (s *ExtractStep) Execute(ctx context.Context, state *pipeline.State) error {
	out, err := s.Process(ctx, state.CurrentPath(), StepOutputPath(state.OutputDir(), state.CurrentPath(), 2))
	if err != nil {
		return err
	}
	state.AdvanceTo(out)
	return nil
}

// Process reads article names and numbers from every material sheet of
// the workbook at inputPath and writes the populated copy to
// outputPath. Finding nothing is not an error: the copy is still
// written so the rest of the chain can run, and the report carries an
// empty-extraction warning.
func (s *ExtractStep) Process(ctx context.Context, inputPath, outputPath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if outputPath == "" {
		outputPath = StepOutputPath(s.outputDir, inputPath, 2)
	}
	s.logger.InfoContext(ctx, "extracting articles",
		slog.String("step", s.ID()),
		slog.String("input", inputPath),
		slog.String("output", outputPath))

	f, err := openWorkbook(s.reporter, s.ID(), inputPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := templateReader(s.reporter, s.ID(), f); err != nil {
		return "", err
	}

	var allNames, allNumbers []string
	for _, sheet := range f.GetSheetList() {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}
		if grid.Classify(sheet) != grid.SheetMaterial {
			continue
		}
		r, err := grid.NewSheetReader(f, sheet)
		if err != nil {
			s.reporter.AddWarning(s.ID(), quality.CategoryDataValidation,
				fmt.Sprintf("read sheet %s: %v", sheet, err))
			continue
		}

		anchorRow := findProductAnchorRow(r)
		if anchorRow == 0 {
			s.reporter.AddWarning(s.ID(), quality.CategoryMissingHeaders,
				fmt.Sprintf("sheet %s has no product table header", sheet))
			reportFormulaWarnings(s.reporter, s.ID(), r)
			continue
		}

		nameCells := findHeadersUpward(r, anchorRow, nameHeaders)
		numberCells := findHeadersUpward(r, anchorRow, numberHeaders)

		for _, c := range nameCells {
			allNames = append(allNames, extractListDown(r, c.col, c.row+1)...)
		}
		// Numbers sit one column right of each name label. The labeled
		// number columns are only consulted when that yields nothing.
		for _, c := range nameCells {
			allNumbers = append(allNumbers, extractListDown(r, c.col+1, c.row+1)...)
		}
		if len(allNumbers) == 0 && len(numberCells) > 0 {
			s.logger.DebugContext(ctx, "no numbers beside names, using number labels",
				slog.String("sheet", sheet))
			for _, c := range numberCells {
				allNumbers = append(allNumbers, extractListDown(r, c.col, c.row+1)...)
			}
		}
		reportFormulaWarnings(s.reporter, s.ID(), r)

		s.logger.DebugContext(ctx, "sheet extracted",
			slog.String("sheet", sheet),
			slog.Int("name_labels", len(nameCells)),
			slog.Int("number_labels", len(numberCells)))
	}

	pairs := grid.PairUp(allNames, allNumbers)
	if len(pairs) == 0 {
		s.reporter.AddWarning(s.ID(), quality.CategoryEmptyExtraction,
			"no article names or numbers found on material sheets")
	} else if err := s.populateTemplate(f, pairs); err != nil {
		s.reporter.AddError(s.ID(), quality.CategoryProcessingFailed, err.Error())
		return "", err
	}

	if err := saveWorkbook(s.reporter, s.ID(), f, outputPath); err != nil {
		return "", err
	}

	s.reporter.StepCompleted(s.ID())
	s.logger.InfoContext(ctx, "articles extracted",
		slog.String("step", s.ID()),
		slog.Int("names", len(allNames)),
		slog.Int("numbers", len(allNumbers)),
		slog.Int("pairs", len(pairs)),
		slog.String("output", outputPath))
	return outputPath, nil
}

// findProductAnchorRow locates the product table header row, trying
// the accepted variants in order. 0 when absent.
func findProductAnchorRow(r *grid.SheetReader) int {
	for _, marker := range productHeaderMarkers {
		if row := r.FindHeaderRow(marker); row > 0 {
			return row
		}
	}
	return 0
}

// findHeadersUpward scans from startRow up to row 1 collecting every
// cell whose value contains one of the labels, case-insensitively.
func findHeadersUpward(r *grid.SheetReader, startRow int, labels []string) []cellPos {
	maxCol := r.MaxCol()
	if maxCol > headerScanCols {
		maxCol = headerScanCols
	}
	var hits []cellPos
	for row := startRow; row >= 1; row-- {
		for col := 1; col <= maxCol; col++ {
			v := r.SafeValue(col, row)
			if v == "" {
				continue
			}
			lower := strings.ToLower(v)
			for _, label := range labels {
				if strings.Contains(lower, label) {
					hits = append(hits, cellPos{row: row, col: col})
					break
				}
			}
		}
	}
	return hits
}

// extractListDown walks down a column from startRow, splitting
// multi-value cells into their parts.
func extractListDown(r *grid.SheetReader, col, startRow int) []string {
	var out []string
	for _, cv := range r.ExtractDown(col, startRow) {
		out = append(out, grid.SplitListCell(cv.Value)...)
	}
	return out
}

// populateTemplate writes one article block per pair starting at
// column R: the name fills a rotated merge over rows 1 to 9, the
// number sits beneath it in row 10.
func (s *ExtractStep) populateTemplate(f *excelize.File, pairs []grid.Pair) error {
	nameStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{articleFill}},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", TextRotation: 90, WrapText: true},
	})
	if err != nil {
		return fmt.Errorf("article name style: %w", err)
	}
	numberStyle, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{articleFill}},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("article number style: %w", err)
	}

	for i, p := range pairs {
		colName, err := excelize.ColumnNumberToName(articleStartColumn + i)
		if err != nil {
			return fmt.Errorf("article column %d: %w", articleStartColumn+i, err)
		}
		top := colName + "1"
		if err := f.MergeCell(TemplateSheet, top, colName+"9"); err != nil {
			return fmt.Errorf("merge article block %s: %w", colName, err)
		}
		if err := f.SetCellValue(TemplateSheet, top, p.Name); err != nil {
			return fmt.Errorf("write article name %s: %w", top, err)
		}
		if err := f.SetCellStyle(TemplateSheet, top, top, nameStyle); err != nil {
			return fmt.Errorf("style article name %s: %w", top, err)
		}

		numberCell := colName + "10"
		if err := f.SetCellValue(TemplateSheet, numberCell, p.Number); err != nil {
			return fmt.Errorf("write article number %s: %w", numberCell, err)
		}
		if err := f.SetCellStyle(TemplateSheet, numberCell, numberCell, numberStyle); err != nil {
			return fmt.Errorf("style article number %s: %w", numberCell, err)
		}
	}
	return nil
}
