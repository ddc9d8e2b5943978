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

// matchMarker is written into an article column when a requirement row
// references that article.
const matchMarker = "X"

// articleHeader is one article column of the layout, keyed by its
// normalized name.
type articleHeader struct {
	name string
	col  int
}

// articleIndex resolves article references to layout columns. Lookup
// order is exact name first, then bidirectional substring containment
// over the headers in column order. Duplicate header names keep the
// rightmost column.
type articleIndex struct {
	ordered []articleHeader
	exact   map[string]int
}

func newArticleIndex() *articleIndex {
	return &articleIndex{exact: make(map[string]int)}
}

func (ix *articleIndex) add(name string, col int) {
	if _, dup := ix.exact[name]; dup {
		for i := range ix.ordered {
			if ix.ordered[i].name == name {
				ix.ordered[i].col = col
				break
			}
		}
	} else {
		ix.ordered = append(ix.ordered, articleHeader{name: name, col: col})
	}
	ix.exact[name] = col
}

func (ix *articleIndex) size() int { return len(ix.ordered) }

// match returns the columns an article reference resolves to. An exact
// hit wins alone; otherwise every header containing the reference, or
// contained in it, matches.
func (ix *articleIndex) match(entry string) []int {
	name := grid.NormalizeText(entry)
	if name == "" {
		return nil
	}
	if col, ok := ix.exact[name]; ok {
		return []int{col}
	}
	var cols []int
	for _, h := range ix.ordered {
		if strings.Contains(name, h.name) || strings.Contains(h.name, name) {
			cols = append(cols, h.col)
		}
	}
	return cols
}

// CrossRefStep is the sixth and final stage. It resolves each row's
// article reference list against the article columns, marks the
// matches, clears the reference column, and strips the source sheets
// so only the finished layout ships.
type CrossRefStep struct {
	pipeline.BaseStep
	cfg       config.CrossRefConfig
	outputDir string
	logger    *slog.Logger
	reporter  *quality.Reporter
}

// NewCrossRefStep creates the cross-reference stage.
func NewCrossRefStep(cfg config.CrossRefConfig, paths config.PathsConfig, logger *slog.Logger, reporter *quality.Reporter) *CrossRefStep {
	if logger == nil {
		logger = slog.Default()
	}
	if reporter == nil {
		reporter = quality.NewReporter(logger)
	}
	return &CrossRefStep{
		BaseStep:  pipeline.NewBaseStep(StepIDCrossRef, "Article cross-reference", []string{StepIDDedupe}),
		cfg:       cfg,
		outputDir: paths.OutputDir,
		logger:    logger,
		reporter:  reporter,
	}
}

// Execute runs the stage against pipeline state.
func (s *CrossRefStep) Execute(ctx context.Context, state *pipeline.State) error {
	out, err := s.Process(ctx, state.CurrentPath(), FinalOutputPath(state.OutputDir(), state.CurrentPath()))
	if err != nil {
		return err
	}
	state.AdvanceTo(out)
	return nil
}

// Process builds the applicability matrix of the workbook at inputPath
// and writes the finished deliverable to outputPath. The output keeps
// only the layout sheet.
func (s *CrossRefStep) Process(ctx context.Context, inputPath, outputPath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if outputPath == "" {
		outputPath = FinalOutputPath(s.outputDir, inputPath)
	}
	s.logger.InfoContext(ctx, "cross-referencing articles",
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
	listCol, err := excelize.ColumnNameToNumber(s.cfg.ListColumn)
	if err != nil {
		return "", fmt.Errorf("list column %q: %w", s.cfg.ListColumn, err)
	}
	firstCol, err := excelize.ColumnNameToNumber(s.cfg.FirstArticleColumn)
	if err != nil {
		return "", fmt.Errorf("first article column %q: %w", s.cfg.FirstArticleColumn, err)
	}

	ix := s.buildIndex(tr, firstCol)
	if ix.size() == 0 {
		s.reporter.AddWarning(s.ID(), quality.CategoryDataValidation,
			"no article columns found; the applicability matrix will be empty")
	}

	marks, err := s.markReferences(ctx, tr, ix, listCol)
	if err != nil {
		s.reporter.AddError(s.ID(), quality.CategoryProcessingFailed, err.Error())
		return "", err
	}

	cleared, err := s.clearReferences(tr, listCol)
	if err != nil {
		s.reporter.AddError(s.ID(), quality.CategoryProcessingFailed, err.Error())
		return "", err
	}
	reportFormulaWarnings(s.reporter, s.ID(), tr)

	if err := s.stripSourceSheets(f); err != nil {
		s.reporter.AddError(s.ID(), quality.CategoryProcessingFailed, err.Error())
		return "", err
	}

	if err := saveWorkbook(s.reporter, s.ID(), f, outputPath); err != nil {
		return "", err
	}

	s.reporter.StepCompleted(s.ID())
	s.logger.InfoContext(ctx, "cross-reference complete",
		slog.String("step", s.ID()),
		slog.Int("articles", ix.size()),
		slog.Int("cells_marked", marks),
		slog.Int("references_cleared", cleared),
		slog.String("output", outputPath))
	return outputPath, nil
}

// buildIndex scans the header row rightward from the first article
// column, stopping after a run of empty columns. The scan tolerates a
// little slack past the sheet bound so blocks written beyond stale
// dimensions still register.
func (s *CrossRefStep) buildIndex(tr *grid.SheetReader, firstCol int) *articleIndex {
	ix := newArticleIndex()
	streak := 0
	for col := firstCol; streak < s.cfg.EmptyStreakStop && col <= tr.MaxCol()+s.cfg.ColumnSlack; col++ {
		v := tr.SafeValue(col, s.cfg.HeaderRow)
		name := grid.NormalizeText(v)
		if name == "" {
			streak++
			continue
		}
		ix.add(name, col)
		streak = 0
	}
	return ix
}

// markReferences parses each row's reference list and writes the match
// marker into every article column the entries resolve to. Returns the
// number of cells marked.
func (s *CrossRefStep) markReferences(ctx context.Context, tr *grid.SheetReader, ix *articleIndex, listCol int) (int, error) {
	marks := 0
	for row := s.cfg.StartRow; row <= tr.MaxRow(); row++ {
		select {
		case <-ctx.Done():
			return marks, ctx.Err()
		default:
		}
		v := tr.SafeValue(listCol, row)
		if v == "" {
			continue
		}
		entries := grid.ParseReferenceList(v)
		if len(entries) == 0 {
			continue
		}

		var matched []int
		seen := make(map[int]bool)
		for _, entry := range entries {
			for _, col := range ix.match(entry) {
				if !seen[col] {
					seen[col] = true
					matched = append(matched, col)
				}
			}
		}
		if len(matched) == 0 {
			if ix.size() > 0 {
				s.reporter.AddWarning(s.ID(), quality.CategoryUnmatchedReference,
					fmt.Sprintf("row %d: %d article reference(s) matched no article column", row, len(entries)))
			}
			continue
		}

		for _, col := range matched {
			cell, err := excelize.CoordinatesToCellName(col, row)
			if err != nil {
				return marks, fmt.Errorf("mark row %d: %w", row, err)
			}
			if err := tr.File().SetCellValue(tr.Sheet(), cell, matchMarker); err != nil {
				return marks, fmt.Errorf("mark %s: %w", cell, err)
			}
			marks++
		}
	}
	return marks, nil
}

// clearReferences blanks the reference column from the data start row
// down. Raw is the emptiness test here so stranded error literals get
// cleared too. Returns the number of cells cleared.
func (s *CrossRefStep) clearReferences(tr *grid.SheetReader, listCol int) (int, error) {
	cleared := 0
	for row := s.cfg.StartRow; row <= tr.MaxRow(); row++ {
		if tr.Raw(listCol, row) == "" {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(listCol, row)
		if err != nil {
			return cleared, fmt.Errorf("clear row %d: %w", row, err)
		}
		if err := tr.File().SetCellValue(tr.Sheet(), cell, nil); err != nil {
			return cleared, fmt.Errorf("clear %s: %w", cell, err)
		}
		cleared++
	}
	return cleared, nil
}

// stripSourceSheets deletes everything except the layout sheet and
// leaves it active, so the deliverable opens on the finished matrix.
func (s *CrossRefStep) stripSourceSheets(f *excelize.File) error {
	for _, sheet := range f.GetSheetList() {
		if sheet == TemplateSheet {
			continue
		}
		if err := f.DeleteSheet(sheet); err != nil {
			return fmt.Errorf("drop sheet %s: %w", sheet, err)
		}
	}
	idx, err := f.GetSheetIndex(TemplateSheet)
	if err != nil || idx < 0 {
		return fmt.Errorf("layout sheet missing after cleanup")
	}
	f.SetActiveSheet(idx)
	return nil
}
