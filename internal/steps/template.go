package steps

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xuri/excelize/v2"

	"github.com/briantruongvn/ngocson-tss-converter/internal/config"
	"github.com/briantruongvn/ngocson-tss-converter/internal/pipeline"
	"github.com/briantruongvn/ngocson-tss-converter/internal/quality"
)

// headerSpec describes one column title of the output layout.
type headerSpec struct {
	col   string
	title string
	font  string
	fill  string
	width float64
}

// templateHeaders is row 3 of the output layout, columns A through Q.
// Fills group the columns: blue for product data, red for the
// applicability flag, green for requirements, gold for logistics and
// purple for the article reference list.
var templateHeaders = []headerSpec{
	{"A", "Test item", "FFFFFF", "366092", 25},
	{"B", "Product combination", "FFFFFF", "366092", 30},
	{"C", "Material", "FFFFFF", "366092", 20},
	{"D", "Component", "FFFFFF", "366092", 20},
	{"E", "Material code", "FFFFFF", "366092", 15},
	{"F", "Supplier", "FFFFFF", "366092", 20},
	{"G", "Position", "FFFFFF", "366092", 15},
	{"H", "Applicable", "FFFFFF", "C00000", 12},
	{"I", "Test items combined", "FFFFFF", "366092", 30},
	{"J", "Market", "FFFFFF", "548235", 15},
	{"K", "Standard/Regulation", "FFFFFF", "548235", 25},
	{"L", "Test method", "FFFFFF", "548235", 20},
	{"M", "Requirement", "FFFFFF", "548235", 25},
	{"N", "Frequency", "FFFFFF", "548235", 15},
	{"O", "Test house", "FFFFFF", "BF8F00", 15},
	{"P", "Remark", "FFFFFF", "BF8F00", 20},
	{"Q", "Article reference", "FFFFFF", "7030A0", 30},
}

// labelFill is the green behind the article label cells A1 and A2.
const labelFill = "B8E6B8"

// styleCache deduplicates workbook styles so the title cells share a
// handful of style records instead of one each.
type styleCache struct {
	f   *excelize.File
	ids map[string]int
}

func newStyleCache(f *excelize.File) *styleCache {
	return &styleCache{f: f, ids: make(map[string]int)}
}

// boldFilled returns a cached bold style with the given font color,
// solid fill and horizontal alignment. Vertical centering and text
// wrapping are fixed.
func (c *styleCache) boldFilled(fontColor, fillColor, horizontal string) (int, error) {
	key := fontColor + "|" + fillColor + "|" + horizontal
	if id, ok := c.ids[key]; ok {
		return id, nil
	}
	id, err := c.f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: fontColor},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{fillColor}},
		Alignment: &excelize.Alignment{Horizontal: horizontal, Vertical: "center", WrapText: true},
	})
	if err != nil {
		return 0, err
	}
	c.ids[key] = id
	return id, nil
}

// TemplateStep is the first stage. It copies the input workbook and
// adds the styled output layout sheet that the later stages fill in.
type TemplateStep struct {
	pipeline.BaseStep
	outputDir string
	logger    *slog.Logger
	reporter  *quality.Reporter
}

// NewTemplateStep creates the template creation stage. A nil reporter
// gets a private one so direct Process calls still work.
func NewTemplateStep(paths config.PathsConfig, logger *slog.Logger, reporter *quality.Reporter) *TemplateStep {
	if logger == nil {
		logger = slog.Default()
	}
	if reporter == nil {
		reporter = quality.NewReporter(logger)
	}
	return &TemplateStep{
		BaseStep:  pipeline.NewBaseStep(StepIDTemplate, "Template creation", nil),
		outputDir: paths.OutputDir,
		logger:    logger,
		reporter:  reporter,
	}
}

// Execute runs the stage against pipeline state.
func (s *TemplateStep) Execute(ctx context.Context, state *pipeline.State) error {
	out, err := s.Process(ctx, state.CurrentPath(), StepOutputPath(state.OutputDir(), state.CurrentPath(), 1))
	if err != nil {
		return err
	}
	state.AdvanceTo(out)
	return nil
}

// Process copies the workbook at inputPath to outputPath with the
// output layout sheet added. An empty outputPath derives the
// conventional stage path. Returns the path written.
func (s *TemplateStep) Process(ctx context.Context, inputPath, outputPath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if outputPath == "" {
		outputPath = StepOutputPath(s.outputDir, inputPath, 1)
	}
	s.logger.InfoContext(ctx, "creating output template",
		slog.String("step", s.ID()),
		slog.String("input", inputPath),
		slog.String("output", outputPath))

	f, err := openWorkbook(s.reporter, s.ID(), inputPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := s.addTemplateSheet(f); err != nil {
		s.reporter.AddError(s.ID(), quality.CategoryProcessingFailed, err.Error())
		return "", err
	}
	if err := saveWorkbook(s.reporter, s.ID(), f, outputPath); err != nil {
		return "", err
	}

	s.reporter.StepCompleted(s.ID())
	s.logger.InfoContext(ctx, "output template written",
		slog.String("step", s.ID()),
		slog.String("sheet", TemplateSheet),
		slog.String("output", outputPath))
	return outputPath, nil
}

// addTemplateSheet recreates the layout sheet from scratch so rerunning
// the stage on its own output stays idempotent.
func (s *TemplateStep) addTemplateSheet(f *excelize.File) error {
	idx, err := f.GetSheetIndex(TemplateSheet)
	if err != nil {
		return fmt.Errorf("resolve template sheet: %w", err)
	}
	if idx >= 0 {
		if err := f.DeleteSheet(TemplateSheet); err != nil {
			return fmt.Errorf("remove stale template sheet: %w", err)
		}
	}
	idx, err = f.NewSheet(TemplateSheet)
	if err != nil {
		return fmt.Errorf("create template sheet: %w", err)
	}

	styles := newStyleCache(f)

	labelStyle, err := styles.boldFilled("000000", labelFill, "left")
	if err != nil {
		return fmt.Errorf("label style: %w", err)
	}
	for i, label := range []string{"Article name", "Article number"} {
		cell := fmt.Sprintf("A%d", i+1)
		if err := f.SetCellValue(TemplateSheet, cell, label); err != nil {
			return fmt.Errorf("write %s: %w", cell, err)
		}
		if err := f.SetCellStyle(TemplateSheet, cell, cell, labelStyle); err != nil {
			return fmt.Errorf("style %s: %w", cell, err)
		}
	}
	if err := f.SetColWidth(TemplateSheet, "A", "A", 22); err != nil {
		return fmt.Errorf("size label column: %w", err)
	}

	for _, h := range templateHeaders {
		cell := h.col + "3"
		if err := f.SetCellValue(TemplateSheet, cell, h.title); err != nil {
			return fmt.Errorf("write header %s: %w", cell, err)
		}
		style, err := styles.boldFilled(h.font, h.fill, "center")
		if err != nil {
			return fmt.Errorf("header style %s: %w", h.col, err)
		}
		if err := f.SetCellStyle(TemplateSheet, cell, cell, style); err != nil {
			return fmt.Errorf("style header %s: %w", cell, err)
		}
		if err := f.SetColWidth(TemplateSheet, h.col, h.col, h.width); err != nil {
			return fmt.Errorf("size column %s: %w", h.col, err)
		}
	}

	for _, rh := range []struct {
		row    int
		height float64
	}{{1, 20}, {2, 20}, {3, 40}} {
		if err := f.SetRowHeight(TemplateSheet, rh.row, rh.height); err != nil {
			return fmt.Errorf("set row %d height: %w", rh.row, err)
		}
	}

	f.SetActiveSheet(idx)
	return nil
}
