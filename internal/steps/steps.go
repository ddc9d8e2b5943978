// Package steps implements the six conversion stages that turn a
// supplier compliance workbook into the standard internal TSS layout.
// Each stage reads one workbook, edits a copy, and writes it to the
// next path in the chain; Execute adapts a stage to the pipeline
// runner while Process keeps it usable on its own.
package steps

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/briantruongvn/ngocson-tss-converter/internal/grid"
	"github.com/briantruongvn/ngocson-tss-converter/internal/quality"
)

// Stage identifiers, also used as step IDs in run state and reports.
const (
	StepIDTemplate = "template"
	StepIDExtract  = "extract"
	StepIDPrefill  = "prefill"
	StepIDRemap    = "remap"
	StepIDDedupe   = "dedupe"
	StepIDCrossRef = "crossref"
)

// TemplateSheet is the output layout sheet added by the first stage.
// Every later stage works against it.
const TemplateSheet = "Output Template"

// productHeader anchors the product data table on a source sheet. Data
// rows start two rows below it.
const productHeader = "product combination"

// productHeaderMarkers are the anchor variants accepted by the article
// extraction stage; older sheets label the table "Product information".
var productHeaderMarkers = []string{"product combination", "product information"}

// findDataHeaderRow locates the product table header row, or 0.
func findDataHeaderRow(r *grid.SheetReader) int {
	return r.FindHeaderRow(productHeader)
}

// reportFormulaWarnings drains the formula errors a reader demoted to
// empty values into the quality report.
func reportFormulaWarnings(rep *quality.Reporter, step string, r *grid.SheetReader) {
	for _, w := range r.DrainWarnings() {
		rep.AddWarning(step, quality.CategoryFormulaErrors,
			fmt.Sprintf("%s!%s evaluated to %s, treated as empty", r.Sheet(), w.Cell, w.Marker))
	}
}

// openWorkbook opens a stage input, recording a processing failure on
// the report when the file cannot be read as a workbook.
func openWorkbook(rep *quality.Reporter, stepID, path string) (*excelize.File, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		rep.AddError(stepID, quality.CategoryProcessingFailed, fmt.Sprintf("open workbook: %v", err))
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	return f, nil
}

// saveWorkbook writes the workbook to path, creating the directory if
// needed, and records save failures on the report.
func saveWorkbook(rep *quality.Reporter, stepID string, f *excelize.File, path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			rep.AddError(stepID, quality.CategoryProcessingFailed, fmt.Sprintf("create output directory: %v", err))
			return fmt.Errorf("create output directory %s: %w", dir, err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		rep.AddError(stepID, quality.CategoryProcessingFailed, fmt.Sprintf("save workbook: %v", err))
		return fmt.Errorf("save workbook %s: %w", path, err)
	}
	return nil
}

// templateReader opens the output layout sheet of a workbook. Stages
// past the first require it; a missing sheet means the input is not a
// prior stage's output.
func templateReader(rep *quality.Reporter, stepID string, f *excelize.File) (*grid.SheetReader, error) {
	r, err := grid.NewSheetReader(f, TemplateSheet)
	if err != nil {
		rep.AddError(stepID, quality.CategoryValidationFailed,
			fmt.Sprintf("workbook has no %q sheet; expected output of an earlier stage", TemplateSheet))
		return nil, fmt.Errorf("missing %q sheet: %w", TemplateSheet, err)
	}
	return r, nil
}
