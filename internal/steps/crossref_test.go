package steps

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/briantruongvn/ngocson-tss-converter/internal/config"
	"github.com/briantruongvn/ngocson-tss-converter/internal/quality"
)

func newCrossRefStep(t *testing.T, rep *quality.Reporter) *CrossRefStep {
	t.Helper()
	return NewCrossRefStep(config.Default().CrossRef, testPaths(t), testLogger(), rep)
}

func TestCrossRefStep_MarksExactMatches(t *testing.T) {
	rep := testReporter()
	step := newCrossRefStep(t, rep)

	out := runStage(t, []sheetSpec{
		{name: TemplateSheet, cells: map[string]interface{}{
			"R1": "Jacket alpine", "S1": "Coat urban",
			"B11": "Colorfastness", "Q11": "Jacket alpine",
			"B12": "Phthalates", "Q12": "1. Jacket alpine; 2. Coat urban",
		}},
		{name: "M-Textile", cells: map[string]interface{}{"B4": "source data"}},
	}, step.Process)

	f := openResult(t, out)

	assert.Equal(t, "X", cellValue(t, f, TemplateSheet, "R11"))
	assert.Empty(t, cellValue(t, f, TemplateSheet, "S11"))
	assert.Equal(t, "X", cellValue(t, f, TemplateSheet, "R12"))
	assert.Equal(t, "X", cellValue(t, f, TemplateSheet, "S12"))

	// Reference lists are consumed by the matrix.
	assert.Empty(t, cellValue(t, f, TemplateSheet, "Q11"))
	assert.Empty(t, cellValue(t, f, TemplateSheet, "Q12"))

	assert.Equal(t, []string{TemplateSheet}, f.GetSheetList())
	assert.Equal(t, TemplateSheet, f.GetSheetName(f.GetActiveSheetIndex()))

	assert.False(t, rep.HasCriticalErrors())
	assert.InDelta(t, 100.0, rep.QualityScore(), 0.01)
}

func TestCrossRefStep_SubstringMatchesBothWays(t *testing.T) {
	step := newCrossRefStep(t, nil)

	out := runStage(t, []sheetSpec{
		{name: TemplateSheet, cells: map[string]interface{}{
			"R1": "Jacket alpine", "S1": "Coat urban",
			"Q11": "alpine",
			"Q12": "Coat urban deluxe",
		}},
	}, step.Process)

	f := openResult(t, out)
	assert.Equal(t, "X", cellValue(t, f, TemplateSheet, "R11"))
	assert.Equal(t, "X", cellValue(t, f, TemplateSheet, "S12"))
}

func TestCrossRefStep_ExactMatchWinsAlone(t *testing.T) {
	step := newCrossRefStep(t, nil)

	out := runStage(t, []sheetSpec{
		{name: TemplateSheet, cells: map[string]interface{}{
			"R1": "Jacket", "S1": "Jacket alpine",
			"Q11": "jacket",
		}},
	}, step.Process)

	f := openResult(t, out)
	assert.Equal(t, "X", cellValue(t, f, TemplateSheet, "R11"))
	assert.Empty(t, cellValue(t, f, TemplateSheet, "S11"))
}

func TestCrossRefStep_EntryMatchingSeveralColumns(t *testing.T) {
	step := newCrossRefStep(t, nil)

	out := runStage(t, []sheetSpec{
		{name: TemplateSheet, cells: map[string]interface{}{
			"R1": "Blue jacket", "S1": "Red jacket",
			"Q11": "jacket",
		}},
	}, step.Process)

	f := openResult(t, out)
	assert.Equal(t, "X", cellValue(t, f, TemplateSheet, "R11"))
	assert.Equal(t, "X", cellValue(t, f, TemplateSheet, "S11"))
}

func TestCrossRefStep_UnmatchedReferenceWarns(t *testing.T) {
	rep := testReporter()
	step := newCrossRefStep(t, rep)

	out := runStage(t, []sheetSpec{
		{name: TemplateSheet, cells: map[string]interface{}{
			"R1":  "Jacket alpine",
			"Q11": "No such product",
		}},
	}, step.Process)

	f := openResult(t, out)
	assert.Empty(t, cellValue(t, f, TemplateSheet, "R11"))
	assert.Empty(t, cellValue(t, f, TemplateSheet, "Q11"))
	assert.True(t, hasIssue(rep, quality.CategoryUnmatchedReference))
}

func TestCrossRefStep_NoArticleColumnsWarnsOnce(t *testing.T) {
	rep := testReporter()
	step := newCrossRefStep(t, rep)

	out := runStage(t, []sheetSpec{
		{name: TemplateSheet, cells: map[string]interface{}{
			"Q11": "Jacket alpine",
		}},
	}, step.Process)

	f := openResult(t, out)
	assert.Empty(t, cellValue(t, f, TemplateSheet, "Q11"))
	assert.True(t, hasIssue(rep, quality.CategoryDataValidation))
	// Per-row warnings would drown the report when there is nothing
	// to match against.
	assert.False(t, hasIssue(rep, quality.CategoryUnmatchedReference))
}

func TestCrossRefStep_DuplicateHeaderKeepsRightmost(t *testing.T) {
	step := newCrossRefStep(t, nil)

	out := runStage(t, []sheetSpec{
		{name: TemplateSheet, cells: map[string]interface{}{
			"R1": "Jacket alpine", "S1": "Jacket alpine",
			"Q11": "Jacket alpine",
		}},
	}, step.Process)

	f := openResult(t, out)
	assert.Empty(t, cellValue(t, f, TemplateSheet, "R11"))
	assert.Equal(t, "X", cellValue(t, f, TemplateSheet, "S11"))
}

func TestCrossRefStep_HeaderScanStopsAfterEmptyStreak(t *testing.T) {
	rep := testReporter()
	step := newCrossRefStep(t, rep)

	out := runStage(t, []sheetSpec{
		{name: TemplateSheet, cells: map[string]interface{}{
			"R1": "Jacket alpine",
			// Columns S through W are empty; X sits past the stop.
			"X1":  "Far away",
			"Q11": "Far away",
		}},
	}, step.Process)

	f := openResult(t, out)
	assert.Empty(t, cellValue(t, f, TemplateSheet, "X11"))
	assert.True(t, hasIssue(rep, quality.CategoryUnmatchedReference))
}

func TestCrossRefStep_HeaderGapWithinTolerance(t *testing.T) {
	step := newCrossRefStep(t, nil)

	out := runStage(t, []sheetSpec{
		{name: TemplateSheet, cells: map[string]interface{}{
			"R1":  "Jacket alpine",
			"U1":  "Coat urban",
			"Q11": "Coat urban",
		}},
	}, step.Process)

	f := openResult(t, out)
	assert.Equal(t, "X", cellValue(t, f, TemplateSheet, "U11"))
}

func TestCrossRefStep_ClearsErrorLiterals(t *testing.T) {
	rep := testReporter()
	step := newCrossRefStep(t, rep)

	out := runStage(t, []sheetSpec{
		{name: TemplateSheet, cells: map[string]interface{}{
			"R1":  "Jacket alpine",
			"Q11": "#REF!",
		}},
	}, step.Process)

	f := openResult(t, out)
	assert.Empty(t, cellValue(t, f, TemplateSheet, "Q11"))
	assert.True(t, hasIssue(rep, quality.CategoryFormulaErrors))
}

func TestCrossRefStep_DerivesFinalName(t *testing.T) {
	paths := testPaths(t)
	step := NewCrossRefStep(config.Default().CrossRef, paths, testLogger(), testReporter())

	dir := t.TempDir()
	in := filepath.Join(dir, "Supplier - Step5.xlsx")
	writeWorkbook(t, in, []sheetSpec{
		{name: TemplateSheet, cells: map[string]interface{}{"R1": "Jacket alpine"}},
	})

	out, err := step.Process(context.Background(), in, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(paths.OutputDir, "Standard Internal TSS - Supplier.xlsx"), out)
	assert.FileExists(t, out)
}

func TestCrossRefStep_MissingLayoutSheet(t *testing.T) {
	rep := testReporter()
	step := newCrossRefStep(t, rep)

	dir := t.TempDir()
	in := filepath.Join(dir, "Supplier.xlsx")
	writeWorkbook(t, in, []sheetSpec{
		{name: "M-Textile", cells: map[string]interface{}{"B4": "x"}},
	})

	_, err := step.Process(context.Background(), in, "")
	require.Error(t, err)
	assert.True(t, hasIssue(rep, quality.CategoryValidationFailed))
}
