package steps

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/briantruongvn/ngocson-tss-converter/internal/config"
	"github.com/briantruongvn/ngocson-tss-converter/internal/quality"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testReporter() *quality.Reporter {
	return quality.NewReporter(testLogger())
}

func testPaths(t *testing.T) config.PathsConfig {
	t.Helper()
	dir := t.TempDir()
	return config.PathsConfig{OutputDir: dir, LogsDir: dir}
}

// sheetSpec is one worksheet of a test workbook. Order matters: stages
// visit sheets in workbook order.
type sheetSpec struct {
	name  string
	cells map[string]interface{}
}

// writeWorkbook builds an xlsx at path from the given sheets. The
// first sheet replaces the default one.
func writeWorkbook(t *testing.T, path string, sheets []sheetSpec) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for i, s := range sheets {
		if i == 0 {
			require.NoError(t, f.SetSheetName("Sheet1", s.name))
		} else {
			_, err := f.NewSheet(s.name)
			require.NoError(t, err)
		}
		for cell, value := range s.cells {
			require.NoError(t, f.SetCellValue(s.name, cell, value))
		}
	}
	require.NoError(t, f.SaveAs(path))
}

// openResult opens a produced workbook and closes it with the test.
func openResult(t *testing.T, path string) *excelize.File {
	t.Helper()
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func cellValue(t *testing.T, f *excelize.File, sheet, ref string) string {
	t.Helper()
	v, err := f.GetCellValue(sheet, ref)
	require.NoError(t, err)
	return strings.TrimSpace(v)
}

// hasIssue reports whether the reporter recorded an issue of the given
// category.
func hasIssue(rep *quality.Reporter, category string) bool {
	for _, issue := range rep.Issues() {
		if issue.Category == category {
			return true
		}
	}
	return false
}

// runStage writes a fixture workbook, runs fn against it, and returns
// the produced output path.
func runStage(t *testing.T, sheets []sheetSpec, fn func(ctx context.Context, in, out string) (string, error)) string {
	t.Helper()
	dir := t.TempDir()
	in := filepath.Join(dir, "Supplier.xlsx")
	writeWorkbook(t, in, sheets)

	out, err := fn(context.Background(), in, filepath.Join(dir, "out.xlsx"))
	require.NoError(t, err)
	return out
}
