// Package grid provides merged-range aware cell access over xlsx
// worksheets plus the bounded scans the conversion stages rely on.
package grid

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// formulaErrorMarkers are the cached error literals Excel leaves behind
// when a formula could not be evaluated.
var formulaErrorMarkers = []string{
	"#N/A", "#REF!", "#VALUE!", "#DIV/0!", "#NAME?", "#NULL!", "#NUM!", "#ERROR!",
}

// FormulaError reports a cell whose content is an Excel error literal.
type FormulaError struct {
	Cell   string
	Marker string
}

func (e *FormulaError) Error() string {
	return fmt.Sprintf("formula error %s in cell %s", e.Marker, e.Cell)
}

// FormulaWarning records a formula error suppressed by SafeValue.
type FormulaWarning struct {
	Cell   string
	Marker string
}

// SheetReader provides bounded access to a single worksheet of an open
// workbook. The merge table and sheet bounds are cached at construction;
// point reads past the cached bounds still work and yield empty values.
type SheetReader struct {
	f     *excelize.File
	sheet string

	maxCol int
	maxRow int

	anchors  map[string]string
	date1904 bool

	warnings []FormulaWarning
}

// NewSheetReader prepares a reader for the named worksheet.
func NewSheetReader(f *excelize.File, sheet string) (*SheetReader, error) {
	idx, err := f.GetSheetIndex(sheet)
	if err != nil {
		return nil, fmt.Errorf("resolve sheet %q: %w", sheet, err)
	}
	if idx < 0 {
		return nil, fmt.Errorf("sheet %q does not exist", sheet)
	}

	r := &SheetReader{f: f, sheet: sheet, anchors: make(map[string]string)}

	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		r.date1904 = *props.Date1904
	}

	if err := r.loadBounds(); err != nil {
		return nil, err
	}
	if err := r.loadMerges(); err != nil {
		return nil, err
	}
	return r, nil
}

// loadBounds derives the sheet bounds from the stored rows and widens
// them by the dimension attribute, which can cover styled cells the row
// data does not reach.
func (r *SheetReader) loadBounds() error {
	rows, err := r.f.GetRows(r.sheet)
	if err != nil {
		return fmt.Errorf("read sheet %q: %w", r.sheet, err)
	}
	r.maxRow = len(rows)
	for _, row := range rows {
		if len(row) > r.maxCol {
			r.maxCol = len(row)
		}
	}

	if dim, derr := r.f.GetSheetDimension(r.sheet); derr == nil && dim != "" {
		parts := strings.Split(dim, ":")
		end := parts[len(parts)-1]
		if col, row, cerr := excelize.CellNameToCoordinates(end); cerr == nil {
			if row > r.maxRow {
				r.maxRow = row
			}
			if col > r.maxCol {
				r.maxCol = col
			}
		}
	}
	return nil
}

// Refresh re-reads sheet bounds and the merge table after writes or row
// deletions invalidate the cached state.
func (r *SheetReader) Refresh() error {
	r.maxCol, r.maxRow = 0, 0
	r.anchors = make(map[string]string)
	if err := r.loadBounds(); err != nil {
		return err
	}
	return r.loadMerges()
}

func (r *SheetReader) loadMerges() error {
	merges, err := r.f.GetMergeCells(r.sheet)
	if err != nil {
		return fmt.Errorf("read merges of %q: %w", r.sheet, err)
	}
	for _, m := range merges {
		startCol, startRow, serr := excelize.CellNameToCoordinates(m.GetStartAxis())
		if serr != nil {
			continue
		}
		endCol, endRow, eerr := excelize.CellNameToCoordinates(m.GetEndAxis())
		if eerr != nil {
			continue
		}
		anchor, _ := excelize.CoordinatesToCellName(startCol, startRow)
		for c := startCol; c <= endCol; c++ {
			for row := startRow; row <= endRow; row++ {
				name, _ := excelize.CoordinatesToCellName(c, row)
				r.anchors[name] = anchor
			}
		}
	}
	return nil
}

// Sheet returns the worksheet name the reader is bound to.
func (r *SheetReader) Sheet() string { return r.sheet }

// MaxRow returns the cached bottom bound of the sheet.
func (r *SheetReader) MaxRow() int { return r.maxRow }

// MaxCol returns the cached right bound of the sheet.
func (r *SheetReader) MaxCol() int { return r.maxCol }

// File exposes the underlying workbook for write operations.
func (r *SheetReader) File() *excelize.File { return r.f }

// Value returns the effective cell value. Reads inside a merged range
// resolve to the range anchor; out-of-range coordinates yield "". The
// returned error is a *FormulaError when the cell holds an Excel error
// literal, and the value is always "" in that case.
func (r *SheetReader) Value(col, row int) (string, error) {
	if col < 1 || row < 1 {
		return "", nil
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return "", nil
	}
	if anchor, ok := r.anchors[cell]; ok {
		cell = anchor
	}

	ct, _ := r.f.GetCellType(r.sheet, cell)
	if ct == excelize.CellTypeError {
		raw, _ := r.f.GetCellValue(r.sheet, cell)
		marker := firstMarker(raw)
		if marker == "" {
			marker = strings.TrimSpace(raw)
		}
		if marker == "" {
			marker = "#ERROR!"
		}
		return "", &FormulaError{Cell: cell, Marker: marker}
	}

	v, err := r.f.GetCellValue(r.sheet, cell)
	if err != nil {
		return "", nil
	}
	if v == "" && ct == excelize.CellTypeFormula {
		if calc, cerr := r.f.CalcCellValue(r.sheet, cell); cerr == nil {
			v = calc
		}
	}
	if ct == excelize.CellTypeDate {
		if iso := r.dateValue(cell); iso != "" {
			v = iso
		}
	}

	v = strings.TrimSpace(v)
	if v == "" {
		return "", nil
	}
	if m := firstMarker(v); m != "" {
		return "", &FormulaError{Cell: cell, Marker: m}
	}
	return v, nil
}

// SafeValue is Value with formula errors demoted to an empty string
// plus a recorded warning.
func (r *SheetReader) SafeValue(col, row int) string {
	v, err := r.Value(col, row)
	if err != nil {
		var fe *FormulaError
		if errors.As(err, &fe) {
			r.warnings = append(r.warnings, FormulaWarning{Cell: fe.Cell, Marker: fe.Marker})
		}
		return ""
	}
	return v
}

// Raw reads like Value but keeps error literals, so presence checks see
// them as content.
func (r *SheetReader) Raw(col, row int) string {
	if col < 1 || row < 1 {
		return ""
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return ""
	}
	if anchor, ok := r.anchors[cell]; ok {
		cell = anchor
	}
	v, err := r.f.GetCellValue(r.sheet, cell)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(v)
}

// Warnings returns the formula warnings collected so far.
func (r *SheetReader) Warnings() []FormulaWarning { return r.warnings }

// DrainWarnings returns collected warnings and resets the buffer.
func (r *SheetReader) DrainWarnings() []FormulaWarning {
	w := r.warnings
	r.warnings = nil
	return w
}

// RowHasData reports whether any cell of the row holds content. Error
// literals count as content here; they only read as empty through
// SafeValue.
func (r *SheetReader) RowHasData(row int) bool {
	for col := 1; col <= r.maxCol; col++ {
		if r.Raw(col, row) != "" {
			return true
		}
	}
	return false
}

// LastDataRow scans backward from the sheet bound for the last row at
// or after startRow holding any content. Returns 0 when the range is
// empty.
func (r *SheetReader) LastDataRow(startRow int) int {
	for row := r.maxRow; row >= startRow; row-- {
		if r.RowHasData(row) {
			return row
		}
	}
	return 0
}

// NextFreeRow walks down the column from fromRow and returns the first
// row whose cell is empty.
func (r *SheetReader) NextFreeRow(col, fromRow int) int {
	row := fromRow
	for row <= r.maxRow && r.Raw(col, row) != "" {
		row++
	}
	return row
}

// CoveredByMerge reports whether the cell belongs to a merged range
// without being its anchor. Such cells are skipped on writes.
func (r *SheetReader) CoveredByMerge(col, row int) bool {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return false
	}
	anchor, ok := r.anchors[cell]
	return ok && anchor != cell
}

func (r *SheetReader) dateValue(cell string) string {
	raw, err := r.f.GetCellValue(r.sheet, cell, excelize.Options{RawCellValue: true})
	if err != nil || raw == "" {
		return ""
	}
	if serial, perr := strconv.ParseFloat(strings.TrimSpace(raw), 64); perr == nil {
		if t, derr := excelize.ExcelDateToTime(serial, r.date1904); derr == nil {
			return t.Format("2006-01-02 15:04:05")
		}
	}
	return ""
}

func firstMarker(s string) string {
	for _, m := range formulaErrorMarkers {
		if strings.Contains(s, m) {
			return m
		}
	}
	return ""
}
