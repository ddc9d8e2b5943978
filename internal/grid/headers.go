package grid

import "strings"

// headerSearchRows bounds how deep header scans look into a sheet.
const headerSearchRows = 50

// FindHeader locates the first cell containing text case-insensitively,
// scanning row by row within the header search bound. Returns the row
// and column of the hit, or zeros when not found.
func (r *SheetReader) FindHeader(text string) (int, int) {
	return r.findHeaderIn(text, headerSearchRows)
}

// FindHeaderRow is FindHeader reduced to the row index.
func (r *SheetReader) FindHeaderRow(text string) int {
	row, _ := r.FindHeader(text)
	return row
}

func (r *SheetReader) findHeaderIn(text string, maxRows int) (int, int) {
	needle := strings.ToLower(text)
	limit := r.maxRow
	if limit > maxRows {
		limit = maxRows
	}
	for row := 1; row <= limit; row++ {
		for col := 1; col <= r.maxCol; col++ {
			v := r.SafeValue(col, row)
			if v != "" && strings.Contains(strings.ToLower(v), needle) {
				return row, col
			}
		}
	}
	return 0, 0
}

// FindHeaderInColumn scans a single column downward for the first cell
// containing text case-insensitively. Returns 0 when not found.
func (r *SheetReader) FindHeaderInColumn(col int, text string) int {
	needle := strings.ToLower(text)
	limit := r.maxRow
	if limit > headerSearchRows {
		limit = headerSearchRows
	}
	for row := 1; row <= limit; row++ {
		v := r.SafeValue(col, row)
		if v != "" && strings.Contains(strings.ToLower(v), needle) {
			return row
		}
	}
	return 0
}

// FirstNonEmptyAbove walks upward from startRow in the column and
// returns the first non-empty value with its row, visiting at most
// maxScan cells. Empty value and 0 when nothing is found.
func (r *SheetReader) FirstNonEmptyAbove(col, startRow, maxScan int) (string, int) {
	row := startRow
	for steps := 0; row >= 1 && steps < maxScan; steps++ {
		if v := r.SafeValue(col, row); v != "" {
			return v, row
		}
		row--
	}
	return "", 0
}
