package steps

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/briantruongvn/ngocson-tss-converter/internal/grid"
)

// fillColumns forward-fills empty cells in the given columns between
// startRow and endRow with the nearest value above them in the same
// column. Cells covered by a merged range are left alone; writing the
// anchor already represents the whole range. A positive maxIterations
// caps how many rows each column visits. Returns the number of cells
// written.
func fillColumns(r *grid.SheetReader, columns []string, startRow, endRow, maxIterations int) (int, error) {
	filled := 0
	for _, column := range columns {
		col, err := excelize.ColumnNameToNumber(column)
		if err != nil {
			return filled, fmt.Errorf("fill column %q: %w", column, err)
		}
		last := ""
		for row := startRow; row <= endRow; row++ {
			if maxIterations > 0 && row-startRow >= maxIterations {
				break
			}
			v := r.SafeValue(col, row)
			if v != "" {
				last = v
				continue
			}
			if last == "" || r.CoveredByMerge(col, row) {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(col, row)
			if err != nil {
				return filled, fmt.Errorf("fill %s row %d: %w", column, row, err)
			}
			if err := r.File().SetCellValue(r.Sheet(), cell, last); err != nil {
				return filled, fmt.Errorf("fill %s: %w", cell, err)
			}
			filled++
		}
	}
	return filled, nil
}
