package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFindHeader(t *testing.T) {
	r := newTestSheet(t, map[string]interface{}{
		"A1": "Supplier TSS",
		"B4": "Product Combination / Test Item",
		"D9": "product combination duplicate, later row",
	})

	row, col := r.FindHeader("product combination")
	assert.Equal(t, 4, row)
	assert.Equal(t, 2, col)

	assert.Equal(t, 4, r.FindHeaderRow("PRODUCT COMBINATION"))
}

func TestFindHeader_NotFound(t *testing.T) {
	r := newTestSheet(t, map[string]interface{}{"A1": "something else"})

	row, col := r.FindHeader("product combination")
	assert.Zero(t, row)
	assert.Zero(t, col)
}

func TestFindHeader_BoundedScan(t *testing.T) {
	cells := map[string]interface{}{"A1": "filler"}
	cells["A80"] = "product combination"
	r := newTestSheet(t, cells)

	assert.Zero(t, r.FindHeaderRow("product combination"),
		"matches beyond the search bound are ignored")
}

func TestFindHeaderInColumn(t *testing.T) {
	r := newTestSheet(t, map[string]interface{}{
		"C2": "Article number",
		"D2": "Article number elsewhere",
	})

	assert.Equal(t, 2, r.FindHeaderInColumn(3, "article number"))
	assert.Zero(t, r.FindHeaderInColumn(5, "article number"))
}

func TestFirstNonEmptyAbove(t *testing.T) {
	r := newTestSheet(t, map[string]interface{}{
		"B3": "Article name",
		"B8": "anchor row",
	})

	v, row := r.FirstNonEmptyAbove(2, 7, 10)
	assert.Equal(t, "Article name", v)
	assert.Equal(t, 3, row)

	v, row = r.FirstNonEmptyAbove(2, 7, 2)
	assert.Empty(t, v, "scan bound stops before the hit")
	assert.Zero(t, row)

	v, row = r.FirstNonEmptyAbove(2, 8, 1)
	assert.Equal(t, "anchor row", v)
	assert.Equal(t, 8, row)
}
