package steps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/briantruongvn/ngocson-tss-converter/internal/grid"
)

func fillFixture(t *testing.T, cells map[string]interface{}) *grid.SheetReader {
	t.Helper()
	f := excelize.NewFile()
	t.Cleanup(func() { f.Close() })
	for ref, v := range cells {
		require.NoError(t, f.SetCellValue("Sheet1", ref, v))
	}
	r, err := grid.NewSheetReader(f, "Sheet1")
	require.NoError(t, err)
	return r
}

func TestFillColumns_ForwardFillsGaps(t *testing.T) {
	r := fillFixture(t, map[string]interface{}{
		"B4": "EU",
		"B7": "US",
	})

	filled, err := fillColumns(r, []string{"B"}, 4, 9, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, filled)

	assert.Equal(t, "EU", r.SafeValue(2, 5))
	assert.Equal(t, "EU", r.SafeValue(2, 6))
	assert.Equal(t, "US", r.SafeValue(2, 7))
	assert.Equal(t, "US", r.SafeValue(2, 8))
	assert.Equal(t, "US", r.SafeValue(2, 9))
}

func TestFillColumns_NothingAboveStaysEmpty(t *testing.T) {
	r := fillFixture(t, map[string]interface{}{
		"B7": "late value",
	})

	filled, err := fillColumns(r, []string{"B"}, 4, 7, 0)
	require.NoError(t, err)
	assert.Zero(t, filled)

	assert.Empty(t, r.SafeValue(2, 4))
	assert.Empty(t, r.SafeValue(2, 6))
	assert.Equal(t, "late value", r.SafeValue(2, 7))
}

func TestFillColumns_SkipsMergedMembers(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetCellValue("Sheet1", "B4", "EU"))
	require.NoError(t, f.MergeCell("Sheet1", "B5", "B6"))
	r, err := grid.NewSheetReader(f, "Sheet1")
	require.NoError(t, err)

	filled, err := fillColumns(r, []string{"B"}, 4, 7, 0)
	require.NoError(t, err)

	// The merge anchor B5 takes the fill; the covered member B6 gets no
	// write of its own. Reads resolve merged ranges to the anchor, so
	// split the range apart to see what was actually stored.
	assert.Equal(t, 2, filled)
	assert.Equal(t, "EU", r.SafeValue(2, 5))
	require.NoError(t, f.UnmergeCell("Sheet1", "B5", "B6"))
	member, err := f.GetCellValue("Sheet1", "B6")
	require.NoError(t, err)
	assert.Empty(t, member)
	assert.Equal(t, "EU", r.SafeValue(2, 7))
}

func TestFillColumns_IterationCap(t *testing.T) {
	r := fillFixture(t, map[string]interface{}{
		"B4": "EU",
	})

	filled, err := fillColumns(r, []string{"B"}, 4, 9, 3)
	require.NoError(t, err)

	// Rows 4 to 6 are visited, everything past the cap stays empty.
	assert.Equal(t, 2, filled)
	assert.Equal(t, "EU", r.SafeValue(2, 6))
	assert.Empty(t, r.SafeValue(2, 7))
}

func TestFillColumns_MultipleColumns(t *testing.T) {
	r := fillFixture(t, map[string]interface{}{
		"B4": "EU",
		"D4": "EN 71",
	})

	filled, err := fillColumns(r, []string{"B", "D"}, 4, 6, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, filled)
	assert.Equal(t, "EU", r.SafeValue(2, 6))
	assert.Equal(t, "EN 71", r.SafeValue(4, 6))
}

func TestFillColumns_BadColumn(t *testing.T) {
	r := fillFixture(t, map[string]interface{}{"B4": "EU"})

	_, err := fillColumns(r, []string{"4B"}, 4, 5, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "4B")
}
