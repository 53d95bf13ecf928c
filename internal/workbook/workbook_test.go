package workbook

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/klytics/irkit/internal/a1"
)

func writeFixture(t *testing.T) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "DRE Saida"
	_, err := f.NewSheet(sheet)
	require.NoError(t, err)
	require.NoError(t, f.DeleteSheet("Sheet1"))

	require.NoError(t, f.SetCellValue(sheet, "C3", "3T25"))
	require.NoError(t, f.SetCellValue(sheet, "D3", "4T25"))
	require.NoError(t, f.SetCellValue(sheet, "C18", 461))
	require.NoError(t, f.SetCellValue(sheet, "D18", 500))

	// Vertical range with a gap
	require.NoError(t, f.SetCellValue(sheet, "B5", 1.5))
	require.NoError(t, f.SetCellValue(sheet, "B7", 3.5))

	// Percent-formatted fraction
	pctStyle, err := f.NewStyle(&excelize.Style{NumFmt: 10})
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue(sheet, "E2", 0.09))
	require.NoError(t, f.SetCellStyle(sheet, "E2", "E2", pctStyle))

	path := filepath.Join(t.TempDir(), "fixture.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestOpenBytes_Empty(t *testing.T) {
	_, err := OpenBytes(nil)
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = OpenBytes([]byte("   "))
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestOpenBytes_NotAWorkbook(t *testing.T) {
	_, err := OpenBytes([]byte("definitely not a zip archive"))
	assert.ErrorIs(t, err, ErrInvalidWorkbook)
}

func TestOpenBytes_Roundtrip(t *testing.T) {
	path := writeFixture(t)
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	wb, err := OpenBytes(data)
	require.NoError(t, err)
	defer wb.Close()

	assert.True(t, wb.HasSheet("DRE Saida"))
}

func TestRequireSheet_ListsAvailable(t *testing.T) {
	wb, err := OpenFile(writeFixture(t))
	require.NoError(t, err)
	defer wb.Close()

	err = wb.RequireSheet("Nope")
	require.ErrorIs(t, err, ErrSheetNotFound)
	assert.Contains(t, err.Error(), "DRE Saida")
}

func TestReadRange_Row(t *testing.T) {
	wb, err := OpenFile(writeFixture(t))
	require.NoError(t, err)
	defer wb.Close()

	rect, err := a1.Resolve("C3:D3")
	require.NoError(t, err)

	grid, err := wb.ReadRange("DRE Saida", rect)
	require.NoError(t, err)
	require.Len(t, grid, 1)
	require.Len(t, grid[0], 2)

	assert.Equal(t, CellText, grid[0][0].Kind)
	assert.Equal(t, "3T25", grid[0][0].Text)
	assert.Equal(t, "4T25", grid[0][1].Text)
}

func TestReadRange_NumbersAndBlanks(t *testing.T) {
	wb, err := OpenFile(writeFixture(t))
	require.NoError(t, err)
	defer wb.Close()

	rect, err := a1.Resolve("B5:B7")
	require.NoError(t, err)

	grid, err := wb.ReadRange("DRE Saida", rect)
	require.NoError(t, err)
	flat := Flatten(grid)
	require.Len(t, flat, 3)

	assert.Equal(t, CellNumber, flat[0].Kind)
	assert.Equal(t, 1.5, flat[0].Number)
	assert.Equal(t, CellEmpty, flat[1].Kind)
	assert.Equal(t, 3.5, flat[2].Number)
}

func TestReadRange_PercentFormat(t *testing.T) {
	wb, err := OpenFile(writeFixture(t))
	require.NoError(t, err)
	defer wb.Close()

	rect, err := a1.Resolve("E2")
	require.NoError(t, err)

	grid, err := wb.ReadRange("DRE Saida", rect)
	require.NoError(t, err)
	c := grid[0][0]
	assert.Equal(t, CellNumber, c.Kind)
	assert.Equal(t, 0.09, c.Number)
	assert.True(t, c.Percent)
}

func TestFlatten_SingleRow(t *testing.T) {
	grid := [][]Cell{{{Kind: CellNumber, Number: 1}, {Kind: CellNumber, Number: 2}}}
	flat := Flatten(grid)
	require.Len(t, flat, 2)
	assert.Equal(t, 1.0, flat[0].Number)
	assert.Equal(t, 2.0, flat[1].Number)
}

func TestFlatten_SingleColumn(t *testing.T) {
	grid := [][]Cell{
		{{Kind: CellNumber, Number: 1}},
		{{Kind: CellNumber, Number: 2}},
		{{Kind: CellNumber, Number: 3}},
	}
	flat := Flatten(grid)
	require.Len(t, flat, 3)
	assert.Equal(t, 3.0, flat[2].Number)
}

func TestFlatten_TwoByTwoIsRowMajor(t *testing.T) {
	grid := [][]Cell{
		{{Kind: CellNumber, Number: 1}, {Kind: CellNumber, Number: 2}},
		{{Kind: CellNumber, Number: 3}, {Kind: CellNumber, Number: 4}},
	}
	flat := Flatten(grid)
	require.Len(t, flat, 4)
	assert.Equal(t, []float64{1, 2, 3, 4}, []float64{
		flat[0].Number, flat[1].Number, flat[2].Number, flat[3].Number,
	})
}

func TestFlatten_Empty(t *testing.T) {
	assert.Nil(t, Flatten(nil))
	assert.Nil(t, Flatten([][]Cell{}))
}

func TestCellFormula(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetCellFormula("Sheet1", "A1", "=B1+C1"))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", "literal"))

	path := filepath.Join(t.TempDir(), "formulas.xlsx")
	require.NoError(t, f.SaveAs(path))

	wb, err := OpenFile(path)
	require.NoError(t, err)
	defer wb.Close()

	formula, err := wb.CellFormula("Sheet1", 1, 1)
	require.NoError(t, err)
	assert.NotEmpty(t, formula)

	formula, err = wb.CellFormula("Sheet1", 1, 2)
	require.NoError(t, err)
	assert.Empty(t, formula)
}
