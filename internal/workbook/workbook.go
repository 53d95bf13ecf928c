// Package workbook wraps excelize with range-oriented, typed cell access.
// Raw cell content is resolved into a tagged variant (Empty, Number, Text,
// DateTime) at this boundary so no untyped values leak into the extraction
// or substitution layers.
package workbook

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/klytics/irkit/internal/a1"
)

var (
	// ErrEmptyInput is returned when workbook bytes are empty or blank.
	ErrEmptyInput = errors.New("empty workbook input")
	// ErrInvalidWorkbook wraps the underlying parse error for content that
	// cannot be opened as an XLSX file.
	ErrInvalidWorkbook = errors.New("invalid workbook")
	// ErrSheetNotFound is returned when a referenced sheet is absent.
	ErrSheetNotFound = errors.New("sheet not found")
)

// CellKind tags the resolved type of a cell value.
type CellKind int

const (
	CellEmpty CellKind = iota
	CellNumber
	CellText
	CellDateTime
)

// Cell is a single resolved cell value. Exactly one of Number, Text or Time
// is meaningful, selected by Kind. Percent is set for numeric cells whose
// display format is percent-styled: the stored value is a fraction (0.09 for
// "9%"), which percent-as-points call sites multiply by 100.
type Cell struct {
	Kind    CellKind
	Number  float64
	Text    string
	Time    time.Time
	Percent bool
}

// Workbook is an opened XLSX file. Values read through it are the cached
// (last-saved) results; formulas are never evaluated.
type Workbook struct {
	f    *excelize.File
	path string
}

// OpenFile opens a workbook from disk.
func OpenFile(path string) (*Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: could not open %s: %v", ErrInvalidWorkbook, path, err)
	}
	return &Workbook{f: f, path: path}, nil
}

// OpenBytes opens a workbook from an in-memory byte slice.
func OpenBytes(data []byte) (*Workbook, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyInput
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWorkbook, err)
	}
	return &Workbook{f: f}, nil
}

// Close releases the underlying file handle.
func (w *Workbook) Close() error { return w.f.Close() }

// Path returns the source path, if the workbook was opened from disk.
func (w *Workbook) Path() string { return w.path }

// SheetNames lists the workbook's sheets in document order.
func (w *Workbook) SheetNames() []string { return w.f.GetSheetList() }

// HasSheet reports whether the named sheet exists.
func (w *Workbook) HasSheet(name string) bool {
	for _, s := range w.f.GetSheetList() {
		if s == name {
			return true
		}
	}
	return false
}

// RequireSheet returns ErrSheetNotFound, listing the available sheets, when
// the named sheet is absent.
func (w *Workbook) RequireSheet(name string) error {
	if w.HasSheet(name) {
		return nil
	}
	return fmt.Errorf("%w: %q (available: %v)", ErrSheetNotFound, name, w.SheetNames())
}

// ReadRange reads the rectangle from the sheet as a row-major grid of
// resolved cells.
func (w *Workbook) ReadRange(sheet string, rect a1.Rect) ([][]Cell, error) {
	if err := w.RequireSheet(sheet); err != nil {
		return nil, err
	}

	grid := make([][]Cell, 0, rect.Height())
	for row := rect.MinRow; row <= rect.MaxRow; row++ {
		cells := make([]Cell, 0, rect.Width())
		for col := rect.MinCol; col <= rect.MaxCol; col++ {
			c, err := w.readCell(sheet, col, row)
			if err != nil {
				return nil, err
			}
			cells = append(cells, c)
		}
		grid = append(grid, cells)
	}
	return grid, nil
}

// Flatten reduces a grid to a 1-D sequence. A single-row grid yields that
// row; otherwise a single-column grid yields that column top-to-bottom;
// any other shape flattens row-major. The row check runs strictly before
// the column check — wide single-row ranges are the common spec layout.
func Flatten(grid [][]Cell) []Cell {
	if len(grid) == 0 {
		return nil
	}
	if len(grid) == 1 {
		return append([]Cell(nil), grid[0]...)
	}
	if len(grid[0]) == 1 {
		out := make([]Cell, 0, len(grid))
		for _, row := range grid {
			out = append(out, row[0])
		}
		return out
	}
	var out []Cell
	for _, row := range grid {
		out = append(out, row...)
	}
	return out
}

// RawCellValue returns the unformatted stored content of a single cell.
// Used by the text-field fallback path for workbooks saved without cached
// formula results.
func (w *Workbook) RawCellValue(sheet string, col, row int) (string, error) {
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return "", err
	}
	return w.f.GetCellValue(sheet, name, excelize.Options{RawCellValue: true})
}

// CellFormula returns the formula string of a cell, or "" when the cell
// holds a literal.
func (w *Workbook) CellFormula(sheet string, col, row int) (string, error) {
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return "", err
	}
	return w.f.GetCellFormula(sheet, name)
}

func (w *Workbook) readCell(sheet string, col, row int) (Cell, error) {
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return Cell{}, err
	}

	raw, err := w.f.GetCellValue(sheet, name, excelize.Options{RawCellValue: true})
	if err != nil {
		return Cell{}, fmt.Errorf("could not read cell %s!%s: %w", sheet, name, err)
	}
	if raw == "" {
		return Cell{Kind: CellEmpty}, nil
	}

	ct, err := w.f.GetCellType(sheet, name)
	if err != nil {
		return Cell{}, fmt.Errorf("could not type cell %s!%s: %w", sheet, name, err)
	}
	if ct == excelize.CellTypeSharedString || ct == excelize.CellTypeInlineString {
		return Cell{Kind: CellText, Text: raw}, nil
	}

	num, parseErr := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if parseErr != nil {
		// Cached string formula results and error cells land here.
		return Cell{Kind: CellText, Text: raw}, nil
	}

	numFmtID, custom := w.cellFormat(sheet, name)
	if isDateFormat(numFmtID, custom) {
		t, convErr := excelize.ExcelDateToTime(num, false)
		if convErr == nil {
			return Cell{Kind: CellDateTime, Time: t, Number: num}, nil
		}
	}

	return Cell{Kind: CellNumber, Number: num, Percent: isPercentFormat(numFmtID, custom)}, nil
}

func (w *Workbook) cellFormat(sheet, name string) (numFmtID int, custom string) {
	styleID, err := w.f.GetCellStyle(sheet, name)
	if err != nil {
		return 0, ""
	}
	style, err := w.f.GetStyle(styleID)
	if err != nil || style == nil {
		return 0, ""
	}
	if style.CustomNumFmt != nil {
		custom = *style.CustomNumFmt
	}
	return style.NumFmt, custom
}

func isPercentFormat(numFmtID int, custom string) bool {
	if numFmtID == 9 || numFmtID == 10 {
		return true
	}
	return strings.Contains(stripQuoted(custom), "%")
}

func isDateFormat(numFmtID int, custom string) bool {
	if (numFmtID >= 14 && numFmtID <= 22) || (numFmtID >= 45 && numFmtID <= 47) {
		return true
	}
	c := stripQuoted(custom)
	if c == "" || strings.Contains(c, "%") {
		return false
	}
	return strings.ContainsAny(strings.ToLower(c), "ymdh")
}

// stripQuoted removes literal "..." sections so text like "kg" in a custom
// number format does not trip the date/percent heuristics.
func stripQuoted(format string) string {
	var b strings.Builder
	inQuote := false
	for _, r := range format {
		if r == '"' {
			inQuote = !inQuote
			continue
		}
		if !inQuote {
			b.WriteRune(r)
		}
	}
	return b.String()
}
