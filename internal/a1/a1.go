// Package a1 resolves A1-style spreadsheet references into normalized
// rectangles. It is pure parsing: no workbook access happens here.
package a1

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrInvalidAddress is returned when a reference does not match the A1 grammar.
var ErrInvalidAddress = errors.New("invalid A1 reference")

// Rect is a resolved cell rectangle, 1-indexed on both axes.
// A single cell resolves to a degenerate 1x1 rectangle.
type Rect struct {
	MinCol int
	MinRow int
	MaxCol int
	MaxRow int
}

// SingleCell reports whether the rectangle covers exactly one cell.
func (r Rect) SingleCell() bool {
	return r.MinCol == r.MaxCol && r.MinRow == r.MaxRow
}

// Width returns the number of columns in the rectangle.
func (r Rect) Width() int { return r.MaxCol - r.MinCol + 1 }

// Height returns the number of rows in the rectangle.
func (r Rect) Height() int { return r.MaxRow - r.MinRow + 1 }

// String renders the rectangle back in A1 form, e.g. "C3:K3" or "B2".
func (r Rect) String() string {
	tl := ColName(r.MinCol) + strconv.Itoa(r.MinRow)
	if r.SingleCell() {
		return tl
	}
	return tl + ":" + ColName(r.MaxCol) + strconv.Itoa(r.MaxRow)
}

var cellPattern = regexp.MustCompile(`^\$?([A-Za-z]+)\$?([0-9]+)$`)

// Resolve parses a cell ("L3", "$L$3") or range ("L3:M3") reference.
// Range endpoints may be given in any order; the result is normalized so
// that min <= max on both axes.
func Resolve(ref string) (Rect, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Rect{}, fmt.Errorf("%w: empty reference", ErrInvalidAddress)
	}

	if !strings.Contains(ref, ":") {
		col, row, err := parseCell(ref)
		if err != nil {
			return Rect{}, err
		}
		return Rect{MinCol: col, MinRow: row, MaxCol: col, MaxRow: row}, nil
	}

	left, right, _ := strings.Cut(ref, ":")
	c1, r1, err := parseCell(strings.TrimSpace(left))
	if err != nil {
		return Rect{}, err
	}
	c2, r2, err := parseCell(strings.TrimSpace(right))
	if err != nil {
		return Rect{}, err
	}

	return Rect{
		MinCol: min(c1, c2),
		MinRow: min(r1, r2),
		MaxCol: max(c1, c2),
		MaxRow: max(r1, r2),
	}, nil
}

func parseCell(cell string) (col, row int, err error) {
	m := cellPattern.FindStringSubmatch(cell)
	if m == nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidAddress, cell)
	}
	col, err = ColIndex(m[1])
	if err != nil {
		return 0, 0, err
	}
	row, err = strconv.Atoi(m[2])
	if err != nil || row < 1 {
		return 0, 0, fmt.Errorf("%w: bad row in %q", ErrInvalidAddress, cell)
	}
	return col, row, nil
}

// ColIndex decodes a column letter sequence to its 1-based index.
// Standard spreadsheet numbering: base-26 with 1-based digits, so there is
// no zero digit ("A"=1 ... "Z"=26, "AA"=27).
func ColIndex(letters string) (int, error) {
	letters = strings.ToUpper(strings.TrimSpace(letters))
	if letters == "" {
		return 0, fmt.Errorf("%w: empty column", ErrInvalidAddress)
	}
	col := 0
	for _, ch := range letters {
		if ch < 'A' || ch > 'Z' {
			return 0, fmt.Errorf("%w: bad column %q", ErrInvalidAddress, letters)
		}
		col = col*26 + int(ch-'A') + 1
	}
	return col, nil
}

// ColName encodes a 1-based column index back to letters.
func ColName(col int) string {
	var b []byte
	for col > 0 {
		col--
		b = append([]byte{byte('A' + col%26)}, b...)
		col /= 26
	}
	return string(b)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
