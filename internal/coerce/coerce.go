// Package coerce converts resolved cells into typed label and numeric
// results under a locale-aware numeric grammar.
package coerce

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/klytics/irkit/internal/workbook"
)

// ErrNonNumeric is returned in strict mode when a value cannot be parsed as
// a number; the message identifies the offending raw value.
var ErrNonNumeric = errors.New("non-numeric value")

// BlankPolicy selects what blank cells coerce to. The extraction layer uses
// BlankNull (nullable data); the chart pipeline uses BlankZero (zero-filled
// series). The divergence is intentional domain behavior, so each call site
// states its policy explicitly.
type BlankPolicy int

const (
	BlankNull BlankPolicy = iota
	BlankZero
)

// NumberOptions configures numeric coercion for one call site.
type NumberOptions struct {
	Strict          bool
	Blank           BlankPolicy
	PercentAsPoints bool
}

// Label renders a cell as a label string. Empty cells become "", date cells
// render ISO-8601, everything else uses its natural string form.
func Label(c workbook.Cell) string {
	switch c.Kind {
	case workbook.CellEmpty:
		return ""
	case workbook.CellText:
		return c.Text
	case workbook.CellDateTime:
		return FormatDateTime(c)
	case workbook.CellNumber:
		return strconv.FormatFloat(c.Number, 'f', -1, 64)
	}
	return ""
}

// Labels coerces a flattened sequence of cells to label strings.
func Labels(cells []workbook.Cell) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = Label(c)
	}
	return out
}

// FormatDateTime renders a date cell ISO-8601, omitting a midnight time part
// so plain date cells come out as "2006-01-02".
func FormatDateTime(c workbook.Cell) string {
	t := c.Time
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format("2006-01-02T15:04:05")
}

// Number coerces a cell to a float pointer; nil signals null (BlankNull
// policy only). Native numbers pass through; strings parse under the locale
// grammar; failures raise ErrNonNumeric in strict mode and degrade to the
// blank value otherwise.
func Number(c workbook.Cell, opts NumberOptions) (*float64, error) {
	switch c.Kind {
	case workbook.CellEmpty:
		return blankValue(opts.Blank), nil
	case workbook.CellNumber:
		v := c.Number
		if opts.PercentAsPoints && c.Percent {
			v *= 100
		}
		return &v, nil
	case workbook.CellDateTime:
		// A date where a number is expected: use the underlying serial.
		v := c.Number
		return &v, nil
	case workbook.CellText:
		if strings.TrimSpace(c.Text) == "" {
			return blankValue(opts.Blank), nil
		}
		v, err := ParseNumeric(c.Text)
		if err != nil {
			if opts.Strict {
				return nil, err
			}
			return blankValue(opts.Blank), nil
		}
		return &v, nil
	}
	return blankValue(opts.Blank), nil
}

// Numbers coerces a flattened sequence of cells under one option set.
func Numbers(cells []workbook.Cell, opts NumberOptions) ([]*float64, error) {
	out := make([]*float64, len(cells))
	for i, c := range cells {
		v, err := Number(c, opts)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Floats coerces to a plain float slice, the chart-pipeline shape: blanks
// become zero and any nil from the coercer is flattened to 0.
func Floats(cells []workbook.Cell, strict bool) ([]float64, error) {
	ptrs, err := Numbers(cells, NumberOptions{Strict: strict, Blank: BlankZero})
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(ptrs))
	for i, p := range ptrs {
		if p != nil {
			out[i] = *p
		}
	}
	return out, nil
}

func blankValue(p BlankPolicy) *float64 {
	if p == BlankZero {
		zero := 0.0
		return &zero
	}
	return nil
}

// ParseNumeric parses a locale-formatted numeric string.
//
// Grammar: surrounding whitespace is ignored; "(...)" means negative;
// a leading "+" and a trailing "%" are stripped (the percent sign never
// scales the value); when both "," and "." appear the rightmost one is the
// decimal point and the other is thousands grouping; a lone "," is a decimal
// separator; a lone "." is thousands grouping only when every group after
// the first has exactly three digits.
func ParseNumeric(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("%w: %q", ErrNonNumeric, raw)
	}

	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	s = strings.TrimPrefix(s, "+")
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return 0, fmt.Errorf("%w: %q", ErrNonNumeric, raw)
	}

	comma := strings.LastIndex(s, ",")
	dot := strings.LastIndex(s, ".")
	switch {
	case comma >= 0 && dot >= 0:
		if comma > dot {
			// comma-decimal locale: "1.234,56"
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			// dot-decimal locale: "1,234.56"
			s = strings.ReplaceAll(s, ",", "")
		}
	case comma >= 0:
		if strings.Count(s, ",") > 1 {
			return 0, fmt.Errorf("%w: %q", ErrNonNumeric, raw)
		}
		s = strings.Replace(s, ",", ".", 1)
	case dot >= 0:
		if looksLikeDotGrouping(s) {
			s = strings.ReplaceAll(s, ".", "")
		}
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrNonNumeric, raw)
	}
	if neg {
		v = -v
	}
	return v, nil
}

// looksLikeDotGrouping reports whether dots in s read as thousands grouping:
// more than one segment and every segment after the first exactly 3 digits.
func looksLikeDotGrouping(s string) bool {
	body := strings.TrimPrefix(s, "-")
	parts := strings.Split(body, ".")
	if len(parts) < 2 {
		return false
	}
	if parts[0] == "" {
		return false
	}
	for _, p := range parts[1:] {
		if len(p) != 3 {
			return false
		}
		for _, r := range p {
			if r < '0' || r > '9' {
				return false
			}
		}
	}
	// "1.234" is grouping only if the head is plausible grouping too.
	for _, r := range parts[0] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(parts[0]) <= 3
}
