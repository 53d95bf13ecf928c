// Package extract reads named label/value series out of a workbook according
// to a list of specs and renders them as a deterministic JSON payload.
package extract

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/klytics/irkit/internal/a1"
	"github.com/klytics/irkit/internal/coerce"
	"github.com/klytics/irkit/internal/workbook"
)

// Options controls one extraction run.
type Options struct {
	// DefaultSheet is used by specs that name no sheet of their own.
	DefaultSheet string
	// StrictNumbers makes non-numeric value cells an error instead of null.
	StrictNumbers bool
	// IncludeMeta adds the source sheet and the verbatim range strings to
	// each series.
	IncludeMeta bool
	// LowercaseFields renders series keys as labels/values/sheet/ranges
	// instead of the default Labels/Values/Sheet/Ranges.
	LowercaseFields bool
}

// Series is one extracted data series. Values are nullable: blank cells and
// (in lenient mode) non-numeric cells come out as nil.
type Series struct {
	Labels []string
	Values []*float64

	// Meta, present only when Options.IncludeMeta was set.
	Sheet       string
	LabelsRange string
	ValuesRange string

	lowercase bool
	hasMeta   bool
}

// Result holds extracted series keyed by spec id. Iteration and JSON
// rendering follow first-appearance order; a duplicated id overwrites the
// earlier series in place, so rendering the same input twice is
// byte-identical.
type Result struct {
	order  []string
	series map[string]Series
}

// IDs returns the series ids in first-appearance order.
func (r *Result) IDs() []string { return append([]string(nil), r.order...) }

// Get returns the series for an id.
func (r *Result) Get(id string) (Series, bool) {
	s, ok := r.series[id]
	return s, ok
}

// Len returns the number of series.
func (r *Result) Len() int { return len(r.order) }

func (r *Result) put(id string, s Series) {
	if r.series == nil {
		r.series = make(map[string]Series)
	}
	if _, seen := r.series[id]; !seen {
		r.order = append(r.order, id)
	}
	r.series[id] = s
}

// MarshalJSON renders the result as an object of series keyed by id, in
// first-appearance order.
func (r *Result) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range r.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeKey(&buf, id); err != nil {
			return nil, err
		}
		s := r.series[id]
		data, err := s.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(data)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalJSON renders the series with a fixed key order: labels, values,
// then (with meta) sheet and ranges.
func (s Series) MarshalJSON() ([]byte, error) {
	keys := [4]string{"Labels", "Values", "Sheet", "Ranges"}
	if s.lowercase {
		keys = [4]string{"labels", "values", "sheet", "ranges"}
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	if err := writeKey(&buf, keys[0]); err != nil {
		return nil, err
	}
	if err := writeValue(&buf, s.Labels); err != nil {
		return nil, err
	}
	buf.WriteByte(',')
	if err := writeKey(&buf, keys[1]); err != nil {
		return nil, err
	}
	if err := writeValue(&buf, s.Values); err != nil {
		return nil, err
	}
	if s.hasMeta {
		buf.WriteByte(',')
		if err := writeKey(&buf, keys[2]); err != nil {
			return nil, err
		}
		if err := writeValue(&buf, s.Sheet); err != nil {
			return nil, err
		}
		buf.WriteByte(',')
		if err := writeKey(&buf, keys[3]); err != nil {
			return nil, err
		}
		ranges := struct {
			Labels string `json:"labels"`
			Values string `json:"values"`
		}{s.LabelsRange, s.ValuesRange}
		if err := writeValue(&buf, ranges); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeKey(buf *bytes.Buffer, key string) error {
	if err := writeValue(buf, key); err != nil {
		return err
	}
	buf.WriteByte(':')
	return nil
}

func writeValue(buf *bytes.Buffer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	buf.Write(data)
	return nil
}

// Extract runs the specs against an open workbook.
func Extract(wb *workbook.Workbook, specs []Spec, opts Options) (*Result, error) {
	res := &Result{}
	for _, sp := range specs {
		sheet := sp.Sheet
		if sheet == "" {
			sheet = opts.DefaultSheet
		}
		if sheet == "" {
			return nil, fmt.Errorf("spec %q names no sheet and no default sheet is set", sp.ID)
		}

		labels, err := readLabels(wb, sheet, sp)
		if err != nil {
			return nil, err
		}
		values, err := readValues(wb, sheet, sp, opts.StrictNumbers)
		if err != nil {
			return nil, err
		}

		s := Series{
			Labels:    labels,
			Values:    values,
			lowercase: opts.LowercaseFields,
		}
		if opts.IncludeMeta {
			s.hasMeta = true
			s.Sheet = sheet
			s.LabelsRange = sp.LabelsRange
			s.ValuesRange = sp.ValuesRange
		}
		res.put(sp.ID, s)
	}
	return res, nil
}

// ExtractBytes opens a workbook from memory and runs the specs against it.
func ExtractBytes(data []byte, specs []Spec, opts Options) (*Result, error) {
	wb, err := workbook.OpenBytes(data)
	if err != nil {
		return nil, err
	}
	defer wb.Close()
	return Extract(wb, specs, opts)
}

// ExtractFile opens a workbook from disk and runs the specs against it.
func ExtractFile(path string, specs []Spec, opts Options) (*Result, error) {
	wb, err := workbook.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer wb.Close()
	return Extract(wb, specs, opts)
}

func readLabels(wb *workbook.Workbook, sheet string, sp Spec) ([]string, error) {
	rect, err := a1.Resolve(sp.LabelsRange)
	if err != nil {
		return nil, fmt.Errorf("spec %q labels range: %w", sp.ID, err)
	}
	grid, err := wb.ReadRange(sheet, rect)
	if err != nil {
		return nil, fmt.Errorf("spec %q: %w", sp.ID, err)
	}
	return coerce.Labels(workbook.Flatten(grid)), nil
}

func readValues(wb *workbook.Workbook, sheet string, sp Spec, strict bool) ([]*float64, error) {
	rect, err := a1.Resolve(sp.ValuesRange)
	if err != nil {
		return nil, fmt.Errorf("spec %q values range: %w", sp.ID, err)
	}
	grid, err := wb.ReadRange(sheet, rect)
	if err != nil {
		return nil, fmt.Errorf("spec %q: %w", sp.ID, err)
	}
	values, err := coerce.Numbers(workbook.Flatten(grid), coerce.NumberOptions{
		Strict: strict,
		Blank:  coerce.BlankNull,
	})
	if err != nil {
		return nil, fmt.Errorf("spec %q: %w", sp.ID, err)
	}
	return values, nil
}
