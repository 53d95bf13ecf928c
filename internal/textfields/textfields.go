// Package textfields extracts named text values (single cells or small
// ranges) from a workbook, for direct substitution into a presentation.
package textfields

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/klytics/irkit/internal/a1"
	"github.com/klytics/irkit/internal/coerce"
	"github.com/klytics/irkit/internal/workbook"
)

// ErrInvalidConfig is returned for text-field configs that do not match
// either accepted shape.
var ErrInvalidConfig = errors.New("invalid text fields config")

// Spec names one text field: an A1 cell or range on a sheet.
type Spec struct {
	ID    string
	Range string
	Sheet string
}

// Config is a parsed text-fields file.
type Config struct {
	DefaultSheet string
	Specs        []Spec
	// LLMFields restricts which analysis-derived keys may be merged over
	// workbook-derived ones. Empty means merge everything.
	LLMFields []string
}

// ParseConfig parses a text-fields config. Two shapes are accepted:
//
// Object form (preferred):
//
//	{"default_sheet": "DRE Saida",
//	 "fields": {"ROE_RECORRENTE": "K20",
//	            "OUTRO": {"sheet": "Aba", "cell": "B2"}},
//	 "llm_fields": ["DESTAQUE_1"]}
//
// List form:
//
//	[{"id": "ROE_RECORRENTE", "sheet": "DRE Saida", "cell": "K20"}]
//
// "range" is accepted as an alias for "cell", and "from_llm" for
// "llm_fields". Field order in the object form is not preserved; extraction
// output is keyed, so order never matters downstream.
func ParseConfig(data []byte) (Config, error) {
	var asList []map[string]any
	if err := json.Unmarshal(data, &asList); err == nil {
		return parseListForm(asList)
	}

	var asObject map[string]any
	if err := json.Unmarshal(data, &asObject); err != nil {
		return Config{}, fmt.Errorf("%w: expected a JSON object or list: %v", ErrInvalidConfig, err)
	}
	return parseObjectForm(asObject)
}

// ParseConfigFile reads and parses a text-fields config file.
func ParseConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("could not read text fields config %s: %w", path, err)
	}
	return ParseConfig(data)
}

func parseListForm(items []map[string]any) (Config, error) {
	var cfg Config
	for i, item := range items {
		id := firstString(item, "id", "ID")
		ref := firstString(item, "cell", "Cell", "range", "Range")
		if id == "" || ref == "" {
			return Config{}, fmt.Errorf("%w: entry %d needs 'id' and 'cell' (or 'range')",
				ErrInvalidConfig, i+1)
		}
		cfg.Specs = append(cfg.Specs, Spec{
			ID:    id,
			Range: ref,
			Sheet: firstString(item, "sheet", "Sheet"),
		})
	}
	return cfg, nil
}

func parseObjectForm(obj map[string]any) (Config, error) {
	cfg := Config{DefaultSheet: firstString(obj, "default_sheet", "DEFAULT_SHEET")}

	fields, ok := obj["fields"].(map[string]any)
	if !ok {
		return Config{}, fmt.Errorf("%w: object form needs a 'fields' object", ErrInvalidConfig)
	}
	for id, v := range fields {
		switch t := v.(type) {
		case string:
			cfg.Specs = append(cfg.Specs, Spec{ID: id, Range: t})
		case map[string]any:
			ref := firstString(t, "cell", "range")
			if ref == "" {
				return Config{}, fmt.Errorf("%w: field %q needs 'cell' (or 'range')", ErrInvalidConfig, id)
			}
			cfg.Specs = append(cfg.Specs, Spec{ID: id, Range: ref, Sheet: firstString(t, "sheet")})
		default:
			return Config{}, fmt.Errorf("%w: field %q must be a string or an object", ErrInvalidConfig, id)
		}
	}

	for _, key := range []string{"llm_fields", "from_llm"} {
		if list, ok := obj[key].([]any); ok {
			for _, v := range list {
				cfg.LLMFields = append(cfg.LLMFields, fmt.Sprint(v))
			}
			break
		}
	}
	return cfg, nil
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// Extract resolves every spec against an open workbook. Single cells map to
// their rendered value; multi-cell ranges join non-empty values with ", ";
// an all-empty range maps to "".
func Extract(wb *workbook.Workbook, specs []Spec, defaultSheet string) (map[string]string, error) {
	out := make(map[string]string, len(specs))
	for _, sp := range specs {
		sheet := sp.Sheet
		if sheet == "" {
			sheet = defaultSheet
		}
		if sheet == "" {
			return nil, fmt.Errorf("field %q names no sheet and no default_sheet is set", sp.ID)
		}

		rect, err := a1.Resolve(sp.Range)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", sp.ID, err)
		}
		grid, err := wb.ReadRange(sheet, rect)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", sp.ID, err)
		}
		out[sp.ID] = joinPieces(coerce.Labels(workbook.Flatten(grid)))
	}
	return out, nil
}

// ExtractFile opens the workbook, extracts the specs, and applies a fallback
// read for VAR_* fields that came out empty: workbooks saved without cached
// formula results read as blank, but a VAR_ cell that holds a literal (not a
// formula) can still be recovered from the raw stored value. Only single-cell
// references are attempted.
func ExtractFile(path string, specs []Spec, defaultSheet string) (map[string]string, error) {
	wb, err := workbook.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer wb.Close()

	out, err := Extract(wb, specs, defaultSheet)
	if err != nil {
		return nil, err
	}

	for _, sp := range specs {
		if !strings.HasPrefix(strings.ToUpper(sp.ID), "VAR_") || out[sp.ID] != "" {
			continue
		}
		sheet := sp.Sheet
		if sheet == "" {
			sheet = defaultSheet
		}
		if sheet == "" || !wb.HasSheet(sheet) {
			continue
		}
		rect, err := a1.Resolve(sp.Range)
		if err != nil || !rect.SingleCell() {
			continue
		}
		formula, err := wb.CellFormula(sheet, rect.MinCol, rect.MinRow)
		if err != nil || formula != "" {
			// A formula with no cached result cannot be evaluated here.
			continue
		}
		raw, err := wb.RawCellValue(sheet, rect.MinCol, rect.MinRow)
		if err != nil || raw == "" || strings.HasPrefix(strings.TrimSpace(raw), "=") {
			continue
		}
		out[sp.ID] = raw
	}
	return out, nil
}

func joinPieces(pieces []string) string {
	switch len(pieces) {
	case 0:
		return ""
	case 1:
		return pieces[0]
	}
	nonEmpty := pieces[:0:0]
	for _, p := range pieces {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, ", ")
}
