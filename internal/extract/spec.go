package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

var (
	// ErrSpecMissingField is returned for JSON spec entries lacking an id or
	// one of the two ranges.
	ErrSpecMissingField = errors.New("spec is missing a required field")
	// ErrInvalidSpecFormat is returned for compact CLI tokens that do not
	// split into one of the accepted shapes.
	ErrInvalidSpecFormat = errors.New("invalid spec format")
)

// Spec names one data series to extract: a labels range and a values range
// on a sheet. Immutable once parsed.
type Spec struct {
	ID          string
	Sheet       string
	LabelsRange string
	ValuesRange string
}

// ParseSpecsJSON parses the JSON list form:
//
//	[{"id": "lucroTrimestre", "sheet": "DRE Saida",
//	  "labels_range": "C3:K3", "values_range": "C18:K18"}]
//
// "labels"/"values" are accepted as aliases, and "ID" for "id".
func ParseSpecsJSON(data []byte) ([]Spec, error) {
	var items []map[string]any
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("specs file must be a JSON list of objects: %w", err)
	}

	specs := make([]Spec, 0, len(items))
	for i, item := range items {
		id := strings.TrimSpace(stringField(item, "id", "ID"))
		if id == "" {
			return nil, fmt.Errorf("%w: entry %d has no 'id'", ErrSpecMissingField, i+1)
		}
		labels := stringField(item, "labels_range", "labels")
		values := stringField(item, "values_range", "values")
		if labels == "" || values == "" {
			return nil, fmt.Errorf("%w: spec %q needs labels_range and values_range (or labels/values)",
				ErrSpecMissingField, id)
		}
		specs = append(specs, Spec{
			ID:          id,
			Sheet:       stringField(item, "sheet"),
			LabelsRange: labels,
			ValuesRange: values,
		})
	}
	return specs, nil
}

// ParseSpecsFile reads and parses a JSON specs file.
func ParseSpecsFile(path string) ([]Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read specs file %s: %w", path, err)
	}
	return ParseSpecsJSON(data)
}

// ParseSpecTokens parses compact colon-delimited CLI tokens. Shapes are
// disambiguated purely by part count after splitting on ':':
//
//	3 parts: ID:LABELS:VALUES                (default sheet)
//	4 parts: ID:SHEET:LABELS:VALUES
//	5 parts: ID:L3:M3:L20:M20                (ranges contain ':', default sheet)
//	6 parts: ID:SHEET:L3:M3:L20:M20
func ParseSpecTokens(tokens []string, defaultSheet string) ([]Spec, error) {
	specs := make([]Spec, 0, len(tokens))
	for _, raw := range tokens {
		parts := strings.Split(raw, ":")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}

		var spec Spec
		switch len(parts) {
		case 3:
			spec = Spec{ID: parts[0], Sheet: defaultSheet, LabelsRange: parts[1], ValuesRange: parts[2]}
		case 4:
			spec = Spec{ID: parts[0], Sheet: parts[1], LabelsRange: parts[2], ValuesRange: parts[3]}
		case 5:
			spec = Spec{
				ID:          parts[0],
				Sheet:       defaultSheet,
				LabelsRange: parts[1] + ":" + parts[2],
				ValuesRange: parts[3] + ":" + parts[4],
			}
		case 6:
			spec = Spec{
				ID:          parts[0],
				Sheet:       parts[1],
				LabelsRange: parts[2] + ":" + parts[3],
				ValuesRange: parts[4] + ":" + parts[5],
			}
		default:
			return nil, fmt.Errorf("%w: %q — expected ID:LABELS:VALUES, ID:SHEET:LABELS:VALUES, "+
				"or the 5/6-part forms for ranges that contain ':' (e.g. ROE_9M:L3:M3:L20:M20)",
				ErrInvalidSpecFormat, raw)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func stringField(item map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := item[k]; ok && v != nil {
			switch t := v.(type) {
			case string:
				if t != "" {
					return t
				}
			default:
				return fmt.Sprint(t)
			}
		}
	}
	return ""
}
