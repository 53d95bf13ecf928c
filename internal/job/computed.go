package job

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"

	"github.com/klytics/irkit/internal/extract"
)

// ComputedEnv builds the expression environment: extracted text fields
// under "fields", extracted series under "series" (each with "labels" and
// "values", blanks as 0), plus the helpers last, prev and pct.
func ComputedEnv(fields map[string]string, result *extract.Result) map[string]any {
	series := map[string]any{}
	if result != nil {
		for _, id := range result.IDs() {
			s, _ := result.Get(id)
			values := make([]float64, len(s.Values))
			for i, v := range s.Values {
				if v != nil {
					values[i] = *v
				}
			}
			series[id] = map[string]any{
				"labels": s.Labels,
				"values": values,
			}
		}
	}

	fieldsCopy := make(map[string]string, len(fields))
	for k, v := range fields {
		fieldsCopy[k] = v
	}

	return map[string]any{
		"fields": fieldsCopy,
		"series": series,
		"last":   lastValue,
		"prev":   prevValue,
		"pct":    pctChange,
	}
}

// EvalComputed evaluates the computed-field expressions against env, in
// sorted key order so failures are reported deterministically. Results are
// stringified for the substitution mapping.
func EvalComputed(exprs map[string]string, env map[string]any) (map[string]string, error) {
	keys := make([]string, 0, len(exprs))
	for k := range exprs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]string, len(exprs))
	for _, key := range keys {
		value, err := expr.Eval(exprs[key], env)
		if err != nil {
			return nil, fmt.Errorf("computed field %q: %w", key, err)
		}
		out[key] = stringifyComputed(value)
	}
	return out, nil
}

func stringifyComputed(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

func lastValue(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return values[len(values)-1]
}

func prevValue(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	return values[len(values)-2]
}

// pctChange renders the percent change from prev to curr as a signed,
// comma-decimal string ("+5,0%"). A zero base yields "".
func pctChange(curr, prev float64) string {
	if prev == 0 {
		return ""
	}
	pct := (curr/prev - 1.0) * 100.0
	return strings.Replace(fmt.Sprintf("%+.1f%%", pct), ".", ",", 1)
}
