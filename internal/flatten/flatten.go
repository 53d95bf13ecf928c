// Package flatten turns loosely-shaped analysis payloads into the flat
// key→string mapping the substitution engine consumes.
package flatten

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// ErrNoJSONObject is returned when a response body contains no parseable
// JSON object.
var ErrNoJSONObject = errors.New("no JSON object found in response")

var (
	camelBoundary1 = regexp.MustCompile(`(.)([A-Z][a-z]+)`)
	camelBoundary2 = regexp.MustCompile(`([a-z0-9])([A-Z])`)
)

// CamelToSnake converts camelCase keys to snake_case:
// slide1Title → slide1_title, Slide1Title → slide1_title.
func CamelToSnake(key string) string {
	s := camelBoundary1.ReplaceAllString(key, "${1}_${2}")
	s = camelBoundary2.ReplaceAllString(s, "${1}_${2}")
	return strings.ToLower(strings.ReplaceAll(s, "__", "_"))
}

// Flatten extracts a flat key→string mapping from a decoded payload.
//
// The expected shape nests text under "titles" and "subtitles":
//
//	{"titles": {"slide1_title": "..."}, "subtitles": {...}}
//
// Top-level string values are accepted too. Every key also gains a
// snake_case alias when the converted form differs and is not already
// present. Non-object payloads flatten to an empty mapping. Keys within each
// section are processed in sorted order so alias resolution is
// deterministic.
func Flatten(payload any) map[string]string {
	mapping := make(map[string]string)
	obj, ok := payload.(map[string]any)
	if !ok {
		return mapping
	}

	for _, sectionKey := range []string{"titles", "subtitles"} {
		section, ok := obj[sectionKey].(map[string]any)
		if !ok {
			continue
		}
		for _, k := range sortedKeys(section) {
			add(mapping, k, section[k])
		}
	}

	for _, k := range sortedKeys(obj) {
		if k == "titles" || k == "subtitles" {
			continue
		}
		if s, ok := obj[k].(string); ok {
			add(mapping, k, s)
		}
	}
	return mapping
}

// Unwrap strips the transport envelope some services add: a payload of the
// form {"response": {...}} yields the inner object. Anything else passes
// through unchanged.
func Unwrap(payload any) any {
	if obj, ok := payload.(map[string]any); ok {
		if inner, ok := obj["response"].(map[string]any); ok {
			return inner
		}
	}
	return payload
}

func add(mapping map[string]string, key string, value any) {
	if value == nil {
		return
	}
	text := stringify(value)
	mapping[key] = text

	snake := CamelToSnake(key)
	if snake != key {
		if _, exists := mapping[snake]; !exists {
			mapping[snake] = text
		}
	}
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// StripFences removes a surrounding markdown code fence, with or without a
// language tag, from a model response.
func StripFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		if nl := strings.IndexByte(text, '\n'); nl != -1 {
			text = text[nl+1:]
		}
		text = strings.TrimSuffix(text, "```")
	}
	return strings.TrimSpace(text)
}

// FirstObjectSlice returns the first balanced top-level JSON object in text,
// tracking string and escape state so braces inside strings do not count.
func FirstObjectSlice(text string) (string, error) {
	start := strings.IndexByte(text, '{')
	if start == -1 {
		return "", ErrNoJSONObject
	}

	depth := 0
	inStr := false
	esc := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		switch {
		case esc:
			esc = false
		case ch == '\\':
			esc = true
		case ch == '"':
			inStr = !inStr
		case inStr:
		case ch == '{':
			depth++
		case ch == '}':
			depth--
			if depth == 0 {
				return text[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("%w: unbalanced object", ErrNoJSONObject)
}

// CoerceJSON decodes a model response body that may be fenced or surrounded
// by prose into a JSON object.
func CoerceJSON(text string) (map[string]any, error) {
	body := StripFences(text)

	var obj map[string]any
	if err := json.Unmarshal([]byte(body), &obj); err == nil {
		return obj, nil
	}

	slice, err := FirstObjectSlice(body)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(slice), &obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoJSONObject, err)
	}
	return obj, nil
}
