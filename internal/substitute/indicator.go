package substitute

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Style holds the colors and glyphs used when rendering VAR_* delta fields.
// Colors are RRGGBB hex without a leading '#'.
type Style struct {
	UpColor      string
	DownColor    string
	NeutralColor string
	UpGlyph      string
	DownGlyph    string
	NeutralGlyph string
	// Epsilon is the magnitude below which a delta counts as zero.
	Epsilon float64
}

// DefaultStyle is the green-up / red-down / gray-zero scheme used by the
// standard quarterly templates.
func DefaultStyle() Style {
	return Style{
		UpColor:      "00B050",
		DownColor:    "C00000",
		NeutralColor: "7F7F7F",
		UpGlyph:      "▲",
		DownGlyph:    "▼",
		NeutralGlyph: "●",
		Epsilon:      1e-9,
	}
}

// Indicator is a rendered delta: a colored direction glyph followed by an
// uncolored magnitude.
type Indicator struct {
	Glyph     string
	Magnitude string
	Color     string
}

var looseFloatJunk = regexp.MustCompile(`[^0-9eE+\-.,]`)

// parseFloatLoose extracts a float from loosely formatted delta text such as
// "-1,2%", "+0.5%" or "0.03". Unlike the strict coercion grammar it discards
// any non-numeric characters before parsing.
func parseFloatLoose(text string) (float64, bool) {
	s := strings.TrimSpace(text)
	if s == "" {
		return 0, false
	}
	s = strings.ReplaceAll(s, "%", "")
	s = strings.ReplaceAll(s, " ", "")
	s = looseFloatJunk.ReplaceAllString(s, "")

	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	if strings.Contains(s, ",") && strings.Contains(s, ".") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// FormatIndicator renders a VAR_* value as glyph + magnitude. ok is false
// when the value is not numeric, in which case the caller falls back to the
// raw text.
//
// A source that already carries a '%' keeps its formatted magnitude with
// sign characters stripped. Otherwise magnitudes at or below 1.0 are read as
// fractions and scaled to percent; the result renders with one decimal and a
// comma separator.
func FormatIndicator(raw string, style Style) (Indicator, bool) {
	val, numeric := parseFloatLoose(raw)
	if !numeric {
		return Indicator{}, false
	}

	trimmed := strings.TrimSpace(raw)
	hasPercent := strings.Contains(trimmed, "%")

	var ind Indicator
	mag := val
	switch {
	case val > -style.Epsilon && val < style.Epsilon:
		ind.Glyph, ind.Color, mag = style.NeutralGlyph, style.NeutralColor, 0
	case val > 0:
		ind.Glyph, ind.Color = style.UpGlyph, style.UpColor
	default:
		ind.Glyph, ind.Color, mag = style.DownGlyph, style.DownColor, -val
	}

	if hasPercent {
		cleaned := strings.ReplaceAll(trimmed, "+", "")
		cleaned = strings.ReplaceAll(cleaned, "-", "")
		ind.Magnitude = strings.TrimSpace(cleaned)
		return ind, true
	}

	pct := mag
	if mag <= 1.0 {
		pct = mag * 100.0
	}
	ind.Magnitude = strings.Replace(fmt.Sprintf("%.1f%%", pct), ".", ",", 1)
	return ind, true
}

// IsVarKey reports whether a mapping key carries delta-indicator formatting.
func IsVarKey(key string) bool {
	return strings.HasPrefix(strings.ToUpper(key), "VAR_")
}
