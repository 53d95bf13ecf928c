package deck

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// ShapeKind distinguishes the two shape blocks the engine cares about.
type ShapeKind int

const (
	ShapeText    ShapeKind = iota // <p:sp>
	ShapePicture                  // <p:pic>
)

// Shape is one shape block inside a slide, located by byte offsets into the
// slide XML so replacements can be applied without reparsing.
type Shape struct {
	Kind  ShapeKind
	Start int
	End   int
	XML   string
}

var (
	spPattern  = regexp.MustCompile(`(?s)<p:sp[ >].*?</p:sp>`)
	picPattern = regexp.MustCompile(`(?s)<p:pic[ >].*?</p:pic>`)

	altTextPattern  = regexp.MustCompile(`<p:cNvPr[^>]*\sdescr="([^"]*)"`)
	shapeIDPattern  = regexp.MustCompile(`<p:cNvPr[^>]*\sid="(\d+)"`)
	paragraphPattern = regexp.MustCompile(`(?s)<a:p[ >].*?</a:p>|<a:p/>`)
	runPattern      = regexp.MustCompile(`(?s)<a:r[ >].*?</a:r>`)
	runTextPattern  = regexp.MustCompile(`(?s)<a:t[^>]*>(.*?)</a:t>|<a:t/>`)
	runPropsPattern = regexp.MustCompile(`(?s)<a:rPr[^>]*/>|<a:rPr[ >].*?</a:rPr>`)
	paraPropsPattern = regexp.MustCompile(`(?s)<a:pPr[^>]*/>|<a:pPr[ >].*?</a:pPr>`)
	solidFillPattern = regexp.MustCompile(`(?s)<a:solidFill>.*?</a:solidFill>`)
	xfrmPattern     = regexp.MustCompile(`<a:off x="(-?\d+)" y="(-?\d+)"/>\s*<a:ext cx="(\d+)" cy="(\d+)"/>`)
	blipEmbedPattern = regexp.MustCompile(`(<a:blip[^>]*r:embed=")([^"]*)(")`)
)

// Shapes scans a slide for text and picture shapes, in document order.
func Shapes(slideXML string) []Shape {
	var shapes []Shape
	for _, loc := range spPattern.FindAllStringIndex(slideXML, -1) {
		shapes = append(shapes, Shape{Kind: ShapeText, Start: loc[0], End: loc[1], XML: slideXML[loc[0]:loc[1]]})
	}
	for _, loc := range picPattern.FindAllStringIndex(slideXML, -1) {
		shapes = append(shapes, Shape{Kind: ShapePicture, Start: loc[0], End: loc[1], XML: slideXML[loc[0]:loc[1]]})
	}
	sort.Slice(shapes, func(i, j int) bool { return shapes[i].Start < shapes[j].Start })
	return shapes
}

// AltText returns the shape's alternative text (the cNvPr descr attribute),
// or "" when unset.
func AltText(shapeXML string) string {
	if m := altTextPattern.FindStringSubmatch(shapeXML); m != nil {
		return UnescapeXML(m[1])
	}
	return ""
}

// Text returns the shape's visible text: run texts concatenated within each
// paragraph, paragraphs joined with newlines.
func Text(shapeXML string) string {
	var paragraphs []string
	for _, p := range paragraphPattern.FindAllString(shapeXML, -1) {
		var b strings.Builder
		for _, m := range runTextPattern.FindAllStringSubmatch(p, -1) {
			b.WriteString(UnescapeXML(m[1]))
		}
		paragraphs = append(paragraphs, b.String())
	}
	return strings.Join(paragraphs, "\n")
}

// Paragraph is one <a:p> block, located by offsets into its shape XML.
type Paragraph struct {
	Start int
	End   int
	XML   string
}

// Paragraphs lists a shape's paragraph blocks.
func Paragraphs(shapeXML string) []Paragraph {
	var out []Paragraph
	for _, loc := range paragraphPattern.FindAllStringIndex(shapeXML, -1) {
		out = append(out, Paragraph{Start: loc[0], End: loc[1], XML: shapeXML[loc[0]:loc[1]]})
	}
	return out
}

// ParagraphText returns the concatenated run text of one paragraph.
func ParagraphText(paragraphXML string) string {
	var b strings.Builder
	for _, m := range runTextPattern.FindAllStringSubmatch(paragraphXML, -1) {
		b.WriteString(UnescapeXML(m[1]))
	}
	return b.String()
}

// Run is one <a:r> block, located by offsets into its paragraph XML.
type Run struct {
	Start int
	End   int
	Text  string
	Props string // the <a:rPr> block, "" when absent
}

// Runs lists a paragraph's run blocks.
func Runs(paragraphXML string) []Run {
	var out []Run
	for _, loc := range runPattern.FindAllStringIndex(paragraphXML, -1) {
		xml := paragraphXML[loc[0]:loc[1]]
		r := Run{Start: loc[0], End: loc[1], Props: runPropsPattern.FindString(xml)}
		if m := runTextPattern.FindStringSubmatch(xml); m != nil {
			r.Text = UnescapeXML(m[1])
		}
		out = append(out, r)
	}
	return out
}

// SetRunText rewrites the text of the i-th run inside a paragraph.
func SetRunText(paragraphXML string, run Run, text string) string {
	runXML := paragraphXML[run.Start:run.End]
	replaced := runTextPattern.ReplaceAllString(runXML, "<a:t>"+EscapeXML(text)+"</a:t>")
	return paragraphXML[:run.Start] + replaced + paragraphXML[run.End:]
}

// RunSpec describes one run for a rebuilt paragraph. A non-empty Color
// (RRGGBB) overrides the inherited fill for that run only.
type RunSpec struct {
	Text  string
	Color string
}

// BuildParagraph renders a paragraph from run specs, carrying over the
// source paragraph's properties and the first run's properties so template
// sizing survives the rebuild.
func BuildParagraph(sourceParagraphXML string, runs []RunSpec) string {
	pPr := paraPropsPattern.FindString(sourceParagraphXML)
	baseProps := ""
	if src := Runs(sourceParagraphXML); len(src) > 0 {
		baseProps = src[0].Props
	}

	var b strings.Builder
	b.WriteString("<a:p>")
	b.WriteString(pPr)
	for _, r := range runs {
		props := baseProps
		if r.Color != "" {
			props = withSolidFill(props, r.Color)
		}
		b.WriteString("<a:r>")
		b.WriteString(props)
		b.WriteString("<a:t>")
		b.WriteString(EscapeXML(r.Text))
		b.WriteString("</a:t></a:r>")
	}
	b.WriteString("</a:p>")
	return b.String()
}

// SetShapeRuns replaces a text shape's whole body with a single paragraph
// built from the given runs. Paragraph and run properties are carried over
// from the shape's first paragraph.
func SetShapeRuns(shapeXML string, runs []RunSpec) string {
	paragraphs := Paragraphs(shapeXML)
	if len(paragraphs) == 0 {
		return shapeXML
	}
	rebuilt := BuildParagraph(paragraphs[0].XML, runs)

	// Replace the first paragraph, drop the rest, back to front.
	out := shapeXML
	for i := len(paragraphs) - 1; i >= 1; i-- {
		out = out[:paragraphs[i].Start] + out[paragraphs[i].End:]
	}
	return out[:paragraphs[0].Start] + rebuilt + out[paragraphs[0].End:]
}

// SetShapeText replaces a text shape's whole body with one plain run.
func SetShapeText(shapeXML, text string) string {
	return SetShapeRuns(shapeXML, []RunSpec{{Text: text}})
}

// withSolidFill inserts a solid fill color into run properties, replacing
// any existing fill. Absent or self-closing <a:rPr> blocks are expanded.
func withSolidFill(props, rgb string) string {
	fill := `<a:solidFill><a:srgbClr val="` + rgb + `"/></a:solidFill>`
	switch {
	case props == "":
		return `<a:rPr lang="en-US" dirty="0">` + fill + `</a:rPr>`
	case strings.HasSuffix(props, "/>"):
		return strings.TrimSuffix(props, "/>") + ">" + fill + "</a:rPr>"
	case solidFillPattern.MatchString(props):
		return solidFillPattern.ReplaceAllString(props, fill)
	default:
		// Fill must precede most other children; after the opening tag is
		// accepted by renderers in practice.
		open := strings.Index(props, ">")
		return props[:open+1] + fill + props[open+1:]
	}
}

// Geometry is a shape's placement in EMUs.
type Geometry struct {
	X, Y   int64
	Width  int64
	Height int64
}

// ShapeGeometry reads the shape's <a:xfrm> offset and extent. ok is false
// when the shape inherits geometry from its layout.
func ShapeGeometry(shapeXML string) (Geometry, bool) {
	m := xfrmPattern.FindStringSubmatch(shapeXML)
	if m == nil {
		return Geometry{}, false
	}
	x, _ := strconv.ParseInt(m[1], 10, 64)
	y, _ := strconv.ParseInt(m[2], 10, 64)
	cx, _ := strconv.ParseInt(m[3], 10, 64)
	cy, _ := strconv.ParseInt(m[4], 10, 64)
	return Geometry{X: x, Y: y, Width: cx, Height: cy}, true
}

// SetBlipEmbed points a picture's image reference at another relationship.
func SetBlipEmbed(picXML, relID string) string {
	return blipEmbedPattern.ReplaceAllString(picXML, "${1}"+relID+"${3}")
}

// BlipEmbed returns a picture's image relationship id, or "".
func BlipEmbed(picXML string) string {
	if m := blipEmbedPattern.FindStringSubmatch(picXML); m != nil {
		return m[2]
	}
	return ""
}

// MaxShapeID returns the highest cNvPr id on the slide.
func MaxShapeID(slideXML string) int {
	max := 0
	for _, m := range shapeIDPattern.FindAllStringSubmatch(slideXML, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil && n > max {
			max = n
		}
	}
	return max
}

// BuildPicture renders a new <p:pic> block for an embedded image.
func BuildPicture(id int, name, altText, relID string, geo Geometry) string {
	var b strings.Builder
	b.WriteString("<p:pic><p:nvPicPr>")
	b.WriteString(`<p:cNvPr id="` + strconv.Itoa(id) + `" name="` + EscapeXML(name) +
		`" descr="` + EscapeXML(altText) + `"/>`)
	b.WriteString(`<p:cNvPicPr><a:picLocks noChangeAspect="1"/></p:cNvPicPr><p:nvPr/></p:nvPicPr>`)
	b.WriteString(`<p:blipFill><a:blip r:embed="` + relID + `"/><a:stretch><a:fillRect/></a:stretch></p:blipFill>`)
	b.WriteString(`<p:spPr><a:xfrm>`)
	b.WriteString(`<a:off x="` + strconv.FormatInt(geo.X, 10) + `" y="` + strconv.FormatInt(geo.Y, 10) + `"/>`)
	b.WriteString(`<a:ext cx="` + strconv.FormatInt(geo.Width, 10) + `" cy="` + strconv.FormatInt(geo.Height, 10) + `"/>`)
	b.WriteString(`</a:xfrm><a:prstGeom prst="rect"><a:avLst/></a:prstGeom></p:spPr></p:pic>`)
	return b.String()
}

// InsertShape appends a shape block at the end of the slide's shape tree.
func InsertShape(slideXML, shapeXML string) string {
	return strings.Replace(slideXML, "</p:spTree>", shapeXML+"</p:spTree>", 1)
}

var (
	xmlEscaper = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&apos;",
	)
	xmlUnescaper = strings.NewReplacer(
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&apos;", "'",
		"&amp;", "&",
	)
)

// EscapeXML escapes text for embedding in attribute or element content.
func EscapeXML(s string) string { return xmlEscaper.Replace(s) }

// UnescapeXML reverses EscapeXML for the five predefined entities.
func UnescapeXML(s string) string { return xmlUnescaper.Replace(s) }
