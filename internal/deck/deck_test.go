package deck

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const slideXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
	`<p:sld xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"` +
	` xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"` +
	` xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main">` +
	`<p:cSld><p:spTree>` +
	`<p:sp><p:nvSpPr><p:cNvPr id="2" name="Title" descr="slide1_title"/><p:cNvSpPr/><p:nvPr/></p:nvSpPr>` +
	`<p:spPr><a:xfrm><a:off x="100" y="200"/><a:ext cx="4000" cy="2000"/></a:xfrm></p:spPr>` +
	`<p:txBody><a:bodyPr/><a:p><a:pPr algn="ctr"/>` +
	`<a:r><a:rPr lang="pt-BR" sz="2400" b="1"/><a:t>Resultados </a:t></a:r>` +
	`<a:r><a:rPr lang="pt-BR" sz="2400"/><a:t>{{periodo}}</a:t></a:r>` +
	`</a:p></p:txBody></p:sp>` +
	`<p:pic><p:nvPicPr><p:cNvPr id="3" name="Chart" descr="01_lucro.png"/><p:cNvPicPr/><p:nvPr/></p:nvPicPr>` +
	`<p:blipFill><a:blip r:embed="rId2"/><a:stretch><a:fillRect/></a:stretch></p:blipFill>` +
	`<p:spPr><a:xfrm><a:off x="500" y="600"/><a:ext cx="3000" cy="1500"/></a:xfrm></p:spPr></p:pic>` +
	`</p:spTree></p:cSld></p:sld>`

const slideRelsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
	`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/image" Target="../media/image1.png"/>` +
	`</Relationships>`

const contentTypesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
	`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
	`<Default Extension="xml" ContentType="application/xml"/>` +
	`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
	`<Default Extension="png" ContentType="image/png"/>` +
	`</Types>`

func fixtureBytes(t *testing.T) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	entries := map[string]string{
		"[Content_Types].xml":                contentTypesXML,
		"ppt/presentation.xml":               `<p:presentation/>`,
		"ppt/slides/slide1.xml":              slideXML,
		"ppt/slides/_rels/slide1.xml.rels":   slideRelsXML,
		"ppt/media/image1.png":               "not-really-a-png",
	}
	for _, name := range []string{
		"[Content_Types].xml", "ppt/presentation.xml", "ppt/slides/slide1.xml",
		"ppt/slides/_rels/slide1.xml.rels", "ppt/media/image1.png",
	} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(entries[name]))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestParse_RejectsGarbage(t *testing.T) {
	_, err := Parse([]byte("not a zip"))
	assert.ErrorIs(t, err, ErrInvalidDeck)
}

func TestParse_RequiresPresentationPart(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("[Content_Types].xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(contentTypesXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	_, err = Parse(buf.Bytes())
	assert.ErrorIs(t, err, ErrInvalidDeck)
}

func TestSlideNames_NumericOrder(t *testing.T) {
	d, err := Parse(fixtureBytes(t))
	require.NoError(t, err)
	d.putFile("ppt/slides/slide10.xml", []byte("<p:sld/>"))
	d.putFile("ppt/slides/slide2.xml", []byte("<p:sld/>"))

	assert.Equal(t, []string{
		"ppt/slides/slide1.xml", "ppt/slides/slide2.xml", "ppt/slides/slide10.xml",
	}, d.SlideNames())
}

func TestShapes_OrderAndKinds(t *testing.T) {
	shapes := Shapes(slideXML)
	require.Len(t, shapes, 2)
	assert.Equal(t, ShapeText, shapes[0].Kind)
	assert.Equal(t, ShapePicture, shapes[1].Kind)
	assert.Less(t, shapes[0].Start, shapes[1].Start)
}

func TestAltTextAndText(t *testing.T) {
	shapes := Shapes(slideXML)
	assert.Equal(t, "slide1_title", AltText(shapes[0].XML))
	assert.Equal(t, "01_lucro.png", AltText(shapes[1].XML))
	assert.Equal(t, "Resultados {{periodo}}", Text(shapes[0].XML))
}

func TestRuns(t *testing.T) {
	shape := Shapes(slideXML)[0]
	paragraphs := Paragraphs(shape.XML)
	require.Len(t, paragraphs, 1)

	runs := Runs(paragraphs[0].XML)
	require.Len(t, runs, 2)
	assert.Equal(t, "Resultados ", runs[0].Text)
	assert.Equal(t, "{{periodo}}", runs[1].Text)
	assert.Contains(t, runs[0].Props, `sz="2400"`)
}

func TestSetRunText(t *testing.T) {
	shape := Shapes(slideXML)[0]
	p := Paragraphs(shape.XML)[0]
	runs := Runs(p.XML)

	updated := SetRunText(p.XML, runs[1], "3T25 & 4T25")
	assert.Contains(t, updated, "<a:t>3T25 &amp; 4T25</a:t>")
	assert.Contains(t, updated, "<a:t>Resultados </a:t>")
}

func TestSetShapeText_KeepsProps(t *testing.T) {
	shape := Shapes(slideXML)[0]
	updated := SetShapeText(shape.XML, "Lucro recorde")

	assert.Equal(t, "Lucro recorde", Text(updated))
	// First run's properties and the paragraph alignment survive.
	assert.Contains(t, updated, `b="1"`)
	assert.Contains(t, updated, `algn="ctr"`)
	// The second source run is gone.
	assert.NotContains(t, updated, "{{periodo}}")
}

func TestSetShapeRuns_ColorOverride(t *testing.T) {
	shape := Shapes(slideXML)[0]
	updated := SetShapeRuns(shape.XML, []RunSpec{
		{Text: "▲", Color: "00B050"},
		{Text: " 9,5%"},
	})

	assert.Equal(t, "▲ 9,5%", Text(updated))
	assert.Contains(t, updated, `<a:solidFill><a:srgbClr val="00B050"/></a:solidFill>`)
	// Only the glyph run is colored.
	assert.Equal(t, 1, strings.Count(updated, "srgbClr"))
}

func TestWithSolidFill_Variants(t *testing.T) {
	// Self-closing rPr expands.
	out := withSolidFill(`<a:rPr lang="pt-BR" sz="2400"/>`, "C00000")
	assert.Equal(t, `<a:rPr lang="pt-BR" sz="2400"><a:solidFill><a:srgbClr val="C00000"/></a:solidFill></a:rPr>`, out)

	// Existing fill is replaced, not duplicated.
	out = withSolidFill(`<a:rPr sz="1800"><a:solidFill><a:srgbClr val="FFFFFF"/></a:solidFill></a:rPr>`, "7F7F7F")
	assert.Contains(t, out, `val="7F7F7F"`)
	assert.NotContains(t, out, `val="FFFFFF"`)

	// No props at all synthesizes a block.
	out = withSolidFill("", "00B050")
	assert.Contains(t, out, `<a:rPr`)
	assert.Contains(t, out, `val="00B050"`)
}

func TestShapeGeometry(t *testing.T) {
	shapes := Shapes(slideXML)
	geo, ok := ShapeGeometry(shapes[1].XML)
	require.True(t, ok)
	assert.Equal(t, Geometry{X: 500, Y: 600, Width: 3000, Height: 1500}, geo)

	_, ok = ShapeGeometry("<p:sp><p:spPr/></p:sp>")
	assert.False(t, ok)
}

func TestBlipEmbed(t *testing.T) {
	pic := Shapes(slideXML)[1]
	assert.Equal(t, "rId2", BlipEmbed(pic.XML))

	updated := SetBlipEmbed(pic.XML, "rId9")
	assert.Equal(t, "rId9", BlipEmbed(updated))
}

func TestAddImage_NewRelAndContentType(t *testing.T) {
	d, err := Parse(fixtureBytes(t))
	require.NoError(t, err)

	rid, err := d.AddImage("ppt/slides/slide1.xml", "02_roe.jpg", []byte("jpeg-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "rId3", rid)

	rels, ok := d.Part("ppt/slides/_rels/slide1.xml.rels")
	require.True(t, ok)
	assert.Contains(t, string(rels), `Id="rId3"`)
	assert.Contains(t, string(rels), `Target="../media/image2.jpg"`)

	ct, ok := d.Part("[Content_Types].xml")
	require.True(t, ok)
	assert.Contains(t, string(ct), `Extension="jpg"`)

	// Same file again reuses the relationship.
	again, err := d.AddImage("ppt/slides/slide1.xml", "02_roe.jpg", []byte("jpeg-bytes"))
	require.NoError(t, err)
	assert.Equal(t, rid, again)
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.pptx")
	require.NoError(t, os.WriteFile(src, fixtureBytes(t), 0o644))

	d, err := Open(src)
	require.NoError(t, err)
	require.NoError(t, d.SetSlide("ppt/slides/slide1.xml", SetShapeText(slideXML, "x")))

	out := filepath.Join(dir, "out.pptx")
	require.NoError(t, d.Save(out))

	reopened, err := Open(out)
	require.NoError(t, err)
	xml, err := reopened.Slide("ppt/slides/slide1.xml")
	require.NoError(t, err)
	assert.Contains(t, xml, "<a:t>x</a:t>")
}

func TestSave_InPlaceIsAtomic(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "deck.pptx")
	require.NoError(t, os.WriteFile(src, fixtureBytes(t), 0o644))

	d, err := Open(src)
	require.NoError(t, err)
	require.NoError(t, d.Save(src))

	// No leftover temp file, and the result still parses.
	_, err = os.Stat(src + ".tmp")
	assert.True(t, os.IsNotExist(err))
	_, err = Open(src)
	assert.NoError(t, err)
}

func TestMaxShapeIDAndInsert(t *testing.T) {
	assert.Equal(t, 3, MaxShapeID(slideXML))

	pic := BuildPicture(4, "Picture 4", "03_caixa.png", "rId5",
		Geometry{X: 10, Y: 20, Width: 300, Height: 400})
	updated := InsertShape(slideXML, pic)

	shapes := Shapes(updated)
	require.Len(t, shapes, 3)
	assert.Equal(t, "03_caixa.png", AltText(shapes[2].XML))
	assert.Equal(t, "rId5", BlipEmbed(shapes[2].XML))
}
