// Package substitute applies a text mapping and an image directory to a
// presentation: pictures are swapped by alt text, {{token}} placeholders are
// replaced inside text shapes, and VAR_* fields render as colored delta
// indicators.
package substitute

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/klytics/irkit/internal/deck"
)

// Options configures one substitution pass.
type Options struct {
	// ImagesDir is where picture alt texts and placeholder texts are
	// resolved as file names.
	ImagesDir string
	// AllowPlaceholderText lets a text shape whose entire text is an
	// existing image file name be replaced by that image.
	AllowPlaceholderText bool
	// Mapping is the key→text substitution table.
	Mapping map[string]string
	// Style controls VAR_* indicator rendering.
	Style Style
}

// Summary reports what one pass changed.
type Summary struct {
	PicturesReplaced     int
	PlaceholdersReplaced int
	TextReplaced         int
	ParagraphFallbacks   int
	AppliedFiles         []string
	MissingFiles         []string
	AppliedKeys          []string
}

var tokenPattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// Apply runs the substitution pass over every slide of the deck, in place.
func Apply(d *deck.Deck, opts Options) (*Summary, error) {
	if opts.Style == (Style{}) {
		opts.Style = DefaultStyle()
	}

	sum := &Summary{}
	for _, slideName := range d.SlideNames() {
		if err := applySlide(d, slideName, opts, sum); err != nil {
			return nil, fmt.Errorf("%s: %w", slideName, err)
		}
	}

	for key := range opts.Mapping {
		sum.AppliedKeys = append(sum.AppliedKeys, key)
	}
	sort.Strings(sum.AppliedKeys)
	return sum, nil
}

// ApplyFile opens a deck, applies the pass, and saves it. When outPath
// equals the input the save is routed through a temp file.
func ApplyFile(inPath, outPath string, opts Options) (*Summary, error) {
	d, err := deck.Open(inPath)
	if err != nil {
		return nil, err
	}
	sum, err := Apply(d, opts)
	if err != nil {
		return nil, err
	}
	if err := d.Save(outPath); err != nil {
		return nil, err
	}
	return sum, nil
}

type edit struct {
	start, end  int
	replacement string
}

func applySlide(d *deck.Deck, slideName string, opts Options, sum *Summary) error {
	xml, err := d.Slide(slideName)
	if err != nil {
		return err
	}

	nextID := deck.MaxShapeID(xml) + 1
	var edits []edit
	var appended []string

	for _, sh := range deck.Shapes(xml) {
		switch sh.Kind {
		case deck.ShapePicture:
			newXML, ok, err := swapPicture(d, slideName, sh.XML, opts, sum)
			if err != nil {
				return err
			}
			if ok {
				edits = append(edits, edit{sh.Start, sh.End, newXML})
			}

		case deck.ShapeText:
			cur := sh.XML
			if len(opts.Mapping) > 0 {
				replaced, n, fallbacks := replaceShapeText(cur, opts.Mapping, opts.Style)
				if n > 0 {
					cur = replaced
					sum.TextReplaced += n
					sum.ParagraphFallbacks += fallbacks
				}
			}

			if opts.AllowPlaceholderText {
				pic, ok, err := placeholderPicture(d, slideName, cur, nextID, opts, sum)
				if err != nil {
					return err
				}
				if ok {
					nextID++
					appended = append(appended, pic)
					cur = "" // the placeholder shape is removed
				}
			}

			if cur != sh.XML {
				edits = append(edits, edit{sh.Start, sh.End, cur})
			}
		}
	}

	for i := len(edits) - 1; i >= 0; i-- {
		e := edits[i]
		xml = xml[:e.start] + e.replacement + xml[e.end:]
	}
	for _, pic := range appended {
		xml = deck.InsertShape(xml, pic)
	}
	return d.SetSlide(slideName, xml)
}

// swapPicture replaces a picture's image when its alt text names an existing
// file in the images directory. Geometry and crop are untouched; only the
// blip relationship changes.
func swapPicture(d *deck.Deck, slideName, picXML string, opts Options, sum *Summary) (string, bool, error) {
	alt := deck.AltText(picXML)
	if alt == "" {
		return "", false, nil
	}

	data, err := os.ReadFile(filepath.Join(opts.ImagesDir, alt))
	if err != nil {
		if isImageName(alt) {
			sum.MissingFiles = append(sum.MissingFiles, alt)
		}
		return "", false, nil
	}

	rid, err := d.AddImage(slideName, alt, data)
	if err != nil {
		return "", false, err
	}
	sum.PicturesReplaced++
	sum.AppliedFiles = append(sum.AppliedFiles, alt)
	return deck.SetBlipEmbed(picXML, rid), true, nil
}

// placeholderPicture builds a picture shape when the text shape's entire
// text names an existing image file. The image keeps its aspect ratio,
// fitted and centered inside the placeholder's box.
func placeholderPicture(d *deck.Deck, slideName, shapeXML string, id int, opts Options, sum *Summary) (string, bool, error) {
	text := strings.TrimSpace(deck.Text(shapeXML))
	if text == "" {
		return "", false, nil
	}

	data, err := os.ReadFile(filepath.Join(opts.ImagesDir, text))
	if err != nil {
		if isImageName(text) {
			sum.MissingFiles = append(sum.MissingFiles, text)
		}
		return "", false, nil
	}

	box, ok := deck.ShapeGeometry(shapeXML)
	if !ok {
		// Geometry inherited from the layout: nothing to fit into.
		return "", false, nil
	}

	geo := fitImage(box, data)
	rid, err := d.AddImage(slideName, text, data)
	if err != nil {
		return "", false, err
	}

	sum.PlaceholdersReplaced++
	sum.AppliedFiles = append(sum.AppliedFiles, text)
	return deck.BuildPicture(id, fmt.Sprintf("Picture %d", id), text, rid, geo), true, nil
}

// fitImage scales the image into the box preserving aspect ratio, centered.
// Undecodable image bytes fall back to filling the box.
func fitImage(box deck.Geometry, data []byte) deck.Geometry {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil || cfg.Width <= 0 || cfg.Height <= 0 {
		return box
	}

	scale := float64(box.Width) / float64(cfg.Width)
	if s := float64(box.Height) / float64(cfg.Height); s < scale {
		scale = s
	}
	w := int64(float64(cfg.Width)*scale + 0.5)
	h := int64(float64(cfg.Height)*scale + 0.5)
	return deck.Geometry{
		X:      box.X + (box.Width-w)/2,
		Y:      box.Y + (box.Height-h)/2,
		Width:  w,
		Height: h,
	}
}

func isImageName(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg":
		return true
	}
	return false
}

// replaceShapeText applies the mapping to one text shape. Precedence:
//
//  1. Alt text matching a key replaces the whole body.
//  2. The whole (trimmed) text matching a key replaces the whole body.
//  3. {{token}} replacement inside paragraphs, run by run when a token sits
//     inside a single run, with a whole-paragraph rebuild as fallback when a
//     token spans runs.
//
// VAR_* values render as a colored glyph run plus a plain magnitude run.
func replaceShapeText(shapeXML string, mapping map[string]string, style Style) (string, int, int) {
	if alt := deck.AltText(shapeXML); alt != "" {
		if raw, ok := mapping[alt]; ok {
			return setWholeText(shapeXML, alt, raw, style), 1, 0
		}
	}

	full := strings.TrimSpace(deck.Text(shapeXML))
	if full == "" {
		return shapeXML, 0, 0
	}
	if raw, ok := mapping[full]; ok {
		return setWholeText(shapeXML, full, raw, style), 1, 0
	}

	replaced := 0
	fallbacks := 0
	paragraphs := deck.Paragraphs(shapeXML)
	for i := len(paragraphs) - 1; i >= 0; i-- {
		p := paragraphs[i]
		newP, n, fb := replaceParagraph(p.XML, mapping, style)
		if n == 0 {
			continue
		}
		replaced += n
		fallbacks += fb
		shapeXML = shapeXML[:p.Start] + newP + shapeXML[p.End:]
	}
	return shapeXML, replaced, fallbacks
}

func setWholeText(shapeXML, key, raw string, style Style) string {
	if IsVarKey(key) {
		if ind, ok := FormatIndicator(raw, style); ok {
			return deck.SetShapeRuns(shapeXML, []deck.RunSpec{
				{Text: ind.Glyph, Color: ind.Color},
				{Text: " " + ind.Magnitude},
			})
		}
	}
	return deck.SetShapeText(shapeXML, raw)
}

func replaceParagraph(paragraphXML string, mapping map[string]string, style Style) (string, int, int) {
	text := deck.ParagraphText(paragraphXML)
	if text == "" {
		return paragraphXML, 0, 0
	}

	// VAR_* tokens need mixed-color runs, so the paragraph is rebuilt from
	// segments. Plain tokens keep the original run structure.
	if containsVarToken(text, mapping) {
		runs, n := tokenSegments(text, mapping, style)
		if n > 0 {
			return deck.BuildParagraph(paragraphXML, runs), n, 0
		}
	}

	replaced := 0
	runs := deck.Runs(paragraphXML)
	for i := len(runs) - 1; i >= 0; i-- {
		r := runs[i]
		if r.Text == "" {
			continue
		}
		updated := r.Text
		for key, value := range mapping {
			token := "{{" + key + "}}"
			if strings.Contains(updated, token) {
				updated = strings.ReplaceAll(updated, token, value)
				replaced++
			}
		}
		if updated != r.Text {
			paragraphXML = deck.SetRunText(paragraphXML, r, updated)
		}
	}

	// A token split across runs survives run-level replacement; rebuild the
	// paragraph as plain text. Run-level formatting differences are lost,
	// which is the accepted cost of split tokens.
	fallbacks := 0
	remaining := deck.ParagraphText(paragraphXML)
	if updated, any := replaceAllTokens(remaining, mapping); any {
		paragraphXML = deck.BuildParagraph(paragraphXML, []deck.RunSpec{{Text: updated}})
		replaced++
		fallbacks++
	}
	return paragraphXML, replaced, fallbacks
}

func containsVarToken(text string, mapping map[string]string) bool {
	for _, m := range tokenPattern.FindAllStringSubmatch(text, -1) {
		key := m[1]
		if _, ok := mapping[key]; ok && IsVarKey(key) {
			return true
		}
	}
	return false
}

// tokenSegments splits paragraph text into run specs around mapped tokens.
// Unmapped tokens stay verbatim. VAR_* values expand to a colored glyph run
// plus a plain magnitude run.
func tokenSegments(text string, mapping map[string]string, style Style) ([]deck.RunSpec, int) {
	var segs []deck.RunSpec
	replaced := 0
	pos := 0
	for _, loc := range tokenPattern.FindAllStringSubmatchIndex(text, -1) {
		key := text[loc[2]:loc[3]]
		raw, ok := mapping[key]
		if !ok {
			continue
		}
		if loc[0] > pos {
			segs = append(segs, deck.RunSpec{Text: text[pos:loc[0]]})
		}
		if IsVarKey(key) {
			if ind, formatOK := FormatIndicator(raw, style); formatOK {
				segs = append(segs,
					deck.RunSpec{Text: ind.Glyph, Color: ind.Color},
					deck.RunSpec{Text: " " + ind.Magnitude})
			} else {
				segs = append(segs, deck.RunSpec{Text: raw})
			}
		} else {
			segs = append(segs, deck.RunSpec{Text: raw})
		}
		pos = loc[1]
		replaced++
	}
	if replaced == 0 {
		return nil, 0
	}
	if pos < len(text) {
		segs = append(segs, deck.RunSpec{Text: text[pos:]})
	}
	return segs, replaced
}

func replaceAllTokens(text string, mapping map[string]string) (string, bool) {
	updated := text
	any := false
	for key, value := range mapping {
		token := "{{" + key + "}}"
		if strings.Contains(updated, token) {
			updated = strings.ReplaceAll(updated, token, value)
			any = true
		}
	}
	return updated, any && updated != text
}
