// Package deck reads and rewrites PPTX presentations at the OOXML level.
// Slides are manipulated as raw XML strings; a read-only scan produces an
// edit list that is applied by byte offset, so the untouched parts of the
// document survive byte-for-byte.
package deck

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	// ErrInvalidDeck wraps parse failures for content that is not a PPTX.
	ErrInvalidDeck = errors.New("invalid presentation")
	// ErrNoSlide is returned when a named slide part is absent.
	ErrNoSlide = errors.New("slide not found")
)

var slideNamePattern = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// Deck is an opened presentation: the full zip contents plus the entry
// order, which Save preserves.
type Deck struct {
	files map[string][]byte
	order []string
	path  string
}

// Open reads a presentation from disk.
func Open(p string) (*Deck, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("could not read %s: %w", p, err)
	}
	d, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	d.path = p
	return d, nil
}

// Parse opens a presentation from memory.
func Parse(data []byte) (*Deck, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDeck, err)
	}

	d := &Deck{files: make(map[string][]byte, len(zr.File))}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidDeck, f.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidDeck, f.Name, err)
		}
		if _, dup := d.files[f.Name]; !dup {
			d.order = append(d.order, f.Name)
		}
		d.files[f.Name] = content
	}

	if _, ok := d.files["[Content_Types].xml"]; !ok {
		return nil, fmt.Errorf("%w: missing [Content_Types].xml", ErrInvalidDeck)
	}
	if _, ok := d.files["ppt/presentation.xml"]; !ok {
		return nil, fmt.Errorf("%w: missing ppt/presentation.xml", ErrInvalidDeck)
	}
	return d, nil
}

// Path returns the source path, if the deck was opened from disk.
func (d *Deck) Path() string { return d.path }

// SlideNames lists slide part names in slide-number order.
func (d *Deck) SlideNames() []string {
	var names []string
	for name := range d.files {
		if slideNamePattern.MatchString(name) {
			names = append(names, name)
		}
	}
	sort.Slice(names, func(i, j int) bool {
		return slideNumber(names[i]) < slideNumber(names[j])
	})
	return names
}

func slideNumber(name string) int {
	m := slideNamePattern.FindStringSubmatch(name)
	n, _ := strconv.Atoi(m[1])
	return n
}

// Slide returns the XML of a slide part.
func (d *Deck) Slide(name string) (string, error) {
	data, ok := d.files[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoSlide, name)
	}
	return string(data), nil
}

// Part returns any package part by name, with ok reporting presence.
func (d *Deck) Part(name string) ([]byte, bool) {
	data, ok := d.files[name]
	return data, ok
}

// SetSlide replaces the XML of a slide part.
func (d *Deck) SetSlide(name, xml string) error {
	if _, ok := d.files[name]; !ok {
		return fmt.Errorf("%w: %s", ErrNoSlide, name)
	}
	d.files[name] = []byte(xml)
	return nil
}

// AddImage registers image bytes as a new media part related to the given
// slide and returns the relationship id to embed. Calling it twice with the
// same slide and file name reuses the first part.
func (d *Deck) AddImage(slideName, fileName string, data []byte) (string, error) {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(fileName)), ".")
	if ext == "" {
		return "", fmt.Errorf("image %s has no extension", fileName)
	}
	if ext == "jpg" {
		d.ensureContentType("jpg", "image/jpeg")
		d.ensureContentType("jpeg", "image/jpeg")
	} else {
		d.ensureContentType(ext, "image/"+ext)
	}

	relsName := slideRelsName(slideName)
	rels := d.slideRels(relsName)

	mediaName := d.mediaPartFor(slideName, fileName)
	if mediaName == "" {
		mediaName = d.nextMediaName(ext)
		d.putFile(mediaName, data)
	} else if rid := relIDForTarget(rels, relTarget(mediaName)); rid != "" {
		return rid, nil
	}

	rid := nextRelID(rels)
	entry := fmt.Sprintf(
		`<Relationship Id=%q Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/image" Target=%q/>`,
		rid, relTarget(mediaName))
	rels = strings.Replace(rels, "</Relationships>", entry+"</Relationships>", 1)
	d.putFile(relsName, []byte(rels))

	d.noteMediaPart(slideName, fileName, mediaName)
	return rid, nil
}

// Media bookkeeping entries live in the files map under keys outside the
// zip namespace ("\x00media\x00..."); Save never emits them. They let a file
// added twice for the same slide reuse one media part.
func (d *Deck) mediaKey(slideName, fileName string) string {
	return "\x00media\x00" + slideName + "\x00" + fileName
}

func (d *Deck) mediaPartFor(slideName, fileName string) string {
	return string(d.files[d.mediaKey(slideName, fileName)])
}

func (d *Deck) noteMediaPart(slideName, fileName, mediaName string) {
	// Bookkeeping entry, keyed outside the zip namespace; Save skips it.
	d.files[d.mediaKey(slideName, fileName)] = []byte(mediaName)
}

func (d *Deck) nextMediaName(ext string) string {
	max := 0
	for name := range d.files {
		base := path.Base(name)
		if !strings.HasPrefix(name, "ppt/media/image") {
			continue
		}
		numeric := strings.TrimSuffix(strings.TrimPrefix(base, "image"), path.Ext(base))
		if n, err := strconv.Atoi(numeric); err == nil && n > max {
			max = n
		}
	}
	return fmt.Sprintf("ppt/media/image%d.%s", max+1, ext)
}

func slideRelsName(slideName string) string {
	return "ppt/slides/_rels/" + path.Base(slideName) + ".rels"
}

func relTarget(mediaName string) string {
	return "../media/" + path.Base(mediaName)
}

func (d *Deck) slideRels(relsName string) string {
	if data, ok := d.files[relsName]; ok {
		return string(data)
	}
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`
}

var relIDPattern = regexp.MustCompile(`Id="rId(\d+)"`)

func nextRelID(rels string) string {
	max := 0
	for _, m := range relIDPattern.FindAllStringSubmatch(rels, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil && n > max {
			max = n
		}
	}
	return fmt.Sprintf("rId%d", max+1)
}

func relIDForTarget(rels, target string) string {
	pattern := regexp.MustCompile(`Id="(rId\d+)"[^>]*Target="` + regexp.QuoteMeta(target) + `"`)
	if m := pattern.FindStringSubmatch(rels); m != nil {
		return m[1]
	}
	return ""
}

func (d *Deck) ensureContentType(ext, contentType string) {
	ct := string(d.files["[Content_Types].xml"])
	if strings.Contains(ct, fmt.Sprintf(`Extension="%s"`, ext)) {
		return
	}
	entry := fmt.Sprintf(`<Default Extension=%q ContentType=%q/>`, ext, contentType)
	ct = strings.Replace(ct, "</Types>", entry+"</Types>", 1)
	d.files["[Content_Types].xml"] = []byte(ct)
}

func (d *Deck) putFile(name string, data []byte) {
	if _, ok := d.files[name]; !ok {
		d.order = append(d.order, name)
	}
	d.files[name] = data
}

// Save writes the presentation. Writing over the file the deck was opened
// from goes through a temp file and a rename so a failed write never
// truncates the source.
func (d *Deck) Save(outPath string) error {
	if dir := filepath.Dir(outPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("could not create output directory: %w", err)
		}
	}

	if samePath(d.path, outPath) {
		tmp := outPath + ".tmp"
		if err := d.writeZip(tmp); err != nil {
			os.Remove(tmp)
			return err
		}
		return os.Rename(tmp, outPath)
	}
	return d.writeZip(outPath)
}

func (d *Deck) writeZip(outPath string) error {
	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("could not create %s: %w", outPath, err)
	}
	zw := zip.NewWriter(out)
	for _, name := range d.order {
		if strings.HasPrefix(name, "\x00") {
			continue
		}
		w, err := zw.Create(name)
		if err != nil {
			out.Close()
			return fmt.Errorf("could not write %s: %w", name, err)
		}
		if _, err := w.Write(d.files[name]); err != nil {
			out.Close()
			return fmt.Errorf("could not write %s: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		out.Close()
		return fmt.Errorf("could not finish %s: %w", outPath, err)
	}
	return out.Close()
}

func samePath(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	aAbs, errA := filepath.Abs(a)
	bAbs, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return aAbs == bAbs
}
