// Package charts renders workbook ranges as transparent-background PNG
// charts sized for slide placement: label-annotated bar charts with the
// latest period highlighted, and smoothed trend lines.
package charts

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/klytics/irkit/internal/a1"
	"github.com/klytics/irkit/internal/coerce"
	"github.com/klytics/irkit/internal/workbook"
)

var (
	colorBar       = color.RGBA{R: 0x8D, G: 0x98, B: 0xA6, A: 0xFF}
	colorHighlight = color.RGBA{R: 0x12, G: 0x3A, B: 0x7A, A: 0xFF}
	colorInk       = color.RGBA{R: 0x2F, G: 0x2F, B: 0x2F, A: 0xFF}
)

// BarSpec describes one bar chart rendered from a workbook.
type BarSpec struct {
	Sheet       string
	ValuesRange string
	LabelsRange string
	Output      string
	Title       string
	// HighlightLast draws the final bar in the accent color.
	HighlightLast bool
	// ShowDeltaPct annotates bar pairs with their percent change.
	ShowDeltaPct bool
	// DeltaPairs selects which index pairs get delta annotations. Empty
	// means every consecutive pair.
	DeltaPairs [][2]int
	// SlotCount reserves a fixed number of x slots. Two-bar comparisons
	// rendered into a wider template box keep their bar width this way.
	// Zero means one slot per value.
	SlotCount int
}

// LineSpec describes one trend line rendered from a workbook.
type LineSpec struct {
	Sheet       string
	ValuesRange string
	LabelsRange string
	Output      string
	// Percent formats point labels as percentages.
	Percent bool
	// Smooth interpolates the line through the points (monotone cubic);
	// with fewer than three points the segments stay straight.
	Smooth bool
	// SmoothPoints is the sample count for the smoothed curve (default 250).
	SmoothPoints int
}

// readSeries pulls the values (blank cells zero-filled, non-numeric cells an
// error) and labels for one chart.
func readSeries(wb *workbook.Workbook, sheet, valuesRange, labelsRange string) ([]float64, []string, error) {
	vRect, err := a1.Resolve(valuesRange)
	if err != nil {
		return nil, nil, fmt.Errorf("values range: %w", err)
	}
	lRect, err := a1.Resolve(labelsRange)
	if err != nil {
		return nil, nil, fmt.Errorf("labels range: %w", err)
	}

	vGrid, err := wb.ReadRange(sheet, vRect)
	if err != nil {
		return nil, nil, err
	}
	values, err := coerce.Floats(workbook.Flatten(vGrid), true)
	if err != nil {
		return nil, nil, err
	}

	lGrid, err := wb.ReadRange(sheet, lRect)
	if err != nil {
		return nil, nil, err
	}
	labels := coerce.Labels(workbook.Flatten(lGrid))

	if len(values) != len(labels) {
		return nil, nil, fmt.Errorf("range size mismatch: %d values but %d labels",
			len(values), len(labels))
	}
	if len(values) == 0 {
		return nil, nil, fmt.Errorf("empty chart ranges %s / %s", valuesRange, labelsRange)
	}
	return values, labels, nil
}

// RenderBar draws the bar chart and writes it to spec.Output.
func RenderBar(wb *workbook.Workbook, spec BarSpec) error {
	values, labels, err := readSeries(wb, spec.Sheet, spec.ValuesRange, spec.LabelsRange)
	if err != nil {
		return fmt.Errorf("bar chart %s: %w", spec.Output, err)
	}

	p := plot.New()
	p.Title.Text = spec.Title
	p.HideY()
	p.X.Padding = vg.Points(8)
	p.BackgroundColor = color.Transparent

	base, err := plotter.NewBarChart(plotter.Values(values), vg.Points(28))
	if err != nil {
		return err
	}
	base.Color = colorBar
	base.LineStyle.Width = 0
	p.Add(base)

	if spec.HighlightLast && len(values) > 0 {
		overlay := make(plotter.Values, len(values))
		overlay[len(values)-1] = values[len(values)-1]
		last, err := plotter.NewBarChart(overlay, vg.Points(28))
		if err != nil {
			return err
		}
		last.Color = colorHighlight
		last.LineStyle.Width = 0
		p.Add(last)
	}

	valueLabels, err := barValueLabels(values)
	if err != nil {
		return err
	}
	p.Add(valueLabels)

	if spec.ShowDeltaPct && len(values) >= 2 {
		deltas, err := deltaLabels(values, spec.DeltaPairs)
		if err != nil {
			return err
		}
		p.Add(deltas)
	}

	if spec.SlotCount > len(labels) {
		padded := make([]string, spec.SlotCount)
		copy(padded, labels)
		p.NominalX(padded...)
		p.X.Min = -0.5
		p.X.Max = float64(spec.SlotCount) - 0.5
	} else {
		p.NominalX(labels...)
	}
	return save(p, spec.Output, 10*vg.Inch, 4.8*vg.Inch)
}

// RenderBarFile opens the workbook and renders one bar chart.
func RenderBarFile(path string, spec BarSpec) error {
	wb, err := workbook.OpenFile(path)
	if err != nil {
		return err
	}
	defer wb.Close()
	return RenderBar(wb, spec)
}

// RenderLine draws the trend line and writes it to spec.Output.
func RenderLine(wb *workbook.Workbook, spec LineSpec) error {
	values, labels, err := readSeries(wb, spec.Sheet, spec.ValuesRange, spec.LabelsRange)
	if err != nil {
		return fmt.Errorf("line chart %s: %w", spec.Output, err)
	}
	_ = labels // the trend line renders without an axis; labels sit in the annotations

	p := plot.New()
	p.HideAxes()
	p.BackgroundColor = color.Transparent

	lineXYs, err := linePoints(values, spec)
	if err != nil {
		return err
	}
	line, err := plotter.NewLine(lineXYs)
	if err != nil {
		return err
	}
	line.Width = vg.Points(2.2)
	line.Color = colorInk
	p.Add(line)

	markers := make(plotter.XYs, len(values))
	for i, v := range values {
		markers[i] = plotter.XY{X: float64(i), Y: v}
	}
	scatter, err := plotter.NewScatter(markers)
	if err != nil {
		return err
	}
	scatter.GlyphStyle.Color = colorHighlight
	scatter.GlyphStyle.Radius = vg.Points(3)
	scatter.GlyphStyle.Shape = draw.CircleGlyph{}
	p.Add(scatter)

	pointLabels := plotter.XYLabels{XYs: make(plotter.XYs, len(values)), Labels: make([]string, len(values))}
	for i, v := range values {
		pointLabels.XYs[i] = plotter.XY{X: float64(i), Y: v}
		if spec.Percent {
			pointLabels.Labels[i] = strings.Replace(fmt.Sprintf("%.1f%%", v), ".", ",", 1)
		} else {
			pointLabels.Labels[i] = strings.Replace(strconv.FormatFloat(v, 'f', -1, 64), ".", ",", 1)
		}
	}
	annotations, err := plotter.NewLabels(pointLabels)
	if err != nil {
		return err
	}
	for i := range annotations.TextStyle {
		annotations.TextStyle[i].Color = colorInk
		annotations.TextStyle[i].YAlign = -1.6
	}
	p.Add(annotations)

	return save(p, spec.Output, 10*vg.Inch, 4.2*vg.Inch)
}

// RenderLineFile opens the workbook and renders one trend line.
func RenderLineFile(path string, spec LineSpec) error {
	wb, err := workbook.OpenFile(path)
	if err != nil {
		return err
	}
	defer wb.Close()
	return RenderLine(wb, spec)
}

func linePoints(values []float64, spec LineSpec) (plotter.XYs, error) {
	if !spec.Smooth || len(values) < 3 {
		xys := make(plotter.XYs, len(values))
		for i, v := range values {
			xys[i] = plotter.XY{X: float64(i), Y: v}
		}
		return xys, nil
	}

	samples := spec.SmoothPoints
	if samples <= 0 {
		samples = 250
	}
	if min := len(values) * 50; samples < min {
		samples = min
	}

	x := make([]float64, len(values))
	for i := range x {
		x[i] = float64(i)
	}
	xNew := make([]float64, samples)
	step := float64(len(values)-1) / float64(samples-1)
	for i := range xNew {
		xNew[i] = float64(i) * step
	}
	yNew, err := PCHIP(x, values, xNew)
	if err != nil {
		return nil, err
	}

	xys := make(plotter.XYs, samples)
	for i := range xys {
		xys[i] = plotter.XY{X: xNew[i], Y: yNew[i]}
	}
	return xys, nil
}

// barValueLabels places each bar's value just above its top, formatted with
// dot thousands grouping and no decimals.
func barValueLabels(values []float64) (*plotter.Labels, error) {
	abs := 0.0
	for _, v := range values {
		if a := math.Abs(v); a > abs {
			abs = a
		}
	}
	offset := math.Max(abs*0.02, 0.5)

	xyl := plotter.XYLabels{XYs: make(plotter.XYs, len(values)), Labels: make([]string, len(values))}
	for i, v := range values {
		y := v + offset
		if v < 0 {
			y = v - offset
		}
		xyl.XYs[i] = plotter.XY{X: float64(i), Y: y}
		xyl.Labels[i] = formatGrouped(v)
	}
	labels, err := plotter.NewLabels(xyl)
	if err != nil {
		return nil, err
	}
	for i := range labels.TextStyle {
		labels.TextStyle[i].Color = colorInk
		labels.TextStyle[i].XAlign = draw.XCenter
	}
	return labels, nil
}

// deltaLabels annotates bar pairs with their percent change, placed above
// the taller bar of the pair. Pairs with a zero base or out-of-range
// indices are skipped.
func deltaLabels(values []float64, pairs [][2]int) (*plotter.Labels, error) {
	abs := 0.0
	for _, v := range values {
		if a := math.Abs(v); a > abs {
			abs = a
		}
	}
	offset := math.Max(abs*0.06, 0.5)

	if len(pairs) == 0 {
		for i := 1; i < len(values); i++ {
			pairs = append(pairs, [2]int{i - 1, i})
		}
	}

	var xyl plotter.XYLabels
	for _, pair := range pairs {
		from, to := pair[0], pair[1]
		if from < 0 || to < 0 || from >= len(values) || to >= len(values) {
			continue
		}
		prev, curr := values[from], values[to]
		if prev == 0 || math.IsNaN(prev) || math.IsNaN(curr) {
			continue
		}
		pct := (curr/prev - 1.0) * 100.0
		label := strings.Replace(fmt.Sprintf("%+.1f%%", pct), ".", ",", 1)

		top := math.Max(prev, curr)
		xyl.XYs = append(xyl.XYs, plotter.XY{X: (float64(from) + float64(to)) / 2, Y: top + offset*2})
		xyl.Labels = append(xyl.Labels, label)
	}
	labels, err := plotter.NewLabels(xyl)
	if err != nil {
		return nil, err
	}
	for i := range labels.TextStyle {
		labels.TextStyle[i].Color = colorInk
		labels.TextStyle[i].XAlign = draw.XCenter
	}
	return labels, nil
}

// formatGrouped renders a value with no decimals and '.' thousands grouping
// ("1234567" → "1.234.567").
func formatGrouped(v float64) string {
	s := strconv.FormatFloat(math.Round(v), 'f', 0, 64)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

func save(p *plot.Plot, output string, w, h vg.Length) error {
	if dir := filepath.Dir(output); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("could not create chart directory: %w", err)
		}
	}
	if err := p.Save(w, h, output); err != nil {
		return fmt.Errorf("could not save chart %s: %w", output, err)
	}
	return nil
}
