package qc

import (
	"fmt"
	"image/color"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/banshee-data/camsync/internal/trace"
)

var (
	refColor    = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	targetColor = color.RGBA{R: 255, G: 127, B: 14, A: 255}
	markerColor = color.RGBA{R: 214, G: 39, B: 40, A: 255}
)

// StagePlot renders a diagnostic into a single plot.
func StagePlot(d StageDiagnostic) (*plot.Plot, error) {
	switch diag := d.(type) {
	case CrossCorrelation:
		return crossCorrelationPlot(diag)
	case Regression:
		return regressionPlot(diag)
	case GapHistogram:
		return gapHistogramPlot(diag)
	default:
		return nil, fmt.Errorf("unknown stage diagnostic %T", d)
	}
}

// SaveStagePlot renders d and writes it as a PNG to path.
func SaveStagePlot(path string, d StageDiagnostic) error {
	p, err := StagePlot(d)
	if err != nil {
		return err
	}
	if err := p.Save(8*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("save stage plot %s: %w", path, err)
	}
	return nil
}

func crossCorrelationPlot(d CrossCorrelation) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Cross-correlation of reference and target event traces"
	p.X.Label.Text = "Lag (reference samples)"
	p.Y.Label.Text = "Correlation"

	xys := make(plotter.XYs, len(d.Corr))
	for i, v := range d.Corr {
		xys[i].X = float64(i - d.PaddedLen + 1)
		xys[i].Y = v
	}
	line, err := plotter.NewLine(xys)
	if err != nil {
		return nil, err
	}
	line.Color = refColor
	p.Add(line)

	lo, hi := minMax(d.Corr)
	marker, err := verticalLine(float64(d.LagIndex), lo, hi)
	if err != nil {
		return nil, err
	}
	p.Add(marker)
	p.Legend.Add(fmt.Sprintf("lag = %d", d.LagIndex), marker)
	return p, nil
}

func regressionPlot(d Regression) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Event-time regression"
	p.X.Label.Text = "Reference event times (s)"
	p.Y.Label.Text = "Target event times (s)"

	xys := make(plotter.XYs, len(d.RefTimes))
	for i := range d.RefTimes {
		xys[i].X = d.RefTimes[i]
		xys[i].Y = d.TargetTimes[i]
	}
	scatter, err := plotter.NewScatter(xys)
	if err != nil {
		return nil, err
	}
	scatter.Color = targetColor
	p.Add(scatter)

	if d.Fitted != nil {
		fit := make(plotter.XYs, len(d.RefTimes))
		for i := range d.RefTimes {
			fit[i].X = d.RefTimes[i]
			fit[i].Y = d.Fitted[i]
		}
		line, err := plotter.NewLine(fit)
		if err != nil {
			return nil, err
		}
		line.Color = refColor
		p.Add(line)
	}
	return p, nil
}

func gapHistogramPlot(d GapHistogram) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Inter-pulse interval differences"
	p.X.Label.Text = "Target gap - reference gap (s)"
	p.Y.Label.Text = "Count"

	if len(d.GapDiffs) > 0 {
		hist, err := plotter.NewHist(plotter.Values(d.GapDiffs), 50)
		if err != nil {
			return nil, err
		}
		hist.FillColor = refColor
		p.Add(hist)
	}
	return p, nil
}

// SaveBrightnessPlot writes the video brightness trace with the chosen LED
// threshold overlaid.
func SaveBrightnessPlot(path string, brightness []float64, threshold float64) error {
	p := plot.New()
	p.Title.Text = "LED crop brightness"
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = "Mean brightness (floor-corrected)"

	xys := make(plotter.XYs, len(brightness))
	for i, v := range brightness {
		xys[i].X = float64(i)
		xys[i].Y = v
	}
	line, err := plotter.NewLine(xys)
	if err != nil {
		return err
	}
	line.Color = refColor
	p.Add(line)

	thr, err := plotter.NewLine(plotter.XYs{
		{X: 0, Y: threshold},
		{X: float64(len(brightness)), Y: threshold},
	})
	if err != nil {
		return err
	}
	thr.Color = markerColor
	thr.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	p.Add(thr)
	p.Legend.Add("threshold", thr)

	if err := p.Save(8*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("save brightness plot %s: %w", path, err)
	}
	return nil
}

// SaveFinalComparison writes the six-panel before/after comparison: the full
// timelines plus zooms on the first and last pulse of each trace, before and
// after the target time correction is applied.
func SaveFinalComparison(path string, ref, target trace.Trace, refRate, targetNominal, correctedRate, lag float64) error {
	before := comparisonPanel("Before alignment", ref, target, refRate, targetNominal, 0, -1, -1)
	after := comparisonPanel("After alignment", ref, target, refRate, correctedRate, lag, -1, -1)

	plots := [][]*plot.Plot{
		{before, after},
		{
			zoomPanel("First pulse (before)", ref, target, refRate, targetNominal, 0, trace.FirstSegment),
			zoomPanel("Last pulse (before)", ref, target, refRate, targetNominal, 0, trace.LastSegment),
		},
		{
			zoomPanel("First pulse (after)", ref, target, refRate, correctedRate, lag, trace.FirstSegment),
			zoomPanel("Last pulse (after)", ref, target, refRate, correctedRate, lag, trace.LastSegment),
		},
	}

	img := vgimg.New(14*vg.Inch, 12*vg.Inch)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows: 3, Cols: 2,
		PadX: vg.Millimeter * 4, PadY: vg.Millimeter * 4,
		PadTop: vg.Millimeter * 2, PadBottom: vg.Millimeter * 2,
		PadLeft: vg.Millimeter * 2, PadRight: vg.Millimeter * 2,
	}
	canvases := plot.Align(plots, tiles, dc)
	for r := range plots {
		for c := range plots[r] {
			if plots[r][c] != nil {
				plots[r][c].Draw(canvases[r][c])
			}
		}
	}

	w, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create comparison plot %s: %w", path, err)
	}
	defer w.Close()
	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(w); err != nil {
		return fmt.Errorf("write comparison plot %s: %w", path, err)
	}
	return nil
}

// comparisonPanel plots both traces over a window of sample indices.
// lo/hi of -1 mean the full trace.
func comparisonPanel(title string, ref, target trace.Trace, refRate, targetRate, lag float64, lo, hi int) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = "Signal"

	addTraceLine(p, ref, refRate, 0, refColor, "reference", lo, hi)
	addTraceLine(p, target, targetRate, lag, targetColor, "target", lo, hi)
	return p
}

// zoomPanel plots both traces zoomed onto the requested pulse, with the
// window widened by half the pulse width on each side.
func zoomPanel(title string, ref, target trace.Trace, refRate, targetRate, lag float64, kind trace.SegmentKind) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = "Signal"

	if s, e, ok := trace.Segment(ref, kind); ok {
		extra := (e-s)/2 + 2
		addTraceLine(p, ref, refRate, 0, refColor, "reference", s-extra, e+extra)
	}
	if s, e, ok := trace.Segment(target, kind); ok {
		extra := (e-s)/2 + 2
		addTraceLine(p, target, targetRate, lag, targetColor, "target", s-extra, e+extra)
	}
	return p
}

func addTraceLine(p *plot.Plot, t trace.Trace, rate, offset float64, c color.Color, name string, lo, hi int) {
	if lo < 0 {
		lo = 0
	}
	if hi < 0 || hi > len(t) {
		hi = len(t)
	}
	xys := make(plotter.XYs, 0, hi-lo)
	for i := lo; i < hi; i++ {
		xys = append(xys, plotter.XY{X: float64(i)/rate + offset, Y: float64(t[i])})
	}
	line, err := plotter.NewLine(xys)
	if err != nil {
		return
	}
	line.Color = c
	p.Add(line)
	p.Legend.Add(name, line)
}

func verticalLine(x float64, ymin, ymax float64) (*plotter.Line, error) {
	line, err := plotter.NewLine(plotter.XYs{{X: x, Y: ymin}, {X: x, Y: ymax}})
	if err != nil {
		return nil, err
	}
	line.Color = markerColor
	line.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	return line, nil
}

func minMax(vs []float64) (float64, float64) {
	if len(vs) == 0 {
		return 0, 1
	}
	lo, hi := vs[0], vs[0]
	for _, v := range vs[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}
