package calib

import (
	"fmt"
	"math"
	"os"

	"go-hep.org/x/hep/groot/rhist"
	"go-hep.org/x/hep/hbook"
	"go-hep.org/x/hep/hbook/rootcnv"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgpdf"
)

const (
	plotWidth  = 20 * vg.Centimeter
	plotHeight = 20 * vg.Centimeter
)

// FitPanel is a histogram drawn with the function fitted to it.
type FitPanel struct {
	Hist   *hbook.H1D
	Curve  func(x float64) float64
	Range  Range
	XLabel string
	Legend string
	YMin   AutoFloat
	YMax   AutoFloat
	Info   *PlotInfo
	Lines  []string
}

type histPoints struct {
	plotter.XYs
	plotter.YErrors
}

func newHistPoints(h *hbook.H1D, rng Range) histPoints {
	var pts histPoints
	for _, bin := range h.Binning.Bins {
		x := bin.XMid()
		if x < rng.Min() || x > rng.Max() {
			continue
		}
		pts.XYs = append(pts.XYs, plotter.XY{X: x, Y: bin.SumW()})
		pts.YErrors = append(pts.YErrors, struct{ Low, High float64 }{bin.ErrW(), bin.ErrW()})
	}
	return pts
}

func curveMax(f func(float64) float64, rng Range) float64 {
	const samples = 200
	fmax := math.Inf(-1)
	for i := 0; i <= samples; i++ {
		x := rng.Min() + (rng.Max()-rng.Min())*float64(i)/samples
		if v := f(x); !math.IsNaN(v) {
			fmax = math.Max(fmax, v)
		}
	}
	return fmax
}

// InfoLines are the experiment, campaign, beam and run annotations.
func InfoLines(info *PlotInfo) []string {
	if info == nil {
		return nil
	}
	return []string{
		info.Exp,
		info.Campaign,
		fmt.Sprintf("%s @ %s", info.Beam.Particle, info.Beam.Energy),
		fmt.Sprintf("Run %s", info.Run),
	}
}

// addText writes lines from the top left corner of the frame downwards.
func addText(p *plot.Plot, lines []string) error {
	if len(lines) == 0 {
		return nil
	}
	dx := p.X.Max - p.X.Min
	dy := p.Y.Max - p.Y.Min
	labels := plotter.XYLabels{}
	for i, line := range lines {
		labels.XYs = append(labels.XYs, plotter.XY{X: p.X.Min + 0.03*dx, Y: p.Y.Max - (0.05+0.06*float64(i))*dy})
		labels.Labels = append(labels.Labels, line)
	}
	l, err := plotter.NewLabels(labels)
	if err != nil {
		return err
	}
	p.Add(l)
	return nil
}

// NewFitPlot draws a panel.
func NewFitPlot(panel FitPanel) (*plot.Plot, error) {
	p := plot.New()
	p.X.Label.Text = panel.XLabel
	p.Y.Label.Text = "Entries"

	pts := newHistPoints(panel.Hist, panel.Range)
	data, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, fmt.Errorf("error plotting %s: %w", panel.Hist.Name(), err)
	}
	data.GlyphStyle.Shape = draw.CircleGlyph{}
	data.GlyphStyle.Radius = vg.Points(2)
	bars, err := plotter.NewYErrorBars(pts)
	if err != nil {
		return nil, fmt.Errorf("error plotting %s: %w", panel.Hist.Name(), err)
	}

	fn := plotter.NewFunction(panel.Curve)
	fn.XMin, fn.XMax = panel.Range.Min(), panel.Range.Max()
	fn.Samples = 500
	fn.LineStyle.Width = vg.Points(2)
	fn.LineStyle.Color = plotutil.Color(2)

	p.Add(fn, data, bars)
	p.Legend.Add("Data", data)
	if panel.Legend != "" {
		p.Legend.Add(panel.Legend, fn)
	}
	p.Legend.Top = true

	hmin := math.Inf(1)
	for _, pt := range pts.XYs {
		hmin = math.Min(hmin, pt.Y)
	}
	if math.IsInf(hmin, 1) {
		hmin = 0
	}
	ymax := 1.05 * math.Max(MaxContent(panel.Hist), curveMax(panel.Curve, panel.Range))
	p.X.Min, p.X.Max = panel.Range.Min(), panel.Range.Max()
	p.Y.Min = panel.YMin.Or(hmin)
	p.Y.Max = panel.YMax.Or(ymax)

	lines := append(InfoLines(panel.Info), panel.Lines...)
	if err := addText(p, lines); err != nil {
		return nil, err
	}
	return p, nil
}

// SavePDF writes one page per plot.
func SavePDF(filename string, plots []*plot.Plot) error {
	c := vgpdf.New(plotWidth, plotHeight)
	for i, p := range plots {
		if i > 0 {
			c.NextPage()
		}
		p.Draw(draw.New(c))
	}
	f, err := os.Create(filename)
	if err != nil {
		return &ErrOpenFile{Filename: filename, Err: err}
	}
	if _, err := c.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("error writing %q: %w", filename, err)
	}
	return f.Close()
}

func SaveFitPanelsPDF(filename string, panels []FitPanel) error {
	plots := make([]*plot.Plot, len(panels))
	for i, panel := range panels {
		p, err := NewFitPlot(panel)
		if err != nil {
			return err
		}
		plots[i] = p
	}
	return SavePDF(filename, plots)
}

// FitSummaryLines gives χ²/ndf and every fitted parameter with its error.
func FitSummaryLines(chi2OverNDF float64, res *FitResults, m Model) []string {
	lines := []string{fmt.Sprintf("χ²/ndf = %.2f", chi2OverNDF)}
	for _, par := range m.ParNames {
		row, err := res.Get(par)
		if err != nil {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s = %.3f ± %.3f", par, row.Value, row.Error))
	}
	return lines
}

// Fit plotting stage configuration.

type PlotFitInput struct {
	File string            `yaml:"file"`
	Data OneOrMany[string] `yaml:"data"`
}

type PlotFitFunc struct {
	Func OneOrMany[string] `yaml:"func"`
}

type PlotFitPlot struct {
	Label OneOrMany[string] `yaml:"label"`
	Info  PlotInfo          `yaml:"info"`
}

type PlotFitOutput struct {
	File      OneOrMany[string] `yaml:"file"`
	Extension OneOrMany[string] `yaml:"extension"`
}

type PlotFitConfig struct {
	Input     PlotFitInput  `yaml:"input"`
	Fit       PlotFitFunc   `yaml:"fit"`
	Plot      PlotFitPlot   `yaml:"plot"`
	Output    PlotFitOutput `yaml:"output"`
	Verbosity int           `yaml:"verbosity"`
}

func DefaultPlotFitConfig() PlotFitConfig {
	return PlotFitConfig{
		Fit:    PlotFitFunc{Func: One("gaus")},
		Output: PlotFitOutput{Extension: One("pdf")},
	}
}

func (c PlotFitConfig) Validate() error {
	data, labels, outputs := EnforceList(c.Input.Data), EnforceList(c.Plot.Label), EnforceList(c.Output.File)
	if len(data) == 0 {
		return &ErrConfig{Option: "input.data", Reason: "nothing to plot"}
	}
	return checkSameSize([]string{"input.data", "plot.label", "output.file"}, len(data), len(labels), len(outputs))
}

func readH1D(filename, name string) (*hbook.H1D, error) {
	f, err := openROOT(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	obj, err := getObject(f, filename, name)
	if err != nil {
		return nil, err
	}
	h, ok := obj.(rhist.H1)
	if !ok {
		return nil, &ErrMissingObject{Filename: filename, Name: name, Err: fmt.Errorf("object is a %s, not a 1D histogram", obj.Class())}
	}
	return rootcnv.H1D(h), nil
}

// PanelFromResults rebuilds the fitted function of data from its result
// table.
func PanelFromResults(h *hbook.H1D, res *FitResults, m Model) (FitPanel, error) {
	params := make([]float64, m.NPar())
	for i, par := range m.ParNames {
		row, err := res.Get(par)
		if err != nil {
			return FitPanel{}, err
		}
		params[i] = row.Value
	}
	xmin, err := res.Get("Xmin")
	if err != nil {
		return FitPanel{}, err
	}
	xmax, err := res.Get("Xmax")
	if err != nil {
		return FitPanel{}, err
	}
	chi2, err := res.Get("Chi2")
	if err != nil {
		return FitPanel{}, err
	}
	ndf, err := res.Get("NDF")
	if err != nil {
		return FitPanel{}, err
	}
	return FitPanel{
		Hist:   h,
		Curve:  func(x float64) float64 { return m.F(x, params) },
		Range:  Range{xmin.Value, xmax.Value},
		Legend: m.Legend,
		YMin:   AutoFloat{Auto: true},
		YMax:   AutoFloat{Auto: true},
		Lines:  FitSummaryLines(chi2.Value/ndf.Value, res, m),
	}, nil
}

// RunPlotFit draws every histogram with its fit, one file per extension.
func RunPlotFit(c PlotFitConfig) error {
	if err := c.Validate(); err != nil {
		return err
	}
	data, labels, outputs := EnforceList(c.Input.Data), EnforceList(c.Plot.Label), EnforceList(c.Output.File)
	for i, dat := range data {
		m, err := ModelByName(c.Fit.Func.At(i))
		if err != nil {
			return &ErrConfig{Option: "fit.func", Reason: err.Error()}
		}
		h, err := readH1D(c.Input.File, dat)
		if err != nil {
			return err
		}
		res, err := ReadFitResults(c.Input.File, fitResultsPrefix+dat)
		if err != nil {
			return err
		}
		panel, err := PanelFromResults(h, res, m)
		if err != nil {
			return err
		}
		panel.XLabel = labels[i]
		panel.Info = &c.Plot.Info

		p, err := NewFitPlot(panel)
		if err != nil {
			return err
		}
		for _, ext := range EnforceList(c.Output.Extension) {
			name := outputs[i] + "." + ext
			debugf(c.Verbosity, "plotfit", "Saving %s", name)
			if err := p.Save(plotWidth, plotHeight, name); err != nil {
				return fmt.Errorf("error saving %q: %w", name, err)
			}
		}
	}
	return nil
}
