package calib

import (
	"context"
	"fmt"
	"math"
	"strings"

	"go-hep.org/x/hep/groot/rhist"
	"go-hep.org/x/hep/groot/riofs"
	"go-hep.org/x/hep/hbook"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

const (
	CalibrationPerIon   = "per_ion"
	CalibrationCombined = "combined"
	DefaultKb           = 0.126 / 2
	defaultMeanBin      = 5
	defaultSigmaBin     = 6
)

// CampaignFiles lists result files per ion and campaign.
type CampaignFiles map[string]map[string][]string

type FitResSource struct {
	File       CampaignFiles     `yaml:"file"`
	HistFitRes OneOrMany[string] `yaml:"hist_fitres"`
}

type BinNumbers struct {
	Mean  int `yaml:"mean"`
	Sigma int `yaml:"sigma"`
}

type CalibrationInput struct {
	Real       FitResSource `yaml:"real"`
	Simulation FitResSource `yaml:"simulation"`
	BinNumber  BinNumbers   `yaml:"bin_number"`
}

type KbConfig struct {
	Fix   bool    `yaml:"fix"`
	Value float64 `yaml:"value"`
}

type CalibrationFit struct {
	Mode  string           `yaml:"mode"`
	Range map[string]Range `yaml:"range"`
	Kb    KbConfig         `yaml:"kb"`
}

type AxisLabels struct {
	XAxis string `yaml:"xaxis"`
	YAxis string `yaml:"yaxis"`
}

type AxisLimits struct {
	XAxis Range `yaml:"xaxis"`
	YAxis Range `yaml:"yaxis"`
}

type GraphConfig struct {
	Name   string                       `yaml:"name"`
	Label  AxisLabels                   `yaml:"label"`
	Limits AxisLimits                   `yaml:"limits"`
	Legend map[string]map[string]string `yaml:"legend"`
}

type CalibrationOutput struct {
	File string `yaml:"file"`
}

type CalibrateConfig struct {
	Input     CalibrationInput  `yaml:"input"`
	Fit       CalibrationFit    `yaml:"fit"`
	Graph     GraphConfig       `yaml:"graph"`
	Output    CalibrationOutput `yaml:"output"`
	Database  DatabaseConfig    `yaml:"database"`
	Verbosity int               `yaml:"verbosity"`
}

func DefaultCalibrateConfig() CalibrateConfig {
	return CalibrateConfig{
		Input: CalibrationInput{BinNumber: BinNumbers{Mean: defaultMeanBin, Sigma: defaultSigmaBin}},
		Fit: CalibrationFit{
			Mode: CalibrationPerIon,
			Kb:   KbConfig{Fix: true, Value: DefaultKb},
		},
		Graph:    GraphConfig{Name: "gCalib"},
		Database: defaultDatabaseConfig(),
	}
}

func (c CalibrateConfig) Validate() error {
	if c.Input.Real.HistFitRes.IsList || c.Input.Simulation.HistFitRes.IsList ||
		!c.Input.Real.HistFitRes.IsSet() || !c.Input.Simulation.HistFitRes.IsSet() {
		return &ErrConfig{Option: "hist_fitres", Reason: "options must be a single string (not a list)"}
	}
	if c.Output.File == "" {
		return &ErrConfig{Option: "output.file", Reason: "no output file"}
	}
	real, sim := c.Input.Real.File, c.Input.Simulation.File
	switch c.Fit.Mode {
	case CalibrationPerIon:
		for _, ion := range sortedKeys(sim) {
			if !c.Fit.Range[ion].Valid() {
				return &ErrConfig{Option: "fit.range", Reason: fmt.Sprintf("no valid range for ion %q", ion)}
			}
		}
	case CalibrationCombined:
		if len(real) != len(sim) {
			return &ErrSizeMismatch{Options: []string{"input.real.file", "input.simulation.file"}, Sizes: []int{len(real), len(sim)}}
		}
	default:
		return &ErrConfig{Option: "fit.mode", Reason: fmt.Sprintf("%q is neither %q nor %q", c.Fit.Mode, CalibrationPerIon, CalibrationCombined)}
	}
	for _, ion := range sortedKeys(sim) {
		if _, ok := real[ion]; !ok {
			return &ErrConfig{Option: "input.real.file", Reason: fmt.Sprintf("no measured data for ion %q", ion)}
		}
		for _, campaign := range sortedKeys(sim[ion]) {
			err := checkSameSize([]string{
				fmt.Sprintf("input.simulation.file.%s.%s", ion, campaign),
				fmt.Sprintf("input.real.file.%s.%s", ion, campaign),
			}, len(sim[ion][campaign]), len(real[ion][campaign]))
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// CalibrationPoint pairs a simulated deposited energy with its measured
// amplitude or charge.
type CalibrationPoint struct {
	X, ErrX float64
	Y, ErrY float64
}

// CalibrationGraph is a named set of points.
type CalibrationGraph struct {
	Name     string
	Ion      string
	Campaign string
	Points   []CalibrationPoint
}

func (g *CalibrationGraph) xs() (xs, exs, ys, eys []float64) {
	for _, pt := range g.Points {
		xs = append(xs, pt.X)
		exs = append(exs, pt.ErrX)
		ys = append(ys, pt.Y)
		eys = append(eys, pt.ErrY)
	}
	return xs, exs, ys, eys
}

func (g *CalibrationGraph) XRange() Range {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, pt := range g.Points {
		lo = math.Min(lo, pt.X)
		hi = math.Max(hi, pt.X)
	}
	return Range{lo, hi}
}

// S2D converts the graph for storage.
func (g *CalibrationGraph) S2D() *hbook.S2D {
	pts := make([]hbook.Point2D, len(g.Points))
	for i, pt := range g.Points {
		pts[i] = hbook.Point2D{
			X: pt.X, Y: pt.Y,
			ErrX: hbook.Range{Min: pt.ErrX, Max: pt.ErrX},
			ErrY: hbook.Range{Min: pt.ErrY, Max: pt.ErrY},
		}
	}
	s := hbook.NewS2D(pts...)
	s.Annotation()["name"] = g.Name
	return s
}

// readMeanSigma returns the mean and sigma rows of the result table of
// filename. Rows are numbered from 1.
func readMeanSigma(filename, treeName string, bins BinNumbers) (float64, float64, error) {
	res, err := ReadFitResults(filename, treeName)
	if err != nil {
		return 0, 0, err
	}
	mean, err := res.Bin(bins.Mean)
	if err != nil {
		return 0, 0, fmt.Errorf("%q: %w", filename, err)
	}
	sigma, err := res.Bin(bins.Sigma)
	if err != nil {
		return 0, 0, fmt.Errorf("%q: %w", filename, err)
	}
	return mean.Value, sigma.Value, nil
}

// LoadCalibrationGraphs builds one graph per ion and campaign, ordered by
// ion then campaign name.
func LoadCalibrationGraphs(c CalibrateConfig) ([]*CalibrationGraph, error) {
	realTree := c.Input.Real.HistFitRes.At(0)
	simTree := c.Input.Simulation.HistFitRes.At(0)
	var graphs []*CalibrationGraph
	for _, ion := range sortedKeys(c.Input.Simulation.File) {
		for _, campaign := range sortedKeys(c.Input.Simulation.File[ion]) {
			g := &CalibrationGraph{
				Name:     fmt.Sprintf("%s_%s_%s", c.Graph.Name, ion, campaign),
				Ion:      ion,
				Campaign: campaign,
			}
			simFiles := c.Input.Simulation.File[ion][campaign]
			realFiles := c.Input.Real.File[ion][campaign]
			for i, simFile := range simFiles {
				x, ex, err := readMeanSigma(simFile, simTree, c.Input.BinNumber)
				if err != nil {
					return nil, err
				}
				y, ey, err := readMeanSigma(realFiles[i], realTree, c.Input.BinNumber)
				if err != nil {
					return nil, err
				}
				debugf(c.Verbosity, "calibrate", "%s/%s: (%g ± %g, %g ± %g)", ion, campaign, x, ex, y, ey)
				g.Points = append(g.Points, CalibrationPoint{X: x, ErrX: ex, Y: y, ErrY: ey})
			}
			graphs = append(graphs, g)
		}
	}
	return graphs, nil
}

// mergeGraphs concatenates the points of graphs under a new name.
func mergeGraphs(name, ion string, graphs []*CalibrationGraph) *CalibrationGraph {
	merged := &CalibrationGraph{Name: name, Ion: ion}
	for _, g := range graphs {
		merged.Points = append(merged.Points, g.Points...)
	}
	return merged
}

// BirksFit is a fit of Birks law to a calibration graph.
type BirksFit struct {
	Graph  *CalibrationGraph
	Range  Range
	Params [3]float64
	Errors [3]float64
	Chi2   float64
	NDF    int
	Status int
}

func (b *BirksFit) Eval(e float64) float64 {
	return Birks(e, b.Params[:])
}

func (b *BirksFit) Results() *FitResults {
	res := NewFitResults(b.Graph.Name)
	res.Add("FitStatus", float64(b.Status), 0)
	res.Add("Chi2", b.Chi2, 0)
	res.Add("NDF", float64(b.NDF), 0)
	for i, name := range []string{"S", "A0", "Kb"} {
		res.Add(name, b.Params[i], b.Errors[i])
	}
	res.Add("Xmin", b.Range.Min(), 0)
	res.Add("Xmax", b.Range.Max(), 0)
	return res
}

// effectiveVarianceChi2 propagates the x errors through the slope of the
// model.
func effectiveVarianceChi2(p []float64, xs, exs, ys, eys []float64) float64 {
	var chi2 float64
	for i, x := range xs {
		slope := fd.Derivative(func(e float64) float64 { return Birks(e, p) }, x, nil)
		variance := eys[i]*eys[i] + slope*slope*exs[i]*exs[i]
		if variance <= 0 {
			variance = 1
		}
		r := ys[i] - Birks(x, p)
		chi2 += r * r / variance
	}
	return chi2
}

// FitBirks fits Birks law to the points of g inside rng. When kb.Fix is
// set kB keeps its value.
func FitBirks(g *CalibrationGraph, rng Range, kb KbConfig) (*BirksFit, error) {
	var xs, exs, ys, eys []float64
	for _, pt := range g.Points {
		if pt.X < rng.Min() || pt.X > rng.Max() {
			continue
		}
		xs = append(xs, pt.X)
		exs = append(exs, pt.ErrX)
		ys = append(ys, pt.Y)
		eys = append(eys, pt.ErrY)
	}
	nfree := 3
	if kb.Fix {
		nfree = 2
	}
	if len(xs) < nfree {
		return nil, fmt.Errorf("%s: %d points in range %v for %d free parameters", g.Name, len(xs), rng, nfree)
	}

	a0, s := stat.LinearRegression(xs, ys, nil, false)
	full := func(free []float64) []float64 {
		if kb.Fix {
			return []float64{free[0], free[1], kb.Value}
		}
		return free
	}
	init := []float64{s, a0, kb.Value}[:nfree]
	chi2 := func(free []float64) float64 {
		return effectiveVarianceChi2(full(free), xs, exs, ys, eys)
	}

	res, err := optimize.Minimize(optimize.Problem{Func: chi2}, init, &optimize.Settings{MajorIterations: 10000}, &optimize.NelderMead{})
	status := FitStatusOK
	if err != nil {
		if res == nil {
			return nil, fmt.Errorf("fit of %s failed: %w", g.Name, err)
		}
		logger.Warn(fmt.Sprintf("fit of %s did not converge: %v", g.Name, err), "calibrate")
		status = FitStatusNotConverged
	}
	errs, _, err := ParameterErrors(chi2, res.X, 2)
	if err != nil {
		logger.Warn(fmt.Sprintf("%s: %v", g.Name, err), "calibrate")
		if status == FitStatusOK {
			status = FitStatusNoErrors
		}
	}

	fit := &BirksFit{
		Graph:  g,
		Range:  rng,
		Chi2:   chi2(res.X),
		NDF:    len(xs) - nfree,
		Status: status,
	}
	copy(fit.Params[:], full(res.X))
	copy(fit.Errors[:], errs)
	return fit, nil
}

// Calibration holds the graphs drawn and the fits performed.
type Calibration struct {
	Graphs []*CalibrationGraph
	Fits   []*BirksFit
}

// Calibrate fits Birks law per ion, or once on every point in combined
// mode.
func Calibrate(c CalibrateConfig, graphs []*CalibrationGraph) (*Calibration, error) {
	cal := &Calibration{Graphs: graphs}
	if c.Fit.Mode == CalibrationCombined {
		merged := mergeGraphs(c.Graph.Name, "", graphs)
		fit, err := FitBirks(merged, merged.XRange(), KbConfig{Value: c.Fit.Kb.Value})
		if err != nil {
			return nil, err
		}
		cal.Fits = append(cal.Fits, fit)
		return cal, nil
	}

	byIon := make(map[string][]*CalibrationGraph)
	for _, g := range graphs {
		byIon[g.Ion] = append(byIon[g.Ion], g)
	}
	for _, ion := range sortedKeys(byIon) {
		merged := mergeGraphs(fmt.Sprintf("%s_%s", c.Graph.Name, ion), ion, byIon[ion])
		fit, err := FitBirks(merged, c.Fit.Range[ion], c.Fit.Kb)
		if err != nil {
			return nil, err
		}
		cal.Fits = append(cal.Fits, fit)
	}
	return cal, nil
}

// CalibrationUnit is mV.s for charges and mV for amplitudes.
func CalibrationUnit(yLabel string) string {
	if strings.Contains(yLabel, "Charge") {
		return "mV.s"
	}
	return "mV"
}

func (b *BirksFit) summaryLines(unit string) []string {
	prefix := ""
	if b.Graph.Ion != "" {
		prefix = b.Graph.Ion + ": "
	}
	return []string{
		fmt.Sprintf("%sS = %.3f ± %.3f %s.MeV⁻¹", prefix, b.Params[0], b.Errors[0], unit),
		fmt.Sprintf("%sA0 = %.3f ± %.3f %s", prefix, b.Params[1], b.Errors[1], unit),
		fmt.Sprintf("%sKB = %.6f ± %.6f MeV⁻¹", prefix, b.Params[2], b.Errors[2]),
	}
}

type graphPoints struct {
	plotter.XYs
	plotter.XErrors
	plotter.YErrors
}

func newGraphPoints(g *CalibrationGraph) graphPoints {
	var pts graphPoints
	for _, pt := range g.Points {
		pts.XYs = append(pts.XYs, plotter.XY{X: pt.X, Y: pt.Y})
		pts.XErrors = append(pts.XErrors, struct{ Low, High float64 }{pt.ErrX, pt.ErrX})
		pts.YErrors = append(pts.YErrors, struct{ Low, High float64 }{pt.ErrY, pt.ErrY})
	}
	return pts
}

// NewCalibrationPlot draws the graphs with the fitted laws.
func NewCalibrationPlot(c CalibrateConfig, cal *Calibration) (*plot.Plot, error) {
	p := plot.New()
	p.X.Label.Text = c.Graph.Label.XAxis
	p.Y.Label.Text = c.Graph.Label.YAxis

	for i, g := range cal.Graphs {
		pts := newGraphPoints(g)
		sc, err := plotter.NewScatter(pts)
		if err != nil {
			return nil, fmt.Errorf("error plotting %s: %w", g.Name, err)
		}
		sc.GlyphStyle.Color = plotutil.Color(i)
		sc.GlyphStyle.Shape = plotutil.Shape(i)
		sc.GlyphStyle.Radius = vg.Points(3)
		xbars, err := plotter.NewXErrorBars(pts)
		if err != nil {
			return nil, err
		}
		ybars, err := plotter.NewYErrorBars(pts)
		if err != nil {
			return nil, err
		}
		xbars.LineStyle.Color = plotutil.Color(i)
		ybars.LineStyle.Color = plotutil.Color(i)
		p.Add(sc, xbars, ybars)
		if label, ok := c.Graph.Legend[g.Ion][g.Campaign]; ok {
			p.Legend.Add(label, sc)
		}
	}

	var lines []string
	unit := CalibrationUnit(c.Graph.Label.YAxis)
	for i, fit := range cal.Fits {
		fn := plotter.NewFunction(fit.Eval)
		fn.XMin, fn.XMax = fit.Range.Min(), fit.Range.Max()
		fn.LineStyle.Width = vg.Points(2)
		fn.LineStyle.Color = plotutil.Color(len(cal.Graphs) + i)
		fn.LineStyle.Dashes = plotutil.Dashes(i)
		p.Add(fn)
		lines = append(lines, fit.summaryLines(unit)...)
	}
	p.Legend.Top = true
	p.Legend.Left = true

	if c.Graph.Limits.XAxis.Valid() {
		p.X.Min, p.X.Max = c.Graph.Limits.XAxis.Min(), c.Graph.Limits.XAxis.Max()
	}
	if c.Graph.Limits.YAxis.Valid() {
		p.Y.Min, p.Y.Max = c.Graph.Limits.YAxis.Min(), c.Graph.Limits.YAxis.Max()
	}
	if err := addTextRight(p, lines); err != nil {
		return nil, err
	}
	return p, nil
}

// addTextRight writes lines in the lower right part of the frame.
func addTextRight(p *plot.Plot, lines []string) error {
	if len(lines) == 0 {
		return nil
	}
	dx := p.X.Max - p.X.Min
	dy := p.Y.Max - p.Y.Min
	labels := plotter.XYLabels{}
	for i, line := range lines {
		labels.XYs = append(labels.XYs, plotter.XY{X: p.X.Min + 0.45*dx, Y: p.Y.Min + (0.05+0.05*float64(len(lines)-1-i))*dy})
		labels.Labels = append(labels.Labels, line)
	}
	l, err := plotter.NewLabels(labels)
	if err != nil {
		return err
	}
	for i := range l.TextStyle {
		l.TextStyle[i].XAlign = draw.XLeft
	}
	p.Add(l)
	return nil
}

// WriteCalibration stores the plotted graphs, the fitted graphs and the
// fit results.
func WriteCalibration(filename string, cal *Calibration) error {
	return createROOT(filename, func(f *riofs.File) error {
		for _, g := range cal.Graphs {
			if err := f.Put(g.Name, rhist.NewGraphErrorsFrom(g.S2D())); err != nil {
				return fmt.Errorf("error writing %s: %w", g.Name, err)
			}
		}
		for _, fit := range cal.Fits {
			if err := f.Put(fit.Graph.Name, rhist.NewGraphErrorsFrom(fit.Graph.S2D())); err != nil {
				return fmt.Errorf("error writing %s: %w", fit.Graph.Name, err)
			}
			if err := WriteFitResults(f, fit.Results()); err != nil {
				return err
			}
		}
		return nil
	})
}

// RunCalibration reads the fit results, fits Birks law and writes the
// output file and its plot. store may be nil.
func RunCalibration(ctx context.Context, c CalibrateConfig, store *ResultStore) error {
	if err := c.Validate(); err != nil {
		return err
	}
	graphs, err := LoadCalibrationGraphs(c)
	if err != nil {
		return err
	}
	cal, err := Calibrate(c, graphs)
	if err != nil {
		return err
	}
	for _, fit := range cal.Fits {
		for _, line := range fit.summaryLines(CalibrationUnit(c.Graph.Label.YAxis)) {
			logger.Info(line, "calibrate")
		}
	}
	if err := WriteCalibration(c.Output.File, cal); err != nil {
		return err
	}
	p, err := NewCalibrationPlot(c, cal)
	if err != nil {
		return err
	}
	if err := SavePDF(PDFName(c.Output.File), []*plot.Plot{p}); err != nil {
		return err
	}
	if store != nil && c.Database.Record {
		for _, fit := range cal.Fits {
			if err := store.RecordFitResults(ctx, c.Output.File, fit.Results()); err != nil {
				return err
			}
		}
	}
	return nil
}
