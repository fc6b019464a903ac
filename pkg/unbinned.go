package calib

import (
	"context"
	"fmt"
	"math"

	"go-hep.org/x/hep/groot/rhist"
	"go-hep.org/x/hep/groot/riofs"
	"go-hep.org/x/hep/hbook"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat/distuv"
)

var gaussParNames = []string{"mu_gauss", "sigma_gauss", "norm"}

// Bound is a parameter given as [initial value, min, max].
type Bound [3]float64

func (b Bound) Init() float64 { return b[0] }
func (b Bound) Min() float64  { return b[1] }
func (b Bound) Max() float64  { return b[2] }

func (b Bound) Valid() bool {
	return b[1] < b[2]
}

// toInternal and toExternal map a bounded parameter onto an unbounded one
// with the sine transformation used by MINUIT.
func (b Bound) toInternal(p float64) float64 {
	s := 2*(p-b.Min())/(b.Max()-b.Min()) - 1
	return math.Asin(math.Max(-1, math.Min(1, s)))
}

func (b Bound) toExternal(t float64) float64 {
	return b.Min() + (b.Max()-b.Min())*(math.Sin(t)+1)/2
}

// GaussFit is the outcome of an extended unbinned likelihood fit of a
// gaussian truncated to a range.
type GaussFit struct {
	Range   Range
	Mu      float64
	Sigma   float64
	Norm    float64
	Errors  [3]float64
	Corr    [][]float64
	NLL     float64
	Status  int
	Entries int
}

func (g *GaussFit) params() []float64 {
	return []float64{g.Mu, g.Sigma, g.Norm}
}

// truncatedNorm is the integral of the unit gaussian pdf inside rng.
func truncatedNorm(rng Range, mu, sigma float64) float64 {
	n := distuv.Normal{Mu: mu, Sigma: sigma}
	return n.CDF(rng.Max()) - n.CDF(rng.Min())
}

// Eval is the expected density of events at x.
func (g *GaussFit) Eval(x float64) float64 {
	if x < g.Range.Min() || x > g.Range.Max() {
		return 0
	}
	z := truncatedNorm(g.Range, g.Mu, g.Sigma)
	if z <= 0 {
		return 0
	}
	return g.Norm * distuv.Normal{Mu: g.Mu, Sigma: g.Sigma}.Prob(x) / z
}

// ExpectedInBin integrates Eval over [lo, hi].
func (g *GaussFit) ExpectedInBin(lo, hi float64) float64 {
	z := truncatedNorm(g.Range, g.Mu, g.Sigma)
	lo = math.Max(lo, g.Range.Min())
	hi = math.Min(hi, g.Range.Max())
	if hi <= lo || z <= 0 {
		return 0
	}
	return g.Norm * truncatedNorm(Range{lo, hi}, g.Mu, g.Sigma) / z
}

// MPV is the maximum of the model inside its range.
func (g *GaussFit) MPV() float64 {
	return math.Max(g.Range.Min(), math.Min(g.Range.Max(), g.Mu))
}

// Chi2OverNDF compares the model with the non-empty bins of h, with
// ndf = bins - 3.
func (g *GaussFit) Chi2OverNDF(h *hbook.H1D) float64 {
	var chi2 float64
	var n int
	for _, bin := range h.Binning.Bins {
		content := bin.SumW()
		if content <= 0 || bin.XMid() < g.Range.Min() || bin.XMid() > g.Range.Max() {
			continue
		}
		r := (content - g.ExpectedInBin(bin.XMin(), bin.XMax())) / bin.ErrW()
		chi2 += r * r
		n++
	}
	ndf := n - len(gaussParNames)
	if ndf <= 0 {
		return math.NaN()
	}
	return chi2 / float64(ndf)
}

// extendedNLL is the extended negative log-likelihood of data.
func extendedNLL(data []float64, rng Range, mu, sigma, norm float64) float64 {
	if sigma <= 0 || norm <= 0 {
		return math.Inf(1)
	}
	z := truncatedNorm(rng, mu, sigma)
	if z <= 0 {
		return math.Inf(1)
	}
	pdf := distuv.Normal{Mu: mu, Sigma: sigma}
	nll := norm - float64(len(data))*math.Log(norm)
	for _, x := range data {
		nll -= pdf.LogProb(x) - math.Log(z)
	}
	return nll
}

// FitGauss fits the values inside rng with bounded parameters
// mu, sigma and norm.
func FitGauss(values []float64, rng Range, bounds [3]Bound) (*GaussFit, error) {
	if !rng.Valid() {
		return nil, fmt.Errorf("invalid fit range %v", rng)
	}
	for i, b := range bounds {
		if !b.Valid() {
			return nil, &ErrConfig{Option: "fit.pars." + gaussParNames[i], Reason: fmt.Sprintf("invalid bounds %v", b)}
		}
	}
	var data []float64
	for _, v := range values {
		if v >= rng.Min() && v <= rng.Max() {
			data = append(data, v)
		}
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("no entry inside fit range %v", rng)
	}

	external := func(t []float64) (float64, float64, float64) {
		return bounds[0].toExternal(t[0]), bounds[1].toExternal(t[1]), bounds[2].toExternal(t[2])
	}
	problem := optimize.Problem{
		Func: func(t []float64) float64 {
			mu, sigma, norm := external(t)
			return extendedNLL(data, rng, mu, sigma, norm)
		},
	}
	init := make([]float64, len(bounds))
	for i, b := range bounds {
		init[i] = b.toInternal(b.Init())
	}
	settings := &optimize.Settings{MajorIterations: 10000}
	res, err := optimize.Minimize(problem, init, settings, &optimize.NelderMead{})
	status := FitStatusOK
	if err != nil {
		if res == nil {
			return nil, fmt.Errorf("minimisation failed: %w", err)
		}
		logger.Warn(fmt.Sprintf("minimisation did not converge: %v", err), "fitgauss")
		status = FitStatusNotConverged
	}

	mu, sigma, norm := external(res.X)
	g := &GaussFit{Range: rng, Mu: mu, Sigma: sigma, Norm: norm, Entries: len(data), Status: status}

	nll := func(p []float64) float64 {
		return extendedNLL(data, rng, p[0], p[1], p[2])
	}
	g.NLL = nll(g.params())
	errs, cov, err := ParameterErrors(nll, g.params(), 1)
	if err != nil {
		logger.Warn(err.Error(), "fitgauss")
		if g.Status == FitStatusOK {
			g.Status = FitStatusNoErrors
		}
		g.Corr = identity(len(gaussParNames))
	} else {
		g.Corr = Correlations(cov)
	}
	copy(g.Errors[:], errs)
	return g, nil
}

func identity(n int) [][]float64 {
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
		m[i][i] = 1
	}
	return m
}

// Results lists FitStatus, Chi2OverNdf, Xmin, Xmax, x_{MPV}, #sigma_{MPV}
// and the three parameters.
func (g *GaussFit) Results(name string, h *hbook.H1D) *FitResults {
	res := NewFitResults(name)
	res.Add("FitStatus", float64(g.Status), 0)
	res.Add("Chi2OverNdf", g.Chi2OverNDF(h), 0)
	res.Add("Xmin", g.Range.Min(), 0)
	res.Add("Xmax", g.Range.Max(), 0)
	res.Add("x_{MPV}", g.MPV(), 0)
	res.Add("#sigma_{MPV}", g.Errors[0], 0)
	for i, par := range g.params() {
		res.Add(gaussParNames[i], par, g.Errors[i])
	}
	return res
}

// Unbinned fit stage configuration.

type GaussParsConfig struct {
	MuGauss    []Bound `yaml:"mu_gauss"`
	SigmaGauss []Bound `yaml:"sigma_gauss"`
	Norm       []Bound `yaml:"norm"`
}

func (p GaussParsConfig) bounds(i int) [3]Bound {
	return [3]Bound{p.MuGauss[i], p.SigmaGauss[i], p.Norm[i]}
}

type GaussFitOptions struct {
	Range RangeList       `yaml:"range"`
	Pars  GaussParsConfig `yaml:"pars"`
}

type GaussPlotConfig struct {
	Label OneOrMany[string]    `yaml:"label"`
	YMin  OneOrMany[AutoFloat] `yaml:"ymin"`
	YMax  OneOrMany[AutoFloat] `yaml:"ymax"`
	Info  PlotInfo             `yaml:"info"`
}

type GaussFitOutput struct {
	File string          `yaml:"file"`
	Plot GaussPlotConfig `yaml:"plot"`
}

type GaussFitConfig struct {
	Input           FitInput        `yaml:"input"`
	HistogramConfig HistogramConfig `yaml:"histogram_config"`
	Fit             GaussFitOptions `yaml:"fit"`
	Output          GaussFitOutput  `yaml:"output"`
	Database        DatabaseConfig  `yaml:"database"`
	Verbosity       int             `yaml:"verbosity"`
}

func DefaultGaussFitConfig() GaussFitConfig {
	return GaussFitConfig{
		Output: GaussFitOutput{
			Plot: GaussPlotConfig{YMin: One(AutoFloat{Auto: true}), YMax: One(AutoFloat{Auto: true})},
		},
		Database: defaultDatabaseConfig(),
	}
}

func (c GaussFitConfig) Validate() error {
	branches := c.Input.Tree.Branches
	if err := validateBranchHistograms(branches, c.HistogramConfig); err != nil {
		return err
	}
	n := len(branches)
	p := c.Fit.Pars
	err := checkSameSize([]string{"input.tree.branches", "fit.pars.mu_gauss", "fit.pars.sigma_gauss", "fit.pars.norm"},
		n, len(p.MuGauss), len(p.SigmaGauss), len(p.Norm))
	if err != nil {
		return err
	}
	if c.Fit.Range.IsList {
		if err := checkSameSize([]string{"input.tree.branches", "fit.range"}, n, c.Fit.Range.Len()); err != nil {
			return err
		}
	}
	for i := 0; i < n; i++ {
		if !c.Fit.Range.At(i).Valid() {
			return &ErrConfig{Option: "fit.range", Reason: fmt.Sprintf("invalid range %v", c.Fit.Range.At(i))}
		}
	}
	return nil
}

// hConfig is the binning of histogram i, spanning the fit range.
func (c GaussFitConfig) hConfig(i int) H1DConfig {
	cfg := c.HistogramConfig.HConfig(i)
	cfg.Range = c.Fit.Range.At(i)
	return cfg
}

// RunGaussFit fits every branch and writes the histograms, result tables,
// correlation matrices and one PDF page per branch. store may be nil.
func RunGaussFit(ctx context.Context, c GaussFitConfig, store *ResultStore) error {
	if err := c.Validate(); err != nil {
		return err
	}
	table, err := ReadColumns(c.Input.File, c.Input.Tree.Name, c.Input.Tree.Branches)
	if err != nil {
		return err
	}

	n := len(c.Input.Tree.Branches)
	hists := make([]*hbook.H1D, n)
	results := make([]*FitResults, n)
	correlations := make([]*rhist.H2D, n)
	panels := make([]FitPanel, n)
	for i, branch := range c.Input.Tree.Branches {
		if err := ctx.Err(); err != nil {
			return err
		}
		cfg := c.hConfig(i)
		if err := cfg.Validate(); err != nil {
			return err
		}
		logger.Info(fmt.Sprintf("Start fit of %s", branch), "fitgauss")
		values := table.Column(branch)
		hists[i] = FillH1D(values, cfg)

		g, err := FitGauss(values, cfg.Range, c.Fit.Pars.bounds(i))
		if err != nil {
			return fmt.Errorf("fit of %s: %w", branch, err)
		}
		results[i] = g.Results(cfg.Name, hists[i])
		correlations[i] = CorrelationHist("hFitCorrelation"+cfg.Name, gaussParNames, g.Corr)
		infof(c.Verbosity, "fitgauss", "%s: mu = %.4f +- %.4f, sigma = %.4f +- %.4f", branch, g.Mu, g.Errors[0], g.Sigma, g.Errors[1])

		panels[i] = FitPanel{
			Hist:   hists[i],
			Curve:  func(x float64) float64 { return g.ExpectedInBin(x-binWidth(cfg)/2, x+binWidth(cfg)/2) },
			Range:  cfg.Range,
			XLabel: c.Output.Plot.Label.At(i),
			Legend: "Gauss",
			YMin:   c.Output.Plot.YMin.At(i),
			YMax:   c.Output.Plot.YMax.At(i),
			Info:   &c.Output.Plot.Info,
			Lines: []string{
				fmt.Sprintf("χ²/ndf = %.2f", resultValue(results[i], "Chi2OverNdf")),
				fmt.Sprintf("MPV = %.4f ± %.4f", g.MPV(), g.Errors[0]),
			},
		}
	}

	err = createROOT(c.Output.File, func(f *riofs.File) error {
		for _, h := range hists {
			if err := f.Put(h.Name(), rhist.NewH1DFrom(h)); err != nil {
				return err
			}
		}
		for i, res := range results {
			if err := WriteFitResults(f, res); err != nil {
				return err
			}
			if err := f.Put("hFitCorrelation"+res.Name, correlations[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := SaveFitPanelsPDF(PDFName(c.Output.File), panels); err != nil {
		return err
	}

	if store != nil && c.Database.Record {
		for _, res := range results {
			if err := store.RecordFitResults(ctx, c.Output.File, res); err != nil {
				return err
			}
		}
	}
	return nil
}

func binWidth(cfg H1DConfig) float64 {
	return (cfg.Range.Max() - cfg.Range.Min()) / float64(cfg.NBin)
}

func resultValue(res *FitResults, label string) float64 {
	row, err := res.Get(label)
	if err != nil {
		return math.NaN()
	}
	return row.Value
}
