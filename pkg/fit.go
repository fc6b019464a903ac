package calib

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go-hep.org/x/hep/fit"
	"go-hep.org/x/hep/groot/rhist"
	"go-hep.org/x/hep/groot/riofs"
	"go-hep.org/x/hep/hbook"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// Fit status values, 0 meaning converged as in ROOT.
const (
	FitStatusOK           = 0
	FitStatusNotConverged = 1
	FitStatusNoErrors     = 2
)

// BinnedFit is the outcome of a χ² fit of a histogram.
type BinnedFit struct {
	Model  Model
	Range  Range
	Params []float64
	Errors []float64
	Chi2   float64
	NDF    int
	Status int
}

func (b *BinnedFit) Eval(x float64) float64 {
	return b.Model.F(x, b.Params)
}

func (b *BinnedFit) Chi2OverNDF() float64 {
	if b.NDF <= 0 {
		return math.NaN()
	}
	return b.Chi2 / float64(b.NDF)
}

// Results lists FitStatus, Chi2, NDF, the model parameters, Xmin and Xmax.
func (b *BinnedFit) Results(name string) *FitResults {
	res := NewFitResults(name)
	res.Add("FitStatus", float64(b.Status), 0)
	res.Add("Chi2", b.Chi2, 0)
	res.Add("NDF", float64(b.NDF), 0)
	for i, par := range b.Model.ParNames {
		res.Add(par, b.Params[i], b.Errors[i])
	}
	res.Add("Xmin", b.Range.Min(), 0)
	res.Add("Xmax", b.Range.Max(), 0)
	return res
}

// FitPoints returns the centres, contents and errors of the non-empty bins
// inside rng.
func FitPoints(h *hbook.H1D, rng Range) (xs, ys, errs []float64) {
	for _, bin := range h.Binning.Bins {
		x := bin.XMid()
		if x < rng.Min() || x > rng.Max() || bin.SumW() == 0 {
			continue
		}
		xs = append(xs, x)
		ys = append(ys, bin.SumW())
		errs = append(errs, bin.ErrW())
	}
	return xs, ys, errs
}

// rangeStats returns the mean, standard deviation, highest content and
// integral (content times bin width) of the bins inside rng.
func rangeStats(h *hbook.H1D, rng Range) (mean, std, hmax, area float64) {
	var sumw, sumwx, sumwx2 float64
	for _, bin := range h.Binning.Bins {
		x := bin.XMid()
		if x < rng.Min() || x > rng.Max() {
			continue
		}
		w := bin.SumW()
		sumw += w
		sumwx += w * x
		sumwx2 += w * x * x
		hmax = max(hmax, w)
		area += w * (bin.XMax() - bin.XMin())
	}
	if sumw == 0 {
		return 0, 0, 0, 0
	}
	mean = sumwx / sumw
	std = math.Sqrt(math.Max(sumwx2/sumw-mean*mean, 0))
	return mean, std, hmax, area
}

// InitialParams guesses starting values from the histogram moments.
func InitialParams(m Model, h *hbook.H1D, rng Range) []float64 {
	mean, std, hmax, area := rangeStats(h, rng)
	switch m.Name {
	case "lorentz":
		gamma := 2.355 * std
		return []float64{hmax * math.Pi * gamma / 2, mean, gamma}
	case "crystalball":
		return []float64{hmax, mean, std, 1, 2}
	case "langaus":
		return []float64{std / 4, mean, area, std / 2}
	case "birks":
		return []float64{1, 0, 0}
	}
	return []float64{hmax, mean, std}
}

// FitH1D performs a χ² fit of m to h inside rng. Empty bins are ignored and
// parameter errors come from the inverse Hessian of the χ².
func FitH1D(h *hbook.H1D, m Model, rng Range, init []float64) (*BinnedFit, error) {
	xs, ys, errs := FitPoints(h, rng)
	ndf := len(xs) - m.NPar()
	if ndf < 0 {
		return nil, fmt.Errorf("%s: %d points in range %v for %d parameters", h.Name(), len(xs), rng, m.NPar())
	}
	if len(init) != m.NPar() {
		init = InitialParams(m, h, rng)
	}

	res, err := fit.Curve1D(
		fit.Func1D{
			F:   m.F,
			X:   xs,
			Y:   ys,
			Err: errs,
			Ps:  init,
		},
		nil, &optimize.NelderMead{},
	)
	status := FitStatusOK
	if err != nil {
		if res == nil {
			return nil, fmt.Errorf("fit of %s failed: %w", h.Name(), err)
		}
		logger.Warn(fmt.Sprintf("fit of %s did not converge: %v", h.Name(), err), "fit")
		status = FitStatusNotConverged
	}

	chi2 := func(ps []float64) float64 {
		return chiSquare(m.F, ps, xs, ys, errs)
	}
	parErrs, _, err := ParameterErrors(chi2, res.X, 2)
	if err != nil {
		logger.Warn(fmt.Sprintf("%s: %v", h.Name(), err), "fit")
		if status == FitStatusOK {
			status = FitStatusNoErrors
		}
	}
	return &BinnedFit{
		Model:  m,
		Range:  rng,
		Params: res.X,
		Errors: parErrs,
		Chi2:   chi2(res.X),
		NDF:    ndf,
		Status: status,
	}, nil
}

func chiSquare(f func(float64, []float64) float64, ps, xs, ys, errs []float64) float64 {
	var chi2 float64
	for i, x := range xs {
		r := (ys[i] - f(x, ps)) / errs[i]
		chi2 += r * r
	}
	return chi2
}

var errNotPositiveDefinite = errors.New("hessian is not positive definite, no parameter errors")

// ParameterErrors returns the errors and the covariance scale·H⁻¹ of the
// minimum p of f. scale is 2 for a χ² and 1 for a negative log-likelihood.
// Errors are zero when the Hessian cannot be inverted.
func ParameterErrors(f func([]float64) float64, p []float64, scale float64) ([]float64, *mat.SymDense, error) {
	n := len(p)
	errs := make([]float64, n)
	hess := mat.NewSymDense(n, nil)
	fd.Hessian(hess, f, p, nil)

	var chol mat.Cholesky
	if ok := chol.Factorize(hess); !ok {
		return errs, nil, errNotPositiveDefinite
	}
	cov := mat.NewSymDense(n, nil)
	if err := chol.InverseTo(cov); err != nil {
		return errs, nil, fmt.Errorf("error inverting hessian: %w", err)
	}
	cov.ScaleSym(scale, cov)
	for i := range errs {
		errs[i] = math.Sqrt(math.Max(cov.At(i, i), 0))
	}
	return errs, cov, nil
}

// Correlations normalises a covariance matrix.
func Correlations(cov *mat.SymDense) [][]float64 {
	n := cov.SymmetricDim()
	corr := make([][]float64, n)
	for i := range corr {
		corr[i] = make([]float64, n)
		for j := range corr[i] {
			den := math.Sqrt(cov.At(i, i) * cov.At(j, j))
			if den > 0 {
				corr[i][j] = cov.At(i, j) / den
			}
		}
	}
	return corr
}

// Binned fit stage configuration.

type TreeBranches struct {
	Name     string   `yaml:"name"`
	Branches []string `yaml:"branches"`
}

type FitInput struct {
	File string       `yaml:"file"`
	Tree TreeBranches `yaml:"tree"`
}

type FitOptions struct {
	Func  OneOrMany[string] `yaml:"func"`
	Range RangeList         `yaml:"range"`
	Pars  [][]float64       `yaml:"pars"`
}

type FitPlotOutput struct {
	Activate bool              `yaml:"activate"`
	Label    OneOrMany[string] `yaml:"label"`
}

type FitOutput struct {
	Name string        `yaml:"name"`
	Plot FitPlotOutput `yaml:"plot"`
}

type FitConfig struct {
	Input           FitInput        `yaml:"input"`
	HistogramConfig HistogramConfig `yaml:"histogram_config"`
	Fit             FitOptions      `yaml:"fit"`
	Output          FitOutput       `yaml:"output"`
	NumWorkers      int             `yaml:"num_workers"`
	Database        DatabaseConfig  `yaml:"database"`
	Verbosity       int             `yaml:"verbosity"`
}

func DefaultFitConfig() FitConfig {
	return FitConfig{
		Fit:        FitOptions{Func: One("gaus")},
		NumWorkers: 1,
		Database:   defaultDatabaseConfig(),
	}
}

func validateBranchHistograms(branches []string, h HistogramConfig) error {
	if len(branches) == 0 {
		return &ErrConfig{Option: "input.tree.branches", Reason: "no branch to fit"}
	}
	if h.Name.IsList {
		return checkSameSize([]string{"input.tree.branches", "histogram_config.name"}, len(branches), h.Name.Len())
	}
	if len(branches) > 1 {
		return &ErrConfig{Option: "histogram_config.name", Reason: "a single name for several branches"}
	}
	return nil
}

func (c FitConfig) Validate() error {
	if err := validateBranchHistograms(c.Input.Tree.Branches, c.HistogramConfig); err != nil {
		return err
	}
	for i := range c.Input.Tree.Branches {
		if err := c.HistogramConfig.HConfig(i).Validate(); err != nil {
			return err
		}
		if _, err := ModelByName(c.Fit.Func.At(i)); err != nil {
			return &ErrConfig{Option: "fit.func", Reason: err.Error()}
		}
	}
	return nil
}

// fitRange is the configured range of histogram i, or its whole axis.
func (c FitConfig) fitRange(i int) Range {
	if c.Fit.Range.IsSet() {
		return c.Fit.Range.At(i)
	}
	return c.HistogramConfig.HConfig(i).Range
}

func (c FitConfig) initPars(i int) []float64 {
	if i < len(c.Fit.Pars) {
		return c.Fit.Pars[i]
	}
	return nil
}

// RunBinnedFit fills one histogram per branch, fits them on the worker pool
// and writes histograms, QA copies and result tables. store may be nil.
func RunBinnedFit(ctx context.Context, c FitConfig, store *ResultStore) error {
	if err := c.Validate(); err != nil {
		return err
	}
	table, err := ReadColumns(c.Input.File, c.Input.Tree.Name, c.Input.Tree.Branches)
	if err != nil {
		return err
	}

	jobs := make([]FitJob, len(c.Input.Tree.Branches))
	for i, branch := range c.Input.Tree.Branches {
		model, _ := ModelByName(c.Fit.Func.At(i))
		jobs[i] = FitJob{
			Index: i,
			Hist:  FillH1D(table.Column(branch), c.HistogramConfig.HConfig(i)),
			Model: model,
			Range: c.fitRange(i),
			Init:  c.initPars(i),
		}
	}
	outcomes, err := RunFits(ctx, jobs, c.NumWorkers, c.Verbosity)
	if err != nil {
		return err
	}

	results := make([]*FitResults, len(outcomes))
	for i, outcome := range outcomes {
		results[i] = outcome.Fit.Results(jobs[i].Hist.Name())
		infof(c.Verbosity, "fit", "%s: chi2/ndf = %.3f, status %d", jobs[i].Hist.Name(), outcome.Fit.Chi2OverNDF(), outcome.Fit.Status)
	}

	err = createROOT(c.Output.Name, func(f *riofs.File) error {
		for _, job := range jobs {
			if err := f.Put(job.Hist.Name(), rhist.NewH1DFrom(job.Hist)); err != nil {
				return err
			}
		}
		for _, job := range jobs {
			qa := Renamed(job.Hist, "QA_"+job.Hist.Name())
			if err := f.Put(qa.Name(), rhist.NewH1DFrom(qa)); err != nil {
				return err
			}
		}
		for _, res := range results {
			if err := WriteFitResults(f, res); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if c.Output.Plot.Activate {
		panels := make([]FitPanel, len(outcomes))
		for i, outcome := range outcomes {
			panels[i] = FitPanel{
				Hist:   jobs[i].Hist,
				Curve:  outcome.Fit.Eval,
				Range:  outcome.Fit.Range,
				XLabel: c.Output.Plot.Label.At(i),
				Legend: outcome.Fit.Model.Legend,
				YMin:   AutoFloat{Auto: true},
				YMax:   AutoFloat{Auto: true},
				Lines:  FitSummaryLines(outcome.Fit.Chi2OverNDF(), results[i], outcome.Fit.Model),
			}
		}
		if err := SaveFitPanelsPDF(PDFName(c.Output.Name), panels); err != nil {
			return err
		}
	}

	if store != nil && c.Database.Record {
		for _, res := range results {
			if err := store.RecordFitResults(ctx, c.Output.Name, res); err != nil {
				return err
			}
		}
	}
	return nil
}
