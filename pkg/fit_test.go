package calib

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go-hep.org/x/hep/hbook"
	"gonum.org/v1/gonum/stat/distuv"
)

// gaussianHist fills every bin with the expected content of a gaussian.
func gaussianHist(n float64, mean, sigma float64) *hbook.H1D {
	h := hbook.NewH1D(100, 0, 10)
	h.Ann["name"] = "hTest"
	for _, bin := range h.Binning.Bins {
		h.Fill(bin.XMid(), n*Gaus(bin.XMid(), mean, sigma))
	}
	return h
}

// gaussianSample returns evenly spaced quantiles of a normal law.
func gaussianSample(n int, mu, sigma float64) []float64 {
	law := distuv.Normal{Mu: mu, Sigma: sigma}
	values := make([]float64, n)
	for i := range values {
		values[i] = law.Quantile((float64(i) + 0.5) / float64(n))
	}
	return values
}

func TestFitH1DRecoversGaussian(t *testing.T) {
	m, err := ModelByName("gaus")
	require.NoError(t, err)

	h := gaussianHist(1000, 5, 1)
	res, err := FitH1D(h, m, Range{2, 8}, nil)
	require.NoError(t, err)

	assert.Equal(t, FitStatusOK, res.Status)
	assert.InDelta(t, 1000, res.Params[0], 5)
	assert.InDelta(t, 5, res.Params[1], 0.01)
	assert.InDelta(t, 1, math.Abs(res.Params[2]), 0.01)
	assert.Equal(t, 60-3, res.NDF)
	assert.Less(t, res.Chi2OverNDF(), 0.01)

	table := res.Results("hTest")
	labels := make([]string, len(table.Rows))
	for i, row := range table.Rows {
		labels[i] = row.Label
	}
	assert.Equal(t, []string{"FitStatus", "Chi2", "NDF", "Constant", "Mean", "Sigma", "Xmin", "Xmax"}, labels)
	mean, err := table.Bin(5)
	require.NoError(t, err)
	assert.Equal(t, "Mean", mean.Label)
}

func TestFitH1DTooFewPoints(t *testing.T) {
	m, err := ModelByName("crystalball")
	require.NoError(t, err)
	h := gaussianHist(1000, 5, 1)
	_, err = FitH1D(h, m, Range{4.9, 5.2}, nil)
	assert.Error(t, err)
}

func TestFitPointsSkipsEmptyBins(t *testing.T) {
	h := hbook.NewH1D(10, 0, 10)
	h.Fill(2.5, 3)
	h.Fill(7.5, 1)
	xs, ys, errs := FitPoints(h, Range{0, 5})
	assert.Equal(t, []float64{2.5}, xs)
	assert.Equal(t, []float64{3}, ys)
	assert.Equal(t, []float64{3}, errs)
}

func TestParameterErrors(t *testing.T) {
	chi2 := func(p []float64) float64 {
		a := (p[0] - 1) / 0.5
		b := (p[1] + 2) / 2
		return a*a + b*b
	}
	errs, cov, err := ParameterErrors(chi2, []float64{1, -2}, 2)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, errs[0], 1e-4)
	assert.InDelta(t, 2, errs[1], 1e-3)

	corr := Correlations(cov)
	assert.InDelta(t, 1, corr[0][0], 1e-9)
	assert.InDelta(t, 0, corr[0][1], 1e-4)

	flat := func(p []float64) float64 { return 0 }
	_, _, err = ParameterErrors(flat, []float64{0}, 2)
	assert.Error(t, err)
}

func TestRunFitsKeepsOrder(t *testing.T) {
	m, err := ModelByName("gaus")
	require.NoError(t, err)

	var jobs []FitJob
	for i, mean := range []float64{3, 5, 7} {
		jobs = append(jobs, FitJob{Index: i, Hist: gaussianHist(500, mean, 0.8), Model: m, Range: Range{mean - 2.5, mean + 2.5}})
	}
	outcomes, err := RunFits(context.Background(), jobs, 2, 0)
	require.NoError(t, err)
	require.Len(t, outcomes, 3)
	for i, mean := range []float64{3, 5, 7} {
		require.NoError(t, outcomes[i].Err)
		assert.Equal(t, i, outcomes[i].Index)
		assert.InDelta(t, mean, outcomes[i].Fit.Params[1], 0.02)
	}
}

func TestFitGauss(t *testing.T) {
	values := gaussianSample(2000, 5, 1)
	bounds := [3]Bound{{4, 3, 7}, {1.5, 0.1, 5}, {1000, 1, 10000}}
	g, err := FitGauss(values, Range{2, 8}, bounds)
	require.NoError(t, err)

	assert.InDelta(t, 5, g.Mu, 0.02)
	assert.InDelta(t, 1, g.Sigma, 0.03)
	assert.InEpsilon(t, float64(g.Entries), g.Norm, 0.01)
	assert.Greater(t, g.Errors[0], 0.0)
	assert.InDelta(t, 1/math.Sqrt(float64(g.Entries)), g.Errors[0], 0.01)
	assert.Equal(t, g.Mu, g.MPV())

	h := FillH1D(values, H1DConfig{Name: "hGauss", NBin: 60, Range: Range{2, 8}})
	res := g.Results("hGauss", h)
	row, err := res.Get("x_{MPV}")
	require.NoError(t, err)
	assert.Equal(t, g.MPV(), row.Value)
	assert.Len(t, res.Rows, 9)
}

func TestFitGaussRejectsBadBounds(t *testing.T) {
	bounds := [3]Bound{{4, 7, 3}, {1.5, 0.1, 5}, {1000, 1, 10000}}
	_, err := FitGauss([]float64{1, 2, 3}, Range{0, 5}, bounds)
	var cfgErr *ErrConfig
	assert.ErrorAs(t, err, &cfgErr)

	_, err = FitGauss([]float64{10, 11}, Range{0, 5}, [3]Bound{{1, 0, 2}, {1, 0.1, 2}, {1, 0.1, 2}})
	assert.Error(t, err)
}

func TestBoundTransformRoundTrip(t *testing.T) {
	b := Bound{2, -1, 4}
	assert.InDelta(t, 2, b.toExternal(b.toInternal(2)), 1e-12)
	assert.InDelta(t, -1, b.toExternal(b.toInternal(-5)), 1e-12)
}
