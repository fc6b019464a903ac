package calib

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go-hep.org/x/hep/groot/riofs"
)

func birksGraph(name, ion string, p []float64) *CalibrationGraph {
	g := &CalibrationGraph{Name: name, Ion: ion, Campaign: "2023"}
	for e := 10.0; e <= 100; e += 10 {
		g.Points = append(g.Points, CalibrationPoint{X: e, ErrX: 0.5, Y: Birks(e, p), ErrY: 1})
	}
	return g
}

func TestFitBirksFixedKb(t *testing.T) {
	g := birksGraph("gCalib_C", "C", []float64{10, 5, DefaultKb})
	fit, err := FitBirks(g, Range{0, 200}, KbConfig{Fix: true, Value: DefaultKb})
	require.NoError(t, err)

	assert.Equal(t, FitStatusOK, fit.Status)
	assert.Equal(t, 8, fit.NDF)
	assert.InEpsilon(t, 10, fit.Params[0], 1e-2)
	assert.InEpsilon(t, 5, fit.Params[1], 5e-2)
	assert.Equal(t, DefaultKb, fit.Params[2])
	assert.Zero(t, fit.Errors[2])
	assert.Less(t, fit.Chi2, 1e-3)
	assert.InEpsilon(t, Birks(50, []float64{10, 5, DefaultKb}), fit.Eval(50), 1e-3)

	labels := make([]string, 0)
	for _, row := range fit.Results().Rows {
		labels = append(labels, row.Label)
	}
	assert.Equal(t, []string{"FitStatus", "Chi2", "NDF", "S", "A0", "Kb", "Xmin", "Xmax"}, labels)
}

func TestFitBirksRange(t *testing.T) {
	g := birksGraph("gCalib_He", "He", []float64{10, 5, DefaultKb})
	fit, err := FitBirks(g, Range{25, 75}, KbConfig{Fix: true, Value: DefaultKb})
	require.NoError(t, err)
	assert.Equal(t, 3, fit.NDF)

	_, err = FitBirks(g, Range{95, 120}, KbConfig{Fix: true, Value: DefaultKb})
	assert.Error(t, err)
}

func TestCalibrateModes(t *testing.T) {
	c := DefaultCalibrateConfig()
	c.Fit.Range = map[string]Range{"C": {0, 200}, "He": {0, 200}}
	graphs := []*CalibrationGraph{
		birksGraph("gCalib_C_2023", "C", []float64{10, 5, DefaultKb}),
		birksGraph("gCalib_He_2023", "He", []float64{12, 3, DefaultKb}),
	}

	cal, err := Calibrate(c, graphs)
	require.NoError(t, err)
	require.Len(t, cal.Fits, 2)
	assert.Equal(t, "gCalib_C", cal.Fits[0].Graph.Name)
	assert.Equal(t, "gCalib_He", cal.Fits[1].Graph.Name)
	assert.InEpsilon(t, 12, cal.Fits[1].Params[0], 1e-2)

	c.Fit.Mode = CalibrationCombined
	same := []*CalibrationGraph{
		birksGraph("gCalib_C_2023", "C", []float64{10, 5, DefaultKb}),
		birksGraph("gCalib_C_2024", "C", []float64{10, 5, DefaultKb}),
	}
	cal, err = Calibrate(c, same)
	require.NoError(t, err)
	require.Len(t, cal.Fits, 1)
	assert.Equal(t, "gCalib", cal.Fits[0].Graph.Name)
	assert.Len(t, cal.Fits[0].Graph.Points, 20)
	assert.Equal(t, 17, cal.Fits[0].NDF)
}

func TestCalibrationUnit(t *testing.T) {
	assert.Equal(t, "mV.s", CalibrationUnit("Charge (mV.s)"))
	assert.Equal(t, "mV", CalibrationUnit("Amplitude (mV)"))
}

func writeMeanSigma(t *testing.T, filename, name string, mean, sigma float64) {
	t.Helper()
	res := NewFitResults(name)
	res.Add("FitStatus", 0, 0)
	res.Add("Chi2", 1, 0)
	res.Add("NDF", 1, 0)
	res.Add("Constant", 100, 1)
	res.Add("Mean", mean, 0.01)
	res.Add("Sigma", sigma, 0.01)
	require.NoError(t, createROOT(filename, func(f *riofs.File) error {
		return WriteFitResults(f, res)
	}))
}

func calibrationTestConfig(t *testing.T) CalibrateConfig {
	t.Helper()
	dir := t.TempDir()
	c := DefaultCalibrateConfig()
	c.Input.Real.HistFitRes = One("hFitResAmplitude")
	c.Input.Simulation.HistFitRes = One("hFitResEdep")
	c.Input.Real.File = CampaignFiles{"C": {"2023": nil}}
	c.Input.Simulation.File = CampaignFiles{"C": {"2023": nil}}
	for i, e := range []float64{20, 40, 60, 80} {
		sim := filepath.Join(dir, fmt.Sprintf("sim%d.root", i))
		real := filepath.Join(dir, fmt.Sprintf("real%d.root", i))
		writeMeanSigma(t, sim, "Edep", e, 1)
		writeMeanSigma(t, real, "Amplitude", Birks(e, []float64{10, 5, DefaultKb}), 2)
		c.Input.Simulation.File["C"]["2023"] = append(c.Input.Simulation.File["C"]["2023"], sim)
		c.Input.Real.File["C"]["2023"] = append(c.Input.Real.File["C"]["2023"], real)
	}
	c.Fit.Range = map[string]Range{"C": {0, 100}}
	c.Graph.Label = AxisLabels{XAxis: "Simulated energy (MeV)", YAxis: "Amplitude (mV)"}
	c.Output.File = filepath.Join(dir, "calib.root")
	return c
}

func TestLoadCalibrationGraphs(t *testing.T) {
	c := calibrationTestConfig(t)
	graphs, err := LoadCalibrationGraphs(c)
	require.NoError(t, err)
	require.Len(t, graphs, 1)
	g := graphs[0]
	assert.Equal(t, "gCalib_C_2023", g.Name)
	require.Len(t, g.Points, 4)
	assert.Equal(t, CalibrationPoint{X: 40, ErrX: 1, Y: Birks(40, []float64{10, 5, DefaultKb}), ErrY: 2}, g.Points[1])
	assert.Equal(t, Range{20, 80}, g.XRange())
}

func TestRunCalibration(t *testing.T) {
	c := calibrationTestConfig(t)
	require.NoError(t, RunCalibration(context.Background(), c, nil))

	res, err := ReadFitResults(c.Output.File, "hFitResgCalib_C")
	require.NoError(t, err)
	s, err := res.Get("S")
	require.NoError(t, err)
	assert.InEpsilon(t, 10, s.Value, 5e-2)

	_, err = os.Stat(PDFName(c.Output.File))
	assert.NoError(t, err)
}

func TestCalibrateConfigValidate(t *testing.T) {
	c := calibrationTestConfig(t)
	require.NoError(t, c.Validate())

	bad := c
	bad.Input.Real.HistFitRes = Many("a", "b")
	assert.Error(t, bad.Validate())

	bad = c
	bad.Fit.Range = map[string]Range{"C": {10, 5}}
	assert.Error(t, bad.Validate())

	bad = c
	bad.Fit.Mode = "global"
	assert.Error(t, bad.Validate())

	bad = c
	bad.Input.Real.File = CampaignFiles{"C": {"2023": {"only.root"}}}
	var sizeErr *ErrSizeMismatch
	assert.ErrorAs(t, bad.Validate(), &sizeErr)

	bad = c
	bad.Input.Real.File = CampaignFiles{"He": {"2023": nil}}
	assert.Error(t, bad.Validate())
}
