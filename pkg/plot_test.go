package calib

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go-hep.org/x/hep/groot/rhist"
	"go-hep.org/x/hep/groot/riofs"
)

func gausResults(name string) *FitResults {
	res := NewFitResults(name)
	res.Add("FitStatus", 0, 0)
	res.Add("Chi2", 50, 0)
	res.Add("NDF", 25, 0)
	res.Add("Constant", 100, 2)
	res.Add("Mean", 5, 0.05)
	res.Add("Sigma", 1, 0.04)
	res.Add("Xmin", 2, 0)
	res.Add("Xmax", 8, 0)
	return res
}

func TestPanelFromResults(t *testing.T) {
	m, err := ModelByName("gaus")
	require.NoError(t, err)
	h := gaussianHist(100, 5, 1)

	panel, err := PanelFromResults(h, gausResults("hTest"), m)
	require.NoError(t, err)
	assert.Equal(t, Range{2, 8}, panel.Range)
	assert.InDelta(t, 100, panel.Curve(5), 1e-9)
	assert.Equal(t, "χ²/ndf = 2.00", panel.Lines[0])
	assert.Len(t, panel.Lines, 4)

	incomplete := NewFitResults("hTest")
	incomplete.Add("Constant", 1, 0)
	_, err = PanelFromResults(h, incomplete, m)
	assert.Error(t, err)
}

func TestSaveFitPanelsPDF(t *testing.T) {
	m, err := ModelByName("gaus")
	require.NoError(t, err)
	panel, err := PanelFromResults(gaussianHist(100, 5, 1), gausResults("hTest"), m)
	require.NoError(t, err)
	panel.XLabel = "Amplitude (mV)"
	panel.Info = &PlotInfo{Exp: "CLINM", Campaign: "cnao_2023", Run: "12", Beam: BeamInfo{Particle: "C", Energy: "200 MeV/u"}}

	filename := filepath.Join(t.TempDir(), "fit.pdf")
	require.NoError(t, SaveFitPanelsPDF(filename, []FitPanel{panel, panel}))
	info, err := os.Stat(filename)
	require.NoError(t, err)
	assert.NotZero(t, info.Size())
}

func TestRunPlotFit(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "fit.root")
	require.NoError(t, createROOT(input, func(f *riofs.File) error {
		h := gaussianHist(100, 5, 1)
		if err := f.Put("hTest", rhist.NewH1DFrom(h)); err != nil {
			return err
		}
		return WriteFitResults(f, gausResults("hTest"))
	}))

	c := DefaultPlotFitConfig()
	c.Input.File = input
	c.Input.Data = One("hTest")
	c.Plot.Label = One("Amplitude (mV)")
	c.Output.File = One(filepath.Join(dir, "hTest"))
	c.Output.Extension = Many("pdf", "png")
	require.NoError(t, RunPlotFit(c))

	for _, ext := range []string{"pdf", "png"} {
		_, err := os.Stat(filepath.Join(dir, "hTest."+ext))
		assert.NoError(t, err, ext)
	}

	c.Input.Data = One("hMissing")
	var missing *ErrMissingObject
	assert.ErrorAs(t, RunPlotFit(c), &missing)
}
