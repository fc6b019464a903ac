package calib

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go-hep.org/x/hep/groot/riofs"
)

func TestWriteReadTable(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "hits.root")
	table := newTestTable(t, []string{"EventID", "TotalEnergyDeposit"},
		[]float64{1, 2, 3}, []float64{0.5, 1.5, 2.5})
	require.NoError(t, WriteTable(filename, "HitsPlastic1", table))

	read, err := ReadColumns(filename, "HitsPlastic1", []string{"TotalEnergyDeposit", "EventID"})
	require.NoError(t, err)
	assert.Equal(t, []string{"TotalEnergyDeposit", "EventID"}, read.Names)
	assert.Equal(t, []float64{0.5, 1.5, 2.5}, read.Column("TotalEnergyDeposit"))
	assert.Equal(t, []float64{1, 2, 3}, read.Column("EventID"))

	var missing *ErrMissingObject
	_, err = ReadColumns(filename, "HitsPlastic1", []string{"KineticEnergy"})
	assert.ErrorAs(t, err, &missing)
	_, err = ReadColumns(filename, "HitsPlastic3", []string{"EventID"})
	assert.ErrorAs(t, err, &missing)

	var open *ErrOpenFile
	_, err = ReadColumns(filepath.Join(t.TempDir(), "none.root"), "HitsPlastic1", nil)
	assert.ErrorAs(t, err, &open)
}

func TestWriteReadFitResults(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "fit.root")
	res := NewFitResults("Amplitude")
	res.Add("FitStatus", 0, 0)
	res.Add("Chi2", 12.5, 0)
	res.Add("Mean", 3.2, 0.1)
	require.NoError(t, createROOT(filename, func(f *riofs.File) error {
		return WriteFitResults(f, res)
	}))

	read, err := ReadFitResults(filename, "hFitResAmplitude")
	require.NoError(t, err)
	assert.Equal(t, "Amplitude", read.Name)
	assert.Equal(t, res.Rows, read.Rows)

	mean, err := read.Get("Mean")
	require.NoError(t, err)
	assert.Equal(t, 0.1, mean.Error)
	row, err := read.Bin(2)
	require.NoError(t, err)
	assert.Equal(t, "Chi2", row.Label)
	_, err = read.Bin(4)
	assert.Error(t, err)
	_, err = read.Get("Sigma")
	assert.Error(t, err)
}
