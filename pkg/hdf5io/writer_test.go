package hdf5io

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/hdf5"

	calib "github.com/iphc-clinm/calib_go/pkg"
)

func readColumn(t *testing.T, filename, group, name string) []float64 {
	t.Helper()
	f, err := hdf5.OpenFile(filename, hdf5.F_ACC_RDONLY)
	require.NoError(t, err)
	defer f.Close()
	g, err := f.OpenGroup(group)
	require.NoError(t, err)
	defer g.Close()
	dset, err := g.OpenDataset(name)
	require.NoError(t, err)
	defer dset.Close()

	space := dset.Space()
	defer space.Close()
	values := make([]float64, space.SimpleExtentNPoints())
	require.NoError(t, dset.Read(&values))
	return values
}

func TestWriteTableFile(t *testing.T) {
	table := calib.NewTable()
	require.NoError(t, table.AddColumn("EventID", []float64{1, 2, 3}))
	require.NoError(t, table.AddColumn("TotalEnergyDeposit_pl1", []float64{0.5, 1.5, 2.5}))

	filename := filepath.Join(t.TempDir(), "coinc.h5")
	require.NoError(t, WriteTableFile(filename, "Coincidences", table, 4))

	assert.Equal(t, []float64{1, 2, 3}, readColumn(t, filename, "Coincidences", "EventID"))
	assert.Equal(t, []float64{0.5, 1.5, 2.5}, readColumn(t, filename, "Coincidences", "TotalEnergyDeposit_pl1"))
}

func TestNewWriterCompressionLevel(t *testing.T) {
	_, err := NewWriter(filepath.Join(t.TempDir(), "bad.h5"), 10)
	assert.Error(t, err)
}
