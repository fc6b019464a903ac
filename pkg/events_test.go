package calib

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTable(t *testing.T, names []string, columns ...[]float64) *Table {
	t.Helper()
	table := NewTable()
	for i, name := range names {
		require.NoError(t, table.AddColumn(name, columns[i]))
	}
	return table
}

func TestTableColumns(t *testing.T) {
	table := newTestTable(t, []string{"a", "b"}, []float64{1, 2, 3}, []float64{4, 5, 6})
	assert.Equal(t, 3, table.Len())
	assert.Equal(t, []float64{4, 5, 6}, table.Column("b"))
	assert.Nil(t, table.Column("c"))

	assert.Error(t, table.AddColumn("a", []float64{0, 0, 0}))
	assert.Error(t, table.AddColumn("c", []float64{0}))

	selected, err := table.Select([]string{"b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, selected.Names)
	_, err = table.Select([]string{"z"})
	assert.Error(t, err)

	filtered := table.Filter(func(row int) bool { return table.Column("a")[row] != 2 })
	assert.Equal(t, []float64{4, 6}, filtered.Column("b"))
}

func TestInnerJoin(t *testing.T) {
	left := newTestTable(t, []string{"EventID", "E1"},
		[]float64{1, 2, 2, 3},
		[]float64{10, 20, 21, 30})
	right := newTestTable(t, []string{"EventID", "E2"},
		[]float64{3, 2, 2, 4},
		[]float64{300, 200, 201, 400})

	joined, err := InnerJoin(left, right, []string{"EventID"})
	require.NoError(t, err)

	assert.Equal(t, []string{"EventID", "E1", "E2"}, joined.Names)
	assert.Equal(t, []float64{2, 2, 2, 2, 3}, joined.Column("EventID"))
	assert.Equal(t, []float64{20, 20, 21, 21, 30}, joined.Column("E1"))
	assert.Equal(t, []float64{200, 201, 200, 201, 300}, joined.Column("E2"))

	_, err = InnerJoin(left, right, []string{"RunID"})
	assert.Error(t, err)
}

func TestMergeAndSelectCoincidences(t *testing.T) {
	pl1 := newTestTable(t, []string{"RunID", "EventID", "TotalEnergyDeposit", "KineticEnergy"},
		[]float64{0, 0, 0}, []float64{1, 2, 3}, []float64{0.5, 2, 3}, []float64{9, 9, 9})
	pl2 := newTestTable(t, []string{"RunID", "EventID", "TotalEnergyDeposit", "KineticEnergy"},
		[]float64{0, 0, 0}, []float64{1, 2, 4}, []float64{5, 6, 7}, []float64{8, 8, 8})

	merged, err := Merge([]*Table{pl1, pl2}, []string{"RunID", "EventID"}, []string{"_pl1", "_pl2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"RunID", "EventID", "TotalEnergyDeposit_pl1", "TotalEnergyDeposit_pl2"}, merged.Names)
	assert.Equal(t, 2, merged.Len())

	coinc, err := SelectCoincidences(merged, []string{"_pl1", "_pl2"}, []float64{1, 1})
	require.NoError(t, err)
	assert.Equal(t, []float64{2}, coinc.Column("EventID"))

	_, err = SelectCoincidences(merged, []string{"_pl3"}, []float64{1})
	assert.Error(t, err)
}

func TestReshapeConfigValidate(t *testing.T) {
	c := DefaultReshapeConfig()
	c.Merge.Thresholds = []float64{0.1, 0.1}
	require.NoError(t, c.Validate())

	bad := c
	bad.Merge.Thresholds = []float64{0.1}
	var sizeErr *ErrSizeMismatch
	assert.ErrorAs(t, bad.Validate(), &sizeErr)

	bad = c
	bad.Merge.OnBranches = []string{"TrackID"}
	assert.Error(t, bad.Validate())
}
