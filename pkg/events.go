package calib

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Table is a set of named float64 columns of equal length, one row per
// event.
type Table struct {
	Names   []string
	Columns [][]float64
}

func NewTable() *Table {
	return &Table{}
}

func (t *Table) Len() int {
	if len(t.Columns) == 0 {
		return 0
	}
	return len(t.Columns[0])
}

func (t *Table) Index(name string) int {
	return slices.Index(t.Names, name)
}

// Column returns the values of name, nil when the column does not exist.
func (t *Table) Column(name string) []float64 {
	i := t.Index(name)
	if i < 0 {
		return nil
	}
	return t.Columns[i]
}

func (t *Table) AddColumn(name string, values []float64) error {
	if t.Index(name) >= 0 {
		return fmt.Errorf("column %q already exists", name)
	}
	if len(t.Columns) > 0 && len(values) != t.Len() {
		return fmt.Errorf("column %q has %d rows, table has %d", name, len(values), t.Len())
	}
	t.Names = append(t.Names, name)
	t.Columns = append(t.Columns, values)
	return nil
}

// Select returns a table with the given columns, sharing their storage.
func (t *Table) Select(names []string) (*Table, error) {
	selected := NewTable()
	for _, name := range names {
		i := t.Index(name)
		if i < 0 {
			return nil, fmt.Errorf("unknown column %q", name)
		}
		if err := selected.AddColumn(name, t.Columns[i]); err != nil {
			return nil, err
		}
	}
	return selected, nil
}

// Rows returns a table holding the given row indices, in that order.
func (t *Table) Rows(indices []int) *Table {
	rows := &Table{Names: slices.Clone(t.Names), Columns: make([][]float64, len(t.Columns))}
	for c, column := range t.Columns {
		values := make([]float64, len(indices))
		for i, row := range indices {
			values[i] = column[row]
		}
		rows.Columns[c] = values
	}
	return rows
}

// Filter keeps the rows for which keep returns true.
func (t *Table) Filter(keep func(row int) bool) *Table {
	var indices []int
	for row := 0; row < t.Len(); row++ {
		if keep(row) {
			indices = append(indices, row)
		}
	}
	return t.Rows(indices)
}

func (t *Table) rowKey(row int, keys []int) string {
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(strconv.FormatFloat(t.Columns[k][row], 'g', -1, 64))
		b.WriteByte('|')
	}
	return b.String()
}

func (t *Table) keyIndices(keys []string) ([]int, error) {
	indices := make([]int, len(keys))
	for i, key := range keys {
		indices[i] = t.Index(key)
		if indices[i] < 0 {
			return nil, fmt.Errorf("unknown merge column %q", key)
		}
	}
	return indices, nil
}

// InnerJoin matches the rows of left and right with equal keys. Every
// pairing of duplicated keys is kept, in the order of left then right.
// Columns are the keys, the other columns of left, then those of right.
func InnerJoin(left, right *Table, keys []string) (*Table, error) {
	leftKeys, err := left.keyIndices(keys)
	if err != nil {
		return nil, err
	}
	rightKeys, err := right.keyIndices(keys)
	if err != nil {
		return nil, err
	}

	matches := make(map[string][]int)
	for row := 0; row < right.Len(); row++ {
		k := right.rowKey(row, rightKeys)
		matches[k] = append(matches[k], row)
	}
	var leftRows, rightRows []int
	for row := 0; row < left.Len(); row++ {
		for _, match := range matches[left.rowKey(row, leftKeys)] {
			leftRows = append(leftRows, row)
			rightRows = append(rightRows, match)
		}
	}

	l, r := left.Rows(leftRows), right.Rows(rightRows)
	joined := NewTable()
	for _, key := range keys {
		if err := joined.AddColumn(key, l.Column(key)); err != nil {
			return nil, err
		}
	}
	for _, side := range []*Table{l, r} {
		for i, name := range side.Names {
			if slices.Contains(keys, name) {
				continue
			}
			if err := joined.AddColumn(name, side.Columns[i]); err != nil {
				return nil, err
			}
		}
	}
	return joined, nil
}

// Renamed returns a table sharing t's columns under new names.
func (t *Table) Renamed(rename func(name string) string) *Table {
	renamed := &Table{Names: make([]string, len(t.Names)), Columns: slices.Clone(t.Columns)}
	for i, name := range t.Names {
		renamed.Names[i] = rename(name)
	}
	return renamed
}
