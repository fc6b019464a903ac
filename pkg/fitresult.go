package calib

import (
	"fmt"
	"strings"

	"go-hep.org/x/hep/groot/rhist"
	"go-hep.org/x/hep/groot/riofs"
	"go-hep.org/x/hep/groot/rtree"
	"go-hep.org/x/hep/hbook"
)

const fitResultsPrefix = "hFitRes"

type ResultRow struct {
	Label string  `db:"Label"`
	Value float64 `db:"Value"`
	Error float64 `db:"Error"`
}

// FitResults is an ordered list of labelled values. Rows are numbered from 1
// like histogram bins.
type FitResults struct {
	Name string
	Rows []ResultRow
}

func NewFitResults(name string) *FitResults {
	return &FitResults{Name: name}
}

func (r *FitResults) Add(label string, value, err float64) {
	r.Rows = append(r.Rows, ResultRow{Label: label, Value: value, Error: err})
}

func (r *FitResults) TreeName() string {
	return fitResultsPrefix + r.Name
}

func (r *FitResults) Get(label string) (ResultRow, error) {
	for _, row := range r.Rows {
		if row.Label == label {
			return row, nil
		}
	}
	return ResultRow{}, fmt.Errorf("no %q in fit results %s", label, r.TreeName())
}

// Bin returns the n-th row, n starting at 1.
func (r *FitResults) Bin(n int) (ResultRow, error) {
	if n < 1 || n > len(r.Rows) {
		return ResultRow{}, fmt.Errorf("bin %d out of fit results %s (%d rows)", n, r.TreeName(), len(r.Rows))
	}
	return r.Rows[n-1], nil
}

// WriteFitResults stores r as a tree with label, value and error branches.
func WriteFitResults(dir riofs.Directory, r *FitResults) error {
	var (
		label         string
		value, uncert float64
	)
	wvars := []rtree.WriteVar{
		{Name: "label", Value: &label},
		{Name: "value", Value: &value},
		{Name: "error", Value: &uncert},
	}
	w, err := rtree.NewWriter(dir, r.TreeName(), wvars, rtree.WithTitle("fit results"))
	if err != nil {
		return fmt.Errorf("error creating %s: %w", r.TreeName(), err)
	}
	for _, row := range r.Rows {
		label, value, uncert = row.Label, row.Value, row.Error
		if _, err := w.Write(); err != nil {
			w.Close()
			return fmt.Errorf("error writing %s: %w", r.TreeName(), err)
		}
	}
	return w.Close()
}

func readFitResultsFrom(f *riofs.File, filename, treeName string) (*FitResults, error) {
	tree, err := getTree(f, filename, treeName)
	if err != nil {
		return nil, err
	}
	var (
		label         string
		value, uncert float64
	)
	rvars := []rtree.ReadVar{
		{Name: "label", Value: &label},
		{Name: "value", Value: &value},
		{Name: "error", Value: &uncert},
	}
	r, err := rtree.NewReader(tree, rvars)
	if err != nil {
		return nil, fmt.Errorf("error reading %s of %q: %w", treeName, filename, err)
	}
	defer r.Close()

	res := NewFitResults(strings.TrimPrefix(treeName, fitResultsPrefix))
	err = r.Read(func(ctx rtree.RCtx) error {
		res.Add(label, value, uncert)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error reading %s of %q: %w", treeName, filename, err)
	}
	return res, nil
}

// ReadFitResults reads the result table treeName (e.g. "hFitResAmplitude").
func ReadFitResults(filename, treeName string) (*FitResults, error) {
	f, err := openROOT(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readFitResultsFrom(f, filename, treeName)
}

// CorrelationHist turns a correlation matrix into a labelled 2D histogram,
// one unit bin per parameter pair.
func CorrelationHist(name string, parNames []string, corr [][]float64) *rhist.H2D {
	n := len(parNames)
	h := hbook.NewH2D(n, 0, float64(n), n, 0, float64(n))
	h.Ann["name"] = name
	h.Ann["title"] = strings.Join(parNames, ";")
	for i := range corr {
		for j := range corr[i] {
			h.Fill(float64(i)+0.5, float64(j)+0.5, corr[i][j])
		}
	}
	return rhist.NewH2DFrom(h)
}
