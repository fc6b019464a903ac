package calib

import (
	"errors"
	"fmt"

	"go-hep.org/x/hep/groot"
	"go-hep.org/x/hep/groot/riofs"
	"go-hep.org/x/hep/groot/root"
	"go-hep.org/x/hep/groot/rtree"
)

func openROOT(filename string) (*riofs.File, error) {
	f, err := groot.Open(filename)
	if err != nil {
		return nil, &ErrOpenFile{Filename: filename, Err: err}
	}
	return f, nil
}

func getObject(f *riofs.File, filename, name string) (root.Object, error) {
	obj, err := f.Get(name)
	if err != nil {
		return nil, &ErrMissingObject{Filename: filename, Name: name, Err: err}
	}
	return obj, nil
}

func getTree(f *riofs.File, filename, name string) (rtree.Tree, error) {
	obj, err := getObject(f, filename, name)
	if err != nil {
		return nil, err
	}
	tree, ok := obj.(rtree.Tree)
	if !ok {
		return nil, &ErrMissingObject{Filename: filename, Name: name, Err: fmt.Errorf("object is a %s, not a tree", obj.Class())}
	}
	return tree, nil
}

// scalarValue converts the value behind a scalar branch pointer.
func scalarValue(ptr any) (float64, bool) {
	switch v := ptr.(type) {
	case *float64:
		return *v, true
	case *float32:
		return float64(*v), true
	case *int8:
		return float64(*v), true
	case *int16:
		return float64(*v), true
	case *int32:
		return float64(*v), true
	case *int64:
		return float64(*v), true
	case *uint8:
		return float64(*v), true
	case *uint16:
		return float64(*v), true
	case *uint32:
		return float64(*v), true
	case *uint64:
		return float64(*v), true
	case *bool:
		if *v {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func isScalar(ptr any) bool {
	_, ok := scalarValue(ptr)
	return ok
}

// selectReadVars returns the read variables of the named branches, in order.
func selectReadVars(tree rtree.Tree, filename string, branches []string) ([]rtree.ReadVar, error) {
	all := rtree.NewReadVars(tree)
	byName := make(map[string]rtree.ReadVar, len(all))
	for _, rvar := range all {
		byName[rvar.Name] = rvar
	}
	rvars := make([]rtree.ReadVar, len(branches))
	for i, name := range branches {
		rvar, ok := byName[name]
		if !ok {
			return nil, &ErrMissingObject{Filename: filename, Name: name, Err: fmt.Errorf("no such branch in tree %q", tree.Name())}
		}
		if !isScalar(rvar.Value) {
			return nil, fmt.Errorf("branch %q of %q is not a scalar", name, filename)
		}
		rvars[i] = rvar
	}
	return rvars, nil
}

// ReadColumns reads the named scalar branches of a tree as float64 columns.
func ReadColumns(filename, treeName string, branches []string) (*Table, error) {
	f, err := openROOT(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tree, err := getTree(f, filename, treeName)
	if err != nil {
		return nil, err
	}
	rvars, err := selectReadVars(tree, filename, branches)
	if err != nil {
		return nil, err
	}

	columns := make([][]float64, len(rvars))
	for i := range columns {
		columns[i] = make([]float64, 0, tree.Entries())
	}
	r, err := rtree.NewReader(tree, rvars)
	if err != nil {
		return nil, fmt.Errorf("error creating reader for tree %q: %w", treeName, err)
	}
	defer r.Close()

	err = r.Read(func(ctx rtree.RCtx) error {
		for i, rvar := range rvars {
			value, _ := scalarValue(rvar.Value)
			columns[i] = append(columns[i], value)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error reading tree %q of %q: %w", treeName, filename, err)
	}
	return &Table{Names: append([]string(nil), branches...), Columns: columns}, nil
}

// WriteTableTo writes table as a tree of float64 branches in dir.
func WriteTableTo(dir riofs.Directory, treeName string, table *Table) error {
	row := make([]float64, len(table.Names))
	wvars := make([]rtree.WriteVar, len(table.Names))
	for i, name := range table.Names {
		wvars[i] = rtree.WriteVar{Name: name, Value: &row[i]}
	}
	w, err := rtree.NewWriter(dir, treeName, wvars, rtree.WithTitle(treeName))
	if err != nil {
		return fmt.Errorf("error creating tree %q: %w", treeName, err)
	}
	for entry := 0; entry < table.Len(); entry++ {
		for i, column := range table.Columns {
			row[i] = column[entry]
		}
		if _, err := w.Write(); err != nil {
			w.Close()
			return fmt.Errorf("error writing entry %d of tree %q: %w", entry, treeName, err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("error closing tree %q: %w", treeName, err)
	}
	return nil
}

// createROOT creates filename, hands it to write and closes it.
func createROOT(filename string, write func(f *riofs.File) error) error {
	f, err := groot.Create(filename)
	if err != nil {
		return &ErrOpenFile{Filename: filename, Err: err}
	}
	if err := write(f); err != nil {
		return errors.Join(err, f.Close())
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("error closing file %q: %w", filename, err)
	}
	return nil
}

// WriteTable creates filename holding only table.
func WriteTable(filename, treeName string, table *Table) error {
	return createROOT(filename, func(f *riofs.File) error {
		return WriteTableTo(f, treeName, table)
	})
}
