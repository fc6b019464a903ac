package hdf5io

import (
	"errors"
	"fmt"

	"gonum.org/v1/hdf5"

	calib "github.com/iphc-clinm/calib_go/pkg"
)

// Writer stores event tables in an HDF5 file, one group per table and one
// float64 dataset per column.
type Writer struct {
	File             *hdf5.File
	Filename         string
	CompressionLevel int
	groups           []*hdf5.Group
	datasets         []*hdf5.Dataset
}

func NewWriter(filename string, compressionLevel int) (*Writer, error) {
	if compressionLevel < 0 || compressionLevel > 9 {
		return nil, fmt.Errorf("compression level %d out of [0, 9]", compressionLevel)
	}
	f, err := openFile(filename)
	if err != nil {
		return nil, err
	}
	return &Writer{File: f, Filename: filename, CompressionLevel: compressionLevel}, nil
}

// WriteTable creates group name holding every column of table.
func (w *Writer) WriteTable(name string, table *calib.Table) error {
	group, err := createGroup(w.File, name)
	if err != nil {
		return err
	}
	w.groups = append(w.groups, group)

	for i, column := range table.Names {
		dset, err := createColumn(group, column, w.CompressionLevel)
		if err != nil {
			return err
		}
		w.datasets = append(w.datasets, dset)
		if err := appendToColumn(dset, table.Columns[i], 0); err != nil {
			return fmt.Errorf("error writing column %s/%s: %w", name, column, err)
		}
	}
	return nil
}

func (w *Writer) Close() error {
	var errs []error
	for _, dset := range w.datasets {
		errs = append(errs, dset.Close())
	}
	for _, group := range w.groups {
		errs = append(errs, group.Close())
	}
	errs = append(errs, w.File.Close())
	return errors.Join(errs...)
}

// WriteTableFile writes a single table to filename.
func WriteTableFile(filename, name string, table *calib.Table, compressionLevel int) error {
	w, err := NewWriter(filename, compressionLevel)
	if err != nil {
		return err
	}
	if err := w.WriteTable(name, table); err != nil {
		return errors.Join(err, w.Close())
	}
	return w.Close()
}
