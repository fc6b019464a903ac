package hdf5io

import (
	"errors"
	"fmt"

	"gonum.org/v1/hdf5"
)

const maxChunk = 32768

func openFile(fname string) (*hdf5.File, error) {
	f, err := hdf5.CreateFile(fname, hdf5.F_ACC_TRUNC)
	if err != nil {
		return nil, fmt.Errorf("error creating %q: %w", fname, err)
	}
	return f, nil
}

func createGroup(file *hdf5.File, groupName string) (*hdf5.Group, error) {
	g, err := file.CreateGroup(groupName)
	if err != nil {
		return nil, fmt.Errorf("error creating group %q: %w", groupName, err)
	}
	return g, nil
}

// createColumn creates an extensible, chunked and deflated float64 dataset.
func createColumn(group *hdf5.Group, name string, compressionLevel int) (*hdf5.Dataset, error) {
	dims := []uint{0}
	unlimitedDims := -1 // H5S_UNLIMITED is -1L
	maxDims := []uint{uint(unlimitedDims)}
	fileSpace, err := hdf5.CreateSimpleDataspace(dims, maxDims)
	if err != nil {
		return nil, err
	}
	defer fileSpace.Close()

	plist, err := hdf5.NewPropList(hdf5.P_DATASET_CREATE)
	if err != nil {
		return nil, err
	}
	defer plist.Close()

	if err := plist.SetChunk([]uint{maxChunk}); err != nil {
		return nil, err
	}
	if compressionLevel > 0 {
		if err := plist.SetDeflate(compressionLevel); err != nil {
			return nil, err
		}
	}

	dset, err := group.CreateDatasetWith(name, hdf5.T_NATIVE_DOUBLE, fileSpace, plist)
	if err != nil {
		return nil, fmt.Errorf("error creating dataset %q: %w", name, err)
	}
	return dset, nil
}

// appendToColumn extends dataset by len(data) rows written after offset.
func appendToColumn(dataset *hdf5.Dataset, data []float64, offset int) error {
	length := uint(len(data))
	if length == 0 {
		return nil
	}
	dataspace, err := hdf5.CreateSimpleDataspace([]uint{length}, nil)
	if err != nil {
		return err
	}

	// extend
	rowsInFile := uint(offset)
	if err := dataset.Resize([]uint{rowsInFile + length}); err != nil {
		return errors.Join(err, dataspace.Close())
	}
	filespace := dataset.Space()

	start := []uint{rowsInFile}
	count := []uint{length}
	if err := filespace.SelectHyperslab(start, nil, count, nil); err != nil {
		return errors.Join(err, dataspace.Close(), filespace.Close())
	}

	err = dataset.WriteSubset(&data, dataspace, filespace)
	return errors.Join(err, dataspace.Close(), filespace.Close())
}
