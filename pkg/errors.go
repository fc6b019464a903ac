package calib

import "fmt"

// ErrOpenFile represents an error when opening a file.
type ErrOpenFile struct {
	Filename string
	Err      error
}

func (e *ErrOpenFile) Error() string {
	return fmt.Sprintf("error opening file %q: %v", e.Filename, e.Err)
}

func (e *ErrOpenFile) Unwrap() error {
	return e.Err
}

// ErrMissingObject represents an object (tree, histogram, branch) that
// could not be found in a file.
type ErrMissingObject struct {
	Filename string
	Name     string
	Err      error
}

func (e *ErrMissingObject) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("object %q not found in %q", e.Name, e.Filename)
	}
	return fmt.Sprintf("object %q not found in %q: %v", e.Name, e.Filename, e.Err)
}

func (e *ErrMissingObject) Unwrap() error {
	return e.Err
}

// ErrConfig represents an invalid configuration option.
type ErrConfig struct {
	Option string
	Reason string
}

func (e *ErrConfig) Error() string {
	return fmt.Sprintf("invalid configuration option %q: %s", e.Option, e.Reason)
}

// ErrSizeMismatch represents configuration lists that must have the same size.
type ErrSizeMismatch struct {
	Options []string
	Sizes   []int
}

func (e *ErrSizeMismatch) Error() string {
	return fmt.Sprintf("options %q must be of same size (got %v)", e.Options, e.Sizes)
}

func checkSameSize(options []string, sizes ...int) error {
	for _, size := range sizes[1:] {
		if size != sizes[0] {
			return &ErrSizeMismatch{Options: options, Sizes: sizes}
		}
	}
	return nil
}
