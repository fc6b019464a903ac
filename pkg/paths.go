package calib

import (
	"fmt"
	"os"
	"strings"
)

// EnforceTrailingSlash appends "/" to a directory name when missing.
func EnforceTrailingSlash(path string) string {
	if path != "" && !strings.HasSuffix(path, "/") {
		path += "/"
	}
	return path
}

// BaseName returns the last "/" separated element of path.
func BaseName(path string) string {
	elements := strings.Split(path, "/")
	return elements[len(elements)-1]
}

// PDFName derives the name of the plot file from a ROOT output file.
func PDFName(rootFile string) string {
	return strings.ReplaceAll(rootFile, ".root", "") + ".pdf"
}

// EnsureDir creates dir when it does not exist and warns otherwise, since
// files inside it may be overwritten.
func EnsureDir(dir string) error {
	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return fmt.Errorf("%q exists and is not a directory", dir)
		}
		logger.Warn(fmt.Sprintf("Output directory '%s' already exists, overwrites possibly ongoing!", dir), "paths")
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("error checking directory %q: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("error creating directory %q: %w", dir, err)
	}
	return nil
}
