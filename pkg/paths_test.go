package calib

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPDFName(t *testing.T) {
	assert.Equal(t, "out/calib.pdf", PDFName("out/calib.root"))
	assert.Equal(t, "out/fit_v2.pdf", PDFName("out/fit.root_v2.root"))
}

func TestPathHelpers(t *testing.T) {
	assert.Equal(t, "data/", EnforceTrailingSlash("data"))
	assert.Equal(t, "data/", EnforceTrailingSlash("data/"))
	assert.Equal(t, "", EnforceTrailingSlash(""))
	assert.Equal(t, "run1.root", BaseName("/data/run1.root"))
}
