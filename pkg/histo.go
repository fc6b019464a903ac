package calib

import (
	"fmt"

	"go-hep.org/x/hep/hbook"
)

// HistogramConfig gives the binning of the histograms of a stage. Each
// field is either shared by every histogram or given per histogram.
type HistogramConfig struct {
	Name  OneOrMany[string] `yaml:"name"`
	Title OneOrMany[string] `yaml:"title"`
	NBin  OneOrMany[int]    `yaml:"nbin"`
	Range RangeList         `yaml:"range"`
}

// H1DConfig is the binning of one histogram.
type H1DConfig struct {
	Name  string
	Title string
	NBin  int
	Range Range
}

// HConfig returns the configuration of the i-th histogram.
func (c HistogramConfig) HConfig(i int) H1DConfig {
	return H1DConfig{
		Name:  c.Name.At(i),
		Title: c.Title.At(i),
		NBin:  c.NBin.At(i),
		Range: c.Range.At(i),
	}
}

func (c H1DConfig) Validate() error {
	if c.Name == "" {
		return &ErrConfig{Option: "histogram_config.name", Reason: "empty histogram name"}
	}
	if c.NBin <= 0 {
		return &ErrConfig{Option: "histogram_config.nbin", Reason: fmt.Sprintf("%s: number of bins must be positive", c.Name)}
	}
	if !c.Range.Valid() {
		return &ErrConfig{Option: "histogram_config.range", Reason: fmt.Sprintf("%s: invalid range %v", c.Name, c.Range)}
	}
	return nil
}

// FillH1D books a histogram after cfg and fills it with values.
func FillH1D(values []float64, cfg H1DConfig) *hbook.H1D {
	h := hbook.NewH1D(cfg.NBin, cfg.Range.Min(), cfg.Range.Max())
	h.Ann["name"] = cfg.Name
	h.Ann["title"] = cfg.Title
	for _, v := range values {
		h.Fill(v, 1)
	}
	return h
}

// BinContents returns the in-range bin contents.
func BinContents(h *hbook.H1D) []float64 {
	contents := make([]float64, len(h.Binning.Bins))
	for i, bin := range h.Binning.Bins {
		contents[i] = bin.SumW()
	}
	return contents
}

// BinEdges returns the nbins+1 bin edges.
func BinEdges(h *hbook.H1D) []float64 {
	bins := h.Binning.Bins
	edges := make([]float64, 0, len(bins)+1)
	for _, bin := range bins {
		edges = append(edges, bin.XMin())
	}
	if len(bins) > 0 {
		edges = append(edges, bins[len(bins)-1].XMax())
	}
	return edges
}

// MaxContent returns the largest bin content.
func MaxContent(h *hbook.H1D) float64 {
	var hmax float64
	for _, bin := range h.Binning.Bins {
		hmax = max(hmax, bin.SumW())
	}
	return hmax
}

// Renamed returns a copy of h under another name.
func Renamed(h *hbook.H1D, name string) *hbook.H1D {
	c := h.Clone()
	c.Ann["name"] = name
	return c
}
