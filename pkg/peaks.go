package calib

import "fmt"

// Extremum is a bin index and its content.
type Extremum struct {
	Bin     int
	Content float64
}

// ScanPeaks finds the local extrema of a histogram. The first bin is
// always a minimum and the last bin is never considered.
func ScanPeaks(contents []float64) (mins, maxs []Extremum) {
	for i, content := range contents {
		if i == 0 {
			mins = append(mins, Extremum{i, content})
			continue
		}
		if i == len(contents)-1 {
			continue
		}
		prev, next := contents[i-1], contents[i+1]
		switch {
		case prev < content && content > next:
			maxs = append(maxs, Extremum{i, content})
		case prev > content && content < next:
			mins = append(mins, Extremum{i, content})
		}
	}
	return mins, maxs
}

// ExtremaEdges returns the [low, high) edges of the extrema bins.
func ExtremaEdges(extrema []Extremum, edges []float64) [][2]float64 {
	var result [][2]float64
	for _, e := range extrema {
		if e.Bin >= len(edges)-1 {
			continue
		}
		result = append(result, [2]float64{edges[e.Bin], edges[e.Bin+1]})
	}
	return result
}

// ExtremaCenters returns the centres of the extrema bins.
func ExtremaCenters(extrema []Extremum, edges []float64) []float64 {
	var result []float64
	for _, e := range extrema {
		if e.Bin >= len(edges)-1 {
			continue
		}
		result = append(result, (edges[e.Bin]+edges[e.Bin+1])/2)
	}
	return result
}

const (
	DefaultPseudoMaxThreshold      = 7
	DefaultPseudoMaxMinConsecutive = 2
)

// PseudoMax estimates the end of a distribution from its quasi-empty bins
// (content < thr), numbered from 1 as in ROOT. Pairs of consecutive
// quasi-empty bins are counted over the whole histogram; a gap only forgets
// where the current run started. The result is edges[first bin of the run
// being scanned] once minConsecutive pairs are counted, or when the bins
// run out. It is an error when the scan ends outside any run.
func PseudoMax(contents []float64, edges []float64, thr float64, minConsecutive int) (float64, error) {
	var quasiEmpty []int
	for bin := 1; bin < len(edges) && bin <= len(contents); bin++ {
		if contents[bin-1] < thr {
			quasiEmpty = append(quasiEmpty, bin)
		}
	}
	if minConsecutive > len(quasiEmpty) {
		return 0, fmt.Errorf("only %d quasi-empty bins below %g, %d consecutive required", len(quasiEmpty), thr, minConsecutive)
	}

	counter := 0
	first := -1
	for i := 1; i < len(quasiEmpty); i++ {
		if counter >= minConsecutive {
			break
		}
		if quasiEmpty[i-1] != quasiEmpty[i]-1 {
			first = -1
			continue
		}
		counter++
		if first == -1 {
			first = quasiEmpty[i-1]
		}
	}
	if first == -1 {
		return 0, fmt.Errorf("no run of consecutive quasi-empty bins below %g at the end of the scan", thr)
	}
	return edges[first], nil
}
