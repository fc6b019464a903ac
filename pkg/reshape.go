package calib

import (
	"fmt"
	"slices"
	"strings"
)

// EnergyDepositBranch is kept from every detector and used for the
// coincidence selection.
const EnergyDepositBranch = "TotalEnergyDeposit"

type ReshapeTrees struct {
	Names    []string `yaml:"names"`
	Branches []string `yaml:"branches"`
}

type ReshapeInput struct {
	File string       `yaml:"file"`
	Tree ReshapeTrees `yaml:"tree"`
}

type MergeConfig struct {
	OnBranches []string  `yaml:"on_branches"`
	Suffixes   []string  `yaml:"suffixes"`
	Thresholds []float64 `yaml:"thresholds"`
}

type OutputTree struct {
	Name string `yaml:"name"`
}

type HDF5Output struct {
	Activate         bool   `yaml:"activate"`
	File             string `yaml:"file"`
	Group            string `yaml:"group"`
	CompressionLevel int    `yaml:"compression_level"`
}

type ReshapeOutput struct {
	File string     `yaml:"file"`
	Tree OutputTree `yaml:"tree"`
	HDF5 HDF5Output `yaml:"hdf5"`
}

type ReshapeConfig struct {
	Input     ReshapeInput  `yaml:"input"`
	Merge     MergeConfig   `yaml:"merge"`
	Output    ReshapeOutput `yaml:"output"`
	Verbosity int           `yaml:"verbosity"`
}

func DefaultReshapeConfig() ReshapeConfig {
	return ReshapeConfig{
		Input: ReshapeInput{Tree: ReshapeTrees{
			Names:    []string{"HitsPlastic1", "HitsPlastic2"},
			Branches: []string{"RunID", "EventID", EnergyDepositBranch},
		}},
		Merge: MergeConfig{
			OnBranches: []string{"RunID", "EventID"},
			Suffixes:   []string{"_pl1", "_pl2"},
		},
		Output: ReshapeOutput{
			Tree: OutputTree{Name: "Coincidences"},
			HDF5: HDF5Output{Group: "Coincidences", CompressionLevel: 4},
		},
	}
}

func (c ReshapeConfig) Validate() error {
	names := c.Input.Tree.Names
	if len(names) < 2 {
		return &ErrConfig{Option: "input.tree.names", Reason: "at least two trees are needed for a merge"}
	}
	err := checkSameSize([]string{"input.tree.names", "merge.suffixes", "merge.thresholds"},
		len(names), len(c.Merge.Suffixes), len(c.Merge.Thresholds))
	if err != nil {
		return err
	}
	if len(c.Merge.OnBranches) == 0 {
		return &ErrConfig{Option: "merge.on_branches", Reason: "no merge keys"}
	}
	for _, key := range c.Merge.OnBranches {
		if !slices.Contains(c.Input.Tree.Branches, key) {
			return &ErrConfig{Option: "merge.on_branches", Reason: fmt.Sprintf("%q is not among the read branches", key)}
		}
	}
	if !slices.Contains(c.Input.Tree.Branches, EnergyDepositBranch) {
		return &ErrConfig{Option: "input.tree.branches", Reason: fmt.Sprintf("%q is needed for the selection", EnergyDepositBranch)}
	}
	if c.Output.HDF5.Activate && c.Output.HDF5.File == "" {
		return &ErrConfig{Option: "output.hdf5.file", Reason: "no HDF5 file name"}
	}
	return nil
}

// Merge joins the detector tables on keys after suffixing their other
// columns, then keeps the keys and the energy deposits.
func Merge(tables []*Table, keys, suffixes []string) (*Table, error) {
	if len(tables) == 0 {
		return nil, fmt.Errorf("nothing to merge")
	}
	suffixed := make([]*Table, len(tables))
	for i, t := range tables {
		suffix := suffixes[i]
		suffixed[i] = t.Renamed(func(name string) string {
			if slices.Contains(keys, name) {
				return name
			}
			return name + suffix
		})
	}

	merged := suffixed[0]
	for _, t := range suffixed[1:] {
		var err error
		merged, err = InnerJoin(merged, t, keys)
		if err != nil {
			return nil, err
		}
	}

	var kept []string
	for _, name := range merged.Names {
		if slices.Contains(keys, name) || strings.Contains(name, EnergyDepositBranch) {
			kept = append(kept, name)
		}
	}
	return merged.Select(kept)
}

// SelectCoincidences keeps events above every detector threshold.
func SelectCoincidences(t *Table, suffixes []string, thresholds []float64) (*Table, error) {
	deposits := make([][]float64, len(suffixes))
	for i, suffix := range suffixes {
		deposits[i] = t.Column(EnergyDepositBranch + suffix)
		if deposits[i] == nil {
			return nil, fmt.Errorf("no column %q", EnergyDepositBranch+suffix)
		}
	}
	return t.Filter(func(row int) bool {
		for i, deposit := range deposits {
			if deposit[row] <= thresholds[i] {
				return false
			}
		}
		return true
	}), nil
}

// Reshape reads the detector trees of the input file and returns the
// coincident events.
func Reshape(c ReshapeConfig) (*Table, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	tables := make([]*Table, len(c.Input.Tree.Names))
	for i, name := range c.Input.Tree.Names {
		t, err := ReadColumns(c.Input.File, name, c.Input.Tree.Branches)
		if err != nil {
			return nil, err
		}
		infof(c.Verbosity, "reshape", "%s: %d hits", name, t.Len())
		tables[i] = t
	}
	merged, err := Merge(tables, c.Merge.OnBranches, c.Merge.Suffixes)
	if err != nil {
		return nil, err
	}
	debugf(c.Verbosity, "reshape", "Merged columns: %v", merged.Names)
	coinc, err := SelectCoincidences(merged, c.Merge.Suffixes, c.Merge.Thresholds)
	if err != nil {
		return nil, err
	}
	infof(c.Verbosity, "reshape", "Size of merged table: %d, coincidences: %d", merged.Len(), coinc.Len())
	return coinc, nil
}

// RunReshape writes the coincidences to the output ROOT file and returns
// them for further export.
func RunReshape(c ReshapeConfig) (*Table, error) {
	coinc, err := Reshape(c)
	if err != nil {
		return nil, err
	}
	if err := WriteTable(c.Output.File, c.Output.Tree.Name, coinc); err != nil {
		return nil, err
	}
	return coinc, nil
}
