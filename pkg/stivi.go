package calib

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"go-hep.org/x/hep/groot/rhist"
	"go-hep.org/x/hep/groot/riofs"
	"go-hep.org/x/hep/groot/rtree"
	"go-hep.org/x/hep/hbook"
	"golang.org/x/sync/errgroup"
)

type StiviInputTree struct {
	Name           string   `yaml:"name"`
	DeltaEBranches []string `yaml:"DeltaE_branches"`
}

type StiviInput struct {
	File OneOrMany[string] `yaml:"file"`
	Tree StiviInputTree    `yaml:"tree"`
}

type SubDirConfig struct {
	Activate bool   `yaml:"activate"`
	NameFile string `yaml:"name_file"`
}

type EcBranches struct {
	EcPl1 string `yaml:"ec_pl1"`
	EcPl2 string `yaml:"ec_pl2"`
}

type StiviOutputTree struct {
	Name                   string     `yaml:"name"`
	DeltaEBranchesRenaming []string   `yaml:"DeltaE_branches_renaming"`
	EcBranches             EcBranches `yaml:"ec_branches"`
}

type QAConfig struct {
	Activate bool `yaml:"activate"`
	NBins    int  `yaml:"nbins"`
}

type StiviOutput struct {
	Dir             string            `yaml:"dir"`
	File            OneOrMany[string] `yaml:"file"`
	SubDir          SubDirConfig      `yaml:"sub_dir"`
	Tree            StiviOutputTree   `yaml:"tree"`
	QA              QAConfig          `yaml:"qa"`
	SaveNrjInfoOnly bool              `yaml:"save_nrj_info_only"`
}

type ConvertStiviConfig struct {
	Input      StiviInput  `yaml:"input"`
	Output     StiviOutput `yaml:"output"`
	NumWorkers int         `yaml:"num_workers"`
	Verbosity  int         `yaml:"verbosity"`
}

func DefaultConvertStiviConfig() ConvertStiviConfig {
	return ConvertStiviConfig{
		Input: StiviInput{Tree: StiviInputTree{Name: "FlatTree"}},
		Output: StiviOutput{
			Tree: StiviOutputTree{
				Name:       "FlatTree",
				EcBranches: EcBranches{EcPl1: "Ec_pl1", EcPl2: "Ec_pl2"},
			},
			QA: QAConfig{NBins: 100},
		},
		NumWorkers: 1,
	}
}

func (c ConvertStiviConfig) Validate() error {
	if len(c.Input.Tree.DeltaEBranches) != 3 {
		return &ErrConfig{Option: "input.tree.DeltaE_branches", Reason: "three branches are expected (plastic 1, plastic 2, CeBr3)"}
	}
	if len(c.Output.Tree.DeltaEBranchesRenaming) != 3 {
		return &ErrConfig{Option: "output.tree.DeltaE_branches_renaming", Reason: "three names are expected"}
	}
	if !c.Input.File.IsSet() {
		return &ErrConfig{Option: "input.file", Reason: "no input file"}
	}
	if c.Output.QA.Activate && c.Output.QA.NBins <= 0 {
		return &ErrConfig{Option: "output.qa.nbins", Reason: "must be positive"}
	}
	if !c.Output.SubDir.Activate {
		if c.Input.File.IsList != c.Output.File.IsList {
			return &ErrConfig{Option: "output.file", Reason: "'input/file' and 'output/file' must be of same type if sub_dir is not activated"}
		}
		if c.Input.File.IsList {
			return checkSameSize([]string{"input.file", "output.file"}, c.Input.File.Len(), c.Output.File.Len())
		}
	}
	return nil
}

// StiviSubDir is the name of the sub directory derived from an input file.
func StiviSubDir(inputFile string) string {
	name := strings.ReplaceAll(BaseName(inputFile), ".root", "")
	if strings.Contains(name, "_FlatTree") {
		return strings.ReplaceAll(name, "_FlatTree", "")
	}
	return strings.ReplaceAll(name, "FlatTree", "")
}

// StiviOutputFiles returns the output file of every input file.
func StiviOutputFiles(c ConvertStiviConfig) []string {
	dir := EnforceTrailingSlash(c.Output.Dir)
	inputs := c.Input.File.Values
	outputs := make([]string, len(inputs))
	for i, input := range inputs {
		if c.Output.SubDir.Activate {
			outputs[i] = dir + EnforceTrailingSlash(StiviSubDir(input)) + c.Output.SubDir.NameFile
			continue
		}
		outputs[i] = dir + c.Output.File.At(i)
	}
	return outputs
}

// ConvertStivi converts every input file, at most NumWorkers at a time.
func ConvertStivi(ctx context.Context, c ConvertStiviConfig) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := EnsureDir(EnforceTrailingSlash(c.Output.Dir)); err != nil {
		return err
	}
	outputs := StiviOutputFiles(c)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(c.NumWorkers, 1))
	for i, input := range c.Input.File.Values {
		output := outputs[i]
		if c.Output.SubDir.Activate {
			if err := EnsureDir(EnforceTrailingSlash(c.Output.Dir) + StiviSubDir(input)); err != nil {
				return err
			}
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			debugf(c.Verbosity, "stivi", "Converting %s into %s", input, output)
			return ConvertStiviFile(c, input, output)
		})
	}
	return g.Wait()
}

// stiviEnergies are the five energy columns of the output tree, kept for
// the QA histograms.
type stiviEnergies struct {
	dePl1, dePl2, eCeBr, ecPl1, ecPl2 []float64
}

func (e *stiviEnergies) add(dePl1, dePl2, eCeBr, ecPl1, ecPl2 float64) {
	e.dePl1 = append(e.dePl1, dePl1)
	e.dePl2 = append(e.dePl2, dePl2)
	e.eCeBr = append(e.eCeBr, eCeBr)
	e.ecPl1 = append(e.ecPl1, ecPl1)
	e.ecPl2 = append(e.ecPl2, ecPl2)
}

// ConvertStiviFile computes the kinetic energies before each plastic and
// writes them with the renamed ΔE branches.
func ConvertStiviFile(c ConvertStiviConfig, input, output string) error {
	fin, err := openROOT(input)
	if err != nil {
		return err
	}
	defer fin.Close()

	tree, err := getTree(fin, input, c.Input.Tree.Name)
	if err != nil {
		return err
	}
	deltaE, err := selectReadVars(tree, input, c.Input.Tree.DeltaEBranches)
	if err != nil {
		return err
	}

	renaming := c.Output.Tree.DeltaEBranchesRenaming
	ec := c.Output.Tree.EcBranches
	var dePl1, dePl2, eCeBr, ecPl1, ecPl2 float64
	derived := []rtree.WriteVar{
		{Name: renaming[0], Value: &dePl1},
		{Name: renaming[1], Value: &dePl2},
		{Name: renaming[2], Value: &eCeBr},
		{Name: ec.EcPl1, Value: &ecPl1},
		{Name: ec.EcPl2, Value: &ecPl2},
	}
	derivedNames := make(map[string]bool, len(derived))
	for _, wvar := range derived {
		derivedNames[wvar.Name] = true
	}

	rvars := deltaE
	var wvars []rtree.WriteVar
	if !c.Output.SaveNrjInfoOnly {
		rvars = nil
		for _, rvar := range rtree.NewReadVars(tree) {
			if !isScalar(rvar.Value) {
				continue
			}
			rvars = append(rvars, rvar)
			if !derivedNames[rvar.Name] {
				wvars = append(wvars, rtree.WriteVar{Name: rvar.Name, Value: rvar.Value})
			}
		}
		deltaE = pickReadVars(rvars, c.Input.Tree.DeltaEBranches)
	}
	wvars = append(wvars, derived...)

	return createROOT(output, func(fout *riofs.File) error {
		w, err := rtree.NewWriter(fout, c.Output.Tree.Name, wvars, rtree.WithTitle(c.Output.Tree.Name))
		if err != nil {
			return fmt.Errorf("error creating tree %q in %q: %w", c.Output.Tree.Name, output, err)
		}
		r, err := rtree.NewReader(tree, rvars)
		if err != nil {
			return errors.Join(fmt.Errorf("error creating reader for %q: %w", input, err), w.Close())
		}
		defer r.Close()

		var energies stiviEnergies
		err = r.Read(func(ctx rtree.RCtx) error {
			dePl1, _ = scalarValue(deltaE[0].Value)
			dePl2, _ = scalarValue(deltaE[1].Value)
			eCeBr, _ = scalarValue(deltaE[2].Value)
			ecPl2 = eCeBr + dePl2
			ecPl1 = eCeBr + dePl2 + dePl1
			if c.Output.QA.Activate {
				energies.add(dePl1, dePl2, eCeBr, ecPl1, ecPl2)
			}
			_, err := w.Write()
			return err
		})
		if err != nil {
			return errors.Join(fmt.Errorf("error converting %q: %w", input, err), w.Close())
		}
		if err := w.Close(); err != nil {
			return fmt.Errorf("error closing tree in %q: %w", output, err)
		}

		if !c.Output.QA.Activate {
			return nil
		}
		for _, h := range stiviQAHistograms(energies, c.Output.QA.NBins) {
			if err := fout.Put(h.Name(), rhist.NewH2DFrom(h)); err != nil {
				return fmt.Errorf("error writing %q in %q: %w", h.Name(), output, err)
			}
		}
		return nil
	})
}

func pickReadVars(rvars []rtree.ReadVar, names []string) []rtree.ReadVar {
	picked := make([]rtree.ReadVar, len(names))
	for i, name := range names {
		for _, rvar := range rvars {
			if rvar.Name == name {
				picked[i] = rvar
				break
			}
		}
	}
	return picked
}

func stiviQAHistograms(e stiviEnergies, nbins int) []*hbook.H2D {
	configs := []struct {
		name, title string
		x, y        []float64
	}{
		{"h_cebr_pl2", "; CeBr_{3} energy (MeV); Plastic 2 energy (MeV)", e.eCeBr, e.dePl2},
		{"h_pl2_pl1", "; Plastic 2 energy (MeV); Plastic 1 energy (MeV)", e.dePl2, e.dePl1},
		{"h_ec_de_pl2", "; E_{c} before Plastic 2 (MeV); #Delta E Plastic 2(MeV)", e.ecPl2, e.dePl2},
		{"h_ec_de_pl1", "; E_{c} before Plastic 1 (MeV); #Delta E Plastic 1(MeV)", e.ecPl1, e.dePl1},
	}
	histos := make([]*hbook.H2D, len(configs))
	for i, cfg := range configs {
		xmin, xmax := histogramLimits(cfg.x)
		ymin, ymax := histogramLimits(cfg.y)
		h := hbook.NewH2D(nbins, xmin, xmax, nbins, ymin, ymax)
		h.Ann["name"] = cfg.name
		h.Ann["title"] = cfg.title
		for j := range cfg.x {
			h.Fill(cfg.x[j], cfg.y[j], 1)
		}
		histos[i] = h
	}
	return histos
}

// histogramLimits returns the data min and max, widened when they coincide
// so that the binning stays valid.
func histogramLimits(values []float64) (float64, float64) {
	lo, hi := math.Inf(+1), math.Inf(-1)
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if len(values) == 0 {
		return 0, 1
	}
	if lo == hi {
		return lo - 0.5, hi + 0.5
	}
	return lo, hi
}
