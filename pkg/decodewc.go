package calib

import (
	"context"
	"fmt"
)

type StiviConfig struct {
	ReconstructionDir string `yaml:"Reconstruction_dir"`
}

type DecodeWCOptions struct {
	Input  OneOrMany[string] `yaml:"input"`
	Output OneOrMany[string] `yaml:"output"`
	Exp    OneOrMany[string] `yaml:"exp"`
	Run    OneOrMany[string] `yaml:"run"`
	Flat   OneOrMany[bool]   `yaml:"flat"`
}

type DecodeWCConfig struct {
	STIVI     StiviConfig     `yaml:"STIVI"`
	DecodeWC  DecodeWCOptions `yaml:"DecodeWC"`
	Command   CommandConfig   `yaml:"command"`
	Verbosity int             `yaml:"verbosity"`
}

func DefaultDecodeWCConfig() DecodeWCConfig {
	return DecodeWCConfig{
		DecodeWC: DecodeWCOptions{Output: One("auto"), Flat: One(false)},
		Command:  CommandConfig{Print: true},
	}
}

func (o DecodeWCOptions) autoOutput() bool {
	return !o.Output.IsList && o.Output.At(0) == "auto"
}

// Validate checks the input/output shapes. A non boolean "flat" already
// fails when decoding the file.
func (c DecodeWCConfig) Validate() error {
	o := c.DecodeWC
	if !o.Input.IsSet() {
		return &ErrConfig{Option: "DecodeWC.input", Reason: "no input file"}
	}
	if o.Input.IsList && o.Output.IsList {
		if err := checkSameSize([]string{"DecodeWC.input", "DecodeWC.output"}, o.Input.Len(), o.Output.Len()); err != nil {
			return err
		}
	}
	if !o.autoOutput() && o.Input.IsList != o.Output.IsList {
		return &ErrConfig{Option: "DecodeWC.output", Reason: "input and output must be of same type if output is not 'auto'"}
	}
	n := o.Input.Len()
	for _, option := range []struct {
		name string
		size int
	}{
		{"DecodeWC.exp", len(o.Exp.Broadcast(n))},
		{"DecodeWC.run", len(o.Run.Broadcast(n))},
		{"DecodeWC.flat", len(o.Flat.Broadcast(n))},
	} {
		if option.size != n {
			return &ErrSizeMismatch{Options: []string{"DecodeWC.input", option.name}, Sizes: []int{n, option.size}}
		}
	}
	return nil
}

// DecodeWCCommands returns one DecodeWC invocation per input, all run from
// the reconstruction directory.
func DecodeWCCommands(c DecodeWCConfig) []Command {
	o := c.DecodeWC
	inputs := o.Input.Values
	n := len(inputs)
	outputs := o.Output.Broadcast(n)
	exps := o.Exp.Broadcast(n)
	runs := o.Run.Broadcast(n)
	flats := o.Flat.Broadcast(n)

	cmds := make([]Command, n)
	for i, in := range inputs {
		args := []string{"-in", in, "-out", outputs[i], "-exp", exps[i], "-run", runs[i]}
		if flats[i] {
			args = append(args, "-flat")
		}
		cmds[i] = Command{Dir: c.STIVI.ReconstructionDir, Name: "DecodeWC", Args: args}
	}
	return cmds
}

func DecodeWC(ctx context.Context, c DecodeWCConfig, runner Runner) error {
	if err := c.Validate(); err != nil {
		return err
	}
	cmds := DecodeWCCommands(c)
	debugf(c.Verbosity, "decodewc", "Going to STIVI Reconstruction directory: %s", c.STIVI.ReconstructionDir)
	return Execute(ctx, c.Command, fmt.Sprintf("Full command (%d files)", len(cmds)), cmds, runner)
}
