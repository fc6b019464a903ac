package main

import (
	"fmt"

	calib "github.com/iphc-clinm/calib_go/pkg"
)

func LoadConfiguration(filename string) (calib.ConvertStiviConfig, error) {
	config := calib.DefaultConvertStiviConfig()
	if err := calib.LoadYAML(filename, &config); err != nil {
		return config, err
	}
	return config, nil
}

func printConfiguration(config calib.ConvertStiviConfig, logger calib.Logger) {
	logger.Info(fmt.Sprintf("Input files: %v", config.Input.File.Values), "config")
	logger.Info(fmt.Sprintf("Input tree: %s", config.Input.Tree.Name), "config")
	logger.Info(fmt.Sprintf("DeltaE branches: %v", config.Input.Tree.DeltaEBranches), "config")
	logger.Info(fmt.Sprintf("Output dir: %s", config.Output.Dir), "config")
	logger.Info(fmt.Sprintf("Output files: %v", config.Output.File.Values), "config")
	logger.Info(fmt.Sprintf("Sub dir: %t (%s)", config.Output.SubDir.Activate, config.Output.SubDir.NameFile), "config")
	logger.Info(fmt.Sprintf("Output tree: %s", config.Output.Tree.Name), "config")
	logger.Info(fmt.Sprintf("DeltaE renaming: %v", config.Output.Tree.DeltaEBranchesRenaming), "config")
	logger.Info(fmt.Sprintf("Ec branches: %s, %s", config.Output.Tree.EcBranches.EcPl1, config.Output.Tree.EcBranches.EcPl2), "config")
	logger.Info(fmt.Sprintf("QA: %t (%d bins)", config.Output.QA.Activate, config.Output.QA.NBins), "config")
	logger.Info(fmt.Sprintf("Save energy info only: %t", config.Output.SaveNrjInfoOnly), "config")
	logger.Info(fmt.Sprintf("Number of workers: %d", config.NumWorkers), "config")
}
