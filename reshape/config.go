package main

import (
	"fmt"

	calib "github.com/iphc-clinm/calib_go/pkg"
)

func LoadConfiguration(filename string) (calib.ReshapeConfig, error) {
	config := calib.DefaultReshapeConfig()
	if err := calib.LoadYAML(filename, &config); err != nil {
		return config, err
	}
	return config, nil
}

func printConfiguration(config calib.ReshapeConfig, logger calib.Logger) {
	logger.Info(fmt.Sprintf("File in: %s", config.Input.File), "config")
	logger.Info(fmt.Sprintf("Trees: %v", config.Input.Tree.Names), "config")
	logger.Info(fmt.Sprintf("Branches: %v", config.Input.Tree.Branches), "config")
	logger.Info(fmt.Sprintf("Merge on: %v", config.Merge.OnBranches), "config")
	logger.Info(fmt.Sprintf("Suffixes: %v", config.Merge.Suffixes), "config")
	logger.Info(fmt.Sprintf("Thresholds: %v", config.Merge.Thresholds), "config")
	logger.Info(fmt.Sprintf("File out: %s", config.Output.File), "config")
	logger.Info(fmt.Sprintf("Tree out: %s", config.Output.Tree.Name), "config")
	logger.Info(fmt.Sprintf("HDF5: %t", config.Output.HDF5.Activate), "config")
	if config.Output.HDF5.Activate {
		logger.Info(fmt.Sprintf("HDF5 file: %s", config.Output.HDF5.File), "config")
		logger.Info(fmt.Sprintf("Compression level: %d", config.Output.HDF5.CompressionLevel), "config")
	}
}
