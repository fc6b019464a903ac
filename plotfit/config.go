package main

import (
	"fmt"

	calib "github.com/iphc-clinm/calib_go/pkg"
)

func LoadConfiguration(filename string) (calib.PlotFitConfig, error) {
	config := calib.DefaultPlotFitConfig()
	if err := calib.LoadYAML(filename, &config); err != nil {
		return config, err
	}
	return config, nil
}

func printConfiguration(config calib.PlotFitConfig, logger calib.Logger) {
	logger.Info(fmt.Sprintf("File in: %s", config.Input.File), "config")
	logger.Info(fmt.Sprintf("Data: %v", config.Input.Data.Values), "config")
	logger.Info(fmt.Sprintf("Function: %v", config.Fit.Func.Values), "config")
	logger.Info(fmt.Sprintf("Labels: %v", config.Plot.Label.Values), "config")
	logger.Info(fmt.Sprintf("Files out: %v", config.Output.File.Values), "config")
	logger.Info(fmt.Sprintf("Extensions: %v", config.Output.Extension.Values), "config")
}
