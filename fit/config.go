package main

import (
	"fmt"

	calib "github.com/iphc-clinm/calib_go/pkg"
)

func LoadConfiguration(filename string) (calib.FitConfig, error) {
	config := calib.DefaultFitConfig()
	if err := calib.LoadYAML(filename, &config); err != nil {
		return config, err
	}
	return config, nil
}

func printConfiguration(config calib.FitConfig, logger calib.Logger) {
	logger.Info(fmt.Sprintf("File in: %s", config.Input.File), "config")
	logger.Info(fmt.Sprintf("Tree: %s", config.Input.Tree.Name), "config")
	logger.Info(fmt.Sprintf("Branches: %v", config.Input.Tree.Branches), "config")
	logger.Info(fmt.Sprintf("Histograms: %v", config.HistogramConfig.Name.Values), "config")
	logger.Info(fmt.Sprintf("Number of bins: %v", config.HistogramConfig.NBin.Values), "config")
	logger.Info(fmt.Sprintf("Histogram range: %v", config.HistogramConfig.Range.Values), "config")
	logger.Info(fmt.Sprintf("Fit function: %v", config.Fit.Func.Values), "config")
	logger.Info(fmt.Sprintf("Fit range: %v", config.Fit.Range.Values), "config")
	logger.Info(fmt.Sprintf("File out: %s", config.Output.Name), "config")
	logger.Info(fmt.Sprintf("Plot: %t", config.Output.Plot.Activate), "config")
	logger.Info(fmt.Sprintf("Number of workers: %d", config.NumWorkers), "config")
	logger.Info(fmt.Sprintf("Record in DB: %t", config.Database.Record), "config")
}
