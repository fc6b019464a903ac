package main

import (
	"fmt"

	calib "github.com/iphc-clinm/calib_go/pkg"
)

func LoadConfiguration(filename string) (calib.CalibrateConfig, error) {
	config := calib.DefaultCalibrateConfig()
	if err := calib.LoadYAML(filename, &config); err != nil {
		return config, err
	}
	return config, nil
}

func printConfiguration(config calib.CalibrateConfig, logger calib.Logger) {
	for ion, campaigns := range config.Input.Simulation.File {
		for campaign, files := range campaigns {
			logger.Info(fmt.Sprintf("Simulation %s/%s: %v", ion, campaign, files), "config")
			logger.Info(fmt.Sprintf("Real %s/%s: %v", ion, campaign, config.Input.Real.File[ion][campaign]), "config")
		}
	}
	logger.Info(fmt.Sprintf("Real fit results: %v", config.Input.Real.HistFitRes.Values), "config")
	logger.Info(fmt.Sprintf("Simulation fit results: %v", config.Input.Simulation.HistFitRes.Values), "config")
	logger.Info(fmt.Sprintf("Bin numbers: mean %d, sigma %d", config.Input.BinNumber.Mean, config.Input.BinNumber.Sigma), "config")
	logger.Info(fmt.Sprintf("Mode: %s", config.Fit.Mode), "config")
	logger.Info(fmt.Sprintf("Fit ranges: %v", config.Fit.Range), "config")
	logger.Info(fmt.Sprintf("Fix kB: %t (%g)", config.Fit.Kb.Fix, config.Fit.Kb.Value), "config")
	logger.Info(fmt.Sprintf("Graph: %s", config.Graph.Name), "config")
	logger.Info(fmt.Sprintf("File out: %s", config.Output.File), "config")
}
