package main

import (
	"fmt"

	calib "github.com/iphc-clinm/calib_go/pkg"
)

func LoadConfiguration(filename string) (calib.GaussFitConfig, error) {
	config := calib.DefaultGaussFitConfig()
	if err := calib.LoadYAML(filename, &config); err != nil {
		return config, err
	}
	return config, nil
}

func printConfiguration(config calib.GaussFitConfig, logger calib.Logger) {
	logger.Info(fmt.Sprintf("File in: %s", config.Input.File), "config")
	logger.Info(fmt.Sprintf("Tree: %s", config.Input.Tree.Name), "config")
	logger.Info(fmt.Sprintf("Branches: %v", config.Input.Tree.Branches), "config")
	logger.Info(fmt.Sprintf("Histograms: %v", config.HistogramConfig.Name.Values), "config")
	logger.Info(fmt.Sprintf("Number of bins: %v", config.HistogramConfig.NBin.Values), "config")
	logger.Info(fmt.Sprintf("Fit range: %v", config.Fit.Range.Values), "config")
	logger.Info(fmt.Sprintf("mu bounds: %v", config.Fit.Pars.MuGauss), "config")
	logger.Info(fmt.Sprintf("sigma bounds: %v", config.Fit.Pars.SigmaGauss), "config")
	logger.Info(fmt.Sprintf("norm bounds: %v", config.Fit.Pars.Norm), "config")
	logger.Info(fmt.Sprintf("File out: %s", config.Output.File), "config")
	info := config.Output.Plot.Info
	logger.Info(fmt.Sprintf("Plot info: %s %s, %s %s, run %s", info.Exp, info.Campaign, info.Beam.Particle, info.Beam.Energy, info.Run), "config")
	logger.Info(fmt.Sprintf("Record in DB: %t", config.Database.Record), "config")
}
