package main

import (
	"fmt"

	calib "github.com/iphc-clinm/calib_go/pkg"
)

func LoadConfiguration(filename string) (calib.SimulationConfig, error) {
	config := calib.DefaultSimulationConfig()
	if err := calib.LoadYAML(filename, &config); err != nil {
		return config, err
	}
	return config, nil
}

func printConfiguration(config calib.SimulationConfig, logger calib.Logger) {
	logger.Info(fmt.Sprintf("Setup: %s", config.Setup), "config")
	logger.Info(fmt.Sprintf("Campaign: %s", config.Campaign), "config")
	logger.Info(fmt.Sprintf("Run: %d", config.Run), "config")
	logger.Info(fmt.Sprintf("Source energy: %g", config.Source.Energy), "config")
	logger.Info(fmt.Sprintf("Source n: %d", config.Source.N), "config")
	if config.Setup == calib.SetupCYRCE {
		w := config.Width
		logger.Info(fmt.Sprintf("Widths (mm): wheel %g, collimator %g, plastic1 %g, plastic2 %g", w.Wheel, w.Collimator, w.Plastic1, w.Plastic2), "config")
	}
	logger.Info(fmt.Sprintf("Output dir: %s", config.Output.Dir), "config")
	logger.Info(fmt.Sprintf("Materials DB: %s", config.MaterialsDB), "config")
	logger.Info(fmt.Sprintf("Engine: %s %v", config.Engine.Command, config.Engine.Args), "config")
	logger.Info(fmt.Sprintf("Print commands: %t", config.Command.Print), "config")
	logger.Info(fmt.Sprintf("Run commands: %t", config.Command.Run), "config")
	logger.Info(fmt.Sprintf("Use DB: %t (%s)", config.Database.Use, config.Database.Driver), "config")
}
