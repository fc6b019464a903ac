package main

import (
	"flag"
	"fmt"

	calib "github.com/iphc-clinm/calib_go/pkg"
)

var configuration calib.PlotFitConfig

var logger calib.StdLogger

func init() {
	logger = calib.NewConsoleLogger()
}

func main() {
	configFilename := flag.String("config", "", "Configuration file path")
	flag.Parse()

	filename, err := calib.ConfigFilename(*configFilename, flag.Args())
	if err != nil {
		calib.Fatal(logger, err)
	}
	configuration, err = LoadConfiguration(filename)
	if err != nil {
		message := fmt.Errorf("Error reading configuration file: %w", err)
		calib.Fatal(logger, message)
	}
	calib.SetLogger(logger)

	if configuration.Verbosity > 0 {
		message := fmt.Sprintf("Reading configuration file: %s", filename)
		logger.Info(message, "main")
		printConfiguration(configuration, logger)
	}

	if err := calib.RunPlotFit(configuration); err != nil {
		calib.Fatal(logger, fmt.Errorf("Error plotting fit results: %w", err))
	}
}
