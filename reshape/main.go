package main

import (
	"flag"
	"fmt"
	"time"

	calib "github.com/iphc-clinm/calib_go/pkg"
	"github.com/iphc-clinm/calib_go/pkg/hdf5io"
)

var configuration calib.ReshapeConfig

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

	start := time.Now()
	coinc, err := calib.RunReshape(configuration)
	if err != nil {
		calib.Fatal(logger, fmt.Errorf("Error reshaping simulated data: %w", err))
	}

	hdf := configuration.Output.HDF5
	if hdf.Activate {
		err := hdf5io.WriteTableFile(hdf.File, hdf.Group, coinc, hdf.CompressionLevel)
		if err != nil {
			calib.Fatal(logger, fmt.Errorf("Error writing HDF5 file: %w", err))
		}
	}

	if configuration.Verbosity > 0 {
		duration := time.Since(start)
		logger.Info(fmt.Sprintf("%d coincidences written in %d ms", coinc.Len(), duration.Milliseconds()), "main")
	}
}
