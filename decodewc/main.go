package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	calib "github.com/iphc-clinm/calib_go/pkg"
)

var configuration calib.DecodeWCConfig

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = calib.DecodeWC(ctx, configuration, calib.ExecRunner{})
	stop()
	if err != nil {
		calib.Fatal(logger, fmt.Errorf("Error decoding WaveCatcher files: %w", err))
	}
}
