package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	calib "github.com/iphc-clinm/calib_go/pkg"
)

var configuration calib.ConvertStiviConfig

var logger calib.StdLogger

func init() {
	logger = calib.NewConsoleLogger()
}

func main() {
	configFilename := flag.String("config", "", "Configuration file path")
	workers := flag.Int("workers", 0, "Number of files converted concurrently (overrides num_workers)")
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
	if *workers > 0 {
		configuration.NumWorkers = *workers
	}

	if configuration.Verbosity > 0 {
		message := fmt.Sprintf("Reading configuration file: %s", filename)
		logger.Info(message, "main")
		printConfiguration(configuration, logger)
	}

	start := time.Now()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = calib.ConvertStivi(ctx, configuration)
	stop()
	if err != nil {
		calib.Fatal(logger, fmt.Errorf("Error converting STIVI files: %w", err))
	}
	if configuration.Verbosity > 0 {
		duration := time.Since(start)
		logger.Info(fmt.Sprintf("Total time: %d ms", duration.Milliseconds()), "main")
	}
}
