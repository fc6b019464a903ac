package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	calib "github.com/iphc-clinm/calib_go/pkg"
)

var configuration calib.CalibrateConfig

var logger calib.StdLogger

func init() {
	logger = calib.NewConsoleLogger()
}

func run(ctx context.Context) (err error) {
	store, err := calib.OpenStore(ctx, configuration.Database, configuration.Verbosity)
	if err != nil {
		return fmt.Errorf("Error connection to database: %w", err)
	}
	if store != nil {
		defer func() {
			err = errors.Join(err, store.Close())
		}()
	}
	if err := calib.RunCalibration(ctx, configuration, store); err != nil {
		return fmt.Errorf("Error calibrating: %w", err)
	}
	return nil
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
	err = run(ctx)
	stop()
	if err != nil {
		calib.Fatal(logger, err)
	}
}
