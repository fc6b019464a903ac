package main

import (
	"fmt"

	calib "github.com/iphc-clinm/calib_go/pkg"
)

func LoadConfiguration(filename string) (calib.DecodeWCConfig, error) {
	config := calib.DefaultDecodeWCConfig()
	if err := calib.LoadYAML(filename, &config); err != nil {
		return config, err
	}
	return config, nil
}

func printConfiguration(config calib.DecodeWCConfig, logger calib.Logger) {
	logger.Info(fmt.Sprintf("Reconstruction dir: %s", config.STIVI.ReconstructionDir), "config")
	logger.Info(fmt.Sprintf("Input: %v", config.DecodeWC.Input.Values), "config")
	logger.Info(fmt.Sprintf("Output: %v", config.DecodeWC.Output.Values), "config")
	logger.Info(fmt.Sprintf("Exp: %v", config.DecodeWC.Exp.Values), "config")
	logger.Info(fmt.Sprintf("Run: %v", config.DecodeWC.Run.Values), "config")
	logger.Info(fmt.Sprintf("Flat: %v", config.DecodeWC.Flat.Values), "config")
	logger.Info(fmt.Sprintf("Print commands: %t", config.Command.Print), "config")
	logger.Info(fmt.Sprintf("Run commands: %t", config.Command.Run), "config")
}
