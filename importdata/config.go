package main

import (
	"fmt"

	calib "github.com/iphc-clinm/calib_go/pkg"
)

func LoadConfiguration(filename string) (calib.ImportConfig, error) {
	config := calib.DefaultImportConfig()
	if err := calib.LoadYAML(filename, &config); err != nil {
		return config, err
	}
	return config, nil
}

func printConfiguration(config calib.ImportConfig, logger calib.Logger) {
	logger.Info(fmt.Sprintf("Create SSH control master: %t", config.SSHControlMaster.Create), "config")
	if config.SSHControlMaster.Create {
		logger.Info(fmt.Sprintf("SSH config file: %s", config.SSHControlMaster.SSHConfigFile), "config")
		logger.Info(fmt.Sprintf("Host: %s", config.SSHControlMaster.Host), "config")
		logger.Info(fmt.Sprintf("Proxy: %s", config.SSHControlMaster.Proxy), "config")
	}
	logger.Info(fmt.Sprintf("Username: %s", config.Remote.Username), "config")
	logger.Info(fmt.Sprintf("Server: %s", config.Remote.Server), "config")
	logger.Info(fmt.Sprintf("Domain: %s", config.Remote.Domain), "config")
	logger.Info(fmt.Sprintf("Use SSH control master: %t", config.Remote.UseSSHControlMaster), "config")
	logger.Info(fmt.Sprintf("Type of content: %s", config.Remote.TypeOfContent), "config")
	logger.Info(fmt.Sprintf("Content: %v", config.Remote.Content.Values), "config")
	logger.Info(fmt.Sprintf("Local dir: %s (mkdir: %t)", config.Local.Dir.Name, config.Local.Dir.Mkdir), "config")
	logger.Info(fmt.Sprintf("Content renaming: %v", config.Local.ContentRenaming.Values), "config")
	logger.Info(fmt.Sprintf("Print commands: %t", config.Command.Print), "config")
	logger.Info(fmt.Sprintf("Run commands: %t", config.Command.Run), "config")
}
