package main

import (
	"flag"
	"fmt"
	"os"

	"tabforest/internal/commander"
	"tabforest/internal/config"
	"tabforest/internal/logging"
)

func main() {
	configFile := flag.String("config", "config.yaml", "Path to configuration file")
	dataFile := flag.String("data", "", "CSV file to load on start")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	cmd := commander.NewCommander(cfg, logger, os.Stdout)
	if *dataFile != "" {
		cmd.ExecuteCommand("load", []string{*dataFile})
	}
	cmd.Start(os.Stdin)
}
