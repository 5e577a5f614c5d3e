package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tabforest/internal/config"
	"tabforest/internal/logging"
)

type app struct {
	configFile string
	cfg        *config.Config
	logger     *zap.SugaredLogger
}

func main() {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "workbench",
		Short:         "Train, apply and analyse tabular classifiers from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}
	rootCmd.PersistentFlags().StringVar(&a.configFile, "config", "config.yaml", "Path to configuration file")

	rootCmd.AddCommand(
		newTrainCmd(a),
		newPredictCmd(a),
		newTTestCmd(a),
		newANOVACmd(a),
		newCorrelateCmd(a),
	)

	err := rootCmd.Execute()
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (a *app) setup() error {
	cfg, err := config.Load(a.configFile)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}
