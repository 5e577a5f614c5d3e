package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"tabforest/internal/commander"
	"tabforest/internal/data"
	"tabforest/internal/persistence"
	"tabforest/internal/prediction"
	"tabforest/internal/training"
)

func newTrainCmd(a *app) *cobra.Command {
	var dataFile, target, features, out string
	var seed int64

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a random forest and export it as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := data.NewCSVReader(dataFile).Load()
			if err != nil {
				return err
			}

			if target == "" {
				target = ds.Columns[len(ds.Columns)-1]
			}
			cfg := ds.DefaultFeatureConfig(target)
			if features != "" {
				cfg.Features = splitList(features)
			}

			opts := training.OptionsFromConfig(a.cfg.Training)
			if cmd.Flags().Changed("seed") {
				opts.Seed = seed
			}

			model, err := training.NewPipeline(opts, a.logger).Train(cmd.Context(), ds, cfg, nil)
			if err != nil {
				return err
			}
			if err := persistence.SaveFile(out, model); err != nil {
				return err
			}

			fmt.Printf("Model saved to %s\n", out)
			return persistence.WriteSummary(os.Stdout, model)
		},
	}

	cmd.Flags().StringVar(&dataFile, "data", "", "Training data CSV")
	cmd.Flags().StringVar(&target, "target", "", "Target column (defaults to the last column)")
	cmd.Flags().StringVar(&features, "features", "", "Comma-separated feature columns (defaults to all others)")
	cmd.Flags().StringVar(&out, "out", "model.json", "Where to write the model")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Forest seed (overrides the config)")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}

func newPredictCmd(a *app) *cobra.Command {
	var modelFile string

	cmd := &cobra.Command{
		Use:   "predict column=value ...",
		Short: "Predict one row with an exported model",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			model, err := persistence.LoadFile(modelFile)
			if err != nil {
				return err
			}
			inputs, err := commander.ParseAssignments(args)
			if err != nil {
				return err
			}

			res, err := prediction.New(model, a.logger).PredictStrings(inputs)
			if err != nil {
				return err
			}
			fmt.Printf("Prediction: %s (confidence %.1f%%)\n", res.Label, res.Confidence*100)
			return nil
		},
	}

	cmd.Flags().StringVar(&modelFile, "model", "model.json", "Exported model JSON")
	return cmd
}

func newTTestCmd(a *app) *cobra.Command {
	var dataFile, column string
	var mu float64

	cmd := &cobra.Command{
		Use:   "ttest",
		Short: "One-sample t-test on a numeric column",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.analyse(dataFile, "ttest", column, strconv.FormatFloat(mu, 'g', -1, 64))
		},
	}

	cmd.Flags().StringVar(&dataFile, "data", "", "CSV file")
	cmd.Flags().StringVar(&column, "column", "", "Numeric column")
	cmd.Flags().Float64Var(&mu, "mu", 0, "Hypothesised mean")
	_ = cmd.MarkFlagRequired("data")
	_ = cmd.MarkFlagRequired("column")
	return cmd
}

func newANOVACmd(a *app) *cobra.Command {
	var dataFile, value, group string

	cmd := &cobra.Command{
		Use:   "anova",
		Short: "One-way ANOVA of a numeric column across groups",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.analyse(dataFile, "anova", value, group)
		},
	}

	cmd.Flags().StringVar(&dataFile, "data", "", "CSV file")
	cmd.Flags().StringVar(&value, "value", "", "Numeric value column")
	cmd.Flags().StringVar(&group, "group", "", "Grouping column")
	_ = cmd.MarkFlagRequired("data")
	_ = cmd.MarkFlagRequired("value")
	_ = cmd.MarkFlagRequired("group")
	return cmd
}

func newCorrelateCmd(a *app) *cobra.Command {
	var dataFile, x, y, method string

	cmd := &cobra.Command{
		Use:   "correlate",
		Short: "Pearson or Spearman correlation of two numeric columns",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.analyse(dataFile, "correlate", x, y, method)
		},
	}

	cmd.Flags().StringVar(&dataFile, "data", "", "CSV file")
	cmd.Flags().StringVar(&x, "x", "", "First column")
	cmd.Flags().StringVar(&y, "y", "", "Second column")
	cmd.Flags().StringVar(&method, "method", "pearson", "pearson or spearman")
	_ = cmd.MarkFlagRequired("data")
	_ = cmd.MarkFlagRequired("x")
	_ = cmd.MarkFlagRequired("y")
	return cmd
}

// analyse loads dataFile into a fresh session and runs one statistics
// command against it, printing the same report as the REPL.
func (a *app) analyse(dataFile, command string, args ...string) error {
	c := commander.NewCommander(a.cfg, a.logger, os.Stdout)
	if err := c.Exec("load", dataFile); err != nil {
		return err
	}
	return c.Exec(command, args...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
