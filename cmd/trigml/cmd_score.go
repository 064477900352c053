package main

import (
	"github.com/spf13/cobra"

	"github.com/okian/trigml/internal/adapters/export"
	"github.com/okian/trigml/internal/app"
	"github.com/okian/trigml/internal/config"
	"github.com/okian/trigml/internal/domain/dataset"
	"github.com/okian/trigml/internal/domain/scoring"
	"github.com/okian/trigml/pkg/logger"
)

func newScoreCommand(c *cli) *cobra.Command {
	var (
		in         inputFlags
		out        string
		threshold  float64
		mode       string
		foldPolicy string
	)
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score events with a trained model and apply the trigger threshold",
		Long: `Load the signal and/or background inputs, shape and standardize them for
the model directory, run inference and decide per event whether the trigger
fires. Rows are written as CSV (index,label,score,fired) to --out or stdout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if err := checkOverrides(cmd, mode, foldPolicy); err != nil {
				return err
			}
			inputs, err := in.inputs()
			if err != nil {
				return err
			}

			var opts []app.Option
			if cmd.Flags().Changed("threshold") {
				opts = append(opts, app.WithThreshold(threshold))
			}
			if cmd.Flags().Changed("mode") {
				opts = append(opts, app.WithMode(mode))
			}
			if cmd.Flags().Changed("fold-policy") {
				opts = append(opts, app.WithFoldPolicy(foldPolicy))
			}

			res, err := c.pipeline(opts...).Score(ctx, in.model, inputs)
			if err != nil {
				return err
			}

			if out == "" {
				return export.Write(cmd.OutOrStdout(), res.Rows)
			}
			if err := export.WriteFile(out, res.Rows); err != nil {
				return err
			}
			c.log.Info(ctx, "scores written", logger.String("path", out), logger.Int("rows", len(res.Rows)))
			return nil
		},
	}

	in.register(cmd, true)
	cmd.Flags().StringVar(&out, "out", "", "CSV output path (stdout when empty)")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "override threshold")
	cmd.Flags().StringVar(&mode, "mode", "", "override mode: min (fire when score > threshold) or max (score < threshold)")
	cmd.Flags().StringVar(&foldPolicy, "fold-policy", "", "override fold_policy: first, mean, index:<n> or ensemble")

	return cmd
}

// checkOverrides rejects --mode and --fold-policy values before any input is
// read. The config file values are checked by config.Validate.
func checkOverrides(cmd *cobra.Command, mode, foldPolicy string) error {
	if cmd.Flags().Changed("mode") {
		if _, err := scoring.ParseMode(mode); err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("fold-policy") && foldPolicy != config.EnsemblePolicy {
		if _, err := dataset.ParseFoldPolicy(foldPolicy); err != nil {
			return err
		}
	}
	return nil
}
