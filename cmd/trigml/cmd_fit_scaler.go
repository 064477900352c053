package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newFitScalerCommand(c *cli) *cobra.Command {
	var in inputFlags
	cmd := &cobra.Command{
		Use:   "fit-scaler",
		Short: "Fit and write one standardization scaler per fold",
		Long: `Shape the inputs with the model configuration and fit a per-feature
standardization for each fold. Row i belongs to fold i mod folds and the
scaler of fold f is fitted on the rows outside it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			inputs, err := in.inputs()
			if err != nil {
				return err
			}
			scalers, err := c.pipeline().FitScalers(cmd.Context(), in.model, inputs)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d scalers to %s\n", len(scalers), in.model)
			return nil
		},
	}
	in.register(cmd, true)
	return cmd
}
