package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPrepareCommand(c *cli) *cobra.Command {
	var in inputFlags
	cmd := &cobra.Command{
		Use:   "prepare",
		Short: "Assemble the labeled, standardized dataset and print its dimensions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			inputs, err := in.inputs()
			if err != nil {
				return err
			}
			ds, err := c.pipeline().Prepare(cmd.Context(), in.model, inputs)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "kind: %s\nrows: %d\nfeatures: %d\nfolds: %d\n",
				ds.Config.Kind, ds.X.Rows, ds.X.Cols, len(ds.Folds))
			for _, b := range ds.Blocks {
				fmt.Fprintf(w, "%s: %d\n", b.Label, b.Rows)
			}
			return nil
		},
	}
	in.register(cmd, true)
	return cmd
}
