package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newInspectCommand(c *cli) *cobra.Command {
	var model string
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show a model directory's configuration and per-fold files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := c.pipeline().Inspect(cmd.Context(), model)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "type: %s\nfolds: %d\nnJets: %d\nnMuons: %d\nnEgammas: %d\n",
				cfg.Kind, cfg.Folds, cfg.NJets, cfg.NMuons, cfg.NEgammas)
			return nil
		},
	}
	cmd.Flags().StringVar(&model, "model", "", "model directory")
	_ = cmd.MarkFlagRequired("model")
	return cmd
}
