package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okian/trigml/internal/adapters/source"
	"github.com/okian/trigml/internal/app"
	"github.com/okian/trigml/internal/config"
	"github.com/okian/trigml/internal/domain/types"
	"github.com/okian/trigml/pkg/logger"
	"github.com/okian/trigml/pkg/metrics"
)

var version = "dev"

// cli holds state shared by the subcommands of one invocation.
type cli struct {
	configPath string
	logLevel   string
	logFormat  string

	cfg *config.Config
	log logger.Logger
}

// inputFlags are the flags naming a model directory and its labeled inputs.
type inputFlags struct {
	model             string
	format            string
	signal            string
	background        string
	signalDataset     string
	backgroundDataset string
}

func newRootCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trigml",
		Short: "trigml - L1 trigger ML data pipeline",
		Long: `trigml reads L1 trigger ntuples or preprocessed HDF5 particle arrays,
shapes them into the feature rows a trained model expects, standardizes them
with the model's per-fold scalers, scores them and turns the scores into
trigger decisions.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&c.configPath, "config", "", "YAML config file (defaults to $"+config.EnvConfigFile+")")
	cmd.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "override log_level: debug, info, warn, error")
	cmd.PersistentFlags().StringVar(&c.logFormat, "log-format", "", "override log_format: text or json")
	cmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		return c.setup(cmd)
	}

	cmd.AddCommand(newScoreCommand(c))
	cmd.AddCommand(newPrepareCommand(c))
	cmd.AddCommand(newFitScalerCommand(c))
	cmd.AddCommand(newInspectCommand(c))

	return cmd
}

// setup loads configuration and initializes the global logger.
func (c *cli) setup(cmd *cobra.Command) error {
	ctx := cmd.Context()
	var (
		cfg *config.Config
		err error
	)
	if c.configPath != "" {
		cfg, err = config.LoadFile(ctx, c.configPath)
	} else {
		cfg, err = config.Load(ctx)
	}
	if err != nil {
		return err
	}
	if c.logLevel != "" {
		cfg.LogLevel = c.logLevel
	}
	if c.logFormat != "" {
		cfg.LogFormat = c.logFormat
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat), logger.WithWriter(cmd.ErrOrStderr())); err != nil {
		return fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		return fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
	}

	c.cfg = cfg
	c.log = logger.Get().Named("cli")
	return nil
}

// pipeline builds a pipeline from the loaded configuration.
func (c *cli) pipeline(opts ...app.Option) *app.Pipeline {
	base := append(app.FromConfig(c.cfg), app.WithLogger(logger.Get().Named("pipeline")))
	return app.New(append(base, opts...)...)
}

// finish samples system metrics and writes the metrics textfile if configured.
func (c *cli) finish(ctx context.Context) {
	if c.cfg == nil || c.cfg.MetricsFile == "" {
		return
	}
	metrics.UpdateSystemMetrics()
	if err := metrics.WriteTextfile(c.cfg.MetricsFile); err != nil {
		c.log.Warn(ctx, "metrics textfile not written", logger.String("path", c.cfg.MetricsFile), logger.Error(err))
	}
}

func (f *inputFlags) register(cmd *cobra.Command, needSignal bool) {
	cmd.Flags().StringVar(&f.model, "model", "", "model directory holding config.yaml, scalers and networks")
	cmd.Flags().StringVar(&f.format, "format", string(source.FormatL1Ntuple), "input format: l1ntuple, h5-signal, h5-background")
	cmd.Flags().StringVar(&f.background, "background", "", "background input file or directory")
	cmd.Flags().StringVar(&f.backgroundDataset, "background-dataset", "", "HDF5 dataset name of the background input")
	if needSignal {
		cmd.Flags().StringVar(&f.signal, "signal", "", "signal input file or directory")
		cmd.Flags().StringVar(&f.signalDataset, "signal-dataset", "", "HDF5 dataset name of the signal input")
	}
	_ = cmd.MarkFlagRequired("model")
}

// inputs turns the flags into pipeline inputs. The h5 formats pick the signal
// or background variant from the label.
func (f *inputFlags) inputs() ([]app.Input, error) {
	format, err := source.ParseFormat(f.format)
	if err != nil {
		return nil, err
	}
	var out []app.Input
	if f.signal != "" {
		in := app.Input{Label: types.LabelSignal, Format: format, Path: f.signal, Dataset: f.signalDataset}
		if format == source.FormatH5Background {
			in.Format = source.FormatH5Signal
		}
		out = append(out, in)
	}
	if f.background != "" {
		in := app.Input{Label: types.LabelBackground, Format: format, Path: f.background, Dataset: f.backgroundDataset}
		if format == source.FormatH5Signal {
			in.Format = source.FormatH5Background
		}
		out = append(out, in)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: at least one of --signal or --background is required", types.ErrConfiguration)
	}
	return out, nil
}

func execute(ctx context.Context, args []string) error {
	c := &cli{}
	root := newRootCommand(c)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	c.finish(ctx)
	if err != nil && c.log != nil {
		c.log.Error(ctx, "command failed", logger.Error(err))
	}
	return err
}
