// Package app wires the record readers, the dataset assembler and the scorer
// into one run over a model directory.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/okian/trigml/internal/adapters/export"
	"github.com/okian/trigml/internal/adapters/inference"
	"github.com/okian/trigml/internal/adapters/inference/tensorflow"
	"github.com/okian/trigml/internal/adapters/source"
	"github.com/okian/trigml/internal/adapters/source/ntuple"
	"github.com/okian/trigml/internal/config"
	"github.com/okian/trigml/internal/domain/dataset"
	"github.com/okian/trigml/internal/domain/dedupe"
	"github.com/okian/trigml/internal/domain/model"
	"github.com/okian/trigml/internal/domain/scaler"
	"github.com/okian/trigml/internal/domain/scoring"
	"github.com/okian/trigml/internal/domain/types"
	"github.com/okian/trigml/pkg/logger"
	"github.com/okian/trigml/pkg/metrics"
)

// Input names one labeled source of events.
type Input struct {
	Label  types.Label
	Format source.Format
	Path   string
	// Dataset is the HDF5 dataset name; required for signal h5 files.
	Dataset string
}

// ReaderFactory builds the reader of a format.
type ReaderFactory func(format source.Format, opts ...source.Option) (source.Reader, error)

// ModelLoader opens the per-fold models of a model directory.
type ModelLoader interface {
	Load(ctx context.Context, dir string, fold int) (scoring.Model, error)
	LoadAll(ctx context.Context, dir string, folds int) ([]scoring.Model, error)
}

// NtupleLayout overrides where the ntuple reader finds its trees and
// branches. Empty fields keep the reader defaults; EventTree set to
// config.NoEventTree disables event ids.
type NtupleLayout struct {
	UpgradeTree string
	UGTTree     string
	EventTree   string
	// Branches maps snake_case branch keys such as "jet_et" to branch names.
	Branches map[string]string
}

// TensorFlowBinding names the SavedModel tags and the input and output
// tensors of TensorFlow exports. Empty fields keep the backend defaults.
type TensorFlowBinding struct {
	Tags   []string
	Input  string
	Output string
}

// Result is the outcome of a scoring run. Scores, Fired and Rows are aligned
// with Dataset.Y.
type Result struct {
	RunID   string
	Dataset *dataset.Dataset
	Scores  []float64
	Fired   []bool
	Rows    []export.Row
}

// Pipeline runs load, assemble and score steps with one configuration.
type Pipeline struct {
	runID      string
	workers    int
	batchSize  int
	threshold  float64
	mode       string
	foldPolicy string
	dedupe     bool
	dedupeSize int
	bits       map[string]int
	ntuple     NtupleLayout
	tf         TensorFlowBinding
	readers    ReaderFactory
	models     ModelLoader

	logger logger.Logger
}

// New constructs a Pipeline with defaults taken from config.New.
func New(opts ...Option) *Pipeline {
	def := config.New(context.Background())
	p := &Pipeline{
		runID:      uuid.NewString(),
		workers:    def.Workers,
		batchSize:  def.BatchSize,
		threshold:  def.Threshold,
		mode:       def.Mode,
		foldPolicy: def.FoldPolicy,
		readers:    source.New,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logger.Get().Named("pipeline")
	}
	p.logger = p.logger.With(logger.String("run_id", p.runID))
	if p.models == nil {
		p.models = inference.New(
			inference.WithTensorFlow(
				tensorflow.WithTags(p.tf.Tags...),
				tensorflow.WithInput(p.tf.Input),
				tensorflow.WithOutput(p.tf.Output),
			),
			inference.WithLogger(p.logger.Named("inference")),
		)
	}
	return p
}

// FromConfig returns the options matching cfg.
func FromConfig(cfg *config.Config) []Option {
	return []Option{
		WithWorkers(cfg.Workers),
		WithBatchSize(cfg.BatchSize),
		WithThreshold(cfg.Threshold),
		WithMode(cfg.Mode),
		WithFoldPolicy(cfg.FoldPolicy),
		WithDedupe(cfg.Dedupe, cfg.DedupeSize),
		WithUnprescaledBits(cfg.UnprescaledBits),
		WithNtupleLayout(NtupleLayout{
			UpgradeTree: cfg.NtupleUpgradeTree,
			UGTTree:     cfg.NtupleUGTTree,
			EventTree:   cfg.NtupleEventTree,
			Branches:    cfg.NtupleBranches,
		}),
		WithTensorFlow(TensorFlowBinding{Tags: cfg.TFTags, Input: cfg.TFInput, Output: cfg.TFOutput}),
	}
}

// RunID returns the identifier attached to every log line of the run.
func (p *Pipeline) RunID() string {
	return p.runID
}

// Load reads every input into a batch keyed by its label.
func (p *Pipeline) Load(ctx context.Context, inputs []Input) (dataset.Sources, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: no inputs", types.ErrConfiguration)
	}
	nopts, err := p.ntupleOptions()
	if err != nil {
		return nil, err
	}
	p.logger.Debug(ctx, "loading inputs", logger.Int("inputs", len(inputs)), logger.Any("unprescaled_bits", p.bits))

	sources := make(dataset.Sources, len(inputs))
	for _, in := range inputs {
		if _, err := types.ParseLabel(string(in.Label)); err != nil {
			return nil, err
		}
		if _, dup := sources[in.Label]; dup {
			return nil, fmt.Errorf("%w: label %q given twice", types.ErrConfiguration, in.Label)
		}

		reader, err := p.readers(in.Format,
			source.WithDataset(in.Dataset),
			source.WithBits(p.bits),
			source.WithNtupleOptions(nopts...),
			source.WithLogger(p.logger),
		)
		if err != nil {
			return nil, err
		}
		popts := []source.PoolOption{source.WithWorkers(p.workers), source.WithPoolLogger(p.logger)}
		if p.dedupe {
			popts = append(popts, source.WithDeduper(dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(p.dedupeSize))))
		}

		b, err := source.NewPool(reader, in.Format, popts...).Load(ctx, string(in.Label), in.Path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", in.Label, err)
		}
		sources[in.Label] = b
	}
	return sources, nil
}

func (p *Pipeline) ntupleOptions() ([]ntuple.Option, error) {
	opts := []ntuple.Option{
		ntuple.WithUpgradeTree(p.ntuple.UpgradeTree),
		ntuple.WithUGTTree(p.ntuple.UGTTree),
	}
	switch p.ntuple.EventTree {
	case "":
	case config.NoEventTree:
		opts = append(opts, ntuple.WithEventTree(""))
	default:
		opts = append(opts, ntuple.WithEventTree(p.ntuple.EventTree))
	}
	if len(p.ntuple.Branches) > 0 {
		b, err := ntuple.DefaultBranches().Override(p.ntuple.Branches)
		if err != nil {
			return nil, err
		}
		opts = append(opts, ntuple.WithBranches(b))
	}
	return opts, nil
}

// Prepare loads the inputs and assembles them against the model directory.
func (p *Pipeline) Prepare(ctx context.Context, dir string, inputs []Input) (*dataset.Dataset, error) {
	sources, err := p.Load(ctx, inputs)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	ds, err := dataset.Assemble(ctx, dir, sources)
	if err != nil {
		metrics.RecordErrorByComponent("dataset", "assemble")
		return nil, err
	}
	metrics.RecordShapingLatency(float64(time.Since(start).Milliseconds()))
	for _, b := range ds.Blocks {
		metrics.RecordRowsShaped(string(b.Label), b.Rows)
	}

	p.logger.Info(ctx, "dataset assembled",
		logger.String("kind", ds.Config.Kind.String()),
		logger.Int("rows", ds.X.Rows),
		logger.Int("features", ds.X.Cols),
		logger.Int("folds", len(ds.Folds)),
	)
	return ds, nil
}

// Score prepares the dataset, scores it and applies the threshold decision.
func (p *Pipeline) Score(ctx context.Context, dir string, inputs []Input) (*Result, error) {
	if err := p.checkDecision(); err != nil {
		return nil, err
	}
	ds, err := p.Prepare(ctx, dir, inputs)
	if err != nil {
		return nil, err
	}

	scorer := scoring.NewScorer(scoring.WithBatchSize(p.batchSize), scoring.WithLogger(p.logger.Named("scoring")))
	scores, err := p.infer(ctx, dir, scorer, ds)
	if err != nil {
		return nil, err
	}

	fired, err := scoring.Decide(scores, p.threshold, p.mode)
	if err != nil {
		return nil, err
	}
	rows, err := export.Rows(ds.Blocks, scores, fired)
	if err != nil {
		return nil, err
	}

	i := 0
	for _, b := range ds.Blocks {
		n := 0
		for _, f := range fired[i : i+b.Rows] {
			if f {
				n++
			}
		}
		metrics.RecordDecisionsFired(string(b.Label), n)
		p.logger.Info(ctx, "decisions",
			logger.String("label", string(b.Label)),
			logger.Int("rows", b.Rows),
			logger.Int("fired", n),
		)
		i += b.Rows
	}

	return &Result{RunID: p.runID, Dataset: ds, Scores: scores, Fired: fired, Rows: rows}, nil
}

// checkDecision rejects a bad mode or fold policy before any input is read.
func (p *Pipeline) checkDecision() error {
	if _, err := scoring.ParseMode(p.mode); err != nil {
		return err
	}
	if p.foldPolicy == config.EnsemblePolicy {
		return nil
	}
	_, err := dataset.ParseFoldPolicy(p.foldPolicy)
	return err
}

func (p *Pipeline) infer(ctx context.Context, dir string, scorer *scoring.Scorer, ds *dataset.Dataset) ([]float64, error) {
	if p.foldPolicy == config.EnsemblePolicy {
		models, err := p.models.LoadAll(ctx, dir, ds.Config.Folds)
		if err != nil {
			return nil, err
		}
		defer p.release(ctx, models...)
		return scorer.ScoreFolds(ctx, models, ds.Folds)
	}

	policy, err := dataset.ParseFoldPolicy(p.foldPolicy)
	if err != nil {
		return nil, err
	}
	x, err := ds.Select(policy)
	if err != nil {
		return nil, err
	}
	m, err := p.models.Load(ctx, dir, policy.Fold())
	if err != nil {
		return nil, err
	}
	defer p.release(ctx, m)
	return scorer.Score(ctx, m, x)
}

func (p *Pipeline) release(ctx context.Context, models ...scoring.Model) {
	if err := inference.Close(models...); err != nil {
		p.logger.Warn(ctx, "closing models", logger.Error(err))
	}
}

// FitScalers shapes the inputs with the model configuration and writes one
// fitted scaler per fold into dir.
func (p *Pipeline) FitScalers(ctx context.Context, dir string, inputs []Input) ([]*scaler.Standard, error) {
	cfg, err := model.Load(ctx, dir)
	if err != nil {
		return nil, err
	}
	sources, err := p.Load(ctx, inputs)
	if err != nil {
		return nil, err
	}
	x, _, _, err := dataset.Shape(cfg, sources)
	if err != nil {
		return nil, err
	}
	scalers, err := scaler.FitFolds(x, cfg.Folds)
	if err != nil {
		return nil, err
	}
	for f, s := range scalers {
		if err := s.Save(dir, f); err != nil {
			return nil, fmt.Errorf("fold %d: %w", f, err)
		}
	}
	p.logger.Info(ctx, "scalers written",
		logger.String("dir", dir),
		logger.Int("folds", len(scalers)),
		logger.Int("rows", x.Rows),
		logger.Int("features", x.Cols),
	)
	return scalers, nil
}

// Inspect loads and logs the model configuration together with the
// availability of each fold's scaler and network.
func (p *Pipeline) Inspect(ctx context.Context, dir string) (model.Config, error) {
	cfg, err := model.Load(ctx, dir)
	if err != nil {
		return model.Config{}, err
	}
	p.logger.Info(ctx, "model",
		logger.String("dir", dir),
		logger.String("kind", cfg.Kind.String()),
		logger.Int("folds", cfg.Folds),
		logger.Int("n_jets", cfg.NJets),
		logger.Int("n_muons", cfg.NMuons),
		logger.Int("n_egammas", cfg.NEgammas),
	)
	for f := 0; f < cfg.Folds; f++ {
		_, serr := scaler.Load(ctx, dir, f)
		format, _, nerr := inference.Detect(dir, f)
		p.logger.Info(ctx, "fold",
			logger.Int("fold", f),
			logger.Bool("scaler", serr == nil),
			logger.Bool("network", nerr == nil),
			logger.String("format", string(format)),
		)
	}
	return cfg, nil
}
