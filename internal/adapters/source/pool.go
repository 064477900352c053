package source

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/trigml/internal/domain/dedupe"
	"github.com/okian/trigml/internal/domain/event"
	"github.com/okian/trigml/pkg/logger"
	"github.com/okian/trigml/pkg/metrics"
)

// Pool decodes input files concurrently and merges them in path order.
type Pool struct {
	reader  Reader
	format  Format
	workers int
	deduper dedupe.Deduper
	logger  logger.Logger
}

// NewPool creates a pool reading files of format with reader.
func NewPool(reader Reader, format Format, opts ...PoolOption) *Pool {
	p := &Pool{
		reader:  reader,
		format:  format,
		workers: runtime.NumCPU(),
		logger:  logger.Get().Named("source-pool"),
	}
	for _, opt := range opts {
		opt(p)
	}
	metrics.UpdateWorkerCount(p.workers)
	return p
}

// Load discovers the files under path and reads them into one batch tagged
// with sample. Any file error aborts the load; no partial batch is returned.
func (p *Pool) Load(ctx context.Context, sample, path string) (*event.Batch, error) {
	files, err := Discover(path, p.format.Ext())
	if err != nil {
		return nil, err
	}
	return p.LoadFiles(ctx, sample, files)
}

// LoadFiles reads files in parallel and appends the results in the given
// order. When a deduper is set, repeated event ids are dropped keeping the
// first occurrence in that order.
func (p *Pool) LoadFiles(ctx context.Context, sample string, files []string) (*event.Batch, error) {
	start := time.Now()
	parts := make([]*event.Batch, len(files))
	p.logger.Debug(ctx, "reading sample", logger.String("sample", sample), logger.Strings("files", files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, path := range files {
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			metrics.IncWorkerActive()
			defer metrics.DecWorkerActive()

			readStart := time.Now()
			b, err := p.reader.Read(gctx, path)
			if err != nil {
				metrics.RecordErrorByComponent("source", "read_error")
				return fmt.Errorf("read %s: %w", path, err)
			}
			metrics.RecordFileRead(string(p.format))
			metrics.RecordFileReadLatency(float64(time.Since(readStart).Milliseconds()))
			parts[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		p.logger.Error(ctx, "load failed", logger.String("sample", sample), logger.Error(err))
		return nil, err
	}

	out := event.NewBatch(sample)
	for i, b := range parts {
		if err := out.Append(b); err != nil {
			return nil, fmt.Errorf("merge %s: %w", files[i], err)
		}
	}

	dropped := 0
	if p.deduper != nil {
		out, dropped = dedupe.Filter(p.deduper, out)
		out.Info.Sample = sample
		metrics.RecordDuplicatesDropped(dropped)
	}
	metrics.RecordEventsRead(sample, out.Len())

	p.logger.Info(ctx, "sample loaded",
		logger.String("sample", sample),
		logger.Int("files", len(files)),
		logger.Int("events", out.Len()),
		logger.Int("duplicates", dropped),
		logger.Duration("elapsed", time.Since(start)),
	)
	return out, nil
}
