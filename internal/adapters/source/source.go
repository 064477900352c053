// Package source loads event batches from detector-level input files.
package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/okian/trigml/internal/adapters/source/h5"
	"github.com/okian/trigml/internal/adapters/source/ntuple"
	"github.com/okian/trigml/internal/domain/event"
	"github.com/okian/trigml/internal/domain/types"
	"github.com/okian/trigml/pkg/logger"
)

// Format names an input file format.
type Format string

// Supported formats.
const (
	FormatL1Ntuple     Format = "l1ntuple"
	FormatH5Signal     Format = "h5-signal"
	FormatH5Background Format = "h5-background"
	FormatNanoAOD      Format = "nanoaod"
)

// Ext returns the file extension used when a directory is expanded.
func (f Format) Ext() string {
	switch f {
	case FormatH5Signal, FormatH5Background:
		return ".h5"
	default:
		return ".root"
	}
}

// ParseFormat maps a format name to a Format. NanoAOD is recognized but has
// no reader.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatL1Ntuple, FormatH5Signal, FormatH5Background:
		return f, nil
	case FormatNanoAOD:
		return "", fmt.Errorf("%w: %s has no reader", types.ErrUnsupportedFormat, f)
	default:
		return "", fmt.Errorf("%w: %q", types.ErrUnsupportedFormat, s)
	}
}

// Reader decodes one input file.
type Reader interface {
	Read(ctx context.Context, path string) (*event.Batch, error)
}

// New returns the reader for format.
func New(format Format, opts ...Option) (Reader, error) {
	o := options{logger: logger.Get().Named("source")}
	for _, opt := range opts {
		opt(&o)
	}

	switch format {
	case FormatL1Ntuple:
		nopts := []ntuple.Option{ntuple.WithBits(o.bits), ntuple.WithLogger(o.logger.Named("ntuple"))}
		nopts = append(nopts, o.ntuple...)
		return ntuple.New(nopts...), nil
	case FormatH5Signal:
		if o.dataset == "" {
			return nil, fmt.Errorf("%w: %s needs a signal dataset name", types.ErrConfiguration, format)
		}
		return h5.New(o.dataset, h5.WithLogger(o.logger.Named("h5"))), nil
	case FormatH5Background:
		return h5.New(o.dataset, h5.WithLogger(o.logger.Named("h5"))), nil
	case FormatNanoAOD:
		return nil, fmt.Errorf("%w: %s has no reader", types.ErrUnsupportedFormat, format)
	default:
		return nil, fmt.Errorf("%w: %q", types.ErrUnsupportedFormat, string(format))
	}
}

// Discover expands path into the sorted list of input files. A directory
// yields its entries with the given extension; a file yields itself.
func Discover(path, ext string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrConfiguration, err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrConfiguration, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ext) {
			continue
		}
		files = append(files, filepath.Join(path, e.Name()))
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no %s files in %s", types.ErrConfiguration, ext, path)
	}
	sort.Strings(files)
	return files, nil
}
