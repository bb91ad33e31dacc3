package reader

import (
	"context"

	"go.uber.org/zap"

	"github.com/ajitpratap0/tabular/pkg/column"
	"github.com/ajitpratap0/tabular/pkg/config"
	"github.com/ajitpratap0/tabular/pkg/index"
	"github.com/ajitpratap0/tabular/pkg/logger"
	"github.com/ajitpratap0/tabular/pkg/progress"
	"github.com/ajitpratap0/tabular/pkg/source"
)

// ReadFixedWidth decodes a fixed-width file against layout. A nil layout
// infers column breaks from the leading lines' shared space columns.
func ReadFixedWidth(ctx context.Context, path string, layout *index.Layout, cfg *config.ReadConfig) (*column.Table, error) {
	if cfg == nil {
		cfg = config.NewReadConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	region, err := source.Open(path, cfg.ConnectionSize)
	if err != nil {
		return nil, err
	}

	table, err := readFixedWidthRegion(ctx, region, layout, cfg, logger.Get().With(zap.String("file", path)))
	if err != nil {
		region.Close()
		return nil, err
	}
	return table, nil
}

// ReadFixedWidthRegion decodes an already-open region as fixed-width data
func ReadFixedWidthRegion(ctx context.Context, region source.Region, layout *index.Layout, cfg *config.ReadConfig) (*column.Table, error) {
	if cfg == nil {
		cfg = config.NewReadConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return readFixedWidthRegion(ctx, region, layout, cfg, logger.Get())
}

func readFixedWidthRegion(ctx context.Context, region source.Region, layout *index.Layout, cfg *config.ReadConfig, log *zap.Logger) (*column.Table, error) {
	if layout == nil {
		inferred, err := index.InferLayout(region.Bytes(), 100)
		if err != nil {
			return nil, err
		}
		layout = inferred
	}

	tracker := progress.NewTracker(cfg.Progress, region.Len())
	idx, err := index.BuildFixedWidth(ctx, region, layout, index.FixedWidthOptions{
		Skip:      cfg.Skip,
		Comment:   cfg.Comment,
		NMax:      cfg.NMax,
		HasHeader: cfg.HasHeader,
		Logger:    log,
		Progress:  tracker,
	})
	if err != nil {
		return nil, err
	}

	// fixed-width fields carry no quoting; trimming stays per config,
	// defaulting on
	params := readParams(cfg, 0)
	return bindTable(idx, region, cfg, params, log)
}
