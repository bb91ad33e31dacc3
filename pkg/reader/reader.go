// Package reader is the callable surface of the engine: it opens byte
// sources, drives the indexer and type inferrer, and binds lazy columns
// into a Table.
package reader

import (
	"context"

	"go.uber.org/zap"

	"github.com/ajitpratap0/tabular/pkg/column"
	"github.com/ajitpratap0/tabular/pkg/config"
	"github.com/ajitpratap0/tabular/pkg/errors"
	"github.com/ajitpratap0/tabular/pkg/index"
	"github.com/ajitpratap0/tabular/pkg/locale"
	"github.com/ajitpratap0/tabular/pkg/logger"
	"github.com/ajitpratap0/tabular/pkg/progress"
	"github.com/ajitpratap0/tabular/pkg/source"
)

// Read opens path and decodes it into a Table. The Table owns the
// underlying byte region; Close it when done.
func Read(ctx context.Context, path string, cfg *config.ReadConfig) (*column.Table, error) {
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

	table, err := readRegion(ctx, region, cfg, logger.Get().With(zap.String("file", path)))
	if err != nil {
		region.Close()
		return nil, err
	}
	return table, nil
}

// ReadRegion decodes an already-open byte region. The Table takes over the
// region's reference.
func ReadRegion(ctx context.Context, region source.Region, cfg *config.ReadConfig) (*column.Table, error) {
	if cfg == nil {
		cfg = config.NewReadConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return readRegion(ctx, region, cfg, logger.Get())
}

func readRegion(ctx context.Context, region source.Region, cfg *config.ReadConfig, log *zap.Logger) (*column.Table, error) {
	tracker := progress.NewTracker(cfg.Progress, region.Len())

	idx, err := index.Build(ctx, region, index.Options{
		Delim:           cfg.Delim,
		Quote:           cfg.Quote,
		EscapeDouble:    cfg.EscapeDouble,
		EscapeBackslash: cfg.EscapeBackslash,
		TrimWS:          cfg.TrimWS,
		Comment:         cfg.Comment,
		Skip:            cfg.Skip,
		NMax:            cfg.NMax,
		HasHeader:       cfg.HasHeader,
		ColNames:        cfg.ColNames,
		NumThreads:      cfg.NumThreads,
		Logger:          log,
		Progress:        tracker,
	})
	if err != nil {
		return nil, err
	}

	return bindTable(idx, region, cfg, readParams(cfg, cfg.Quote), log)
}

// readParams translates the config into the per-cell read settings
func readParams(cfg *config.ReadConfig, quote byte) column.ReadParams {
	nas := make([][]byte, len(cfg.NAStrings))
	for i, na := range cfg.NAStrings {
		nas[i] = []byte(na)
	}
	return column.ReadParams{
		Quote:           quote,
		EscapeDouble:    cfg.EscapeDouble,
		EscapeBackslash: cfg.EscapeBackslash,
		TrimWS:          cfg.TrimWS,
		NAStrings:       nas,
	}
}

// assignedTypes resolves ColTypes against the index's names, failing on
// names the file does not have
func assignedTypes(idx *index.Index, cfg *config.ReadConfig) ([]column.Type, error) {
	assigned := make([]column.Type, idx.Columns())
	if len(cfg.ColTypes) == 0 {
		return assigned, nil
	}

	byName := make(map[string]int, idx.Columns())
	for i, name := range idx.Names() {
		byName[name] = i
	}
	for name, typ := range cfg.ColTypes {
		pos, ok := byName[name]
		if !ok {
			return nil, errors.Newf(errors.KindUnknownColumn, "col_types names unknown column %q", name)
		}
		assigned[pos] = typ
	}
	return assigned, nil
}

// selectColumns resolves col_select into (source position, result name)
// pairs, preserving selection order. An empty selection keeps every column.
func selectColumns(idx *index.Index, cfg *config.ReadConfig) ([]int, []string, error) {
	names := idx.Names()
	if len(cfg.ColSelect) == 0 {
		positions := make([]int, len(names))
		for i := range positions {
			positions[i] = i
		}
		return positions, names, nil
	}

	byName := make(map[string]int, len(names))
	for i, name := range names {
		byName[name] = i
	}

	positions := make([]int, 0, len(cfg.ColSelect))
	outNames := make([]string, 0, len(cfg.ColSelect))
	for _, sel := range cfg.ColSelect {
		var pos int
		switch {
		case sel.Name != "":
			p, ok := byName[sel.Name]
			if !ok {
				return nil, nil, errors.Newf(errors.KindUnknownColumn, "col_select names unknown column %q", sel.Name)
			}
			pos = p
		default:
			if sel.Index < 1 || sel.Index > len(names) {
				return nil, nil, errors.Newf(errors.KindUnknownColumn, "col_select position %d outside 1..%d", sel.Index, len(names))
			}
			pos = sel.Index - 1
		}
		name := names[pos]
		if sel.Rename != "" {
			name = sel.Rename
		}
		positions = append(positions, pos)
		outNames = append(outNames, name)
	}
	return positions, outNames, nil
}

// bindTable runs inference and assembles lazy columns over one region
func bindTable(idx *index.Index, region source.Region, cfg *config.ReadConfig, params column.ReadParams, log *zap.Logger) (*column.Table, error) {
	assigned, err := assignedTypes(idx, cfg)
	if err != nil {
		return nil, err
	}

	loc := cfg.Locale
	if loc == nil {
		loc = locale.Default()
	}
	types := column.Infer(idx, region, assigned, column.InferOptions{
		GuessMax: cfg.GuessMax,
		Locale:   loc,
		Params:   params,
	})

	positions, outNames, err := selectColumns(idx, cfg)
	if err != nil {
		return nil, err
	}

	// indexing scans sequentially; cell reads from here on are random
	region.Advise(source.AdviceRandom)

	problems := column.NewProblemLog()
	cols := make([]column.Column, 0, len(positions))
	for i, pos := range positions {
		if types[pos].Kind == column.Skip {
			continue
		}
		cols = append(cols, column.NewLazy(outNames[i], types[pos], idx, region, pos, 0, params, loc, problems))
	}

	table := column.NewTable(cols, idx.Rows(), problems, []source.Region{region})
	table.AddProblems(idx.Problems())

	log.Debug("table bound",
		zap.Int64("rows", idx.Rows()),
		zap.Int("columns", len(cols)),
		zap.Int("index_problems", len(idx.Problems())))
	return table, nil
}
