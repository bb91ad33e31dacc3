package reader

import (
	"context"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/tabular/pkg/column"
	"github.com/ajitpratap0/tabular/pkg/config"
	"github.com/ajitpratap0/tabular/pkg/errors"
	"github.com/ajitpratap0/tabular/pkg/index"
	"github.com/ajitpratap0/tabular/pkg/locale"
	"github.com/ajitpratap0/tabular/pkg/logger"
	"github.com/ajitpratap0/tabular/pkg/progress"
	"github.com/ajitpratap0/tabular/pkg/source"
)

// filePart is one file's region and index within a multi-file read
type filePart struct {
	path   string
	region source.Region
	idx    *index.Index
}

// ReadFiles decodes several files sharing one configuration into a single
// logical Table. All files must agree on column count, and on header names
// unless the configuration overrides names wholesale. When
// cfg.IDColumnName is set, a synthetic leading column carries each row's
// source path.
func ReadFiles(ctx context.Context, paths []string, cfg *config.ReadConfig) (*column.Table, error) {
	if len(paths) == 0 {
		return nil, errors.New(errors.KindConfig, "no input files")
	}
	if len(paths) == 1 && (cfg == nil || cfg.IDColumnName == "") {
		return Read(ctx, paths[0], cfg)
	}
	if cfg == nil {
		cfg = config.NewReadConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := logger.Get()
	parts := make([]filePart, len(paths))

	// each file indexes concurrently; the per-file indexer parallelizes
	// its own chunks on top
	g, gctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		g.Go(func() error {
			region, err := source.Open(path, cfg.ConnectionSize)
			if err != nil {
				return err
			}
			tracker := progress.NewTracker(cfg.Progress, region.Len())
			idx, err := index.Build(gctx, region, index.Options{
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
				Logger:          log.With(zap.String("file", path)),
				Progress:        tracker,
			})
			if err != nil {
				region.Close()
				return err
			}
			parts[i] = filePart{path: path, region: region, idx: idx}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		closeParts(parts)
		return nil, err
	}

	if err := verifySchemas(parts, len(cfg.ColNames) > 0); err != nil {
		closeParts(parts)
		return nil, err
	}

	table, err := bindMultiTable(parts, cfg, log)
	if err != nil {
		closeParts(parts)
		return nil, err
	}
	return table, nil
}

func closeParts(parts []filePart) {
	for _, part := range parts {
		if part.region != nil {
			part.region.Close()
		}
	}
}

// verifySchemas checks that every file agrees with the first on column
// count and, unless names were overridden, on header names. All
// disagreements are reported together.
func verifySchemas(parts []filePart, namesOverridden bool) error {
	first := parts[0].idx
	var merr *multierror.Error
	for _, part := range parts[1:] {
		if part.idx.Columns() != first.Columns() {
			merr = multierror.Append(merr, errors.Newf(errors.KindSchemaMismatch,
				"%s has %d columns, expected %d", part.path, part.idx.Columns(), first.Columns()).
				WithDetail("file", part.path))
			continue
		}
		if namesOverridden {
			continue
		}
		for c, name := range part.idx.Names() {
			if name != first.Names()[c] {
				merr = multierror.Append(merr, errors.Newf(errors.KindSchemaMismatch,
					"%s column %d is named %q, expected %q", part.path, c+1, name, first.Names()[c]).
					WithDetail("file", part.path))
			}
		}
	}
	if merr != nil {
		return errors.Wrap(merr.ErrorOrNil(), errors.KindSchemaMismatch, "input files disagree on schema")
	}
	return nil
}

// bindMultiTable infers types on the first file, then binds every file's
// columns and stitches them in file order
func bindMultiTable(parts []filePart, cfg *config.ReadConfig, log *zap.Logger) (*column.Table, error) {
	first := parts[0]
	params := readParams(cfg, cfg.Quote)

	assigned, err := assignedTypes(first.idx, cfg)
	if err != nil {
		return nil, err
	}
	loc := cfg.Locale
	if loc == nil {
		loc = locale.Default()
	}
	types := column.Infer(first.idx, first.region, assigned, column.InferOptions{
		GuessMax: cfg.GuessMax,
		Locale:   loc,
		Params:   params,
	})

	positions, outNames, err := selectColumns(first.idx, cfg)
	if err != nil {
		return nil, err
	}

	problems := column.NewProblemLog()
	regions := make([]source.Region, len(parts))
	rowBases := make([]int64, len(parts))
	var totalRows int64
	for i, part := range parts {
		part.region.Advise(source.AdviceRandom)
		regions[i] = part.region
		rowBases[i] = totalRows
		totalRows += part.idx.Rows()
	}

	cols := make([]column.Column, 0, len(positions)+1)
	if cfg.IDColumnName != "" {
		idParts := make([]column.Column, len(parts))
		for i, part := range parts {
			idParts[i] = column.NewConst(cfg.IDColumnName, part.path, part.idx.Rows())
		}
		cols = append(cols, column.NewConcat(cfg.IDColumnName, column.Type{Kind: column.Character}, idParts))
	}

	for i, pos := range positions {
		if types[pos].Kind == column.Skip {
			continue
		}
		fileCols := make([]column.Column, len(parts))
		for j, part := range parts {
			fileCols[j] = column.NewLazy(outNames[i], types[pos], part.idx, part.region, pos, rowBases[j], params, loc, problems)
		}
		cols = append(cols, column.NewConcat(outNames[i], types[pos], fileCols))
	}

	table := column.NewTable(cols, totalRows, problems, regions)
	for i, part := range parts {
		for _, prob := range part.idx.Problems() {
			prob.Row += rowBases[i]
			table.AddProblems([]errors.Problem{prob})
		}
	}

	log.Debug("multi-file table bound",
		zap.Int("files", len(parts)),
		zap.Int64("rows", totalRows),
		zap.Int("columns", len(cols)))
	return table, nil
}
