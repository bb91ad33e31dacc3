package index

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/tabular/pkg/errors"
	"github.com/ajitpratap0/tabular/pkg/logger"
	"github.com/ajitpratap0/tabular/pkg/pool"
	"github.com/ajitpratap0/tabular/pkg/progress"
	"github.com/ajitpratap0/tabular/pkg/source"
)

// parallelThreshold is the minimum data size, in bytes, before the scan is
// partitioned across workers
const parallelThreshold = 64 * 1024

// Options configures a delimited scan
type Options struct {
	Delim           byte // 0 autoguesses from the leading sample
	Quote           byte // 0 disables quoting
	EscapeDouble    bool
	EscapeBackslash bool
	TrimWS          bool
	Comment         byte // 0 disables comment lines
	Skip            int
	NMax            int64 // negative means unbounded
	HasHeader       bool

	// ColNames overrides the header-derived names. When set with
	// HasHeader, the header record is still consumed but its names are
	// discarded.
	ColNames []string

	NumThreads int
	Logger     *zap.Logger
	Progress   *progress.Tracker
}

func (o *Options) threads() int {
	if o.NumThreads > 0 {
		return o.NumThreads
	}
	return runtime.NumCPU()
}

func (o *Options) logger() *zap.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return logger.Nop()
}

func (o *Options) scanOptions() scanOptions {
	return scanOptions{
		delim:           o.Delim,
		quote:           o.Quote,
		escapeDouble:    o.EscapeDouble,
		escapeBackslash: o.EscapeBackslash,
		trimWS:          o.TrimWS,
		comment:         o.Comment,
	}
}

// prelude is the result of resolving skip lines, leading comments, the
// delimiter, and the header
type prelude struct {
	dataStart int
	headerLo  int64
	headerHi  int64
	names     []string
	cols      int
	delim     byte
}

// resolvePrelude consumes skip lines, leading comment and blank lines, and
// the header record, resolving the delimiter and the column count
func resolvePrelude(data []byte, opts *Options) (*prelude, error) {
	p := &prelude{delim: opts.Delim}
	pos := 0

	// skip physical lines, quote-aware
	for i := 0; i < opts.Skip && pos < len(data); i++ {
		next := safeStart(data, pos, len(data), opts.Quote, 0)
		if next < 0 {
			pos = len(data)
			break
		}
		pos = next
	}

	s := &scanner{data: data, opts: opts.scanOptions()}
	for pos < len(data) {
		next, skip := s.skippable(pos)
		if !skip {
			break
		}
		pos = next
	}

	if p.delim == 0 {
		if pos >= len(data) {
			// nothing to sample; an empty file has no delimiter to guess
			// and no records either, so any byte serves
			p.delim = ','
		} else {
			delim, err := guessDelim(data, pos, opts.Quote)
			if err != nil {
				return nil, err
			}
			p.delim = delim
		}
	}
	s.opts.delim = p.delim

	if opts.HasHeader && pos < len(data) {
		rec, err := s.scanRecord(pos)
		if err != nil {
			return nil, err
		}
		p.headerLo = int64(pos)
		p.headerHi = int64(rec.term)

		if len(opts.ColNames) > 0 {
			p.names = append([]string(nil), opts.ColNames...)
		} else {
			raw := make([]string, len(s.starts))
			for i, start := range s.starts {
				end := rec.term
				if i+1 < len(s.starts) {
					end = int(s.starts[i+1]) - 1
				}
				view, _ := CleanField(data[start:end], opts.Quote,
					opts.EscapeDouble, opts.EscapeBackslash, true)
				raw[i] = string(view)
			}
			p.names = dedupeNames(raw)
		}
		p.cols = len(p.names)
		pos = rec.next
		p.dataStart = pos
		return p, nil
	}

	p.dataStart = pos

	if len(opts.ColNames) > 0 {
		p.names = append([]string(nil), opts.ColNames...)
		p.cols = len(p.names)
		return p, nil
	}

	// headerless: the first data record fixes the column count
	if pos < len(data) {
		peek := &scanner{data: data, opts: s.opts}
		if _, err := peek.scanRecord(pos); err != nil {
			return nil, err
		}
		p.cols = len(peek.starts)
		p.names = syntheticNames(p.cols)
	}
	return p, nil
}

// Build scans region and publishes the Index. The region must stay retained
// for the life of the Index.
func Build(ctx context.Context, region source.Region, opts Options) (*Index, error) {
	data := region.Bytes()
	log := opts.logger()

	pre, err := resolvePrelude(data, &opts)
	if err != nil {
		return nil, err
	}

	x := &Index{
		columns:  pre.cols,
		names:    pre.names,
		headerLo: pre.headerLo,
		headerHi: pre.headerHi,
		delim:    pre.delim,
		quote:    opts.Quote,
		short:    make(map[int64]int),
		long:     make(map[int64]uint64),
	}

	if pre.cols == 0 || opts.NMax == 0 {
		x.offsets = []uint64{uint64(pre.dataStart)}
		x.trailingNewline = true
		return x, nil
	}

	span := len(data) - pre.dataStart
	threads := opts.threads()
	parallel := region.Mmapped() &&
		span > parallelThreshold &&
		threads > 1 &&
		!opts.EscapeBackslash

	var results []*chunkResult
	if parallel {
		results, err = scanParallel(ctx, data, pre, &opts, threads)
		if err != nil && !errors.IsKind(err, errors.KindCancelled) {
			// the parity heuristic can strand a worker mid-structure in
			// pathological files; the sequential scan is the arbiter
			log.Debug("parallel scan failed, falling back to sequential",
				zap.Error(err))
			results, err = scanSequential(ctx, data, pre, &opts)
		}
	} else {
		results, err = scanSequential(ctx, data, pre, &opts)
	}
	if err != nil {
		return nil, err
	}

	assemble(x, results, pre, &opts)

	log.Debug("index built",
		zap.Int64("rows", x.rows),
		zap.Int("columns", x.columns),
		zap.Bool("parallel", parallel),
		zap.Int("problems", len(x.problems)))

	progress.SafeAddRows(opts.Progress, x.rows)
	return x, nil
}

func scanSequential(ctx context.Context, data []byte, pre *prelude, opts *Options) ([]*chunkResult, error) {
	s := &scanner{data: data, opts: opts.scanOptions()}
	s.opts.delim = pre.delim

	var counter atomic.Int64
	res, err := s.scanChunk(ctx, pre.dataStart, len(data), pre.cols, opts.NMax, &counter)
	if err != nil {
		return nil, err
	}
	progress.SafeAddBytes(opts.Progress, int64(res.end-res.start))
	return []*chunkResult{res}, nil
}

// scanParallel partitions the data range across workers. Each worker
// locates a safe start from the accumulated quote parity of the chunks
// before it, then scans to the first record boundary past its chunk end.
// The driver validates that adjacent chunks met at the same boundary and
// rescans any chunk whose start the parity heuristic got wrong.
func scanParallel(ctx context.Context, data []byte, pre *prelude, opts *Options, threads int) ([]*chunkResult, error) {
	n := len(data)
	span := n - pre.dataStart
	chunkLen := span / threads

	starts := make([]int, threads)
	ends := make([]int, threads)
	for i := 0; i < threads; i++ {
		starts[i] = pre.dataStart + i*chunkLen
		ends[i] = pre.dataStart + (i+1)*chunkLen
	}
	ends[threads-1] = n

	// phase 1: per-chunk quote parity
	parities := make([]int, threads)
	var wg sync.WaitGroup
	for i := 0; i < threads; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			parities[i] = quoteParity(data, starts[i], ends[i], opts.Quote)
		}(i)
	}
	wg.Wait()

	entryParity := make([]int, threads)
	for i := 1; i < threads; i++ {
		entryParity[i] = entryParity[i-1] ^ parities[i-1]
	}

	// phase 2: scan each chunk from its safe start
	results := make([]*chunkResult, threads)
	var counter atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < threads; i++ {
		g.Go(func() error {
			from := starts[i]
			if i > 0 {
				from = safeStart(data, starts[i], ends[i], opts.Quote, entryParity[i])
				if from < 0 {
					// no record boundary in this chunk; the
					// predecessor's scan absorbs it
					return nil
				}
			}
			s := &scanner{data: data, opts: opts.scanOptions()}
			s.opts.delim = pre.delim
			res, err := s.scanChunk(gctx, from, ends[i], pre.cols, opts.NMax, &counter)
			if err != nil {
				return err
			}
			results[i] = res
			progress.SafeAddBytes(opts.Progress, int64(res.end-res.start))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// arbitration: adjacent chunks must agree on their shared boundary
	kept := make([]*chunkResult, 0, threads)
	expected := pre.dataStart
	for i := 0; i < threads; i++ {
		res := results[i]
		if res == nil {
			continue
		}
		if res.start != expected {
			if expected >= ends[i] {
				// the previous scan already covered this chunk
				continue
			}
			s := &scanner{data: data, opts: opts.scanOptions()}
			s.opts.delim = pre.delim
			redone, err := s.scanChunk(ctx, expected, ends[i], pre.cols, opts.NMax, &counter)
			if err != nil {
				return nil, err
			}
			res = redone
		}
		kept = append(kept, res)
		expected = res.end
	}
	if expected < n {
		s := &scanner{data: data, opts: opts.scanOptions()}
		s.opts.delim = pre.delim
		tail, err := s.scanChunk(ctx, expected, n, pre.cols, opts.NMax, &counter)
		if err != nil {
			return nil, err
		}
		kept = append(kept, tail)
	}
	return kept, nil
}

// assemble concatenates chunk results in order, renumbering chunk-relative
// rows, fixing ends across skipped-line gaps, and trimming to the row cap
func assemble(x *Index, results []*chunkResult, pre *prelude, opts *Options) {
	var total int64
	for _, res := range results {
		total += res.rows
	}

	offsets := make([]uint64, 0, total*int64(pre.cols)+1)
	lastTerm := -1
	lastEnd := pre.dataStart
	var rowBase int64
	trailingNewline := true
	nlSeen := false

	for _, res := range results {
		if res.leadingSkip && rowBase > 0 && lastTerm >= 0 {
			if _, ok := x.long[rowBase-1]; !ok {
				x.long[rowBase-1] = uint64(lastTerm)
			}
		}
		if res.rows == 0 {
			if res.end > lastEnd {
				lastEnd = res.end
			}
			continue
		}

		offsets = append(offsets, res.offsets...)
		pool.PutOffsetBuffer(res.offsets)
		for row, found := range res.short {
			x.short[rowBase+row] = found
		}
		for row, end := range res.long {
			x.long[rowBase+row] = end
		}
		for _, prob := range res.problems {
			prob.Row += rowBase
			x.problems = append(x.problems, prob)
		}
		if !nlSeen && res.sawNL {
			nlSeen = true
			x.crlf = res.crlf
		}
		if res.sawQuote {
			x.anyQuoted = true
		}

		rowBase += res.rows
		lastTerm = res.lastTerm
		lastEnd = res.end
		trailingNewline = !res.eofNoNL
	}

	x.rows = rowBase
	x.trailingNewline = trailingNewline

	// exact row cap, in file order
	if opts.NMax >= 0 && x.rows > opts.NMax {
		cut := opts.NMax * int64(pre.cols)
		sentinel := offsets[cut]
		offsets = append(offsets[:cut], sentinel)
		x.rows = opts.NMax
		x.trailingNewline = true
		for row := range x.short {
			if row >= opts.NMax {
				delete(x.short, row)
			}
		}
		for row := range x.long {
			if row >= opts.NMax {
				delete(x.long, row)
			}
		}
		trimmed := x.problems[:0]
		for _, prob := range x.problems {
			if prob.Row < opts.NMax {
				trimmed = append(trimmed, prob)
			}
		}
		x.problems = trimmed
	} else {
		offsets = append(offsets, uint64(lastEnd))
	}

	x.offsets = offsets
	errors.SortProblems(x.problems)
}
