// Package writer formats rows into delimited output: chunks of rows are
// formatted by a worker pool into private buffers, then an emitter drains
// them in sequence-number order so output matches row order.
package writer

import (
	"container/heap"
	"context"
	"io"
	"os"
	"runtime"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/tabular/pkg/column"
	"github.com/ajitpratap0/tabular/pkg/compression"
	"github.com/ajitpratap0/tabular/pkg/config"
	"github.com/ajitpratap0/tabular/pkg/errors"
	"github.com/ajitpratap0/tabular/pkg/logger"
	"github.com/ajitpratap0/tabular/pkg/pool"
	"github.com/ajitpratap0/tabular/pkg/progress"
)

// defaultChunkRows is the rows formatted per chunk
const defaultChunkRows = 1 << 15

// RowSource supplies rows to the writer. Row must be safe to call from
// several goroutines at once; the worker pool formats chunks in parallel.
type RowSource interface {
	Names() []string
	RowCount() int64
	Row(row int64, dst []interface{})
}

// TableSource adapts a Table for writing
type TableSource struct {
	Table *column.Table
}

// Names returns the table's column names
func (s TableSource) Names() []string { return s.Table.Names() }

// RowCount returns the table's row count
func (s TableSource) RowCount() int64 { return s.Table.RowCount() }

// Row fills dst with the table's row
func (s TableSource) Row(row int64, dst []interface{}) {
	for c := range dst {
		dst[c] = s.Table.Get(c, row)
	}
}

// Types exposes the table's column types so temporal cells round-trip in
// their read layout
func (s TableSource) Types() []column.Type { return s.Table.Types() }

// SliceSource adapts in-memory rows for writing
type SliceSource struct {
	ColumnNames []string
	Rows        [][]interface{}
}

// Names returns the column names
func (s SliceSource) Names() []string { return s.ColumnNames }

// RowCount returns the row count
func (s SliceSource) RowCount() int64 { return int64(len(s.Rows)) }

// Row fills dst with row values
func (s SliceSource) Row(row int64, dst []interface{}) {
	copy(dst, s.Rows[row])
}

// typedSource lets a source expose column types so temporal values format
// back in their read layout
type typedSource interface {
	Types() []column.Type
}

// Write formats rows into the file at path. A recognized compression
// suffix wraps the sink with the matching encoder.
func Write(ctx context.Context, rows RowSource, path string, cfg *config.WriteConfig) error {
	if cfg == nil {
		cfg = config.NewWriteConfig()
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, errors.KindIO, "failed to create output file")
	}

	format := compression.Detect(path)
	sink, err := compression.NewWriter(file, format, compression.Default)
	if err != nil {
		file.Close()
		return err
	}

	writeErr := writeTo(ctx, rows, sink, cfg, logger.Get().With(zap.String("file", path)))
	if closeErr := sink.Close(); closeErr != nil && writeErr == nil {
		writeErr = errors.Wrap(closeErr, errors.KindCodec, "failed to finish compressed output")
	}
	if closeErr := file.Close(); closeErr != nil && writeErr == nil {
		writeErr = errors.Wrap(closeErr, errors.KindIO, "failed to close output file")
	}
	return writeErr
}

// WriteTo formats rows into an already-open sink. Bytes are forwarded
// untouched; the caller owns any compression wrapping.
func WriteTo(ctx context.Context, rows RowSource, sink io.Writer, cfg *config.WriteConfig) error {
	if cfg == nil {
		cfg = config.NewWriteConfig()
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	return writeTo(ctx, rows, sink, cfg, logger.Get())
}

// chunk is one formatted row range tagged for reassembly
type chunk struct {
	seq int
	buf []byte
}

// chunkHeap orders formatted chunks by sequence number
type chunkHeap []chunk

func (h chunkHeap) Len() int            { return len(h) }
func (h chunkHeap) Less(i, j int) bool  { return h[i].seq < h[j].seq }
func (h chunkHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *chunkHeap) Push(x interface{}) { *h = append(*h, x.(chunk)) }
func (h *chunkHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

func writeTo(ctx context.Context, rows RowSource, sink io.Writer, cfg *config.WriteConfig, log *zap.Logger) error {
	names := rows.Names()
	total := rows.RowCount()
	eol := cfg.EOL
	if eol == "" {
		eol = "\n"
	}

	var types []column.Type
	if ts, ok := rows.(typedSource); ok {
		types = ts.Types()
	}

	f := &formatter{cfg: cfg, eol: eol, types: types}
	tracker := progress.NewTracker(cfg.Progress, 0)

	if cfg.BOM {
		if _, err := sink.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
			return errors.Wrap(err, errors.KindIO, "failed to write BOM")
		}
	}

	if cfg.IncludeHeader && len(names) > 0 {
		head := pool.GlobalBufferPool.Get(256)
		var err error
		for c, name := range names {
			if c > 0 {
				head = append(head, cfg.Delim)
			}
			head, err = f.appendField(head, name, true)
			if err != nil {
				return err
			}
		}
		head = append(head, eol...)
		if _, err := sink.Write(head); err != nil {
			return errors.Wrap(err, errors.KindIO, "failed to write header")
		}
		pool.GlobalBufferPool.Put(head)
	}

	if total == 0 {
		return nil
	}

	chunkRows := int64(cfg.ChunkRows)
	if chunkRows <= 0 {
		chunkRows = defaultChunkRows
	}
	nChunks := int((total + chunkRows - 1) / chunkRows)

	threads := cfg.NumThreads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	if threads > nChunks {
		threads = nChunks
	}

	jobs := make(chan int, threads)
	formatted := make(chan chunk, threads)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(jobs)
		for seq := 0; seq < nChunks; seq++ {
			select {
			case jobs <- seq:
			case <-gctx.Done():
				return errors.Wrap(gctx.Err(), errors.KindCancelled, "write cancelled")
			}
		}
		return nil
	})

	workers, wctx := errgroup.WithContext(gctx)
	for i := 0; i < threads; i++ {
		workers.Go(func() error {
			values := make([]interface{}, len(names))
			for seq := range jobs {
				lo := int64(seq) * chunkRows
				hi := lo + chunkRows
				if hi > total {
					hi = total
				}
				buf, err := f.formatChunk(rows, lo, hi, values)
				if err != nil {
					return err
				}
				select {
				case formatted <- chunk{seq: seq, buf: buf}:
				case <-wctx.Done():
					return errors.Wrap(wctx.Err(), errors.KindCancelled, "write cancelled")
				}
			}
			return nil
		})
	}

	g.Go(func() error {
		defer close(formatted)
		return workers.Wait()
	})

	// the emitter reassembles chunk order before anything reaches the sink
	g.Go(func() error {
		var pending chunkHeap
		next := 0
		for ch := range formatted {
			heap.Push(&pending, ch)
			for pending.Len() > 0 && pending[0].seq == next {
				ready := heap.Pop(&pending).(chunk)
				if _, err := sink.Write(ready.buf); err != nil {
					return errors.Wrap(err, errors.KindIO, "failed to write chunk")
				}
				progress.SafeAddBytes(tracker, int64(len(ready.buf)))
				pool.GlobalBufferPool.Put(ready.buf)
				next++
			}
		}
		if pending.Len() > 0 {
			return errors.Newf(errors.KindInternal, "%d formatted chunks never emitted", pending.Len())
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	progress.SafeAddRows(tracker, total)
	log.Debug("write finished",
		zap.Int64("rows", total),
		zap.Int("chunks", nChunks))
	return nil
}

// formatter renders values under one write configuration
type formatter struct {
	cfg   *config.WriteConfig
	eol   string
	types []column.Type
}

// formatChunk renders rows [lo, hi) into a pooled buffer the emitter
// releases after writing
func (f *formatter) formatChunk(rows RowSource, lo, hi int64, values []interface{}) ([]byte, error) {
	buf := pool.GlobalBufferPool.Get(64 * 1024)
	var err error
	for row := lo; row < hi; row++ {
		rows.Row(row, values)
		for c, value := range values {
			if c > 0 {
				buf = append(buf, f.cfg.Delim)
			}
			buf, err = f.appendValue(buf, c, value)
			if err != nil {
				return nil, err
			}
		}
		buf = append(buf, f.eol...)
	}
	return buf, nil
}

// appendValue renders one cell, NA for nil
func (f *formatter) appendValue(buf []byte, col int, value interface{}) ([]byte, error) {
	if value == nil {
		return append(buf, f.cfg.NAString...), nil
	}

	switch v := value.(type) {
	case string:
		return f.appendField(buf, v, true)
	case bool:
		if v {
			return append(buf, "TRUE"...), nil
		}
		return append(buf, "FALSE"...), nil
	case int:
		return strconv.AppendInt(buf, int64(v), 10), nil
	case int64:
		return strconv.AppendInt(buf, v, 10), nil
	case float64:
		return strconv.AppendFloat(buf, v, 'g', -1, 64), nil
	case time.Time:
		return f.appendField(buf, v.Format(f.temporalLayout(col)), false)
	default:
		return nil, errors.Newf(errors.KindInternal, "unwritable value type %T", value)
	}
}

// temporalLayout picks the layout a temporal column writes back in
func (f *formatter) temporalLayout(col int) string {
	if col < len(f.types) {
		typ := f.types[col]
		if typ.Format != "" {
			return typ.Format
		}
		switch typ.Kind {
		case column.Date:
			return "2006-01-02"
		case column.Time:
			return "15:04:05"
		}
	}
	return time.RFC3339
}

// appendField renders a string cell under the quoting policy. isString
// marks caller-visible string data, which QuoteAlways quotes even when
// nothing in it demands quoting.
func (f *formatter) appendField(buf []byte, field string, isString bool) ([]byte, error) {
	needs := fieldNeedsQuoting(field, f.cfg.Delim, f.cfg.Quote)

	switch f.cfg.QuotePolicy {
	case config.QuoteNever:
		if needs {
			return nil, errors.Newf(errors.KindConfig,
				"field %q requires quoting but the quote policy is never", field)
		}
		return append(buf, field...), nil
	case config.QuoteAlways:
		if isString {
			return f.appendQuoted(buf, field), nil
		}
		if needs {
			return f.appendQuoted(buf, field), nil
		}
		return append(buf, field...), nil
	default:
		if needs {
			return f.appendQuoted(buf, field), nil
		}
		return append(buf, field...), nil
	}
}

// fieldNeedsQuoting reports whether the bytes would be ambiguous unquoted
func fieldNeedsQuoting(field string, delim, quote byte) bool {
	for i := 0; i < len(field); i++ {
		switch field[i] {
		case delim, '\r', '\n':
			return true
		case quote:
			if quote != 0 {
				return true
			}
		}
	}
	return false
}

// appendQuoted wraps field in quotes, escaping interior quote bytes per
// the escape configuration
func (f *formatter) appendQuoted(buf []byte, field string) []byte {
	quote := f.cfg.Quote
	buf = append(buf, quote)
	for i := 0; i < len(field); i++ {
		c := field[i]
		switch {
		case c == quote && f.cfg.EscapeBackslash:
			buf = append(buf, '\\', c)
		case c == quote:
			// doubled-quote escaping is the default even when
			// escape_double is off; unquotable bytes must not corrupt
			// the frame
			buf = append(buf, c, c)
		case c == '\\' && f.cfg.EscapeBackslash:
			buf = append(buf, '\\', '\\')
		default:
			buf = append(buf, c)
		}
	}
	return append(buf, quote)
}
