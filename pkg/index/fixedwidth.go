package index

import (
	"bytes"
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/tabular/pkg/errors"
	"github.com/ajitpratap0/tabular/pkg/logger"
	"github.com/ajitpratap0/tabular/pkg/progress"
	"github.com/ajitpratap0/tabular/pkg/source"
)

// Span is one fixed-width column: inclusive byte positions within a record
type Span struct {
	Name  string
	Start int
	End   int
}

// Layout is the resolved set of fixed-width column spans
type Layout struct {
	spans []Span
}

// Spans returns the layout's column spans
func (l *Layout) Spans() []Span { return l.spans }

// LayoutFromWidths builds a layout from consecutive column widths; the
// cumulative sum gives the positions. names may be empty for X1..XC.
func LayoutFromWidths(widths []int, names []string) (*Layout, error) {
	if len(names) > 0 && len(names) != len(widths) {
		return nil, errors.Newf(errors.KindConfig,
			"%d names for %d widths", len(names), len(widths))
	}
	spans := make([]Span, len(widths))
	pos := 0
	for i, w := range widths {
		if w <= 0 {
			return nil, errors.Newf(errors.KindConfig, "column width %d at position %d", w, i+1)
		}
		spans[i] = Span{Start: pos, End: pos + w - 1}
		if len(names) > 0 {
			spans[i].Name = names[i]
		}
		pos += w
	}
	return &Layout{spans: spans}, nil
}

// LayoutFromPositions builds a layout from explicit inclusive start and end
// positions
func LayoutFromPositions(starts, ends []int, names []string) (*Layout, error) {
	if len(starts) != len(ends) {
		return nil, errors.Newf(errors.KindConfig,
			"%d starts for %d ends", len(starts), len(ends))
	}
	if len(names) > 0 && len(names) != len(starts) {
		return nil, errors.Newf(errors.KindConfig,
			"%d names for %d positions", len(names), len(starts))
	}
	spans := make([]Span, len(starts))
	for i := range starts {
		if starts[i] < 0 || ends[i] < starts[i] {
			return nil, errors.Newf(errors.KindConfig,
				"invalid position pair [%d, %d]", starts[i], ends[i])
		}
		spans[i] = Span{Start: starts[i], End: ends[i]}
		if len(names) > 0 {
			spans[i].Name = names[i]
		}
	}
	return &Layout{spans: spans}, nil
}

// InferLayout locates columns of space characters shared by the first
// maxLines lines and places column breaks at their midpoints
func InferLayout(data []byte, maxLines int) (*Layout, error) {
	if maxLines <= 0 {
		maxLines = 100
	}

	width := 0
	lines := 0
	var allSpace []bool
	pos := 0
	for pos < len(data) && lines < maxLines {
		end := bytes.IndexByte(data[pos:], '\n')
		var line []byte
		if end < 0 {
			line = data[pos:]
			pos = len(data)
		} else {
			line = data[pos : pos+end]
			pos += end + 1
		}
		line = bytes.TrimSuffix(line, []byte{'\r'})
		if len(line) == 0 {
			continue
		}
		if len(line) > width {
			grown := make([]bool, len(line))
			for i := range grown {
				if i < width {
					grown[i] = allSpace[i]
				} else {
					grown[i] = true
				}
			}
			allSpace = grown
			width = len(line)
		}
		for i := 0; i < width; i++ {
			if i < len(line) {
				if line[i] != ' ' {
					allSpace[i] = false
				}
			}
			// bytes past a short line stay candidate separators
		}
		lines++
	}
	if lines == 0 {
		return nil, errors.New(errors.KindConfig, "no lines to infer a fixed-width layout from")
	}

	// break at the midpoint of every interior all-space run
	var breaks []int
	i := 0
	for i < width {
		if !allSpace[i] {
			i++
			continue
		}
		runStart := i
		for i < width && allSpace[i] {
			i++
		}
		if runStart == 0 || i >= width {
			continue // leading or trailing padding, not a separator
		}
		breaks = append(breaks, runStart+(i-runStart)/2)
	}

	var spans []Span
	prev := 0
	for _, b := range breaks {
		spans = append(spans, Span{Start: prev, End: b - 1})
		prev = b
	}
	spans = append(spans, Span{Start: prev, End: width - 1})
	return &Layout{spans: spans}, nil
}

// FixedWidthOptions configures a fixed-width scan. Whitespace trimming is
// on by default for fixed-width files; the column layer trims.
type FixedWidthOptions struct {
	Skip      int
	Comment   byte
	NMax      int64 // negative means unbounded
	HasHeader bool

	Logger   *zap.Logger
	Progress *progress.Tracker
}

// BuildFixedWidth indexes region against layout, emitting one offset per
// (row, column) with explicit span-derived field ends. Records shorter
// than the last column end are right-padded with NA.
func BuildFixedWidth(ctx context.Context, region source.Region, layout *Layout, opts FixedWidthOptions) (*Index, error) {
	data := region.Bytes()
	spans := layout.spans
	cols := len(spans)
	if cols == 0 {
		return nil, errors.New(errors.KindConfig, "fixed-width layout has no columns")
	}

	layoutNamed := false
	names := make([]string, cols)
	for i, sp := range spans {
		if sp.Name != "" {
			names[i] = sp.Name
			layoutNamed = true
		} else {
			names[i] = syntheticName(i + 1)
		}
	}

	x := &Index{
		columns:         cols,
		short:           make(map[int64]int),
		long:            make(map[int64]uint64),
		trailingNewline: true,
	}

	pos := 0
	for i := 0; i < opts.Skip && pos < len(data); i++ {
		if nl := bytes.IndexByte(data[pos:], '\n'); nl >= 0 {
			pos += nl + 1
		} else {
			pos = len(data)
		}
	}

	headerDone := !opts.HasHeader
	offsets := make([]uint64, 0, 1024)
	var ends []uint64
	checked := 0

	for pos < len(data) {
		if checked++; checked >= cancelCheckInterval {
			checked = 0
			if err := ctx.Err(); err != nil {
				return nil, errors.Wrap(err, errors.KindCancelled, "fixed-width scan cancelled")
			}
		}

		lineStart := pos
		var lineEnd, next int
		if nl := bytes.IndexByte(data[pos:], '\n'); nl >= 0 {
			lineEnd = pos + nl
			next = lineEnd + 1
			if lineEnd > lineStart && data[lineEnd-1] == '\r' {
				lineEnd--
			}
		} else {
			lineEnd = len(data)
			next = len(data)
			x.trailingNewline = false
		}
		pos = next

		line := data[lineStart:lineEnd]
		if len(bytes.TrimLeft(line, " \t")) == 0 {
			continue
		}
		if opts.Comment != 0 {
			trimmed := bytes.TrimLeft(line, " \t")
			if len(trimmed) > 0 && trimmed[0] == opts.Comment {
				continue
			}
		}

		if !headerDone {
			headerDone = true
			x.headerLo = int64(lineStart)
			x.headerHi = int64(lineEnd)
			if !layoutNamed {
				raw := make([]string, cols)
				for c, sp := range spans {
					lo := min(lineStart+sp.Start, lineEnd)
					hi := min(lineStart+sp.End+1, lineEnd)
					raw[c] = strings.TrimSpace(string(data[lo:hi]))
				}
				x.names = dedupeNames(raw)
			}
			continue
		}

		if opts.NMax >= 0 && x.rows >= opts.NMax {
			break
		}

		row := x.rows
		present := 0
		for _, sp := range spans {
			lo := min(lineStart+sp.Start, lineEnd)
			hi := min(lineStart+sp.End+1, lineEnd)
			offsets = append(offsets, uint64(lo))
			ends = append(ends, uint64(hi))
			if lo < lineEnd {
				present++
			}
		}
		if present < cols {
			x.short[row] = present
		}
		x.rows++
		progress.SafeAddBytes(opts.Progress, int64(next-lineStart))
	}

	if x.names == nil {
		x.names = names
	}

	offsets = append(offsets, uint64(pos))
	x.offsets = offsets
	x.fwEnds = ends
	progress.SafeAddRows(opts.Progress, x.rows)

	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	log.Debug("fixed-width index built",
		zap.Int64("rows", x.rows),
		zap.Int("columns", cols))
	return x, nil
}
