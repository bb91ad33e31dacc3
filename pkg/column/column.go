package column

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ajitpratap0/tabular/pkg/errors"
	"github.com/ajitpratap0/tabular/pkg/index"
	"github.com/ajitpratap0/tabular/pkg/locale"
	"github.com/ajitpratap0/tabular/pkg/pool"
	"github.com/ajitpratap0/tabular/pkg/source"
)

// ProblemSink receives per-cell parse failures. Implementations must be
// safe for concurrent use and deduplicate repeated reads of the same cell.
type ProblemSink interface {
	Record(p errors.Problem)
}

// Column is an indexable sequence of typed values. Get returns nil for NA
// cells; conversion failures surface as NA plus a recorded problem, never
// as an error.
type Column interface {
	Name() string
	Type() Type
	Len() int64
	Get(row int64) interface{}
	Materialize() *Materialized
}

// materializeFraction is the share of a column's row count that lazy Get
// calls may reach before the column materializes itself. Every call
// counts; repeated reads of the same row are not told apart.
const materializeFraction = 0.5

// Lazy is a column whose cells are decoded from the byte region on demand.
// Materialization is a one-shot latch: the first claimant converts the
// whole column while later claimants wait, and the dense array then
// replaces lazy access for good.
type Lazy struct {
	name    string
	typ     Type
	idx     *index.Index
	region  source.Region
	col     int
	rowBase int64 // global row offset for problem coordinates
	params  ReadParams
	loc     *locale.Locale
	sink    ProblemSink

	levelSet map[string]int32 // explicit factor levels

	// temporal format, resolved once when the assigned kind carried none
	format atomic.Pointer[string]

	mat   atomic.Pointer[Materialized]
	matMu sync.Mutex
	reads atomic.Int64
}

// NewLazy binds column col of idx to region. The caller keeps region
// retained for the column's lifetime.
func NewLazy(name string, typ Type, idx *index.Index, region source.Region, col int, rowBase int64, params ReadParams, loc *locale.Locale, sink ProblemSink) *Lazy {
	c := &Lazy{
		name:    name,
		typ:     typ,
		idx:     idx,
		region:  region,
		col:     col,
		rowBase: rowBase,
		params:  params,
		loc:     loc,
		sink:    sink,
	}
	if typ.Kind == Factor && len(typ.Levels) > 0 {
		c.levelSet = make(map[string]int32, len(typ.Levels))
		for i, level := range typ.Levels {
			c.levelSet[level] = int32(i)
		}
	}
	if typ.Format != "" {
		format := typ.Format
		c.format.Store(&format)
	}
	return c
}

// Name returns the column name
func (c *Lazy) Name() string { return c.name }

// Type returns the column type
func (c *Lazy) Type() Type { return c.typ }

// Len returns the row count
func (c *Lazy) Len() int64 { return c.idx.Rows() }

// Get returns the value at row, nil for NA
func (c *Lazy) Get(row int64) interface{} {
	if m := c.mat.Load(); m != nil {
		return m.Value(row)
	}

	// a consumer walking most of the column is better served dense
	if float64(c.reads.Add(1)) > float64(c.idx.Rows())*materializeFraction {
		return c.Materialize().Value(row)
	}

	view, na, copied := fieldView(c.idx, c.region, row, c.col, &c.params)
	if na {
		return nil
	}
	value, ok := c.convert(view, copied)
	if !ok {
		c.recordProblem(row, view)
		return nil
	}
	return value
}

func (c *Lazy) recordProblem(row int64, view []byte) {
	if c.sink == nil {
		return
	}
	c.sink.Record(errors.Problem{
		Kind:     errors.ProblemParse,
		Row:      c.rowBase + row,
		Col:      c.col,
		Expected: c.typ.Kind.String(),
		Found:    string(view),
	})
}

// convert decodes one cell. copied reports the view is an owned buffer
// from escape undo, in which case the character fast path must copy into
// a string anyway, so both paths converge.
func (c *Lazy) convert(view []byte, copied bool) (interface{}, bool) {
	switch c.typ.Kind {
	case Logical:
		return boxBool(parseLogical(view))
	case Integer:
		v, ok := parseInteger(view)
		return v, ok
	case Double:
		v, ok := parseDouble(view)
		return v, ok
	case Number:
		v, ok := parseNumber(view, c.locale())
		return v, ok
	case Time, Date, Datetime:
		format := c.resolveFormat(view)
		if format == "" {
			return nil, false
		}
		v, ok := parseTemporal(view, format)
		return v, ok
	case Factor:
		s := c.str(view, copied)
		if c.levelSet != nil {
			if _, ok := c.levelSet[s]; !ok {
				return nil, false
			}
		}
		return s, true
	default:
		return c.str(view, copied), true
	}
}

func boxBool(v, ok bool) (interface{}, bool) {
	if !ok {
		return nil, false
	}
	return v, true
}

// str is the character fast path: a zero-copy view over the region unless
// escape undo already produced an owned buffer
func (c *Lazy) str(view []byte, copied bool) string {
	if copied {
		return string(view)
	}
	return pool.BytesToString(view)
}

func (c *Lazy) locale() *locale.Locale {
	if c.loc != nil {
		return c.loc
	}
	return locale.Default()
}

// resolveFormat fixes the temporal layout on first use when the caller
// assigned a temporal kind without a format
func (c *Lazy) resolveFormat(view []byte) string {
	if f := c.format.Load(); f != nil {
		return *f
	}
	var candidates []string
	switch c.typ.Kind {
	case Time:
		candidates = c.locale().TimeFormats
	case Date:
		candidates = c.locale().DateFormats
	default:
		candidates = c.locale().DatetimeFormats
	}
	for _, layout := range candidates {
		if _, ok := parseTemporal(view, layout); ok {
			resolved := layout
			c.format.CompareAndSwap(nil, &resolved)
			return *c.format.Load()
		}
	}
	return ""
}

// Materialize converts the whole column into a dense typed array. It is
// idempotent and thread-safe: one claimant converts, others wait, and
// every later read bypasses the byte source.
func (c *Lazy) Materialize() *Materialized {
	if m := c.mat.Load(); m != nil {
		return m
	}

	c.matMu.Lock()
	defer c.matMu.Unlock()
	if m := c.mat.Load(); m != nil {
		return m
	}

	m := c.materializeLocked()
	c.mat.Store(m)
	return m
}

func (c *Lazy) materializeLocked() *Materialized {
	rows := c.idx.Rows()
	m := &Materialized{
		Kind:  c.typ.Kind,
		Valid: make([]bool, rows),
	}
	switch c.typ.Kind {
	case Logical:
		m.Bools = make([]bool, rows)
	case Integer:
		m.Ints = make([]int64, rows)
	case Double, Number:
		m.Floats = make([]float64, rows)
	case Time, Date, Datetime:
		m.Times = make([]time.Time, rows)
	case Factor:
		m.Codes = make([]int32, rows)
		m.Levels = append([]string(nil), c.typ.Levels...)
	default:
		m.Strings = make([]string, rows)
	}

	levelCodes := c.levelSet
	inferLevels := c.typ.Kind == Factor && levelCodes == nil
	if inferLevels {
		levelCodes = make(map[string]int32)
	}

	for row := int64(0); row < rows; row++ {
		view, na, copied := fieldView(c.idx, c.region, row, c.col, &c.params)
		if na {
			if c.typ.Kind == Factor {
				m.Codes[row] = -1
			}
			continue
		}

		switch c.typ.Kind {
		case Logical:
			v, ok := parseLogical(view)
			if !ok {
				c.recordProblem(row, view)
				continue
			}
			m.Bools[row] = v
		case Integer:
			v, ok := parseInteger(view)
			if !ok {
				c.recordProblem(row, view)
				continue
			}
			m.Ints[row] = v
		case Double:
			v, ok := parseDouble(view)
			if !ok {
				c.recordProblem(row, view)
				continue
			}
			m.Floats[row] = v
		case Number:
			v, ok := parseNumber(view, c.locale())
			if !ok {
				c.recordProblem(row, view)
				continue
			}
			m.Floats[row] = v
		case Time, Date, Datetime:
			format := c.resolveFormat(view)
			var v time.Time
			var ok bool
			if format != "" {
				v, ok = parseTemporal(view, format)
			}
			if !ok {
				c.recordProblem(row, view)
				continue
			}
			m.Times[row] = v
		case Factor:
			s := c.str(view, copied)
			code, ok := levelCodes[s]
			if !ok {
				if !inferLevels {
					c.recordProblem(row, view)
					m.Codes[row] = -1
					continue
				}
				code = int32(len(m.Levels))
				levelCodes[s] = code
				m.Levels = append(m.Levels, s)
			}
			m.Codes[row] = code
		default:
			m.Strings[row] = c.str(view, copied)
		}
		m.Valid[row] = true
	}

	return m
}
