package column

import (
	"sync"

	"github.com/ajitpratap0/tabular/pkg/errors"
	"github.com/ajitpratap0/tabular/pkg/source"
)

// ProblemLog is the Table's deduplicating, order-stable problem sink
type ProblemLog struct {
	mu   sync.Mutex
	seen map[problemKey]struct{}
	list []errors.Problem
}

type problemKey struct {
	row int64
	col int
}

// NewProblemLog creates an empty problem log
func NewProblemLog() *ProblemLog {
	return &ProblemLog{seen: make(map[problemKey]struct{})}
}

// Record adds a problem unless the same cell already reported one
func (l *ProblemLog) Record(p errors.Problem) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := problemKey{row: p.Row, col: p.Col}
	if p.Kind == errors.ProblemParse {
		if _, ok := l.seen[key]; ok {
			return
		}
		l.seen[key] = struct{}{}
	}
	l.list = append(l.list, p)
}

func (l *ProblemLog) sorted() []errors.Problem {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := append([]errors.Problem(nil), l.list...)
	errors.SortProblems(out)
	return out
}

// Table exposes the decoded file: named typed columns served lazily from
// the byte regions it holds retained. Columns never point back at the
// Table; dropping the Table and closing it releases the regions once the
// last reader is done.
type Table struct {
	names   []string
	cols    []Column
	rows    int64
	log     *ProblemLog
	regions []source.Region

	closeOnce sync.Once
}

// NewTable assembles a table over cols. regions are the byte regions the
// table takes ownership of; they are released on Close.
func NewTable(cols []Column, rows int64, log *ProblemLog, regions []source.Region) *Table {
	names := make([]string, len(cols))
	for i, col := range cols {
		names[i] = col.Name()
	}
	if log == nil {
		log = NewProblemLog()
	}
	return &Table{names: names, cols: cols, rows: rows, log: log, regions: regions}
}

// ColumnCount returns the number of columns
func (t *Table) ColumnCount() int { return len(t.cols) }

// RowCount returns the number of rows
func (t *Table) RowCount() int64 { return t.rows }

// Names returns the column names
func (t *Table) Names() []string { return t.names }

// Types returns the column types in order
func (t *Table) Types() []Type {
	types := make([]Type, len(t.cols))
	for i, col := range t.cols {
		types[i] = col.Type()
	}
	return types
}

// Column returns column i
func (t *Table) Column(i int) Column { return t.cols[i] }

// Get returns the value at (col, row), nil for NA
func (t *Table) Get(col int, row int64) interface{} {
	return t.cols[col].Get(row)
}

// Materialize fully converts column i and returns its dense array
func (t *Table) Materialize(col int) *Materialized {
	return t.cols[col].Materialize()
}

// IterRows walks rows in order, invoking fn with a reused value slice;
// returning false stops the walk
func (t *Table) IterRows(fn func(row int64, values []interface{}) bool) {
	values := make([]interface{}, len(t.cols))
	for row := int64(0); row < t.rows; row++ {
		for c, col := range t.cols {
			values[c] = col.Get(row)
		}
		if !fn(row, values) {
			return
		}
	}
}

// Problems returns the problem log ordered by (row, col)
func (t *Table) Problems() []errors.Problem {
	return t.log.sorted()
}

// AddProblems seeds the log with problems recorded during indexing
func (t *Table) AddProblems(problems []errors.Problem) {
	for _, p := range problems {
		t.log.Record(p)
	}
}

// Close releases the byte regions backing the table's columns
func (t *Table) Close() error {
	var err error
	t.closeOnce.Do(func() {
		for _, region := range t.regions {
			if closeErr := region.Close(); closeErr != nil && err == nil {
				err = closeErr
			}
		}
	})
	return err
}
