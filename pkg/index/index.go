// Package index builds the field-offset index over a byte region: a
// delimiter-aware, quote-aware scan that records where every field of every
// record starts, so columns can be materialized lazily without re-parsing.
package index

import (
	"github.com/ajitpratap0/tabular/pkg/errors"
)

// Index is the immutable offset table produced by a scan. For R data
// records and C columns it holds R*C+1 monotonically non-decreasing
// absolute byte offsets: entry r*C+c is the first byte of field (r,c), and
// the final entry is the position one past the last record's terminator.
//
// Fields that were right-padded onto a short record carry the record's
// terminator offset, so they read back as empty. An Index is built once
// and never mutated.
type Index struct {
	offsets []uint64
	columns int
	rows    int64

	names    []string
	headerLo int64
	headerHi int64

	delim     byte
	quote     byte
	crlf      bool
	anyQuoted bool

	// trailingNewline is false when the final record runs to EOF without a
	// terminator, which changes how its last field's end is derived.
	trailingNewline bool

	// short maps row -> number of fields actually present, for records
	// that were padded. long maps row -> the true end offset of the last
	// kept field, for records that had surplus fields discarded or were
	// followed by skipped comment/blank lines.
	short map[int64]int
	long  map[int64]uint64

	// fixed-width indexes carry explicit field ends instead of deriving
	// them from the next field's start
	fwEnds []uint64

	problems []errors.Problem
}

// Columns returns the column count C
func (x *Index) Columns() int { return x.columns }

// Rows returns the data record count R
func (x *Index) Rows() int64 { return x.rows }

// Names returns the resolved, deduplicated column names
func (x *Index) Names() []string { return x.names }

// Delim returns the delimiter byte the scan used
func (x *Index) Delim() byte { return x.delim }

// Quote returns the quote byte, or 0 when quoting was disabled
func (x *Index) Quote() byte { return x.quote }

// CRLF reports whether the first newline seen was a \r\n pair
func (x *Index) CRLF() bool { return x.crlf }

// AnyQuoted reports whether any field in the file was quoted
func (x *Index) AnyQuoted() bool { return x.anyQuoted }

// HeaderRange returns the byte range of the header record, empty when the
// file had none
func (x *Index) HeaderRange() (lo, hi int64) { return x.headerLo, x.headerHi }

// Problems returns the column-count deviations recorded during the scan,
// ordered by (row, col)
func (x *Index) Problems() []errors.Problem { return x.problems }

// FieldPresent reports whether field (row, col) was physically present in
// the record, as opposed to NA padding on a short record
func (x *Index) FieldPresent(row int64, col int) bool {
	if found, ok := x.short[row]; ok {
		return col < found
	}
	return true
}

// FieldBounds returns the half-open byte range [lo, hi) of field
// (row, col). The range still includes surrounding quotes and, for the
// last column, a possible trailing \r; the column layer strips those.
func (x *Index) FieldBounds(row int64, col int) (lo, hi int64) {
	i := row*int64(x.columns) + int64(col)
	lo = int64(x.offsets[i])

	if x.fwEnds != nil {
		hi = int64(x.fwEnds[i])
		if hi < lo {
			hi = lo
		}
		return lo, hi
	}

	next := int64(x.offsets[i+1])
	if col == x.columns-1 {
		if end, ok := x.long[row]; ok {
			hi = int64(end)
		} else if row == x.rows-1 && !x.trailingNewline {
			hi = next
		} else {
			hi = next - 1
		}
	} else {
		hi = next - 1
		// the last real field of a padded record is followed by the NA
		// pad, whose offset is the terminator itself, not a delimiter
		if found, ok := x.short[row]; ok && col == found-1 {
			hi = next
		}
	}

	if hi < lo {
		hi = lo
	}
	return lo, hi
}
