// Package column binds column numbers to the offset index and byte region,
// materializing typed values only when a cell is requested. It also houses
// the sampling type inferrer and the converters the writer inverts.
package column

import (
	"time"
)

// Kind is the closed set of column types. Each kind carries its converter
// and its materialized-array shape; there is no inheritance hierarchy to
// extend.
type Kind uint8

const (
	// Guess asks the inferrer to pick a kind
	Guess Kind = iota
	// Logical holds true/false cells
	Logical
	// Integer holds 64-bit signed integers
	Integer
	// Double holds 64-bit floats
	Double
	// Number holds doubles written with locale grouping marks
	Number
	// Time holds clock times without a date
	Time
	// Date holds calendar dates
	Date
	// Datetime holds full timestamps
	Datetime
	// Character holds strings
	Character
	// Factor holds values drawn from a level set
	Factor
	// Skip removes the column from the store
	Skip
)

// String names the kind the way schemas print it
func (k Kind) String() string {
	switch k {
	case Guess:
		return "guess"
	case Logical:
		return "logical"
	case Integer:
		return "integer"
	case Double:
		return "double"
	case Number:
		return "number"
	case Time:
		return "time"
	case Date:
		return "date"
	case Datetime:
		return "datetime"
	case Character:
		return "character"
	case Factor:
		return "factor"
	case Skip:
		return "skip"
	default:
		return "unknown"
	}
}

// Type is a column type: a kind plus the per-kind parameters that travel
// with it
type Type struct {
	Kind Kind

	// Format is the temporal layout for Time, Date and Datetime columns;
	// empty means the inferrer picks one from the locale's candidates
	Format string

	// Levels restricts Factor cells; empty means levels are collected
	// from the data during materialization
	Levels  []string
	Ordered bool
}

// zeroTime is what temporal converters return alongside an error
var zeroTime time.Time

// Materialized is a dense typed array for one column. Valid marks non-NA
// cells; exactly one value slice is populated, matching the kind.
type Materialized struct {
	Kind  Kind
	Valid []bool

	Bools   []bool
	Ints    []int64
	Floats  []float64
	Times   []time.Time
	Strings []string

	// Factor storage: Codes index into Levels; NA cells carry -1
	Codes  []int32
	Levels []string
}

// Len returns the number of cells
func (m *Materialized) Len() int64 { return int64(len(m.Valid)) }

// Value returns cell i as an interface value, nil for NA
func (m *Materialized) Value(i int64) interface{} {
	if !m.Valid[i] {
		return nil
	}
	switch m.Kind {
	case Logical:
		return m.Bools[i]
	case Integer:
		return m.Ints[i]
	case Double, Number:
		return m.Floats[i]
	case Time, Date, Datetime:
		return m.Times[i]
	case Factor:
		return m.Levels[m.Codes[i]]
	default:
		return m.Strings[i]
	}
}
