package column

import (
	"sort"
)

// Concat stitches per-file columns into one logical column for multi-file
// reads. Row ranges map onto the parts in order.
type Concat struct {
	name   string
	typ    Type
	parts  []Column
	bounds []int64 // cumulative row counts, one entry per part
}

// NewConcat builds a logical column over parts, which must share a type
func NewConcat(name string, typ Type, parts []Column) *Concat {
	bounds := make([]int64, len(parts))
	var total int64
	for i, part := range parts {
		total += part.Len()
		bounds[i] = total
	}
	return &Concat{name: name, typ: typ, parts: parts, bounds: bounds}
}

// Name returns the column name
func (c *Concat) Name() string { return c.name }

// Type returns the column type
func (c *Concat) Type() Type { return c.typ }

// Len returns the total row count across parts
func (c *Concat) Len() int64 {
	if len(c.bounds) == 0 {
		return 0
	}
	return c.bounds[len(c.bounds)-1]
}

// locate maps a logical row to (part, local row)
func (c *Concat) locate(row int64) (int, int64) {
	part := sort.Search(len(c.bounds), func(i int) bool { return c.bounds[i] > row })
	base := int64(0)
	if part > 0 {
		base = c.bounds[part-1]
	}
	return part, row - base
}

// Get returns the value at the logical row
func (c *Concat) Get(row int64) interface{} {
	part, local := c.locate(row)
	return c.parts[part].Get(local)
}

// Materialize merges the parts' dense arrays in order
func (c *Concat) Materialize() *Materialized {
	total := c.Len()
	m := &Materialized{Kind: c.typ.Kind, Valid: make([]bool, 0, total)}

	// factor parts may disagree on level codes; remap through strings
	var levelCodes map[string]int32
	if c.typ.Kind == Factor {
		levelCodes = make(map[string]int32)
		m.Codes = make([]int32, 0, total)
	}

	for _, part := range c.parts {
		pm := part.Materialize()
		m.Valid = append(m.Valid, pm.Valid...)
		switch c.typ.Kind {
		case Logical:
			m.Bools = append(m.Bools, pm.Bools...)
		case Integer:
			m.Ints = append(m.Ints, pm.Ints...)
		case Double, Number:
			m.Floats = append(m.Floats, pm.Floats...)
		case Time, Date, Datetime:
			m.Times = append(m.Times, pm.Times...)
		case Factor:
			for i, code := range pm.Codes {
				if !pm.Valid[i] {
					m.Codes = append(m.Codes, -1)
					continue
				}
				level := pm.Levels[code]
				merged, ok := levelCodes[level]
				if !ok {
					merged = int32(len(m.Levels))
					levelCodes[level] = merged
					m.Levels = append(m.Levels, level)
				}
				m.Codes = append(m.Codes, merged)
			}
		default:
			m.Strings = append(m.Strings, pm.Strings...)
		}
	}
	return m
}

// Const is a column whose every cell carries the same string, used for the
// synthetic source-path column of multi-file reads
type Const struct {
	name  string
	value string
	n     int64
}

// NewConst builds a constant string column of n rows
func NewConst(name, value string, n int64) *Const {
	return &Const{name: name, value: value, n: n}
}

// Name returns the column name
func (c *Const) Name() string { return c.name }

// Type returns character
func (c *Const) Type() Type { return Type{Kind: Character} }

// Len returns the row count
func (c *Const) Len() int64 { return c.n }

// Get returns the constant value
func (c *Const) Get(int64) interface{} { return c.value }

// Materialize returns the constant repeated n times
func (c *Const) Materialize() *Materialized {
	m := &Materialized{
		Kind:    Character,
		Valid:   make([]bool, c.n),
		Strings: make([]string, c.n),
	}
	for i := range m.Strings {
		m.Valid[i] = true
		m.Strings[i] = c.value
	}
	return m
}
