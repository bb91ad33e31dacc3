package column

import (
	"github.com/ajitpratap0/tabular/pkg/index"
	"github.com/ajitpratap0/tabular/pkg/locale"
	"github.com/ajitpratap0/tabular/pkg/source"
)

// guessOrder is the fixed priority the inferrer walks; the first kind that
// accepts every sampled non-NA cell wins
var guessOrder = []Kind{Logical, Integer, Double, Number, Time, Date, Datetime, Character}

// InferOptions configures the sampling inferrer
type InferOptions struct {
	GuessMax int // sampled records; <= 0 uses 100
	Locale   *locale.Locale
	Params   ReadParams
}

// sampleRows picks up to guessMax rows: the first, the last, and evenly
// spaced rows in between, all resolved through the index so non-sampled
// rows are never touched
func sampleRows(rows int64, guessMax int) []int64 {
	if guessMax <= 0 {
		guessMax = 100
	}
	if rows <= int64(guessMax) {
		out := make([]int64, rows)
		for i := range out {
			out[i] = int64(i)
		}
		return out
	}

	out := make([]int64, 0, guessMax)
	step := float64(rows-1) / float64(guessMax-1)
	prev := int64(-1)
	for i := 0; i < guessMax; i++ {
		row := int64(float64(i) * step)
		if row >= rows {
			row = rows - 1
		}
		if row != prev {
			out = append(out, row)
			prev = row
		}
	}
	return out
}

// Infer assigns a type to every column by sampling. Entries in assigned
// whose kind is not Guess pass through untouched, including Skip.
func Infer(idx *index.Index, region source.Region, assigned []Type, opts InferOptions) []Type {
	loc := opts.Locale
	if loc == nil {
		loc = locale.Default()
	}

	cols := idx.Columns()
	out := make([]Type, cols)
	rows := sampleRows(idx.Rows(), opts.GuessMax)

	for c := 0; c < cols; c++ {
		if c < len(assigned) && assigned[c].Kind != Guess {
			out[c] = assigned[c]
			continue
		}
		out[c] = guessColumn(idx, region, c, rows, loc, &opts.Params)
	}
	return out
}

func guessColumn(idx *index.Index, region source.Region, col int, rows []int64, loc *locale.Locale, params *ReadParams) Type {
	samples := make([][]byte, 0, len(rows))
	for _, row := range rows {
		view, na, _ := fieldView(idx, region, row, col, params)
		if na {
			continue
		}
		samples = append(samples, view)
	}

	for _, kind := range guessOrder {
		typ := Type{Kind: kind}
		if accepts(&typ, samples, loc) {
			return typ
		}
	}
	return Type{Kind: Character}
}
