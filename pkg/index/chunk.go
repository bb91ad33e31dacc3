package index

import (
	"bytes"
	"context"
	"strconv"
	"sync/atomic"

	"github.com/ajitpratap0/tabular/pkg/errors"
	"github.com/ajitpratap0/tabular/pkg/pool"
)

// chunkResult is one worker's share of the scan. Problem rows, short and
// long keys are chunk-relative; the driver renumbers them when it
// concatenates results in chunk order.
type chunkResult struct {
	offsets  []uint64
	rows     int64
	problems []errors.Problem
	short    map[int64]int
	long     map[int64]uint64

	start    int // record boundary the scan began at
	end      int // exit position: first record boundary at or past the limit
	lastTerm int // terminator of the last emitted record, -1 when none

	leadingSkip bool // the first line scanned was blank or a comment
	sawQuote    bool
	crlf        bool // first newline seen was \r\n
	sawNL       bool
	eofNoNL     bool // last emitted record ran to EOF without a newline
}

// cancelCheckInterval is how many records a chunk scan processes between
// context checks
const cancelCheckInterval = 1024

// scanChunk scans records from pos until the first record boundary at or
// past limit, applying the column-count policy for cols expected columns.
// rowCap and rowCount coordinate the shared n_max cap across workers; a
// negative rowCap disables it.
func (s *scanner) scanChunk(ctx context.Context, pos, limit, cols int, rowCap int64, rowCount *atomic.Int64) (*chunkResult, error) {
	res := &chunkResult{
		offsets:  pool.GetOffsetBuffer(),
		short:    make(map[int64]int),
		long:     make(map[int64]uint64),
		start:    pos,
		lastTerm: -1,
	}

	sinceCheck := 0
	for pos < limit && pos < len(s.data) {
		if sinceCheck++; sinceCheck >= cancelCheckInterval {
			sinceCheck = 0
			if err := ctx.Err(); err != nil {
				return nil, errors.Wrap(err, errors.KindCancelled, "index scan cancelled")
			}
		}

		if next, skip := s.skippable(pos); skip {
			if res.rows > 0 {
				row := res.rows - 1
				if _, ok := res.long[row]; !ok {
					res.long[row] = uint64(res.lastTerm)
				}
			} else {
				res.leadingSkip = true
			}
			pos = next
			continue
		}

		rec, err := s.scanRecord(pos)
		if err != nil {
			return nil, err
		}
		pos = rec.next

		if !res.sawNL && !rec.eof {
			res.sawNL = true
			res.crlf = s.data[rec.term] == '\r'
		}

		row := res.rows
		nf := len(s.starts)
		switch {
		case nf < cols:
			res.problems = append(res.problems, errors.Problem{
				Kind:     errors.ProblemColumnCount,
				Row:      row,
				Expected: strconv.Itoa(cols),
				Found:    strconv.Itoa(nf),
			})
			res.short[row] = nf
			res.offsets = append(res.offsets, s.starts...)
			for k := nf; k < cols; k++ {
				res.offsets = append(res.offsets, uint64(rec.term))
			}
		case nf > cols:
			res.problems = append(res.problems, errors.Problem{
				Kind:     errors.ProblemColumnCount,
				Row:      row,
				Expected: strconv.Itoa(cols),
				Found:    strconv.Itoa(nf),
			})
			res.long[row] = s.starts[cols] - 1
			res.offsets = append(res.offsets, s.starts[:cols]...)
		default:
			res.offsets = append(res.offsets, s.starts...)
		}

		res.rows++
		res.lastTerm = rec.term
		res.eofNoNL = rec.eof
		if rec.sawQuote {
			res.sawQuote = true
		}

		if rowCount != nil {
			rowCount.Add(1)
		}
		if rowCap >= 0 && res.rows >= rowCap {
			// a chunk never needs more than the cap's worth of records;
			// the driver trims the concatenation to the exact cap in
			// file order
			break
		}
	}

	res.end = pos
	return res, nil
}

// quoteParity returns the parity of unescaped-quote count in data[lo:hi].
// Doubled escape quotes cancel themselves, so a plain byte count suffices;
// backslash escaping breaks this and forces the sequential path upstream.
func quoteParity(data []byte, lo, hi int, quote byte) int {
	if quote == 0 {
		return 0
	}
	return bytes.Count(data[lo:hi], []byte{quote}) & 1
}

// safeStart finds the first record boundary at or after pos: the position
// just past the first newline that is outside any quoted field, given the
// quote parity accumulated before pos. Returns -1 when the range [pos,
// limit) contains no such boundary.
func safeStart(data []byte, pos, limit int, quote byte, entryParity int) int {
	parity := entryParity
	for i := pos; i < limit; i++ {
		c := data[i]
		if quote != 0 && c == quote {
			parity ^= 1
		} else if c == '\n' && parity == 0 {
			return i + 1
		}
	}
	return -1
}
