package index

import (
	"github.com/ajitpratap0/tabular/pkg/errors"
)

// scanOptions is the per-scan configuration the state machine consults
type scanOptions struct {
	delim           byte
	quote           byte // 0 disables quoting
	escapeDouble    bool
	escapeBackslash bool
	trimWS          bool
	comment         byte // 0 disables comments
}

// scanner runs the field state machine over a byte slice. Not safe for
// concurrent use; the parallel driver gives each worker its own.
type scanner struct {
	data []byte
	opts scanOptions

	// scratch field-start buffer reused across records
	starts []uint64
}

const (
	stateFieldStart = iota
	stateUnquoted
	stateQuoted
	stateQuotedMaybeEnd
)

// recordInfo describes one scanned record. Field starts live in
// scanner.starts until the next scanRecord call.
type recordInfo struct {
	term     int  // terminator offset: '\r' of a CRLF pair, '\n', or len(data)
	next     int  // position after the newline, or len(data)
	sawQuote bool // any field in the record was quoted
	eof      bool // record ran to EOF without a terminator
}

func isLineWS(c byte) bool { return c == ' ' || c == '\t' }

// skippable classifies the line starting at pos as blank or comment,
// returning the position after its newline when it should be skipped.
func (s *scanner) skippable(pos int) (next int, skip bool) {
	data := s.data
	n := len(data)
	i := pos
	for i < n && isLineWS(data[i]) {
		i++
	}
	if i == n {
		return n, true
	}
	c := data[i]
	if c == '\n' {
		return i + 1, true
	}
	if c == '\r' && i+1 < n && data[i+1] == '\n' {
		return i + 2, true
	}
	if s.opts.comment != 0 && c == s.opts.comment {
		// comment content is free text, consumed to end of line
		for i < n && data[i] != '\n' {
			i++
		}
		if i < n {
			i++
		}
		return i, true
	}
	return pos, false
}

// scanRecord scans one record starting at pos, which must be a record
// boundary. Field starts are left in s.starts.
func (s *scanner) scanRecord(pos int) (recordInfo, error) {
	data := s.data
	n := len(data)
	info := recordInfo{term: -1}
	s.starts = s.starts[:0]

	state := stateFieldStart
	fieldBegin := pos
	openQuote := pos
	i := pos

loop:
	for i < n {
		c := data[i]
		nl := c == '\n' || (c == '\r' && i+1 < n && data[i+1] == '\n')
		nlWidth := 1
		if c == '\r' {
			nlWidth = 2
		}

		switch state {
		case stateFieldStart:
			switch {
			case nl:
				s.starts = append(s.starts, uint64(fieldBegin))
				info.term = i
				info.next = i + nlWidth
				break loop
			case c == s.opts.delim:
				s.starts = append(s.starts, uint64(fieldBegin))
				fieldBegin = i + 1
			case s.opts.quote != 0 && c == s.opts.quote:
				state = stateQuoted
				openQuote = i
				info.sawQuote = true
			case isLineWS(c) && s.opts.trimWS:
				// leading whitespace; a quote after it still opens the field
			default:
				state = stateUnquoted
			}

		case stateUnquoted:
			switch {
			case nl:
				s.starts = append(s.starts, uint64(fieldBegin))
				info.term = i
				info.next = i + nlWidth
				break loop
			case c == s.opts.delim:
				s.starts = append(s.starts, uint64(fieldBegin))
				fieldBegin = i + 1
				state = stateFieldStart
			}

		case stateQuoted:
			switch {
			case s.opts.escapeBackslash && c == '\\':
				i++ // the escaped byte is literal
			case c == s.opts.quote:
				state = stateQuotedMaybeEnd
			}

		case stateQuotedMaybeEnd:
			switch {
			case s.opts.escapeDouble && c == s.opts.quote:
				state = stateQuoted // doubled quote is one literal quote
			case nl:
				s.starts = append(s.starts, uint64(fieldBegin))
				info.term = i
				info.next = i + nlWidth
				break loop
			case c == s.opts.delim:
				s.starts = append(s.starts, uint64(fieldBegin))
				fieldBegin = i + 1
				state = stateFieldStart
			case isLineWS(c) && s.opts.trimWS:
				// whitespace between closing quote and delimiter
			default:
				return info, errors.MalformedQuote(int64(i))
			}
		}
		i++
	}

	if info.term < 0 {
		// EOF terminated the record
		if state == stateQuoted {
			return info, errors.UnterminatedQuote(int64(openQuote))
		}
		s.starts = append(s.starts, uint64(fieldBegin))
		info.term = n
		info.next = n
		info.eof = true
	}

	return info, nil
}
