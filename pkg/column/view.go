package column

import (
	"bytes"

	"github.com/ajitpratap0/tabular/pkg/index"
	"github.com/ajitpratap0/tabular/pkg/source"
)

// ReadParams carries the per-file settings every cell read consults
type ReadParams struct {
	Quote           byte
	EscapeDouble    bool
	EscapeBackslash bool
	TrimWS          bool
	NAStrings       [][]byte
}

// fieldView returns the cleaned bytes of field (row, col): quote-stripped,
// escape-undone and optionally trimmed. na reports an NA cell, either
// padding on a short record or a byte-exact na_strings match. copied
// reports that escape undo forced an owned buffer, which disables the
// zero-copy character fast path.
func fieldView(idx *index.Index, region source.Region, row int64, col int, p *ReadParams) (view []byte, na, copied bool) {
	if !idx.FieldPresent(row, col) {
		return nil, true, false
	}

	lo, hi := idx.FieldBounds(row, col)
	raw := region.Slice(lo, hi)

	// the last column's range can carry the \r of a CRLF terminator
	if col == idx.Columns()-1 && len(raw) > 0 && raw[len(raw)-1] == '\r' {
		raw = raw[:len(raw)-1]
	}

	view, copied = index.CleanField(raw, p.Quote, p.EscapeDouble, p.EscapeBackslash, p.TrimWS)

	for _, sentinel := range p.NAStrings {
		if bytes.Equal(view, sentinel) {
			return nil, true, false
		}
	}
	return view, false, copied
}
