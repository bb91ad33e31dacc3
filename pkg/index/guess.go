package index

import (
	"github.com/ajitpratap0/tabular/pkg/errors"
)

// guessSampleSize bounds how much of the file the delimiter guess reads
const guessSampleSize = 8 * 1024

// delimCandidates is the ordered candidate set; earlier candidates win ties
var delimCandidates = []byte{',', '\t', '|', ';', ':'}

// guessDelim picks the delimiter by counting candidate occurrences per
// non-empty line over the leading sample, excluding quoted stretches. A
// candidate's count is the highest positive per-line count that recurs on
// at least two sample lines; the candidate with the highest count wins,
// earlier candidates winning ties. A single-line sample relaxes the
// two-line rule, since one line is all the evidence the file has. A line
// cut off by the sample limit is not counted.
func guessDelim(data []byte, pos int, quote byte) (byte, error) {
	limit := pos + guessSampleSize
	if limit > len(data) {
		limit = len(data)
	}

	// counts[c] collects one entry per non-empty sample line
	counts := make(map[byte][]int, len(delimCandidates))
	lineCounts := make(map[byte]int, len(delimCandidates))

	isCandidate := func(c byte) bool {
		for _, cand := range delimCandidates {
			if c == cand {
				return true
			}
		}
		return false
	}

	lines := 0
	lineEmpty := true
	inQuote := false
	for i := pos; i < limit; i++ {
		c := data[i]
		switch {
		case quote != 0 && c == quote:
			inQuote = !inQuote
			lineEmpty = false
		case c == '\n':
			if inQuote {
				continue
			}
			if !lineEmpty {
				lines++
				for _, cand := range delimCandidates {
					counts[cand] = append(counts[cand], lineCounts[cand])
				}
				lineCounts = make(map[byte]int, len(delimCandidates))
			}
			lineEmpty = true
		case c == '\r':
			// terminator byte, not content
		case inQuote:
			lineEmpty = false
		default:
			if isCandidate(c) {
				lineCounts[c]++
			}
			if c != ' ' && c != '\t' || isCandidate(c) {
				lineEmpty = false
			}
		}
	}
	// a final unterminated line still counts as evidence; a line cut off by
	// the sample limit does not, since its counts are incomplete
	if !lineEmpty && !inQuote && limit == len(data) {
		lines++
		for _, cand := range delimCandidates {
			counts[cand] = append(counts[cand], lineCounts[cand])
		}
	}

	var best byte
	bestCount := 0
	for _, cand := range delimCandidates {
		perLine := counts[cand]
		count := 0
		if len(perLine) == 1 {
			count = perLine[0]
		}
		seen := make(map[int]int, len(perLine))
		for _, n := range perLine {
			if seen[n]++; seen[n] >= 2 && n > count {
				count = n
			}
		}
		if count > bestCount {
			bestCount = count
			best = cand
		}
	}

	if best == 0 {
		return 0, errors.New(errors.KindDelimiterUnknown,
			"could not determine a delimiter from the leading sample")
	}
	return best, nil
}
