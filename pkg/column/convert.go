package column

import (
	"strconv"
	"time"

	"github.com/ajitpratap0/tabular/pkg/locale"
	"github.com/ajitpratap0/tabular/pkg/pool"
)

// Converters signal rejection with a false second result; the caller
// records the problem with the cell's bytes.

// parseLogical accepts the spellings vroom-style readers treat as booleans.
// Bare 1/0 stay integers so numeric columns do not infer as logical.
func parseLogical(view []byte) (bool, bool) {
	switch len(view) {
	case 1:
		switch view[0] {
		case 'T', 't':
			return true, true
		case 'F', 'f':
			return false, true
		}
	case 4:
		if string(view) == "TRUE" || string(view) == "true" || string(view) == "True" {
			return true, true
		}
	case 5:
		if string(view) == "FALSE" || string(view) == "false" || string(view) == "False" {
			return false, true
		}
	}
	return false, false
}

func parseInteger(view []byte) (int64, bool) {
	v, err := strconv.ParseInt(pool.BytesToString(view), 10, 64)
	return v, err == nil
}

func parseDouble(view []byte) (float64, bool) {
	v, err := strconv.ParseFloat(pool.BytesToString(view), 64)
	return v, err == nil
}

// parseNumber parses a double written with the locale's grouping marks
// removed and its decimal mark normalized. Every byte must belong to the
// number; arbitrary surrounding text is a rejection, not a partial parse.
func parseNumber(view []byte, loc *locale.Locale) (float64, bool) {
	if len(view) == 0 {
		return 0, false
	}
	buf := make([]byte, 0, len(view))
	sawDigit := false
	sawGrouping := false
	for _, c := range view {
		switch {
		case c >= '0' && c <= '9':
			sawDigit = true
			buf = append(buf, c)
		case c == loc.GroupingMark:
			sawGrouping = true
		case c == loc.DecimalMark:
			buf = append(buf, '.')
		case c == '+' || c == '-' || c == 'e' || c == 'E':
			buf = append(buf, c)
		default:
			return 0, false
		}
	}
	if !sawDigit {
		return 0, false
	}
	// a plain double needs no grouping treatment; keep Number for the
	// cells Double cannot take
	_ = sawGrouping
	v, err := strconv.ParseFloat(string(buf), 64)
	return v, err == nil
}

func parseTemporal(view []byte, format string) (time.Time, bool) {
	t, err := time.Parse(format, pool.BytesToString(view))
	if err != nil {
		return zeroTime, false
	}
	return t, true
}

// pickFormat returns the first candidate layout that parses every sample,
// or "" when none does
func pickFormat(samples [][]byte, candidates []string) string {
	for _, layout := range candidates {
		ok := true
		for _, s := range samples {
			if _, err := time.Parse(layout, pool.BytesToString(s)); err != nil {
				ok = false
				break
			}
		}
		if ok && len(samples) > 0 {
			return layout
		}
	}
	return ""
}

// accepts reports whether every sampled cell parses as typ. For temporal
// kinds with no assigned format it also resolves the format.
func accepts(typ *Type, samples [][]byte, loc *locale.Locale) bool {
	switch typ.Kind {
	case Logical:
		for _, s := range samples {
			if _, ok := parseLogical(s); !ok {
				return false
			}
		}
	case Integer:
		for _, s := range samples {
			if _, ok := parseInteger(s); !ok {
				return false
			}
		}
	case Double:
		for _, s := range samples {
			if _, ok := parseDouble(s); !ok {
				return false
			}
		}
	case Number:
		for _, s := range samples {
			if _, ok := parseNumber(s, loc); !ok {
				return false
			}
		}
	case Time:
		if typ.Format == "" {
			typ.Format = pickFormat(samples, loc.TimeFormats)
			return typ.Format != ""
		}
		return temporalAccepts(typ.Format, samples)
	case Date:
		if typ.Format == "" {
			typ.Format = pickFormat(samples, loc.DateFormats)
			return typ.Format != ""
		}
		return temporalAccepts(typ.Format, samples)
	case Datetime:
		if typ.Format == "" {
			typ.Format = pickFormat(samples, loc.DatetimeFormats)
			return typ.Format != ""
		}
		return temporalAccepts(typ.Format, samples)
	case Character:
		return true
	default:
		return false
	}
	return len(samples) > 0
}

func temporalAccepts(format string, samples [][]byte) bool {
	if len(samples) == 0 {
		return false
	}
	for _, s := range samples {
		if _, ok := parseTemporal(s, format); !ok {
			return false
		}
	}
	return true
}
