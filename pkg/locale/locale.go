// Package locale carries the formatting tables the converters consult:
// decimal and grouping marks, candidate date/time layouts, and the default
// NA spellings. The engine treats these as data; building richer locales
// from CLDR or ICU is the caller's concern.
package locale

// Locale describes how numbers and temporal values are written in a file
type Locale struct {
	DecimalMark  byte
	GroupingMark byte

	// Candidate layouts tried in order during inference. The first layout
	// that parses every sampled cell becomes the column's assigned format.
	DateFormats     []string
	TimeFormats     []string
	DatetimeFormats []string

	// Default NA spellings when the read config supplies none
	NAStrings []string
}

// Default returns the C-style locale used when the caller supplies none
func Default() *Locale {
	return &Locale{
		DecimalMark:  '.',
		GroupingMark: ',',
		DateFormats: []string{
			"2006-01-02",
			"2006/01/02",
			"01/02/2006",
			"02-01-2006",
		},
		TimeFormats: []string{
			"15:04:05",
			"15:04",
			"3:04:05 PM",
		},
		DatetimeFormats: []string{
			"2006-01-02T15:04:05Z07:00",
			"2006-01-02T15:04:05",
			"2006-01-02 15:04:05",
			"2006/01/02 15:04:05",
		},
		NAStrings: []string{"NA"},
	}
}
