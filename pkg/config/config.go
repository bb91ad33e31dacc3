// Package config defines the validated configuration surface of the reader
// and writer. One recognized option set exists; unknown keys fail at
// validation rather than being silently dropped.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/ajitpratap0/tabular/pkg/column"
	"github.com/ajitpratap0/tabular/pkg/errors"
	"github.com/ajitpratap0/tabular/pkg/locale"
	"github.com/ajitpratap0/tabular/pkg/progress"
)

// Environment variables the engine consults
const (
	// EnvProgressShowAfter is seconds before the progress UI appears
	EnvProgressShowAfter = "READER_PROGRESS_SHOW_AFTER"
	// EnvProgressUpdateInterval is seconds between progress updates
	EnvProgressUpdateInterval = "READER_PROGRESS_UPDATE_INTERVAL"
	// EnvThreads overrides NumThreads
	EnvThreads = "READER_THREADS"
	// EnvConnectionSize is the buffered-read chunk size in bytes
	EnvConnectionSize = "READER_CONNECTION_SIZE"
)

// Selection picks a column by 1-based index or by name, optionally
// renaming it in the result
type Selection struct {
	Name   string // source column name; empty when Index is used
	Index  int    // 1-based source position; 0 when Name is used
	Rename string // result name; empty keeps the source name
}

// ReadConfig is the recognized option set for delimited reads
type ReadConfig struct {
	Delim           byte // 0 autoguesses
	Quote           byte // 0 disables quoting
	EscapeDouble    bool
	EscapeBackslash bool
	TrimWS          bool
	Comment         byte // 0 disables comment lines
	Skip            int
	NMax            int64 // negative means unbounded
	HasHeader       bool

	ColNames  []string
	ColSelect []Selection
	ColTypes  map[string]column.Type
	NAStrings []string
	GuessMax  int

	Locale       *locale.Locale
	NumThreads   int
	Progress     progress.Sink
	IDColumnName string

	// ConnectionSize bounds buffered-read chunks when decompressing
	ConnectionSize int
}

// NewReadConfig returns the defaults: comma-or-guessed delimiter, double
// quotes with doubled-quote escaping, trimmed whitespace, a header row,
// and "" / "NA" as missing values
func NewReadConfig() *ReadConfig {
	cfg := &ReadConfig{
		Quote:        '"',
		EscapeDouble: true,
		TrimWS:       true,
		NMax:         -1,
		HasHeader:    true,
		NAStrings:    []string{"", "NA"},
		GuessMax:     100,
	}
	cfg.applyEnv()
	return cfg
}

func (c *ReadConfig) applyEnv() {
	if v := os.Getenv(EnvThreads); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.NumThreads = n
		}
	}
	if v := os.Getenv(EnvConnectionSize); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.ConnectionSize = n
		}
	}
}

// Validate rejects configurations the engine cannot honor
func (c *ReadConfig) Validate() error {
	if c.Delim != 0 && c.Delim == c.Quote {
		return errors.New(errors.KindConfig, "delimiter and quote cannot be the same byte")
	}
	if c.Comment != 0 && c.Comment == c.Delim {
		return errors.New(errors.KindConfig, "comment and delimiter cannot be the same byte")
	}
	if c.Skip < 0 {
		return errors.New(errors.KindConfig, "skip cannot be negative")
	}
	if c.GuessMax < 0 {
		return errors.New(errors.KindConfig, "guess_max cannot be negative")
	}
	for _, sel := range c.ColSelect {
		if sel.Name == "" && sel.Index <= 0 {
			return errors.New(errors.KindConfig, "col_select entries need a name or a 1-based index")
		}
	}
	return nil
}

// readKeys is the single recognized key set for map-shaped configuration
var readKeys = map[string]struct{}{
	"delim": {}, "quote": {}, "escape_double": {}, "escape_backslash": {},
	"trim_ws": {}, "comment": {}, "skip": {}, "n_max": {}, "has_header": {},
	"col_names": {}, "col_select": {}, "col_types": {}, "na_strings": {},
	"guess_max": {}, "locale": {}, "num_threads": {}, "progress": {},
	"id_column_name": {},
}

// CheckKeys fails when opts contains a key outside the recognized set
func CheckKeys(opts map[string]interface{}) error {
	for key := range opts {
		if _, ok := readKeys[key]; !ok {
			return errors.Newf(errors.KindConfig, "unknown option %q", key)
		}
	}
	return nil
}

// ProgressShowAfter returns how long the progress UI should stay hidden
func ProgressShowAfter() time.Duration {
	if v := os.Getenv(EnvProgressShowAfter); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil && secs >= 0 {
			return time.Duration(secs * float64(time.Second))
		}
	}
	return 2 * time.Second
}

// ProgressUpdateInterval returns how often progress should repaint
func ProgressUpdateInterval() time.Duration {
	if v := os.Getenv(EnvProgressUpdateInterval); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil && secs > 0 {
			return time.Duration(secs * float64(time.Second))
		}
	}
	return 250 * time.Millisecond
}

// QuotePolicy selects when the writer quotes fields
type QuotePolicy string

const (
	// QuoteNeeds quotes fields containing the delimiter, quote, or newlines
	QuoteNeeds QuotePolicy = "needs"
	// QuoteAlways quotes every non-NA string field
	QuoteAlways QuotePolicy = "always"
	// QuoteNever never quotes; ambiguous fields fail the write
	QuoteNever QuotePolicy = "never"
)

// WriteConfig is the recognized option set for delimited writes
type WriteConfig struct {
	Delim           byte
	Quote           byte
	EscapeDouble    bool
	EscapeBackslash bool
	QuotePolicy     QuotePolicy
	NAString        string
	EOL             string // "\n" or "\r\n"
	BOM             bool
	IncludeHeader   bool

	ChunkRows  int // rows per writer chunk; <= 0 uses the default
	NumThreads int
	Progress   progress.Sink
}

// NewWriteConfig returns the defaults mirroring NewReadConfig
func NewWriteConfig() *WriteConfig {
	return &WriteConfig{
		Delim:         ',',
		Quote:         '"',
		EscapeDouble:  true,
		QuotePolicy:   QuoteNeeds,
		NAString:      "NA",
		EOL:           "\n",
		IncludeHeader: true,
	}
}

// Validate rejects write configurations the engine cannot honor
func (c *WriteConfig) Validate() error {
	if c.Delim == 0 {
		return errors.New(errors.KindConfig, "writer requires a delimiter")
	}
	if c.Delim == c.Quote {
		return errors.New(errors.KindConfig, "delimiter and quote cannot be the same byte")
	}
	switch c.QuotePolicy {
	case QuoteNeeds, QuoteAlways, QuoteNever:
	default:
		return errors.Newf(errors.KindConfig, "unknown quote policy %q", c.QuotePolicy)
	}
	switch c.EOL {
	case "", "\n", "\r\n":
	default:
		return errors.New(errors.KindConfig, `eol must be "\n" or "\r\n"`)
	}
	return nil
}
