package index

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/tabular/pkg/source"
)

func defaultOptions() Options {
	return Options{
		Quote:        '"',
		EscapeDouble: true,
		TrimWS:       true,
		NMax:         -1,
		HasHeader:    true,
		NumThreads:   1,
	}
}

func buildMem(t *testing.T, content string, opts Options) *Index {
	t.Helper()
	region := source.NewMemRegion([]byte(content))
	t.Cleanup(func() { region.Close() })
	idx, err := Build(context.Background(), region, opts)
	require.NoError(t, err)
	return idx
}

func field(t *testing.T, idx *Index, region source.Region, row int64, col int) string {
	t.Helper()
	lo, hi := idx.FieldBounds(row, col)
	raw := region.Slice(lo, hi)
	if col == idx.Columns()-1 && len(raw) > 0 && raw[len(raw)-1] == '\r' {
		raw = raw[:len(raw)-1]
	}
	view, _ := CleanField(raw, idx.Quote(), true, false, true)
	return string(view)
}

func TestBuildAutoguessDelimiter(t *testing.T) {
	region := source.NewMemRegion([]byte("a,b,c\n1,2,3\n4,5,6\n"))
	defer region.Close()

	idx, err := Build(context.Background(), region, defaultOptions())
	require.NoError(t, err)

	assert.Equal(t, byte(','), idx.Delim())
	assert.Equal(t, []string{"a", "b", "c"}, idx.Names())
	assert.Equal(t, int64(2), idx.Rows())
	assert.Equal(t, 3, idx.Columns())

	assert.Equal(t, "1", field(t, idx, region, 0, 0))
	assert.Equal(t, "2", field(t, idx, region, 0, 1))
	assert.Equal(t, "3", field(t, idx, region, 0, 2))
	assert.Equal(t, "4", field(t, idx, region, 1, 0))
	assert.Equal(t, "6", field(t, idx, region, 1, 2))
}

func TestBuildAutoguessAlternatives(t *testing.T) {
	cases := []struct {
		content string
		delim   byte
	}{
		{"a\tb\tc\n1\t2\t3\n", '\t'},
		{"a|b|c\n1|2|3\n", '|'},
		{"a;b;c\n1;2;3\n", ';'},
	}
	for _, tc := range cases {
		idx := buildMem(t, tc.content, defaultOptions())
		assert.Equal(t, tc.delim, idx.Delim(), "content %q", tc.content)
	}
}

func TestBuildDelimiterUnknown(t *testing.T) {
	region := source.NewMemRegion([]byte("justtext\nmoretext\n"))
	defer region.Close()

	opts := defaultOptions()
	_, err := Build(context.Background(), region, opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delimiter_unknown")
}

func TestBuildQuotedNewline(t *testing.T) {
	region := source.NewMemRegion([]byte("x,y\n\"a\nb\",1\nc,2\n"))
	defer region.Close()

	idx, err := Build(context.Background(), region, defaultOptions())
	require.NoError(t, err)

	require.Equal(t, int64(2), idx.Rows())
	assert.True(t, idx.AnyQuoted())
	assert.Equal(t, "a\nb", field(t, idx, region, 0, 0))
	assert.Equal(t, "1", field(t, idx, region, 0, 1))
	assert.Equal(t, "c", field(t, idx, region, 1, 0))
}

func TestBuildQuotedCRLF(t *testing.T) {
	region := source.NewMemRegion([]byte("x,y\r\n\"a\r\nb\",1\r\nc,2\r\n"))
	defer region.Close()

	idx, err := Build(context.Background(), region, defaultOptions())
	require.NoError(t, err)

	require.Equal(t, int64(2), idx.Rows())
	assert.Equal(t, "a\r\nb", field(t, idx, region, 0, 0))
	assert.Equal(t, "1", field(t, idx, region, 0, 1))
	assert.Equal(t, "c", field(t, idx, region, 1, 0))
}

func TestBuildEscapedQuotes(t *testing.T) {
	idx := buildMem(t, "a,b\n\"he said \"\"hi\"\"\",2\n", defaultOptions())
	require.Equal(t, int64(1), idx.Rows())

	region := source.NewMemRegion([]byte("a,b\n\"he said \"\"hi\"\"\",2\n"))
	defer region.Close()
	lo, hi := idx.FieldBounds(0, 0)
	view, copied := CleanField(region.Slice(lo, hi), '"', true, false, true)
	assert.True(t, copied)
	assert.Equal(t, `he said "hi"`, string(view))
}

func TestBuildCRLF(t *testing.T) {
	region := source.NewMemRegion([]byte("a,b\r\n1,2\r\n3,4\r\n"))
	defer region.Close()

	idx, err := Build(context.Background(), region, defaultOptions())
	require.NoError(t, err)

	assert.True(t, idx.CRLF())
	assert.Equal(t, int64(2), idx.Rows())
	assert.Equal(t, "2", field(t, idx, region, 0, 1))
	assert.Equal(t, "4", field(t, idx, region, 1, 1))
}

func TestBuildNoTrailingNewline(t *testing.T) {
	region := source.NewMemRegion([]byte("a,b\n1,2"))
	defer region.Close()

	idx, err := Build(context.Background(), region, defaultOptions())
	require.NoError(t, err)

	require.Equal(t, int64(1), idx.Rows())
	assert.Equal(t, "1", field(t, idx, region, 0, 0))
	assert.Equal(t, "2", field(t, idx, region, 0, 1))
}

func TestBuildHeaderOnly(t *testing.T) {
	idx := buildMem(t, "a,b,c\n", defaultOptions())
	assert.Equal(t, int64(0), idx.Rows())
	assert.Equal(t, 3, idx.Columns())
	assert.Equal(t, []string{"a", "b", "c"}, idx.Names())
}

func TestBuildEmpty(t *testing.T) {
	idx := buildMem(t, "", defaultOptions())
	assert.Equal(t, int64(0), idx.Rows())
	assert.Equal(t, 0, idx.Columns())
}

func TestBuildHeaderless(t *testing.T) {
	opts := defaultOptions()
	opts.HasHeader = false
	opts.Delim = ','

	region := source.NewMemRegion([]byte("1,2\n3,4\n"))
	defer region.Close()
	idx, err := Build(context.Background(), region, opts)
	require.NoError(t, err)

	assert.Equal(t, []string{"X1", "X2"}, idx.Names())
	assert.Equal(t, int64(2), idx.Rows())
	assert.Equal(t, "1", field(t, idx, region, 0, 0))
}

func TestBuildColumnCountPolicy(t *testing.T) {
	region := source.NewMemRegion([]byte("a,b,c\n1,2\n4,5,6,7\n8,9,10\n"))
	defer region.Close()

	idx, err := Build(context.Background(), region, defaultOptions())
	require.NoError(t, err)

	require.Equal(t, int64(3), idx.Rows())

	// short record right-padded with NA
	assert.Equal(t, "1", field(t, idx, region, 0, 0))
	assert.Equal(t, "2", field(t, idx, region, 0, 1))
	assert.False(t, idx.FieldPresent(0, 2))
	assert.Equal(t, "", field(t, idx, region, 0, 2))

	// surplus discarded
	assert.Equal(t, "4", field(t, idx, region, 1, 0))
	assert.Equal(t, "6", field(t, idx, region, 1, 2))

	assert.Equal(t, "10", field(t, idx, region, 2, 2))

	problems := idx.Problems()
	require.Len(t, problems, 2)
	assert.Equal(t, int64(0), problems[0].Row)
	assert.Equal(t, int64(1), problems[1].Row)
}

func TestBuildSkipAndComments(t *testing.T) {
	content := "garbage line\n# a comment\na,b\n# interior comment\n1,2\n\n3,4\n"
	opts := defaultOptions()
	opts.Skip = 1
	opts.Comment = '#'

	region := source.NewMemRegion([]byte(content))
	defer region.Close()
	idx, err := Build(context.Background(), region, opts)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, idx.Names())
	require.Equal(t, int64(2), idx.Rows())
	assert.Equal(t, "1", field(t, idx, region, 0, 0))
	assert.Equal(t, "2", field(t, idx, region, 0, 1))
	assert.Equal(t, "3", field(t, idx, region, 1, 0))
	assert.Equal(t, "4", field(t, idx, region, 1, 1))
}

func TestBuildNMax(t *testing.T) {
	content := "a,b\n1,2\n3,4\n5,6\n"

	opts := defaultOptions()
	opts.NMax = 2
	idx := buildMem(t, content, opts)
	assert.Equal(t, int64(2), idx.Rows())

	opts.NMax = 0
	idx = buildMem(t, content, opts)
	assert.Equal(t, int64(0), idx.Rows())
	assert.Equal(t, 2, idx.Columns())

	// cap equal to the file's row count changes nothing
	opts.NMax = 3
	idx = buildMem(t, content, opts)
	assert.Equal(t, int64(3), idx.Rows())
}

func TestBuildNameDedup(t *testing.T) {
	idx := buildMem(t, "x, x ,,y\n1,2,3,4\n", defaultOptions())
	assert.Equal(t, []string{"x...1", "x...2", "X3", "y"}, idx.Names())
}

func TestBuildMalformedQuote(t *testing.T) {
	region := source.NewMemRegion([]byte("a,b\n\"oops\"junk,2\n"))
	defer region.Close()

	_, err := Build(context.Background(), region, defaultOptions())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed_quote")
}

func TestBuildUnterminatedQuote(t *testing.T) {
	region := source.NewMemRegion([]byte("a,b\n\"never closed,2\n"))
	defer region.Close()

	_, err := Build(context.Background(), region, defaultOptions())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unterminated_quote")
}

func TestOffsetsNonDecreasing(t *testing.T) {
	idx := buildMem(t, "a,b,c\n1,2\n\"q\nq\",5,6\n7,8,9,10\n", defaultOptions())
	for i := 1; i < len(idx.offsets); i++ {
		assert.LessOrEqual(t, idx.offsets[i-1], idx.offsets[i])
	}
}

func TestBuildDeterministic(t *testing.T) {
	content := "a,b,c\n1,\"two\",3\n4,5,6\n"
	first := buildMem(t, content, defaultOptions())
	second := buildMem(t, content, defaultOptions())
	assert.Equal(t, first.offsets, second.offsets)
	assert.Equal(t, first.Rows(), second.Rows())
	assert.Equal(t, first.Names(), second.Names())
}

// writeTempFile materializes content on disk so the mmap-backed parallel
// path runs
func writeTempFile(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, content, 0o600))
	return path
}

func TestParallelMatchesSequential(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("id,name,notes\n")
	for i := 0; i < 20000; i++ {
		switch i % 3 {
		case 0:
			sb.WriteString("1,alpha,plain\n")
		case 1:
			sb.WriteString("2,\"beta, with comma\",quoted\n")
		default:
			sb.WriteString("3,\"multi\nline\",\"with \"\"escapes\"\"\"\n")
		}
	}
	path := writeTempFile(t, []byte(sb.String()))

	region, err := source.OpenMmap(path)
	require.NoError(t, err)
	defer region.Close()
	require.True(t, region.Mmapped())

	seqOpts := defaultOptions()
	seqOpts.NumThreads = 1
	seq, err := Build(context.Background(), region, seqOpts)
	require.NoError(t, err)

	parOpts := defaultOptions()
	parOpts.NumThreads = 4
	par, err := Build(context.Background(), region, parOpts)
	require.NoError(t, err)

	assert.Equal(t, seq.Rows(), par.Rows())
	require.Equal(t, seq.offsets, par.offsets)
	assert.Equal(t, seq.short, par.short)
	assert.Equal(t, seq.long, par.long)
}

func TestParallelStrayQuoteArbitration(t *testing.T) {
	// unquoted literal quotes poison the parity heuristic; arbitration
	// must still converge on the sequential answer
	var sb strings.Builder
	sb.WriteString("a,b\n")
	for i := 0; i < 30000; i++ {
		if i%101 == 0 {
			sb.WriteString("it\"s,odd\n")
		} else {
			sb.WriteString("plain,row\n")
		}
	}
	path := writeTempFile(t, []byte(sb.String()))

	region, err := source.OpenMmap(path)
	require.NoError(t, err)
	defer region.Close()

	seqOpts := defaultOptions()
	seqOpts.NumThreads = 1
	seq, err := Build(context.Background(), region, seqOpts)
	require.NoError(t, err)

	parOpts := defaultOptions()
	parOpts.NumThreads = 8
	par, err := Build(context.Background(), region, parOpts)
	require.NoError(t, err)

	assert.Equal(t, seq.Rows(), par.Rows())
	assert.Equal(t, seq.offsets, par.offsets)
}

func TestBuildCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var sb strings.Builder
	sb.WriteString("a,b\n")
	for i := 0; i < 5000; i++ {
		sb.WriteString("1,2\n")
	}
	region := source.NewMemRegion([]byte(sb.String()))
	defer region.Close()

	_, err := Build(ctx, region, defaultOptions())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cancelled")
}

func TestLargeField(t *testing.T) {
	big := strings.Repeat("x", 4*1024*1024+17)
	content := "a,b\n" + big + ",1\n"
	region := source.NewMemRegion([]byte(content))
	defer region.Close()

	idx, err := Build(context.Background(), region, defaultOptions())
	require.NoError(t, err)
	require.Equal(t, int64(1), idx.Rows())

	lo, hi := idx.FieldBounds(0, 0)
	assert.Equal(t, int64(len(big)), hi-lo)
}
