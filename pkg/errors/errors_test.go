package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAndWrap(t *testing.T) {
	err := New(KindIO, "read failed")
	assert.Equal(t, "io: read failed", err.Error())
	assert.True(t, IsKind(err, KindIO))
	assert.False(t, IsKind(err, KindCodec))
	assert.NotEmpty(t, err.Stack)

	wrapped := Wrap(err, KindCodec, "decoder setup")
	assert.True(t, IsKind(wrapped, KindCodec))
	assert.ErrorIs(t, wrapped, err)
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, KindIO, "nothing"))
}

func TestWrapForeignError(t *testing.T) {
	base := fmt.Errorf("plain")
	wrapped := Wrap(base, KindIO, "context")
	assert.True(t, IsKind(wrapped, KindIO))
	assert.ErrorIs(t, wrapped, base)
	assert.False(t, IsKind(base, KindIO))
}

func TestStructuredQuoteErrors(t *testing.T) {
	err := MalformedQuote(42)
	assert.True(t, IsKind(err, KindMalformedQuote))
	assert.Equal(t, int64(42), err.Details["offset"])

	err = UnterminatedQuote(7)
	assert.True(t, IsKind(err, KindUnterminatedQuote))
	assert.Equal(t, int64(7), err.Details["offset"])
}

func TestWithDetail(t *testing.T) {
	err := New(KindSchemaMismatch, "bad file").WithDetail("file", "b.csv")
	assert.Equal(t, "b.csv", err.Details["file"])
}

func TestSortProblems(t *testing.T) {
	problems := []Problem{
		{Row: 3, Col: 1},
		{Row: 1, Col: 2},
		{Row: 1, Col: 0},
		{Row: 0, Col: 5},
	}
	SortProblems(problems)

	require.Len(t, problems, 4)
	assert.Equal(t, Problem{Row: 0, Col: 5}, problems[0])
	assert.Equal(t, Problem{Row: 1, Col: 0}, problems[1])
	assert.Equal(t, Problem{Row: 1, Col: 2}, problems[2])
	assert.Equal(t, Problem{Row: 3, Col: 1}, problems[3])
}

func TestProblemString(t *testing.T) {
	p := Problem{Kind: ProblemParse, Row: 2, Col: 1, Expected: "integer", Found: "abc"}
	assert.Contains(t, p.String(), "integer")
	assert.Contains(t, p.String(), "abc")

	p = Problem{Kind: ProblemColumnCount, Row: 4, Expected: "3", Found: "5"}
	assert.Contains(t, p.String(), "row 4")
}
