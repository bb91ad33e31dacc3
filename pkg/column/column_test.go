package column

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/tabular/pkg/errors"
	"github.com/ajitpratap0/tabular/pkg/index"
	"github.com/ajitpratap0/tabular/pkg/locale"
	"github.com/ajitpratap0/tabular/pkg/source"
)

func indexContent(t *testing.T, content string) (*index.Index, source.Region) {
	t.Helper()
	region := source.NewMemRegion([]byte(content))
	t.Cleanup(func() { region.Close() })
	idx, err := index.Build(context.Background(), region, index.Options{
		Delim:        ',',
		Quote:        '"',
		EscapeDouble: true,
		TrimWS:       true,
		NMax:         -1,
		HasHeader:    true,
		NumThreads:   1,
	})
	require.NoError(t, err)
	return idx, region
}

func testParams() ReadParams {
	return ReadParams{
		Quote:        '"',
		EscapeDouble: true,
		TrimWS:       true,
		NAStrings:    [][]byte{{}, []byte("NA")},
	}
}

func TestInferPriorityOrder(t *testing.T) {
	content := "lg,int,dbl,chr,mixed\n" +
		"TRUE,1,1.5,hello,1\n" +
		"FALSE,2,2.5,world,x\n" +
		"NA,3,3e2,bye,2\n"
	idx, region := indexContent(t, content)

	types := Infer(idx, region, make([]Type, idx.Columns()), InferOptions{Params: testParams()})
	assert.Equal(t, Logical, types[0].Kind)
	assert.Equal(t, Integer, types[1].Kind)
	assert.Equal(t, Double, types[2].Kind)
	assert.Equal(t, Character, types[3].Kind)
	assert.Equal(t, Character, types[4].Kind)
}

func TestInferTemporal(t *testing.T) {
	content := "d,tm,dt\n" +
		"2024-01-15,13:45:00,2024-01-15 13:45:00\n" +
		"2023-12-31,00:00:01,2023-12-31 23:59:59\n"
	idx, region := indexContent(t, content)

	types := Infer(idx, region, make([]Type, idx.Columns()), InferOptions{Params: testParams()})
	assert.Equal(t, Date, types[0].Kind)
	assert.Equal(t, "2006-01-02", types[0].Format)
	assert.Equal(t, Time, types[1].Kind)
	assert.Equal(t, Datetime, types[2].Kind)
}

func TestInferGroupedNumber(t *testing.T) {
	content := "n\n\"1,234\"\n\"12,345,678\"\n"
	idx, region := indexContent(t, content)

	types := Infer(idx, region, make([]Type, idx.Columns()), InferOptions{Params: testParams()})
	require.Equal(t, Number, types[0].Kind)

	col := NewLazy("n", types[0], idx, region, 0, 0, testParams(), locale.Default(), nil)
	assert.Equal(t, float64(1234), col.Get(0))
	assert.Equal(t, float64(12345678), col.Get(1))
}

func TestInferAllNAIsCharacter(t *testing.T) {
	content := "a\nNA\nNA\n"
	idx, region := indexContent(t, content)

	types := Infer(idx, region, make([]Type, idx.Columns()), InferOptions{Params: testParams()})
	assert.Equal(t, Character, types[0].Kind)
}

func TestInferUserOverride(t *testing.T) {
	content := "a,b\n1,2\n3,4\n"
	idx, region := indexContent(t, content)

	assigned := make([]Type, idx.Columns())
	assigned[0] = Type{Kind: Character}
	types := Infer(idx, region, assigned, InferOptions{Params: testParams()})
	assert.Equal(t, Character, types[0].Kind)
	assert.Equal(t, Integer, types[1].Kind)
}

func TestLazyGetNA(t *testing.T) {
	content := "a,b\n1,NA\n2,5\n"
	idx, region := indexContent(t, content)

	col := NewLazy("b", Type{Kind: Integer}, idx, region, 1, 0, testParams(), nil, nil)
	assert.Nil(t, col.Get(0))
	assert.Equal(t, int64(5), col.Get(1))
}

func TestLazyParseFailureRecordsProblem(t *testing.T) {
	content := "a,b\n1,ok\n2,7\n"
	idx, region := indexContent(t, content)

	log := NewProblemLog()
	col := NewLazy("b", Type{Kind: Integer}, idx, region, 1, 0, testParams(), nil, log)

	assert.Nil(t, col.Get(0))
	assert.Equal(t, int64(7), col.Get(1))

	// the same failing cell reports once
	assert.Nil(t, col.Get(0))

	problems := log.sorted()
	require.Len(t, problems, 1)
	assert.Equal(t, errors.ProblemParse, problems[0].Kind)
	assert.Equal(t, int64(0), problems[0].Row)
	assert.Equal(t, 1, problems[0].Col)
	assert.Equal(t, "integer", problems[0].Expected)
	assert.Equal(t, "ok", problems[0].Found)
}

func TestMaterializeMatchesLazy(t *testing.T) {
	content := "a,b,c\n1,x,TRUE\n2,y,FALSE\nNA,z,TRUE\n"
	idx, region := indexContent(t, content)

	params := testParams()
	for col, typ := range []Type{{Kind: Integer}, {Kind: Character}, {Kind: Logical}} {
		lazy := NewLazy("col", typ, idx, region, col, 0, params, nil, nil)
		fresh := NewLazy("col", typ, idx, region, col, 0, params, nil, nil)
		m := fresh.Materialize()
		for row := int64(0); row < idx.Rows(); row++ {
			assert.Equal(t, lazy.Get(row), m.Value(row), "col %d row %d", col, row)
		}
	}
}

func TestMaterializeIdempotentAndConcurrent(t *testing.T) {
	content := "a\n1\n2\n3\n"
	idx, region := indexContent(t, content)

	col := NewLazy("a", Type{Kind: Integer}, idx, region, 0, 0, testParams(), nil, nil)

	var wg sync.WaitGroup
	results := make([]*Materialized, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = col.Materialize()
		}(i)
	}
	wg.Wait()

	for i := 1; i < 8; i++ {
		assert.Same(t, results[0], results[i])
	}
}

func TestFactorInferredLevels(t *testing.T) {
	content := "g\nlow\nhigh\nlow\nmid\nNA\n"
	idx, region := indexContent(t, content)

	col := NewLazy("g", Type{Kind: Factor}, idx, region, 0, 0, testParams(), nil, nil)
	m := col.Materialize()

	assert.Equal(t, []string{"low", "high", "mid"}, m.Levels)
	assert.Equal(t, []int32{0, 1, 0, 2, -1}, m.Codes)
	assert.Equal(t, "low", m.Value(0))
	assert.Nil(t, m.Value(4))
}

func TestFactorExplicitLevels(t *testing.T) {
	content := "g\nlow\nwat\nhigh\n"
	idx, region := indexContent(t, content)

	log := NewProblemLog()
	typ := Type{Kind: Factor, Levels: []string{"low", "high"}}
	col := NewLazy("g", typ, idx, region, 0, 0, testParams(), nil, log)

	assert.Equal(t, "low", col.Get(0))
	assert.Nil(t, col.Get(1))
	assert.Equal(t, "high", col.Get(2))
	require.Len(t, log.sorted(), 1)
}

func TestTemporalColumn(t *testing.T) {
	content := "d\n2024-01-15\n2023-06-30\n"
	idx, region := indexContent(t, content)

	col := NewLazy("d", Type{Kind: Date, Format: "2006-01-02"}, idx, region, 0, 0, testParams(), nil, nil)
	v := col.Get(0)
	require.IsType(t, time.Time{}, v)
	assert.Equal(t, 2024, v.(time.Time).Year())
}

func TestConcatColumn(t *testing.T) {
	idx1, region1 := indexContent(t, "a\n1\n2\n")
	idx2, region2 := indexContent(t, "a\n3\n")

	params := testParams()
	part1 := NewLazy("a", Type{Kind: Integer}, idx1, region1, 0, 0, params, nil, nil)
	part2 := NewLazy("a", Type{Kind: Integer}, idx2, region2, 0, 2, params, nil, nil)
	cat := NewConcat("a", Type{Kind: Integer}, []Column{part1, part2})

	assert.Equal(t, int64(3), cat.Len())
	assert.Equal(t, int64(1), cat.Get(0))
	assert.Equal(t, int64(2), cat.Get(1))
	assert.Equal(t, int64(3), cat.Get(2))

	m := cat.Materialize()
	assert.Equal(t, []int64{1, 2, 3}, m.Ints)
}

func TestConstColumn(t *testing.T) {
	c := NewConst("path", "a.csv", 3)
	assert.Equal(t, int64(3), c.Len())
	assert.Equal(t, "a.csv", c.Get(2))
	m := c.Materialize()
	assert.Equal(t, []string{"a.csv", "a.csv", "a.csv"}, m.Strings)
}

func TestTableRowVsColumnEquivalence(t *testing.T) {
	content := "a,b\n1,x\n2,y\n3,z\n"
	idx, region := indexContent(t, content)

	params := testParams()
	cols := []Column{
		NewLazy("a", Type{Kind: Integer}, idx, region, 0, 0, params, nil, nil),
		NewLazy("b", Type{Kind: Character}, idx, region, 1, 0, params, nil, nil),
	}
	region.Retain()
	table := NewTable(cols, idx.Rows(), nil, []source.Region{region})
	defer table.Close()

	var iterated [][]interface{}
	table.IterRows(func(row int64, values []interface{}) bool {
		iterated = append(iterated, append([]interface{}(nil), values...))
		return true
	})

	require.Len(t, iterated, 3)
	for row := int64(0); row < table.RowCount(); row++ {
		for col := 0; col < table.ColumnCount(); col++ {
			assert.Equal(t, table.Get(col, row), iterated[row][col])
		}
	}
}

func TestProblemLogOrdering(t *testing.T) {
	log := NewProblemLog()
	log.Record(errors.Problem{Kind: errors.ProblemParse, Row: 5, Col: 1})
	log.Record(errors.Problem{Kind: errors.ProblemParse, Row: 2, Col: 3})
	log.Record(errors.Problem{Kind: errors.ProblemParse, Row: 2, Col: 0})

	problems := log.sorted()
	require.Len(t, problems, 3)
	assert.Equal(t, int64(2), problems[0].Row)
	assert.Equal(t, 0, problems[0].Col)
	assert.Equal(t, int64(2), problems[1].Row)
	assert.Equal(t, 3, problems[1].Col)
	assert.Equal(t, int64(5), problems[2].Row)
}
