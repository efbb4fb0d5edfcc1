package analysis

import (
	"errors"
	"math"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/hourlens/internal/table"
)

func fitnessTable() *table.Table {
	return table.MustNew("fitness",
		table.NewText("이름", "a", "b", "c", "d", "e"),
		table.NewNumeric("체지방율", 1, 2, 3, 4, 5),
		table.NewNumeric("골격근량", 2, 4, 6, 8, 10),
		table.NewNumeric("체중", 5, 4, 3, 1, 2),
		table.NewNumeric("수면", 2, 1, 4, 3, 5),
	)
}

func TestRankReturnsAllWhenTopNExceedsColumns(t *testing.T) {
	res, err := Rank(fitnessTable(), "체지방율", 5)
	require.NoError(t, err)

	require.Len(t, res.Top, 3)
	names := make([]string, len(res.Top))
	for i, c := range res.Top {
		names[i] = c.Attribute
		assert.NotEqual(t, "체지방율", c.Attribute)
	}
	assert.Equal(t, []string{"골격근량", "체중", "수면"}, names)
	assert.InDelta(t, 1.0, res.Top[0].R, 1e-9)
	assert.InDelta(t, -0.9, res.Top[1].R, 1e-9)
	assert.InDelta(t, 0.8, res.Top[2].R, 1e-9)
	assert.Equal(t, 5, res.Rows)
}

func TestRankLengthProperty(t *testing.T) {
	tb := fitnessTable()
	numeric := len(tb.NumericNames())
	for _, n := range []int{1, 2, 3, 4, 10} {
		res, err := Rank(tb, "체중", n)
		require.NoError(t, err)
		assert.Len(t, res.Top, min(n, numeric-1))
		assert.Len(t, res.Matrix.Columns, len(res.Top)+1)
		assert.Equal(t, "체중", res.Matrix.Columns[0])
	}
	res, err := Rank(tb, "체중", 0)
	require.NoError(t, err)
	assert.Len(t, res.Top, numeric-1)
}

func TestRankSubMatrixIsSymmetricWithUnitDiagonal(t *testing.T) {
	res, err := Rank(fitnessTable(), "체지방율", 2)
	require.NoError(t, err)
	m := res.Matrix
	require.Len(t, m.Values, 3)
	assert.Equal(t, []string{"체지방율", "골격근량", "체중"}, m.Columns)
	for i := range m.Values {
		assert.Equal(t, 1.0, m.At(i, i))
		for j := range m.Values {
			assert.Equal(t, m.At(i, j), m.At(j, i))
		}
	}
	assert.InDelta(t, -0.9, m.At(1, 2), 1e-9)
}

func TestRankDropsIncompleteRows(t *testing.T) {
	nan := math.NaN()
	tb := table.MustNew("t",
		table.NewNumeric("y", 1, 2, 3, 4, 100),
		table.NewNumeric("x", 1, 2, 3, 4, nan),
		table.NewNumeric("z", 1, 3, 2, 4, 0),
	)
	res, err := Rank(tb, "y", 5)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Rows)
	assert.Equal(t, 1, res.DroppedRows)
	// both coefficients come from the same four rows
	assert.InDelta(t, 1.0, res.Top[0].R, 1e-9)
	assert.InDelta(t, 0.8, res.Top[1].R, 1e-9)
}

func TestRankTargetMissing(t *testing.T) {
	tb := fitnessTable()
	for _, target := range []string{"BMI", "이름"} {
		_, err := Rank(tb, target, 5)
		require.ErrorIs(t, err, ErrTargetColumnMissing)
		var tm *TargetColumnMissingError
		require.True(t, errors.As(err, &tm))
		assert.Equal(t, target, tm.Target)
		assert.Equal(t, []string{"체지방율", "골격근량", "체중", "수면"}, tm.Available)
		assert.Contains(t, err.Error(), "컬럼이 없습니다")
	}
}

func TestRankInsufficientRows(t *testing.T) {
	nan := math.NaN()
	tb := table.MustNew("t",
		table.NewNumeric("y", 1, 2, nan),
		table.NewNumeric("x", nan, 2, 3),
	)
	_, err := Rank(tb, "y", 1)
	assert.ErrorIs(t, err, ErrInsufficientRows)
}

func TestRankConstantColumnSortsLast(t *testing.T) {
	tb := table.MustNew("t",
		table.NewNumeric("y", 1, 2, 3, 4),
		table.NewNumeric("flat", 7, 7, 7, 7),
		table.NewNumeric("weak", 1, 3, 2, 2),
	)
	res, err := Rank(tb, "y", 0)
	require.NoError(t, err)
	require.Len(t, res.Top, 2)
	assert.Equal(t, "weak", res.Top[0].Attribute)
	assert.Equal(t, "flat", res.Top[1].Attribute)
	assert.True(t, math.IsNaN(res.Top[1].R))
	assert.Equal(t, 1.0, res.Matrix.At(2, 2), "diagonal stays 1 even for a constant column")

	out, err := json.Marshal(res)
	require.NoError(t, err)
	assert.Contains(t, string(out), `{"attribute":"flat","r":null}`)
}

func TestRankOnlyTarget(t *testing.T) {
	tb := table.MustNew("t", table.NewNumeric("y", 1, 2, 3), table.NewText("note", "a", "b", "c"))
	res, err := Rank(tb, "y", 5)
	require.NoError(t, err)
	assert.Empty(t, res.Top)
	assert.Equal(t, [][]float64{{1}}, res.Matrix.Values)
}

func TestRankEqualMagnitudeKeepsColumnOrder(t *testing.T) {
	tb := table.MustNew("ties",
		table.NewNumeric("y", 1, 2, 3, 4, 5),
		table.NewNumeric("z", -1, -2, -3, -4, -5),
		table.NewNumeric("x", 1, 2, 3, 4, 5),
	)
	res, err := Rank(tb, "y", 0)
	require.NoError(t, err)
	require.Len(t, res.Top, 2)
	assert.Equal(t, "z", res.Top[0].Attribute)
	assert.Equal(t, "x", res.Top[1].Attribute)
	assert.InDelta(t, -1.0, res.Top[0].R, 1e-12)
	assert.InDelta(t, 1.0, res.Top[1].R, 1e-12)

	res, err = Rank(tb, "y", 1)
	require.NoError(t, err)
	require.Len(t, res.Top, 1)
	assert.Equal(t, "z", res.Top[0].Attribute)
}
