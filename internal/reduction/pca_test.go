package reduction

import (
	"math"
	"testing"

	"psychohistory/domain/dataset"
	"psychohistory/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

var nan = math.NaN()

// coverageMatrix is 10 rows x 5 columns: c1 90%, c2 40%, others full
func coverageMatrix() *dataset.Matrix {
	index := []string{"p0", "p1", "p2", "p3", "p4", "p5", "p6", "p7", "p8", "p9"}
	m := dataset.NewMatrix(index, []string{"c0", "c1", "c2", "c3", "c4"})
	for i := range index {
		x := float64(i)
		m.Data[i][0] = x
		m.Data[i][1] = 2*x + 1
		m.Data[i][3] = math.Sin(x)
		m.Data[i][4] = x * x
		if i < 4 {
			m.Data[i][2] = -x
		}
	}
	m.Data[9][1] = nan
	return m
}

func TestFilterColumnsScenario(t *testing.T) {
	filtered, dropped := FilterColumns(coverageMatrix(), 0.6)
	assert.Equal(t, []string{"c0", "c1", "c3", "c4"}, filtered.Columns)
	assert.Equal(t, []string{"c2"}, dropped)
}

func TestFiltersIdempotent(t *testing.T) {
	m := coverageMatrix()
	m.Data[3][0], m.Data[3][3], m.Data[3][4] = nan, nan, nan

	cols, _ := FilterColumns(m, 0.6)
	again, dropped := FilterColumns(cols, 0.6)
	assert.Equal(t, cols.Columns, again.Columns)
	assert.Empty(t, dropped)

	rows, droppedRows := FilterRows(cols, 0.6)
	assert.Equal(t, []string{"p3"}, droppedRows)
	rowsAgain, droppedAgain := FilterRows(rows, 0.6)
	assert.Equal(t, rows.Index, rowsAgain.Index)
	assert.Empty(t, droppedAgain)
}

func TestFilterOrderColumnsFirst(t *testing.T) {
	// Row coverage is measured over surviving columns only: p1..p3 observe
	// just the dense column and would fail a 60% row filter taken first.
	m := dataset.NewMatrix([]string{"p0", "p1", "p2", "p3"}, []string{"dense", "sparse"})
	m.Data[0][1] = 1
	m.Data[1][0], m.Data[2][0], m.Data[3][0] = 1, 3, 5

	res, err := Reduce(m, Options{Components: 3, MinColCoverage: 0.6, MinRowCoverage: 0.6})
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2", "p3"}, res.Scores.Index)
	assert.Equal(t, []string{"dense"}, res.Loadings.Index)
	assert.Equal(t, []string{"sparse"}, res.DroppedCols)
	assert.Equal(t, []string{"p0"}, res.DroppedRows)
}

func TestReduceShapes(t *testing.T) {
	m := coverageMatrix()
	res, err := Reduce(m, DefaultOptions())
	require.NoError(t, err)

	rows, k := res.Scores.Dims()
	assert.LessOrEqual(t, rows, len(m.Index))
	assert.Equal(t, 3, k)
	lr, lk := res.Loadings.Dims()
	assert.Equal(t, 4, lr)
	assert.Equal(t, 3, lk)
	assert.Equal(t, []string{"PC1", "PC2", "PC3"}, res.Scores.Columns)

	// loadings are orthonormal
	for a := 0; a < k; a++ {
		ca, _ := res.Loadings.Column(res.Loadings.Columns[a])
		for b := 0; b < k; b++ {
			cb, _ := res.Loadings.Column(res.Loadings.Columns[b])
			want := 0.0
			if a == b {
				want = 1
			}
			assert.InDelta(t, want, floats.Dot(ca, cb), 1e-9)
		}
	}

	// variance ratios are sorted and bounded
	assert.True(t, sortDesc(res.ExplainedVar))
	assert.LessOrEqual(t, floats.Sum(res.ExplainedVar), 1.0+1e-9)

	// the 90% column was imputed with its median (2*4+1 = 9)
	assert.Equal(t, 9.0, res.ColumnMedians[1])
}

func TestReduceCapsComponents(t *testing.T) {
	m := dataset.NewMatrix([]string{"a", "b", "c", "d"}, []string{"x", "y"})
	for i := range m.Data {
		m.Data[i][0] = float64(i)
		m.Data[i][1] = float64(i * i)
	}
	res, err := Reduce(m, Options{Components: 5, MinColCoverage: 0.6, MinRowCoverage: 0.6})
	require.NoError(t, err)
	_, k := res.Scores.Dims()
	assert.Equal(t, 2, k)
}

func TestReduceDeterministic(t *testing.T) {
	a, err := Reduce(coverageMatrix(), DefaultOptions())
	require.NoError(t, err)
	b, err := Reduce(coverageMatrix(), DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, a.Scores.Data, b.Scores.Data)
	assert.Equal(t, a.Loadings.Data, b.Loadings.Data)
}

func TestReduceDegenerate(t *testing.T) {
	m := dataset.NewMatrix([]string{"a", "b", "c"}, []string{"x", "y"})
	m.Data[0][0] = 1

	_, err := Reduce(m, DefaultOptions())
	require.Error(t, err)
	assert.Equal(t, errors.CodeDegenerate, errors.GetCode(err))

	// columns survive but no row does
	m = dataset.NewMatrix([]string{"a", "b", "c", "d", "e"}, []string{"x", "y"})
	m.Data[0][0], m.Data[1][0], m.Data[2][0] = 1, 2, 3
	m.Data[3][1], m.Data[4][1] = 4, 5
	_, err = Reduce(m, Options{Components: 2, MinColCoverage: 0.4, MinRowCoverage: 0.9})
	require.Error(t, err)
	assert.Equal(t, errors.CodeDegenerate, errors.GetCode(err))
}

func sortDesc(v []float64) bool {
	for i := 1; i < len(v); i++ {
		if v[i] > v[i-1]+1e-12 {
			return false
		}
	}
	return true
}
