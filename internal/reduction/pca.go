// Package reduction compresses the sparse indicator matrix into a few
// principal components.
package reduction

import (
	"fmt"
	"math"

	"psychohistory/domain/dataset"
	"psychohistory/internal/errors"
	"psychohistory/internal/logging"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Options controls coverage filtering and the number of components
type Options struct {
	Components     int
	MinColCoverage float64
	MinRowCoverage float64
}

// DefaultOptions returns 3 components with 60% coverage thresholds
func DefaultOptions() Options {
	return Options{Components: 3, MinColCoverage: 0.6, MinRowCoverage: 0.6}
}

// Result holds component scores and loadings
type Result struct {
	Scores        *dataset.Matrix // surviving rows x k, columns PC1..PCk
	Loadings      *dataset.Matrix // surviving columns x k
	ExplainedVar  []float64       // variance ratio per component
	DroppedCols   []string
	DroppedRows   []string
	ColumnMedians []float64
}

// ComponentNames returns PC1..PCk
func ComponentNames(k int) []string {
	names := make([]string, k)
	for i := range names {
		names[i] = fmt.Sprintf("PC%d", i+1)
	}
	return names
}

// FilterColumns keeps columns whose observed fraction is at least min
func FilterColumns(m *dataset.Matrix, min float64) (*dataset.Matrix, []string) {
	var keep, dropped []string
	for j, c := range m.Columns {
		if m.ColumnCoverage(j) >= min {
			keep = append(keep, c)
		} else {
			dropped = append(dropped, c)
		}
	}
	out, _ := m.SelectColumns(keep)
	return out, dropped
}

// FilterRows keeps rows whose observed fraction is at least min
func FilterRows(m *dataset.Matrix, min float64) (*dataset.Matrix, []string) {
	var keep []int
	var dropped []string
	for i := range m.Index {
		if m.RowCoverage(i) >= min {
			keep = append(keep, i)
		} else {
			dropped = append(dropped, m.Index[i])
		}
	}
	return m.SelectRows(keep), dropped
}

// Reduce filters columns then rows by coverage, imputes column medians,
// standardises, and projects onto k = min(Components, columns) principal
// components. An empty filter result is a DEGENERATE error.
func Reduce(wide *dataset.Matrix, opts Options) (*Result, error) {
	if opts.Components < 1 {
		return nil, errors.InvalidInput("components must be at least 1")
	}

	filtered, droppedCols := FilterColumns(wide, opts.MinColCoverage)
	if len(filtered.Columns) == 0 {
		return nil, errors.Degenerate(fmt.Sprintf(
			"no column reaches %.0f%% coverage (%d columns tested)", opts.MinColCoverage*100, len(wide.Columns)))
	}
	filtered, droppedRows := FilterRows(filtered, opts.MinRowCoverage)
	if len(filtered.Index) == 0 {
		return nil, errors.Degenerate(fmt.Sprintf(
			"no row reaches %.0f%% coverage over %d columns", opts.MinRowCoverage*100, len(filtered.Columns)))
	}

	medians, err := imputeMedians(filtered)
	if err != nil {
		return nil, err
	}
	x := standardize(filtered.Dense())

	n, d := x.Dims()
	k := opts.Components
	if d < k {
		k = d
	}
	if n < k {
		k = n
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(x, nil); !ok {
		return nil, errors.InternalError("principal component decomposition failed")
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	vars := pc.VarsTo(nil)

	loadings := mat.DenseCopyOf(vecs.Slice(0, d, 0, k))
	fixSigns(loadings)

	var scores mat.Dense
	scores.Mul(x, loadings)

	names := ComponentNames(k)
	res := &Result{
		Scores:        dataset.FromDense(&scores, filtered.Index, names),
		Loadings:      dataset.FromDense(loadings, filtered.Columns, names),
		ExplainedVar:  explainedRatio(vars, k),
		DroppedCols:   droppedCols,
		DroppedRows:   droppedRows,
		ColumnMedians: medians,
	}

	logging.Component("reduction").Info("principal components fitted",
		"rows", n, "columns", d, "components", k,
		"dropped_columns", len(droppedCols), "dropped_rows", len(droppedRows))
	return res, nil
}

// imputeMedians fills NaN cells with the column median in place
func imputeMedians(m *dataset.Matrix) ([]float64, error) {
	medians := make([]float64, len(m.Columns))
	for j, name := range m.Columns {
		observed := make([]float64, 0, len(m.Data))
		for _, row := range m.Data {
			if !math.IsNaN(row[j]) {
				observed = append(observed, row[j])
			}
		}
		if len(observed) == 0 {
			return nil, errors.Degenerate(fmt.Sprintf("column %s has no observed values", name))
		}
		med, err := stats.Median(observed)
		if err != nil {
			return nil, errors.Wrapf(err, "median of %s", name)
		}
		medians[j] = med
		for _, row := range m.Data {
			if math.IsNaN(row[j]) {
				row[j] = med
			}
		}
	}
	return medians, nil
}

// standardize centres each column and divides by its population standard
// deviation; constant columns are only centred.
func standardize(x *mat.Dense) *mat.Dense {
	n, d := x.Dims()
	out := mat.NewDense(n, d, nil)
	col := make([]float64, n)
	for j := 0; j < d; j++ {
		mat.Col(col, j, x)
		mean, _ := stats.Mean(col)
		sd, _ := stats.StandardDeviationPopulation(col)
		if sd == 0 || math.IsNaN(sd) {
			sd = 1
		}
		for i := 0; i < n; i++ {
			out.Set(i, j, (col[i]-mean)/sd)
		}
	}
	return out
}

// fixSigns flips each component so its largest-magnitude loading is positive
func fixSigns(loadings *mat.Dense) {
	d, k := loadings.Dims()
	for c := 0; c < k; c++ {
		best := 0.0
		for r := 0; r < d; r++ {
			if v := loadings.At(r, c); math.Abs(v) > math.Abs(best) {
				best = v
			}
		}
		if best < 0 {
			for r := 0; r < d; r++ {
				loadings.Set(r, c, -loadings.At(r, c))
			}
		}
	}
}

func explainedRatio(vars []float64, k int) []float64 {
	total := 0.0
	for _, v := range vars {
		total += v
	}
	out := make([]float64, k)
	if total == 0 {
		return out
	}
	for i := 0; i < k && i < len(vars); i++ {
		out[i] = vars[i] / total
	}
	return out
}
