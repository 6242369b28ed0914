// Package profiling summarises the distribution of numeric columns so the
// feature table can be inspected before training.
package profiling

import (
	"math"

	"psychohistory/domain/dataset"
	"psychohistory/internal/errors"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat/distuv"
)

// normalityAlpha is the Jarque-Bera significance level
const normalityAlpha = 0.05

// ColumnProfile is the distribution summary of one column. Statistics are
// computed over observed (non-NaN) values only.
type ColumnProfile struct {
	Name     string
	Count    int
	Missing  int
	Coverage float64

	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
	Median float64
	Q25    float64
	Q75    float64

	Skewness       float64 // bias-corrected sample skewness
	ExcessKurtosis float64 // bias-corrected sample excess kurtosis
	Outliers       int     // outside 1.5 IQR of the quartiles
	NormalityP     float64 // Jarque-Bera p-value
	IsNormal       bool
}

// ProfileColumn summarises values, treating NaN as missing. A column with
// no observed values returns a profile with only the counts set.
func ProfileColumn(name string, values []float64) (ColumnProfile, error) {
	p := ColumnProfile{Name: name}
	observed := make([]float64, 0, len(values))
	for _, v := range values {
		if math.IsNaN(v) {
			p.Missing++
		} else {
			observed = append(observed, v)
		}
	}
	p.Count = len(observed)
	if len(values) > 0 {
		p.Coverage = float64(p.Count) / float64(len(values))
	}
	if p.Count == 0 {
		return p, nil
	}

	data := stats.Float64Data(observed)
	var err error
	if p.Mean, err = stats.Mean(data); err != nil {
		return p, errors.Wrapf(err, "mean of %s", name)
	}
	if p.StdDev, err = stats.StandardDeviationPopulation(data); err != nil {
		return p, errors.Wrapf(err, "standard deviation of %s", name)
	}
	if p.Min, err = stats.Min(data); err != nil {
		return p, errors.Wrapf(err, "min of %s", name)
	}
	if p.Max, err = stats.Max(data); err != nil {
		return p, errors.Wrapf(err, "max of %s", name)
	}
	if p.Median, err = stats.Median(data); err != nil {
		return p, errors.Wrapf(err, "median of %s", name)
	}
	if p.Q25, err = stats.PercentileNearestRank(data, 25); err != nil {
		return p, errors.Wrapf(err, "quartile of %s", name)
	}
	if p.Q75, err = stats.PercentileNearestRank(data, 75); err != nil {
		return p, errors.Wrapf(err, "quartile of %s", name)
	}

	p.Skewness, p.ExcessKurtosis = shape(observed, p.Mean)
	p.Outliers = countOutliers(observed, p.Q25, p.Q75)
	p.NormalityP = jarqueBera(len(observed), p.Skewness, p.ExcessKurtosis)
	p.IsNormal = p.NormalityP > normalityAlpha
	return p, nil
}

// ProfileMatrix profiles every column of m in column order
func ProfileMatrix(m *dataset.Matrix) ([]ColumnProfile, error) {
	out := make([]ColumnProfile, 0, len(m.Columns))
	for _, name := range m.Columns {
		col, err := m.Column(name)
		if err != nil {
			return nil, err
		}
		p, err := ProfileColumn(name, col)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// shape returns bias-corrected skewness (G1) and excess kurtosis (G2).
// Fewer than 3 (skewness) or 4 (kurtosis) values, or a constant column,
// give 0.
func shape(data []float64, mean float64) (float64, float64) {
	n := float64(len(data))
	var m2, m3, m4 float64
	for _, x := range data {
		d := x - mean
		d2 := d * d
		m2 += d2
		m3 += d2 * d
		m4 += d2 * d2
	}
	m2 /= n
	m3 /= n
	m4 /= n
	if m2 == 0 {
		return 0, 0
	}

	var skew, kurt float64
	if n >= 3 {
		g1 := m3 / math.Pow(m2, 1.5)
		skew = g1 * math.Sqrt(n*(n-1)) / (n - 2)
	}
	if n >= 4 {
		g2 := m4/(m2*m2) - 3
		kurt = ((n+1)*g2 + 6) * (n - 1) / ((n - 2) * (n - 3))
	}
	return skew, kurt
}

// jarqueBera returns the p-value of the Jarque-Bera normality statistic
func jarqueBera(n int, skew, excessKurt float64) float64 {
	if n < 3 {
		return 1
	}
	jb := float64(n) / 6 * (skew*skew + excessKurt*excessKurt/4)
	return 1 - distuv.ChiSquared{K: 2}.CDF(jb)
}

func countOutliers(data []float64, q25, q75 float64) int {
	iqr := q75 - q25
	lower, upper := q25-1.5*iqr, q75+1.5*iqr
	n := 0
	for _, x := range data {
		if x < lower || x > upper {
			n++
		}
	}
	return n
}
