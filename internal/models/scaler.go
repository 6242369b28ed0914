package models

import (
	"math"

	"psychohistory/internal/errors"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/mat"
)

// StandardScaler removes the mean and scales to unit population variance.
// Columns with zero variance keep a scale of 1.
type StandardScaler struct {
	FeatureNames []string
	Mean         []float64
	Scale        []float64
}

// NewStandardScaler creates a scaler bound to an ordered feature list
func NewStandardScaler(featureNames []string) *StandardScaler {
	return &StandardScaler{FeatureNames: append([]string(nil), featureNames...)}
}

// Kind identifies the artifact
func (s *StandardScaler) Kind() Kind { return KindScaler }

// Width is the number of features the scaler was fitted on
func (s *StandardScaler) Width() int { return len(s.Mean) }

// Fit learns per-column mean and standard deviation
func (s *StandardScaler) Fit(X mat.Matrix) error {
	n, d := X.Dims()
	if n == 0 || d == 0 {
		return errors.InvalidInput("empty matrix")
	}
	if len(s.FeatureNames) != 0 && len(s.FeatureNames) != d {
		return errors.ShapeMismatch(len(s.FeatureNames), d)
	}
	s.Mean = make([]float64, d)
	s.Scale = make([]float64, d)
	col := make([]float64, n)
	for j := 0; j < d; j++ {
		mat.Col(col, j, X)
		mean, err := stats.Mean(col)
		if err != nil {
			return errors.Wrap(err, "column mean")
		}
		sd, err := stats.StandardDeviationPopulation(col)
		if err != nil {
			return errors.Wrap(err, "column standard deviation")
		}
		if sd == 0 || math.IsNaN(sd) {
			sd = 1
		}
		s.Mean[j] = mean
		s.Scale[j] = sd
	}
	return nil
}

// Transform standardises X with the fitted parameters
func (s *StandardScaler) Transform(X mat.Matrix) (*mat.Dense, error) {
	n, err := checkPredict(X, s.Width())
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return &mat.Dense{}, nil
	}
	d := s.Width()
	out := mat.NewDense(n, d, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < d; j++ {
			out.Set(i, j, (X.At(i, j)-s.Mean[j])/s.Scale[j])
		}
	}
	return out, nil
}

// FitTransform fits then transforms the same matrix
func (s *StandardScaler) FitTransform(X mat.Matrix) (*mat.Dense, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}
