// Package models implements the regression and classification models the
// trainer fits: a standard scaler, ordinary least squares, L2 logistic
// regression, random forests and gradient-boosted trees. Every model is a
// plain struct with exported fields so it can be persisted as an Artifact.
package models

import (
	"fmt"

	"psychohistory/internal/errors"

	"gonum.org/v1/gonum/mat"
)

// Kind tags a persisted model
type Kind string

const (
	KindScaler           Kind = "standard_scaler"
	KindLinear           Kind = "linear_regression"
	KindForestRegressor  Kind = "random_forest_regressor"
	KindBoostRegressor   Kind = "gradient_boosting_regressor"
	KindLogistic         Kind = "logistic_regression"
	KindForestClassifier Kind = "random_forest_classifier"
	KindBoostClassifier  Kind = "gradient_boosting_classifier"
)

// Task separates duration regressors from instability classifiers
type Task string

const (
	TaskRegression     Task = "regression"
	TaskClassification Task = "classification"
)

// Task returns which task a model kind serves
func (k Kind) Task() Task {
	switch k {
	case KindLogistic, KindForestClassifier, KindBoostClassifier:
		return TaskClassification
	case KindScaler:
		return ""
	default:
		return TaskRegression
	}
}

// Regressor predicts a continuous target
type Regressor interface {
	Kind() Kind
	Fit(X mat.Matrix, y []float64) error
	Predict(X mat.Matrix) ([]float64, error)
}

// Classifier predicts the probability of the positive class (label 1)
type Classifier interface {
	Kind() Kind
	Fit(X mat.Matrix, y []float64) error
	PredictProba(X mat.Matrix) ([]float64, error)
}

// PredictLabels thresholds positive-class probabilities at 0.5
func PredictLabels(proba []float64) []float64 {
	out := make([]float64, len(proba))
	for i, p := range proba {
		if p > 0.5 {
			out[i] = 1
		}
	}
	return out
}

// checkFit validates training inputs shared by every model
func checkFit(X mat.Matrix, y []float64) (int, int, error) {
	n, d := X.Dims()
	if n == 0 || d == 0 {
		return 0, 0, errors.InvalidInput("empty training matrix")
	}
	if len(y) != n {
		return 0, 0, errors.InvalidInput(fmt.Sprintf("%d rows but %d targets", n, len(y)))
	}
	return n, d, nil
}

// checkBinary rejects labels other than 0 and 1 and a single-class target
func checkBinary(y []float64) error {
	var pos, neg int
	for _, v := range y {
		switch v {
		case 0:
			neg++
		case 1:
			pos++
		default:
			return errors.InvalidInput(fmt.Sprintf("binary target has value %v", v))
		}
	}
	if pos == 0 || neg == 0 {
		return errors.InvalidInput("binary target needs both classes")
	}
	return nil
}

// checkPredict validates the column count against the fitted width
func checkPredict(X mat.Matrix, width int) (int, error) {
	n, d := X.Dims()
	if width == 0 {
		return 0, errors.InvalidInput("model is not fitted")
	}
	if d != width {
		return 0, errors.ShapeMismatch(width, d)
	}
	return n, nil
}

// BalancedWeights returns n / (2 * n_class) per sample, the usual
// "balanced" class weighting for a binary target.
func BalancedWeights(y []float64) []float64 {
	var pos float64
	for _, v := range y {
		pos += v
	}
	n := float64(len(y))
	neg := n - pos
	w := make([]float64, len(y))
	for i, v := range y {
		if v == 1 {
			w[i] = n / (2 * pos)
		} else {
			w[i] = n / (2 * neg)
		}
	}
	return w
}

func rowsOf(X mat.Matrix) [][]float64 {
	n, d := X.Dims()
	rows := make([][]float64, n)
	for i := 0; i < n; i++ {
		row := make([]float64, d)
		for j := 0; j < d; j++ {
			row[j] = X.At(i, j)
		}
		rows[i] = row
	}
	return rows
}
