package models

import (
	"psychohistory/internal/errors"

	"gonum.org/v1/gonum/mat"
)

// rankTolerance is the relative singular value cut-off for least squares
const rankTolerance = 1e-12

// LinearRegression is ordinary least squares with an intercept, solved by
// SVD so collinear features get the minimum-norm solution.
type LinearRegression struct {
	Coef      []float64
	Intercept float64
	Rank      int
}

// NewLinearRegression creates an unfitted model
func NewLinearRegression() *LinearRegression {
	return &LinearRegression{}
}

// Kind identifies the model
func (m *LinearRegression) Kind() Kind { return KindLinear }

// Fit solves min ||Xc b - yc|| on centred data
func (m *LinearRegression) Fit(X mat.Matrix, y []float64) error {
	n, d, err := checkFit(X, y)
	if err != nil {
		return err
	}

	xMean := make([]float64, d)
	for j := 0; j < d; j++ {
		for i := 0; i < n; i++ {
			xMean[j] += X.At(i, j)
		}
		xMean[j] /= float64(n)
	}
	yMean := 0.0
	for _, v := range y {
		yMean += v
	}
	yMean /= float64(n)

	xc := mat.NewDense(n, d, nil)
	yc := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < d; j++ {
			xc.Set(i, j, X.At(i, j)-xMean[j])
		}
		yc.SetVec(i, y[i]-yMean)
	}

	var svd mat.SVD
	if ok := svd.Factorize(xc, mat.SVDThin); !ok {
		return errors.InternalError("least squares factorisation failed")
	}
	rank := svd.Rank(rankTolerance)
	var beta mat.VecDense
	if rank > 0 {
		svd.SolveVecTo(&beta, yc, rank)
	} else {
		beta = *mat.NewVecDense(d, nil)
	}

	m.Coef = make([]float64, d)
	intercept := yMean
	for j := 0; j < d; j++ {
		m.Coef[j] = beta.AtVec(j)
		intercept -= m.Coef[j] * xMean[j]
	}
	m.Intercept = intercept
	m.Rank = rank
	return nil
}

// Predict returns X·coef + intercept
func (m *LinearRegression) Predict(X mat.Matrix) ([]float64, error) {
	n, err := checkPredict(X, len(m.Coef))
	if err != nil {
		return nil, err
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		v := m.Intercept
		for j, c := range m.Coef {
			v += c * X.At(i, j)
		}
		out[i] = v
	}
	return out, nil
}
