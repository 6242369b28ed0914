package models

import (
	"math"

	"psychohistory/internal/errors"

	"gonum.org/v1/gonum/mat"
)

// LogisticRegression is L2-penalised binary logistic regression fitted by
// Newton's method. The intercept is not penalised. With Balanced set each
// sample is weighted n / (2 * n_class).
type LogisticRegression struct {
	C         float64
	MaxIter   int
	Tol       float64
	Balanced  bool
	Coef      []float64
	Intercept float64
	Iter      int
}

// NewLogisticRegression returns the configuration used for the instability
// classifier: C=1, balanced class weights, up to maxIter Newton steps.
func NewLogisticRegression(maxIter int) *LogisticRegression {
	if maxIter <= 0 {
		maxIter = 1000
	}
	return &LogisticRegression{C: 1, MaxIter: maxIter, Tol: 1e-8, Balanced: true}
}

// Kind identifies the model
func (m *LogisticRegression) Kind() Kind { return KindLogistic }

// Fit minimises 0.5*|w|^2 + C * sum(s_i * logloss_i)
func (m *LogisticRegression) Fit(X mat.Matrix, y []float64) error {
	n, d, err := checkFit(X, y)
	if err != nil {
		return err
	}
	if err := checkBinary(y); err != nil {
		return err
	}
	if m.C <= 0 {
		return errors.InvalidInput("regularisation strength C must be positive")
	}

	sw := make([]float64, n)
	if m.Balanced {
		sw = BalancedWeights(y)
	} else {
		for i := range sw {
			sw[i] = 1
		}
	}

	rows := rowsOf(X)
	p := d + 1 // last slot is the intercept
	w := make([]float64, p)
	grad := mat.NewVecDense(p, nil)
	hess := mat.NewSymDense(p, nil)
	var step mat.VecDense

	m.Iter = 0
	for it := 0; it < m.MaxIter; it++ {
		m.Iter = it + 1
		for a := 0; a < p; a++ {
			g := 0.0
			if a < d {
				g = w[a]
			}
			grad.SetVec(a, g)
			for b := a; b < p; b++ {
				h := 0.0
				if a == b && a < d {
					h = 1
				}
				hess.SetSym(a, b, h)
			}
		}
		// keeps the intercept row non-singular when all weights vanish
		hess.SetSym(d, d, 1e-10)

		for i, row := range rows {
			z := w[d]
			for j, x := range row {
				z += w[j] * x
			}
			pi := sigmoid(z)
			r := m.C * sw[i] * (pi - y[i])
			c := m.C * sw[i] * pi * (1 - pi)
			for a := 0; a < p; a++ {
				xa := 1.0
				if a < d {
					xa = row[a]
				}
				grad.SetVec(a, grad.AtVec(a)+r*xa)
				for b := a; b < p; b++ {
					xb := 1.0
					if b < d {
						xb = row[b]
					}
					hess.SetSym(a, b, hess.At(a, b)+c*xa*xb)
				}
			}
		}

		var chol mat.Cholesky
		if ok := chol.Factorize(hess); !ok {
			return errors.InternalError("logistic hessian is not positive definite")
		}
		if err := chol.SolveVecTo(&step, grad); err != nil {
			return errors.Wrap(err, "solve newton step")
		}
		maxStep := 0.0
		for a := 0; a < p; a++ {
			w[a] -= step.AtVec(a)
			maxStep = math.Max(maxStep, math.Abs(step.AtVec(a)))
		}
		if maxStep < m.Tol {
			break
		}
	}

	m.Coef = append([]float64(nil), w[:d]...)
	m.Intercept = w[d]
	return nil
}

// PredictProba returns P(y=1)
func (m *LogisticRegression) PredictProba(X mat.Matrix) ([]float64, error) {
	n, err := checkPredict(X, len(m.Coef))
	if err != nil {
		return nil, err
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		z := m.Intercept
		for j, c := range m.Coef {
			z += c * X.At(i, j)
		}
		out[i] = sigmoid(z)
	}
	return out, nil
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}
