package models

import (
	"context"
	"math/rand"

	"psychohistory/internal/errors"

	"gonum.org/v1/gonum/mat"
)

// BoostParams configures second-order gradient boosting
type BoostParams struct {
	Estimators   int
	MaxDepth     int
	LearningRate float64
	Lambda       float64
	Seed         int64
}

func (p BoostParams) validate() error {
	if p.Estimators < 1 {
		return errors.InvalidInput("boosting needs at least one round")
	}
	if p.MaxDepth < 1 {
		return errors.InvalidInput("boosting max depth must be at least 1")
	}
	if p.LearningRate <= 0 {
		return errors.InvalidInput("boosting learning rate must be positive")
	}
	return nil
}

func (p BoostParams) tree() treeParams {
	lambda := p.Lambda
	if lambda == 0 {
		lambda = 1
	}
	return treeParams{criterion: CriterionNewton, maxDepth: p.MaxDepth, lambda: lambda, minChildWeight: 1}
}

// GradientBoostingRegressor fits squared-error boosted trees from the
// target mean.
type GradientBoostingRegressor struct {
	Params BoostParams
	Base   float64
	Trees  []*Tree
	Width  int
}

// NewGradientBoostingRegressor creates an unfitted booster
func NewGradientBoostingRegressor(p BoostParams) *GradientBoostingRegressor {
	return &GradientBoostingRegressor{Params: p}
}

// Kind identifies the model
func (m *GradientBoostingRegressor) Kind() Kind { return KindBoostRegressor }

// Fit runs the boosting rounds
func (m *GradientBoostingRegressor) Fit(X mat.Matrix, y []float64) error {
	return m.FitContext(context.Background(), X, y)
}

// FitContext runs the boosting rounds, checking ctx between rounds
func (m *GradientBoostingRegressor) FitContext(ctx context.Context, X mat.Matrix, y []float64) error {
	n, d, err := checkFit(X, y)
	if err != nil {
		return err
	}
	if err := m.Params.validate(); err != nil {
		return err
	}
	rows := rowsOf(X)
	params := m.Params.tree()
	rng := rand.New(rand.NewSource(m.Params.Seed))

	base := 0.0
	for _, v := range y {
		base += v
	}
	base /= float64(n)

	pred := make([]float64, n)
	for i := range pred {
		pred[i] = base
	}
	trees := make([]*Tree, 0, m.Params.Estimators)
	samples := make([]sample, n)
	for r := 0; r < m.Params.Estimators; r++ {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "boosting cancelled")
		}
		for i := range samples {
			samples[i] = sample{row: i, a: 1, b: pred[i] - y[i]}
		}
		t := growTree(rows, samples, params, rng)
		for i, row := range rows {
			pred[i] += m.Params.LearningRate * t.PredictRow(row)
		}
		trees = append(trees, t)
	}

	m.Base = base
	m.Trees = trees
	m.Width = d
	return nil
}

// Predict sums the shrunken tree outputs
func (m *GradientBoostingRegressor) Predict(X mat.Matrix) ([]float64, error) {
	n, err := checkPredict(X, m.Width)
	if err != nil {
		return nil, err
	}
	return boostMargin(m.Base, m.Params.LearningRate, m.Trees, rowsOf(X), n), nil
}

// GradientBoostingClassifier fits logistic-loss boosted trees from a zero
// margin. Positive rows are weighted by ScalePosWeight, which defaults to
// negatives/positives of the training target.
type GradientBoostingClassifier struct {
	Params         BoostParams
	ScalePosWeight float64
	Trees          []*Tree
	Width          int
}

// NewGradientBoostingClassifier creates an unfitted booster
func NewGradientBoostingClassifier(p BoostParams, scalePosWeight float64) *GradientBoostingClassifier {
	return &GradientBoostingClassifier{Params: p, ScalePosWeight: scalePosWeight}
}

// Kind identifies the model
func (m *GradientBoostingClassifier) Kind() Kind { return KindBoostClassifier }

// Fit runs the boosting rounds
func (m *GradientBoostingClassifier) Fit(X mat.Matrix, y []float64) error {
	return m.FitContext(context.Background(), X, y)
}

// FitContext runs the boosting rounds, checking ctx between rounds
func (m *GradientBoostingClassifier) FitContext(ctx context.Context, X mat.Matrix, y []float64) error {
	n, d, err := checkFit(X, y)
	if err != nil {
		return err
	}
	if err := checkBinary(y); err != nil {
		return err
	}
	if err := m.Params.validate(); err != nil {
		return err
	}
	if m.ScalePosWeight <= 0 {
		m.ScalePosWeight = ScalePosWeight(y)
	}
	rows := rowsOf(X)
	params := m.Params.tree()
	rng := rand.New(rand.NewSource(m.Params.Seed))

	margin := make([]float64, n)
	trees := make([]*Tree, 0, m.Params.Estimators)
	samples := make([]sample, n)
	for r := 0; r < m.Params.Estimators; r++ {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "boosting cancelled")
		}
		for i := range samples {
			w := 1.0
			if y[i] == 1 {
				w = m.ScalePosWeight
			}
			p := sigmoid(margin[i])
			samples[i] = sample{row: i, a: w * p * (1 - p), b: w * (p - y[i])}
		}
		t := growTree(rows, samples, params, rng)
		for i, row := range rows {
			margin[i] += m.Params.LearningRate * t.PredictRow(row)
		}
		trees = append(trees, t)
	}

	m.Trees = trees
	m.Width = d
	return nil
}

// PredictProba applies the logistic link to the boosted margin
func (m *GradientBoostingClassifier) PredictProba(X mat.Matrix) ([]float64, error) {
	n, err := checkPredict(X, m.Width)
	if err != nil {
		return nil, err
	}
	out := boostMargin(0, m.Params.LearningRate, m.Trees, rowsOf(X), n)
	for i, z := range out {
		out[i] = sigmoid(z)
	}
	return out, nil
}

// ScalePosWeight returns negatives/positives, or 1 when there are no positives
func ScalePosWeight(y []float64) float64 {
	var pos, neg float64
	for _, v := range y {
		if v == 1 {
			pos++
		} else {
			neg++
		}
	}
	if pos == 0 {
		return 1
	}
	return neg / pos
}

func boostMargin(base, lr float64, trees []*Tree, rows [][]float64, n int) []float64 {
	out := make([]float64, n)
	for i, row := range rows {
		v := base
		for _, t := range trees {
			v += lr * t.PredictRow(row)
		}
		out[i] = v
	}
	return out
}
