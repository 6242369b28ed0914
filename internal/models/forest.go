package models

import (
	"context"
	"math"
	"math/rand"
	"runtime"
	"sync"

	"psychohistory/internal/errors"

	"golang.org/x/sync/semaphore"
	"gonum.org/v1/gonum/mat"
)

// ForestParams configures a random forest
type ForestParams struct {
	Estimators int
	MaxDepth   int
	Seed       int64
	// Workers bounds concurrent tree fits; 0 means GOMAXPROCS
	Workers int
}

// RandomForestRegressor averages bootstrap MSE trees that consider every
// feature at each split.
type RandomForestRegressor struct {
	Params ForestParams
	Trees  []*Tree
	Width  int
}

// NewRandomForestRegressor creates an unfitted forest
func NewRandomForestRegressor(p ForestParams) *RandomForestRegressor {
	return &RandomForestRegressor{Params: p}
}

// Kind identifies the model
func (m *RandomForestRegressor) Kind() Kind { return KindForestRegressor }

// Fit grows the forest
func (m *RandomForestRegressor) Fit(X mat.Matrix, y []float64) error {
	return m.FitContext(context.Background(), X, y)
}

// FitContext grows the forest, stopping early if ctx is cancelled
func (m *RandomForestRegressor) FitContext(ctx context.Context, X mat.Matrix, y []float64) error {
	_, d, err := checkFit(X, y)
	if err != nil {
		return err
	}
	rows := rowsOf(X)
	params := treeParams{criterion: CriterionMSE, maxDepth: m.Params.MaxDepth, maxFeatures: d}
	ones := make([]float64, len(y))
	for i := range ones {
		ones[i] = 1
	}
	trees, err := growForest(ctx, rows, y, ones, params, m.Params)
	if err != nil {
		return err
	}
	m.Trees = trees
	m.Width = d
	return nil
}

// Predict averages the trees
func (m *RandomForestRegressor) Predict(X mat.Matrix) ([]float64, error) {
	n, err := checkPredict(X, m.Width)
	if err != nil {
		return nil, err
	}
	return averageTrees(m.Trees, rowsOf(X), n), nil
}

// RandomForestClassifier averages class-balanced Gini trees that sample
// sqrt(features) candidates per split. Leaves hold the weighted positive
// fraction so the average is P(y=1).
type RandomForestClassifier struct {
	Params ForestParams
	Trees  []*Tree
	Width  int
}

// NewRandomForestClassifier creates an unfitted forest
func NewRandomForestClassifier(p ForestParams) *RandomForestClassifier {
	return &RandomForestClassifier{Params: p}
}

// Kind identifies the model
func (m *RandomForestClassifier) Kind() Kind { return KindForestClassifier }

// Fit grows the forest
func (m *RandomForestClassifier) Fit(X mat.Matrix, y []float64) error {
	return m.FitContext(context.Background(), X, y)
}

// FitContext grows the forest, stopping early if ctx is cancelled
func (m *RandomForestClassifier) FitContext(ctx context.Context, X mat.Matrix, y []float64) error {
	_, d, err := checkFit(X, y)
	if err != nil {
		return err
	}
	if err := checkBinary(y); err != nil {
		return err
	}
	mtry := int(math.Sqrt(float64(d)))
	if mtry < 1 {
		mtry = 1
	}
	params := treeParams{criterion: CriterionGini, maxDepth: m.Params.MaxDepth, maxFeatures: mtry}
	trees, err := growForest(ctx, rowsOf(X), y, BalancedWeights(y), params, m.Params)
	if err != nil {
		return err
	}
	m.Trees = trees
	m.Width = d
	return nil
}

// PredictProba averages the per-tree positive fractions
func (m *RandomForestClassifier) PredictProba(X mat.Matrix) ([]float64, error) {
	n, err := checkPredict(X, m.Width)
	if err != nil {
		return nil, err
	}
	return averageTrees(m.Trees, rowsOf(X), n), nil
}

// growForest fits Estimators trees concurrently. Tree i draws its bootstrap
// sample and feature subsets from its own generator seeded Seed+i, so the
// result does not depend on scheduling.
func growForest(ctx context.Context, rows [][]float64, y, weights []float64, params treeParams, fp ForestParams) ([]*Tree, error) {
	if fp.Estimators < 1 {
		return nil, errors.InvalidInput("forest needs at least one estimator")
	}
	if params.maxDepth < 1 {
		return nil, errors.InvalidInput("forest max depth must be at least 1")
	}
	workers := fp.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	trees := make([]*Tree, fp.Estimators)
	sem := semaphore.NewWeighted(int64(workers))
	var wg sync.WaitGroup
	var acquireErr error

	for i := 0; i < fp.Estimators; i++ {
		if err := sem.Acquire(ctx, 1); err != nil {
			acquireErr = err
			break
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer sem.Release(1)

			rng := rand.New(rand.NewSource(fp.Seed + int64(i)))
			trees[i] = growTree(rows, bootstrap(rng, y, weights, params.criterion), params, rng)
		}(i)
	}
	wg.Wait()

	if acquireErr != nil {
		return nil, errors.Wrap(acquireErr, "forest fit cancelled")
	}
	return trees, nil
}

// bootstrap draws n rows with replacement and folds multiplicity into the
// sample weight; rows never drawn are left out.
func bootstrap(rng *rand.Rand, y, weights []float64, criterion Criterion) []sample {
	n := len(y)
	counts := make([]int, n)
	for i := 0; i < n; i++ {
		counts[rng.Intn(n)]++
	}
	samples := make([]sample, 0, n)
	for i, c := range counts {
		if c == 0 {
			continue
		}
		w := float64(c) * weights[i]
		s := sample{row: i, a: w, b: w * y[i]}
		if criterion == CriterionMSE {
			s.c = w * y[i] * y[i]
		}
		samples = append(samples, s)
	}
	return samples
}

func averageTrees(trees []*Tree, rows [][]float64, n int) []float64 {
	out := make([]float64, n)
	if len(trees) == 0 {
		return out
	}
	for i, row := range rows {
		sum := 0.0
		for _, t := range trees {
			sum += t.PredictRow(row)
		}
		out[i] = sum / float64(len(trees))
	}
	return out
}
