package models

import (
	"math"
	"math/rand"
	"sort"
)

// Criterion selects how a tree scores candidate splits
type Criterion string

const (
	// CriterionMSE minimises weighted squared error
	CriterionMSE Criterion = "mse"
	// CriterionGini minimises weighted Gini impurity of a 0/1 target
	CriterionGini Criterion = "gini"
	// CriterionNewton minimises the second-order boosting objective
	// -G^2/(H+lambda) over gradient and hessian sums
	CriterionNewton Criterion = "newton"
)

const splitEpsilon = 1e-12

// Node is one entry of a flattened tree. Leaves carry Value, internal
// nodes send x[Feature] <= Threshold to Left.
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     float64
	Leaf      bool
}

// Tree is a fitted binary decision tree
type Tree struct {
	Nodes []Node
	Width int
}

// treeParams is the growth configuration shared by forests and boosters
type treeParams struct {
	criterion      Criterion
	maxDepth       int
	maxFeatures    int
	lambda         float64
	minChildWeight float64
}

// sample carries the additive statistics of one training row. For MSE and
// Gini a is the weight and b the weighted target (c the weighted square);
// for Newton a is the hessian and b the gradient.
type sample struct {
	row     int
	a, b, c float64
}

type stats3 struct{ a, b, c float64 }

func (s *stats3) add(x sample) {
	s.a += x.a
	s.b += x.b
	s.c += x.c
}

func (s stats3) minus(o stats3) stats3 {
	return stats3{s.a - o.a, s.b - o.b, s.c - o.c}
}

func (p treeParams) cost(s stats3) float64 {
	switch p.criterion {
	case CriterionNewton:
		return -s.b * s.b / (s.a + p.lambda)
	case CriterionGini:
		if s.a <= 0 {
			return 0
		}
		return 2 * s.b * (s.a - s.b) / s.a
	default:
		if s.a <= 0 {
			return 0
		}
		return s.c - s.b*s.b/s.a
	}
}

func (p treeParams) leafValue(s stats3) float64 {
	switch p.criterion {
	case CriterionNewton:
		return -s.b / (s.a + p.lambda)
	default:
		if s.a <= 0 {
			return 0
		}
		return s.b / s.a
	}
}

func (p treeParams) childAllowed(s stats3) bool {
	if p.criterion == CriterionNewton {
		return s.a >= p.minChildWeight
	}
	return s.a > 0
}

// growTree fits a tree on rows x with per-row statistics
func growTree(x [][]float64, samples []sample, params treeParams, rng *rand.Rand) *Tree {
	width := 0
	if len(x) > 0 {
		width = len(x[0])
	}
	if params.maxFeatures <= 0 || params.maxFeatures > width {
		params.maxFeatures = width
	}
	b := &treeBuilder{x: x, params: params, rng: rng, width: width}
	b.build(samples, 0)
	return &Tree{Nodes: b.nodes, Width: width}
}

type treeBuilder struct {
	x      [][]float64
	params treeParams
	rng    *rand.Rand
	width  int
	nodes  []Node
}

func (b *treeBuilder) build(samples []sample, depth int) int {
	var total stats3
	for _, s := range samples {
		total.add(s)
	}
	id := len(b.nodes)
	b.nodes = append(b.nodes, Node{Leaf: true, Value: b.params.leafValue(total)})

	if depth >= b.params.maxDepth || len(samples) < 2 {
		return id
	}
	parentCost := b.params.cost(total)
	if parentCost == 0 && b.params.criterion != CriterionNewton {
		return id
	}

	feature, threshold, ok := b.bestSplit(samples, total, parentCost)
	if !ok {
		return id
	}

	var left, right []sample
	for _, s := range samples {
		if b.x[s.row][feature] <= threshold {
			left = append(left, s)
		} else {
			right = append(right, s)
		}
	}
	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	b.nodes[id] = Node{Feature: feature, Threshold: threshold, Left: l, Right: r}
	return id
}

func (b *treeBuilder) features() []int {
	if b.params.maxFeatures >= b.width {
		all := make([]int, b.width)
		for i := range all {
			all[i] = i
		}
		return all
	}
	return b.rng.Perm(b.width)[:b.params.maxFeatures]
}

func (b *treeBuilder) bestSplit(samples []sample, total stats3, parentCost float64) (int, float64, bool) {
	bestCost := parentCost - splitEpsilon
	bestFeature, bestThreshold, found := -1, 0.0, false

	sorted := make([]sample, len(samples))
	for _, f := range b.features() {
		copy(sorted, samples)
		sort.SliceStable(sorted, func(i, j int) bool {
			return b.x[sorted[i].row][f] < b.x[sorted[j].row][f]
		})

		var left stats3
		for i := 0; i < len(sorted)-1; i++ {
			left.add(sorted[i])
			lo, hi := b.x[sorted[i].row][f], b.x[sorted[i+1].row][f]
			if lo == hi {
				continue
			}
			right := total.minus(left)
			if !b.params.childAllowed(left) || !b.params.childAllowed(right) {
				continue
			}
			c := b.params.cost(left) + b.params.cost(right)
			if c < bestCost {
				bestCost = c
				bestFeature = f
				bestThreshold = lo + (hi-lo)/2
				if bestThreshold >= hi {
					bestThreshold = lo
				}
				found = true
			}
		}
	}
	return bestFeature, bestThreshold, found
}

// PredictRow walks the tree for one observation
func (t *Tree) PredictRow(x []float64) float64 {
	if len(t.Nodes) == 0 {
		return math.NaN()
	}
	n := t.Nodes[0]
	for !n.Leaf {
		if x[n.Feature] <= n.Threshold {
			n = t.Nodes[n.Left]
		} else {
			n = t.Nodes[n.Right]
		}
	}
	return n.Value
}

// Depth returns the longest root-to-leaf path
func (t *Tree) Depth() int {
	if len(t.Nodes) == 0 {
		return 0
	}
	var walk func(i int) int
	walk = func(i int) int {
		n := t.Nodes[i]
		if n.Leaf {
			return 0
		}
		l, r := walk(n.Left), walk(n.Right)
		if l > r {
			return l + 1
		}
		return r + 1
	}
	return walk(0)
}
