package models

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"psychohistory/internal/errors"
)

// Split holds row positions of the train and test partitions, each sorted
// ascending.
type Split struct {
	Train []int
	Test  []int
}

// StratifiedSplit holds out ceil(testFrac*n) rows while keeping the label
// proportions of y in both partitions. Per-class test counts use largest
// remainders; members are shuffled per class with a generator seeded by seed,
// so the same inputs always give the same partition.
func StratifiedSplit(y []float64, testFrac float64, seed int64) (Split, error) {
	n := len(y)
	if testFrac <= 0 || testFrac >= 1 {
		return Split{}, errors.InvalidInput(fmt.Sprintf("test fraction %v outside (0, 1)", testFrac))
	}

	members := map[float64][]int{}
	for i, v := range y {
		members[v] = append(members[v], i)
	}
	classes := make([]float64, 0, len(members))
	for c, idx := range members {
		if len(idx) < 2 {
			return Split{}, errors.InvalidInput(fmt.Sprintf("class %v has %d member, stratification needs at least 2", c, len(idx)))
		}
		classes = append(classes, c)
	}
	sort.Float64s(classes)

	nTest := int(math.Ceil(testFrac * float64(n)))
	if nTest < len(classes) || n-nTest < len(classes) {
		return Split{}, errors.InvalidInput(fmt.Sprintf("%d rows cannot hold %d classes in both partitions", n, len(classes)))
	}

	quota := make([]int, len(classes))
	remainders := make([]float64, len(classes))
	assigned := 0
	for k, c := range classes {
		exact := float64(len(members[c])) * float64(nTest) / float64(n)
		quota[k] = int(math.Floor(exact))
		remainders[k] = exact - float64(quota[k])
		assigned += quota[k]
	}
	order := make([]int, len(classes))
	for k := range order {
		order[k] = k
	}
	sort.SliceStable(order, func(a, b int) bool { return remainders[order[a]] > remainders[order[b]] })
	for i := 0; assigned < nTest; i = (i + 1) % len(order) {
		quota[order[i]]++
		assigned++
	}

	rng := rand.New(rand.NewSource(seed))
	var split Split
	for k, c := range classes {
		idx := members[c]
		if quota[k] >= len(idx) {
			return Split{}, errors.InvalidInput(fmt.Sprintf("class %v would have no training rows", c))
		}
		perm := rng.Perm(len(idx))
		for p, j := range perm {
			if p < quota[k] {
				split.Test = append(split.Test, idx[j])
			} else {
				split.Train = append(split.Train, idx[j])
			}
		}
	}
	sort.Ints(split.Train)
	sort.Ints(split.Test)
	return split, nil
}

// Take returns v at the given positions
func Take(v []float64, positions []int) []float64 {
	out := make([]float64, len(positions))
	for i, p := range positions {
		out[i] = v[p]
	}
	return out
}
