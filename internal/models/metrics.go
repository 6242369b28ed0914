package models

import (
	"fmt"
	"math"
	"sort"

	"psychohistory/internal/errors"

	"gonum.org/v1/gonum/floats"
)

// R2 is the coefficient of determination. A constant target scores 1 for
// an exact fit and 0 otherwise.
func R2(yTrue, yPred []float64) (float64, error) {
	if err := sameLength(yTrue, yPred); err != nil {
		return 0, err
	}
	mean := floats.Sum(yTrue) / float64(len(yTrue))
	var ssRes, ssTot float64
	for i, y := range yTrue {
		ssRes += (y - yPred[i]) * (y - yPred[i])
		ssTot += (y - mean) * (y - mean)
	}
	if ssTot == 0 {
		if ssRes == 0 {
			return 1, nil
		}
		return 0, nil
	}
	return 1 - ssRes/ssTot, nil
}

// MAE is the mean absolute error
func MAE(yTrue, yPred []float64) (float64, error) {
	if err := sameLength(yTrue, yPred); err != nil {
		return 0, err
	}
	sum := 0.0
	for i, y := range yTrue {
		sum += math.Abs(y - yPred[i])
	}
	return sum / float64(len(yTrue)), nil
}

// AUC is the area under the ROC curve computed from average ranks, so tied
// scores count one half. Both classes must be present.
func AUC(yTrue, scores []float64) (float64, error) {
	if err := sameLength(yTrue, scores); err != nil {
		return 0, err
	}
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] < scores[order[b]] })

	ranks := make([]float64, len(scores))
	for i := 0; i < len(order); {
		j := i
		for j+1 < len(order) && scores[order[j+1]] == scores[order[i]] {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[order[k]] = avg
		}
		i = j + 1
	}

	var nPos, nNeg, rankSum float64
	for i, y := range yTrue {
		if y == 1 {
			nPos++
			rankSum += ranks[i]
		} else {
			nNeg++
		}
	}
	if nPos == 0 || nNeg == 0 {
		return 0, errors.Degenerate("AUC is undefined when the target has a single class")
	}
	return (rankSum - nPos*(nPos+1)/2) / (nPos * nNeg), nil
}

// F1 scores hard 0/1 predictions against the positive class. No predicted
// and no actual positives scores 0.
func F1(yTrue, yPred []float64) (float64, error) {
	if err := sameLength(yTrue, yPred); err != nil {
		return 0, err
	}
	var tp, fp, fn float64
	for i, y := range yTrue {
		switch {
		case y == 1 && yPred[i] == 1:
			tp++
		case y != 1 && yPred[i] == 1:
			fp++
		case y == 1 && yPred[i] != 1:
			fn++
		}
	}
	if tp == 0 {
		return 0, nil
	}
	return 2 * tp / (2*tp + fp + fn), nil
}

func sameLength(a, b []float64) error {
	if len(a) == 0 {
		return errors.InvalidInput("no observations to score")
	}
	if len(a) != len(b) {
		return errors.InvalidInput(fmt.Sprintf("%d targets but %d predictions", len(a), len(b)))
	}
	return nil
}
