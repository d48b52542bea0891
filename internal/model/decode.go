package model

import (
	"errors"
	"fmt"
	"sort"
)

// ErrOutputShape is returned when a score vector does not line up with the
// vocabulary.
var ErrOutputShape = errors.New("output does not match vocabulary")

func isNaN(f float32) bool {
	return f != f
}

// TopK returns the k highest scoring classes, best first. Equal scores keep
// index order. k larger than the vocabulary is clamped.
func TopK(scores []float32, classes []string, k int) ([]Prediction, error) {
	if len(scores) != len(classes) {
		return nil, fmt.Errorf("%w: %d scores for %d classes", ErrOutputShape, len(scores), len(classes))
	}
	if k < 1 {
		return nil, fmt.Errorf("top k must be positive, got %d", k)
	}
	if k > len(scores) {
		k = len(scores)
	}

	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	// NaN ranks below every number so the order stays total.
	sort.SliceStable(idx, func(a, b int) bool {
		x, y := scores[idx[a]], scores[idx[b]]
		if isNaN(x) {
			return false
		}
		return isNaN(y) || x > y
	})

	predictions := make([]Prediction, k)
	for i := 0; i < k; i++ {
		predictions[i] = Prediction{
			Label:      classes[idx[i]],
			Confidence: scores[idx[i]],
		}
	}
	return predictions, nil
}
