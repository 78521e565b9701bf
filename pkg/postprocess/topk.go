package postprocess

import (
	"fmt"
	"sort"

	"kubegems.io/servex/pkg/errors"
	"kubegems.io/servex/pkg/tensor"
)

const DefaultTopK = 5

// TopK selects the k highest scores of every row, highest first. Equal scores
// keep the lower class index first. k larger than the class count is clamped.
func TopK(scores tensor.Tensor, k int) ([][]int64, [][]float32, error) {
	if k <= 0 {
		return nil, nil, errors.NewParameterInvalidError(fmt.Sprintf("k must be positive, got %d", k))
	}
	if scores.Rank() != 2 {
		return nil, nil, fmt.Errorf("top-k expects [batch, classes], got shape %v", scores.Shape)
	}
	if err := scores.Validate(); err != nil {
		return nil, nil, err
	}
	batch, numClasses := int(scores.Shape[0]), int(scores.Shape[1])
	if k > numClasses {
		k = numClasses
	}

	classes := make([][]int64, batch)
	probabilities := make([][]float32, batch)
	for i := 0; i < batch; i++ {
		row := scores.Row(i)
		idx := make([]int, numClasses)
		for j := range idx {
			idx[j] = j
		}
		sort.SliceStable(idx, func(a, b int) bool {
			return row[idx[a]] > row[idx[b]]
		})
		classes[i] = make([]int64, k)
		probabilities[i] = make([]float32, k)
		for j := 0; j < k; j++ {
			classes[i][j] = int64(idx[j])
			probabilities[i][j] = row[idx[j]]
		}
	}
	return classes, probabilities, nil
}
