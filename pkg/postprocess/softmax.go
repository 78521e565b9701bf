package postprocess

import (
	"fmt"
	"math"

	"kubegems.io/servex/pkg/tensor"
)

// Softmax normalizes each row of a [batch, classes] logits tensor into probabilities.
func Softmax(logits tensor.Tensor) (tensor.Tensor, error) {
	if logits.Rank() != 2 {
		return tensor.Tensor{}, fmt.Errorf("softmax expects [batch, classes], got shape %v", logits.Shape)
	}
	if err := logits.Validate(); err != nil {
		return tensor.Tensor{}, err
	}
	out := tensor.New(logits.Shape...)
	for i := 0; i < int(logits.Shape[0]); i++ {
		in, row := logits.Row(i), out.Row(i)
		max := float32(math.Inf(-1))
		for _, v := range in {
			if math.IsNaN(float64(v)) {
				return tensor.Tensor{}, fmt.Errorf("softmax row %d has a NaN logit", i)
			}
			if v > max {
				max = v
			}
		}
		switch {
		case math.IsInf(float64(max), 1):
			// infinite logits share all the mass
			var n int
			for _, v := range in {
				if math.IsInf(float64(v), 1) {
					n++
				}
			}
			for j, v := range in {
				if math.IsInf(float64(v), 1) {
					row[j] = 1 / float32(n)
				}
			}
			continue
		case math.IsInf(float64(max), -1):
			return tensor.Tensor{}, fmt.Errorf("softmax row %d has no finite logit", i)
		}
		var sum float64
		for j, v := range in {
			e := math.Exp(float64(v - max))
			row[j] = float32(e)
			sum += e
		}
		for j := range row {
			row[j] = float32(float64(row[j]) / sum)
		}
	}
	return out, nil
}
