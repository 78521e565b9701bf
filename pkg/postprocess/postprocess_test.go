package postprocess

import (
	"math"
	"reflect"
	"testing"

	"kubegems.io/servex/pkg/errors"
	"kubegems.io/servex/pkg/tensor"
)

func TestSoftmax(t *testing.T) {
	logits := tensor.Tensor{Shape: []int64{2, 3}, Data: []float32{1, 2, 3, 1000, 1000, 1000}}
	probs, err := Softmax(logits)
	if err != nil {
		t.Fatalf("Softmax() error = %v", err)
	}
	for i := 0; i < 2; i++ {
		var sum float64
		for _, p := range probs.Row(i) {
			if math.IsNaN(float64(p)) {
				t.Fatalf("row %d has NaN: %v", i, probs.Row(i))
			}
			sum += float64(p)
		}
		if math.Abs(sum-1) > 1e-5 {
			t.Errorf("row %d sums to %v", i, sum)
		}
	}
	row := probs.Row(0)
	if !(row[2] > row[1] && row[1] > row[0]) {
		t.Errorf("softmax not monotonic: %v", row)
	}
	if _, err := Softmax(tensor.Tensor{Shape: []int64{3}, Data: []float32{1, 2, 3}}); err == nil {
		t.Error("Softmax() expected error for rank 1 input")
	}
}

func TestSoftmaxNonFinite(t *testing.T) {
	inf := float32(math.Inf(1))
	probs, err := Softmax(tensor.Tensor{Shape: []int64{2, 3}, Data: []float32{1, inf, 2, inf, 0, inf}})
	if err != nil {
		t.Fatalf("Softmax() error = %v", err)
	}
	want := []float32{0, 1, 0, 0.5, 0, 0.5}
	if !reflect.DeepEqual(probs.Data, want) {
		t.Errorf("Softmax() = %v, want %v", probs.Data, want)
	}
	cls, _, err := TopK(probs, 1)
	if err != nil {
		t.Fatalf("TopK() error = %v", err)
	}
	if !reflect.DeepEqual(cls, [][]int64{{1}, {0}}) {
		t.Errorf("TopK() classes = %v", cls)
	}

	if _, err := Softmax(tensor.Tensor{Shape: []int64{1, 2}, Data: []float32{1, float32(math.NaN())}}); err == nil {
		t.Error("Softmax() expected error for NaN logit")
	}
	ninf := float32(math.Inf(-1))
	if _, err := Softmax(tensor.Tensor{Shape: []int64{1, 2}, Data: []float32{ninf, ninf}}); err == nil {
		t.Error("Softmax() expected error for a row without finite logits")
	}
}

func TestTopK(t *testing.T) {
	scores := tensor.Tensor{Shape: []int64{2, 4}, Data: []float32{
		0.1, 0.4, 0.2, 0.3,
		0.25, 0.25, 0.5, 0,
	}}
	tests := []struct {
		name      string
		k         int
		wantCls   [][]int64
		wantProbs [][]float32
		wantCode  errors.ErrCode
	}{
		{
			name:      "k=2",
			k:         2,
			wantCls:   [][]int64{{1, 3}, {2, 0}},
			wantProbs: [][]float32{{0.4, 0.3}, {0.5, 0.25}},
		},
		{
			name:      "ties keep lower index",
			k:         3,
			wantCls:   [][]int64{{1, 3, 2}, {2, 0, 1}},
			wantProbs: [][]float32{{0.4, 0.3, 0.2}, {0.5, 0.25, 0.25}},
		},
		{
			name:      "k clamped",
			k:         10,
			wantCls:   [][]int64{{1, 3, 2, 0}, {2, 0, 1, 3}},
			wantProbs: [][]float32{{0.4, 0.3, 0.2, 0.1}, {0.5, 0.25, 0.25, 0}},
		},
		{
			name:     "k zero",
			k:        0,
			wantCode: errors.ErrCodeInvalidParameter,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cls, probs, err := TopK(scores, tt.k)
			if tt.wantCode != "" {
				if !errors.IsErrCode(err, tt.wantCode) {
					t.Fatalf("TopK() error = %v, want %s", err, tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("TopK() error = %v", err)
			}
			if !reflect.DeepEqual(cls, tt.wantCls) {
				t.Errorf("TopK() classes = %v, want %v", cls, tt.wantCls)
			}
			if !reflect.DeepEqual(probs, tt.wantProbs) {
				t.Errorf("TopK() probabilities = %v, want %v", probs, tt.wantProbs)
			}
		})
	}
}
