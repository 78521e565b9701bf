// Package tensor holds the dense float32 arrays passed between preprocessing,
// the network runtime and postprocessing.
package tensor

import "fmt"

type Tensor struct {
	Shape []int64
	Data  []float32
}

func New(shape ...int64) Tensor {
	return Tensor{Shape: shape, Data: make([]float32, NumElements(shape))}
}

func NumElements(shape []int64) int {
	n := 1
	for _, d := range shape {
		n *= int(d)
	}
	return n
}

func (t Tensor) Rank() int {
	return len(t.Shape)
}

// Row returns the i-th slice along the first dimension, sharing storage.
func (t Tensor) Row(i int) []float32 {
	stride := NumElements(t.Shape[1:])
	return t.Data[i*stride : (i+1)*stride]
}

func (t Tensor) Validate() error {
	if want := NumElements(t.Shape); want != len(t.Data) {
		return fmt.Errorf("tensor shape %v wants %d elements, has %d", t.Shape, want, len(t.Data))
	}
	return nil
}

// Stack joins same-shaped tensors along a new leading dimension.
func Stack(items []Tensor) (Tensor, error) {
	if len(items) == 0 {
		return Tensor{}, fmt.Errorf("stack of zero tensors")
	}
	inner := items[0].Shape
	out := New(append([]int64{int64(len(items))}, inner...)...)
	stride := NumElements(inner)
	for i, item := range items {
		if !sameShape(item.Shape, inner) {
			return Tensor{}, fmt.Errorf("stack: tensor %d has shape %v, want %v", i, item.Shape, inner)
		}
		copy(out.Data[i*stride:], item.Data)
	}
	return out, nil
}

func sameShape(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
