package tensor

import (
	"reflect"
	"testing"
)

func TestStack(t *testing.T) {
	a := Tensor{Shape: []int64{2}, Data: []float32{1, 2}}
	b := Tensor{Shape: []int64{2}, Data: []float32{3, 4}}

	got, err := Stack([]Tensor{a, b})
	if err != nil {
		t.Fatalf("Stack() error = %v", err)
	}
	want := Tensor{Shape: []int64{2, 2}, Data: []float32{1, 2, 3, 4}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Stack() = %v, want %v", got, want)
	}
	if !reflect.DeepEqual(got.Row(1), []float32{3, 4}) {
		t.Errorf("Row(1) = %v", got.Row(1))
	}
}

func TestStackMismatch(t *testing.T) {
	a := Tensor{Shape: []int64{2}, Data: []float32{1, 2}}
	b := Tensor{Shape: []int64{3}, Data: []float32{3, 4, 5}}
	if _, err := Stack([]Tensor{a, b}); err == nil {
		t.Error("Stack() expected error for mismatched shapes")
	}
	if _, err := Stack(nil); err == nil {
		t.Error("Stack() expected error for empty input")
	}
}

func TestValidate(t *testing.T) {
	if err := New(2, 3).Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
	if err := (Tensor{Shape: []int64{2, 3}, Data: make([]float32, 5)}).Validate(); err == nil {
		t.Error("Validate() expected error")
	}
}
