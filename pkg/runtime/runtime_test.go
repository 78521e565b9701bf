package runtime

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"kubegems.io/servex/pkg/tensor"
)

func TestNetworkFunc(t *testing.T) {
	sum := NetworkFunc(func(ctx context.Context, input tensor.Tensor) (tensor.Tensor, error) {
		if err := input.Validate(); err != nil {
			return tensor.Tensor{}, err
		}
		out := tensor.New(input.Shape[0], 1)
		for i := range out.Data {
			for _, v := range input.Row(i) {
				out.Data[i] += v
			}
		}
		return out, nil
	})

	tests := []struct {
		name    string
		input   tensor.Tensor
		want    []float32
		wantErr bool
	}{
		{name: "rows", input: tensor.Tensor{Shape: []int64{2, 2}, Data: []float32{1, 2, 3, 4}}, want: []float32{3, 7}},
		{name: "malformed", input: tensor.Tensor{Shape: []int64{2, 2}, Data: []float32{1}}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sum.Forward(context.Background(), tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Forward() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got.Data, tt.want) {
				t.Errorf("Forward() = %v, want %v", got.Data, tt.want)
			}
		})
	}
	if err := sum.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestONNXNetworkForwardRejects(t *testing.T) {
	valid := tensor.New(1, 2, 2, 3)
	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name    string
		ctx     context.Context
		net     *ONNXNetwork
		input   tensor.Tensor
		wantErr string
	}{
		{name: "rank", net: &ONNXNetwork{numClasses: 3}, input: tensor.New(2, 3), wantErr: "rank 4"},
		{name: "malformed", net: &ONNXNetwork{numClasses: 3}, input: tensor.Tensor{Shape: []int64{1, 2, 2, 3}, Data: make([]float32, 5)}, wantErr: "wants 12 elements"},
		{name: "empty batch", net: &ONNXNetwork{numClasses: 3}, input: tensor.New(0, 2, 2, 3), wantErr: "empty input batch"},
		{name: "canceled", ctx: canceled, net: &ONNXNetwork{numClasses: 3}, input: valid, wantErr: context.Canceled.Error()},
		{name: "closed", net: &ONNXNetwork{numClasses: 3, closed: true}, input: valid, wantErr: "network closed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := tt.ctx
			if ctx == nil {
				ctx = context.Background()
			}
			_, err := tt.net.Forward(ctx, tt.input)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Forward() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestONNXNetworkCloseTwice(t *testing.T) {
	n := &ONNXNetwork{closed: true}
	if err := n.Close(); err != nil {
		t.Errorf("Close() on closed network error = %v", err)
	}
}
