// Package runtime executes a restored network graph. The graph itself is
// opaque here; only its input and output tensors are known.
package runtime

import (
	"context"

	"kubegems.io/servex/pkg/tensor"
)

// Network maps a preprocessed input batch to a [batch, classes] logits tensor.
type Network interface {
	Forward(ctx context.Context, input tensor.Tensor) (tensor.Tensor, error)
	Close() error
}

// NetworkFunc adapts a function into a Network with a no-op Close.
type NetworkFunc func(ctx context.Context, input tensor.Tensor) (tensor.Tensor, error)

func (f NetworkFunc) Forward(ctx context.Context, input tensor.Tensor) (tensor.Tensor, error) {
	return f(ctx, input)
}

func (f NetworkFunc) Close() error {
	return nil
}
