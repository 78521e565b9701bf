package preprocess

import (
	"context"
	"runtime"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"
	"kubegems.io/servex/pkg/architecture"
	"kubegems.io/servex/pkg/errors"
	"kubegems.io/servex/pkg/tensor"
)

// Batch decodes and normalizes every image and stacks them into one input
// tensor with a leading batch dimension.
func Batch(ctx context.Context, images [][]byte, arch architecture.Architecture, opts Options) (tensor.Tensor, error) {
	if len(images) == 0 {
		return tensor.Tensor{}, errors.NewBatchEmptyError()
	}
	limit := opts.Concurrency
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	items := make([]tensor.Tensor, len(images))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(limit)
	for i := range images {
		i := i
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			img, err := Decode(images[i], opts)
			if err != nil {
				return errors.NewImageInvalidError(i, err)
			}
			items[i] = Normalize(img, arch)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return tensor.Tensor{}, err
	}
	logr.FromContextOrDiscard(ctx).V(1).Info("preprocessed batch", "size", len(images), "arch", arch.Name)
	return tensor.Stack(items)
}
