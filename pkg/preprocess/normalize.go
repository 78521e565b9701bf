package preprocess

import (
	"image"

	"github.com/nfnt/resize"
	"kubegems.io/servex/pkg/architecture"
	"kubegems.io/servex/pkg/tensor"
)

// Normalize resizes img to the architecture input size and converts it into a
// float tensor: [size, size, 3] for NHWC networks, [3, size, size] for NCHW.
func Normalize(img image.Image, arch architecture.Architecture) tensor.Tensor {
	size := arch.ImageSize
	resized := resize.Resize(uint(size), uint(size), img, resize.Bilinear)
	bounds := resized.Bounds()

	var out tensor.Tensor
	nchw := arch.Layout == architecture.LayoutNCHW
	if nchw {
		out = tensor.New(int64(arch.Channels), int64(size), int64(size))
	} else {
		out = tensor.New(int64(size), int64(size), int64(arch.Channels))
	}
	plane := size * size

	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			r, g, b, _ := resized.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			rgb := [3]float32{float32(r) / 65535.0, float32(g) / 65535.0, float32(b) / 65535.0}
			pixel := y*size + x
			for c := 0; c < arch.Channels; c++ {
				v := arch.Normalize(c, rgb[c])
				if nchw {
					out.Data[c*plane+pixel] = v
				} else {
					out.Data[pixel*arch.Channels+c] = v
				}
			}
		}
	}
	return out
}
