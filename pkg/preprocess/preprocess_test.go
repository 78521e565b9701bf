package preprocess

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"kubegems.io/servex/pkg/architecture"
	"kubegems.io/servex/pkg/errors"
)

func gradient(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 255, A: 255})
		}
	}
	return img
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	require.NoError(t, jpeg.Encode(buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	require.NoError(t, png.Encode(buf, img))
	return buf.Bytes()
}

func TestDecode(t *testing.T) {
	jpg := encodeJPEG(t, gradient(32, 16))
	pngdata := encodePNG(t, gradient(32, 16))

	img, err := DecodeJPEG(jpg)
	require.NoError(t, err)
	assert.Equal(t, 32, img.Bounds().Dx())
	assert.Equal(t, 16, img.Bounds().Dy())

	_, err = DecodeJPEG(pngdata)
	assert.Error(t, err)

	_, err = Decode(pngdata, Options{AllowPNG: true})
	assert.NoError(t, err)

	_, err = DecodeJPEG([]byte("definitely not an image"))
	assert.Error(t, err)

	_, err = DecodeJPEG(nil)
	assert.Error(t, err)
}

func TestNormalizeShapeAndRange(t *testing.T) {
	arch, err := architecture.Lookup(architecture.DefaultArchitecture)
	require.NoError(t, err)

	img, err := DecodeJPEG(encodeJPEG(t, gradient(300, 200)))
	require.NoError(t, err)

	out := Normalize(img, arch)
	assert.Equal(t, []int64{224, 224, 3}, out.Shape)
	require.NoError(t, out.Validate())
	for i, v := range out.Data {
		if v < -0.5 || v > 0.5 {
			t.Fatalf("value %d = %v out of [-0.5, 0.5]", i, v)
		}
	}
	// blue channel is saturated in the source
	assert.InDelta(t, 0.5, out.Data[2], 0.05)
}

func TestNormalizeNCHW(t *testing.T) {
	arch, err := architecture.Lookup("resnet_v1_50")
	require.NoError(t, err)

	img, err := DecodeJPEG(encodeJPEG(t, gradient(64, 64)))
	require.NoError(t, err)

	out := Normalize(img, arch)
	assert.Equal(t, []int64{3, 224, 224}, out.Shape)
}

func TestBatch(t *testing.T) {
	arch, err := architecture.Lookup(architecture.DefaultArchitecture)
	require.NoError(t, err)
	ctx := context.Background()

	jpg := encodeJPEG(t, gradient(50, 40))
	out, err := Batch(ctx, [][]byte{jpg, jpg, jpg}, arch, Options{Concurrency: 2})
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 224, 224, 3}, out.Shape)
	assert.Equal(t, out.Row(0), out.Row(2))

	_, err = Batch(ctx, nil, arch, Options{})
	assert.True(t, errors.IsErrCode(err, errors.ErrCodeBatchEmpty), "got %v", err)

	_, err = Batch(ctx, [][]byte{jpg, []byte("garbage")}, arch, Options{})
	assert.True(t, errors.IsErrCode(err, errors.ErrCodeImageInvalid), "got %v", err)
	assert.Contains(t, err.Error(), "image 1")
}
