package preprocess

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/gabriel-vasile/mimetype"
)

const (
	MIMEJPEG = "image/jpeg"
	MIMEPNG  = "image/png"
)

type Options struct {
	// AllowPNG accepts PNG payloads in addition to JPEG.
	AllowPNG bool
	// Concurrency bounds batch decoding, 0 means GOMAXPROCS.
	Concurrency int
}

// DecodeJPEG decodes a JPEG payload into an image with three color channels.
func DecodeJPEG(data []byte) (image.Image, error) {
	return Decode(data, Options{})
}

func Decode(data []byte, opts Options) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty payload")
	}
	mtype := mimetype.Detect(data)
	switch {
	case mtype.Is(MIMEJPEG):
		return jpeg.Decode(bytes.NewReader(data))
	case mtype.Is(MIMEPNG) && opts.AllowPNG:
		return png.Decode(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("unsupported content type %s", mtype.String())
	}
}
