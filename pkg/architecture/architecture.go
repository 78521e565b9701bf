// Package architecture is the registry of model definitions a checkpoint can be
// restored into. An Architecture carries everything the pre and post processing
// steps need to know about the network without executing it.
package architecture

import (
	"sort"
	"sync"

	"kubegems.io/servex/pkg/errors"
)

const (
	LayoutNHWC = "NHWC"
	LayoutNCHW = "NCHW"
)

const (
	DefaultImageSize = 224
	DefaultChannels  = 3
)

type Architecture struct {
	Name         string
	ImageSize    int
	Channels     int
	NumClasses   int
	LabelOffset  int // logits index of the first real label; 1 when class 0 is background
	Layout       string
	InputTensor  string
	OutputTensor string
	// per channel: (pixel - Offset) / Scale, pixel in [0,1]
	Offset []float32
	Scale  []float32
}

// Normalize maps a [0,1] channel value into the network input range.
func (a Architecture) Normalize(channel int, v float32) float32 {
	return (v - a.Offset[channel]) / a.Scale[channel]
}

var (
	mu       sync.RWMutex
	registry = map[string]Architecture{}
)

func Register(arch Architecture) {
	mu.Lock()
	defer mu.Unlock()
	registry[arch.Name] = arch
}

func Lookup(name string) (Architecture, error) {
	mu.RLock()
	defer mu.RUnlock()
	arch, ok := registry[name]
	if !ok {
		return Architecture{}, errors.NewArchitectureUnknownError(name)
	}
	return arch, nil
}

func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
