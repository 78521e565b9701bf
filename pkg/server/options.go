package server

import (
	"kubegems.io/servex/pkg/runtime"
)

type Options struct {
	Listen string
	TLS    *TLSOptions
	OIDC   *OIDCOptions
	// ModelName is the {name} the servable answers to.
	ModelName string
	// ModelDir is an exported bundle directory.
	ModelDir     string
	CacheDir     string
	MaxBytesRead int64
	AllowPNG     bool
	ONNX         *runtime.ONNXOptions
}

type TLSOptions struct {
	CertFile string
	KeyFile  string
}

type OIDCOptions struct {
	Issuer   string
	ClientID string
}

func DefaultOptions() *Options {
	return &Options{
		Listen:       ":8080",
		TLS:          &TLSOptions{},
		OIDC:         &OIDCOptions{},
		ModelName:    "default",
		ModelDir:     "/mnt/models",
		MaxBytesRead: MaxBytesRead,
		ONNX:         runtime.DefaultONNXOptions(),
	}
}
