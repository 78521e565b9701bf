package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
	"github.com/spf13/cobra"
	"kubegems.io/servex/pkg/server"
	"kubegems.io/servex/pkg/version"
)

const ErrExitCode = 1

func main() {
	if err := NewServerCmd().Execute(); err != nil {
		fmt.Println(err.Error())
		os.Exit(ErrExitCode)
	}
}

func NewServerCmd() *cobra.Command {
	options := server.DefaultOptions()
	cmd := &cobra.Command{
		Use:     "servexd",
		Short:   "serve predictions of an exported servable over http",
		Version: version.Get().String(),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
			defer cancel()

			log.SetFlags(log.LstdFlags | log.Lshortfile)
			if os.Getenv("DEBUG") == "1" {
				stdr.SetVerbosity(1)
			}
			ctx = logr.NewContext(ctx, stdr.NewWithOptions(log.Default(), stdr.Options{LogCaller: stdr.Error}))

			return server.Run(ctx, options)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&options.Listen, "listen", options.Listen, "listen address")
	flags.StringVar(&options.TLS.CertFile, "tls-cert", options.TLS.CertFile, "tls cert file")
	flags.StringVar(&options.TLS.KeyFile, "tls-key", options.TLS.KeyFile, "tls key file")
	flags.StringVar(&options.OIDC.Issuer, "oidc-issuer", options.OIDC.Issuer, "oidc issuer, enables bearer token verification")
	flags.StringVar(&options.OIDC.ClientID, "oidc-client-id", options.OIDC.ClientID, "expected token audience")
	flags.StringVar(&options.ModelName, "model-name", options.ModelName, "model name in request paths")
	flags.StringVar(&options.ModelDir, "model-dir", options.ModelDir, "exported servable directory")
	flags.StringVar(&options.CacheDir, "cache-dir", options.CacheDir, "leveldb prediction cache directory, empty disables caching")
	flags.Int64Var(&options.MaxBytesRead, "max-bytes-read", options.MaxBytesRead, "request body limit")
	flags.BoolVar(&options.AllowPNG, "allow-png", options.AllowPNG, "accept png images")
	flags.StringVar(&options.ONNX.SharedLibrary, "onnxruntime-lib", options.ONNX.SharedLibrary, "onnxruntime shared library")
	flags.IntVar(&options.ONNX.IntraOpThreads, "intra-op-threads", options.ONNX.IntraOpThreads, "onnxruntime intra op threads, 0 for default")
	return cmd
}
