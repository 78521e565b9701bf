// Package server exposes a loaded servable over HTTP.
package server

import (
	"context"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-logr/logr"
	"github.com/gorilla/handlers"
	"kubegems.io/servex/pkg/auth"
	"kubegems.io/servex/pkg/errors"
	"kubegems.io/servex/pkg/postprocess"
	"kubegems.io/servex/pkg/servable"
	"kubegems.io/servex/pkg/types"
)

type Server struct {
	Name         string
	Servable     *servable.Servable
	Cache        *ResultCache
	MaxBytesRead int64
}

func Run(ctx context.Context, opts *Options) error {
	log := logr.FromContextOrDiscard(ctx)

	s, err := servable.Load(ctx, opts.ModelDir, &servable.Options{ONNX: opts.ONNX, AllowPNG: opts.AllowPNG})
	if err != nil {
		return err
	}
	defer s.Close()

	srv := &Server{Name: opts.ModelName, Servable: s, MaxBytesRead: opts.MaxBytesRead}
	if opts.CacheDir != "" {
		cache, err := OpenResultCache(opts.CacheDir)
		if err != nil {
			return err
		}
		defer cache.Close()
		srv.Cache = cache
	}

	handler := srv.route()
	if opts.OIDC.Issuer != "" {
		verifier, err := auth.NewOIDCVerifier(ctx, opts.OIDC.Issuer, opts.OIDC.ClientID)
		if err != nil {
			return err
		}
		handler = OIDCAuthFilter(verifier, handler)
	}
	handler = handlers.CombinedLoggingHandler(os.Stdout, handler)

	server := http.Server{
		Addr:    opts.Listen,
		Handler: handler,
		BaseContext: func(l net.Listener) context.Context {
			return ctx
		},
	}
	go func() {
		<-ctx.Done()
		shutdownctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(shutdownctx)
	}()
	var serveErr error
	if opts.TLS.CertFile != "" && opts.TLS.KeyFile != "" {
		log.Info("servex listening", "https", opts.Listen, "model", opts.ModelName)
		serveErr = server.ListenAndServeTLS(opts.TLS.CertFile, opts.TLS.KeyFile)
	} else {
		log.Info("servex listening", "http", opts.Listen, "model", opts.ModelName)
		serveErr = server.ListenAndServe()
	}
	if serveErr == http.ErrServerClosed {
		return nil
	}
	return serveErr
}

type ModelStatus struct {
	Name         string                     `json:"name"`
	Version      string                     `json:"version"`
	Digest       string                     `json:"digest"`
	Architecture string                     `json:"architecture"`
	TopK         int                        `json:"topK"`
	Labels       int                        `json:"labels"`
	LoadedAt     time.Time                  `json:"loadedAt"`
	Annotations  map[string]string          `json:"annotations,omitempty"`
	Signatures   map[string]types.Signature `json:"signatures"`
}

func (s *Server) status() ModelStatus {
	b := s.Servable.Bundle
	return ModelStatus{
		Name:         s.Name,
		Version:      filepath.Base(b.Dir),
		Digest:       b.Digest.String(),
		Architecture: b.Config.Architecture,
		TopK:         b.Config.TopK,
		Labels:       len(b.Labels),
		LoadedAt:     s.Servable.LoadedAt,
		Annotations:  b.Manifest.Annotations,
		Signatures:   b.Config.Signatures,
	}
}

// predict answers from the cache only when every image of the batch hits,
// otherwise the whole batch runs and every row is stored.
func (s *Server) predict(ctx context.Context, images [][]byte, k int) (*types.PredictResponse, error) {
	if len(images) == 0 {
		return nil, errors.NewBatchEmptyError()
	}
	if s.Cache == nil {
		return s.Servable.Predict(ctx, images, k)
	}
	log := logr.FromContextOrDiscard(ctx)

	effectiveK := k
	if effectiveK <= 0 {
		effectiveK = s.Servable.Bundle.Config.TopK
	}
	if effectiveK <= 0 {
		effectiveK = postprocess.DefaultTopK
	}
	keys := make([][]byte, len(images))
	for i, img := range images {
		keys[i] = CacheKey(s.Servable.Bundle.Digest, img, effectiveK)
	}

	if resp, ok := s.fromCache(keys); ok {
		log.V(1).Info("prediction served from cache", "images", len(images))
		return resp, nil
	}
	resp, err := s.Servable.Predict(ctx, images, effectiveK)
	if err != nil {
		return nil, err
	}
	for i, key := range keys {
		row := cachedRow{Classes: resp.Classes[i], Probabilities: resp.Probabilities[i]}
		if resp.Labels != nil {
			row.Labels = resp.Labels[i]
		}
		if err := s.Cache.Put(key, row); err != nil {
			log.Error(err, "cache prediction")
		}
	}
	return resp, nil
}

func (s *Server) fromCache(keys [][]byte) (*types.PredictResponse, bool) {
	resp := &types.PredictResponse{
		Classes:       make([][]int64, len(keys)),
		Probabilities: make([][]float32, len(keys)),
	}
	if len(s.Servable.Bundle.Labels) > 0 {
		resp.Labels = make([][]string, len(keys))
	}
	for i, key := range keys {
		row, ok := s.Cache.Get(key)
		if !ok {
			return nil, false
		}
		resp.Classes[i], resp.Probabilities[i] = row.Classes, row.Probabilities
		if resp.Labels != nil {
			resp.Labels[i] = row.Labels
		}
	}
	return resp, true
}
