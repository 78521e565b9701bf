package server

import (
	"net/http"

	"kubegems.io/servex/pkg/auth"
	"kubegems.io/servex/pkg/errors"
)

// MaxBytesRead bounds request bodies, a batch of a few hundred jpegs.
const MaxBytesRead = int64(32 << 20)

// MaxBytesReadHandler returns a Handler that runs h with its ResponseWriter and Request.Body wrapped by a MaxBytesReader.
func MaxBytesReadHandler(h http.HandlerFunc, n int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r2 := *r
		r2.Body = http.MaxBytesReader(w, r.Body, n)
		h.ServeHTTP(w, &r2)
	}
}

// OIDCAuthFilter rejects requests without a valid bearer token. /healthz stays open.
func OIDCAuthFilter(verifier auth.TokenVerifier, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" {
			next.ServeHTTP(w, r)
			return
		}
		token, ok := auth.BearerToken(r)
		if !ok {
			ResponseError(w, errors.NewUnauthorizedError("missing bearer token"))
			return
		}
		if err := verifier.Verify(r.Context(), token); err != nil {
			ResponseError(w, errors.NewUnauthorizedError(err.Error()))
			return
		}
		next.ServeHTTP(w, r)
	})
}
