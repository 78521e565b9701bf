// Package auth verifies bearer tokens issued by an OIDC provider.
package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
)

type TokenVerifier interface {
	Verify(ctx context.Context, rawToken string) error
}

type VerifierFunc func(ctx context.Context, rawToken string) error

func (f VerifierFunc) Verify(ctx context.Context, rawToken string) error {
	return f(ctx, rawToken)
}

func NewOIDCProvider(ctx context.Context, issuer string) (*oidc.Provider, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, err
	}
	return provider, nil
}

type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCVerifier discovers the issuer. An empty clientID accepts tokens for any audience.
func NewOIDCVerifier(ctx context.Context, issuer string, clientID string) (*OIDCVerifier, error) {
	provider, err := NewOIDCProvider(ctx, issuer)
	if err != nil {
		return nil, err
	}
	verifier := provider.Verifier(&oidc.Config{
		ClientID:          clientID,
		SkipClientIDCheck: clientID == "",
	})
	return &OIDCVerifier{verifier: verifier}, nil
}

func (v *OIDCVerifier) Verify(ctx context.Context, rawToken string) error {
	_, err := v.verifier.Verify(ctx, rawToken)
	return err
}

// BearerToken extracts the token of an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, bool) {
	authorization := r.Header.Get("Authorization")
	prefix, token, ok := strings.Cut(authorization, " ")
	if !ok || !strings.EqualFold(prefix, "Bearer") || token == "" {
		return "", false
	}
	return token, true
}
