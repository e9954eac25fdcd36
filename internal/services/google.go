package services

import (
	"context"
	"fmt"
	"net/http"

	"github.com/zitadel/oidc/v3/pkg/client/rp"
	"github.com/zitadel/oidc/v3/pkg/oidc"
)

// GoogleIdentity is the subset of a verified Google ID token the service uses
type GoogleIdentity struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

// IdentityVerifier verifies a third-party ID token
type IdentityVerifier interface {
	Verify(ctx context.Context, credential string) (*GoogleIdentity, error)
}

// GoogleVerifier checks Google Sign-In credentials: signature against Google's JWKS,
// issuer, audience (our client id) and expiry.
type GoogleVerifier struct {
	verifier *rp.IDTokenVerifier
}

// NewGoogleVerifier creates a verifier for clientID. No network call is made until the
// first verification fetches the key set.
func NewGoogleVerifier(issuer, jwksURL, clientID string, client *http.Client) *GoogleVerifier {
	keySet := rp.NewRemoteKeySet(client, jwksURL)
	return &GoogleVerifier{
		verifier: rp.NewIDTokenVerifier(issuer, clientID, keySet),
	}
}

// Verify validates credential and extracts the identity claims
func (v *GoogleVerifier) Verify(ctx context.Context, credential string) (*GoogleIdentity, error) {
	claims, err := rp.VerifyIDToken[*oidc.IDTokenClaims](ctx, credential, v.verifier)
	if err != nil {
		return nil, fmt.Errorf("failed to verify google credential: %w", err)
	}
	return &GoogleIdentity{
		Subject:       claims.Subject,
		Email:         claims.Email,
		EmailVerified: bool(claims.EmailVerified),
		Name:          claims.Name,
		Picture:       claims.Picture,
	}, nil
}
