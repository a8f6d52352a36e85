// Package auth handles the Google sign-in flow, browser sessions and sealing
// of OAuth tokens at rest.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
)

const (
	googleIssuer  = "https://accounts.google.com"
	googleKeysURL = "https://www.googleapis.com/oauth2/v3/certs"
)

// ErrIDToken is returned when the token response carries no valid id_token.
var ErrIDToken = errors.New("auth: invalid id token")

// Identity is the verified result of a completed sign-in.
type Identity struct {
	Email string
	Name  string
	Token *oauth2.Token
}

// GoogleConfig holds the OAuth client registration.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// GoogleProvider drives the authorization code flow against Google and
// verifies the returned id_token.
type GoogleProvider struct {
	oauth    *oauth2.Config
	verifier *oidc.IDTokenVerifier
}

// NewGoogleProvider builds a provider. Google's signing keys are fetched on
// first verification, so construction performs no network I/O.
func NewGoogleProvider(ctx context.Context, cfg GoogleConfig) *GoogleProvider {
	keySet := oidc.NewRemoteKeySet(ctx, googleKeysURL)
	return newProvider(cfg, google.Endpoint, oidc.NewVerifier(googleIssuer, keySet, &oidc.Config{ClientID: cfg.ClientID}))
}

func newProvider(cfg GoogleConfig, endpoint oauth2.Endpoint, verifier *oidc.IDTokenVerifier) *GoogleProvider {
	return &GoogleProvider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       []string{oidc.ScopeOpenID, "email", "profile", gcal.CalendarScope},
		},
		verifier: verifier,
	}
}

// OAuthConfig exposes the client config so calendar calls can refresh tokens.
func (p *GoogleProvider) OAuthConfig() *oauth2.Config {
	return p.oauth
}

// AuthCodeURL returns the consent URL. Offline access with a forced consent
// prompt makes Google issue a refresh token on every sign-in.
func (p *GoogleProvider) AuthCodeURL(state, nonce, verifier string) string {
	return p.oauth.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
		oidc.Nonce(nonce),
		oauth2.S256ChallengeOption(verifier),
	)
}

// Exchange trades code for tokens and verifies the id_token against nonce.
func (p *GoogleProvider) Exchange(ctx context.Context, code, nonce, verifier string) (Identity, error) {
	token, err := p.oauth.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return Identity{}, fmt.Errorf("auth: exchange code: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return Identity{}, fmt.Errorf("%w: missing from token response", ErrIDToken)
	}
	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrIDToken, err)
	}
	if idToken.Nonce != nonce {
		return Identity{}, fmt.Errorf("%w: nonce mismatch", ErrIDToken)
	}

	var claims struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return Identity{}, fmt.Errorf("%w: claims: %v", ErrIDToken, err)
	}
	if claims.Email == "" || !claims.EmailVerified {
		return Identity{}, fmt.Errorf("%w: email missing or unverified", ErrIDToken)
	}
	name := claims.Name
	if name == "" {
		name = claims.Email
	}
	return Identity{Email: claims.Email, Name: name, Token: token}, nil
}
