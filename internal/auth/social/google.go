// Package social implements the OAuth2 code exchange used by social login.
package social

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// GoogleIssuer is the issuer URL for Google's OpenID Connect endpoints.
const GoogleIssuer = "https://accounts.google.com"

// GoogleConfig carries the Google OAuth client settings. The callback URL is
// injected at construction, never read from the environment at call time.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
	IssuerURL    string
	Scopes       []string
}

// GoogleOptions tunes construction behaviour, mainly for tests.
type GoogleOptions struct {
	HTTPClient *http.Client
	Timeout    time.Duration
}

// Identity describes the profile returned by the provider after a successful exchange.
type Identity struct {
	Provider      string
	Subject       string
	Email         string
	EmailVerified bool
	FirstName     string
	LastName      string
}

var (
	// ErrMissingCode is returned when no authorization code was supplied.
	ErrMissingCode = errors.New("google: authorization code is required")
	// ErrExchangeFailed wraps upstream failures during the code exchange.
	ErrExchangeFailed = errors.New("google: code exchange failed")
)

// GoogleAdapter exchanges authorization codes for verified Google identities.
type GoogleAdapter struct {
	oauthConfig *oauth2.Config
	verifier    *oidc.IDTokenVerifier
	httpClient  *http.Client
	timeout     time.Duration
}

// NewGoogleAdapter performs OIDC discovery against the configured issuer and
// returns an adapter ready to exchange authorization codes.
func NewGoogleAdapter(cfg GoogleConfig, opts GoogleOptions) (*GoogleAdapter, error) {
	if strings.TrimSpace(cfg.ClientID) == "" {
		return nil, errors.New("google: client id is required")
	}
	if strings.TrimSpace(cfg.ClientSecret) == "" {
		return nil, errors.New("google: client secret is required")
	}
	if strings.TrimSpace(cfg.CallbackURL) == "" {
		return nil, errors.New("google: callback url is required")
	}

	issuerURL := strings.TrimSpace(cfg.IssuerURL)
	if issuerURL == "" {
		issuerURL = GoogleIssuer
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "profile", "email"}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	ctx := context.Background()
	if opts.HTTPClient != nil {
		ctx = oidc.ClientContext(ctx, opts.HTTPClient)
	}

	discoveryCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	provider, err := oidc.NewProvider(discoveryCtx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("google: discovery failed: %w", err)
	}

	return &GoogleAdapter{
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  cfg.CallbackURL,
			Scopes:       scopes,
		},
		verifier:   provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		httpClient: opts.HTTPClient,
		timeout:    timeout,
	}, nil
}

// Exchange trades an authorization code for tokens and returns the verified identity.
func (a *GoogleAdapter) Exchange(ctx context.Context, code string) (*Identity, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrMissingCode
	}

	if ctx == nil {
		ctx = context.Background()
	}
	if a.httpClient != nil {
		ctx = oidc.ClientContext(ctx, a.httpClient)
		ctx = context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
	}

	exchangeCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	token, err := a.oauthConfig.Exchange(exchangeCtx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, fmt.Errorf("%w: id token missing", ErrExchangeFailed)
	}

	idToken, err := a.verifier.Verify(exchangeCtx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("%w: verify id token: %v", ErrExchangeFailed, err)
	}

	var claims struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		GivenName     string `json:"given_name"`
		FamilyName    string `json:"family_name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: decode claims: %v", ErrExchangeFailed, err)
	}

	return &Identity{
		Provider:      "google",
		Subject:       idToken.Subject,
		Email:         strings.ToLower(strings.TrimSpace(claims.Email)),
		EmailVerified: claims.EmailVerified,
		FirstName:     claims.GivenName,
		LastName:      claims.FamilyName,
	}, nil
}
