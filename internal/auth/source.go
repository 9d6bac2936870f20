// Package auth supplies bearer tokens for the FoundationaLLM APIs.
package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/golang-jwt/jwt/v5"

	"github.com/foundationallm/foundationallm-sub000/internal/config"
)

var (
	// ErrMissingToken indicates the configured token env var is empty.
	ErrMissingToken = errors.New("bearer token not set")
	// ErrTokenExpired indicates a static JWT whose exp claim has passed.
	ErrTokenExpired = errors.New("bearer token expired")
)

// TokenSource yields bearer tokens. Implementations must be safe for concurrent use.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Invalidator is implemented by sources that can drop a cached token after a 401.
type Invalidator interface {
	Invalidate()
}

// StaticSource reads a token from an environment variable on every call.
type StaticSource struct {
	EnvVar string
	Getenv func(string) string
	Now    func() time.Time
}

// Token returns the env token, rejecting JWTs that are already expired.
func (s StaticSource) Token(_ context.Context) (string, error) {
	getenv := s.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	token := strings.TrimSpace(getenv(s.EnvVar))
	token = strings.TrimPrefix(token, "Bearer ")
	if token == "" {
		return "", fmt.Errorf("%w: %s is empty", ErrMissingToken, s.EnvVar)
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	if exp, ok := TokenExpiry(token); ok && !exp.After(now()) {
		return "", fmt.Errorf("%w at %s", ErrTokenExpired, exp.UTC().Format(time.RFC3339))
	}
	return token, nil
}

// TokenExpiry reads the exp claim of a JWT without verifying its signature.
// Opaque tokens report ok=false.
func TokenExpiry(token string) (time.Time, bool) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// AzureSource obtains tokens from an Azure credential and caches them until
// they come within RefreshMargin of expiry.
type AzureSource struct {
	Credential    azcore.TokenCredential
	Scopes        []string
	RefreshMargin time.Duration
	Now           func() time.Time

	mu      sync.Mutex
	cached  string
	expires time.Time
}

// NewAzureSource builds a source backed by DefaultAzureCredential.
func NewAzureSource(scope string, refreshMargin time.Duration) (*AzureSource, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("create azure credential: %w", err)
	}
	return &AzureSource{
		Credential:    cred,
		Scopes:        []string{scope},
		RefreshMargin: refreshMargin,
	}, nil
}

// Token returns the cached token or fetches a new one.
func (s *AzureSource) Token(ctx context.Context) (string, error) {
	if s.Credential == nil {
		return "", errors.New("azure credential is nil")
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached != "" && now().Add(s.RefreshMargin).Before(s.expires) {
		return s.cached, nil
	}
	token, err := s.Credential.GetToken(ctx, policy.TokenRequestOptions{Scopes: s.Scopes})
	if err != nil {
		return "", fmt.Errorf("get azure token: %w", err)
	}
	s.cached = token.Token
	s.expires = token.ExpiresOn
	return s.cached, nil
}

// Invalidate drops the cached token so the next call fetches a fresh one.
func (s *AzureSource) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cached = ""
	s.expires = time.Time{}
}

// NewSource selects a token source for the auth config.
func NewSource(cfg config.AuthConfig) (TokenSource, error) {
	switch cfg.Mode {
	case config.AuthStatic, "":
		return StaticSource{EnvVar: cfg.TokenEnv}, nil
	case config.AuthAzure:
		return NewAzureSource(cfg.Scope, time.Duration(cfg.RefreshMarginSeconds)*time.Second)
	default:
		return nil, fmt.Errorf("unsupported auth mode %q", cfg.Mode)
	}
}
