// Package token verifies provider-issued bearer tokens against the realm JWKS.
package token

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"identity-gateway/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/httprc/v3"
	"github.com/lestrrat-go/jwx/v3/jwk"
)

var (
	errKeySetUnavailable = errors.New("JWKS unavailable")
	errMissingKeyID      = errors.New("token header missing kid")
	errUnknownKeyID      = errors.New("key ID not found in JWKS")
	errMissingSubject    = errors.New("token has no subject")
)

// KeySetSource returns the key set published at a JWKS URL.
// *jwk.Cache satisfies it.
type KeySetSource interface {
	Lookup(ctx context.Context, u string) (jwk.Set, error)
}

// VerifierConfig describes the tokens a JWKSVerifier accepts.
type VerifierConfig struct {
	Issuer   string
	JWKSURL  string
	Audience string // optional
	Leeway   time.Duration
}

// JWKSVerifier implements domain.SubjectVerifier for RS256 access tokens.
type JWKSVerifier struct {
	cfg    VerifierConfig
	keys   KeySetSource
	parser *jwt.Parser

	register   func(ctx context.Context) error
	registerMu sync.Mutex
	registered bool
}

// NewJWKSVerifier creates a verifier backed by an auto-refreshing JWKS cache.
// The JWKS URL is registered lazily on first use.
func NewJWKSVerifier(ctx context.Context, cfg VerifierConfig, httpClient *http.Client) (*JWKSVerifier, error) {
	if cfg.JWKSURL == "" {
		return nil, errors.New("JWKS URL is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	cache, err := jwk.NewCache(ctx, httprc.NewClient(httprc.WithHTTPClient(httpClient)))
	if err != nil {
		return nil, fmt.Errorf("failed to create JWKS cache: %w", err)
	}

	v := NewStaticVerifier(cfg, cache)
	v.register = func(ctx context.Context) error {
		return cache.Register(ctx, cfg.JWKSURL)
	}
	return v, nil
}

// NewStaticVerifier creates a verifier that reads keys from keys without registration.
func NewStaticVerifier(cfg VerifierConfig, keys KeySetSource) *JWKSVerifier {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	return &JWKSVerifier{
		cfg:    cfg,
		keys:   keys,
		parser: jwt.NewParser(opts...),
	}
}

// VerifySubject checks signature, issuer, expiry and audience of rawToken and
// returns its sub claim. Rejections are domain.ErrInvalidAccessToken; an
// unreachable key set is domain.ErrTransport.
func (v *JWKSVerifier) VerifySubject(ctx context.Context, rawToken string) (string, error) {
	if rawToken == "" {
		return "", domain.ErrInvalidAccessToken
	}

	claims := &jwt.RegisteredClaims{}
	_, err := v.parser.ParseWithClaims(rawToken, claims, func(t *jwt.Token) (any, error) {
		return v.keyFor(ctx, t)
	})
	if err != nil {
		if errors.Is(err, errKeySetUnavailable) {
			return "", domain.ErrTransport.Wrap(err)
		}
		return "", domain.ErrInvalidAccessToken.Wrap(err)
	}
	if claims.Subject == "" {
		return "", domain.ErrInvalidAccessToken.Wrap(errMissingSubject)
	}
	return claims.Subject, nil
}

func (v *JWKSVerifier) keyFor(ctx context.Context, t *jwt.Token) (any, error) {
	kid, ok := t.Header["kid"].(string)
	if !ok || kid == "" {
		return nil, errMissingKeyID
	}

	if err := v.ensureRegistered(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", errKeySetUnavailable, err)
	}

	set, err := v.keys.Lookup(ctx, v.cfg.JWKSURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errKeySetUnavailable, err)
	}

	key, found := set.LookupKeyID(kid)
	if !found {
		return nil, fmt.Errorf("%w: %s", errUnknownKeyID, kid)
	}

	var raw any
	if err := jwk.Export(key, &raw); err != nil {
		return nil, fmt.Errorf("failed to export key %s: %w", kid, err)
	}
	return raw, nil
}

// ensureRegistered registers the JWKS URL once. A failed registration is
// retried on the next request.
func (v *JWKSVerifier) ensureRegistered(ctx context.Context) error {
	if v.register == nil {
		return nil
	}

	v.registerMu.Lock()
	defer v.registerMu.Unlock()
	if v.registered {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := v.register(ctx); err != nil {
		return err
	}
	v.registered = true
	return nil
}
