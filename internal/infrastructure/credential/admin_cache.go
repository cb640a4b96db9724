// Package credential caches the service-level admin access token.
package credential

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"identity-gateway/internal/domain"
	"identity-gateway/internal/infrastructure/metrics"
	"identity-gateway/utils/logger"

	"golang.org/x/sync/singleflight"
)

const (
	refreshKey       = "admin-token"
	refreshOperation = "admin_token_refresh"
	defaultMargin    = time.Second
)

// AdminTokenCache holds one admin credential shared by every request.
// Reads are lock-free; concurrent callers that find it expired share a single
// refresh through singleflight.
type AdminTokenCache struct {
	granter  domain.TokenGranter
	username string
	password string
	margin   time.Duration
	now      func() time.Time
	log      *logger.ContextLogger

	current atomic.Pointer[domain.AdminCredential]
	group   singleflight.Group
}

// Option configures an AdminTokenCache.
type Option func(*AdminTokenCache)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *AdminTokenCache) {
		c.now = now
	}
}

// WithMargin sets how long before expiry a token stops being served.
func WithMargin(margin time.Duration) Option {
	return func(c *AdminTokenCache) {
		c.margin = margin
	}
}

// NewAdminTokenCache creates an empty cache that obtains tokens from granter
// with the password grant of the given admin user.
func NewAdminTokenCache(granter domain.TokenGranter, username, password string, l *slog.Logger, opts ...Option) *AdminTokenCache {
	c := &AdminTokenCache{
		granter:  granter,
		username: username,
		password: password,
		margin:   defaultMargin,
		now:      time.Now,
		log:      logger.NewContextLogger(l),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns a valid admin access token, refreshing it if needed.
// A caller whose ctx ends stops waiting, but the refresh itself keeps running
// for the remaining waiters.
func (c *AdminTokenCache) Token(ctx context.Context) (string, error) {
	if cred := c.current.Load(); cred.ValidAt(c.now(), c.margin) {
		return cred.Token, nil
	}

	ch := c.group.DoChan(refreshKey, func() (interface{}, error) {
		return c.refresh(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Shared {
			metrics.RecordSharedRefresh()
		}
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(*domain.AdminCredential).Token, nil
	}
}

// refresh runs inside the flight. A failed grant leaves the current pair untouched.
func (c *AdminTokenCache) refresh(ctx context.Context) (*domain.AdminCredential, error) {
	// Another flight may have installed a fresh token between our check and DoChan.
	if cred := c.current.Load(); cred.ValidAt(c.now(), c.margin) {
		return cred, nil
	}

	ctx = logger.WithOperation(ctx, refreshOperation)
	start := time.Now()
	issuedAt := c.now()
	tokens, err := c.granter.RequestToken(ctx, domain.PasswordGrant(c.username, c.password))
	if err != nil {
		err = classifyRefreshError(err)
		metrics.RecordAdminTokenRefresh("failure")
		c.log.LogError(ctx, refreshOperation, err)
		return nil, err
	}

	cred := &domain.AdminCredential{
		Token:     tokens.AccessToken,
		ExpiresAt: issuedAt.Add(time.Duration(tokens.ExpiresIn) * time.Second),
	}
	c.current.Store(cred)

	metrics.RecordAdminTokenRefresh("success")
	if !cred.ValidAt(issuedAt, c.margin) {
		c.log.WithContext(ctx).WarnContext(ctx, "admin token lifetime shorter than expiry margin",
			"expires_in", tokens.ExpiresIn,
			"margin", c.margin.String())
	}
	c.log.LogDuration(ctx, refreshOperation, time.Since(start))
	return cred, nil
}

// classifyRefreshError keeps a rejected admin grant from surfacing as the
// caller's own InvalidCredentials. The original error is not wrapped since
// DomainError matches by kind.
func classifyRefreshError(err error) error {
	if errors.Is(err, domain.ErrInvalidCredentials) {
		return domain.ErrTransport.Wrap(fmt.Errorf("admin grant: %w", domain.ErrAdminCredentialsRejected))
	}
	return err
}

// Invalidate drops the cached credential if it still holds token, forcing the
// next Token call to refresh. A newer credential is left in place.
func (c *AdminTokenCache) Invalidate(token string) {
	cred := c.current.Load()
	if cred == nil || cred.Token != token {
		return
	}
	if c.current.CompareAndSwap(cred, nil) {
		c.log.WithContext(context.Background()).Warn("admin token invalidated after provider rejection")
	}
}

// Snapshot returns a copy of the cached credential and whether one is present.
func (c *AdminTokenCache) Snapshot() (domain.AdminCredential, bool) {
	cred := c.current.Load()
	if cred == nil {
		return domain.AdminCredential{}, false
	}
	return *cred, true
}

// Ready reports whether an admin token can be obtained right now.
func (c *AdminTokenCache) Ready(ctx context.Context) error {
	_, err := c.Token(ctx)
	return err
}
