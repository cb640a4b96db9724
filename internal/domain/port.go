package domain

import (
	"context"
	"net/url"
)

// TokenGranter posts OAuth2 grant forms to the provider token endpoint.
type TokenGranter interface {
	RequestToken(ctx context.Context, form url.Values) (*AuthTokens, error)
}

// UserAdmin performs admin-scoped user management calls.
type UserAdmin interface {
	CreateUser(ctx context.Context, adminToken, email, password string) error
	GetUserByID(ctx context.Context, adminToken, userID string) (*UserRecord, error)
	GetRolesForUser(ctx context.Context, adminToken, userID string) ([]string, error)
}

// AdminTokenSource hands out a currently valid admin access token.
type AdminTokenSource interface {
	Token(ctx context.Context) (string, error)
	Invalidate(token string)
}

// SubjectVerifier verifies a bearer access token and returns its subject id.
type SubjectVerifier interface {
	VerifySubject(ctx context.Context, rawToken string) (string, error)
}
