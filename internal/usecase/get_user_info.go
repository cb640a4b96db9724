package usecase

import (
	"context"
	"log/slog"

	"identity-gateway/internal/domain"

	"golang.org/x/sync/errgroup"
)

// GetUserInfo assembles the identity of an authenticated subject.
type GetUserInfo struct {
	admin  domain.AdminTokenSource
	users  domain.UserAdmin
	logger *slog.Logger
}

// NewGetUserInfo creates a new GetUserInfo usecase.
func NewGetUserInfo(a domain.AdminTokenSource, u domain.UserAdmin, l *slog.Logger) *GetUserInfo {
	return &GetUserInfo{admin: a, users: u, logger: l}
}

// Execute looks up the user and its realm roles concurrently and joins them.
func (uc *GetUserInfo) Execute(ctx context.Context, subject string) (*domain.UserIdentity, error) {
	adminToken, err := uc.admin.Token(ctx)
	if err != nil {
		return nil, fail(ctx, uc.logger, "get_user_info", err)
	}

	var (
		user  *domain.UserRecord
		roles []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		user, err = uc.users.GetUserByID(gctx, adminToken, subject)
		return err
	})
	g.Go(func() error {
		var err error
		roles, err = uc.users.GetRolesForUser(gctx, adminToken, subject)
		return err
	})
	if err := g.Wait(); err != nil {
		dropRejectedAdminToken(uc.admin, adminToken, err)
		return nil, fail(ctx, uc.logger, "get_user_info", err)
	}

	if roles == nil {
		roles = []string{}
	}
	return &domain.UserIdentity{
		ID:        user.ID,
		Email:     user.Email,
		Roles:     roles,
		CreatedAt: user.CreatedAt(),
	}, nil
}
