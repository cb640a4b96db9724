package usecase

import (
	"context"
	"log/slog"

	"identity-gateway/internal/domain"
)

// Register creates a realm user and logs it in.
//
// The two provider calls are not atomic: when creation succeeds and the
// follow-up login fails, the user stays created and a later login or a retried
// registration (answered with UserAlreadyExists) recovers.
type Register struct {
	admin  domain.AdminTokenSource
	users  domain.UserAdmin
	login  *Login
	logger *slog.Logger
}

// NewRegister creates a new Register usecase.
func NewRegister(a domain.AdminTokenSource, u domain.UserAdmin, login *Login, l *slog.Logger) *Register {
	return &Register{admin: a, users: u, login: login, logger: l}
}

// Execute validates the confirmation, creates the user and returns the tokens of its first login.
func (uc *Register) Execute(ctx context.Context, email, password, confirmPassword string) (*domain.AuthTokens, error) {
	if password != confirmPassword {
		return nil, fail(ctx, uc.logger, "register", domain.ErrPasswordMismatch)
	}

	adminToken, err := uc.admin.Token(ctx)
	if err != nil {
		return nil, fail(ctx, uc.logger, "register", err)
	}

	if err := uc.users.CreateUser(ctx, adminToken, email, password); err != nil {
		dropRejectedAdminToken(uc.admin, adminToken, err)
		return nil, fail(ctx, uc.logger, "register", err)
	}
	uc.logger.InfoContext(ctx, "user created")

	tokens, err := uc.login.grant(ctx, email, password)
	if err != nil {
		uc.logger.WarnContext(ctx, "user created but first login failed")
		return nil, fail(ctx, uc.logger, "register", err)
	}
	return tokens, nil
}
