package usecase

import (
	"context"
	"errors"
	"log/slog"

	"identity-gateway/internal/domain"
	"identity-gateway/internal/infrastructure/metrics"
)

// fail records a workflow failure and guarantees the returned error carries a DomainError.
func fail(ctx context.Context, logger *slog.Logger, workflow string, err error) error {
	var de *domain.DomainError
	if !errors.As(err, &de) {
		de = domain.ErrUnclassified.Wrap(err)
		err = de
	}
	metrics.RecordWorkflowError(workflow, string(de.Kind))

	if de.Status >= 500 {
		logger.ErrorContext(ctx, "workflow failed", "workflow", workflow, "kind", de.Kind, "error", err)
	} else {
		logger.InfoContext(ctx, "workflow rejected", "workflow", workflow, "kind", de.Kind)
	}
	return err
}

// dropRejectedAdminToken evicts token from the cache when the provider refused it.
func dropRejectedAdminToken(admin domain.AdminTokenSource, token string, err error) {
	if errors.Is(err, domain.ErrAdminTokenRejected) {
		admin.Invalidate(token)
	}
}
