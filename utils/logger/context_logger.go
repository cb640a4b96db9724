package logger

import (
	"context"
	"log/slog"
	"time"
)

type ContextKey string

const (
	RequestIDKey ContextKey = "request_id"
	UserIDKey    ContextKey = "user_id"
	OperationKey ContextKey = "operation"
	WorkflowKey  ContextKey = "identity.workflow"
	ClientIPKey  ContextKey = "client_ip"
)

var contextKeys = []ContextKey{RequestIDKey, UserIDKey, OperationKey, WorkflowKey, ClientIPKey}

// ContextLogger enriches log entries with request-scoped values carried in a context.
type ContextLogger struct {
	logger *slog.Logger
}

func NewContextLogger(logger *slog.Logger) *ContextLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &ContextLogger{logger: logger}
}

// WithContext adds context values to log entries
func (cl *ContextLogger) WithContext(ctx context.Context) *slog.Logger {
	args := make([]any, 0, len(contextKeys)*2)
	for _, key := range contextKeys {
		if v, ok := ctx.Value(key).(string); ok && v != "" {
			args = append(args, string(key), v)
		}
	}
	if len(args) == 0 {
		return cl.logger
	}
	return cl.logger.With(args...)
}

func (cl *ContextLogger) LogDuration(ctx context.Context, operation string, duration time.Duration) {
	cl.WithContext(ctx).InfoContext(ctx, "operation completed",
		append(operationAttr(ctx, operation), "duration_ms", duration.Milliseconds())...)
}

func (cl *ContextLogger) LogError(ctx context.Context, operation string, err error) {
	cl.WithContext(ctx).ErrorContext(ctx, "operation failed",
		append(operationAttr(ctx, operation), "error", err)...)
}

// operationAttr names the operation unless WithContext already adds it from ctx.
func operationAttr(ctx context.Context, operation string) []any {
	if v, ok := ctx.Value(OperationKey).(string); ok && v != "" {
		return nil
	}
	return []any{"operation", operation}
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

func WithOperation(ctx context.Context, operation string) context.Context {
	return context.WithValue(ctx, OperationKey, operation)
}

func WithWorkflow(ctx context.Context, workflow string) context.Context {
	return context.WithValue(ctx, WorkflowKey, workflow)
}

func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ClientIPKey, ip)
}
