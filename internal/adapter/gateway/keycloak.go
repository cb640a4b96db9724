package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"identity-gateway/internal/domain"
	"identity-gateway/internal/infrastructure/metrics"
	"identity-gateway/internal/infrastructure/retry"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	operationRequestToken = "request_token"
	operationCreateUser   = "create_user"
	operationGetUser      = "get_user"
	operationGetRoles     = "get_roles"

	maxErrorBody = 4 << 10
)

// KeycloakConfig holds the connection settings of a KeycloakGateway.
type KeycloakConfig struct {
	BaseURL      string
	Realm        string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
	Retry        retry.Config
}

// KeycloakGateway implements domain.TokenGranter and domain.UserAdmin against
// the Keycloak token endpoint and admin REST API.
type KeycloakGateway struct {
	baseURL      string
	realm        string
	clientID     string
	clientSecret string
	timeout      time.Duration
	httpClient   *http.Client
	retrier      *retry.Retrier
	tracer       trace.Tracer
	logger       *slog.Logger
}

// NewKeycloakGateway creates a new Keycloak gateway with tuned, traced HTTP transport.
func NewKeycloakGateway(cfg KeycloakConfig, logger *slog.Logger) *KeycloakGateway {
	if logger == nil {
		logger = slog.Default()
	}

	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,
	}

	httpClient := &http.Client{
		Timeout:   cfg.Timeout,
		Transport: otelhttp.NewTransport(transport),
	}

	return &KeycloakGateway{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		realm:        cfg.Realm,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		timeout:      cfg.Timeout,
		httpClient:   httpClient,
		retrier:      retry.NewRetrier(cfg.Retry, isRetryable, logger),
		tracer:       otel.Tracer("identity-gateway/gateway"),
		logger:       logger,
	}
}

// statusError is an unexpected provider response status.
type statusError struct {
	operation string
	status    int
	body      string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("%s: provider returned status %d", e.operation, e.status)
	}
	return fmt.Sprintf("%s: provider returned status %d: %s", e.operation, e.status, e.body)
}

// isRetryable retries network failures, timeouts, 5xx and 429 only.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.status >= http.StatusInternalServerError || se.status == http.StatusTooManyRequests
	}
	var de *domain.DomainError
	return !errors.As(err, &de)
}

// userRepresentation is the subset of the Keycloak UserRepresentation we read.
type userRepresentation struct {
	ID               string `json:"id"`
	Username         string `json:"username"`
	Email            string `json:"email"`
	Enabled          bool   `json:"enabled"`
	CreatedTimestamp int64  `json:"createdTimestamp"`
}

type credentialRepresentation struct {
	Type      string `json:"type"`
	Value     string `json:"value"`
	Temporary bool   `json:"temporary"`
}

type newUserRepresentation struct {
	Username    string                     `json:"username"`
	Email       string                     `json:"email"`
	Enabled     bool                       `json:"enabled"`
	Credentials []credentialRepresentation `json:"credentials"`
}

type roleRepresentation struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RequestToken posts form to the realm token endpoint with the client credentials appended.
// Any 4xx other than 429 is reported as domain.ErrInvalidCredentials.
func (g *KeycloakGateway) RequestToken(ctx context.Context, form url.Values) (*domain.AuthTokens, error) {
	ctx, span := g.startSpan(ctx, operationRequestToken)
	defer span.End()

	body := cloneForm(form)
	body.Set(domain.ParamClientID, g.clientID)
	body.Set(domain.ParamClientSecret, g.clientSecret)
	encoded := body.Encode()
	endpoint := fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token", g.baseURL, url.PathEscape(g.realm))

	tokens, err := retry.Do(ctx, g.retrier, operationRequestToken, func(ctx context.Context) (*domain.AuthTokens, error) {
		var tokens domain.AuthTokens
		err := g.roundTrip(ctx, operationRequestToken, http.MethodPost, endpoint, "", "application/x-www-form-urlencoded",
			strings.NewReader(encoded), func(status int) error {
				if status >= 400 && status < 500 && status != http.StatusTooManyRequests {
					return domain.ErrInvalidCredentials
				}
				return nil
			}, &tokens)
		if err != nil {
			return nil, err
		}
		if tokens.AccessToken == "" {
			return nil, domain.ErrTransport.Wrap(errors.New("token response without access_token"))
		}
		return &tokens, nil
	})
	if err != nil {
		return nil, g.fail(ctx, span, operationRequestToken, err)
	}
	return tokens, nil
}

// CreateUser creates an enabled realm user with a permanent password credential.
func (g *KeycloakGateway) CreateUser(ctx context.Context, adminToken, email, password string) error {
	ctx, span := g.startSpan(ctx, operationCreateUser)
	defer span.End()

	payload, err := json.Marshal(newUserRepresentation{
		Username: email,
		Email:    email,
		Enabled:  true,
		Credentials: []credentialRepresentation{
			{Type: "password", Value: password, Temporary: false},
		},
	})
	if err != nil {
		return g.fail(ctx, span, operationCreateUser, domain.ErrUnclassified.Wrap(err))
	}
	endpoint := g.adminURL("users")

	_, err = retry.Do(ctx, g.retrier, operationCreateUser, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, g.roundTrip(ctx, operationCreateUser, http.MethodPost, endpoint, adminToken, "application/json",
			bytes.NewReader(payload), func(status int) error {
				if status == http.StatusConflict {
					return domain.ErrUserAlreadyExists
				}
				return nil
			}, nil)
	})
	if err != nil {
		return g.fail(ctx, span, operationCreateUser, err)
	}
	return nil
}

// GetUserByID fetches a realm user by id.
func (g *KeycloakGateway) GetUserByID(ctx context.Context, adminToken, userID string) (*domain.UserRecord, error) {
	ctx, span := g.startSpan(ctx, operationGetUser)
	defer span.End()

	endpoint := g.adminURL("users", userID)

	user, err := retry.Do(ctx, g.retrier, operationGetUser, func(ctx context.Context) (*domain.UserRecord, error) {
		var rep userRepresentation
		if err := g.roundTrip(ctx, operationGetUser, http.MethodGet, endpoint, adminToken, "", nil, notFoundAsUser, &rep); err != nil {
			return nil, err
		}
		return &domain.UserRecord{
			ID:               rep.ID,
			Username:         rep.Username,
			Email:            rep.Email,
			Enabled:          rep.Enabled,
			CreatedTimestamp: rep.CreatedTimestamp,
		}, nil
	})
	if err != nil {
		return nil, g.fail(ctx, span, operationGetUser, err)
	}
	return user, nil
}

// GetRolesForUser returns the names of the realm-level roles mapped to a user.
// A user without roles yields an empty, non-nil slice.
func (g *KeycloakGateway) GetRolesForUser(ctx context.Context, adminToken, userID string) ([]string, error) {
	ctx, span := g.startSpan(ctx, operationGetRoles)
	defer span.End()

	endpoint := g.adminURL("users", userID, "role-mappings", "realm")

	roles, err := retry.Do(ctx, g.retrier, operationGetRoles, func(ctx context.Context) ([]string, error) {
		var reps []roleRepresentation
		if err := g.roundTrip(ctx, operationGetRoles, http.MethodGet, endpoint, adminToken, "", nil, notFoundAsUser, &reps); err != nil {
			return nil, err
		}
		names := make([]string, 0, len(reps))
		for _, r := range reps {
			names = append(names, r.Name)
		}
		return names, nil
	})
	if err != nil {
		return nil, g.fail(ctx, span, operationGetRoles, err)
	}
	span.SetAttributes(attribute.Int("roles.count", len(roles)))
	return roles, nil
}

func notFoundAsUser(status int) error {
	if status == http.StatusNotFound {
		return domain.ErrUserNotFound
	}
	return nil
}

// roundTrip performs a single attempt under its own timeout. classify maps a
// non-2xx status to a domain error; statuses it leaves alone become statusError.
func (g *KeycloakGateway) roundTrip(ctx context.Context, operation, method, endpoint, bearer, contentType string,
	body io.Reader, classify func(status int) error, out any) error {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return domain.ErrTransport.Wrap(err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	start := time.Now()
	resp, err := g.httpClient.Do(req)
	if err != nil {
		metrics.RecordProviderRequest(operation, "network_error", time.Since(start).Seconds())
		return err
	}
	defer resp.Body.Close()
	metrics.RecordProviderRequest(operation, outcome(resp.StatusCode), time.Since(start).Seconds())

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return domain.ErrTransport.Wrap(fmt.Errorf("%s: decode response: %w", operation, err))
		}
		return nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if derr := classify(resp.StatusCode); derr != nil {
		return derr
	}
	if bearer != "" && resp.StatusCode == http.StatusUnauthorized {
		return domain.ErrTransport.Wrap(fmt.Errorf("%s: %w", operation, domain.ErrAdminTokenRejected))
	}
	return &statusError{operation: operation, status: resp.StatusCode, body: strings.TrimSpace(string(snippet))}
}

// fail converts the final error of an operation into a domain error and records it on the span.
func (g *KeycloakGateway) fail(ctx context.Context, span trace.Span, operation string, err error) error {
	var de *domain.DomainError
	if !errors.As(err, &de) {
		err = domain.ErrTransport.Wrap(err)
	}
	g.logger.WarnContext(ctx, "keycloak request failed",
		"operation", operation,
		"realm", g.realm,
		"error", err)
	span.RecordError(err)
	span.SetStatus(codes.Error, operation+" failed")
	return err
}

func (g *KeycloakGateway) startSpan(ctx context.Context, operation string) (context.Context, trace.Span) {
	return g.tracer.Start(ctx, "keycloak."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("keycloak.realm", g.realm)))
}

func (g *KeycloakGateway) adminURL(segments ...string) string {
	var b strings.Builder
	b.WriteString(g.baseURL)
	b.WriteString("/admin/realms/")
	b.WriteString(url.PathEscape(g.realm))
	for _, s := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(s))
	}
	return b.String()
}

func cloneForm(form url.Values) url.Values {
	out := make(url.Values, len(form)+2)
	for k, v := range form {
		out[k] = append([]string(nil), v...)
	}
	return out
}

func outcome(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "success"
	case status == http.StatusConflict:
		return "conflict"
	case status == http.StatusNotFound:
		return "not_found"
	case status == http.StatusTooManyRequests:
		return "throttled"
	case status >= 500:
		return "server_error"
	default:
		return "client_error"
	}
}
