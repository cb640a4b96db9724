package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"identity-gateway/internal/domain"
	"identity-gateway/internal/infrastructure/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGateway(baseURL string) *KeycloakGateway {
	return NewKeycloakGateway(KeycloakConfig{
		BaseURL:      baseURL,
		Realm:        "my-app-realm",
		ClientID:     "my-app-client",
		ClientSecret: "client-secret",
		Timeout:      time.Second,
		Retry: retry.Config{
			MaxAttempts:   3,
			BaseDelay:     time.Millisecond,
			MaxDelay:      5 * time.Millisecond,
			BackoffFactor: 2,
		},
	}, nil)
}

func TestKeycloakGateway_RequestToken_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/realms/my-app-realm/protocol/openid-connect/token", r.URL.Path)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "password", r.PostForm.Get("grant_type"))
		assert.Equal(t, "a@b.c", r.PostForm.Get("username"))
		assert.Equal(t, "pw", r.PostForm.Get("password"))
		assert.Equal(t, "my-app-client", r.PostForm.Get("client_id"))
		assert.Equal(t, "client-secret", r.PostForm.Get("client_secret"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"T1","expires_in":300,"refresh_token":"R1","token_type":"Bearer","scope":"email"}`))
	}))
	defer server.Close()

	gw := newTestGateway(server.URL)
	form := domain.PasswordGrant("a@b.c", "pw")
	tokens, err := gw.RequestToken(context.Background(), form)

	require.NoError(t, err)
	assert.Equal(t, &domain.AuthTokens{AccessToken: "T1", ExpiresIn: 300, RefreshToken: "R1", TokenType: "Bearer"}, tokens)
	assert.Empty(t, form.Get("client_secret"), "caller form must not be mutated")
}

func TestKeycloakGateway_RequestToken_Rejected(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusUnauthorized} {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid user credentials"}`))
		}))

		gw := newTestGateway(server.URL)
		tokens, err := gw.RequestToken(context.Background(), domain.PasswordGrant("a@b.c", "wrong"))

		assert.Nil(t, tokens)
		assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
		assert.Equal(t, int32(1), calls.Load(), "rejections are never retried")
		server.Close()
	}
}

func TestKeycloakGateway_RequestToken_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"T1","expires_in":300,"refresh_token":"R1","token_type":"Bearer"}`))
	}))
	defer server.Close()

	gw := newTestGateway(server.URL)
	tokens, err := gw.RequestToken(context.Background(), domain.RefreshGrant("R0"))

	require.NoError(t, err)
	assert.Equal(t, "T1", tokens.AccessToken)
	assert.Equal(t, int32(3), calls.Load())
}

func TestKeycloakGateway_RequestToken_RetriesThrottling(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	gw := newTestGateway(server.URL)
	_, err := gw.RequestToken(context.Background(), domain.PasswordGrant("a@b.c", "pw"))

	assert.ErrorIs(t, err, domain.ErrTransport)
	assert.NotErrorIs(t, err, domain.ErrInvalidCredentials)
	assert.Equal(t, int32(3), calls.Load())
}

func TestKeycloakGateway_RequestToken_ExhaustsAttempts(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	gw := newTestGateway(server.URL)
	tokens, err := gw.RequestToken(context.Background(), domain.PasswordGrant("a@b.c", "pw"))

	assert.Nil(t, tokens)
	assert.ErrorIs(t, err, domain.ErrTransport)
	assert.Equal(t, int32(3), calls.Load())
}

func TestKeycloakGateway_RequestToken_MissingAccessToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"expires_in":300}`))
	}))
	defer server.Close()

	gw := newTestGateway(server.URL)
	_, err := gw.RequestToken(context.Background(), domain.PasswordGrant("a@b.c", "pw"))

	assert.ErrorIs(t, err, domain.ErrTransport)
}

func TestKeycloakGateway_RequestToken_ProviderUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	gw := newTestGateway(url)
	_, err := gw.RequestToken(context.Background(), domain.PasswordGrant("a@b.c", "pw"))

	assert.ErrorIs(t, err, domain.ErrTransport)
}

func TestKeycloakGateway_RequestToken_PerAttemptTimeout(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer server.Close()

	gw := NewKeycloakGateway(KeycloakConfig{
		BaseURL: server.URL,
		Realm:   "my-app-realm",
		Timeout: 20 * time.Millisecond,
		Retry:   retry.Config{MaxAttempts: 2, BaseDelay: time.Millisecond, BackoffFactor: 2},
	}, nil)
	_, err := gw.RequestToken(context.Background(), domain.PasswordGrant("a@b.c", "pw"))

	assert.ErrorIs(t, err, domain.ErrTransport)
	assert.Equal(t, int32(2), calls.Load())
}

func TestKeycloakGateway_CreateUser_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/admin/realms/my-app-realm/users", r.URL.Path)
		assert.Equal(t, "Bearer admin-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body newUserRepresentation
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "new@example.com", body.Username)
		assert.Equal(t, "new@example.com", body.Email)
		assert.True(t, body.Enabled)
		require.Len(t, body.Credentials, 1)
		assert.Equal(t, credentialRepresentation{Type: "password", Value: "s3cret", Temporary: false}, body.Credentials[0])

		w.Header().Set("Location", "/admin/realms/my-app-realm/users/u-1")
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	gw := newTestGateway(server.URL)
	err := gw.CreateUser(context.Background(), "admin-token", "new@example.com", "s3cret")

	assert.NoError(t, err)
}

func TestKeycloakGateway_CreateUser_Conflict(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"errorMessage":"User exists with same username"}`))
	}))
	defer server.Close()

	gw := newTestGateway(server.URL)
	err := gw.CreateUser(context.Background(), "admin-token", "taken@example.com", "pw")

	assert.ErrorIs(t, err, domain.ErrUserAlreadyExists)
	assert.Equal(t, int32(1), calls.Load())
}

func TestKeycloakGateway_CreateUser_AdminTokenRejected(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	gw := newTestGateway(server.URL)
	err := gw.CreateUser(context.Background(), "stale-token", "a@b.c", "pw")

	assert.ErrorIs(t, err, domain.ErrTransport)
	assert.ErrorIs(t, err, domain.ErrAdminTokenRejected)
	assert.Equal(t, int32(1), calls.Load())
}

func TestKeycloakGateway_CreateUser_UnexpectedClientError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errorMessage":"invalid email"}`))
	}))
	defer server.Close()

	gw := newTestGateway(server.URL)
	err := gw.CreateUser(context.Background(), "admin-token", "not-an-email", "pw")

	assert.ErrorIs(t, err, domain.ErrTransport)
	assert.Contains(t, err.Error(), "invalid email")
	assert.Equal(t, int32(1), calls.Load())
}

func TestKeycloakGateway_GetUserByID_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/admin/realms/my-app-realm/users/u-1", r.URL.Path)
		assert.Equal(t, "Bearer admin-token", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"u-1","username":"a@b.c","email":"a@b.c","enabled":true,"createdTimestamp":1700000000000}`))
	}))
	defer server.Close()

	gw := newTestGateway(server.URL)
	user, err := gw.GetUserByID(context.Background(), "admin-token", "u-1")

	require.NoError(t, err)
	assert.Equal(t, &domain.UserRecord{
		ID:               "u-1",
		Username:         "a@b.c",
		Email:            "a@b.c",
		Enabled:          true,
		CreatedTimestamp: 1700000000000,
	}, user)
}

func TestKeycloakGateway_GetUserByID_NotFound(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	gw := newTestGateway(server.URL)
	user, err := gw.GetUserByID(context.Background(), "admin-token", "missing")

	assert.Nil(t, user)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
	assert.Equal(t, int32(1), calls.Load())
}

func TestKeycloakGateway_GetRolesForUser(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		want     []string
		wantErr  error
		wantNone bool
	}{
		{
			name:   "maps role representations to names",
			status: http.StatusOK,
			body:   `[{"id":"r1","name":"user"},{"id":"r2","name":"offline_access"}]`,
			want:   []string{"user", "offline_access"},
		},
		{
			name:     "no roles is an empty slice",
			status:   http.StatusOK,
			body:     `[]`,
			want:     []string{},
			wantNone: true,
		},
		{
			name:    "unknown user",
			status:  http.StatusNotFound,
			wantErr: domain.ErrUserNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/admin/realms/my-app-realm/users/u-1/role-mappings/realm", r.URL.Path)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			gw := newTestGateway(server.URL)
			roles, err := gw.GetRolesForUser(context.Background(), "admin-token", "u-1")

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, roles)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, roles)
			if tt.wantNone {
				assert.NotNil(t, roles)
				assert.Empty(t, roles)
			}
		})
	}
}

func TestKeycloakGateway_AdminURLEscapesSegments(t *testing.T) {
	gw := newTestGateway("http://keycloak:8080/")
	assert.Equal(t, "http://keycloak:8080/admin/realms/my-app-realm/users/a%2Fb", gw.adminURL("users", "a/b"))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, isRetryable(&statusError{status: http.StatusBadGateway}))
	assert.True(t, isRetryable(&statusError{status: http.StatusTooManyRequests}))
	assert.False(t, isRetryable(&statusError{status: http.StatusForbidden}))
	assert.False(t, isRetryable(domain.ErrUserAlreadyExists))
	assert.False(t, isRetryable(context.Canceled))
	assert.True(t, isRetryable(context.DeadlineExceeded))
}
