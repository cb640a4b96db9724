package usecase

import (
	"context"
	"net/url"
	"sync"

	"identity-gateway/internal/domain"
)

// mockGranter implements domain.TokenGranter for testing.
type mockGranter struct {
	mu     sync.Mutex
	tokens *domain.AuthTokens
	err    error
	forms  []url.Values
}

func (m *mockGranter) RequestToken(_ context.Context, form url.Values) (*domain.AuthTokens, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forms = append(m.forms, form)
	return m.tokens, m.err
}

func (m *mockGranter) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.forms)
}

// mockAdminTokens implements domain.AdminTokenSource for testing.
type mockAdminTokens struct {
	mu          sync.Mutex
	token       string
	err         error
	calls       int
	invalidated []string
}

func (m *mockAdminTokens) Token(_ context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.token, m.err
}

func (m *mockAdminTokens) Invalidate(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidated = append(m.invalidated, token)
}

// mockUserAdmin implements domain.UserAdmin for testing.
type mockUserAdmin struct {
	mu sync.Mutex

	createErr   error
	createCalls int
	created     []string

	user     *domain.UserRecord
	userErr  error
	roles    []string
	rolesErr error

	adminTokens []string
	// barrier, when set, holds each lookup until both are in flight.
	barrier *sync.WaitGroup
}

func (m *mockUserAdmin) CreateUser(_ context.Context, adminToken, email, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	m.adminTokens = append(m.adminTokens, adminToken)
	m.created = append(m.created, email)
	return m.createErr
}

func (m *mockUserAdmin) GetUserByID(_ context.Context, adminToken, _ string) (*domain.UserRecord, error) {
	m.arrive()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adminTokens = append(m.adminTokens, adminToken)
	return m.user, m.userErr
}

func (m *mockUserAdmin) GetRolesForUser(_ context.Context, adminToken, _ string) ([]string, error) {
	m.arrive()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adminTokens = append(m.adminTokens, adminToken)
	return m.roles, m.rolesErr
}

// arrive blocks until both lookups are running when a barrier is set.
func (m *mockUserAdmin) arrive() {
	if m.barrier == nil {
		return
	}
	m.barrier.Done()
	m.barrier.Wait()
}
