package brokerauth_test

import (
	"context"
	"time"

	brokerauth "github.com/goliatone/broker-auth"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockIdentityProvider implements brokerauth.IdentityProvider
type MockIdentityProvider struct {
	mock.Mock
}

func (m *MockIdentityProvider) VerifyIDToken(ctx context.Context, idToken string) (*brokerauth.IdentityToken, error) {
	args := m.Called(ctx, idToken)
	if token, ok := args.Get(0).(*brokerauth.IdentityToken); ok {
		return token, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockIdentityProvider) SessionCookie(ctx context.Context, idToken string, ttl time.Duration) (string, error) {
	args := m.Called(ctx, idToken, ttl)
	return args.String(0), args.Error(1)
}

func (m *MockIdentityProvider) VerifySessionCookie(ctx context.Context, cookie string, checkRevoked bool) (*brokerauth.IdentityToken, error) {
	args := m.Called(ctx, cookie, checkRevoked)
	if token, ok := args.Get(0).(*brokerauth.IdentityToken); ok {
		return token, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockIdentityProvider) RevokeSessions(ctx context.Context, uid string) error {
	args := m.Called(ctx, uid)
	return args.Error(0)
}

// MockIdentityStore implements brokerauth.IdentityStore
type MockIdentityStore struct {
	mock.Mock
}

func (m *MockIdentityStore) FindByUIDOrPhone(ctx context.Context, uid, phoneE164 string) (*brokerauth.User, error) {
	args := m.Called(ctx, uid, phoneE164)
	if user, ok := args.Get(0).(*brokerauth.User); ok {
		return user, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockIdentityStore) CreateFromToken(ctx context.Context, uid, phoneE164 string) (*brokerauth.User, error) {
	args := m.Called(ctx, uid, phoneE164)
	if user, ok := args.Get(0).(*brokerauth.User); ok {
		return user, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockIdentityStore) SyncIdentity(ctx context.Context, user *brokerauth.User, uid, phoneE164 string) (*brokerauth.User, error) {
	args := m.Called(ctx, user, uid, phoneE164)
	if user, ok := args.Get(0).(*brokerauth.User); ok {
		return user, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockIdentityStore) ApplyPatch(ctx context.Context, id string, patch brokerauth.UserPatch) (*brokerauth.User, error) {
	args := m.Called(ctx, id, patch)
	if user, ok := args.Get(0).(*brokerauth.User); ok {
		return user, args.Error(1)
	}
	return nil, args.Error(1)
}

// MockUserFinder implements brokerauth.UserFinder
type MockUserFinder struct {
	mock.Mock
}

func (m *MockUserFinder) GetByUID(ctx context.Context, uid string) (*brokerauth.User, error) {
	args := m.Called(ctx, uid)
	if user, ok := args.Get(0).(*brokerauth.User); ok {
		return user, args.Error(1)
	}
	return nil, args.Error(1)
}

// MockAdminStore implements brokerauth.AdminStore
type MockAdminStore struct {
	mock.Mock
}

func (m *MockAdminStore) List(ctx context.Context, filter brokerauth.UserFilter, page, pageSize int) (*brokerauth.UserPage, error) {
	args := m.Called(ctx, filter, page, pageSize)
	if result, ok := args.Get(0).(*brokerauth.UserPage); ok {
		return result, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAdminStore) ApplyPatch(ctx context.Context, id string, patch brokerauth.UserPatch) (*brokerauth.User, error) {
	args := m.Called(ctx, id, patch)
	if user, ok := args.Get(0).(*brokerauth.User); ok {
		return user, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAdminStore) Metrics(ctx context.Context) (*brokerauth.UserMetrics, error) {
	args := m.Called(ctx)
	if metrics, ok := args.Get(0).(*brokerauth.UserMetrics); ok {
		return metrics, args.Error(1)
	}
	return nil, args.Error(1)
}

// capturingNotifier records pending-user notifications and signals arrival so
// tests can wait on the issuer's fire-and-forget goroutine.
type capturingNotifier struct {
	notified chan *brokerauth.User
	err      error
}

func newCapturingNotifier() *capturingNotifier {
	return &capturingNotifier{notified: make(chan *brokerauth.User, 1)}
}

func (n *capturingNotifier) NotifyPendingUser(ctx context.Context, user *brokerauth.User) error {
	n.notified <- user
	return n.err
}

func (n *capturingNotifier) wait(timeout time.Duration) (*brokerauth.User, bool) {
	select {
	case user := <-n.notified:
		return user, true
	case <-time.After(timeout):
		return nil, false
	}
}

func newTestUser(status brokerauth.UserStatus, role brokerauth.UserRole) *brokerauth.User {
	now := time.Now().UTC()
	return &brokerauth.User{
		ID:        uuid.New(),
		UID:       "uid-123",
		PhoneE164: "+254700000001",
		Role:      role,
		Status:    status,
		CreatedAt: &now,
		UpdatedAt: &now,
	}
}
