package auth_test

import (
	"context"
	"database/sql"
	"strings"
	"time"

	auth "github.com/DevSagarKumarJha/ProjectManagement"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/uptrace/bun"
)

// MockUsers implements auth.Users
type MockUsers struct {
	mock.Mock
}

func (m *MockUsers) GetByID(ctx context.Context, id uuid.UUID) (*auth.User, error) {
	args := m.Called(ctx, id)
	if user, ok := args.Get(0).(*auth.User); ok {
		return user, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUsers) GetByIdentifier(ctx context.Context, identifier string) (*auth.User, error) {
	args := m.Called(ctx, identifier)
	if user, ok := args.Get(0).(*auth.User); ok {
		return user, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUsers) GetByVerificationToken(ctx context.Context, digest string) (*auth.User, error) {
	args := m.Called(ctx, digest)
	if user, ok := args.Get(0).(*auth.User); ok {
		return user, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUsers) GetByResetToken(ctx context.Context, digest string) (*auth.User, error) {
	args := m.Called(ctx, digest)
	if user, ok := args.Get(0).(*auth.User); ok {
		return user, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUsers) Register(ctx context.Context, user *auth.User) (*auth.User, error) {
	args := m.Called(ctx, user)
	if created, ok := args.Get(0).(*auth.User); ok {
		return created, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUsers) RegisterTx(ctx context.Context, tx bun.IDB, user *auth.User) (*auth.User, error) {
	args := m.Called(ctx, tx, user)
	if created, ok := args.Get(0).(*auth.User); ok {
		return created, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUsers) StoreRefreshToken(ctx context.Context, id uuid.UUID, tokenHash string, at time.Time) error {
	args := m.Called(ctx, id, tokenHash, at)
	return args.Error(0)
}

func (m *MockUsers) StoreRefreshTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID, tokenHash string, at time.Time) error {
	args := m.Called(ctx, tx, id, tokenHash, at)
	return args.Error(0)
}

func (m *MockUsers) ClearRefreshToken(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockUsers) ClearRefreshTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	args := m.Called(ctx, tx, id)
	return args.Error(0)
}

func (m *MockUsers) MarkEmailVerified(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockUsers) MarkEmailVerifiedTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	args := m.Called(ctx, tx, id)
	return args.Error(0)
}

func (m *MockUsers) StorePendingVerification(ctx context.Context, id uuid.UUID, digest string, expiresAt time.Time) error {
	args := m.Called(ctx, id, digest, expiresAt)
	return args.Error(0)
}

func (m *MockUsers) StorePendingVerificationTx(ctx context.Context, tx bun.IDB, id uuid.UUID, digest string, expiresAt time.Time) error {
	args := m.Called(ctx, tx, id, digest, expiresAt)
	return args.Error(0)
}

func (m *MockUsers) StorePendingReset(ctx context.Context, id uuid.UUID, digest string, expiresAt time.Time) error {
	args := m.Called(ctx, id, digest, expiresAt)
	return args.Error(0)
}

func (m *MockUsers) StorePendingResetTx(ctx context.Context, tx bun.IDB, id uuid.UUID, digest string, expiresAt time.Time) error {
	args := m.Called(ctx, tx, id, digest, expiresAt)
	return args.Error(0)
}

func (m *MockUsers) ChangePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	args := m.Called(ctx, id, passwordHash)
	return args.Error(0)
}

func (m *MockUsers) ChangePasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	args := m.Called(ctx, tx, id, passwordHash)
	return args.Error(0)
}

func (m *MockUsers) ResetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	args := m.Called(ctx, id, passwordHash)
	return args.Error(0)
}

func (m *MockUsers) ResetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	args := m.Called(ctx, tx, id, passwordHash)
	return args.Error(0)
}

// stubRepoManager runs transaction callbacks inline so flow tests can drive
// the Users mock directly.
type stubRepoManager struct {
	users auth.Users
}

func (s *stubRepoManager) Validate() error { return nil }

func (s *stubRepoManager) MustValidate() {}

func (s *stubRepoManager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	return f(ctx, bun.Tx{})
}

func (s *stubRepoManager) Users() auth.Users { return s.users }

// capturingSink records activity events in order.
type capturingSink struct {
	events []auth.ActivityEvent
}

func (c *capturingSink) Record(ctx context.Context, evt auth.ActivityEvent) error {
	c.events = append(c.events, evt)
	return nil
}

// capturingMailer records outbound mail instead of delivering it.
type capturingMailer struct {
	sent []auth.Mail
}

func (c *capturingMailer) Send(ctx context.Context, mail auth.Mail) error {
	c.sent = append(c.sent, mail)
	return nil
}

type testLogger struct{}

func (testLogger) Debug(string, ...any) {}
func (testLogger) Info(string, ...any)  {}
func (testLogger) Warn(string, ...any)  {}
func (testLogger) Error(string, ...any) {}

// fakeClock is a manually advanced time source.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type testConfig struct {
	signingKey string
	issuer     string
	audience   []string
	accessTTL  time.Duration
	refreshTTL time.Duration
	tempTTL    time.Duration
	publicURL  string
}

func (c testConfig) GetSigningKey() string             { return c.signingKey }
func (c testConfig) GetIssuer() string                 { return c.issuer }
func (c testConfig) GetAudience() []string             { return c.audience }
func (c testConfig) GetAccessTokenTTL() time.Duration  { return c.accessTTL }
func (c testConfig) GetRefreshTokenTTL() time.Duration { return c.refreshTTL }
func (c testConfig) GetTempTokenTTL() time.Duration    { return c.tempTTL }
func (c testConfig) GetPublicURL() string              { return c.publicURL }

func newTestConfig() testConfig {
	return testConfig{
		signingKey: "test-signing-key",
		issuer:     "test-issuer",
		audience:   []string{"test-audience"},
		accessTTL:  15 * time.Minute,
		refreshTTL: 168 * time.Hour,
		tempTTL:    20 * time.Minute,
		publicURL:  "http://localhost:3000",
	}
}

// extractMailToken pulls the plaintext secret out of a captured mail body,
// where marker is the URL path segment preceding it.
func extractMailToken(body, marker string) string {
	idx := strings.Index(body, marker)
	if idx == -1 {
		return ""
	}
	rest := body[idx+len(marker):]
	if end := strings.IndexByte(rest, '\n'); end != -1 {
		return rest[:end]
	}
	return rest
}

// newTestSessionManager wires a SessionManager against the given Users mock
// with capturing collaborators and a fixed clock.
func newTestSessionManager(users auth.Users) (*auth.SessionManager, *fakeClock, *capturingSink, *capturingMailer) {
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	sink := &capturingSink{}
	mailer := &capturingMailer{}

	manager := auth.NewSessionManager(&stubRepoManager{users: users}, newTestConfig()).
		WithClock(clock).
		WithActivitySink(sink).
		WithMailer(mailer).
		WithLogger(testLogger{})

	return manager, clock, sink, mailer
}
