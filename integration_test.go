package auth_test

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	auth "github.com/DevSagarKumarJha/ProjectManagement"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	require.NoError(t, err)

	// keep the shared in-memory database alive for the whole test
	sqldb.SetMaxIdleConns(1)
	sqldb.SetConnMaxLifetime(0)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { db.Close() })

	_, err = db.NewCreateTable().
		Model((*auth.User)(nil)).
		IfNotExists().
		Exec(context.Background())
	require.NoError(t, err)

	return db
}

func newIntegrationManager(t *testing.T) (*auth.SessionManager, auth.RepositoryManager, *fakeClock, *capturingMailer) {
	t.Helper()

	db := newTestDB(t)
	repo := auth.NewRepositoryManager(db)
	repo.MustValidate()

	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	mailer := &capturingMailer{}

	manager := auth.NewSessionManager(repo, newTestConfig()).
		WithClock(clock).
		WithMailer(mailer).
		WithLogger(testLogger{})

	return manager, repo, clock, mailer
}

func lastMailToken(t *testing.T, mailer *capturingMailer, marker string) string {
	t.Helper()

	require.NotEmpty(t, mailer.sent)
	token := extractMailToken(mailer.sent[len(mailer.sent)-1].Body, marker)
	require.NotEmpty(t, token)
	return token
}

func TestAccountLifecycleIntegration(t *testing.T) {
	ctx := context.Background()
	manager, repo, clock, mailer := newIntegrationManager(t)

	// register
	summary, err := manager.Register(ctx, auth.RegisterRequest{
		Email:    "Pepe@Example.com",
		Username: "Pepe",
		FullName: "Pepe Grillo",
		Password: "password12345",
	})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, summary.ID)
	assert.False(t, summary.IsEmailVerified)

	stored, err := repo.Users().GetByIdentifier(ctx, "pepe@example.com")
	require.NoError(t, err)
	assert.Equal(t, "pepe", stored.Username)
	assert.True(t, stored.HasPendingVerification())

	// a duplicate registration is rejected
	_, err = manager.Register(ctx, auth.RegisterRequest{
		Email:    "pepe@example.com",
		Username: "someone",
		Password: "password12345",
	})
	assert.ErrorIs(t, err, auth.ErrIdentityExists)

	// verify email with the mailed token
	verifyToken := lastMailToken(t, mailer, "/verify-email/")
	verified, err := manager.VerifyEmail(ctx, verifyToken)
	require.NoError(t, err)
	assert.True(t, verified.IsEmailVerified)

	// the token is single use
	_, err = manager.VerifyEmail(ctx, verifyToken)
	assert.ErrorIs(t, err, auth.ErrVerificationTokenInvalid)

	// resending after verification is a conflict
	err = manager.ResendEmailVerification(ctx, summary.ID)
	assert.ErrorIs(t, err, auth.ErrEmailAlreadyVerified)

	// login
	result, err := manager.Login(ctx, auth.LoginRequest{
		Email:    "pepe@example.com",
		Password: "password12345",
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.Tokens.RefreshToken)

	current, err := manager.GetCurrentUser(ctx, summary.ID)
	require.NoError(t, err)
	assert.True(t, current.IsEmailVerified)

	stored, err = repo.Users().GetByID(ctx, summary.ID)
	require.NoError(t, err)
	assert.Equal(t, auth.HashEphemeralToken(result.Tokens.RefreshToken), stored.RefreshTokenHash)
	require.NotNil(t, stored.LoggedInAt)

	// refresh rotates the token pair
	clock.Advance(time.Minute)
	rotated, err := manager.RefreshAccessToken(ctx, result.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, result.Tokens.RefreshToken, rotated.RefreshToken)

	// the consumed refresh token cannot be replayed
	_, err = manager.RefreshAccessToken(ctx, result.Tokens.RefreshToken)
	assert.ErrorIs(t, err, auth.ErrTokenInvalid)

	// logout revokes the live refresh token
	require.NoError(t, manager.Logout(ctx, summary.ID))
	_, err = manager.RefreshAccessToken(ctx, rotated.RefreshToken)
	assert.ErrorIs(t, err, auth.ErrTokenInvalid)
}

func TestPasswordLifecycleIntegration(t *testing.T) {
	ctx := context.Background()
	manager, repo, clock, mailer := newIntegrationManager(t)

	summary, err := manager.Register(ctx, auth.RegisterRequest{
		Email:    "pepe@example.com",
		Username: "pepe",
		Password: "password12345",
	})
	require.NoError(t, err)

	// change password revokes the live session
	result, err := manager.Login(ctx, auth.LoginRequest{
		Email:    "pepe@example.com",
		Password: "password12345",
	})
	require.NoError(t, err)

	err = manager.ChangePassword(ctx, summary.ID, "password12345", "second-password")
	require.NoError(t, err)

	_, err = manager.RefreshAccessToken(ctx, result.Tokens.RefreshToken)
	assert.ErrorIs(t, err, auth.ErrTokenInvalid)

	_, err = manager.Login(ctx, auth.LoginRequest{
		Email:    "pepe@example.com",
		Password: "password12345",
	})
	assert.ErrorIs(t, err, auth.ErrMismatchedHashAndPassword)

	_, err = manager.Login(ctx, auth.LoginRequest{
		Email:    "pepe@example.com",
		Password: "second-password",
	})
	require.NoError(t, err)

	// forgot + reset
	require.NoError(t, manager.ForgotPassword(ctx, "pepe@example.com"))
	resetToken := lastMailToken(t, mailer, "/reset-password/")

	// an unknown email does not leak account existence
	require.NoError(t, manager.ForgotPassword(ctx, "ghost@example.com"))

	err = manager.ResetPassword(ctx, resetToken, "third-password")
	require.NoError(t, err)

	// the reset token is single use
	err = manager.ResetPassword(ctx, resetToken, "fourth-password")
	assert.ErrorIs(t, err, auth.ErrResetTokenInvalid)

	_, err = manager.Login(ctx, auth.LoginRequest{
		Email:    "pepe@example.com",
		Password: "third-password",
	})
	require.NoError(t, err)

	// resetting also marks the email verified and clears pending state
	stored, err := repo.Users().GetByID(ctx, summary.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsEmailVerified)
	assert.False(t, stored.HasPendingReset())

	// an expired reset token is rejected
	require.NoError(t, manager.ForgotPassword(ctx, "pepe@example.com"))
	expiredToken := lastMailToken(t, mailer, "/reset-password/")
	clock.Advance(21 * time.Minute)

	err = manager.ResetPassword(ctx, expiredToken, "fifth-password")
	assert.ErrorIs(t, err, auth.ErrResetTokenInvalid)
}

func TestUsersRepositoryIdentifierLookup(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := auth.NewRepositoryManager(db)

	user, err := repo.Users().Register(ctx, &auth.User{
		Email:        "Pepe@Example.com",
		Username:     "Pepe",
		PasswordHash: "not-a-real-hash",
	})
	require.NoError(t, err)

	t.Run("by email", func(t *testing.T) {
		found, err := repo.Users().GetByIdentifier(ctx, "pepe@example.com")
		require.NoError(t, err)
		assert.Equal(t, user.ID, found.ID)
	})

	t.Run("by username", func(t *testing.T) {
		found, err := repo.Users().GetByIdentifier(ctx, "pepe")
		require.NoError(t, err)
		assert.Equal(t, user.ID, found.ID)
	})

	t.Run("by id", func(t *testing.T) {
		found, err := repo.Users().GetByIdentifier(ctx, user.ID.String())
		require.NoError(t, err)
		assert.Equal(t, user.ID, found.ID)
	})

	t.Run("case insensitive", func(t *testing.T) {
		found, err := repo.Users().GetByIdentifier(ctx, "PEPE@EXAMPLE.COM")
		require.NoError(t, err)
		assert.Equal(t, user.ID, found.ID)
	})

	t.Run("unknown identifier", func(t *testing.T) {
		_, err := repo.Users().GetByIdentifier(ctx, "nobody@example.com")
		assert.Error(t, err)
	})
}
