package auth

import (
	"context"
	"crypto/subtle"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// LoginRequest carries login credentials.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResult is the outcome of a successful login.
type LoginResult struct {
	User   UserSummary `json:"user"`
	Tokens AuthTokens  `json:"tokens"`
}

// Login verifies the credentials, mints an access/refresh pair, and persists
// the refresh token digest. A new login replaces any previous live refresh
// token: one active session per user.
//
// Unknown email and wrong password are reported as distinct outcomes
// (ErrIdentityNotFound vs ErrMismatchedHashAndPassword); the
// enumeration-resistant surface is ForgotPassword.
func (s *SessionManager) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during login",
		)
	default:
		return s.login(ctx, req)
	}
}

func (s *SessionManager) login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	if req.Email == "" || req.Password == "" {
		return nil, ErrMissingCredentials
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user, err := s.repo.Users().GetByIdentifier(ctx, NormalizeEmail(req.Email))
	if err != nil {
		if repository.IsRecordNotFound(err) {
			s.emitAuthEvent(ctx, ActivityEventLoginFailure, ActorRef{Type: "unknown"}, "", map[string]any{
				"identifier": NormalizeEmail(req.Email),
				"reason":     "not_found",
			})
			return nil, ErrIdentityNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user during login")
	}

	if err := ComparePasswordAndHash(req.Password, user.PasswordHash); err != nil {
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, userActor(user.ID.String()), user.ID.String(), map[string]any{
			"reason": "bad_password",
		})
		return nil, ErrMismatchedHashAndPassword
	}

	tokens, err := s.issueSessionTokens(ctx, user)
	if err != nil {
		return nil, err
	}

	s.emitAuthEvent(ctx, ActivityEventLoginSuccess, userActor(user.ID.String()), user.ID.String(), nil)

	return &LoginResult{
		User:   user.Summary(),
		Tokens: *tokens,
	}, nil
}

// Logout revokes the live refresh token. It is idempotent: logging out twice
// is not an error. The caller is responsible for discarding any stored token
// artifacts; the issued access token stays valid until natural expiry.
func (s *SessionManager) Logout(ctx context.Context, userID uuid.UUID) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during logout",
		)
	default:
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if err := s.repo.Users().ClearRefreshToken(ctx, userID); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to clear refresh token")
	}

	s.emitAuthEvent(ctx, ActivityEventLogout, userActor(userID.String()), userID.String(), nil)

	return nil
}

// RefreshAccessToken verifies the supplied refresh token against both its
// signature and the stored digest, then rotates it: a fresh access/refresh
// pair is issued and the new digest persisted. Every failure mode resolves
// to ErrTokenInvalid.
func (s *SessionManager) RefreshAccessToken(ctx context.Context, refreshToken string) (*AuthTokens, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during token refresh",
		)
	default:
		return s.refreshAccessToken(ctx, refreshToken)
	}
}

func (s *SessionManager) refreshAccessToken(ctx context.Context, refreshToken string) (*AuthTokens, error) {
	claims, err := s.tokens.ValidateOfType(refreshToken, TokenTypeRefresh)
	if err != nil {
		return nil, err
	}

	userID, err := uuid.Parse(claims.UserID())
	if err != nil {
		s.logger.Debug("refresh token subject is not a user id: %s", claims.UserID())
		return nil, ErrTokenInvalid
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user, err := s.repo.Users().GetByID(ctx, userID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrTokenInvalid
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user during token refresh")
	}

	if !refreshTokenMatches(refreshToken, user.RefreshTokenHash) {
		// Signed but revoked or superseded by a newer login.
		return nil, ErrTokenInvalid
	}

	tokens, err := s.issueSessionTokens(ctx, user)
	if err != nil {
		return nil, err
	}

	s.emitAuthEvent(ctx, ActivityEventTokenRefreshed, userActor(user.ID.String()), user.ID.String(), nil)

	return tokens, nil
}

// GetCurrentUser loads the caller-safe summary for an authenticated user.
func (s *SessionManager) GetCurrentUser(ctx context.Context, userID uuid.UUID) (*UserSummary, error) {
	user, err := s.repo.Users().GetByID(ctx, userID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrIdentityNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user")
	}

	summary := user.Summary()
	return &summary, nil
}

// issueSessionTokens mints an access/refresh pair and persists the refresh
// digest on the user row inside a transaction.
func (s *SessionManager) issueSessionTokens(ctx context.Context, user *User) (*AuthTokens, error) {
	accessToken, accessExp, err := s.tokens.IssueAccessToken(NewIdentityFromUser(user))
	if err != nil {
		return nil, err
	}

	refreshToken, refreshExp, err := s.tokens.IssueRefreshToken(user.ID.String())
	if err != nil {
		return nil, err
	}

	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return s.repo.Users().StoreRefreshTokenTx(ctx, tx, user.ID, HashEphemeralToken(refreshToken), s.clock.Now())
	})
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist refresh token")
	}

	return &AuthTokens{
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func refreshTokenMatches(refreshToken, storedDigest string) bool {
	if refreshToken == "" || storedDigest == "" {
		return false
	}
	computed := HashEphemeralToken(refreshToken)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(storedDigest)) == 1
}
