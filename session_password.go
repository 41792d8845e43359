package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ChangePassword verifies the current password and replaces the stored hash.
// The live refresh token is revoked in the same statement so other sessions
// must authenticate again.
func (s *SessionManager) ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword, newPassword string) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password change",
		)
	default:
		return s.changePassword(ctx, userID, oldPassword, newPassword)
	}
}

func (s *SessionManager) changePassword(ctx context.Context, userID uuid.UUID, oldPassword, newPassword string) error {
	if oldPassword == "" || newPassword == "" {
		return goerrors.New("current and new password are required", goerrors.CategoryBadInput)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user, err := s.repo.Users().GetByID(ctx, userID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return ErrIdentityNotFound
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user")
	}

	if err := ComparePasswordAndHash(oldPassword, user.PasswordHash); err != nil {
		return ErrMismatchedHashAndPassword
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid new password provided")
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return s.repo.Users().ChangePasswordTx(ctx, tx, user.ID, hash)
	})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update password")
	}

	s.emitAuthEvent(ctx, ActivityEventPasswordChanged, userActor(user.ID.String()), user.ID.String(), nil)

	return nil
}

// ForgotPassword starts the reset flow for the given email. An unknown email
// is not reported to the caller: the flow succeeds silently so the endpoint
// cannot be used to enumerate accounts.
func (s *SessionManager) ForgotPassword(ctx context.Context, email string) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return s.forgotPassword(ctx, email)
	}
}

func (s *SessionManager) forgotPassword(ctx context.Context, email string) error {
	if email == "" {
		return goerrors.New("email is required", goerrors.CategoryBadInput)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user, err := s.repo.Users().GetByIdentifier(ctx, NormalizeEmail(email))
	if err != nil {
		if repository.IsRecordNotFound(err) {
			s.logger.Info("password reset requested for unknown email %s", NormalizeEmail(email))
			return nil
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for password reset")
	}

	reset, err := NewEphemeralToken(s.clock, s.tempTokenTTL())
	if err != nil {
		return err
	}

	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return s.repo.Users().StorePendingResetTx(ctx, tx, user.ID, reset.Hashed, reset.ExpiresAt)
	})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store password reset token")
	}

	s.dispatchMail(ctx, passwordResetMail(s.cfg.GetPublicURL(), user.Email, reset.Plaintext))

	return nil
}

// ResetPassword consumes a reset token and replaces the password hash. The
// pending secret and the live refresh token are cleared in the same
// statement; unknown and expired tokens collapse into ErrResetTokenInvalid.
func (s *SessionManager) ResetPassword(ctx context.Context, token, newPassword string) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset finalization",
		)
	default:
		return s.resetPassword(ctx, token, newPassword)
	}
}

func (s *SessionManager) resetPassword(ctx context.Context, token, newPassword string) error {
	if token == "" {
		return goerrors.New("password reset token is required", goerrors.CategoryBadInput)
	}
	if newPassword == "" {
		return goerrors.New("new password is required", goerrors.CategoryBadInput)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user, err := s.repo.Users().GetByResetToken(ctx, HashEphemeralToken(token))
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return ErrResetTokenInvalid
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "could not retrieve password reset request")
	}

	if user.ForgotPasswordExpiry == nil || s.clock.Now().After(*user.ForgotPasswordExpiry) {
		return ErrResetTokenInvalid
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid new password provided")
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return s.repo.Users().ResetPasswordTx(ctx, tx, user.ID, hash)
	})
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return ErrResetTokenInvalid
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update user password")
	}

	s.emitAuthEvent(ctx, ActivityEventPasswordResetSuccess, userActor(user.ID.String()), user.ID.String(), nil)

	return nil
}
