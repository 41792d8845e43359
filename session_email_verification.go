package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// VerifyEmail consumes a verification token: the matching user is flagged
// verified and the pending secret cleared. Unknown and expired tokens
// resolve to the same ErrVerificationTokenInvalid so the endpoint cannot be
// probed for which one it was.
func (s *SessionManager) VerifyEmail(ctx context.Context, token string) (*UserSummary, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during email verification",
		)
	default:
		return s.verifyEmail(ctx, token)
	}
}

func (s *SessionManager) verifyEmail(ctx context.Context, token string) (*UserSummary, error) {
	if token == "" {
		return nil, goerrors.New("verification token is required", goerrors.CategoryBadInput)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user, err := s.repo.Users().GetByVerificationToken(ctx, HashEphemeralToken(token))
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrVerificationTokenInvalid
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up verification token")
	}

	if user.EmailVerificationExpiry == nil || s.clock.Now().After(*user.EmailVerificationExpiry) {
		return nil, ErrVerificationTokenInvalid
	}

	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return s.repo.Users().MarkEmailVerifiedTx(ctx, tx, user.ID)
	})
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to mark email as verified")
	}

	user.IsEmailVerified = true
	user.ClearPendingVerification()

	s.emitAuthEvent(ctx, ActivityEventEmailVerified, userActor(user.ID.String()), user.ID.String(), nil)

	summary := user.Summary()
	return &summary, nil
}

// ResendEmailVerification regenerates the verification secret for an
// authenticated, still-unverified user. The previous pending secret is
// overwritten, never appended to.
func (s *SessionManager) ResendEmailVerification(ctx context.Context, userID uuid.UUID) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during verification resend",
		)
	default:
		return s.resendEmailVerification(ctx, userID)
	}
}

func (s *SessionManager) resendEmailVerification(ctx context.Context, userID uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user, err := s.repo.Users().GetByID(ctx, userID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return ErrIdentityNotFound
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user")
	}

	if user.IsEmailVerified {
		return ErrEmailAlreadyVerified
	}

	verify, err := NewEphemeralToken(s.clock, s.tempTokenTTL())
	if err != nil {
		return err
	}

	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return s.repo.Users().StorePendingVerificationTx(ctx, tx, user.ID, verify.Hashed, verify.ExpiresAt)
	})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store verification token")
	}

	s.dispatchMail(ctx, verificationMail(s.cfg.GetPublicURL(), user.Email, verify.Plaintext))

	return nil
}
