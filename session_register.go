package auth

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/nyaruka/phonenumbers"
	"github.com/uptrace/bun"
)

// RegisterRequest carries the fields needed to create an account.
type RegisterRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
	// UseHashid derives the user ID deterministically from the email.
	UseHashid bool `json:"-"`
}

// Validate enforces the request shape before any store access.
func (r RegisterRequest) Validate() error {
	err := validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Username, validation.Length(3, 64)),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 72)),
		validation.Field(&r.FullName, validation.Length(0, 128)),
	)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid registration request")
	}

	if r.Phone != "" {
		parsed, err := phonenumbers.Parse(r.Phone, "")
		if err != nil || !phonenumbers.IsValidNumber(parsed) {
			return goerrors.New("phone number must be a valid E.164 number", goerrors.CategoryValidation).
				WithMetadata(map[string]any{"phone": r.Phone})
		}
	}

	return nil
}

// Register creates an unverified account, stores the hashed verification
// secret, and hands the plaintext to the mail dispatcher. A failed mail
// dispatch does not roll the account back: the user can request a resend.
func (s *SessionManager) Register(ctx context.Context, req RegisterRequest) (*UserSummary, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return s.register(ctx, req)
	}
}

func (s *SessionManager) register(ctx context.Context, req RegisterRequest) (*UserSummary, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user := &User{
		Email:    NormalizeEmail(req.Email),
		Username: getUsername(req.Username, req.Email),
		FullName: strings.TrimSpace(req.FullName),
		Phone:    req.Phone,
	}

	verify, err := NewEphemeralToken(s.clock, s.tempTokenTTL())
	if err != nil {
		return nil, err
	}

	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if existing, err := s.repo.Users().GetByIdentifier(ctx, user.Email); err == nil && existing != nil {
			return ErrIdentityExists
		}
		if existing, err := s.repo.Users().GetByIdentifier(ctx, user.Username); err == nil && existing != nil {
			return ErrIdentityExists
		}

		hash, err := HashPassword(req.Password)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		user.PasswordHash = hash
		user.SetPendingVerification(verify.Hashed, verify.ExpiresAt)

		if req.UseHashid {
			if id, err := hashid.NewUUID(user.Email); err == nil {
				user.ID = id
			}
		}

		if user, err = s.repo.Users().RegisterTx(ctx, tx, user); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create user")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "user registration transaction failed")
	}

	s.dispatchMail(ctx, verificationMail(s.cfg.GetPublicURL(), user.Email, verify.Plaintext))

	s.emitAuthEvent(ctx, ActivityEventRegistration, userActor(user.ID.String()), user.ID.String(), map[string]any{
		"email": user.Email,
	})

	summary := user.Summary()
	return &summary, nil
}

func getUsername(username, email string) string {
	if username != "" {
		return NormalizeUsername(username)
	}

	if strings.Contains(email, "@") {
		username = strings.Split(email, "@")[0]
	}

	return NormalizeUsername(username)
}
