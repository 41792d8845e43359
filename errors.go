package auth

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Text codes exposed to API consumers so clients can branch on failures
// without parsing messages.
const (
	TextCodeInvalidCreds       = "INVALID_CREDENTIALS"
	TextCodeIdentityNotFound   = "IDENTITY_NOT_FOUND"
	TextCodeIdentityExists     = "IDENTITY_EXISTS"
	TextCodeEmptyPassword      = "EMPTY_PASSWORD"
	TextCodeMissingCredentials = "MISSING_CREDENTIALS"
	TextCodeTokenInvalid       = "AUTH_TOKEN_INVALID"
	TextCodeVerifyTokenInvalid = "VERIFY_TOKEN_INVALID"
	TextCodeResetTokenInvalid  = "RESET_TOKEN_INVALID"
	TextCodeAlreadyVerified    = "EMAIL_ALREADY_VERIFIED"
	TextCodeSessionDecodeError = "SESSION_DECODE_ERROR"
	TextCodeClaimsMappingError = "CLAIMS_MAPPING_ERROR"
)

// ErrIdentityNotFound is returned when no user matches the given identifier.
var ErrIdentityNotFound = goerrors.New("identity not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeIdentityNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrIdentityExists is returned when registration collides with an existing
// email or username.
var ErrIdentityExists = goerrors.New("email or username already registered", goerrors.CategoryConflict).
	WithTextCode(TextCodeIdentityExists).
	WithCode(goerrors.CodeConflict)

// ErrMismatchedHashAndPassword is returned when a password does not match the
// stored hash. A malformed stored hash resolves to the same error so callers
// cannot distinguish the two.
var ErrMismatchedHashAndPassword = goerrors.New("the credentials provided are invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(goerrors.CodeUnauthorized)

// ErrNoEmptyString is returned when an empty password is given to HashPassword.
var ErrNoEmptyString = goerrors.New("password must not be empty", goerrors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword)

// ErrMissingCredentials is returned when a login request omits the email or
// the password.
var ErrMissingCredentials = goerrors.New("email and password are required", goerrors.CategoryBadInput).
	WithTextCode(TextCodeMissingCredentials).
	WithCode(goerrors.CodeBadRequest)

// ErrTokenInvalid is the single outcome for every access or refresh token
// failure: bad structure, bad signature, or expiry. Collapsing them keeps the
// verifier from acting as an oracle.
var ErrTokenInvalid = goerrors.New("invalid or expired token", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenInvalid).
	WithCode(goerrors.CodeUnauthorized)

// ErrVerificationTokenInvalid merges "no such token" and "token expired" for
// the email verification flow so the endpoint cannot be used for enumeration.
var ErrVerificationTokenInvalid = goerrors.New("verification token is invalid or expired", goerrors.CategoryBadInput).
	WithTextCode(TextCodeVerifyTokenInvalid).
	WithCode(goerrors.CodeBadRequest)

// ErrResetTokenInvalid is the password reset counterpart of
// ErrVerificationTokenInvalid.
var ErrResetTokenInvalid = goerrors.New("password reset token is invalid or expired", goerrors.CategoryBadInput).
	WithTextCode(TextCodeResetTokenInvalid).
	WithCode(goerrors.CodeBadRequest)

// ErrEmailAlreadyVerified is returned when a verified user requests another
// verification mail.
var ErrEmailAlreadyVerified = goerrors.New("email address is already verified", goerrors.CategoryConflict).
	WithTextCode(TextCodeAlreadyVerified).
	WithCode(goerrors.CodeConflict)

// ErrUnableToDecodeSession is returned when claims cannot be decoded from a
// validated token.
var ErrUnableToDecodeSession = goerrors.New("unable to decode session", goerrors.CategoryAuth).
	WithTextCode(TextCodeSessionDecodeError)

// ErrUnableToMapClaims is returned when token claims cannot be mapped onto a
// session object.
var ErrUnableToMapClaims = goerrors.New("unable to map claims", goerrors.CategoryAuth).
	WithTextCode(TextCodeClaimsMappingError)

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}
