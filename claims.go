package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenType discriminates the two token kinds minted by TokenService.
type TokenType = string

const (
	// TokenTypeAccess authenticates individual requests.
	TokenTypeAccess TokenType = "access"
	// TokenTypeRefresh is used solely to mint new access tokens.
	TokenTypeRefresh TokenType = "refresh"
)

// AuthClaims represents the validated claims of a signed token.
type AuthClaims interface {
	Subject() string
	UserID() string
	UserEmail() string
	UserUsername() string
	Type() TokenType
	Expires() time.Time
	IssuedAt() time.Time
}

// JWTClaims is the concrete implementation of AuthClaims
type JWTClaims struct {
	jwt.RegisteredClaims
	UID       string `json:"uid,omitempty"`
	Email     string `json:"email,omitempty"`
	Username  string `json:"username,omitempty"`
	TokenKind string `json:"typ,omitempty"`
}

// Verify interface compliance
var _ AuthClaims = (*JWTClaims)(nil)

// Subject returns the subject claim
func (c *JWTClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// UserID returns the user ID
func (c *JWTClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject()
}

// UserEmail returns the email claim. Empty on refresh tokens.
func (c *JWTClaims) UserEmail() string {
	return c.Email
}

// UserUsername returns the username claim. Empty on refresh tokens.
func (c *JWTClaims) UserUsername() string {
	return c.Username
}

// Type returns the token kind the claims were minted for.
func (c *JWTClaims) Type() TokenType {
	return c.TokenKind
}

// Expires returns the expiration time
func (c *JWTClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *JWTClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

// ensureTokenID assigns a random JTI if the claims carry none.
func ensureTokenID(claims *jwt.RegisteredClaims) {
	if claims.ID == "" {
		claims.ID = uuid.NewString()
	}
}
