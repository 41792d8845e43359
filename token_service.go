package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

// TokenService mints and validates the two bearer token kinds: access tokens
// carrying the identity claims and refresh tokens carrying the subject only.
type TokenService struct {
	signingKey []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	issuer     string
	audience   jwt.ClaimStrings
	logger     Logger
	clock      Clock
}

// NewTokenService creates a new TokenService instance
func NewTokenService(cfg Config) *TokenService {
	return &TokenService{
		signingKey: []byte(cfg.GetSigningKey()),
		accessTTL:  cfg.GetAccessTokenTTL(),
		refreshTTL: cfg.GetRefreshTokenTTL(),
		issuer:     cfg.GetIssuer(),
		audience:   jwt.ClaimStrings(cfg.GetAudience()),
		logger:     defLogger{},
		clock:      systemClock{},
	}
}

func (ts *TokenService) WithLogger(logger Logger) *TokenService {
	if logger != nil {
		ts.logger = logger
	}
	return ts
}

// WithClock overrides the time source used for issuance and expiry checks.
func (ts *TokenService) WithClock(clock Clock) *TokenService {
	ts.clock = normalizeClock(clock)
	return ts
}

// IssueAccessToken mints a short-lived token carrying the identity claims.
func (ts *TokenService) IssueAccessToken(identity Identity) (string, time.Time, error) {
	if identity == nil {
		return "", time.Time{}, errors.New("identity is required", errors.CategoryBadInput)
	}

	now := ts.clock.Now()
	expiresAt := now.Add(ts.accessTTL)

	claims := &JWTClaims{
		RegisteredClaims: ts.registeredClaims(identity.ID(), now, expiresAt),
		UID:              identity.ID(),
		Email:            identity.Email(),
		Username:         identity.Username(),
		TokenKind:        TokenTypeAccess,
	}

	token, err := ts.signClaims(claims)
	return token, expiresAt, err
}

// IssueRefreshToken mints a long-lived token carrying the subject claim only.
func (ts *TokenService) IssueRefreshToken(subject string) (string, time.Time, error) {
	if subject == "" {
		return "", time.Time{}, errors.New("subject is required", errors.CategoryBadInput)
	}

	now := ts.clock.Now()
	expiresAt := now.Add(ts.refreshTTL)

	claims := &JWTClaims{
		RegisteredClaims: ts.registeredClaims(subject, now, expiresAt),
		TokenKind:        TokenTypeRefresh,
	}

	token, err := ts.signClaims(claims)
	return token, expiresAt, err
}

// Validate parses and validates a token string, returning structured claims.
// It fails closed: structural, signature, and expiry problems all collapse
// into ErrTokenInvalid, with the underlying cause logged but never returned.
func (ts *TokenService) Validate(tokenString string) (AuthClaims, error) {
	parserOptions := []jwt.ParserOption{
		jwt.WithTimeFunc(ts.clock.Now),
	}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		ts.logger.Debug("TokenService validate rejected token: %v", err)
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		ts.logger.Debug("TokenService validate could not decode claims")
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

// ValidateOfType validates a token and additionally requires the given kind,
// so a refresh token cannot be replayed as an access token or vice versa.
func (ts *TokenService) ValidateOfType(tokenString string, kind TokenType) (AuthClaims, error) {
	claims, err := ts.Validate(tokenString)
	if err != nil {
		return nil, err
	}

	if claims.Type() != kind {
		ts.logger.Debug("TokenService validate rejected token kind: want %s got %s", kind, claims.Type())
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

func (ts *TokenService) signClaims(claims *JWTClaims) (string, error) {
	if claims == nil {
		return "", errors.New("claims must not be nil", errors.CategoryInternal)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}

	return signedString, nil
}

func (ts *TokenService) registeredClaims(subject string, now, expiresAt time.Time) jwt.RegisteredClaims {
	var aud jwt.ClaimStrings
	if len(ts.audience) > 0 {
		aud = make(jwt.ClaimStrings, len(ts.audience))
		copy(aud, ts.audience)
	}

	claims := jwt.RegisteredClaims{
		Issuer:    ts.issuer,
		Subject:   subject,
		Audience:  aud,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	ensureTokenID(&claims)

	return claims
}
