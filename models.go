package auth

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the user model
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`

	ID           uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email        string    `bun:"email,notnull,unique" json:"email,omitempty"`
	Username     string    `bun:"username,notnull,unique" json:"username,omitempty"`
	FullName     string    `bun:"full_name" json:"full_name,omitempty"`
	Phone        string    `bun:"phone_number" json:"phone_number,omitempty"`
	PasswordHash string    `bun:"password_hash,notnull" json:"-"`

	IsEmailVerified bool `bun:"is_email_verified" json:"is_email_verified,omitempty"`

	// Digest of the single live refresh token. Empty means no active session.
	RefreshTokenHash string `bun:"refresh_token_hash" json:"-"`

	// Pending secrets: digest + expiry pairs, one per purpose. Regenerating a
	// secret overwrites the previous one.
	EmailVerificationToken  string     `bun:"email_verification_token" json:"-"`
	EmailVerificationExpiry *time.Time `bun:"email_verification_expiry,nullzero" json:"-"`
	ForgotPasswordToken     string     `bun:"forgot_password_token" json:"-"`
	ForgotPasswordExpiry    *time.Time `bun:"forgot_password_expiry,nullzero" json:"-"`

	LoggedInAt *time.Time `bun:"loggedin_at,nullzero" json:"loggedin_at,omitempty"`
	CreatedAt  *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt  *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt  *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// UserSummary is the only user shape returned to callers. It never carries
// the password hash, the refresh token digest, or pending secret fields.
type UserSummary struct {
	ID              uuid.UUID  `json:"id"`
	Email           string     `json:"email"`
	Username        string     `json:"username"`
	FullName        string     `json:"full_name,omitempty"`
	IsEmailVerified bool       `json:"is_email_verified"`
	CreatedAt       *time.Time `json:"created_at,omitempty"`
}

// Summary projects the record into its caller-safe shape.
func (u *User) Summary() UserSummary {
	if u == nil {
		return UserSummary{}
	}
	return UserSummary{
		ID:              u.ID,
		Email:           u.Email,
		Username:        u.Username,
		FullName:        u.FullName,
		IsEmailVerified: u.IsEmailVerified,
		CreatedAt:       u.CreatedAt,
	}
}

// HasPendingVerification reports whether a verification secret is stored,
// regardless of expiry.
func (u *User) HasPendingVerification() bool {
	return u != nil && u.EmailVerificationToken != ""
}

// HasPendingReset reports whether a reset secret is stored, regardless of
// expiry.
func (u *User) HasPendingReset() bool {
	return u != nil && u.ForgotPasswordToken != ""
}

// SetPendingVerification overwrites the verification secret pair.
func (u *User) SetPendingVerification(hashed string, expiresAt time.Time) {
	u.EmailVerificationToken = hashed
	u.EmailVerificationExpiry = &expiresAt
}

// ClearPendingVerification removes the verification secret pair.
func (u *User) ClearPendingVerification() {
	u.EmailVerificationToken = ""
	u.EmailVerificationExpiry = nil
}

// SetPendingReset overwrites the reset secret pair.
func (u *User) SetPendingReset(hashed string, expiresAt time.Time) {
	u.ForgotPasswordToken = hashed
	u.ForgotPasswordExpiry = &expiresAt
}

// ClearPendingReset removes the reset secret pair.
func (u *User) ClearPendingReset() {
	u.ForgotPasswordToken = ""
	u.ForgotPasswordExpiry = nil
}

// NormalizeEmail lowercases and trims an email address so lookups and
// uniqueness checks are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeUsername lowercases and trims a username.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
