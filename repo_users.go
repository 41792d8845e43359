package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var ResetUserPasswordSQL = `UPDATE "users" AS "usr"
SET
	"is_email_verified" = TRUE,
	"password_hash" = ?,
	"forgot_password_token" = '',
	"forgot_password_expiry" = NULL,
	"refresh_token_hash" = ''
WHERE
	"usr"."deleted_at" IS NULL
AND (
	"usr"."id" = ?
) RETURNING *;`

// Users is the narrow persistence surface the session flows depend on. The
// store owns email/username uniqueness; a create that violates it surfaces as
// a conflict to the caller. Mutations that clear columns go through raw SQL:
// ORM updates skip zero-value fields and would leave stale secrets behind.
type Users interface {
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByIdentifier(ctx context.Context, identifier string) (*User, error)
	GetByVerificationToken(ctx context.Context, digest string) (*User, error)
	GetByResetToken(ctx context.Context, digest string) (*User, error)

	Register(ctx context.Context, user *User) (*User, error)
	RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)

	StoreRefreshToken(ctx context.Context, id uuid.UUID, tokenHash string, at time.Time) error
	StoreRefreshTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID, tokenHash string, at time.Time) error
	ClearRefreshToken(ctx context.Context, id uuid.UUID) error
	ClearRefreshTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error

	MarkEmailVerified(ctx context.Context, id uuid.UUID) error
	MarkEmailVerifiedTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
	StorePendingVerification(ctx context.Context, id uuid.UUID, digest string, expiresAt time.Time) error
	StorePendingVerificationTx(ctx context.Context, tx bun.IDB, id uuid.UUID, digest string, expiresAt time.Time) error
	StorePendingReset(ctx context.Context, id uuid.UUID, digest string, expiresAt time.Time) error
	StorePendingResetTx(ctx context.Context, tx bun.IDB, id uuid.UUID, digest string, expiresAt time.Time) error

	ChangePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	ChangePasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error
	ResetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	ResetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error
}

type users struct {
	repository.Repository[*User]
	db *bun.DB
}

var _ Users = (*users)(nil)

func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &users{
		Repository: repo,
		db:         db,
	}
}

func (a *users) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return a.Repository.GetByID(ctx, id.String())
}

func (a *users) GetByIdentifier(ctx context.Context, identifier string) (*User, error) {
	options := resolveUserIdentifier(identifier)
	if len(options) == 0 {
		options = []identifierOption{
			{
				column: "id",
				value:  strings.TrimSpace(identifier),
			},
		}
	}

	for _, opt := range options {
		record := &User{}
		err := a.db.NewSelect().Model(record).
			Where(fmt.Sprintf("?TableAlias.%s = ?", opt.column), opt.value).
			Limit(1).
			Scan(ctx)

		if err != nil {
			if repository.IsRecordNotFound(err) || errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return nil, err
		}

		return record, nil
	}

	return nil, repository.NewRecordNotFound().
		WithMetadata(map[string]any{
			"identifier": identifier,
		})
}

func (a *users) GetByVerificationToken(ctx context.Context, digest string) (*User, error) {
	return a.getByTokenColumn(ctx, "email_verification_token", digest)
}

func (a *users) GetByResetToken(ctx context.Context, digest string) (*User, error) {
	return a.getByTokenColumn(ctx, "forgot_password_token", digest)
}

func (a *users) getByTokenColumn(ctx context.Context, column, digest string) (*User, error) {
	if digest == "" {
		return nil, repository.NewRecordNotFound()
	}

	record := &User{}
	err := a.db.NewSelect().Model(record).
		Where(fmt.Sprintf("?TableAlias.%s = ?", column), digest).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) || errors.Is(err, sql.ErrNoRows) {
			return nil, repository.NewRecordNotFound()
		}
		return nil, err
	}

	return record, nil
}

func (a *users) Register(ctx context.Context, user *User) (*User, error) {
	return a.RegisterTx(ctx, a.db, user)
}

func (a *users) RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	prepareUserDefaults(user)
	return a.Repository.CreateTx(ctx, tx, user)
}

func (a *users) StoreRefreshToken(ctx context.Context, id uuid.UUID, tokenHash string, at time.Time) error {
	return a.StoreRefreshTokenTx(ctx, a.db, id, tokenHash, at)
}

func (a *users) StoreRefreshTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID, tokenHash string, at time.Time) error {
	_, err := tx.NewRaw(`
		UPDATE "users" AS "usr"
		SET
			"refresh_token_hash" = ?,
			"loggedin_at" = ?
		WHERE
			("usr".id = ?)
			AND "usr"."deleted_at" IS NULL;
	`, tokenHash, at, id).Exec(ctx)

	return err
}

func (a *users) ClearRefreshToken(ctx context.Context, id uuid.UUID) error {
	return a.ClearRefreshTokenTx(ctx, a.db, id)
}

func (a *users) ClearRefreshTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	_, err := tx.NewRaw(`
		UPDATE "users" AS "usr"
		SET
			"refresh_token_hash" = ''
		WHERE
			("usr".id = ?)
			AND "usr"."deleted_at" IS NULL;
	`, id).Exec(ctx)

	return err
}

func (a *users) MarkEmailVerified(ctx context.Context, id uuid.UUID) error {
	return a.MarkEmailVerifiedTx(ctx, a.db, id)
}

func (a *users) MarkEmailVerifiedTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	_, err := tx.NewRaw(`
		UPDATE "users" AS "usr"
		SET
			"is_email_verified" = TRUE,
			"email_verification_token" = '',
			"email_verification_expiry" = NULL
		WHERE
			("usr".id = ?)
			AND "usr"."deleted_at" IS NULL;
	`, id).Exec(ctx)

	return err
}

func (a *users) StorePendingVerification(ctx context.Context, id uuid.UUID, digest string, expiresAt time.Time) error {
	return a.StorePendingVerificationTx(ctx, a.db, id, digest, expiresAt)
}

func (a *users) StorePendingVerificationTx(ctx context.Context, tx bun.IDB, id uuid.UUID, digest string, expiresAt time.Time) error {
	_, err := tx.NewRaw(`
		UPDATE "users" AS "usr"
		SET
			"email_verification_token" = ?,
			"email_verification_expiry" = ?
		WHERE
			("usr".id = ?)
			AND "usr"."deleted_at" IS NULL;
	`, digest, expiresAt, id).Exec(ctx)

	return err
}

func (a *users) StorePendingReset(ctx context.Context, id uuid.UUID, digest string, expiresAt time.Time) error {
	return a.StorePendingResetTx(ctx, a.db, id, digest, expiresAt)
}

func (a *users) StorePendingResetTx(ctx context.Context, tx bun.IDB, id uuid.UUID, digest string, expiresAt time.Time) error {
	_, err := tx.NewRaw(`
		UPDATE "users" AS "usr"
		SET
			"forgot_password_token" = ?,
			"forgot_password_expiry" = ?
		WHERE
			("usr".id = ?)
			AND "usr"."deleted_at" IS NULL;
	`, digest, expiresAt, id).Exec(ctx)

	return err
}

func (a *users) ChangePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return a.ChangePasswordTx(ctx, a.db, id, passwordHash)
}

func (a *users) ChangePasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	// Changing the password also revokes the live refresh token so other
	// sessions must log in again.
	_, err := tx.NewRaw(`
		UPDATE "users" AS "usr"
		SET
			"password_hash" = ?,
			"refresh_token_hash" = ''
		WHERE
			("usr".id = ?)
			AND "usr"."deleted_at" IS NULL;
	`, passwordHash, id).Exec(ctx)

	return err
}

func (a *users) ResetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return a.ResetPasswordTx(ctx, a.db, id, passwordHash)
}

func (a *users) ResetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	res, err := a.Repository.RawTx(ctx, tx, ResetUserPasswordSQL, passwordHash, id.String())
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": id.String(),
			})
	}

	return nil
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	record.Email = NormalizeEmail(record.Email)
	record.Username = NormalizeUsername(record.Username)

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}

type identifierOption struct {
	column string
	value  string
}

func resolveUserIdentifier(identifier string) []identifierOption {
	trimmed := strings.TrimSpace(identifier)
	if trimmed == "" {
		return nil
	}

	options := make([]identifierOption, 0, 3)

	if isUUID(trimmed) {
		options = append(options, identifierOption{
			column: "id",
			value:  trimmed,
		})
	}

	if isEmail(trimmed) {
		options = append(options, identifierOption{
			column: "email",
			value:  NormalizeEmail(trimmed),
		})
	}

	options = append(options, identifierOption{
		column: "username",
		value:  NormalizeUsername(trimmed),
	})

	return options
}

func isEmail(email string) bool {
	_, err := mail.ParseAddress(email)
	return err == nil
}

func isUUID(identifier string) bool {
	_, err := uuid.Parse(identifier)
	return err == nil
}
