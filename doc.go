// Package auth is the identity core of ProjectManagement: it issues, verifies,
// and revokes credentials and time-boxed tokens for user accounts.
//
// Credential lifecycle:
//   - Passwords are stored as bcrypt hashes and verified in constant time.
//     HashPassword and ComparePasswordAndHash are the only entry points; the
//     plaintext never reaches the repository layer.
//   - Access and refresh tokens are stateless HS256 JWTs minted by
//     TokenService. Refresh tokens are revocable server-side: the user row
//     keeps a digest of the single live refresh token, so a new login or a
//     logout invalidates the previous session. Access tokens remain valid
//     until natural expiry, which is an accepted tradeoff of the stateless
//     design.
//   - Email verification and password reset run on single-use ephemeral
//     tokens: the plaintext is handed to the mail dispatcher exactly once,
//     only its digest and expiry are persisted.
//
// SessionManager orchestrates the flows (register, login, logout, refresh,
// verify email, change/forgot/reset password) against the Users repository.
// HTTP routing, request transport, and real mail delivery live outside this
// package and talk to it through SessionManager, Mailer, and Clock.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by SessionManager to
//     describe login, registration, verification, and password events. Sinks
//     run best-effort (errors are logged) so you can forward to a database or
//     queue without blocking authentication.
package auth
