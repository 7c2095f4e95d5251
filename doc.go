// Package users implements the account and authentication core of a
// user-management backend: the account lifecycle (pending, verified,
// locked), credential hashing, JWT access token issuance and
// verification, and validation of user-supplied profile data.
//
// Account lifecycle:
//   - Users carry email_verified and is_locked flags persisted via Bun.
//     New accounts start pending (email unverified), move to verified
//     through the email verification flow, and lock after too many
//     consecutive failed logins. Locked is terminal until an explicit
//     administrative unlock. AccountStateMachine centralizes the
//     transition graph, persistence, and audit events.
//   - Login attempt bookkeeping (failed_login_attempts, last_login_at)
//     is committed atomically by the Users repository so concurrent
//     attempts never lose increments or race a lock transition.
//
// Tokens:
//   - TokenService mints HMAC-signed JWTs carrying subject and role
//     claims with a configurable TTL. Tokens are stateless and
//     self-contained; there is no revocation list, a token stays valid
//     until it expires. Validation failures are reported uniformly so
//     callers cannot distinguish an expired token from a forged one.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by Auther and
//     the state machine to describe lifecycle, login, and verification
//     events. Sinks run best-effort (errors are logged) so you can
//     forward to a database or queue without blocking authentication.
package users
