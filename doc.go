// Package auth implements session authentication for the tour booking
// platform: JWT issuance and verification, route protection middleware,
// the password reset lifecycle, and the error normalization stage that
// turns internal failures into uniform client responses.
//
// Route protection:
//   - ProtectedRoute verifies the token carried in the Authorization
//     header or session cookie, loads the backing user, and rejects
//     tokens issued before the last password rotation. OptionalRoute
//     runs the same chain but downgrades every failure to anonymous so
//     page templates can render either state.
//   - RoleGuard is a capability check layered after the middleware for
//     role-restricted routes.
//
// Password reset:
//   - InitializePasswordResetHandler stores a hashed one-time token
//     with a ten minute window and mails the plaintext link; if the
//     mail bounces the stored state is cleared before the error
//     surfaces. FinalizePasswordResetHandler redeems the token and
//     rotates credentials; UpdatePasswordHandler is the authenticated
//     variant that re-verifies the current password first.
//
// Error normalization:
//   - ErrorNormalizer is the terminal handler: development mode leaks
//     full detail, production mode returns only operational messages,
//     and the payload shape follows the request class (JSON for API
//     paths, rendered views for pages).
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by the login
//     and password flows. Sinks run best-effort (errors are logged) so
//     you can forward to a database or queue without blocking
//     authentication.
package auth
