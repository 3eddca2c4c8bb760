// Package brokerauth implements phone-based session authentication for a
// broker storefront: an identity provider verifies phone-OTP tokens, users
// are provisioned just-in-time on first login, and long-lived session
// cookies gate every subsequent request.
//
// Session lifecycle:
//   - SessionIssuer exchanges a short-lived identity token for a session
//     cookie, creating or syncing the local user row and running the phone
//     allowlist policy (activation, admin promotion) in the same pass.
//   - SessionValidator resolves inbound cookies back to user rows and gates
//     routes on status and role; HTTPController wires both into fiber
//     handlers for login, logout, profile, and the admin surface.
//
// Providers:
//   - IdentityProvider abstracts the upstream verifier. provider/firebase
//     adapts the Firebase Admin SDK; provider/devtoken is a self-contained
//     HS256 implementation for local development and tests.
//
// Notifications:
//   - Users left PENDING after the allowlist pass are reported best-effort
//     through PendingNotifier; WebhookNotifier posts them to operator
//     webhooks without ever blocking login.
package brokerauth
