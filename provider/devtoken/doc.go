// Package devtoken is a self-contained HS256 implementation of the
// brokerauth.IdentityProvider contract for local development and tests. It
// mints and verifies both identity tokens and session cookies with a shared
// secret, and tracks revocation with in-memory per-user epochs, so the full
// login/logout flow works without any external identity service.
package devtoken
