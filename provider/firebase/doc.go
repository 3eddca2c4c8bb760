// Package firebase adapts the Firebase Admin SDK to the brokerauth
// IdentityProvider contract: phone-OTP identity tokens are verified against
// the Firebase project, and session cookies are minted and validated by
// Firebase itself so revocation is enforced server-side.
package firebase
