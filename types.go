package brokerauth

import (
	"context"
	"fmt"
	"time"
)

// Logger is the minimal structured logger the package depends on; glog.Logger
// satisfies it, as does any slog-style implementation.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// IdentityToken holds the claims we read off a verified identity token or
// session cookie.
type IdentityToken struct {
	UID         string
	PhoneNumber string
}

// IdentityProvider wraps the external OTP-capable identity service. The
// provider owns all token cryptography; this package only shuttles opaque
// values between the client and the provider.
type IdentityProvider interface {
	// VerifyIDToken checks a short-lived identity token and returns its claims.
	VerifyIDToken(ctx context.Context, idToken string) (*IdentityToken, error)

	// SessionCookie exchanges a still-valid identity token for a long-lived
	// session artifact bound to the same subject.
	SessionCookie(ctx context.Context, idToken string, ttl time.Duration) (string, error)

	// VerifySessionCookie checks a session artifact; when checkRevoked is set
	// it additionally fails for sessions revoked since issuance.
	VerifySessionCookie(ctx context.Context, cookie string, checkRevoked bool) (*IdentityToken, error)

	// RevokeSessions invalidates every session artifact issued for uid.
	// Idempotent; callers treat failures as best-effort and may ignore them.
	RevokeSessions(ctx context.Context, uid string) error
}

// IdentityStore is the slice of the user store the session issuance flow needs.
type IdentityStore interface {
	FindByUIDOrPhone(ctx context.Context, uid, phoneE164 string) (*User, error)
	CreateFromToken(ctx context.Context, uid, phoneE164 string) (*User, error)
	SyncIdentity(ctx context.Context, user *User, uid, phoneE164 string) (*User, error)
	ApplyPatch(ctx context.Context, id string, patch UserPatch) (*User, error)
}

// UserFinder is the slice of the user store the session middleware needs.
type UserFinder interface {
	GetByUID(ctx context.Context, uid string) (*User, error)
}

// AdminStore is the slice of the user store the admin mutation flow needs.
type AdminStore interface {
	List(ctx context.Context, filter UserFilter, page, pageSize int) (*UserPage, error)
	ApplyPatch(ctx context.Context, id string, patch UserPatch) (*User, error)
	Metrics(ctx context.Context) (*UserMetrics, error)
}

// PendingNotifier announces users that remain PENDING after allowlist
// evaluation. Implementations are best-effort: the issuance flow invokes
// Notify without awaiting it and discards the outcome.
type PendingNotifier interface {
	NotifyPendingUser(ctx context.Context, user *User) error
}

type defLogger struct{}

func (d defLogger) Debug(msg string, args ...any) { d.print("DBG", msg, args...) }
func (d defLogger) Info(msg string, args ...any)  { d.print("INF", msg, args...) }
func (d defLogger) Warn(msg string, args ...any)  { d.print("WRN", msg, args...) }
func (d defLogger) Error(msg string, args ...any) { d.print("ERR", msg, args...) }

func (d defLogger) print(level, msg string, args ...any) {
	fmt.Printf("[%s] AUTH %s %v\n", level, msg, args)
}

func resolveLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}
