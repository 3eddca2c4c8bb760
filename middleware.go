package brokerauth

import (
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-repository-bun"
)

// DefaultCookieName is the session cookie name used when none is configured.
const DefaultCookieName = "sid"

// RequireUserOptions controls the gate applied after session validation.
type RequireUserOptions struct {
	// RequireActive rejects users whose status is not ACTIVE with 403.
	RequireActive bool
	// RequireAdmin rejects users without the ADMIN role with 403.
	RequireAdmin bool
}

// SessionValidator resolves the inbound session cookie to a local user.
// Validation never surfaces provider errors to callers; any failure along
// the way simply means "unauthenticated".
type SessionValidator struct {
	provider   IdentityProvider
	users      UserFinder
	cookieName string
	logger     Logger
}

// SessionValidatorOption customizes validator construction.
type SessionValidatorOption func(*SessionValidator)

// WithCookieName overrides the session cookie name.
func WithCookieName(name string) SessionValidatorOption {
	return func(v *SessionValidator) {
		if name != "" {
			v.cookieName = name
		}
	}
}

// WithValidatorLogger overrides the validator's logger.
func WithValidatorLogger(l Logger) SessionValidatorOption {
	return func(v *SessionValidator) {
		v.logger = resolveLogger(l)
	}
}

// NewSessionValidator creates a SessionValidator.
func NewSessionValidator(provider IdentityProvider, users UserFinder, opts ...SessionValidatorOption) *SessionValidator {
	v := &SessionValidator{
		provider:   provider,
		users:      users,
		cookieName: DefaultCookieName,
		logger:     defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}

	return v
}

// CookieName returns the session cookie name the validator reads.
func (v *SessionValidator) CookieName() string {
	return v.cookieName
}

// CurrentUser resolves the request's session cookie to a user record.
// Returns nil for any of: missing cookie, invalid or revoked session, no
// matching user row. The last case is a provider/store inconsistency; we
// log it distinctly but the client still just sees 401.
func (v *SessionValidator) CurrentUser(c *fiber.Ctx) *User {
	cookie := c.Cookies(v.cookieName)
	if cookie == "" {
		return nil
	}

	token, err := v.provider.VerifySessionCookie(c.UserContext(), cookie, true)
	if err != nil {
		v.logger.Debug("session_cookie_invalid", "error", err)
		return nil
	}

	user, err := v.users.GetByUID(c.UserContext(), token.UID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			v.logger.Error("session_no_user_record", "uid", token.UID)
		} else {
			v.logger.Error("session_user_lookup_failed", "uid", token.UID, "error", err)
		}
		return nil
	}

	return user
}

// RequireUser gates a route on session validity and, optionally, on the
// user's status and role. With zero options any authenticated user passes
// regardless of status; the 403 bodies for the two gate failures differ so
// clients can tell "pending approval" from "insufficient role".
func (v *SessionValidator) RequireUser(opts RequireUserOptions) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := v.CurrentUser(c)
		if user == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": ErrUnauthorized.Message,
			})
		}

		if opts.RequireActive && user.Status != StatusActive {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": ErrNotApproved.Message,
			})
		}

		if opts.RequireAdmin && user.Role != RoleAdmin {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": ErrAdminRequired.Message,
			})
		}

		c.Locals(UserLocalsKey, user)
		c.SetUserContext(WithContext(c.UserContext(), user))

		return c.Next()
	}
}
