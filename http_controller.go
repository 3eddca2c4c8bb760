package brokerauth

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// HTTPControllerRoutes are the mount points for the auth surface.
type HTTPControllerRoutes struct {
	SessionLogin string
	Logout       string
	Me           string
	AdminUsers   string
	AdminMetrics string
	DevWebhook   string
}

// HTTPController exposes the session and admin flows over fiber.
type HTTPController struct {
	Routes *HTTPControllerRoutes

	issuer        *SessionIssuer
	sessions      *SessionValidator
	users         AdminStore
	provider      IdentityProvider
	logger        Logger
	secureCookies bool
	devWebhook    bool
}

// HTTPControllerOption customizes controller construction.
type HTTPControllerOption func(*HTTPController)

// WithControllerLogger overrides the controller's logger.
func WithControllerLogger(l Logger) HTTPControllerOption {
	return func(c *HTTPController) {
		c.logger = resolveLogger(l)
	}
}

// WithSecureCookies marks issued cookies Secure; enable in production.
func WithSecureCookies(secure bool) HTTPControllerOption {
	return func(c *HTTPController) {
		c.secureCookies = secure
	}
}

// WithDevWebhook mounts a local webhook sink that logs notification
// payloads; never enable in production.
func WithDevWebhook(enabled bool) HTTPControllerOption {
	return func(c *HTTPController) {
		c.devWebhook = enabled
	}
}

// NewHTTPController wires the controller. The issuer, validator, admin
// store, and provider are all required.
func NewHTTPController(issuer *SessionIssuer, sessions *SessionValidator, users AdminStore, provider IdentityProvider, opts ...HTTPControllerOption) *HTTPController {
	c := &HTTPController{
		Routes: &HTTPControllerRoutes{
			SessionLogin: "/auth/session-login",
			Logout:       "/auth/logout",
			Me:           "/auth/me",
			AdminUsers:   "/admin/users",
			AdminMetrics: "/admin/metrics",
			DevWebhook:   "/dev/webhook",
		},
		issuer:   issuer,
		sessions: sessions,
		users:    users,
		provider: provider,
		logger:   defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	if c.issuer == nil || c.sessions == nil || c.users == nil || c.provider == nil {
		panic("missing dependencies in broker auth controller")
	}

	return c
}

// RegisterRoutes mounts the auth and admin endpoints. Preflight requests
// are answered 204 even when no cors middleware is mounted; the middleware,
// when present, intercepts them first and adds the CORS headers.
func (a *HTTPController) RegisterRoutes(app fiber.Router) {
	app.Options("/*", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	app.Post(a.Routes.SessionLogin, a.SessionLogin)
	app.Post(a.Routes.Logout, a.Logout)
	app.Get(a.Routes.Me, a.Me)

	adminGate := a.sessions.RequireUser(RequireUserOptions{
		RequireActive: true,
		RequireAdmin:  true,
	})
	app.Get(a.Routes.AdminUsers, adminGate, a.AdminListUsers)
	app.Patch(a.Routes.AdminUsers+"/:id", adminGate, a.AdminUpdateUser)
	app.Get(a.Routes.AdminMetrics, adminGate, a.AdminMetrics)

	if a.devWebhook {
		app.Post(a.Routes.DevWebhook, a.DevWebhook)
	}
}

// SessionLoginRequest is the token exchange payload.
type SessionLoginRequest struct {
	IDToken string `json:"idToken" form:"idToken"`
}

// Validate will validate the payload
func (r SessionLoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.IDToken, validation.Required),
	)
}

// SessionLogin exchanges an identity token for a session cookie.
func (a *HTTPController) SessionLogin(c *fiber.Ctx) error {
	rid := requestID(c)
	a.logger.Info("session_login_request", "rid", rid, "ip", c.IP())

	payload := SessionLoginRequest{}
	if err := c.BodyParser(&payload); err != nil || payload.Validate() != nil {
		a.logger.Error("session_login_bad_request", "rid", rid)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": ErrMissingToken.Message,
		})
	}

	result, err := a.issuer.Issue(c.UserContext(), payload.IDToken)
	if err != nil {
		status, message := loginErrorResponse(err)
		a.logger.Error("session_login_error", "rid", rid, "status", status, "error", err)
		return c.Status(status).JSON(fiber.Map{"error": message})
	}

	a.setSessionCookie(c, result.Cookie)

	a.logger.Info("session_login_success",
		"rid", rid,
		"uid", result.User.UID,
		"status", result.User.Status,
	)

	return c.JSON(fiber.Map{"user": result.User.View()})
}

// Logout revokes the caller's sessions best-effort and clears the cookie.
// It always reports success: the client-side cookie is gone either way and
// a failed revocation must not block logout.
func (a *HTTPController) Logout(c *fiber.Ctx) error {
	rid := requestID(c)
	a.logger.Info("logout_request", "rid", rid)

	if cookie := c.Cookies(a.sessions.CookieName()); cookie != "" {
		if token, err := a.provider.VerifySessionCookie(c.UserContext(), cookie, false); err == nil {
			a.revokeSessions(rid, token.UID)
		}
	}

	a.clearSessionCookie(c)
	a.logger.Info("logout_success", "rid", rid)

	return c.JSON(fiber.Map{"ok": true})
}

// Me returns the caller's user view. Unlike the generic gate it always
// requires ACTIVE status, and its 403 body differs from the 401 one so the
// client can render a pending-approval banner instead of a login prompt.
func (a *HTTPController) Me(c *fiber.Ctx) error {
	rid := requestID(c)

	user := a.sessions.CurrentUser(c)
	if user == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": ErrUnauthorized.Message,
		})
	}

	if user.Status != StatusActive {
		a.logger.Info("me_forbidden_status", "rid", rid, "uid", user.UID, "status", user.Status)
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": ErrNotApproved.Message,
		})
	}

	return c.JSON(fiber.Map{"user": user.View()})
}

// AdminListUsers returns a filtered, paginated user listing. Unknown
// status/role filter values are ignored rather than rejected.
func (a *HTTPController) AdminListUsers(c *fiber.Ctx) error {
	filter := UserFilter{
		PhoneContains: strings.TrimSpace(c.Query("q")),
	}

	if status, ok := ParseStatus(c.Query("status")); ok {
		filter.Status = status
	}
	if role, ok := ParseRole(c.Query("role")); ok {
		filter.Role = role
	}

	page, err := a.users.List(
		c.UserContext(),
		filter,
		c.QueryInt("page", 1),
		c.QueryInt("pageSize", DefaultPageSize),
	)
	if err != nil {
		return a.storeError(c, err)
	}

	return c.JSON(page)
}

// AdminUpdateUserRequest is the admin mutation payload. Values outside the
// enum domains are dropped, not rejected; only a fully empty patch fails.
type AdminUpdateUserRequest struct {
	Status string `json:"status" form:"status"`
	Role   string `json:"role" form:"role"`
}

// AdminUpdateUser mutates a single user's status and/or role.
func (a *HTTPController) AdminUpdateUser(c *fiber.Ctx) error {
	payload := AdminUpdateUserRequest{}
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": ErrNoValidFields.Message,
		})
	}

	patch := BuildUserPatch(payload.Status, payload.Role)
	if patch.IsEmpty() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": ErrNoValidFields.Message,
		})
	}

	user, err := a.users.ApplyPatch(c.UserContext(), c.Params("id"), patch)
	if err != nil {
		return a.storeError(c, err)
	}

	if admin, ok := UserFromFiber(c); ok {
		a.logger.Info("admin_user_updated",
			"actor_uid", admin.UID,
			"user_id", user.ID.String(),
			"fields", patch.Fields(),
		)
	}

	return c.JSON(fiber.Map{"user": user})
}

// AdminMetrics returns fresh aggregate counts for the dashboard.
func (a *HTTPController) AdminMetrics(c *fiber.Ctx) error {
	metrics, err := a.users.Metrics(c.UserContext())
	if err != nil {
		return a.storeError(c, err)
	}
	return c.JSON(metrics)
}

// DevWebhook is a local sink for outbound notifications; it logs whatever
// it receives and acknowledges.
func (a *HTTPController) DevWebhook(c *fiber.Ctx) error {
	a.logger.Info("dev_webhook_received", "body", string(c.Body()))
	return c.JSON(fiber.Map{"ok": true})
}

// revokeSessions fires provider revocation without awaiting it.
func (a *HTTPController) revokeSessions(rid, uid string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := a.provider.RevokeSessions(ctx, uid); err != nil {
			a.logger.Warn("logout_revoke_failed", "rid", rid, "uid", uid, "error", err)
			return
		}
		a.logger.Info("logout_revoke_tokens", "rid", rid, "uid", uid)
	}()
}

func (a *HTTPController) setSessionCookie(c *fiber.Ctx, value string) {
	// Expiry rides on the provider-signed artifact itself, so no Max-Age here.
	c.Cookie(&fiber.Cookie{
		Name:     a.sessions.CookieName(),
		Value:    value,
		Path:     "/",
		HTTPOnly: true,
		Secure:   a.secureCookies,
		SameSite: "Lax",
	})
}

func (a *HTTPController) clearSessionCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     a.sessions.CookieName(),
		Value:    "",
		Path:     "/",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   a.secureCookies,
		SameSite: "Lax",
	})
}

// storeError maps store-layer failures with minimal wrapping; admin callers
// are trusted, so not-found surfaces as-is rather than as a generic error.
func (a *HTTPController) storeError(c *fiber.Ctx, err error) error {
	if repository.IsRecordNotFound(err) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "User not found",
		})
	}

	var richErr *errors.Error
	if errors.As(err, &richErr) && richErr.Code >= fiber.StatusBadRequest {
		return c.Status(richErr.Code).JSON(fiber.Map{"error": richErr.Message})
	}

	a.logger.Error("store_error", "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Internal server error",
	})
}

func loginErrorResponse(err error) (int, string) {
	var richErr *errors.Error
	if errors.As(err, &richErr) && richErr.Code == errors.CodeBadRequest {
		return fiber.StatusBadRequest, richErr.Message
	}
	return fiber.StatusUnauthorized, ErrInvalidCredentials.Message
}

func requestID(c *fiber.Ctx) string {
	if rid := c.Get("X-Request-Id"); rid != "" {
		return rid
	}
	return uuid.NewString()
}
