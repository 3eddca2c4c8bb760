package brokerauth_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	brokerauth "github.com/goliatone/broker-auth"
	"github.com/goliatone/go-repository-bun"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func gatedApp(t *testing.T, validator *brokerauth.SessionValidator, opts brokerauth.RequireUserOptions) *fiber.App {
	t.Helper()

	app := fiber.New()
	app.Get("/gated", validator.RequireUser(opts), func(c *fiber.Ctx) error {
		user, ok := brokerauth.UserFromFiber(c)
		require.True(t, ok)

		ctxUser, ok := brokerauth.FromContext(c.UserContext())
		require.True(t, ok)
		require.Equal(t, user.UID, ctxUser.UID)

		return c.JSON(fiber.Map{"uid": user.UID})
	})
	return app
}

func sessionRequest(cookie string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/gated", nil)
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: brokerauth.DefaultCookieName, Value: cookie})
	}
	return req
}

func decodeBody(t *testing.T, res *http.Response) map[string]any {
	t.Helper()

	raw, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	defer res.Body.Close()

	out := map[string]any{}
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestRequireUserWithoutCookie(t *testing.T) {
	t.Parallel()

	provider := new(MockIdentityProvider)
	users := new(MockUserFinder)
	validator := brokerauth.NewSessionValidator(provider, users)

	app := gatedApp(t, validator, brokerauth.RequireUserOptions{})

	res, err := app.Test(sessionRequest(""))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.Equal(t, "Unauthorized", decodeBody(t, res)["error"])

	provider.AssertNotCalled(t, "VerifySessionCookie", mock.Anything, mock.Anything, mock.Anything)
}

func TestRequireUserWithInvalidCookie(t *testing.T) {
	t.Parallel()

	provider := new(MockIdentityProvider)
	provider.On("VerifySessionCookie", mock.Anything, "garbage", true).
		Return(nil, assert.AnError)

	users := new(MockUserFinder)
	validator := brokerauth.NewSessionValidator(provider, users)

	app := gatedApp(t, validator, brokerauth.RequireUserOptions{})

	res, err := app.Test(sessionRequest("garbage"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	users.AssertNotCalled(t, "GetByUID", mock.Anything, mock.Anything)
}

func TestRequireUserWithoutUserRecord(t *testing.T) {
	t.Parallel()

	provider := new(MockIdentityProvider)
	provider.On("VerifySessionCookie", mock.Anything, "cookie", true).
		Return(&brokerauth.IdentityToken{UID: "ghost"}, nil)

	users := new(MockUserFinder)
	users.On("GetByUID", mock.Anything, "ghost").
		Return(nil, repository.NewRecordNotFound())

	validator := brokerauth.NewSessionValidator(provider, users)
	app := gatedApp(t, validator, brokerauth.RequireUserOptions{})

	res, err := app.Test(sessionRequest("cookie"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestRequireUserStatusGate(t *testing.T) {
	t.Parallel()

	pending := newTestUser(brokerauth.StatusPending, brokerauth.RoleBroker)

	provider := new(MockIdentityProvider)
	provider.On("VerifySessionCookie", mock.Anything, "cookie", true).
		Return(&brokerauth.IdentityToken{UID: pending.UID}, nil)

	users := new(MockUserFinder)
	users.On("GetByUID", mock.Anything, pending.UID).Return(pending, nil)

	validator := brokerauth.NewSessionValidator(provider, users)

	t.Run("pending user passes without status gate", func(t *testing.T) {
		app := gatedApp(t, validator, brokerauth.RequireUserOptions{})

		res, err := app.Test(sessionRequest("cookie"))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, res.StatusCode)
		assert.Equal(t, pending.UID, decodeBody(t, res)["uid"])
	})

	t.Run("pending user rejected by status gate", func(t *testing.T) {
		app := gatedApp(t, validator, brokerauth.RequireUserOptions{RequireActive: true})

		res, err := app.Test(sessionRequest("cookie"))
		require.NoError(t, err)
		assert.Equal(t, http.StatusForbidden, res.StatusCode)
		assert.Equal(t, "Not approved", decodeBody(t, res)["error"])
	})
}

func TestRequireUserAdminGate(t *testing.T) {
	t.Parallel()

	broker := newTestUser(brokerauth.StatusActive, brokerauth.RoleBroker)

	provider := new(MockIdentityProvider)
	provider.On("VerifySessionCookie", mock.Anything, "cookie", true).
		Return(&brokerauth.IdentityToken{UID: broker.UID}, nil)

	users := new(MockUserFinder)
	users.On("GetByUID", mock.Anything, broker.UID).Return(broker, nil)

	validator := brokerauth.NewSessionValidator(provider, users)
	app := gatedApp(t, validator, brokerauth.RequireUserOptions{
		RequireActive: true,
		RequireAdmin:  true,
	})

	res, err := app.Test(sessionRequest("cookie"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
	assert.Equal(t, "Admin required", decodeBody(t, res)["error"])
}

func TestSessionValidatorCustomCookieName(t *testing.T) {
	t.Parallel()

	admin := newTestUser(brokerauth.StatusActive, brokerauth.RoleAdmin)

	provider := new(MockIdentityProvider)
	provider.On("VerifySessionCookie", mock.Anything, "cookie", true).
		Return(&brokerauth.IdentityToken{UID: admin.UID}, nil)

	users := new(MockUserFinder)
	users.On("GetByUID", mock.Anything, admin.UID).Return(admin, nil)

	validator := brokerauth.NewSessionValidator(provider, users,
		brokerauth.WithCookieName("broker_session"),
	)
	assert.Equal(t, "broker_session", validator.CookieName())

	app := gatedApp(t, validator, brokerauth.RequireUserOptions{RequireAdmin: true})

	req := httptest.NewRequest(http.MethodGet, "/gated", nil)
	req.AddCookie(&http.Cookie{Name: "broker_session", Value: "cookie"})

	res, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
}
