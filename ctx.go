package brokerauth

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

var userCtxKey = &contextKey{"user"}

type contextKey struct {
	name string
}

// UserLocalsKey is the fiber locals key under which the session middleware
// stores the authenticated user.
const UserLocalsKey = "brokerauth_user"

// WithContext sets the User in the given context
func WithContext(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userCtxKey, user)
}

// FromContext finds the user from the context.
func FromContext(ctx context.Context) (*User, bool) {
	raw, ok := ctx.Value(userCtxKey).(*User)
	return raw, ok
}

// UserFromFiber returns the authenticated user stored by the session
// middleware, if any.
func UserFromFiber(c *fiber.Ctx) (*User, bool) {
	raw, ok := c.Locals(UserLocalsKey).(*User)
	return raw, ok && raw != nil
}
