package brokerauth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserRole is the user's role
type UserRole = string

const (
	// RoleBroker is the default role assigned at provisioning (i.e. storefront access)
	RoleBroker UserRole = "BROKER"
	// RoleAdmin can manage other users (i.e. list, activate, block, escalate)
	RoleAdmin UserRole = "ADMIN"
)

// UserStatus is the user's lifecycle status
type UserStatus = string

const (
	// StatusPending is a freshly provisioned user awaiting approval
	StatusPending UserStatus = "PENDING"
	// StatusActive grants access to protected resources
	StatusActive UserStatus = "ACTIVE"
	// StatusBlocked denies access regardless of role
	StatusBlocked UserStatus = "BLOCKED"
)

// ParseRole validates a raw role value against the known roles.
func ParseRole(raw string) (UserRole, bool) {
	switch raw {
	case RoleBroker, RoleAdmin:
		return UserRole(raw), true
	default:
		return "", false
	}
}

// ParseStatus validates a raw status value against the known statuses.
func ParseStatus(raw string) (UserStatus, bool) {
	switch raw {
	case StatusPending, StatusActive, StatusBlocked:
		return UserStatus(raw), true
	default:
		return "", false
	}
}

// User is the user model. Users are provisioned just-in-time on first
// successful phone verification; uid and phone_e164 are both unique and
// kept in sync with the identity provider's token claims.
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UID           string     `bun:"uid,notnull,unique" json:"uid,omitempty"`
	PhoneE164     string     `bun:"phone_e164,notnull,unique" json:"phone_e164,omitempty"`
	Role          UserRole   `bun:"user_role,notnull" json:"role,omitempty"`
	Status        UserStatus `bun:"status,notnull" json:"status,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// IsActive reports whether the user may access protected resources.
func (u *User) IsActive() bool {
	return u != nil && u.Status == StatusActive
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// UserView is the client-facing projection of a user returned by the
// session and admin endpoints.
type UserView struct {
	UID    string     `json:"uid"`
	Phone  string     `json:"phone"`
	Role   UserRole   `json:"role"`
	Status UserStatus `json:"status"`
}

// View returns the client-facing projection of the user.
func (u *User) View() UserView {
	if u == nil {
		return UserView{}
	}
	return UserView{
		UID:    u.UID,
		Phone:  u.PhoneE164,
		Role:   u.Role,
		Status: u.Status,
	}
}

// UserFilter narrows List and CountWhere queries. Zero values mean
// "no constraint"; PhoneContains matches case-insensitively.
type UserFilter struct {
	Status        UserStatus
	Role          UserRole
	PhoneContains string
}

// UserPage is a single page of a filtered user listing.
type UserPage struct {
	Users      []*User `json:"users"`
	Page       int     `json:"page"`
	PageSize   int     `json:"pageSize"`
	Total      int     `json:"total"`
	TotalPages int     `json:"totalPages"`
}

// UserMetrics holds the aggregate counts surfaced on the admin dashboard.
type UserMetrics struct {
	Total   int `json:"total"`
	Pending int `json:"pending"`
	Active  int `json:"active"`
	Blocked int `json:"blocked"`
	Admins  int `json:"admins"`
}
