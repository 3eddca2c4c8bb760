package brokerauth

import "strings"

// Allowlist maps normalized phone numbers to provisioning-time grants:
// membership in Allowed auto-activates a user, membership in Admins grants
// the admin role. An admin grant does not imply activation; the two lists
// are evaluated independently.
type Allowlist struct {
	Allowed []string
	Admins  []string
}

// NewAllowlist builds an allowlist from two comma-separated phone lists.
func NewAllowlist(allowed, admins string) *Allowlist {
	return &Allowlist{
		Allowed: ParseCommaList(allowed),
		Admins:  ParseCommaList(admins),
	}
}

// IsAllowedPhone reports whether the phone qualifies for auto-activation.
func (a *Allowlist) IsAllowedPhone(phoneE164 string) bool {
	return containsString(a.Allowed, phoneE164)
}

// IsAdminPhone reports whether the phone qualifies for the admin role.
func (a *Allowlist) IsAdminPhone(phoneE164 string) bool {
	return containsString(a.Admins, phoneE164)
}

// Decide evaluates both grants against the user's current state and returns
// the patch that would bring the user in line with the allowlist. The patch
// is empty when nothing needs to change.
func (a *Allowlist) Decide(phoneE164 string, current *User) UserPatch {
	patch := UserPatch{}

	if a.IsAllowedPhone(phoneE164) && current.Status != StatusActive {
		status := StatusActive
		patch.Status = &status
	}

	if a.IsAdminPhone(phoneE164) && current.Role != RoleAdmin {
		role := RoleAdmin
		patch.Role = &role
	}

	return patch
}

// ParseCommaList splits a comma-separated config value, trimming whitespace
// and dropping empty entries.
func ParseCommaList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}

	return out
}

func containsString(list []string, val string) bool {
	for _, item := range list {
		if item == val {
			return true
		}
	}
	return false
}
