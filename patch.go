package brokerauth

// UserPatch is an explicit partial update over the two admin-mutable user
// attributes. Fields are nil when untouched. Construct it through
// BuildUserPatch so values are validated against the enum domains up front
// instead of duck-typed at persistence time.
type UserPatch struct {
	Status *UserStatus
	Role   *UserRole
}

// BuildUserPatch validates raw status/role values and drops anything that
// is not a known enum member. Unrecognized values do not fail the build;
// callers decide what an empty patch means (the admin endpoint rejects it).
func BuildUserPatch(status, role string) UserPatch {
	patch := UserPatch{}

	if s, ok := ParseStatus(status); ok {
		patch.Status = &s
	}

	if r, ok := ParseRole(role); ok {
		patch.Role = &r
	}

	return patch
}

// IsEmpty reports whether the patch carries no valid field.
func (p UserPatch) IsEmpty() bool {
	return p.Status == nil && p.Role == nil
}

// Fields returns the patch as a field map, useful for structured logging.
func (p UserPatch) Fields() map[string]any {
	out := map[string]any{}
	if p.Status != nil {
		out["status"] = *p.Status
	}
	if p.Role != nil {
		out["role"] = *p.Role
	}
	return out
}
