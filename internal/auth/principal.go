package auth

// Principal is a resolved user together with the flattened set of permission
// names granted through its roles. It is rebuilt from the store on every
// authenticated request, which is what makes deactivation bite immediately
// even while old tokens still verify.
type Principal struct {
	User        User
	Roles       []Role
	Permissions map[string]struct{}
}

// NewPrincipal builds a principal from a user, its roles, and the permission
// names those roles grant. Duplicate names collapse into the set.
func NewPrincipal(user User, roles []Role, permNames []string) Principal {
	set := make(map[string]struct{}, len(permNames))
	for _, name := range permNames {
		set[name] = struct{}{}
	}
	return Principal{User: user, Roles: roles, Permissions: set}
}

// HasPermission reports exact set membership. There is no wildcard or
// hierarchy evaluation: "document:manage" does not satisfy "document:read".
func (p Principal) HasPermission(name string) bool {
	_, ok := p.Permissions[name]
	return ok
}

// HasAll reports whether every required permission is held (logical AND).
func (p Principal) HasAll(names ...string) bool {
	for _, name := range names {
		if !p.HasPermission(name) {
			return false
		}
	}
	return true
}

// PermissionNames returns the flattened permission set as a slice.
func (p Principal) PermissionNames() []string {
	out := make([]string, 0, len(p.Permissions))
	for name := range p.Permissions {
		out = append(out, name)
	}
	return out
}
