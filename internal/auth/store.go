package auth

import "context"

// Store describes persistence operations required by the auth subsystem.
// The PostgreSQL implementation lives in internal/store/pg; tests stub it.
//
// Mutating operations report unique-key collisions as ErrConflict and
// missing referenced rows as ErrNotFound, so a write racing past a pre-check
// still resolves to the right outcome.
type Store interface {
	// Users.
	CreateUser(ctx context.Context, u NewUser) (User, error)
	UserByID(ctx context.Context, id string) (User, error)
	UserByEmail(ctx context.Context, email string) (User, error)
	UpdateUser(ctx context.Context, id string, upd UserUpdate) (User, error)
	ListUsers(ctx context.Context, page, limit int) ([]User, int, error)
	TouchLastLogin(ctx context.Context, id string) error

	// Role membership.
	DefaultRole(ctx context.Context) (Role, error)
	RolesForUser(ctx context.Context, userID string) ([]Role, error)
	PermissionNamesForUser(ctx context.Context, userID string) ([]string, error)
	AssignRole(ctx context.Context, userID, roleID string) error
	RemoveRole(ctx context.Context, userID, roleID string) error

	// Roles and grants.
	CreateRole(ctx context.Context, name, description string, isDefault bool) (Role, error)
	RoleByID(ctx context.Context, id string) (Role, error)
	RoleByName(ctx context.Context, name string) (Role, error)
	ListRoles(ctx context.Context) ([]Role, error)
	UpdateRole(ctx context.Context, id string, upd RoleUpdate) (Role, error)
	DeleteRole(ctx context.Context, id string) error
	// ReplaceRoleGrants swaps the role's grant set atomically. A name
	// missing from the permission catalog fails the whole call with
	// ErrInvalidInput.
	ReplaceRoleGrants(ctx context.Context, roleID string, permissionNames []string) error
	PermissionsForRole(ctx context.Context, roleID string) ([]Permission, error)

	// Permission catalog.
	ListPermissions(ctx context.Context) ([]Permission, error)
	EnsurePermissions(ctx context.Context, perms []Permission) error
}
