package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// RBACService provides role and permission administration: role CRUD, grant
// replacement, and user-role membership. Every operation here sits behind
// the role:manage permission at the HTTP boundary.
type RBACService struct {
	store Store
}

// NewRBACService constructs the administration service.
func NewRBACService(store Store) (*RBACService, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	return &RBACService{store: store}, nil
}

// CreateRole creates a role and, when permission names are supplied,
// replaces its grant set in one transaction.
func (s *RBACService) CreateRole(ctx context.Context, name, description string, permissions []string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, fmt.Errorf("%w: role name is required", ErrInvalidInput)
	}
	description = strings.TrimSpace(description)

	if _, err := s.store.RoleByName(ctx, name); err == nil {
		return Role{}, fmt.Errorf("%w: role already exists", ErrConflict)
	} else if !errors.Is(err, ErrNotFound) {
		return Role{}, err
	}

	role, err := s.store.CreateRole(ctx, name, description, false)
	if err != nil {
		return Role{}, err
	}
	if keys := dedupeStrings(permissions); len(keys) > 0 {
		if err := s.store.ReplaceRoleGrants(ctx, role.ID, keys); err != nil {
			return Role{}, err
		}
	}
	return s.GetRole(ctx, role.ID)
}

// ListRoles returns all roles with their grants, ordered by name.
func (s *RBACService) ListRoles(ctx context.Context) ([]Role, error) {
	return s.store.ListRoles(ctx)
}

// GetRole returns a role with its grants loaded.
func (s *RBACService) GetRole(ctx context.Context, roleID string) (Role, error) {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return Role{}, fmt.Errorf("%w: role id is required", ErrInvalidInput)
	}
	role, err := s.store.RoleByID(ctx, roleID)
	if err != nil {
		return Role{}, err
	}
	perms, err := s.store.PermissionsForRole(ctx, roleID)
	if err != nil {
		return Role{}, err
	}
	role.Permissions = perms
	return role, nil
}

// UpdateRoleInput applies only its non-nil fields; a non-nil Permissions
// slice replaces the full grant set atomically.
type UpdateRoleInput struct {
	Name        *string
	Description *string
	Permissions *[]string
}

// UpdateRole mutates role attributes and optionally replaces its grants.
func (s *RBACService) UpdateRole(ctx context.Context, roleID string, in UpdateRoleInput) (Role, error) {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return Role{}, fmt.Errorf("%w: role id is required", ErrInvalidInput)
	}
	upd := RoleUpdate{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return Role{}, fmt.Errorf("%w: role name is required", ErrInvalidInput)
		}
		upd.Name = &name
	}
	if in.Description != nil {
		desc := strings.TrimSpace(*in.Description)
		upd.Description = &desc
	}
	if upd.Name != nil || upd.Description != nil {
		if _, err := s.store.UpdateRole(ctx, roleID, upd); err != nil {
			return Role{}, err
		}
	}
	if in.Permissions != nil {
		if err := s.store.ReplaceRoleGrants(ctx, roleID, dedupeStrings(*in.Permissions)); err != nil {
			return Role{}, err
		}
	}
	return s.GetRole(ctx, roleID)
}

// DeleteRole removes a role. The default role refuses deletion; association
// rows cascade at the data layer.
func (s *RBACService) DeleteRole(ctx context.Context, roleID string) error {
	role, err := s.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	if role.IsDefault {
		return fmt.Errorf("%w: cannot delete default role", ErrInvalidInput)
	}
	return s.store.DeleteRole(ctx, role.ID)
}

// AssignRoleToUser adds a role membership and returns the user with roles.
func (s *RBACService) AssignRoleToUser(ctx context.Context, userID, roleID string) (User, error) {
	userID = strings.TrimSpace(userID)
	roleID = strings.TrimSpace(roleID)
	if userID == "" || roleID == "" {
		return User{}, fmt.Errorf("%w: user id and role id are required", ErrInvalidInput)
	}
	if err := s.store.AssignRole(ctx, userID, roleID); err != nil {
		return User{}, err
	}
	return s.userWithRoles(ctx, userID)
}

// RemoveRoleFromUser drops a role membership and returns the user with roles.
func (s *RBACService) RemoveRoleFromUser(ctx context.Context, userID, roleID string) (User, error) {
	userID = strings.TrimSpace(userID)
	roleID = strings.TrimSpace(roleID)
	if userID == "" || roleID == "" {
		return User{}, fmt.Errorf("%w: user id and role id are required", ErrInvalidInput)
	}
	if err := s.store.RemoveRole(ctx, userID, roleID); err != nil {
		return User{}, err
	}
	return s.userWithRoles(ctx, userID)
}

// ListPermissions returns the permission catalog ordered by name.
func (s *RBACService) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.store.ListPermissions(ctx)
}

func (s *RBACService) userWithRoles(ctx context.Context, userID string) (User, error) {
	user, err := s.store.UserByID(ctx, userID)
	if err != nil {
		return User{}, err
	}
	roles, err := s.store.RolesForUser(ctx, userID)
	if err != nil {
		return User{}, err
	}
	user.Roles = roles
	return user, nil
}

func dedupeStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := set[v]; ok {
			continue
		}
		set[v] = struct{}{}
		result = append(result, v)
	}
	return result
}
