package auth

import (
	"context"
	"errors"
	"testing"
)

func newTestRBAC(t *testing.T, store *memStore) *RBACService {
	t.Helper()
	svc, err := NewRBACService(store)
	if err != nil {
		t.Fatalf("new rbac service: %v", err)
	}
	if err := store.EnsurePermissions(context.Background(), BuiltinPermissions); err != nil {
		t.Fatalf("ensure permissions: %v", err)
	}
	return svc
}

func TestCreateRoleWithGrants(t *testing.T) {
	store := newMemStore()
	rbac := newTestRBAC(t, store)

	role, err := rbac.CreateRole(context.Background(), "Editor", "can touch documents",
		[]string{PermissionDocumentRead, PermissionDocumentUpdate, PermissionDocumentRead})
	if err != nil {
		t.Fatalf("create role: %v", err)
	}
	if len(role.Permissions) != 2 {
		t.Fatalf("expected 2 deduped grants, got %d", len(role.Permissions))
	}

	if _, err := rbac.CreateRole(context.Background(), "Editor", "", nil); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate name, got %v", err)
	}
}

func TestUpdateRoleReplacesGrantSet(t *testing.T) {
	store := newMemStore()
	rbac := newTestRBAC(t, store)

	role, err := rbac.CreateRole(context.Background(), "Viewer", "",
		[]string{PermissionDocumentRead, PermissionDocumentUpdate})
	if err != nil {
		t.Fatalf("create role: %v", err)
	}

	replacement := []string{PermissionUserRead}
	updated, err := rbac.UpdateRole(context.Background(), role.ID, UpdateRoleInput{
		Permissions: &replacement,
	})
	if err != nil {
		t.Fatalf("update role: %v", err)
	}
	if len(updated.Permissions) != 1 || updated.Permissions[0].Name != PermissionUserRead {
		t.Fatalf("grants not replaced: %v", updated.Permissions)
	}
}

func TestUpdateRoleUnknownPermissionRejected(t *testing.T) {
	store := newMemStore()
	rbac := newTestRBAC(t, store)

	role, err := rbac.CreateRole(context.Background(), "Clerk", "",
		[]string{PermissionDocumentRead})
	if err != nil {
		t.Fatalf("create role: %v", err)
	}

	bogus := []string{PermissionDocumentRead, "document:reed"}
	_, err = rbac.UpdateRole(context.Background(), role.ID, UpdateRoleInput{Permissions: &bogus})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	current, err := rbac.GetRole(context.Background(), role.ID)
	if err != nil {
		t.Fatalf("get role: %v", err)
	}
	if len(current.Permissions) != 1 || current.Permissions[0].Name != PermissionDocumentRead {
		t.Fatalf("grants changed by rejected update: %v", current.Permissions)
	}
}

func TestDeleteDefaultRoleRefused(t *testing.T) {
	store := newMemStore()
	rbac := newTestRBAC(t, store)
	role := seedDefaultRole(t, store)

	if err := rbac.DeleteRole(context.Background(), role.ID); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := store.RoleByID(context.Background(), role.ID); err != nil {
		t.Fatalf("default role should survive: %v", err)
	}
}

func TestAssignAndRemoveRole(t *testing.T) {
	store := newMemStore()
	rbac := newTestRBAC(t, store)

	user, err := store.CreateUser(context.Background(), NewUser{
		Email: "member@example.com", PasswordHash: "x", FirstName: "M", LastName: "B",
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	role, err := rbac.CreateRole(context.Background(), "Auditor", "", nil)
	if err != nil {
		t.Fatalf("create role: %v", err)
	}

	withRole, err := rbac.AssignRoleToUser(context.Background(), user.ID, role.ID)
	if err != nil {
		t.Fatalf("assign role: %v", err)
	}
	if len(withRole.Roles) != 1 || withRole.Roles[0].ID != role.ID {
		t.Fatalf("role not reflected: %v", withRole.Roles)
	}

	if _, err := rbac.AssignRoleToUser(context.Background(), user.ID, "missing-role"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown role, got %v", err)
	}

	withoutRole, err := rbac.RemoveRoleFromUser(context.Background(), user.ID, role.ID)
	if err != nil {
		t.Fatalf("remove role: %v", err)
	}
	if len(withoutRole.Roles) != 0 {
		t.Fatalf("role not removed: %v", withoutRole.Roles)
	}
}

func TestListPermissionsReturnsCatalog(t *testing.T) {
	store := newMemStore()
	rbac := newTestRBAC(t, store)

	perms, err := rbac.ListPermissions(context.Background())
	if err != nil {
		t.Fatalf("list permissions: %v", err)
	}
	if len(perms) != len(BuiltinPermissions) {
		t.Fatalf("expected %d permissions, got %d", len(BuiltinPermissions), len(perms))
	}
}
