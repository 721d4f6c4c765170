package httpapi

import (
	"net/http"
	"strings"

	"docvault.org/internal/audit"
	"docvault.org/internal/auth"
)

type updateProfileRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Password  *string `json:"password"`
}

type assignRoleRequest struct {
	RoleID string `json:"role_id"`
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{
			"user":        principal.User,
			"permissions": principal.PermissionNames(),
		})
	case http.MethodPatch:
		var req updateProfileRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		user, err := a.auth.UpdateProfile(r.Context(), principal.User.ID, auth.ProfileUpdate{
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Password:  req.Password,
		})
		if err != nil {
			a.handleAuthError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "user.profile.update", map[string]any{
			"user_id": user.ID,
		})
		writeJSON(w, http.StatusOK, map[string]any{"user": user})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch)
	}
}

func (a *API) handleUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if !a.ensurePermissions(w, r, auth.PermissionUserRead) {
		return
	}

	page, err := parsePositiveInt(r.URL.Query().Get("page"), 1, 1, 1<<20)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "page must be a positive integer")
		return
	}
	limit, err := parsePositiveInt(r.URL.Query().Get("limit"), 10, 1, 100)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "limit must be between 1 and 100")
		return
	}

	users, total, err := a.auth.ListUsers(r.Context(), page, limit)
	if err != nil {
		a.handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"users": users,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

// handleUserResource routes /v1/users/{id}/deactivate, /v1/users/{id}/roles
// and /v1/users/{id}/roles/{roleId}.
func (a *API) handleUserResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/users/")
	path = strings.Trim(path, "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "Resource not found")
		return
	}
	parts := strings.Split(path, "/")
	userID := parts[0]

	switch {
	case len(parts) == 2 && parts[1] == "deactivate":
		a.handleDeactivateUser(w, r, userID)
	case len(parts) == 2 && parts[1] == "roles":
		a.handleAssignRole(w, r, userID)
	case len(parts) == 3 && parts[1] == "roles":
		a.handleRemoveRole(w, r, userID, parts[2])
	default:
		writeError(w, r, http.StatusNotFound, "Resource not found")
	}
}

func (a *API) handleDeactivateUser(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !a.ensurePermissions(w, r, auth.PermissionUserUpdate) {
		return
	}
	user, err := a.auth.Deactivate(r.Context(), userID)
	if err != nil {
		a.handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "user.deactivate", map[string]any{
		"target_user_id": user.ID,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "User deactivated successfully",
		"user":    user,
	})
}

func (a *API) handleAssignRole(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !a.ensurePermissions(w, r, auth.PermissionRoleManage) {
		return
	}
	var req assignRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	req.RoleID = strings.TrimSpace(req.RoleID)
	if req.RoleID == "" {
		writeError(w, r, http.StatusBadRequest, "role_id is required")
		return
	}
	user, err := a.rbac.AssignRoleToUser(r.Context(), userID, req.RoleID)
	if err != nil {
		a.handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "rbac.role.assign", map[string]any{
		"target_user_id": userID,
		"role_id":        req.RoleID,
	})
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (a *API) handleRemoveRole(w http.ResponseWriter, r *http.Request, userID, roleID string) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, r, http.MethodDelete)
		return
	}
	if !a.ensurePermissions(w, r, auth.PermissionRoleManage) {
		return
	}
	user, err := a.rbac.RemoveRoleFromUser(r.Context(), userID, roleID)
	if err != nil {
		a.handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "rbac.role.remove", map[string]any{
		"target_user_id": userID,
		"role_id":        roleID,
	})
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}
