package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"docvault.org/internal/audit"
	"docvault.org/internal/auth"
)

type createRoleRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions"`
}

type updateRoleRequest struct {
	Name        *string   `json:"name"`
	Description *string   `json:"description"`
	Permissions *[]string `json:"permissions"`
}

func (a *API) handleRoles(w http.ResponseWriter, r *http.Request) {
	if !a.ensurePermissions(w, r, auth.PermissionRoleManage) {
		return
	}
	switch r.Method {
	case http.MethodPost:
		var req createRoleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		role, err := a.rbac.CreateRole(r.Context(), req.Name, req.Description, req.Permissions)
		if err != nil {
			if errors.Is(err, auth.ErrConflict) {
				writeError(w, r, http.StatusBadRequest, "Role already exists")
				return
			}
			a.handleAuthError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "rbac.role.create", map[string]any{
			"role_id": role.ID,
			"name":    role.Name,
		})
		w.Header().Set("Location", fmt.Sprintf("/v1/roles/%s", role.ID))
		writeJSON(w, http.StatusCreated, map[string]any{"role": role})
	case http.MethodGet:
		roles, err := a.rbac.ListRoles(r.Context())
		if err != nil {
			a.handleAuthError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"roles": roles})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleRoleResource(w http.ResponseWriter, r *http.Request) {
	roleID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/roles/"), "/")
	if roleID == "" || strings.Contains(roleID, "/") {
		writeError(w, r, http.StatusNotFound, "Resource not found")
		return
	}
	if !a.ensurePermissions(w, r, auth.PermissionRoleManage) {
		return
	}

	switch r.Method {
	case http.MethodGet:
		role, err := a.rbac.GetRole(r.Context(), roleID)
		if err != nil {
			a.handleAuthError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"role": role})
	case http.MethodPatch:
		var req updateRoleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		role, err := a.rbac.UpdateRole(r.Context(), roleID, auth.UpdateRoleInput{
			Name:        req.Name,
			Description: req.Description,
			Permissions: req.Permissions,
		})
		if err != nil {
			a.handleAuthError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "rbac.role.update", map[string]any{
			"role_id": role.ID,
		})
		writeJSON(w, http.StatusOK, map[string]any{"role": role})
	case http.MethodDelete:
		if err := a.rbac.DeleteRole(r.Context(), roleID); err != nil {
			if errors.Is(err, auth.ErrInvalidInput) {
				writeError(w, r, http.StatusBadRequest, "Cannot delete default role")
				return
			}
			a.handleAuthError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "rbac.role.delete", map[string]any{
			"role_id": roleID,
		})
		writeJSON(w, http.StatusOK, map[string]any{"message": "Role deleted successfully"})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch, http.MethodDelete)
	}
}

func (a *API) handlePermissions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if !a.ensurePermissions(w, r, auth.PermissionRoleManage) {
		return
	}
	perms, err := a.rbac.ListPermissions(r.Context())
	if err != nil {
		a.handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"permissions": perms})
}
