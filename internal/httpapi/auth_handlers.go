package httpapi

import (
	"errors"
	"net/http"

	"docvault.org/internal/audit"
	"docvault.org/internal/auth"
)

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	result, err := a.auth.Register(r.Context(), auth.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		if errors.Is(err, auth.ErrConflict) {
			writeError(w, r, http.StatusBadRequest, "Email already registered")
			return
		}
		a.handleAuthError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.register", map[string]any{
		"user_id": result.User.ID,
		"email":   result.User.Email,
	})

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "User registered successfully",
		"token":   result.AccessToken,
		"user": map[string]any{
			"id":         result.User.ID,
			"email":      result.User.Email,
			"first_name": result.User.FirstName,
			"last_name":  result.User.LastName,
		},
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	result, err := a.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrUnauthenticated) {
			writeError(w, r, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		a.handleAuthError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.login", map[string]any{
		"user_id": result.User.ID,
	})

	roles := make([]map[string]any, 0, len(result.User.Roles))
	for _, role := range result.User.Roles {
		roles = append(roles, map[string]any{"id": role.ID, "name": role.Name})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":         result.Tokens.AccessToken,
		"refresh_token": result.Tokens.RefreshToken,
		"user": map[string]any{
			"id":         result.User.ID,
			"email":      result.User.Email,
			"first_name": result.User.FirstName,
			"last_name":  result.User.LastName,
			"roles":      roles,
		},
	})
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	token, expiresAt, err := a.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrUnauthenticated) {
			writeError(w, r, http.StatusUnauthorized, "Invalid token")
			return
		}
		a.handleAuthError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token":      token,
		"expires_at": expiresAt,
	})
}
