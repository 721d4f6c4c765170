package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"docvault.org/internal/auth"
	"docvault.org/internal/docs"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"message": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "Method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func parsePositiveInt(raw string, def, min, max int) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("must be an integer")
	}
	if val < min || val > max {
		return 0, errors.New("out of range")
	}
	return val, nil
}

func (a *API) handleAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrConflict):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "Resource not found")
	case errors.Is(err, auth.ErrUnauthenticated), errors.Is(err, auth.ErrInvalidToken):
		writeError(w, r, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, auth.ErrForbidden):
		writeError(w, r, http.StatusForbidden, "Insufficient permissions")
	default:
		a.internalError(w, r, err)
	}
}

func (a *API) handleDocsError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, docs.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, docs.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "Resource not found")
	case errors.Is(err, docs.ErrForbidden):
		writeError(w, r, http.StatusForbidden, "Insufficient permissions")
	default:
		a.internalError(w, r, err)
	}
}

// internalError keeps failure detail out of prod responses. Dev builds get
// the underlying error appended for local debugging.
func (a *API) internalError(w http.ResponseWriter, r *http.Request, err error) {
	msg := "Internal server error"
	if a.devMode && err != nil {
		msg = "Internal server error: " + err.Error()
	}
	writeError(w, r, http.StatusInternalServerError, msg)
}
