package httpapi

import (
	"net/http"

	"docvault.org/internal/audit"
	"docvault.org/internal/auth"
)

func (a *API) handleSharePointSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !a.ensurePermissions(w, r, auth.PermissionDocumentCreate) {
		return
	}
	if a.sync == nil {
		writeError(w, r, http.StatusServiceUnavailable, "SharePoint sync is not configured")
		return
	}

	report, err := a.sync.SyncOnce(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "SharePoint sync failed")
		return
	}
	_ = audit.LogEvent(r.Context(), "sync.sharepoint", map[string]any{
		"total":  report.Total,
		"synced": report.Synced,
		"errors": len(report.Errors),
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"message":      "SharePoint sync completed successfully",
		"sync_details": report,
	})
}
