package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"docvault.org/internal/audit"
	"docvault.org/internal/auth"
	"docvault.org/internal/docs"
)

type updateDocumentRequest struct {
	IsPublic *bool          `json:"is_public"`
	Metadata map[string]any `json:"metadata"`
}

func (a *API) handleDocuments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.handleDocumentUpload(w, r)
	case http.MethodGet:
		a.handleDocumentList(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleDocumentUpload(w http.ResponseWriter, r *http.Request) {
	if !a.ensurePermissions(w, r, auth.PermissionDocumentCreate) {
		return
	}
	userID, _ := auth.UserIDFromContext(r.Context())

	if err := r.ParseMultipartForm(a.maxBodyBytes); err != nil {
		writeError(w, r, http.StatusBadRequest, "multipart form is required")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	up, err := buildUpload(r, file, header)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	doc, err := a.docs.UploadDocument(r.Context(), userID, up)
	if err != nil {
		a.handleDocsError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "document.upload", map[string]any{
		"document_id": doc.ID,
		"filename":    doc.OriginalName,
		"size":        doc.Size,
	})
	w.Header().Set("Location", fmt.Sprintf("/v1/documents/%s", doc.ID))
	writeJSON(w, http.StatusCreated, map[string]any{
		"message":  "Document uploaded successfully",
		"document": doc,
	})
}

func (a *API) handleDocumentBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !a.ensurePermissions(w, r, auth.PermissionDocumentCreate) {
		return
	}
	userID, _ := auth.UserIDFromContext(r.Context())

	if err := r.ParseMultipartForm(a.maxBodyBytes); err != nil {
		writeError(w, r, http.StatusBadRequest, "multipart form is required")
		return
	}
	if r.MultipartForm == nil || len(r.MultipartForm.File["files"]) == 0 {
		writeError(w, r, http.StatusBadRequest, "files field is required")
		return
	}

	var ups []docs.Upload
	for _, header := range r.MultipartForm.File["files"] {
		file, err := header.Open()
		if err != nil {
			writeError(w, r, http.StatusBadRequest, fmt.Sprintf("open %s: %v", header.Filename, err))
			return
		}
		up, err := buildUpload(r, file, header)
		file.Close()
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		ups = append(ups, up)
	}

	uploaded, failed := a.docs.UploadBatch(r.Context(), userID, ups)
	_ = audit.LogEvent(r.Context(), "document.upload_batch", map[string]any{
		"uploaded": len(uploaded),
		"failed":   len(failed),
	})
	writeJSON(w, http.StatusCreated, map[string]any{
		"message":   fmt.Sprintf("%d of %d documents uploaded", len(uploaded), len(ups)),
		"documents": uploaded,
		"errors":    failed,
	})
}

func buildUpload(r *http.Request, file multipart.File, header *multipart.FileHeader) (docs.Upload, error) {
	content, err := io.ReadAll(file)
	if err != nil {
		return docs.Upload{}, fmt.Errorf("read %s: %w", header.Filename, err)
	}
	up := docs.Upload{
		OriginalName: header.Filename,
		MimeType:     header.Header.Get("Content-Type"),
		Content:      content,
	}
	if raw := r.FormValue("is_public"); raw != "" {
		isPublic, err := strconv.ParseBool(raw)
		if err != nil {
			return docs.Upload{}, fmt.Errorf("is_public must be a boolean")
		}
		up.IsPublic = isPublic
	}
	if raw := r.FormValue("metadata"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &up.Metadata); err != nil {
			return docs.Upload{}, fmt.Errorf("metadata must be a JSON object")
		}
	}
	return up, nil
}

func (a *API) handleDocumentList(w http.ResponseWriter, r *http.Request) {
	if !a.ensurePermissions(w, r, auth.PermissionDocumentRead) {
		return
	}
	userID, _ := auth.UserIDFromContext(r.Context())

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

	documents, total, err := a.docs.List(r.Context(), userID, page, limit)
	if err != nil {
		a.handleDocsError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"documents": documents,
		"total":     total,
		"page":      page,
		"limit":     limit,
	})
}

func (a *API) handleDocumentResource(w http.ResponseWriter, r *http.Request) {
	docID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/documents/"), "/")
	if docID == "" || strings.Contains(docID, "/") {
		writeError(w, r, http.StatusNotFound, "Resource not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		a.handleDocumentDownload(w, r, docID)
	case http.MethodPatch:
		a.handleDocumentUpdate(w, r, docID)
	case http.MethodDelete:
		a.handleDocumentDelete(w, r, docID)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch, http.MethodDelete)
	}
}

func (a *API) handleDocumentDownload(w http.ResponseWriter, r *http.Request, docID string) {
	if !a.ensurePermissions(w, r, auth.PermissionDocumentRead) {
		return
	}
	userID, _ := auth.UserIDFromContext(r.Context())

	doc, rc, err := a.docs.Download(r.Context(), userID, docID)
	if err != nil {
		a.handleDocsError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", doc.MimeType)
	w.Header().Set("Content-Length", strconv.FormatInt(doc.Size, 10))
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", doc.OriginalName))
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, rc)
}

func (a *API) handleDocumentUpdate(w http.ResponseWriter, r *http.Request, docID string) {
	if !a.ensurePermissions(w, r, auth.PermissionDocumentUpdate) {
		return
	}
	userID, _ := auth.UserIDFromContext(r.Context())

	var req updateDocumentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	doc, err := a.docs.UpdateDocument(r.Context(), userID, docID, docs.Update{
		IsPublic: req.IsPublic,
		Metadata: req.Metadata,
	})
	if err != nil {
		a.handleDocsError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "document.update", map[string]any{
		"document_id": doc.ID,
	})
	writeJSON(w, http.StatusOK, map[string]any{"document": doc})
}

func (a *API) handleDocumentDelete(w http.ResponseWriter, r *http.Request, docID string) {
	if !a.ensurePermissions(w, r, auth.PermissionDocumentDelete) {
		return
	}
	userID, _ := auth.UserIDFromContext(r.Context())

	if err := a.docs.DeleteDocument(r.Context(), userID, docID); err != nil {
		a.handleDocsError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "document.delete", map[string]any{
		"document_id": docID,
	})
	writeJSON(w, http.StatusOK, map[string]any{"message": "Document deleted successfully"})
}
