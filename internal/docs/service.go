// Package docs implements the document catalog: uploads into blob storage
// with a relational record per object, owner-or-public visibility, and
// owner-only mutation.
package docs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"docvault.org/internal/blob"
)

var (
	ErrInvalidInput = errors.New("docs: invalid input")
	ErrNotFound     = errors.New("docs: not found")
	ErrForbidden    = errors.New("docs: access denied")
)

// Document is a stored file's relational record. Filename is the blob
// object name; OriginalName is what the uploader called it.
type Document struct {
	ID           string         `json:"id"`
	Filename     string         `json:"filename"`
	OriginalName string         `json:"original_name"`
	MimeType     string         `json:"mime_type"`
	Size         int64          `json:"size"`
	Path         string         `json:"path"`
	UploadedBy   string         `json:"uploaded_by"`
	IsPublic     bool           `json:"is_public"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Update applies only its non-nil fields; Metadata merges key-wise into the
// existing map rather than replacing it.
type Update struct {
	IsPublic *bool
	Metadata map[string]any
}

// Store is the relational persistence contract for document records.
type Store interface {
	CreateDocument(ctx context.Context, d Document) (Document, error)
	DocumentByID(ctx context.Context, id string) (Document, error)
	// ListDocuments returns documents visible to the viewer (owned or
	// public), newest first, with the total visible count.
	ListDocuments(ctx context.Context, viewerID string, page, limit int) ([]Document, int, error)
	UpdateDocument(ctx context.Context, id string, upd Update) (Document, error)
	DeleteDocument(ctx context.Context, id string) error
}

// Service coordinates blob storage and the relational record.
type Service struct {
	store Store
	blobs blob.Store
	ids   func() string
	now   func() time.Time
}

// Option configures Service behavior.
type Option func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithObjectNames overrides stored object name generation (tests).
func WithObjectNames(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.ids = fn
		}
	}
}

// NewService constructs the document service.
func NewService(store Store, blobs blob.Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("docs: store is required")
	}
	if blobs == nil {
		return nil, errors.New("docs: blob store is required")
	}
	svc := &Service{store: store, blobs: blobs, ids: uuid.NewString, now: time.Now}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Upload carries one inbound file.
type Upload struct {
	OriginalName string
	MimeType     string
	Content      []byte
	IsPublic     bool
	Metadata     map[string]any
}

// UploadError reports a single failed file in a batch.
type UploadError struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

// UploadDocument stores the file in blob storage and records it. The stored
// object name is unique per upload so identical original names never clash.
func (s *Service) UploadDocument(ctx context.Context, ownerID string, up Upload) (Document, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return Document{}, fmt.Errorf("%w: owner is required", ErrInvalidInput)
	}
	original := strings.TrimSpace(up.OriginalName)
	if original == "" {
		return Document{}, fmt.Errorf("%w: file name is required", ErrInvalidInput)
	}
	if len(up.Content) == 0 {
		return Document{}, fmt.Errorf("%w: file is empty", ErrInvalidInput)
	}
	mime := strings.TrimSpace(up.MimeType)
	if mime == "" {
		mime = "application/octet-stream"
	}

	objectName := s.ids() + path.Ext(original)
	storedPath, err := s.blobs.Put(ctx, objectName, bytes.NewReader(up.Content))
	if err != nil {
		return Document{}, err
	}

	metadata := map[string]any{"provider": "local"}
	for k, v := range up.Metadata {
		metadata[k] = v
	}
	doc, err := s.store.CreateDocument(ctx, Document{
		Filename:     objectName,
		OriginalName: original,
		MimeType:     mime,
		Size:         int64(len(up.Content)),
		Path:         storedPath,
		UploadedBy:   ownerID,
		IsPublic:     up.IsPublic,
		Metadata:     metadata,
	})
	if err != nil {
		// Keep blob and row consistent when the insert fails.
		_ = s.blobs.Delete(ctx, objectName)
		return Document{}, err
	}
	return doc, nil
}

// UploadBatch processes each file independently: one bad file never aborts
// the rest, and failures come back per file.
func (s *Service) UploadBatch(ctx context.Context, ownerID string, ups []Upload) ([]Document, []UploadError) {
	var (
		uploaded []Document
		failed   []UploadError
	)
	for _, up := range ups {
		doc, err := s.UploadDocument(ctx, ownerID, up)
		if err != nil {
			failed = append(failed, UploadError{Filename: up.OriginalName, Error: err.Error()})
			continue
		}
		uploaded = append(uploaded, doc)
	}
	return uploaded, failed
}

// Download opens a document's content for a viewer. Private documents are
// readable by their owner only.
func (s *Service) Download(ctx context.Context, viewerID, docID string) (Document, io.ReadCloser, error) {
	doc, err := s.store.DocumentByID(ctx, docID)
	if err != nil {
		return Document{}, nil, err
	}
	if !doc.IsPublic && doc.UploadedBy != viewerID {
		return Document{}, nil, ErrForbidden
	}
	rc, err := s.blobs.Get(ctx, doc.Filename)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return Document{}, nil, ErrNotFound
		}
		return Document{}, nil, err
	}
	return doc, rc, nil
}

// List returns the viewer's visible documents, newest first.
func (s *Service) List(ctx context.Context, viewerID string, page, limit int) ([]Document, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}
	return s.store.ListDocuments(ctx, viewerID, page, limit)
}

// UpdateDocument mutates visibility or metadata; owner only.
func (s *Service) UpdateDocument(ctx context.Context, callerID, docID string, upd Update) (Document, error) {
	doc, err := s.store.DocumentByID(ctx, docID)
	if err != nil {
		return Document{}, err
	}
	if doc.UploadedBy != callerID {
		return Document{}, ErrForbidden
	}
	return s.store.UpdateDocument(ctx, docID, upd)
}

// DeleteDocument removes the blob then the record; owner only. A blob that
// is already gone does not block the record removal.
func (s *Service) DeleteDocument(ctx context.Context, callerID, docID string) error {
	doc, err := s.store.DocumentByID(ctx, docID)
	if err != nil {
		return err
	}
	if doc.UploadedBy != callerID {
		return ErrForbidden
	}
	if err := s.blobs.Delete(ctx, doc.Filename); err != nil && !errors.Is(err, blob.ErrNotFound) {
		return err
	}
	return s.store.DeleteDocument(ctx, docID)
}
