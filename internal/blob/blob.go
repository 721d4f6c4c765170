// Package blob abstracts object storage for uploaded documents and the
// SharePoint sync worker. The shipped driver writes to a local directory;
// the interface keeps a hosted object store swappable behind it.
package blob

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound indicates the named object does not exist.
var ErrNotFound = errors.New("blob: not found")

// Store is the object storage contract consumed by the document service and
// the sync worker.
type Store interface {
	// Put streams content under the given object name and returns the
	// provider-specific path of the stored object.
	Put(ctx context.Context, name string, content io.Reader) (string, error)
	// Get opens the named object for reading. The caller closes it.
	Get(ctx context.Context, name string) (io.ReadCloser, error)
	// Delete removes the named object.
	Delete(ctx context.Context, name string) error
}
