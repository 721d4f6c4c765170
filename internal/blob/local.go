package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Local stores objects as files under a base directory. Object names may
// contain forward slashes ("sharepoint-sync/report.pdf"); anything escaping
// the base directory is rejected.
type Local struct {
	base string
}

var _ Store = (*Local)(nil)

// NewLocal creates the base directory if needed and returns a Local store.
func NewLocal(base string) (*Local, error) {
	base = strings.TrimSpace(base)
	if base == "" {
		return nil, errors.New("blob: base directory is required")
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, fmt.Errorf("blob: create base directory: %w", err)
	}
	return &Local{base: base}, nil
}

func (l *Local) path(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("blob: object name is required")
	}
	full := filepath.Join(l.base, filepath.FromSlash(name))
	rel, err := filepath.Rel(l.base, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("blob: invalid object name %q", name)
	}
	return full, nil
}

func (l *Local) Put(ctx context.Context, name string, content io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	full, err := l.path(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", err
	}
	f, err := os.Create(full)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, content); err != nil {
		_ = f.Close()
		_ = os.Remove(full)
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return full, nil
}

func (l *Local) Get(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	full, err := l.path(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

func (l *Local) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := l.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return err
	}
	return nil
}
