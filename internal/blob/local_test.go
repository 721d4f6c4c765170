package blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestLocalPutGetDelete(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("new local: %v", err)
	}
	ctx := context.Background()

	path, err := store.Put(ctx, "reports/q3.pdf", bytes.NewReader([]byte("pdf-bytes")))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if path == "" {
		t.Fatal("expected stored path")
	}

	rc, err := store.Get(ctx, "reports/q3.pdf")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	content, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(content) != "pdf-bytes" {
		t.Fatalf("unexpected content: %q", content)
	}

	if err := store.Delete(ctx, "reports/q3.pdf"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, "reports/q3.pdf"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestLocalGetMissingObject(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("new local: %v", err)
	}
	if _, err := store.Get(context.Background(), "nope.txt"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.Delete(context.Background(), "nope.txt"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLocalRejectsPathTraversal(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("new local: %v", err)
	}
	for _, name := range []string{"../escape.txt", "..", "a/../../b", ""} {
		if _, err := store.Put(context.Background(), name, strings.NewReader("x")); err == nil {
			t.Fatalf("expected rejection for %q", name)
		}
	}
}

func TestLocalPutOverwrites(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("new local: %v", err)
	}
	ctx := context.Background()
	if _, err := store.Put(ctx, "doc.txt", strings.NewReader("first")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := store.Put(ctx, "doc.txt", strings.NewReader("second")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	rc, err := store.Get(ctx, "doc.txt")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer rc.Close()
	content, _ := io.ReadAll(rc)
	if string(content) != "second" {
		t.Fatalf("unexpected content: %q", content)
	}
}
