package local

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"consent-backend/internal/shared/storage/object"
)

func TestPutOpenDelete(t *testing.T) {
	dir := t.TempDir()
	store := New(dir)
	ctx := context.Background()

	stored, err := store.Put(ctx, "admin-1", "Handbook v1.pdf", strings.NewReader("%PDF-1.4 body"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if stored.SizeBytes != int64(len("%PDF-1.4 body")) {
		t.Fatalf("unexpected size %d", stored.SizeBytes)
	}
	if stored.MimeType != "application/pdf" {
		t.Fatalf("unexpected mime %s", stored.MimeType)
	}
	if !strings.HasSuffix(stored.Key, "_Handbook v1.pdf") {
		t.Fatalf("unexpected key %s", stored.Key)
	}

	rc, err := store.Open(ctx, stored.Key)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "%PDF-1.4 body" {
		t.Fatalf("unexpected content %q", data)
	}

	if err := store.Delete(ctx, stored.Key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, filepath.FromSlash(stored.Key))); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected file removed, got %v", err)
	}
	if err := store.Delete(ctx, stored.Key); err != nil {
		t.Fatalf("second delete should be a no-op: %v", err)
	}
}

func TestOpenRejectsTraversal(t *testing.T) {
	store := New(t.TempDir())
	for _, key := range []string{"../etc/passwd", "/etc/passwd", ""} {
		if _, err := store.Open(context.Background(), key); !errors.Is(err, object.ErrInvalidKey) {
			t.Fatalf("key %q: expected ErrInvalidKey, got %v", key, err)
		}
	}
}

func TestPutRejectsBadName(t *testing.T) {
	store := New(t.TempDir())
	if _, err := store.Put(context.Background(), "admin", "../x.pdf", strings.NewReader("x")); err == nil {
		t.Fatalf("expected error for traversal name")
	}
}

func TestPutLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	stored, err := New(dir).Put(context.Background(), "admin-1", "form.docx", strings.NewReader("PK\x03\x04 docx"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	entries, err := os.ReadDir(filepath.Dir(filepath.Join(dir, filepath.FromSlash(stored.Key))))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 || strings.HasPrefix(entries[0].Name(), ".upload-") {
		t.Fatalf("unexpected directory contents: %v", entries)
	}
}
