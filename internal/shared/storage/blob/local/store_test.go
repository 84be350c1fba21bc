package local

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"trackit-backend/internal/shared/storage/blob"
)

func TestPutGetRoundTrip(t *testing.T) {
	store := New(t.TempDir())
	ctx := context.Background()
	content := []byte("resume bytes")

	n, err := store.Put(ctx, "resumes/1/v1_a.pdf", bytes.NewReader(content))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if n != int64(len(content)) {
		t.Fatalf("expected %d bytes written, got %d", len(content), n)
	}

	rc, err := store.Get(ctx, "resumes/1/v1_a.pdf")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer rc.Close()

	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Fatalf("bytes changed in round trip")
	}
}

func TestGetMissingKeyIsNotFound(t *testing.T) {
	store := New(t.TempDir())

	_, err := store.Get(context.Background(), "resumes/1/missing.pdf")
	if !errors.Is(err, blob.ErrNotFound) {
		t.Fatalf("expected blob.ErrNotFound, got %v", err)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	store := New(t.TempDir())
	ctx := context.Background()

	if _, err := store.Put(ctx, "resumes/1/v1.pdf", bytes.NewReader([]byte("x"))); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Delete(ctx, "resumes/1/v1.pdf"); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if err := store.Delete(ctx, "resumes/1/v1.pdf"); err != nil {
		t.Fatalf("second delete should succeed: %v", err)
	}

	exists, err := store.Exists(ctx, "resumes/1/v1.pdf")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if exists {
		t.Fatalf("blob should be gone")
	}
}

func TestListScopedToPrefix(t *testing.T) {
	store := New(t.TempDir())
	ctx := context.Background()

	keys := []string{"resumes/1/v1.pdf", "resumes/2/v1.pdf", "other/file.txt"}
	for _, key := range keys {
		if _, err := store.Put(ctx, key, bytes.NewReader([]byte("x"))); err != nil {
			t.Fatalf("Put %s: %v", key, err)
		}
	}

	infos, err := store.List(ctx, "resumes")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("expected 2 keys under resumes, got %d", len(infos))
	}
	for _, info := range infos {
		if info.Key != "resumes/1/v1.pdf" && info.Key != "resumes/2/v1.pdf" {
			t.Fatalf("unexpected key %q", info.Key)
		}
		if info.Size != 1 {
			t.Fatalf("expected size 1, got %d", info.Size)
		}
	}
}

func TestListMissingPrefixIsEmpty(t *testing.T) {
	store := New(t.TempDir())

	infos, err := store.List(context.Background(), "resumes")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(infos) != 0 {
		t.Fatalf("expected empty list, got %d", len(infos))
	}
}

func TestRejectsTraversalKeys(t *testing.T) {
	store := New(t.TempDir())
	ctx := context.Background()

	for _, key := range []string{"../escape.pdf", "/abs/path.pdf", "."} {
		if _, err := store.Put(ctx, key, bytes.NewReader([]byte("x"))); err == nil {
			t.Fatalf("Put(%q) should fail", key)
		}
		if _, err := store.Get(ctx, key); err == nil {
			t.Fatalf("Get(%q) should fail", key)
		}
	}
}
