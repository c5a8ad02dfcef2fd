package blob

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
)

func TestFilesystemStoreRoundTrip(t *testing.T) {
	store, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("new filesystem: %v", err)
	}
	ctx := context.Background()
	if store.Driver() != DriverFilesystem {
		t.Fatalf("unexpected driver %s", store.Driver())
	}

	payload := []byte("id,mover_id\n")
	info, err := store.Put(ctx, "exports/run1.csv", bytes.NewReader(payload), PutOptions{ContentType: "text/csv"})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != int64(len(payload)) || info.ETag == "" {
		t.Fatalf("unexpected info: %+v", info)
	}
	if _, err := store.Put(ctx, "exports/run1.csv", bytes.NewReader(payload), PutOptions{}); err == nil {
		t.Fatalf("put must refuse existing key")
	}

	got, rc, err := store.Get(ctx, "exports/run1.csv")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	read, _ := io.ReadAll(rc)
	_ = rc.Close()
	if !bytes.Equal(read, payload) || got.ContentType != "text/csv" {
		t.Fatalf("round trip mismatch: %q %+v", read, got)
	}

	infos, err := store.List(ctx, "exports/")
	if err != nil || len(infos) != 1 {
		t.Fatalf("list: %+v %v", infos, err)
	}

	url, err := store.PresignURL(ctx, "exports/run1.csv", SignedURLOptions{})
	if err != nil || !strings.HasPrefix(url, "http://local.blob/") {
		t.Fatalf("presign: %q %v", url, err)
	}

	existed, err := store.Delete(ctx, "exports/run1.csv")
	if err != nil || !existed {
		t.Fatalf("delete: %v %v", existed, err)
	}
	if _, err := store.Head(ctx, "exports/run1.csv"); err == nil {
		t.Fatalf("head must fail after delete")
	}
}

func TestFilesystemStoreRejectsTraversal(t *testing.T) {
	store, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("new filesystem: %v", err)
	}
	ctx := context.Background()
	for _, key := range []string{"", "  ", "../escape", "/abs", "a/../../b"} {
		if _, err := store.Put(ctx, key, bytes.NewReader(nil), PutOptions{}); err == nil {
			t.Fatalf("key %q must be rejected", key)
		}
	}
}
