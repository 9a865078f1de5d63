package memory

import (
	"context"
	"testing"
)

func TestBlobStoreSaveCopiesData(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	payload := []byte("content")
	if err := store.Save(context.Background(), "runs/abc/brazil.json", payload); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	payload[0] = 'C'

	stored, ok := store.Get("runs/abc/brazil.json")
	if !ok {
		t.Fatal("expected object to be stored")
	}
	if string(stored) != "content" {
		t.Fatalf("expected stored copy to be immutable, got %q", stored)
	}
}

func TestBlobStoreGetMissing(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	if _, ok := store.Get("absent.json"); ok {
		t.Fatal("expected missing object lookup to report absence")
	}
}

func TestBlobStoreObjectNamesSorted(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	for _, name := range []string{"b.json", "a.json", "c/d.json"} {
		if err := store.Save(context.Background(), name, []byte("{}")); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	names := store.ObjectNames()
	want := []string{"a.json", "b.json", "c/d.json"}
	if len(names) != len(want) {
		t.Fatalf("expected %d names, got %d", len(want), len(names))
	}
	for i, name := range want {
		if names[i] != name {
			t.Fatalf("expected names[%d] = %q, got %q", i, name, names[i])
		}
	}
}
