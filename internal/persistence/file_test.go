package persistence

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func newTestFileStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStore(filepath.Join(t.TempDir(), "nested", "cache.json"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return store
}

func TestFileStoreFirstRunLoad(t *testing.T) {
	store := newTestFileStore(t)

	blob, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load on first run: %v", err)
	}
	if blob != nil {
		t.Errorf("first-run blob = %q, want empty", blob)
	}
}

func TestFileStoreSaveLoadRoundTrip(t *testing.T) {
	store := newTestFileStore(t)
	want := []byte(`{"version":1,"entries":[{"client_id":"c","scope":"s","access_token":"at"}]}`)

	if err := store.Save(context.Background(), want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("Load = %q, want the exact saved bytes %q", got, want)
	}
}

func TestFileStoreSaveReplaces(t *testing.T) {
	store := newTestFileStore(t)
	ctx := context.Background()

	if err := store.Save(ctx, []byte("first")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Save(ctx, []byte("second")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(got) != "second" {
		t.Errorf("Load = %q, want %q", got, "second")
	}
}

func TestFileStoreRestrictsPermissions(t *testing.T) {
	store := newTestFileStore(t)

	if err := store.Save(context.Background(), []byte("secret")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	info, err := os.Stat(store.path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("cache file mode = %o, want 600", perm)
	}
}

func TestFileStoreConcurrentSaves(t *testing.T) {
	// Several writers on one locator: every load, during and after the
	// storm, must see exactly one writer's bytes, never a blend.
	store := newTestFileStore(t)
	ctx := context.Background()

	const writers = 8
	const rounds = 20

	valid := make(map[string]bool)
	for i := 0; i < writers; i++ {
		valid[fmt.Sprintf("blob-from-writer-%d-%s", i, bytes.Repeat([]byte{'x'}, 512))] = true
	}
	candidates := make([]string, 0, len(valid))
	for b := range valid {
		candidates = append(candidates, b)
	}

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(payload string) {
			defer wg.Done()
			for r := 0; r < rounds; r++ {
				if err := store.Save(ctx, []byte(payload)); err != nil {
					t.Errorf("Save: %v", err)
					return
				}
			}
		}(candidates[i])
	}

	// Concurrent reader: atomic replace means no partial content, ever.
	wg.Add(1)
	go func() {
		defer wg.Done()
		for r := 0; r < writers*rounds; r++ {
			blob, err := store.Load(ctx)
			if err != nil {
				t.Errorf("Load: %v", err)
				return
			}
			if len(blob) > 0 && !valid[string(blob)] {
				t.Errorf("Load returned bytes no writer saved (len %d)", len(blob))
				return
			}
		}
	}()
	wg.Wait()

	final, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("final Load: %v", err)
	}
	if !valid[string(final)] {
		t.Errorf("final content matches no writer's blob")
	}
}

func TestNewFileStoreValidation(t *testing.T) {
	_, err := NewFileStore("")
	if err == nil {
		t.Fatal("expected error for empty path")
	}
	var createErr *CreationError
	if !errors.As(err, &createErr) {
		t.Errorf("error = %v, want *CreationError", err)
	}
}
