package cache

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/izavyalov-dev/snapshard/bundle"
)

func TestMemoryCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryBlobCache()
	key := bundle.NewCacheKey("chrome", "abc123")

	saved := bundle.New()
	saved.Add("shots/a.png", []byte("aaa"))
	saved.Add("shots/b.png", []byte("bbb"))

	if err := c.Save(ctx, key, saved); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	restored, err := c.Restore(ctx, key)
	if err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if !bundle.PathsEqual(saved, restored) {
		t.Fatalf("restored paths differ: %v vs %v", saved.Paths(), restored.Paths())
	}
	data, _ := restored.Get("shots/a.png")
	if !bytes.Equal(data, []byte("aaa")) {
		t.Fatalf("unexpected blob content: %q", data)
	}
}

func TestMemoryCacheMiss(t *testing.T) {
	c := NewMemoryBlobCache()
	_, err := c.Restore(context.Background(), bundle.NewCacheKey("chrome", "missing"))
	if !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss, got %v", err)
	}
}

func TestMemoryCacheAppendOnly(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryBlobCache()
	key := bundle.NewCacheKey("chrome", "abc123")

	first := bundle.New()
	first.Add("a.png", []byte("first"))
	if err := c.Save(ctx, key, first); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	second := bundle.New()
	second.Add("a.png", []byte("second"))
	if err := c.Save(ctx, key, second); err != nil {
		t.Fatalf("second save failed: %v", err)
	}

	restored, err := c.Restore(ctx, key)
	if err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	data, _ := restored.Get("a.png")
	if !bytes.Equal(data, []byte("first")) {
		t.Fatalf("expected existing key to win, got %q", data)
	}
}

func TestMemoryCacheRestoreReturnsCopy(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryBlobCache()
	key := bundle.NewCacheKey("chrome", "abc123")

	saved := bundle.New()
	saved.Add("a.png", []byte("stored"))
	if err := c.Save(ctx, key, saved); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	restored, err := c.Restore(ctx, key)
	if err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	restored.Add("b.png", []byte("mutated"))

	again, err := c.Restore(ctx, key)
	if err != nil {
		t.Fatalf("second restore failed: %v", err)
	}
	if again.Len() != 1 {
		t.Fatalf("stored entry mutated, got paths %v", again.Paths())
	}
}
