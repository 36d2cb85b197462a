package cache

import (
	"bytes"
	"context"
	"testing"
	"time"
)

func backends(t *testing.T) map[string]Cache {
	t.Helper()
	fc, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}
	return map[string]Cache{
		"memory": NewMemoryCache(),
		"file":   fc,
	}
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, c := range backends(t) {
		t.Run(name, func(t *testing.T) {
			key := "http://10.0.0.1:26657/status"
			want := []byte(`{"result":{}}`)

			if err := c.Set(ctx, key, want, time.Minute); err != nil {
				t.Fatalf("Set: %v", err)
			}
			got, ok, err := c.Get(ctx, key)
			if err != nil || !ok {
				t.Fatalf("Get = (%v, %v), want hit", ok, err)
			}
			if !bytes.Equal(got, want) {
				t.Errorf("Get = %q, want %q", got, want)
			}
		})
	}
}

func TestMiss(t *testing.T) {
	ctx := context.Background()
	for name, c := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := c.Get(ctx, "absent")
			if err != nil || ok {
				t.Errorf("Get(absent) = (%v, %v), want miss", ok, err)
			}
		})
	}
}

func TestExpiry(t *testing.T) {
	ctx := context.Background()
	for name, c := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if err := c.Set(ctx, "k", []byte("v"), time.Nanosecond); err != nil {
				t.Fatalf("Set: %v", err)
			}
			time.Sleep(5 * time.Millisecond)
			_, ok, _ := c.Get(ctx, "k")
			if ok {
				t.Error("expired entry returned as hit")
			}
		})
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	for name, c := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_ = c.Set(ctx, "k", []byte("v"), 0)
			if err := c.Delete(ctx, "k"); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if _, ok, _ := c.Get(ctx, "k"); ok {
				t.Error("deleted entry returned as hit")
			}
			// Deleting an absent key is not an error.
			if err := c.Delete(ctx, "k"); err != nil {
				t.Errorf("Delete(absent): %v", err)
			}
		})
	}
}

func TestNullCacheNeverStores(t *testing.T) {
	ctx := context.Background()
	c := NewNullCache()
	_ = c.Set(ctx, "k", []byte("v"), 0)
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Error("null cache returned a hit")
	}
}
