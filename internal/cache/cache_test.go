package cache

import (
	"context"
	"testing"
	"time"
)

func TestCache_GetSetExpiry(t *testing.T) {
	ctx := context.Background()
	c := New[string, int](0)
	defer c.Close()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set(ctx, "gas", 12, 10*time.Second)
	c.Set(ctx, "pool", 7, 0)

	if v, ok := c.Get(ctx, "gas"); !ok || v != 12 {
		t.Fatalf("Get(gas) = %d,%v want 12,true", v, ok)
	}

	now = now.Add(10 * time.Second)

	if _, ok := c.Get(ctx, "gas"); ok {
		t.Error("gas should be expired at ttl boundary")
	}
	if v, ok := c.Get(ctx, "pool"); !ok || v != 7 {
		t.Errorf("Get(pool) = %d,%v want 7,true", v, ok)
	}

	c.evictExpired()
	if c.Len() != 1 {
		t.Errorf("Len = %d after eviction, want 1", c.Len())
	}
}

func TestCache_Delete(t *testing.T) {
	ctx := context.Background()
	c := New[int, string](time.Minute)
	defer c.Close()

	c.Set(ctx, 1, "a", time.Minute)
	c.Delete(ctx, 1)
	if _, ok := c.Get(ctx, 1); ok {
		t.Error("expected key to be deleted")
	}
	c.Close() // idempotent
}
