package cache_test

import (
	"testing"
	"time"

	"github.com/boddenberg/brand-partner-hub/internal/infra/cache"
	"github.com/boddenberg/brand-partner-hub/internal/port"
)

var _ port.Cache[string] = (*cache.InMemory[string])(nil)

func TestCache_SetAndGet(t *testing.T) {
	c := cache.New[string](5 * time.Minute)

	c.Set("key1", "value1")
	val, ok := c.Get("key1")
	if !ok {
		t.Fatal("expected key to exist")
	}
	if val != "value1" {
		t.Errorf("expected 'value1', got '%s'", val)
	}
}

func TestCache_GetMiss(t *testing.T) {
	c := cache.New[string](5 * time.Minute)

	_, ok := c.Get("nonexistent")
	if ok {
		t.Fatal("expected cache miss for nonexistent key")
	}
}

func TestCache_Expiration(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := cache.New[string](time.Minute).WithClock(func() time.Time { return now })

	c.Set("key1", "value1")
	now = now.Add(2 * time.Minute)

	_, ok := c.Get("key1")
	if ok {
		t.Fatal("expected cache entry to be expired")
	}
}

func TestCache_SetUntilAndPrune(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := cache.New[int](time.Hour).WithClock(func() time.Time { return now })

	c.SetUntil("short", 1, now.Add(time.Second))
	c.SetUntil("long", 2, now.Add(time.Hour))

	if n := c.Prune(now.Add(time.Minute)); n != 1 {
		t.Fatalf("expected 1 pruned entry, got %d", n)
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 remaining entry, got %d", c.Len())
	}
	if v, ok := c.Get("long"); !ok || v != 2 {
		t.Errorf("expected long-lived entry to survive, got %v %v", v, ok)
	}
}

func TestCache_Delete(t *testing.T) {
	c := cache.New[string](5 * time.Minute)

	c.Set("key1", "value1")
	c.Delete("key1")

	_, ok := c.Get("key1")
	if ok {
		t.Fatal("expected key to be deleted")
	}
}
