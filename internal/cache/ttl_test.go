package cache

import (
	"sync"
	"testing"
	"time"
)

func TestGetReturnsFreshValue(t *testing.T) {
	c := New(time.Minute, nil)
	c.Set("k", "v")

	got, ok := c.Get("k")
	if !ok || got != "v" {
		t.Fatalf("expected cached value, got %v ok=%v", got, ok)
	}
}

func TestGetExpiresAfterTTL(t *testing.T) {
	now := time.Unix(1000, 0)
	clock := func() time.Time { return now }
	c := New(5*time.Minute, clock)

	c.Set("k", 42)
	if _, ok := c.Get("k"); !ok {
		t.Fatal("expected hit inside TTL window")
	}

	now = now.Add(5*time.Minute + time.Second)
	if _, ok := c.Get("k"); ok {
		t.Fatal("expected miss after TTL elapsed")
	}
	if c.Len() != 0 {
		t.Fatalf("expected expired entry reaped, len=%d", c.Len())
	}
}

func TestSetRefreshesTTL(t *testing.T) {
	now := time.Unix(1000, 0)
	clock := func() time.Time { return now }
	c := New(time.Minute, clock)

	c.Set("k", 1)
	now = now.Add(50 * time.Second)
	c.Set("k", 2)
	now = now.Add(30 * time.Second)

	got, ok := c.Get("k")
	if !ok || got != 2 {
		t.Fatalf("expected refreshed entry, got %v ok=%v", got, ok)
	}
}

func TestEvictAndClear(t *testing.T) {
	c := New(time.Minute, nil)
	c.Set("a", 1)
	c.Set("b", 2)

	c.Evict("a")
	if _, ok := c.Get("a"); ok {
		t.Fatal("expected a evicted")
	}
	if _, ok := c.Get("b"); !ok {
		t.Fatal("expected b retained")
	}

	c.Clear()
	if c.Len() != 0 {
		t.Fatalf("expected empty cache, len=%d", c.Len())
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := New(time.Minute, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				c.Set("k", j)
				c.Get("k")
				if j%100 == 0 {
					c.Evict("k")
				}
			}
		}()
	}
	wg.Wait()
}
