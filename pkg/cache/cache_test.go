package cache

import (
	"fmt"
	"testing"
	"time"
)

func TestTTL_GetSet(t *testing.T) {
	c := NewTTL[string](time.Minute, 10)

	if _, ok := c.Get("missing"); ok {
		t.Error("expected miss for unknown key")
	}

	c.Set("a", "1")
	got, ok := c.Get("a")
	if !ok || got != "1" {
		t.Errorf("Get(a) = %q, %v; want \"1\", true", got, ok)
	}
}

func TestTTL_Expiry(t *testing.T) {
	c := NewTTL[int](time.Minute, 10)

	base := time.Now()
	c.now = func() time.Time { return base }
	c.Set("k", 42)

	c.now = func() time.Time { return base.Add(2 * time.Minute) }
	if _, ok := c.Get("k"); ok {
		t.Error("expected expired entry to miss")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry not purged on access, len = %d", c.Len())
	}
}

func TestTTL_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewTTL[int](time.Minute, 3)

	for i := 0; i < 3; i++ {
		c.Set(fmt.Sprintf("k%d", i), i)
	}
	// Touch k0 so k1 becomes the eviction candidate.
	c.Get("k0")
	c.Set("k3", 3)

	if _, ok := c.Get("k1"); ok {
		t.Error("expected k1 to be evicted")
	}
	for _, k := range []string{"k0", "k2", "k3"} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("expected %s to survive eviction", k)
		}
	}
	if c.Len() != 3 {
		t.Errorf("cache grew past its bound: len = %d", c.Len())
	}
}

func TestTTL_SetOverwritesAndRefreshes(t *testing.T) {
	c := NewTTL[int](time.Minute, 2)
	c.Set("k", 1)
	c.Set("k", 2)
	if got, _ := c.Get("k"); got != 2 {
		t.Errorf("Get after overwrite = %d, want 2", got)
	}
	if c.Len() != 1 {
		t.Errorf("overwrite duplicated entry, len = %d", c.Len())
	}
}

func TestTTL_ClearAndDelete(t *testing.T) {
	c := NewTTL[int](time.Minute, 10)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Error("Delete did not remove entry")
	}
	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Clear left %d entries", c.Len())
	}
}
