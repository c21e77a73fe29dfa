// ABOUTME: Tests for the process-wide unified graph cache.
// ABOUTME: Covers miss errors, replacement, invalidation, flush, and cached pathfinding.
package navigation

import (
	"errors"
	"testing"
)

func TestCacheMissIsTyped(t *testing.T) {
	c := NewCache()
	_, err := c.Get("tree1", "team1")
	var miss *CacheMissError
	if !errors.As(err, &miss) {
		t.Fatalf("expected CacheMissError, got %v", err)
	}
	if miss.RootTreeID != "tree1" || miss.TeamID != "team1" {
		t.Errorf("miss error must carry key, got %+v", miss)
	}
}

func TestCachePutGet(t *testing.T) {
	c := NewCache()
	g := chainGraph()
	c.Put("tree1", "team1", g)

	got, err := c.Get("tree1", "team1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != g {
		t.Error("expected the same graph instance back")
	}
	if _, err := c.Get("tree1", "team2"); err == nil {
		t.Error("different team must miss")
	}
}

func TestCacheInvalidate(t *testing.T) {
	c := NewCache()
	c.Put("tree1", "team1", chainGraph())
	c.Invalidate("tree1", "team1")
	if _, err := c.Get("tree1", "team1"); err == nil {
		t.Error("invalidated entry must miss")
	}
}

func TestCacheFlush(t *testing.T) {
	c := NewCache()
	c.Put("tree1", "team1", chainGraph())
	c.Put("tree2", "team1", chainGraph())
	c.Flush()
	if c.Len() != 0 {
		t.Errorf("expected empty cache after flush, got %d", c.Len())
	}
}

func TestCacheFindPath(t *testing.T) {
	c := NewCache()
	c.Put("tree1", "team1", chainGraph())

	path, err := c.FindPath("tree1", "team1", "settings", "entry")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(path) != 2 {
		t.Errorf("expected 2 transitions, got %d", len(path))
	}

	_, err = c.FindPath("other", "team1", "settings", "entry")
	var miss *CacheMissError
	if !errors.As(err, &miss) {
		t.Errorf("pathfinding on uncached tree must fail with CacheMissError, got %v", err)
	}
}
