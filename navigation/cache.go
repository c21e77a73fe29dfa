// ABOUTME: Process-wide cache of unified graphs keyed by (root_tree_id, team_id).
// ABOUTME: Read-mostly; writes happen at tree load, invalidation is explicit, misses are fatal to pathfinding.
package navigation

import "sync"

type cacheKey struct {
	rootTreeID string
	teamID     string
}

// Cache holds fully built unified graphs. Entries are immutable once stored,
// so concurrent readers need no coordination beyond the map lock.
type Cache struct {
	mu     sync.RWMutex
	graphs map[cacheKey]*Graph
}

// NewCache creates an empty graph cache.
func NewCache() *Cache {
	return &Cache{graphs: make(map[cacheKey]*Graph)}
}

// Put stores a unified graph for the given tree/team pair, replacing any
// previous entry.
func (c *Cache) Put(rootTreeID, teamID string, g *Graph) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.graphs[cacheKey{rootTreeID, teamID}] = g
}

// Get returns the cached graph, or a CacheMissError when absent. There is no
// silent rebuild: pathfinding requires a unified graph loaded up front.
func (c *Cache) Get(rootTreeID, teamID string) (*Graph, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	g, ok := c.graphs[cacheKey{rootTreeID, teamID}]
	if !ok {
		return nil, &CacheMissError{RootTreeID: rootTreeID, TeamID: teamID}
	}
	return g, nil
}

// Invalidate removes the entry for one tree/team pair.
func (c *Cache) Invalidate(rootTreeID, teamID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.graphs, cacheKey{rootTreeID, teamID})
}

// Flush removes every cached graph.
func (c *Cache) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.graphs = make(map[cacheKey]*Graph)
}

// Len returns the number of cached graphs.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.graphs)
}

// FindPath looks up the cached graph for the tree/team pair and computes the
// shortest path on it. A cache miss surfaces as CacheMissError.
func (c *Cache) FindPath(rootTreeID, teamID, target, start string) ([]Transition, error) {
	g, err := c.Get(rootTreeID, teamID)
	if err != nil {
		return nil, err
	}
	return g.FindPath(target, start)
}
