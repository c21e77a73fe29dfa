// ABOUTME: Typed errors surfaced by graph construction, caching, and pathfinding.
// ABOUTME: Callers discriminate with errors.As; messages carry both ids and labels where known.
package navigation

import "fmt"

// CacheMissError is returned when pathfinding is requested for a
// (root_tree_id, team_id) pair with no unified graph in the cache.
// Pathfinding never rebuilds silently; the caller must load the tree first.
type CacheMissError struct {
	RootTreeID string
	TeamID     string
}

func (e *CacheMissError) Error() string {
	return fmt.Sprintf("no unified graph cached for tree %q team %q; load the navigation tree first", e.RootTreeID, e.TeamID)
}

// PathNotFoundError is returned when no route exists in the unified graph, or
// when the target reference cannot be resolved to a node at all.
type PathNotFoundError struct {
	StartID     string
	StartLabel  string
	TargetID    string
	TargetLabel string
}

func (e *PathNotFoundError) Error() string {
	if e.TargetID == "" {
		return fmt.Sprintf("target %q not found in unified graph", e.TargetLabel)
	}
	return fmt.Sprintf("no path from %q (%s) to %q (%s)", e.StartLabel, e.StartID, e.TargetLabel, e.TargetID)
}

// ActionNodeTargetError is returned when the pathfinding target resolves to an
// action-kind node, which is never a valid navigation destination.
type ActionNodeTargetError struct {
	NodeID string
}

func (e *ActionNodeTargetError) Error() string {
	return fmt.Sprintf("cannot target action node %q", e.NodeID)
}

// InvalidActionSetError describes an edge record rejected at build time.
type InvalidActionSetError struct {
	EdgeID string
	Reason string
}

func (e *InvalidActionSetError) Error() string {
	return fmt.Sprintf("invalid action set on edge %q: %s", e.EdgeID, e.Reason)
}
