// ABOUTME: Cross-tree unification: merges a root tree and its descendants into one multigraph.
// ABOUTME: Parent nodes declaring a child tree gain enter_subtree/exit_subtree virtual arcs to the child's entry.
package navigation

import (
	"go.uber.org/zap"
)

// Tree is one userinterface tree record as fetched from durable storage.
type Tree struct {
	ID           string
	Name         string
	ParentTreeID string
	ParentNodeID string
	Depth        int
	IsRoot       bool
	Nodes        []Node
	Edges        []Edge
}

// Unify builds one graph per tree, merges them into a single multigraph, tags
// every node with its tree membership, and synthesizes two virtual arcs per
// parent-node→child-tree link.
func Unify(trees []Tree, logger *zap.Logger) *Graph {
	if logger == nil {
		logger = zap.NewNop()
	}

	var allNodes []Node
	var allEdges []Edge
	entryByTree := make(map[string]string)

	for _, t := range trees {
		for i := range t.Nodes {
			n := t.Nodes[i]
			n.TreeID = t.ID
			n.TreeName = t.Name
			n.TreeDepth = t.Depth
			allNodes = append(allNodes, n)
			if n.Kind == KindEntry && entryByTree[t.ID] == "" {
				entryByTree[t.ID] = n.ID
			}
		}
		allEdges = append(allEdges, t.Edges...)
	}
	// Fall back to is_entry declarations for trees without a dedicated entry node.
	for _, t := range trees {
		if entryByTree[t.ID] != "" {
			continue
		}
		for _, n := range t.Nodes {
			if n.IsEntry {
				entryByTree[t.ID] = n.ID
				break
			}
		}
	}

	g := BuildGraph(allNodes, allEdges, logger)

	for _, t := range trees {
		for _, n := range t.Nodes {
			if n.ChildTreeID == "" {
				continue
			}
			childEntry := entryByTree[n.ChildTreeID]
			if childEntry == "" {
				logger.Warn("child tree has no entry node, skipping virtual edges",
					zap.String("parent_node", n.ID),
					zap.String("child_tree", n.ChildTreeID))
				continue
			}
			g.addVirtualArc(n.ID, childEntry, EdgeEnterSubtree)
			g.addVirtualArc(childEntry, n.ID, EdgeExitSubtree)
		}
	}
	return g
}

// addVirtualArc appends a synthetic cross-tree arc carrying a single-action
// action set. Virtual arcs are excluded from validation sweeps and never
// recorded as edge executions.
func (g *Graph) addVirtualArc(from, to string, t EdgeType) {
	edgeID := "virtual_" + string(t) + "_" + from + "_" + to
	g.appendArc(&Arc{
		EdgeID: edgeID,
		From:   from,
		To:     to,
		Type:   t,
		Actions: []Action{{
			Command: string(t),
			Type:    ActionStandardBlock,
			Params:  map[string]any{"from": from, "to": to},
		}},
		ActionSetID: edgeID,
		FinalWaitMS: 0,
		Weight:      1,
		IsForward:   true,
		IsVirtual:   true,
	})
}

// VirtualArcCount returns the number of virtual arcs in the graph.
func (g *Graph) VirtualArcCount() int {
	n := 0
	for _, a := range g.arcs {
		if a.IsVirtual {
			n++
		}
	}
	return n
}
