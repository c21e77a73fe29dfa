// ABOUTME: Wire-format tree records matching the durable storage shapes, plus a file-backed TreeSource.
// ABOUTME: A JSON tree bundle on disk serves cmd scripts and tests; the hosted backend implements the same interface.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/virtualpytest/navigator/navigation"
)

// TreeRecord is one userinterface tree as stored.
type TreeRecord struct {
	TreeID       string       `json:"tree_id"`
	Name         string       `json:"name"`
	ParentTreeID string       `json:"parent_tree_id,omitempty"`
	ParentNodeID string       `json:"parent_node_id,omitempty"`
	TreeDepth    int          `json:"tree_depth"`
	IsRootTree   bool         `json:"is_root_tree"`
	Nodes        []NodeRecord `json:"nodes"`
	Edges        []EdgeRecord `json:"edges"`
}

// NodeRecord is the stored node shape.
type NodeRecord struct {
	NodeID        string                    `json:"node_id"`
	Label         string                    `json:"label"`
	NodeType      string                    `json:"node_type"`
	Data          NodeData                  `json:"data"`
	Verifications []navigation.Verification `json:"verifications,omitempty"`
}

// NodeData carries optional node attributes.
type NodeData struct {
	Description  string `json:"description,omitempty"`
	Screenshot   string `json:"screenshot,omitempty"`
	IsEntryPoint bool   `json:"is_entry_point,omitempty"`
	IsExitPoint  bool   `json:"is_exit_point,omitempty"`
	HasChildren  bool   `json:"has_children,omitempty"`
	ChildTreeID  string `json:"child_tree_id,omitempty"`
}

// EdgeRecord is the stored edge shape.
type EdgeRecord struct {
	EdgeID             string                 `json:"edge_id"`
	SourceNodeID       string                 `json:"source_node_id"`
	TargetNodeID       string                 `json:"target_node_id"`
	EdgeType           string                 `json:"edge_type,omitempty"`
	ActionSets         []navigation.ActionSet `json:"action_sets"`
	DefaultActionSetID string                 `json:"default_action_set_id"`
	FinalWaitTime      *int                   `json:"final_wait_time,omitempty"`
	IsConditional      bool                   `json:"is_conditional,omitempty"`
}

// ToNavigation converts a stored tree into the graph builder's input shape.
func (t TreeRecord) ToNavigation() navigation.Tree {
	tree := navigation.Tree{
		ID:           t.TreeID,
		Name:         t.Name,
		ParentTreeID: t.ParentTreeID,
		ParentNodeID: t.ParentNodeID,
		Depth:        t.TreeDepth,
		IsRoot:       t.IsRootTree,
	}
	for _, n := range t.Nodes {
		tree.Nodes = append(tree.Nodes, navigation.Node{
			ID:            n.NodeID,
			Label:         n.Label,
			Kind:          navigation.NodeKind(n.NodeType),
			Screenshot:    n.Data.Screenshot,
			Verifications: n.Verifications,
			IsEntry:       n.Data.IsEntryPoint,
			IsExit:        n.Data.IsExitPoint,
			HasChildren:   n.Data.HasChildren,
			ChildTreeID:   n.Data.ChildTreeID,
		})
	}
	for _, e := range t.Edges {
		tree.Edges = append(tree.Edges, navigation.Edge{
			ID:                 e.EdgeID,
			Source:             e.SourceNodeID,
			Target:             e.TargetNodeID,
			Type:               navigation.EdgeType(e.EdgeType),
			ActionSets:         e.ActionSets,
			DefaultActionSetID: e.DefaultActionSetID,
			FinalWaitMS:        e.FinalWaitTime,
			IsConditional:      e.IsConditional,
		})
	}
	return tree
}

// treeBundle is the on-disk format: userinterfaces keyed by name.
type treeBundle struct {
	Userinterfaces map[string][]TreeRecord `json:"userinterfaces"`
}

// FileTreeSource reads tree bundles from a JSON file on disk.
type FileTreeSource struct {
	Path string
}

// FetchUserinterfaceTrees loads the named userinterface's trees. The teamID
// is accepted for interface parity; file bundles are single-tenant.
func (s *FileTreeSource) FetchUserinterfaceTrees(ctx context.Context, name, teamID string) ([]navigation.Tree, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read tree bundle: %w", err)
	}
	var bundle treeBundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return nil, fmt.Errorf("parse tree bundle: %w", err)
	}
	records, ok := bundle.Userinterfaces[name]
	if !ok {
		return nil, fmt.Errorf("userinterface %q not found in bundle %s", name, s.Path)
	}
	trees := make([]navigation.Tree, 0, len(records))
	for _, r := range records {
		trees = append(trees, r.ToNavigation())
	}
	return trees, nil
}
