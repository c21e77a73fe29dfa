// ABOUTME: Core graph model for userinterface navigation trees: Node, Edge, ActionSet, Action, Verification.
// ABOUTME: BuildGraph constructs a directed multigraph from node and edge records, synthesizing reverse arcs.
package navigation

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// NodeKind classifies a navigation node.
type NodeKind string

const (
	KindScreen NodeKind = "screen"
	KindEntry  NodeKind = "entry"
	KindAction NodeKind = "action"
	KindMenu   NodeKind = "menu"
)

// EdgeType classifies an edge within the unified graph.
type EdgeType string

const (
	EdgeNormal       EdgeType = "normal"
	EdgeEnterSubtree EdgeType = "enter_subtree"
	EdgeExitSubtree  EdgeType = "exit_subtree"
)

// ActionType selects the controller family that executes an action.
type ActionType string

const (
	ActionRemote        ActionType = "remote"
	ActionWeb           ActionType = "web"
	ActionDesktop       ActionType = "desktop"
	ActionAV            ActionType = "av"
	ActionPower         ActionType = "power"
	ActionVerification  ActionType = "verification"
	ActionStandardBlock ActionType = "standard_block"
)

// VerificationType selects the verification controller family.
type VerificationType string

const (
	VerifyImage  VerificationType = "image"
	VerifyText   VerificationType = "text"
	VerifyAudio  VerificationType = "audio"
	VerifyVideo  VerificationType = "video"
	VerifyADB    VerificationType = "adb"
	VerifyAppium VerificationType = "appium"
)

// DefaultFinalWaitMS is applied when an edge record omits final_wait_time.
const DefaultFinalWaitMS = 2000

// MaxActionIterator caps the per-action iteration count.
const MaxActionIterator = 100

// Action is one executable command routed to a typed controller.
type Action struct {
	Command        string         `json:"command"`
	Type           ActionType     `json:"action_type,omitempty"`
	Params         map[string]any `json:"params,omitempty"`
	Iterator       int            `json:"iterator,omitempty"`
	WaitTimeMS     int            `json:"wait_time,omitempty"`
	ContinueOnFail bool           `json:"continue_on_fail,omitempty"`
}

// EffectiveIterator returns the action's iteration count clamped to [1, MaxActionIterator].
// Verification actions never iterate.
func (a Action) EffectiveIterator() int {
	if a.Type == ActionVerification {
		return 1
	}
	n := a.Iterator
	if n < 1 {
		n = 1
	}
	if n > MaxActionIterator {
		n = MaxActionIterator
	}
	return n
}

// FlattenedParams normalizes typed schema objects ({default, type, required})
// down to their default value, returning a scalar-only copy of Params.
func (a Action) FlattenedParams() map[string]any {
	if a.Params == nil {
		return map[string]any{}
	}
	flat := make(map[string]any, len(a.Params))
	for k, v := range a.Params {
		flat[k] = FlattenParam(v)
	}
	return flat
}

// FlattenParam collapses a typed schema object into its default value.
// A value is treated as a schema object when it is a map carrying both
// "default" and "type" keys; anything else passes through unchanged.
func FlattenParam(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}
	def, hasDefault := m["default"]
	_, hasType := m["type"]
	if hasDefault && hasType {
		return def
	}
	return v
}

// Area is a rectangular region in source-image coordinates.
type Area struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"width"`
	H int `json:"height"`
}

// Verification is one check executed against the current device output.
type Verification struct {
	Type    VerificationType `json:"verification_type"`
	Command string           `json:"command"`
	Params  map[string]any   `json:"params,omitempty"`
}

// ActionSet groups the main, retry, and failure action lists of one edge direction.
type ActionSet struct {
	ID             string   `json:"id"`
	Label          string   `json:"label,omitempty"`
	Actions        []Action `json:"actions"`
	RetryActions   []Action `json:"retry_actions,omitempty"`
	FailureActions []Action `json:"failure_actions,omitempty"`
}

// Node is a state in the userinterface navigation tree.
type Node struct {
	ID            string
	Label         string
	Kind          NodeKind
	Screenshot    string
	Verifications []Verification
	TreeID        string
	TreeName      string
	TreeDepth     int
	IsEntry       bool
	IsExit        bool
	HasChildren   bool
	ChildTreeID   string
}

// Edge is the stored record for a directed edge between two nodes.
// ActionSets holds 1 or 2 sets: index 0 is the forward direction, index 1
// (when present with non-empty actions) induces a reverse arc.
type Edge struct {
	ID                 string
	Source             string
	Target             string
	Type               EdgeType
	ActionSets         []ActionSet
	DefaultActionSetID string
	FinalWaitMS        *int
	IsConditional      bool
}

// finalWait resolves the edge's final wait, applying the default when unset.
func (e Edge) finalWait() int {
	if e.FinalWaitMS == nil {
		return DefaultFinalWaitMS
	}
	return *e.FinalWaitMS
}

// defaultSet returns the action set matching DefaultActionSetID, or nil.
func (e Edge) defaultSet() *ActionSet {
	for i := range e.ActionSets {
		if e.ActionSets[i].ID == e.DefaultActionSetID {
			return &e.ActionSets[i]
		}
	}
	return nil
}

// Arc is one directed arc of the built graph. Forward arcs carry the edge's
// default action set; reverse arcs carry action_sets[1].
type Arc struct {
	EdgeID         string
	From           string
	To             string
	Type           EdgeType
	Actions        []Action
	RetryActions   []Action
	FailureActions []Action
	ActionSetID    string
	FinalWaitMS    int
	Weight         int
	IsForward      bool
	IsReverse      bool
	IsVirtual      bool
	IsConditional  bool
}

// Graph is a directed multigraph over navigation nodes. Immutable once built;
// concurrent readers need no locking.
type Graph struct {
	nodes map[string]*Node
	order []string // node insertion order, used for entry-point fallback
	arcs  []*Arc
	out   map[string][]*Arc
}

// BuildGraph constructs a graph from node and edge records per the edge
// admission rules: endpoints must exist, and a non-conditional edge without a
// usable default action set is dropped.
func BuildGraph(nodes []Node, edges []Edge, logger *zap.Logger) *Graph {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Graph{
		nodes: make(map[string]*Node, len(nodes)),
		out:   make(map[string][]*Arc),
	}
	for i := range nodes {
		n := nodes[i]
		if _, dup := g.nodes[n.ID]; dup {
			logger.Warn("duplicate node id, keeping first", zap.String("node_id", n.ID))
			continue
		}
		g.nodes[n.ID] = &n
		g.order = append(g.order, n.ID)
	}

	for _, e := range edges {
		if err := g.addEdge(e); err != nil {
			logger.Warn("dropping edge",
				zap.String("edge_id", e.ID),
				zap.String("source", e.Source),
				zap.String("target", e.Target),
				zap.Error(err))
		}
	}
	return g
}

// addEdge validates one edge record and appends its forward (and optional
// reverse) arcs.
func (g *Graph) addEdge(e Edge) error {
	if _, ok := g.nodes[e.Source]; !ok {
		return &InvalidActionSetError{EdgeID: e.ID, Reason: fmt.Sprintf("source node %q not in node set", e.Source)}
	}
	if _, ok := g.nodes[e.Target]; !ok {
		return &InvalidActionSetError{EdgeID: e.ID, Reason: fmt.Sprintf("target node %q not in node set", e.Target)}
	}

	hasReverse := len(e.ActionSets) > 1 && len(e.ActionSets[1].Actions) > 0

	if len(e.ActionSets) == 0 {
		if !e.IsConditional && !hasReverse {
			return &InvalidActionSetError{EdgeID: e.ID, Reason: "empty action_sets on non-conditional edge"}
		}
	}

	def := e.defaultSet()
	if def == nil && len(e.ActionSets) > 0 {
		return &InvalidActionSetError{EdgeID: e.ID, Reason: fmt.Sprintf("default_action_set_id %q not found", e.DefaultActionSetID)}
	}

	edgeType := e.Type
	if edgeType == "" {
		edgeType = EdgeNormal
	}

	fwd := &Arc{
		EdgeID:        e.ID,
		From:          e.Source,
		To:            e.Target,
		Type:          edgeType,
		FinalWaitMS:   e.finalWait(),
		Weight:        1,
		IsForward:     true,
		IsConditional: e.IsConditional,
	}
	if def != nil {
		fwd.Actions = def.Actions
		fwd.RetryActions = def.RetryActions
		fwd.FailureActions = def.FailureActions
		fwd.ActionSetID = def.ID
	}
	g.appendArc(fwd)

	if hasReverse {
		rev := e.ActionSets[1]
		g.appendArc(&Arc{
			EdgeID:         e.ID + "_reverse",
			From:           e.Target,
			To:             e.Source,
			Type:           edgeType,
			Actions:        rev.Actions,
			RetryActions:   rev.RetryActions,
			FailureActions: rev.FailureActions,
			ActionSetID:    rev.ID,
			FinalWaitMS:    e.finalWait(),
			Weight:         1,
			IsReverse:      true,
		})
	}
	return nil
}

func (g *Graph) appendArc(a *Arc) {
	g.arcs = append(g.arcs, a)
	g.out[a.From] = append(g.out[a.From], a)
}

// FindNode returns the node with the given id, or nil.
func (g *Graph) FindNode(id string) *Node {
	return g.nodes[id]
}

// Nodes returns all nodes in insertion order.
func (g *Graph) Nodes() []*Node {
	result := make([]*Node, 0, len(g.order))
	for _, id := range g.order {
		result = append(result, g.nodes[id])
	}
	return result
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// Arcs returns every arc of the graph in insertion order.
func (g *Graph) Arcs() []*Arc { return g.arcs }

// OutgoingArcs returns arcs originating at the given node id.
func (g *Graph) OutgoingArcs(nodeID string) []*Arc {
	return g.out[nodeID]
}

// EntryNode returns the node to start traversals from: the dedicated entry
// kind if any, otherwise the first declared entry point, otherwise the first
// node in insertion order. Returns nil on an empty graph.
func (g *Graph) EntryNode() *Node {
	for _, id := range g.order {
		if g.nodes[id].Kind == KindEntry {
			return g.nodes[id]
		}
	}
	for _, id := range g.order {
		if g.nodes[id].IsEntry {
			return g.nodes[id]
		}
	}
	if len(g.order) > 0 {
		return g.nodes[g.order[0]]
	}
	return nil
}

// ResolveNode resolves a node reference that may be an id, an exact label, or
// a case-insensitive label, in that order. Returns nil when nothing matches.
func (g *Graph) ResolveNode(ref string) *Node {
	if n, ok := g.nodes[ref]; ok {
		return n
	}
	for _, id := range g.order {
		if g.nodes[id].Label == ref {
			return g.nodes[id]
		}
	}
	for _, id := range g.order {
		if strings.EqualFold(g.nodes[id].Label, ref) {
			return g.nodes[id]
		}
	}
	return nil
}
