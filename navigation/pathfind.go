// ABOUTME: Shortest-path computation over the unified graph and transition record construction.
// ABOUTME: BFS with unit weights; target/start references resolve by id, exact label, then case-insensitive label.
package navigation

// Transition is one step of a computed path, carrying everything the
// executors need: the selected action set, the destination's verifications,
// and tree-context bookkeeping.
type Transition struct {
	StepNumber        int
	FromNodeID        string
	ToNodeID          string
	FromNodeLabel     string
	ToNodeLabel       string
	FromTreeID        string
	ToTreeID          string
	TransitionType    EdgeType
	TreeContextChange bool
	Actions           []Action
	RetryActions      []Action
	FailureActions    []Action
	ActionSetID       string
	Verifications     []Verification
	FinalWaitMS       int
	EdgeID            string
	IsVirtual         bool
}

// FindPath computes the shortest action-sequence path from start to target.
// Either reference may be a node id or a label. An empty start selects the
// graph's entry node. start == target yields an empty transition list.
func (g *Graph) FindPath(target, start string) ([]Transition, error) {
	targetNode := g.ResolveNode(target)
	if targetNode == nil {
		return nil, &PathNotFoundError{TargetLabel: target}
	}
	if targetNode.Kind == KindAction {
		return nil, &ActionNodeTargetError{NodeID: targetNode.ID}
	}

	var startNode *Node
	if start == "" {
		startNode = g.EntryNode()
	} else {
		startNode = g.ResolveNode(start)
	}
	if startNode == nil {
		return nil, &PathNotFoundError{TargetLabel: start}
	}

	if startNode.ID == targetNode.ID {
		return []Transition{}, nil
	}

	arcs := g.shortestArcPath(startNode.ID, targetNode.ID)
	if arcs == nil {
		return nil, &PathNotFoundError{
			StartID:     startNode.ID,
			StartLabel:  startNode.Label,
			TargetID:    targetNode.ID,
			TargetLabel: targetNode.Label,
		}
	}
	return g.transitionsForArcs(arcs), nil
}

// shortestArcPath runs BFS (unit weights) and returns the arc sequence from
// src to dst, or nil when unreachable.
func (g *Graph) shortestArcPath(src, dst string) []*Arc {
	if src == dst {
		return []*Arc{}
	}
	type hop struct {
		prev string
		arc  *Arc
	}
	visited := map[string]hop{src: {}}
	queue := []string{src}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, a := range g.out[cur] {
			if _, seen := visited[a.To]; seen {
				continue
			}
			visited[a.To] = hop{prev: cur, arc: a}
			if a.To == dst {
				// Reconstruct.
				var path []*Arc
				for at := dst; at != src; {
					h := visited[at]
					path = append([]*Arc{h.arc}, path...)
					at = h.prev
				}
				return path
			}
			queue = append(queue, a.To)
		}
	}
	return nil
}

// transitionsForArcs materializes Transition records for an arc sequence,
// numbering steps from 1.
func (g *Graph) transitionsForArcs(arcs []*Arc) []Transition {
	transitions := make([]Transition, 0, len(arcs))
	for i, a := range arcs {
		transitions = append(transitions, g.transitionForArc(a, i+1))
	}
	return transitions
}

func (g *Graph) transitionForArc(a *Arc, stepNumber int) Transition {
	from := g.nodes[a.From]
	to := g.nodes[a.To]
	t := Transition{
		StepNumber:     stepNumber,
		FromNodeID:     a.From,
		ToNodeID:       a.To,
		TransitionType: a.Type,
		Actions:        a.Actions,
		RetryActions:   a.RetryActions,
		FailureActions: a.FailureActions,
		ActionSetID:    a.ActionSetID,
		FinalWaitMS:    a.FinalWaitMS,
		EdgeID:         a.EdgeID,
		IsVirtual:      a.IsVirtual,
	}
	if from != nil {
		t.FromNodeLabel = from.Label
		t.FromTreeID = from.TreeID
	}
	if to != nil {
		t.ToNodeLabel = to.Label
		t.ToTreeID = to.TreeID
		t.Verifications = to.Verifications
	}
	t.TreeContextChange = t.FromTreeID != t.ToTreeID
	return t
}
