// ABOUTME: Edge-coverage validation traversal: orders every non-virtual arc for execution.
// ABOUTME: Depth-first from the entry point with forced shortest-path transitions when position drifts.
package navigation

import "sort"

// ValidationStep is one step of the validation sequence. Forced steps are
// shortest-path insertions that reposition the device and count toward
// coverage only. Unreachable steps are kept in the sequence for reporting but
// must be skipped by the executor.
type ValidationStep struct {
	Transition
	Forced      bool
	Unreachable bool
	Skipped     bool // conditional edge retained with no actions to execute
}

// ValidationSequence produces an ordered list of steps that collectively
// cover every non-virtual arc of the graph, including reverse arcs. Traversal
// is depth-first from the entry point over forward arcs; when multiple
// children exist they are visited in lexicographic order of child node id.
// After descending into a child the walk returns through an unvisited direct
// return edge when one exists, falling back to the reverse arc of the same
// edge; otherwise repositioning happens through forced shortest-path
// transitions. Reverse arcs not claimed as returns are appended afterwards.
func (g *Graph) ValidationSequence() []ValidationStep {
	entry := g.EntryNode()
	if entry == nil {
		return nil
	}

	visited := make(map[*Arc]bool)
	var pending []*Arc

	var dfs func(nodeID string)
	dfs = func(nodeID string) {
		arcs := append([]*Arc(nil), g.out[nodeID]...)
		sort.SliceStable(arcs, func(i, j int) bool { return arcs[i].To < arcs[j].To })

		for _, a := range arcs {
			if a.IsVirtual || a.IsReverse || visited[a] {
				continue
			}
			visited[a] = true
			pending = append(pending, a)

			// Action nodes never change traversal position.
			if to := g.nodes[a.To]; to != nil && to.Kind == KindAction {
				continue
			}

			dfs(a.To)

			if ret := g.returnArc(visited, a); ret != nil {
				visited[ret] = true
				pending = append(pending, ret)
			}
			// Otherwise the walk below repositions via forced transitions.
		}
	}
	dfs(entry.ID)

	// Cover arcs the DFS did not claim: unclaimed reverse arcs, disconnected
	// components, and arcs only reachable through virtual edges.
	for _, a := range g.arcs {
		if !a.IsVirtual && !visited[a] {
			visited[a] = true
			pending = append(pending, a)
		}
	}

	return g.walkPending(entry.ID, pending)
}

// returnArc finds an unvisited arc from a.To back to a.From. A direct return
// edge wins; the reverse arc of the same edge is the fallback.
func (g *Graph) returnArc(visited map[*Arc]bool, a *Arc) *Arc {
	var reverse *Arc
	for _, back := range g.out[a.To] {
		if back.IsVirtual || back.To != a.From || visited[back] {
			continue
		}
		if back.EdgeID == a.EdgeID+"_reverse" {
			if reverse == nil {
				reverse = back
			}
			continue
		}
		return back
	}
	return reverse
}

// walkPending replays the pending arcs from the entry position, inserting
// forced transitions when the current position does not match a step's
// origin. Steps with no reachable origin are marked unreachable and skipped.
func (g *Graph) walkPending(startID string, pending []*Arc) []ValidationStep {
	var steps []ValidationStep
	stepNumber := 0
	current := startID

	appendStep := func(s ValidationStep) {
		stepNumber++
		s.StepNumber = stepNumber
		steps = append(steps, s)
	}

	for _, a := range pending {
		if a.From != current {
			forced := g.shortestArcPath(current, a.From)
			if forced == nil {
				// Fall back to a path from the entry point.
				forced = g.shortestArcPath(startID, a.From)
				if forced != nil {
					current = startID
				}
			}
			if forced == nil {
				appendStep(ValidationStep{Transition: g.transitionForArc(a, 0), Unreachable: true})
				continue
			}
			for _, fa := range forced {
				appendStep(ValidationStep{Transition: g.transitionForArc(fa, 0), Forced: true})
				current = g.advance(current, fa)
			}
		}

		s := ValidationStep{Transition: g.transitionForArc(a, 0)}
		if a.IsConditional && len(a.Actions) == 0 {
			s.Skipped = true
		}
		appendStep(s)
		current = g.advance(current, a)
	}
	return steps
}

// advance returns the position after executing an arc: action-kind
// destinations leave the position unchanged.
func (g *Graph) advance(current string, a *Arc) string {
	if to := g.nodes[a.To]; to != nil && to.Kind == KindAction {
		return current
	}
	return a.To
}

// CoverageTarget returns the number of non-virtual arcs a validation sweep
// must cover.
func (g *Graph) CoverageTarget() int {
	n := 0
	for _, a := range g.arcs {
		if !a.IsVirtual {
			n++
		}
	}
	return n
}
