// ABOUTME: Tests for the edge-coverage validation traversal.
// ABOUTME: Covers full coverage, return-arc preference, forced transitions, unreachable marking, conditional skips.
package navigation

import "testing"

// coverageOf returns the set of non-forced edge ids covered by a sequence.
func coverageOf(steps []ValidationStep) map[string]bool {
	covered := make(map[string]bool)
	for _, s := range steps {
		if !s.Forced && !s.Unreachable {
			covered[s.EdgeID] = true
		}
	}
	return covered
}

func TestValidationCoversEveryNonVirtualArc(t *testing.T) {
	g := chainGraph()
	steps := g.ValidationSequence()
	covered := coverageOf(steps)
	if len(covered) != g.CoverageTarget() {
		t.Fatalf("expected %d covered arcs, got %d", g.CoverageTarget(), len(covered))
	}
	for _, a := range g.Arcs() {
		if !a.IsVirtual && !covered[a.EdgeID] {
			t.Errorf("arc %q not covered", a.EdgeID)
		}
	}
}

func TestValidationExcludesVirtualArcs(t *testing.T) {
	g := Unify(twoTrees(), nil)
	for _, s := range g.ValidationSequence() {
		if s.IsVirtual && !s.Forced {
			t.Errorf("virtual arc %q must not be a coverage step", s.EdgeID)
		}
	}
}

func TestValidationPrefersReverseArcReturn(t *testing.T) {
	nodes := []Node{
		{ID: "entry", Label: "Entry", Kind: KindEntry},
		{ID: "home", Label: "Home", Kind: KindScreen},
	}
	edges := []Edge{{
		ID:                 "e1",
		Source:             "entry",
		Target:             "home",
		ActionSets:         []ActionSet{simpleSet("fwd", "go"), simpleSet("rev", "back")},
		DefaultActionSetID: "fwd",
	}}
	g := BuildGraph(nodes, edges, nil)
	steps := g.ValidationSequence()
	if len(steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(steps))
	}
	if steps[1].EdgeID != "e1_reverse" {
		t.Errorf("expected reverse return immediately after descent, got %q", steps[1].EdgeID)
	}
	if steps[1].Forced {
		t.Error("reverse return is coverage, not a forced transition")
	}
}

func TestValidationPrefersDirectReturnOverReverse(t *testing.T) {
	// home has both a reverse action set on e1 and a dedicated return edge
	// e2. The return after descending must use the direct edge; the reverse
	// arc is still covered afterwards.
	nodes := []Node{
		{ID: "entry", Label: "Entry", Kind: KindEntry},
		{ID: "home", Label: "Home", Kind: KindScreen},
	}
	edges := []Edge{
		{
			ID:                 "e1",
			Source:             "entry",
			Target:             "home",
			ActionSets:         []ActionSet{simpleSet("fwd", "go"), simpleSet("rev", "back")},
			DefaultActionSetID: "fwd",
		},
		{
			ID:                 "e2",
			Source:             "home",
			Target:             "entry",
			ActionSets:         []ActionSet{simpleSet("ret", "press_home")},
			DefaultActionSetID: "ret",
		},
	}
	g := BuildGraph(nodes, edges, nil)
	steps := g.ValidationSequence()

	if len(steps) < 2 || steps[0].EdgeID != "e1" {
		t.Fatalf("unexpected sequence start: %+v", steps)
	}
	if steps[1].EdgeID != "e2" {
		t.Errorf("direct return edge must win over the reverse arc, got %q", steps[1].EdgeID)
	}
	covered := coverageOf(steps)
	if !covered["e1_reverse"] {
		t.Error("reverse arc must still be covered")
	}
	if len(covered) != g.CoverageTarget() {
		t.Errorf("expected %d covered arcs, got %d", g.CoverageTarget(), len(covered))
	}
}

func TestValidationInsertsForcedTransitions(t *testing.T) {
	// a has two dead-end children b and c. After descending into b the walk
	// can only get back to a through a forced entry->a path.
	nodes := []Node{
		{ID: "entry", Label: "Entry", Kind: KindEntry},
		{ID: "a", Label: "A", Kind: KindScreen},
		{ID: "b", Label: "B", Kind: KindScreen},
		{ID: "c", Label: "C", Kind: KindScreen},
	}
	edges := []Edge{
		{ID: "e1", Source: "entry", Target: "a", ActionSets: []ActionSet{simpleSet("s1", "x")}, DefaultActionSetID: "s1"},
		{ID: "e2", Source: "a", Target: "b", ActionSets: []ActionSet{simpleSet("s2", "y")}, DefaultActionSetID: "s2"},
		{ID: "e3", Source: "a", Target: "c", ActionSets: []ActionSet{simpleSet("s3", "z")}, DefaultActionSetID: "s3"},
	}
	g := BuildGraph(nodes, edges, nil)
	steps := g.ValidationSequence()

	covered := coverageOf(steps)
	if len(covered) != 3 {
		t.Fatalf("expected all 3 arcs covered, got %v", covered)
	}
	sawForced := false
	for _, s := range steps {
		if s.Forced && s.EdgeID == "e1" {
			sawForced = true
		}
	}
	if !sawForced {
		t.Error("expected a forced entry->a transition over e1")
	}
	// Every non-forced step must depart from the walk's actual position.
	pos := "entry"
	for _, s := range steps {
		if s.Unreachable {
			continue
		}
		if s.FromNodeID != pos {
			t.Errorf("step %d departs from %q but position is %q", s.StepNumber, s.FromNodeID, pos)
		}
		if to := g.FindNode(s.ToNodeID); to != nil && to.Kind != KindAction {
			pos = s.ToNodeID
		}
	}
}

func TestValidationMarksUnreachable(t *testing.T) {
	// island -> isle is disconnected from entry.
	nodes := []Node{
		{ID: "entry", Label: "Entry", Kind: KindEntry},
		{ID: "home", Label: "Home", Kind: KindScreen},
		{ID: "island", Label: "Island", Kind: KindScreen},
		{ID: "isle", Label: "Isle", Kind: KindScreen},
	}
	edges := []Edge{
		{ID: "e1", Source: "entry", Target: "home", ActionSets: []ActionSet{simpleSet("s1", "x")}, DefaultActionSetID: "s1"},
		{ID: "e2", Source: "island", Target: "isle", ActionSets: []ActionSet{simpleSet("s2", "y")}, DefaultActionSetID: "s2"},
	}
	g := BuildGraph(nodes, edges, nil)
	steps := g.ValidationSequence()

	foundUnreachable := false
	for _, s := range steps {
		if s.EdgeID == "e2" {
			foundUnreachable = s.Unreachable
		}
	}
	if !foundUnreachable {
		t.Error("disconnected arc must be marked unreachable")
	}
}

func TestValidationActionNodeKeepsPosition(t *testing.T) {
	nodes := []Node{
		{ID: "entry", Label: "Entry", Kind: KindEntry},
		{ID: "reboot", Label: "Reboot", Kind: KindAction},
		{ID: "home", Label: "Home", Kind: KindScreen},
	}
	edges := []Edge{
		{ID: "e1", Source: "entry", Target: "reboot", ActionSets: []ActionSet{simpleSet("s1", "x")}, DefaultActionSetID: "s1"},
		{ID: "e2", Source: "entry", Target: "home", ActionSets: []ActionSet{simpleSet("s2", "y")}, DefaultActionSetID: "s2"},
	}
	g := BuildGraph(nodes, edges, nil)
	steps := g.ValidationSequence()

	// Covering e2 after e1 must not need a forced transition: executing the
	// action node edge leaves the position at entry.
	for _, s := range steps {
		if s.Forced {
			t.Errorf("no forced transition expected, got one for edge %q", s.EdgeID)
		}
	}
	covered := coverageOf(steps)
	if !covered["e1"] || !covered["e2"] {
		t.Errorf("both arcs must be covered, got %v", covered)
	}
}

func TestValidationConditionalEmptyEdgeSkipped(t *testing.T) {
	nodes := []Node{
		{ID: "entry", Label: "Entry", Kind: KindEntry},
		{ID: "home", Label: "Home", Kind: KindScreen},
	}
	edges := []Edge{
		{ID: "e1", Source: "entry", Target: "home", IsConditional: true},
	}
	g := BuildGraph(nodes, edges, nil)
	steps := g.ValidationSequence()
	if len(steps) != 1 {
		t.Fatalf("conditional edge must appear in the sequence, got %d steps", len(steps))
	}
	if !steps[0].Skipped {
		t.Error("conditional edge without actions must be marked skipped")
	}
}

func TestValidationChildOrderIsLexicographic(t *testing.T) {
	nodes := []Node{
		{ID: "entry", Label: "Entry", Kind: KindEntry},
		{ID: "zeta", Label: "Zeta", Kind: KindScreen},
		{ID: "alpha", Label: "Alpha", Kind: KindScreen},
	}
	edges := []Edge{
		{ID: "ez", Source: "entry", Target: "zeta", ActionSets: []ActionSet{simpleSet("s1", "x")}, DefaultActionSetID: "s1"},
		{ID: "ea", Source: "entry", Target: "alpha", ActionSets: []ActionSet{simpleSet("s2", "y")}, DefaultActionSetID: "s2"},
	}
	g := BuildGraph(nodes, edges, nil)
	steps := g.ValidationSequence()
	if steps[0].ToNodeID != "alpha" {
		t.Errorf("children must be visited lexicographically, first step went to %q", steps[0].ToNodeID)
	}
}
