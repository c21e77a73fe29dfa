// ABOUTME: Tests for graph construction: edge admission rules, reverse arcs, param flattening.
// ABOUTME: Covers default action set resolution, missing endpoints, and entry node fallback order.
package navigation

import (
	"testing"
)

func simpleSet(id string, commands ...string) ActionSet {
	s := ActionSet{ID: id}
	for _, c := range commands {
		s.Actions = append(s.Actions, Action{Command: c, Type: ActionRemote})
	}
	return s
}

func testNodes() []Node {
	return []Node{
		{ID: "entry", Label: "Entry", Kind: KindEntry},
		{ID: "home", Label: "Home", Kind: KindScreen},
		{ID: "settings", Label: "Settings", Kind: KindScreen},
		{ID: "reboot", Label: "Reboot", Kind: KindAction},
	}
}

func TestBuildGraphForwardArc(t *testing.T) {
	edges := []Edge{{
		ID:                 "e1",
		Source:             "entry",
		Target:             "home",
		ActionSets:         []ActionSet{simpleSet("s1", "press_ok")},
		DefaultActionSetID: "s1",
	}}
	g := BuildGraph(testNodes(), edges, nil)

	arcs := g.OutgoingArcs("entry")
	if len(arcs) != 1 {
		t.Fatalf("expected 1 outgoing arc, got %d", len(arcs))
	}
	a := arcs[0]
	if !a.IsForward || a.IsReverse {
		t.Errorf("expected forward arc, got forward=%v reverse=%v", a.IsForward, a.IsReverse)
	}
	if a.Weight != 1 {
		t.Errorf("expected weight=1, got %d", a.Weight)
	}
	if a.FinalWaitMS != DefaultFinalWaitMS {
		t.Errorf("expected default final wait %d, got %d", DefaultFinalWaitMS, a.FinalWaitMS)
	}
	if len(a.Actions) != 1 || a.Actions[0].Command != "press_ok" {
		t.Errorf("arc does not carry default action set actions: %+v", a.Actions)
	}
}

func TestBuildGraphReverseArc(t *testing.T) {
	rev := simpleSet("rev", "press_left")
	rev.RetryActions = []Action{{Command: "press_back", Type: ActionRemote}}
	rev.FailureActions = []Action{{Command: "go_home", Type: ActionRemote}}
	edges := []Edge{{
		ID:     "e1",
		Source: "home",
		Target: "settings",
		ActionSets: []ActionSet{
			simpleSet("fwd", "press_right"),
			rev,
		},
		DefaultActionSetID: "fwd",
	}}
	g := BuildGraph(testNodes(), edges, nil)

	back := g.OutgoingArcs("settings")
	if len(back) != 1 {
		t.Fatalf("expected 1 reverse arc, got %d", len(back))
	}
	if !back[0].IsReverse {
		t.Error("expected IsReverse=true")
	}
	if back[0].EdgeID != "e1_reverse" {
		t.Errorf("expected edge id e1_reverse, got %q", back[0].EdgeID)
	}
	if back[0].Actions[0].Command != "press_left" {
		t.Errorf("reverse arc carries wrong actions: %+v", back[0].Actions)
	}
	if len(back[0].RetryActions) != 1 || back[0].RetryActions[0].Command != "press_back" {
		t.Errorf("reverse arc must carry the set's retry actions: %+v", back[0].RetryActions)
	}
	if len(back[0].FailureActions) != 1 || back[0].FailureActions[0].Command != "go_home" {
		t.Errorf("reverse arc must carry the set's failure actions: %+v", back[0].FailureActions)
	}
}

func TestBuildGraphEmptyReverseSetInducesNoArc(t *testing.T) {
	edges := []Edge{{
		ID:                 "e1",
		Source:             "home",
		Target:             "settings",
		ActionSets:         []ActionSet{simpleSet("fwd", "press_right"), {ID: "rev"}},
		DefaultActionSetID: "fwd",
	}}
	g := BuildGraph(testNodes(), edges, nil)
	if n := len(g.OutgoingArcs("settings")); n != 0 {
		t.Errorf("empty reverse action set must not induce an arc, got %d", n)
	}
}

func TestBuildGraphDropsEdgeWithMissingEndpoint(t *testing.T) {
	edges := []Edge{{
		ID:                 "e1",
		Source:             "entry",
		Target:             "nonexistent",
		ActionSets:         []ActionSet{simpleSet("s1", "press_ok")},
		DefaultActionSetID: "s1",
	}}
	g := BuildGraph(testNodes(), edges, nil)
	if len(g.Arcs()) != 0 {
		t.Errorf("edge with missing endpoint must be dropped, got %d arcs", len(g.Arcs()))
	}
}

func TestBuildGraphDropsNonConditionalEdgeWithoutActionSets(t *testing.T) {
	edges := []Edge{{ID: "e1", Source: "entry", Target: "home"}}
	g := BuildGraph(testNodes(), edges, nil)
	if len(g.Arcs()) != 0 {
		t.Errorf("non-conditional edge without action sets must be dropped, got %d arcs", len(g.Arcs()))
	}
}

func TestBuildGraphKeepsConditionalEdgeWithoutActionSets(t *testing.T) {
	edges := []Edge{{ID: "e1", Source: "entry", Target: "home", IsConditional: true}}
	g := BuildGraph(testNodes(), edges, nil)
	if len(g.Arcs()) != 1 {
		t.Fatalf("conditional edge must be kept, got %d arcs", len(g.Arcs()))
	}
	if !g.Arcs()[0].IsConditional {
		t.Error("expected IsConditional=true on arc")
	}
}

func TestBuildGraphDropsEdgeWithUnknownDefaultSet(t *testing.T) {
	edges := []Edge{{
		ID:                 "e1",
		Source:             "entry",
		Target:             "home",
		ActionSets:         []ActionSet{simpleSet("s1", "press_ok")},
		DefaultActionSetID: "missing",
	}}
	g := BuildGraph(testNodes(), edges, nil)
	if len(g.Arcs()) != 0 {
		t.Errorf("edge with unknown default_action_set_id must be dropped, got %d arcs", len(g.Arcs()))
	}
}

func TestExplicitZeroFinalWaitIsPreserved(t *testing.T) {
	zero := 0
	edges := []Edge{{
		ID:                 "e1",
		Source:             "entry",
		Target:             "home",
		ActionSets:         []ActionSet{simpleSet("s1", "press_ok")},
		DefaultActionSetID: "s1",
		FinalWaitMS:        &zero,
	}}
	g := BuildGraph(testNodes(), edges, nil)
	if g.Arcs()[0].FinalWaitMS != 0 {
		t.Errorf("explicit final_wait=0 must not be defaulted, got %d", g.Arcs()[0].FinalWaitMS)
	}
}

func TestEntryNodeFallbackOrder(t *testing.T) {
	g := BuildGraph([]Node{
		{ID: "a", Label: "A", Kind: KindScreen},
		{ID: "b", Label: "B", Kind: KindScreen, IsEntry: true},
		{ID: "c", Label: "C", Kind: KindEntry},
	}, nil, nil)
	if g.EntryNode().ID != "c" {
		t.Errorf("dedicated entry kind wins, got %q", g.EntryNode().ID)
	}

	g = BuildGraph([]Node{
		{ID: "a", Label: "A", Kind: KindScreen},
		{ID: "b", Label: "B", Kind: KindScreen, IsEntry: true},
	}, nil, nil)
	if g.EntryNode().ID != "b" {
		t.Errorf("is_entry declaration wins next, got %q", g.EntryNode().ID)
	}

	g = BuildGraph([]Node{
		{ID: "a", Label: "A", Kind: KindScreen},
		{ID: "b", Label: "B", Kind: KindScreen},
	}, nil, nil)
	if g.EntryNode().ID != "a" {
		t.Errorf("first node in insertion order is the last fallback, got %q", g.EntryNode().ID)
	}
}

func TestResolveNodeOrder(t *testing.T) {
	g := BuildGraph([]Node{
		{ID: "settings", Label: "Audio", Kind: KindScreen},
		{ID: "n2", Label: "Settings", Kind: KindScreen},
		{ID: "n3", Label: "SETTINGS", Kind: KindScreen},
	}, nil, nil)

	if got := g.ResolveNode("settings"); got.ID != "settings" {
		t.Errorf("id match must win over label match, got %q", got.ID)
	}
	if got := g.ResolveNode("Settings"); got.ID != "n2" {
		t.Errorf("exact label match must win over case-insensitive, got %q", got.ID)
	}
	if got := g.ResolveNode("seTTings"); got.ID != "n2" {
		t.Errorf("case-insensitive match expected n2 (insertion order), got %q", got.ID)
	}
	if got := g.ResolveNode("nope"); got != nil {
		t.Errorf("expected nil for unknown reference, got %v", got)
	}
}

func TestFlattenParams(t *testing.T) {
	a := Action{
		Command: "press_key",
		Params: map[string]any{
			"key":   map[string]any{"default": "OK", "type": "string", "required": true},
			"count": 3,
			"meta":  map[string]any{"default": "x"}, // no "type": not a schema object
		},
	}
	flat := a.FlattenedParams()
	if flat["key"] != "OK" {
		t.Errorf("schema object must flatten to default, got %v", flat["key"])
	}
	if flat["count"] != 3 {
		t.Errorf("scalar params pass through, got %v", flat["count"])
	}
	if _, ok := flat["meta"].(map[string]any); !ok {
		t.Errorf("map without type key must pass through, got %v", flat["meta"])
	}
}

func TestEffectiveIteratorClamping(t *testing.T) {
	cases := []struct {
		in   Action
		want int
	}{
		{Action{Iterator: 0}, 1},
		{Action{Iterator: -5}, 1},
		{Action{Iterator: 50}, 50},
		{Action{Iterator: 500}, 100},
		{Action{Iterator: 50, Type: ActionVerification}, 1},
	}
	for _, c := range cases {
		if got := c.in.EffectiveIterator(); got != c.want {
			t.Errorf("EffectiveIterator(%+v) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestDefaultActionSetInvariant(t *testing.T) {
	// For every built arc, the carried action set id is one of the edge's sets.
	edges := []Edge{{
		ID:                 "e1",
		Source:             "entry",
		Target:             "home",
		ActionSets:         []ActionSet{simpleSet("s1", "a"), simpleSet("s2", "b")},
		DefaultActionSetID: "s2",
	}}
	g := BuildGraph(testNodes(), edges, nil)
	if g.Arcs()[0].ActionSetID != "s2" {
		t.Errorf("forward arc must carry the default set, got %q", g.Arcs()[0].ActionSetID)
	}
}
