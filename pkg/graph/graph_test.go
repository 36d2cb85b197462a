package graph

import (
	"reflect"
	"testing"
	"time"

	"github.com/dcltools/netscope/pkg/classify"
)

var t0 = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func record(id string, status Status, probedAt time.Time) NodeRecord {
	return NodeRecord{
		ID:       id,
		Moniker:  "CSA-Pub-SN-01",
		Role:     classify.RoleSentry,
		Org:      "CSA",
		Status:   status,
		ProbedAt: probedAt,
	}
}

func TestMergeNodeLastWriteWins(t *testing.T) {
	older := record("n1", StatusOk, t0)
	older.Height = 100
	newer := record("n1", StatusOk, t0.Add(time.Minute))
	newer.Height = 105

	tests := []struct {
		name  string
		order []NodeRecord
	}{
		{"OldThenNew", []NodeRecord{older, newer}},
		{"NewThenOld", []NodeRecord{newer, older}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New()
			for _, r := range tt.order {
				g.MergeNode(r)
			}
			got, _ := g.Node("n1")
			if got.Height != 105 {
				t.Errorf("Height = %d, want 105 (later probe wins)", got.Height)
			}
		})
	}
}

func TestMergeNodeFailureNeverClobbersFresherOk(t *testing.T) {
	ok := record("n1", StatusOk, t0.Add(time.Minute))
	ok.Height = 200
	staleFail := record("n1", StatusFailed, t0)
	staleFail.Height = 0

	g := New()
	g.MergeNode(ok)
	g.MergeNode(staleFail)

	got, _ := g.Node("n1")
	if got.Status != StatusOk || got.Height != 200 {
		t.Errorf("record = %+v, want fresher Ok preserved", got)
	}

	// A strictly later failure does win.
	laterFail := record("n1", StatusFailed, t0.Add(2*time.Minute))
	g.MergeNode(laterFail)
	got, _ = g.Node("n1")
	if got.Status != StatusFailed {
		t.Errorf("status = %q, want failed after strictly later probe", got.Status)
	}
	// But fields the failure could not report survive.
	if got.Height != 200 {
		t.Errorf("Height = %d, want 200 carried over", got.Height)
	}
}

func TestMergeNodeEqualTimestampPrefersSuccess(t *testing.T) {
	ok := record("n1", StatusOk, t0)
	fail := record("n1", StatusFailed, t0)

	for name, order := range map[string][]NodeRecord{
		"OkFirst":   {ok, fail},
		"FailFirst": {fail, ok},
	} {
		t.Run(name, func(t *testing.T) {
			g := New()
			for _, r := range order {
				g.MergeNode(r)
			}
			got, _ := g.Node("n1")
			if got.Status != StatusOk {
				t.Errorf("status = %q, want ok regardless of order", got.Status)
			}
		})
	}
}

func TestMergeCommutative(t *testing.T) {
	// Applying a set of completed queries in any order yields an
	// identical node/edge set.
	a := record("a", StatusOk, t0)
	b := record("b", StatusPartial, t0.Add(time.Second))
	a2 := record("a", StatusOk, t0.Add(2*time.Second))
	a2.Height = 7

	build := func(order []NodeRecord) *Graph {
		g := New()
		for _, r := range order {
			g.MergeNode(r)
		}
		g.MergeEdge("a", "b", "a", t0)
		g.MergeEdge("b", "a", "b", t0.Add(time.Second))
		return g
	}

	g1 := build([]NodeRecord{a, b, a2})
	g2 := build([]NodeRecord{a2, a, b})
	g3 := build([]NodeRecord{b, a2, a})

	for i, g := range []*Graph{g2, g3} {
		if !reflect.DeepEqual(g1.Nodes(), g.Nodes()) {
			t.Errorf("order %d: nodes differ:\n%+v\n%+v", i, g1.Nodes(), g.Nodes())
		}
	}
	// Edge sets must match exactly (one edge, seen twice).
	edges := g1.Edges()
	if len(edges) != 1 {
		t.Fatalf("edges = %d, want 1", len(edges))
	}
	if edges[0].Seen != 2 {
		t.Errorf("Seen = %d, want 2", edges[0].Seen)
	}
}

func TestMergeIdempotent(t *testing.T) {
	r := record("n1", StatusOk, t0)
	g := New()
	g.MergeNode(r)
	before, _ := g.Node("n1")
	g.MergeNode(r)
	after, _ := g.Node("n1")
	if !reflect.DeepEqual(before, after) {
		t.Errorf("re-merging identical record changed it: %+v vs %+v", before, after)
	}
}

func TestMergeEdgeUnorderedIdentity(t *testing.T) {
	g := New()
	g.MergeEdge("b", "a", "b", t0)
	g.MergeEdge("a", "b", "a", t0.Add(time.Minute))

	edges := g.Edges()
	if len(edges) != 1 {
		t.Fatalf("edges = %d, want 1 (cycle collapses to one edge)", len(edges))
	}
	e := edges[0]
	if e.A != "a" || e.B != "b" {
		t.Errorf("pair = (%q, %q), want sorted (a, b)", e.A, e.B)
	}
	if e.Seen != 2 {
		t.Errorf("Seen = %d, want 2", e.Seen)
	}
	if !e.ConfirmedAt.Equal(t0.Add(time.Minute)) {
		t.Errorf("ConfirmedAt = %v, want advanced to latest report", e.ConfirmedAt)
	}
	if e.ReportedBy != "b" {
		t.Errorf("ReportedBy = %q, want first reporter kept", e.ReportedBy)
	}
}

func TestMergeEdgeDropsSelfReference(t *testing.T) {
	g := New()
	g.MergeEdge("a", "a", "a", t0)
	if _, n := g.Len(); n != 0 {
		t.Errorf("edges = %d, want 0 for self-reference", n)
	}
}

func TestTruncated(t *testing.T) {
	g := New()
	if tr, _ := g.Truncated(); tr {
		t.Error("new graph marked truncated")
	}
	g.SetTruncated("node cap reached (1)")
	tr, reason := g.Truncated()
	if !tr || reason != "node cap reached (1)" {
		t.Errorf("Truncated() = (%v, %q)", tr, reason)
	}
}

func TestOrganizations(t *testing.T) {
	g := New()
	g.MergeNode(NodeRecord{ID: "a", Org: "CSA"})
	g.MergeNode(NodeRecord{ID: "b", Org: "CSA"})
	g.MergeNode(NodeRecord{ID: "c", Org: "acme"})
	g.MergeNode(NodeRecord{ID: "d"})

	got := g.Organizations()
	want := map[string]int{"CSA": 2, "acme": 1, "Unknown": 1}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Organizations() = %v, want %v", got, want)
	}
}
