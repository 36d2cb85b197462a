package graph

import (
	"bytes"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/dcltools/netscope/pkg/classify"
	"github.com/dcltools/netscope/pkg/errors"
)

func sample() *Graph {
	g := New()
	g.MergeNode(NodeRecord{
		ID: "aaa1", Moniker: "CSA-ON-01", IP: "13.52.115.12",
		Role: classify.RoleObserver, Org: "CSA",
		Status: StatusOk, Height: 12345, ProbedAt: t0,
	})
	g.MergeNode(NodeRecord{
		ID: "bbb2", Moniker: "acme-vn-01", IP: "54.183.6.67",
		Role: classify.RoleValidator, Org: "acme",
		Status: StatusPartial, ProbedAt: t0,
	})
	g.MergeEdge("aaa1", "bbb2", "aaa1", t0)
	return g
}

func TestRoundTrip(t *testing.T) {
	g := sample()
	g.SetTruncated("depth cap reached (2)")

	var buf bytes.Buffer
	if err := g.WriteJSON(&buf, "session-1"); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	got, err := ReadJSON(&buf)
	if err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}

	if !reflect.DeepEqual(got.Nodes(), g.Nodes()) {
		t.Errorf("nodes differ after round trip:\n%+v\n%+v", got.Nodes(), g.Nodes())
	}
	if !reflect.DeepEqual(got.Edges(), g.Edges()) {
		t.Errorf("edges differ after round trip:\n%+v\n%+v", got.Edges(), g.Edges())
	}
	tr, reason := got.Truncated()
	if !tr || reason != "depth cap reached (2)" {
		t.Errorf("Truncated() = (%v, %q)", tr, reason)
	}
}

func TestReimportThenMergeIsIdentity(t *testing.T) {
	// Re-importing an export and merging it into itself changes nothing.
	g := sample()
	var buf bytes.Buffer
	if err := g.WriteJSON(&buf, ""); err != nil {
		t.Fatal(err)
	}
	imported, err := ReadJSON(&buf)
	if err != nil {
		t.Fatal(err)
	}

	before := imported.Nodes()
	imported.Merge(sample())
	if !reflect.DeepEqual(before, imported.Nodes()) {
		t.Error("merging identical data changed the node set")
	}
}

func TestReadJSONRejectsDanglingEdge(t *testing.T) {
	doc := `{"nodes":[{"id":"a","role":"unknown","org":"Unknown","status":"ok"}],"edges":[{"source":"a","target":"ghost"}]}`
	_, err := ReadJSON(strings.NewReader(doc))
	if !errors.Is(err, errors.ErrCodeInvalidImport) {
		t.Errorf("err = %v, want INVALID_IMPORT", err)
	}
}

func TestReadJSONRejectsMalformed(t *testing.T) {
	_, err := ReadJSON(strings.NewReader("{nope"))
	if !errors.Is(err, errors.ErrCodeInvalidImport) {
		t.Errorf("err = %v, want INVALID_IMPORT", err)
	}
}

func TestExportDeterministic(t *testing.T) {
	a, b := sample().Export(""), sample().Export("")
	a.ExportedAt, b.ExportedAt = time.Time{}, time.Time{}
	if !reflect.DeepEqual(a, b) {
		t.Error("two exports of the same graph differ")
	}
}

func TestPersistentPeers(t *testing.T) {
	g := sample()
	g.MergeNode(NodeRecord{ID: "ccc3", IP: "9.9.9.9", Status: StatusFailed, ProbedAt: t0})

	got := g.PersistentPeers(10)
	want := "aaa1@13.52.115.12:26656,bbb2@54.183.6.67:26656"
	if got != want {
		t.Errorf("PersistentPeers() = %q, want %q", got, want)
	}

	if got := g.PersistentPeers(1); got != "aaa1@13.52.115.12:26656" {
		t.Errorf("PersistentPeers(1) = %q", got)
	}
}
