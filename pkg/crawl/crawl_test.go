package crawl

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dcltools/netscope/pkg/classify"
	"github.com/dcltools/netscope/pkg/endpoint"
	"github.com/dcltools/netscope/pkg/errors"
	"github.com/dcltools/netscope/pkg/graph"
	"github.com/dcltools/netscope/pkg/rpc"
)

// fakeQuerier serves canned results keyed by endpoint. Endpoints it
// does not know fail, like unreachable hosts.
type fakeQuerier struct {
	mu    sync.Mutex
	calls map[string]int
	nodes map[string]rpc.Result
}

func newFakeQuerier() *fakeQuerier {
	return &fakeQuerier{
		calls: make(map[string]int),
		nodes: make(map[string]rpc.Result),
	}
}

func (f *fakeQuerier) add(hostPort string, res rpc.Result) {
	f.nodes[hostPort] = res
}

func (f *fakeQuerier) callCount(hostPort string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[hostPort]
}

func (f *fakeQuerier) Query(_ context.Context, ep endpoint.Endpoint) rpc.Result {
	f.mu.Lock()
	f.calls[ep.Key()]++
	res, ok := f.nodes[ep.Key()]
	f.mu.Unlock()

	if !ok {
		return rpc.Result{
			Endpoint: ep,
			Outcome:  rpc.OutcomeFailed,
			Err:      errors.New(errors.ErrCodeTransport, "connection refused"),
			ProbedAt: time.Now(),
		}
	}
	res.Endpoint = ep
	res.ProbedAt = time.Now()
	return res
}

func okResult(id, moniker string, peers ...rpc.PeerInfo) rpc.Result {
	return rpc.Result{
		Outcome: rpc.OutcomeOk,
		Node:    &rpc.NodeInfo{ID: id, Moniker: moniker, Version: "0.34.29", Height: 100, NPeers: len(peers)},
		Peers:   peers,
	}
}

func peer(id, moniker, ip string) rpc.PeerInfo {
	return rpc.PeerInfo{ID: id, Moniker: moniker, RemoteIP: ip}
}

func TestRunRejectsEmptySeeds(t *testing.T) {
	_, err := New(newFakeQuerier(), Config{}).Run(context.Background(), nil)
	if !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Fatalf("err = %v, want INVALID_CONFIG", err)
	}
}

func TestRunRejectsUnparseableSeeds(t *testing.T) {
	_, err := New(newFakeQuerier(), Config{}).Run(context.Background(), []string{"not a host", "::::"})
	if !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Fatalf("err = %v, want INVALID_CONFIG", err)
	}
}

func TestCrawlDiscoversReachableNetwork(t *testing.T) {
	q := newFakeQuerier()
	q.add("203.0.113.1:26657", okResult("aaa", "csa-vn-1",
		peer("bbb", "csa-sn-1", "203.0.113.2"),
		peer("ccc", "gsmb-on-1", "203.0.113.3")))
	q.add("203.0.113.2:26657", okResult("bbb", "csa-sn-1",
		peer("aaa", "csa-vn-1", "203.0.113.1")))
	// 203.0.113.3 is down.

	g, err := New(q, Config{}).Run(context.Background(), []string{"203.0.113.1"})
	if err != nil {
		t.Fatal(err)
	}

	nodes, edges := g.Len()
	if nodes != 3 || edges != 2 {
		t.Fatalf("graph = %d nodes / %d edges, want 3/2", nodes, edges)
	}

	a, ok := g.Node("aaa")
	if !ok {
		t.Fatal("node aaa missing")
	}
	if a.Status != graph.StatusOk || a.Role != classify.RoleValidator || a.Org != "csa" {
		t.Errorf("aaa = %s/%s/%s, want ok/validator/csa", a.Status, a.Role, a.Org)
	}

	c, ok := g.Node("ccc")
	if !ok {
		t.Fatal("node ccc missing")
	}
	if c.Status != graph.StatusFailed {
		t.Errorf("ccc status = %s, want failed", c.Status)
	}
	if c.Moniker != "gsmb-on-1" || c.Role != classify.RoleObserver {
		t.Errorf("ccc lost peer-reported metadata: %+v", c)
	}

	// The A<->B cycle is one edge, confirmed from both sides.
	for _, e := range g.Edges() {
		if e.A == "aaa" && e.B == "bbb" && e.Seen != 2 {
			t.Errorf("edge aaa-bbb seen = %d, want 2", e.Seen)
		}
	}

	for _, key := range []string{"203.0.113.1:26657", "203.0.113.2:26657", "203.0.113.3:26657"} {
		if got := q.callCount(key); got != 1 {
			t.Errorf("endpoint %s queried %d times, want 1", key, got)
		}
	}

	if truncated, _ := g.Truncated(); truncated {
		t.Error("complete crawl marked truncated")
	}
}

func TestCrawlSelfReferenceDropped(t *testing.T) {
	q := newFakeQuerier()
	q.add("203.0.113.1:26657", okResult("aaa", "solo",
		peer("aaa", "solo", "203.0.113.1")))

	g, err := New(q, Config{}).Run(context.Background(), []string{"203.0.113.1"})
	if err != nil {
		t.Fatal(err)
	}

	nodes, edges := g.Len()
	if nodes != 1 || edges != 0 {
		t.Errorf("graph = %d nodes / %d edges, want 1/0", nodes, edges)
	}
	if got := q.callCount("203.0.113.1:26657"); got != 1 {
		t.Errorf("self-referencing endpoint queried %d times, want 1", got)
	}
}

func TestCrawlSkipsPrivatePeers(t *testing.T) {
	q := newFakeQuerier()
	q.add("203.0.113.1:26657", okResult("aaa", "edge",
		peer("bbb", "internal", "10.0.0.5"),
		peer("ccc", "loopback", "127.0.0.1")))

	g, err := New(q, Config{SkipPrivate: true}).Run(context.Background(), []string{"203.0.113.1"})
	if err != nil {
		t.Fatal(err)
	}

	nodes, edges := g.Len()
	if nodes != 1 || edges != 0 {
		t.Errorf("graph = %d nodes / %d edges, want 1/0 (private peers dropped)", nodes, edges)
	}
	if got := q.callCount("10.0.0.5:26657"); got != 0 {
		t.Errorf("private peer queried %d times", got)
	}
}

func TestCrawlPrivateNetwork(t *testing.T) {
	q := newFakeQuerier()
	q.add("10.0.0.1:26657", okResult("aaa", "observer-node",
		peer("bbb", "validator-csa", "10.0.0.2")))
	q.add("10.0.0.2:26657", okResult("bbb", "validator-csa"))

	g, err := New(q, Config{}).Run(context.Background(), []string{"http://10.0.0.1:26657"})
	if err != nil {
		t.Fatal(err)
	}

	nodes, edges := g.Len()
	if nodes != 2 || edges != 1 {
		t.Fatalf("graph = %d nodes / %d edges, want 2/1", nodes, edges)
	}
	b, _ := g.Node("bbb")
	if b.Role != classify.RoleValidator || b.Org != "csa" {
		t.Errorf("bbb = %s/%s, want validator/csa", b.Role, b.Org)
	}
}

func TestCrawlDepthLimit(t *testing.T) {
	q := newFakeQuerier()
	q.add("203.0.113.1:26657", okResult("aaa", "hop0",
		peer("bbb", "hop1", "203.0.113.2")))
	q.add("203.0.113.2:26657", okResult("bbb", "hop1",
		peer("ccc", "hop2", "203.0.113.3")))
	q.add("203.0.113.3:26657", okResult("ccc", "hop2"))

	g, err := New(q, Config{MaxDepth: 1}).Run(context.Background(), []string{"203.0.113.1"})
	if err != nil {
		t.Fatal(err)
	}

	if got := q.callCount("203.0.113.3:26657"); got != 0 {
		t.Errorf("endpoint beyond depth limit queried %d times", got)
	}
	if truncated, reason := g.Truncated(); !truncated || reason == "" {
		t.Errorf("truncated = %v %q, want depth-limit truncation", truncated, reason)
	}

	// ccc is known from bbb's peer list even though it was never queried.
	if c, ok := g.Node("ccc"); !ok || c.Status != graph.StatusFailed {
		t.Errorf("unqueried peer ccc = %+v", c)
	}
}

func TestCrawlNodeLimit(t *testing.T) {
	q := newFakeQuerier()
	q.add("203.0.113.1:26657", okResult("aaa", "seed-node",
		peer("bbb", "next", "203.0.113.2")))
	q.add("203.0.113.2:26657", okResult("bbb", "next"))

	g, err := New(q, Config{MaxNodes: 1}).Run(context.Background(), []string{"203.0.113.1"})
	if err != nil {
		t.Fatal(err)
	}

	if got := q.callCount("203.0.113.2:26657"); got != 0 {
		t.Errorf("endpoint beyond node limit queried %d times", got)
	}
	if truncated, _ := g.Truncated(); !truncated {
		t.Error("node-limited crawl not marked truncated")
	}
}

func TestCrawlCompleteCycleAtCapNotTruncated(t *testing.T) {
	for _, tc := range []struct {
		name string
		cfg  Config
	}{
		{"at node limit", Config{MaxNodes: 2}},
		{"at depth limit", Config{MaxDepth: 1}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			q := newFakeQuerier()
			q.add("203.0.113.1:26657", okResult("aaa", "csa-vn-1",
				peer("bbb", "csa-sn-1", "203.0.113.2")))
			q.add("203.0.113.2:26657", okResult("bbb", "csa-sn-1",
				peer("aaa", "csa-vn-1", "203.0.113.1")))

			g, err := New(q, tc.cfg).Run(context.Background(), []string{"203.0.113.1"})
			if err != nil {
				t.Fatal(err)
			}

			nodes, edges := g.Len()
			if nodes != 2 || edges != 1 {
				t.Fatalf("graph = %d nodes / %d edges, want 2/1", nodes, edges)
			}
			// B re-reporting the visited seed cuts nothing off.
			if truncated, reason := g.Truncated(); truncated {
				t.Errorf("complete crawl marked truncated: %q", reason)
			}
		})
	}
}

// blockingQuerier hangs until its context is cancelled, like a host
// that accepts connections but never answers.
type blockingQuerier struct{}

func (blockingQuerier) Query(ctx context.Context, ep endpoint.Endpoint) rpc.Result {
	<-ctx.Done()
	return rpc.Result{
		Endpoint: ep,
		Outcome:  rpc.OutcomeFailed,
		Err:      errors.New(errors.ErrCodeTimeout, "query aborted"),
		ProbedAt: time.Now(),
	}
}

func TestCrawlCancelledMarkedStopped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	g, err := New(blockingQuerier{}, Config{}).Run(ctx, []string{"203.0.113.1"})
	if err != nil {
		t.Fatal(err)
	}
	if truncated, reason := g.Truncated(); !truncated || reason != "crawl stopped" {
		t.Errorf("truncated = %v %q, want true %q", truncated, reason, "crawl stopped")
	}
}

func TestCrawlTimeoutMarkedTimedOut(t *testing.T) {
	g, err := New(blockingQuerier{}, Config{Timeout: 30 * time.Millisecond}).Run(context.Background(), []string{"203.0.113.1"})
	if err != nil {
		t.Fatal(err)
	}
	if truncated, reason := g.Truncated(); !truncated || reason != "crawl timed out" {
		t.Errorf("truncated = %v %q, want true %q", truncated, reason, "crawl timed out")
	}
}

func TestCrawlPartialResultYieldsNoEdges(t *testing.T) {
	q := newFakeQuerier()
	q.add("203.0.113.1:26657", rpc.Result{
		Outcome: rpc.OutcomePartial,
		Node:    &rpc.NodeInfo{ID: "aaa", Moniker: "csa-vn-1", Height: 50},
		Err:     errors.New(errors.ErrCodeTransport, "net_info unavailable"),
	})

	g, err := New(q, Config{}).Run(context.Background(), []string{"203.0.113.1"})
	if err != nil {
		t.Fatal(err)
	}

	nodes, edges := g.Len()
	if nodes != 1 || edges != 0 {
		t.Fatalf("graph = %d nodes / %d edges, want 1/0", nodes, edges)
	}
	a, _ := g.Node("aaa")
	if a.Status != graph.StatusPartial || a.Moniker != "csa-vn-1" {
		t.Errorf("partial node = %+v", a)
	}
}

func TestCrawlDeadSeedStillYieldsGraph(t *testing.T) {
	g, err := New(newFakeQuerier(), Config{}).Run(context.Background(), []string{"203.0.113.9:26657"})
	if err != nil {
		t.Fatal(err)
	}

	nodes, _ := g.Len()
	if nodes != 1 {
		t.Fatalf("nodes = %d, want 1", nodes)
	}
	rec, ok := g.Node("203.0.113.9:26657")
	if !ok || rec.Status != graph.StatusFailed {
		t.Errorf("dead seed record = %+v", rec)
	}
}

func TestCrawlResumesIntoExistingGraph(t *testing.T) {
	prev := graph.New()
	prev.MergeNode(graph.NodeRecord{
		ID: "ddd", Moniker: "old-on-1", Role: classify.RoleObserver,
		Org: "old", Status: graph.StatusOk,
		ProbedAt: time.Now().Add(-time.Hour),
	})

	q := newFakeQuerier()
	q.add("203.0.113.1:26657", okResult("aaa", "csa-vn-1"))

	g, err := New(q, Config{Resume: prev}).Run(context.Background(), []string{"203.0.113.1"})
	if err != nil {
		t.Fatal(err)
	}

	if g != prev {
		t.Fatal("resume must crawl into the given graph")
	}
	nodes, _ := g.Len()
	if nodes != 2 {
		t.Fatalf("nodes = %d, want 2 (imported + fresh)", nodes)
	}
	if _, ok := g.Node("ddd"); !ok {
		t.Error("imported node lost")
	}
	if _, ok := g.Node("aaa"); !ok {
		t.Error("fresh node missing")
	}
}

func TestCrawlImportedEndpointsNotRequeried(t *testing.T) {
	q := newFakeQuerier()
	q.add("203.0.113.1:26657", okResult("aaa", "csa-vn-1"))

	first, err := New(q, Config{}).Run(context.Background(), []string{"203.0.113.1"})
	if err != nil {
		t.Fatal(err)
	}
	before := first.Nodes()

	second, err := New(q, Config{Resume: first}).Run(context.Background(), []string{"203.0.113.1"})
	if err != nil {
		t.Fatal(err)
	}

	if got := q.callCount("203.0.113.1:26657"); got != 1 {
		t.Errorf("imported endpoint queried %d times total, want 1", got)
	}
	after := second.Nodes()
	if len(after) != len(before) {
		t.Fatalf("nodes = %d, want %d", len(after), len(before))
	}
	for i := range after {
		if after[i] != before[i] {
			t.Errorf("node %s changed by no-op continuation", after[i].ID)
		}
	}
}

func TestCrawlFollowsAdvertisedRPCPort(t *testing.T) {
	q := newFakeQuerier()
	q.add("203.0.113.1:26657", okResult("aaa", "seed-node",
		rpc.PeerInfo{ID: "bbb", Moniker: "alt-port", RemoteIP: "203.0.113.2",
			RPCAddress: "tcp://0.0.0.0:26607"}))
	q.add("203.0.113.2:26607", okResult("bbb", "alt-port"))

	g, err := New(q, Config{}).Run(context.Background(), []string{"203.0.113.1"})
	if err != nil {
		t.Fatal(err)
	}

	if got := q.callCount("203.0.113.2:26607"); got != 1 {
		t.Errorf("advertised port queried %d times, want 1", got)
	}
	b, _ := g.Node("bbb")
	if b.Status != graph.StatusOk {
		t.Errorf("bbb status = %s, want ok", b.Status)
	}
}
