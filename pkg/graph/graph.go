package graph

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dcltools/netscope/pkg/classify"
)

// Graph is the assembled network topology for one crawl session.
//
// All mutating and reading methods are safe for concurrent use: the
// crawl scheduler merges results while the HTTP API reads snapshots.
// The zero value is not usable; construct with New.
type Graph struct {
	mu    sync.RWMutex
	nodes map[string]NodeRecord
	edges map[[2]string]Connection

	truncated bool
	reason    string
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]NodeRecord),
		edges: make(map[[2]string]Connection),
	}
}

// MergeNode folds a node record into the graph.
//
// Records are matched by ID. The record from the strictly later probe
// wins for mutable fields; with equal probe times the more successful
// status wins, so racing same-instant results merge deterministically.
// A losing record still fills fields the winner did not report
// (a failed probe never erases the metadata a peer reported earlier).
// Merging the same record twice is a no-op.
func (g *Graph) MergeNode(n NodeRecord) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mergeNodeLocked(n)
}

func (g *Graph) mergeNodeLocked(n NodeRecord) {
	old, ok := g.nodes[n.ID]
	if !ok {
		g.nodes[n.ID] = n
		return
	}

	winner, loser := n, old
	if !newerLocked(n, old) {
		winner, loser = old, n
	}
	g.nodes[n.ID] = fillGaps(winner, loser)
}

// newerLocked reports whether a should win a merge against b.
func newerLocked(a, b NodeRecord) bool {
	if !a.ProbedAt.Equal(b.ProbedAt) {
		return a.ProbedAt.After(b.ProbedAt)
	}
	return a.Status.rank() > b.Status.rank()
}

// fillGaps returns the winning record with unreported fields carried
// over from the losing one.
func fillGaps(w, l NodeRecord) NodeRecord {
	if w.Moniker == "" {
		w.Moniker = l.Moniker
	}
	if w.IP == "" {
		w.IP = l.IP
	}
	if w.RPCAddress == "" {
		w.RPCAddress = l.RPCAddress
	}
	if w.Version == "" {
		w.Version = l.Version
	}
	if w.AppVersion == "" {
		w.AppVersion = l.AppVersion
	}
	if w.Height == 0 {
		w.Height = l.Height
	}
	w.Role = pick(w.Role, l.Role, classify.RoleUnknown)
	w.Org = pick(w.Org, l.Org, classify.OrgUnknown)
	if w.Peers == 0 {
		w.Peers = l.Peers
	}
	if w.LastSeen.Before(l.LastSeen) {
		w.LastSeen = l.LastSeen
	}
	return w
}

// pick keeps the winner's value unless it carries no information
// (empty or the unknown sentinel) and the loser's does.
func pick[T ~string](winner, loser, unknown T) T {
	if winner != "" && winner != unknown {
		return winner
	}
	if loser != "" && loser != unknown {
		return loser
	}
	if winner != "" {
		return winner
	}
	return loser
}

// MergeEdge records an observed peer relationship between two node IDs.
//
// Edge identity is the unordered pair, so duplicate and reverse reports
// collapse into one connection with an incremented seen count and an
// advanced confirmation timestamp. Self-references are dropped: a node
// listing itself is not a topology edge. Who reported the edge first is
// kept for debugging only.
func (g *Graph) MergeEdge(a, b, reportedBy string, at time.Time) {
	if a == "" || b == "" || a == b {
		return
	}
	ka, kb := PairKey(a, b)
	key := [2]string{ka, kb}

	g.mu.Lock()
	defer g.mu.Unlock()

	e, ok := g.edges[key]
	if !ok {
		g.edges[key] = Connection{A: ka, B: kb, ReportedBy: reportedBy, Seen: 1, ConfirmedAt: at}
		return
	}
	e.Seen++
	if at.After(e.ConfirmedAt) {
		e.ConfirmedAt = at
	}
	g.edges[key] = e
}

// Merge folds another graph into this one, node by node and edge by
// edge, using the same rules as MergeNode and MergeEdge. Used when
// continuing from an imported export.
func (g *Graph) Merge(other *Graph) {
	other.mu.RLock()
	nodes := make([]NodeRecord, 0, len(other.nodes))
	for _, n := range other.nodes {
		nodes = append(nodes, n)
	}
	edges := make([]Connection, 0, len(other.edges))
	for _, e := range other.edges {
		edges = append(edges, e)
	}
	truncated, reason := other.truncated, other.reason
	other.mu.RUnlock()

	g.mu.Lock()
	for _, n := range nodes {
		g.mergeNodeLocked(n)
	}
	for _, e := range edges {
		key := [2]string{e.A, e.B}
		if have, ok := g.edges[key]; ok {
			have.Seen += e.Seen
			if e.ConfirmedAt.After(have.ConfirmedAt) {
				have.ConfirmedAt = e.ConfirmedAt
			}
			g.edges[key] = have
		} else {
			g.edges[key] = e
		}
	}
	if truncated {
		g.truncated = true
		g.reason = reason
	}
	g.mu.Unlock()
}

// Node returns the record for id, if present.
func (g *Graph) Node(id string) (NodeRecord, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns all records sorted by ID.
func (g *Graph) Nodes() []NodeRecord {
	g.mu.RLock()
	out := make([]NodeRecord, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	g.mu.RUnlock()

	slices.SortFunc(out, func(a, b NodeRecord) int {
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// Edges returns all connections sorted by pair.
func (g *Graph) Edges() []Connection {
	g.mu.RLock()
	out := make([]Connection, 0, len(g.edges))
	for _, e := range g.edges {
		out = append(out, e)
	}
	g.mu.RUnlock()

	slices.SortFunc(out, func(a, b Connection) int {
		if c := strings.Compare(a.A, b.A); c != 0 {
			return c
		}
		return strings.Compare(a.B, b.B)
	})
	return out
}

// Len returns the node and edge counts.
func (g *Graph) Len() (nodes, edges int) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes), len(g.edges)
}

// SetTruncated marks the graph as an incomplete crawl result.
// A graph truncated by a node or depth cap is still a valid result;
// the flag tells consumers that unexplored endpoints remain.
func (g *Graph) SetTruncated(reason string) {
	g.mu.Lock()
	g.truncated = true
	g.reason = reason
	g.mu.Unlock()
}

// Truncated reports whether the crawl stopped before exhausting the
// frontier, and why.
func (g *Graph) Truncated() (bool, string) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.truncated, g.reason
}

// Organizations returns the node count per organization.
func (g *Graph) Organizations() map[string]int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make(map[string]int)
	for _, n := range g.nodes {
		org := n.Org
		if org == "" {
			org = "Unknown"
		}
		out[org]++
	}
	return out
}
