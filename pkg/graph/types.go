// Package graph accumulates classified nodes and peer connections into
// the network graph that external renderers and viewers consume.
//
// The graph is the single merge point for crawl results: records arrive
// in arbitrary order from concurrent queries, and merging is commutative
// and idempotent so that completion order never changes the final node
// and edge set. Nodes are never deleted within a session; a node that
// stops answering stays in the graph with a failed status.
package graph

import (
	"time"

	"github.com/dcltools/netscope/pkg/classify"
)

// Status is the outcome of the most recent query of a node.
type Status string

const (
	// StatusOk means status and peer queries both succeeded.
	StatusOk Status = "ok"
	// StatusPartial means status succeeded but the peer list was
	// unavailable; display data exists, no peers were derived.
	StatusPartial Status = "partial"
	// StatusFailed means the status query failed.
	StatusFailed Status = "failed"
)

// rank orders statuses for tie-breaking merges with equal probe times.
func (s Status) rank() int {
	switch s {
	case StatusOk:
		return 2
	case StatusPartial:
		return 1
	default:
		return 0
	}
}

// NodeRecord is the accumulated state of one discovered node.
//
// ID is the stable identity: the cryptographic node ID from /status
// when the node answered, otherwise the peer-reported node ID, and as a
// last resort the canonical endpoint address. Stable IDs keep re-crawls
// and import merges from duplicating nodes.
type NodeRecord struct {
	ID         string        `json:"id"`
	Moniker    string        `json:"moniker,omitempty"`
	IP         string        `json:"ip,omitempty"`
	RPCAddress string        `json:"rpc_address,omitempty"` // canonical host:port the crawler queried
	Version    string        `json:"version,omitempty"`     // consensus engine version
	AppVersion string        `json:"app_version,omitempty"` // DCL application version
	Height     int64         `json:"height,omitempty"`      // latest block height
	Role       classify.Role `json:"role"`
	Org        string        `json:"org"`
	Status     Status        `json:"status"`
	Peers      int           `json:"peers,omitempty"` // connection count reported by the node
	LastSeen   time.Time     `json:"last_seen,omitzero"`
	ProbedAt   time.Time     `json:"probed_at,omitzero"` // timestamp of the probe producing this record
}

// Connection is an observed peer relationship. Identity is the
// unordered pair (A, B); A and B are stored in sorted order. ReportedBy
// records which side first named the other. It is debugging metadata,
// not part of edge identity, so the value may differ between runs when
// discovery races.
type Connection struct {
	A           string    `json:"source"`
	B           string    `json:"target"`
	ReportedBy  string    `json:"reported_by,omitempty"`
	Seen        int       `json:"seen,omitempty"`
	ConfirmedAt time.Time `json:"confirmed_at,omitzero"`
}

// PairKey returns the canonical unordered-pair identity for two node IDs.
func PairKey(a, b string) (string, string) {
	if b < a {
		a, b = b, a
	}
	return a, b
}
