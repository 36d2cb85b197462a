// Package rpc queries the three well-known CometBFT RPC endpoints a DCL
// node exposes (/status, /net_info, and /abci_info) and normalizes the
// heterogeneous responses into a typed result.
//
// Node software in the wild varies in version and configuration, so any
// subset of the three endpoints can be missing or broken. The result is
// a tagged variant (Ok, Partial, Failed) rather than a bag of optional
// fields, which forces callers to handle every degradation explicitly:
//
//   - status failed: the node is Failed, no peers are derived from it
//   - status ok, net_info failed: Partial, display data only, zero peers
//   - abci_info failed: the app version is absent, status is unaffected
package rpc

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/dcltools/netscope/pkg/endpoint"
)

// Outcome tags a query result.
type Outcome string

const (
	// OutcomeOk means status and net_info both answered.
	OutcomeOk Outcome = "ok"
	// OutcomePartial means status answered but net_info did not.
	OutcomePartial Outcome = "partial"
	// OutcomeFailed means the status query failed.
	OutcomeFailed Outcome = "failed"
)

// NodeInfo is the normalized identity and state of a queried node.
type NodeInfo struct {
	ID          string // cryptographic node identifier
	Moniker     string
	Version     string // consensus engine version
	AppVersion  string // DCL application version, empty when abci_info failed
	Height      int64  // latest block height
	VotingPower int64  // non-zero means validator-set membership
	CatchingUp  bool
	NPeers      int // connection count the node reports
}

// PeerInfo is one entry of a node's reported peer list.
type PeerInfo struct {
	ID         string
	Moniker    string
	Version    string
	RemoteIP   string
	RPCAddress string // listen address the peer advertises, e.g. "tcp://0.0.0.0:26657"
	IsOutbound bool
}

// RPCPort extracts the port from the advertised RPC listen address,
// falling back to the conventional port when it cannot be parsed.
func (p PeerInfo) RPCPort() string {
	addr := strings.TrimPrefix(p.RPCAddress, "tcp://")
	addr = strings.TrimPrefix(addr, "unix://")
	if i := strings.LastIndexByte(addr, ':'); i >= 0 {
		if port := addr[i+1:]; port != "" {
			if _, err := strconv.Atoi(port); err == nil {
				return port
			}
		}
	}
	return endpoint.DefaultRPCPort
}

// Result is the outcome of querying one endpoint.
//
// Node is non-nil exactly when Outcome is Ok or Partial. Peers is
// non-nil only when Outcome is Ok (and may still be empty). Err holds
// the failure that caused a Failed or Partial outcome.
type Result struct {
	Endpoint endpoint.Endpoint
	Outcome  Outcome
	Node     *NodeInfo
	Peers    []PeerInfo
	Err      error
	ProbedAt time.Time
}

// Wire shapes. CometBFT responses arrive in a JSON-RPC envelope and
// encode 64-bit integers as strings.

type envelope struct {
	Result json.RawMessage `json:"result"`
}

type wireNodeInfo struct {
	ID      string `json:"id"`
	Moniker string `json:"moniker"`
	Version string `json:"version"`
	Other   struct {
		TxIndex    string `json:"tx_index"`
		RPCAddress string `json:"rpc_address"`
	} `json:"other"`
}

type wireStatus struct {
	NodeInfo wireNodeInfo `json:"node_info"`
	SyncInfo struct {
		LatestBlockHeight string `json:"latest_block_height"`
		CatchingUp        bool   `json:"catching_up"`
	} `json:"sync_info"`
	ValidatorInfo struct {
		VotingPower string `json:"voting_power"`
	} `json:"validator_info"`
}

type wireNetInfo struct {
	NPeers string `json:"n_peers"`
	Peers  []struct {
		NodeInfo   wireNodeInfo `json:"node_info"`
		IsOutbound bool         `json:"is_outbound"`
		RemoteIP   string       `json:"remote_ip"`
	} `json:"peers"`
}

type wireABCIInfo struct {
	Response struct {
		Version string `json:"version"`
	} `json:"response"`
}

// atoi64 parses CometBFT's string-encoded integers, tolerating absent
// or malformed values as zero.
func atoi64(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
