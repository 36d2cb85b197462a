package graph

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dcltools/netscope/pkg/errors"
)

// Document is the JSON shape crossing the export/import boundary.
//
// Nodes and edges are sorted arrays so exports are deterministic and
// diffable. A document produced by Export can be re-imported with
// Import as the starting state of a continuation crawl.
type Document struct {
	SessionID  string       `json:"session_id,omitempty"`
	ExportedAt time.Time    `json:"exported_at"`
	Truncated  bool         `json:"truncated,omitempty"`
	Reason     string       `json:"reason,omitempty"`
	Nodes      []NodeRecord `json:"nodes"`
	Edges      []Connection `json:"edges"`
}

// Export captures the graph as a Document stamped with the session ID
// and the current time.
func (g *Graph) Export(sessionID string) Document {
	truncated, reason := g.Truncated()
	return Document{
		SessionID:  sessionID,
		ExportedAt: time.Now().UTC(),
		Truncated:  truncated,
		Reason:     reason,
		Nodes:      g.Nodes(),
		Edges:      g.Edges(),
	}
}

// WriteJSON encodes the graph as an indented JSON document on w.
func (g *Graph) WriteJSON(w io.Writer, sessionID string) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(g.Export(sessionID)); err != nil {
		return fmt.Errorf("encode graph: %w", err)
	}
	return nil
}

// ExportJSON writes the graph to a JSON file at path.
func (g *Graph) ExportJSON(path, sessionID string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return g.WriteJSON(f, sessionID)
}

// ReadJSON decodes a previously exported document from r into a Graph.
//
// Every edge must reference node IDs present in the document; dangling
// edges make the import invalid, because the graph invariant is that a
// connection's two endpoints always exist as records.
func ReadJSON(r io.Reader) (*Graph, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidImport, err, "decode graph document")
	}
	return FromDocument(doc)
}

// FromDocument builds a Graph from a decoded document.
func FromDocument(doc Document) (*Graph, error) {
	g := New()
	for _, n := range doc.Nodes {
		if n.ID == "" {
			return nil, errors.New(errors.ErrCodeInvalidImport, "node with empty id")
		}
		g.MergeNode(n)
	}
	for _, e := range doc.Edges {
		if _, ok := g.Node(e.A); !ok {
			return nil, errors.New(errors.ErrCodeInvalidImport, "edge references unknown node %q", e.A)
		}
		if _, ok := g.Node(e.B); !ok {
			return nil, errors.New(errors.ErrCodeInvalidImport, "edge references unknown node %q", e.B)
		}
		ka, kb := PairKey(e.A, e.B)
		g.mu.Lock()
		g.edges[[2]string{ka, kb}] = Connection{
			A: ka, B: kb,
			ReportedBy:  e.ReportedBy,
			Seen:        max(e.Seen, 1),
			ConfirmedAt: e.ConfirmedAt,
		}
		g.mu.Unlock()
	}
	if doc.Truncated {
		g.SetTruncated(doc.Reason)
	}
	return g, nil
}

// ImportJSON reads a JSON export from path.
func ImportJSON(path string) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadJSON(f)
}

// PersistentPeers renders up to limit reachable nodes as a CometBFT
// persistent_peers config string ("id@ip:26656,..."). Nodes without a
// known IP or with a failed status are skipped.
func (g *Graph) PersistentPeers(limit int) string {
	out := ""
	count := 0
	for _, n := range g.Nodes() {
		if n.Status == StatusFailed || n.IP == "" {
			continue
		}
		if limit > 0 && count >= limit {
			break
		}
		if count > 0 {
			out += ","
		}
		out += fmt.Sprintf("%s@%s:26656", n.ID, n.IP)
		count++
	}
	return out
}
