// Package render draws the network graph as Graphviz DOT and raster
// formats for reports and the web viewer.
package render

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/dcltools/netscope/pkg/classify"
	"github.com/dcltools/netscope/pkg/graph"
)

// Options configures diagram rendering.
type Options struct {
	// Detailed includes version, height, and organization in node
	// labels. When false, only the moniker (or node ID) is shown.
	Detailed bool
}

// roleColors maps node roles to fill colors. Unlisted roles render
// grey.
var roleColors = map[classify.Role]string{
	classify.RoleValidator: "#e07a5f",
	classify.RoleSentry:    "#81b29a",
	classify.RoleObserver:  "#f2cc8f",
	classify.RoleSeed:      "#9d8fc2",
}

// ToDOT converts a network graph to Graphviz DOT. Peer links carry no
// direction, so the output is an undirected graph. Failed nodes render
// with dashed outlines.
func ToDOT(g *graph.Graph, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("graph network {\n")
	buf.WriteString("  layout=neato;\n")
	buf.WriteString("  overlap=false;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=ellipse, style=filled, fontsize=12];\n")
	buf.WriteString("\n")

	for _, n := range g.Nodes() {
		fmt.Fprintf(&buf, "  %q [%s];\n", n.ID, strings.Join(nodeAttrs(n, opts), ", "))
	}

	buf.WriteString("\n")
	for _, e := range g.Edges() {
		fmt.Fprintf(&buf, "  %q -- %q;\n", e.A, e.B)
	}

	buf.WriteString("}\n")
	return buf.String()
}

func nodeAttrs(n graph.NodeRecord, opts Options) []string {
	attrs := []string{
		fmt.Sprintf("label=%q", nodeLabel(n, opts.Detailed)),
		fmt.Sprintf("fillcolor=%q", fillColor(n.Role)),
	}
	if n.Status == graph.StatusFailed {
		attrs = append(attrs, "style=\"filled,dashed\"", "fillcolor=lightgrey")
	}
	return attrs
}

func fillColor(role classify.Role) string {
	if c, ok := roleColors[role]; ok {
		return c
	}
	return "#d3d3d3"
}

func nodeLabel(n graph.NodeRecord, detailed bool) string {
	name := n.Moniker
	if name == "" {
		name = n.ID
	}
	if !detailed {
		return name
	}

	parts := []string{name}
	if n.Org != "" && n.Org != classify.OrgUnknown {
		parts = append(parts, "org: "+n.Org)
	}
	if n.Version != "" {
		parts = append(parts, "v"+n.Version)
	}
	if n.Height > 0 {
		parts = append(parts, fmt.Sprintf("height: %d", n.Height))
	}
	return strings.Join(parts, "\n")
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(dot string) ([]byte, error) {
	return renderFormat(dot, graphviz.SVG)
}

// RenderPNG renders a DOT graph to PNG using Graphviz.
func RenderPNG(dot string) ([]byte, error) {
	return renderFormat(dot, graphviz.PNG)
}

func renderFormat(dot string, format graphviz.Format) ([]byte, error) {
	ctx := context.Background()
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, format, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}
