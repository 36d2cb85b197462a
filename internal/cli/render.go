package cli

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dcltools/netscope/pkg/errors"
	"github.com/dcltools/netscope/pkg/graph"
	"github.com/dcltools/netscope/pkg/render"
)

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	output   string // output file path
	format   string // "dot", "svg", or "png"
	detailed bool   // include version, height, and org in labels
}

// newRenderCmd creates the render command for drawing a crawled graph.
func newRenderCmd() *cobra.Command {
	opts := renderOpts{format: "svg"}

	cmd := &cobra.Command{
		Use:   "render [file]",
		Short: "Draw a crawled network graph as DOT, SVG, or PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd.Context(), args[0], &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default input name with the format extension)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", opts.format, "output format: svg (default), png, dot")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "include version, height, and organization in labels")

	return cmd
}

func runRender(ctx context.Context, input string, opts *renderOpts) error {
	logger := loggerFromContext(ctx)

	g, err := graph.ImportJSON(input)
	if err != nil {
		return err
	}
	nodes, edges := g.Len()
	logger.Debugf("loaded %s: %d nodes, %d edges", input, nodes, edges)

	dot := render.ToDOT(g, render.Options{Detailed: opts.detailed})

	var data []byte
	switch strings.ToLower(opts.format) {
	case "dot":
		data = []byte(dot)
	case "svg":
		data, err = render.RenderSVG(dot)
	case "png":
		data, err = render.RenderPNG(dot)
	default:
		return errors.New(errors.ErrCodeInvalidConfig, "unknown format %q (want dot, svg, or png)", opts.format)
	}
	if err != nil {
		return err
	}

	output := opts.output
	if output == "" {
		output = strings.TrimSuffix(input, filepath.Ext(input)) + "." + strings.ToLower(opts.format)
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return err
	}

	printSuccess("Rendered %d nodes, %d edges", nodes, edges)
	printFile(output)
	return nil
}
