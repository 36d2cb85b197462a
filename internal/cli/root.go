package cli

import (
	"context"
	"os"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/dcltools/netscope/pkg/buildinfo"
)

// Execute runs the netscope CLI and returns an error if any command
// fails.
//
// The root command wires the --verbose and --config flags, attaches a
// logger to the command context, and registers the crawl, serve,
// render, and peers subcommands.
func Execute(ctx context.Context) error {
	var (
		verbose    bool
		configPath string
	)

	root := &cobra.Command{
		Use:          "netscope",
		Short:        "netscope maps permissioned ledger network topology",
		Long:         `netscope crawls a permissioned ledger network from seed node addresses, classifies each discovered node, and produces a connection graph for analysis and visualization.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := charmlog.InfoLevel
			if verbose {
				level = charmlog.DebugLevel
			}
			cmd.SetContext(withLogger(cmd.Context(), newLogger(os.Stderr, level)))
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default "+DefaultConfigFile+" if present)")

	root.AddCommand(newCrawlCmd(&configPath))
	root.AddCommand(newServeCmd(&configPath))
	root.AddCommand(newRenderCmd())
	root.AddCommand(newPeersCmd())

	return root.ExecuteContext(ctx)
}
