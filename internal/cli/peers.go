package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dcltools/netscope/pkg/graph"
)

// newPeersCmd creates the peers command, which turns a crawled graph
// into a persistent_peers string for node configuration.
func newPeersCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "peers [file]",
		Short: "Print a persistent_peers string from a crawled graph",
		Long: `Peers derives a persistent_peers configuration value from a crawl:
every responsive node with a known address, as "id@ip:port" entries
joined with commas, ready to paste into a node's config.toml.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := graph.ImportJSON(args[0])
			if err != nil {
				return err
			}
			peers := g.PersistentPeers(limit)
			if peers == "" {
				printWarning("no responsive nodes with known addresses in %s", args[0])
				return nil
			}
			fmt.Println(peers)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum entries (0 = all)")
	return cmd
}
