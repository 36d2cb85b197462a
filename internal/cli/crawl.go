package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dcltools/netscope/pkg/cache"
	"github.com/dcltools/netscope/pkg/crawl"
	"github.com/dcltools/netscope/pkg/endpoint"
	"github.com/dcltools/netscope/pkg/graph"
	"github.com/dcltools/netscope/pkg/rpc"
)

const defaultOutput = "network.json"

// crawlOpts holds the command-line flags for the crawl command.
type crawlOpts struct {
	output      string // output file path
	resume      string // graph file to crawl into
	relay       string // CORS relay base URL
	maxDepth    int    // hop limit from the seeds
	maxNodes    int    // total endpoint query limit
	timeout     time.Duration
	refresh     bool // bypass the response cache
	noCache     bool // disable the response cache entirely
	skipPrivate bool // drop peers on private addresses
	watch       bool // live crawl monitor
}

// newCrawlCmd creates the crawl command.
func newCrawlCmd(configPath *string) *cobra.Command {
	var opts crawlOpts

	cmd := &cobra.Command{
		Use:   "crawl [seed...]",
		Short: "Crawl the network from seed addresses and export the graph",
		Long: `Crawl walks the network breadth-first from the given seed addresses
(or the seeds configured in the config file), queries every discovered
node, and writes the resulting graph as JSON.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCrawl(cmd.Context(), args, *configPath, &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", defaultOutput, "output file")
	cmd.Flags().StringVar(&opts.resume, "resume", "", "existing graph file to crawl into")
	cmd.Flags().StringVar(&opts.relay, "relay", "", "CORS relay base URL for plain-HTTP endpoints")
	cmd.Flags().IntVar(&opts.maxDepth, "depth", 0, "hop limit from the seeds")
	cmd.Flags().IntVar(&opts.maxNodes, "max-nodes", 0, "stop after this many endpoints")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "overall crawl timeout")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "bypass cached RPC responses")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the RPC response cache")
	cmd.Flags().BoolVar(&opts.skipPrivate, "skip-private", false, "drop peers on private addresses")
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "show a live crawl monitor")

	return cmd
}

func runCrawl(ctx context.Context, seeds []string, configPath string, opts *crawlOpts) error {
	logger := loggerFromContext(ctx)

	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}
	if len(seeds) == 0 {
		seeds = cfg.Seeds
	}

	crawlCfg := cfg.CrawlConfig()
	crawlCfg.Logger = logger.Debugf
	if opts.maxDepth > 0 {
		crawlCfg.MaxDepth = opts.maxDepth
	}
	if opts.maxNodes > 0 {
		crawlCfg.MaxNodes = opts.maxNodes
	}
	if opts.timeout > 0 {
		crawlCfg.Timeout = opts.timeout
	}
	if opts.skipPrivate {
		crawlCfg.SkipPrivate = true
	}
	if opts.relay != "" {
		crawlCfg.Resolver = endpoint.Resolver{RelayURL: opts.relay}
	}

	if opts.resume != "" {
		g, err := graph.ImportJSON(opts.resume)
		if err != nil {
			return err
		}
		crawlCfg.Resume = g
		nodes, edges := g.Len()
		logger.Debugf("resuming into %s: %d nodes, %d edges", opts.resume, nodes, edges)
	}

	client := rpc.NewClient(
		rpc.WithCache(openCache(cfg, opts, logger.Warnf), time.Duration(cfg.Cache.TTL)),
		rpc.WithRefresh(opts.refresh),
	)
	crawler := crawl.New(client, crawlCfg)

	prog := newProgress(logger)

	var g *graph.Graph
	if opts.watch {
		g, err = runCrawlMonitor(ctx, crawler, seeds)
	} else {
		sp := newSpinner(ctx, fmt.Sprintf("Crawling from %d seed(s)...", len(seeds)))
		sp.Start()
		g, err = crawler.Run(ctx, seeds)
		sp.Stop()
	}
	if err != nil {
		return err
	}

	nodes, edges := g.Len()
	prog.done(fmt.Sprintf("Crawled %d nodes, %d edges", nodes, edges))

	sessionID := uuid.NewString()
	if err := g.ExportJSON(opts.output, sessionID); err != nil {
		return err
	}

	truncated, reason := g.Truncated()
	printSuccess("Crawl complete")
	printStats(nodes, edges, truncated)
	if truncated {
		printWarning("graph truncated: %s", reason)
	}
	if orgs := g.Organizations(); len(orgs) > 0 {
		printDetail("organizations:")
		printOrgs(orgs)
	}
	printFile(opts.output)
	printNextStep("Render it", "netscope render "+opts.output)
	return nil
}

// openCache opens the RPC response cache. Cache failures degrade to an
// in-memory cache rather than failing the crawl.
func openCache(cfg *Config, opts *crawlOpts, warnf func(string, ...any)) cache.Cache {
	if opts.noCache || cfg.Cache.Disabled {
		return cache.NewNullCache()
	}

	dir := cfg.Cache.Dir
	if dir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			warnf("no user cache dir, caching in memory: %v", err)
			return cache.NewMemoryCache()
		}
		dir = filepath.Join(base, "netscope")
	}

	fc, err := cache.NewFileCache(dir)
	if err != nil {
		warnf("cannot open cache at %s, caching in memory: %v", dir, err)
		return cache.NewMemoryCache()
	}
	return fc
}
