package crawl

import (
	"time"

	"github.com/dcltools/netscope/pkg/classify"
	"github.com/dcltools/netscope/pkg/endpoint"
	"github.com/dcltools/netscope/pkg/graph"
)

// Default limits. DCL networks are small (tens of nodes), so the
// defaults leave generous headroom while still bounding a crawl that
// wanders into garbage peer data.
const (
	DefaultConcurrency = 8
	DefaultMaxDepth    = 20
	DefaultMaxNodes    = 1000
	DefaultTimeout     = 5 * time.Minute
)

// Config controls a crawl session.
type Config struct {
	// Concurrency is the number of worker goroutines querying endpoints.
	Concurrency int

	// MaxDepth bounds how many hops from the seeds the crawl follows.
	// Seeds are depth 0.
	MaxDepth int

	// MaxNodes bounds the total number of endpoints queried. When the
	// limit is hit the graph is marked truncated.
	MaxNodes int

	// Timeout bounds the whole crawl. Zero means DefaultTimeout.
	Timeout time.Duration

	// SkipPrivate drops peers that report private, loopback, or
	// link-local addresses. Useful when crawling a public network from
	// outside, where such addresses are another node's internal
	// interface and unreachable from here.
	SkipPrivate bool

	// Resolver turns raw and peer-derived addresses into endpoints.
	// Configure its RelayURL to route plain-HTTP queries through a
	// CORS relay.
	Resolver endpoint.Resolver

	// Classifier assigns roles and organizations. Zero value means the
	// default rule set.
	Classifier classify.Classifier

	// Resume is an existing graph to crawl into, typically loaded from
	// a previous export. Imported nodes count as visited, so the crawl
	// only queries endpoints the import does not cover.
	Resume *graph.Graph

	// Logger receives crawl progress messages. Nil means silent.
	Logger func(format string, args ...any)
}

// WithDefaults returns a copy with zero values replaced by defaults.
func (c Config) WithDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.MaxDepth <= 0 {
		c.MaxDepth = DefaultMaxDepth
	}
	if c.MaxNodes <= 0 {
		c.MaxNodes = DefaultMaxNodes
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if len(c.Classifier.Rules) == 0 {
		c.Classifier = classify.Default()
	}
	if c.Logger == nil {
		c.Logger = func(string, ...any) {}
	}
	return c
}
