// Package crawl walks a network breadth-first from a set of seed
// addresses, querying each discovered endpoint once and folding the
// results into a graph.
//
// The scheduler maintains a frontier of unqueried endpoints and a
// visited set keyed by canonical endpoint address; an endpoint is
// scheduled at most once per session regardless of how many peers
// report it. Worker goroutines drain the frontier concurrently and a
// single collector goroutine owns all graph mutations, so completion
// order never changes the result.
package crawl

import (
	"context"
	"fmt"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dcltools/netscope/pkg/classify"
	"github.com/dcltools/netscope/pkg/endpoint"
	"github.com/dcltools/netscope/pkg/errors"
	"github.com/dcltools/netscope/pkg/graph"
	"github.com/dcltools/netscope/pkg/observability"
	"github.com/dcltools/netscope/pkg/rpc"
)

// Querier performs the per-endpoint information queries.
// Implementations must be safe for concurrent use; [rpc.Client] is the
// standard one.
type Querier interface {
	Query(ctx context.Context, ep endpoint.Endpoint) rpc.Result
}

// Crawler discovers network topology starting from seed addresses.
type Crawler struct {
	q   Querier
	cfg Config
}

// New creates a Crawler. The Querier must be safe for concurrent use.
func New(q Querier, cfg Config) *Crawler {
	return &Crawler{q: q, cfg: cfg.WithDefaults()}
}

// Run crawls the network reachable from seeds and returns the resulting
// graph.
//
// Individual endpoint failures never abort the crawl; a network where
// no seed answers still yields a graph of failed nodes. Run returns an
// error only for unusable input: no seeds, or no seed that parses as an
// address. When the crawl is cut short by the node limit, depth limit,
// or timeout, the graph is marked truncated with the reason.
func (c *Crawler) Run(ctx context.Context, seeds []string) (*graph.Graph, error) {
	if len(seeds) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "no seed addresses")
	}

	eps := make([]endpoint.Endpoint, 0, len(seeds))
	for _, raw := range seeds {
		ep, err := c.cfg.Resolver.Resolve(raw)
		if err != nil {
			c.cfg.Logger("skipping seed %q: %v", raw, err)
			continue
		}
		eps = append(eps, ep)
	}
	if len(eps) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "no usable seed addresses in %d given", len(seeds))
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	g := c.cfg.Resume
	if g == nil {
		g = graph.New()
	}

	s := &session{
		ctx:     ctx,
		cfg:     c.cfg,
		query:   c.q.Query,
		g:       g,
		visited: make(map[string]bool),
		jobs:    make(chan job, c.cfg.Concurrency*2),
		results: make(chan result, c.cfg.Concurrency*2),
	}

	// Imported nodes count as visited: a continuation crawl only
	// queries endpoints the import does not already cover.
	if c.cfg.Resume != nil {
		for _, n := range g.Nodes() {
			if n.RPCAddress != "" {
				s.visited[n.RPCAddress] = true
			}
		}
	}

	s.run(eps)
	return g, nil
}

// job is one endpoint awaiting a query, with its hop distance from the
// seeds. id is the node identity claimed by whichever peer reported the
// endpoint; it keys the failure record when the query gets nothing
// back, so a dead peer does not fork into a second node.
type job struct {
	ep    endpoint.Endpoint
	depth int
	id    string
}

// result pairs a finished query with its job.
type result struct {
	job
	res rpc.Result
}

// session holds the state of one crawl. The visited map is the dedup
// point: an endpoint key enters it exactly when the endpoint is
// scheduled, so frontier, in-flight, and done endpoints are disjoint.
type session struct {
	ctx   context.Context
	cfg   Config
	query func(context.Context, endpoint.Endpoint) rpc.Result

	g *graph.Graph

	jobs    chan job
	results chan result
	wg      sync.WaitGroup

	mu      sync.Mutex
	visited map[string]bool
	pending int64 // in-flight jobs, atomic
	queried int32 // endpoints queried so far, atomic
	closing int32 // set when the session shuts down, atomic
}

func (s *session) run(seeds []endpoint.Endpoint) {
	start := time.Now()

	for range s.cfg.Concurrency {
		s.wg.Add(1)
		go s.worker()
	}

	scheduled := false
	for _, ep := range seeds {
		scheduled = s.schedule(job{ep: ep}) || scheduled
	}
	if scheduled {
		s.collect()
	}

	atomic.StoreInt32(&s.closing, 1)
	close(s.jobs)
	s.wg.Wait()

	switch s.ctx.Err() {
	case context.DeadlineExceeded:
		s.g.SetTruncated("crawl timed out")
	case context.Canceled:
		s.g.SetTruncated("crawl stopped")
	}
	nodes, edges := s.g.Len()
	truncated, _ := s.g.Truncated()
	observability.Crawl().OnCrawlComplete(s.ctx, nodes, edges, truncated, time.Since(start))
}

// worker drains the frontier until it closes, sending every outcome to
// the collector.
func (s *session) worker() {
	defer s.wg.Done()
	for j := range s.jobs {
		if s.ctx.Err() != nil {
			atomic.AddInt64(&s.pending, -1)
			continue
		}
		observability.Crawl().OnQueryStart(s.ctx, j.ep.Key(), j.depth)
		began := time.Now()
		res := s.query(s.ctx, j.ep)
		observability.Crawl().OnQueryComplete(s.ctx, j.ep.Key(), string(res.Outcome), len(res.Peers), time.Since(began), res.Err)
		select {
		case s.results <- result{job: j, res: res}:
		case <-s.ctx.Done():
			atomic.AddInt64(&s.pending, -1)
		}
	}
}

// schedule moves an endpoint into the frontier unless it was already
// scheduled this session. Reports whether a job was enqueued.
func (s *session) schedule(j job) bool {
	if atomic.LoadInt32(&s.closing) == 1 {
		return false
	}

	key := j.ep.Key()
	s.mu.Lock()
	if s.visited[key] {
		s.mu.Unlock()
		return false
	}
	s.visited[key] = true
	s.mu.Unlock()

	atomic.AddInt64(&s.pending, 1)

	// The collector also schedules, so a blocking send here could
	// deadlock against a full jobs channel. Hand off asynchronously.
	go func() {
		defer func() {
			if recover() != nil {
				atomic.AddInt64(&s.pending, -1)
			}
		}()
		if atomic.LoadInt32(&s.closing) == 1 {
			atomic.AddInt64(&s.pending, -1)
			return
		}
		select {
		case s.jobs <- j:
		case <-s.ctx.Done():
			atomic.AddInt64(&s.pending, -1)
		}
	}()
	return true
}

// collect is the single consumer of results and the only goroutine
// mutating the graph while workers run.
func (s *session) collect() {
	for {
		select {
		case r := <-s.results:
			s.handle(r)
			if atomic.AddInt64(&s.pending, -1) == 0 {
				return
			}
		case <-s.ctx.Done():
			return
		}
	}
}

// handle merges one query result: the node record, an edge per reported
// peer, and follow-up jobs for peers not yet scheduled.
func (s *session) handle(r result) {
	atomic.AddInt32(&s.queried, 1)

	rec := s.record(r.res, r.id)
	if _, known := s.g.Node(rec.ID); !known {
		observability.Crawl().OnNodeDiscovered(s.ctx, rec.ID, rec.Moniker, string(rec.Role))
	}
	s.g.MergeNode(rec)

	if r.res.Outcome != rpc.OutcomeOk {
		if r.res.Err != nil {
			s.cfg.Logger("query %s: %s: %v", r.ep.Key(), r.res.Outcome, r.res.Err)
		}
		return
	}

	for _, peer := range r.res.Peers {
		if peer.ID == "" {
			continue
		}
		if s.cfg.SkipPrivate && endpoint.IsPrivateIP(peer.RemoteIP) {
			continue
		}

		// A stub keeps the edge from dangling until the peer itself is
		// queried; any real probe result supersedes it.
		role, org := s.cfg.Classifier.Classify(classify.Hints{Moniker: peer.Moniker})
		if _, known := s.g.Node(peer.ID); !known {
			observability.Crawl().OnNodeDiscovered(s.ctx, peer.ID, peer.Moniker, string(role))
		}
		s.g.MergeNode(graph.NodeRecord{
			ID:      peer.ID,
			Moniker: peer.Moniker,
			IP:      peer.RemoteIP,
			Version: peer.Version,
			Role:    role,
			Org:     org,
			Status:  graph.StatusFailed,
		})
		s.g.MergeEdge(rec.ID, peer.ID, rec.ID, r.res.ProbedAt)

		s.followUp(r.job, peer)
	}
}

// followUp schedules a peer's RPC endpoint, honoring the depth and
// node limits. A cap marks the graph truncated only when it suppresses
// an endpoint that has not been scheduled yet; re-reports of visited
// endpoints cut nothing off.
func (s *session) followUp(from job, peer rpc.PeerInfo) {
	addr := joinHostPort(peer.RemoteIP, peer.RPCPort())
	ep, err := s.cfg.Resolver.Resolve(addr)
	if err != nil {
		s.cfg.Logger("skipping peer %s: %v", addr, err)
		return
	}

	s.mu.Lock()
	seen := s.visited[ep.Key()]
	s.mu.Unlock()
	if seen {
		return
	}

	if from.depth >= s.cfg.MaxDepth {
		s.g.SetTruncated(fmt.Sprintf("depth limit %d reached", s.cfg.MaxDepth))
		return
	}
	if int(atomic.LoadInt32(&s.queried)) >= s.cfg.MaxNodes {
		s.g.SetTruncated(fmt.Sprintf("node limit %d reached", s.cfg.MaxNodes))
		return
	}
	s.schedule(job{ep: ep, depth: from.depth + 1, id: peer.ID})
}

// record converts a query result into a graph node record. claimedID
// identifies the node when the query itself returned no identity.
func (s *session) record(res rpc.Result, claimedID string) graph.NodeRecord {
	ep := res.Endpoint
	if claimedID == "" {
		claimedID = ep.Key()
	}
	rec := graph.NodeRecord{
		ID:         claimedID,
		IP:         ep.Host,
		RPCAddress: ep.Key(),
		Role:       classify.RoleUnknown,
		Org:        classify.OrgUnknown,
		Status:     graph.StatusFailed,
		ProbedAt:   res.ProbedAt,
	}
	if res.Node == nil {
		return rec
	}

	if res.Node.ID != "" {
		rec.ID = res.Node.ID
	}
	rec.Moniker = res.Node.Moniker
	rec.Version = res.Node.Version
	rec.AppVersion = res.Node.AppVersion
	rec.Height = res.Node.Height
	rec.Peers = res.Node.NPeers
	rec.LastSeen = res.ProbedAt
	rec.Role, rec.Org = s.cfg.Classifier.Classify(classify.Hints{
		Moniker:     res.Node.Moniker,
		VotingPower: res.Node.VotingPower,
	})

	switch res.Outcome {
	case rpc.OutcomeOk:
		rec.Status = graph.StatusOk
	case rpc.OutcomePartial:
		rec.Status = graph.StatusPartial
	}
	return rec
}

func joinHostPort(host, port string) string {
	if addr, err := netip.ParseAddr(host); err == nil && addr.Is6() {
		return "[" + host + "]:" + port
	}
	return host + ":" + port
}
