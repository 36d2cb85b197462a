package rpc

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dcltools/netscope/pkg/cache"
	"github.com/dcltools/netscope/pkg/endpoint"
	"github.com/dcltools/netscope/pkg/errors"
	"github.com/dcltools/netscope/pkg/httputil"
	"github.com/dcltools/netscope/pkg/observability"
)

// DefaultTimeout bounds each of the three RPC calls individually.
const DefaultTimeout = 5 * time.Second

// maxResponseBytes caps a single RPC response body. Peer lists on the
// networks this crawls are small; anything larger is a misbehaving
// upstream.
const maxResponseBytes = 4 << 20

// Client issues the node information queries. It is stateless apart
// from its HTTP transport and response cache, and is safe for
// concurrent use by the crawl workers.
type Client struct {
	http    *http.Client
	cache   cache.Cache
	ttl     time.Duration
	timeout time.Duration
	refresh bool
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithCache enables response caching with the given backend and TTL.
// Cached responses let incremental re-crawls skip endpoints probed
// recently.
func WithCache(b cache.Cache, ttl time.Duration) Option {
	return func(c *Client) { c.cache, c.ttl = b, ttl }
}

// WithRefresh bypasses the cache, always fetching fresh data.
func WithRefresh(refresh bool) Option {
	return func(c *Client) { c.refresh = refresh }
}

// WithHTTPClient replaces the underlying HTTP client (tests).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// NewClient creates an RPC client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		http:    &http.Client{},
		cache:   cache.NewNullCache(),
		timeout: DefaultTimeout,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Query performs the three information queries against ep and folds the
// responses into a single Result per the degradation ladder. It never
// returns an error: failures are captured in the result so that one bad
// node cannot unwind past the scheduler. Query does not mutate any
// crawl state.
func (c *Client) Query(ctx context.Context, ep endpoint.Endpoint) Result {
	res := Result{Endpoint: ep, ProbedAt: time.Now().UTC()}

	var st wireStatus
	if err := c.get(ctx, ep, "/status", &st); err != nil {
		res.Outcome = OutcomeFailed
		res.Err = err
		return res
	}

	res.Node = &NodeInfo{
		ID:          st.NodeInfo.ID,
		Moniker:     st.NodeInfo.Moniker,
		Version:     st.NodeInfo.Version,
		Height:      atoi64(st.SyncInfo.LatestBlockHeight),
		VotingPower: atoi64(st.ValidatorInfo.VotingPower),
		CatchingUp:  st.SyncInfo.CatchingUp,
	}

	// App version is cosmetic; its failure never downgrades the outcome.
	var abci wireABCIInfo
	if err := c.get(ctx, ep, "/abci_info", &abci); err == nil {
		res.Node.AppVersion = abci.Response.Version
	}

	var ni wireNetInfo
	if err := c.get(ctx, ep, "/net_info", &ni); err != nil {
		res.Outcome = OutcomePartial
		res.Err = err
		return res
	}

	res.Outcome = OutcomeOk
	res.Node.NPeers = int(atoi64(ni.NPeers))
	res.Peers = make([]PeerInfo, 0, len(ni.Peers))
	for _, p := range ni.Peers {
		res.Peers = append(res.Peers, PeerInfo{
			ID:         p.NodeInfo.ID,
			Moniker:    p.NodeInfo.Moniker,
			Version:    p.NodeInfo.Version,
			RemoteIP:   p.RemoteIP,
			RPCAddress: p.NodeInfo.Other.RPCAddress,
			IsOutbound: p.IsOutbound,
		})
	}
	return res
}

// get fetches one RPC path, through the cache when enabled, retrying
// transient failures exactly once with no backoff.
func (c *Client) get(ctx context.Context, ep endpoint.Endpoint, path string, v any) error {
	key := ep.Key() + path

	if c.cache != nil && c.ttl > 0 && !c.refresh {
		if data, ok, _ := c.cache.Get(ctx, key); ok {
			return decodeEnvelope(data, v)
		}
	}

	var body []byte
	err := httputil.RetryOnce(ctx, func() error {
		var ferr error
		body, ferr = c.fetch(ctx, ep, path)
		return ferr
	})
	if err != nil {
		return err
	}
	if err := decodeEnvelope(body, v); err != nil {
		return err
	}
	if c.cache != nil && c.ttl > 0 {
		_ = c.cache.Set(ctx, key, body, c.ttl)
	}
	return nil
}

func (c *Client) fetch(ctx context.Context, ep endpoint.Endpoint, path string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	target := ep.QueryURL(path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "build request %s", target)
	}

	host := ep.Key()
	observability.HTTP().OnRequest(ctx, http.MethodGet, host, path)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		observability.HTTP().OnError(ctx, http.MethodGet, host, path, err)
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()
	observability.HTTP().OnResponse(ctx, http.MethodGet, host, path, resp.StatusCode, time.Since(start))

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &httputil.RetryableError{Err: errors.Wrap(errors.ErrCodeTransport, err, "read response")}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyHTTPStatus(ep, resp.StatusCode, body)
	}
	return body, nil
}

// classifyTransportError maps low-level HTTP failures onto the error
// taxonomy. Timeouts and connection errors are transient, so both are
// retryable.
func classifyTransportError(err error) error {
	if isTimeout(err) {
		return &httputil.RetryableError{Err: errors.Wrap(errors.ErrCodeTimeout, err, "query timed out")}
	}
	return &httputil.RetryableError{Err: errors.Wrap(errors.ErrCodeTransport, err, "connection failed")}
}

func isTimeout(err error) bool {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ue *url.Error
	if stderrors.As(err, &ue) {
		return ue.Timeout()
	}
	return false
}

// classifyHTTPStatus maps non-200 responses. A relay surfaces upstream
// network failures as 502 with a JSON error object; that is a relay
// error but still transport-level from the crawl's point of view.
func classifyHTTPStatus(ep endpoint.Endpoint, code int, body []byte) error {
	if ep.Relayed && code == http.StatusBadGateway {
		msg := relayErrorMessage(body)
		return &httputil.RetryableError{Err: errors.New(errors.ErrCodeRelay, "relay: %s", msg)}
	}
	if code >= 500 {
		return &httputil.RetryableError{Err: errors.New(errors.ErrCodeTransport, "status %d", code)}
	}
	return errors.New(errors.ErrCodeTransport, "status %d", code)
}

func relayErrorMessage(body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return "upstream failure"
}

// decodeEnvelope unwraps the JSON-RPC envelope and decodes the result
// into v. Some gateways return the result object bare, without an
// envelope; both forms are accepted.
func decodeEnvelope(body []byte, v any) error {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return errors.Wrap(errors.ErrCodeMalformed, err, "not a JSON response")
	}
	raw := []byte(env.Result)
	if len(raw) == 0 || strings.TrimSpace(string(raw)) == "null" {
		raw = body
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errors.Wrap(errors.ErrCodeMalformed, err, "unexpected response shape")
	}
	return nil
}
