// Package server exposes crawl sessions over a small JSON HTTP API,
// plus the CORS relay that lets browser clients query plain-HTTP node
// RPC endpoints.
//
// One crawl session runs at a time. Starting a session while another
// runs is rejected; the last finished session's graph stays available
// until the next one completes.
package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/dcltools/netscope/pkg/crawl"
	"github.com/dcltools/netscope/pkg/endpoint"
	"github.com/dcltools/netscope/pkg/graph"
	"github.com/dcltools/netscope/pkg/httputil"
)

// relayTimeout bounds one relayed upstream request.
const relayTimeout = 10 * time.Second

// maxRelayBytes caps a relayed response body.
const maxRelayBytes = 4 << 20

// SessionState describes the lifecycle of a crawl session.
type SessionState string

const (
	StateIdle    SessionState = "idle"
	StateRunning SessionState = "running"
	StateDone    SessionState = "done"
	StateFailed  SessionState = "failed"
)

// Config configures the API server.
type Config struct {
	// Seeds are the default seed addresses for sessions started without
	// their own.
	Seeds []string

	// Crawl is the base crawl configuration for every session.
	Crawl crawl.Config

	// Querier performs endpoint queries. Required.
	Querier crawl.Querier
}

// Server handles the crawl API. Create with New, mount via Routes.
type Server struct {
	cfg Config

	mu         sync.Mutex
	state      SessionState
	sessionID  string
	startedAt  time.Time
	finishedAt time.Time
	cancel     context.CancelFunc
	g          *graph.Graph
	log        *logRing

	relay *http.Client
}

// New creates a Server.
func New(cfg Config) *Server {
	return &Server{
		cfg:   cfg,
		state: StateIdle,
		log:   newLogRing(),
		relay: &http.Client{Timeout: relayTimeout},
	}
}

// Routes returns the HTTP handler for the crawl API.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	r.Get("/api/network", s.handleNetwork)
	r.Get("/api/status", s.handleStatus)
	r.Post("/api/start", s.handleStart)
	r.Post("/api/stop", s.handleStop)
	r.Get("/api/relay", s.handleRelay)
	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.SetCORS(w.Header())
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleNetwork serves the most recent session's graph export.
func (s *Server) handleNetwork(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	g, id := s.g, s.sessionID
	s.mu.Unlock()

	if g == nil {
		writeError(w, http.StatusNotFound, "no crawl data yet")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = g.WriteJSON(w, id)
}

// statusResponse is the /api/status payload.
type statusResponse struct {
	SessionID  string       `json:"session_id,omitempty"`
	State      SessionState `json:"state"`
	Nodes      int          `json:"nodes"`
	Edges      int          `json:"edges"`
	Truncated  bool         `json:"truncated,omitempty"`
	StartedAt  time.Time    `json:"started_at,omitzero"`
	FinishedAt time.Time    `json:"finished_at,omitzero"`
	Log        []LogEntry   `json:"log,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	resp := statusResponse{
		SessionID:  s.sessionID,
		State:      s.state,
		StartedAt:  s.startedAt,
		FinishedAt: s.finishedAt,
	}
	if s.g != nil {
		resp.Nodes, resp.Edges = s.g.Len()
		resp.Truncated, _ = s.g.Truncated()
	}
	ring := s.log
	s.mu.Unlock()
	resp.Log = ring.Snapshot()

	writeJSON(w, http.StatusOK, resp)
}

// startRequest is the optional /api/start body. Absent fields fall
// back to the server defaults.
type startRequest struct {
	Seeds    []string `json:"seeds,omitempty"`
	MaxDepth int      `json:"max_depth,omitempty"`
	MaxNodes int      `json:"max_nodes,omitempty"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
			writeError(w, http.StatusBadRequest, "malformed request body")
			return
		}
	}

	seeds := req.Seeds
	if len(seeds) == 0 {
		seeds = s.cfg.Seeds
	}
	if len(seeds) == 0 {
		writeError(w, http.StatusBadRequest, "no seed addresses configured")
		return
	}

	cfg := s.cfg.Crawl
	if req.MaxDepth > 0 {
		cfg.MaxDepth = req.MaxDepth
	}
	if req.MaxNodes > 0 {
		cfg.MaxNodes = req.MaxNodes
	}

	s.mu.Lock()
	if s.state == StateRunning {
		id := s.sessionID
		s.mu.Unlock()
		writeError(w, http.StatusConflict, "session "+id+" already running")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()
	s.state = StateRunning
	s.sessionID = id
	s.startedAt = time.Now().UTC()
	s.finishedAt = time.Time{}
	s.cancel = cancel
	s.log = newLogRing()
	ring := s.log
	s.mu.Unlock()

	cfg.Logger = ring.Addf
	ring.Addf("session %s: crawling from %d seed(s)", id, len(seeds))

	go s.runSession(ctx, id, seeds, cfg)

	writeJSON(w, http.StatusAccepted, map[string]string{"session_id": id})
}

func (s *Server) runSession(ctx context.Context, id string, seeds []string, cfg crawl.Config) {
	g, err := crawl.New(s.cfg.Querier, cfg).Run(ctx, seeds)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessionID != id {
		return
	}
	s.finishedAt = time.Now().UTC()
	s.cancel = nil
	if err != nil {
		s.state = StateFailed
		s.log.Addf("session %s failed: %v", id, err)
		return
	}
	s.state = StateDone
	s.g = g
	nodes, edges := g.Len()
	s.log.Addf("session %s done: %d nodes, %d edges", id, nodes, edges)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	cancel, id := s.cancel, s.sessionID
	running := s.state == StateRunning
	s.mu.Unlock()

	if !running || cancel == nil {
		writeError(w, http.StatusNotFound, "no session running")
		return
	}
	cancel()
	writeJSON(w, http.StatusOK, map[string]string{"session_id": id, "state": "stopping"})
}

// handleRelay forwards one request to a node RPC endpoint and passes
// the response through verbatim. Browsers cannot query plain-HTTP node
// endpoints cross-origin; this endpoint exists so they do not have to.
func (s *Server) handleRelay(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("apiurl")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "missing apiurl parameter")
		return
	}
	target, err := url.Parse(raw)
	if err != nil || (target.Scheme != "http" && target.Scheme != "https") || target.Host == "" {
		writeError(w, http.StatusBadRequest, "apiurl is not an absolute http(s) URL")
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target.String(), nil)
	if err != nil {
		writeError(w, http.StatusBadRequest, "apiurl is not requestable")
		return
	}

	resp, err := s.relay.Do(req)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, io.LimitReader(resp.Body, maxRelayBytes))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// Resolver returns an endpoint resolver whose relay URL points at this
// server's relay, for crawls whose results a browser will re-query.
func Resolver(baseURL string) endpoint.Resolver {
	return endpoint.Resolver{RelayURL: baseURL + "/api/relay"}
}
