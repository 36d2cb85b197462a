// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard
// dependencies on specific observability backends. Consumers register
// hooks at startup to receive events about crawl progress and RPC calls.
//
// The package uses a simple hooks pattern: hook interfaces per event
// category, no-op default implementations, and atomic registration.
// Hooks are registered by main, never by libraries, which keeps the
// core crawl packages free of observability framework imports.
//
// # Usage
//
//	func main() {
//	    observability.SetCrawlHooks(&myCrawlHooks{})
//	    observability.SetHTTPHooks(&myHTTPHooks{})
//	    // ... run application
//	}
package observability

import (
	"context"
	"sync"
	"time"
)

// CrawlHooks receives events from the crawl scheduler.
type CrawlHooks interface {
	// OnQueryStart records the dispatch of an endpoint query.
	OnQueryStart(ctx context.Context, endpoint string, depth int)

	// OnQueryComplete records a finished endpoint query.
	OnQueryComplete(ctx context.Context, endpoint string, status string, peers int, duration time.Duration, err error)

	// OnNodeDiscovered records a newly seen node.
	OnNodeDiscovered(ctx context.Context, id, moniker, role string)

	// OnCrawlComplete records the end of a crawl session.
	OnCrawlComplete(ctx context.Context, nodes, edges int, truncated bool, duration time.Duration)
}

// HTTPHooks receives events from HTTP client operations.
type HTTPHooks interface {
	// OnRequest records an outgoing HTTP request.
	OnRequest(ctx context.Context, method, host, path string)

	// OnResponse records an HTTP response.
	OnResponse(ctx context.Context, method, host, path string, statusCode int, duration time.Duration)

	// OnError records an HTTP error (network failure, timeout).
	OnError(ctx context.Context, method, host, path string, err error)
}

// NoopCrawlHooks is a no-op implementation of CrawlHooks.
type NoopCrawlHooks struct{}

func (NoopCrawlHooks) OnQueryStart(context.Context, string, int) {}
func (NoopCrawlHooks) OnQueryComplete(context.Context, string, string, int, time.Duration, error) {
}
func (NoopCrawlHooks) OnNodeDiscovered(context.Context, string, string, string)       {}
func (NoopCrawlHooks) OnCrawlComplete(context.Context, int, int, bool, time.Duration) {}

// NoopHTTPHooks is a no-op implementation of HTTPHooks.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string, string)                      {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, string, int, time.Duration) {}
func (NoopHTTPHooks) OnError(context.Context, string, string, string, error)                 {}

var (
	mu         sync.RWMutex
	crawlHooks CrawlHooks = NoopCrawlHooks{}
	httpHooks  HTTPHooks  = NoopHTTPHooks{}
)

// SetCrawlHooks registers the crawl hook implementation.
// Pass nil to restore the no-op default.
func SetCrawlHooks(h CrawlHooks) {
	mu.Lock()
	defer mu.Unlock()
	if h == nil {
		crawlHooks = NoopCrawlHooks{}
		return
	}
	crawlHooks = h
}

// SetHTTPHooks registers the HTTP hook implementation.
// Pass nil to restore the no-op default.
func SetHTTPHooks(h HTTPHooks) {
	mu.Lock()
	defer mu.Unlock()
	if h == nil {
		httpHooks = NoopHTTPHooks{}
		return
	}
	httpHooks = h
}

// Crawl returns the registered crawl hooks.
func Crawl() CrawlHooks {
	mu.RLock()
	defer mu.RUnlock()
	return crawlHooks
}

// HTTP returns the registered HTTP hooks.
func HTTP() HTTPHooks {
	mu.RLock()
	defer mu.RUnlock()
	return httpHooks
}
