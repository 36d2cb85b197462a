// Package endpoint resolves raw node addresses into canonical, queryable
// endpoints.
//
// Resolution is a pure string transformation: no network I/O happens
// here. The same raw address always resolves to the same Endpoint, and
// the canonical key is what the crawl scheduler dedups on.
//
// DCL nodes expose their RPC on plain HTTP (port 26657), which browsers
// cannot query cross-origin. Those addresses are routed through a CORS
// relay by rewriting the target into the relay's apiurl query parameter.
// HTTPS addresses are queried directly.
package endpoint

import (
	"net"
	"net/netip"
	"net/url"
	"strings"

	"github.com/dcltools/netscope/pkg/errors"
)

// DefaultRPCPort is the conventional CometBFT RPC port.
const DefaultRPCPort = "26657"

// DefaultP2PPort is the conventional CometBFT peer-to-peer port.
const DefaultP2PPort = "26656"

// Endpoint is a resolved, queryable network address for a node.
// Immutable once resolved; the zero value is not a valid endpoint.
type Endpoint struct {
	Scheme  string // "http" or "https"
	Host    string // hostname or IP, lowercased
	Port    string // numeric port, never empty
	Relayed bool   // true when queries go through the CORS relay

	relayBase string // relay endpoint, set when Relayed
}

// Key returns the canonical identity of the endpoint: "host:port".
// Two raw addresses that resolve to the same key are the same endpoint
// regardless of scheme or relay routing.
func (e Endpoint) Key() string {
	return net.JoinHostPort(e.Host, e.Port)
}

// BaseURL returns the direct URL of the node's RPC root, without any
// relay rewriting.
func (e Endpoint) BaseURL() string {
	return e.Scheme + "://" + e.Key()
}

// QueryURL returns the URL to fetch the given RPC path ("/status",
// "/net_info", "/abci_info") from this endpoint, routing through the
// relay when required.
func (e Endpoint) QueryURL(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	target := e.BaseURL() + path
	if !e.Relayed {
		return target
	}
	return e.relayBase + "?apiurl=" + url.QueryEscape(target)
}

// Resolver turns raw addresses into Endpoints.
//
// RelayURL is the base URL of the CORS relay; when empty, every address
// is queried directly. The zero Resolver is usable and relays nothing.
type Resolver struct {
	RelayURL string
}

// Resolve normalizes a raw node address into an Endpoint.
//
// Accepted forms: "host", "host:port", "scheme://host[:port]", with an
// optional node-ID prefix ("id@host:port") as found in persistent_peers
// strings. Missing scheme defaults to http, missing port to the RPC
// port. Returns an INVALID_ADDRESS error when the input is not a
// parseable host[:port].
func (r Resolver) Resolve(raw string) (Endpoint, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Endpoint{}, errors.New(errors.ErrCodeInvalidAddress, "empty address")
	}

	// Strip the node-ID prefix used in persistent_peers entries.
	if at := strings.LastIndexByte(s, '@'); at >= 0 {
		s = s[at+1:]
	}

	scheme := "http"
	if i := strings.Index(s, "://"); i >= 0 {
		scheme = strings.ToLower(s[:i])
		s = s[i+3:]
		if scheme != "http" && scheme != "https" {
			return Endpoint{}, errors.New(errors.ErrCodeInvalidAddress, "unsupported scheme %q in %q", scheme, raw)
		}
	}

	// Drop any path or query remnants.
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}

	host, port, err := splitHostPort(s)
	if err != nil {
		return Endpoint{}, errors.Wrap(errors.ErrCodeInvalidAddress, err, "not a host[:port]: %q", raw)
	}
	if port == "" {
		port = DefaultRPCPort
	}

	ep := Endpoint{
		Scheme: scheme,
		Host:   strings.ToLower(host),
		Port:   port,
	}

	// HTTPS endpoints answer cross-origin requests themselves; plain
	// HTTP goes through the relay when one is configured.
	if scheme == "http" && r.RelayURL != "" {
		ep.Relayed = true
		ep.relayBase = strings.TrimRight(r.RelayURL, "/")
	}
	return ep, nil
}

// splitHostPort splits "host[:port]" and validates both parts.
// Unlike net.SplitHostPort it tolerates a missing port.
func splitHostPort(s string) (host, port string, err error) {
	if s == "" {
		return "", "", errors.New(errors.ErrCodeInvalidAddress, "empty host")
	}

	// Bracketed IPv6 literal, with or without port.
	if strings.HasPrefix(s, "[") {
		host, port, err = net.SplitHostPort(s)
		if err != nil {
			host = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
			port = ""
		}
		if _, perr := netip.ParseAddr(host); perr != nil {
			return "", "", errors.New(errors.ErrCodeInvalidAddress, "invalid IPv6 literal %q", s)
		}
		return host, port, validatePort(port)
	}

	switch strings.Count(s, ":") {
	case 0:
		host = s
	case 1:
		i := strings.IndexByte(s, ':')
		host, port = s[:i], s[i+1:]
		if host == "" || port == "" {
			return "", "", errors.New(errors.ErrCodeInvalidAddress, "malformed host:port %q", s)
		}
	default:
		// Unbracketed IPv6 literal without port.
		if _, perr := netip.ParseAddr(s); perr != nil {
			return "", "", errors.New(errors.ErrCodeInvalidAddress, "malformed address %q", s)
		}
		host = s
	}

	if !validHost(host) {
		return "", "", errors.New(errors.ErrCodeInvalidAddress, "invalid host %q", host)
	}
	return host, port, validatePort(port)
}

func validatePort(port string) error {
	if port == "" {
		return nil
	}
	for _, c := range port {
		if c < '0' || c > '9' {
			return errors.New(errors.ErrCodeInvalidAddress, "invalid port %q", port)
		}
	}
	return nil
}

func validHost(host string) bool {
	if host == "" || len(host) > 253 {
		return false
	}
	for _, c := range host {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-' || c == '.' || c == ':':
		default:
			return false
		}
	}
	return true
}

// IsPrivateIP reports whether ip is a private, loopback, or link-local
// address. The crawler skips peers reporting such addresses: they are a
// node's internal interface and unreachable from outside its network.
// Hostnames (non-IP strings) are considered public.
func IsPrivateIP(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	return addr.IsPrivate() || addr.IsLoopback() || addr.IsLinkLocalUnicast() || addr.IsUnspecified()
}
