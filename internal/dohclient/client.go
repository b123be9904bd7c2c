// Package dohclient performs the single pinned HTTPS GET the resolver
// engine needs per upstream call: connect to a fixed IP while presenting
// the URL's own host for SNI, certificate verification, and the Host
// header, so the daemon never recurses into the system resolver it is
// itself standing in for.
package dohclient

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/glaciaos/frost-doh/internal/dohcommon"
)

const (
	requestTimeout = 3 * time.Second
	tcpKeepAlive   = 30 * time.Second
	http2IdleTO    = 30 * time.Second
	userAgent      = "frost-doh/1.0"
)

// Client issues pinned HTTPS GETs. It holds no per-call state; the pinned
// IP is supplied on every call since it varies by adapter.
type Client struct {
	transport *http.Transport
}

// New builds a Client with the connect/keep-alive/HTTP2 policy spec'd for
// this daemon. A single Client is safe to share across goroutines and
// across adapters; the dialer override is parameterized per call via the
// request context, not baked into the transport.
func New() *Client {
	transport := &http.Transport{
		DialContext:           dialPinned,
		ForceAttemptHTTP2:     true,
		IdleConnTimeout:       http2IdleTO,
		TLSHandshakeTimeout:   requestTimeout,
		ExpectContinueTimeout: 1 * time.Second,
	}
	// ReadIdleTimeout lives on http2.Transport in the general case; here
	// the standard library negotiates HTTP/2 over transport.ForceAttemptHTTP2
	// and inherits IdleConnTimeout for connection reuse.
	return &Client{transport: transport}
}

type pinnedIPKey struct{}

// withPinnedIP attaches the destination IP a dial on this context must
// connect to, regardless of what host the dialed address names.
func withPinnedIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, pinnedIPKey{}, ip)
}

// dialPinned is the transport's DialContext: it ignores the dialed host
// entirely and connects to the IP stashed on the context, preserving the
// original port. This is what keeps net/http from ever resolving the
// upstream's hostname through the system resolver.
func dialPinned(ctx context.Context, network, addr string) (net.Conn, error) {
	ip, _ := ctx.Value(pinnedIPKey{}).(string)
	if ip == "" {
		return nil, fmt.Errorf("dohclient: no pinned IP on context for %s", addr)
	}
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("dohclient: splitting host/port of %s: %w", addr, err)
	}
	d := &net.Dialer{Timeout: requestTimeout, KeepAlive: tcpKeepAlive}
	return d.DialContext(ctx, network, net.JoinHostPort(ip, port))
}

// Param is an ordered (key, value) query parameter.
type Param struct{ Key, Value string }

// Get performs one HTTPS GET to rawURL, connecting to pinnedIP instead of
// resolving the URL's host, with the given headers and query parameters,
// decoding a 2xx JSON body into out. Any non-2xx status, transport, TLS,
// parse, or timeout failure is reported as an upstream-error.
func (c *Client) Get(ctx context.Context, rawURL, pinnedIP string, headers []Param, query []Param, out any) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	u, err := url.Parse(rawURL)
	if err != nil {
		return dohcommon.New(dohcommon.KindUpstreamError, fmt.Errorf("parsing upstream URL: %w", err))
	}
	q := u.Query()
	for _, p := range query {
		q.Set(p.Key, p.Value)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(withPinnedIP(ctx, pinnedIP), http.MethodGet, u.String(), nil)
	if err != nil {
		return dohcommon.New(dohcommon.KindUpstreamError, fmt.Errorf("building request: %w", err))
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Encoding", "gzip, br")
	for _, h := range headers {
		req.Header.Set(h.Key, h.Value)
	}

	resp, err := (&http.Client{Transport: c.transport}).Do(req)
	if err != nil {
		return dohcommon.New(dohcommon.KindUpstreamError, fmt.Errorf("performing request: %w", err))
	}
	defer resp.Body.Close()

	body, err := decodeBody(resp)
	if err != nil {
		return dohcommon.New(dohcommon.KindUpstreamError, fmt.Errorf("reading response body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return dohcommon.Wrapf(dohcommon.KindUpstreamError, "upstream returned %s: %s", resp.Status, truncate(body, 256))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return dohcommon.New(dohcommon.KindUpstreamError, fmt.Errorf("decoding JSON body: %w", err))
	}
	return nil
}

// decodeBody transparently unwraps gzip (net/http already does this when
// Transport.DisableCompression is false and the server set
// Content-Encoding: gzip, but we set Accept-Encoding manually above to
// also advertise brotli, which disables net/http's own gzip handling) and
// brotli bodies.
func decodeBody(resp *http.Response) ([]byte, error) {
	var r io.Reader = resp.Body
	switch resp.Header.Get("Content-Encoding") {
	case "br":
		r = brotli.NewReader(resp.Body)
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		r = gz
	}
	return io.ReadAll(r)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
