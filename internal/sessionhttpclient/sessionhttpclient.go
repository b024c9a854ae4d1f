// Package sessionhttpclient creates an HTTP client for
// talking to the backend services. The client optionally
// routes every connection through a local SOCKS5 proxy,
// which is how we reach onion backends through tor.
package sessionhttpclient

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/irl/ooni-probe/internal/model"
	"golang.org/x/net/proxy"
)

// dialTimeout bounds each connect attempt. The retry machinery in
// httpx has no delay between attempts, so this is the only timeout
// protecting us from a hung connect.
const dialTimeout = 30 * time.Second

// Config contains config for creating a new session HTTP client.
type Config struct {
	// Logger is the MANDATORY logger to use.
	Logger model.Logger

	// ProxyURL is the OPTIONAL socks5 proxy URL that the client
	// returned by New should be using.
	ProxyURL *url.URL
}

// New creates a new HTTPClient to be used to communicate with
// the backend services.
func New(config *Config) model.HTTPClient {
	dialer := &net.Dialer{Timeout: dialTimeout}
	txp := &http.Transport{
		DialContext:       maybeWrapWithProxyDialer(dialer, config.ProxyURL).DialContext,
		ForceAttemptHTTP2: false,
	}
	return &http.Client{Transport: txp}
}

// contextDialer is the subset of net.Dialer used by this package.
type contextDialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// maybeWrapWithProxyDialer returns the original dialer if the proxyURL
// is nil and otherwise returns a wrapped dialer that implements proxying.
func maybeWrapWithProxyDialer(dialer *net.Dialer, proxyURL *url.URL) contextDialer {
	if proxyURL == nil {
		return dialer
	}
	return &proxyDialer{
		Dialer:   dialer,
		ProxyURL: proxyURL,
	}
}

// proxyDialer is a dialer using a proxy.
type proxyDialer struct {
	Dialer   *net.Dialer
	ProxyURL *url.URL
}

// ErrProxyUnsupportedScheme indicates we don't support the proxy scheme.
var ErrProxyUnsupportedScheme = errors.New("proxy: unsupported scheme")

// DialContext implements contextDialer.DialContext.
func (d *proxyDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if d.ProxyURL.Scheme != "socks5" {
		return nil, ErrProxyUnsupportedScheme
	}
	// the code at proxy/socks5.go never fails; see https://git.io/JfJ4g
	child, _ := proxy.SOCKS5(network, d.ProxyURL.Host, nil, d.Dialer)
	// the SOCKS5 dialer always implements proxy.ContextDialer
	cd := child.(proxy.ContextDialer)
	return cd.DialContext(ctx, network, address)
}
