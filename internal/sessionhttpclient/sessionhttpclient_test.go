package sessionhttpclient

import (
	"context"
	"errors"
	"net"
	"net/url"
	"testing"

	"github.com/irl/ooni-probe/internal/model"
)

func TestNewWithoutProxy(t *testing.T) {
	client := New(&Config{Logger: model.DiscardLogger})
	if client == nil {
		t.Fatal("expected non-nil client")
	}
	client.CloseIdleConnections()
}

func TestMaybeWrapWithProxyDialer(t *testing.T) {
	dialer := &net.Dialer{}
	if out := maybeWrapWithProxyDialer(dialer, nil); out != dialer {
		t.Fatal("expected the original dialer")
	}
	proxyURL := &url.URL{Scheme: "socks5", Host: "127.0.0.1:9050"}
	wrapped, ok := maybeWrapWithProxyDialer(dialer, proxyURL).(*proxyDialer)
	if !ok {
		t.Fatal("expected a proxy dialer")
	}
	if wrapped.ProxyURL != proxyURL {
		t.Fatal("proxy URL not propagated")
	}
}

func TestProxyDialerUnsupportedScheme(t *testing.T) {
	dialer := &proxyDialer{
		Dialer:   &net.Dialer{},
		ProxyURL: &url.URL{Scheme: "antani", Host: "127.0.0.1:9050"},
	}
	conn, err := dialer.DialContext(context.Background(), "tcp", "example.com:80")
	if !errors.Is(err, ErrProxyUnsupportedScheme) {
		t.Fatal("not the error we expected", err)
	}
	if conn != nil {
		t.Fatal("expected nil conn here")
	}
}
