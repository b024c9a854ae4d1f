package backendclient

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/armon/go-socks5"
	"github.com/irl/ooni-probe/internal/model"
)

// loopbackResolver maps every name, onion names included, to the
// loopback address so that the socks server accepts the request.
type loopbackResolver struct{}

func (loopbackResolver) Resolve(ctx context.Context, name string) (context.Context, net.IP, error) {
	return ctx, net.ParseIP("127.0.0.1"), nil
}

func TestQueryOverOnionUsesTheSocksProxy(t *testing.T) {
	if testing.Short() {
		t.Skip("skip test in short mode")
	}
	var gotHost string
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			gotHost = r.Host
			w.Write([]byte(`{"version": "2.0.0"}`))
		}))
	defer server.Close()
	// a socks server standing in for tor: it sends every connection
	// to the test server no matter the requested address
	proxy, err := socks5.New(&socks5.Config{
		Resolver: loopbackResolver{},
		Dial: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return net.Dial("tcp", server.Listener.Addr().String())
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer listener.Close()
	go proxy.Serve(listener)
	conn, err := NewConn(&Config{
		Address:      "httpo://thirteenchars123.onion",
		TorSocksPort: listener.Addr().(*net.TCPAddr).Port,
		Logger:       model.DiscardLogger,
	})
	if err != nil {
		t.Fatal(err)
	}
	if conn.Type != TypeOnion {
		t.Fatal("unexpected endpoint type", conn.Type)
	}
	if !conn.IsSupported() {
		t.Fatal("expected supported")
	}
	var output struct {
		Version string `json:"version"`
	}
	if err := conn.Query(context.Background(), "GET", "/api", nil, &output); err != nil {
		t.Fatal(err)
	}
	if output.Version != "2.0.0" {
		t.Fatal("unexpected version", output.Version)
	}
	if gotHost != "thirteenchars123.onion" {
		t.Fatal("unexpected host", gotHost)
	}
}
