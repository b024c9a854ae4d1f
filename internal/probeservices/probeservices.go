// Package probeservices contains clients for the backend services
// used by the probe.
//
// This package implements three roles over a shared backend
// connection:
//
// 1. the bouncer, the directory service mapping the net tests we
// need to run onto a collector and test helper addresses;
//
// 2. the collector, which accepts measurement reports and serves
// the cached test inputs and test decks;
//
// 3. the web connectivity control, answering control requests for
// the web connectivity test.
//
// Rather than subclassing a common client, each role is a distinct
// type composing the same backendclient.Conn.
package probeservices

import (
	"context"

	"github.com/irl/ooni-probe/internal/backendclient"
)

// Client is the part common to every role client.
type Client struct {
	// Conn is the underlying backend connection.
	Conn *backendclient.Conn
}

// Bouncer is a client for the bouncer service.
type Bouncer struct {
	Client
}

// NewBouncer creates a new bouncer client using the given connection.
func NewBouncer(conn *backendclient.Conn) *Bouncer {
	return &Bouncer{Client{Conn: conn}}
}

// IsReachable implements reachability for the bouncer. There is no
// dedicated endpoint for this, so the bouncer is trivially reachable.
func (c *Bouncer) IsReachable(ctx context.Context) bool {
	return true
}

// Collector is a client for the collector service.
type Collector struct {
	Client

	// InputsDir is the cache directory for input files.
	InputsDir string

	// DecksDir is the cache directory for decks.
	DecksDir string
}

// NewCollector creates a new collector client using the given
// connection and cache directories.
func NewCollector(conn *backendclient.Conn, inputsDir, decksDir string) *Collector {
	return &Collector{
		Client:    Client{Conn: conn},
		InputsDir: inputsDir,
		DecksDir:  decksDir,
	}
}

// WebConnectivity is a client for the web connectivity control.
type WebConnectivity struct {
	Client
}

// NewWebConnectivity creates a new web connectivity control client
// using the given connection.
func NewWebConnectivity(conn *backendclient.Conn) *WebConnectivity {
	return &WebConnectivity{Client{Conn: conn}}
}
