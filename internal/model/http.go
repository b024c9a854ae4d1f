package model

//
// HTTP client abstraction
//

import "net/http"

// HTTPClient is an HTTP client. The stdlib's *http.Client
// implements this interface.
type HTTPClient interface {
	// Do behaves like http.Client.Do.
	Do(req *http.Request) (*http.Response, error)

	// CloseIdleConnections closes idle connections.
	CloseIdleConnections()
}
