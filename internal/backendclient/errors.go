package backendclient

//
// Typed errors surfaced by backend connections
//

import "errors"

var (
	// ErrInvalidAddress indicates that the backend address is not
	// something we can work with.
	ErrInvalidAddress = errors.New("backendclient: invalid backend address")

	// ErrUnsupportedEndpoint indicates that we don't support this
	// endpoint type.
	ErrUnsupportedEndpoint = errors.New("backendclient: unsupported endpoint type")

	// ErrMalformedResponse indicates that the backend sent a body
	// that we could not parse as JSON.
	ErrMalformedResponse = errors.New("backendclient: malformed backend response")
)

// BackendError is an application level error that the backend
// reported inside a well formed JSON response. Any JSON object
// containing an `error` key is such a failure, regardless of
// the HTTP status code.
type BackendError struct {
	// Code is the error string reported by the backend,
	// e.g. "invalid-request".
	Code string
}

var _ error = &BackendError{}

// Error implements error.Error.
func (err *BackendError) Error() string {
	return "backendclient: backend error: " + err.Code
}
