// Package backendclient implements the connection with a backend
// service. A connection knows the endpoint type (plain http, https,
// domain fronted https, or onion through the local tor socks proxy),
// enforces the related support policy, and speaks the JSON-over-HTTP
// protocol shared by the bouncer, the collector, and the test
// helpers: JSON bodies both ways, with any JSON object containing an
// `error` key being a protocol level failure.
package backendclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/irl/ooni-probe/internal/httpx"
	"github.com/irl/ooni-probe/internal/model"
	"github.com/irl/ooni-probe/internal/sessionhttpclient"
)

// tlsSupported returns whether the platform TLS stack is recent
// enough for talking to https and fronted backends. The Go stdlib
// always qualifies; tests override this to exercise the policy gate.
var tlsSupported = func() bool { return true }

// Config contains configuration for creating a new Conn.
type Config struct {
	// Address is the MANDATORY backend address.
	Address string

	// Type OPTIONALLY forces the endpoint type. When empty we guess
	// the type from the address shape.
	Type string

	// Front is the fronting hostname to put inside the Host
	// header. MANDATORY iff Type is cloudfront.
	Front string

	// ExtraHeaders contains OPTIONAL headers to add to every request.
	ExtraHeaders http.Header

	// HTTPClient OPTIONALLY overrides the transport. Mainly
	// useful for testing.
	HTTPClient model.HTTPClient

	// InsecureBackend OPTIONALLY allows plaintext http backends.
	InsecureBackend bool

	// Logger is the MANDATORY logger to use.
	Logger model.Logger

	// MaxAttempts OPTIONALLY overrides the per request retry ceiling.
	MaxAttempts int

	// TorSocksPort is the port of the local tor socks proxy. Required
	// for onion endpoints to be supported.
	TorSocksPort int

	// UserAgent is the OPTIONAL user agent to use.
	UserAgent string
}

// Conn is a connection with a backend service.
//
// Use NewConn to construct: the zero value is invalid.
type Conn struct {
	// Type is the classified endpoint type.
	Type string

	api             *httpx.APIClient
	insecureBackend bool
	logger          model.Logger
	torSocksPort    int
}

// NewConn classifies the configured address, normalizes it to scheme
// and host only, and creates a connection using the right transport
// for the endpoint type.
func NewConn(config *Config) (*Conn, error) {
	endpointType, err := Classify(config.Address, config.Type)
	if err != nil {
		return nil, err
	}
	baseURL, err := NormalizeBaseURL(config.Address, endpointType)
	if err != nil {
		return nil, err
	}
	host := ""
	if endpointType == TypeCloudfront {
		if config.Front == "" {
			return nil, fmt.Errorf("%w: cloudfront endpoint without a front", ErrInvalidAddress)
		}
		host = config.Front
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		var proxyURL *url.URL
		if endpointType == TypeOnion {
			proxyURL = &url.URL{
				Scheme: "socks5",
				Host:   fmt.Sprintf("127.0.0.1:%d", config.TorSocksPort),
			}
		}
		httpClient = sessionhttpclient.New(&sessionhttpclient.Config{
			Logger:   config.Logger,
			ProxyURL: proxyURL,
		})
	}
	return &Conn{
		Type: endpointType,
		api: &httpx.APIClient{
			BaseURL:      baseURL,
			ExtraHeaders: config.ExtraHeaders,
			Host:         host,
			HTTPClient:   httpClient,
			Logger:       config.Logger,
			MaxAttempts:  config.MaxAttempts,
			UserAgent:    config.UserAgent,
		},
		insecureBackend: config.InsecureBackend,
		logger:          config.Logger,
		torSocksPort:    config.TorSocksPort,
	}, nil
}

// BaseURL returns the normalized base URL of the connection.
func (c *Conn) BaseURL() string {
	return c.api.BaseURL
}

// Logger returns the logger used by this connection.
func (c *Conn) Logger() model.Logger {
	return c.logger
}

// IsSupported tells you whether local policy allows using this
// connection. This is a configuration gate, not a network check.
func (c *Conn) IsSupported() bool {
	switch c.Type {
	case TypeHTTPS, TypeCloudfront:
		if !tlsSupported() {
			c.logger.Warn("backendclient: TLS stack too old for https backends")
			return false
		}
	case TypeHTTP:
		if !c.insecureBackend {
			c.logger.Warn("backendclient: plaintext backends are not supported; to " +
				"enable at your own risk set advanced->insecure_backend to true")
			return false
		}
	case TypeOnion:
		if c.torSocksPort <= 0 {
			c.logger.Warn("backendclient: onion backend but no tor socks port configured")
			return false
		}
	}
	return true
}

// Query sends a request with an optional JSON body and decodes the
// JSON response into output. Pass a nil input for a request without a
// body and a nil output when you don't care about the response value.
// An empty response body means no value and leaves output untouched.
// A response object carrying an `error` key becomes a *BackendError
// and a body that does not parse becomes ErrMalformedResponse.
func (c *Conn) Query(ctx context.Context, method, resourcePath string,
	input, output interface{}) error {
	var body []byte
	if input != nil {
		data, err := json.Marshal(input)
		if err != nil {
			return err
		}
		c.logger.Debugf("backendclient: request body: %d bytes", len(data))
		body = data
	}
	raw, err := c.api.DoBody(ctx, method, resourcePath, body)
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		return nil
	}
	if err := checkForBackendError(raw); err != nil {
		return err
	}
	if output == nil {
		return nil
	}
	if err := json.Unmarshal(raw, output); err != nil {
		return fmt.Errorf("%w: %s", ErrMalformedResponse, err.Error())
	}
	return nil
}

// checkForBackendError implements the protocol convention where any
// JSON object containing an `error` key is a failure no matter the
// HTTP status code.
func checkForBackendError(raw []byte) error {
	if !json.Valid(raw) {
		return ErrMalformedResponse
	}
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	if len(trimmed) == 0 || trimmed[0] != '{' {
		// arrays and other JSON values cannot carry the error key
		return nil
	}
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("%w: %s", ErrMalformedResponse, err.Error())
	}
	rawCode, found := envelope["error"]
	if !found {
		return nil
	}
	// the key being present is what signals failure, whatever the
	// value: an empty or non-string error code is still an error
	var code string
	if err := json.Unmarshal(rawCode, &code); err != nil {
		code = string(rawCode)
	}
	return &BackendError{Code: code}
}

// Download streams the body of resourcePath into the file at
// destPath, writing atomically with respect to concurrent readers.
func (c *Conn) Download(ctx context.Context, resourcePath, destPath string) error {
	return c.api.DownloadToFile(ctx, resourcePath, destPath)
}
