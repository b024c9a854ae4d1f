// Package httpx contains http extensions.
//
// This package implements the request machinery shared by all the
// backend clients: building requests relative to a base URL, retrying
// transport failures a bounded number of times, and handing the
// response to a caller supplied receiver so that bodies can either be
// decoded in memory or streamed to disk.
package httpx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/irl/ooni-probe/internal/iox"
	"github.com/irl/ooni-probe/internal/model"
)

// DefaultMaxBodySize is the default value for the maximum
// body size you can fetch using an APIClient.
const DefaultMaxBodySize = 1 << 22

// DefaultMaxAttempts is the number of attempts we perform for a
// request when APIClient.MaxAttempts is zero or negative.
const DefaultMaxAttempts = 3

// APIClient is an extended HTTP client. To construct this APIClient, make
// sure you initialize all fields marked as MANDATORY.
type APIClient struct {
	// BaseURL is the MANDATORY base URL of the API. Only its scheme
	// and host are meaningful; the path comes from each request.
	BaseURL string

	// ExtraHeaders contains OPTIONAL headers added to every request.
	ExtraHeaders http.Header

	// Host allows to OPTIONALLY set a specific host header. This is useful
	// to implement, e.g., cloudfronting.
	Host string

	// HTTPClient is the MANDATORY underlying http client to use.
	HTTPClient model.HTTPClient

	// Logger is the MANDATORY logger to use.
	Logger model.Logger

	// MaxAttempts OPTIONALLY limits how many times we try each request
	// before giving up. Attempts are strictly sequential and there is
	// deliberately no delay between them, like the original client.
	// Zero or negative means DefaultMaxAttempts.
	MaxAttempts int

	// UserAgent is the OPTIONAL user agent to use.
	UserAgent string
}

// NewRequest creates a new request bound to ctx.
func (c *APIClient) NewRequest(ctx context.Context, method, resourcePath string,
	body io.Reader) (*http.Request, error) {
	URL, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, err
	}
	URL.Path = resourcePath
	request, err := http.NewRequestWithContext(ctx, method, URL.String(), body)
	if err != nil {
		return nil, err
	}
	request.Host = c.Host // allow cloudfronting
	for key, values := range c.ExtraHeaders {
		for _, value := range values {
			request.Header.Add(key, value)
		}
	}
	if c.UserAgent != "" {
		request.Header.Set("User-Agent", c.UserAgent)
	}
	return request, nil
}

// Do issues the request described by method, resourcePath, and body and
// passes the response to the receive callback. Each attempt rebuilds
// the request from scratch. Only transport level failures are retried:
// once we have a response, the outcome of receive is final. When every
// attempt fails we return the last transport error, not a wrapper.
func (c *APIClient) Do(ctx context.Context, method, resourcePath string,
	body []byte, receive func(response *http.Response) error) error {
	maxAttempts := c.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		request, err := c.NewRequest(ctx, method, resourcePath, reader)
		if err != nil {
			return err
		}
		if body != nil {
			request.Header.Set("Content-Type", "application/json")
		}
		c.Logger.Debugf("httpx: %s %s", method, request.URL.String())
		response, err := c.HTTPClient.Do(request)
		if err != nil {
			c.Logger.Debugf("httpx: request failed: %s; retrying", err.Error())
			lastErr = err
			continue
		}
		return c.receiveAndCloseBody(response, receive)
	}
	c.Logger.Debug("httpx: all attempts failed; giving up")
	return lastErr
}

func (c *APIClient) receiveAndCloseBody(
	response *http.Response, receive func(response *http.Response) error) error {
	defer response.Body.Close()
	return receive(response)
}

// StatusError indicates that the server returned a status code >= 400.
type StatusError struct {
	// Code is the status code.
	Code int
}

var _ error = &StatusError{}

// Error implements error.Error.
func (err *StatusError) Error() string {
	return fmt.Sprintf("httpx: request failed: %d", err.Code)
}

// DoBody is like Do except that it reads and returns the whole response
// body. A response with status code >= 400 yields a *StatusError.
func (c *APIClient) DoBody(ctx context.Context, method, resourcePath string,
	body []byte) ([]byte, error) {
	var out []byte
	err := c.Do(ctx, method, resourcePath, body, func(response *http.Response) error {
		if response.StatusCode >= 400 {
			return &StatusError{Code: response.StatusCode}
		}
		reader := io.LimitReader(response.Body, DefaultMaxBodySize)
		data, err := iox.ReadAllContext(ctx, reader)
		if err != nil {
			return err
		}
		c.Logger.Debugf("httpx: response body: %d bytes", len(data))
		out = data
		return nil
	})
	return out, err
}
