package probeservices

//
// webconnectivity.go - GET /status and POST / (control)
//

import "context"

// StatusResponse is the response of the control's status endpoint.
type StatusResponse struct {
	Status string `json:"status"`
}

// IsReachable checks whether the web connectivity control is up by
// querying its status endpoint and requiring the ok marker.
func (c *WebConnectivity) IsReachable(ctx context.Context) bool {
	var response StatusResponse
	if err := c.Conn.Query(ctx, "GET", "/status", nil, &response); err != nil {
		return false
	}
	return response.Status == "ok"
}

// ControlRequest is the request we send to the control.
type ControlRequest struct {
	// HTTPRequest is the URL the control should fetch.
	HTTPRequest string `json:"http_request"`

	// HTTPRequestHeaders are the headers to fetch it with.
	HTTPRequestHeaders map[string][]string `json:"http_request_headers,omitempty"`

	// TCPConnect lists the endpoints the control should connect to.
	TCPConnect []string `json:"tcp_connect"`
}

// ControlTCPConnectResult is the result of the TCP connect attempt
// performed by the control vantage point.
type ControlTCPConnectResult struct {
	Status  bool    `json:"status"`
	Failure *string `json:"failure"`
}

// ControlHTTPRequestResult is the result of the HTTP request
// performed by the control vantage point.
type ControlHTTPRequestResult struct {
	BodyLength int64             `json:"body_length"`
	Failure    *string           `json:"failure"`
	Title      string            `json:"title"`
	Headers    map[string]string `json:"headers"`
	StatusCode int64             `json:"status_code"`
}

// ControlDNSResult is the result of the DNS lookup performed by the
// control vantage point.
type ControlDNSResult struct {
	Failure *string  `json:"failure"`
	Addrs   []string `json:"addrs"`
}

// ControlResponse is the response from the control service.
type ControlResponse struct {
	TCPConnect  map[string]ControlTCPConnectResult `json:"tcp_connect"`
	HTTPRequest ControlHTTPRequestResult           `json:"http_request"`
	DNS         ControlDNSResult                   `json:"dns"`
}

// Control issues a control request and returns the measurement
// performed by the control vantage point.
func (c *WebConnectivity) Control(
	ctx context.Context, request ControlRequest) (*ControlResponse, error) {
	var response ControlResponse
	if err := c.Conn.Query(ctx, "POST", "/", request, &response); err != nil {
		return nil, err
	}
	return &response, nil
}
