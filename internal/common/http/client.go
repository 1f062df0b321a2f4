// internal/common/http/client.go
package http

import (
	"net"
	"net/http"
	"time"
)

const userAgent = "loan-assistant/1.0"

// Client is the shared outbound client for upstream APIs. It keeps a pooled
// transport and stamps every request with the service User-Agent.
type Client struct {
	httpClient *http.Client
}

// NewClient builds a client whose overall request deadline is timeout.
// A zero timeout leaves requests bounded only by their context.
func NewClient(timeout time.Duration) *Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          50,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	return &Client{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", userAgent)
	}
	return c.httpClient.Do(req)
}

// Timeout reports the overall request deadline.
func (c *Client) Timeout() time.Duration {
	return c.httpClient.Timeout
}
